package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mbs-portal-api/internal/dto"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/jobs"
)

type stubProfileStore struct {
	profiles  map[string]*models.Profile
	getErr    error
	upsertErr error
	upserts   int
}

func newStubProfileStore() *stubProfileStore {
	return &stubProfileStore{profiles: map[string]*models.Profile{}}
}

func (s *stubProfileStore) Get(_ context.Context, id string) (*models.Profile, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	profile, ok := s.profiles[id]
	if !ok {
		return nil, appErrors.ErrNotFound
	}
	return profile, nil
}

func (s *stubProfileStore) Upsert(_ context.Context, profile *models.Profile) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.profiles[profile.UserRandom] = profile
	return nil
}

func (s *stubProfileStore) Delete(_ context.Context, id string) error {
	if _, ok := s.profiles[id]; !ok {
		return appErrors.ErrNotFound
	}
	delete(s.profiles, id)
	return nil
}

type stubQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *stubQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newProfileService(store *stubProfileStore, queue *stubQueue) *ProfileService {
	svc := NewProfileService(store, NewParserService(nil), NewAverageService(nil), nil, queue, nil, nil)
	svc.now = func() time.Time { return time.UnixMilli(1725000000000) }
	return svc
}

func TestProfileService_Import_NewProfile(t *testing.T) {
	store := newStubProfileStore()
	queue := &stubQueue{}
	svc := newProfileService(store, queue)

	resp, err := svc.Import(context.Background(), dto.ImportRequest{Text: portalFixture()})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ProfileID)
	assert.Equal(t, "Jean Tremblay", resp.Nom)
	assert.Equal(t, "etape4", resp.TermKey)
	assert.Equal(t, 2, resp.SubjectCount)
	assert.Nil(t, resp.TermAverage, "no niveau configured yet, so no term average")

	stored := store.profiles[resp.ProfileID]
	require.NotNil(t, stored)
	assert.True(t, stored.Valid)
	assert.Empty(t, stored.Historique)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, "analysis-warm", queue.jobs[0].Type)
}

func TestProfileService_Import_MergesTermAndHistory(t *testing.T) {
	store := newStubProfileStore()
	store.profiles["u-1"] = &models.Profile{
		UserRandom: "u-1",
		Settings:   models.Settings{Niveau: models.NiveauSec4, UnitesMode: models.UnitsModeUnitless},
		Etape2:     []models.Subject{subjectFixture()},
	}
	svc := newProfileService(store, &stubQueue{})

	text := "Photo\nJean Tremblay\nClasse\n1\n" +
		"MAT101 - Mathématiques\n" +
		"Compétence - Algèbre (100%)\n" +
		"Devoir 1\n20\nB+\n"

	resp, err := svc.Import(context.Background(), dto.ImportRequest{ProfileID: "u-1", Text: text})
	require.NoError(t, err)
	assert.Equal(t, models.TermEtape1, resp.TermKey)
	require.NotNil(t, resp.TermAverage)
	assert.InDelta(t, 85, *resp.TermAverage, 1e-9)

	stored := store.profiles["u-1"]
	require.Len(t, stored.Etape1, 1)
	require.Len(t, stored.Etape2, 1, "other terms stay untouched")
	require.Contains(t, stored.Historique, models.TermEtape1)
	assert.Equal(t, []float64{85}, stored.Historique[models.TermEtape1].Moyennes)
	assert.Equal(t, []int64{1725000000000}, stored.Historique[models.TermEtape1].Timestamps)
}

func TestProfileService_Import_ParseFailure(t *testing.T) {
	store := newStubProfileStore()
	svc := newProfileService(store, &stubQueue{})

	_, err := svc.Import(context.Background(), dto.ImportRequest{Text: "not portal text"})
	assert.ErrorIs(t, err, appErrors.ErrParseFailure)
	assert.Zero(t, store.upserts)
}

func TestProfileService_Import_MissingText(t *testing.T) {
	svc := newProfileService(newStubProfileStore(), &stubQueue{})

	_, err := svc.Import(context.Background(), dto.ImportRequest{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestProfileService_UpdateSettings(t *testing.T) {
	store := newStubProfileStore()
	store.profiles["u-1"] = &models.Profile{UserRandom: "u-1"}
	svc := newProfileService(store, &stubQueue{})

	rate := 8.0
	profile, err := svc.UpdateSettings(context.Background(), "u-1", dto.SettingsRequest{
		Niveau:      models.NiveauSec5,
		UnitesMode:  models.UnitsModeCustom,
		CustomUnites: map[string]float64{"MAT": 6},
		AbsenceRate: &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, models.NiveauSec5, profile.Settings.Niveau)
	assert.Equal(t, 6.0, profile.Settings.CustomUnites["MAT"])
	require.NotNil(t, profile.Settings.AbsenceRate)
	assert.Equal(t, 8.0, *profile.Settings.AbsenceRate)

	_, err = svc.UpdateSettings(context.Background(), "missing", dto.SettingsRequest{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestProfileService_UpdatePonderations(t *testing.T) {
	store := newStubProfileStore()
	store.profiles["u-1"] = &models.Profile{
		UserRandom: "u-1",
		Etape1:     []models.Subject{subjectFixture()},
	}
	svc := newProfileService(store, &stubQueue{})

	t.Run("updates in place", func(t *testing.T) {
		profile, err := svc.UpdatePonderations(context.Background(), "u-1", dto.PonderationsRequest{
			Updates: []dto.PonderationUpdate{
				{TermKey: models.TermEtape1, SubjectIndex: 0, CompetencyIndex: 0, AssignmentIndex: 1, Pond: "45"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "45", profile.Etape1[0].Competencies[0].Assignments[1].Pond)
	})

	t.Run("out of range rejects the batch", func(t *testing.T) {
		before := store.upserts
		_, err := svc.UpdatePonderations(context.Background(), "u-1", dto.PonderationsRequest{
			Updates: []dto.PonderationUpdate{
				{TermKey: models.TermEtape1, SubjectIndex: 0, CompetencyIndex: 0, AssignmentIndex: 0, Pond: "10"},
				{TermKey: models.TermEtape1, SubjectIndex: 5, CompetencyIndex: 0, AssignmentIndex: 0, Pond: "10"},
			},
		})
		assert.ErrorIs(t, err, appErrors.ErrValidation)
		assert.Equal(t, before, store.upserts, "nothing written on a rejected batch")
	})
}
