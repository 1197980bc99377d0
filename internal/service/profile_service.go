package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/dto"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/jobs"
)

// profileStore abstracts profile persistence.
type profileStore interface {
	Get(ctx context.Context, userRandom string) (*models.Profile, error)
	Upsert(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, userRandom string) error
}

// precomputeQueue accepts background analysis warm-up jobs.
type precomputeQueue interface {
	Enqueue(job jobs.Job) error
}

// ProfileService owns the profile lifecycle: imports merge exactly one
// term and append one history point, settings and ponderation edits
// replace the aggregate atomically.
type ProfileService struct {
	store     profileStore
	parser    *ParserService
	averages  *AverageService
	metrics   *MetricsService
	queue     precomputeQueue
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

func NewProfileService(
	store profileStore,
	parser *ParserService,
	averages *AverageService,
	metrics *MetricsService,
	queue precomputeQueue,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{
		store:     store,
		parser:    parser,
		averages:  averages,
		metrics:   metrics,
		queue:     queue,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Import parses pasted portal text and merges the result into the
// profile: one term overwritten, one history point appended when the
// term average could be computed. A parse failure is a user error, not
// a server fault.
func (s *ProfileService) Import(ctx context.Context, req dto.ImportRequest) (*dto.ImportResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, "VALIDATION_ERROR", 422, "invalid import payload")
	}

	parsed, err := s.parser.Parse(req.Text)
	if err != nil {
		s.metrics.RecordImport("parse_failure")
		return nil, err
	}

	profileID := req.ProfileID
	var profile *models.Profile
	if profileID == "" {
		profileID = uuid.NewString()
		profile = &models.Profile{UserRandom: profileID}
	} else {
		profile, err = s.store.Get(ctx, profileID)
		if errors.Is(err, appErrors.ErrNotFound) {
			profile = &models.Profile{UserRandom: profileID}
		} else if err != nil {
			s.metrics.RecordImport("error")
			return nil, err
		}
	}

	profile.Nom = parsed.StudentName
	profile.Valid = true
	profile.SetTerm(parsed.TermKey, parsed.Subjects)

	result := s.averages.ComputeAverages(profile)
	termAverage := result.TermAverages[parsed.TermKey]
	if termAverage != nil {
		profile.AppendHistory(parsed.TermKey, s.now(), *termAverage)
	}

	if err := s.store.Upsert(ctx, profile); err != nil {
		s.metrics.RecordImport("error")
		return nil, err
	}
	s.metrics.RecordImport("success")
	s.enqueueWarm(profile)

	s.logger.Info("portal import merged",
		zap.String("profile_id", profileID),
		zap.String("term", parsed.TermKey),
		zap.Int("subjects", len(parsed.Subjects)))

	return &dto.ImportResponse{
		ProfileID:    profileID,
		Nom:          parsed.StudentName,
		TermKey:      parsed.TermKey,
		SubjectCount: len(parsed.Subjects),
		TermAverage:  termAverage,
	}, nil
}

// Get loads a profile.
func (s *ProfileService) Get(ctx context.Context, profileID string) (*models.Profile, error) {
	return s.store.Get(ctx, profileID)
}

// Delete removes a profile.
func (s *ProfileService) Delete(ctx context.Context, profileID string) error {
	return s.store.Delete(ctx, profileID)
}

// UpdateSettings replaces the profile settings.
func (s *ProfileService) UpdateSettings(ctx context.Context, profileID string, req dto.SettingsRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, "VALIDATION_ERROR", 422, "invalid settings payload")
	}

	profile, err := s.store.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	profile.Settings = models.Settings{
		Niveau:       req.Niveau,
		UnitesMode:   req.UnitesMode,
		CustomUnites: req.CustomUnites,
		AbsenceRate:  req.AbsenceRate,
	}
	if err := s.store.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	s.enqueueWarm(profile)
	return profile, nil
}

// UpdatePonderations overwrites assignment weights in place. Indices
// address the stored tree; any out-of-range index rejects the whole
// batch before anything is written.
func (s *ProfileService) UpdatePonderations(ctx context.Context, profileID string, req dto.PonderationsRequest) (*models.Profile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, "VALIDATION_ERROR", 422, "invalid ponderations payload")
	}

	profile, err := s.store.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}

	for _, update := range req.Updates {
		subjects := profile.Term(update.TermKey)
		if update.SubjectIndex >= len(subjects) {
			return nil, appErrors.ErrValidation
		}
		competencies := subjects[update.SubjectIndex].Competencies
		if update.CompetencyIndex >= len(competencies) {
			return nil, appErrors.ErrValidation
		}
		assignments := competencies[update.CompetencyIndex].Assignments
		if update.AssignmentIndex >= len(assignments) {
			return nil, appErrors.ErrValidation
		}
	}

	for _, update := range req.Updates {
		subjects := profile.Term(update.TermKey)
		subjects[update.SubjectIndex].Competencies[update.CompetencyIndex].Assignments[update.AssignmentIndex].Pond = update.Pond
	}

	if err := s.store.Upsert(ctx, profile); err != nil {
		return nil, err
	}
	s.enqueueWarm(profile)
	return profile, nil
}

// Averages recomputes the weighted average cascade for a profile.
func (s *ProfileService) Averages(ctx context.Context, profileID string) (*models.AveragesResult, error) {
	profile, err := s.store.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	return s.averages.ComputeAverages(profile), nil
}

func (s *ProfileService) enqueueWarm(profile *models.Profile) {
	if s.queue == nil {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    "analysis-warm",
		Payload: profile,
	})
	if err != nil {
		s.logger.Warn("analysis warm enqueue failed",
			zap.String("profile_id", profile.UserRandom), zap.Error(err))
	}
}
