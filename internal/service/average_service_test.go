package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

func subjectFixture() models.Subject {
	return models.Subject{
		Code: "MAT101",
		Name: "Mathématiques",
		Competencies: []models.Competency{
			{
				Name: "Compétence - Algèbre (40%)",
				Assignments: []models.Assignment{
					{Work: "Devoir 1", Pond: "20", Result: "80"},
					{Work: "Devoir 2", Pond: "30", Result: "90"},
				},
			},
			{
				Name: "Compétence - Géométrie (60%)",
				Assignments: []models.Assignment{
					{Work: "Examen 1", Pond: "50", Result: "70"},
					{Work: "Examen 2", Pond: "50", Result: "100"},
				},
			},
		},
	}
}

func TestAverageService_SubjectAverage(t *testing.T) {
	svc := NewAverageService(nil)

	t.Run("weighted cascade", func(t *testing.T) {
		// comp1 = (80*20 + 90*30) / 50 = 86; comp2 = (70+100)/2 = 85
		// subject = (86*40 + 85*60) / 100 = 85.4
		avg := svc.SubjectAverage(subjectFixture())
		require.NotNil(t, avg)
		assert.InDelta(t, 85.4, *avg, 1e-9)
	})

	t.Run("single competency from parser scenario", func(t *testing.T) {
		subject := models.Subject{
			Code: "MAT101",
			Competencies: []models.Competency{
				{
					Name: "Compétence - Algèbre (50%)",
					Assignments: []models.Assignment{
						{Work: "Devoir 1", Pond: "20", AssignedDate: "2024-09-01", Result: "B+"},
					},
				},
			},
		}
		avg := svc.SubjectAverage(subject)
		require.NotNil(t, avg)
		assert.InDelta(t, 85, *avg, 1e-9)
	})

	t.Run("competency without weight stays out of denominator", func(t *testing.T) {
		subject := subjectFixture()
		subject.Competencies[1].Name = "Compétence - Géométrie"
		avg := svc.SubjectAverage(subject)
		require.NotNil(t, avg)
		assert.InDelta(t, 86, *avg, 1e-9)
	})

	t.Run("excluded grades and weights skipped entirely", func(t *testing.T) {
		subject := models.Subject{
			Code: "FRA402",
			Competencies: []models.Competency{
				{
					Name: "Compétence - Lire (100%)",
					Assignments: []models.Assignment{
						{Pond: "20", Result: "Exempt"},
						{Pond: "0", Result: "90"},
						{Pond: "", Result: "90"},
						{Pond: "10", Result: "80"},
					},
				},
			},
		}
		avg := svc.SubjectAverage(subject)
		require.NotNil(t, avg)
		assert.InDelta(t, 80, *avg, 1e-9)
	})

	t.Run("nil when nothing contributes", func(t *testing.T) {
		subject := models.Subject{
			Code: "SCI203",
			Competencies: []models.Competency{
				{Name: "Compétence - Observer", Assignments: []models.Assignment{{Pond: "10", Result: "80"}}},
				{Name: "Compétence - Analyser (50%)", Assignments: []models.Assignment{{Pond: "10", Result: "Retard"}}},
			},
		}
		assert.Nil(t, svc.SubjectAverage(subject))
	})
}

func TestAverageService_UnitsFor(t *testing.T) {
	svc := NewAverageService(nil)

	t.Run("unitless always answers one", func(t *testing.T) {
		units := svc.UnitsFor(models.Settings{UnitesMode: models.UnitsModeUnitless})
		unit, ok := units.UnitFor("ZZZ")
		assert.True(t, ok)
		assert.Equal(t, 1.0, unit)
		assert.Equal(t, 0.0, units.TotalUnits())
	})

	t.Run("custom table verbatim", func(t *testing.T) {
		units := svc.UnitsFor(models.Settings{
			UnitesMode:   models.UnitsModeCustom,
			CustomUnites: map[string]float64{"MAT": 6},
		})
		unit, ok := units.UnitFor("MAT")
		assert.True(t, ok)
		assert.Equal(t, 6.0, unit)
		_, ok = units.UnitFor("FRA")
		assert.False(t, ok)
	})

	t.Run("default table follows niveau", func(t *testing.T) {
		units := svc.UnitsFor(models.Settings{Niveau: models.NiveauSec4, UnitesMode: models.UnitsModeDefault})
		unit, ok := units.UnitFor("MAT")
		assert.True(t, ok)
		assert.Equal(t, models.DefaultUnits[models.NiveauSec4]["MAT"], unit)
		assert.Positive(t, units.TotalUnits())
	})

	t.Run("empty without niveau", func(t *testing.T) {
		units := svc.UnitsFor(models.Settings{})
		_, ok := units.UnitFor("MAT")
		assert.False(t, ok)
		assert.Equal(t, 0.0, units.TotalUnits())
	})
}

func TestAverageService_ComputeAverages(t *testing.T) {
	svc := NewAverageService(nil)

	t.Run("global equals term one when it is the only term", func(t *testing.T) {
		profile := &models.Profile{
			Settings: models.Settings{Niveau: models.NiveauSec4, UnitesMode: models.UnitsModeUnitless},
			Etape1:   []models.Subject{subjectFixture()},
		}
		result := svc.ComputeAverages(profile)

		require.NotNil(t, result.TermAverages[models.TermEtape1])
		assert.InDelta(t, 85.4, *result.TermAverages[models.TermEtape1], 1e-9)
		require.NotNil(t, result.GlobalAverage)
		assert.InDelta(t, 85.4, *result.GlobalAverage, 1e-9)
		assert.Nil(t, result.TermAverages[models.TermEtape2])
		assert.Nil(t, result.TermAverages[models.TermEtape3])
	})

	t.Run("terms blend on fixed weights", func(t *testing.T) {
		second := subjectFixture()
		second.Competencies[0].Assignments[0].Result = "100"
		second.Competencies[0].Assignments[1].Result = "100"
		second.Competencies[1].Assignments[0].Result = "100"
		second.Competencies[1].Assignments[1].Result = "100"

		profile := &models.Profile{
			Settings: models.Settings{Niveau: models.NiveauSec4, UnitesMode: models.UnitsModeUnitless},
			Etape1:   []models.Subject{subjectFixture()},
			Etape2:   []models.Subject{second},
		}
		result := svc.ComputeAverages(profile)

		require.NotNil(t, result.GlobalAverage)
		want := (85.4*0.20 + 100*0.20) / 0.40
		assert.InDelta(t, want, *result.GlobalAverage, 1e-9)
	})

	t.Run("no term average without niveau", func(t *testing.T) {
		profile := &models.Profile{
			Settings: models.Settings{UnitesMode: models.UnitsModeUnitless},
			Etape1:   []models.Subject{subjectFixture()},
		}
		result := svc.ComputeAverages(profile)

		assert.Nil(t, result.TermAverages[models.TermEtape1])
		assert.Nil(t, result.GlobalAverage)
		require.NotNil(t, result.SubjectAverages[models.TermEtape1]["MAT"].Average)
	})

	t.Run("missing prefix falls back to two units", func(t *testing.T) {
		other := subjectFixture()
		other.Code = "ZZZ999"
		other.Competencies[0].Assignments = []models.Assignment{{Pond: "10", Result: "60"}}
		other.Competencies[1].Assignments = []models.Assignment{{Pond: "10", Result: "60"}}

		profile := &models.Profile{
			Settings: models.Settings{
				Niveau:       models.NiveauSec4,
				UnitesMode:   models.UnitsModeCustom,
				CustomUnites: map[string]float64{"MAT": 6},
			},
			Etape1: []models.Subject{subjectFixture(), other},
		}
		result := svc.ComputeAverages(profile)

		require.NotNil(t, result.TermAverages[models.TermEtape1])
		want := (85.4*6 + 60*2) / 8
		assert.InDelta(t, want, *result.TermAverages[models.TermEtape1], 1e-9)
	})
}
