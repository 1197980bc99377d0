package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func TestProjectionService_Probability(t *testing.T) {
	svc := NewProjectionService(100, nil)

	t.Run("bounded", func(t *testing.T) {
		for _, mean := range []float64{40, 60, 75, 95} {
			for _, sigma := range []float64{0, 0.5, 5, 20} {
				for _, target := range []float64{50, 75, 90, 99} {
					p := svc.Probability(mean, sigma, target)
					assert.GreaterOrEqual(t, p, 0.0)
					assert.LessOrEqual(t, p, 100.0)
				}
			}
		}
	})

	t.Run("zero sigma is a step function", func(t *testing.T) {
		assert.Equal(t, 100.0, svc.Probability(85, 0, 80))
		assert.Equal(t, 100.0, svc.Probability(80, 0, 80))
		assert.Equal(t, 0.0, svc.Probability(75, 0, 80))
	})

	t.Run("target above one hundred is unreachable", func(t *testing.T) {
		assert.Equal(t, 0.0, svc.Probability(99, 10, 100.5))
	})

	t.Run("symmetric around the mean", func(t *testing.T) {
		assert.InDelta(t, 50, svc.Probability(80, 5, 80), 0.5)
		assert.Greater(t, svc.Probability(80, 5, 75), svc.Probability(80, 5, 85))
	})
}

func TestProjectionService_BurnoutRisk(t *testing.T) {
	svc := NewProjectionService(100, nil)
	avgSvc := NewAverageService(nil)

	units := avgSvc.UnitsFor(models.Settings{Niveau: models.NiveauSec4, UnitesMode: models.UnitsModeDefault})

	t.Run("zero without niveau", func(t *testing.T) {
		assert.Equal(t, 0.0, svc.BurnoutRisk("", 20, units, models.Regression{Slope: -5}, 0.10))
	})

	t.Run("bounded", func(t *testing.T) {
		score := svc.BurnoutRisk(models.NiveauSec4, 50, units, models.Regression{Slope: -10}, 0.50)
		assert.LessOrEqual(t, score, 100.0)
		score = svc.BurnoutRisk(models.NiveauSec4, 0, avgSvc.UnitsFor(models.Settings{UnitesMode: models.UnitsModeUnitless}), models.Regression{Slope: 3}, 0)
		assert.GreaterOrEqual(t, score, 0.0)
	})

	t.Run("negative trend raises risk", func(t *testing.T) {
		calm := svc.BurnoutRisk(models.NiveauSec4, 5, units, models.Regression{Slope: 1}, 0.05)
		stressed := svc.BurnoutRisk(models.NiveauSec4, 5, units, models.Regression{Slope: -2}, 0.05)
		assert.Greater(t, stressed, calm)
	})
}

func simulationFixture() (map[string]*float64, map[string]map[string]models.SubjectAverage, map[string]models.SubjectOverallStats) {
	termAverages := map[string]*float64{
		models.TermEtape1: floatPtr(82),
		models.TermEtape2: floatPtr(86),
		models.TermEtape3: nil,
	}
	subjectAverages := map[string]map[string]models.SubjectAverage{
		models.TermEtape1: {"MAT": {Name: "Math", Average: floatPtr(82)}},
		models.TermEtape2: {"MAT": {Name: "Math", Average: floatPtr(86)}},
	}
	overall := map[string]models.SubjectOverallStats{
		"MAT": {
			Grades:      []float64{78, 82, 84, 86, 90},
			StdDev:      4.47,
			Consistency: 91,
			NumGrades:   5,
			Trend:       models.Regression{Slope: 2.8, Intercept: 78.4, R2: 0.96},
		},
	}
	return termAverages, subjectAverages, overall
}

func TestProjectionService_Simulate(t *testing.T) {
	svc := NewProjectionService(5000, nil)
	avgSvc := NewAverageService(nil)
	units := avgSvc.UnitsFor(models.Settings{UnitesMode: models.UnitsModeUnitless})

	t.Run("percentile band is ordered and bounded", func(t *testing.T) {
		termAverages, subjectAverages, overall := simulationFixture()
		projections, mean, sigma := svc.Simulate(floatPtr(84), termAverages, subjectAverages, overall, units, 4.5)

		g := projections.Global
		require.NotNil(t, g.P5)
		assert.LessOrEqual(t, *g.P5, *g.P25)
		assert.LessOrEqual(t, *g.P25, *g.P50)
		assert.LessOrEqual(t, *g.P50, *g.P75)
		assert.LessOrEqual(t, *g.P75, *g.P95)
		assert.GreaterOrEqual(t, *g.P5, 0.0)
		assert.LessOrEqual(t, *g.P95, 100.0)
		require.NotNil(t, g.Mean)
		assert.GreaterOrEqual(t, *g.Mean, *g.P5)
		assert.LessOrEqual(t, *g.Mean, *g.P95)

		assert.Greater(t, mean, 40.0)
		assert.LessOrEqual(t, mean, 100.0)
		assert.GreaterOrEqual(t, sigma, 0.5)
		assert.LessOrEqual(t, sigma, 20.0)
	})

	t.Run("subject gets a point estimate within the cap", func(t *testing.T) {
		termAverages, subjectAverages, overall := simulationFixture()
		projections, _, _ := svc.Simulate(floatPtr(84), termAverages, subjectAverages, overall, units, 4.5)

		proj, ok := projections.Subjects["MAT"]
		require.True(t, ok)
		assert.GreaterOrEqual(t, proj.AdjustedMean, 40.0)
		assert.LessOrEqual(t, proj.AdjustedMean, proj.PredictionCap)
		assert.LessOrEqual(t, proj.PredictionCap, 100.0)
		assert.GreaterOrEqual(t, proj.PredictionCap, 80.0)
		assert.InDelta(t, 84, proj.CurrentMean, 1e-9)
		require.NotNil(t, proj.FinalGrade)
		// 82*0.2 + 86*0.2 + adjusted*0.6
		want := (82*0.2 + 86*0.2 + proj.AdjustedMean*0.6) / 1.0
		assert.InDelta(t, want, *proj.FinalGrade, 1e-9)
	})

	t.Run("all terms known collapses the band", func(t *testing.T) {
		termAverages := map[string]*float64{
			models.TermEtape1: floatPtr(82),
			models.TermEtape2: floatPtr(86),
			models.TermEtape3: floatPtr(88),
		}
		known := floatPtr(86.4)
		projections, _, _ := svc.Simulate(known, termAverages, nil, nil, units, 4.5)

		g := projections.Global
		require.NotNil(t, g.P5)
		assert.Equal(t, *known, *g.P5)
		assert.Equal(t, *g.P5, *g.P25)
		assert.Equal(t, *g.P25, *g.P50)
		assert.Equal(t, *g.P50, *g.P75)
		assert.Equal(t, *g.P75, *g.P95)
		assert.Equal(t, *known, *g.Mean)
		assert.Empty(t, projections.Subjects)
	})

	t.Run("no relevant subjects falls back to defaults", func(t *testing.T) {
		termAverages := map[string]*float64{models.TermEtape1: floatPtr(82)}
		projections, mean, sigma := svc.Simulate(nil, termAverages, nil, map[string]models.SubjectOverallStats{}, units, 0)

		assert.Nil(t, projections.Global.P50)
		assert.Empty(t, projections.Subjects)
		assert.Equal(t, 75.0, mean)
		assert.Equal(t, 5.0, sigma)
	})

	t.Run("few grades floor the subject sigma", func(t *testing.T) {
		termAverages := map[string]*float64{models.TermEtape1: floatPtr(80)}
		overall := map[string]models.SubjectOverallStats{
			"FRA": {
				Grades:      []float64{80, 81},
				StdDev:      0.7,
				Consistency: 99,
				NumGrades:   2,
				Trend:       models.Regression{Slope: 1, Intercept: 80, R2: 1},
			},
		}
		projections, _, sigma := svc.Simulate(floatPtr(80), termAverages, nil, overall, units, 1)

		proj := projections.Subjects["FRA"]
		assert.Equal(t, 3.0, proj.Sigma)
		assert.Equal(t, 3.0, sigma)
	})
}

func TestProjectionService_PathAnalysis(t *testing.T) {
	svc := NewProjectionService(100, nil)

	termAverages := map[string]*float64{
		models.TermEtape1: floatPtr(80),
		models.TermEtape2: floatPtr(84),
	}

	t.Run("term three query", func(t *testing.T) {
		results := svc.PathAnalysis(models.TermEtape3, termAverages, 83, 4)
		require.Len(t, results, 9)

		first := results[0]
		assert.Equal(t, 95.0, first.Target)
		require.NotNil(t, first.RequiredAvg)
		// (95 - 80*0.2 - 84*0.2) / 0.6
		assert.InDelta(t, (95-16-16.8)/0.6, *first.RequiredAvg, 1e-9)
		assert.Equal(t, 0.0, first.Probability, "required average above 100 cannot happen")

		for _, pt := range results {
			assert.GreaterOrEqual(t, pt.Probability, 0.0)
			assert.LessOrEqual(t, pt.Probability, 100.0)
		}
	})

	t.Run("term two query pins term three at the projection", func(t *testing.T) {
		results := svc.PathAnalysis(models.TermEtape2, termAverages, 83, 4)
		require.Len(t, results, 9)

		var target80 models.PathTarget
		for _, pt := range results {
			if pt.Target == 80 {
				target80 = pt
			}
		}
		require.NotNil(t, target80.RequiredAvg)
		// (80 - 80*0.2 - 83*0.6) / 0.2
		assert.InDelta(t, (80-16-49.8)/0.2, *target80.RequiredAvg, 1e-9)
	})

	t.Run("probabilities decrease as targets rise", func(t *testing.T) {
		results := svc.PathAnalysis(models.TermEtape3, termAverages, 83, 6)
		for i := 1; i < len(results); i++ {
			// targets are listed high to low
			assert.LessOrEqual(t, results[i-1].Probability, results[i].Probability)
		}
	})
}
