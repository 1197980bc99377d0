package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

// AnalysisService runs the full derivation pipeline over a profile:
// averages, statistics, insight regressions, burnout, the Monte Carlo
// projection and the path analysis. Results are memoized on a key
// derived from the whole profile, so any edit naturally invalidates.
type AnalysisService struct {
	averages   *AverageService
	statistics *StatisticsService
	projection *ProjectionService
	cache      *CacheService
	metrics    *MetricsService
	log        *zap.Logger
}

func NewAnalysisService(
	averages *AverageService,
	statistics *StatisticsService,
	projection *ProjectionService,
	cache *CacheService,
	metrics *MetricsService,
	log *zap.Logger,
) *AnalysisService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalysisService{
		averages:   averages,
		statistics: statistics,
		projection: projection,
		cache:      cache,
		metrics:    metrics,
		log:        log,
	}
}

// Analyze computes (or recalls) the full analysis for a profile. The
// boolean reports whether the result came from cache.
func (s *AnalysisService) Analyze(ctx context.Context, profile *models.Profile) (*models.AnalysisResult, bool, error) {
	key, cacheable := "", false
	if s.cache != nil {
		key, cacheable = s.cache.Key("analysis", profile)
	}
	if cacheable {
		var cached models.AnalysisResult
		hit, err := s.cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	result := s.compute(profile)

	if cacheable {
		if err := s.cache.Set(ctx, key, result, 0); err != nil {
			s.log.Warn("analysis cache write failed", zap.Error(err))
		}
	}
	return result, false, nil
}

// Warm computes the analysis and primes the cache, discarding the
// result. Used by the precompute queue after imports.
func (s *AnalysisService) Warm(ctx context.Context, profile *models.Profile) error {
	_, _, err := s.Analyze(ctx, profile)
	return err
}

func (s *AnalysisService) compute(profile *models.Profile) *models.AnalysisResult {
	settings := profile.Settings
	units := s.averages.UnitsFor(settings)
	niveau := settings.Niveau

	subjectAverages := make(map[string]map[string]models.SubjectAverage)
	subjectStats := make(map[string]map[string]models.SubjectTermStats)
	var globalGrades []float64

	for _, term := range models.KnownTermKeys {
		subjects := profile.Term(term)
		if subjects == nil {
			continue
		}
		subjectAverages[term] = make(map[string]models.SubjectAverage)
		for _, subject := range subjects {
			prefix := subject.CodePrefix()
			average, stats := s.statistics.SubjectStats(subject)

			subjectAverages[term][prefix] = models.SubjectAverage{
				Name:    models.SubjectDisplayName(prefix, subject.Name),
				Average: average,
			}
			if subjectStats[prefix] == nil {
				subjectStats[prefix] = make(map[string]models.SubjectTermStats)
			}
			subjectStats[prefix][term] = stats
			globalGrades = append(globalGrades, stats.Grades...)
		}
	}

	overallStats := make(map[string]models.SubjectOverallStats, len(subjectStats))
	subjectTrends := make(map[string]models.Regression, len(subjectStats))
	for prefix, perTerm := range subjectStats {
		overall := s.statistics.OverallStats(perTerm)
		overallStats[prefix] = overall
		subjectTrends[prefix] = overall.Trend
	}

	termAverages := map[string]*float64{
		models.TermEtape1: nil,
		models.TermEtape2: nil,
		models.TermEtape3: nil,
	}
	var globalSum, knownWeight float64
	for _, term := range models.KnownTermKeys {
		var weightedSum, unitSum float64
		for prefix, entry := range subjectAverages[term] {
			if entry.Average == nil || niveau == "" {
				continue
			}
			unit, ok := units.UnitFor(prefix)
			if !ok || unit == 0 {
				unit = 2
			}
			weightedSum += *entry.Average * unit
			unitSum += unit
		}
		if unitSum > 0 {
			avg := weightedSum / unitSum
			termAverages[term] = &avg
			globalSum += avg * models.TermWeights[term]
			knownWeight += models.TermWeights[term]
		}
	}
	var globalAverage *float64
	if knownWeight > 0 {
		avg := globalSum / knownWeight
		globalAverage = &avg
	}

	globalStdDev := s.statistics.StdDev(globalGrades)
	globalConsistency := s.statistics.ConsistencyScore(globalGrades)

	insights := s.statistics.InsightModels(subjectStats, overallStats)

	globalTrend := models.Regression{}
	for _, model := range insights {
		if model.Name == "Global (Tendance)" {
			globalTrend = model.Model
			break
		}
	}

	absenceRate := 5.0
	if settings.AbsenceRate != nil && *settings.AbsenceRate != 0 {
		absenceRate = *settings.AbsenceRate
	}
	burnout := s.projection.BurnoutRisk(niveau, globalStdDev, units, globalTrend, absenceRate/100)

	simStart := time.Now()
	projections, projectedMean, projectedSigma := s.projection.Simulate(
		globalAverage, termAverages, subjectAverages, overallStats, units, globalStdDev)
	if s.metrics != nil {
		s.metrics.ObserveSimulation(time.Since(simStart))
	}

	pathEtape2 := s.projection.PathAnalysis(models.TermEtape2, termAverages, projectedMean, projectedSigma)
	pathEtape3 := s.projection.PathAnalysis(models.TermEtape3, termAverages, projectedMean, projectedSigma)

	return &models.AnalysisResult{
		SubjectAverages:     subjectAverages,
		TermAverages:        termAverages,
		GlobalAverage:       globalAverage,
		GlobalStdDev:        globalStdDev,
		GlobalConsistency:   globalConsistency,
		InsightModels:       insights,
		SubjectStats:        subjectStats,
		SubjectOverallStats: overallStats,
		SubjectTrends:       subjectTrends,
		BurnoutRisk:         burnout,
		Projections:         projections,
		ProjectedTermMean:   projectedMean,
		ProjectedTermSigma:  projectedSigma,
		PathAnalysisEtape2:  pathEtape2,
		PathAnalysisEtape3:  pathEtape3,
		R2Threshold:         R2Threshold,
	}
}
