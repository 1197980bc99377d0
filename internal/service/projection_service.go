package service

import (
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

// DefaultSimulationRuns is the Monte Carlo sample count.
const DefaultSimulationRuns = 100000

// pathTargets are the global-average thresholds the path analysis
// solves for.
var pathTargets = []float64{95, 92, 90, 88, 85, 80, 75, 70, 60}

// ProjectionService estimates the distribution of the still-unknown
// term and the year-end global average. Subjects get a point estimate;
// the global average gets a full simulated percentile band.
type ProjectionService struct {
	runs int
	rng  *rand.Rand
	log  *zap.Logger
}

func NewProjectionService(runs int, log *zap.Logger) *ProjectionService {
	if runs <= 0 {
		runs = DefaultSimulationRuns
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectionService{
		runs: runs,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		log:  log,
	}
}

// Probability converts a required average into the chance of reaching
// it under a normal model. A near-zero deviation degenerates to a step
// function; targets above 100 are unreachable.
func (s *ProjectionService) Probability(mean, stdDev, target float64) float64 {
	if target > 100 {
		return 0
	}
	if stdDev <= 0.1 {
		if mean >= target {
			return 100
		}
		return 0
	}
	z := (target - mean) / stdDev
	cdf := 0.5 * (1 + math.Erf(z/math.Sqrt2))
	return (1 - cdf) * 100
}

// BurnoutRisk is a 0..100 heuristic blending workload, volatility,
// negative trend and absences. Zero when no niveau is configured,
// since workload needs a unit table.
func (s *ProjectionService) BurnoutRisk(niveau string, globalStdDev float64, units UnitResolver, globalTrend models.Regression, absenceRate float64) float64 {
	if niveau == "" {
		return 0
	}
	workload := math.Min(100, units.TotalUnits()/32*100)
	volatility := math.Min(100, globalStdDev/15*100)
	trend := math.Min(100, math.Max(0, globalTrend.Slope/-2*100))
	absence := math.Min(100, absenceRate/0.15*100)

	score := workload*0.20 + volatility*0.35 + trend*0.35 + absence*0.10
	return math.Min(100, math.Max(0, score))
}

// Simulate runs the Monte Carlo projection. Known term averages enter
// as fixed contributions; the remaining weight is filled by normal
// draws around the unit-pooled subject projections. The returned mean
// and sigma describe the projected unknown-term distribution and feed
// the path analysis.
func (s *ProjectionService) Simulate(
	globalAverageKnown *float64,
	termAverages map[string]*float64,
	subjectAverages map[string]map[string]models.SubjectAverage,
	overallStats map[string]models.SubjectOverallStats,
	units UnitResolver,
	globalStdDev float64,
) (models.Projections, float64, float64) {
	projections := models.Projections{Subjects: map[string]models.SubjectProjection{}}

	var knownSum, knownWeight, totalWeight float64
	for _, term := range models.AllTermKeys {
		totalWeight += models.TermWeights[term]
		if avg := termAverages[term]; avg != nil {
			knownSum += *avg * models.TermWeights[term]
			knownWeight += models.TermWeights[term]
		}
	}
	remainingWeight := totalWeight - knownWeight

	projectedMean := orDefault(globalAverageKnown, 75)
	projectedSigma := globalStdDev
	if projectedSigma == 0 {
		projectedSigma = 5
	}

	if remainingWeight <= 0 {
		projections.Global = models.GlobalProjection{
			P5: globalAverageKnown, P25: globalAverageKnown, P50: globalAverageKnown,
			P75: globalAverageKnown, P95: globalAverageKnown, Mean: globalAverageKnown,
		}
		return projections, projectedMean, projectedSigma
	}

	var relevant []string
	for _, code := range sortedKeys(overallStats) {
		unit, ok := units.UnitFor(code)
		if ok && unit != 0 && overallStats[code].NumGrades > 0 {
			relevant = append(relevant, code)
		}
	}
	if len(relevant) == 0 {
		return projections, projectedMean, projectedSigma
	}

	var meanWeightedSum, meanUnitSum, sigmaSquaredSum, sigmaUnitSum float64
	for _, code := range relevant {
		stats := overallStats[code]
		unit, _ := units.UnitFor(code)

		sigma := stats.StdDev
		if stats.NumGrades < 3 {
			sigma = math.Max(sigma, 3.0)
		}
		sigma = math.Min(20, math.Max(0.5, sigma))

		n := len(stats.Grades)
		projectedGrade := stats.Trend.Intercept + stats.Trend.Slope*float64(n+1)
		currentMean := subjectFallbackMean(subjectAverages, code)
		if n > 0 {
			var sum float64
			for _, g := range stats.Grades {
				sum += g
			}
			currentMean = sum / float64(n)
		}

		confidence := 0.0
		if stats.Trend.R2 > 0.1 {
			confidence = stats.Trend.R2
		}
		adjustedMean := projectedGrade*confidence + currentMean*(1-confidence)

		historicalMax := 100.0
		if n > 0 {
			historicalMax = stats.Grades[0]
			for _, g := range stats.Grades[1:] {
				historicalMax = math.Max(historicalMax, g)
			}
		}
		predictionCap := math.Min(100, math.Max(80, historicalMax*1.05))
		adjustedMean = math.Min(predictionCap, math.Max(40, adjustedMean))

		headroom := math.Min(100, math.Max(0, (100-currentMean)*(1+sigma/10)))
		growth := 1.0
		if currentMean > 0 {
			growth = adjustedMean / currentMean
		}

		projections.Subjects[code] = models.SubjectProjection{
			GrowthRatio:   growth,
			Sigma:         sigma,
			Consistency:   stats.Consistency,
			CurrentMean:   currentMean,
			AdjustedMean:  adjustedMean,
			PredictionCap: predictionCap,
			Headroom:      headroom,
			MismatchScore: sigma * (100 - stats.Consistency) / 10,
		}

		meanWeightedSum += adjustedMean * unit
		meanUnitSum += unit
		sigmaSquaredSum += sigma * sigma * unit
		sigmaUnitSum += unit
	}

	if meanUnitSum > 0 {
		projectedMean = meanWeightedSum / meanUnitSum
	}
	if sigmaUnitSum > 0 {
		projectedSigma = math.Sqrt(sigmaSquaredSum / sigmaUnitSum)
	} else if variance := globalStdDev * globalStdDev; variance > 0 {
		projectedSigma = globalStdDev
	} else {
		projectedSigma = 5
	}

	start := time.Now()
	samples := make([]float64, s.runs)
	for i := range samples {
		u1, u2 := s.rng.Float64(), s.rng.Float64()
		z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
		termDraw := math.Min(100, math.Max(0, projectedMean+z*projectedSigma))
		samples[i] = (knownSum + termDraw*remainingWeight) / totalWeight
	}

	// subject output is a deliberate point estimate, not resampled
	for _, code := range relevant {
		proj := projections.Subjects[code]
		avg1 := truthyAverage(subjectAverages, models.TermEtape1, code)
		avg2 := truthyAverage(subjectAverages, models.TermEtape2, code)
		adjusted := proj.AdjustedMean
		proj.FinalGrade = weightedFinalAverage(avg1, avg2, &adjusted)
		projections.Subjects[code] = proj
	}

	sort.Float64s(samples)
	projections.Global = models.GlobalProjection{
		P5:   percentileAt(samples, 0.05),
		P25:  percentileAt(samples, 0.25),
		P50:  percentileAt(samples, 0.50),
		P75:  percentileAt(samples, 0.75),
		P95:  percentileAt(samples, 0.95),
		Mean: meanOf(samples),
	}
	s.log.Debug("monte carlo simulation complete",
		zap.Int("runs", s.runs),
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("projected_mean", projectedMean),
		zap.Float64("projected_sigma", projectedSigma))

	return projections, projectedMean, projectedSigma
}

// PathAnalysis solves for the average the target term must reach so the
// year lands on each threshold, with the probability of getting there.
// For the term-two query, term three is pinned at the projected mean.
func (s *ProjectionService) PathAnalysis(targetTerm string, termAverages map[string]*float64, projectedMean, projectedSigma float64) []models.PathTarget {
	var knownSum, remainingWeight float64
	totalWeight := models.TermWeights[models.TermEtape1] +
		models.TermWeights[models.TermEtape2] +
		models.TermWeights[models.TermEtape3]

	if targetTerm == models.TermEtape2 {
		if avg := termAverages[models.TermEtape1]; avg != nil {
			knownSum = *avg * models.TermWeights[models.TermEtape1]
		}
		knownSum += projectedMean * models.TermWeights[models.TermEtape3]
		remainingWeight = models.TermWeights[models.TermEtape2]
	} else {
		if avg := termAverages[models.TermEtape1]; avg != nil {
			knownSum += *avg * models.TermWeights[models.TermEtape1]
		}
		if avg := termAverages[models.TermEtape2]; avg != nil {
			knownSum += *avg * models.TermWeights[models.TermEtape2]
		}
		remainingWeight = models.TermWeights[models.TermEtape3]
	}

	results := make([]models.PathTarget, 0, len(pathTargets))
	if remainingWeight <= 0 {
		for _, target := range pathTargets {
			results = append(results, models.PathTarget{Target: target})
		}
		return results
	}

	for _, target := range pathTargets {
		required := (target*totalWeight - knownSum) / remainingWeight
		results = append(results, models.PathTarget{
			Target:      target,
			RequiredAvg: &required,
			Probability: s.Probability(projectedMean, projectedSigma, required),
		})
	}
	return results
}

// weightedFinalAverage blends term averages on the fixed 20/20/60
// weights, renormalized over the terms present.
func weightedFinalAverage(etape1, etape2, etape3 *float64) *float64 {
	var sum, weight float64
	if etape1 != nil {
		sum += *etape1 * models.TermWeights[models.TermEtape1]
		weight += models.TermWeights[models.TermEtape1]
	}
	if etape2 != nil {
		sum += *etape2 * models.TermWeights[models.TermEtape2]
		weight += models.TermWeights[models.TermEtape2]
	}
	if etape3 != nil {
		sum += *etape3 * models.TermWeights[models.TermEtape3]
		weight += models.TermWeights[models.TermEtape3]
	}
	if weight == 0 {
		return nil
	}
	avg := sum / weight
	return &avg
}

// subjectFallbackMean picks the most recent known subject average when
// no grades were observed, defaulting to a neutral 75.
func subjectFallbackMean(subjectAverages map[string]map[string]models.SubjectAverage, code string) float64 {
	for _, term := range []string{models.TermEtape2, models.TermEtape1} {
		if avg := truthyAverage(subjectAverages, term, code); avg != nil {
			return *avg
		}
	}
	return 75
}

// truthyAverage returns the stored average unless it is missing or an
// exact zero, which the portal never awards as a real subject average.
func truthyAverage(subjectAverages map[string]map[string]models.SubjectAverage, term, code string) *float64 {
	entry, ok := subjectAverages[term][code]
	if !ok || entry.Average == nil || *entry.Average == 0 {
		return nil
	}
	return entry.Average
}

func orDefault(value *float64, fallback float64) float64 {
	if value == nil || *value == 0 {
		return fallback
	}
	return *value
}

func percentileAt(sorted []float64, p float64) *float64 {
	if len(sorted) == 0 {
		return nil
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	v := sorted[idx]
	return &v
}

func meanOf(samples []float64) *float64 {
	if len(samples) == 0 {
		return nil
	}
	var sum float64
	for _, s := range samples {
		sum += s
	}
	mean := sum / float64(len(samples))
	return &mean
}
