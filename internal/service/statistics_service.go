package service

import (
	"math"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

// R2Threshold is the minimum fit quality below which insight models are
// presented as weak correlations.
const R2Threshold = 0.25

// minInsightGrades is the smallest bucket worth regressing.
const minInsightGrades = 5

// StatisticsService computes descriptive statistics over normalized
// grades: deviation, consistency, least squares trends and the grouped
// insight regressions.
type StatisticsService struct {
	log *zap.Logger
}

func NewStatisticsService(log *zap.Logger) *StatisticsService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatisticsService{log: log}
}

// StdDev is the sample standard deviation, zero below two points.
func (s *StatisticsService) StdDev(grades []float64) float64 {
	if len(grades) < 2 {
		return 0
	}
	var sum float64
	for _, g := range grades {
		sum += g
	}
	mean := sum / float64(len(grades))

	var variance float64
	for _, g := range grades {
		variance += (g - mean) * (g - mean)
	}
	return math.Sqrt(variance / float64(len(grades)-1))
}

// ConsistencyScore maps deviation onto a 0..100 scale where 100 is a
// perfectly steady student.
func (s *StatisticsService) ConsistencyScore(grades []float64) float64 {
	return math.Max(0, 100-s.StdDev(grades)*2)
}

// LinearRegression is an ordinary least squares fit. Under two points,
// or with mismatched inputs, the fit degenerates to a flat line through
// the first value. Zero variance in y is reported as a perfect fit.
func (s *StatisticsService) LinearRegression(xs, ys []float64) models.Regression {
	n := len(xs)
	if n < 2 || n != len(ys) {
		var intercept float64
		if len(ys) > 0 {
			intercept = ys[0]
		}
		return models.Regression{Intercept: intercept}
	}

	var xSum, ySum, xySum, x2Sum float64
	for i := 0; i < n; i++ {
		xSum += xs[i]
		ySum += ys[i]
		xySum += xs[i] * ys[i]
		x2Sum += xs[i] * xs[i]
	}

	fn := float64(n)
	var slope float64
	if denom := fn*x2Sum - xSum*xSum; denom != 0 {
		slope = (fn*xySum - xSum*ySum) / denom
	}
	intercept := (ySum - slope*xSum) / fn

	yMean := ySum / fn
	var ssRes, ssTotal float64
	for i := 0; i < n; i++ {
		pred := slope*xs[i] + intercept
		ssRes += (ys[i] - pred) * (ys[i] - pred)
		ssTotal += (ys[i] - yMean) * (ys[i] - yMean)
	}

	r2 := 1.0
	if ssTotal != 0 {
		r2 = 1 - ssRes/ssTotal
	}
	return models.Regression{Slope: slope, Intercept: intercept, R2: r2}
}

// SubjectStats computes a subject's average together with its flattened
// grade series. Assignments only count when the grade, the weight and
// the owning competency weight are all usable; the dropout is silent by
// contract, visible only as reduced coverage.
func (s *StatisticsService) SubjectStats(subject models.Subject) (*float64, models.SubjectTermStats) {
	stats := models.SubjectTermStats{}
	var totalWeightedGrade, totalCompetencyWeight float64

	for _, comp := range subject.Competencies {
		compWeight := competencyWeight(comp.Name)
		if compWeight > 0 {
			for _, assignment := range comp.Assignments {
				grade, usable := NormalizeGrade(assignment.Result)
				if !usable {
					continue
				}
				weight, err := parseDecimal(assignment.Pond)
				if err != nil || weight <= 0 {
					continue
				}
				stats.Grades = append(stats.Grades, grade)
				stats.Ponderations = append(stats.Ponderations, weight)
				stats.CompWeights = append(stats.CompWeights, compWeight)
			}
		}

		if compWeight == 0 {
			continue
		}
		var gradeSum, weightSum float64
		numAssignments := 0
		for _, assignment := range comp.Assignments {
			grade, usable := NormalizeGrade(assignment.Result)
			if !usable {
				continue
			}
			weight, err := parseDecimal(assignment.Pond)
			if err != nil || weight <= 0 {
				continue
			}
			gradeSum += grade * weight
			weightSum += weight
			numAssignments++
		}

		compAvg := models.CompetencyAverage{NumAssignments: numAssignments}
		if weightSum > 0 {
			avg := gradeSum / weightSum
			compAvg.Average = &avg
			totalWeightedGrade += avg * compWeight / 100
			totalCompetencyWeight += compWeight / 100
		}
		stats.CompetencyAverages = append(stats.CompetencyAverages, compAvg)
	}

	stats.NumGrades = len(stats.Grades)
	stats.Consistency = 100
	if stats.NumGrades >= 2 {
		stats.Consistency = s.ConsistencyScore(stats.Grades)
		stats.StdDev = s.StdDev(stats.Grades)
	}

	if totalCompetencyWeight == 0 {
		return nil, stats
	}
	avg := totalWeightedGrade / totalCompetencyWeight
	return &avg, stats
}

// OverallStats merges one subject's per-term stats into a cross-term
// view with the grade-vs-index trend regression.
func (s *StatisticsService) OverallStats(perTerm map[string]models.SubjectTermStats) models.SubjectOverallStats {
	overall := models.SubjectOverallStats{}
	var consistencies []float64

	for _, term := range models.KnownTermKeys {
		stats, ok := perTerm[term]
		if !ok {
			continue
		}
		overall.Grades = append(overall.Grades, stats.Grades...)
		overall.Ponderations = append(overall.Ponderations, stats.Ponderations...)
		overall.CompWeights = append(overall.CompWeights, stats.CompWeights...)
		consistencies = append(consistencies, stats.Consistency)
		overall.NumGrades += stats.NumGrades
	}

	overall.StdDev = s.StdDev(overall.Grades)
	overall.Consistency = 100
	if len(consistencies) > 0 {
		var sum float64
		for _, c := range consistencies {
			sum += c
		}
		overall.Consistency = sum / float64(len(consistencies))
	}
	overall.Trend = s.LinearRegression(indexSeries(len(overall.Grades)), overall.Grades)
	return overall
}

// insightBucket accumulates the grade series feeding one set of insight
// regressions.
type insightBucket struct {
	grades       []float64
	ponderations []float64
	compWeights  []float64
	codes        []string
	codeSeen     map[string]bool
}

func newInsightBucket() *insightBucket {
	return &insightBucket{codeSeen: map[string]bool{}}
}

func (b *insightBucket) add(code string, stats models.SubjectTermStats) {
	b.grades = append(b.grades, stats.Grades...)
	b.ponderations = append(b.ponderations, stats.Ponderations...)
	b.compWeights = append(b.compWeights, stats.CompWeights...)
	if !b.codeSeen[code] {
		b.codeSeen[code] = true
		b.codes = append(b.codes, code)
	}
}

// InsightModels regresses every bucket with enough grades three ways:
// against the sequence index, the assignment weight and the competency
// weight. Buckets are the Global series, the subject groups, and each
// individual subject.
func (s *StatisticsService) InsightModels(
	subjectStats map[string]map[string]models.SubjectTermStats,
	overall map[string]models.SubjectOverallStats,
) []models.InsightModel {
	global := newInsightBucket()
	groups := make(map[string]*insightBucket, len(models.SubjectGroupNames))
	for _, name := range models.SubjectGroupNames {
		groups[name] = newInsightBucket()
	}

	for _, code := range sortedKeys(subjectStats) {
		group := models.SubjectGroupFor(code)
		for _, term := range models.KnownTermKeys {
			stats, ok := subjectStats[code][term]
			if !ok {
				continue
			}
			global.add(code, stats)
			if group != "" {
				groups[group].add(code, stats)
			}
		}
	}

	buckets := []struct {
		name   string
		bucket *insightBucket
	}{{"Global", global}}
	for _, name := range models.SubjectGroupNames {
		buckets = append(buckets, struct {
			name   string
			bucket *insightBucket
		}{name, groups[name]})
	}
	for _, code := range sortedKeys(overall) {
		stats := overall[code]
		if stats.NumGrades == 0 {
			continue
		}
		b := &insightBucket{
			grades:       stats.Grades,
			ponderations: stats.Ponderations,
			compWeights:  stats.CompWeights,
			codes:        []string{code},
		}
		buckets = append(buckets, struct {
			name   string
			bucket *insightBucket
		}{models.SubjectDisplayName(code, code), b})
	}

	var insights []models.InsightModel
	for _, entry := range buckets {
		b := entry.bucket
		if len(b.grades) < minInsightGrades {
			continue
		}
		insights = append(insights,
			models.InsightModel{
				Name:      entry.name + " (Tendance)",
				Type:      models.InsightTrend,
				Model:     s.LinearRegression(indexSeries(len(b.grades)), b.grades),
				Codes:     b.codes,
				NumGrades: len(b.grades),
			},
			models.InsightModel{
				Name:      entry.name + " (Focus)",
				Type:      models.InsightFocus,
				Model:     s.LinearRegression(b.ponderations, b.grades),
				Codes:     b.codes,
				NumGrades: len(b.grades),
			},
			models.InsightModel{
				Name:      entry.name + " (Priorité)",
				Type:      models.InsightPriority,
				Model:     s.LinearRegression(b.compWeights, b.grades),
				Codes:     b.codes,
				NumGrades: len(b.grades),
			},
		)
	}
	return insights
}

func competencyWeight(name string) float64 {
	match := compWeightPattern.FindStringSubmatch(name)
	if match == nil {
		return 0
	}
	weight, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return weight
}

// sortedKeys keeps map iteration deterministic for stable output and
// stable cache keys.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func indexSeries(n int) []float64 {
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	return xs
}
