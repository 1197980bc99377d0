package models

// SubjectAverage pairs a subject's display name with its computed average.
// A nil average means no competency produced a usable grade.
type SubjectAverage struct {
	Name    string   `json:"name"`
	Average *float64 `json:"average"`
}

// AveragesResult carries the weighted averages derived from a profile.
type AveragesResult struct {
	// SubjectAverages is keyed by term key, then by subject code prefix.
	SubjectAverages map[string]map[string]SubjectAverage `json:"subject_averages"`
	TermAverages    map[string]*float64                  `json:"term_averages"`
	GlobalAverage   *float64                             `json:"global_average"`
}

// Regression is an ordinary least squares fit.
type Regression struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
}

// CompetencyAverage is the weighted mean of one competency's assignments.
type CompetencyAverage struct {
	Average        *float64 `json:"average"`
	NumAssignments int      `json:"num_assignments"`
}

// SubjectTermStats captures one subject's grade statistics within one term.
type SubjectTermStats struct {
	Grades             []float64           `json:"grades"`
	Ponderations       []float64           `json:"ponderations"`
	CompWeights        []float64           `json:"comp_weights"`
	CompetencyAverages []CompetencyAverage `json:"competency_averages"`
	StdDev             float64             `json:"std_dev"`
	Consistency        float64             `json:"consistency"`
	NumGrades          int                 `json:"num_grades"`
}

// SubjectOverallStats aggregates a subject's grades across all known terms.
type SubjectOverallStats struct {
	Grades       []float64  `json:"grades"`
	Ponderations []float64  `json:"ponderations"`
	CompWeights  []float64  `json:"comp_weights"`
	StdDev       float64    `json:"std_dev"`
	Consistency  float64    `json:"consistency"`
	NumGrades    int        `json:"num_grades"`
	Trend        Regression `json:"trend"`
}

// Insight model types: grade vs sequence index, vs assignment weight, and
// vs competency weight.
const (
	InsightTrend    = "insight-trend"
	InsightFocus    = "insight-focus"
	InsightPriority = "insight-priority"
)

// InsightModel is one regression over a bucket of grades (Global, a subject
// group, or a single subject).
type InsightModel struct {
	Name      string     `json:"name"`
	Type      string     `json:"type"`
	Model     Regression `json:"model"`
	Codes     []string   `json:"codes"`
	NumGrades int        `json:"num_grades"`
}

// SubjectProjection is the point-estimate projection for one subject's
// unknown term, with the diagnostics behind it.
type SubjectProjection struct {
	// GrowthRatio is projected mean over current mean.
	GrowthRatio float64 `json:"growth_ratio"`
	// Sigma is the effective per-subject deviation after floor and clamp.
	Sigma         float64  `json:"sigma"`
	Consistency   float64  `json:"consistency"`
	CurrentMean   float64  `json:"current_mean"`
	AdjustedMean  float64  `json:"adjusted_mean"`
	PredictionCap float64  `json:"prediction_cap"`
	Headroom      float64  `json:"headroom"`
	MismatchScore float64  `json:"mismatch_score"`
	FinalGrade    *float64 `json:"final_grade"`
}

// GlobalProjection is the percentile band of the simulated final average.
type GlobalProjection struct {
	P5   *float64 `json:"p5"`
	P25  *float64 `json:"p25"`
	P50  *float64 `json:"p50"`
	P75  *float64 `json:"p75"`
	P95  *float64 `json:"p95"`
	Mean *float64 `json:"mean"`
}

// Projections bundles the simulated global band with per-subject estimates.
type Projections struct {
	Global   GlobalProjection             `json:"global"`
	Subjects map[string]SubjectProjection `json:"subjects"`
}

// PathTarget answers "what average does the remaining term require to reach
// this global target, and how likely is it".
type PathTarget struct {
	Target      float64  `json:"target"`
	RequiredAvg *float64 `json:"required_avg"`
	Probability float64  `json:"probability"`
}

// AnalysisResult is the full derived analysis. It is never persisted; it is
// a pure function of the profile, memoized by the analysis cache.
type AnalysisResult struct {
	SubjectAverages     map[string]map[string]SubjectAverage   `json:"subject_averages"`
	TermAverages        map[string]*float64                    `json:"term_averages"`
	GlobalAverage       *float64                               `json:"global_average"`
	GlobalStdDev        float64                                `json:"global_std_dev"`
	GlobalConsistency   float64                                `json:"global_consistency"`
	InsightModels       []InsightModel                         `json:"insight_models"`
	SubjectStats        map[string]map[string]SubjectTermStats `json:"subject_stats"`
	SubjectOverallStats map[string]SubjectOverallStats         `json:"subject_overall_stats"`
	SubjectTrends       map[string]Regression                  `json:"subject_trends"`
	BurnoutRisk         float64                                `json:"burnout_risk"`
	Projections         Projections                            `json:"projections"`
	ProjectedTermMean   float64                                `json:"projected_term_mean"`
	ProjectedTermSigma  float64                                `json:"projected_term_sigma"`
	PathAnalysisEtape2  []PathTarget                           `json:"path_analysis_etape2"`
	PathAnalysisEtape3  []PathTarget                           `json:"path_analysis_etape3"`
	R2Threshold         float64                                `json:"r2_threshold"`
}

// SystemMetrics is a lightweight instrumentation snapshot for API consumers.
type SystemMetrics struct {
	CacheHitRatio     float64 `json:"cache_hit_ratio"`
	CacheHits         uint64  `json:"cache_hits"`
	CacheMisses       uint64  `json:"cache_misses"`
	RequestCount      uint64  `json:"request_count"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
	SimulationCount   uint64  `json:"simulation_count"`
	AvgSimulationMs   float64 `json:"avg_simulation_ms"`
	GoroutineCount    int     `json:"goroutine_count"`
}
