package service

import (
	"regexp"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

var compWeightPattern = regexp.MustCompile(`\((\d+)%\)`)

// UnitResolver maps a subject code prefix to its weighting unit when
// combining subject averages into a term average.
type UnitResolver interface {
	// UnitFor reports the unit for a code prefix. ok is false when the
	// prefix has no entry; callers decide the fallback.
	UnitFor(prefix string) (float64, bool)
	// TotalUnits is the sum of all known units. Zero in unitless mode,
	// which has no enumerable table.
	TotalUnits() float64
}

// unitlessResolver weights every subject equally.
type unitlessResolver struct{}

func (unitlessResolver) UnitFor(string) (float64, bool) { return 1, true }
func (unitlessResolver) TotalUnits() float64            { return 0 }

type tableResolver struct {
	table map[string]float64
}

func (r tableResolver) UnitFor(prefix string) (float64, bool) {
	unit, ok := r.table[prefix]
	return unit, ok
}

func (r tableResolver) TotalUnits() float64 {
	var total float64
	for _, unit := range r.table {
		total += unit
	}
	return total
}

// AverageService computes the weighted average cascade: assignments
// into competencies, competencies into subjects, subjects into terms,
// terms into the year grade.
type AverageService struct {
	log *zap.Logger
}

func NewAverageService(log *zap.Logger) *AverageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AverageService{log: log}
}

// UnitsFor selects the unit table implied by the profile settings.
func (s *AverageService) UnitsFor(settings models.Settings) UnitResolver {
	switch settings.UnitesMode {
	case models.UnitsModeUnitless:
		return unitlessResolver{}
	case models.UnitsModeCustom:
		table := settings.CustomUnites
		if table == nil {
			table = map[string]float64{}
		}
		return tableResolver{table: table}
	default:
		if table, ok := models.DefaultUnits[settings.Niveau]; ok {
			return tableResolver{table: table}
		}
		return tableResolver{table: map[string]float64{}}
	}
}

// SubjectAverage is the competency-weight-weighted mean of competency
// averages. Competencies without a (NN%) weight in their name, and
// competencies with no usable assignment, stay out of the denominator.
// Returns nil when nothing contributed.
func (s *AverageService) SubjectAverage(subject models.Subject) *float64 {
	var weightedSum, weightSum float64

	for _, comp := range subject.Competencies {
		match := compWeightPattern.FindStringSubmatch(comp.Name)
		if match == nil {
			continue
		}
		compWeight, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		var gradeSum, assignmentWeightSum float64
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
			assignmentWeightSum += weight
		}

		if assignmentWeightSum > 0 {
			weightedSum += gradeSum / assignmentWeightSum * compWeight
			weightSum += compWeight
		}
	}

	if weightSum == 0 {
		return nil
	}
	avg := weightedSum / weightSum
	return &avg
}

// ComputeAverages derives per-subject, per-term and global averages for
// every term held by the profile. Term averages require a niveau; the
// global average renormalizes the 20/20/60 term weights over the terms
// actually known.
func (s *AverageService) ComputeAverages(profile *models.Profile) *models.AveragesResult {
	units := s.UnitsFor(profile.Settings)
	niveau := profile.Settings.Niveau

	result := &models.AveragesResult{
		SubjectAverages: make(map[string]map[string]models.SubjectAverage),
		TermAverages:    make(map[string]*float64),
	}

	for _, term := range models.AllTermKeys {
		subjects := profile.Term(term)
		if subjects == nil {
			result.TermAverages[term] = nil
			continue
		}

		var termWeightedSum, termUnitSum float64
		perSubject := make(map[string]models.SubjectAverage)

		for _, subject := range subjects {
			average := s.SubjectAverage(subject)
			prefix := subject.CodePrefix()
			perSubject[prefix] = models.SubjectAverage{
				Name:    models.SubjectDisplayName(prefix, subject.Name),
				Average: average,
			}

			if average != nil && niveau != "" {
				unit, ok := units.UnitFor(prefix)
				if !ok || unit == 0 {
					unit = 2
				}
				termWeightedSum += *average * unit
				termUnitSum += unit
			}
		}

		result.SubjectAverages[term] = perSubject
		if termUnitSum > 0 {
			avg := termWeightedSum / termUnitSum
			result.TermAverages[term] = &avg
		} else {
			result.TermAverages[term] = nil
		}
	}

	var globalSum, totalWeight float64
	for _, term := range models.AllTermKeys {
		if avg := result.TermAverages[term]; avg != nil {
			globalSum += *avg * models.TermWeights[term]
			totalWeight += models.TermWeights[term]
		}
	}
	if totalWeight > 0 {
		global := globalSum / totalWeight
		result.GlobalAverage = &global
	}

	return result
}
