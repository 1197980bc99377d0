package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

var (
	percentPattern  = regexp.MustCompile(`(\d+[,.]?\d*)\s*%`)
	fractionPattern = regexp.MustCompile(`(\d+[,.]?\d*)\s*/\s*(\d+[,.]?\d*)`)
)

// NormalizeGrade converts a raw portal result string into a percentage.
// The boolean is false when the token is unusable or explicitly excluded
// from averaging (exemptions, late submissions, empty cells).
//
// Resolution order, first match wins: letter grade, special token,
// percentage, fraction, bare number in [0,110].
func NormalizeGrade(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	if value, ok := models.GradeScale[trimmed]; ok {
		return value, true
	}

	lower := strings.ToLower(trimmed)
	switch lower {
	case "absent", "abs", "0", "0%":
		return 0, true
	case "exempt", "n/a", "retard", "remis", "":
		return 0, false
	}

	if m := percentPattern.FindStringSubmatch(lower); m != nil {
		if value, err := parseDecimal(m[1]); err == nil {
			return value, true
		}
	}

	if m := fractionPattern.FindStringSubmatch(lower); m != nil {
		score, err1 := parseDecimal(m[1])
		max, err2 := parseDecimal(m[2])
		if err1 == nil && err2 == nil {
			if max <= 0 {
				return 0, false
			}
			return score / max * 100, true
		}
	}

	if value, err := parseDecimal(lower); err == nil && value >= 0 && value <= 110 {
		return value, true
	}

	return 0, false
}

// parseDecimal accepts both comma and dot decimal separators.
func parseDecimal(raw string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
}
