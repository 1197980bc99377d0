package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeGrade(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  float64
		usable bool
	}{
		{name: "letter A plus", raw: "A+", want: 100, usable: true},
		{name: "letter A minus", raw: "A-", want: 90, usable: true},
		{name: "letter with spaces", raw: "  B+ ", want: 85, usable: true},
		{name: "letter E", raw: "E", want: 45, usable: true},
		{name: "absent counts as zero", raw: "Absent", want: 0, usable: true},
		{name: "abs shorthand", raw: "abs", want: 0, usable: true},
		{name: "zero percent", raw: "0%", want: 0, usable: true},
		{name: "exempt excluded", raw: "Exempt", usable: false},
		{name: "not applicable excluded", raw: "N/A", usable: false},
		{name: "late excluded", raw: "Retard", usable: false},
		{name: "handed in excluded", raw: "remis", usable: false},
		{name: "empty excluded", raw: "", usable: false},
		{name: "blank excluded", raw: "   ", usable: false},
		{name: "percentage", raw: "87%", want: 87, usable: true},
		{name: "percentage with decimals", raw: "87,5 %", want: 87.5, usable: true},
		{name: "fraction", raw: "14,5 / 20", want: 72.5, usable: true},
		{name: "fraction tight", raw: "18/20", want: 90, usable: true},
		{name: "fraction zero denominator", raw: "5/0", usable: false},
		{name: "bare number", raw: "92", want: 92, usable: true},
		{name: "bare number with comma", raw: "92,5", want: 92.5, usable: true},
		{name: "bare number above bonus ceiling", raw: "120", usable: false},
		{name: "bonus grade kept", raw: "105", want: 105, usable: true},
		{name: "garbage excluded", raw: "voir enseignant", usable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, usable := NormalizeGrade(tt.raw)
			assert.Equal(t, tt.usable, usable)
			if tt.usable {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}
