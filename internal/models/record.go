package models

import "time"

// Term keys used across the persisted profile and analysis pipeline.
const (
	TermEtape1 = "etape1"
	TermEtape2 = "etape2"
	TermEtape3 = "etape3"
)

// KnownTermKeys are the terms whose results have been published when the
// projection runs; etape3 is the simulated unknown.
var KnownTermKeys = []string{TermEtape1, TermEtape2}

// AllTermKeys lists every grading period of the school year in order.
var AllTermKeys = []string{TermEtape1, TermEtape2, TermEtape3}

// Assignment is one graded deliverable inside a competency. All fields stay
// strings: the portal text is kept verbatim and interpreted on use.
type Assignment struct {
	Category     string `json:"category"`
	Work         string `json:"work"`
	Pond         string `json:"pond"`
	AssignedDate string `json:"assignedDate"`
	DueDate      string `json:"dueDate"`
	Result       string `json:"result"`
}

// Competency is a named grading criterion. Its percentage weight is embedded
// in the name as "(NN%)"; a name without that pattern carries zero weight.
type Competency struct {
	Name        string       `json:"name"`
	Assignments []Assignment `json:"assignments"`
}

// Subject groups competencies under a course code (e.g. MAT101). The first
// three letters of the code are the canonical key for unit lookup and
// cross-term aggregation.
type Subject struct {
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Competencies []Competency `json:"competencies"`
}

// CodePrefix returns the three-letter canonical key of the subject code.
func (s Subject) CodePrefix() string {
	if len(s.Code) < 3 {
		return s.Code
	}
	return s.Code[:3]
}

// ParseResult is the outcome of one portal-text parse: one term's ordered
// subject list plus the identity anchors found in the text.
type ParseResult struct {
	StudentName string    `json:"nom"`
	TermKey     string    `json:"etapeKey"`
	Subjects    []Subject `json:"etapeData"`
}

// Unit table modes.
const (
	UnitsModeDefault  = "defaut"
	UnitsModeUnitless = "sans"
	UnitsModeCustom   = "perso"
)

// Supported academic levels.
const (
	NiveauSec4 = "sec4"
	NiveauSec5 = "sec5"
)

// Settings selects the unit table and tuning knobs for the analysis.
type Settings struct {
	Niveau       string             `json:"niveau,omitempty"`
	UnitesMode   string             `json:"unitesMode,omitempty"`
	CustomUnites map[string]float64 `json:"customUnites,omitempty"`
	// AbsenceRate is a percentage (default 5) feeding the burnout score.
	AbsenceRate *float64 `json:"absenceRate,omitempty"`
}

// TermHistory logs (timestamp, term average) pairs appended on every
// successful import of that term.
type TermHistory struct {
	Timestamps []int64   `json:"timestamps"`
	Moyennes   []float64 `json:"moyennes"`
}

// Profile is the durable aggregate: one student's imported terms, settings
// and import history. It is the single source of truth for the analysis.
type Profile struct {
	UserRandom string                 `json:"user_random"`
	Valid      bool                   `json:"valid"`
	Nom        string                 `json:"nom"`
	Settings   Settings               `json:"settings"`
	Etape1     []Subject              `json:"etape1,omitempty"`
	Etape2     []Subject              `json:"etape2,omitempty"`
	Etape3     []Subject              `json:"etape3,omitempty"`
	Historique map[string]TermHistory `json:"historique,omitempty"`
	CreatedAt  time.Time              `json:"created_at,omitempty"`
	UpdatedAt  time.Time              `json:"updated_at,omitempty"`
}

// Term returns the subject list stored for the given term key.
func (p *Profile) Term(key string) []Subject {
	switch key {
	case TermEtape1:
		return p.Etape1
	case TermEtape2:
		return p.Etape2
	case TermEtape3:
		return p.Etape3
	}
	return nil
}

// SetTerm overwrites the subject list for the given term key.
func (p *Profile) SetTerm(key string, subjects []Subject) {
	switch key {
	case TermEtape1:
		p.Etape1 = subjects
	case TermEtape2:
		p.Etape2 = subjects
	case TermEtape3:
		p.Etape3 = subjects
	}
}

// AppendHistory records a computed term average at the given instant.
func (p *Profile) AppendHistory(termKey string, at time.Time, average float64) {
	if p.Historique == nil {
		p.Historique = make(map[string]TermHistory)
	}
	entry := p.Historique[termKey]
	entry.Timestamps = append(entry.Timestamps, at.UnixMilli())
	entry.Moyennes = append(entry.Moyennes, average)
	p.Historique[termKey] = entry
}
