package service

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
)

var (
	namePattern    = regexp.MustCompile(`Photo\s*\n(.+)`)
	classPattern   = regexp.MustCompile(`Classe\s*\n\s*(\d)`)
	subjectPattern = regexp.MustCompile(`([A-Z]{3}\d{3}[A-Z]?) - (.+)`)
	pondPattern    = regexp.MustCompile(`^\d{1,3}$`)
	datePattern    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	resultPattern  = regexp.MustCompile(`^(\d{1,3},\d\s/\s\d{1,3}\s\(.+\)|[A-DF][+-]?)$`)
)

const (
	competencyMarker = "Compétence - "
	tableHeaderLine  = "Catégorie\tTravail\tPond."
)

// ParserService rebuilds a structured academic record from text pasted
// off the portal's results page. The layout has no delimiters beyond
// the patterns above, so classification is best effort: a line that
// matches nothing is treated as assignment description text.
type ParserService struct {
	log *zap.Logger
}

func NewParserService(log *zap.Logger) *ParserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ParserService{log: log}
}

// Parse extracts the student name, term and subject tree from raw text.
// Returns ErrParseFailure when the name or term anchors are missing;
// anything else degrades to a smaller (possibly empty) subject list.
func (s *ParserService) Parse(text string) (*models.ParseResult, error) {
	nameMatch := namePattern.FindStringSubmatch(text)
	classMatch := classPattern.FindStringSubmatch(text)
	if nameMatch == nil || classMatch == nil {
		s.log.Debug("portal text missing name or class anchor")
		return nil, appErrors.ErrParseFailure
	}

	nom := strings.TrimSpace(nameMatch[1])
	termDigit := strings.TrimSpace(classMatch[1])
	if nom == "" || termDigit == "" {
		return nil, appErrors.ErrParseFailure
	}

	result := &models.ParseResult{
		StudentName: nom,
		TermKey:     "etape" + termDigit,
		Subjects:    s.parseSubjects(text),
	}
	s.log.Debug("parsed portal text",
		zap.String("term", result.TermKey),
		zap.Int("subjects", len(result.Subjects)))
	return result, nil
}

func (s *ParserService) parseSubjects(text string) []models.Subject {
	headers := subjectPattern.FindAllStringSubmatchIndex(text, -1)
	subjects := make([]models.Subject, 0, len(headers))

	for i, header := range headers {
		bodyEnd := len(text)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		code := text[header[2]:header[3]]
		name := strings.TrimSpace(text[header[4]:header[5]])
		body := text[header[1]:bodyEnd]

		competencies := s.parseCompetencies(body)
		if len(competencies) > 0 {
			subjects = append(subjects, models.Subject{
				Code:         code,
				Name:         name,
				Competencies: competencies,
			})
		}
	}
	return subjects
}

func (s *ParserService) parseCompetencies(body string) []models.Competency {
	blocks := strings.Split(body, competencyMarker)
	if len(blocks) < 2 {
		return nil
	}

	competencies := make([]models.Competency, 0, len(blocks)-1)
	for _, block := range blocks[1:] {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		name := competencyMarker + strings.TrimSpace(lines[0])

		assignments := parseAssignments(lines[1:])
		if len(assignments) > 0 {
			competencies = append(competencies, models.Competency{
				Name:        name,
				Assignments: assignments,
			})
		}
	}
	return competencies
}

// assignmentAccumulator is the in-progress state of the line classifier.
// Free text accumulates in buffer until a result line, or a text line
// arriving after a weight or date, closes the assignment.
type assignmentAccumulator struct {
	buffer       []string
	pond         string
	assignedDate string
	dueDate      string
	result       string
}

func (a *assignmentAccumulator) finalize() (models.Assignment, bool) {
	if len(a.buffer) == 0 && a.pond == "" {
		return models.Assignment{}, false
	}

	var category, work string
	switch {
	case len(a.buffer) == 1:
		work = a.buffer[0]
	case len(a.buffer) > 1:
		category = a.buffer[0]
		work = strings.Join(a.buffer[1:], "<br>")
	}

	return models.Assignment{
		Category:     category,
		Work:         work,
		Pond:         a.pond,
		AssignedDate: a.assignedDate,
		DueDate:      a.dueDate,
		Result:       a.result,
	}, true
}

func parseAssignments(lines []string) []models.Assignment {
	if len(lines) == 0 {
		return nil
	}

	var assignments []models.Assignment
	acc := &assignmentAccumulator{}
	flush := func() {
		if assignment, ok := acc.finalize(); ok {
			assignments = append(assignments, assignment)
		}
		acc = &assignmentAccumulator{}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.Contains(trimmed, tableHeaderLine) {
			continue
		}

		switch {
		case resultPattern.MatchString(trimmed):
			acc.result = trimmed
			flush()
		case pondPattern.MatchString(trimmed):
			acc.pond = trimmed
		case datePattern.MatchString(trimmed):
			if acc.assignedDate == "" {
				// the portal appends "à HH:MM" to due times
				acc.assignedDate = strings.TrimSpace(strings.SplitN(trimmed, "à", 2)[0])
			}
			acc.dueDate = trimmed
		default:
			if acc.pond != "" || acc.assignedDate != "" {
				flush()
			}
			acc.buffer = append(acc.buffer, trimmed)
		}
	}
	flush()
	return assignments
}
