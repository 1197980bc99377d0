package models

// GradeScale maps portal letter grades to percentages. There is no F entry:
// the portal never awards one, so a bare "F" falls through to free-text.
var GradeScale = map[string]float64{
	"A+": 100, "A": 95, "A-": 90,
	"B+": 85, "B": 80, "B-": 75,
	"C+": 70, "C": 65, "C-": 60,
	"D+": 55, "D": 50, "E": 45,
}

// DefaultUnits holds the per-level unit coefficients used when combining
// subject averages into a term average.
var DefaultUnits = map[string]map[string]float64{
	NiveauSec4: {
		"ART": 2, "MUS": 2, "DRM": 2, "FRA": 6, "ELA": 4, "EESL": 6, "ESL": 4,
		"MAT": 6, "CST": 6, "ST": 4, "STE": 4, "HQC": 4, "CCQ": 2, "EPS": 2,
		"ENT": 2, "INF": 2, "PSY": 2, "SN": 6,
	},
	NiveauSec5: {
		"ART": 2, "MUS": 2, "DRM": 2, "CAT": 4, "FRA": 6, "ELA": 6, "EESL": 6,
		"ESL": 4, "MAT": 6, "CST": 4, "MED": 4, "PSY": 4, "ENT": 4, "FIN": 4,
		"CHI": 4, "PHY": 4, "MON": 2, "HQC": 4, "CCQ": 2, "EPS": 2, "SN": 6,
	},
}

// SubjectNames maps code prefixes to display names.
var SubjectNames = map[string]string{
	"ART": "Arts Plastiques", "MUS": "Musique", "DRM": "Art Dramatique",
	"CAT": "Conception et Application Technologique", "FRA": "Français",
	"ELA": "English Language Arts", "EESL": "Anglais enrichi",
	"ESL": "Anglais langue seconde", "SN": "Math SN", "CST": "Math CST",
	"ST": "Science et Technologie", "STE": "Science et Tech. Env.",
	"HQC": "Histoire", "CCQ": "Culture et Citoyenneté",
	"EPS": "Éducation Physique", "CHI": "Chimie", "PHY": "Physique",
	"MON": "Monde Contemporain", "MED": "Média", "ENT": "Entrepreneuriat",
	"INF": "Informatique", "PSY": "Psychologie", "FIN": "Éducation Financière",
}

// SubjectGroups partitions code prefixes into the insight-model taxonomy.
var SubjectGroups = map[string][]string{
	"STEM":              {"MAT", "CST", "SN", "ST", "STE", "CHI", "PHY", "CAT", "INF", "FIN"},
	"Langues":           {"FRA", "ELA", "EESL", "ESL"},
	"Sciences Humaines": {"HQC", "CCQ", "MON", "PSY", "ENT", "MED"},
	"Arts & Autre":      {"ART", "MUS", "DRM", "EPS"},
}

// SubjectGroupNames fixes the iteration order over SubjectGroups.
var SubjectGroupNames = []string{"STEM", "Langues", "Sciences Humaines", "Arts & Autre"}

// SubjectGroupFor returns the group a code prefix belongs to, or "".
func SubjectGroupFor(codePrefix string) string {
	for _, name := range SubjectGroupNames {
		for _, code := range SubjectGroups[name] {
			if code == codePrefix {
				return name
			}
		}
	}
	return ""
}

// TermWeights are the fixed contributions of each term to the final grade.
var TermWeights = map[string]float64{
	TermEtape1: 0.20,
	TermEtape2: 0.20,
	TermEtape3: 0.60,
}

// SubjectDisplayName resolves a code prefix to its catalog name, falling
// back to the name seen in the pasted text.
func SubjectDisplayName(codePrefix, fallback string) string {
	if name, ok := SubjectNames[codePrefix]; ok {
		return name
	}
	return fallback
}
