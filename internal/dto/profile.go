package dto

import (
	"time"

	"github.com/noah-isme/mbs-portal-api/internal/models"
)

// ImportRequest captures POST /profiles/import payload. ProfileID is
// optional: a fresh opaque identifier is minted when absent.
type ImportRequest struct {
	ProfileID string `json:"profileId"`
	Text      string `json:"text" validate:"required"`
}

// ImportResponse summarizes one successful portal text import.
type ImportResponse struct {
	ProfileID    string   `json:"profileId"`
	Nom          string   `json:"nom"`
	TermKey      string   `json:"termKey"`
	SubjectCount int      `json:"subjectCount"`
	TermAverage  *float64 `json:"termAverage"`
}

// SettingsRequest captures PUT /profiles/:id/settings payload.
type SettingsRequest struct {
	Niveau       string             `json:"niveau" validate:"omitempty,oneof=sec4 sec5"`
	UnitesMode   string             `json:"unitesMode" validate:"omitempty,oneof=defaut sans perso"`
	CustomUnites map[string]float64 `json:"customUnites" validate:"omitempty,dive,gt=0"`
	AbsenceRate  *float64           `json:"absenceRate" validate:"omitempty,gte=0,lte=100"`
}

// PonderationUpdate overrides one assignment's weight in place.
type PonderationUpdate struct {
	TermKey         string `json:"termKey" validate:"required,oneof=etape1 etape2 etape3"`
	SubjectIndex    int    `json:"subjectIndex" validate:"gte=0"`
	CompetencyIndex int    `json:"competencyIndex" validate:"gte=0"`
	AssignmentIndex int    `json:"assignmentIndex" validate:"gte=0"`
	Pond            string `json:"pond" validate:"required"`
}

// PonderationsRequest captures PUT /profiles/:id/ponderations payload.
type PonderationsRequest struct {
	Updates []PonderationUpdate `json:"updates" validate:"required,min=1,dive"`
}

// ProfileResponse is the full persisted profile.
type ProfileResponse struct {
	Profile *models.Profile `json:"profile"`
}

// ReportResponse is returned after a report file has been rendered.
type ReportResponse struct {
	ReportID    string    `json:"reportId"`
	Format      string    `json:"format"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
