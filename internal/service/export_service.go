package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/dto"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/export"
	"github.com/noah-isme/mbs-portal-api/pkg/storage"
)

// Supported report formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type reportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type downloadSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

type reportProfileStore interface {
	Get(ctx context.Context, profileID string) (*models.Profile, error)
}

type reportAnalyzer interface {
	Analyze(ctx context.Context, profile *models.Profile) (*models.AnalysisResult, bool, error)
}

// ExportService produces downloadable report cards from a profile's
// analysis and serves them back through signed tokens.
type ExportService struct {
	store     reportProfileStore
	analyzer  reportAnalyzer
	storage   reportStorage
	signer    downloadSigner
	csv       csvRenderer
	pdf       pdfRenderer
	apiPrefix string
	logger    *zap.Logger
}

// NewExportService wires the export pipeline. apiPrefix is prepended to the
// generated download path (e.g. "/api/v1").
func NewExportService(
	store reportProfileStore,
	analyzer reportAnalyzer,
	files reportStorage,
	signer downloadSigner,
	csv csvRenderer,
	pdf pdfRenderer,
	apiPrefix string,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		store:     store,
		analyzer:  analyzer,
		storage:   files,
		signer:    signer,
		csv:       csv,
		pdf:       pdf,
		apiPrefix: strings.TrimSuffix(apiPrefix, "/"),
		logger:    logger,
	}
}

// Generate renders the profile's report card in the requested format, stores
// the file and returns a signed download descriptor.
func (s *ExportService) Generate(ctx context.Context, profileID, format string) (*dto.ReportResponse, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}

	profile, err := s.store.Get(ctx, profileID)
	if err != nil {
		return nil, err
	}
	analysis, _, err := s.analyzer.Analyze(ctx, profile)
	if err != nil {
		return nil, err
	}

	dataset := buildReportDataset(profile, analysis)
	var payload []byte
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(dataset)
	case FormatPDF:
		payload, err = s.pdf.Render(dataset, reportTitle(profile))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_RENDER_FAILED", 500, "failed to render report")
	}

	reportID := uuid.NewString()
	filename := buildReportFilename(profile, reportID, format)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_WRITE_FAILED", 500, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, "EXPORT_SIGN_FAILED", 500, "failed to sign download link")
	}

	s.logger.Info("report generated",
		zap.String("profile_id", profileID),
		zap.String("report_id", reportID),
		zap.String("format", format),
	)

	return &dto.ReportResponse{
		ReportID:    reportID,
		Format:      format,
		DownloadURL: s.apiPrefix + "/export/" + token,
		ExpiresAt:   expiresAt,
	}, nil
}

// Open validates the signed token and returns the stored file along with
// its download filename.
func (s *ExportService) Open(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", appErrors.ErrExportExpired
		}
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report no longer available")
	}
	return file, relPath, nil
}

// Cleanup deletes stored reports older than ttl and returns how many were
// removed. Meant to run on a ticker alongside the server.
func (s *ExportService) Cleanup(ttl time.Duration) int {
	removed, err := s.storage.CleanupOlderThan(ttl)
	if err != nil {
		s.logger.Warn("report cleanup failed", zap.Error(err))
		return 0
	}
	if len(removed) > 0 {
		s.logger.Info("expired reports removed", zap.Int("count", len(removed)))
	}
	return len(removed)
}

func reportTitle(profile *models.Profile) string {
	if profile.Nom != "" {
		return "Bulletin - " + profile.Nom
	}
	return "Bulletin"
}

func buildReportFilename(profile *models.Profile, reportID, format string) string {
	name := strings.ToLower(strings.TrimSpace(profile.Nom))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, name)
	if name == "" {
		name = "bulletin"
	}
	return fmt.Sprintf("%s-%s.%s", name, reportID[:8], format)
}

var reportHeaders = []string{"Étape", "Code", "Matière", "Moyenne", "Écart-type", "Constance", "Notes"}

// buildReportDataset flattens the analysis into one table: a row per subject
// per known term, then the projected unknown term where a point estimate
// exists.
func buildReportDataset(profile *models.Profile, analysis *models.AnalysisResult) export.Dataset {
	dataset := export.Dataset{Headers: reportHeaders}

	dataset.Summary = append(dataset.Summary,
		export.SummaryLine{Label: "Élève", Value: profile.Nom},
		export.SummaryLine{Label: "Moyenne globale", Value: formatOptional(analysis.GlobalAverage)},
		export.SummaryLine{Label: "Risque de surcharge", Value: formatFloat(analysis.BurnoutRisk) + " %"},
	)
	if analysis.Projections.Global.P5 != nil && analysis.Projections.Global.P95 != nil {
		band := fmt.Sprintf("%s - %s", formatOptional(analysis.Projections.Global.P5), formatOptional(analysis.Projections.Global.P95))
		dataset.Summary = append(dataset.Summary, export.SummaryLine{Label: "Projection finale (P5-P95)", Value: band})
	}

	for _, termKey := range models.KnownTermKeys {
		averages, ok := analysis.SubjectAverages[termKey]
		if !ok {
			continue
		}
		// SubjectStats is keyed prefix first, then term.
		for _, prefix := range sortedKeys(averages) {
			termStats := analysis.SubjectStats[prefix][termKey]
			row := map[string]string{
				"Étape":      termKey,
				"Code":       prefix,
				"Matière":    averages[prefix].Name,
				"Moyenne":    formatOptional(averages[prefix].Average),
				"Écart-type": formatFloat(termStats.StdDev),
				"Constance":  formatFloat(termStats.Consistency),
				"Notes":      strconv.Itoa(termStats.NumGrades),
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if avg, ok := analysis.TermAverages[termKey]; ok && avg != nil {
			dataset.Rows = append(dataset.Rows, termTotalRow(termKey, *avg))
		}
	}

	projected := make([]string, 0, len(analysis.Projections.Subjects))
	for prefix, projection := range analysis.Projections.Subjects {
		if projection.FinalGrade != nil {
			projected = append(projected, prefix)
		}
	}
	sort.Strings(projected)
	for _, prefix := range projected {
		projection := analysis.Projections.Subjects[prefix]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Étape":      models.TermEtape3 + " (projeté)",
			"Code":       prefix,
			"Matière":    models.SubjectDisplayName(prefix, prefix),
			"Moyenne":    formatFloat(projection.AdjustedMean),
			"Écart-type": formatFloat(projection.Sigma),
			"Constance":  formatFloat(projection.Consistency),
			"Notes":      "0",
		})
	}

	return dataset
}

func termTotalRow(termKey string, avg float64) map[string]string {
	return map[string]string{
		"Étape":   termKey,
		"Code":    "",
		"Matière": "Moyenne de l'étape",
		"Moyenne": formatFloat(avg),
	}
}

func formatOptional(value *float64) string {
	if value == nil {
		return "N/D"
	}
	return formatFloat(*value)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64)
}
