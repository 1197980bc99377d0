package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/export"
	"github.com/noah-isme/mbs-portal-api/pkg/storage"
)

type stubReportStore struct {
	profile *models.Profile
	err     error
}

func (s *stubReportStore) Get(_ context.Context, _ string) (*models.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

type stubAnalyzer struct {
	result *models.AnalysisResult
	err    error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ *models.Profile) (*models.AnalysisResult, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	return s.result, false, nil
}

func exportAnalysisFixture() *models.AnalysisResult {
	avg := 85.4
	term := 85.4
	p5, p95 := 82.0, 91.0
	final := 87.2
	return &models.AnalysisResult{
		SubjectAverages: map[string]map[string]models.SubjectAverage{
			models.TermEtape1: {
				"MAT": {Name: "MAT", Average: &avg},
			},
		},
		TermAverages:  map[string]*float64{models.TermEtape1: &term},
		GlobalAverage: &term,
		SubjectStats: map[string]map[string]models.SubjectTermStats{
			"MAT": {
				models.TermEtape1: {StdDev: 7.5, Consistency: 85, NumGrades: 4},
			},
		},
		BurnoutRisk: 32.5,
		Projections: models.Projections{
			Global: models.GlobalProjection{P5: &p5, P95: &p95},
			Subjects: map[string]models.SubjectProjection{
				"MAT": {AdjustedMean: 87.2, Sigma: 4.1, Consistency: 85, FinalGrade: &final},
			},
		},
	}
}

func newExportService(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	profiles := &stubReportStore{profile: &models.Profile{UserRandom: "abc", Nom: "Jean Tremblay"}}
	analyzer := &stubAnalyzer{result: exportAnalysisFixture()}
	return NewExportService(
		profiles,
		analyzer,
		store,
		signer,
		export.NewCSVExporter(),
		export.NewPDFExporter(),
		"/api/v1",
		zap.NewNop(),
	)
}

func TestExportService_GenerateCSV(t *testing.T) {
	svc := newExportService(t)

	resp, err := svc.Generate(context.Background(), "abc", "csv")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ReportID)
	assert.Equal(t, "csv", resp.Format)
	assert.True(t, strings.HasPrefix(resp.DownloadURL, "/api/v1/export/"))
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	token := strings.TrimPrefix(resp.DownloadURL, "/api/v1/export/")
	file, filename, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()

	assert.Contains(t, filename, "jean-tremblay")
	assert.True(t, strings.HasSuffix(filename, ".csv"))

	content, err := io.ReadAll(file)
	require.NoError(t, err)
	body := string(content)
	assert.Contains(t, body, "Jean Tremblay")
	assert.Contains(t, body, "Moyenne globale,85.4")
	assert.Contains(t, body, "etape1,MAT,MAT,85.4,7.5,85.0,4")
	assert.Contains(t, body, "etape3 (projeté)")
	assert.Contains(t, body, "Moyenne de l'étape")
}

func TestExportService_DatasetRowsFromAnalysis(t *testing.T) {
	analysis := newAnalysisService(t, false)
	profile := analysisProfileFixture()
	result, _, err := analysis.Analyze(context.Background(), profile)
	require.NoError(t, err)

	dataset := buildReportDataset(profile, result)

	matRows := 0
	for _, row := range dataset.Rows {
		if row["Code"] != "MAT" {
			continue
		}
		if row["Étape"] == models.TermEtape1 || row["Étape"] == models.TermEtape2 {
			matRows++
			assert.NotEmpty(t, row["Moyenne"])
			assert.NotEqual(t, "0", row["Notes"])
		}
	}
	assert.Equal(t, 2, matRows)
}

func TestExportService_GeneratePDF(t *testing.T) {
	svc := newExportService(t)

	resp, err := svc.Generate(context.Background(), "abc", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdf", resp.Format)

	token := strings.TrimPrefix(resp.DownloadURL, "/api/v1/export/")
	file, filename, err := svc.Open(token)
	require.NoError(t, err)
	defer file.Close()

	assert.True(t, strings.HasSuffix(filename, ".pdf"))
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportService_GenerateUnsupportedFormat(t *testing.T) {
	svc := newExportService(t)

	_, err := svc.Generate(context.Background(), "abc", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportService_GenerateProfileNotFound(t *testing.T) {
	svc := newExportService(t)
	svc.store = &stubReportStore{err: appErrors.ErrNotFound}

	_, err := svc.Generate(context.Background(), "missing", "csv")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestExportService_OpenInvalidToken(t *testing.T) {
	svc := newExportService(t)

	_, _, err := svc.Open("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportService_OpenExpiredToken(t *testing.T) {
	store, err := storage.NewFilesystemStore(t.TempDir())
	require.NoError(t, err)
	relPath, err := store.Save("old.csv", []byte("data"))
	require.NoError(t, err)

	signer := storage.NewSignedURLSigner("test-secret", time.Nanosecond)
	token, _, err := signer.Generate("report-1", relPath)
	require.NoError(t, err)

	svc := newExportService(t)
	svc.storage = store
	svc.signer = signer

	time.Sleep(5 * time.Millisecond)
	_, _, openErr := svc.Open(token)
	assert.ErrorIs(t, openErr, appErrors.ErrExportExpired)
}

func TestExportService_Cleanup(t *testing.T) {
	svc := newExportService(t)
	_, err := svc.Generate(context.Background(), "abc", "csv")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.Cleanup(time.Hour))
	assert.Equal(t, 1, svc.Cleanup(0))
}
