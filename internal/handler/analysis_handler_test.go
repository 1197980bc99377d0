package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mbs-portal-api/internal/middleware"
	"github.com/noah-isme/mbs-portal-api/internal/models"
	appErrors "github.com/noah-isme/mbs-portal-api/pkg/errors"
	"github.com/noah-isme/mbs-portal-api/pkg/response"
)

type analysisSourceMock struct {
	profile *models.Profile
	getErr  error
}

func (m *analysisSourceMock) Get(_ context.Context, _ string) (*models.Profile, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.profile, nil
}

type analysisServiceMock struct {
	result *models.AnalysisResult
	hit    bool
	err    error
}

func (m *analysisServiceMock) Analyze(_ context.Context, _ *models.Profile) (*models.AnalysisResult, bool, error) {
	if m.err != nil {
		return nil, false, m.err
	}
	return m.result, m.hit, nil
}

type metricsMock struct {
	snapshot models.SystemMetrics
}

func (m *metricsMock) Snapshot() models.SystemMetrics {
	return m.snapshot
}

func TestAnalysisHandlerAnalyze(t *testing.T) {
	gin.SetMode(gin.TestMode)
	avg := 85.4
	handler := NewAnalysisHandler(
		&analysisSourceMock{profile: &models.Profile{UserRandom: "p-1"}},
		&analysisServiceMock{result: &models.AnalysisResult{GlobalAverage: &avg}, hit: true},
		&metricsMock{},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/profiles/p-1/analysis", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "p-1"}}
	middleware.WithResponseMeta()(c)

	handler.Analyze(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 85.4, data["global_average"], 0.001)
}

func TestAnalysisHandlerAnalyzeProfileMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalysisHandler(
		&analysisSourceMock{getErr: appErrors.ErrNotFound},
		&analysisServiceMock{},
		&metricsMock{},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/profiles/missing/analysis", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Analyze(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAnalysisHandlerSystemMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAnalysisHandler(
		&analysisSourceMock{},
		&analysisServiceMock{},
		&metricsMock{snapshot: models.SystemMetrics{CacheHits: 3, CacheMisses: 1, CacheHitRatio: 0.75}},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/system/metrics", nil)
	c.Request = req

	handler.SystemMetrics(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	data, ok := envelope.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 0.75, data["cache_hit_ratio"], 0.001)
}
