package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisetech/rras/internal/domain"
	"github.com/wisetech/rras/internal/pipeline"
	"github.com/wisetech/rras/internal/store"
	"github.com/wisetech/rras/pkg/logger"
)

type fakePipeline struct {
	launchConfig *pipeline.RunConfig
	launchErr    error
	approveErr   error
	approvedID   int64
	approvedBy   string
}

func (f *fakePipeline) LaunchRun(_ context.Context, config pipeline.RunConfig) (*pipeline.RunResult, error) {
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	f.launchConfig = &config
	return &pipeline.RunResult{
		SnapshotID:      11,
		CorrelationID:   config.CorrelationID,
		CompletedStages: []string{"CREATE_SNAPSHOT"},
		Duration:        2 * time.Second,
	}, nil
}

func (f *fakePipeline) Approve(_ context.Context, snapshotID int64, approvedBy string) error {
	if f.approveErr != nil {
		return f.approveErr
	}
	f.approvedID = snapshotID
	f.approvedBy = approvedBy
	return nil
}

type fakeRunReader struct {
	run *domain.SnapshotRun
	err error
}

func (f *fakeRunReader) GetByID(context.Context, int64) (*domain.SnapshotRun, error) {
	return f.run, f.err
}

func (f *fakeRunReader) List(context.Context, int) ([]domain.SnapshotRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.run == nil {
		return nil, nil
	}
	return []domain.SnapshotRun{*f.run}, nil
}

type fakeMetricReader struct {
	metrics []domain.RegulatoryMetric
}

func (f *fakeMetricReader) ListMetrics(context.Context, int64) ([]domain.RegulatoryMetric, error) {
	return f.metrics, nil
}

type fakeAuditReader struct {
	entries []domain.CalculationAudit
}

func (f *fakeAuditReader) ListAudit(context.Context, int64) ([]domain.CalculationAudit, error) {
	return f.entries, nil
}

func newTestRouter(h *RunHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/runs", h.Launch).Methods("POST")
	r.HandleFunc("/api/v1/runs", h.List).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id:[0-9]+}", h.Get).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id:[0-9]+}/metrics", h.Metrics).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id:[0-9]+}/audit", h.Audit).Methods("GET")
	r.HandleFunc("/api/v1/runs/{id:[0-9]+}/approve", h.Approve).Methods("POST")
	return r
}

func calculatedRun() *domain.SnapshotRun {
	return &domain.SnapshotRun{
		ID:            11,
		ReportingDate: time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Frequency:     domain.FrequencyPeriodic,
		Status:        domain.StatusCalculated,
		InitiatedBy:   "api",
	}
}

func TestRunHandler_Launch(t *testing.T) {
	pl := &fakePipeline{}
	h := NewRunHandler(pl, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	body := `{"reporting_date":"2026-06-30","frequency":"PERIODIC","initiated_by":"risk.analyst"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp LaunchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.SnapshotID)
	assert.NotEmpty(t, resp.CorrelationID)

	require.NotNil(t, pl.launchConfig)
	assert.Equal(t, domain.FrequencyPeriodic, pl.launchConfig.Frequency)
	assert.Equal(t, "risk.analyst", pl.launchConfig.InitiatedBy)
	assert.True(t, pl.launchConfig.ReportingDate.Equal(time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)))
}

func TestRunHandler_Launch_BadRequests(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())
	router := newTestRouter(h)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"bad date", `{"reporting_date":"30-06-2026","frequency":"PERIODIC"}`},
		{"bad frequency", `{"reporting_date":"2026-06-30","frequency":"WEEKLY"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunHandler_Launch_Conflict(t *testing.T) {
	pl := &fakePipeline{launchErr: pipeline.ErrRunInFlight}
	h := NewRunHandler(pl, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	body := `{"reporting_date":"2026-06-30","frequency":"PERIODIC"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRunHandler_Get(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{run: calculatedRun()}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/11", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var run domain.SnapshotRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, int64(11), run.ID)
	assert.Equal(t, domain.StatusCalculated, run.Status)
}

func TestRunHandler_Get_NotFound(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{err: store.ErrRunNotFound}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/99", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunHandler_Metrics(t *testing.T) {
	metrics := &fakeMetricReader{metrics: []domain.RegulatoryMetric{
		{SnapshotID: 11, Code: domain.MetricCAR, Value: decimal.RequireFromString("16.25"), Unit: domain.UnitPercentage},
		{SnapshotID: 11, Code: domain.MetricLCR, Value: decimal.RequireFromString("120"), Unit: domain.UnitPercentage},
	}}
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{run: calculatedRun()}, metrics, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/11/metrics", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SnapshotID int64                     `json:"snapshot_id"`
		Metrics    []domain.RegulatoryMetric `json:"metrics"`
		Count      int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.SnapshotID)
	assert.Equal(t, 2, resp.Count)
}

func TestRunHandler_Audit(t *testing.T) {
	audits := &fakeAuditReader{entries: []domain.CalculationAudit{
		{ID: 1, SnapshotID: 11, Stage: "COPY_LOANS", InputData: []byte(`{}`), OutputData: []byte(`{"rows_copied":2}`)},
		{ID: 2, SnapshotID: 11, Stage: "RWA_CALCULATION", InputData: []byte(`{}`), OutputData: []byte(`{}`)},
	}}
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{run: calculatedRun()}, &fakeMetricReader{}, audits, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/11/audit", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SnapshotID int64                     `json:"snapshot_id"`
		Entries    []domain.CalculationAudit `json:"entries"`
		Count      int                       `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, "COPY_LOANS", resp.Entries[0].Stage)
	assert.JSONEq(t, `{"rows_copied":2}`, string(resp.Entries[0].OutputData))
}

func TestRunHandler_Audit_NotFound(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{err: store.ErrRunNotFound}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/99/audit", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunHandler_Approve(t *testing.T) {
	pl := &fakePipeline{}
	h := NewRunHandler(pl, &fakeRunReader{run: calculatedRun()}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	body := `{"approved_by":"chief.risk.officer"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/11/approve", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(11), pl.approvedID)
	assert.Equal(t, "chief.risk.officer", pl.approvedBy)
}

func TestRunHandler_Approve_Conflicts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not awaiting approval", store.ErrStaleStatus, http.StatusConflict},
		{"unknown run", store.ErrRunNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pl := &fakePipeline{approveErr: tt.err}
			h := NewRunHandler(pl, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

			body := `{"approved_by":"chief.risk.officer"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/11/approve", strings.NewReader(body))
			rec := httptest.NewRecorder()
			newTestRouter(h).ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRunHandler_Approve_RequiresApprover(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/11/approve", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHandler_List(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{run: calculatedRun()}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
}

func TestRunHandler_List_InvalidLimit(t *testing.T) {
	h := NewRunHandler(&fakePipeline{}, &fakeRunReader{}, &fakeMetricReader{}, &fakeAuditReader{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs?limit=0", nil)
	rec := httptest.NewRecorder()
	newTestRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
