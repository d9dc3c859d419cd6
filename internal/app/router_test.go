package app

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/invoicedesk/invoicedesk/internal/invoices"
	"github.com/invoicedesk/invoicedesk/internal/observability"
	"github.com/invoicedesk/invoicedesk/jobs"
)

func testConfig() *Config {
	return &Config{
		AppEnv:             "test",
		StoreDriver:        StoreDriverMemory,
		CORSOrigins:        []string{"http://localhost:3000"},
		RateLimitPerMinute: 1000,
		InvoicePrefix:      "INV",
		InvoiceNumberWidth: 4,
		DefaultTaxRate:     "7.5",
		DefaultDueDays:     15,
		PageSizeDefault:    10,
		PageSizeMax:        100,
	}
}

func newTestRouter(t *testing.T) (http.Handler, *observability.Metrics) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig()
	metrics := observability.NewMetrics()
	svc := invoices.NewService(invoices.NewMemoryRepository(), logger, cfg.ServiceConfig(), invoices.WithRecorder(metrics))
	return NewRouter(RouterParams{
		Logger:         logger,
		Config:         cfg,
		InvoiceHandler: invoices.NewHandler(logger, svc, nil),
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        metrics,
	}), metrics
}

func TestRouterHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterMountsInvoicesUnderBothPrefixes(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, target := range []string{"/invoices/next-number", "/api/invoices/next-number"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rr.Code, target)
		assert.JSONEq(t, `{"nextNumber":"INV-0001"}`, rr.Body.String())
	}
}

func TestRouterCreateRecordsMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	body := `{"client":{"name":"Anna Lee"},"details":{"date":"2024-03-01","taxRate":10},"lineItems":[{"description":"Design","quantity":2,"rate":10}]}`

	req := httptest.NewRequest(http.MethodPost, "/api/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	metricsRR := httptest.NewRecorder()
	router.ServeHTTP(metricsRR, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsRR.Code)
	assert.Contains(t, metricsRR.Body.String(), "invoicedesk_invoices_created_total 1")
}

func TestRouterCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/invoices", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouterCORSPreflightAllowsIdempotencyKey(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/invoices", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type,idempotency-key")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
	allowed := strings.ToLower(rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Contains(t, allowed, "content-type")
	assert.Contains(t, allowed, "idempotency-key")
}

func TestRouterCORSExposesReplayHeader(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/invoices/next-number", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	exposed := rr.Header().Get("Access-Control-Expose-Headers")
	assert.Contains(t, exposed, "Location")
	assert.Contains(t, exposed, invoices.IdempotentReplayedHeader)
}

func TestWorkerRouterServesJobMetrics(t *testing.T) {
	metrics := observability.NewMetrics()
	metrics.JobProcessed(jobs.TaskInvoiceIssued, errors.New("smtp down"))
	router := NewWorkerRouter(metrics)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `invoicedesk_jobs_total{status="error",task="invoice:issued"} 1`)

	health := httptest.NewRecorder()
	router.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}

func TestRouterJobsHealthWithoutInspector(t *testing.T) {
	router, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0}`, rr.Body.String())
}

func TestRateLimitAnswersWithProblem(t *testing.T) {
	handler := RateLimit(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Contains(t, second.Body.String(), "rate_limited")
}
