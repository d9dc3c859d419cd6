package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, metrics *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
	return rr.Body.String()
}

func TestMetricsHandlerExposesInvoiceCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.InvoiceCreated()
	metrics.InvoiceCreated()
	metrics.NumberingConflict()
	metrics.JobProcessed("invoice:issued", nil)
	metrics.JobProcessed("invoice:issued", errors.New("smtp down"))

	body := scrape(t, metrics)
	for _, want := range []string{
		"invoicedesk_invoices_created_total 2",
		"invoicedesk_invoice_number_conflicts_total 1",
		`invoicedesk_jobs_total{status="success",task="invoice:issued"} 1`,
		`invoicedesk_jobs_total{status="error",task="invoice:issued"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got: %s", want, body)
		}
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var metrics *Metrics
	metrics.InvoiceCreated()
	metrics.NumberingConflict()
	metrics.JobProcessed("invoice:issued", nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from nil metrics, got %d", rr.Code)
	}
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/invoices")

	req := httptest.NewRequest(http.MethodGet, "/invoices", nil)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	req = req.WithContext(ctx)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status %d, got %d", http.StatusTeapot, rr.Code)
	}

	metricsBody := scrape(t, metrics)
	if !strings.Contains(metricsBody, "http_requests_total{code=\"418\",route=\"/invoices\"} 1") {
		t.Fatalf("expected metrics to record request, got: %s", metricsBody)
	}
	if !strings.Contains(metricsBody, "http_request_duration_seconds_bucket{route=\"/invoices\"") {
		t.Fatalf("expected duration histogram to be present, got: %s", metricsBody)
	}
}
