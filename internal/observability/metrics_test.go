package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexaforge/agency-office/internal/numbering"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/invoices/{id}")

	req := httptest.NewRequest(http.MethodGet, "/invoices/42", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `agency_http_requests_total{code="418",route="/invoices/{id}"} 1`)
	assert.Contains(t, body, `agency_http_request_duration_seconds_bucket{route="/invoices/{id}"`)
}

type downAllocator struct{}

func (downAllocator) NextSequence(context.Context, string) (int64, error) {
	return 0, errors.New("sequence store unavailable")
}

func TestDegradedAllocationsAreCounted(t *testing.T) {
	metrics := NewMetrics()
	gen := numbering.NewGenerator(downAllocator{}, slog.New(slog.NewTextHandler(io.Discard, nil)),
		numbering.WithDegradedRecorder(metrics))

	for i := 0; i < 2; i++ {
		n, err := gen.Next(context.Background(), numbering.KindInvoice)
		require.NoError(t, err)
		assert.True(t, n.Degraded)
		assert.True(t, strings.HasPrefix(n.Value, "INV-"))
	}

	assert.Contains(t, scrape(t, metrics), `agency_number_allocation_degraded_total{kind="invoice"} 2`)
}

func TestObserveRender(t *testing.T) {
	metrics := NewMetrics()
	metrics.ObserveRender("invoice", 120*time.Millisecond, nil)
	metrics.ObserveRender("invoice", 0, errors.New("bad payload"))

	body := scrape(t, metrics)
	assert.Contains(t, body, `agency_documents_rendered_total{kind="invoice",outcome="ok"} 1`)
	assert.Contains(t, body, `agency_documents_rendered_total{kind="invoice",outcome="error"} 1`)
	assert.Contains(t, body, `agency_document_render_duration_seconds_count{kind="invoice"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordDegradedAllocation("invoice")
	m.ObserveRender("invoice", time.Second, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	assert.NotNil(t, m.Middleware(next))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
