package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestLedgerMetricsExportsCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewLedgerMetrics(reg)
	metrics.ObserveMutation("record", "ok")
	metrics.ObserveMutation("record", "ok")
	metrics.ObserveMutation("amend", "not_found")
	metrics.IncPersistFailure("transactions")
	metrics.IncReseed("")
	metrics.SetTransactionCount(7)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "gudang_ledger_mutations_total", map[string]string{"operation": "record", "outcome": "ok"}); err != nil {
		t.Fatalf("fetch mutations: %v", err)
	} else if got != 2 {
		t.Fatalf("expected record/ok=2, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "gudang_ledger_persist_failures_total", map[string]string{"key": "transactions"}); err != nil || got != 1 {
		t.Fatalf("expected persist failures=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "gudang_ledger_reseeds_total", map[string]string{"key": "unknown"}); err != nil || got != 1 {
		t.Fatalf("expected reseeds{key=unknown}=1, got %f (%v)", got, err)
	}
	gauge := findMetricFamily(mfs, "gudang_ledger_transactions")
	if gauge == nil || gauge.GetMetric()[0].GetGauge().GetValue() != 7 {
		t.Fatalf("expected transactions gauge=7, got %v", gauge)
	}
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var nilMetrics *LedgerMetrics
	nilMetrics.ObserveMutation("record", "ok")
	nilMetrics.SetTransactionCount(1)
	unregistered := NewLedgerMetrics(nil)
	unregistered.IncPersistFailure("transactions")
	unregistered.IncReseed("transactions")
}

func TestHTTPMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)
	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Get("/transactions/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"TXN001", "TXN002"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/"+id, nil))
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	labels := map[string]string{"method": "GET", "route": "/transactions/{id}", "status": "404"}
	if got, err := fetchCounterValue(mfs, "gudang_http_requests_total", labels); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 2 {
		t.Fatalf("expected requests=2, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok && value == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
