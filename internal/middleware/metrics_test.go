package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	dto "github.com/prometheus/client_model/go"

	"devproxy-go/internal/metrics"
)

// requestCounter returns the labels of every devproxy_http_requests_total series.
func requestCounter(t *testing.T, m *metrics.Metrics) []map[string]string {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var series []map[string]string
	for _, f := range families {
		if f.GetName() != "devproxy_http_requests_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			series = append(series, labelsOf(metric))
		}
	}
	return series
}

func labelsOf(metric *dto.Metric) map[string]string {
	labels := make(map[string]string)
	for _, lp := range metric.GetLabel() {
		labels[lp.GetName()] = lp.GetValue()
	}
	return labels
}

func TestMetricsMiddleware_IncrementsCounter(t *testing.T) {
	m := metrics.New("", "/api")

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/users", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", http.NoBody))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	series := requestCounter(t, m)
	if len(series) != 1 {
		t.Fatalf("series = %v, want exactly one", series)
	}
	got := series[0]
	if got["path_prefix"] != "/api" || got["method"] != "GET" || got["status_code"] != "200" {
		t.Errorf("labels = %v, want path_prefix=/api method=GET status_code=200", got)
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	m := metrics.New("")

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "devproxy_http_request_duration_seconds" {
			for _, metric := range f.GetMetric() {
				if metric.GetHistogram().GetSampleCount() > 0 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("expected devproxy_http_request_duration_seconds with at least one sample")
	}
}

func TestMetricsMiddleware_HTTPErrorStatus(t *testing.T) {
	m := metrics.New("", "/api")

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.GET("/api/missing", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/missing", http.NoBody))

	for _, labels := range requestCounter(t, m) {
		if labels["path_prefix"] == "/api" {
			if labels["status_code"] != "404" {
				t.Errorf("status_code = %q, want %q", labels["status_code"], "404")
			}
			return
		}
	}
	t.Error("expected devproxy_http_requests_total with path_prefix=/api")
}

func TestMetricsMiddleware_UnknownMethodNormalized(t *testing.T) {
	m := metrics.New("", "/api")

	e := echo.New()
	e.Use(MetricsMiddleware(m))
	e.Any("/api/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("XYZZY", "/api/test", http.NoBody))

	for _, labels := range requestCounter(t, m) {
		if labels["path_prefix"] == "/api" {
			if labels["method"] != "other" {
				t.Errorf("method = %q, want %q", labels["method"], "other")
			}
			return
		}
	}
	t.Error("expected devproxy_http_requests_total with path_prefix=/api and method=other")
}

func TestMetricsMiddleware_FrontendNotFound(t *testing.T) {
	m := metrics.New("", "/api")

	e := echo.New()
	e.Use(MetricsMiddleware(m))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nonexistent", http.NoBody))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	for _, labels := range requestCounter(t, m) {
		if labels["path_prefix"] == "frontend" && labels["method"] == "GET" {
			if labels["status_code"] != "404" {
				t.Errorf("status_code = %q, want %q", labels["status_code"], "404")
			}
			return
		}
	}
	t.Error("expected devproxy_http_requests_total with path_prefix=frontend, method=GET, status_code=404")
}
