package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name     string
		healthy  HealthFunc
		wantCode int
	}{
		{
			name:     "no_health_func",
			wantCode: http.StatusOK,
		},
		{
			name:     "healthy",
			healthy:  func() bool { return true },
			wantCode: http.StatusOK,
		},
		{
			name:     "unhealthy",
			healthy:  func() bool { return false },
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(0, tt.healthy, nil)
			r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/healthz", http.NoBody)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, r)

			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "Test counter"}).Inc()

	s := httptest.NewServer(NewServer(0, nil, reg).Handler())
	defer s.Close()

	resp, err := http.Get(s.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "test_total 1") {
		t.Errorf("metrics body = %s", body)
	}
}

func TestMetricsDisabled(t *testing.T) {
	s := NewServer(0, nil, nil)
	r := httptest.NewRequestWithContext(t.Context(), http.MethodGet, "/metrics", http.NoBody)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}
