package health

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestHealthRouteReturns503WhenRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	checker := &Checker{Redis: client}
	metrics := NewMetrics()

	router := Router(checker, metrics, "deployments")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestMetricsRouteServesPrometheusFormat(t *testing.T) {
	metrics := NewMetrics()
	checker := &Checker{Redis: redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})}

	router := Router(checker, metrics, "deployments")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
