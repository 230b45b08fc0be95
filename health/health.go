// Package health is the Health & Metrics Surface: a small chi router
// exposing liveness, Prometheus metrics, and a JSON mirror of the same
// counters for dashboards that cannot scrape the text exposition format.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Metrics holds the private Prometheus registry and the counter/gauge
// vectors the rest of the worker reports into. A private registry (not
// prometheus.DefaultRegisterer) keeps the surface testable in isolation.
type Metrics struct {
	registry *prometheus.Registry

	DeploymentsTotal *prometheus.CounterVec
	JobsProcessed    *prometheus.CounterVec
	ActiveJobs       *prometheus.GaugeVec
}

// NewMetrics constructs and registers the worker's metric vectors against
// a fresh private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		DeploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_deployments_total",
			Help: "Total deployments processed, by final status and service type.",
		}, []string{"status", "service_type"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_jobs_processed_total",
			Help: "Total queue jobs processed, by job name and outcome.",
		}, []string{"job_name", "status"}),
		ActiveJobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "worker_active_jobs",
			Help: "Currently in-flight jobs, by job name.",
		}, []string{"job_name"}),
	}

	registry.MustRegister(m.DeploymentsTotal, m.JobsProcessed, m.ActiveJobs)
	return m
}

// Checker reports the liveness data surfaced at /health.
type Checker struct {
	Redis     *redis.Client
	StartedAt time.Time
}

type queueStatus struct {
	Name      string `json:"name"`
	Waiting   int64  `json:"waiting"`
	Active    int64  `json:"active"`
	Completed int64  `json:"completed"`
	Failed    int64  `json:"failed"`
}

type healthResponse struct {
	Status string  `json:"status"`
	Uptime float64 `json:"uptime"`
	Redis  struct {
		Connected bool   `json:"connected"`
		Status    string `json:"status"`
	} `json:"redis"`
	Queue     queueStatus `json:"queue"`
	Timestamp time.Time   `json:"timestamp"`
}

func (c *Checker) check(ctx context.Context, queueKey string) healthResponse {
	resp := healthResponse{
		Uptime:    time.Since(c.StartedAt).Seconds(),
		Timestamp: time.Now().UTC(),
		Queue:     queueStatus{Name: queueKey},
	}

	if err := c.Redis.Ping(ctx).Err(); err != nil {
		resp.Redis.Connected = false
		resp.Redis.Status = err.Error()
		resp.Status = "unhealthy"
		return resp
	}
	resp.Redis.Connected = true
	resp.Redis.Status = "ok"

	waiting, err := c.Redis.LLen(ctx, queueKey).Result()
	if err == nil {
		resp.Queue.Waiting = waiting
	}

	resp.Status = "healthy"
	return resp
}

// Router builds the chi router serving /health, /metrics, and
// /metrics/json.
func Router(checker *Checker, metrics *Metrics, queueKey string) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		resp := checker.check(req.Context(), queueKey)

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	r.Handle("/metrics", promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{}))

	r.Get("/metrics/json", func(w http.ResponseWriter, req *http.Request) {
		families, err := metrics.registry.Gather()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(families)
	})

	return r
}
