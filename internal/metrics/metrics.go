package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CacheHits counts submissions resolved from the verdict store, by type.
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satyamark_cache_hits_total",
		Help: "Submissions resolved from a stored verdict.",
	}, []string{"type"})

	// JobsEnqueued counts jobs buffered for the queue routers, by type.
	JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satyamark_jobs_enqueued_total",
		Help: "Verification jobs added to a local router buffer.",
	}, []string{"type"})

	// JobsRouted counts jobs appended to a broker stream, by router and destination.
	JobsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "satyamark_jobs_routed_total",
		Help: "Verification jobs appended to a broker stream.",
	}, []string{"router", "destination"})

	// RateLimited counts admissions rejected by the sliding window.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satyamark_rate_limited_total",
		Help: "Frames rejected by the per-session rate limiter.",
	})

	// FramesDropped counts verdict frames that could not be delivered.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "satyamark_frames_dropped_total",
		Help: "Verdict frames dropped because no live socket was available.",
	})
)

// NewServer returns the metrics HTTP server.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
