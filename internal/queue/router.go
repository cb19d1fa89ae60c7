package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/metrics"
)

// RouterConfig configures one queue router instance.
type RouterConfig struct {
	// Name labels the router in logs and metrics ("text", "image").
	Name string
	// PrimaryURL is the capacity-checked broker jobs prefer.
	PrimaryURL string
	// OverflowURL is dialed lazily, only when the primary is over threshold.
	OverflowURL string
	// MemoryThresholdMB is the primary used-memory ceiling.
	MemoryThresholdMB float64
}

// Router buffers jobs in a local FIFO and drains them into broker streams on
// a fixed interval. Two independent instances exist, one per content type;
// their cycles are not synchronized.
type Router struct {
	cfg  RouterConfig
	dial Dialer
	log  *zap.Logger

	mu  sync.Mutex
	buf []Job

	// draining guards against overlapping drain cycles on this instance.
	draining atomic.Bool
}

// NewRouter creates a router. Nothing runs until Start.
func NewRouter(cfg RouterConfig, dial Dialer, log *zap.Logger) *Router {
	return &Router{
		cfg:  cfg,
		dial: dial,
		log:  log.With(zap.String("module", "queue"), zap.String("router", cfg.Name)),
	}
}

// Enqueue appends the job to the local FIFO and returns immediately,
// decoupling ingestion from the network-bound drain cycle.
func (r *Router) Enqueue(job Job) {
	if job.StreamKey == "" {
		r.log.Warn("Job without stream key, dropping", zap.String("job_id", job.JobID))
		return
	}

	r.mu.Lock()
	r.buf = append(r.buf, job)
	size := len(r.buf)
	r.mu.Unlock()

	metrics.JobsEnqueued.WithLabelValues(r.cfg.Name).Inc()
	r.log.Info("Job buffered",
		zap.String("job_id", job.JobID), zap.Int("queue_size", size))
}

// Len reports the number of buffered jobs.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Start runs the drain loop until ctx is done.
func (r *Router) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Drain(ctx)
			}
		}
	}()
}

// Drain moves buffered jobs into the broker streams. The primary's memory is
// sampled once for the whole cycle; each job goes to the primary below the
// threshold and to the lazily-dialed overflow broker otherwise. A job leaves
// the buffer only after its remote append succeeds, so delivery into the
// broker is at least once. Any failure aborts the remainder of the cycle;
// already-routed jobs are not rolled back.
func (r *Router) Drain(ctx context.Context) {
	if !r.draining.CompareAndSwap(false, true) {
		return
	}
	defer r.draining.Store(false)

	if r.Len() == 0 {
		return
	}

	primary, err := r.dial(ctx, r.cfg.PrimaryURL)
	if err != nil {
		r.log.Error("Failed to dial primary broker", zap.Error(err))
		return
	}
	var overflow Broker
	defer func() {
		if err := primary.Close(); err != nil {
			r.log.Warn("Failed to close primary broker", zap.Error(err))
		}
		if overflow != nil {
			if err := overflow.Close(); err != nil {
				r.log.Warn("Failed to close overflow broker", zap.Error(err))
			}
		}
	}()

	usedMB, err := primary.UsedMemoryMB(ctx)
	if err != nil {
		r.log.Error("Failed to sample broker memory", zap.Error(err))
		return
	}

	for {
		job, ok := r.peek()
		if !ok {
			return
		}

		if usedMB < r.cfg.MemoryThresholdMB {
			if err := primary.Append(ctx, job.StreamKey, job); err != nil {
				r.log.Error("Primary append failed, keeping job buffered",
					zap.String("job_id", job.JobID), zap.Error(err))
				return
			}
			metrics.JobsRouted.WithLabelValues(r.cfg.Name, "primary").Inc()
			r.log.Info("Job routed to primary",
				zap.String("job_id", job.JobID), zap.Float64("used_mb", usedMB))
		} else {
			if overflow == nil {
				if r.cfg.OverflowURL == "" {
					r.log.Error("Primary over threshold and no overflow broker configured")
					return
				}
				overflow, err = r.dial(ctx, r.cfg.OverflowURL)
				if err != nil {
					r.log.Error("Failed to dial overflow broker", zap.Error(err))
					return
				}
			}
			if err := overflow.Append(ctx, job.StreamKey, job); err != nil {
				r.log.Error("Overflow append failed, keeping job buffered",
					zap.String("job_id", job.JobID), zap.Error(err))
				return
			}
			metrics.JobsRouted.WithLabelValues(r.cfg.Name, "overflow").Inc()
			r.log.Info("Primary full, job routed to overflow",
				zap.String("job_id", job.JobID), zap.Float64("used_mb", usedMB))
		}

		r.pop()
	}
}

func (r *Router) peek() (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		return Job{}, false
	}
	return r.buf[0], true
}

func (r *Router) pop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) > 0 {
		r.buf = r.buf[1:]
	}
}
