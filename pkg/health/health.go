package health

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Status represents the health status.
type Status string

const (
	StatusUp   Status = "UP"
	StatusDown Status = "DOWN"
)

// Check represents a single health check.
type Check interface {
	Check(ctx context.Context) error
	Name() string
}

// Checker manages health checks.
type Checker struct {
	checks []Check
	mu     sync.RWMutex
}

// NewChecker creates a new health checker.
func NewChecker() *Checker {
	return &Checker{checks: make([]Check, 0)}
}

// Register adds a new health check.
func (hc *Checker) Register(check Check) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks = append(hc.checks, check)
}

// Check performs all health checks and returns per-check status.
func (hc *Checker) Check(ctx context.Context) map[string]Status {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	results := make(map[string]Status, len(hc.checks))
	for _, check := range hc.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := check.Check(checkCtx); err != nil {
			results[check.Name()] = StatusDown
		} else {
			results[check.Name()] = StatusUp
		}
		cancel()
	}
	return results
}

// DatabaseCheck checks database connectivity.
type DatabaseCheck struct {
	name string
	db   *sql.DB
}

func NewDatabaseCheck(name string, db *sql.DB) *DatabaseCheck {
	return &DatabaseCheck{name: name, db: db}
}

func (d *DatabaseCheck) Check(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func (d *DatabaseCheck) Name() string {
	return d.name
}

// RedisCheck checks Redis connectivity.
type RedisCheck struct {
	name   string
	client *redis.Client
}

func NewRedisCheck(name string, client *redis.Client) *RedisCheck {
	return &RedisCheck{name: name, client: client}
}

func (r *RedisCheck) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCheck) Name() string {
	return r.name
}
