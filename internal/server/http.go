package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/dispatch"
	"github.com/satyamark/backend/internal/session"
	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/events"
	"github.com/satyamark/backend/pkg/health"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Log        *zap.Logger
	Registry   *session.Registry
	Dispatcher *dispatch.Dispatcher
	Store      verdict.Store
	Bus        *events.Bus
	Health     *health.Checker
}

// New builds the HTTP server: websocket gateway, worker callbacks, REST
// surface and health endpoint on one mux.
func New(addr string, deps Deps) *http.Server {
	mux := http.NewServeMux()

	RegisterWebSocketHandlers(mux, deps.Log, deps.Registry, deps.Dispatcher)
	RegisterCallbackHandlers(mux, deps.Log, deps.Store, deps.Bus)
	RegisterVerifyHandlers(mux, deps.Log, deps.Dispatcher)
	RegisterVerdictHandlers(mux, deps.Log, deps.Store)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		results := deps.Health.Check(r.Context())
		status := http.StatusOK
		for _, s := range results {
			if s == health.StatusDown {
				status = http.StatusServiceUnavailable
				break
			}
		}
		writeJSON(w, status, results)
	})

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"service": "satyamark backend"})
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second, // mitigate Slowloris
	}
}
