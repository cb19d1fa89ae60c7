// Package session binds live websocket connections to client identities and
// gates message admission through the per-session rate limiter.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/metrics"
	"github.com/satyamark/backend/pkg/errors"
	"github.com/satyamark/backend/pkg/events"
)

// Conn is the write side of a live client connection. Implementations must be
// safe for concurrent WriteJSON calls.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Session is a bound connection: socket plus client/app identity.
type Session struct {
	SessionID string
	ClientID  string
	AppID     string
	conn      Conn
}

// Registry maps client ids to their single live session. Sessions are not
// persisted; identity is lost across process restarts and a reconnect must
// repeat the handshake.
type Registry struct {
	mu       sync.Mutex
	byClient map[string]*Session
	limiter  *RateLimiter
	log      *zap.Logger
}

// NewRegistry creates an empty registry backed by the given limiter.
func NewRegistry(limiter *RateLimiter, log *zap.Logger) *Registry {
	return &Registry{
		byClient: make(map[string]*Session),
		limiter:  limiter,
		log:      log.With(zap.String("module", "session")),
	}
}

// MintSessionID issues a fresh session id for the handshake response.
func (r *Registry) MintSessionID(appID string) string {
	salt := make([]byte, 8)
	if _, err := rand.Read(salt); err != nil {
		// Timestamp alone still yields a usable id.
		r.log.Warn("Failed to read session salt", zap.Error(err))
	}
	return fmt.Sprintf("%s_%d_%s", appID, time.Now().UnixMilli(), hex.EncodeToString(salt))
}

// Bind registers the connection for clientID. Last writer wins: an existing
// live socket for the same clientID is closed before the new one is bound, so
// results are never delivered to two sockets for one logical client.
func (r *Registry) Bind(clientID, appID, sessionID string, conn Conn) *Session {
	r.mu.Lock()
	prev := r.byClient[clientID]
	s := &Session{SessionID: sessionID, ClientID: clientID, AppID: appID, conn: conn}
	r.byClient[clientID] = s
	r.mu.Unlock()

	if prev != nil && prev.conn != conn {
		r.log.Info("Replacing live socket for client",
			zap.String("client_id", clientID),
			zap.String("old_session_id", prev.SessionID))
		if err := prev.conn.Close(); err != nil {
			r.log.Debug("Failed to close replaced socket", zap.Error(err))
		}
	}
	return s
}

// Admit validates the clientId/sessionId pair of a non-handshake frame and
// charges the rate limiter. Any error means the frame must be dropped with no
// side effects.
func (r *Registry) Admit(clientID, sessionID string) error {
	r.mu.Lock()
	s, ok := r.byClient[clientID]
	r.mu.Unlock()

	if !ok {
		return errors.ErrSessionNotEstablished
	}
	if sessionID == "" || s.SessionID != sessionID {
		return errors.ErrInvalidSession
	}
	if !r.limiter.Allow(sessionID) {
		metrics.RateLimited.Inc()
		return errors.ErrRateLimited
	}
	return nil
}

// Unbind removes the mapping for the given connection, if it is still the
// bound one. Called on socket close.
func (r *Registry) Unbind(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for clientID, s := range r.byClient {
		if s.conn == conn {
			delete(r.byClient, clientID)
		}
	}
}

// Notify implements events.Subscriber: it resolves the client to its live
// socket and pushes the payload as a single JSON frame. A client that is not
// currently connected simply never receives the event.
func (r *Registry) Notify(evt events.Event) {
	r.mu.Lock()
	s, ok := r.byClient[evt.ClientID]
	r.mu.Unlock()

	if !ok {
		metrics.FramesDropped.Inc()
		r.log.Debug("No live socket for client, dropping verdict",
			zap.String("client_id", evt.ClientID))
		return
	}

	if err := s.conn.WriteJSON(evt.Payload); err != nil {
		metrics.FramesDropped.Inc()
		r.log.Warn("Failed to push verdict frame",
			zap.String("client_id", evt.ClientID), zap.Error(err))
	}
}
