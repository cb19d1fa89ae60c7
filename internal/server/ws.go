// Package server exposes the websocket gateway, the AI callback endpoints and
// the thin REST surface over HTTP.
package server

import (
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/dispatch"
	"github.com/satyamark/backend/internal/session"
	"github.com/satyamark/backend/pkg/errors"
	"github.com/satyamark/backend/pkg/json"
)

// inboundFrame is any client-to-server websocket message: a handshake or a
// content submission.
type inboundFrame struct {
	Type      string `json:"type,omitempty"`
	ClientID  string `json:"clientId"`
	AppID     string `json:"appId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	JobID     string `json:"jobId,omitempty"`
	Text      string `json:"text,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
}

// protocolErrorFrame is the typed rejection pushed for unbound, mismatched or
// rate-limited frames.
type protocolErrorFrame struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

// wsConn wraps a gorilla connection with a write mutex so the read loop, the
// fanout subscriber and protocol-error writes never interleave frames.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// RegisterWebSocketHandlers mounts the websocket gateway on /ws.
func RegisterWebSocketHandlers(mux *http.ServeMux, log *zap.Logger,
	registry *session.Registry, dispatcher *dispatch.Dispatcher,
) {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin(log)}
	wsLog := log.With(zap.String("module", "ws"))

	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			wsLog.Error("WebSocket upgrade failed", zap.Error(err))
			return
		}

		c := &wsConn{conn: conn}
		wsLog.Info("Client connected", zap.String("remote", conn.RemoteAddr().String()))

		defer func() {
			registry.Unbind(c)
			if err := c.Close(); err != nil {
				wsLog.Debug("Socket close", zap.Error(err))
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				wsLog.Debug("Socket read ended", zap.Error(err))
				return
			}

			var frame inboundFrame
			if err := json.Unmarshal(msg, &frame); err != nil {
				wsLog.Debug("Malformed frame dropped", zap.Error(err))
				continue
			}

			if frame.Type == "handshake" {
				handleHandshake(c, frame, registry, wsLog)
				continue
			}

			if err := registry.Admit(frame.ClientID, frame.SessionID); err != nil {
				writeProtocolError(c, err, wsLog)
				continue
			}

			// The image path blocks on a fetch for up to 10s; dispatch off
			// the read loop so the socket keeps draining.
			go func(frame inboundFrame) {
				sub := dispatch.Submission{
					ClientID:  frame.ClientID,
					SessionID: frame.SessionID,
					JobID:     frame.JobID,
					Text:      frame.Text,
					ImageURL:  frame.ImageURL,
				}
				if err := dispatcher.Handle(r.Context(), sub); err != nil {
					wsLog.Warn("Submission failed",
						zap.String("job_id", frame.JobID), zap.Error(err))
				}
			}(frame)
		}
	})
}

func handleHandshake(c *wsConn, frame inboundFrame, registry *session.Registry, log *zap.Logger) {
	if frame.ClientID == "" {
		log.Debug("Handshake without clientId dropped")
		return
	}

	sessionID := frame.SessionID
	if sessionID == "" {
		sessionID = registry.MintSessionID(frame.AppID)
		if err := c.WriteJSON(map[string]string{
			"type":      "session_created",
			"sessionId": sessionID,
		}); err != nil {
			log.Warn("Failed to send session_created", zap.Error(err))
			return
		}
	}

	registry.Bind(frame.ClientID, frame.AppID, sessionID, c)
	log.Info("Session bound",
		zap.String("client_id", frame.ClientID), zap.String("session_id", sessionID))
}

func writeProtocolError(c *wsConn, err error, log *zap.Logger) {
	var msg string
	switch {
	case errors.Is(err, errors.ErrSessionNotEstablished):
		msg = "Session not established"
	case errors.Is(err, errors.ErrInvalidSession):
		msg = "Invalid session"
	case errors.Is(err, errors.ErrRateLimited):
		msg = "Rate limit exceeded"
	default:
		msg = "Invalid session"
	}

	if werr := c.WriteJSON(protocolErrorFrame{Type: "RateLimiter", Msg: msg}); werr != nil {
		log.Debug("Failed to write protocol error", zap.Error(werr))
	}
}

// checkOrigin mirrors the WS_ALLOWED_ORIGINS policy: non-browser clients are
// allowed, browser origins must match the configured list.
func checkOrigin(log *zap.Logger) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}

		allowedOrigins := os.Getenv("WS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "localhost,127.0.0.1"
		}

		originHost := origin
		if strings.Contains(originHost, "://") {
			parts := strings.SplitN(originHost, "://", 2)
			originHost = parts[1]
		}
		if strings.Contains(originHost, ":") {
			originHost = strings.Split(originHost, ":")[0]
		}

		for _, allowed := range strings.Split(allowedOrigins, ",") {
			if allowed == "*" || allowed == originHost {
				return true
			}
			if strings.HasPrefix(allowed, "*.") && strings.HasSuffix(originHost, allowed[1:]) {
				return true
			}
		}

		log.Warn("Rejected WebSocket connection",
			zap.String("origin", origin),
			zap.String("allowed_origins", allowedOrigins))
		return false
	}
}
