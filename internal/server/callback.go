package server

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/events"
	"github.com/satyamark/backend/pkg/json"
)

// callbackBody is what the AI workers POST back once a job resolves.
type callbackBody struct {
	JobID       string   `json:"jobId"`
	ClientID    string   `json:"clientId"`
	Mark        string   `json:"mark"`
	Confidence  float64  `json:"confidence"`
	Reason      string   `json:"reason"`
	Summary     string   `json:"summary,omitempty"`
	URLs        []string `json:"urls,omitempty"`
	TextHash    string   `json:"text_hash,omitempty"`
	SummaryHash string   `json:"summary_hash,omitempty"`
	ImageHash   string   `json:"image_hash,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
}

// RegisterCallbackHandlers mounts the worker callback endpoints. Each call
// persists the verdict and publishes it to the originating client; delivery
// to a since-disconnected client is dropped, not queued.
func RegisterCallbackHandlers(mux *http.ServeMux, log *zap.Logger,
	store verdict.Store, bus *events.Bus,
) {
	cbLog := log.With(zap.String("module", "callback"))

	mux.HandleFunc("POST /ai-callback/text", func(w http.ResponseWriter, r *http.Request) {
		var body callbackBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if body.JobID == "" || body.ClientID == "" || body.Mark == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
			return
		}

		stored, err := store.PersistText(r.Context(), verdict.TextVerdict{
			TextHash:    body.TextHash,
			SummaryHash: body.SummaryHash,
			Mark:        body.Mark,
			Reason:      body.Reason,
			Summary:     body.Summary,
			Confidence:  body.Confidence,
			URLs:        body.URLs,
		})
		if err != nil {
			cbLog.Error("Failed to persist text verdict",
				zap.String("job_id", body.JobID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}

		payload := map[string]interface{}{
			"jobId":      body.JobID,
			"clientId":   body.ClientID,
			"dataId":     stored.ID,
			"mark":       stored.Mark,
			"confidence": stored.Confidence,
			"reason":     stored.Reason,
			"type":       "text",
		}
		if stored.Summary != "" {
			payload["summary"] = stored.Summary
		}
		if len(stored.URLs) > 0 {
			payload["urls"] = stored.URLs
		}
		bus.Publish(body.ClientID, payload)

		cbLog.Info("Text verdict received",
			zap.String("job_id", body.JobID), zap.String("mark", stored.Mark))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	mux.HandleFunc("POST /ai-callback/image", func(w http.ResponseWriter, r *http.Request) {
		var body callbackBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}
		if body.JobID == "" || body.ClientID == "" || body.Mark == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
			return
		}

		stored, err := store.PersistImage(r.Context(), verdict.ImageVerdict{
			ImageHash:  body.ImageHash,
			ImageURL:   body.ImageURL,
			Mark:       body.Mark,
			Reason:     body.Reason,
			Confidence: body.Confidence,
		})
		if err != nil {
			cbLog.Error("Failed to persist image verdict",
				zap.String("job_id", body.JobID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}

		bus.Publish(body.ClientID, map[string]interface{}{
			"jobId":      body.JobID,
			"clientId":   body.ClientID,
			"dataId":     stored.ID,
			"mark":       stored.Mark,
			"confidence": stored.Confidence,
			"reason":     stored.Reason,
			"image_url":  stored.ImageURL,
			"type":       "image",
		})

		cbLog.Info("Image verdict received",
			zap.String("job_id", body.JobID), zap.String("mark", stored.Mark))
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
