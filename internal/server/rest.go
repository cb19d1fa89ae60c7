package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/dispatch"
	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/errors"
	"github.com/satyamark/backend/pkg/json"
)

type verifyBody struct {
	ClientID string `json:"clientId"`
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
}

// RegisterVerifyHandlers mounts the thin REST enqueue path next to the
// websocket one. Results still fan out over the bus; a REST caller without a
// live socket re-fetches them through the verdict endpoints.
func RegisterVerifyHandlers(mux *http.ServeMux, log *zap.Logger, dispatcher *dispatch.Dispatcher) {
	restLog := log.With(zap.String("module", "rest"))

	verify := func(w http.ResponseWriter, r *http.Request, build func(verifyBody) (dispatch.Submission, bool)) {
		var body verifyBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
			return
		}

		sub, ok := build(body)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
			return
		}
		sub.ClientID = body.ClientID
		sub.JobID = uuid.NewString()

		if err := dispatcher.Handle(r.Context(), sub); err != nil {
			if errors.Is(err, errors.ErrInvalidInput) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			restLog.Error("Failed to enqueue", zap.String("job_id", sub.JobID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed_to_enqueue"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"queued": true, "jobId": sub.JobID})
	}

	mux.HandleFunc("POST /api/verify/text", func(w http.ResponseWriter, r *http.Request) {
		verify(w, r, func(b verifyBody) (dispatch.Submission, bool) {
			if b.Text == "" {
				return dispatch.Submission{}, false
			}
			return dispatch.Submission{Text: b.Text}, true
		})
	})

	mux.HandleFunc("POST /api/verify/img-ml", func(w http.ResponseWriter, r *http.Request) {
		verify(w, r, func(b verifyBody) (dispatch.Submission, bool) {
			if b.URL == "" {
				return dispatch.Submission{}, false
			}
			return dispatch.Submission{ImageURL: b.URL, ImageMode: "ml"}, true
		})
	})

	mux.HandleFunc("POST /api/verify/img-forensic", func(w http.ResponseWriter, r *http.Request) {
		verify(w, r, func(b verifyBody) (dispatch.Submission, bool) {
			if b.URL == "" {
				return dispatch.Submission{}, false
			}
			return dispatch.Submission{ImageURL: b.URL, ImageMode: "forensic"}, true
		})
	})
}

// RegisterVerdictHandlers mounts id fetch and the recheck delete. Deleting a
// verdict forces re-verification the next time the content is submitted.
func RegisterVerdictHandlers(mux *http.ServeMux, log *zap.Logger, store verdict.Store) {
	vLog := log.With(zap.String("module", "rest"))

	idParam := func(w http.ResponseWriter, r *http.Request) (int64, bool) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
			return 0, false
		}
		return id, true
	}

	respond := func(w http.ResponseWriter, v interface{}, err error, isNil bool) {
		if err != nil {
			vLog.Error("Verdict store error", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
			return
		}
		if isNil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}

	mux.HandleFunc("GET /api/verdicts/text/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		v, err := store.GetTextByID(r.Context(), id)
		respond(w, v, err, v == nil)
	})

	mux.HandleFunc("DELETE /api/verdicts/text/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		v, err := store.DeleteTextByID(r.Context(), id)
		respond(w, v, err, v == nil)
	})

	mux.HandleFunc("GET /api/verdicts/image/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		v, err := store.GetImageByID(r.Context(), id)
		respond(w, v, err, v == nil)
	})

	mux.HandleFunc("DELETE /api/verdicts/image/{id}", func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(w, r)
		if !ok {
			return
		}
		v, err := store.DeleteImageByID(r.Context(), id)
		respond(w, v, err, v == nil)
	})
}
