package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/events"
	"github.com/satyamark/backend/pkg/json"
)

type fakeStore struct {
	verdict.Store

	persistedText  []verdict.TextVerdict
	persistedImage []verdict.ImageVerdict
	persistErr     error
	nextID         int64
}

func (s *fakeStore) PersistText(_ context.Context, v verdict.TextVerdict) (*verdict.TextVerdict, error) {
	if s.persistErr != nil {
		return nil, s.persistErr
	}
	s.nextID++
	v.ID = s.nextID
	s.persistedText = append(s.persistedText, v)
	return &v, nil
}

func (s *fakeStore) PersistImage(_ context.Context, v verdict.ImageVerdict) (*verdict.ImageVerdict, error) {
	if s.persistErr != nil {
		return nil, s.persistErr
	}
	s.nextID++
	v.ID = s.nextID
	s.persistedImage = append(s.persistedImage, v)
	return &v, nil
}

type busRecorder struct {
	events []events.Event
}

func (r *busRecorder) Notify(evt events.Event) {
	r.events = append(r.events, evt)
}

func callbackServer(store verdict.Store) (*httptest.Server, *busRecorder) {
	bus := events.NewBus(zap.NewNop())
	rec := &busRecorder{}
	bus.Subscribe(rec)

	mux := http.NewServeMux()
	RegisterCallbackHandlers(mux, zap.NewNop(), store, bus)
	return httptest.NewServer(mux), rec
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestTextCallbackPersistsAndPublishes(t *testing.T) {
	store := &fakeStore{}
	srv, rec := callbackServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/ai-callback/text", map[string]interface{}{
		"jobId":        "job-1",
		"clientId":     "u1",
		"mark":         "incorrect",
		"confidence":   0.92,
		"reason":       "contradicted by sources",
		"text_hash":    "aa",
		"summary_hash": "bb",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, store.persistedText, 1)
	assert.Equal(t, "aa", store.persistedText[0].TextHash)

	require.Len(t, rec.events, 1)
	evt := rec.events[0]
	assert.Equal(t, "u1", evt.ClientID)
	assert.Equal(t, "incorrect", evt.Payload["mark"])
	assert.Equal(t, "text", evt.Payload["type"])
	assert.Equal(t, int64(1), evt.Payload["dataId"])
}

func TestImageCallbackPersistsAndPublishes(t *testing.T) {
	store := &fakeStore{}
	srv, rec := callbackServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/ai-callback/image", map[string]interface{}{
		"jobId":      "job-2",
		"clientId":   "u1",
		"mark":       "ai-generated",
		"confidence": 0.8,
		"reason":     "gan artifacts",
		"image_hash": "cc",
		"image_url":  "https://example.com/x.png",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, store.persistedImage, 1)
	require.Len(t, rec.events, 1)
	assert.Equal(t, "image", rec.events[0].Payload["type"])
	assert.Equal(t, "https://example.com/x.png", rec.events[0].Payload["image_url"])
}

func TestCallbackRejectsMissingFields(t *testing.T) {
	store := &fakeStore{}
	srv, rec := callbackServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/ai-callback/text", map[string]interface{}{
		"jobId": "job-1",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, store.persistedText)
	assert.Empty(t, rec.events)
}

func TestCallbackPersistFailureReturns500(t *testing.T) {
	store := &fakeStore{persistErr: assert.AnError}
	srv, rec := callbackServer(store)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/ai-callback/text", map[string]interface{}{
		"jobId":    "job-1",
		"clientId": "u1",
		"mark":     "correct",
	})

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, rec.events, "a failed persist must not fan out")
}
