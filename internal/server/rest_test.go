package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satyamark/backend/internal/dispatch"
	"github.com/satyamark/backend/internal/fingerprint"
	"github.com/satyamark/backend/internal/verdict"
	"github.com/satyamark/backend/pkg/events"
	"github.com/satyamark/backend/pkg/json"
)

type crudStore struct {
	fakeStore

	text    map[int64]*verdict.TextVerdict
	deleted []int64
}

func (s *crudStore) LookupText(context.Context, string, string) (*verdict.TextVerdict, error) {
	return nil, nil
}

func (s *crudStore) GetTextByID(_ context.Context, id int64) (*verdict.TextVerdict, error) {
	return s.text[id], nil
}

func (s *crudStore) DeleteTextByID(_ context.Context, id int64) (*verdict.TextVerdict, error) {
	v := s.text[id]
	if v != nil {
		delete(s.text, id)
		s.deleted = append(s.deleted, id)
	}
	return v, nil
}

func restFixture(t *testing.T) (*httptest.Server, *crudStore, *recordingQueue) {
	t.Helper()

	log := zap.NewNop()
	store := &crudStore{text: map[int64]*verdict.TextVerdict{}}
	textQueue := &recordingQueue{}
	dispatcher := dispatch.New(dispatch.Config{ImageAnalysisMode: "ml"},
		store, fingerprint.NewImageFetcher(log), textQueue, &recordingQueue{},
		events.NewBus(log), log)

	mux := http.NewServeMux()
	RegisterVerifyHandlers(mux, log, dispatcher)
	RegisterVerdictHandlers(mux, log, store)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store, textQueue
}

func TestVerifyTextQueuesJob(t *testing.T) {
	srv, _, textQueue := restFixture(t)

	resp := postJSON(t, srv.URL+"/api/verify/text", map[string]string{
		"clientId": "u1", "text": "Sun is red",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["queued"])
	assert.NotEmpty(t, body["jobId"])

	require.Eventually(t, func() bool {
		return len(textQueue.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestVerifyTextRejectsMissingText(t *testing.T) {
	srv, _, textQueue := restFixture(t)

	resp := postJSON(t, srv.URL+"/api/verify/text", map[string]string{"clientId": "u1"})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, textQueue.snapshot())
}

func TestVerdictFetchAndRecheckDelete(t *testing.T) {
	srv, store, _ := restFixture(t)
	store.text[7] = &verdict.TextVerdict{ID: 7, Mark: "correct"}

	resp, err := http.Get(srv.URL + "/api/verdicts/text/7")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/verdicts/text/7", nil)
	require.NoError(t, err)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = del.Body.Close() }()
	assert.Equal(t, http.StatusOK, del.StatusCode)
	assert.Equal(t, []int64{7}, store.deleted)

	// Deleted verdicts are gone: the content would be re-verified next time.
	gone, err := http.Get(srv.URL + "/api/verdicts/text/7")
	require.NoError(t, err)
	defer func() { _ = gone.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, gone.StatusCode)
}

func TestVerdictInvalidID(t *testing.T) {
	srv, _, _ := restFixture(t)

	resp, err := http.Get(srv.URL + "/api/verdicts/text/notanumber")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
