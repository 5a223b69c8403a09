package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medhedtech/medh-web-sub027/internal/watch"
)

func sessionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSessionClient_Lookup_unwrapped(t *testing.T) {
	srv := sessionServer(t, http.StatusOK,
		`{"batchId":"B1","participantId":["P1","P2"],"sessionSequenceNumber":"3","title":"Week 3"}`)

	coords, title, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, watch.Coordinates{BatchID: "B1", ParticipantID: "P1", SequenceNumber: "3"}, coords)
	assert.Equal(t, "Week 3", title)
}

func TestSessionClient_Lookup_single_envelope(t *testing.T) {
	srv := sessionServer(t, http.StatusOK,
		`{"status":"success","data":{"batchId":"B1","participantId":"P1","sessionSequenceNumber":3}}`)

	coords, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "B1", coords.BatchID)
	assert.Equal(t, "P1", coords.ParticipantID, "single-string participantId must be accepted")
	assert.Equal(t, "3", coords.SequenceNumber, "numeric sequence must be accepted")
}

func TestSessionClient_Lookup_double_envelope(t *testing.T) {
	srv := sessionServer(t, http.StatusOK,
		`{"status":"success","data":{"status":"success","data":{"batchId":"B9","participantId":["P9"],"sessionSequenceNumber":"2"}}}`)

	coords, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "B9", coords.BatchID)
	assert.Equal(t, "2", coords.SequenceNumber)
}

func TestSessionClient_Lookup_label_fallback(t *testing.T) {
	srv := sessionServer(t, http.StatusOK,
		`{"batchId":"B1","participantId":["P1"],"sessionLabel":"Session 7"}`)

	coords, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, "7", coords.SequenceNumber, "sequence should come from the label's digit suffix")
}

func TestSessionClient_Lookup_no_sequence_at_all(t *testing.T) {
	srv := sessionServer(t, http.StatusOK, `{"batchId":"B1","participantId":["P1"]}`)

	coords, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	require.NoError(t, err)
	assert.Empty(t, coords.SequenceNumber, "the \"1\" fallback belongs to the resolver, not the client")
}

func TestSessionClient_Lookup_failure_status(t *testing.T) {
	srv := sessionServer(t, http.StatusOK, `{"status":"error","data":{"message":"no such session"}}`)

	_, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	assert.Error(t, err)
}

func TestSessionClient_Lookup_missing_identity(t *testing.T) {
	srv := sessionServer(t, http.StatusOK, `{"status":"success","data":{"title":"orphan"}}`)

	_, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	assert.Error(t, err)
}

func TestSessionClient_Lookup_http_error(t *testing.T) {
	srv := sessionServer(t, http.StatusInternalServerError, `boom`)

	_, _, err := NewSessionClient(srv.URL).Lookup(context.Background(), "S1")
	assert.Error(t, err)
}

func TestTrailingDigits(t *testing.T) {
	assert.Equal(t, "3", trailingDigits("Session 3"))
	assert.Equal(t, "12", trailingDigits("week-12"))
	assert.Equal(t, "", trailingDigits("final"))
	assert.Equal(t, "", trailingDigits(""))
}
