package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peermeet/peermeet/internal/signaling"
)

func newTestHandler() http.Handler {
	registry := signaling.NewRegistry(nil)
	return New(signaling.NewRelay(registry, nil), nil)
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinEndpointIssuesRoomTokens(t *testing.T) {
	srv := httptest.NewServer(newTestHandler())
	defer srv.Close()

	issue := func() string {
		resp, err := http.Get(srv.URL + "/join")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Link string `json:"link"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body.Link
	}

	first := issue()
	second := issue()

	_, err := uuid.Parse(first)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}
