package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/shade-tester/internal/config"
	"github.com/thatsimonsguy/shade-tester/internal/env"
)

func withServer(t *testing.T, handler http.HandlerFunc) {
	srv := httptest.NewServer(handler)
	origURL := baseURL
	t.Cleanup(func() {
		srv.Close()
		baseURL = origURL
		reset()
		env.Cfg = nil
	})
	baseURL = srv.URL
	env.Cfg = &config.Config{NtfyTopic: "bench-3"}
	Init()
}

func TestCompleted(t *testing.T) {
	var got publish
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})
	require.True(t, Enabled())

	require.NoError(t, Completed("PASSED on RoboTest: 20 rows"))
	assert.Equal(t, "bench-3", got.Topic)
	assert.Equal(t, "Shade test complete", got.Title)
	assert.Equal(t, "PASSED on RoboTest: 20 rows", got.Message)
	assert.Equal(t, PriorityDefault, got.Priority)
}

func TestAborted_HighPriority(t *testing.T) {
	var got publish
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, Aborted("laser timeout"))
	assert.Equal(t, PriorityHigh, got.Priority)
	assert.Equal(t, []string{"warning"}, got.Tags)
}

func TestSend_ErrorStatus(t *testing.T) {
	withServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	err := Send(Message{Title: "title", Body: "message"})
	assert.ErrorContains(t, err, "429")
}

func TestSend_Disabled(t *testing.T) {
	env.Cfg = &config.Config{}
	t.Cleanup(func() { env.Cfg = nil })
	Init()

	assert.False(t, Enabled())
	assert.ErrorIs(t, Send(Message{Title: "title"}), ErrDisabled)
}
