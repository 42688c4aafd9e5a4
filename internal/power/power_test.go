package power

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnOff(t *testing.T) {
	var queries []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "1234", pass)
		assert.Equal(t, "/outlet", r.URL.Path)
		queries = append(queries, r.URL.RawQuery)
	}))
	defer srv.Close()

	s := New(srv.URL, "admin", "1234")
	require.NoError(t, s.On(context.Background(), 8))
	require.NoError(t, s.Off(context.Background(), 8))
	assert.Equal(t, []string{"8=ON", "8=OFF"}, queries)
}

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/restapi/relay/outlets/7/state/":
			fmt.Fprint(w, "true")
		case "/restapi/relay/outlets/0/state/":
			fmt.Fprint(w, "false\n")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := New(srv.URL, "admin", "1234")
	on, err := s.Status(context.Background(), 8)
	require.NoError(t, err)
	assert.True(t, on)

	on, err = s.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = s.Status(context.Background(), 3)
	assert.ErrorContains(t, err, "404")
}

func TestInvalidOutlet(t *testing.T) {
	s := New("192.168.1.50", "admin", "1234")
	assert.Error(t, s.On(context.Background(), 0))
	_, err := s.Status(context.Background(), -1)
	assert.Error(t, err)
}

func TestUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(srv.URL, "admin", "wrong").On(context.Background(), 1)
	assert.ErrorContains(t, err, "401")
}
