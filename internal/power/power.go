// Package power drives a DLI web power switch.
package power

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type Switch struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
}

func New(address, user, password string) *Switch {
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Switch{
		baseURL:  strings.TrimSuffix(base, "/"),
		user:     user,
		password: password,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// On switches outlet (1-based, as printed on the unit) on.
func (s *Switch) On(ctx context.Context, outlet int) error {
	return s.set(ctx, outlet, "ON")
}

func (s *Switch) Off(ctx context.Context, outlet int) error {
	return s.set(ctx, outlet, "OFF")
}

// Status reports whether outlet is on, using the REST relay API.
func (s *Switch) Status(ctx context.Context, outlet int) (bool, error) {
	if outlet < 1 {
		return false, fmt.Errorf("invalid outlet %d", outlet)
	}
	path := fmt.Sprintf("/restapi/relay/outlets/%d/state/", outlet-1)
	body, err := s.get(ctx, path, map[string]string{"Accept": "application/json"})
	if err != nil {
		return false, fmt.Errorf("outlet %d status: %w", outlet, err)
	}
	switch strings.TrimSpace(body) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("unexpected outlet %d state %q", outlet, body)
	}
}

func (s *Switch) set(ctx context.Context, outlet int, state string) error {
	if outlet < 1 {
		return fmt.Errorf("invalid outlet %d", outlet)
	}
	if _, err := s.get(ctx, fmt.Sprintf("/outlet?%d=%s", outlet, state), nil); err != nil {
		return fmt.Errorf("switch outlet %d %s: %w", outlet, state, err)
	}
	log.Info().Int("outlet", outlet).Str("state", state).Msg("Power switch outlet set")
	return nil
}

func (s *Switch) get(ctx context.Context, path string, headers map[string]string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.user, s.password)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("power switch returned non-success status: %d", resp.StatusCode)
	}
	return string(b), nil
}
