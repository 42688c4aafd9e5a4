// Package notifications posts suite outcomes to an ntfy topic so the bench
// operator hears about a finished or aborted run without watching the console.
package notifications

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/shade-tester/internal/env"
)

// ntfy priorities
const (
	PriorityDefault = 3
	PriorityHigh    = 4
)

var ErrDisabled = errors.New("notifications not configured")

var (
	client  *http.Client
	topic   string
	baseURL = "https://ntfy.sh"
)

type Message struct {
	Title    string
	Body     string
	Priority int
	Tags     []string
}

type publish struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func Init() {
	if env.Cfg.NtfyTopic == "" {
		log.Info().Msg("No ntfy topic configured, suite notifications disabled")
		return
	}
	client = &http.Client{Timeout: 10 * time.Second}
	topic = env.Cfg.NtfyTopic
	log.Info().Str("topic", topic).Msg("Suite notifications enabled")
}

func Enabled() bool {
	return client != nil
}

func reset() {
	client = nil
	topic = ""
}

// Completed announces a finished suite.
func Completed(body string) error {
	return Send(Message{Title: "Shade test complete", Body: body, Priority: PriorityDefault, Tags: []string{"white_check_mark"}})
}

// Aborted announces a suite that stopped on an instrument or hub error.
func Aborted(body string) error {
	return Send(Message{Title: "Shade test aborted", Body: body, Priority: PriorityHigh, Tags: []string{"warning"}})
}

func Send(m Message) error {
	if !Enabled() {
		return ErrDisabled
	}

	payload, err := json.Marshal(publish{
		Topic:    topic,
		Title:    m.Title,
		Message:  m.Body,
		Priority: m.Priority,
		Tags:     m.Tags,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	// JSON publishes go to the server root; the topic is part of the body.
	req, err := http.NewRequest(http.MethodPost, baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach ntfy: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy rejected notification: status %d", resp.StatusCode)
	}
	log.Debug().Str("title", m.Title).Msg("Notification delivered")
	return nil
}
