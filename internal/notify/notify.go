// Package notify publishes push notifications about schedule changes.
// Delivery is best effort: callers log failures and move on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const publishTimeout = 10 * time.Second

// Message is a single push notification.
type Message struct {
	Title    string
	Body     string
	Priority int
	Tags     []string
	Click    string
}

// Sink publishes notifications.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
}

type ntfySink struct {
	url        string
	topic      string
	httpClient *http.Client
}

// NewNtfySink returns a Sink publishing to an ntfy-compatible endpoint.
func NewNtfySink(url, topic string) Sink {
	return &ntfySink{
		url:        url,
		topic:      topic,
		httpClient: &http.Client{Timeout: publishTimeout},
	}
}

type ntfyPayload struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Priority int      `json:"priority,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Click    string   `json:"click,omitempty"`
}

func (s *ntfySink) Publish(ctx context.Context, msg Message) error {
	body, err := json.Marshal(ntfyPayload{
		Topic:    s.topic,
		Title:    msg.Title,
		Message:  msg.Body,
		Priority: msg.Priority,
		Tags:     msg.Tags,
		Click:    msg.Click,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notification request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification returned status %d", resp.StatusCode)
	}
	return nil
}
