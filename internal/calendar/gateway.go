// Package calendar pushes shift events to an external calendar service.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

const requestTimeout = 30 * time.Second

// Event is one calendar entry covering a single shift.
type Event struct {
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
	Timezone string
}

// Gateway creates and deletes calendar events. Implementations must make
// DeleteEvent idempotent: deleting an already deleted event is not an error.
type Gateway interface {
	CreateEvent(ctx context.Context, ev Event) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Config holds the calendar service endpoints and OAuth2 client settings.
type Config struct {
	// BaseURL is the calendar API base, e.g.
	// "https://www.googleapis.com/calendar/v3".
	BaseURL string
	// CalendarID identifies the target calendar.
	CalendarID string
	// TokenURL, ClientID and ClientSecret configure the OAuth2
	// client-credentials flow used for bearer auth.
	TokenURL     string
	ClientID     string
	ClientSecret string
}

type restGateway struct {
	cfg        Config
	httpClient *http.Client
}

// NewGateway returns a Gateway speaking the Google Calendar v3 REST shape.
func NewGateway(ctx context.Context, cfg Config) Gateway {
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	client := cc.Client(ctx)
	client.Timeout = requestTimeout
	return &restGateway{cfg: cfg, httpClient: client}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type eventBody struct {
	Summary  string    `json:"summary"`
	Location string    `json:"location,omitempty"`
	Start    eventTime `json:"start"`
	End      eventTime `json:"end"`
}

type eventResponse struct {
	ID string `json:"id"`
}

func (g *restGateway) CreateEvent(ctx context.Context, ev Event) (string, error) {
	body, err := json.Marshal(eventBody{
		Summary:  ev.Summary,
		Location: ev.Location,
		Start:    eventTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: ev.Timezone},
		End:      eventTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: ev.Timezone},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", g.cfg.BaseURL, url.PathEscape(g.cfg.CalendarID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("event creation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("event creation returned status %d", resp.StatusCode)
	}

	var er eventResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&er); err != nil {
		return "", fmt.Errorf("failed to decode event response: %w", err)
	}
	if er.ID == "" {
		return "", fmt.Errorf("event response carries no id")
	}
	return er.ID, nil
}

func (g *restGateway) DeleteEvent(ctx context.Context, eventID string) error {
	endpoint := fmt.Sprintf("%s/calendars/%s/events/%s",
		g.cfg.BaseURL, url.PathEscape(g.cfg.CalendarID), url.PathEscape(eventID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create delete request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("event deletion request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound, http.StatusGone:
		// Already deleted upstream; the cleanup goal is met.
		return nil
	default:
		return fmt.Errorf("event deletion returned status %d", resp.StatusCode)
	}
}
