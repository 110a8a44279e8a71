// Package roster talks to the upstream workforce roster service. A sync
// pass authenticates with a subject's stored credentials, then fetches the
// dated shift list for a date window.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/shifts"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

// Sentinel errors for failures the caller classifies. Network-level errors
// (timeouts, refused connections) are wrapped and surface through errors.As
// on the underlying net error.
var (
	// ErrAuthFailed means the roster service rejected the credentials.
	ErrAuthFailed = errors.New("roster authentication failed")
	// ErrMalformedResponse means the service answered with a payload we
	// could not decode.
	ErrMalformedResponse = errors.New("malformed roster response")
)

const (
	// defaultTimeout bounds every roster HTTP call.
	defaultTimeout = 30 * time.Second
	// maxResponseSize caps response bodies at 10 MB.
	maxResponseSize = 10 * 1024 * 1024

	dateFormat = "2006-01-02"
)

// Day is one dated entry of a fetched roster. A day with no shifts is a
// free day; the distinction matters to the reconciler.
type Day struct {
	Date   string
	Shifts []shifts.Shift
}

// Client fetches roster data from the upstream service.
type Client interface {
	// Authenticate exchanges the credentials for a session token.
	Authenticate(ctx context.Context, creds credentials.Credentials) (string, error)
	// FetchRoster retrieves the day list for [from, to] inclusive.
	FetchRoster(ctx context.Context, token string, creds credentials.Credentials, from, to time.Time) ([]Day, error)
}

// Config holds the endpoints of the roster service.
type Config struct {
	// AuthURL is the token endpoint.
	AuthURL string
	// RosterURL is the roster endpoint. If it does not already end with
	// the subject's username, the username is appended as a path segment.
	RosterURL string
	// Timeout overrides the default HTTP timeout when positive.
	Timeout time.Duration
}

type defaultClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient returns the HTTP-backed roster client.
func NewClient(cfg Config) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &defaultClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	SiteID   string `json:"siteId"`
}

type authResponse struct {
	SessionToken string `json:"sessionToken"`
}

func (c *defaultClient) Authenticate(ctx context.Context, creds credentials.Credentials) (string, error) {
	body, err := json.Marshal(authRequest{
		Username: creds.Username,
		Password: creds.Secret,
		SiteID:   creds.SiteID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if creds.TenantID != "" {
		req.Header.Set("tenant-id", creds.TenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("auth request returned status %d", resp.StatusCode)
	}

	var ar authResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&ar); err != nil {
		return "", fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}
	if ar.SessionToken == "" {
		return "", fmt.Errorf("%w: response carries no session token", ErrMalformedResponse)
	}
	return ar.SessionToken, nil
}

type rosterShift struct {
	Start       string `json:"start"`
	End         string `json:"end"`
	RoleCode    string `json:"roleCode"`
	WorkingArea string `json:"workingArea"`
}

type rosterDay struct {
	Date   string        `json:"date"`
	Shifts []rosterShift `json:"shifts"`
}

func (c *defaultClient) FetchRoster(ctx context.Context, token string, creds credentials.Credentials, from, to time.Time) ([]Day, error) {
	endpoint, err := c.rosterEndpoint(creds.Username, from, to)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create roster request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if creds.TenantID != "" {
		req.Header.Set("tenant-id", creds.TenantID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("roster request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("roster request returned status %d", resp.StatusCode)
	}

	var days []rosterDay
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&days); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedResponse, err)
	}

	out := make([]Day, 0, len(days))
	for _, d := range days {
		if d.Date == "" {
			return nil, fmt.Errorf("%w: day entry without date", ErrMalformedResponse)
		}
		ss := make([]shifts.Shift, 0, len(d.Shifts))
		for _, s := range d.Shifts {
			ss = append(ss, shifts.Shift{
				Start:       s.Start,
				End:         s.End,
				RoleCode:    s.RoleCode,
				WorkingArea: s.WorkingArea,
			})
		}
		out = append(out, Day{Date: d.Date, Shifts: ss})
	}
	return out, nil
}

// rosterEndpoint builds the per-subject roster URL. The upstream service
// scopes the roster by a trailing username path segment; configs written
// for a single subject may already include it.
func (c *defaultClient) rosterEndpoint(username string, from, to time.Time) (string, error) {
	base := c.cfg.RosterURL
	if !strings.HasSuffix(strings.TrimRight(base, "/"), "/"+username) {
		base = strings.TrimRight(base, "/") + "/" + url.PathEscape(username)
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid roster URL: %w", err)
	}
	q := u.Query()
	q.Set("fromDate", from.Format(dateFormat))
	q.Set("toDate", to.Format(dateFormat))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
