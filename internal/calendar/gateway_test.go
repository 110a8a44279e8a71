package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestGateway points both the token endpoint and the API at srv.
func newTestGateway(t *testing.T, srv *httptest.Server) Gateway {
	t.Helper()
	return NewGateway(context.Background(), Config{
		BaseURL:      srv.URL,
		CalendarID:   "primary",
		TokenURL:     srv.URL + "/token",
		ClientID:     "client",
		ClientSecret: "secret",
	})
}

func tokenHandler(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","expires_in":3600}`))
}

func TestCreateEvent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) { tokenHandler(w) })
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Shift CHK", body["summary"])

		start, ok := body["start"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Europe/Madrid", start["timeZone"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"ev-123"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv)
	id, err := g.CreateEvent(context.Background(), Event{
		Summary:  "Shift CHK",
		Start:    time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
		Timezone: "Europe/Madrid",
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-123", id)
}

func TestCreateEventServerError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) { tokenHandler(w) })
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGateway(t, srv)
	_, err := g.CreateEvent(context.Background(), Event{Summary: "x"})
	assert.Error(t, err)
}

func TestDeleteEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"deleted", http.StatusNoContent, false},
		{"already gone", http.StatusNotFound, false},
		{"cancelled upstream", http.StatusGone, false},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mux := http.NewServeMux()
			mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) { tokenHandler(w) })
			mux.HandleFunc("/calendars/primary/events/ev-123", func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
			})
			srv := httptest.NewServer(mux)
			defer srv.Close()

			g := newTestGateway(t, srv)
			err := g.DeleteEvent(context.Background(), "ev-123")
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
