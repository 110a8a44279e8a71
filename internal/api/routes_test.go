package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsync/shiftsync/internal/config"
	"github.com/shiftsync/shiftsync/internal/payroll"
	"github.com/shiftsync/shiftsync/internal/shifts"
	"github.com/shiftsync/shiftsync/internal/store"
	"github.com/shiftsync/shiftsync/internal/sync"
)

// fakeController scripts the scheduler surface.
type fakeController struct {
	running bool
	started int
	stopped int
	stats   sync.CycleStats
}

func (f *fakeController) Start()                 { f.started++; f.running = true }
func (f *fakeController) Stop()                  { f.stopped++; f.running = false }
func (f *fakeController) Running() bool          { return f.running }
func (f *fakeController) Stats() sync.CycleStats { return f.stats }

// fakeSubjectSyncer records one-off sync requests.
type fakeSubjectSyncer struct {
	synced chan string
}

func (f *fakeSubjectSyncer) Sync(_ context.Context, subject store.Subject) (sync.Outcome, *sync.Error) {
	f.synced <- subject.EmployeeNumber
	return sync.Outcome{DaysReconciled: 1}, nil
}

func newTestServer(t *testing.T, ctrl *fakeController, syncer *fakeSubjectSyncer, mem store.Store, payrollCfg *config.PayrollConfig) *httptest.Server {
	t.Helper()
	h := NewHandlers(ctrl, syncer, mem, payrollCfg)
	srv := httptest.NewServer(NewServer(h))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{}, nil, store.NewMemoryStore(), nil)
	status, body := doJSON(t, http.MethodGet, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestSyncStatus(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctrl := &fakeController{stats: sync.CycleStats{
		Running:        true,
		CycleCount:     3,
		SubjectsSynced: 12,
		Errors:         1,
		LastCycleStart: &start,
		CurrentSubject: "12345",
	}}
	srv := newTestServer(t, ctrl, nil, store.NewMemoryStore(), nil)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/sync/status")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(3), body["cycleCount"])
	assert.Equal(t, "12345", body["currentSubject"])
}

func TestSyncStartStop(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{}
	srv := newTestServer(t, ctrl, nil, store.NewMemoryStore(), nil)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/start")
	assert.Equal(t, http.StatusAccepted, status)
	assert.Equal(t, "started", body["status"])

	status, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/start")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "already running", body["status"])
	assert.Equal(t, 1, ctrl.started)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/stop")
	assert.Equal(t, http.StatusAccepted, status)

	status, body = doJSON(t, http.MethodPost, srv.URL+"/api/v1/sync/stop")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "already stopped", body["status"])
}

func TestSubjectSync(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	subject := store.Subject{ID: uuid.New(), EmployeeNumber: "12345"}
	mem.AddSubject(subject)

	syncer := &fakeSubjectSyncer{synced: make(chan string, 1)}
	srv := newTestServer(t, &fakeController{}, syncer, mem, nil)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/subjects/"+subject.ID.String()+"/sync")
	assert.Equal(t, http.StatusAccepted, status)

	select {
	case who := <-syncer.synced:
		assert.Equal(t, "12345", who)
	case <-time.After(5 * time.Second):
		t.Fatal("one-off sync never ran")
	}
}

func TestSubjectSyncErrors(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &fakeController{}, &fakeSubjectSyncer{synced: make(chan string, 1)}, store.NewMemoryStore(), nil)

	status, _ := doJSON(t, http.MethodPost, srv.URL+"/api/v1/subjects/not-a-uuid/sync")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, http.MethodPost, srv.URL+"/api/v1/subjects/"+uuid.NewString()+"/sync")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubjectPayroll(t *testing.T) {
	t.Parallel()

	mem := store.NewMemoryStore()
	subject := store.Subject{ID: uuid.New(), EmployeeNumber: "12345"}
	mem.AddSubject(subject)

	ctx := context.Background()
	require.NoError(t, mem.ReconcileDay(ctx, func(w store.DayWriter) error {
		set := shifts.Canonicalize([]shifts.Shift{{Start: "09:00", End: "14:00"}})
		if _, err := w.InsertActive(ctx, subject.ID, time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC), set); err != nil {
			return err
		}
		_, err := w.InsertActive(ctx, subject.ID, time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC), nil)
		return err
	}))

	payrollCfg := &config.PayrollConfig{Rates: payroll.Rates{HourlyBase: 10, Transport: 5}}
	srv := newTestServer(t, &fakeController{}, nil, mem, payrollCfg)

	status, body := doJSON(t, http.MethodGet,
		srv.URL+"/api/v1/subjects/"+subject.ID.String()+"/payroll?month=2026-09")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2026-09", body["month"])
	assert.Equal(t, float64(1), body["workedDays"])

	breakdown, ok := body["breakdown"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(55), breakdown["total"])

	t.Run("bad month", func(t *testing.T) {
		t.Parallel()
		status, _ := doJSON(t, http.MethodGet,
			srv.URL+"/api/v1/subjects/"+subject.ID.String()+"/payroll?month=september")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("rates not configured", func(t *testing.T) {
		t.Parallel()
		bare := newTestServer(t, &fakeController{}, nil, mem, nil)
		status, _ := doJSON(t, http.MethodGet,
			bare.URL+"/api/v1/subjects/"+subject.ID.String()+"/payroll?month=2026-09")
		assert.Equal(t, http.StatusNotFound, status)
	})
}
