package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shiftsync/shiftsync/internal/config"
	"github.com/shiftsync/shiftsync/internal/payroll"
	"github.com/shiftsync/shiftsync/internal/store"
	"github.com/shiftsync/shiftsync/internal/sync"
)

// monthFormat parses the ?month query parameter.
const monthFormat = "2006-01"

// SyncController is the scheduler surface exposed over HTTP.
type SyncController interface {
	Start()
	Stop()
	Running() bool
	Stats() sync.CycleStats
}

// SubjectSyncer runs a one-off sync for a single subject.
type SubjectSyncer interface {
	Sync(ctx context.Context, subject store.Subject) (sync.Outcome, *sync.Error)
}

// Handlers bundles the dependencies of the HTTP endpoints.
type Handlers struct {
	controller SyncController
	syncer     SubjectSyncer
	store      store.Store
	payrollCfg *config.PayrollConfig // nil disables payroll queries
}

// NewHandlers creates the endpoint handlers. payrollCfg may be nil.
func NewHandlers(controller SyncController, syncer SubjectSyncer, st store.Store, payrollCfg *config.PayrollConfig) *Handlers {
	return &Handlers{
		controller: controller,
		syncer:     syncer,
		store:      st,
		payrollCfg: payrollCfg,
	}
}

func (*Handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) syncStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Stats())
}

func (h *Handlers) syncStart(w http.ResponseWriter, _ *http.Request) {
	if h.controller.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already running"})
		return
	}
	h.controller.Start()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) syncStop(w http.ResponseWriter, _ *http.Request) {
	if !h.controller.Running() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already stopped"})
		return
	}
	h.controller.Stop()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopped"})
}

// subjectSync triggers an immediate one-off sync for a single subject. The
// sync runs in its own goroutine; the per-day transaction in the store
// keeps it safe against a concurrently running scheduled cycle.
func (h *Handlers) subjectSync(w http.ResponseWriter, r *http.Request) {
	subject, ok := h.lookupSubject(w, r)
	if !ok {
		return
	}

	go func() {
		// Detached from the request: the sync outlives the HTTP response.
		outcome, syncErr := h.syncer.Sync(context.Background(), subject)
		if syncErr != nil {
			slog.Error("one-off subject sync failed",
				"subject", subject.EmployeeNumber,
				"kind", syncErr.Kind,
				"error", syncErr)
			return
		}
		slog.Info("one-off subject sync finished",
			"subject", subject.EmployeeNumber,
			"days", outcome.DaysReconciled,
			"changed", outcome.DaysChanged)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

// subjectPayroll computes the pay breakdown for a subject's active days in
// the requested month.
func (h *Handlers) subjectPayroll(w http.ResponseWriter, r *http.Request) {
	if h.payrollCfg == nil {
		writeError(w, http.StatusNotFound, "payroll rates are not configured")
		return
	}

	subject, ok := h.lookupSubject(w, r)
	if !ok {
		return
	}

	month, err := time.Parse(monthFormat, r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be given as YYYY-MM")
		return
	}
	from := month
	to := month.AddDate(0, 1, -1)

	records, err := h.store.ListActiveInRange(r.Context(), subject.ID, from, to)
	if err != nil {
		slog.Error("failed to list day records for payroll", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load day records")
		return
	}

	var total payroll.Breakdown
	workedDays := 0
	for _, rec := range records {
		date := rec.Day.Format("2006-01-02")
		b, err := payroll.ComputeDay(rec.Day, rec.Shifts, h.payrollCfg.Rates, h.payrollCfg.IsHoliday(date))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("day %s: %v", date, err))
			return
		}
		if !rec.Shifts.IsFree() {
			workedDays++
		}
		total.Add(b)
	}

	writeJSON(w, http.StatusOK, payrollResponse{
		SubjectID:  subject.ID,
		Month:      month.Format(monthFormat),
		WorkedDays: workedDays,
		Breakdown:  total,
	})
}

type payrollResponse struct {
	SubjectID  uuid.UUID         `json:"subjectId"`
	Month      string            `json:"month"`
	WorkedDays int               `json:"workedDays"`
	Breakdown  payroll.Breakdown `json:"breakdown"`
}

func (h *Handlers) lookupSubject(w http.ResponseWriter, r *http.Request) (store.Subject, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "subject id must be a UUID")
		return store.Subject{}, false
	}

	subject, err := h.store.GetSubject(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "subject not found")
		return store.Subject{}, false
	case err != nil:
		slog.Error("failed to load subject", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load subject")
		return store.Subject{}, false
	}
	return subject, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
