package sync

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/shiftsync/shiftsync/internal/calendar"
	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/roster"
	"github.com/shiftsync/shiftsync/internal/shifts"
	"github.com/shiftsync/shiftsync/internal/store"
)

const dayFormat = "2006-01-02"

// recordResultTimeout bounds the sync-status cleanup write, which runs
// detached from the sync context.
const recordResultTimeout = 10 * time.Second

// Outcome is the result of one subject sync.
type Outcome struct {
	// DaysReconciled counts the days processed.
	DaysReconciled int
	// DaysChanged counts the days whose stored state actually changed.
	DaysChanged int
	// NoShifts is set when the roster returned an empty day list. Not an
	// error, but worth surfacing.
	NoShifts bool
}

// WorkerConfig tunes a Worker. Zero values fall back to the documented
// defaults.
type WorkerConfig struct {
	// MaxRetries is the total attempt ceiling for a roster fetch.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timezone is the zone calendar events are created in.
	Timezone *time.Location
}

// Worker syncs a single subject: fetch the roster with retries, reconcile
// every returned day, then create calendar events for days that lack them.
type Worker struct {
	store      store.Store
	roster     roster.Client
	cipher     *credentials.Cipher
	reconciler *Reconciler
	calendar   calendar.Gateway // nil disables event creation
	maxRetries uint
	retryDelay time.Duration
	timezone   *time.Location
	now        func() time.Time
}

// NewWorker creates a Worker. cal may be nil when no calendar service is
// configured.
func NewWorker(st store.Store, rc roster.Client, cipher *credentials.Cipher, rec *Reconciler, cal calendar.Gateway, cfg WorkerConfig) *Worker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	return &Worker{
		store:      st,
		roster:     rc,
		cipher:     cipher,
		reconciler: rec,
		calendar:   cal,
		maxRetries: uint(cfg.MaxRetries),
		retryDelay: cfg.RetryDelay,
		timezone:   cfg.Timezone,
		now:        time.Now,
	}
}

// Sync runs one full sync pass for the subject. It never panics and never
// returns a raw error: failures come back as a typed *Error. The subject's
// in-progress flag is cleared and the attempt recorded no matter how the
// pass ends.
func (w *Worker) Sync(ctx context.Context, subject store.Subject) (outcome Outcome, syncErr *Error) {
	defer func() {
		if rec := recover(); rec != nil {
			syncErr = newError(ErrorKindUnexpected, "panic during sync: %v", rec)
			slog.Error("sync panicked",
				"subject", subject.EmployeeNumber,
				"panic", rec)
		}
	}()

	if err := w.store.SetSyncInProgress(ctx, subject.ID, true); err != nil {
		return Outcome{}, &Error{Kind: ErrorKindPersistenceFailure, Message: "failed to flag sync start", Err: err}
	}
	defer func() {
		var msg *string
		if syncErr != nil {
			m := syncErr.Truncated()
			msg = &m
		}
		// The cleanup write must land even when ctx was cancelled by a
		// scheduler stop mid-pass, or the in-progress flag stays stuck.
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordResultTimeout)
		defer cancel()
		if err := w.store.RecordSyncResult(cleanupCtx, subject.ID, msg); err != nil {
			slog.Error("failed to record sync result",
				"subject", subject.EmployeeNumber,
				"error", err)
		}
	}()

	if subject.Credentials == nil {
		return Outcome{}, newError(ErrorKindCredentialsMissing, "subject has no stored roster credentials")
	}
	creds, err := subject.Credentials.Reveal(w.cipher)
	if err != nil {
		return Outcome{}, Classify(err)
	}

	// The fetch window runs from right now through the last day of the
	// next calendar month, recomputed on every call.
	from := w.now()
	to := endOfNextMonth(from)

	days, err := w.fetchWithRetry(ctx, creds, from, to)
	if err != nil {
		return Outcome{}, Classify(err)
	}

	if len(days) == 0 {
		slog.Warn("roster returned no days", "subject", subject.EmployeeNumber)
		return Outcome{NoShifts: true}, nil
	}

	// Days are reconciled in roster order. A persistence failure aborts
	// the subject's remaining days for this pass.
	for _, d := range days {
		day, err := time.Parse(dayFormat, d.Date)
		if err != nil {
			return outcome, newError(ErrorKindMalformedResponse, "roster day has invalid date %q", d.Date)
		}
		changed, err := w.reconciler.ReconcileDay(ctx, subject, day, shifts.Canonicalize(d.Shifts))
		if err != nil {
			return outcome, &Error{Kind: ErrorKindPersistenceFailure, Message: fmt.Sprintf("failed to reconcile %s", d.Date), Err: err}
		}
		outcome.DaysReconciled++
		if changed {
			outcome.DaysChanged++
		}
	}

	w.createMissingEvents(ctx, subject)

	return outcome, nil
}

// fetchWithRetry authenticates and fetches the roster, retrying timeouts
// with a fixed delay up to the attempt ceiling. Waits respect ctx, so a
// scheduler stop interrupts them.
func (w *Worker) fetchWithRetry(ctx context.Context, creds credentials.Credentials, from, to time.Time) ([]roster.Day, error) {
	attempt := 0
	op := func() ([]roster.Day, error) {
		attempt++
		if attempt > 1 {
			slog.Info("retrying roster fetch", "attempt", attempt, "of", w.maxRetries)
		}

		token, err := w.roster.Authenticate(ctx, creds)
		if err != nil {
			return nil, retryableOrPermanent(err)
		}
		days, err := w.roster.FetchRoster(ctx, token, creds, from, to)
		if err != nil {
			return nil, retryableOrPermanent(err)
		}
		return days, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(w.retryDelay)),
		backoff.WithMaxTries(w.maxRetries),
	)
}

// retryableOrPermanent classifies err and wraps non-retryable kinds so the
// backoff loop stops immediately.
func retryableOrPermanent(err error) error {
	classified := Classify(err)
	if classified.Retryable() {
		return classified
	}
	return backoff.Permanent(classified)
}

// createMissingEvents creates one calendar event per shift for active
// records that have shifts but no events yet. Event creation is best
// effort; ids that were created are persisted even if later ones fail so
// the next pass does not duplicate them.
func (w *Worker) createMissingEvents(ctx context.Context, subject store.Subject) {
	if w.calendar == nil {
		return
	}

	records, err := w.store.ListActiveMissingEvents(ctx, subject.ID)
	if err != nil {
		slog.Warn("failed to list records missing calendar events",
			"subject", subject.EmployeeNumber,
			"error", err)
		return
	}

	for _, record := range records {
		var eventIDs []string
		for _, shift := range record.Shifts {
			ev, err := w.buildEvent(subject, record.Day, shift)
			if err != nil {
				slog.Warn("skipping calendar event with invalid times",
					"subject", subject.EmployeeNumber,
					"day", record.Day.Format(dayFormat),
					"error", err)
				continue
			}
			id, err := w.calendar.CreateEvent(ctx, ev)
			if err != nil {
				slog.Warn("failed to create calendar event",
					"subject", subject.EmployeeNumber,
					"day", record.Day.Format(dayFormat),
					"error", err)
				break
			}
			eventIDs = append(eventIDs, id)
		}
		if len(eventIDs) == 0 {
			continue
		}
		if err := w.store.SetEventIDs(ctx, record.ID, eventIDs); err != nil {
			slog.Error("failed to persist calendar event ids",
				"subject", subject.EmployeeNumber,
				"day", record.Day.Format(dayFormat),
				"error", err)
		}
	}
}

func (w *Worker) buildEvent(subject store.Subject, day time.Time, shift shifts.Shift) (calendar.Event, error) {
	start, err := clockOn(day, shift.Start, w.timezone)
	if err != nil {
		return calendar.Event{}, err
	}
	end, err := clockOn(day, shift.End, w.timezone)
	if err != nil {
		return calendar.Event{}, err
	}
	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
	}

	summary := "Shift"
	if shift.RoleCode != "" {
		summary = "Shift " + shift.RoleCode
	}
	return calendar.Event{
		Summary:  fmt.Sprintf("%s (%s)", summary, subject.EmployeeNumber),
		Location: shift.WorkingArea,
		Start:    start,
		End:      end,
		Timezone: w.timezone.String(),
	}, nil
}

// clockOn places a "HH:MM" clock time on the given day in loc.
func clockOn(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	hh, mm, ok := strings.Cut(clock, ":")
	if !ok {
		return time.Time{}, fmt.Errorf("invalid clock time %q", clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return time.Time{}, fmt.Errorf("invalid clock time %q", clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return time.Time{}, fmt.Errorf("invalid clock time %q", clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc), nil
}

// endOfNextMonth returns the last day of the month after t's month.
func endOfNextMonth(t time.Time) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return firstOfMonth.AddDate(0, 2, 0).AddDate(0, 0, -1)
}
