// Package sync implements the shift reconciliation engine: a per-day state
// machine, a per-subject worker and the background scheduler driving it.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shiftsync/shiftsync/internal/calendar"
	"github.com/shiftsync/shiftsync/internal/notify"
	"github.com/shiftsync/shiftsync/internal/shifts"
	"github.com/shiftsync/shiftsync/internal/store"
)

// Reconciler applies one day's freshly fetched shifts to the stored state.
// Mutations for a day happen in a single transaction; side effects (calendar
// deletions, notifications) are collected during the transaction and issued
// only after it commits, and only on actual state changes.
type Reconciler struct {
	store    store.Store
	calendar calendar.Gateway // nil disables event cleanup
	notifier notify.Sink      // nil disables notifications
}

// NewReconciler creates a Reconciler. calendar and notifier may be nil.
func NewReconciler(st store.Store, cal calendar.Gateway, sink notify.Sink) *Reconciler {
	return &Reconciler{store: st, calendar: cal, notifier: sink}
}

// sideEffects is what a committed transition owes the outside world.
type sideEffects struct {
	deleteEventIDs []string
	notifyBefore   shifts.ShiftSet
	notifyAfter    shifts.ShiftSet
	notify         bool
}

// ReconcileDay brings the stored state for (subject, day) in line with the
// fetched set. It returns whether anything changed. The incoming set must
// already be canonical.
func (r *Reconciler) ReconcileDay(ctx context.Context, subject store.Subject, day time.Time, incoming shifts.ShiftSet) (bool, error) {
	day = store.NormalizeDay(day)

	var (
		changed bool
		effects sideEffects
	)

	err := r.store.ReconcileDay(ctx, func(w store.DayWriter) error {
		active, err := w.GetActive(ctx, subject.ID, day)
		switch {
		case errors.Is(err, store.ErrNotFound):
			// No record yet; materialize one, free day or not.
			changed = true
			return r.activate(ctx, w, subject.ID, day, incoming)
		case err != nil:
			return err
		}

		if shifts.Equal(active.Shifts, incoming) {
			return nil
		}

		if err := w.DeactivateActive(ctx, subject.ID, day); err != nil {
			return err
		}
		changed = true
		effects.deleteEventIDs = active.CalendarEventIDs
		effects.notify = true
		effects.notifyBefore = active.Shifts
		effects.notifyAfter = incoming

		return r.activate(ctx, w, subject.ID, day, incoming)
	})
	if err != nil {
		return false, err
	}

	if changed {
		r.applySideEffects(ctx, subject, day, effects)
	}
	return changed, nil
}

// activate makes incoming the day's active record. Non-empty sets prefer
// reactivating an inactive record with identical shifts, which keeps the
// calendar events already attached to it.
func (r *Reconciler) activate(ctx context.Context, w store.DayWriter, subjectID uuid.UUID, day time.Time, incoming shifts.ShiftSet) error {
	if incoming.IsFree() {
		_, err := w.InsertActive(ctx, subjectID, day, nil)
		return err
	}

	match, err := w.GetInactiveMatching(ctx, subjectID, day, incoming)
	switch {
	case errors.Is(err, store.ErrNotFound):
		_, err = w.InsertActive(ctx, subjectID, day, incoming)
		return err
	case err != nil:
		return err
	}
	return w.Reactivate(ctx, match.ID)
}

// applySideEffects issues the post-commit side effects. Failures are logged
// and swallowed: the state transition already committed and repeating it
// would violate idempotence.
func (r *Reconciler) applySideEffects(ctx context.Context, subject store.Subject, day time.Time, effects sideEffects) {
	if r.calendar != nil {
		for _, eventID := range effects.deleteEventIDs {
			if err := r.calendar.DeleteEvent(ctx, eventID); err != nil {
				slog.Warn("failed to delete calendar event",
					"subject", subject.EmployeeNumber,
					"day", day.Format("2006-01-02"),
					"event_id", eventID,
					"error", err)
			}
		}
	}

	if r.notifier != nil && effects.notify {
		msg := notify.Message{
			Title:    fmt.Sprintf("Schedule changed for %s", day.Format("2006-01-02")),
			Body:     changeBody(effects.notifyBefore, effects.notifyAfter),
			Priority: 4,
			Tags:     []string{"calendar"},
		}
		if err := r.notifier.Publish(ctx, msg); err != nil {
			slog.Warn("failed to publish change notification",
				"subject", subject.EmployeeNumber,
				"day", day.Format("2006-01-02"),
				"error", err)
		}
	}
}

func changeBody(before, after shifts.ShiftSet) string {
	return fmt.Sprintf("Before: %s\nAfter: %s", describe(before), describe(after))
}

func describe(set shifts.ShiftSet) string {
	if set.IsFree() {
		return "free day"
	}
	out := ""
	for i, s := range set {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s-%s %s", s.Start, s.End, s.RoleCode)
	}
	return out
}
