// Package store defines the persistence boundary of the sync engine and
// its PostgreSQL-backed implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/shifts"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Subject is a person whose roster gets synced.
type Subject struct {
	ID             uuid.UUID
	EmployeeNumber string
	FullName       string
	// Credentials is nil when the subject has no stored roster login,
	// which makes the subject ineligible for sync.
	Credentials *credentials.Encrypted
}

// SyncStatus is the per-subject record of the last sync attempt.
type SyncStatus struct {
	InProgress  bool
	LastError   *string
	LastAttempt *time.Time
	LastSuccess *time.Time
}

// DayRecord is one stored day of a subject's schedule. At most one record
// per (subject, day) is active at any time.
type DayRecord struct {
	ID               uuid.UUID
	SubjectID        uuid.UUID
	Day              time.Time
	Shifts           shifts.ShiftSet
	Active           bool
	CalendarEventIDs []string
}

// DayWriter is the view of the store available inside a reconciliation
// transaction. Reads lock the rows they return; every mutation is atomic
// with the rest of the transaction.
type DayWriter interface {
	// GetActive returns the active record for the day, or ErrNotFound.
	GetActive(ctx context.Context, subjectID uuid.UUID, day time.Time) (DayRecord, error)
	// GetInactiveMatching returns the most recently updated inactive record
	// for the day whose shifts equal set, or ErrNotFound.
	GetInactiveMatching(ctx context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error)
	// DeactivateActive marks any active record for the day inactive.
	DeactivateActive(ctx context.Context, subjectID uuid.UUID, day time.Time) error
	// InsertActive creates a new active record for the day.
	InsertActive(ctx context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error)
	// Reactivate marks the identified record active again.
	Reactivate(ctx context.Context, id uuid.UUID) error
}

// Store is the persistence boundary of the sync engine.
type Store interface {
	// UpsertSubject creates the subject for the employee number, or
	// updates its name, and returns it.
	UpsertSubject(ctx context.Context, employeeNumber, fullName string) (Subject, error)

	// SetCredentials stores the subject's encrypted roster login,
	// replacing any previous one.
	SetCredentials(ctx context.Context, subjectID uuid.UUID, enc credentials.Encrypted) error

	// ListEligibleSubjects returns the subjects that have stored roster
	// credentials, in stable order.
	ListEligibleSubjects(ctx context.Context) ([]Subject, error)

	// GetSubject loads a single subject with credentials, or ErrNotFound.
	GetSubject(ctx context.Context, id uuid.UUID) (Subject, error)

	// SetSyncInProgress flips the subject's in-progress flag.
	SetSyncInProgress(ctx context.Context, id uuid.UUID, inProgress bool) error

	// RecordSyncResult clears the in-progress flag and records the attempt;
	// a nil syncErr marks the attempt successful.
	RecordSyncResult(ctx context.Context, id uuid.UUID, syncErr *string) error

	// ReconcileDay runs fn inside a single transaction. If fn returns an
	// error the transaction is rolled back and the error returned.
	ReconcileDay(ctx context.Context, fn func(DayWriter) error) error

	// ListActiveMissingEvents returns the subject's active records that
	// have shifts but no calendar events yet, ordered by day.
	ListActiveMissingEvents(ctx context.Context, subjectID uuid.UUID) ([]DayRecord, error)

	// SetEventIDs records the calendar event ids created for a record.
	SetEventIDs(ctx context.Context, recordID uuid.UUID, eventIDs []string) error

	// ListActiveInRange returns the subject's active records with
	// from <= day <= to, ordered by day.
	ListActiveInRange(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]DayRecord, error)
}

// NormalizeDay truncates a timestamp to its calendar date at midnight UTC,
// the form day keys are stored in.
func NormalizeDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
