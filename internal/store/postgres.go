package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/db/sqlc"
	"github.com/shiftsync/shiftsync/internal/shifts"
)

type pgStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a database-backed Store over the given pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) UpsertSubject(ctx context.Context, employeeNumber, fullName string) (Subject, error) {
	row, err := sqlc.New(s.pool).CreateSubject(ctx, sqlc.CreateSubjectParams{
		EmployeeNumber: employeeNumber,
		FullName:       fullName,
	})
	if err != nil {
		return Subject{}, fmt.Errorf("failed to upsert subject: %w", err)
	}
	return Subject{
		ID:             row.ID,
		EmployeeNumber: row.EmployeeNumber,
		FullName:       row.FullName,
	}, nil
}

func (s *pgStore) SetCredentials(ctx context.Context, subjectID uuid.UUID, enc credentials.Encrypted) error {
	err := sqlc.New(s.pool).UpsertRosterCredential(ctx, sqlc.UpsertRosterCredentialParams{
		SubjectID:        subjectID,
		Username:         enc.Username,
		SiteID:           enc.SiteID,
		TenantID:         enc.TenantID,
		SecretCiphertext: enc.SecretCiphertext,
	})
	if err != nil {
		return fmt.Errorf("failed to store roster credential: %w", err)
	}
	return nil
}

func (s *pgStore) ListEligibleSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := sqlc.New(s.pool).ListEligibleSubjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}

	subjects := make([]Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, Subject{
			ID:             r.ID,
			EmployeeNumber: r.EmployeeNumber,
			FullName:       r.FullName,
			Credentials: &credentials.Encrypted{
				Username:         r.Username,
				SiteID:           r.SiteID,
				TenantID:         r.TenantID,
				SecretCiphertext: r.SecretCiphertext,
			},
		})
	}
	return subjects, nil
}

func (s *pgStore) GetSubject(ctx context.Context, id uuid.UUID) (Subject, error) {
	queries := sqlc.New(s.pool)

	row, err := queries.GetSubject(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subject{}, ErrNotFound
		}
		return Subject{}, fmt.Errorf("failed to get subject: %w", err)
	}

	subject := Subject{
		ID:             row.ID,
		EmployeeNumber: row.EmployeeNumber,
		FullName:       row.FullName,
	}

	cred, err := queries.GetRosterCredential(ctx, id)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		// Subject exists but cannot be synced.
	case err != nil:
		return Subject{}, fmt.Errorf("failed to get roster credential: %w", err)
	default:
		subject.Credentials = &credentials.Encrypted{
			Username:         cred.Username,
			SiteID:           cred.SiteID,
			TenantID:         cred.TenantID,
			SecretCiphertext: cred.SecretCiphertext,
		}
	}

	return subject, nil
}

func (s *pgStore) SetSyncInProgress(ctx context.Context, id uuid.UUID, inProgress bool) error {
	err := sqlc.New(s.pool).SetSubjectSyncInProgress(ctx, sqlc.SetSubjectSyncInProgressParams{
		ID:             id,
		SyncInProgress: inProgress,
	})
	if err != nil {
		return fmt.Errorf("failed to set sync in-progress flag: %w", err)
	}
	return nil
}

func (s *pgStore) RecordSyncResult(ctx context.Context, id uuid.UUID, syncErr *string) error {
	err := sqlc.New(s.pool).RecordSubjectSyncResult(ctx, sqlc.RecordSubjectSyncResultParams{
		ID:            id,
		SyncLastError: syncErr,
	})
	if err != nil {
		return fmt.Errorf("failed to record sync result: %w", err)
	}
	return nil
}

func (s *pgStore) ReconcileDay(ctx context.Context, fn func(DayWriter) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	writer := &pgDayWriter{queries: sqlc.New(s.pool).WithTx(tx)}
	if err := fn(writer); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *pgStore) ListActiveMissingEvents(ctx context.Context, subjectID uuid.UUID) ([]DayRecord, error) {
	rows, err := sqlc.New(s.pool).ListActiveDayRecordsMissingEvents(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records missing events: %w", err)
	}
	return convertDayRecords(rows)
}

func (s *pgStore) SetEventIDs(ctx context.Context, recordID uuid.UUID, eventIDs []string) error {
	err := sqlc.New(s.pool).SetDayRecordEventIDs(ctx, sqlc.SetDayRecordEventIDsParams{
		ID:               recordID,
		CalendarEventIds: eventIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to set calendar event ids: %w", err)
	}
	return nil
}

func (s *pgStore) ListActiveInRange(ctx context.Context, subjectID uuid.UUID, from, to time.Time) ([]DayRecord, error) {
	rows, err := sqlc.New(s.pool).ListActiveDayRecordsInRange(ctx, sqlc.ListActiveDayRecordsInRangeParams{
		SubjectID: subjectID,
		FromDay:   NormalizeDay(from),
		ToDay:     NormalizeDay(to),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list records in range: %w", err)
	}
	return convertDayRecords(rows)
}

type pgDayWriter struct {
	queries *sqlc.Queries
}

func (w *pgDayWriter) GetActive(ctx context.Context, subjectID uuid.UUID, day time.Time) (DayRecord, error) {
	row, err := w.queries.GetActiveDayRecord(ctx, sqlc.GetActiveDayRecordParams{
		SubjectID: subjectID,
		Day:       NormalizeDay(day),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DayRecord{}, ErrNotFound
		}
		return DayRecord{}, fmt.Errorf("failed to get active day record: %w", err)
	}
	return convertDayRecord(row)
}

func (w *pgDayWriter) GetInactiveMatching(ctx context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error) {
	serialized, err := set.Serialize()
	if err != nil {
		return DayRecord{}, err
	}
	row, err := w.queries.GetInactiveMatchingDayRecord(ctx, sqlc.GetInactiveMatchingDayRecordParams{
		SubjectID: subjectID,
		Day:       NormalizeDay(day),
		Shifts:    &serialized,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DayRecord{}, ErrNotFound
		}
		return DayRecord{}, fmt.Errorf("failed to get inactive day record: %w", err)
	}
	return convertDayRecord(row)
}

func (w *pgDayWriter) DeactivateActive(ctx context.Context, subjectID uuid.UUID, day time.Time) error {
	err := w.queries.DeactivateActiveDayRecords(ctx, sqlc.DeactivateActiveDayRecordsParams{
		SubjectID: subjectID,
		Day:       NormalizeDay(day),
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate day record: %w", err)
	}
	return nil
}

func (w *pgDayWriter) InsertActive(ctx context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error) {
	// Free days are stored with null shifts.
	var stored *string
	if !set.IsFree() {
		serialized, err := set.Serialize()
		if err != nil {
			return DayRecord{}, err
		}
		stored = &serialized
	}
	row, err := w.queries.InsertDayRecord(ctx, sqlc.InsertDayRecordParams{
		SubjectID: subjectID,
		Day:       NormalizeDay(day),
		Shifts:    stored,
	})
	if err != nil {
		return DayRecord{}, fmt.Errorf("failed to insert day record: %w", err)
	}
	return convertDayRecord(row)
}

func (w *pgDayWriter) Reactivate(ctx context.Context, id uuid.UUID) error {
	if err := w.queries.ReactivateDayRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to reactivate day record: %w", err)
	}
	return nil
}

func convertDayRecord(row sqlc.DayRecord) (DayRecord, error) {
	var (
		set shifts.ShiftSet
		err error
	)
	if row.Shifts != nil {
		set, err = shifts.Parse(*row.Shifts)
		if err != nil {
			return DayRecord{}, fmt.Errorf("day record %s: %w", row.ID, err)
		}
	}
	return DayRecord{
		ID:               row.ID,
		SubjectID:        row.SubjectID,
		Day:              NormalizeDay(row.Day),
		Shifts:           set,
		Active:           row.Active,
		CalendarEventIDs: row.CalendarEventIds,
	}, nil
}

func convertDayRecords(rows []sqlc.DayRecord) ([]DayRecord, error) {
	out := make([]DayRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := convertDayRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
