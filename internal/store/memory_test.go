package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/shifts"
)

var morning = shifts.Canonicalize([]shifts.Shift{
	{Start: "06:00", End: "14:00", RoleCode: "CHK", WorkingArea: "T1"},
})

func day(d int) time.Time {
	return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC)
}

func TestMemoryStoreSubjects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemoryStore()
	withCreds := Subject{ID: uuid.New(), EmployeeNumber: "100", Credentials: &credentials.Encrypted{Username: "100"}}
	withoutCreds := Subject{ID: uuid.New(), EmployeeNumber: "200"}
	m.AddSubject(withCreds)
	m.AddSubject(withoutCreds)

	eligible, err := m.ListEligibleSubjects(ctx)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, "100", eligible[0].EmployeeNumber)

	got, err := m.GetSubject(ctx, withoutCreds.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Credentials)

	_, err = m.GetSubject(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreSyncStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	m := NewMemoryStore()
	id := uuid.New()

	require.NoError(t, m.SetSyncInProgress(ctx, id, true))
	assert.True(t, m.SyncStatusFor(id).InProgress)

	msg := "boom"
	require.NoError(t, m.RecordSyncResult(ctx, id, &msg))
	st := m.SyncStatusFor(id)
	assert.False(t, st.InProgress)
	require.NotNil(t, st.LastError)
	assert.Equal(t, "boom", *st.LastError)
	assert.Nil(t, st.LastSuccess)

	require.NoError(t, m.RecordSyncResult(ctx, id, nil))
	st = m.SyncStatusFor(id)
	assert.Nil(t, st.LastError)
	assert.NotNil(t, st.LastSuccess)
}

func TestMemoryStoreReconcileDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	subjectID := uuid.New()

	t.Run("insert and read back", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryStore()

		err := m.ReconcileDay(ctx, func(w DayWriter) error {
			_, err := w.InsertActive(ctx, subjectID, day(1), morning)
			return err
		})
		require.NoError(t, err)

		err = m.ReconcileDay(ctx, func(w DayWriter) error {
			rec, err := w.GetActive(ctx, subjectID, day(1))
			require.NoError(t, err)
			assert.True(t, shifts.Equal(morning, rec.Shifts))
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryStore()

		err := m.ReconcileDay(ctx, func(w DayWriter) error {
			if _, err := w.InsertActive(ctx, subjectID, day(1), morning); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)
		assert.Empty(t, m.Records())
	})

	t.Run("deactivate then reactivate", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryStore()

		var recID uuid.UUID
		require.NoError(t, m.ReconcileDay(ctx, func(w DayWriter) error {
			rec, err := w.InsertActive(ctx, subjectID, day(1), morning)
			recID = rec.ID
			return err
		}))

		require.NoError(t, m.ReconcileDay(ctx, func(w DayWriter) error {
			return w.DeactivateActive(ctx, subjectID, day(1))
		}))

		require.NoError(t, m.ReconcileDay(ctx, func(w DayWriter) error {
			_, err := w.GetActive(ctx, subjectID, day(1))
			assert.ErrorIs(t, err, ErrNotFound)

			match, err := w.GetInactiveMatching(ctx, subjectID, day(1), morning)
			require.NoError(t, err)
			assert.Equal(t, recID, match.ID)
			return w.Reactivate(ctx, match.ID)
		}))

		recs := m.Records()
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Active)
	})
}

func TestMemoryStoreEventQueries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	subjectID := uuid.New()

	m := NewMemoryStore()
	var withShifts DayRecord
	require.NoError(t, m.ReconcileDay(ctx, func(w DayWriter) error {
		var err error
		if withShifts, err = w.InsertActive(ctx, subjectID, day(2), morning); err != nil {
			return err
		}
		_, err = w.InsertActive(ctx, subjectID, day(3), shifts.ShiftSet{})
		return err
	}))

	missing, err := m.ListActiveMissingEvents(ctx, subjectID)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, withShifts.ID, missing[0].ID)

	require.NoError(t, m.SetEventIDs(ctx, withShifts.ID, []string{"ev-1"}))

	missing, err = m.ListActiveMissingEvents(ctx, subjectID)
	require.NoError(t, err)
	assert.Empty(t, missing)

	inRange, err := m.ListActiveInRange(ctx, subjectID, day(1), day(2))
	require.NoError(t, err)
	require.Len(t, inRange, 1)
	assert.Equal(t, []string{"ev-1"}, inRange[0].CalendarEventIDs)
}
