package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftsync/shiftsync/internal/shifts"
	"github.com/shiftsync/shiftsync/internal/store"
)

var (
	testDay = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	morningSet = shifts.Canonicalize([]shifts.Shift{
		{Start: "06:00", End: "14:00", RoleCode: "CHK", WorkingArea: "T1"},
	})
	eveningSet = shifts.Canonicalize([]shifts.Shift{
		{Start: "15:00", End: "23:00", RoleCode: "CHK", WorkingArea: "T2"},
	})
)

func testSubject() store.Subject {
	return store.Subject{ID: uuid.New(), EmployeeNumber: "12345", FullName: "Test Person"}
}

// activeRecords filters the store snapshot down to active rows for a day.
func activeRecords(t *testing.T, m interface{ Records() []store.DayRecord }, day time.Time) []store.DayRecord {
	t.Helper()
	var out []store.DayRecord
	for _, r := range m.Records() {
		if r.Active && r.Day.Equal(day) {
			out = append(out, r)
		}
	}
	return out
}

func TestReconcileDayNewRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("with shifts", func(t *testing.T) {
		t.Parallel()
		mem := store.NewMemoryStore()
		gw := &fakeGateway{}
		sink := &fakeSink{}
		r := NewReconciler(mem, gw, sink)

		changed, err := r.ReconcileDay(ctx, testSubject(), testDay, morningSet)
		require.NoError(t, err)
		assert.True(t, changed)

		recs := mem.Records()
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Active)
		assert.True(t, shifts.Equal(morningSet, recs[0].Shifts))

		// A brand new day triggers no deletions and no notifications.
		assert.Empty(t, gw.deletedIDs())
		assert.Empty(t, sink.published())
	})

	t.Run("free day", func(t *testing.T) {
		t.Parallel()
		mem := store.NewMemoryStore()
		r := NewReconciler(mem, nil, nil)

		changed, err := r.ReconcileDay(ctx, testSubject(), testDay, shifts.ShiftSet{})
		require.NoError(t, err)
		assert.True(t, changed)

		recs := mem.Records()
		require.Len(t, recs, 1)
		assert.True(t, recs[0].Active)
		assert.True(t, recs[0].Shifts.IsFree())
	})
}

func TestReconcileDayIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	sink := &fakeSink{}
	r := NewReconciler(mem, gw, sink)
	subject := testSubject()

	for _, set := range []shifts.ShiftSet{morningSet, shifts.ShiftSet{}} {
		day := testDay
		if set.IsFree() {
			day = testDay.AddDate(0, 0, 1)
		}

		changed, err := r.ReconcileDay(ctx, subject, day, set)
		require.NoError(t, err)
		assert.True(t, changed)

		// Second call with the same input must be a pure no-op.
		changed, err = r.ReconcileDay(ctx, subject, day, set)
		require.NoError(t, err)
		assert.False(t, changed)
	}

	assert.Len(t, mem.Records(), 2)
	assert.Empty(t, gw.deletedIDs())
	assert.Empty(t, sink.published())
}

func TestReconcileDayChange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	sink := &fakeSink{}
	r := NewReconciler(mem, gw, sink)
	subject := testSubject()

	changed, err := r.ReconcileDay(ctx, subject, testDay, morningSet)
	require.NoError(t, err)
	require.True(t, changed)

	// Attach calendar events to the active record, as the worker would.
	recs := mem.Records()
	require.Len(t, recs, 1)
	require.NoError(t, mem.SetEventIDs(ctx, recs[0].ID, []string{"ev-a", "ev-b"}))

	changed, err = r.ReconcileDay(ctx, subject, testDay, eveningSet)
	require.NoError(t, err)
	assert.True(t, changed)

	// Old events deleted, change notified.
	assert.ElementsMatch(t, []string{"ev-a", "ev-b"}, gw.deletedIDs())
	msgs := sink.published()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "06:00-14:00")
	assert.Contains(t, msgs[0].Body, "15:00-23:00")

	// Exactly one active record remains, carrying the new shifts.
	active := activeRecords(t, mem, testDay)
	require.Len(t, active, 1)
	assert.True(t, shifts.Equal(eveningSet, active[0].Shifts))

	// The superseded record is kept, inactive.
	assert.Len(t, mem.Records(), 2)
}

func TestReconcileDayChangeToFreeDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	sink := &fakeSink{}
	r := NewReconciler(mem, gw, sink)
	subject := testSubject()

	_, err := r.ReconcileDay(ctx, subject, testDay, morningSet)
	require.NoError(t, err)
	recs := mem.Records()
	require.NoError(t, mem.SetEventIDs(ctx, recs[0].ID, []string{"ev-a"}))

	changed, err := r.ReconcileDay(ctx, subject, testDay, shifts.ShiftSet{})
	require.NoError(t, err)
	assert.True(t, changed)

	assert.Equal(t, []string{"ev-a"}, gw.deletedIDs())
	require.Len(t, sink.published(), 1)
	assert.Contains(t, sink.published()[0].Body, "free day")

	active := activeRecords(t, mem, testDay)
	require.Len(t, active, 1)
	assert.True(t, active[0].Shifts.IsFree())
}

func TestReconcileDayReactivatesMatchingRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	r := NewReconciler(mem, gw, &fakeSink{})
	subject := testSubject()

	// Morning, with events attached.
	_, err := r.ReconcileDay(ctx, subject, testDay, morningSet)
	require.NoError(t, err)
	originalID := mem.Records()[0].ID
	require.NoError(t, mem.SetEventIDs(ctx, originalID, []string{"ev-morning"}))

	// Change to evening, then back to morning.
	_, err = r.ReconcileDay(ctx, subject, testDay, eveningSet)
	require.NoError(t, err)
	changed, err := r.ReconcileDay(ctx, subject, testDay, morningSet)
	require.NoError(t, err)
	assert.True(t, changed)

	// The original record was reactivated rather than a third one inserted,
	// keeping its calendar events.
	active := activeRecords(t, mem, testDay)
	require.Len(t, active, 1)
	assert.Equal(t, originalID, active[0].ID)
	assert.Equal(t, []string{"ev-morning"}, active[0].CalendarEventIDs)
	assert.Len(t, mem.Records(), 2)
}

func TestReconcileDaySideEffectFailuresAreSwallowed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	mem := store.NewMemoryStore()
	gw := &fakeGateway{failDelete: true}
	sink := &fakeSink{fail: true}
	r := NewReconciler(mem, gw, sink)
	subject := testSubject()

	_, err := r.ReconcileDay(ctx, subject, testDay, morningSet)
	require.NoError(t, err)
	require.NoError(t, mem.SetEventIDs(ctx, mem.Records()[0].ID, []string{"ev-a"}))

	// The transition must succeed even though both side effects fail.
	changed, err := r.ReconcileDay(ctx, subject, testDay, eveningSet)
	require.NoError(t, err)
	assert.True(t, changed)

	active := activeRecords(t, mem, testDay)
	require.Len(t, active, 1)
	assert.True(t, shifts.Equal(eveningSet, active[0].Shifts))
}
