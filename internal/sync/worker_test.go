package sync

import (
	"context"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/roster"
	"github.com/shiftsync/shiftsync/internal/roster/mocks"
	"github.com/shiftsync/shiftsync/internal/shifts"
	"github.com/shiftsync/shiftsync/internal/store"
)

func newCipher(t *testing.T) *credentials.Cipher {
	t.Helper()
	var k fernet.Key
	require.NoError(t, k.Generate())
	c, err := credentials.NewCipher(k.Encode())
	require.NoError(t, err)
	return c
}

func encryptedSubject(t *testing.T, cipher *credentials.Cipher) store.Subject {
	t.Helper()
	subject := testSubject()
	enc, err := cipher.Encrypt(credentials.Credentials{
		Username: subject.EmployeeNumber,
		Secret:   "s3cret",
		SiteID:   "MAD",
	})
	require.NoError(t, err)
	subject.Credentials = &enc
	return subject
}

func fastWorkerConfig() WorkerConfig {
	return WorkerConfig{
		MaxRetries: 5,
		RetryDelay: time.Millisecond,
		Timezone:   time.UTC,
	}
}

func TestWorkerSyncSuccess(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	sink := &fakeSink{}
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)
	mem.AddSubject(subject)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]roster.Day{
			{Date: "2026-09-01", Shifts: []shifts.Shift{{Start: "06:00", End: "14:00", RoleCode: "CHK"}}},
			{Date: "2026-09-02", Shifts: nil},
		}, nil)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, gw, sink), gw, fastWorkerConfig())
	outcome, syncErr := w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)
	assert.Equal(t, 2, outcome.DaysReconciled)
	assert.Equal(t, 2, outcome.DaysChanged)
	assert.False(t, outcome.NoShifts)

	// One calendar event for the worked day, none for the free day.
	created := gw.createdEvents()
	require.Len(t, created, 1)
	assert.Equal(t, "Shift CHK (12345)", created[0].Summary)
	assert.Equal(t, time.Date(2026, 9, 1, 6, 0, 0, 0, time.UTC), created[0].Start)

	// The event ids were persisted on the record.
	var worked store.DayRecord
	for _, r := range mem.Records() {
		if !r.Shifts.IsFree() {
			worked = r
		}
	}
	assert.Equal(t, []string{"ev-1"}, worked.CalendarEventIDs)

	// Status cleared with no error recorded.
	st := mem.SyncStatusFor(subject.ID)
	assert.False(t, st.InProgress)
	assert.Nil(t, st.LastError)
	assert.NotNil(t, st.LastSuccess)
}

func TestWorkerSyncIdempotentSecondPass(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	gw := &fakeGateway{}
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)

	days := []roster.Day{
		{Date: "2026-09-01", Shifts: []shifts.Shift{{Start: "06:00", End: "14:00"}}},
	}
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil).Times(2)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return(days, nil).Times(2)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, gw, &fakeSink{}), gw, fastWorkerConfig())

	outcome, syncErr := w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)
	assert.Equal(t, 1, outcome.DaysChanged)

	outcome, syncErr = w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)
	assert.Zero(t, outcome.DaysChanged)

	// No duplicate calendar events on the second pass.
	assert.Len(t, gw.createdEvents(), 1)
}

func TestWorkerSyncNoShifts(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]roster.Day{}, nil)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	outcome, syncErr := w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)
	assert.True(t, outcome.NoShifts)
	assert.Empty(t, mem.Records())
}

func TestWorkerSyncCredentialsMissing(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	subject := testSubject() // no credentials

	// The roster must never be contacted.
	client := mocks.NewMockClient(ctrl)

	w := NewWorker(mem, client, newCipher(t), NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	_, syncErr := w.Sync(context.Background(), subject)
	require.NotNil(t, syncErr)
	assert.Equal(t, ErrorKindCredentialsMissing, syncErr.Kind)

	st := mem.SyncStatusFor(subject.ID)
	assert.False(t, st.InProgress)
	require.NotNil(t, st.LastError)
	assert.Contains(t, *st.LastError, "credentials")
}

func TestWorkerSyncRetriesTimeouts(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)
	timeout := &net.OpError{Op: "read", Err: timeoutErr{}}

	client := mocks.NewMockClient(ctrl)
	// Two timeouts, then success on the third attempt.
	gomock.InOrder(
		client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("", timeout),
		client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("", timeout),
		client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil),
	)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]roster.Day{}, nil)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	outcome, syncErr := w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)
	assert.True(t, outcome.NoShifts)
}

func TestWorkerSyncRetryCeiling(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)
	timeout := &net.OpError{Op: "read", Err: timeoutErr{}}

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("", timeout).Times(3)

	cfg := fastWorkerConfig()
	cfg.MaxRetries = 3
	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, cfg)
	_, syncErr := w.Sync(context.Background(), subject)
	require.NotNil(t, syncErr)
	assert.Equal(t, ErrorKindReadTimeout, syncErr.Kind)

	st := mem.SyncStatusFor(subject.ID)
	require.NotNil(t, st.LastError)
	assert.LessOrEqual(t, len(*st.LastError), maxErrorLength)
}

func TestWorkerSyncConnectionRefusedFailsImmediately(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)
	refused := &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}

	client := mocks.NewMockClient(ctrl)
	// Exactly one attempt: no retry budget burned on a dead endpoint.
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("", refused).Times(1)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	_, syncErr := w.Sync(context.Background(), subject)
	require.NotNil(t, syncErr)
	assert.Equal(t, ErrorKindConnectionRefused, syncErr.Kind)
}

func TestWorkerSyncStatusClearedAfterCancel(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)

	// Cancel the sync context mid-call, as a scheduler stop would.
	ctx, cancel := context.WithCancel(context.Background())
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ credentials.Credentials) (string, error) {
			cancel()
			return "", ctx.Err()
		})

	w := NewWorker(&ctxCheckedStore{Store: mem}, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	_, syncErr := w.Sync(ctx, subject)
	require.NotNil(t, syncErr)

	// The in-progress flag must still be cleared: the cleanup write runs
	// detached from the cancelled sync context.
	st := mem.SyncStatusFor(subject.ID)
	assert.False(t, st.InProgress)
	require.NotNil(t, st.LastError)
}

func TestWorkerSyncMalformedDay(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]roster.Day{{Date: "not-a-date"}}, nil)

	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	_, syncErr := w.Sync(context.Background(), subject)
	require.NotNil(t, syncErr)
	assert.Equal(t, ErrorKindMalformedResponse, syncErr.Kind)
}

func TestWorkerSyncDateRange(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	mem := store.NewMemoryStore()
	cipher := newCipher(t)
	subject := encryptedSubject(t, cipher)

	now := time.Date(2026, 8, 30, 11, 30, 0, 0, time.UTC)
	var gotFrom, gotTo time.Time

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return("tok", nil)
	client.EXPECT().FetchRoster(gomock.Any(), "tok", gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ credentials.Credentials, from, to time.Time) ([]roster.Day, error) {
			gotFrom, gotTo = from, to
			return []roster.Day{}, nil
		})

	w := NewWorker(mem, client, cipher, NewReconciler(mem, nil, nil), nil, fastWorkerConfig())
	w.now = func() time.Time { return now }

	_, syncErr := w.Sync(context.Background(), subject)
	require.Nil(t, syncErr)

	assert.Equal(t, now, gotFrom)
	// Last day of the month following August 2026.
	assert.Equal(t, time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC), gotTo)
}

func TestEndOfNextMonth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "mid month",
			in:   time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
			want: time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "across year boundary",
			in:   time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
			want: time.Date(2027, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "into february",
			in:   time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC),
			want: time.Date(2027, 2, 28, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, endOfNextMonth(tt.in))
		})
	}
}
