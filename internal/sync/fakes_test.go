package sync

import (
	"context"
	"errors"
	"fmt"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/shiftsync/shiftsync/internal/calendar"
	"github.com/shiftsync/shiftsync/internal/notify"
	"github.com/shiftsync/shiftsync/internal/store"
)

// ctxCheckedStore refuses status writes on a dead context, like the
// Postgres store would.
type ctxCheckedStore struct {
	store.Store
}

func (s *ctxCheckedStore) RecordSyncResult(ctx context.Context, id uuid.UUID, syncErr *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.RecordSyncResult(ctx, id, syncErr)
}

// fakeGateway records calendar calls and can be told to fail.
type fakeGateway struct {
	mu         stdsync.Mutex
	created    []calendar.Event
	deleted    []string
	failCreate bool
	failDelete bool
	nextID     int
}

func (f *fakeGateway) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return "", errors.New("calendar unavailable")
	}
	f.created = append(f.created, ev)
	f.nextID++
	return fmt.Sprintf("ev-%d", f.nextID), nil
}

func (f *fakeGateway) DeleteEvent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("calendar unavailable")
	}
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeGateway) createdEvents() []calendar.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]calendar.Event, len(f.created))
	copy(out, f.created)
	return out
}

func (f *fakeGateway) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

// fakeSink records published notifications.
type fakeSink struct {
	mu       stdsync.Mutex
	messages []notify.Message
	fail     bool
}

func (f *fakeSink) Publish(_ context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("sink unavailable")
	}
	f.messages = append(f.messages, msg)
	return nil
}

func (f *fakeSink) published() []notify.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]notify.Message, len(f.messages))
	copy(out, f.messages)
	return out
}
