package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftsync/shiftsync/internal/credentials"
	"github.com/shiftsync/shiftsync/internal/shifts"
)

// memoryStore is an in-memory Store used in tests and local development.
// ReconcileDay mutates a copy of the records and swaps it in on success,
// giving the same all-or-nothing behavior as the database transaction.
type memoryStore struct {
	mu       sync.Mutex
	subjects map[uuid.UUID]Subject
	status   map[uuid.UUID]SyncStatus
	records  []DayRecord
	order    []uuid.UUID
}

// NewMemoryStore creates an empty in-memory Store.
func NewMemoryStore() *memoryStore { //nolint:revive // deliberately unexported type
	return &memoryStore{
		subjects: make(map[uuid.UUID]Subject),
		status:   make(map[uuid.UUID]SyncStatus),
	}
}

// AddSubject registers a subject for listing and lookup.
func (m *memoryStore) AddSubject(s Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[s.ID]; !ok {
		m.order = append(m.order, s.ID)
	}
	m.subjects[s.ID] = s
}

// SyncStatusFor returns the recorded status for a subject.
func (m *memoryStore) SyncStatusFor(id uuid.UUID) SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

// Records returns a snapshot of all day records.
func (m *memoryStore) Records() []DayRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DayRecord, len(m.records))
	copy(out, m.records)
	return out
}

func (m *memoryStore) UpsertSubject(_ context.Context, employeeNumber, fullName string) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		s := m.subjects[id]
		if s.EmployeeNumber == employeeNumber {
			s.FullName = fullName
			m.subjects[id] = s
			return s, nil
		}
	}
	s := Subject{ID: uuid.New(), EmployeeNumber: employeeNumber, FullName: fullName}
	m.subjects[s.ID] = s
	m.order = append(m.order, s.ID)
	return s, nil
}

func (m *memoryStore) SetCredentials(_ context.Context, subjectID uuid.UUID, enc credentials.Encrypted) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[subjectID]
	if !ok {
		return ErrNotFound
	}
	s.Credentials = &enc
	m.subjects[subjectID] = s
	return nil
}

func (m *memoryStore) ListEligibleSubjects(_ context.Context) ([]Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Subject, 0, len(m.order))
	for _, id := range m.order {
		s := m.subjects[id]
		if s.Credentials != nil {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryStore) GetSubject(_ context.Context, id uuid.UUID) (Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return s, nil
}

func (m *memoryStore) SetSyncInProgress(_ context.Context, id uuid.UUID, inProgress bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.status[id]
	st.InProgress = inProgress
	m.status[id] = st
	return nil
}

func (m *memoryStore) RecordSyncResult(_ context.Context, id uuid.UUID, syncErr *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	st := m.status[id]
	st.InProgress = false
	st.LastError = syncErr
	st.LastAttempt = &now
	if syncErr == nil {
		st.LastSuccess = &now
	}
	m.status[id] = st
	return nil
}

func (m *memoryStore) ReconcileDay(_ context.Context, fn func(DayWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	scratch := make([]DayRecord, len(m.records))
	copy(scratch, m.records)
	writer := &memoryDayWriter{records: scratch}

	if err := fn(writer); err != nil {
		return err
	}
	m.records = writer.records
	return nil
}

func (m *memoryStore) ListActiveMissingEvents(_ context.Context, subjectID uuid.UUID) ([]DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DayRecord
	for _, r := range m.records {
		if r.SubjectID == subjectID && r.Active && !r.Shifts.IsFree() && len(r.CalendarEventIDs) == 0 {
			out = append(out, r)
		}
	}
	sortByDay(out)
	return out, nil
}

func (m *memoryStore) SetEventIDs(_ context.Context, recordID uuid.UUID, eventIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == recordID {
			m.records[i].CalendarEventIDs = eventIDs
			return nil
		}
	}
	return ErrNotFound
}

func (m *memoryStore) ListActiveInRange(_ context.Context, subjectID uuid.UUID, from, to time.Time) ([]DayRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from, to = NormalizeDay(from), NormalizeDay(to)
	var out []DayRecord
	for _, r := range m.records {
		if r.SubjectID == subjectID && r.Active && !r.Day.Before(from) && !r.Day.After(to) {
			out = append(out, r)
		}
	}
	sortByDay(out)
	return out, nil
}

type memoryDayWriter struct {
	records []DayRecord
}

func (w *memoryDayWriter) GetActive(_ context.Context, subjectID uuid.UUID, day time.Time) (DayRecord, error) {
	day = NormalizeDay(day)
	for _, r := range w.records {
		if r.SubjectID == subjectID && r.Day.Equal(day) && r.Active {
			return r, nil
		}
	}
	return DayRecord{}, ErrNotFound
}

func (w *memoryDayWriter) GetInactiveMatching(_ context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error) {
	day = NormalizeDay(day)
	// Later entries are more recently written; prefer them.
	for i := len(w.records) - 1; i >= 0; i-- {
		r := w.records[i]
		if r.SubjectID == subjectID && r.Day.Equal(day) && !r.Active && shifts.Equal(r.Shifts, set) {
			return r, nil
		}
	}
	return DayRecord{}, ErrNotFound
}

func (w *memoryDayWriter) DeactivateActive(_ context.Context, subjectID uuid.UUID, day time.Time) error {
	day = NormalizeDay(day)
	for i := range w.records {
		if w.records[i].SubjectID == subjectID && w.records[i].Day.Equal(day) && w.records[i].Active {
			w.records[i].Active = false
		}
	}
	return nil
}

func (w *memoryDayWriter) InsertActive(_ context.Context, subjectID uuid.UUID, day time.Time, set shifts.ShiftSet) (DayRecord, error) {
	rec := DayRecord{
		ID:        uuid.New(),
		SubjectID: subjectID,
		Day:       NormalizeDay(day),
		Shifts:    set,
		Active:    true,
	}
	w.records = append(w.records, rec)
	return rec, nil
}

func (w *memoryDayWriter) Reactivate(_ context.Context, id uuid.UUID) error {
	for i := range w.records {
		if w.records[i].ID == id {
			w.records[i].Active = true
			return nil
		}
	}
	return ErrNotFound
}

func sortByDay(recs []DayRecord) {
	sort.Slice(recs, func(i, j int) bool { return recs[i].Day.Before(recs[j].Day) })
}
