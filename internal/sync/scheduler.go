package sync

import (
	"context"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/shiftsync/shiftsync/internal/store"
	"github.com/shiftsync/shiftsync/internal/telemetry"
)

const (
	// stopJoinTimeout bounds how long Stop waits for the loop to finish
	// an in-flight subject before giving up on the join.
	stopJoinTimeout = 30 * time.Second
)

// CycleStats is a snapshot of the scheduler's counters. Stats() returns a
// copy, safe to hold while the loop keeps running.
type CycleStats struct {
	Running        bool       `json:"running"`
	CycleCount     int        `json:"cycleCount"`
	SubjectsSynced int        `json:"subjectsSynced"`
	Errors         int        `json:"errors"`
	LastCycleStart *time.Time `json:"lastCycleStart,omitempty"`
	LastCycleEnd   *time.Time `json:"lastCycleEnd,omitempty"`
	CurrentSubject string     `json:"currentSubject,omitempty"`
}

// subjectSyncer is what the scheduler needs from the worker.
type subjectSyncer interface {
	Sync(ctx context.Context, subject store.Subject) (Outcome, *Error)
}

// SchedulerConfig tunes the cycle loop. Zero values fall back to defaults.
type SchedulerConfig struct {
	// CycleInterval is the pause between full cycles.
	CycleInterval time.Duration
	// SubjectDelay paces consecutive subjects within a cycle.
	SubjectDelay time.Duration
	// ErrorCooldown is the shorter pause after a cycle-level failure.
	ErrorCooldown time.Duration
}

// Scheduler drives periodic sync cycles over all eligible subjects on a
// single background goroutine. Subjects are processed strictly
// sequentially; stop is cooperative and takes effect at the next wait or
// subject boundary.
type Scheduler struct {
	store   store.Store
	worker  subjectSyncer
	metrics *telemetry.SyncMetrics // nil disables metrics

	cycleInterval time.Duration
	subjectDelay  time.Duration
	errorCooldown time.Duration

	mu      stdsync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	stats   CycleStats
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSyncMetrics sets the metrics recorder for the scheduler.
func WithSyncMetrics(metrics *telemetry.SyncMetrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = metrics
	}
}

// NewScheduler creates a stopped Scheduler.
func NewScheduler(st store.Store, worker subjectSyncer, cfg SchedulerConfig, opts ...SchedulerOption) *Scheduler {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = time.Hour
	}
	if cfg.SubjectDelay <= 0 {
		cfg.SubjectDelay = 5 * time.Second
	}
	if cfg.ErrorCooldown <= 0 {
		cfg.ErrorCooldown = 5 * time.Minute
	}
	s := &Scheduler{
		store:         st,
		worker:        worker,
		cycleInterval: cfg.CycleInterval,
		subjectDelay:  cfg.SubjectDelay,
		errorCooldown: cfg.ErrorCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the cycle loop. Starting an already running scheduler is
// a no-op with a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		slog.Warn("sync scheduler already running, ignoring start")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true
	s.stats.Running = true

	slog.Info("starting sync scheduler",
		"cycle_interval", s.cycleInterval,
		"subject_delay", s.subjectDelay)

	go s.run(ctx)
}

// Stop requests a cooperative stop and joins the loop with a bounded wait.
// In-flight work for the current subject is allowed to complete; if the
// join exceeds the bound, Stop proceeds anyway. Stopping a stopped
// scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	slog.Info("stopping sync scheduler")
	cancel()

	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		slog.Warn("sync scheduler did not stop within bound, proceeding", "timeout", stopJoinTimeout)
	}

	s.mu.Lock()
	s.running = false
	s.stats.Running = false
	s.stats.CurrentSubject = ""
	s.mu.Unlock()
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stats returns a snapshot copy of the counters.
func (s *Scheduler) Stats() CycleStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		failed := s.runCycle(ctx)
		if ctx.Err() != nil {
			return
		}

		pause := s.cycleInterval
		if failed {
			pause = s.errorCooldown
			slog.Warn("cycle failed, cooling down", "cooldown", pause)
		}
		if !s.sleep(ctx, pause) {
			return
		}
	}
}

// runCycle performs one pass over all eligible subjects. It recovers from
// panics so an unexpected error can never kill the scheduler goroutine.
func (s *Scheduler) runCycle(ctx context.Context) (failed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			failed = true
			s.countError()
			slog.Error("sync cycle panicked", "panic", rec)
		}
	}()

	cycleStart := time.Now()
	s.withStats(func(st *CycleStats) {
		st.CycleCount++
		st.LastCycleStart = &cycleStart
		st.LastCycleEnd = nil
	})
	if s.metrics != nil {
		s.metrics.CycleStarted()
	}

	defer func() {
		cycleEnd := time.Now()
		s.withStats(func(st *CycleStats) {
			st.LastCycleEnd = &cycleEnd
			st.CurrentSubject = ""
		})
		if s.metrics != nil {
			s.metrics.CycleFinished(cycleEnd.Sub(cycleStart))
		}
	}()

	subjects, err := s.store.ListEligibleSubjects(ctx)
	if err != nil {
		s.countError()
		slog.Error("failed to list eligible subjects", "error", err)
		return true
	}
	if len(subjects) == 0 {
		slog.Info("no eligible subjects, skipping cycle")
		return false
	}

	slog.Info("starting sync cycle", "subjects", len(subjects))

	for i, subject := range subjects {
		if ctx.Err() != nil {
			slog.Info("stop requested, aborting cycle",
				"processed", i,
				"remaining", len(subjects)-i)
			return false
		}

		s.withStats(func(st *CycleStats) { st.CurrentSubject = subject.EmployeeNumber })
		s.syncSubject(ctx, subject)

		if i < len(subjects)-1 {
			if !s.sleep(ctx, s.subjectDelay) {
				return false
			}
		}
	}

	return false
}

func (s *Scheduler) syncSubject(ctx context.Context, subject store.Subject) {
	start := time.Now()
	outcome, syncErr := s.worker.Sync(ctx, subject)
	elapsed := time.Since(start)

	switch {
	case syncErr == nil:
		s.withStats(func(st *CycleStats) { st.SubjectsSynced++ })
		if s.metrics != nil {
			s.metrics.SubjectSynced(elapsed)
		}
		if outcome.NoShifts {
			slog.Warn("subject synced with empty roster", "subject", subject.EmployeeNumber)
		} else {
			slog.Info("subject synced",
				"subject", subject.EmployeeNumber,
				"days", outcome.DaysReconciled,
				"changed", outcome.DaysChanged,
				"duration", elapsed)
		}
	case syncErr.Kind == ErrorKindCredentialsMissing:
		// Skipped, not a cycle failure.
		slog.Info("subject skipped", "subject", subject.EmployeeNumber, "reason", syncErr.Message)
	default:
		s.countError()
		slog.Error("subject sync failed",
			"subject", subject.EmployeeNumber,
			"kind", syncErr.Kind,
			"error", syncErr)
	}
}

func (s *Scheduler) countError() {
	s.withStats(func(st *CycleStats) { st.Errors++ })
	if s.metrics != nil {
		s.metrics.SyncErrored()
	}
}

func (s *Scheduler) withStats(fn func(*CycleStats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

// sleep waits for d or until the context is cancelled, reporting whether
// the full wait elapsed.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
