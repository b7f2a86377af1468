// Package scheduler implements background job scheduling for the
// season ranking service. Its single essential job is the periodic
// ranking recalculation; the scheduler itself stays generic.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrNilJob                  = errors.New("job cannot be nil")
	ErrNilSchedule             = errors.New("schedule cannot be nil")
	ErrJobAlreadyExists        = errors.New("job already exists")
	ErrJobNotFound             = errors.New("job not found")
	ErrSchedulerAlreadyRunning = errors.New("scheduler is already running")
	ErrSchedulerNotRunning     = errors.New("scheduler is not running")
)

// Job is a unit of background work. Run receives a context that is
// cancelled when the scheduler shuts down.
type Job interface {
	Name() string
	Run(ctx context.Context) error
	Description() string
}

// Schedule decides when a job fires next.
type Schedule interface {
	// Next returns the first fire time strictly after t.
	Next(t time.Time) time.Time

	// String renders the schedule for logs and the admin API.
	String() string
}

// JobResult records one finished execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Success     bool
	Error       error
	Manual      bool
}

// Config tunes the scheduler.
type Config struct {
	Logger *slog.Logger

	// MaxHistorySize bounds the in-memory result ring exposed via
	// GetHistory.
	MaxHistorySize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Logger: slog.Default(), MaxHistorySize: 500}
}

// entry is a registered job together with its firing state. All fields
// are guarded by the scheduler mutex.
type entry struct {
	job       Job
	schedule  Schedule
	enabled   bool
	lastRun   time.Time
	nextRun   time.Time
	runCount  int64
	failCount int64
}

// Scheduler drives registered jobs off a one-second tick.
type Scheduler struct {
	logger     *slog.Logger
	maxHistory int
	metrics    *Metrics

	mu       sync.RWMutex
	entries  map[string]*entry
	lastRuns map[string]*JobResult
	history  []JobResult

	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startedAt time.Time
}

// New creates a stopped scheduler; call Start to begin ticking.
func New(config Config) *Scheduler {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	bound := config.MaxHistorySize
	if bound <= 0 {
		bound = 500
	}

	return &Scheduler{
		logger:     log,
		maxHistory: bound,
		metrics:    NewMetrics(),
		entries:    make(map[string]*entry),
		lastRuns:   make(map[string]*JobResult),
	}
}

// Register adds a job under its own name, enabled, with its first fire
// time computed from now.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, dup := s.entries[name]; dup {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}

	e := &entry{
		job:      job,
		schedule: schedule,
		enabled:  true,
		nextRun:  schedule.Next(time.Now().UTC()),
	}
	s.entries[name] = e

	s.logger.Info("job registered",
		"job", name,
		"schedule", schedule.String(),
		"next_run", e.nextRun.Format(time.RFC3339),
	)
	return nil
}

// EnableJob re-enables a job and recomputes its next fire time, so a
// long-disabled job does not fire immediately on a stale nextRun.
func (s *Scheduler) EnableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = true
	e.nextRun = e.schedule.Next(time.Now().UTC())
	s.logger.Info("job enabled", "job", name, "next_run", e.nextRun)
	return nil
}

// DisableJob keeps the job registered but stops it from firing.
func (s *Scheduler) DisableJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	e.enabled = false
	s.logger.Info("job disabled", "job", name)
	return nil
}

// Start launches the tick loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = time.Now()
	jobCount := len(s.entries)
	s.mu.Unlock()

	s.logger.Info("scheduler started", "jobs_count", jobCount)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		tick := time.NewTicker(time.Second)
		defer tick.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-tick.C:
				s.fireDue()
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for in-flight jobs to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()

	s.logger.Info("scheduler stopped", "uptime", time.Since(s.startedAt).String())
	return nil
}

// IsRunning reports whether the tick loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) fireDue() {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !e.enabled || e.nextRun.IsZero() || now.Before(e.nextRun) {
			continue
		}
		// Advance nextRun before executing so a slow job cannot pile
		// up overlapping runs of itself.
		e.lastRun = now
		e.nextRun = e.schedule.Next(now)
		e.runCount++
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			name := e.job.Name()
			s.logger.Info("job started", "job", name)
			started := time.Now()
			err := e.job.Run(s.ctx)
			s.finish(e, name, started, err, false)
		}(e)
	}
}

// RunNow executes a registered job immediately, outside its schedule.
// The caller's context governs the run, not the scheduler's.
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	s.logger.Info("manual job execution started", "job", name)
	started := time.Now()
	err := e.job.Run(ctx)
	return s.finish(e, name, started, err, true), err
}

// finish folds one execution into metrics, the per-job last-run map and
// the bounded history.
func (s *Scheduler) finish(e *entry, name string, started time.Time, err error, manual bool) *JobResult {
	done := time.Now()
	result := JobResult{
		JobName:     name,
		StartedAt:   started,
		CompletedAt: done,
		Duration:    done.Sub(started),
		Success:     err == nil,
		Error:       err,
		Manual:      manual,
	}

	s.metrics.RecordExecution(name, result.Duration, err == nil)

	s.mu.Lock()
	if err != nil {
		e.failCount++
	}
	s.lastRuns[name] = &result
	s.history = append(s.history, result)
	if overflow := len(s.history) - s.maxHistory; overflow > 0 {
		s.history = s.history[overflow:]
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed", "job", name, "duration", result.Duration.String(), "error", err)
	} else {
		s.logger.Info("job completed", "job", name, "duration", result.Duration.String())
	}
	return &result
}

// JobInfo is the admin-facing view of one registered job.
type JobInfo struct {
	Name        string
	Description string
	Enabled     bool
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	RunCount    int64
	FailCount   int64
	LastResult  *JobResult
}

// ListJobs snapshots every registered job.
func (s *Scheduler) ListJobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		out = append(out, JobInfo{
			Name:        name,
			Description: e.job.Description(),
			Enabled:     e.enabled,
			Schedule:    e.schedule.String(),
			LastRun:     e.lastRun,
			NextRun:     e.nextRun,
			RunCount:    e.runCount,
			FailCount:   e.failCount,
			LastResult:  s.lastRuns[name],
		})
	}
	return out
}

// GetHistory returns up to limit of the most recent results, oldest
// first. A non-positive limit returns everything retained.
func (s *Scheduler) GetHistory(limit int) []JobResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]JobResult, n)
	copy(out, s.history[len(s.history)-n:])
	return out
}

// GetMetrics exposes the shared execution counters.
func (s *Scheduler) GetMetrics() *Metrics {
	return s.metrics
}

// Metrics aggregates execution counters across all jobs.
type Metrics struct {
	mu sync.RWMutex

	executions int64
	successes  int64
	failures   int64
	elapsed    time.Duration

	perJob     map[string]int64
	perJobFail map[string]int64
}

// NewMetrics creates an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		perJob:     make(map[string]int64),
		perJobFail: make(map[string]int64),
	}
}

// RecordExecution folds in one finished run.
func (m *Metrics) RecordExecution(jobName string, duration time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.executions++
	m.elapsed += duration
	m.perJob[jobName]++
	if success {
		m.successes++
	} else {
		m.failures++
		m.perJobFail[jobName]++
	}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	TotalExecutions int64
	TotalSuccesses  int64
	TotalFailures   int64
	SuccessRate     float64
	AverageDuration time.Duration
}

// Snapshot copies the counters under the read lock.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		TotalExecutions: m.executions,
		TotalSuccesses:  m.successes,
		TotalFailures:   m.failures,
	}
	if m.executions > 0 {
		snap.SuccessRate = float64(m.successes) / float64(m.executions)
		snap.AverageDuration = m.elapsed / time.Duration(m.executions)
	}
	return snap
}
