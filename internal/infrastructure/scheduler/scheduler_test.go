package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	mu   sync.Mutex
	name string
	runs int
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }

func (j *countingJob) Run(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) runCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestScheduler_Register(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "job-a"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))

	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "job-b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-a", jobs[0].Name)
	assert.True(t, jobs[0].Enabled)
	assert.False(t, jobs[0].NextRun.IsZero())
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Register(&countingJob{name: "job-a"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("job-a"))
	assert.False(t, s.ListJobs()[0].Enabled)

	require.NoError(t, s.EnableJob("job-a"))
	assert.True(t, s.ListJobs()[0].Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
	assert.ErrorIs(t, s.EnableJob("missing"), ErrJobNotFound)
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(DefaultConfig())
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_RunsDueJobs(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "job-a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(50*time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	defer func() { _ = s.Stop() }()

	// The loop ticks once per second.
	require.Eventually(t, func() bool { return job.runCount() >= 1 },
		3*time.Second, 50*time.Millisecond)
}

func TestScheduler_DisabledJobDoesNotRun(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "job-a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(50*time.Millisecond)))
	require.NoError(t, s.DisableJob("job-a"))

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(1500 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, 0, job.runCount())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(DefaultConfig())
	job := &countingJob{name: "job-a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "job-a")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Manual)
	assert.Equal(t, 1, job.runCount())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := New(DefaultConfig())
	jobErr := errors.New("boom")
	job := &countingJob{name: "job-a", err: jobErr}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "job-a")
	assert.ErrorIs(t, err, jobErr)
	require.NotNil(t, result)
	assert.False(t, result.Success)

	snap := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalExecutions)
	assert.Equal(t, int64(1), snap.TotalFailures)

	info := s.ListJobs()[0]
	assert.Equal(t, int64(1), info.FailCount)
	require.NotNil(t, info.LastResult)
	assert.False(t, info.LastResult.Success)
}

func TestScheduler_HistoryBounded(t *testing.T) {
	s := New(Config{MaxHistorySize: 3})
	job := &countingJob{name: "job-a"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	for i := 0; i < 5; i++ {
		_, err := s.RunNow(context.Background(), "job-a")
		require.NoError(t, err)
	}

	history := s.GetHistory(0)
	assert.Len(t, history, 3)

	assert.Len(t, s.GetHistory(2), 2)
	assert.Len(t, s.GetHistory(100), 3)
}

func TestIntervalSchedule(t *testing.T) {
	sched := NewIntervalSchedule(15 * time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(15*time.Minute), sched.Next(now))
	assert.Equal(t, "@every 15m0s", sched.String())
}

func TestDailySchedule(t *testing.T) {
	sched := NewDailySchedule(3, 30)

	// Before today's occurrence: same day.
	now := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC), sched.Next(now))

	// After today's occurrence: next day.
	now = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 3, 30, 0, 0, time.UTC), sched.Next(now))

	assert.Equal(t, "@daily 03:30 UTC", sched.String())
}

func TestDailySchedule_ClampsOutOfRange(t *testing.T) {
	sched := NewDailySchedule(99, -5)
	now := time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)
	next := sched.Next(now)

	assert.Equal(t, 23, next.Hour())
	assert.Equal(t, 0, next.Minute())
}
