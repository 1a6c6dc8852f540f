// Package scheduler runs the periodic sync passes of reelarr on cron
// schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

var (
	// ErrJobNotFound is returned when a job name is not registered.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobRunning is returned when a job is triggered while it still runs.
	ErrJobRunning = errors.New("job already running")

	// ErrAlreadyStarted is returned by Start on a running scheduler.
	ErrAlreadyStarted = errors.New("scheduler already started")

	// ErrNotStarted is returned when a job is triggered before Start.
	ErrNotStarted = errors.New("scheduler not started")
)

// parser accepts standard five-field expressions and descriptors such as
// "@every 10m" or "@daily".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// JobFunc is the work of a scheduled job.
type JobFunc func(ctx context.Context) error

// JobStatus reports the state of a registered job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Skipped   int       `json:"skipped"`
	LastRun   time.Time `json:"last_run,omitzero"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run,omitzero"`
}

type job struct {
	name     string
	schedule string
	fn       JobFunc
	entryID  cron.EntryID

	running   bool
	runs      int
	skipped   int
	lastRun   time.Time
	lastError string
}

// Scheduler runs named jobs on cron schedules. A job whose previous run has
// not finished is skipped rather than started twice.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string]*job
	logger *slog.Logger

	// Running state
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler with no jobs.
func NewScheduler() *Scheduler {
	s := &Scheduler{
		jobs:   make(map[string]*job),
		logger: slog.Default(),
	}
	s.cron = cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cronLogger{s})))
	return s
}

// WithLogger sets a custom logger.
func (s *Scheduler) WithLogger(logger *slog.Logger) *Scheduler {
	s.logger = logger
	return s
}

// Add registers a job. An empty schedule registers nothing, which is how a
// job is disabled in configuration.
func (s *Scheduler) Add(name, schedule string, fn JobFunc) error {
	if schedule == "" {
		s.logger.Debug("job disabled", slog.String("job", name))
		return nil
	}
	if err := ValidateCron(schedule); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	j := &job{name: name, schedule: schedule, fn: fn}
	id, err := s.cron.AddFunc(schedule, func() { _ = s.trigger(j) })
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	j.entryID = id
	s.jobs[name] = j
	return nil
}

// Start begins running jobs on their schedules. Jobs are cancelled through
// ctx when the scheduler stops.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx != nil {
		return ErrAlreadyStarted
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()

	s.mu.Lock()
	s.ctx = nil
	s.cancel = nil
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

// RunNow starts a job immediately in the background.
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.trigger(j)
}

// trigger starts j in the background unless it is already running or the
// scheduler is stopped.
func (s *Scheduler) trigger(j *job) error {
	s.mu.Lock()
	ctx := s.ctx
	if ctx == nil || ctx.Err() != nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if j.running {
		j.skipped++
		s.mu.Unlock()
		s.logger.Warn("skipping job, previous run still in progress", slog.String("job", j.name))
		return fmt.Errorf("%w: %s", ErrJobRunning, j.name)
	}
	j.running = true
	j.runs++
	j.lastRun = time.Now()
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(ctx, j)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, j *job) {
	defer s.wg.Done()

	runID := uuid.NewString()
	logger := s.logger.With(slog.String("job", j.name), slog.String("run_id", runID))
	start := time.Now()
	logger.Debug("job started")

	err := s.safeRun(ctx, j)

	s.mu.Lock()
	j.running = false
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		logger.Error("job failed", slog.Duration("duration", time.Since(start)), slog.String("error", err.Error()))
		return
	}
	logger.Info("job completed", slog.Duration("duration", time.Since(start)))
}

func (s *Scheduler) safeRun(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return j.fn(ctx)
}

// Status returns the state of every registered job, sorted by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := JobStatus{
			Name:      j.name,
			Schedule:  j.schedule,
			Running:   j.running,
			Runs:      j.runs,
			Skipped:   j.skipped,
			LastRun:   j.lastRun,
			LastError: j.lastError,
		}
		if s.ctx != nil {
			st.NextRun = s.cron.Entry(j.entryID).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// ValidateCron validates a cron expression.
func ValidateCron(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the next time expr fires after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(from), nil
}

// cronLogger adapts the scheduler logger to cron.Logger.
type cronLogger struct {
	s *Scheduler
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.logger.Error(msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
