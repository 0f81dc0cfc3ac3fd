// Package scheduler runs background jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrDuplicateJob is returned when a job name is registered twice
var ErrDuplicateJob = errors.New("job already registered")

// Job represents a scheduled job
type Job interface {
	Run() error
	Name() string
}

// Scheduler owns a cron instance and the jobs registered on it, by name.
// Schedules take a leading seconds field; descriptors like "@hourly" also work.
//
// A panicking job is recovered and logged, and a job still running when its next
// tick fires skips that tick.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a new scheduler
func New(log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	cronLog := cronLogger{log: log}

	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		log:     log,
		entries: make(map[string]cron.EntryID),
	}
}

// Start starts the scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", s.Len()).Msg("Scheduler started")
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under its name. Examples:
//   - "0 */5 * * * *"     every 5 minutes
//   - "0 0 6 * * MON-FRI" 6 AM on weekdays
//   - "@every 30s"
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}

	id, err := s.cron.AddJob(schedule, runner{job: job, log: s.log})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.entries[name] = id

	s.log.Info().
		Str("schedule", schedule).
		Str("job", name).
		Msg("Job registered")

	return nil
}

// Remove unregisters a job; it reports whether the name was known
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.entries[name]
	if !ok {
		return false
	}
	s.cron.Remove(id)
	delete(s.entries, name)
	return true
}

// Next returns the next activation of a job. The second result is false for an
// unknown job or a scheduler that has not been started.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	next := s.cron.Entry(id).Next
	return next, !next.IsZero()
}

// Names returns the registered job names in sorted order
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow executes a job immediately, outside its schedule
func (s *Scheduler) RunNow(job Job) error {
	return runner{job: job, log: s.log}.run()
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// runner adapts a Job to cron.Job and logs each run
type runner struct {
	job Job
	log zerolog.Logger
}

func (r runner) Run() {
	_ = r.run()
}

func (r runner) run() error {
	start := time.Now()
	err := r.job.Run()

	event := r.log.Debug()
	if err != nil {
		event = r.log.Error().Err(err)
	}
	event.
		Str("job", r.job.Name()).
		Dur("duration", time.Since(start)).
		Msg("Job finished")

	return err
}

// cronLogger routes cron's own messages into zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
