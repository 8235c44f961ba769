// Package scheduler runs recurring batch scoring jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Job is one recurring scoring run.
type Job struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // standard five-field cron, e.g. "30 6 * * 1-5"
	Universe string `yaml:"universe"` // ticker universe file for this job
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
}

func (j Job) enabled() bool { return j.Enabled == nil || *j.Enabled }

type jobsFile struct {
	Jobs []Job `yaml:"jobs"`
}

// LoadJobs reads and validates a schedule YAML: a `jobs:` list with name,
// cron schedule, and universe file per entry.
func LoadJobs(path string) ([]Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}
	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse schedule config: %w", err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("schedule config %s has no jobs", path)
	}

	seen := make(map[string]struct{})
	for i, job := range file.Jobs {
		if job.Name == "" {
			return nil, fmt.Errorf("job %d has no name", i)
		}
		if _, dup := seen[job.Name]; dup {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		seen[job.Name] = struct{}{}
		if job.Schedule == "" {
			return nil, fmt.Errorf("job %s has no schedule", job.Name)
		}
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return nil, fmt.Errorf("job %s schedule %q: %w", job.Name, job.Schedule, err)
		}
		if job.Universe == "" {
			return nil, fmt.Errorf("job %s has no universe file", job.Name)
		}
	}
	return file.Jobs, nil
}

// RunFunc executes one job's batch run.
type RunFunc func(ctx context.Context, job Job) error

type entry struct {
	job    Job
	cronID cron.EntryID

	mu        sync.Mutex
	running   bool
	lastRun   time.Time
	lastError string
}

// Scheduler triggers batch runs on cron schedules. Overlapping fires of the
// same job are skipped, not queued.
type Scheduler struct {
	cron *cron.Cron
	run  RunFunc

	mu        sync.Mutex
	entries   map[string]*entry
	started   bool
	startTime time.Time
}

// New wires a scheduler over the run callback.
func New(run RunFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		run:     run,
		entries: make(map[string]*entry),
	}
}

// Register adds one job. Disabled jobs are tracked for status reporting but
// never fire.
func (s *Scheduler) Register(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("job %s already registered", job.Name)
	}
	e := &entry{job: job}
	if job.enabled() {
		id, err := s.cron.AddFunc(job.Schedule, func() { s.fire(job.Name) })
		if err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
		e.cronID = id
		log.Info().Str("job", job.Name).Str("schedule", job.Schedule).Str("universe", job.Universe).Msg("Job registered")
	} else {
		log.Info().Str("job", job.Name).Msg("Job disabled, not scheduled")
	}
	s.entries[job.Name] = e
	return nil
}

// Start launches the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("scheduler already running")
	}
	s.cron.Start()
	s.started = true
	s.startTime = time.Now()
	log.Info().Int("jobs", len(s.entries)).Msg("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for cron-initiated runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

// Run starts the scheduler and blocks until the context dies, then stops.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

// Trigger fires a job immediately, off-schedule.
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	_, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s not found", name)
	}
	go s.fire(name)
	return nil
}

func (s *Scheduler) fire(name string) {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		log.Warn().Str("job", name).Msg("Previous run still in flight, skipping")
		return
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", name).Interface("panic", r).Msg("Job panicked")
			e.mu.Lock()
			e.running = false
			e.lastError = fmt.Sprintf("panic: %v", r)
			e.mu.Unlock()
		}
	}()

	started := time.Now()
	log.Info().Str("job", name).Str("universe", e.job.Universe).Msg("Scheduled run started")
	err := s.run(context.Background(), e.job)

	e.mu.Lock()
	e.running = false
	e.lastRun = started
	if err != nil {
		e.lastError = err.Error()
	} else {
		e.lastError = ""
	}
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Str("job", name).Dur("duration", time.Since(started)).Msg("Scheduled run failed")
		return
	}
	log.Info().Str("job", name).Dur("duration", time.Since(started)).Msg("Scheduled run finished")
}

// JobStatus reports one job's scheduling state.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Universe  string    `json:"universe"`
	Enabled   bool      `json:"enabled"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run"`
	LastError string    `json:"last_error,omitempty"`
	NextRun   time.Time `json:"next_run"`
}

// Statuses lists every registered job, sorted by name. NextRun is zero for
// disabled jobs and before Start.
func (s *Scheduler) Statuses() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[cron.EntryID]time.Time)
	for _, ce := range s.cron.Entries() {
		next[ce.ID] = ce.Next
	}

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		status := JobStatus{
			Name:      e.job.Name,
			Schedule:  e.job.Schedule,
			Universe:  e.job.Universe,
			Enabled:   e.job.enabled(),
			Running:   e.running,
			LastRun:   e.lastRun,
			LastError: e.lastError,
		}
		if e.job.enabled() {
			status.NextRun = next[e.cronID]
		}
		e.mu.Unlock()
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Status summarizes the scheduler for status displays.
type Status struct {
	Running      bool          `json:"running"`
	EnabledJobs  int           `json:"enabled_jobs"`
	DisabledJobs int           `json:"disabled_jobs"`
	Uptime       time.Duration `json:"uptime"`
	Jobs         []JobStatus   `json:"jobs"`
}

// Status reports the scheduler state and every job's state.
func (s *Scheduler) Status() Status {
	jobs := s.Statuses()

	s.mu.Lock()
	status := Status{Running: s.started, Jobs: jobs}
	if s.started {
		status.Uptime = time.Since(s.startTime)
	}
	s.mu.Unlock()

	for _, job := range jobs {
		if job.Enabled {
			status.EnabledJobs++
		} else {
			status.DisabledJobs++
		}
	}
	return status
}
