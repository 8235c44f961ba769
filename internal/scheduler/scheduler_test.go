package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJobs(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJobs_ParsesYAML(t *testing.T) {
	path := writeJobs(t, `
jobs:
  - name: daily-close
    schedule: "30 21 * * 1-5"
    universe: config/universe.txt
  - name: weekly-deep
    schedule: "0 7 * * 6"
    universe: config/universe-all.txt
    enabled: false
`)

	jobs, err := LoadJobs(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "daily-close", jobs[0].Name)
	assert.Equal(t, "30 21 * * 1-5", jobs[0].Schedule)
	assert.Equal(t, "config/universe.txt", jobs[0].Universe)
	assert.True(t, jobs[0].enabled())

	assert.Equal(t, "weekly-deep", jobs[1].Name)
	assert.False(t, jobs[1].enabled())
}

func TestLoadJobs_RejectsBadCron(t *testing.T) {
	path := writeJobs(t, `
jobs:
  - name: broken
    schedule: "every 5 minutes"
    universe: config/universe.txt
`)

	_, err := LoadJobs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestLoadJobs_RejectsDuplicateNames(t *testing.T) {
	path := writeJobs(t, `
jobs:
  - name: daily
    schedule: "0 6 * * *"
    universe: a.txt
  - name: daily
    schedule: "0 18 * * *"
    universe: b.txt
`)

	_, err := LoadJobs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate job name")
}

func TestLoadJobs_RejectsMissingUniverse(t *testing.T) {
	path := writeJobs(t, `
jobs:
  - name: daily
    schedule: "0 6 * * *"
`)

	_, err := LoadJobs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no universe file")
}

func TestLoadJobs_RejectsEmptyConfig(t *testing.T) {
	path := writeJobs(t, "jobs: []\n")

	_, err := LoadJobs(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no jobs")
}

func TestLoadJobs_MissingFileErrors(t *testing.T) {
	_, err := LoadJobs(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestRegister_DuplicateErrors(t *testing.T) {
	s := New(func(context.Context, Job) error { return nil })
	job := Job{Name: "daily", Schedule: "0 6 * * *", Universe: "u.txt"}

	require.NoError(t, s.Register(job))
	err := s.Register(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestTrigger_RunsJob(t *testing.T) {
	var got atomic.Value
	s := New(func(_ context.Context, job Job) error {
		got.Store(job.Universe)
		return nil
	})
	require.NoError(t, s.Register(Job{Name: "daily", Schedule: "0 6 * * *", Universe: "u.txt"}))

	require.NoError(t, s.Trigger("daily"))

	assert.Eventually(t, func() bool {
		return !s.Statuses()[0].LastRun.IsZero()
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "u.txt", got.Load())
	assert.Empty(t, s.Statuses()[0].LastError)
}

func TestTrigger_UnknownJobErrors(t *testing.T) {
	s := New(func(context.Context, Job) error { return nil })
	err := s.Trigger("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestTrigger_RecordsRunError(t *testing.T) {
	s := New(func(context.Context, Job) error { return errors.New("universe file missing") })
	require.NoError(t, s.Register(Job{Name: "daily", Schedule: "0 6 * * *", Universe: "u.txt"}))

	require.NoError(t, s.Trigger("daily"))

	assert.Eventually(t, func() bool {
		return s.Statuses()[0].LastError == "universe file missing"
	}, time.Second, 10*time.Millisecond)
}

func TestFire_SkipsOverlappingRun(t *testing.T) {
	release := make(chan struct{})
	var runs atomic.Int32
	s := New(func(context.Context, Job) error {
		runs.Add(1)
		<-release
		return nil
	})
	require.NoError(t, s.Register(Job{Name: "daily", Schedule: "0 6 * * *", Universe: "u.txt"}))

	require.NoError(t, s.Trigger("daily"))
	assert.Eventually(t, func() bool {
		return s.Statuses()[0].Running
	}, time.Second, 10*time.Millisecond)

	// Second fire lands while the first still holds the job.
	s.fire("daily")
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	assert.Eventually(t, func() bool {
		return !s.Statuses()[0].Running
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestStartStop_Lifecycle(t *testing.T) {
	s := New(func(context.Context, Job) error { return nil })
	require.NoError(t, s.Register(Job{Name: "daily", Schedule: "0 6 * * *", Universe: "u.txt"}))

	require.NoError(t, s.Start())
	assert.True(t, s.Status().Running)

	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")

	s.Stop()
	assert.False(t, s.Status().Running)
	s.Stop() // idempotent
}

func TestStatuses_SortedWithDisabled(t *testing.T) {
	off := false
	s := New(func(context.Context, Job) error { return nil })
	require.NoError(t, s.Register(Job{Name: "weekly", Schedule: "0 7 * * 6", Universe: "w.txt"}))
	require.NoError(t, s.Register(Job{Name: "daily", Schedule: "0 6 * * *", Universe: "d.txt", Enabled: &off}))

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "daily", statuses[0].Name)
	assert.False(t, statuses[0].Enabled)
	assert.True(t, statuses[0].NextRun.IsZero())
	assert.Equal(t, "weekly", statuses[1].Name)

	require.NoError(t, s.Start())
	defer s.Stop()
	assert.False(t, s.Statuses()[1].NextRun.IsZero())
}

func TestStatus_CountsJobs(t *testing.T) {
	off := false
	s := New(func(context.Context, Job) error { return nil })
	require.NoError(t, s.Register(Job{Name: "a", Schedule: "0 6 * * *", Universe: "a.txt"}))
	require.NoError(t, s.Register(Job{Name: "b", Schedule: "0 7 * * *", Universe: "b.txt", Enabled: &off}))

	status := s.Status()
	assert.Equal(t, 1, status.EnabledJobs)
	assert.Equal(t, 1, status.DisabledJobs)
	assert.False(t, status.Running)
}
