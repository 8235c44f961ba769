package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/application"
	"github.com/sawpanic/stresslens/internal/artifacts"
	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/infrastructure/db"
	"github.com/sawpanic/stresslens/internal/scheduler"
)

// runScheduleStart registers every job and runs them until interrupted.
func runScheduleStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jobsFile, _ := cmd.Flags().GetString("jobs")
	jobs, err := scheduler.LoadJobs(jobsFile)
	if err != nil {
		return err
	}

	manager, run, err := makeJobRunner(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	s := scheduler.New(run)
	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Scheduler running with %d jobs, Ctrl-C to stop\n", len(jobs))
	if err := s.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

// runScheduleList prints the jobs file contents.
func runScheduleList(cmd *cobra.Command, args []string) error {
	jobsFile, _ := cmd.Flags().GetString("jobs")
	jobs, err := scheduler.LoadJobs(jobsFile)
	if err != nil {
		return err
	}

	fmt.Printf("%-20s %-16s %-30s %s\n", "NAME", "SCHEDULE", "UNIVERSE", "ENABLED")
	for _, job := range jobs {
		enabled := "yes"
		if job.Enabled != nil && !*job.Enabled {
			enabled = "no"
		}
		fmt.Printf("%-20s %-16s %-30s %s\n", job.Name, job.Schedule, job.Universe, enabled)
	}
	return nil
}

// runScheduleOnce executes a single named job right now.
func runScheduleOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jobsFile, _ := cmd.Flags().GetString("jobs")
	jobs, err := scheduler.LoadJobs(jobsFile)
	if err != nil {
		return err
	}

	var job *scheduler.Job
	for i := range jobs {
		if jobs[i].Name == args[0] {
			job = &jobs[i]
			break
		}
	}
	if job == nil {
		return fmt.Errorf("job %s not found in %s", args[0], jobsFile)
	}

	manager, run, err := makeJobRunner(cfg)
	if err != nil {
		return err
	}
	defer manager.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *job); err != nil {
		return err
	}
	fmt.Printf("✅ Job %s finished\n", job.Name)
	return nil
}

// makeJobRunner builds the shared scoring stack once and returns the job
// callback. The caller owns the manager and must Close it.
func makeJobRunner(cfg *config.Config) (*db.Manager, scheduler.RunFunc, error) {
	manager, err := db.NewManager(db.Config{
		DSN:             cfg.Database.DSN,
		Enabled:         cfg.Database.Enabled,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		QueryTimeout:    cfg.Database.QueryTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}

	var runnerOpts []application.BatchOption
	if manager.IsEnabled() {
		if err := manager.EnsureSchema(context.Background()); err != nil {
			manager.Close()
			return nil, nil, fmt.Errorf("database schema: %w", err)
		}
		runnerOpts = append(runnerOpts, application.WithScoreRepo(manager.Repository().Scores))
	}

	builder, err := buildBuilder(cfg, nil)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}
	pipeline, err := buildPipeline(cfg, builder, nil)
	if err != nil {
		manager.Close()
		return nil, nil, err
	}

	writer := artifacts.NewWriter(cfg.Scoring.OutputDir)

	run := func(ctx context.Context, job scheduler.Job) error {
		tickers, err := application.LoadUniverse(job.Universe)
		if err != nil {
			return err
		}
		runner := application.NewBatchRunner(pipeline, writer, application.BatchConfig{
			Concurrency: cfg.Scoring.Concurrency,
			Universe:    job.Universe,
			KeepRuns:    cfg.Scoring.KeepRuns,
		}, runnerOpts...)

		out, err := runner.Run(ctx, tickers)
		if err != nil {
			return err
		}
		log.Info().Str("job", job.Name).Str("run_id", out.RunID).Int("scored", out.Summary.Scored).Int("failed", out.Summary.Failed).Msg("Job run complete")
		return nil
	}

	return manager, run, nil
}
