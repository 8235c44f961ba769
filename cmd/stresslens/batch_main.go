package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/application"
	"github.com/sawpanic/stresslens/internal/artifacts"
	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/infrastructure/db"
	applog "github.com/sawpanic/stresslens/internal/log"
	"github.com/sawpanic/stresslens/internal/models"
)

// runBatch scores a universe file and writes run artifacts.
func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	universeFile, _ := cmd.Flags().GetString("universe")
	asOf, _ := cmd.Flags().GetString("asof")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	outputDir, _ := cmd.Flags().GetString("output")

	return batchOne(cfg, universeFile, asOf, concurrency, outputDir)
}

// batchOne runs one batch; empty arguments fall back to the config values.
func batchOne(cfg *config.Config, universeFile, asOf string, concurrency int, outputDir string) error {
	if universeFile == "" {
		universeFile = cfg.Scoring.UniverseFile
	}
	if asOf == "" {
		asOf = cfg.Scoring.AsOf
	}
	if concurrency <= 0 {
		concurrency = cfg.Scoring.Concurrency
	}
	if outputDir == "" {
		outputDir = cfg.Scoring.OutputDir
	}

	if asOf != "" {
		if _, ok := models.ParsePeriod(asOf); !ok {
			return fmt.Errorf("invalid --asof date: %s (want YYYY-MM-DD)", asOf)
		}
	}

	tickers, err := application.LoadUniverse(universeFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		return fmt.Errorf("database: %w", err)
	}
	defer manager.Close()

	var runnerOpts []application.BatchOption
	if manager.IsEnabled() {
		if err := manager.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("database schema: %w", err)
		}
		runnerOpts = append(runnerOpts, application.WithScoreRepo(manager.Repository().Scores))
	}

	builder, err := buildBuilder(cfg, nil)
	if err != nil {
		return err
	}
	pipeline, err := buildPipeline(cfg, builder, nil)
	if err != nil {
		return err
	}

	progress := applog.NewProgress("scoring", len(tickers))
	runnerOpts = append(runnerOpts, application.WithProgress(progress.Step))

	runner := application.NewBatchRunner(pipeline, artifacts.NewWriter(outputDir), application.BatchConfig{
		Concurrency: concurrency,
		AsOf:        asOf,
		Universe:    universeFile,
		KeepRuns:    cfg.Scoring.KeepRuns,
	}, runnerOpts...)

	started := time.Now()
	out, err := runner.Run(ctx, tickers)
	progress.Finish()
	if err != nil {
		return err
	}

	fmt.Printf("✅ Scored %d/%d tickers in %s\n", out.Summary.Scored, out.Summary.Requested, time.Since(started).Round(time.Second))
	if out.Summary.Failed > 0 {
		fmt.Printf("   %d tickers failed, see their JSON rows for the error\n", out.Summary.Failed)
	}
	fmt.Printf("   Run %s\n", out.RunID)
	fmt.Printf("   Artifacts in %s\n", out.Dir)

	if !manager.IsEnabled() {
		log.Debug().Msg("Persistence disabled, scores not stored")
	}
	return nil
}
