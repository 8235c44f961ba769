package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/infrastructure/db"
	httpserver "github.com/sawpanic/stresslens/internal/interfaces/http"
	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/persistence"
)

// runMonitor starts the read-only monitor HTTP server.
func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	addr, _ := cmd.Flags().GetString("addr")
	return monitorServe(cfg, addr)
}

// monitorServe blocks until an interrupt or a server error.
func monitorServe(cfg *config.Config, addr string) error {
	if addr == "" {
		addr = cfg.Monitor.Addr
	}

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

	var scores persistence.ScoreRepo
	if manager.IsEnabled() {
		scores = manager.Repository().Scores
	} else {
		log.Warn().Msg("Persistence disabled, score endpoints will report unavailable")
	}

	registry := metrics.NewRegistry(nil)

	serverConfig := httpserver.DefaultServerConfig()
	serverConfig.Addr = addr
	server, err := httpserver.NewServer(serverConfig, scores, manager.Health(), registry)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("health", fmt.Sprintf("http://%s/health", addr)).
			Str("metrics", fmt.Sprintf("http://%s/metrics", addr)).
			Str("scores", fmt.Sprintf("http://%s/api/v1/scores/{ticker}", addr)).
			Msg("Monitor endpoints available")

		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
		return err
	}

	log.Info().Msg("Monitor server shutdown complete")
	return nil
}
