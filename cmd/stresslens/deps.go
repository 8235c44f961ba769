package main

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sawpanic/stresslens/internal/application"
	"github.com/sawpanic/stresslens/internal/config"
	"github.com/sawpanic/stresslens/internal/data/cache"
	"github.com/sawpanic/stresslens/internal/metrics"
	"github.com/sawpanic/stresslens/internal/narrative"
	"github.com/sawpanic/stresslens/internal/providers/fundamentals"
	"github.com/sawpanic/stresslens/internal/providers/shortinterest"
)

// loadConfig resolves the --config flag. A missing file means defaults, so a
// bare checkout works without any setup.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIfPresent(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildClient(cfg *config.Config) *fundamentals.Client {
	return fundamentals.NewClient(cfg.Provider.APIKey,
		fundamentals.WithBaseURL(cfg.Provider.BaseURL),
		fundamentals.WithRateLimit(cfg.Provider.RPS, cfg.Provider.Burst),
		fundamentals.WithTimeout(cfg.Provider.Timeout),
		fundamentals.WithBreaker(fundamentals.BreakerConfig{
			FailureThreshold: cfg.Provider.Circuit.FailureThreshold,
			OpenFor:          cfg.Provider.Circuit.OpenFor,
			HalfOpenRequests: cfg.Provider.Circuit.HalfOpenRequests,
		}),
	)
}

func buildCache(cfg *config.Config) (cache.Store, error) {
	memory := cache.NewMemory(cfg.Cache.MaxEntries)

	file, err := cache.NewFile(cfg.Cache.Dir)
	if err != nil {
		return nil, fmt.Errorf("open cache dir: %w", err)
	}

	var redisTier cache.Store
	if cfg.Cache.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisAddr,
			DB:   cfg.Cache.RedisDB,
		})
		redisTier = cache.NewRedis(client)
		log.Info().Str("addr", cfg.Cache.RedisAddr).Msg("Redis cache tier enabled")
	}

	return cache.NewTiered(memory, redisTier, file), nil
}

// buildBuilder assembles the snapshot builder: provider client, tiered
// cache, and the short-interest bridge when the script is usable.
func buildBuilder(cfg *config.Config, registry *metrics.Registry) (*application.SnapshotBuilder, error) {
	store, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	opts := []application.SnapshotOption{
		application.WithCache(store, cfg.Cache.TTLFor),
		application.WithUniverseJobs(cfg.Scoring.Concurrency),
	}
	if registry != nil {
		opts = append(opts, application.WithSnapshotMetrics(registry))
	}

	if !cfg.ShortInterest.Disabled {
		bridge := shortinterest.NewBridge(shortinterest.Config{
			Script:  cfg.ShortInterest.Script,
			Python:  cfg.ShortInterest.Python,
			Timeout: cfg.ShortInterest.Timeout,
		})
		if bridge.Available() {
			opts = append(opts, application.WithShortInterest(bridge))
		} else {
			log.Warn().Str("script", cfg.ShortInterest.Script).Msg("Short-interest script not usable, positioning will degrade")
		}
	}

	return application.NewSnapshotBuilder(buildClient(cfg), opts...), nil
}

func buildPipeline(cfg *config.Config, builder *application.SnapshotBuilder, registry *metrics.Registry) (*application.Pipeline, error) {
	opts := []application.PipelineOption{}
	if registry != nil {
		opts = append(opts, application.WithPipelineMetrics(registry))
	}

	if cfg.NarrativeParamsFile != "" {
		overrides, err := narrative.LoadOverrides(cfg.NarrativeParamsFile)
		if err != nil {
			return nil, fmt.Errorf("narrative params: %w", err)
		}
		opts = append(opts, application.WithNarrativeOverrides(overrides))
	}

	return application.NewPipeline(builder, opts...), nil
}

// enumFlag is a pflag.Value restricted to a fixed set of strings.
type enumFlag struct {
	value   string
	allowed []string
}

func newEnumFlag(def string, allowed ...string) *enumFlag {
	return &enumFlag{value: def, allowed: allowed}
}

func (f *enumFlag) String() string { return f.value }
func (f *enumFlag) Type() string   { return "string" }

func (f *enumFlag) Set(v string) error {
	for _, a := range f.allowed {
		if v == a {
			f.value = v
			return nil
		}
	}
	return fmt.Errorf("must be one of: %s", strings.Join(f.allowed, "|"))
}

var _ pflag.Value = (*enumFlag)(nil)
