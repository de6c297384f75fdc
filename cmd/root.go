// Package cmd defines the CLI commands for the leadblitz executable.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/batch"
	"github.com/lauravimes/leadblitz/internal/cache"
	cachePostgres "github.com/lauravimes/leadblitz/internal/cache/postgres"
	"github.com/lauravimes/leadblitz/internal/clock/system"
	"github.com/lauravimes/leadblitz/internal/config"
	"github.com/lauravimes/leadblitz/internal/fetcher"
	"github.com/lauravimes/leadblitz/internal/logging"
	"github.com/lauravimes/leadblitz/internal/metrics"
	"github.com/lauravimes/leadblitz/internal/renderer"
	"github.com/lauravimes/leadblitz/internal/review"
	"github.com/lauravimes/leadblitz/internal/scorer"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leadblitz",
		Short: "Website audit and lead scoring pipeline.",
		Long: `leadblitz fetches a business website, detects whether it needs browser
rendering, scores it with deterministic heuristics and an AI review, and
produces a 0-100 lead score with evidence a sales team can act on.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus LEADBLITZ_* env)")

	cmd.AddCommand(newScoreCmd())
	cmd.AddCommand(newBatchCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// pipeline holds every constructed service so commands can share wiring and
// tear it down in one place.
type pipeline struct {
	cfg    config.Config
	logger *zap.Logger
	scorer *scorer.Scorer
	runner *batch.Runner

	chrome  *renderer.Chrome
	pgStore *cachePostgres.Store
}

func buildPipeline(cmd *cobra.Command) (*pipeline, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	clock := system.New()
	p := &pipeline{cfg: cfg, logger: logger}

	f := fetcher.New(fetcher.Config{
		Timeout:    cfg.FetchTimeout(),
		MaxRetries: cfg.Fetch.MaxRetries,
	}, logger.Named("fetcher"))
	assembler := fetcher.NewAssembler(f, fetcher.AssemblerConfig{
		MaxPages:    cfg.Fetch.MaxPages,
		Concurrency: cfg.Fetch.SubpageConcurrency,
		Budget:      cfg.PageSetBudget(),
	}, logger.Named("pageset"))

	var rend scoring.Renderer
	if cfg.Render.Enabled {
		renderCache := renderer.NewCache(time.Duration(cfg.Render.CacheTTLHours)*time.Hour, clock)
		chrome, err := renderer.NewChrome(renderer.Config{
			MaxParallel:       cfg.Render.MaxParallel,
			UserAgent:         cfg.Render.UserAgent,
			NavigationTimeout: cfg.NavTimeout(),
		}, renderCache, logger.Named("renderer"))
		if err != nil {
			logger.Warn("headless renderer init failed, scoring without rendering", zap.Error(err))
		} else {
			p.chrome = chrome
			rend = chrome
		}
	}

	var client scoring.ReviewClient
	if cfg.Review.APIKey != "" {
		client = review.NewOpenAIClient(review.OpenAIConfig{
			Endpoint:    cfg.Review.Endpoint,
			APIKey:      cfg.Review.APIKey,
			Model:       cfg.Review.Model,
			Temperature: cfg.Review.Temperature,
			Timeout:     time.Duration(cfg.Review.TimeoutSeconds) * time.Second,
		}, logger.Named("openai"))
	} else {
		logger.Warn("no review API key configured, AI scores will be zero")
	}
	reviewer := review.New(client, logger.Named("review"))

	var store scoring.ScoreStore
	if cfg.Cache.DSN != "" {
		pgStore, err := cachePostgres.NewStore(cmd.Context(), cachePostgres.StoreConfig{
			DSN:      cfg.Cache.DSN,
			Table:    cfg.Cache.Table,
			MaxConns: cfg.Cache.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("init score cache: %w", err)
		}
		p.pgStore = pgStore
		store = pgStore
	} else {
		store = cache.NewMemory()
	}

	p.scorer = scorer.New(scorer.Config{
		ScoreMaxAge: cfg.ScoreMaxAge(),
		Escalation: scorer.EscalationThresholds{
			ContactScoreBelow: cfg.Escalation.ContactScoreBelow,
			RichContentWords:  cfg.Escalation.RichContentWords,
			ThinContactWords:  cfg.Escalation.ThinContactWords,
		},
	}, assembler, rend, reviewer, store, clock, logger.Named("scorer"))

	p.runner = batch.New(batch.Config{
		Concurrency:    cfg.Batch.Concurrency,
		PerLeadTimeout: time.Duration(cfg.Batch.PerLeadTimeoutSec) * time.Second,
		TotalTimeout:   time.Duration(cfg.Batch.TotalTimeoutSec) * time.Second,
	}, p.scorer, logger.Named("batch"))

	return p, nil
}

func (p *pipeline) Close() {
	if p.chrome != nil {
		p.chrome.Close()
	}
	if p.pgStore != nil {
		p.pgStore.Close()
	}
	_ = p.logger.Sync()
}
