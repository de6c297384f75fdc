// Package batch scores lists of leads through a bounded worker pool with
// per-lead and whole-run deadlines.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/metrics"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Outcome labels how one lead finished.
type Outcome string

const (
	OutcomeScored   Outcome = "scored"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeSkipped  Outcome = "skipped"
)

// Lead is one row of a scoring batch.
type Lead struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Website string `json:"website"`
}

// LeadResult pairs a lead with its scoring outcome. Reason is set only on
// failure and is written for the sales team, not for operators.
type LeadResult struct {
	Lead    Lead                   `json:"lead"`
	Outcome Outcome                `json:"outcome"`
	Score   *scoring.CombinedScore `json:"score,omitempty"`
	Reason  string                 `json:"reason,omitempty"`
}

// Summary is the aggregate result of one batch run.
type Summary struct {
	Results  []LeadResult  `json:"results"`
	Scored   int           `json:"scored"`
	Failed   int           `json:"failed"`
	TimedOut int           `json:"timed_out"`
	Skipped  int           `json:"skipped"`
	Elapsed  time.Duration `json:"-"`
}

// WebsiteScorer is the single-URL pipeline the pool fans out over.
type WebsiteScorer interface {
	Score(ctx context.Context, url string) (scoring.CombinedScore, error)
}

// Config bounds the pool.
type Config struct {
	Concurrency    int
	PerLeadTimeout time.Duration
	TotalTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	if c.PerLeadTimeout <= 0 {
		c.PerLeadTimeout = 30 * time.Second
	}
	if c.TotalTimeout <= 0 {
		c.TotalTimeout = 300 * time.Second
	}
	return c
}

// Runner executes batches.
type Runner struct {
	cfg    Config
	scorer WebsiteScorer
	logger *zap.Logger
}

// New builds a Runner.
func New(cfg Config, scorer WebsiteScorer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg.withDefaults(), scorer: scorer, logger: logger}
}

// Run scores every lead, at most Concurrency at a time. When the whole-run
// deadline expires, leads still waiting are marked timed out rather than
// silently dropped.
func (r *Runner) Run(ctx context.Context, leads []Lead) Summary {
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.TotalTimeout)
	defer cancel()

	results := make([]LeadResult, len(leads))
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, lead := range leads {
		select {
		case <-ctx.Done():
			results[i] = LeadResult{Lead: lead, Outcome: OutcomeTimedOut, Reason: "batch deadline exceeded"}
			metrics.ObserveBatchLead(string(OutcomeTimedOut))
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, lead Lead) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = r.scoreLead(ctx, lead)
			metrics.ObserveBatchLead(string(results[i].Outcome))
		}(i, lead)
	}
	wg.Wait()

	summary := Summary{Results: results, Elapsed: time.Since(started)}
	for _, res := range results {
		switch res.Outcome {
		case OutcomeScored:
			summary.Scored++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeTimedOut:
			summary.TimedOut++
		case OutcomeSkipped:
			summary.Skipped++
		}
	}

	r.logger.Info("batch finished",
		zap.Int("leads", len(leads)),
		zap.Int("scored", summary.Scored),
		zap.Int("failed", summary.Failed),
		zap.Int("timed_out", summary.TimedOut),
		zap.Int("skipped", summary.Skipped),
		zap.Duration("elapsed", summary.Elapsed))
	return summary
}

func (r *Runner) scoreLead(ctx context.Context, lead Lead) LeadResult {
	if lead.Website == "" {
		return LeadResult{Lead: lead, Outcome: OutcomeSkipped, Reason: "lead has no website"}
	}

	leadCtx, cancel := context.WithTimeout(ctx, r.cfg.PerLeadTimeout)
	defer cancel()

	score, err := r.scorer.Score(leadCtx, lead.Website)
	if err != nil {
		return LeadResult{Lead: lead, Outcome: OutcomeFailed, Reason: "invalid website URL"}
	}
	if errors.Is(leadCtx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("lead scoring timed out",
			zap.String("lead", lead.Name),
			zap.String("website", lead.Website))
		return LeadResult{Lead: lead, Outcome: OutcomeTimedOut, Reason: "scoring timed out"}
	}

	if reason, failed := failureReason(score); failed {
		return LeadResult{Lead: lead, Outcome: OutcomeFailed, Score: &score, Reason: reason}
	}
	return LeadResult{Lead: lead, Outcome: OutcomeScored, Score: &score}
}

// failureReason maps an unscorable result to a human explanation.
func failureReason(score scoring.CombinedScore) (string, bool) {
	scoringFailed := score.RenderPathway == scoring.PathwayFetchFailed ||
		score.RenderPathway == scoring.PathwayBotBlocked ||
		(score.HasErrors && score.FinalScore == 0)
	if !scoringFailed {
		return "", false
	}

	switch {
	case score.RenderPathway == scoring.PathwayBotBlocked:
		return "Website has advanced security that blocks automated access", true
	case score.RenderPathway == scoring.PathwayFetchFailed:
		return "Could not connect to website (may be down or inaccessible)", true
	case score.HasErrors:
		return "Website returned errors during analysis", true
	}
	return "Unable to analyze website content", true
}
