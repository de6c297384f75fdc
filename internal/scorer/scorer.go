// Package scorer orchestrates the full hybrid scoring pipeline: score cache,
// static page-set fetch, framework detection, conditional headless rendering,
// heuristic scoring with contact-evidence escalation, technographics, the AI
// review, and score combination.
package scorer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/detector"
	"github.com/lauravimes/leadblitz/internal/fetcher"
	"github.com/lauravimes/leadblitz/internal/heuristics"
	"github.com/lauravimes/leadblitz/internal/metrics"
	"github.com/lauravimes/leadblitz/internal/renderer"
	"github.com/lauravimes/leadblitz/internal/review"
	"github.com/lauravimes/leadblitz/internal/scoring"
	"github.com/lauravimes/leadblitz/internal/technographics"
)

const (
	homepageKey           = "homepage"
	aiExcerptChars        = 6000
	maxEscalationPages    = 3
	maxEscalationSubpages = 2
)

// sophisticationMessage explains a bot-blocked site to the sales team. These
// sites cannot be scored but are a signal in their own right.
const sophisticationMessage = "🛡️ **ADVANCED SECURITY DETECTED** - This website uses enterprise-grade bot protection " +
	"(likely Cloudflare, Akamai, or similar). This indicates a sophisticated, well-funded organization " +
	"with strong cybersecurity practices. While we cannot automatically score this site, the presence of " +
	"advanced security measures suggests: (1) Professional IT infrastructure, (2) Investment in digital security, " +
	"(3) Likely already has modern web architecture, (4) May not be an ideal target for basic web services. " +
	"**Recommendation:** Manually review this website - companies with this level of security often have strong " +
	"existing web presences and development teams."

// EscalationThresholds are the hand-tuned cutoffs for the second render pass.
type EscalationThresholds struct {
	ContactScoreBelow int
	RichContentWords  int
	ThinContactWords  int
}

// Config tunes the orchestrator.
type Config struct {
	ScoreMaxAge time.Duration
	Escalation  EscalationThresholds
}

func (c Config) withDefaults() Config {
	if c.ScoreMaxAge <= 0 {
		c.ScoreMaxAge = 24 * time.Hour
	}
	if c.Escalation.ContactScoreBelow <= 0 {
		c.Escalation.ContactScoreBelow = 3
	}
	if c.Escalation.RichContentWords <= 0 {
		c.Escalation.RichContentWords = 200
	}
	if c.Escalation.ThinContactWords <= 0 {
		c.Escalation.ThinContactWords = 100
	}
	return c
}

// Scorer wires the pipeline stages together. The renderer and store are
// optional; a nil renderer degrades JS-heavy sites to static scoring and a
// nil store disables caching.
type Scorer struct {
	cfg       Config
	assembler *fetcher.Assembler
	renderer  scoring.Renderer
	reviewer  *review.Reviewer
	store     scoring.ScoreStore
	clock     scoring.Clock
	logger    *zap.Logger
}

// New builds a Scorer.
func New(
	cfg Config,
	assembler *fetcher.Assembler,
	rend scoring.Renderer,
	reviewer *review.Reviewer,
	store scoring.ScoreStore,
	clock scoring.Clock,
	logger *zap.Logger,
) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		cfg:       cfg.withDefaults(),
		assembler: assembler,
		renderer:  rend,
		reviewer:  reviewer,
		store:     store,
		clock:     clock,
		logger:    logger,
	}
}

// Score runs the full pipeline for one URL with the score cache enabled.
// Scoring failures (blocked sites, unreachable hosts) are reported in-band on
// the result; the error return is reserved for unusable input.
func (s *Scorer) Score(ctx context.Context, rawURL string) (scoring.CombinedScore, error) {
	return s.score(ctx, rawURL, true)
}

// ScoreUncached forces a fresh run, neither reading nor writing the cache.
func (s *Scorer) ScoreUncached(ctx context.Context, rawURL string) (scoring.CombinedScore, error) {
	return s.score(ctx, rawURL, false)
}

func (s *Scorer) score(ctx context.Context, rawURL string, useCache bool) (scoring.CombinedScore, error) {
	normalized, err := scoring.NormalizeURL(rawURL)
	if err != nil {
		return scoring.CombinedScore{}, err
	}
	urlHash := scoring.HashURL(normalized)
	started := s.clock.Now()

	if useCache {
		if cached, ok := s.cachedScore(ctx, urlHash); ok {
			return cached, nil
		}
	}

	result := s.scoreFresh(ctx, normalized)
	result.URL = normalized

	metrics.ObservePathway(string(result.RenderPathway))
	metrics.ObserveFinalScore(result.FinalScore, s.clock.Now().Sub(started))

	if useCache && !result.HasErrors {
		s.saveScore(ctx, urlHash, normalized, result)
	}
	return result, nil
}

func (s *Scorer) scoreFresh(ctx context.Context, normalized string) scoring.CombinedScore {
	set := s.assembler.Assemble(ctx, normalized)

	finalURL := set.FinalURL
	if finalURL == "" {
		finalURL = normalized
	}
	markup := set.CombinedMarkup
	blocked := set.Pages[homepageKey].Blocked()
	needsBrowser := set.Pages[homepageKey].NeedsBrowserRender()
	usedFallbackRender := false
	var fallbackErrors []string

	// The static fetch came back empty, blocked, or deferred. A real browser
	// is the last chance to get content before giving up.
	if markup == "" || blocked || needsBrowser {
		s.logger.Info("static fetch insufficient, attempting browser fallback",
			zap.String("url", normalized),
			zap.Int("status", set.StatusCode),
			zap.Bool("blocked", blocked))

		if s.renderer != nil {
			rendered := s.renderer.Render(ctx, scoring.RenderRequest{URL: finalURL})
			fallbackErrors = rendered.Errors
			if rendered.Success && rendered.HTML != "" {
				if renderer.IsBlockPage(rendered.HTML) {
					s.logger.Warn("browser fallback rendered a block page", zap.String("url", normalized))
					blocked = true
				} else {
					markup = rendered.HTML
					if rendered.FinalURL != "" {
						finalURL = rendered.FinalURL
					}
					usedFallbackRender = true
					blocked = false
				}
			}
		}

		if markup == "" || blocked {
			return s.unscorable(set, fallbackErrors, blocked)
		}
	}

	detection := detector.Detect(markup)
	s.logger.Info("framework detection",
		zap.String("url", normalized),
		zap.String("summary", detector.Summary(detection)))

	pathway := scoring.PathwayStatic
	var renderErrors []string
	if usedFallbackRender {
		pathway = scoring.PathwayRendered
	} else {
		outcome := renderer.RenderIfNeeded(ctx, s.renderer, finalURL, markup, detection)
		markup = outcome.HTML
		pathway = outcome.Pathway
		renderErrors = outcome.Errors
	}

	heuristic := heuristics.Score(markup, finalURL)

	if !usedFallbackRender && pathway != scoring.PathwayRendered {
		if reason, ok := s.shouldEscalate(heuristic); ok {
			markup, heuristic, pathway = s.escalate(ctx, finalURL, markup, heuristic, set, pathway, reason)
		}
	}

	tech := technographics.Detect(markup, finalURL)

	renderingLimitations := heuristic.RenderingLimitations ||
		(detection.IsJSHeavy && pathway != scoring.PathwayRendered && pathway != scoring.PathwayEscalatedRender)

	aiReview := s.reviewer.Review(ctx, review.Input{
		Content:              review.ExtractContent(markup, aiExcerptChars),
		Evidence:             heuristic.Evidence,
		FinalURL:             finalURL,
		RenderingLimitations: renderingLimitations,
		Technographics:       tech,
	})

	result := Combine(heuristic, aiReview)
	result.Errors = renderErrors
	result.RenderPathway = pathway
	result.JSDetected = detection.IsJSHeavy
	result.JSConfidence = detection.Confidence
	result.DetectionSignals = detection.Signals
	result.FrameworkHints = detection.FrameworkHints
	result.RenderingLimitations = renderingLimitations
	result.Technographics = tech
	return result
}

// unscorable builds the in-band failure result for sites that refused both
// the static fetch and the browser fallback.
func (s *Scorer) unscorable(set scoring.PageSet, fallbackErrors []string, blocked bool) scoring.CombinedScore {
	result := scoring.CombinedScore{
		Confidence:           0.3,
		HasErrors:            true,
		Errors:               append(append([]string{}, set.Errors...), fallbackErrors...),
		RenderingLimitations: true,
		RenderPathway:        scoring.PathwayFetchFailed,
		BotBlocked:           blocked,
	}
	if blocked {
		result.RenderPathway = scoring.PathwayBotBlocked
		result.Sophistication = sophisticationMessage
		result.PlainEnglishReport = scoring.PlainEnglishReport{
			Strengths:              []string{"Website has enterprise-grade security measures"},
			TechnologyObservations: sophisticationMessage,
			SalesOpportunities:     []string{"May not be an ideal prospect - sophisticated IT already in place"},
		}
	} else {
		result.PlainEnglishReport = scoring.PlainEnglishReport{
			TechnologyObservations: "Unable to access website",
		}
	}
	return result
}

// shouldEscalate decides whether thin contact evidence on an otherwise real
// page justifies a second render pass. Contact details are the most common
// thing hidden behind client-side rendering.
func (s *Scorer) shouldEscalate(h scoring.HeuristicResult) (string, bool) {
	th := s.cfg.Escalation
	words := h.Evidence.TextWordCount

	if h.Scores.Contact < th.ContactScoreBelow && words > th.RichContentWords {
		return "contact score low but rich content", true
	}

	summary := h.Evidence.ContactSummary
	if summary.Emails == 0 && len(summary.Forms) == 0 && words > th.ThinContactWords {
		return "no emails or forms found but page has content", true
	}
	return "", false
}

func (s *Scorer) escalate(
	ctx context.Context,
	finalURL, markup string,
	heuristic scoring.HeuristicResult,
	set scoring.PageSet,
	pathway scoring.RenderPathway,
	reason string,
) (string, scoring.HeuristicResult, scoring.RenderPathway) {
	if s.renderer == nil {
		return markup, heuristic, pathway
	}

	s.logger.Info("escalating to browser render",
		zap.String("url", finalURL),
		zap.String("reason", reason))
	metrics.ObserveEscalation()

	targets := []string{finalURL}
	links := dedupeLinks(heuristic.Evidence.PriorityLinks, set.DiscoveredLinks)
	for _, link := range firstN(links, maxEscalationSubpages) {
		lower := strings.ToLower(link)
		if strings.Contains(lower, "contact") || strings.Contains(lower, "quote") || strings.Contains(lower, "enquir") {
			targets = append(targets, link)
		}
	}

	var escalated strings.Builder
	for _, target := range firstN(targets, maxEscalationPages) {
		rendered := s.renderer.Render(ctx, scoring.RenderRequest{URL: target})
		if rendered.Success && rendered.HTML != "" {
			escalated.WriteString("\n\n<!-- Rendered: " + target + " -->\n")
			escalated.WriteString(rendered.HTML)
		}
	}

	// Adopt the rendered corpus only when it actually added content.
	if escalated.Len() > len(markup) {
		markup = escalated.String()
		rescored := heuristics.Score(markup, finalURL)
		s.logger.Info("escalation render adopted",
			zap.String("url", finalURL),
			zap.Int("contact_score", rescored.Scores.Contact))
		return markup, rescored, scoring.PathwayEscalatedRender
	}
	return markup, heuristic, pathway
}

func (s *Scorer) cachedScore(ctx context.Context, urlHash string) (scoring.CombinedScore, bool) {
	if s.store == nil {
		return scoring.CombinedScore{}, false
	}
	entry, ok, err := s.store.Get(ctx, urlHash)
	if err != nil {
		s.logger.Warn("score cache lookup failed", zap.Error(err))
		return scoring.CombinedScore{}, false
	}
	if !ok {
		metrics.ObserveScoreCache("miss")
		return scoring.CombinedScore{}, false
	}
	if s.clock.Now().Sub(entry.FetchedAt) > s.cfg.ScoreMaxAge {
		metrics.ObserveScoreCache("stale")
		return scoring.CombinedScore{}, false
	}

	metrics.ObserveScoreCache("hit")
	result := entry.Score
	result.Cached = true
	result.CachedAt = entry.FetchedAt
	return result, true
}

func (s *Scorer) saveScore(ctx context.Context, urlHash, normalized string, result scoring.CombinedScore) {
	if s.store == nil {
		return
	}
	entry := scoring.CachedScore{
		URLHash:       urlHash,
		NormalizedURL: normalized,
		Score:         result,
		FetchedAt:     s.clock.Now(),
	}
	if err := s.store.Put(ctx, entry); err != nil {
		s.logger.Warn("score cache save failed", zap.Error(err))
	}
}

func dedupeLinks(groups ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, group := range groups {
		for _, link := range group {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			out = append(out, link)
		}
	}
	return out
}

func firstN(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
