// Package scoring defines the core types and interfaces for the website
// scoring pipeline: fetch/render results, detection output, heuristic and AI
// review scores, and the combined result persisted by the score cache.
package scoring

import (
	"context"
	"time"
)

// RenderPathway describes how the markup that was ultimately scored was
// obtained.
type RenderPathway string

const (
	// PathwayStatic means the static HTML fetch was scored as-is.
	PathwayStatic RenderPathway = "static"
	// PathwayRendered means a headless render replaced the static markup.
	PathwayRendered RenderPathway = "rendered"
	// PathwayRenderFailed means a render was attempted and failed; the
	// static markup was scored instead.
	PathwayRenderFailed RenderPathway = "render_failed"
	// PathwayEscalatedRender means a second render pass was triggered by
	// thin contact evidence and its output was scored.
	PathwayEscalatedRender RenderPathway = "escalated_render"
	// PathwayBotBlocked means the site refused both fetch and render.
	PathwayBotBlocked RenderPathway = "bot_blocked"
	// PathwayFetchFailed means no content could be obtained at all.
	PathwayFetchFailed RenderPathway = "fetch_failed"
)

// FetchResult is the outcome of fetching a single URL. It is immutable once
// returned by the fetcher. StatusCode is zero only when every attempt failed
// at the transport level.
type FetchResult struct {
	StatusCode int      `json:"status_code"`
	Body       string   `json:"-"`
	FinalURL   string   `json:"final_url"`
	Errors     []string `json:"errors,omitempty"`
	Retries    int      `json:"retries"`
}

// Blocked reports whether the response indicates bot protection.
func (r FetchResult) Blocked() bool {
	switch r.StatusCode {
	case 401, 403, 429:
		return true
	}
	return false
}

// NeedsBrowserRender reports whether the response hints that only a browser
// will produce content. Some sites answer HTTP 202 with an empty shell and
// hydrate client-side.
func (r FetchResult) NeedsBrowserRender() bool {
	return r.StatusCode == 202 && len(r.Body) <= thinBodyBytes
}

const thinBodyBytes = 500

// PageSet is the assembled homepage-plus-subpages corpus for one scoring
// request. It is never persisted.
type PageSet struct {
	Pages           map[string]FetchResult `json:"pages"`
	CombinedMarkup  string                 `json:"-"`
	FinalURL        string                 `json:"final_url"`
	StatusCode      int                    `json:"status_code"`
	DiscoveredLinks []string               `json:"discovered_links,omitempty"`
	Errors          []string               `json:"errors,omitempty"`
}

// DetectionMetrics carries the raw measurements behind a DetectionResult.
type DetectionMetrics struct {
	WordCount   int     `json:"text_word_count"`
	ScriptCount int     `json:"script_count"`
	ScriptRatio float64 `json:"script_ratio"`
	MarkupBytes int     `json:"html_size"`
}

// DetectionResult is the rendering-need detector's verdict for a piece of
// markup. It is a pure function of the markup and is never mutated.
type DetectionResult struct {
	IsJSHeavy      bool             `json:"is_js_heavy"`
	Confidence     float64          `json:"confidence"`
	Signals        []string         `json:"signals,omitempty"`
	FrameworkHints []string         `json:"framework_hints,omitempty"`
	Metrics        DetectionMetrics `json:"metrics"`
}

// RenderMetadata captures page-level facts observed during a render.
type RenderMetadata struct {
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// RenderResult is the outcome of one headless render. Cached entries are
// immutable and simply expire.
type RenderResult struct {
	Success     bool           `json:"success"`
	HTML        string         `json:"-"`
	TextContent string         `json:"-"`
	FinalURL    string         `json:"final_url"`
	StatusCode  int            `json:"status_code"`
	Errors      []string       `json:"errors,omitempty"`
	Metadata    RenderMetadata `json:"metadata"`
	Timestamp   time.Time      `json:"timestamp"`
	FromCache   bool           `json:"from_cache"`
}

// CategoryScores holds the six heuristic sub-scores. Each is capped by its
// category; the sum is at most 50.
type CategoryScores struct {
	Mobile   int `json:"mobile"`
	Security int `json:"security"`
	SEO      int `json:"seo"`
	Contact  int `json:"contact"`
	Content  int `json:"content"`
	Tech     int `json:"tech"`
}

// Total sums the six categories.
func (s CategoryScores) Total() int {
	return s.Mobile + s.Security + s.SEO + s.Contact + s.Content + s.Tech
}

// ContactSummary tallies contact evidence. The escalation check reads it to
// decide whether a second render pass is warranted.
type ContactSummary struct {
	Emails int      `json:"emails"`
	Phones int      `json:"phones"`
	Forms  []string `json:"forms,omitempty"`
	CTAs   int      `json:"ctas"`
}

// Evidence is the structured, human-inspectable data behind a heuristic
// score. Downstream report generators depend on these fields by name.
type Evidence struct {
	Viewport        string         `json:"viewport,omitempty"`
	HTTPS           bool           `json:"https"`
	PrivacyLinks    []string       `json:"privacy_links,omitempty"`
	Title           string         `json:"title,omitempty"`
	MetaDescription string         `json:"meta_description,omitempty"`
	H1              string         `json:"h1,omitempty"`
	TextWordCount   int            `json:"text_word_count"`
	EmailsFound     []string       `json:"emails_found,omitempty"`
	PhonesFound     []string       `json:"phones_found,omitempty"`
	ContactForms    []string       `json:"contact_forms,omitempty"`
	Addresses       []string       `json:"addresses,omitempty"`
	ContactItems    []string       `json:"contact_items,omitempty"`
	CTAButtons      []string       `json:"cta_buttons,omitempty"`
	CTACount        int            `json:"cta_count,omitempty"`
	ContactSummary  ContactSummary `json:"contact_detection_summary"`
	PriorityLinks   []string       `json:"priority_links,omitempty"`
	ImagesSample    []string       `json:"images_sample,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
}

// HeuristicResult is the deterministic scorer's output.
type HeuristicResult struct {
	Scores               CategoryScores `json:"scores"`
	TotalHeuristic       int            `json:"total_heuristic"`
	Evidence             Evidence       `json:"evidence"`
	RenderingLimitations bool           `json:"rendering_limitations"`
}

// AICategoryScores holds the five AI review sub-scores. Ceilings: brand 12,
// visual 10, conversion 12, trust 10, a11y 6.
type AICategoryScores struct {
	Brand      int `json:"brand"`
	Visual     int `json:"visual"`
	Conversion int `json:"conversion"`
	Trust      int `json:"trust"`
	A11y       int `json:"a11y"`
}

// Total sums the five categories.
func (s AICategoryScores) Total() int {
	return s.Brand + s.Visual + s.Conversion + s.Trust + s.A11y
}

// PlainEnglishReport is the sales-facing narrative the reviewer produces.
type PlainEnglishReport struct {
	Strengths              []string `json:"strengths,omitempty"`
	Weaknesses             []string `json:"weaknesses,omitempty"`
	TechnologyObservations string   `json:"technology_observations,omitempty"`
	SalesOpportunities     []string `json:"sales_opportunities,omitempty"`
}

// AIReviewResult is the validated, clamped output of the model review.
type AIReviewResult struct {
	CategoryScores       AICategoryScores   `json:"category_scores"`
	Justifications       map[string]string  `json:"justifications,omitempty"`
	PlainEnglishReport   PlainEnglishReport `json:"plain_english_report"`
	InsufficientEvidence bool               `json:"insufficient_evidence"`
	Confidence           float64            `json:"confidence"`
}

// ScoreBreakdown pairs the two scoring passes for reporting.
type ScoreBreakdown struct {
	Heuristic CategoryScores   `json:"heuristic"`
	AI        AICategoryScores `json:"ai"`
}

// CombinedScore is the final, cacheable unit of the pipeline. "Could not
// score" is represented in-band via HasErrors, RenderPathway and BotBlocked,
// never as an error to the caller.
type CombinedScore struct {
	URL                  string               `json:"url"`
	FinalScore           int                  `json:"final_score"`
	Confidence           float64              `json:"confidence"`
	HeuristicScore       int                  `json:"heuristic_score"`
	AIScore              int                  `json:"ai_score"`
	Breakdown            ScoreBreakdown       `json:"breakdown"`
	Evidence             Evidence             `json:"evidence"`
	AIJustifications     map[string]string    `json:"ai_justifications,omitempty"`
	PlainEnglishReport   PlainEnglishReport   `json:"plain_english_report"`
	RenderingLimitations bool                 `json:"rendering_limitations"`
	InsufficientEvidence bool                 `json:"insufficient_evidence"`
	HasErrors            bool                 `json:"has_errors"`
	Errors               []string             `json:"errors,omitempty"`
	RenderPathway        RenderPathway        `json:"render_pathway"`
	JSDetected           bool                 `json:"js_detected"`
	JSConfidence         float64              `json:"js_confidence"`
	DetectionSignals     []string             `json:"detection_signals,omitempty"`
	FrameworkHints       []string             `json:"framework_hints,omitempty"`
	BotBlocked           bool                 `json:"bot_blocked"`
	Sophistication       string               `json:"sophistication_message,omitempty"`
	Technographics       TechnographicsResult `json:"technographics"`
	Cached               bool                 `json:"cached"`
	CachedAt             time.Time            `json:"cached_at,omitzero"`
}

// CachedScore is a score cache entry keyed by the SHA-256 hash of the
// normalized URL.
type CachedScore struct {
	URLHash       string        `json:"url_hash"`
	NormalizedURL string        `json:"normalized_url"`
	Score         CombinedScore `json:"score"`
	FetchedAt     time.Time     `json:"fetched_at"`
}

// RenderRequest describes one headless render call.
type RenderRequest struct {
	URL          string
	WaitSelector string
}

// Renderer runs a headless browser against a URL. Implementations report
// failure through RenderResult.Errors rather than an error return; the
// pipeline must keep working when rendering is unavailable.
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) RenderResult
}

// ReviewClient is the LLM collaborator: it takes a system and user prompt
// and returns the raw model text, which the reviewer validates and clamps.
type ReviewClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ScoreStore persists combined scores keyed by normalized-URL hash. Get
// returns ok=false on a miss; freshness is the caller's concern.
type ScoreStore interface {
	Get(ctx context.Context, urlHash string) (CachedScore, bool, error)
	Put(ctx context.Context, entry CachedScore) error
}

// Clock abstracts time.Now so TTL behavior is testable.
type Clock interface {
	Now() time.Time
}
