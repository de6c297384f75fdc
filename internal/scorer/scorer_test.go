package scorer

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lauravimes/leadblitz/internal/cache"
	"github.com/lauravimes/leadblitz/internal/clock/fake"
	"github.com/lauravimes/leadblitz/internal/fetcher"
	"github.com/lauravimes/leadblitz/internal/review"
	"github.com/lauravimes/leadblitz/internal/scoring"
)

const reviewJSON = `{
	"category_scores": {"brand": 8, "visual": 7, "conversion": 9, "trust": 7, "a11y": 4},
	"justifications": {"brand": "consistent identity"},
	"plain_english_report": {
		"strengths": ["Clear service pages"],
		"weaknesses": ["No case studies"],
		"technology_observations": "Simple static site",
		"sales_opportunities": ["Offer a booking system"]
	},
	"insufficient_evidence": false,
	"confidence": 0.8
}`

type stubReviewClient struct {
	response string
	err      error
}

func (c *stubReviewClient) Complete(_ context.Context, _, _ string) (string, error) {
	return c.response, c.err
}

type stubRenderer struct {
	mu       sync.Mutex
	html     string
	success  bool
	requests []string
}

func (r *stubRenderer) Render(_ context.Context, req scoring.RenderRequest) scoring.RenderResult {
	r.mu.Lock()
	r.requests = append(r.requests, req.URL)
	r.mu.Unlock()
	return scoring.RenderResult{
		Success:  r.success,
		HTML:     r.html,
		FinalURL: req.URL,
	}
}

func (r *stubRenderer) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.requests...)
}

func filler(words int) string {
	return strings.Repeat("quality decking installation with hardwood materials across yorkshire ", words/9)
}

func richStaticSite() string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<title>Smith Decking - Quality Garden Decking</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta name="description" content="Professional decking installation across Yorkshire with free quotes and a ten year workmanship guarantee for every project.">
</head><body>
<h1>Quality Decking Installers</h1>
<p>%s</p>
<a href="mailto:info@smithdecking.co.uk">Email us</a>
<a href="tel:+441134960000">Call us</a>
<form><input type="text" name="name"><input type="email" name="email"><textarea name="message"></textarea></form>
<a href="/privacy">Privacy Policy</a>
</body></html>`, filler(300))
}

func contactlessSite() string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html><head>
<title>Smith Decking - Quality Garden Decking</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
<h1>Quality Decking Installers</h1>
<p>%s</p>
</body></html>`, filler(300))
}

func newTestScorer(t *testing.T, rend scoring.Renderer, client scoring.ReviewClient, store scoring.ScoreStore, clk scoring.Clock) *Scorer {
	t.Helper()
	f := fetcher.New(fetcher.Config{
		Timeout:          2 * time.Second,
		MaxRetries:       1,
		RetryBackoffBase: time.Millisecond,
	}, nil)
	assembler := fetcher.NewAssembler(f, fetcher.AssemblerConfig{
		MaxPages:    1,
		Concurrency: 2,
		Budget:      5 * time.Second,
	}, nil)
	if clk == nil {
		clk = fake.New(time.Unix(1700000000, 0).UTC())
	}
	return New(Config{}, assembler, rend, review.New(client, nil), store, clk, nil)
}

func TestScoreStaticSiteEndToEnd(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, richStaticSite())
	}))
	defer srv.Close()

	store := cache.NewMemory()
	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, store, nil)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayStatic, result.RenderPathway)
	assert.Equal(t, 35, result.AIScore)
	assert.Equal(t, result.HeuristicScore+result.AIScore, result.FinalScore)
	assert.InDelta(t, 0.85, result.Confidence, 0.001)
	assert.False(t, result.Cached)
	assert.False(t, result.HasErrors)
	assert.False(t, result.JSDetected)
	assert.Equal(t, 1, store.Len())
}

func TestScoreCacheHitSecondCall(t *testing.T) {
	t.Parallel()

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, richStaticSite())
	}))
	defer srv.Close()

	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, cache.NewMemory(), nil)

	first, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)
	fetchesAfterFirst := hits

	second, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.False(t, second.CachedAt.IsZero())
	assert.Equal(t, first.FinalScore, second.FinalScore)
	assert.Equal(t, fetchesAfterFirst, hits, "cache hit must not refetch")
}

func TestScoreStaleCacheRescores(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, richStaticSite())
	}))
	defer srv.Close()

	clk := fake.New(time.Unix(1700000000, 0).UTC())
	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, cache.NewMemory(), clk)

	_, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, result.Cached, "stale entry must be rescored")
}

func TestScoreBotBlockedWithoutRenderer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><body>403 Forbidden</body></html>")
	}))
	defer srv.Close()

	store := cache.NewMemory()
	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, store, nil)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayBotBlocked, result.RenderPathway)
	assert.True(t, result.BotBlocked)
	assert.True(t, result.HasErrors)
	assert.Zero(t, result.FinalScore)
	assert.InDelta(t, 0.3, result.Confidence, 0.001)
	assert.Contains(t, result.Sophistication, "ADVANCED SECURITY DETECTED")
	assert.Equal(t, []string{"Website has enterprise-grade security measures"}, result.PlainEnglishReport.Strengths)
	assert.Equal(t, 0, store.Len(), "failure results are never cached")
}

func TestScoreFetchFailed(t *testing.T) {
	t.Parallel()

	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, nil, nil)

	result, err := s.Score(context.Background(), "http://127.0.0.1:1/")
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayFetchFailed, result.RenderPathway)
	assert.False(t, result.BotBlocked)
	assert.True(t, result.HasErrors)
	assert.NotEmpty(t, result.Errors)
	assert.Equal(t, "Unable to access website", result.PlainEnglishReport.TechnologyObservations)
}

func TestScoreFallbackRenderRecoversBlockedSite(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><body>403 Forbidden</body></html>")
	}))
	defer srv.Close()

	rend := &stubRenderer{success: true, html: richStaticSite()}
	s := newTestScorer(t, rend, &stubReviewClient{response: reviewJSON}, nil, nil)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayRendered, result.RenderPathway)
	assert.False(t, result.BotBlocked)
	assert.False(t, result.HasErrors)
	assert.Positive(t, result.FinalScore)
	assert.Len(t, rend.seen(), 1)
}

func TestScoreFallbackRenderStillBlocked(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "<html><body>403 Forbidden</body></html>")
	}))
	defer srv.Close()

	rend := &stubRenderer{success: true, html: "<html><body>Checking your browser - Cloudflare Ray ID 123</body></html>"}
	s := newTestScorer(t, rend, &stubReviewClient{response: reviewJSON}, nil, nil)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayBotBlocked, result.RenderPathway)
	assert.True(t, result.BotBlocked)
}

func TestScoreEscalatesOnThinContactEvidence(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, contactlessSite())
	}))
	defer srv.Close()

	rendered := richStaticSite() + strings.Repeat("<p>extra rendered content</p>", 40)
	rend := &stubRenderer{success: true, html: rendered}
	s := newTestScorer(t, rend, &stubReviewClient{response: reviewJSON}, nil, nil)

	result, err := s.Score(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, scoring.PathwayEscalatedRender, result.RenderPathway)
	assert.Positive(t, result.Evidence.ContactSummary.Emails)
	assert.NotEmpty(t, rend.seen())
}

func TestScoreUncachedSkipsStore(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, richStaticSite())
	}))
	defer srv.Close()

	store := cache.NewMemory()
	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, store, nil)

	result, err := s.ScoreUncached(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, 0, store.Len(), "uncached runs must not write the store")
}

func TestScoreInvalidURL(t *testing.T) {
	t.Parallel()

	s := newTestScorer(t, nil, &stubReviewClient{response: reviewJSON}, nil, nil)
	_, err := s.Score(context.Background(), "   ")
	require.Error(t, err)
}

func TestCombine(t *testing.T) {
	t.Parallel()

	heuristic := scoring.HeuristicResult{
		Scores:         scoring.CategoryScores{Mobile: 10, Security: 8, SEO: 6, Contact: 5, Content: 8, Tech: 4},
		TotalHeuristic: 41,
		Evidence:       scoring.Evidence{TextWordCount: 300},
	}
	ai := scoring.AIReviewResult{
		CategoryScores: scoring.AICategoryScores{Brand: 8, Visual: 7, Conversion: 9, Trust: 7, A11y: 4},
		Confidence:     0.8,
	}

	combined := Combine(heuristic, ai)
	assert.Equal(t, 76, combined.FinalScore)
	assert.Equal(t, 41, combined.HeuristicScore)
	assert.Equal(t, 35, combined.AIScore)
	assert.InDelta(t, 0.85, combined.Confidence, 0.001)
}

func TestCombineThinContentLowersConfidence(t *testing.T) {
	t.Parallel()

	heuristic := scoring.HeuristicResult{
		TotalHeuristic: 12,
		Evidence:       scoring.Evidence{TextWordCount: 40},
	}
	ai := scoring.AIReviewResult{Confidence: 0.6}

	combined := Combine(heuristic, ai)
	assert.InDelta(t, 0.6, combined.Confidence, 0.001)
	assert.Equal(t, 12, combined.FinalScore)
}
