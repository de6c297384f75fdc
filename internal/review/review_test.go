package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

type stubClient struct {
	response string
	err      error
	lastUser string
}

func (s *stubClient) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	s.lastUser = userPrompt
	return s.response, s.err
}

func TestReviewValidResponse(t *testing.T) {
	client := &stubClient{response: `{
		"category_scores": {"brand": 10, "visual": 8, "conversion": 9, "trust": 7, "a11y": 4},
		"justifications": {"brand": "H1 says 'Smith Plumbing' - clear local trade offer"},
		"plain_english_report": {
			"strengths": ["Clear headline"],
			"weaknesses": ["No testimonials"],
			"technology_observations": "Runs WordPress 6.4 with analytics installed.",
			"sales_opportunities": ["Add a booking flow"]
		},
		"insufficient_evidence": false,
		"confidence": 0.85
	}`}

	res := New(client, nil).Review(context.Background(), Input{FinalURL: "https://example.com"})

	assert.Equal(t, 38, res.CategoryScores.Total())
	assert.Equal(t, 0.85, res.Confidence)
	assert.False(t, res.InsufficientEvidence)
	assert.Contains(t, res.Justifications["brand"], "Smith Plumbing")
	assert.Equal(t, []string{"Add a booking flow"}, res.PlainEnglishReport.SalesOpportunities)
}

func TestReviewClampsOverCeilingScores(t *testing.T) {
	client := &stubClient{response: `{
		"category_scores": {"brand": 50, "visual": 50, "conversion": 50, "trust": 50, "a11y": 50},
		"confidence": 3.0
	}`}

	res := New(client, nil).Review(context.Background(), Input{})

	assert.Equal(t, 12, res.CategoryScores.Brand)
	assert.Equal(t, 10, res.CategoryScores.Visual)
	assert.Equal(t, 12, res.CategoryScores.Conversion)
	assert.Equal(t, 10, res.CategoryScores.Trust)
	assert.Equal(t, 6, res.CategoryScores.A11y)
	assert.Equal(t, 50, res.CategoryScores.Total())
	assert.Equal(t, 1.0, res.Confidence)
}

func TestReviewClampsNegativeScores(t *testing.T) {
	client := &stubClient{response: `{
		"category_scores": {"brand": -5, "visual": -1, "conversion": 0, "trust": 0, "a11y": 0},
		"confidence": -0.5
	}`}

	res := New(client, nil).Review(context.Background(), Input{})

	assert.Equal(t, 0, res.CategoryScores.Total())
	assert.Equal(t, 0.0, res.Confidence)
}

func TestReviewGraceBumpOnInsufficientEvidence(t *testing.T) {
	client := &stubClient{response: `{
		"category_scores": {"brand": 2, "visual": 1, "conversion": 2, "trust": 0, "a11y": 0},
		"insufficient_evidence": true,
		"confidence": 0.4
	}`}

	res := New(client, nil).Review(context.Background(), Input{
		Evidence: scoring.Evidence{TextWordCount: 400},
	})

	// Raw total 5 gets bumped by (20-5)/5 = 3 per category.
	assert.Equal(t, 5, res.CategoryScores.Brand)
	assert.Equal(t, 4, res.CategoryScores.Visual)
	assert.Equal(t, 20, res.CategoryScores.Total())
	assert.True(t, res.InsufficientEvidence)
}

func TestReviewNoGraceBumpForThinContent(t *testing.T) {
	client := &stubClient{response: `{
		"category_scores": {"brand": 2, "visual": 1, "conversion": 2, "trust": 0, "a11y": 0},
		"insufficient_evidence": true,
		"confidence": 0.4
	}`}

	res := New(client, nil).Review(context.Background(), Input{
		Evidence: scoring.Evidence{TextWordCount: 80},
	})

	assert.Equal(t, 5, res.CategoryScores.Total())
}

func TestReviewInvalidJSON(t *testing.T) {
	client := &stubClient{response: "I think this website is quite nice."}

	res := New(client, nil).Review(context.Background(), Input{})

	assert.Equal(t, 0, res.CategoryScores.Total())
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.InsufficientEvidence)
	assert.Contains(t, res.Justifications["error"], "not valid JSON")
}

func TestReviewClientError(t *testing.T) {
	client := &stubClient{err: errors.New("rate limited")}

	res := New(client, nil).Review(context.Background(), Input{})

	assert.Equal(t, 0, res.CategoryScores.Total())
	assert.Equal(t, 0.0, res.Confidence)
	assert.True(t, res.InsufficientEvidence)
	assert.Contains(t, res.Justifications["error"], "AI scoring failed")
}

func TestReviewDefaultConfidence(t *testing.T) {
	client := &stubClient{response: `{"category_scores": {"brand": 5}}`}
	res := New(client, nil).Review(context.Background(), Input{})
	assert.Equal(t, 0.7, res.Confidence)
}

func TestReviewStripsCodeFences(t *testing.T) {
	client := &stubClient{response: "```json\n{\"category_scores\": {\"brand\": 6}, \"confidence\": 0.5}\n```"}
	res := New(client, nil).Review(context.Background(), Input{})
	assert.Equal(t, 6, res.CategoryScores.Brand)
}

func TestReviewPromptCarriesContent(t *testing.T) {
	client := &stubClient{response: `{"category_scores": {}}`}
	New(client, nil).Review(context.Background(), Input{
		Content: SiteContent{
			Title:      "Acme Widgets",
			H1Tags:     []string{"Widgets for everyone"},
			CTAButtons: []string{"Get a quote"},
		},
		FinalURL:             "https://acme.com",
		RenderingLimitations: true,
		Technographics: scoring.TechnographicsResult{
			Detected: true,
			CMS:      scoring.CMSInfo{Name: "WordPress"},
		},
	})

	assert.Contains(t, client.lastUser, "Acme Widgets")
	assert.Contains(t, client.lastUser, "Widgets for everyone")
	assert.Contains(t, client.lastUser, "Get a quote")
	assert.Contains(t, client.lastUser, "content may be incomplete due to JavaScript")
	assert.Contains(t, client.lastUser, "CMS: WordPress")
}

func TestExtractContent(t *testing.T) {
	markup := `<html><head><title>Acme Widgets</title></head><body>
		<nav><a href="/">Home</a><a href="/contact">Contact</a></nav>
		<h1>Widgets for everyone</h1>
		<h2>Why us</h2>
		<button>Get started</button>
		<a class="btn btn-primary" href="/quote">Free quote</a>
		<img src="/a.jpg" alt="Our workshop">
		<script>var hidden = "should not appear";</script>
		<p>We make widgets in Leeds.</p>
	</body></html>`

	content := ExtractContent(markup, 0)

	assert.Equal(t, "Acme Widgets", content.Title)
	assert.Equal(t, []string{"Widgets for everyone"}, content.H1Tags)
	assert.Equal(t, []string{"Why us"}, content.H2Tags)
	assert.Contains(t, content.CTAButtons, "Get started")
	assert.Contains(t, content.CTAButtons, "Free quote")
	assert.Equal(t, []string{"Home", "Contact"}, content.NavLinks)
	assert.Equal(t, []string{"Our workshop"}, content.ImageAlts)
	assert.Contains(t, content.TextExcerpt, "We make widgets in Leeds.")
	assert.NotContains(t, content.TextExcerpt, "should not appear")
}

func TestExtractContentExcerptBudget(t *testing.T) {
	markup := "<html><body><p>" + strings.Repeat("wordy text here ", 1000) + "</p></body></html>"
	content := ExtractContent(markup, 500)
	assert.LessOrEqual(t, len(content.TextExcerpt), 500)
	assert.NotEmpty(t, content.TextExcerpt)
}
