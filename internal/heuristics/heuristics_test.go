package heuristics

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filler(words int) string {
	var b strings.Builder
	for i := 0; i < words; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

// fullSite is a well-built small-business page that should score highly in
// every category.
func fullSite() string {
	return fmt.Sprintf(`<html><head>
		<title>Smith Plumbing - Emergency Plumbers in Leeds</title>
		<meta name="viewport" content="width=device-width, initial-scale=1">
		<meta name="description" content="Family-run plumbing business serving Leeds for 20 years. Emergency callouts, boiler installs, and free quotes.">
	</head><body>
		<h1>Smith Plumbing</h1>
		<p>%s</p>
		<a href="/privacy">Privacy Policy</a>
		<a href="tel:+441132223344">Call us</a>
		<a href="mailto:info@smithplumbing.co.uk">Email us</a>
		<form><input type="email" name="email"><textarea name="message"></textarea><button>Contact us today</button></form>
		<p>Our address: 12 High Street, Leeds</p>
		<img src="/img/hero.webp" loading="lazy">
		<p>Read our customer reviews and testimonials.</p>
	</body></html>`, filler(250))
}

func TestScoreFullSite(t *testing.T) {
	res := Score(fullSite(), "https://smithplumbing.co.uk")

	assert.Equal(t, 10, res.Scores.Mobile)
	assert.Equal(t, 10, res.Scores.Security)
	assert.Equal(t, 8, res.Scores.SEO)
	assert.Equal(t, 8, res.Scores.Contact)
	assert.Equal(t, 8, res.Scores.Content)
	assert.Equal(t, 6, res.Scores.Tech)
	assert.Equal(t, 50, res.TotalHeuristic)
	assert.False(t, res.RenderingLimitations)
}

func TestScoreEmptyMarkup(t *testing.T) {
	for _, markup := range []string{"", "   ", "<html></html>"} {
		res := Score(markup, "https://example.com")
		assert.Equal(t, 0, res.TotalHeuristic, "markup %q", markup)
		assert.True(t, res.RenderingLimitations)
		require.NotEmpty(t, res.Evidence.Errors)
		assert.Equal(t, "HTML empty or too short", res.Evidence.Errors[0])
	}
}

func TestScoreThinMarkupFlagsLimitations(t *testing.T) {
	markup := "<html><head><title>Tiny but over the minimum length fine</title></head><body><p>hello world</p></body></html>"
	require.GreaterOrEqual(t, len(markup), minMarkupChars)

	res := Score(markup, "https://example.com")
	assert.True(t, res.RenderingLimitations)
	assert.Greater(t, res.TotalHeuristic, 0)
}

func TestScoreHTTPOnlySiteLosesSecurityPoints(t *testing.T) {
	res := Score(fullSite(), "http://smithplumbing.co.uk")
	assert.False(t, res.Evidence.HTTPS)
	assert.Equal(t, 4, res.Scores.Security)
}

func TestTitleLengthBounds(t *testing.T) {
	mk := func(title string) string {
		return fmt.Sprintf("<html><head><title>%s</title></head><body><p>%s</p></body></html>", title, filler(50))
	}

	short := Score(mk("Hi"), "")
	assert.Equal(t, 0, short.Scores.SEO)
	assert.Equal(t, "Hi", short.Evidence.Title, "title still recorded as evidence")

	good := Score(mk("Smith Plumbing - Leeds Plumbers"), "")
	assert.Equal(t, 4, good.Scores.SEO)

	long := Score(mk(strings.Repeat("Very Long Title ", 10)), "")
	assert.Equal(t, 0, long.Scores.SEO)
}

func TestMetaDescriptionBounds(t *testing.T) {
	mk := func(desc string) string {
		return fmt.Sprintf(`<html><head><meta name="description" content="%s"></head><body><p>%s</p></body></html>`, desc, filler(50))
	}

	assert.Equal(t, 0, Score(mk("too short"), "").Scores.SEO)
	assert.Equal(t, 4, Score(mk(strings.Repeat("solid description ", 5)), "").Scores.SEO)
	assert.Equal(t, 0, Score(mk(strings.Repeat("overlong description ", 10)), "").Scores.SEO)
}

func TestContentWordThreshold(t *testing.T) {
	thin := Score(fmt.Sprintf("<html><body><p>%s</p></body></html>", filler(150)), "")
	assert.Equal(t, 0, thin.Scores.Content)
	assert.Equal(t, 150, thin.Evidence.TextWordCount)

	rich := Score(fmt.Sprintf("<html><body><p>%s</p></body></html>", filler(250)), "")
	assert.Equal(t, 4, rich.Scores.Content)
}

func TestObfuscatedEmailDetection(t *testing.T) {
	markup := fmt.Sprintf(`<html><body><p>%s</p>
		<p>Reach us at info [at] example [dot] com or sales (at) example (dot) co</p>
	</body></html>`, filler(120))

	res := Score(markup, "https://example.com")

	assert.Contains(t, res.Evidence.EmailsFound, "info@example.com")
	assert.Contains(t, res.Evidence.EmailsFound, "sales@example.co")
	assert.GreaterOrEqual(t, res.Scores.Contact, 3)
}

func TestEmailDedupAcrossMethods(t *testing.T) {
	markup := fmt.Sprintf(`<html><body><p>%s</p>
		<a href="mailto:Info@Example.com">Email</a>
		<p>Write to info@example.com any time.</p>
	</body></html>`, filler(120))

	res := Score(markup, "https://example.com")
	assert.Equal(t, []string{"info@example.com"}, res.Evidence.EmailsFound)
	assert.Equal(t, 1, res.Evidence.ContactSummary.Emails)
}

func TestSchemaOrgContactExtraction(t *testing.T) {
	markup := fmt.Sprintf(`<html><body><p>%s</p>
		<script type="application/ld+json">
		{"@type":"LocalBusiness","email":"mailto:hello@acme.io","telephone":"+44 113 555 0101",
		 "address":{"streetAddress":"1 Main St","addressLocality":"Leeds","postalCode":"LS1 1AA"}}
		</script>
	</body></html>`, filler(120))

	res := Score(markup, "https://acme.io")

	assert.Contains(t, res.Evidence.EmailsFound, "hello@acme.io")
	assert.Equal(t, []string{"1 Main St, Leeds, LS1 1AA"}, res.Evidence.Addresses)
	assert.GreaterOrEqual(t, res.Evidence.ContactSummary.Phones, 1)
}

func TestFormClassification(t *testing.T) {
	tests := []struct {
		form string
		want string
	}{
		{`<form><label>Contact us</label><input></form>`, "contact_form"},
		{`<form><label>Request a quote</label><input></form>`, "quote_form"},
		{`<form><label>Book an appointment</label><input></form>`, "booking_form"},
		{`<form><label>Subscribe to our newsletter</label><input></form>`, "newsletter_form"},
		{`<form><input type="email"></form>`, "generic_form"},
	}
	for _, tt := range tests {
		markup := fmt.Sprintf("<html><body><p>%s</p>%s</body></html>", filler(120), tt.form)
		res := Score(markup, "")
		assert.Contains(t, res.Evidence.ContactForms, tt.want, "form %q", tt.form)
		assert.GreaterOrEqual(t, res.Scores.Contact, 2)
	}
}

func TestCTADetection(t *testing.T) {
	markup := fmt.Sprintf(`<html><body><p>%s</p>
		<a href="/pricing-page" class="btn-primary">See plans</a>
		<button>Get started</button>
		<a href="/quote">Free quote</a>
	</body></html>`, filler(120))

	res := Score(markup, "https://example.com")

	assert.Equal(t, 3, res.Evidence.CTACount)
	assert.Contains(t, res.Evidence.CTAButtons, "get started")
	assert.Equal(t, 3, res.Evidence.ContactSummary.CTAs)
}

func TestPriorityLinksEvidence(t *testing.T) {
	markup := fmt.Sprintf(`<html><body><p>%s</p>
		<a href="/contact">Contact</a>
		<a href="/services">Services</a>
		<a href="https://other.com/contact">External</a>
	</body></html>`, filler(120))

	res := Score(markup, "https://example.com")

	require.Len(t, res.Evidence.PriorityLinks, 2)
	assert.Equal(t, "https://example.com/contact", res.Evidence.PriorityLinks[0])
}

func TestDecodeObfuscatedEmails(t *testing.T) {
	emails := decodeObfuscatedEmails("mail me: John.Doe [at] Widgets [dot] com thanks")
	require.Len(t, emails, 1)
	assert.Equal(t, "john.doe@widgets.com", emails[0])
}
