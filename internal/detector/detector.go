// Package detector decides whether fetched markup is a finished page or a
// JavaScript application shell that needs a headless render before scoring.
// Detection is a pure function of the markup: weighted signals accumulate
// into a confidence score, with an escape hatch for pages that are thin and
// script-dense without matching any known framework.
package detector

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// frameworkSignatures maps a framework name to markup substrings that give
// it away. One match per framework counts; the weights stack across
// frameworks.
var frameworkSignatures = []struct {
	name       string
	signatures []string
}{
	{"React", []string{"data-reactroot", "data-reactid", `id="root"`, `id="__next"`, "_next/static", "react-dom", "react.createelement"}},
	{"Vue", []string{"data-v-", `id="app"`, "vue.js", "vuejs", "__nuxt__", "window.__nuxt__"}},
	{"Angular", []string{"ng-app", "ng-version", "[ng-", "angular.min.js", "data-ng-"}},
	{"Svelte", []string{"svelte", "_svelte", "svelte.js"}},
	{"Gatsby", []string{"gatsby", "___gatsby", "gatsby-react-router"}},
}

var buildArtifactPatterns = []*regexp.Regexp{
	regexp.MustCompile(`webpack`),
	regexp.MustCompile(`vite`),
	regexp.MustCompile(`\.chunk\.js`),
	regexp.MustCompile(`bundle\.js`),
	regexp.MustCompile(`app\.[a-z0-9]+\.js`),
	regexp.MustCompile(`main\.[a-z0-9]+\.js`),
	regexp.MustCompile(`vendor\.[a-z0-9]+\.js`),
}

var hydrationMarkers = []string{
	"data-reactroot",
	"data-server-rendered",
	"dehydrated",
	"hydrate",
	"__initial_state__",
	"__preloaded_state__",
}

var rootContainerIDs = map[string]struct{}{
	"root": {}, "app": {}, "__next": {}, "___gatsby": {},
}

// Signal weights.
const (
	weightFramework     = 0.15
	weightBuildArtifact = 0.1
	weightHydration     = 0.1
	weightLowText       = 0.2
	weightSparseShell   = 0.3
	weightHighRatio     = 0.15
	weightExtremeRatio  = 0.15
	weightEmptyRoot     = 0.2
	weightNoscript      = 0.15
)

// Thresholds.
const (
	lowTextWords     = 120
	sparseShellWords = 50
	highScriptRatio  = 0.4
	extremeRatio     = 0.6
	emptyRootChars   = 50
	trapdoorWords    = 100
	trapdoorRatio    = 0.3
	verdictThreshold = 0.5
)

// Detect classifies markup as static or JS-heavy. Unparseable markup falls
// back to substring signals only.
func Detect(markup string) scoring.DetectionResult {
	result := scoring.DetectionResult{}
	lower := strings.ToLower(markup)
	confidence := 0.0

	for _, fw := range frameworkSignatures {
		for _, sig := range fw.signatures {
			if strings.Contains(lower, sig) {
				result.FrameworkHints = append(result.FrameworkHints, fw.name)
				result.Signals = append(result.Signals, fmt.Sprintf("Framework signature: %s (%s)", fw.name, sig))
				confidence += weightFramework
				break
			}
		}
	}

	for _, pat := range buildArtifactPatterns {
		if pat.MatchString(lower) {
			result.Signals = append(result.Signals, fmt.Sprintf("Build artifact detected: %s", pat.String()))
			confidence += weightBuildArtifact
			break
		}
	}

	for _, marker := range hydrationMarkers {
		if strings.Contains(lower, marker) {
			result.Signals = append(result.Signals, fmt.Sprintf("Hydration marker: %s", marker))
			confidence += weightHydration
		}
	}

	metrics := measure(markup)
	result.Metrics = metrics

	if metrics.WordCount < lowTextWords {
		result.Signals = append(result.Signals, fmt.Sprintf("Low text content: %d words", metrics.WordCount))
		confidence += weightLowText
	}
	if metrics.WordCount < sparseShellWords {
		result.Signals = append(result.Signals, "Very sparse HTML - likely SPA shell")
		confidence += weightSparseShell
	}
	if metrics.ScriptRatio > highScriptRatio {
		result.Signals = append(result.Signals, fmt.Sprintf("High script ratio: %.1f%%", metrics.ScriptRatio*100))
		confidence += weightHighRatio
	}
	if metrics.ScriptRatio > extremeRatio {
		result.Signals = append(result.Signals, "Extremely high script ratio")
		confidence += weightExtremeRatio
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup)); err == nil {
		doc.Find("[id]").Each(func(_ int, s *goquery.Selection) {
			id, _ := s.Attr("id")
			if _, ok := rootContainerIDs[id]; !ok {
				return
			}
			if len(strings.TrimSpace(s.Text())) < emptyRootChars {
				result.Signals = append(result.Signals, fmt.Sprintf("Empty root container: %s", id))
				confidence += weightEmptyRoot
			}
		})

		doc.Find("noscript").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.ToLower(strings.TrimSpace(s.Text()))
			for _, word := range []string{"javascript", "enable", "required", "need"} {
				if strings.Contains(text, word) {
					result.Signals = append(result.Signals, "Noscript warning detected")
					confidence += weightNoscript
					return false
				}
			}
			return true
		})
	}

	if confidence > 1.0 {
		confidence = 1.0
	}
	result.Confidence = round2(confidence)
	result.IsJSHeavy = confidence >= verdictThreshold ||
		(metrics.WordCount < trapdoorWords && metrics.ScriptRatio > trapdoorRatio)
	result.FrameworkHints = dedupe(result.FrameworkHints)
	return result
}

// Summary renders a one-line human-readable verdict for logs and reports.
func Summary(r scoring.DetectionResult) string {
	if !r.IsJSHeavy {
		return "Static HTML site - no rendering needed"
	}
	frameworks := "Unknown framework"
	if len(r.FrameworkHints) > 0 {
		frameworks = strings.Join(r.FrameworkHints, ", ")
	}
	return fmt.Sprintf("JavaScript-heavy site detected (%s) - Confidence: %.0f%% - %d words visible",
		frameworks, r.Confidence*100, r.Metrics.WordCount)
}

// measure computes word count and script density. Script ratio is inline
// script text over total markup length.
func measure(markup string) scoring.DetectionMetrics {
	m := scoring.DetectionMetrics{MarkupBytes: len(markup)}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return m
	}

	scriptSize := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		m.ScriptCount++
		scriptSize += len(s.Text())
	})
	if m.MarkupBytes > 0 {
		m.ScriptRatio = round3(float64(scriptSize) / float64(m.MarkupBytes))
	}

	m.WordCount = len(strings.Fields(VisibleText(doc)))
	return m
}

// VisibleText extracts the page's user-visible text with whitespace between
// nodes, skipping script, style, and noscript subtrees.
func VisibleText(doc *goquery.Document) string {
	var b strings.Builder
	for _, root := range doc.Selection.Nodes {
		appendVisibleText(&b, root)
	}
	return b.String()
}

func appendVisibleText(b *strings.Builder, n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript":
			return
		}
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		appendVisibleText(b, c)
	}
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func round3(f float64) float64 {
	return float64(int(f*1000+0.5)) / 1000
}
