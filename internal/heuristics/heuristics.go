// Package heuristics scores website markup deterministically across six
// categories worth 50 points in total. Every point awarded is backed by a
// verifiable observation recorded in the evidence block.
package heuristics

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Category point allocations.
const (
	pointsViewport     = 6
	pointsTapTargets   = 4
	pointsHTTPS        = 6
	pointsPrivacy      = 4
	pointsTitle        = 4
	pointsMetaDesc     = 4
	pointsPhone        = 2
	pointsEmail        = 3
	pointsContactForm  = 2
	pointsAddress      = 1
	pointsH1           = 4
	pointsRichText     = 4
	pointsModernImages = 3
	pointsSocialProof  = 3
)

const (
	minMarkupChars   = 100
	thinMarkupChars  = 1000
	richContentWords = 200
	minLargeLinks    = 5
)

var (
	wordRe         = regexp.MustCompile(`\w+`)
	privacyHrefRe  = regexp.MustCompile(`(?i)privacy|cookie|gdpr`)
	privacyTextRe  = regexp.MustCompile(`(?i)privacy policy|cookie policy`)
	phoneRe        = regexp.MustCompile(`\+?\d{1,4}[\s\-]?\(?\d{1,4}\)?[\s\-]?\d{3,4}[\s\-]?\d{3,4}`)
	addressTextRe  = regexp.MustCompile(`(?i)address|location`)
	mapClassRe     = regexp.MustCompile(`(?i)map`)
	socialProofRe  = regexp.MustCompile(`(?i)testimonial|review|client|case study|award|certified`)
	titleLengthMin = 10
	titleLengthMax = 65
	descLengthMin  = 50
	descLengthMax  = 170
)

// Score analyzes markup and returns scores plus evidence. Markup shorter
// than minMarkupChars scores zero everywhere: there is nothing to measure
// and the caller should treat the page as unrenderable.
func Score(markup, finalURL string) scoring.HeuristicResult {
	if len(strings.TrimSpace(markup)) < minMarkupChars {
		return scoring.HeuristicResult{
			Evidence:             scoring.Evidence{Errors: []string{"HTML empty or too short"}},
			RenderingLimitations: true,
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return scoring.HeuristicResult{
			Evidence:             scoring.Evidence{Errors: []string{"HTML could not be parsed"}},
			RenderingLimitations: true,
		}
	}

	var (
		scores   scoring.CategoryScores
		evidence scoring.Evidence
	)
	text := pageText(doc)

	scoreMobile(doc, &scores, &evidence)
	scoreSecurity(doc, finalURL, text, &scores, &evidence)
	scoreSEO(doc, &scores, &evidence)
	scoreContact(doc, text, &scores, &evidence)
	scoreContent(doc, text, &scores, &evidence)
	scoreTech(doc, text, &scores, &evidence)

	if links := priorityLinks(doc, finalURL); len(links) > 0 {
		evidence.PriorityLinks = links
	}

	return scoring.HeuristicResult{
		Scores:               scores,
		TotalHeuristic:       scores.Total(),
		Evidence:             evidence,
		RenderingLimitations: len(markup) < thinMarkupChars,
	}
}

// scoreMobile awards points for a viewport meta tag and tappable elements.
func scoreMobile(doc *goquery.Document, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	if viewport := doc.Find(`meta[name="viewport"]`).First(); viewport.Length() > 0 {
		scores.Mobile += pointsViewport
		if raw, err := goquery.OuterHtml(viewport); err == nil {
			evidence.Viewport = clip(raw, 100)
		}
	}

	buttons := doc.Find("button").Length()
	largeLinks := 0
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		if strings.TrimSpace(s.Text()) != "" {
			largeLinks++
		}
	})
	if buttons > 0 || largeLinks > minLargeLinks {
		scores.Mobile += pointsTapTargets
	}
}

func scoreSecurity(doc *goquery.Document, finalURL, text string, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	if strings.HasPrefix(finalURL, "https://") {
		scores.Security += pointsHTTPS
		evidence.HTTPS = true
	}

	var privacyLinks []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !privacyHrefRe.MatchString(href) {
			return
		}
		if len(privacyLinks) < 3 {
			if raw, err := goquery.OuterHtml(s); err == nil {
				privacyLinks = append(privacyLinks, clip(raw, 80))
			}
		}
	})
	if len(privacyLinks) > 0 || privacyTextRe.MatchString(text) {
		scores.Security += pointsPrivacy
		evidence.PrivacyLinks = privacyLinks
	}
}

func scoreSEO(doc *goquery.Document, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		if len(title) >= titleLengthMin && len(title) <= titleLengthMax {
			scores.SEO += pointsTitle
		}
		evidence.Title = clip(title, 100)
	}

	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok && desc != "" {
		if len(desc) >= descLengthMin && len(desc) <= descLengthMax {
			scores.SEO += pointsMetaDesc
		}
		evidence.MetaDescription = clip(desc, 150)
	}
}

func scoreContent(doc *goquery.Document, text string, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		scores.Content += pointsH1
		evidence.H1 = clip(h1, 150)
	}

	wordCount := len(wordRe.FindAllString(text, -1))
	evidence.TextWordCount = wordCount
	if wordCount >= richContentWords {
		scores.Content += pointsRichText
	}
}

func scoreTech(doc *goquery.Document, text string, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	modern := 0
	var sample []string
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if i < 3 {
			sample = append(sample, clip(src, 60))
		}
		loading, _ := s.Attr("loading")
		if loading == "lazy" || strings.HasSuffix(src, ".webp") || strings.HasSuffix(src, ".avif") {
			modern++
		}
	})
	if modern > 0 {
		scores.Tech += pointsModernImages
		evidence.ImagesSample = sample
	}

	if socialProofRe.MatchString(text) {
		scores.Tech += pointsSocialProof
	}
}

// pageText flattens the full document text with spaces between nodes.
// Script and style contents are deliberately included: the measurements
// downstream were calibrated against raw page text.
func pageText(doc *goquery.Document) string {
	var b strings.Builder
	for _, root := range doc.Selection.Nodes {
		flattenText(&b, root)
	}
	return b.String()
}

func flattenText(b *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			b.WriteString(t)
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flattenText(b, c)
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
