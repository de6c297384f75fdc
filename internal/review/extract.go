// Package review asks a language model to audit website content against a
// fixed rubric, then validates and clamps whatever comes back. The model is
// never trusted with arithmetic: category ceilings and totals are enforced
// here.
package review

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SiteContent is the token-budgeted distillation of page markup sent to the
// model instead of raw HTML.
type SiteContent struct {
	Title       string   `json:"title"`
	H1Tags      []string `json:"h1_tags,omitempty"`
	H2Tags      []string `json:"h2_tags,omitempty"`
	CTAButtons  []string `json:"cta_buttons,omitempty"`
	NavLinks    []string `json:"nav_links,omitempty"`
	ImageAlts   []string `json:"image_alts,omitempty"`
	TextExcerpt string   `json:"text_excerpt"`
	LinkTexts   []string `json:"link_texts,omitempty"`
}

const defaultExcerptChars = 6000

var ctaClassRe = regexp.MustCompile(`(?i)btn|button|cta`)

// ExtractContent distills markup into the elements the review rubric needs.
// maxChars bounds the text excerpt; zero means the default budget.
func ExtractContent(markup string, maxChars int) SiteContent {
	if maxChars <= 0 {
		maxChars = defaultExcerptChars
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return SiteContent{}
	}

	content := SiteContent{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}

	doc.Find("h1").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			content.H1Tags = append(content.H1Tags, t)
		}
		return len(content.H1Tags) < 3
	})
	doc.Find("h2").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			content.H2Tags = append(content.H2Tags, t)
		}
		return len(content.H2Tags) < 5
	})

	appendCTA := func(s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t != "" && len(t) < 50 && len(content.CTAButtons) < 10 {
			content.CTAButtons = append(content.CTAButtons, t)
		}
	}
	doc.Find("button").Each(func(i int, s *goquery.Selection) {
		if i < 10 {
			appendCTA(s)
		}
	})
	doc.Find("a[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		if ctaClassRe.MatchString(class) {
			appendCTA(s)
		}
	})

	nav := doc.Find("nav").First()
	if nav.Length() == 0 {
		nav = doc.Find("header").First()
	}
	nav.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			content.NavLinks = append(content.NavLinks, t)
		}
		return len(content.NavLinks) < 15
	})

	doc.Find("img[alt]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if alt, _ := s.Attr("alt"); alt != "" {
			content.ImageAlts = append(content.ImageAlts, alt)
		}
		return len(content.ImageAlts) < 10
	})

	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			content.LinkTexts = append(content.LinkTexts, t)
		}
		return len(content.LinkTexts) < 30
	})

	content.TextExcerpt = clipRunesafe(visibleText(doc), maxChars)
	return content
}

// visibleText gathers user-visible text, skipping script/style/noscript.
func visibleText(doc *goquery.Document) string {
	var b strings.Builder
	for _, root := range doc.Selection.Nodes {
		walkText(&b, root)
	}
	return strings.TrimSpace(b.String())
}

func walkText(b *strings.Builder, n *html.Node) {
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
		walkText(b, c)
	}
}

// clipRunesafe truncates without splitting a multibyte rune.
func clipRunesafe(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
