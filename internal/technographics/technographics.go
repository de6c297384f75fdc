// Package technographics fingerprints a website's technology stack from
// markup alone. It never issues HTTP requests; the input is the same markup
// the scorer already holds.
package technographics

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/PuerkitoBio/goquery"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

const minMarkupChars = 50

var (
	versionRe        = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)
	jqueryVersionRes = []*regexp.Regexp{
		regexp.MustCompile(`jquery[.-](\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`jquery\.min\.js\?ver=(\d+\.\d+(?:\.\d+)?)`),
		regexp.MustCompile(`jquery\s+v?(\d+\.\d+(?:\.\d+)?)`),
	}
	faviconRelRe = regexp.MustCompile(`(?i)icon|shortcut`)

	cookieIndicators = []string{
		"cookie-consent", "cookieconsent", "cookie-notice", "cookie-banner",
		"cookie-popup", "gdpr-consent", "cc-banner", "cc-window",
		"cookiebot", "osano", "onetrust", "termly", "iubenda",
		"cookie_consent", "accept-cookies", "cookie-law",
	}
)

// cmsFingerprints are checked in order; the first match wins. WordPress
// artifacts are the most distinctive, so it goes first.
var cmsFingerprints = []struct {
	name       string
	confidence string
	markers    []string
}{
	{"WordPress", "high", []string{"wp-content", "wp-includes"}},
	{"Wix", "high", []string{"wix.com", "wixsite.com", "_wix_browser_sess"}},
	{"Squarespace", "high", []string{"squarespace.com", "squarespace-cdn.com"}},
	{"Shopify", "high", []string{"cdn.shopify.com", "shopify"}},
	{"Webflow", "medium", []string{"webflow.com", "wf-"}},
	{"Joomla", "medium", []string{"/media/jui/", "joomla"}},
	{"Drupal", "medium", []string{"drupal", "/sites/default/files", "/misc/drupal.js"}},
	{"Ghost", "medium", []string{"ghost.io", "ghost-"}},
	{"Weebly", "high", []string{"weebly.com"}},
	{"GoDaddy", "medium", []string{"godaddy"}},
}

var generatorCMSNames = []string{"wordpress", "joomla", "drupal", "wix", "squarespace"}

// Detect fingerprints the markup. Markup under minMarkupChars returns the
// zero fingerprint with Detected false.
func Detect(markup, finalURL string) scoring.TechnographicsResult {
	if len(strings.TrimSpace(markup)) < minMarkupChars {
		return emptyResult()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return emptyResult()
	}
	lower := strings.ToLower(markup)

	return scoring.TechnographicsResult{
		CMS:              detectCMS(lower, doc),
		CMSVersion:       detectCMSVersion(doc),
		SSL:              strings.HasPrefix(strings.ToLower(finalURL), "https://"),
		MobileResponsive: doc.Find(`meta[name="viewport"]`).Length() > 0,
		Analytics:        detectAnalytics(lower),
		JQuery:           detectJQuery(lower),
		CookieConsent:    detectCookieConsent(lower),
		SocialLinks:      detectSocialLinks(doc),
		PageBloat:        detectPageBloat(doc),
		OGTags: scoring.OGTags{
			HasOGTitle: doc.Find(`meta[property="og:title"]`).Length() > 0,
			HasOGImage: doc.Find(`meta[property="og:image"]`).Length() > 0,
		},
		Favicon:  detectFavicon(doc, lower),
		Detected: true,
	}
}

func emptyResult() scoring.TechnographicsResult {
	return scoring.TechnographicsResult{
		CMS: scoring.CMSInfo{Name: "Unknown", Confidence: "low"},
	}
}

func detectCMS(lower string, doc *goquery.Document) scoring.CMSInfo {
	for _, fp := range cmsFingerprints {
		for _, marker := range fp.markers {
			if strings.Contains(lower, marker) {
				return scoring.CMSInfo{Name: fp.name, Confidence: fp.confidence}
			}
		}
	}

	if gen, ok := doc.Find(`meta[name="generator"]`).First().Attr("content"); ok {
		genLower := strings.ToLower(gen)
		for _, name := range generatorCMSNames {
			if strings.Contains(genLower, name) {
				return scoring.CMSInfo{Name: titleCase(name), Confidence: "high"}
			}
		}
		if strings.TrimSpace(genLower) != "" {
			return scoring.CMSInfo{Name: titleCase(strings.TrimSpace(genLower)), Confidence: "medium"}
		}
	}
	return scoring.CMSInfo{Name: "Custom/Unknown", Confidence: "low"}
}

func detectCMSVersion(doc *goquery.Document) string {
	if gen, ok := doc.Find(`meta[name="generator"]`).First().Attr("content"); ok {
		return versionRe.FindString(gen)
	}
	return ""
}

func detectAnalytics(lower string) scoring.AnalyticsInfo {
	info := scoring.AnalyticsInfo{}
	if containsAny(lower, "gtag(", "googletagmanager.com", "google-analytics.com", "ga(") {
		info.GoogleAnalytics = true
	}
	if containsAny(lower, "connect.facebook.net", "fbq(", "facebook.com/tr") {
		info.MetaPixel = true
	}
	for _, probe := range []struct {
		name    string
		markers []string
	}{
		{"Hotjar", []string{"hotjar.com"}},
		{"Microsoft Clarity", []string{"clarity.ms"}},
		{"Plausible", []string{"plausible.io"}},
		{"Matomo", []string{"matomo", "piwik"}},
		{"Mixpanel", []string{"mixpanel.com"}},
		{"Segment", []string{"segment.com", "segment.io"}},
	} {
		if containsAny(lower, probe.markers...) {
			info.Other = append(info.Other, probe.name)
		}
	}
	return info
}

func detectJQuery(lower string) scoring.JQueryInfo {
	info := scoring.JQueryInfo{}
	if !strings.Contains(lower, "jquery") {
		return info
	}
	info.Present = true
	for _, re := range jqueryVersionRes {
		if m := re.FindStringSubmatch(lower); m != nil {
			info.Version = m[1]
			break
		}
	}
	return info
}

func detectCookieConsent(lower string) bool {
	return containsAny(lower, cookieIndicators...)
}

func detectSocialLinks(doc *goquery.Document) map[string]bool {
	social := map[string]bool{
		"facebook": false, "instagram": false, "linkedin": false,
		"twitter": false, "youtube": false, "tiktok": false,
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.ToLower(href)
		if strings.Contains(href, "facebook.com") && !strings.Contains(href, "/tr") && !strings.Contains(href, "sharer") {
			social["facebook"] = true
		}
		if strings.Contains(href, "instagram.com") {
			social["instagram"] = true
		}
		if strings.Contains(href, "linkedin.com") && !strings.Contains(href, "share") {
			social["linkedin"] = true
		}
		if strings.Contains(href, "twitter.com") || strings.Contains(href, "x.com/") {
			social["twitter"] = true
		}
		if strings.Contains(href, "youtube.com") {
			social["youtube"] = true
		}
		if strings.Contains(href, "tiktok.com") {
			social["tiktok"] = true
		}
	})
	return social
}

func detectPageBloat(doc *goquery.Document) scoring.PageBloat {
	bloat := scoring.PageBloat{}
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if strings.HasPrefix(src, "http") || strings.HasPrefix(src, "//") {
			bloat.ExternalScripts++
		}
	})
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if strings.HasPrefix(href, "http") || strings.HasPrefix(href, "//") {
			bloat.ExternalStylesheets++
		}
	})
	bloat.TotalExternal = bloat.ExternalScripts + bloat.ExternalStylesheets
	return bloat
}

func detectFavicon(doc *goquery.Document, lower string) bool {
	found := false
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if faviconRelRe.MatchString(rel) {
			found = true
			return false
		}
		return true
	})
	return found || strings.Contains(lower, "favicon")
}

// ClassifyHealth buckets a fingerprint into green/amber/red findings for the
// plain-English report.
func ClassifyHealth(t scoring.TechnographicsResult) scoring.TechHealth {
	var health scoring.TechHealth
	green := func(label, detail string) {
		health.Green = append(health.Green, scoring.HealthFinding{Label: label, Detail: detail})
	}
	amber := func(label, detail string) {
		health.Amber = append(health.Amber, scoring.HealthFinding{Label: label, Detail: detail})
	}
	red := func(label, detail string) {
		health.Red = append(health.Red, scoring.HealthFinding{Label: label, Detail: detail})
	}

	if t.SSL {
		green("HTTPS", "SSL secured")
	} else {
		red("No SSL", "Not using HTTPS")
	}

	if t.MobileResponsive {
		green("Responsive", "Mobile-friendly viewport")
	} else {
		red("Not Responsive", "No viewport meta tag")
	}

	if t.CMS.Name != "Custom/Unknown" && t.CMS.Name != "Unknown" {
		switch {
		case t.CMSVersion == "":
			green(t.CMS.Name, "CMS detected")
		case t.CMS.Name == "WordPress" && olderThan(t.CMSVersion, 6):
			amber(fmt.Sprintf("%s %s", t.CMS.Name, t.CMSVersion), "Older version detected")
		default:
			green(fmt.Sprintf("%s %s", t.CMS.Name, t.CMSVersion), "CMS detected")
		}
	}

	if t.Analytics.GoogleAnalytics || t.Analytics.MetaPixel || len(t.Analytics.Other) > 0 {
		var parts []string
		if t.Analytics.GoogleAnalytics {
			parts = append(parts, "GA")
		}
		if t.Analytics.MetaPixel {
			parts = append(parts, "Meta Pixel")
		}
		parts = append(parts, t.Analytics.Other...)
		if len(parts) > 3 {
			parts = parts[:3]
		}
		green("Analytics", strings.Join(parts, ", "))
	} else {
		red("No Analytics", "No tracking detected")
	}

	if t.JQuery.Present {
		switch {
		case t.JQuery.Version == "":
			amber("jQuery", "Version unknown")
		case olderThan(t.JQuery.Version, 3):
			amber("jQuery "+t.JQuery.Version, "Older version")
		default:
			green("jQuery "+t.JQuery.Version, "Current version")
		}
	}

	switch {
	case t.OGTags.HasOGTitle && t.OGTags.HasOGImage:
		green("OG Tags", "Social sharing optimised")
	case t.OGTags.HasOGTitle || t.OGTags.HasOGImage:
		amber("Partial OG", "Incomplete social tags")
	default:
		amber("No OG Tags", "Poor social sharing")
	}

	if t.Favicon {
		green("Favicon", "Browser icon present")
	} else {
		red("No Favicon", "Missing browser icon")
	}

	if t.CookieConsent {
		green("Cookie Consent", "GDPR compliance")
	}

	active := 0
	for _, present := range t.SocialLinks {
		if present {
			active++
		}
	}
	if active >= 3 {
		green("Social Links", fmt.Sprintf("%d platforms", active))
	} else if active >= 1 {
		amber("Limited Social", fmt.Sprintf("Only %d platform(s)", active))
	}

	if t.PageBloat.TotalExternal > 30 {
		amber("Page Bloat", fmt.Sprintf("%d external resources", t.PageBloat.TotalExternal))
	}

	return health
}

// olderThan compares a loose version string's major component. Unparseable
// versions are treated as current rather than flagged.
func olderThan(version string, major uint64) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Major() < major
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
