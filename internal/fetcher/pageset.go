package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// priorityKeywords mark links worth fetching alongside the homepage. A match
// in either the href or the anchor text qualifies.
var priorityKeywords = []string{
	"contact", "quote", "book", "enquir", "pricing",
	"get-in-touch", "reach-us", "schedule", "about", "services",
}

const (
	maxDiscoveredLinks = 8
	maxReportedLinks   = 5
	maxPriorityFetches = 3
)

// AssemblerConfig controls multi-page acquisition.
type AssemblerConfig struct {
	MaxPages    int
	Concurrency int
	Budget      time.Duration
}

// Assembler fetches a homepage plus discovered subpages and merges them into
// a single PageSet for scoring.
type Assembler struct {
	fetcher *Fetcher
	cfg     AssemblerConfig
	logger  *zap.Logger
}

// NewAssembler builds an Assembler on top of an existing Fetcher.
func NewAssembler(f *Fetcher, cfg AssemblerConfig, logger *zap.Logger) *Assembler {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{fetcher: f, cfg: cfg, logger: logger}
}

// Assemble fetches baseURL and up to MaxPages-1 high-value subpages. The
// homepage always comes first in the combined markup; subpage failures
// degrade the set rather than failing it.
func (a *Assembler) Assemble(ctx context.Context, baseURL string) scoring.PageSet {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Budget)
	defer cancel()

	set := scoring.PageSet{
		Pages:    map[string]scoring.FetchResult{},
		FinalURL: baseURL,
	}

	home := a.fetcher.Fetch(ctx, baseURL)
	set.Pages["homepage"] = home
	set.StatusCode = home.StatusCode
	if home.FinalURL != "" {
		set.FinalURL = home.FinalURL
	}
	for _, e := range home.Errors {
		set.Errors = append(set.Errors, "homepage: "+e)
	}

	var links []string
	if home.Body != "" {
		set.CombinedMarkup = pageSection("homepage", home.Body)
		links = extractPriorityLinks(home.Body, set.FinalURL)
	}
	if len(links) > maxReportedLinks {
		set.DiscoveredLinks = links[:maxReportedLinks]
	} else {
		set.DiscoveredLinks = links
	}

	targets := a.planSubpages(baseURL, set.FinalURL, links)
	if len(targets) > 0 {
		a.fetchSubpages(ctx, targets, &set)
	}

	if set.CombinedMarkup == "" {
		set.CombinedMarkup = home.Body
	}
	return set
}

type subpageTarget struct {
	name string
	url  string
}

// planSubpages orders discovered links by tier, names them, and pads with
// conventional fallback paths up to the page budget.
func (a *Assembler) planSubpages(baseURL, finalURL string, links []string) []subpageTarget {
	sorted := make([]string, len(links))
	copy(sorted, links)
	sort.SliceStable(sorted, func(i, j int) bool {
		return linkTier(sorted[i]) < linkTier(sorted[j])
	})

	seen := map[string]struct{}{
		strings.TrimRight(baseURL, "/"):  {},
		strings.TrimRight(finalURL, "/"): {},
	}

	budget := a.cfg.MaxPages - 1
	var targets []subpageTarget
	for _, link := range sorted {
		if len(targets) >= maxPriorityFetches || len(targets) >= budget {
			break
		}
		key := strings.TrimRight(link, "/")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, subpageTarget{name: pageName(link), url: link})
	}

	for _, fb := range fallbackPages(baseURL) {
		if len(targets) >= budget {
			break
		}
		key := strings.TrimRight(fb.url, "/")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		targets = append(targets, fb)
	}
	return targets
}

// fetchSubpages retrieves targets concurrently and appends results to the
// set in plan order so combined markup stays deterministic. A 404 drops the
// page silently.
func (a *Assembler) fetchSubpages(ctx context.Context, targets []subpageTarget, set *scoring.PageSet) {
	results := make([]scoring.FetchResult, len(targets))
	sem := make(chan struct{}, a.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, t := range targets {
		wg.Add(1)
		go func(i int, t subpageTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = a.fetcher.Fetch(ctx, t.url)
		}(i, t)
	}
	wg.Wait()

	for i, t := range targets {
		res := results[i]
		if res.StatusCode == http.StatusNotFound {
			continue
		}
		set.Pages[t.name] = res
		if res.Body != "" {
			set.CombinedMarkup += pageSection(t.name, res.Body)
		}
		for _, e := range res.Errors {
			set.Errors = append(set.Errors, t.name+": "+e)
		}
	}
}

func pageSection(name, markup string) string {
	return fmt.Sprintf("\n\n<!-- Page: %s -->\n%s", name, markup)
}

func fallbackPages(baseURL string) []subpageTarget {
	return []subpageTarget{
		{name: "contact", url: joinPath(baseURL, "/contact")},
		{name: "contact-us", url: joinPath(baseURL, "/contact-us")},
		{name: "get-in-touch", url: joinPath(baseURL, "/get-in-touch")},
		{name: "about", url: joinPath(baseURL, "/about")},
	}
}

func joinPath(baseURL, path string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return strings.TrimRight(baseURL, "/") + path
	}
	return base.ResolveReference(ref).String()
}

// extractPriorityLinks pulls same-domain anchors whose href or text mentions
// a priority keyword, capped at maxDiscoveredLinks, in document order.
func extractPriorityLinks(markup, baseURL string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	baseDomain := strings.TrimPrefix(base.Hostname(), "www.")

	var links []string
	seen := map[string]struct{}{}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		hrefLower := strings.ToLower(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(hrefLower, "javascript:") ||
			strings.HasPrefix(hrefLower, "mailto:") ||
			strings.HasPrefix(hrefLower, "tel:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		full := base.ResolveReference(ref)
		if strings.TrimPrefix(full.Hostname(), "www.") != baseDomain {
			return true
		}

		text := strings.ToLower(strings.TrimSpace(s.Text()))
		matched := false
		for _, kw := range priorityKeywords {
			if strings.Contains(hrefLower, kw) || strings.Contains(text, kw) {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}

		u := full.String()
		if _, dup := seen[u]; dup {
			return true
		}
		seen[u] = struct{}{}
		links = append(links, u)
		return len(links) < maxDiscoveredLinks
	})
	return links
}

// linkTier ranks a link for fetch priority. Lower is fetched first.
func linkTier(link string) int {
	l := strings.ToLower(link)
	switch {
	case strings.Contains(l, "contact") || strings.Contains(l, "get-in-touch") || strings.Contains(l, "reach-us"):
		return 0
	case strings.Contains(l, "quote") || strings.Contains(l, "enquir") || strings.Contains(l, "book"):
		return 1
	case strings.Contains(l, "pricing") || strings.Contains(l, "schedule"):
		return 2
	case strings.Contains(l, "about") || strings.Contains(l, "services"):
		return 3
	default:
		return 4
	}
}

// pageName labels a subpage for the markup boundary comment and page map.
func pageName(link string) string {
	l := strings.ToLower(link)
	switch {
	case strings.Contains(l, "contact") || strings.Contains(l, "get-in-touch"):
		return "contact"
	case strings.Contains(l, "quote") || strings.Contains(l, "pricing"):
		return "quote"
	case strings.Contains(l, "about"):
		return "about"
	case strings.Contains(l, "book") || strings.Contains(l, "schedule"):
		return "booking"
	default:
		return "priority_link"
	}
}
