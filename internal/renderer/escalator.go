package renderer

import (
	"context"
	"strings"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// blockIndicators are fingerprints of bot-protection interstitials. A page
// matching one is only treated as a block page when it is also small;
// legitimate pages can mention these phrases in prose.
var blockIndicators = []string{
	"403 - forbidden",
	"403 forbidden",
	"access denied",
	"access to this page is forbidden",
	"blocked",
	"captcha",
	"cloudflare",
	"challenge-platform",
	"ray id",
}

const blockPageMaxBytes = 20000

// IsBlockPage reports whether rendered markup looks like a bot-protection
// challenge rather than real content.
func IsBlockPage(markup string) bool {
	if len(markup) >= blockPageMaxBytes {
		return false
	}
	lower := strings.ToLower(markup)
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// Outcome is the result of a conditional render decision.
type Outcome struct {
	Rendered    bool
	HTML        string
	TextContent string
	Pathway     scoring.RenderPathway
	Metadata    scoring.RenderMetadata
	FromCache   bool
	Errors      []string
}

// RenderIfNeeded renders through r only when detection says the static
// markup is a JS shell. On render failure the static markup survives with
// the render_failed pathway so scoring can proceed degraded.
func RenderIfNeeded(ctx context.Context, r scoring.Renderer, url, staticMarkup string, detection scoring.DetectionResult) Outcome {
	out := Outcome{
		HTML:    staticMarkup,
		Pathway: scoring.PathwayStatic,
	}
	if !detection.IsJSHeavy {
		return out
	}
	if r == nil {
		out.Pathway = scoring.PathwayRenderFailed
		out.Errors = []string{"rendering disabled"}
		return out
	}

	rendered := r.Render(ctx, scoring.RenderRequest{URL: url})
	if !rendered.Success {
		out.Pathway = scoring.PathwayRenderFailed
		out.Errors = rendered.Errors
		return out
	}

	out.Rendered = true
	out.HTML = rendered.HTML
	out.TextContent = rendered.TextContent
	out.Pathway = scoring.PathwayRendered
	out.Metadata = rendered.Metadata
	out.FromCache = rendered.FromCache
	return out
}
