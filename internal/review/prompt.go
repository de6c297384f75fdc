package review

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

const systemPrompt = `You are a website audit expert helping entrepreneurs identify sales opportunities for web development and AI integration services.

Your role: Provide clear, actionable insights in plain English that help the user understand:
1. What this business does well online
2. Where they're falling short
3. Specific opportunities to add value (AI tools, chatbots, modern features, design improvements)

CRITICAL RULES:
1. ONLY use text fragments and elements provided by the caller
2. Do not guess about hidden JS content or features you cannot see
3. If evidence is insufficient, mark "insufficient_evidence": true and reduce confidence
4. Write for a non-technical audience - avoid jargon, use plain English
5. Focus on business impact and sales opportunities`

// buildUserPrompt assembles the review request: extracted content, the
// heuristic evidence as JSON, the technology fingerprint, and the rubric.
func buildUserPrompt(
	content SiteContent,
	evidence scoring.Evidence,
	finalURL string,
	renderingLimitations bool,
	tech scoring.TechnographicsResult,
) string {
	var b strings.Builder

	b.WriteString("Please review this website and provide scores with evidence.\n\n")
	fmt.Fprintf(&b, "URL: %s\n", finalURL)
	if renderingLimitations {
		b.WriteString("Rendering limitations: Yes - content may be incomplete due to JavaScript\n")
	} else {
		b.WriteString("Rendering limitations: No\n")
	}

	b.WriteString("\nEXTRACTED CONTENT:\n---\n")
	fmt.Fprintf(&b, "Title: %s\n\n", orNA(content.Title))
	fmt.Fprintf(&b, "H1 Headlines: %s\n\n", joinOrNone(content.H1Tags, len(content.H1Tags)))
	fmt.Fprintf(&b, "H2 Headings: %s\n\n", joinOrNone(content.H2Tags, 5))
	fmt.Fprintf(&b, "CTA Buttons: %s\n\n", joinOrNone(content.CTAButtons, len(content.CTAButtons)))
	fmt.Fprintf(&b, "Navigation Links: %s\n\n", joinOrNone(content.NavLinks, 15))
	fmt.Fprintf(&b, "Image Alt Texts: %s\n\n", joinOrNone(content.ImageAlts, 5))
	fmt.Fprintf(&b, "Link Texts (sample): %s\n\n", joinOrNone(content.LinkTexts, 20))
	fmt.Fprintf(&b, "Text Excerpt (first 2000 chars):\n%s\n\n", clipRunesafe(content.TextExcerpt, 2000))

	b.WriteString("HEURISTIC FINDINGS:\n")
	if raw, err := json.MarshalIndent(evidence, "", "  "); err == nil {
		b.Write(raw)
		b.WriteByte('\n')
	}

	if tech.Detected {
		b.WriteString(techSection(tech))
	}

	b.WriteString(`---

SCORING RUBRIC (max 50 points):

1. Brand Clarity (0-12): Is the offer obvious above the fold? Who it's for? Quote H1/headline.
2. Visual Design (0-10): Consistency, whitespace, typography. Cite visible elements or explain N/A.
3. Conversion UX (0-12): Clear CTAs, contact routes, booking/quote flows. Quote CTA texts.
4. Trust & Proof (0-10): Testimonials, case studies, awards, real photos, social proof. Quote snippets.
5. Accessibility (0-6): Alt texts present, contrast keywords, aria attributes visible.

IMPORTANT: Reference the technology stack in your report. For example:
- If using WordPress with an old version, mention specific security implications
- If no Google Analytics, mention they have no traffic visibility
- If no SSL, explain how this affects customer trust and Google rankings
- Reference specific CMS, jQuery versions, missing features by name

Return JSON with:
{
  "category_scores": {
    "brand": 0-12,
    "visual": 0-10,
    "conversion": 0-12,
    "trust": 0-10,
    "a11y": 0-6
  },
  "justifications": {
    "brand": "Quote H1 and explain who it's for...",
    "visual": "Describe visible design elements...",
    "conversion": "Quote CTA texts and describe flow...",
    "trust": "Quote testimonials/proof or explain absence...",
    "a11y": "List alt texts found or note missing..."
  },
  "plain_english_report": {
    "strengths": ["List 2-3 specific things this website does well - be concrete, reference specific technologies found"],
    "weaknesses": ["List 2-4 specific areas that need improvement - reference specific technology gaps like missing analytics, old CMS versions, no SSL"],
    "technology_observations": "Detailed paragraph about the tech stack. Reference specific CMS name and version, jQuery version, whether they have analytics, SSL status, social presence.",
    "sales_opportunities": ["List 3-5 specific services you could sell them based on their tech gaps"]
  },
  "insufficient_evidence": false,
  "confidence": 0.0
}

IMPORTANT: Write the plain_english_report in simple, clear language that helps identify sales opportunities. Be specific and actionable. Reference actual technology findings.
If content is sparse but quality indicators exist (good title, clear H1, HTTPS, contact info), don't penalize heavily - just lower confidence.
If you cannot find evidence for a category, score it low and explain in justifications.`)

	return b.String()
}

func techSection(t scoring.TechnographicsResult) string {
	var b strings.Builder
	b.WriteString("\nTECHNOLOGY STACK DETECTED:\n")
	cms := t.CMS.Name
	if t.CMSVersion != "" {
		cms += " version " + t.CMSVersion
	}
	fmt.Fprintf(&b, "- CMS: %s\n", cms)
	fmt.Fprintf(&b, "- SSL/HTTPS: %s\n", yesNo(t.SSL))
	fmt.Fprintf(&b, "- Mobile Responsive: %s\n", yesNo(t.MobileResponsive))
	fmt.Fprintf(&b, "- Google Analytics: %s\n", yesNo(t.Analytics.GoogleAnalytics))
	fmt.Fprintf(&b, "- Meta/Facebook Pixel: %s\n", yesNo(t.Analytics.MetaPixel))
	fmt.Fprintf(&b, "- Other Analytics: %s\n", joinOrNone(t.Analytics.Other, len(t.Analytics.Other)))
	if t.JQuery.Present {
		version := t.JQuery.Version
		if version == "" {
			version = "unknown"
		}
		fmt.Fprintf(&b, "- jQuery: Yes, version %s\n", version)
	} else {
		b.WriteString("- jQuery: No\n")
	}
	fmt.Fprintf(&b, "- Cookie Consent: %s\n", yesNo(t.CookieConsent))
	fmt.Fprintf(&b, "- Open Graph Tags: Title=%s, Image=%s\n", yesNo(t.OGTags.HasOGTitle), yesNo(t.OGTags.HasOGImage))
	fmt.Fprintf(&b, "- Favicon: %s\n", yesNo(t.Favicon))

	var socials []string
	for _, name := range []string{"facebook", "instagram", "linkedin", "twitter", "youtube", "tiktok"} {
		if t.SocialLinks[name] {
			socials = append(socials, name)
		}
	}
	if len(socials) > 0 {
		fmt.Fprintf(&b, "- Social Links: %s\n", strings.Join(socials, ", "))
	} else {
		b.WriteString("- Social Links: None found\n")
	}
	fmt.Fprintf(&b, "- External Resources: %d scripts, %d stylesheets\n",
		t.PageBloat.ExternalScripts, t.PageBloat.ExternalStylesheets)
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func joinOrNone(items []string, limit int) string {
	if limit > len(items) {
		limit = len(items)
	}
	if limit <= 0 || len(items) == 0 {
		return "None found"
	}
	return strings.Join(items[:limit], ", ")
}
