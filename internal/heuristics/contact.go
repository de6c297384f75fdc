package heuristics

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

var (
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	telHrefRe  = regexp.MustCompile(`^tel:`)
	mailHrefRe = regexp.MustCompile(`^mailto:`)

	// Small businesses hide emails from harvesters in predictable ways.
	obfuscatedEmailRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\[\s*at\s*\]\s*([a-zA-Z0-9.-]+)\s*\[\s*dot\s*\]\s*([a-zA-Z]{2,})`),
		regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*\(\s*at\s*\)\s*([a-zA-Z0-9.-]+)\s*\(\s*dot\s*\)\s*([a-zA-Z]{2,})`),
		regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*@\s*([a-zA-Z0-9.-]+)\s*\.\s*([a-zA-Z]{2,})`),
		regexp.MustCompile(`(?i)([a-zA-Z0-9._%+-]+)\s*&#64;\s*([a-zA-Z0-9.-]+)\.([a-zA-Z]{2,})`),
	}

	ctaKeywords = []string{
		"contact", "call", "get quote", "free quote", "request", "enquire", "inquire",
		"book now", "schedule", "get started", "learn more", "find out", "speak to",
		"talk to", "reach out", "connect", "start now", "try free", "demo", "consultation",
	}
	ctaClasses = []string{"cta", "btn-primary", "btn-cta", "action-btn", "contact-btn"}
	ctaHrefs   = []string{"contact", "quote", "book", "schedule", "enquir"}

	heuristicLinkKeywords = []string{
		"contact", "about", "services", "quote", "book", "enquir", "pricing",
		"get-in-touch", "reach-us", "support", "help",
	}
)

// scoreContact runs the layered contact detection: phones, emails through
// four methods, forms, addresses, and CTAs.
func scoreContact(doc *goquery.Document, text string, scores *scoring.CategoryScores, evidence *scoring.Evidence) {
	var contactItems []string

	// Phones.
	var phones []string
	telLinks := doc.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return telHrefRe.MatchString(href)
	})
	telLinks.Each(func(i int, s *goquery.Selection) {
		if i < 2 {
			href, _ := s.Attr("href")
			phones = append(phones, clip(href, 50))
		}
	})
	if telLinks.Length() > 0 || phoneRe.MatchString(text) {
		scores.Contact += pointsPhone
	}

	// Emails: mailto links, plain text, obfuscated text, structured data.
	var emails []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !mailHrefRe.MatchString(href) {
			return
		}
		addr := strings.SplitN(strings.TrimPrefix(href, "mailto:"), "?", 2)[0]
		if strings.Contains(addr, "@") {
			emails = append(emails, addr)
		}
	})
	emails = append(emails, emailRe.FindAllString(text, -1)...)
	emails = append(emails, decodeObfuscatedEmails(text)...)

	schema := extractSchemaContact(doc)
	emails = append(emails, schema.emails...)
	phones = append(phones, schema.phones...)

	emails = dedupeEmails(emails)
	if len(emails) > 0 {
		scores.Contact += pointsEmail
		for _, e := range firstN(emails, 3) {
			contactItems = append(contactItems, "email: "+e)
		}
		evidence.EmailsFound = firstN(emails, 5)
	}
	evidence.PhonesFound = phones

	// Forms.
	formTypes := detectContactForms(doc)
	if len(formTypes) > 0 {
		scores.Contact += pointsContactForm
		evidence.ContactForms = formTypes
		contactItems = append(contactItems, "forms: "+strings.Join(formTypes, ", "))
	}

	// Address or embedded map.
	hasMapEmbed := doc.Find("iframe[class],div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return mapClassRe.MatchString(class)
	}).Length() > 0
	if addressTextRe.MatchString(text) || hasMapEmbed || len(schema.addresses) > 0 {
		scores.Contact += pointsAddress
		if len(schema.addresses) > 0 {
			evidence.Addresses = firstN(schema.addresses, 2)
		}
	}

	// CTAs add no points directly but feed escalation and the AI review.
	ctaCount, ctaTexts := detectCTAs(doc)
	if ctaCount > 0 {
		evidence.CTAButtons = firstN(ctaTexts, 5)
		evidence.CTACount = ctaCount
	}

	evidence.ContactItems = firstN(contactItems, 8)
	evidence.ContactSummary = scoring.ContactSummary{
		Emails: len(emails),
		Phones: len(phones),
		Forms:  formTypes,
		CTAs:   ctaCount,
	}
}

// detectContactForms classifies each form by its markup and visible text.
func detectContactForms(doc *goquery.Document) []string {
	var types []string
	seen := map[string]struct{}{}
	add := func(t string) {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}

	doc.Find("form").Each(func(_ int, form *goquery.Selection) {
		raw, _ := goquery.OuterHtml(form)
		haystack := strings.ToLower(raw + " " + form.Text())

		switch {
		case containsAny(haystack, "contact", "enquir", "inquiry", "message", "get in touch"):
			add("contact_form")
		case containsAny(haystack, "quote", "estimate", "pricing"):
			add("quote_form")
		case containsAny(haystack, "book", "appointment", "schedule", "reservation"):
			add("booking_form")
		case containsAny(haystack, "subscribe", "newsletter", "signup", "sign up"):
			add("newsletter_form")
		}

		hasEmailInput := form.Find(`input[type="email"]`).Length() > 0
		hasTextarea := form.Find("textarea").Length() > 0
		if hasEmailInput || hasTextarea {
			if _, isContact := seen["contact_form"]; !isContact {
				add("generic_form")
			}
		}
	})
	return types
}

// detectCTAs counts call-to-action buttons and links by text, class, and
// destination.
func detectCTAs(doc *goquery.Document) (int, []string) {
	var texts []string
	count := 0

	doc.Find("button, a").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(strings.TrimSpace(s.Text()))
		class, _ := s.Attr("class")
		class = strings.ToLower(class)
		href, _ := s.Attr("href")
		href = strings.ToLower(href)

		isCTA := false
		for _, kw := range ctaKeywords {
			if strings.Contains(text, kw) {
				isCTA = true
				break
			}
		}
		if !isCTA {
			for _, cls := range ctaClasses {
				if strings.Contains(class, cls) {
					isCTA = true
					break
				}
			}
		}
		if !isCTA {
			for _, kw := range ctaHrefs {
				if strings.Contains(href, kw) {
					isCTA = true
					break
				}
			}
		}

		if isCTA && text != "" && len(text) < 50 {
			count++
			if len(texts) < 10 {
				texts = append(texts, clip(text, 40))
			}
		}
	})
	return count, texts
}

// decodeObfuscatedEmails reassembles addresses written as
// "info [at] company [dot] com" and similar dodges.
func decodeObfuscatedEmails(text string) []string {
	var emails []string
	for _, re := range obfuscatedEmailRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if len(m) == 4 {
				emails = append(emails, strings.ToLower(fmt.Sprintf("%s@%s.%s", m[1], m[2], m[3])))
			}
		}
	}
	return emails
}

type schemaContact struct {
	emails    []string
	phones    []string
	addresses []string
}

// extractSchemaContact pulls contact details from JSON-LD structured data.
// Malformed blocks are skipped.
func extractSchemaContact(doc *goquery.Document) schemaContact {
	var out schemaContact
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		walkSchema(data, &out)
	})
	return out
}

func walkSchema(data any, out *schemaContact) {
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			walkSchema(item, out)
		}
	case map[string]any:
		if email, ok := v["email"].(string); ok {
			email = strings.TrimPrefix(email, "mailto:")
			if strings.Contains(email, "@") {
				out.emails = append(out.emails, email)
			}
		}
		if phone, ok := v["telephone"].(string); ok {
			out.phones = append(out.phones, phone)
		}
		if cp, ok := v["contactPoint"]; ok {
			walkSchema(cp, out)
		}
		if addr, ok := v["address"]; ok {
			switch a := addr.(type) {
			case string:
				out.addresses = append(out.addresses, a)
			case map[string]any:
				var parts []string
				for _, key := range []string{"streetAddress", "addressLocality", "postalCode", "addressCountry"} {
					if p, ok := a[key].(string); ok && p != "" {
						parts = append(parts, p)
					}
				}
				if len(parts) > 0 {
					out.addresses = append(out.addresses, strings.Join(parts, ", "))
				}
			}
		}
	}
}

// priorityLinks lists same-domain links that likely hold contact or service
// detail, capped at five for the evidence block.
func priorityLinks(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
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
		for _, kw := range heuristicLinkKeywords {
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
		return len(links) < 5
	})
	return links
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func dedupeEmails(in []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range in {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || !strings.Contains(e, "@") {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

func firstN(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
