package scoring

// CMSInfo names the detected content-management system and how sure the
// fingerprint match was ("high", "medium", "low").
type CMSInfo struct {
	Name       string `json:"name"`
	Confidence string `json:"confidence"`
}

// AnalyticsInfo lists the tracking stacks found in the markup.
type AnalyticsInfo struct {
	GoogleAnalytics bool     `json:"google_analytics"`
	MetaPixel       bool     `json:"meta_pixel"`
	Other           []string `json:"other,omitempty"`
}

// JQueryInfo records jQuery presence and, when discoverable, its version.
type JQueryInfo struct {
	Present bool   `json:"present"`
	Version string `json:"version,omitempty"`
}

// PageBloat counts external resources referenced by the page.
type PageBloat struct {
	ExternalScripts     int `json:"external_scripts"`
	ExternalStylesheets int `json:"external_stylesheets"`
	TotalExternal       int `json:"total_external"`
}

// OGTags records Open Graph social-sharing tags.
type OGTags struct {
	HasOGTitle bool `json:"has_og_title"`
	HasOGImage bool `json:"has_og_image"`
}

// TechnographicsResult is the technology fingerprint of the scored markup.
// Purely derived from markup plus the final URL scheme; no external calls.
type TechnographicsResult struct {
	CMS              CMSInfo         `json:"cms"`
	CMSVersion       string          `json:"cms_version,omitempty"`
	SSL              bool            `json:"ssl"`
	MobileResponsive bool            `json:"mobile_responsive"`
	Analytics        AnalyticsInfo   `json:"analytics"`
	JQuery           JQueryInfo      `json:"jquery"`
	CookieConsent    bool            `json:"cookie_consent"`
	SocialLinks      map[string]bool `json:"social_links,omitempty"`
	PageBloat        PageBloat       `json:"page_bloat"`
	OGTags           OGTags          `json:"og_tags"`
	Favicon          bool            `json:"favicon"`
	Detected         bool            `json:"detected"`
}

// HealthFinding is one traffic-light observation about a detected facet.
type HealthFinding struct {
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// TechHealth buckets findings into green/amber/red for the report.
type TechHealth struct {
	Green []HealthFinding `json:"green"`
	Amber []HealthFinding `json:"amber"`
	Red   []HealthFinding `json:"red"`
}
