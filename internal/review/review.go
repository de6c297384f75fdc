package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

// Category ceilings.
const (
	maxBrand      = 12
	maxVisual     = 10
	maxConversion = 12
	maxTrust      = 10
	maxA11y       = 6
)

// Grace rule: a review that admits insufficient evidence on a page with real
// text gets bumped toward a minimum viable total instead of tanking the
// lead's score.
const (
	graceFloorTotal = 20
	graceWordCount  = 150
)

// Input carries everything the reviewer needs for one audit.
type Input struct {
	Content              SiteContent
	Evidence             scoring.Evidence
	FinalURL             string
	RenderingLimitations bool
	Technographics       scoring.TechnographicsResult
}

// Reviewer runs the model review and normalizes its output.
type Reviewer struct {
	client scoring.ReviewClient
	logger *zap.Logger
}

// New builds a Reviewer.
func New(client scoring.ReviewClient, logger *zap.Logger) *Reviewer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{client: client, logger: logger}
}

// modelPayload mirrors the JSON shape the prompt demands. Scores are decoded
// as floats because models occasionally emit "7.0".
type modelPayload struct {
	CategoryScores struct {
		Brand      float64 `json:"brand"`
		Visual     float64 `json:"visual"`
		Conversion float64 `json:"conversion"`
		Trust      float64 `json:"trust"`
		A11y       float64 `json:"a11y"`
	} `json:"category_scores"`
	Justifications       map[string]string          `json:"justifications"`
	PlainEnglishReport   scoring.PlainEnglishReport `json:"plain_english_report"`
	InsufficientEvidence bool                       `json:"insufficient_evidence"`
	Confidence           *float64                   `json:"confidence"`
}

// Review audits the site content. A failed or malformed model call yields
// zero category scores with confidence 0; the pipeline then leans on the
// heuristic half.
func (r *Reviewer) Review(ctx context.Context, in Input) scoring.AIReviewResult {
	if r.client == nil {
		return failedReview("AI scoring failed: no review client configured")
	}

	userPrompt := buildUserPrompt(in.Content, in.Evidence, in.FinalURL, in.RenderingLimitations, in.Technographics)
	raw, err := r.client.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		r.logger.Warn("review completion failed", zap.String("url", in.FinalURL), zap.Error(err))
		return failedReview(fmt.Sprintf("AI scoring failed: %s", err))
	}

	var payload modelPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		r.logger.Warn("review returned invalid JSON", zap.String("url", in.FinalURL), zap.Error(err))
		return failedReview(fmt.Sprintf("AI response was not valid JSON: %s", err))
	}

	scores := scoring.AICategoryScores{
		Brand:      clampInt(payload.CategoryScores.Brand, maxBrand),
		Visual:     clampInt(payload.CategoryScores.Visual, maxVisual),
		Conversion: clampInt(payload.CategoryScores.Conversion, maxConversion),
		Trust:      clampInt(payload.CategoryScores.Trust, maxTrust),
		A11y:       clampInt(payload.CategoryScores.A11y, maxA11y),
	}

	confidence := 0.7
	if payload.Confidence != nil {
		confidence = clampFloat(*payload.Confidence, 0, 1)
	}

	if payload.InsufficientEvidence && scores.Total() < graceFloorTotal && in.Evidence.TextWordCount > graceWordCount {
		bump := float64(graceFloorTotal-scores.Total()) / 5
		scores.Brand = int(float64(scores.Brand) + bump)
		scores.Visual = int(float64(scores.Visual) + bump)
		scores.Conversion = int(float64(scores.Conversion) + bump)
		scores.Trust = int(float64(scores.Trust) + bump)
		scores.A11y = int(float64(scores.A11y) + bump)
	}

	return scoring.AIReviewResult{
		CategoryScores:       scores,
		Justifications:       payload.Justifications,
		PlainEnglishReport:   payload.PlainEnglishReport,
		InsufficientEvidence: payload.InsufficientEvidence,
		Confidence:           confidence,
	}
}

func failedReview(reason string) scoring.AIReviewResult {
	return scoring.AIReviewResult{
		Justifications:       map[string]string{"error": reason},
		InsufficientEvidence: true,
		Confidence:           0,
	}
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite the response_format hint.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clampInt(v float64, max int) int {
	n := int(v)
	if n < 0 {
		return 0
	}
	if n > max {
		return max
	}
	return n
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
