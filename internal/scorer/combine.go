package scorer

import (
	"math"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

const (
	maxAIScore           = 50
	richEvidenceWords    = 150
	richEvidenceWeight   = 0.9
	sparseEvidenceWeight = 0.6
)

// Combine merges the deterministic and AI passes into one final score. The
// heuristic half is trusted more when the page had real text to inspect.
func Combine(heuristic scoring.HeuristicResult, ai scoring.AIReviewResult) scoring.CombinedScore {
	aiTotal := ai.CategoryScores.Total()
	if aiTotal < 0 {
		aiTotal = 0
	}
	if aiTotal > maxAIScore {
		aiTotal = maxAIScore
	}

	heuristicConfidence := sparseEvidenceWeight
	if heuristic.Evidence.TextWordCount > richEvidenceWords {
		heuristicConfidence = richEvidenceWeight
	}

	return scoring.CombinedScore{
		FinalScore:     heuristic.TotalHeuristic + aiTotal,
		Confidence:     round2((heuristicConfidence + ai.Confidence) / 2),
		HeuristicScore: heuristic.TotalHeuristic,
		AIScore:        aiTotal,
		Breakdown: scoring.ScoreBreakdown{
			Heuristic: heuristic.Scores,
			AI:        ai.CategoryScores,
		},
		Evidence:             heuristic.Evidence,
		AIJustifications:     ai.Justifications,
		PlainEnglishReport:   ai.PlainEnglishReport,
		RenderingLimitations: heuristic.RenderingLimitations,
		InsufficientEvidence: ai.InsufficientEvidence,
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
