package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// ChallengeThreshold splits the HIGH band: at or above it the recommendation
// escalates from REVIEW to CHALLENGE.
const ChallengeThreshold = 650

// RecommendationFor maps a category and score to the suggested action.
func RecommendationFor(category domain.RiskCategory, score int) domain.Recommendation {
	switch category {
	case domain.CategoryLow:
		return domain.RecommendApprove
	case domain.CategoryMedium:
		return domain.RecommendReview
	case domain.CategoryHigh:
		if score >= ChallengeThreshold {
			return domain.RecommendChallenge
		}
		return domain.RecommendReview
	case domain.CategoryCritical:
		return domain.RecommendBlock
	default:
		return domain.RecommendReview
	}
}

// RequiresManualReview reports whether the category mandates a manual review.
func RequiresManualReview(category domain.RiskCategory) bool {
	return category == domain.CategoryCritical
}

// Mitigation recommendation texts, cumulative by category.
var (
	mitigationsLow = []string{
		"Continue standard monitoring procedures",
	}
	mitigationsMedium = []string{
		"Apply enhanced transaction monitoring",
		"Consider periodic risk reassessment",
	}
	mitigationsHigh = []string{
		"Implement enhanced due diligence procedures",
		"Require manual review for high-value transactions",
	}
	mitigationsCritical = []string{
		"Consider additional identity verification measures",
	}
)

// MitigationsFor returns the ordered mitigation recommendations for a
// category. Each band adds to the recommendations of the bands below it.
func MitigationsFor(category domain.RiskCategory) []string {
	out := make([]string, 0, 6)
	out = append(out, mitigationsLow...)
	switch category {
	case domain.CategoryMedium:
		out = append(out, mitigationsMedium...)
	case domain.CategoryHigh:
		out = append(out, mitigationsMedium...)
		out = append(out, mitigationsHigh...)
	case domain.CategoryCritical:
		out = append(out, mitigationsMedium...)
		out = append(out, mitigationsHigh...)
		out = append(out, mitigationsCritical...)
	}
	return out
}
