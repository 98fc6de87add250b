// Package scoring holds the pure scoring and classification functions shared
// by the profile-level assessment engine and the transaction-level fraud
// scorer. Everything in this package is deterministic and side-effect free.
package scoring

import (
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score scale bounds.
const (
	MinScore = 0
	MaxScore = 1000
)

// Category band lower bounds. Bands are lower-inclusive and upper-exclusive,
// except the top band which is closed:
//
//	[0,200) LOW  [200,500) MEDIUM  [500,750) HIGH  [750,1000] CRITICAL
const (
	ThresholdMedium   = 200
	ThresholdHigh     = 500
	ThresholdCritical = 750
)

// AlertThreshold is the fraud score at which exactly one alert is raised.
// It coincides with the HIGH band lower bound.
const AlertThreshold = ThresholdHigh

// Clamp bounds a score to the valid scale.
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// CategoryFor maps a score to its risk category.
func CategoryFor(score int) domain.RiskCategory {
	score = Clamp(score)
	switch {
	case score < ThresholdMedium:
		return domain.CategoryLow
	case score < ThresholdHigh:
		return domain.CategoryMedium
	case score < ThresholdCritical:
		return domain.CategoryHigh
	default:
		return domain.CategoryCritical
	}
}

// IsHighRisk reports whether a category belongs to the HIGH or CRITICAL band.
func IsHighRisk(category domain.RiskCategory) bool {
	return category == domain.CategoryHigh || category == domain.CategoryCritical
}

// PriorityFor maps a category to the event priority level.
func PriorityFor(category domain.RiskCategory) string {
	if IsHighRisk(category) {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}
