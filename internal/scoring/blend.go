package scoring

// Blend combines the transaction-level fraud score with the customer-level
// weighted factor score into the final assessment score.
//
// The blend is a conservative maximum: the final score is whichever signal
// is stronger, so a weak secondary signal never dilutes a strong alert.
func Blend(fraudScore, factorScore int) int {
	fraudScore = Clamp(fraudScore)
	factorScore = Clamp(factorScore)
	if fraudScore > factorScore {
		return fraudScore
	}
	return factorScore
}

// FallbackFloor is the minimum final score applied when the fraud scoring
// backend is unavailable: the conservative fallback pins the category to
// MEDIUM or worse, never LOW.
const FallbackFloor = ThresholdMedium

// BlendFallback computes the final score when no fraud score is available.
func BlendFallback(factorScore int) int {
	factorScore = Clamp(factorScore)
	if factorScore < FallbackFloor {
		return FallbackFloor
	}
	return factorScore
}

// WeightedFactorScore scales a weighted factor sum to the 0-1000 score
// range. It accepts the factor scores in [0,1] with their weights and
// returns the normalized weighted average scaled to the score scale.
func WeightedFactorScore(scores, weights []float64) int {
	if len(scores) == 0 || len(scores) != len(weights) {
		return 0
	}

	var sum, totalWeight float64
	for i, s := range scores {
		w := weights[i]
		if w <= 0 {
			w = 1.0
		}
		if s < 0 {
			s = 0
		}
		if s > 1 {
			s = 1
		}
		sum += s * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0
	}
	return Clamp(int(sum / totalWeight * float64(MaxScore)))
}
