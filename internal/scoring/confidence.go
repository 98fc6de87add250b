package scoring

// ConfidenceInput describes the evidence available to one assessment.
type ConfidenceInput struct {
	// ExternalSignals counts the present external factor groups
	// (credit score, watchlist, sanctions, device risk, identity).
	ExternalSignals int

	// HistoryCount is the number of transactions in the customer's history.
	HistoryCount int

	// HasMarketData reports whether market context was provided.
	HasMarketData bool

	// FraudSignalPresent reports whether a transaction-level fraud score
	// was computed (false on the backend-unavailable fallback path).
	FraudSignalPresent bool

	// SignalsAgree reports whether the fraud and factor signals landed in
	// the same category or within 150 points of each other.
	SignalsAgree bool
}

// Confidence computes the confidence value in [0,100]. It grows with the
// number of independent signals, but only exceeds 60 when the transaction
// and customer level signals are both present and agree.
func Confidence(in ConfidenceInput) int {
	c := 30
	signals := in.ExternalSignals
	if signals > 5 {
		signals = 5
	}
	c += signals * 8
	if in.HistoryCount >= 3 {
		c += 10
	}
	if in.HasMarketData {
		c += 5
	}
	if c > 60 {
		c = 60
	}

	if in.FraudSignalPresent && in.SignalsAgree {
		c += 20
	}
	if c > 95 {
		c = 95
	}
	return c
}

// SignalsAgree reports whether two scores are close enough to corroborate
// each other: same category, or an absolute gap of at most 150 points.
func SignalsAgree(fraudScore, factorScore int) bool {
	if CategoryFor(fraudScore) == CategoryFor(factorScore) {
		return true
	}
	gap := fraudScore - factorScore
	if gap < 0 {
		gap = -gap
	}
	return gap <= 150
}
