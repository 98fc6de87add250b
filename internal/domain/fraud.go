package domain

import (
	"context"
)

// Recommendation is the action the fraud scorer suggests for a transaction.
type Recommendation string

const (
	RecommendApprove   Recommendation = "APPROVE"
	RecommendReview    Recommendation = "REVIEW"
	RecommendChallenge Recommendation = "CHALLENGE"
	RecommendBlock     Recommendation = "BLOCK"
)

// ScoreStatus tags a scoring result so that an expected "dependency down"
// condition is a branch, not exception control flow.
type ScoreStatus string

const (
	ScoreOK          ScoreStatus = "OK"
	ScoreUnavailable ScoreStatus = "UNAVAILABLE"
)

// FraudResult is the outcome of scoring a single transaction. A high-risk
// or BLOCK result is a normal, successful return value.
type FraudResult struct {
	Status          ScoreStatus    `json:"status"`
	TransactionID   string         `json:"transactionId"`
	FraudScore      int            `json:"fraudScore"` // 0-1000
	RiskLevel       RiskCategory   `json:"riskLevel"`
	Recommendation  Recommendation `json:"recommendation"`
	ConfidenceScore float64        `json:"confidenceScore"` // 0.0-1.0
	Reasons         []string       `json:"reasons"`
	ManualReview    bool           `json:"manualReview"`
}

// ScoringInput is the transaction context handed to a scoring backend:
// the transaction itself plus the customer's recent rolling window.
type ScoringInput struct {
	Transaction *Transaction
	Window      []Transaction // most recent first, excludes the transaction itself
	BlockedIP   bool

	// VelocityCount is the cache-backed windowed transaction counter,
	// including this transaction. Zero when no shared counter is
	// configured. It can exceed the window length when other instances
	// have scored transactions the local window has not yet seen.
	VelocityCount int64
}

// BackendResult is the tagged result of a scoring backend call.
// Status ScoreUnavailable signals a transient dependency failure that the
// caller recovers from locally; it is not an error.
type BackendResult struct {
	Status  ScoreStatus
	Score   int // 0-1000, meaningful only when Status is ScoreOK
	Reasons []string
}

// FraudScoringBackend computes a raw fraud score for a transaction context.
// Implementations must be deterministic for identical inputs.
type FraudScoringBackend interface {
	Score(ctx context.Context, in *ScoringInput) BackendResult
}
