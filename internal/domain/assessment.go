package domain

import (
	"time"
)

// ExternalRiskFactors carries optional third-party customer signals.
// Nil fields mean the signal is unavailable and are treated as neutral by
// the analyzer, never as an error and never as zero risk.
type ExternalRiskFactors struct {
	CreditScore                *int     `json:"creditScore,omitempty"`
	WatchlistMatches           *int     `json:"watchlistMatches,omitempty"`
	SanctionsCheck             *string  `json:"sanctionsCheck,omitempty"`             // "clear" or "hit"
	DeviceRiskScore            *float64 `json:"deviceRiskScore,omitempty"`            // 0-100
	IdentityVerificationStatus *string  `json:"identityVerificationStatus,omitempty"` // "verified", "pending", "failed"
}

// ExplainabilityConfig controls the depth and audience of factor descriptions.
type ExplainabilityConfig struct {
	Depth    string `json:"depth,omitempty"`    // "summary" or "detailed"
	Audience string `json:"audience,omitempty"` // "analyst" or "customer"
}

// AssessmentRequest is the input for one risk assessment. It is a transient
// value object and is never persisted as-is.
type AssessmentRequest struct {
	CustomerID         string               `json:"customerId"`
	Transaction        *Transaction         `json:"transaction,omitempty"` // transaction in scope for fraud scoring
	TransactionHistory []Transaction        `json:"transactionHistory,omitempty"`
	External           ExternalRiskFactors  `json:"externalRiskFactors"`
	MarketData         map[string]float64   `json:"marketData,omitempty"`
	RequestTimestamp   time.Time            `json:"requestTimestamp"`
	Explainability     ExplainabilityConfig `json:"explainabilityConfig,omitempty"`
	CorrelationID      string               `json:"correlationId,omitempty"`
}

// Validate checks the request before any side effect occurs.
func (r *AssessmentRequest) Validate() error {
	if r == nil {
		return NewValidationError("request", "request is required")
	}
	if r.CustomerID == "" {
		return NewValidationError("customerId", "customerId is required")
	}
	if r.Transaction != nil {
		if err := r.Transaction.Validate(); err != nil {
			return err
		}
		if r.Transaction.CustomerID != r.CustomerID {
			return NewValidationError("transaction.customerId", "transaction customerId does not match request customerId")
		}
	}
	for i := range r.TransactionHistory {
		if r.TransactionHistory[i].Amount <= 0 {
			return NewValidationError("transactionHistory", "history amounts must be positive")
		}
	}
	return nil
}

// AssessmentResponse is the outcome of one risk assessment.
type AssessmentResponse struct {
	AssessmentID              string       `json:"assessmentId"`
	CustomerID                string       `json:"customerId"`
	RiskScore                 int          `json:"riskScore"` // 0-1000
	RiskCategory              RiskCategory `json:"riskCategory"`
	ConfidenceInterval        int          `json:"confidenceInterval"` // 0-100
	MitigationRecommendations []string     `json:"mitigationRecommendations"`
	AssessmentTimestamp       time.Time    `json:"assessmentTimestamp"`
	IsHighRisk                bool         `json:"isHighRisk"`
	RequiresManualReview      bool         `json:"requiresManualReview"`
}
