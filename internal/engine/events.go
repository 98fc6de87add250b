package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// buildEvent assembles the completion event for one assessment. The request
// is echoed for downstream consumers that replay or audit assessments.
func buildEvent(req *domain.AssessmentRequest, resp *domain.AssessmentResponse) *domain.AssessmentEvent {
	return &domain.AssessmentEvent{
		EventID:       uuid.New().String(),
		Timestamp:     time.Now().UTC(),
		CustomerID:    req.CustomerID,
		CorrelationID: req.CorrelationID,
		PriorityLevel: scoring.PriorityFor(resp.RiskCategory),
		RequestEcho:   *req,
		Metadata: domain.EventMetadata{
			FinalRiskScore:       resp.RiskScore,
			RiskCategory:         resp.RiskCategory,
			ConfidenceLevel:      resp.ConfidenceInterval,
			RequiresManualReview: resp.RequiresManualReview,
			RecommendationCount:  len(resp.MitigationRecommendations),
			CustomerIDHash:       domain.HashCustomerID(req.CustomerID),
		},
	}
}
