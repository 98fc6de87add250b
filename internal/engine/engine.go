// Package engine implements the risk assessment pipeline: factor analysis,
// fraud scoring, score blending, atomic persistence, and best-effort event
// publication.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/factors"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// TransactionScorer scores the in-scope transaction inside the engine's
// store transaction.
type TransactionScorer interface {
	ScoreIn(ctx context.Context, st domain.Store, txn *domain.Transaction) (*domain.FraudResult, error)
}

// Engine orchestrates risk assessments. Assessments for the same customer
// are serialized; assessments for different customers run concurrently.
type Engine struct {
	store     domain.Store
	analyzer  *factors.Analyzer
	scorer    TransactionScorer
	publisher domain.EventPublisher
	cache     domain.Cache
	logger    *slog.Logger
	tracer    trace.Tracer
	locks     *keyedMutex

	// PublishTimeout bounds the fire-and-forget completion event publish.
	PublishTimeout time.Duration
}

// New creates an assessment engine. publisher and cache may be nil.
func New(store domain.Store, analyzer *factors.Analyzer, scorer TransactionScorer, publisher domain.EventPublisher, cache domain.Cache, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:          store,
		analyzer:       analyzer,
		scorer:         scorer,
		publisher:      publisher,
		cache:          cache,
		logger:         logger,
		tracer:         otel.Tracer("kestrel/engine"),
		locks:          newKeyedMutex(),
		PublishTimeout: 500 * time.Millisecond,
	}
}

type analysisOutcome struct {
	result *factors.Result
	err    error
}

// Assess runs one full assessment. On success every assessment write has
// committed; on error none of them have.
func (e *Engine) Assess(ctx context.Context, req *domain.AssessmentRequest) (*domain.AssessmentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "engine.Assess",
		trace.WithAttributes(attribute.String("customer.id_hash", domain.HashCustomerID(req.CustomerID))))
	defer span.End()

	e.locks.Lock(req.CustomerID)
	defer e.locks.Unlock(req.CustomerID)

	// Factor analysis is pure, so it overlaps with the store work below.
	analysisCh := make(chan analysisOutcome, 1)
	go func() {
		result, err := e.analyzer.Analyze(ctx, req)
		analysisCh <- analysisOutcome{result: result, err: err}
	}()

	now := time.Now().UTC()
	var resp *domain.AssessmentResponse

	err := e.store.WithinTx(ctx, func(st domain.Store) error {
		profile, err := st.FindProfile(ctx, req.CustomerID)
		if errors.Is(err, domain.ErrNotFound) {
			profile = &domain.RiskProfile{
				CustomerID:     req.CustomerID,
				CurrentScore:   0,
				Category:       domain.CategoryUnknown,
				LastAssessedAt: now,
				CreatedAt:      now,
			}
			if err := st.SaveProfile(ctx, profile); err != nil {
				return e.wrap(req.CustomerID, "create profile", err)
			}
		} else if err != nil {
			return e.wrap(req.CustomerID, "load profile", err)
		}

		var fraudResult *domain.FraudResult
		if req.Transaction != nil {
			fraudResult, err = e.scorer.ScoreIn(ctx, st, req.Transaction)
			if err != nil {
				return e.wrap(req.CustomerID, "fraud scoring", err)
			}
		}

		analysis := <-analysisCh
		if analysis.err != nil {
			return e.wrap(req.CustomerID, "factor analysis", analysis.err)
		}

		resp = e.combine(req, profile, analysis.result, fraudResult, now)

		profile.CurrentScore = resp.RiskScore
		profile.Category = resp.RiskCategory
		profile.LastAssessedAt = now
		if err := st.SaveProfile(ctx, profile); err != nil {
			return e.wrap(req.CustomerID, "save profile", err)
		}

		if err := st.SaveScore(ctx, &domain.RiskScore{
			ID:         resp.AssessmentID,
			CustomerID: req.CustomerID,
			Score:      resp.RiskScore,
			Category:   resp.RiskCategory,
			Confidence: resp.ConfidenceInterval,
			AssessedAt: now,
		}); err != nil {
			return e.wrap(req.CustomerID, "save score", err)
		}

		if err := st.ReplaceFactors(ctx, req.CustomerID, analysis.result.Factors); err != nil {
			return e.wrap(req.CustomerID, "save factors", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.afterCommit(ctx, req, resp)

	e.logger.Info("assessment completed",
		"assessment_id", resp.AssessmentID,
		"customer_id", req.CustomerID,
		"risk_score", resp.RiskScore,
		"risk_category", resp.RiskCategory,
		"confidence", resp.ConfidenceInterval,
		"manual_review", resp.RequiresManualReview)

	return resp, nil
}

// combine blends the factor and fraud signals into the final response.
func (e *Engine) combine(req *domain.AssessmentRequest, profile *domain.RiskProfile, analysis *factors.Result, fraudResult *domain.FraudResult, now time.Time) *domain.AssessmentResponse {
	factorScore := analysis.Score

	var final int
	fraudPresent := false
	fallback := false

	switch {
	case fraudResult == nil:
		final = scoring.Clamp(factorScore)
	case fraudResult.Status == domain.ScoreUnavailable:
		final = scoring.BlendFallback(factorScore)
		fallback = true
	default:
		final = scoring.Blend(fraudResult.FraudScore, factorScore)
		fraudPresent = true
	}

	category := scoring.CategoryFor(final)

	confidence := scoring.Confidence(scoring.ConfidenceInput{
		ExternalSignals:    analysis.ExternalSignals,
		HistoryCount:       len(req.TransactionHistory),
		HasMarketData:      len(req.MarketData) > 0,
		FraudSignalPresent: fraudPresent,
		SignalsAgree:       fraudPresent && scoring.SignalsAgree(fraudResult.FraudScore, factorScore),
	})

	mitigations := scoring.MitigationsFor(category)
	if fallback {
		mitigations = append(mitigations, "Re-run assessment once transaction fraud scoring is available")
	}

	return &domain.AssessmentResponse{
		AssessmentID:              uuid.New().String(),
		CustomerID:                req.CustomerID,
		RiskScore:                 final,
		RiskCategory:              category,
		ConfidenceInterval:        confidence,
		MitigationRecommendations: mitigations,
		AssessmentTimestamp:       now,
		IsHighRisk:                scoring.IsHighRisk(category),
		RequiresManualReview:      scoring.RequiresManualReview(category) || (fraudResult != nil && fraudResult.ManualReview),
	}
}

// afterCommit performs the post-commit side effects: cache invalidation and
// the best-effort completion event. Neither can fail the assessment, and
// neither is cut short by the caller hanging up.
func (e *Engine) afterCommit(ctx context.Context, req *domain.AssessmentRequest, resp *domain.AssessmentResponse) {
	base := context.WithoutCancel(ctx)

	if e.cache != nil {
		if err := e.cache.Delete(base, domain.CacheKeyProfile+req.CustomerID); err != nil {
			e.logger.Warn("profile cache invalidation failed",
				"customer_id", req.CustomerID, "error", err)
		}
	}

	if e.publisher == nil {
		return
	}

	payload, err := json.Marshal(buildEvent(req, resp))
	if err != nil {
		e.logger.Warn("event encoding failed", "customer_id", req.CustomerID, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(base, e.PublishTimeout)
	defer cancel()

	if err := e.publisher.Publish(pubCtx, domain.TopicAssessmentCompleted, req.CustomerID, payload); err != nil {
		e.logger.Warn("assessment event publish failed",
			"customer_id", req.CustomerID,
			"topic", domain.TopicAssessmentCompleted,
			"error", err)
	}
}

func (e *Engine) wrap(customerID, op string, err error) error {
	if domain.IsValidation(err) {
		return err
	}
	return &domain.AssessmentError{CustomerID: customerID, Op: op, Err: err}
}

// Profile returns the customer's current risk profile.
func (e *Engine) Profile(ctx context.Context, customerID string) (*domain.RiskProfile, error) {
	if customerID == "" {
		return nil, domain.NewValidationError("customerId", "customerId is required")
	}
	return e.store.FindProfile(ctx, customerID)
}

// ProfileFactors returns the customer's current factor breakdown.
func (e *Engine) ProfileFactors(ctx context.Context, customerID string) ([]domain.RiskFactor, error) {
	return e.store.FactorsByProfile(ctx, customerID)
}

// ProfileScores returns the customer's assessment history, newest first.
func (e *Engine) ProfileScores(ctx context.Context, customerID string, limit int) ([]domain.RiskScore, error) {
	return e.store.ScoresByProfile(ctx, customerID, limit)
}

// Alerts returns fraud alerts in the given state.
func (e *Engine) Alerts(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.FraudAlert, error) {
	if status == "" {
		status = domain.AlertNew
	}
	return e.store.AlertsByStatus(ctx, status, limit)
}
