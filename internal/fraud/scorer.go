package fraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Scorer scores single transactions: it loads the customer's rolling
// window, consults the scoring backend, classifies the result, persists the
// transaction, and raises an alert when the score crosses the threshold.
type Scorer struct {
	store   domain.Store
	backend domain.FraudScoringBackend
	cache   domain.Cache
	windows *velocity.Service
	logger  *slog.Logger

	// WindowSpan and WindowSize bound the rolling window handed to the
	// backend.
	WindowSpan time.Duration
	WindowSize int
}

// NewScorer creates a scorer. cache may be nil, which disables the IP
// blocklist check.
func NewScorer(store domain.Store, backend domain.FraudScoringBackend, cache domain.Cache, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		store:      store,
		backend:    backend,
		cache:      cache,
		windows:    velocity.NewService(cache),
		logger:     logger,
		WindowSpan: time.Hour,
		WindowSize: 10,
	}
}

// Score scores a transaction in its own store transaction. The scored
// transaction and any alert commit together or not at all.
func (s *Scorer) Score(ctx context.Context, txn *domain.Transaction) (*domain.FraudResult, error) {
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	var result *domain.FraudResult
	err := s.store.WithinTx(ctx, func(st domain.Store) error {
		var err error
		result, err = s.ScoreIn(ctx, st, txn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ScoreIn scores a transaction against the given store, which may be
// transaction-scoped. Validation failures return before any store call.
//
// A backend outage is not an error: the result comes back tagged
// ScoreUnavailable with the transaction still recorded, and the caller
// applies its own conservative fallback.
func (s *Scorer) ScoreIn(ctx context.Context, st domain.Store, txn *domain.Transaction) (*domain.FraudResult, error) {
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	since := txn.Timestamp.Add(-s.WindowSpan)
	window, err := s.windows.Window(ctx, st, txn.CustomerID, since, s.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("load transaction window: %w", err)
	}

	// Shared frequency counter. It sees bursts spread across instances
	// that the local store window misses; counter failures degrade to the
	// store window alone.
	counted, err := s.windows.RecordAndCount(ctx, txn.CustomerID, s.WindowSpan)
	if err != nil {
		counted = 0
		s.logger.Warn("velocity counter update failed",
			"customer_id", txn.CustomerID, "error", err)
	}

	in := &domain.ScoringInput{
		Transaction:   txn,
		Window:        window,
		BlockedIP:     s.ipBlocked(ctx, txn.IPAddress),
		VelocityCount: counted,
	}

	backendResult := s.backend.Score(ctx, in)

	if err := st.SaveTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("save transaction: %w", err)
	}

	if backendResult.Status == domain.ScoreUnavailable {
		s.logger.Warn("fraud scoring backend unavailable",
			"transaction_id", txn.ID,
			"customer_id", txn.CustomerID)
		return &domain.FraudResult{
			Status:          domain.ScoreUnavailable,
			TransactionID:   txn.ID,
			RiskLevel:       domain.CategoryUnknown,
			Recommendation:  domain.RecommendReview,
			ConfidenceScore: 0.2,
			Reasons:         append([]string{"fraud scoring backend unavailable"}, backendResult.Reasons...),
			ManualReview:    true,
		}, nil
	}

	score := backendResult.Score
	category := scoring.CategoryFor(score)
	result := &domain.FraudResult{
		Status:          domain.ScoreOK,
		TransactionID:   txn.ID,
		FraudScore:      score,
		RiskLevel:       category,
		Recommendation:  scoring.RecommendationFor(category, score),
		ConfidenceScore: confidence(len(window), len(backendResult.Reasons)),
		Reasons:         backendResult.Reasons,
		ManualReview:    scoring.RequiresManualReview(category),
	}

	if score >= scoring.AlertThreshold {
		alert := &domain.FraudAlert{
			ID:            uuid.New().String(),
			TransactionID: txn.ID,
			CustomerID:    txn.CustomerID,
			Reason:        alertReason(backendResult.Reasons),
			Score:         score,
			Status:        domain.AlertNew,
			CreatedAt:     time.Now().UTC(),
		}
		if err := st.SaveAlert(ctx, alert); err != nil {
			return nil, fmt.Errorf("save fraud alert: %w", err)
		}
		s.logger.Info("fraud alert raised",
			"alert_id", alert.ID,
			"transaction_id", txn.ID,
			"customer_id", txn.CustomerID,
			"score", score,
			"risk_level", category)
	}

	return result, nil
}

// ipBlocked consults the cache-backed IP blocklist. Cache failures read as
// not blocked; the blocklist is an enrichment signal, not a gate.
func (s *Scorer) ipBlocked(ctx context.Context, ip string) bool {
	if s.cache == nil || ip == "" {
		return false
	}
	val, err := s.cache.Get(ctx, domain.CacheKeyBlockedIP+ip)
	if err != nil {
		s.logger.Warn("blocklist lookup failed", "error", err)
		return false
	}
	return val != nil
}

// confidence estimates how well supported the score is from the window
// depth and the number of contributing signals.
func confidence(windowLen, reasonCount int) float64 {
	c := 0.6
	if windowLen > 3 {
		windowLen = 3
	}
	c += 0.05 * float64(windowLen)
	if reasonCount > 4 {
		reasonCount = 4
	}
	c += 0.05 * float64(reasonCount)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

func alertReason(reasons []string) string {
	if len(reasons) == 0 {
		return "fraud score above alert threshold"
	}
	reason := reasons[0]
	for _, r := range reasons[1:] {
		reason += "; " + r
	}
	return reason
}
