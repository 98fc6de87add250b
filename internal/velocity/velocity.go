// Package velocity computes rolling-window transaction statistics used for
// pattern and frequency detection.
package velocity

import (
	"context"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// WindowStats summarizes a customer's recent transaction window relative to
// a candidate amount. The window excludes the candidate transaction itself.
type WindowStats struct {
	// Count is the number of transactions in the window plus the candidate.
	Count int

	// LastAmount is the amount of the most recent prior transaction,
	// zero when the window is empty.
	LastAmount float64

	// MaxAmount is the largest prior amount in the window.
	MaxAmount float64

	// EscalationRatio is candidate amount / LastAmount, zero when there is
	// no prior transaction.
	EscalationRatio float64

	// IncreasingRun is the length of the strictly increasing amount
	// sequence ending at the candidate (candidate included).
	IncreasingRun int
}

// Compute derives window statistics from the prior window (most recent
// first, as returned by the store) and the candidate amount. It is pure.
func Compute(window []domain.Transaction, amount float64) WindowStats {
	stats := WindowStats{
		Count:         len(window) + 1,
		IncreasingRun: 1,
	}

	if len(window) == 0 {
		return stats
	}

	stats.LastAmount = window[0].Amount
	for _, txn := range window {
		if txn.Amount > stats.MaxAmount {
			stats.MaxAmount = txn.Amount
		}
	}
	if stats.LastAmount > 0 {
		stats.EscalationRatio = amount / stats.LastAmount
	}

	// Walk backwards in time while amounts keep strictly increasing
	// toward the candidate.
	prev := amount
	for _, txn := range window {
		if txn.Amount >= prev {
			break
		}
		stats.IncreasingRun++
		prev = txn.Amount
	}

	return stats
}

// Service provides the shared-store rolling window plus a cache-backed
// fast-path frequency counter that stays consistent across instances.
type Service struct {
	cache domain.Cache
}

// NewService creates a velocity service. The cache may be nil, in which
// case the counter fast path is disabled.
func NewService(cache domain.Cache) *Service {
	return &Service{cache: cache}
}

// Window loads the customer's recent transactions from the store.
func (s *Service) Window(ctx context.Context, st domain.TransactionStore, customerID string, since time.Time, limit int) ([]domain.Transaction, error) {
	return st.RecentTransactions(ctx, customerID, since, limit)
}

// RecordAndCount bumps the customer's windowed transaction counter and
// returns the new count. Counter failures are not fatal: the store window
// remains the authoritative signal.
func (s *Service) RecordAndCount(ctx context.Context, customerID string, window time.Duration) (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.IncrementCounter(ctx, domain.CacheKeyVelocity+customerID, window)
}
