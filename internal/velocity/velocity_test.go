package velocity

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func window(amounts ...float64) []domain.Transaction {
	// Build a most-recent-first window the way the store returns it.
	txns := make([]domain.Transaction, len(amounts))
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, amt := range amounts {
		txns[i] = domain.Transaction{
			ID:         "tx",
			CustomerID: "cust-001",
			Amount:     amt,
			Currency:   "USD",
			Timestamp:  base.Add(-time.Duration(i) * time.Minute),
		}
	}
	return txns
}

func TestComputeEmptyWindow(t *testing.T) {
	stats := Compute(nil, 100)

	if stats.Count != 1 {
		t.Errorf("expected count 1, got %d", stats.Count)
	}
	if stats.EscalationRatio != 0 {
		t.Errorf("expected zero escalation ratio, got %.2f", stats.EscalationRatio)
	}
	if stats.IncreasingRun != 1 {
		t.Errorf("expected run of 1, got %d", stats.IncreasingRun)
	}
}

func TestComputeEscalationRatio(t *testing.T) {
	stats := Compute(window(2500, 1000), 10000)

	if stats.Count != 3 {
		t.Errorf("expected count 3, got %d", stats.Count)
	}
	if stats.LastAmount != 2500 {
		t.Errorf("expected last amount 2500, got %.2f", stats.LastAmount)
	}
	if stats.EscalationRatio != 4.0 {
		t.Errorf("expected ratio 4.0, got %.2f", stats.EscalationRatio)
	}
	if stats.MaxAmount != 2500 {
		t.Errorf("expected max 2500, got %.2f", stats.MaxAmount)
	}
}

func TestComputeIncreasingRun(t *testing.T) {
	// 1000 -> 2500 -> 10000: run of 3 ending at the candidate.
	stats := Compute(window(2500, 1000), 10000)
	if stats.IncreasingRun != 3 {
		t.Errorf("expected increasing run 3, got %d", stats.IncreasingRun)
	}

	// A dip breaks the run: 5000 -> 2500 -> 10000.
	stats = Compute(window(2500, 5000), 10000)
	if stats.IncreasingRun != 2 {
		t.Errorf("expected increasing run 2, got %d", stats.IncreasingRun)
	}

	// Equal amounts do not count as increasing.
	stats = Compute(window(10000), 10000)
	if stats.IncreasingRun != 1 {
		t.Errorf("expected increasing run 1 for flat amounts, got %d", stats.IncreasingRun)
	}
}

func TestServiceWithoutCache(t *testing.T) {
	svc := NewService(nil)
	count, err := svc.RecordAndCount(context.Background(), "cust-001", time.Hour)
	if err != nil {
		t.Fatalf("nil cache should not error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 without cache, got %d", count)
	}
}
