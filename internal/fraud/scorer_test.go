package fraud

import (
	"context"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/store"
)

func newTestStore(t *testing.T) domain.Store {
	t.Helper()

	st, err := store.New(domain.StoreConfig{
		Driver:     "sqlite",
		SQLitePath: t.TempDir() + "/fraud-test.db",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// noon keeps test transactions clear of the night-time signal.
var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestScoreLowRiskTransaction(t *testing.T) {
	st := newTestStore(t)
	scorer := NewScorer(st, NewHeuristicBackend(), nil, nil)

	result, err := scorer.Score(context.Background(), &domain.Transaction{
		ID:         "tx-001",
		CustomerID: "cust-001",
		Amount:     100.00,
		Currency:   "USD",
		Timestamp:  noon,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if result.FraudScore != 150 {
		t.Errorf("expected score 150, got %d", result.FraudScore)
	}
	if result.RiskLevel != domain.CategoryLow {
		t.Errorf("expected LOW, got %s", result.RiskLevel)
	}
	if result.Recommendation != domain.RecommendApprove {
		t.Errorf("expected APPROVE, got %s", result.Recommendation)
	}
	if result.ManualReview {
		t.Error("low risk should not require manual review")
	}

	alerts, err := st.AlertsByCustomer(context.Background(), "cust-001")
	if err != nil {
		t.Fatalf("AlertsByCustomer failed: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("expected zero alerts, got %d", len(alerts))
	}
}

func TestScoreElevatedRiskTransaction(t *testing.T) {
	st := newTestStore(t)
	scorer := NewScorer(st, NewHeuristicBackend(), nil, nil)

	result, err := scorer.Score(context.Background(), &domain.Transaction{
		ID:                "tx-002",
		CustomerID:        "cust-002",
		Amount:            5000.00,
		Currency:          "USD",
		Timestamp:         noon,
		Merchant:          domain.MerchantInfo{Name: "Lucky Star", Category: "gambling", Country: "MT"},
		DeviceFingerprint: "fp-unseen",
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	if result.FraudScore != 650 {
		t.Errorf("expected score 650, got %d", result.FraudScore)
	}
	if result.RiskLevel != domain.CategoryHigh {
		t.Errorf("expected HIGH, got %s", result.RiskLevel)
	}
	if result.Recommendation != domain.RecommendChallenge {
		t.Errorf("expected CHALLENGE, got %s", result.Recommendation)
	}

	alerts, err := st.AlertsByCustomer(context.Background(), "cust-002")
	if err != nil {
		t.Fatalf("AlertsByCustomer failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	if alerts[0].Status != domain.AlertNew {
		t.Errorf("expected NEW alert, got %s", alerts[0].Status)
	}
	if alerts[0].TransactionID != "tx-002" {
		t.Errorf("alert should reference tx-002, got %s", alerts[0].TransactionID)
	}
}

func TestScoreEscalatingSequence(t *testing.T) {
	st := newTestStore(t)
	scorer := NewScorer(st, NewHeuristicBackend(), nil, nil)
	ctx := context.Background()

	amounts := []float64{1000, 2500, 10000}
	expected := []int{300, 500, 850}
	var results []*domain.FraudResult

	for i, amt := range amounts {
		result, err := scorer.Score(ctx, &domain.Transaction{
			ID:         "tx-seq-" + string(rune('a'+i)),
			CustomerID: "cust-003",
			Amount:     amt,
			Currency:   "USD",
			Timestamp:  noon.Add(time.Duration(i) * 5 * time.Minute),
		})
		if err != nil {
			t.Fatalf("Score %d failed: %v", i, err)
		}
		results = append(results, result)
	}

	for i, result := range results {
		if result.FraudScore != expected[i] {
			t.Errorf("transaction %d: expected score %d, got %d", i, expected[i], result.FraudScore)
		}
		if i > 0 && result.FraudScore <= results[i-1].FraudScore {
			t.Errorf("scores should escalate monotonically: %d then %d", results[i-1].FraudScore, result.FraudScore)
		}
	}

	final := results[len(results)-1]
	if final.RiskLevel != domain.CategoryCritical {
		t.Errorf("final transaction should be CRITICAL, got %s", final.RiskLevel)
	}
	if !final.ManualReview {
		t.Error("critical result should require manual review")
	}
	if final.Recommendation != domain.RecommendBlock {
		t.Errorf("expected BLOCK, got %s", final.Recommendation)
	}

	alerts, err := st.AlertsByCustomer(ctx, "cust-003")
	if err != nil {
		t.Fatalf("AlertsByCustomer failed: %v", err)
	}
	if len(alerts) != 2 {
		t.Errorf("expected two alerts (the two scores at or above the threshold), got %d", len(alerts))
	}
}

func TestScoreSharedVelocityCounter(t *testing.T) {
	st := newTestStore(t)
	shared := cache.NewLRUCache(100)
	scorer := NewScorer(st, NewHeuristicBackend(), shared, nil)
	ctx := context.Background()

	// Two transactions already counted by other instances, none of them
	// visible in this instance's store window.
	for i := 0; i < 2; i++ {
		if _, err := shared.IncrementCounter(ctx, domain.CacheKeyVelocity+"cust-006", time.Hour); err != nil {
			t.Fatalf("IncrementCounter failed: %v", err)
		}
	}

	result, err := scorer.Score(ctx, &domain.Transaction{
		ID:         "tx-shared",
		CustomerID: "cust-006",
		Amount:     100.00,
		Currency:   "USD",
		Timestamp:  noon,
	})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}

	// Amount base 100 plus empty-window 50 plus the frequency burst the
	// shared counter reveals.
	if result.FraudScore != 250 {
		t.Errorf("expected score 250, got %d", result.FraudScore)
	}

	found := false
	for _, r := range result.Reasons {
		if r == "3 transactions in window" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a window frequency reason, got %v", result.Reasons)
	}
}

// guardStore fails the test if any store method is reached.
type guardStore struct {
	domain.Store
	t *testing.T
}

func (g *guardStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	g.t.Error("store must not be touched on validation failure")
	return fn(g)
}

func TestScoreValidationShortCircuits(t *testing.T) {
	scorer := NewScorer(&guardStore{t: t}, NewHeuristicBackend(), nil, nil)

	_, err := scorer.Score(context.Background(), &domain.Transaction{
		ID:         "",
		CustomerID: "cust-004",
		Amount:     100,
		Currency:   "USD",
		Timestamp:  noon,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !domain.IsValidation(err) {
		t.Errorf("expected ValidationError, got %T", err)
	}
}

// downBackend simulates a scoring dependency outage.
type downBackend struct{}

func (downBackend) Score(context.Context, *domain.ScoringInput) domain.BackendResult {
	return domain.BackendResult{Status: domain.ScoreUnavailable}
}

func TestScoreBackendUnavailable(t *testing.T) {
	st := newTestStore(t)
	scorer := NewScorer(st, downBackend{}, nil, nil)
	ctx := context.Background()

	result, err := scorer.Score(ctx, &domain.Transaction{
		ID:         "tx-down",
		CustomerID: "cust-005",
		Amount:     9000,
		Currency:   "USD",
		Timestamp:  noon,
	})
	if err != nil {
		t.Fatalf("backend outage must not fail the call: %v", err)
	}

	if result.Status != domain.ScoreUnavailable {
		t.Errorf("expected UNAVAILABLE status, got %s", result.Status)
	}
	if !result.ManualReview {
		t.Error("unavailable result should flag manual review")
	}

	// The transaction is still recorded for future windows.
	window, err := st.RecentTransactions(ctx, "cust-005", noon.Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("RecentTransactions failed: %v", err)
	}
	if len(window) != 1 {
		t.Errorf("expected the transaction to be persisted, got %d", len(window))
	}

	alerts, _ := st.AlertsByCustomer(ctx, "cust-005")
	if len(alerts) != 0 {
		t.Errorf("no alert should be raised without a score, got %d", len(alerts))
	}
}

func TestBackendSignals(t *testing.T) {
	backend := NewHeuristicBackend()
	ctx := context.Background()

	t.Run("NightTime", func(t *testing.T) {
		day := backend.Score(ctx, &domain.ScoringInput{Transaction: &domain.Transaction{
			ID: "tx-d", CustomerID: "c", Amount: 100, Currency: "USD", Timestamp: noon,
		}})
		night := backend.Score(ctx, &domain.ScoringInput{Transaction: &domain.Transaction{
			ID: "tx-n", CustomerID: "c", Amount: 100, Currency: "USD",
			Timestamp: time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC),
		}})
		if night.Score-day.Score != pointsNightTime {
			t.Errorf("expected night-time bonus %d, got %d", pointsNightTime, night.Score-day.Score)
		}
	})

	t.Run("BlockedIP", func(t *testing.T) {
		txn := &domain.Transaction{
			ID: "tx-ip", CustomerID: "c", Amount: 100, Currency: "USD",
			Timestamp: noon, IPAddress: "203.0.113.9",
		}
		clean := backend.Score(ctx, &domain.ScoringInput{Transaction: txn})
		blocked := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, BlockedIP: true})
		if blocked.Score-clean.Score != pointsBlockedIP {
			t.Errorf("expected blocklist bonus %d, got %d", pointsBlockedIP, blocked.Score-clean.Score)
		}
	})

	t.Run("KnownDevice", func(t *testing.T) {
		window := []domain.Transaction{{
			ID: "tx-old", CustomerID: "c", Amount: 100, Currency: "USD",
			Timestamp: noon.Add(-10 * time.Minute), DeviceFingerprint: "fp-1",
		}}
		txn := &domain.Transaction{
			ID: "tx-dev", CustomerID: "c", Amount: 100, Currency: "USD",
			Timestamp: noon, DeviceFingerprint: "fp-1",
		}
		known := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, Window: window})

		txn.DeviceFingerprint = "fp-2"
		unknown := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, Window: window})
		if unknown.Score-known.Score != pointsNewDevice {
			t.Errorf("expected new-device bonus %d, got %d", pointsNewDevice, unknown.Score-known.Score)
		}
	})

	t.Run("VelocityCounter", func(t *testing.T) {
		txn := &domain.Transaction{
			ID: "tx-vel", CustomerID: "c", Amount: 100, Currency: "USD", Timestamp: noon,
		}
		local := backend.Score(ctx, &domain.ScoringInput{Transaction: txn})
		shared := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, VelocityCount: 3})
		if shared.Score-local.Score != pointsFrequencyBurst {
			t.Errorf("expected burst bonus %d from shared counter, got %d", pointsFrequencyBurst, shared.Score-local.Score)
		}

		// A counter behind the local window must not dilute the signal.
		window := []domain.Transaction{
			{Amount: 90, Timestamp: noon.Add(-5 * time.Minute)},
			{Amount: 80, Timestamp: noon.Add(-10 * time.Minute)},
		}
		stale := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, Window: window, VelocityCount: 1})
		full := backend.Score(ctx, &domain.ScoringInput{Transaction: txn, Window: window, VelocityCount: 3})
		if stale.Score != full.Score {
			t.Errorf("stale counter changed the score: %d vs %d", stale.Score, full.Score)
		}
	})

	t.Run("ScoreCapped", func(t *testing.T) {
		window := []domain.Transaction{
			{Amount: 14000, Timestamp: noon.Add(-5 * time.Minute)},
			{Amount: 4000, Timestamp: noon.Add(-10 * time.Minute)},
			{Amount: 1000, Timestamp: noon.Add(-15 * time.Minute)},
		}
		result := backend.Score(ctx, &domain.ScoringInput{
			Transaction: &domain.Transaction{
				ID: "tx-max", CustomerID: "c", Amount: 50000, Currency: "USD",
				Timestamp: time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC),
				Merchant:  domain.MerchantInfo{Category: "crypto"},
			},
			Window:    window,
			BlockedIP: true,
		})
		if result.Score > 1000 {
			t.Errorf("score must be capped at 1000, got %d", result.Score)
		}
	})
}
