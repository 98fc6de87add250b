// Package fraud implements transaction-level fraud scoring: a deterministic
// heuristic backend plus the scorer that orchestrates window loading,
// classification, persistence, and alerting.
package fraud

import (
	"context"
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/velocity"
)

// Signal point values. The base amount band establishes the floor and the
// behavioral signals stack on top of it, capped at the scale maximum.
const (
	pointsHighRiskMerchant = 150
	pointsNewDevice        = 100
	pointsBlockedIP        = 75
	pointsNoHistory        = 50
	pointsNightTime        = 25

	pointsEscalationRapid  = 250
	pointsEscalation       = 150
	pointsFrequencyBurst   = 100
	pointsFrequencyElevate = 50
	pointsIncreasingRun    = 50

	escalationRapidRatio = 3.5
	escalationRatio      = 2.0
	burstCount           = 3
	elevatedCount        = 2
	increasingRunLength  = 3
)

// amountBands maps transaction amount ceilings to base points, evaluated in
// order. Amounts above the last ceiling take maxAmountPoints.
var amountBands = []struct {
	ceiling float64
	points  int
}{
	{500, 100},
	{1500, 250},
	{3000, 300},
	{7500, 350},
	{15000, 450},
}

const maxAmountPoints = 550

// highRiskMerchantCategories are merchant categories with elevated fraud
// exposure.
var highRiskMerchantCategories = map[string]bool{
	"gambling":       true,
	"crypto":         true,
	"money_transfer": true,
	"adult":          true,
	"weapons":        true,
}

// HeuristicBackend is the built-in scoring backend. It is deterministic:
// identical inputs always produce identical scores, which keeps assessment
// results reproducible and testable.
type HeuristicBackend struct{}

// NewHeuristicBackend creates the built-in backend.
func NewHeuristicBackend() *HeuristicBackend {
	return &HeuristicBackend{}
}

// Score computes the additive signal score for a transaction in the context
// of the customer's recent window. It never returns ScoreUnavailable.
func (b *HeuristicBackend) Score(_ context.Context, in *domain.ScoringInput) domain.BackendResult {
	txn := in.Transaction
	stats := velocity.Compute(in.Window, txn.Amount)

	var score int
	var reasons []string

	base := maxAmountPoints
	for _, band := range amountBands {
		if txn.Amount <= band.ceiling {
			base = band.points
			break
		}
	}
	score += base
	reasons = append(reasons, fmt.Sprintf("amount %.2f %s base %d", txn.Amount, txn.Currency, base))

	if len(in.Window) == 0 {
		score += pointsNoHistory
		reasons = append(reasons, "no prior transaction history")
	}

	if highRiskMerchantCategories[txn.Merchant.Category] {
		score += pointsHighRiskMerchant
		reasons = append(reasons, fmt.Sprintf("high-risk merchant category %s", txn.Merchant.Category))
	}

	if txn.DeviceFingerprint != "" && !knownDevice(in.Window, txn.DeviceFingerprint) {
		score += pointsNewDevice
		reasons = append(reasons, "unrecognized device fingerprint")
	}

	if in.BlockedIP {
		score += pointsBlockedIP
		reasons = append(reasons, fmt.Sprintf("IP address %s is blocklisted", txn.IPAddress))
	}

	if hour := txn.Timestamp.UTC().Hour(); hour < 6 {
		score += pointsNightTime
		reasons = append(reasons, "night-time transaction")
	}

	switch {
	case stats.EscalationRatio >= escalationRapidRatio:
		score += pointsEscalationRapid
		reasons = append(reasons, fmt.Sprintf("rapid amount escalation, %.1fx previous", stats.EscalationRatio))
	case stats.EscalationRatio >= escalationRatio:
		score += pointsEscalation
		reasons = append(reasons, fmt.Sprintf("amount escalation, %.1fx previous", stats.EscalationRatio))
	}

	// The shared velocity counter can run ahead of the local window when
	// other instances scored transactions this window has not seen yet;
	// the higher of the two counts drives the frequency signal.
	count := stats.Count
	if c := int(in.VelocityCount); c > count {
		count = c
	}
	switch {
	case count >= burstCount:
		score += pointsFrequencyBurst
		reasons = append(reasons, fmt.Sprintf("%d transactions in window", count))
	case count >= elevatedCount:
		score += pointsFrequencyElevate
		reasons = append(reasons, fmt.Sprintf("%d transactions in window", count))
	}

	if stats.IncreasingRun >= increasingRunLength {
		score += pointsIncreasingRun
		reasons = append(reasons, fmt.Sprintf("strictly increasing amounts over %d transactions", stats.IncreasingRun))
	}

	return domain.BackendResult{
		Status:  domain.ScoreOK,
		Score:   scoring.Clamp(score),
		Reasons: reasons,
	}
}

func knownDevice(window []domain.Transaction, fingerprint string) bool {
	for _, txn := range window {
		if txn.DeviceFingerprint == fingerprint {
			return true
		}
	}
	return false
}
