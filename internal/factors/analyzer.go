// Package factors computes the customer-level risk factor breakdown behind
// an assessment: a set of named, weighted, explainable contributors plus
// the weighted factor score they roll up to.
package factors

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/scoring"
)

// Factor weights. Sanctions exposure dominates, credit and watchlist are
// strong signals, device and identity are moderate, behavioral history and
// market context round out the picture.
const (
	weightCredit     = 2.0
	weightWatchlist  = 2.5
	weightSanctions  = 3.0
	weightDevice     = 1.5
	weightIdentity   = 1.5
	weightHistory    = 1.0
	weightVolatility = 0.5
)

// neutralScore is the score assigned when an external signal is missing.
// Absent data is uncertainty, not safety, so it never reads as zero risk.
const neutralScore = 0.5

// minHistoryDepth is the transaction count below which behavioral history
// is considered insufficient.
const minHistoryDepth = 3

// Factor names and data sources as persisted.
const (
	FactorCredit     = "credit_history"
	FactorWatchlist  = "watchlist_screening"
	FactorSanctions  = "sanctions_screening"
	FactorDevice     = "device_risk"
	FactorIdentity   = "identity_verification"
	FactorHistory    = "transaction_history"
	FactorVolatility = "market_volatility"

	sourceCreditBureau = "credit_bureau"
	sourceWatchlist    = "watchlist_provider"
	sourceSanctions    = "sanctions_provider"
	sourceDevice       = "device_intelligence"
	sourceIdentity     = "identity_provider"
	sourceHistory      = "internal_history"
	sourceMarket       = "market_data"
)

// Analyzer derives risk factors from an assessment request. It is pure
// apart from factor ID generation and safe for concurrent use.
type Analyzer struct {
	rules *RuleSet
}

// NewAnalyzer creates an analyzer. rules may be nil when no custom factor
// rules are configured.
func NewAnalyzer(rules *RuleSet) *Analyzer {
	return &Analyzer{rules: rules}
}

// Result is the factor breakdown for one assessment.
type Result struct {
	Factors []domain.RiskFactor

	// Score is the normalized weighted factor score on the 0-1000 scale.
	Score int

	// ExternalSignals counts the external factor groups that were present
	// in the request, used for confidence calculation.
	ExternalSignals int
}

// Analyze computes the full factor set for a request. Missing external
// signals produce neutral factors rather than being skipped; the market
// volatility factor is the only one omitted when its input is absent.
func (a *Analyzer) Analyze(ctx context.Context, req *domain.AssessmentRequest) (*Result, error) {
	if req == nil {
		return nil, domain.NewValidationError("request", "request is required")
	}

	res := &Result{}
	ext := req.External

	res.add(a.creditFactor(req, ext.CreditScore))
	res.add(a.watchlistFactor(req, ext.WatchlistMatches))
	res.add(a.sanctionsFactor(req, ext.SanctionsCheck))
	res.add(a.deviceFactor(req, ext.DeviceRiskScore))
	res.add(a.identityFactor(req, ext.IdentityVerificationStatus))
	res.add(a.historyFactor(req))

	if vol, ok := marketVolatility(req.MarketData); ok {
		res.add(a.factor(req, FactorVolatility, clampUnit(vol), weightVolatility,
			sourceMarket, fmt.Sprintf("market volatility at %.2f", vol)))
	}

	if a.rules != nil {
		custom, err := a.rules.Evaluate(ctx, req)
		if err != nil {
			return nil, err
		}
		res.Factors = append(res.Factors, custom...)
	}

	res.ExternalSignals = countSignals(ext)

	scores := make([]float64, len(res.Factors))
	weights := make([]float64, len(res.Factors))
	for i, f := range res.Factors {
		scores[i] = f.Score
		weights[i] = f.Weight
	}
	res.Score = scoring.WeightedFactorScore(scores, weights)

	return res, nil
}

func (r *Result) add(f domain.RiskFactor) {
	r.Factors = append(r.Factors, f)
}

func (a *Analyzer) factor(req *domain.AssessmentRequest, name string, score, weight float64, source, detail string) domain.RiskFactor {
	return domain.RiskFactor{
		ID:          uuid.New().String(),
		CustomerID:  req.CustomerID,
		Name:        name,
		Score:       score,
		Weight:      weight,
		Description: describe(req.Explainability, name, score, detail),
		DataSource:  source,
	}
}

func (a *Analyzer) creditFactor(req *domain.AssessmentRequest, cs *int) domain.RiskFactor {
	if cs == nil {
		return a.factor(req, FactorCredit, neutralScore, weightCredit,
			sourceCreditBureau, "credit score unavailable, treated as neutral")
	}
	// Map the 300-850 credit scale to risk: 850 is near-zero risk, 300 is
	// maximal.
	score := clampUnit(float64(850-*cs) / 550.0)
	return a.factor(req, FactorCredit, score, weightCredit,
		sourceCreditBureau, fmt.Sprintf("credit score %d", *cs))
}

func (a *Analyzer) watchlistFactor(req *domain.AssessmentRequest, matches *int) domain.RiskFactor {
	if matches == nil {
		return a.factor(req, FactorWatchlist, neutralScore, weightWatchlist,
			sourceWatchlist, "watchlist screening unavailable, treated as neutral")
	}
	if *matches <= 0 {
		return a.factor(req, FactorWatchlist, 0.0, weightWatchlist,
			sourceWatchlist, "no watchlist matches")
	}
	score := clampUnit(0.4 + 0.3*float64(*matches))
	return a.factor(req, FactorWatchlist, score, weightWatchlist,
		sourceWatchlist, fmt.Sprintf("%d watchlist match(es)", *matches))
}

func (a *Analyzer) sanctionsFactor(req *domain.AssessmentRequest, check *string) domain.RiskFactor {
	if check == nil {
		return a.factor(req, FactorSanctions, neutralScore, weightSanctions,
			sourceSanctions, "sanctions screening unavailable, treated as neutral")
	}
	switch *check {
	case "clear":
		return a.factor(req, FactorSanctions, 0.05, weightSanctions,
			sourceSanctions, "sanctions screening clear")
	case "hit":
		return a.factor(req, FactorSanctions, 1.0, weightSanctions,
			sourceSanctions, "sanctions screening hit")
	default:
		return a.factor(req, FactorSanctions, neutralScore, weightSanctions,
			sourceSanctions, fmt.Sprintf("sanctions status %q not recognized, treated as neutral", *check))
	}
}

func (a *Analyzer) deviceFactor(req *domain.AssessmentRequest, risk *float64) domain.RiskFactor {
	if risk == nil {
		return a.factor(req, FactorDevice, neutralScore, weightDevice,
			sourceDevice, "device risk unavailable, treated as neutral")
	}
	score := clampUnit(*risk / 100.0)
	return a.factor(req, FactorDevice, score, weightDevice,
		sourceDevice, fmt.Sprintf("device risk score %.0f of 100", *risk))
}

func (a *Analyzer) identityFactor(req *domain.AssessmentRequest, status *string) domain.RiskFactor {
	if status == nil {
		return a.factor(req, FactorIdentity, neutralScore, weightIdentity,
			sourceIdentity, "identity verification status unavailable, treated as neutral")
	}
	switch *status {
	case "verified":
		return a.factor(req, FactorIdentity, 0.1, weightIdentity,
			sourceIdentity, "identity verified")
	case "pending":
		return a.factor(req, FactorIdentity, 0.5, weightIdentity,
			sourceIdentity, "identity verification pending")
	case "failed":
		return a.factor(req, FactorIdentity, 0.9, weightIdentity,
			sourceIdentity, "identity verification failed")
	default:
		return a.factor(req, FactorIdentity, neutralScore, weightIdentity,
			sourceIdentity, fmt.Sprintf("identity status %q not recognized, treated as neutral", *status))
	}
}

func (a *Analyzer) historyFactor(req *domain.AssessmentRequest) domain.RiskFactor {
	history := req.TransactionHistory
	if len(history) < minHistoryDepth {
		return a.factor(req, FactorHistory, 0.45, weightHistory,
			sourceHistory, fmt.Sprintf("insufficient transaction history (%d of %d required)", len(history), minHistoryDepth))
	}

	var sum, max float64
	for _, txn := range history {
		sum += txn.Amount
		if txn.Amount > max {
			max = txn.Amount
		}
	}
	avg := sum / float64(len(history))

	// Spending variability: a spiky profile scores higher than a flat one.
	ratio := 1.0
	if avg > 0 {
		ratio = max / avg
	}
	var score float64
	switch {
	case ratio < 2:
		score = 0.2
	case ratio < 3.5:
		score = 0.45
	case ratio < 5:
		score = 0.6
	default:
		score = 0.8
	}
	return a.factor(req, FactorHistory, score, weightHistory,
		sourceHistory, fmt.Sprintf("%d transactions, max/avg spend ratio %.1f", len(history), ratio))
}

// marketVolatility extracts a volatility reading from the market data map.
// A "volatility" key wins; otherwise the mean of all values is used.
func marketVolatility(data map[string]float64) (float64, bool) {
	if len(data) == 0 {
		return 0, false
	}
	if v, ok := data["volatility"]; ok {
		return v, true
	}
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data)), true
}

func countSignals(ext domain.ExternalRiskFactors) int {
	n := 0
	if ext.CreditScore != nil {
		n++
	}
	if ext.WatchlistMatches != nil {
		n++
	}
	if ext.SanctionsCheck != nil {
		n++
	}
	if ext.DeviceRiskScore != nil {
		n++
	}
	if ext.IdentityVerificationStatus != nil {
		n++
	}
	return n
}

// describe renders a factor description for the requested audience and
// depth. The default is an analyst-facing summary.
func describe(cfg domain.ExplainabilityConfig, name string, score float64, detail string) string {
	level := "low"
	switch {
	case score >= 0.7:
		level = "high"
	case score >= 0.4:
		level = "moderate"
	}

	if cfg.Audience == "customer" {
		// Customer-facing text avoids internal signal detail.
		return fmt.Sprintf("%s contribution assessed as %s", displayName(name), level)
	}
	if cfg.Depth == "detailed" {
		return fmt.Sprintf("%s: %s (contribution %.2f, %s)", displayName(name), detail, score, level)
	}
	return fmt.Sprintf("%s: %s", displayName(name), detail)
}

func displayName(name string) string {
	switch name {
	case FactorCredit:
		return "Credit history"
	case FactorWatchlist:
		return "Watchlist screening"
	case FactorSanctions:
		return "Sanctions screening"
	case FactorDevice:
		return "Device risk"
	case FactorIdentity:
		return "Identity verification"
	case FactorHistory:
		return "Transaction history"
	case FactorVolatility:
		return "Market volatility"
	default:
		return name
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
