package factors

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const sourceCustomRule = "custom_rule"

// FactorRule is an operator-defined CEL expression contributing an extra
// risk factor. The expression must evaluate to bool, int, or double; the
// value is clamped to [0,1] and used as the factor score.
type FactorRule struct {
	Name        string  `json:"name"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description,omitempty"`
	Enabled     bool    `json:"enabled"`
}

type compiledRule struct {
	rule    FactorRule
	program cel.Program
}

// RuleSet holds pre-compiled custom factor rules. Compilation happens once
// at load; evaluation is lock-free apart from a read lock for reloads.
type RuleSet struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []compiledRule
}

// NewRuleSet compiles the given rules. Disabled rules are skipped; any
// compile failure rejects the whole set.
func NewRuleSet(rules []FactorRule) (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("credit_score", cel.IntType),
		cel.Variable("watchlist_matches", cel.IntType),
		cel.Variable("device_risk", cel.DoubleType),
		cel.Variable("history_count", cel.IntType),
		cel.Variable("avg_amount", cel.DoubleType),
		cel.Variable("max_amount", cel.DoubleType),
		cel.Variable("market_volatility", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	s := &RuleSet{env: env}
	if err := s.Load(rules); err != nil {
		return nil, err
	}
	return s, nil
}

// Load replaces the compiled rule set.
func (s *RuleSet) Load(rules []FactorRule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		prog, err := s.compile(r)
		if err != nil {
			return err
		}
		compiled = append(compiled, compiledRule{rule: r, program: prog})
	}

	s.mu.Lock()
	s.compiled = compiled
	s.mu.Unlock()
	return nil
}

func (s *RuleSet) compile(r FactorRule) (cel.Program, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("factor rule requires a name")
	}
	ast, issues := s.env.Compile(r.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", r.Name, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", r.Name, outputType)
	}

	return s.env.Program(ast)
}

// Len returns the number of loaded rules.
func (s *RuleSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.compiled)
}

// Evaluate runs every rule against the request and returns the resulting
// factors. A rule evaluation error fails the assessment; rules are trusted
// operator configuration, not untrusted input.
func (s *RuleSet) Evaluate(ctx context.Context, req *domain.AssessmentRequest) ([]domain.RiskFactor, error) {
	s.mu.RLock()
	rules := s.compiled
	s.mu.RUnlock()

	if len(rules) == 0 {
		return nil, nil
	}

	activation := activationFor(req)
	out := make([]domain.RiskFactor, 0, len(rules))
	for _, r := range rules {
		val, _, err := r.program.Eval(activation)
		if err != nil {
			return nil, fmt.Errorf("factor rule %s evaluation: %w", r.rule.Name, err)
		}
		score := clampUnit(toScore(val))
		desc := r.rule.Description
		if desc == "" {
			desc = fmt.Sprintf("custom rule %s", r.rule.Name)
		}
		out = append(out, domain.RiskFactor{
			ID:          uuid.New().String(),
			CustomerID:  req.CustomerID,
			Name:        "rule:" + r.rule.Name,
			Score:       score,
			Weight:      r.rule.Weight,
			Description: describe(req.Explainability, r.rule.Name, score, desc),
			DataSource:  sourceCustomRule,
		})
	}
	return out, nil
}

func activationFor(req *domain.AssessmentRequest) map[string]any {
	var sum, maxAmt float64
	for _, txn := range req.TransactionHistory {
		sum += txn.Amount
		if txn.Amount > maxAmt {
			maxAmt = txn.Amount
		}
	}
	avg := 0.0
	if n := len(req.TransactionHistory); n > 0 {
		avg = sum / float64(n)
	}

	creditScore := int64(0)
	if req.External.CreditScore != nil {
		creditScore = int64(*req.External.CreditScore)
	}
	watchlist := int64(0)
	if req.External.WatchlistMatches != nil {
		watchlist = int64(*req.External.WatchlistMatches)
	}
	deviceRisk := 0.0
	if req.External.DeviceRiskScore != nil {
		deviceRisk = *req.External.DeviceRiskScore
	}
	volatility, _ := marketVolatility(req.MarketData)

	return map[string]any{
		"credit_score":      creditScore,
		"watchlist_matches": watchlist,
		"device_risk":       deviceRisk,
		"history_count":     int64(len(req.TransactionHistory)),
		"avg_amount":        avg,
		"max_amount":        maxAmt,
		"market_volatility": volatility,
	}
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}
