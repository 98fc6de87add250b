//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Kestrel risk
// assessment engine.
//
// These tests verify the COMPLETE assessment pipeline:
//
//	Request → Factor Analysis + Fraud Scoring → Blend → Persist → Respond
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
//  1. ASSESSMENT: One full risk evaluation of a customer, optionally with a
//     transaction in scope. Produces a score from 0 to 1000.
//
//  2. RISK BANDS: [0,200) LOW, [200,500) MEDIUM, [500,750) HIGH,
//     [750,1000] CRITICAL. Scores of 500 and above raise fraud alerts.
//
//  3. FACTORS: Weighted external signals (credit, watchlist, sanctions,
//     device, identity, history). Missing signals are treated as neutral,
//     never as zero risk.
//
//  4. FRAUD SCORING: Heuristic scoring of the in-scope transaction against
//     the customer's rolling transaction window. The final score is the
//     maximum of the factor score and the fraud score.
//
// These tests require a running Kestrel server (default http://localhost:8080,
// override with KESTREL_TEST_URL). Each test uses unique customer IDs so
// reruns against a persistent store stay deterministic per process.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("KESTREL_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// runID makes customer IDs unique per test process so reruns against a
// persistent store do not collide with earlier profiles.
var runID = fmt.Sprintf("%d", time.Now().UnixNano())

func customerID(name string) string {
	return fmt.Sprintf("it-%s-%s", name, runID)
}

// ============================================================================
// API Request/Response Types (matching Kestrel's API contract)
// ============================================================================

type AssessRequest struct {
	CustomerID       string          `json:"customerId"`
	Transaction      *Transaction    `json:"transaction,omitempty"`
	External         ExternalFactors `json:"externalRiskFactors"`
	RequestTimestamp time.Time       `json:"requestTimestamp"`
}

type Transaction struct {
	ID                string    `json:"id"`
	CustomerID        string    `json:"customerId"`
	Amount            float64   `json:"amount"`
	Currency          string    `json:"currency"`
	Timestamp         time.Time `json:"timestamp"`
	Merchant          Merchant  `json:"merchant,omitempty"`
	DeviceFingerprint string    `json:"deviceFingerprint,omitempty"`
}

type Merchant struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
}

type ExternalFactors struct {
	CreditScore                *int     `json:"creditScore,omitempty"`
	WatchlistMatches           *int     `json:"watchlistMatches,omitempty"`
	SanctionsCheck             *string  `json:"sanctionsCheck,omitempty"`
	DeviceRiskScore            *float64 `json:"deviceRiskScore,omitempty"`
	IdentityVerificationStatus *string  `json:"identityVerificationStatus,omitempty"`
}

type AssessResponse struct {
	AssessmentID              string   `json:"assessmentId"`
	CustomerID                string   `json:"customerId"`
	RiskScore                 int      `json:"riskScore"`
	RiskCategory              string   `json:"riskCategory"`
	ConfidenceInterval        int      `json:"confidenceInterval"`
	MitigationRecommendations []string `json:"mitigationRecommendations"`
	IsHighRisk                bool     `json:"isHighRisk"`
	RequiresManualReview      bool     `json:"requiresManualReview"`
	Metadata                  struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

type ScoreResponse struct {
	Status         string   `json:"status"`
	TransactionID  string   `json:"transactionId"`
	FraudScore     int      `json:"fraudScore"`
	RiskLevel      string   `json:"riskLevel"`
	Recommendation string   `json:"recommendation"`
	Reasons        []string `json:"reasons"`
}

type Profile struct {
	CustomerID   string `json:"customerId"`
	CurrentScore int    `json:"currentScore"`
	Category     string `json:"category"`
	Version      int64  `json:"version"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func intPtr(v int) *int       { return &v }
func fPtr(v float64) *float64 { return &v }
func sPtr(v string) *string   { return &v }

func lowRiskExternals() ExternalFactors {
	return ExternalFactors{
		CreditScore:                intPtr(780),
		WatchlistMatches:           intPtr(0),
		SanctionsCheck:             sPtr("clear"),
		DeviceRiskScore:            fPtr(10),
		IdentityVerificationStatus: sPtr("verified"),
	}
}

func postJSON(t *testing.T, config TestConfig, path string, payload, out any) {
	t.Helper()

	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	httpReq, err := http.NewRequest("POST", config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}
}

func assess(t *testing.T, config TestConfig, req AssessRequest) AssessResponse {
	t.Helper()
	var result AssessResponse
	postJSON(t, config, "/assess", req, &result)
	return result
}

func getProfile(t *testing.T, config TestConfig, customer string) Profile {
	t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(config.BaseURL + "/profiles/" + customer)
	if err != nil {
		t.Fatalf("Profile request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, string(body))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		t.Fatalf("Failed to decode profile: %v", err)
	}
	return profile
}

// ============================================================================
// SCENARIO 1: Established Low-Risk Customer
// ============================================================================

func TestLowRiskCustomer_Approved(t *testing.T) {
	/*
	   SCENARIO: A customer with strong external signals makes a routine
	   $100 purchase at midday.

	   EXPECTED BEHAVIOR:
	   - Factor analysis: every signal is favorable, factor score stays low
	   - Fraud scoring: small amount at a normal hour, only the empty-window
	     signal fires
	   - Final score lands in the LOW band, no alert, approve
	*/
	config := getTestConfig()
	cust := customerID("lowrisk")

	result := assess(t, config, AssessRequest{
		CustomerID: cust,
		Transaction: &Transaction{
			ID:         "tx-" + cust,
			CustomerID: cust,
			Amount:     100.00,
			Currency:   "USD",
			Timestamp:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		},
		External:         lowRiskExternals(),
		RequestTimestamp: time.Now().UTC(),
	})

	if result.RiskCategory != "LOW" {
		t.Errorf("Expected LOW category, got %s (score %d)", result.RiskCategory, result.RiskScore)
	}
	if result.RiskScore >= 200 {
		t.Errorf("Expected score below 200, got %d", result.RiskScore)
	}
	if result.IsHighRisk || result.RequiresManualReview {
		t.Error("Low risk customer should not be flagged")
	}
	if result.Metadata.TraceID == "" {
		t.Error("Expected trace ID in response metadata")
	}

	t.Logf("Low-risk assessment: score=%d category=%s confidence=%d",
		result.RiskScore, result.RiskCategory, result.ConfidenceInterval)
}

// ============================================================================
// SCENARIO 2: Unknown Customer, No Transaction
// ============================================================================

func TestUnknownCustomer_NeutralMedium(t *testing.T) {
	/*
	   SCENARIO: Assessment with every external signal missing and no
	   transaction in scope.

	   EXPECTED BEHAVIOR:
	   - All factors fall back to neutral, never to zero risk
	   - The neutral weighted blend lands in the MEDIUM band
	   - Confidence is low because nothing was observed
	*/
	config := getTestConfig()
	cust := customerID("unknown")

	result := assess(t, config, AssessRequest{
		CustomerID:       cust,
		RequestTimestamp: time.Now().UTC(),
	})

	if result.RiskCategory != "MEDIUM" {
		t.Errorf("Expected MEDIUM for all-missing signals, got %s (score %d)",
			result.RiskCategory, result.RiskScore)
	}
	if result.ConfidenceInterval > 60 {
		t.Errorf("Expected low confidence without signals, got %d", result.ConfidenceInterval)
	}

	t.Logf("Unknown customer: score=%d confidence=%d", result.RiskScore, result.ConfidenceInterval)
}

// ============================================================================
// SCENARIO 3: Escalating Transaction Sequence
// ============================================================================

func TestEscalatingSequence_ScoresRise(t *testing.T) {
	/*
	   SCENARIO: The same customer runs three transactions of rising size
	   inside one hour: $1,000 then $2,500 then $10,000.

	   EXPECTED BEHAVIOR:
	   - Each assessment sees the previous transactions in the rolling window
	   - Scores rise monotonically as escalation and frequency signals stack
	   - The final transaction lands in the CRITICAL band with a BLOCK-grade
	     review requirement
	*/
	config := getTestConfig()
	cust := customerID("escalate")
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	amounts := []float64{1000, 2500, 10000}
	var scores []int

	for i, amount := range amounts {
		result := assess(t, config, AssessRequest{
			CustomerID: cust,
			Transaction: &Transaction{
				ID:         fmt.Sprintf("tx-%s-%d", cust, i),
				CustomerID: cust,
				Amount:     amount,
				Currency:   "USD",
				Timestamp:  base.Add(time.Duration(i) * 10 * time.Minute),
			},
			External:         lowRiskExternals(),
			RequestTimestamp: base.Add(time.Duration(i) * 10 * time.Minute),
		})
		scores = append(scores, result.RiskScore)

		if i == len(amounts)-1 {
			if result.RiskCategory != "CRITICAL" {
				t.Errorf("Expected CRITICAL for final transaction, got %s (score %d)",
					result.RiskCategory, result.RiskScore)
			}
			if !result.RequiresManualReview {
				t.Error("Critical assessment must require manual review")
			}
		}
	}

	for i := 1; i < len(scores); i++ {
		if scores[i] <= scores[i-1] {
			t.Errorf("Expected monotonically rising scores, got %v", scores)
			break
		}
	}

	// The profile must reflect the final assessment
	profile := getProfile(t, config, cust)
	if profile.CurrentScore != scores[len(scores)-1] {
		t.Errorf("Profile score %d does not match final assessment %d",
			profile.CurrentScore, scores[len(scores)-1])
	}

	t.Logf("Escalating sequence scores: %v", scores)
}

// ============================================================================
// SCENARIO 4: Standalone Fraud Scoring Raises an Alert
// ============================================================================

func TestHighRiskScore_CreatesAlert(t *testing.T) {
	/*
	   SCENARIO: A first-seen $5,000 gambling transaction from an
	   unrecognized device, scored via POST /score.

	   EXPECTED BEHAVIOR:
	   - Amount, merchant category, device, and empty-window signals stack
	     past the alert threshold
	   - A NEW fraud alert is created and visible via GET /alerts
	*/
	config := getTestConfig()
	cust := customerID("alert")
	txID := "tx-" + cust

	var result ScoreResponse
	postJSON(t, config, "/score", &Transaction{
		ID:         txID,
		CustomerID: cust,
		Amount:     5000.00,
		Currency:   "USD",
		Timestamp:  time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
		Merchant: Merchant{
			Name:     "Lucky Spin",
			Category: "gambling",
		},
		DeviceFingerprint: "fp-" + cust,
	}, &result)

	if result.FraudScore < 500 {
		t.Errorf("Expected alerting score, got %d", result.FraudScore)
	}
	if result.Recommendation == "APPROVE" {
		t.Error("High risk transaction should not be approved")
	}
	if len(result.Reasons) == 0 {
		t.Error("Expected scoring reasons")
	}

	// The alert should be queryable
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(config.BaseURL + "/alerts?status=NEW&limit=200")
	if err != nil {
		t.Fatalf("Alerts request failed: %v", err)
	}
	defer resp.Body.Close()

	var alertsResp struct {
		Alerts []struct {
			TransactionID string `json:"transactionId"`
			Status        string `json:"status"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&alertsResp); err != nil {
		t.Fatalf("Failed to decode alerts: %v", err)
	}

	found := false
	for _, a := range alertsResp.Alerts {
		if a.TransactionID == txID {
			found = true
			if a.Status != "NEW" {
				t.Errorf("Expected NEW alert, got %s", a.Status)
			}
		}
	}
	if !found {
		t.Errorf("Alert for %s not found in review queue", txID)
	}

	t.Logf("High-risk scoring: score=%d recommendation=%s reasons=%v",
		result.FraudScore, result.Recommendation, result.Reasons)
}

// ============================================================================
// SCENARIO 5: Validation Failures Have No Side Effects
// ============================================================================

func TestInvalidRequest_Rejected(t *testing.T) {
	/*
	   SCENARIO: An assessment carrying a transaction with a negative amount.

	   EXPECTED BEHAVIOR:
	   - 400 response naming the offending field
	   - No profile is created for the customer
	*/
	config := getTestConfig()
	cust := customerID("invalid")

	body, _ := json.Marshal(AssessRequest{
		CustomerID: cust,
		Transaction: &Transaction{
			ID:         "tx-" + cust,
			CustomerID: cust,
			Amount:     -50,
			Currency:   "USD",
			Timestamp:  time.Now().UTC(),
		},
		RequestTimestamp: time.Now().UTC(),
	})

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(config.BaseURL+"/assess", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}

	// No profile should exist for the rejected customer
	profileResp, err := client.Get(config.BaseURL + "/profiles/" + cust)
	if err != nil {
		t.Fatalf("Profile request failed: %v", err)
	}
	defer profileResp.Body.Close()

	if profileResp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for rejected customer, got %d", profileResp.StatusCode)
	}
}

// ============================================================================
// SCENARIO 6: Health and Metrics Surface
// ============================================================================

func TestOperationalEndpoints(t *testing.T) {
	config := getTestConfig()
	client := &http.Client{Timeout: 10 * time.Second}

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		resp, err := client.Get(config.BaseURL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
