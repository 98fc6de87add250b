// Package domain defines the core types and collaborator interfaces for Kestrel.
package domain

import (
	"time"
)

// RiskCategory classifies a risk score into a band.
type RiskCategory string

const (
	CategoryUnknown  RiskCategory = "UNKNOWN"
	CategoryLow      RiskCategory = "LOW"
	CategoryMedium   RiskCategory = "MEDIUM"
	CategoryHigh     RiskCategory = "HIGH"
	CategoryCritical RiskCategory = "CRITICAL"
)

// RiskProfile is the persistent per-customer risk aggregate.
// It is created on the first assessment for an unseen customer and mutated
// on every subsequent assessment; profiles are never deleted.
type RiskProfile struct {
	CustomerID     string       `json:"customerId"`
	CurrentScore   int          `json:"currentScore"` // 0-1000
	Category       RiskCategory `json:"category"`
	Version        int64        `json:"version"` // optimistic concurrency token
	LastAssessedAt time.Time    `json:"lastAssessedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// RiskScore is an immutable record of one assessment outcome.
type RiskScore struct {
	ID         string       `json:"id"`
	CustomerID string       `json:"customerId"`
	Score      int          `json:"score"` // 0-1000
	Category   RiskCategory `json:"category"`
	Confidence int          `json:"confidence"` // 0-100
	AssessedAt time.Time    `json:"assessedAt"`
}

// RiskFactor is a named, weighted, explainable contributor to a risk score.
// Factors are recomputed each assessment cycle and superseded as a set,
// never mutated in place.
type RiskFactor struct {
	ID          string  `json:"id"`
	CustomerID  string  `json:"customerId"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`  // 0.0-1.0
	Weight      float64 `json:"weight"` // relative importance in the weighted sum
	Description string  `json:"description"`
	DataSource  string  `json:"dataSource"`
}

// AlertStatus is the investigation state of a fraud alert.
// Kestrel only ever creates alerts as NEW; the remaining transitions belong
// to an external investigation workflow.
type AlertStatus string

const (
	AlertNew       AlertStatus = "NEW"
	AlertReviewed  AlertStatus = "REVIEWED"
	AlertDismissed AlertStatus = "DISMISSED"
	AlertConfirmed AlertStatus = "CONFIRMED"
)

// FraudAlert flags one transaction for investigation.
type FraudAlert struct {
	ID            string      `json:"id"`
	TransactionID string      `json:"transactionId"`
	CustomerID    string      `json:"customerId"`
	Reason        string      `json:"reason"`
	Score         int         `json:"score"` // the fraud score that crossed the threshold
	Status        AlertStatus `json:"status"`
	CreatedAt     time.Time   `json:"createdAt"`
}
