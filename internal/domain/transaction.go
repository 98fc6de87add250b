package domain

import (
	"time"
)

// Transaction is a single customer transaction, either the one under
// assessment or an entry in the customer's history.
type Transaction struct {
	ID                string       `json:"id"`
	CustomerID        string       `json:"customerId"`
	Amount            float64      `json:"amount"`
	Currency          string       `json:"currency"`
	Timestamp         time.Time    `json:"timestamp"`
	Category          string       `json:"category,omitempty"`
	Merchant          MerchantInfo `json:"merchant,omitempty"`
	PaymentMethod     string       `json:"paymentMethod,omitempty"`
	IPAddress         string       `json:"ipAddress,omitempty"`
	DeviceFingerprint string       `json:"deviceFingerprint,omitempty"`
}

// MerchantInfo describes the counterparty merchant.
type MerchantInfo struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Validate checks the required transaction fields. Violations are reported
// as a *ValidationError; no scoring or persistence may happen before this
// check passes.
func (t *Transaction) Validate() error {
	if t == nil {
		return NewValidationError("transaction", "transaction is required")
	}
	if t.ID == "" {
		return NewValidationError("transactionId", "transactionId is required")
	}
	if t.CustomerID == "" {
		return NewValidationError("customerId", "customerId is required")
	}
	if t.Amount <= 0 {
		return NewValidationError("amount", "amount must be positive")
	}
	if !validCurrency(t.Currency) {
		return NewValidationError("currency", "currency must be a 3-letter code")
	}
	return nil
}

func validCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		c := code[i]
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
