package domain

import (
	"context"
	"time"
)

// ProfileStore persists customer risk profiles.
type ProfileStore interface {
	// FindProfile returns the profile for a customer, or ErrNotFound.
	FindProfile(ctx context.Context, customerID string) (*RiskProfile, error)

	// SaveProfile inserts the profile when Version is zero, otherwise updates
	// it with an optimistic version check. A stale version returns ErrConflict
	// and leaves the stored row untouched. On success the profile's Version
	// reflects the stored value.
	SaveProfile(ctx context.Context, profile *RiskProfile) error
}

// FactorStore persists the explainable risk factors of a profile.
type FactorStore interface {
	FactorsByProfile(ctx context.Context, customerID string) ([]RiskFactor, error)

	// ReplaceFactors supersedes the customer's factor set atomically.
	ReplaceFactors(ctx context.Context, customerID string, factors []RiskFactor) error
}

// ScoreStore persists immutable assessment score records.
type ScoreStore interface {
	SaveScore(ctx context.Context, score *RiskScore) error
	ScoresByProfile(ctx context.Context, customerID string, limit int) ([]RiskScore, error)
}

// AlertStore persists fraud alerts.
type AlertStore interface {
	SaveAlert(ctx context.Context, alert *FraudAlert) error
	AlertsByStatus(ctx context.Context, status AlertStatus, limit int) ([]FraudAlert, error)
	AlertsByCustomer(ctx context.Context, customerID string) ([]FraudAlert, error)
}

// TransactionStore persists scored transactions so that the rolling window
// used for velocity detection is shared across horizontally scaled instances.
type TransactionStore interface {
	SaveTransaction(ctx context.Context, txn *Transaction) error

	// RecentTransactions returns up to limit transactions for the customer
	// with timestamp >= since, most recent first.
	RecentTransactions(ctx context.Context, customerID string, since time.Time, limit int) ([]Transaction, error)
}

// Store groups all persistence collaborators behind one transactional
// boundary.
type Store interface {
	ProfileStore
	FactorStore
	ScoreStore
	AlertStore
	TransactionStore

	// WithinTx runs fn against a transaction-scoped store. All writes made
	// through that store commit together or roll back together. Calling
	// WithinTx on a transaction-scoped store joins the current transaction.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
