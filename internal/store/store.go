// Package store provides the SQL-backed persistence layer.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// dbtx is the query surface shared by *sql.DB and *sql.Tx, so every store
// operation works both standalone and inside WithinTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements domain.Store using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLStore struct {
	db     *sql.DB
	q      dbtx
	driver string
	inTx   bool
}

// New creates a store based on configuration.
func New(cfg domain.StoreConfig) (domain.Store, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := &SQLStore{
		db:     db,
		q:      db,
		driver: cfg.Driver,
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := s.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// WithinTx runs fn against a transaction-scoped store. A nested call joins
// the transaction already in progress.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(domain.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	child := &SQLStore{
		db:     s.db,
		q:      tx,
		driver: s.driver,
		inTx:   true,
	}

	if err := fn(child); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// FindProfile returns the profile for a customer, or domain.ErrNotFound.
func (s *SQLStore) FindProfile(ctx context.Context, customerID string) (*domain.RiskProfile, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	query := `
		SELECT customer_id, current_score, category, version, last_assessed_at, created_at
		FROM risk_profiles
		WHERE customer_id = ?
	`

	var p domain.RiskProfile
	err := s.q.QueryRowContext(ctx, s.rebind(query), customerID).Scan(
		&p.CustomerID, &p.CurrentScore, &p.Category,
		&p.Version, &p.LastAssessedAt, &p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProfile inserts the profile when Version is zero, otherwise applies an
// optimistic-concurrency update. A lost race returns domain.ErrConflict and
// leaves the stored row unchanged.
func (s *SQLStore) SaveProfile(ctx context.Context, profile *domain.RiskProfile) error {
	if profile.CustomerID == "" {
		return fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	if profile.Version == 0 {
		query := `
			INSERT INTO risk_profiles (customer_id, current_score, category, version, last_assessed_at, created_at)
			VALUES (?, ?, ?, 1, ?, ?)
		`
		_, err := s.q.ExecContext(ctx, s.rebind(query),
			profile.CustomerID, profile.CurrentScore, string(profile.Category),
			profile.LastAssessedAt, profile.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrConflict
			}
			return err
		}
		profile.Version = 1
		return nil
	}

	query := `
		UPDATE risk_profiles
		SET current_score = ?, category = ?, version = version + 1, last_assessed_at = ?
		WHERE customer_id = ? AND version = ?
	`
	result, err := s.q.ExecContext(ctx, s.rebind(query),
		profile.CurrentScore, string(profile.Category), profile.LastAssessedAt,
		profile.CustomerID, profile.Version,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrConflict
	}

	profile.Version++
	return nil
}

// FactorsByProfile returns the customer's current factor set.
func (s *SQLStore) FactorsByProfile(ctx context.Context, customerID string) ([]domain.RiskFactor, error) {
	query := `
		SELECT id, customer_id, name, score, weight, description, data_source
		FROM risk_factors
		WHERE customer_id = ?
		ORDER BY weight DESC, name
	`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var factors []domain.RiskFactor
	for rows.Next() {
		var f domain.RiskFactor
		if err := rows.Scan(
			&f.ID, &f.CustomerID, &f.Name, &f.Score,
			&f.Weight, &f.Description, &f.DataSource,
		); err != nil {
			return nil, err
		}
		factors = append(factors, f)
	}
	return factors, rows.Err()
}

// ReplaceFactors supersedes the customer's factor set. Callers run it inside
// WithinTx so the delete and inserts land atomically.
func (s *SQLStore) ReplaceFactors(ctx context.Context, customerID string, factors []domain.RiskFactor) error {
	if customerID == "" {
		return fmt.Errorf("%w: customerID is required", domain.ErrInvalidInput)
	}

	if _, err := s.q.ExecContext(ctx, s.rebind(`DELETE FROM risk_factors WHERE customer_id = ?`), customerID); err != nil {
		return err
	}

	query := `
		INSERT INTO risk_factors (id, customer_id, name, score, weight, description, data_source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, f := range factors {
		if _, err := s.q.ExecContext(ctx, s.rebind(query),
			f.ID, customerID, f.Name, f.Score, f.Weight, f.Description, f.DataSource,
		); err != nil {
			return err
		}
	}
	return nil
}

// SaveScore stores an immutable assessment score record.
func (s *SQLStore) SaveScore(ctx context.Context, score *domain.RiskScore) error {
	query := `
		INSERT INTO risk_scores (id, customer_id, score, category, confidence, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, s.rebind(query),
		score.ID, score.CustomerID, score.Score, string(score.Category),
		score.Confidence, score.AssessedAt,
	)
	return err
}

// ScoresByProfile returns the customer's score history, newest first.
func (s *SQLStore) ScoresByProfile(ctx context.Context, customerID string, limit int) ([]domain.RiskScore, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, customer_id, score, category, confidence, assessed_at
		FROM risk_scores
		WHERE customer_id = ?
		ORDER BY assessed_at DESC
		LIMIT ?
	`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), customerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []domain.RiskScore
	for rows.Next() {
		var sc domain.RiskScore
		if err := rows.Scan(
			&sc.ID, &sc.CustomerID, &sc.Score, &sc.Category,
			&sc.Confidence, &sc.AssessedAt,
		); err != nil {
			return nil, err
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

// SaveAlert stores a fraud alert.
func (s *SQLStore) SaveAlert(ctx context.Context, alert *domain.FraudAlert) error {
	query := `
		INSERT INTO fraud_alerts (id, transaction_id, customer_id, reason, score, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, s.rebind(query),
		alert.ID, alert.TransactionID, alert.CustomerID, alert.Reason,
		alert.Score, string(alert.Status), alert.CreatedAt,
	)
	return err
}

// AlertsByStatus returns alerts in the given state, newest first.
func (s *SQLStore) AlertsByStatus(ctx context.Context, status domain.AlertStatus, limit int) ([]domain.FraudAlert, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, transaction_id, customer_id, reason, score, status, created_at
		FROM fraud_alerts
		WHERE status = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	return s.scanAlerts(ctx, query, string(status), limit)
}

// AlertsByCustomer returns all alerts for a customer, newest first.
func (s *SQLStore) AlertsByCustomer(ctx context.Context, customerID string) ([]domain.FraudAlert, error) {
	query := `
		SELECT id, transaction_id, customer_id, reason, score, status, created_at
		FROM fraud_alerts
		WHERE customer_id = ?
		ORDER BY created_at DESC
	`
	return s.scanAlerts(ctx, query, customerID)
}

func (s *SQLStore) scanAlerts(ctx context.Context, query string, args ...any) ([]domain.FraudAlert, error) {
	rows, err := s.q.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var alerts []domain.FraudAlert
	for rows.Next() {
		var a domain.FraudAlert
		if err := rows.Scan(
			&a.ID, &a.TransactionID, &a.CustomerID, &a.Reason,
			&a.Score, &a.Status, &a.CreatedAt,
		); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// SaveTransaction stores a scored transaction.
func (s *SQLStore) SaveTransaction(ctx context.Context, txn *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, customer_id, amount, currency, timestamp, category,
			merchant_name, merchant_category, merchant_country,
			payment_method, ip_address, device_fingerprint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.q.ExecContext(ctx, s.rebind(query),
		txn.ID, txn.CustomerID, txn.Amount, txn.Currency,
		txn.Timestamp, txn.Category,
		txn.Merchant.Name, txn.Merchant.Category, txn.Merchant.Country,
		txn.PaymentMethod, txn.IPAddress, txn.DeviceFingerprint,
	)
	return err
}

// RecentTransactions returns up to limit transactions for the customer
// since the given time, most recent first.
func (s *SQLStore) RecentTransactions(ctx context.Context, customerID string, since time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, customer_id, amount, currency, timestamp, category,
			   merchant_name, merchant_category, merchant_country,
			   payment_method, ip_address, device_fingerprint
		FROM transactions
		WHERE customer_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`

	rows, err := s.q.QueryContext(ctx, s.rebind(query), customerID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.ID, &t.CustomerID, &t.Amount, &t.Currency,
			&t.Timestamp, &t.Category,
			&t.Merchant.Name, &t.Merchant.Category, &t.Merchant.Country,
			&t.PaymentMethod, &t.IPAddress, &t.DeviceFingerprint,
		); err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.inTx {
		return nil
	}
	return s.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// isUniqueViolation reports whether err is a primary key or unique
// constraint failure, across both supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if isPQUniqueViolation(err) {
		return true
	}
	// modernc.org/sqlite reports constraint failures as plain errors.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
