package store

// Schema definitions for the Kestrel database.
// Compatible with both SQLite and PostgreSQL.

const schemaProfiles = `
CREATE TABLE IF NOT EXISTS risk_profiles (
    customer_id TEXT PRIMARY KEY,
    current_score INTEGER NOT NULL,
    category TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 1,
    last_assessed_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL
);
`

const schemaScores = `
CREATE TABLE IF NOT EXISTS risk_scores (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    score INTEGER NOT NULL,
    category TEXT NOT NULL,
    confidence INTEGER NOT NULL,
    assessed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_risk_scores_customer ON risk_scores(customer_id, assessed_at);
`

const schemaFactors = `
CREATE TABLE IF NOT EXISTS risk_factors (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    name TEXT NOT NULL,
    score REAL NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    description TEXT,
    data_source TEXT
);

CREATE INDEX IF NOT EXISTS idx_risk_factors_customer ON risk_factors(customer_id);
`

const schemaAlerts = `
CREATE TABLE IF NOT EXISTS fraud_alerts (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL,
    customer_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    score INTEGER NOT NULL,
    status TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fraud_alerts_customer ON fraud_alerts(customer_id);
CREATE INDEX IF NOT EXISTS idx_fraud_alerts_status ON fraud_alerts(status, created_at);
`

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    customer_id TEXT NOT NULL,
    amount REAL NOT NULL,
    currency TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    category TEXT,
    merchant_name TEXT,
    merchant_category TEXT,
    merchant_country TEXT,
    payment_method TEXT,
    ip_address TEXT,
    device_fingerprint TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_customer ON transactions(customer_id, timestamp);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProfiles,
		schemaScores,
		schemaFactors,
		schemaAlerts,
		schemaTransactions,
	}
}
