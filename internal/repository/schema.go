package repository

// Schema definitions for Kestrel.
// Compatible with both SQLite and PostgreSQL.

const schemaIncidents = `
CREATE TABLE IF NOT EXISTS incidents (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    hour INTEGER NOT NULL,
    is_weekend INTEGER NOT NULL,
    category TEXT NOT NULL,
    severity INTEGER NOT NULL,
    high_risk INTEGER NOT NULL,
    campus_specific INTEGER NOT NULL,
    victim_age REAL NOT NULL,
    latitude REAL,
    longitude REAL,
    has_location INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_tenant ON incidents(tenant_id);
CREATE INDEX IF NOT EXISTS idx_incidents_category ON incidents(tenant_id, category);
CREATE INDEX IF NOT EXISTS idx_incidents_hour ON incidents(tenant_id, hour);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    hour INTEGER NOT NULL,
    is_weekend INTEGER NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    victim_age REAL NOT NULL,
    probability REAL NOT NULL,
    tier TEXT NOT NULL,
    recommendations TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    metadata TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_tenant ON assessments(tenant_id);
CREATE INDEX IF NOT EXISTS idx_assessments_tier ON assessments(tenant_id, tier);
CREATE INDEX IF NOT EXISTS idx_assessments_timestamp ON assessments(tenant_id, timestamp);
`

// Findings keep their derivation order via the position column; the run
// that produced them is part of the key so history is never overwritten.
const schemaFindings = `
CREATE TABLE IF NOT EXISTS findings (
    run_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    finding TEXT NOT NULL,
    priority TEXT NOT NULL,
    prescriptions TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (run_id, tenant_id, position)
);

CREATE INDEX IF NOT EXISTS idx_findings_tenant ON findings(tenant_id);
CREATE INDEX IF NOT EXISTS idx_findings_created ON findings(tenant_id, created_at);
`

const schemaTrainingRuns = `
CREATE TABLE IF NOT EXISTS training_runs (
    id TEXT PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    dataset_size INTEGER NOT NULL,
    feature_order TEXT NOT NULL,
    metrics TEXT NOT NULL,
    bundle_path TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_training_runs_tenant ON training_runs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_training_runs_completed ON training_runs(tenant_id, completed_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaIncidents,
		schemaAssessments,
		schemaFindings,
		schemaTrainingRuns,
	}
}
