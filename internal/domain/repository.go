package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict tenant isolation.
type Repository interface {
	// Incident operations
	SaveIncidents(ctx context.Context, tenantID string, incidents []Incident) error
	GetIncident(ctx context.Context, tenantID string, incidentID string) (*Incident, error)
	CountIncidents(ctx context.Context, tenantID string) (int64, error)

	// Assessment results
	SaveAssessment(ctx context.Context, tenantID string, a *Assessment) error
	GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*Assessment, error)

	// Derived findings, keyed by training run; List returns the latest
	// run's findings in derivation order.
	SaveFindings(ctx context.Context, tenantID string, runID string, findings []Finding) error
	ListFindings(ctx context.Context, tenantID string) ([]Finding, error)

	// Training run records
	SaveTrainingRun(ctx context.Context, tenantID string, run *TrainingRun) error
	GetLatestTrainingRun(ctx context.Context, tenantID string) (*TrainingRun, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
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
