// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/campus-safety/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
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

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveIncidents stores a batch of incidents with tenant isolation. The
// batch runs in one transaction; incidents without an ID get one.
func (r *SQLRepository) SaveIncidents(ctx context.Context, tenantID string, incidents []domain.Incident) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if len(incidents) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO incidents (
			id, tenant_id, hour, is_weekend, category, severity,
			high_risk, campus_specific, victim_age,
			latitude, longitude, has_location, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	stmt, err := tx.PrepareContext(ctx, r.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range incidents {
		inc := &incidents[i]
		id := inc.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := inc.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		if _, err := stmt.ExecContext(ctx,
			id, tenantID, inc.Hour, boolInt(inc.IsWeekend),
			inc.Category, inc.Severity, boolInt(inc.HighRisk),
			boolInt(inc.CampusSpecific), inc.VictimAge,
			inc.Latitude, inc.Longitude, boolInt(inc.HasLocation),
			createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetIncident retrieves an incident by ID with tenant isolation.
func (r *SQLRepository) GetIncident(ctx context.Context, tenantID string, incidentID string) (*domain.Incident, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, hour, is_weekend, category, severity,
			   high_risk, campus_specific, victim_age,
			   latitude, longitude, has_location, created_at
		FROM incidents
		WHERE tenant_id = ? AND id = ?
	`

	var inc domain.Incident
	var isWeekend, highRisk, campus, hasLocation int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, incidentID).Scan(
		&inc.ID, &inc.TenantID, &inc.Hour, &isWeekend,
		&inc.Category, &inc.Severity, &highRisk,
		&campus, &inc.VictimAge,
		&inc.Latitude, &inc.Longitude, &hasLocation,
		&inc.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	inc.IsWeekend = isWeekend == 1
	inc.HighRisk = highRisk == 1
	inc.CampusSpecific = campus == 1
	inc.HasLocation = hasLocation == 1

	return &inc, nil
}

// CountIncidents returns the number of incidents stored for a tenant.
func (r *SQLRepository) CountIncidents(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var count int64
	err := r.db.QueryRowContext(ctx,
		r.rebind(`SELECT COUNT(*) FROM incidents WHERE tenant_id = ?`),
		tenantID,
	).Scan(&count)
	return count, err
}

// SaveAssessment stores an assessment result with tenant isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, tenantID string, a *domain.Assessment) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	recommendations, _ := json.Marshal(a.Recommendations)
	metadata, _ := json.Marshal(a.Metadata)

	query := `
		INSERT INTO assessments (
			id, tenant_id, hour, is_weekend, latitude, longitude,
			victim_age, probability, tier, recommendations, timestamp, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		a.ID, tenantID, a.Query.Hour, boolInt(a.Query.IsWeekend),
		a.Query.Latitude, a.Query.Longitude, a.Query.VictimAge,
		a.Probability, string(a.Tier),
		string(recommendations), a.Timestamp, string(metadata),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with tenant isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, tenantID string, assessmentID string) (*domain.Assessment, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, hour, is_weekend, latitude, longitude,
			   victim_age, probability, tier, recommendations, timestamp, metadata
		FROM assessments
		WHERE tenant_id = ? AND id = ?
	`

	var a domain.Assessment
	var isWeekend int
	var tier, recommendations, metadata string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, assessmentID).Scan(
		&a.ID, &a.TenantID, &a.Query.Hour, &isWeekend,
		&a.Query.Latitude, &a.Query.Longitude, &a.Query.VictimAge,
		&a.Probability, &tier, &recommendations, &a.Timestamp, &metadata,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	a.Query.IsWeekend = isWeekend == 1
	a.Tier = domain.Tier(tier)
	json.Unmarshal([]byte(recommendations), &a.Recommendations)
	json.Unmarshal([]byte(metadata), &a.Metadata)

	return &a, nil
}

// SaveFindings stores the findings of a training run, preserving their
// derivation order.
func (r *SQLRepository) SaveFindings(ctx context.Context, tenantID string, runID string, findings []domain.Finding) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO findings (
			run_id, tenant_id, position, finding, priority, prescriptions, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	for i, f := range findings {
		prescriptions, _ := json.Marshal(f.Prescriptions)
		if _, err := tx.ExecContext(ctx, r.rebind(query),
			runID, tenantID, i, f.Finding, f.Priority,
			string(prescriptions), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListFindings returns the latest run's findings in derivation order.
func (r *SQLRepository) ListFindings(ctx context.Context, tenantID string) ([]domain.Finding, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT finding, priority, prescriptions
		FROM findings
		WHERE tenant_id = ?
		  AND run_id = (
			SELECT run_id FROM findings
			WHERE tenant_id = ?
			ORDER BY created_at DESC
			LIMIT 1
		  )
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var findings []domain.Finding
	for rows.Next() {
		var f domain.Finding
		var prescriptions string

		if err := rows.Scan(&f.Finding, &f.Priority, &prescriptions); err != nil {
			return nil, err
		}

		json.Unmarshal([]byte(prescriptions), &f.Prescriptions)
		findings = append(findings, f)
	}

	return findings, rows.Err()
}

// SaveTrainingRun stores a training run record with tenant isolation.
func (r *SQLRepository) SaveTrainingRun(ctx context.Context, tenantID string, run *domain.TrainingRun) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	featureOrder, _ := json.Marshal(run.FeatureOrder)
	metrics, _ := json.Marshal(run.Metrics)

	query := `
		INSERT INTO training_runs (
			id, tenant_id, started_at, completed_at,
			dataset_size, feature_order, metrics, bundle_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, tenantID, run.StartedAt, run.CompletedAt,
		run.DatasetSize, string(featureOrder), string(metrics), run.BundlePath,
	)
	return err
}

// GetLatestTrainingRun retrieves the most recently completed training run.
func (r *SQLRepository) GetLatestTrainingRun(ctx context.Context, tenantID string) (*domain.TrainingRun, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, started_at, completed_at,
			   dataset_size, feature_order, metrics, bundle_path
		FROM training_runs
		WHERE tenant_id = ?
		ORDER BY completed_at DESC
		LIMIT 1
	`

	var run domain.TrainingRun
	var featureOrder, metrics string

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&run.ID, &run.TenantID, &run.StartedAt, &run.CompletedAt,
		&run.DatasetSize, &featureOrder, &metrics, &run.BundlePath,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	json.Unmarshal([]byte(featureOrder), &run.FeatureOrder)
	json.Unmarshal([]byte(metrics), &run.Metrics)

	return &run, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
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
