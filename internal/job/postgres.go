package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nischay-chauhan/video-transcode/internal/media"
)

// PostgresConfig configures the Postgres-backed Registry.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	ApplicationName string
	Logger          *slog.Logger
}

// PostgresRegistry persists job records in Postgres so status survives
// process restarts and multiple API replicas share one view.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS transcode_jobs (
    id           TEXT PRIMARY KEY,
    input_path   TEXT NOT NULL,
    output_path  TEXT NOT NULL,
    options      JSONB NOT NULL DEFAULT '{}'::jsonb,
    state        TEXT NOT NULL,
    error        TEXT NOT NULL DEFAULT '',
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL,
    completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS transcode_jobs_state_idx ON transcode_jobs (state);
`

// NewPostgresRegistry opens the pool, applies the schema, and verifies
// connectivity.
func NewPostgresRegistry(ctx context.Context, cfg PostgresConfig) (*PostgresRegistry, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply job schema: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRegistry{pool: pool, logger: logger}, nil
}

// Close releases the underlying pool.
func (r *PostgresRegistry) Close() {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
}

const registryOpTimeout = 5 * time.Second

func (r *PostgresRegistry) Create(spec Spec) (Job, error) {
	if err := validateSpec(spec); err != nil {
		return Job{}, err
	}
	optionsJSON, err := json.Marshal(spec.Options)
	if err != nil {
		return Job{}, fmt.Errorf("encode options: %w", err)
	}
	now := time.Now().UTC()
	record := Job{
		ID:         uuid.NewString(),
		InputPath:  spec.InputPath,
		OutputPath: spec.OutputPath,
		Options:    spec.Options,
		State:      StateQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO transcode_jobs (id, input_path, output_path, options, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.ID, record.InputPath, record.OutputPath, optionsJSON, string(record.State), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return record, nil
}

func (r *PostgresRegistry) Get(id string) (Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	row := r.pool.QueryRow(ctx, `
		SELECT id, input_path, output_path, options, state, error, created_at, updated_at, completed_at
		FROM transcode_jobs WHERE id = $1`, id)
	return scanJob(row, id)
}

func (r *PostgresRegistry) Transition(id string, next State, detail string) (Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Job{}, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		SELECT id, input_path, output_path, options, state, error, created_at, updated_at, completed_at
		FROM transcode_jobs WHERE id = $1 FOR UPDATE`, id)
	record, err := scanJob(row, id)
	if err != nil {
		return Job{}, err
	}
	if !canTransition(record.State, next) {
		r.logger.Warn("rejected job transition",
			"job_id", id, "from", string(record.State), "to", string(next))
		return Job{}, fmt.Errorf("job %s: %s -> %s: %w", id, record.State, next, ErrInvalidTransition)
	}
	record.State = next
	record.UpdatedAt = time.Now().UTC()
	if next == StateFailed {
		record.Error = detail
	}
	if next.Terminal() {
		completed := record.UpdatedAt
		record.CompletedAt = &completed
	}
	_, err = tx.Exec(ctx, `
		UPDATE transcode_jobs SET state = $2, error = $3, updated_at = $4, completed_at = $5
		WHERE id = $1`,
		id, string(record.State), record.Error, record.UpdatedAt, record.CompletedAt,
	)
	if err != nil {
		return Job{}, fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Job{}, fmt.Errorf("commit transition: %w", err)
	}
	return record, nil
}

func (r *PostgresRegistry) List() ([]Job, error) {
	ctx, cancel := context.WithTimeout(context.Background(), registryOpTimeout)
	defer cancel()
	rows, err := r.pool.Query(ctx, `
		SELECT id, input_path, output_path, options, state, error, created_at, updated_at, completed_at
		FROM transcode_jobs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var records []Job
	for rows.Next() {
		record, err := scanJob(rows, "")
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner, id string) (Job, error) {
	var (
		record      Job
		optionsJSON []byte
		state       string
	)
	err := row.Scan(&record.ID, &record.InputPath, &record.OutputPath, &optionsJSON,
		&state, &record.Error, &record.CreatedAt, &record.UpdatedAt, &record.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return Job{}, fmt.Errorf("scan job: %w", err)
	}
	record.State = State(state)
	if len(optionsJSON) > 0 {
		var options media.Options
		if err := json.Unmarshal(optionsJSON, &options); err != nil {
			return Job{}, fmt.Errorf("decode options for job %s: %w", record.ID, err)
		}
		record.Options = options
	}
	return record, nil
}
