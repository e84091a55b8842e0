package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pairing_analyzer/internal/pipeline"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// PostgresDB wraps a PostgreSQL connection pool for analysis storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() error {
	d.pool.Close()
	return nil
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id                  UUID PRIMARY KEY,
		source              TEXT,
		base                TEXT NOT NULL,
		fleet               TEXT NOT NULL,
		bid_period          TEXT NOT NULL,
		pairing_count       INTEGER NOT NULL,
		warning_count       INTEGER NOT NULL,
		total_trips         INTEGER NOT NULL,
		edw_trips           INTEGER NOT NULL,
		trip_weighted_edw   DOUBLE PRECISION NOT NULL,
		header              JSONB NOT NULL,
		warnings            JSONB NOT NULL,
		metrics             JSONB NOT NULL,
		elapsed_ms          BIGINT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_base ON analyses(base);
	CREATE INDEX IF NOT EXISTS idx_analyses_fleet ON analyses(fleet);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);

	-- One row per pairing so filters can run in SQL.
	CREATE TABLE IF NOT EXISTS analysis_pairings (
		analysis_id     UUID NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
		seq             INTEGER NOT NULL,
		pairing_id      TEXT NOT NULL,
		frequency       INTEGER NOT NULL,
		duty_days       INTEGER NOT NULL,
		is_edw          BOOLEAN NOT NULL,
		is_hot_standby  BOOLEAN NOT NULL,
		tafb_hours      DOUBLE PRECISION NOT NULL,
		max_duty_hours  DOUBLE PRECISION NOT NULL,
		max_legs        INTEGER NOT NULL,
		data            JSONB NOT NULL,
		PRIMARY KEY (analysis_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_pairings_edw ON analysis_pairings(analysis_id, is_edw);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// SaveAnalysis stores a result and its pairings in one transaction.
func (d *PostgresDB) SaveAnalysis(ctx context.Context, res *pipeline.Result) error {
	e, err := encodeResult(res)
	if err != nil {
		return err
	}
	s := Summarise(res)

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO analyses (
			id, source, base, fleet, bid_period, pairing_count, warning_count,
			total_trips, edw_trips, trip_weighted_edw, header, warnings, metrics, elapsed_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`, res.ID, s.Source, s.Base, s.Fleet, s.BidPeriod, s.Pairings, s.Warnings,
		s.TotalTrips, s.EDWTrips, s.TripWeightedEDW,
		e.header, e.warnings, e.metrics, res.Elapsed.Milliseconds(), res.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}

	batch := &pgx.Batch{}
	for i, p := range res.Pairings {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal pairing %s: %w", p.ID, err)
		}
		batch.Queue(`
			INSERT INTO analysis_pairings (
				analysis_id, seq, pairing_id, frequency, duty_days, is_edw, is_hot_standby,
				tafb_hours, max_duty_hours, max_legs, data
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (analysis_id, seq) DO NOTHING
		`, res.ID, i, p.ID, p.Frequency, len(p.DutyDays), p.IsEDW, p.IsHotStandby,
			p.TAFBHours(), p.MaxDutyHours(), p.MaxLegs(), data)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert pairings: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetAnalysis returns the stored result with the given ID, or ErrNotFound.
func (d *PostgresDB) GetAnalysis(ctx context.Context, id string) (*pipeline.Result, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, ErrNotFound
	}

	res := &pipeline.Result{ID: uid}
	var (
		source  *string
		elapsed *int64
		e       encoded
	)
	err = d.pool.QueryRow(ctx, `
		SELECT source, header, warnings, metrics, elapsed_ms, created_at
		FROM analyses WHERE id = $1
	`, uid).Scan(&source, &e.header, &e.warnings, &e.metrics, &elapsed, &res.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}
	if source != nil {
		res.Source = *source
	}
	if elapsed != nil {
		res.Elapsed = time.Duration(*elapsed) * time.Millisecond
	}

	rows, err := d.pool.Query(ctx, `
		SELECT data FROM analysis_pairings WHERE analysis_id = $1 ORDER BY seq
	`, uid)
	if err != nil {
		return nil, fmt.Errorf("query pairings: %w", err)
	}
	defer rows.Close()

	parts := make([]string, 0, 64)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan pairing: %w", err)
		}
		parts = append(parts, string(data))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	e.pairings = []byte("[" + strings.Join(parts, ",") + "]")

	if err := e.decode(res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAnalyses returns summaries newest first.
func (d *PostgresDB) ListAnalyses(ctx context.Context, p ListParams) ([]AnalysisSummary, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if p.Base != "" {
		conditions = append(conditions, fmt.Sprintf("base = $%d", argNum))
		args = append(args, p.Base)
		argNum++
	}
	if p.Fleet != "" {
		conditions = append(conditions, fmt.Sprintf("fleet = $%d", argNum))
		args = append(args, p.Fleet)
		argNum++
	}
	if p.BidPeriod != "" {
		conditions = append(conditions, fmt.Sprintf("bid_period = $%d", argNum))
		args = append(args, p.BidPeriod)
		argNum++
	}

	query := `SELECT id, source, base, fleet, bid_period, pairing_count, warning_count,
		total_trips, edw_trips, trip_weighted_edw, created_at FROM analyses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, p.limit(), p.Offset)

	rows, err := d.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisSummary
	for rows.Next() {
		var s AnalysisSummary
		var id uuid.UUID
		var source *string
		if err := rows.Scan(&id, &source, &s.Base, &s.Fleet, &s.BidPeriod, &s.Pairings, &s.Warnings,
			&s.TotalTrips, &s.EDWTrips, &s.TripWeightedEDW, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		s.ID = id.String()
		if source != nil {
			s.Source = *source
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// EDWPairingIDs returns the IDs of EDW pairings in an analysis, in document order.
func (d *PostgresDB) EDWPairingIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT pairing_id FROM analysis_pairings
		WHERE analysis_id = $1 AND is_edw
		ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query edw pairings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, err
		}
		ids = append(ids, pid)
	}
	return ids, rows.Err()
}
