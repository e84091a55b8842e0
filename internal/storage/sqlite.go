package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pairing_analyzer/internal/pipeline"
)

// Fixed-width so created_at sorts lexically.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteDB wraps a SQLite database connection for analysis storage.
type SQLiteDB struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at the given path.
func OpenSQLite(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection.
func (d *SQLiteDB) Close() error {
	return d.db.Close()
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		source TEXT,
		base TEXT NOT NULL,
		fleet TEXT NOT NULL,
		bid_period TEXT NOT NULL,
		pairing_count INTEGER NOT NULL,
		warning_count INTEGER NOT NULL,
		total_trips INTEGER NOT NULL,
		edw_trips INTEGER NOT NULL,
		trip_weighted_edw REAL NOT NULL,
		header_json TEXT NOT NULL,
		pairings_json TEXT NOT NULL,
		warnings_json TEXT NOT NULL,
		metrics_json TEXT NOT NULL,
		elapsed_ms INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analyses_base ON analyses(base);
	CREATE INDEX IF NOT EXISTS idx_analyses_fleet ON analyses(fleet);
	CREATE INDEX IF NOT EXISTS idx_analyses_bid_period ON analyses(bid_period);
	CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// encoded holds the JSON columns of a result.
type encoded struct {
	header, pairings, warnings, metrics []byte
}

func encodeResult(res *pipeline.Result) (encoded, error) {
	var e encoded
	var err error
	if e.header, err = json.Marshal(res.Header); err != nil {
		return e, fmt.Errorf("marshal header: %w", err)
	}
	if e.pairings, err = json.Marshal(res.Pairings); err != nil {
		return e, fmt.Errorf("marshal pairings: %w", err)
	}
	if e.warnings, err = json.Marshal(res.Warnings); err != nil {
		return e, fmt.Errorf("marshal warnings: %w", err)
	}
	if e.metrics, err = json.Marshal(res.Metrics); err != nil {
		return e, fmt.Errorf("marshal metrics: %w", err)
	}
	return e, nil
}

func (e encoded) decode(res *pipeline.Result) error {
	if err := json.Unmarshal(e.header, &res.Header); err != nil {
		return fmt.Errorf("unmarshal header: %w", err)
	}
	if err := json.Unmarshal(e.pairings, &res.Pairings); err != nil {
		return fmt.Errorf("unmarshal pairings: %w", err)
	}
	if err := json.Unmarshal(e.warnings, &res.Warnings); err != nil {
		return fmt.Errorf("unmarshal warnings: %w", err)
	}
	if err := json.Unmarshal(e.metrics, &res.Metrics); err != nil {
		return fmt.Errorf("unmarshal metrics: %w", err)
	}
	return nil
}

// SaveAnalysis stores a result, replacing any previous row with the same ID.
func (d *SQLiteDB) SaveAnalysis(ctx context.Context, res *pipeline.Result) error {
	e, err := encodeResult(res)
	if err != nil {
		return err
	}

	s := Summarise(res)
	_, err = d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analyses (
			id, source, base, fleet, bid_period, pairing_count, warning_count,
			total_trips, edw_trips, trip_weighted_edw,
			header_json, pairings_json, warnings_json, metrics_json, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Source, s.Base, s.Fleet, s.BidPeriod, s.Pairings, s.Warnings,
		s.TotalTrips, s.EDWTrips, s.TripWeightedEDW,
		string(e.header), string(e.pairings), string(e.warnings), string(e.metrics),
		res.Elapsed.Milliseconds(), res.CreatedAt.UTC().Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// GetAnalysis returns the stored result with the given ID, or ErrNotFound.
func (d *SQLiteDB) GetAnalysis(ctx context.Context, id string) (*pipeline.Result, error) {
	var (
		source, createdAt string
		elapsed           int64
		h, p, w, m        string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT source, header_json, pairings_json, warnings_json, metrics_json, elapsed_ms, created_at
		FROM analyses WHERE id = ?
	`, id).Scan(&source, &h, &p, &w, &m, &elapsed, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query analysis: %w", err)
	}

	res := &pipeline.Result{Source: source, Elapsed: time.Duration(elapsed) * time.Millisecond}
	if res.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	res.CreatedAt, _ = time.Parse(sqliteTime, createdAt)
	if err := (encoded{[]byte(h), []byte(p), []byte(w), []byte(m)}).decode(res); err != nil {
		return nil, err
	}
	return res, nil
}

// ListAnalyses returns summaries newest first.
func (d *SQLiteDB) ListAnalyses(ctx context.Context, p ListParams) ([]AnalysisSummary, error) {
	var conditions []string
	var args []interface{}

	if p.Base != "" {
		conditions = append(conditions, "base = ?")
		args = append(args, p.Base)
	}
	if p.Fleet != "" {
		conditions = append(conditions, "fleet = ?")
		args = append(args, p.Fleet)
	}
	if p.BidPeriod != "" {
		conditions = append(conditions, "bid_period = ?")
		args = append(args, p.BidPeriod)
	}

	query := `SELECT id, source, base, fleet, bid_period, pairing_count, warning_count,
		total_trips, edw_trips, trip_weighted_edw, created_at FROM analyses`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, p.limit(), p.Offset)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []AnalysisSummary
	for rows.Next() {
		var s AnalysisSummary
		var source sql.NullString
		var createdAt string
		if err := rows.Scan(&s.ID, &source, &s.Base, &s.Fleet, &s.BidPeriod, &s.Pairings, &s.Warnings,
			&s.TotalTrips, &s.EDWTrips, &s.TripWeightedEDW, &createdAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		s.Source = source.String
		s.CreatedAt, _ = time.Parse(sqliteTime, createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// Stats holds store-wide counts.
type Stats struct {
	TotalAnalyses int            `json:"total_analyses"`
	TotalTrips    int            `json:"total_trips"`
	EDWTrips      int            `json:"edw_trips"`
	ByFleet       map[string]int `json:"by_fleet"`
	ByBase        map[string]int `json:"by_base"`
}

// Stats returns counts of stored analyses.
func (d *SQLiteDB) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByFleet: make(map[string]int),
		ByBase:  make(map[string]int),
	}

	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_trips), 0), COALESCE(SUM(edw_trips), 0) FROM analyses`,
	).Scan(&stats.TotalAnalyses, &stats.TotalTrips, &stats.EDWTrips)
	if err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	for col, dst := range map[string]map[string]int{"fleet": stats.ByFleet, "base": stats.ByBase} {
		rows, err := d.db.QueryContext(ctx, `SELECT `+col+`, COUNT(*) FROM analyses GROUP BY `+col)
		if err != nil {
			return nil, fmt.Errorf("count by %s: %w", col, err)
		}
		for rows.Next() {
			var key string
			var n int
			if err := rows.Scan(&key, &n); err != nil {
				_ = rows.Close()
				return nil, err
			}
			dst[key] = n
		}
		_ = rows.Close()
	}

	return stats, nil
}
