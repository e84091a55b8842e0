// Package storage persists analysis results: SQLite for local use, PostgreSQL
// as the shared analysis store and ClickHouse for duty-day analytics.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"pairing_analyzer/internal/pipeline"
)

// Config holds database connection settings for both ClickHouse and PostgreSQL.
type Config struct {
	ClickHouse ClickHouseConfig
	Postgres   PostgresConfig
}

// DefaultConfig returns a configuration with default local development settings.
func DefaultConfig() Config {
	return Config{
		ClickHouse: ClickHouseConfig{
			Host:     "localhost",
			Port:     9000,
			Database: "pairings",
			User:     "default",
			Password: "",
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "pairings",
			User:     "pairings",
			Password: "pairings",
		},
	}
}

// ErrNotFound is returned when an analysis ID is unknown.
var ErrNotFound = errors.New("analysis not found")

// Store persists and retrieves analysis results.
type Store interface {
	SaveAnalysis(ctx context.Context, res *pipeline.Result) error
	GetAnalysis(ctx context.Context, id string) (*pipeline.Result, error)
	ListAnalyses(ctx context.Context, p ListParams) ([]AnalysisSummary, error)
	Close() error
}

// ListParams contains filtering options for listing analyses.
type ListParams struct {
	Base      string // Exact match.
	Fleet     string // Exact match.
	BidPeriod string // Exact match.
	Limit     int    // Max results (default 50).
	Offset    int    // Pagination offset.
}

func (p ListParams) limit() int {
	if p.Limit > 0 {
		return p.Limit
	}
	return 50
}

// AnalysisSummary is one row of ListAnalyses.
type AnalysisSummary struct {
	ID              string    `json:"id"`
	Source          string    `json:"source,omitempty"`
	Base            string    `json:"base"`
	Fleet           string    `json:"fleet"`
	BidPeriod       string    `json:"bid_period"`
	Pairings        int       `json:"pairings"`
	Warnings        int       `json:"warnings"`
	TotalTrips      int       `json:"total_trips"`
	EDWTrips        int       `json:"edw_trips"`
	TripWeightedEDW float64   `json:"trip_weighted_edw"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summarise builds the list row for a result.
func Summarise(res *pipeline.Result) AnalysisSummary {
	return AnalysisSummary{
		ID:              res.ID.String(),
		Source:          res.Source,
		Base:            res.Header.Base,
		Fleet:           res.Header.Fleet,
		BidPeriod:       res.Header.BidPeriod,
		Pairings:        len(res.Pairings),
		Warnings:        len(res.Warnings),
		TotalTrips:      res.Metrics.TotalTrips,
		EDWTrips:        res.Metrics.EDWTrips,
		TripWeightedEDW: res.Metrics.TripWeightedEDW,
		CreatedAt:       res.CreatedAt,
	}
}

// OpenStore opens the analysis store selected by backend ("sqlite" or "postgres").
func OpenStore(ctx context.Context, backend, sqlitePath string, pg PostgresConfig) (Store, error) {
	switch backend {
	case "", "sqlite":
		db, err := OpenSQLite(sqlitePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres":
		db, err := OpenPostgres(ctx, pg)
		if err != nil {
			return nil, err
		}
		if err := db.CreateSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// FactSink receives per-duty-day rows for analytics.
type FactSink interface {
	InsertDutyDays(ctx context.Context, res *pipeline.Result) error
}

// Recorder writes each analysis to the primary store and, when set, to the
// fact sink. Both writes run concurrently.
type Recorder struct {
	Store Store
	Facts FactSink
}

// Save persists res to every configured destination.
func (r *Recorder) Save(ctx context.Context, res *pipeline.Result) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := r.Store.SaveAnalysis(ctx, res); err != nil {
			return fmt.Errorf("save analysis: %w", err)
		}
		return nil
	})
	if r.Facts != nil {
		g.Go(func() error {
			if err := r.Facts.InsertDutyDays(ctx, res); err != nil {
				return fmt.Errorf("insert duty days: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}
