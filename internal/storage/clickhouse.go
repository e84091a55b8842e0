package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"pairing_analyzer/internal/pipeline"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// ClickHouseDB wraps a ClickHouse connection for duty-day analytics.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	q := `CREATE TABLE IF NOT EXISTS duty_days (
		analysis_id     String,
		base            LowCardinality(String),
		fleet           LowCardinality(String),
		bid_period      LowCardinality(String),
		pairing_id      String,
		frequency       UInt32,
		duty_index      UInt16,
		duty_date       Date,
		hours           Float64,
		legs            UInt16,
		hot_standby     UInt8,
		touches_edw     UInt8,
		pairing_edw     UInt8,
		turn            UInt8,
		recorded_at     DateTime64(3) DEFAULT now64(3)
	)
	ENGINE = MergeTree()
	PARTITION BY bid_period
	ORDER BY (fleet, base, analysis_id, pairing_id, duty_index)`

	if err := d.conn.Exec(ctx, q); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// DutyDayFact is one row of the duty_days table.
type DutyDayFact struct {
	AnalysisID string
	Base       string
	Fleet      string
	BidPeriod  string
	PairingID  string
	Frequency  uint32
	DutyIndex  uint16
	DutyDate   time.Time
	Hours      float64
	Legs       uint16
	HotStandby bool
	TouchesEDW bool
	PairingEDW bool
	Turn       bool
}

// DutyDayFacts flattens a result into one fact per duty day. A hot standby
// pairing without duty days yields a single row covering its reserve period.
func DutyDayFacts(res *pipeline.Result) []DutyDayFact {
	var out []DutyDayFact
	for _, p := range res.Pairings {
		base := DutyDayFact{
			AnalysisID: res.ID.String(),
			Base:       res.Header.Base,
			Fleet:      res.Header.Fleet,
			BidPeriod:  res.Header.BidPeriod,
			PairingID:  p.ID,
			Frequency:  uint32(p.Frequency),
			PairingEDW: p.IsEDW,
			Turn:       p.IsTurn(),
		}
		if len(p.DutyDays) == 0 {
			f := base
			f.HotStandby = p.IsHotStandby
			if p.Reserve != nil {
				f.DutyDate = p.Reserve.Start
				f.Hours = p.Reserve.Hours()
			}
			out = append(out, f)
			continue
		}
		for i, d := range p.DutyDays {
			f := base
			f.DutyIndex = uint16(i + 1)
			f.DutyDate = d.Date
			f.Hours = d.Hours()
			f.Legs = uint16(d.LegCount())
			f.HotStandby = d.HotStandby
			f.TouchesEDW = d.TouchesEDW
			out = append(out, f)
		}
	}
	return out
}

// InsertDutyDays stores the duty-day facts of res in one batch.
func (d *ClickHouseDB) InsertDutyDays(ctx context.Context, res *pipeline.Result) error {
	facts := DutyDayFacts(res)
	if len(facts) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO duty_days (analysis_id, base, fleet, bid_period, pairing_id, frequency,
			duty_index, duty_date, hours, legs, hot_standby, touches_edw, pairing_edw, turn)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range facts {
		err := batch.Append(f.AnalysisID, f.Base, f.Fleet, f.BidPeriod, f.PairingID, f.Frequency,
			f.DutyIndex, f.DutyDate, f.Hours, f.Legs,
			boolToUInt8(f.HotStandby), boolToUInt8(f.TouchesEDW), boolToUInt8(f.PairingEDW), boolToUInt8(f.Turn))
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// FleetShare is the frequency-weighted EDW duty-day share of one fleet and base.
type FleetShare struct {
	Fleet      string  `json:"fleet"`
	Base       string  `json:"base"`
	DutyDays   uint64  `json:"duty_days"`
	EDWDays    uint64  `json:"edw_duty_days"`
	EDWShare   float64 `json:"edw_share"`
	AvgHours   float64 `json:"avg_duty_hours"`
	HotStandby uint64  `json:"hot_standby_days"`
}

// EDWShareByFleet aggregates stored facts per fleet and base.
func (d *ClickHouseDB) EDWShareByFleet(ctx context.Context, bidPeriod string) ([]FleetShare, error) {
	query := `
		SELECT fleet, base,
			sum(frequency) AS days,
			sumIf(frequency, touches_edw = 1) AS edw_days,
			if(days = 0, 0, edw_days / days) AS share,
			avg(hours) AS avg_hours,
			sumIf(frequency, hot_standby = 1) AS hsby
		FROM duty_days`
	var args []interface{}
	if bidPeriod != "" {
		query += " WHERE bid_period = ?"
		args = append(args, bidPeriod)
	}
	query += " GROUP BY fleet, base ORDER BY fleet, base"

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query edw share: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FleetShare
	for rows.Next() {
		var s FleetShare
		if err := rows.Scan(&s.Fleet, &s.Base, &s.DutyDays, &s.EDWDays, &s.EDWShare, &s.AvgHours, &s.HotStandby); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
