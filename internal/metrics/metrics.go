// Package metrics computes frequency-weighted EDW statistics over classified pairings.
package metrics

import (
	"fmt"
	"math"

	"pairing_analyzer/internal/classifier"
	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/progress"
)

// Config controls aggregation.
type Config struct {
	Classifier classifier.Config `yaml:"classifier"`
	// BucketWidth is the default distribution bucket width in hours.
	BucketWidth float64 `yaml:"bucket_width_hours"`
}

// DefaultConfig returns the default window and one-hour buckets.
func DefaultConfig() Config {
	return Config{
		Classifier:  classifier.DefaultConfig(),
		BucketWidth: 1,
	}
}

// DutySample is one duty day's length, kept so distributions can be
// re-bucketed without re-running the analysis.
type DutySample struct {
	Hours     float64 `json:"hours"`
	Frequency int     `json:"frequency"`
	Turn      bool    `json:"turn"`
}

// PairingSummary is one per-pairing row for reports and exports.
type PairingSummary struct {
	ID           string  `json:"id"`
	Frequency    int     `json:"frequency"`
	DutyDays     int     `json:"duty_days"`
	EDWDutyDays  int     `json:"edw_duty_days"`
	MaxDutyHours float64 `json:"max_duty_hours"`
	MaxLegs      int     `json:"max_legs"`
	TAFBHours    float64 `json:"tafb_hours"`
	IsEDW        bool    `json:"is_edw"`
	IsHotStandby bool    `json:"is_hot_standby"`
}

// Metrics is the result of Analyze.
type Metrics struct {
	UniquePairings int `json:"unique_pairings"`
	UniqueEDW      int `json:"unique_edw_pairings"`

	TotalTrips      int `json:"total_trips"`
	EDWTrips        int `json:"edw_trips"`
	DayTrips        int `json:"day_trips"`
	HotStandbyTrips int `json:"hot_standby_trips"`

	// Weighted EDW shares in [0,1]; 0 when the denominator is 0.
	TripWeightedEDW    float64 `json:"trip_weighted_edw"`
	TAFBWeightedEDW    float64 `json:"tafb_weighted_edw"`
	DutyDayWeightedEDW float64 `json:"duty_day_weighted_edw"`

	// Frequency-weighted sums behind the shares.
	EDWTAFBHours   float64 `json:"edw_tafb_hours"`
	TotalTAFBHours float64 `json:"total_tafb_hours"`
	EDWDutyDays    int     `json:"edw_duty_days"`
	TotalDutyDays  int     `json:"total_duty_days"`

	BucketWidth float64          `json:"bucket_width_hours"`
	Samples     []DutySample     `json:"samples,omitempty"`
	Pairings    []PairingSummary `json:"pairings,omitempty"`
}

// tally is the fold state of Analyze.
type tally struct {
	m Metrics
}

func (t tally) add(p pairing.Pairing) tally {
	m := &t.m
	f := p.Frequency
	tafb := p.TAFBHours()
	edwDays := p.EDWDutyDays()

	m.UniquePairings++
	m.TotalTrips += f
	m.TotalTAFBHours += float64(f) * tafb
	m.TotalDutyDays += f * len(p.DutyDays)
	m.EDWDutyDays += f * edwDays

	switch {
	case p.IsHotStandby:
		m.HotStandbyTrips += f
	case p.IsEDW:
		m.UniqueEDW++
		m.EDWTrips += f
		m.EDWTAFBHours += float64(f) * tafb
	}

	for _, d := range p.DutyDays {
		m.Samples = append(m.Samples, DutySample{Hours: d.Hours(), Frequency: f, Turn: p.IsTurn()})
	}
	m.Pairings = append(m.Pairings, PairingSummary{
		ID:           p.ID,
		Frequency:    f,
		DutyDays:     len(p.DutyDays),
		EDWDutyDays:  edwDays,
		MaxDutyHours: p.MaxDutyHours(),
		MaxLegs:      p.MaxLegs(),
		TAFBHours:    tafb,
		IsEDW:        p.IsEDW,
		IsHotStandby: p.IsHotStandby,
	})
	return t
}

func (t tally) result() Metrics {
	m := t.m
	m.DayTrips = m.TotalTrips - m.EDWTrips - m.HotStandbyTrips
	m.TripWeightedEDW = ratio(float64(m.EDWTrips), float64(m.TotalTrips))
	m.TAFBWeightedEDW = ratio(m.EDWTAFBHours, m.TotalTAFBHours)
	m.DutyDayWeightedEDW = ratio(float64(m.EDWDutyDays), float64(m.TotalDutyDays))
	return m
}

func ratio(num, den float64) float64 {
	if den <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, num/den))
}

// Analyze classifies ps against cfg.Classifier and folds them into Metrics.
// Progress is reported at 0, after every tenth of the pairings and at 100.
func Analyze(ps []pairing.Pairing, cfg Config, fn progress.Func) Metrics {
	report := progress.Monotonic(fn)
	report(0, fmt.Sprintf("Analyzing %d pairings", len(ps)))

	step := max(1, len(ps)/10)
	var t tally
	for i, p := range classifier.Classify(ps, cfg.Classifier) {
		t = t.add(p)
		if (i+1)%step == 0 {
			report((i+1)*100/len(ps), fmt.Sprintf("Analyzed %d of %d pairings", i+1, len(ps)))
		}
	}

	m := t.result()
	m.BucketWidth = cfg.BucketWidth
	if m.BucketWidth <= 0 {
		m.BucketWidth = DefaultConfig().BucketWidth
	}
	report(100, "Analysis complete")
	return m
}

// Bucket counts frequency-weighted duty days with Lo <= hours < Hi.
type Bucket struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Label renders the bucket range, e.g. "8-9h".
func (b Bucket) Label() string {
	return fmt.Sprintf("%g-%gh", b.Lo, b.Hi)
}

// Distribution buckets duty-day lengths by width hours (the analysis default
// when width <= 0). With excludeTurns single-duty-day pairings are left out.
// Buckets run contiguously from 0 to the longest duty day.
func (m Metrics) Distribution(width float64, excludeTurns bool) []Bucket {
	if width <= 0 {
		width = m.BucketWidth
	}
	if width <= 0 {
		width = DefaultConfig().BucketWidth
	}

	counts := map[int]int{}
	top := -1
	for _, s := range m.Samples {
		if excludeTurns && s.Turn {
			continue
		}
		i := int(math.Floor(s.Hours / width))
		counts[i] += s.Frequency
		top = max(top, i)
	}

	buckets := make([]Bucket, 0, top+1)
	for i := 0; i <= top; i++ {
		buckets = append(buckets, Bucket{
			Lo:    float64(i) * width,
			Hi:    float64(i+1) * width,
			Count: counts[i],
		})
	}
	return buckets
}
