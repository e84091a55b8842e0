// Package pipeline runs the full analysis of one pairing document:
// header extraction, body parsing, classification and aggregation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"pairing_analyzer/internal/classifier"
	"pairing_analyzer/internal/header"
	"pairing_analyzer/internal/logger"
	"pairing_analyzer/internal/metrics"
	"pairing_analyzer/internal/pairing"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/progress"
)

// Share of the progress range given to parsing; analysis gets the rest.
const parseShare = 80

// Options configures a run.
type Options struct {
	Parser   parser.Options
	Metrics  metrics.Config
	Progress progress.Func
	// Source names the document, usually its file name.
	Source string
	// ID is used for the result when set; otherwise a new one is generated.
	ID uuid.UUID
}

// DefaultOptions returns the parser and aggregation defaults.
func DefaultOptions() Options {
	return Options{
		Parser:  parser.DefaultOptions(),
		Metrics: metrics.DefaultConfig(),
	}
}

// Result is one analysed document.
type Result struct {
	ID        uuid.UUID         `json:"id"`
	Source    string            `json:"source,omitempty"`
	Header    pairing.Header    `json:"header"`
	Pairings  []pairing.Pairing `json:"pairings"`
	Warnings  []parser.Warning  `json:"warnings"`
	Metrics   metrics.Metrics   `json:"metrics"`
	CreatedAt time.Time         `json:"created_at"`
	Elapsed   time.Duration     `json:"elapsed"`
}

// Run analyses text. Header and parse failures are returned unchanged in
// type (*header.MalformedHeaderError, *parser.ParseError) behind a wrap.
// ctx is only checked between phases.
func Run(ctx context.Context, text string, opts Options, log logger.Logger) (*Result, error) {
	if log == nil {
		log = logger.Nop()
	}
	start := time.Now()
	report := progress.Monotonic(opts.Progress)

	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	res := &Result{
		ID:        id,
		Source:    opts.Source,
		CreatedAt: start.UTC(),
	}
	log = log.With("analysis_id", res.ID.String(), "source", opts.Source)

	hdr, err := header.Extract(text)
	if err != nil {
		log.Error("Header extraction failed", "error", err)
		return nil, fmt.Errorf("extract header: %w", err)
	}
	res.Header = hdr
	log.Debug("Header extracted", "base", hdr.Base, "fleet", hdr.Fleet, "bid_period", hdr.BidPeriod)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	popts := opts.Parser
	popts.Progress = progress.Scale(report, 0, parseShare)
	ps, warnings, err := parser.Parse(text, hdr, popts)
	if err != nil {
		log.Error("Parse failed", "error", err)
		return nil, fmt.Errorf("parse: %w", err)
	}
	res.Warnings = warnings
	for _, w := range warnings {
		log.Debug("Parse warning", "line", w.Line, "message", w.Message)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Pairings = classifier.Classify(ps, opts.Metrics.Classifier)
	res.Metrics = metrics.Analyze(res.Pairings, opts.Metrics, progress.Scale(report, parseShare, 100))
	res.Elapsed = time.Since(start)

	log.Info("Analysis complete",
		"pairings", len(res.Pairings),
		"warnings", len(warnings),
		"total_trips", res.Metrics.TotalTrips,
		"edw_trips", res.Metrics.EDWTrips,
		"elapsed", res.Elapsed,
	)
	return res, nil
}

// Document is one input to RunBatch.
type Document struct {
	Source string
	Text   string
}

// RunBatch analyses docs concurrently with at most workers in flight and
// returns results in input order. The first failure cancels the rest.
// Per-document progress is not reported.
func RunBatch(ctx context.Context, docs []Document, opts Options, workers int, log logger.Logger) ([]*Result, error) {
	if workers <= 0 {
		workers = 1
	}
	results := make([]*Result, len(docs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			o := opts
			o.Source = doc.Source
			o.Progress = nil
			o.ID = uuid.Nil
			res, err := Run(ctx, doc.Text, o, log)
			if err != nil {
				return fmt.Errorf("%s: %w", doc.Source, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
