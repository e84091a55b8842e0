// Command-line entry point for the pairing analyser.
//
// Input is the plain text of a crew pairing document as exported from a
// PDF: a header (base, fleet, bid period, optional validity and time zone)
// followed by pairing blocks. Several documents can be analysed at once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"pairing_analyzer/internal/config"
	"pairing_analyzer/internal/filter"
	"pairing_analyzer/internal/logger"
	"pairing_analyzer/internal/parser"
	"pairing_analyzer/internal/pipeline"
	"pairing_analyzer/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "pairing_analyzer - commands:")
	fmt.Fprintln(w, "  analyze  - analyse pairing documents and print EDW metrics")
	fmt.Fprintln(w, "  filter   - list pairings of one document matching a filter")
	fmt.Fprintln(w, "  debug    - show how each line of a document is classified")
	fmt.Fprintln(w, "  list     - list stored analyses")
	fmt.Fprintln(w, "  stats    - summarise stored analyses")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  pairing_analyzer analyze [-config c.yaml] [-json] [-pretty] [-store] [-workers N] [-progress] FILE...")
	fmt.Fprintln(w, "  pairing_analyzer filter  [-config c.yaml] -where 'edw=only&mode=any&min_hours=10' [-json] FILE")
	fmt.Fprintln(w, "  pairing_analyzer debug   [-formats] [-only KIND] FILE")
	fmt.Fprintln(w, "  pairing_analyzer list    [-config c.yaml] [-fleet F] [-base B] [-limit N]")
	fmt.Fprintln(w, "  pairing_analyzer stats   [-config c.yaml]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - FILE may be '-' to read stdin.")
	fmt.Fprintln(w, "  - Filter keys: edw, hot_standby, min_duty_hours, max_duty_hours, min_legs, max_legs,")
	fmt.Fprintln(w, "    mode (disabled|any|all), min_hours, min_day_legs, day_edw.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "analyze", "analyse":
		runAnalyze(os.Args[2:])
	case "filter":
		runFilter(os.Args[2:])
	case "debug":
		runDebug(os.Args[2:])
	case "list":
		runList(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func readInput(path string) string {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			fatalf("Failed to open input: %v", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		fatalf("Input read error: %v", err)
	}
	return string(b)
}

func pipelineOptions(cfg *config.Config) pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.Parser = cfg.ParserOptions(nil)
	opts.Metrics = cfg.Metrics()
	return opts
}

func runAnalyze(args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	asJSON := fs.Bool("json", false, "Print the full result as JSON")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	store := fs.Bool("store", false, "Save results to the configured store")
	workers := fs.Int("workers", 4, "Documents analysed concurrently")
	showProgress := fs.Bool("progress", false, "Print progress to stderr (single document only)")
	width := fs.Float64("width", 0, "Duty length histogram bucket width in hours (default from config)")
	verbose := fs.Bool("v", false, "Verbose logging")
	_ = fs.Parse(args)

	paths := fs.Args()
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	cfg := loadConfig(*configPath)
	log := logger.NewConsole(*verbose)
	defer func() { _ = log.Sync() }()

	opts := pipelineOptions(cfg)
	ctx := context.Background()

	var results []*pipeline.Result
	if len(paths) == 1 {
		opts.Source = filepath.Base(paths[0])
		if *showProgress {
			opts.Progress = func(p int, msg string) {
				fmt.Fprintf(os.Stderr, "\r%3d%% %-60s", p, msg)
				if p == 100 {
					fmt.Fprintln(os.Stderr)
				}
			}
		}
		res, err := pipeline.Run(ctx, readInput(paths[0]), opts, log)
		if err != nil {
			fatalf("Analysis failed: %v", err)
		}
		results = append(results, res)
	} else {
		docs := make([]pipeline.Document, len(paths))
		for i, p := range paths {
			docs[i] = pipeline.Document{Source: filepath.Base(p), Text: readInput(p)}
		}
		var err error
		results, err = pipeline.RunBatch(ctx, docs, opts, *workers, log)
		if err != nil {
			fatalf("Analysis failed: %v", err)
		}
	}

	if *store {
		if err := storeResults(ctx, cfg, results, log); err != nil {
			fatalf("%v", err)
		}
	}

	if *asJSON {
		writeJSON(os.Stdout, results, *pretty)
		return
	}
	for i, res := range results {
		if i > 0 {
			fmt.Println()
		}
		printReport(os.Stdout, res, *width)
	}
}

// storeResults saves every result to the configured store and, when
// enabled, to ClickHouse.
func storeResults(ctx context.Context, cfg *config.Config, results []*pipeline.Result, log logger.Logger) error {
	db, err := storage.OpenStore(ctx, cfg.Storage.Backend, cfg.Storage.SQLitePath, cfg.Storage.Postgres)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = db.Close() }()

	rec := &storage.Recorder{Store: db}
	if cfg.Storage.ClickHouse.Enabled {
		ch, err := storage.OpenClickHouse(ctx, cfg.Storage.ClickHouse)
		if err != nil {
			return err
		}
		defer func() { _ = ch.Close() }()
		if err := ch.CreateSchema(ctx); err != nil {
			return fmt.Errorf("clickhouse: %w", err)
		}
		rec.Facts = ch
	}

	for _, res := range results {
		if err := rec.Save(ctx, res); err != nil {
			return fmt.Errorf("store %s: %w", res.Source, err)
		}
		log.Info("Stored analysis", "id", res.ID.String(), "source", res.Source)
	}
	return nil
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	where := fs.String("where", "", "Filter as a query string, e.g. 'edw=only&min_legs=3'")
	asJSON := fs.Bool("json", false, "Print matching pairings as JSON")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	q, err := url.ParseQuery(*where)
	if err != nil {
		fatalf("Invalid filter: %v", err)
	}
	spec, err := filter.ParseSpec(q)
	if err != nil {
		fatalf("Invalid filter: %v", err)
	}

	cfg := loadConfig(*configPath)
	res, err := pipeline.Run(context.Background(), readInput(fs.Arg(0)), pipelineOptions(cfg), nil)
	if err != nil {
		fatalf("Analysis failed: %v", err)
	}

	matched := filter.Apply(res.Pairings, spec)
	if *asJSON {
		writeJSON(os.Stdout, matched, *pretty)
		return
	}
	printPairings(os.Stdout, matched, len(res.Pairings))
}

func runDebug(args []string) {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	formats := fs.Bool("formats", false, "Show every pattern tried on each line")
	only := fs.String("only", "", "Only show lines of this kind (e.g. leg, duty, other)")
	_ = fs.Parse(args)

	traces, err := parser.Trace(readInput(fs.Arg(0)), *formats)
	if err != nil {
		fatalf("Trace failed: %v", err)
	}
	printTrace(os.Stdout, traces, *only)
}

func runList(args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	fleet := fs.String("fleet", "", "Only analyses of this fleet")
	base := fs.String("base", "", "Only analyses of this base")
	bidPeriod := fs.String("bid-period", "", "Only analyses of this bid period")
	limit := fs.Int("limit", 20, "Maximum rows")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	ctx := context.Background()
	db, err := storage.OpenStore(ctx, cfg.Storage.Backend, cfg.Storage.SQLitePath, cfg.Storage.Postgres)
	if err != nil {
		fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	list, err := db.ListAnalyses(ctx, storage.ListParams{
		Base:      strings.ToUpper(*base),
		Fleet:     strings.ToUpper(*fleet),
		BidPeriod: *bidPeriod,
		Limit:     *limit,
	})
	if err != nil {
		fatalf("List failed: %v", err)
	}
	printSummaries(os.Stdout, list)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	if cfg.Storage.Backend != "sqlite" {
		fatalf("stats is only available for the sqlite store")
	}
	db, err := storage.OpenSQLite(cfg.Storage.SQLitePath)
	if err != nil {
		fatalf("Failed to open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	stats, err := db.Stats(context.Background())
	if err != nil {
		fatalf("Stats failed: %v", err)
	}
	printStats(os.Stdout, stats)
}

func writeJSON(w io.Writer, v any, pretty bool) {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fatalf("JSON encode error: %v", err)
	}
}
