package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-hclog"
	_ "github.com/lib/pq"

	"github.com/auditsec/taintflow"
	"github.com/auditsec/taintflow/fact"
	"github.com/auditsec/taintflow/finding"
	"github.com/auditsec/taintflow/pattern"
)

const usageText = `
taintflow - taint flow analyzer for extracted code facts

taintflow reads a populated fact database (symbols, assignments, call
arguments, returns, and control flow) and reports the source-to-sink
taint flows it finds, with full evidence paths.

VERSION: %s

USAGE:

	# Analyze a fact database with the built-in rule catalogs
	$ taintflow -dsn "postgres://localhost/facts?sslmode=disable"

	# Add a custom YAML catalog and write findings to a file
	$ taintflow -dsn "$FACTS_DSN" -catalog rules.yaml -out findings.json

	# Intraprocedural only, with verbose engine logging
	$ taintflow -dsn "$FACTS_DSN" -no-interprocedural -log-level debug

`

var (
	flagDriver   = flag.String("driver", "postgres", "Database driver for the fact store")
	flagDSN      = flag.String("dsn", "", "Fact store data source name (required)")
	flagCatalog  = flag.String("catalog", "", "Path to an additional YAML rule catalog")
	flagOut      = flag.String("out", "", "Write findings to a file instead of stdout")
	flagLogLevel = flag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	flagQuiet    = flag.Bool("quiet", false, "Only produce output when flows are found")

	flagMaxDepth   = flag.Int("max-depth", taintflow.DefaultConfig().MaxRecursionDepth, "Maximum call depth to follow taint across")
	flagMaxVisited = flag.Int("max-visited", taintflow.DefaultConfig().MaxVisitedNodes, "Whole-run node visit budget")
	flagWorkers    = flag.Int("workers", taintflow.DefaultConfig().Workers, "Number of sources traced concurrently")
	flagNoInter    = flag.Bool("no-interprocedural", false, "Do not follow taint into callee bodies")
	flagNoDispatch = flag.Bool("no-dynamic-dispatch", false, "Do not resolve callees through handler registrations")
)

// report is the JSON document written for one run.
type report struct {
	Metrics  taintflow.Metrics `json:"metrics"`
	Findings []finding.Finding `json:"findings"`
}

func usage() {
	fmt.Fprintf(os.Stderr, usageText, Version)
	fmt.Fprint(os.Stderr, "OPTIONS:\n\n")
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr, "\n")
}

func buildRegistry(logger hclog.Logger) (*pattern.Registry, error) {
	reg := pattern.NewRegistry(logger)
	if _, err := reg.RegisterAll(pattern.DefaultCatalog()); err != nil {
		return nil, fmt.Errorf("built-in catalog: %w", err)
	}
	if *flagCatalog != "" {
		patterns, err := pattern.LoadCatalogFile(*flagCatalog)
		if err != nil {
			return nil, err
		}
		accepted, err := reg.RegisterAll(patterns)
		if err != nil {
			logger.Warn("custom catalog partially rejected",
				"accepted", accepted, "rejected", reg.Rejections(), "error", err)
		}
	}
	return reg, nil
}

func run(ctx context.Context, logger hclog.Logger) (int, error) {
	reg, err := buildRegistry(logger)
	if err != nil {
		return 0, err
	}

	store, err := fact.OpenSQL(*flagDriver, *flagDSN, logger)
	if err != nil {
		return 0, err
	}

	cfg := taintflow.DefaultConfig()
	cfg.MaxRecursionDepth = *flagMaxDepth
	cfg.MaxVisitedNodes = *flagMaxVisited
	cfg.Workers = *flagWorkers
	cfg.EnableInterprocedural = !*flagNoInter
	cfg.EnableDynamicDispatch = !*flagNoDispatch

	analyzer, err := taintflow.NewAnalyzer(cfg, reg, logger)
	if err != nil {
		return 0, err
	}
	findings, metrics, err := analyzer.Analyze(ctx, store)
	if err != nil {
		return 0, err
	}

	if *flagQuiet && len(findings) == 0 {
		return 0, nil
	}

	out := os.Stdout
	if *flagOut != "" {
		f, err := os.Create(*flagOut) // #nosec
		if err != nil {
			return 0, err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report{Metrics: metrics, Findings: findings}); err != nil {
		return 0, err
	}
	return len(findings), nil
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *flagDSN == "" {
		usage()
		os.Exit(2)
	}

	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "taintflow",
		Level:  hclog.LevelFromString(*flagLogLevel),
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	found, err := run(ctx, logger)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		os.Exit(2)
	}
	if found > 0 {
		os.Exit(1)
	}
}
