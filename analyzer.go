// Package taintflow implements source-to-sink taint flow analysis over a
// fact store produced by upstream code extractors. A run discovers taint
// sources and dangerous sinks via a pattern registry, then walks each
// source forward through assignments, calls, and control-flow edges until
// the taint reaches a sink, is cut off by a sanitizer, or runs out of
// budget. Runs are repeatable: the same store, registry, and configuration
// yield the same findings.
package taintflow

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/auditsec/taintflow/cache"
	"github.com/auditsec/taintflow/fact"
	"github.com/auditsec/taintflow/finding"
	"github.com/auditsec/taintflow/pattern"
)

// Metrics summarizes one analysis run.
type Metrics struct {
	RunID             string `json:"run_id"`
	Sources           int    `json:"sources"`
	Sinks             int    `json:"sinks"`
	SkippedRecords    int64  `json:"skipped_records"`
	SanitizedBranches int64  `json:"sanitized_branches"`
	ExhaustedBranches int64  `json:"exhausted_branches"`
	VisitedNodes      int64  `json:"visited_nodes"`
	Findings          int    `json:"findings"`
}

// Analyzer runs taint analysis over fact stores. An Analyzer is immutable
// after construction and safe to reuse across runs; per-run state (index,
// emitter, budgets) is created inside Analyze.
type Analyzer struct {
	cfg    Config
	reg    *pattern.Registry
	logger hclog.Logger
}

// NewAnalyzer builds an analyzer from a validated configuration and a
// populated pattern registry. A nil logger disables logging.
func NewAnalyzer(cfg Config, reg *pattern.Registry, logger hclog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, ErrNilRegistry
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Analyzer{cfg: cfg, reg: reg, logger: logger.Named("taintflow")}, nil
}

// Analyze runs one full pass over the store: index build, discovery, and
// propagation from every source. Findings come back sorted by source
// location, sink location, and category so output is stable regardless of
// worker scheduling. Context cancellation stops expanding new branches
// and the findings gathered so far are returned, never an error.
func (a *Analyzer) Analyze(ctx context.Context, store fact.Store) ([]finding.Finding, Metrics, error) {
	if store == nil {
		return nil, Metrics{}, ErrNilStore
	}
	runID := uuid.New().String()
	logger := a.logger.With("run_id", runID)

	idx := cache.Build(store, a.cfg.BlockSize, logger)

	disc := &discovery{idx: idx, reg: a.reg, logger: logger}
	sources := disc.sources()
	sinks := disc.sinks()
	logger.Debug("discovery complete", "sources", len(sources), "sinks", len(sinks))

	emitter := finding.NewEmitter(runID)
	prop := newPropagator(a.cfg, idx, a.reg, emitter, logger)

	// No sinks means no flow can complete; skip propagation entirely.
	if len(sinks) > 0 && len(sources) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.cfg.Workers)
		for _, src := range sources {
			src := src
			g.Go(func() error {
				prop.trace(gctx, src)
				return nil
			})
		}
		// Workers never fail. Cancellation only stops branch expansion
		// inside the walk; the run still completes with whatever findings
		// were gathered, the same way a spent visit budget does.
		_ = g.Wait()
	}

	findings := emitter.Findings()
	sort.Slice(findings, func(i, j int) bool {
		if x, y := findings[i].Source.Location(), findings[j].Source.Location(); x != y {
			return x < y
		}
		if x, y := findings[i].Sink.Location(), findings[j].Sink.Location(); x != y {
			return x < y
		}
		return findings[i].Category < findings[j].Category
	})

	m := Metrics{
		RunID:             runID,
		Sources:           len(sources),
		Sinks:             len(sinks),
		SkippedRecords:    prop.skippedRecords.Load(),
		SanitizedBranches: prop.sanitizedBranches.Load(),
		ExhaustedBranches: prop.exhaustedBranches.Load(),
		VisitedNodes:      prop.visitedNodes.Load(),
		Findings:          len(findings),
	}
	logger.Info("analysis complete",
		"sources", m.Sources,
		"sinks", m.Sinks,
		"visited_nodes", m.VisitedNodes,
		"sanitized_branches", m.SanitizedBranches,
		"findings", m.Findings)
	return findings, m, nil
}
