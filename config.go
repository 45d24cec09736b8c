package taintflow

import (
	"fmt"
	"runtime"

	"github.com/auditsec/taintflow/cache"
)

// Config controls the budgets and optional phases of an analysis run.
// Every budget must be positive; Validate runs at analyzer construction,
// before any analysis starts.
type Config struct {
	// MaxRecursionDepth bounds how deep taint is followed across call
	// boundaries.
	MaxRecursionDepth int
	// MaxPathLength bounds the total hops recorded on a single path.
	MaxPathLength int
	// BlockSize is the spatial index line-blocking granularity. Smaller
	// blocks reduce false adjacent-block scans but increase index memory.
	BlockSize int
	// MaxVisitedNodes is the whole-run node-visit budget. When it runs out
	// the engine stops expanding new branches and returns the findings
	// gathered so far.
	MaxVisitedNodes int
	// Workers bounds how many sources are traced concurrently.
	Workers int
	// EnableInterprocedural toggles following taint into callee bodies.
	EnableInterprocedural bool
	// EnableDynamicDispatch toggles resolving indirect callees through
	// recorded property handler maps.
	EnableDynamicDispatch bool
}

// DefaultConfig returns the budgets used when the caller has no opinion.
func DefaultConfig() Config {
	return Config{
		MaxRecursionDepth:     10,
		MaxPathLength:         50,
		BlockSize:             cache.DefaultBlockSize,
		MaxVisitedNodes:       1_000_000,
		Workers:               runtime.GOMAXPROCS(0),
		EnableInterprocedural: true,
		EnableDynamicDispatch: true,
	}
}

// Validate rejects non-positive budgets.
func (c Config) Validate() error {
	if c.MaxRecursionDepth <= 0 {
		return fmt.Errorf("taintflow: max recursion depth must be positive, got %d", c.MaxRecursionDepth)
	}
	if c.MaxPathLength <= 0 {
		return fmt.Errorf("taintflow: max path length must be positive, got %d", c.MaxPathLength)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("taintflow: block size must be positive, got %d", c.BlockSize)
	}
	if c.MaxVisitedNodes <= 0 {
		return fmt.Errorf("taintflow: visit budget must be positive, got %d", c.MaxVisitedNodes)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("taintflow: workers must be positive, got %d", c.Workers)
	}
	return nil
}
