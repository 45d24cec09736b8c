package taintflow

import (
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/auditsec/taintflow/cache"
	"github.com/auditsec/taintflow/fact"
	"github.com/auditsec/taintflow/finding"
	"github.com/auditsec/taintflow/pattern"
)

// discovery enumerates candidate sources and sinks for one run. It only
// touches the fact kinds a pattern can match: property and parameter
// symbols plus call sites for sources, call sites alone for sinks. The
// registry guarantees every sink signature is a call or attribute form, so
// sink matching never degenerates into comparing signatures against
// variable names.
type discovery struct {
	idx    *cache.Index
	reg    *pattern.Registry
	logger hclog.Logger
}

// sources returns the ordered, deduplicated taint sources of the store.
func (d *discovery) sources() []finding.Source {
	type srcKey struct {
		file string
		line int
		expr string
	}
	seen := make(map[srcKey]struct{})
	var out []finding.Source

	add := func(file string, line int, expr string, p pattern.Pattern) {
		key := srcKey{file, line, expr}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, finding.Source{
			File:       file,
			Line:       line,
			Expression: expr,
			Category:   p.Category,
			Pattern:    p.Signature,
		})
	}

	// Property accesses and parameters shaped like user input.
	for _, kind := range []string{fact.KindProperty, fact.KindParameter} {
		for _, sym := range d.idx.SymbolsOfKind(kind) {
			if p, ok := d.reg.Match(pattern.Source, sym.Name); ok {
				add(sym.File, sym.Line, sym.Name, p)
			}
		}
	}

	// Calls whose callee is itself a source (file reads, environment).
	for _, call := range d.idx.CallSites() {
		if call.Callee == "" {
			continue
		}
		if p, ok := d.reg.Match(pattern.Source, call.Callee); ok {
			add(call.File, call.Line, call.Callee, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Expression < out[j].Expression
	})
	return out
}

// sinks returns the ordered, deduplicated sink call sites of the store.
func (d *discovery) sinks() []finding.Sink {
	type sinkKey struct {
		file     string
		line     int
		callee   string
		category string
	}
	seen := make(map[sinkKey]struct{})
	var out []finding.Sink

	for _, call := range d.idx.CallSites() {
		if call.Callee == "" {
			// Extraction gap; skip the record, never the run.
			d.logger.Debug("skipping call site without callee", "file", call.File, "line", call.Line)
			continue
		}
		p, ok := d.reg.Match(pattern.Sink, call.Callee)
		if !ok {
			continue
		}
		key := sinkKey{call.File, call.Line, call.Callee, p.Category}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, finding.Sink{
			File:       call.File,
			Line:       call.Line,
			Expression: call.Callee,
			Category:   p.Category,
			Pattern:    p.Signature,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Category < out[j].Category
	})
	return out
}
