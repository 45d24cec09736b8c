// Package cache holds the spatial index built from the fact store at the
// start of every analysis run. It replaces linear scans over the fact
// tables with line-blocked map lookups and constant-time control-flow
// adjacency queries. The index is immutable after Build and is shared
// read-only by the discovery and propagation phases of a single run; the
// next run rebuilds it from scratch.
package cache

import (
	"sort"

	"github.com/hashicorp/go-hclog"

	"github.com/auditsec/taintflow/fact"
)

// DefaultBlockSize is the line-blocking granularity. Smaller blocks reduce
// the number of unrelated records touched by a range query at the cost of
// index memory.
const DefaultBlockSize = 100

type lineBlock struct {
	file  string
	block int
}

type funcKey struct {
	file string
	name string
}

// Index is the per-run spatial index. The zero value is unusable; obtain
// one from Build. Query methods panic if called on an unbuilt Index, since
// that is a caller contract violation rather than a data problem.
type Index struct {
	blockSize int
	built     bool

	calls []fact.CallSite

	symbolsByKind  map[string][]fact.Symbol
	symbolsByBlock map[lineBlock][]fact.Symbol
	assignsByBlock map[lineBlock][]fact.Assignment
	callsByBlock   map[lineBlock][]fact.CallSite
	returnsByFunc  map[funcKey][]fact.ReturnStatement

	blocks     map[int64]fact.ControlFlowBlock
	successors map[int64][]int64
	funcBlocks map[funcKey][]fact.ControlFlowBlock

	funcsByName  map[string][]fact.Symbol
	funcsByFile  map[string][]fact.Symbol
	blocksByFile map[string][]fact.ControlFlowBlock
	handlers     map[[2]string][]fact.PropertyHandler
}

// Build constructs the index with a single pass over each fact table.
func Build(store fact.Store, blockSize int, logger hclog.Logger) *Index {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	idx := &Index{
		blockSize:      blockSize,
		symbolsByKind:  make(map[string][]fact.Symbol),
		symbolsByBlock: make(map[lineBlock][]fact.Symbol),
		assignsByBlock: make(map[lineBlock][]fact.Assignment),
		callsByBlock:   make(map[lineBlock][]fact.CallSite),
		returnsByFunc:  make(map[funcKey][]fact.ReturnStatement),
		blocks:         make(map[int64]fact.ControlFlowBlock),
		successors:     make(map[int64][]int64),
		funcBlocks:     make(map[funcKey][]fact.ControlFlowBlock),
		funcsByName:    make(map[string][]fact.Symbol),
		funcsByFile:    make(map[string][]fact.Symbol),
		blocksByFile:   make(map[string][]fact.ControlFlowBlock),
		handlers:       make(map[[2]string][]fact.PropertyHandler),
	}

	for _, sym := range store.Symbols() {
		idx.symbolsByKind[sym.Kind] = append(idx.symbolsByKind[sym.Kind], sym)
		key := lineBlock{sym.File, sym.Line / blockSize}
		idx.symbolsByBlock[key] = append(idx.symbolsByBlock[key], sym)
		if sym.Kind == fact.KindFunction {
			idx.funcsByName[sym.Name] = append(idx.funcsByName[sym.Name], sym)
			idx.funcsByFile[sym.File] = append(idx.funcsByFile[sym.File], sym)
		}
	}

	for _, as := range store.Assignments() {
		key := lineBlock{as.File, as.Line / blockSize}
		idx.assignsByBlock[key] = append(idx.assignsByBlock[key], as)
	}

	for _, call := range store.CallSites() {
		idx.calls = append(idx.calls, call)
		key := lineBlock{call.File, call.Line / blockSize}
		idx.callsByBlock[key] = append(idx.callsByBlock[key], call)
	}

	for _, ret := range store.Returns() {
		key := funcKey{ret.File, ret.InFunction}
		idx.returnsByFunc[key] = append(idx.returnsByFunc[key], ret)
	}

	for _, blk := range store.Blocks() {
		idx.blocks[blk.ID] = blk
		key := funcKey{blk.File, blk.Function}
		idx.funcBlocks[key] = append(idx.funcBlocks[key], blk)
		idx.blocksByFile[blk.File] = append(idx.blocksByFile[blk.File], blk)
	}
	for key := range idx.funcBlocks {
		blks := idx.funcBlocks[key]
		sort.Slice(blks, func(i, j int) bool { return blks[i].StartLine < blks[j].StartLine })
	}

	for _, edge := range store.Edges() {
		idx.successors[edge.From] = append(idx.successors[edge.From], edge.To)
	}

	for _, h := range store.PropertyHandlers() {
		key := [2]string{h.Object, h.Property}
		idx.handlers[key] = append(idx.handlers[key], h)
	}

	idx.built = true
	logger.Debug("spatial index built",
		"symbols", len(store.Symbols()),
		"assignments", len(store.Assignments()),
		"call_sites", len(idx.calls),
		"cfg_blocks", len(idx.blocks),
		"cfg_edges", len(store.Edges()),
		"block_size", blockSize)
	return idx
}

func (idx *Index) mustBeBuilt() {
	if idx == nil || !idx.built {
		panic("cache: index queried before Build")
	}
}

// BlockSize reports the line-blocking granularity the index was built with.
func (idx *Index) BlockSize() int {
	idx.mustBeBuilt()
	return idx.blockSize
}

// SymbolsOfKind returns every symbol of the given kind.
func (idx *Index) SymbolsOfKind(kind string) []fact.Symbol {
	idx.mustBeBuilt()
	return idx.symbolsByKind[kind]
}

// CallSites returns every call site in the store, in load order.
func (idx *Index) CallSites() []fact.CallSite {
	idx.mustBeBuilt()
	return idx.calls
}

// SymbolsInRange returns the symbols of file whose line falls in
// [startLine, endLine].
func (idx *Index) SymbolsInRange(file string, startLine, endLine int) []fact.Symbol {
	idx.mustBeBuilt()
	var out []fact.Symbol
	idx.eachBlock(file, startLine, endLine, func(key lineBlock) {
		for _, sym := range idx.symbolsByBlock[key] {
			if sym.Line >= startLine && sym.Line <= endLine {
				out = append(out, sym)
			}
		}
	})
	return out
}

// AssignmentsInRange returns the assignments of file whose line falls in
// [startLine, endLine], ordered by line.
func (idx *Index) AssignmentsInRange(file string, startLine, endLine int) []fact.Assignment {
	idx.mustBeBuilt()
	var out []fact.Assignment
	idx.eachBlock(file, startLine, endLine, func(key lineBlock) {
		for _, as := range idx.assignsByBlock[key] {
			if as.Line >= startLine && as.Line <= endLine {
				out = append(out, as)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// CallSitesInRange returns the call sites of file whose line falls in
// [startLine, endLine], ordered by line.
func (idx *Index) CallSitesInRange(file string, startLine, endLine int) []fact.CallSite {
	idx.mustBeBuilt()
	var out []fact.CallSite
	idx.eachBlock(file, startLine, endLine, func(key lineBlock) {
		for _, call := range idx.callsByBlock[key] {
			if call.Line >= startLine && call.Line <= endLine {
				out = append(out, call)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// eachBlock visits the line blocks covering [startLine, endLine] plus one
// block on either side, so records near a block boundary are still caught.
func (idx *Index) eachBlock(file string, startLine, endLine int, visit func(lineBlock)) {
	first := startLine/idx.blockSize - 1
	last := endLine/idx.blockSize + 1
	if first < 0 {
		first = 0
	}
	for b := first; b <= last; b++ {
		visit(lineBlock{file, b})
	}
}

// ReturnsOf returns the return statements of the named function.
func (idx *Index) ReturnsOf(file, function string) []fact.ReturnStatement {
	idx.mustBeBuilt()
	return idx.returnsByFunc[funcKey{file, function}]
}

// Successors returns the control-flow successors of a block.
func (idx *Index) Successors(blockID int64) []int64 {
	idx.mustBeBuilt()
	return idx.successors[blockID]
}

// Block looks up a control-flow block by id.
func (idx *Index) Block(blockID int64) (fact.ControlFlowBlock, bool) {
	idx.mustBeBuilt()
	blk, ok := idx.blocks[blockID]
	return blk, ok
}

// FunctionBlocks returns the control-flow blocks of a function in the given
// file, ordered by start line. The first block is the function entry.
func (idx *Index) FunctionBlocks(file, function string) []fact.ControlFlowBlock {
	idx.mustBeBuilt()
	return idx.funcBlocks[funcKey{file, function}]
}

// FunctionsNamed returns the function symbols with the given name across
// all files. Names may collide between files; callers decide how to treat
// the ambiguity.
func (idx *Index) FunctionsNamed(name string) []fact.Symbol {
	idx.mustBeBuilt()
	return idx.funcsByName[name]
}

// BlockAt returns the control-flow block of file containing line. When
// blocks are nested or duplicated the innermost (shortest) match wins.
func (idx *Index) BlockAt(file string, line int) (fact.ControlFlowBlock, bool) {
	idx.mustBeBuilt()
	var best fact.ControlFlowBlock
	found := false
	for _, blk := range idx.blocksByFile[file] {
		if line < blk.StartLine || line > blk.EndLine {
			continue
		}
		if !found || blk.EndLine-blk.StartLine < best.EndLine-best.StartLine {
			best, found = blk, true
		}
	}
	return best, found
}

// FunctionAt returns the function symbol of file whose span contains line.
func (idx *Index) FunctionAt(file string, line int) (fact.Symbol, bool) {
	idx.mustBeBuilt()
	var best fact.Symbol
	found := false
	for _, sym := range idx.funcsByFile[file] {
		if line < sym.Line || line > sym.EndLine {
			continue
		}
		if !found || sym.EndLine-sym.Line < best.EndLine-best.Line {
			best, found = sym, true
		}
	}
	return best, found
}

// HandlersFor resolves the handlers registered for an (object, property)
// pair, for dynamic dispatch.
func (idx *Index) HandlersFor(object, property string) []fact.PropertyHandler {
	idx.mustBeBuilt()
	return idx.handlers[[2]string{object, property}]
}
