package taintflow

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/auditsec/taintflow/cache"
	"github.com/auditsec/taintflow/fact"
	"github.com/auditsec/taintflow/finding"
	"github.com/auditsec/taintflow/pattern"
)

// state labels the condition of one traversal branch.
type state int

const (
	stateSeed state = iota
	stateInBlock
	stateCrossCall
	stateCrossReturn
	stateSanitized
	stateReached
	stateExhausted
)

func (s state) String() string {
	switch s {
	case stateSeed:
		return "seed"
	case stateInBlock:
		return "in-block"
	case stateCrossCall:
		return "cross-call"
	case stateCrossReturn:
		return "cross-return"
	case stateSanitized:
		return "sanitized"
	case stateReached:
		return "reached"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// wildcardCallees are callees that, once fed tainted data, taint every
// local of the enclosing scope.
var wildcardCallees = map[string]struct{}{
	"eval": {},
	"exec": {},
}

type visitKey struct {
	file  string
	block int64
	depth int
}

// propagator walks taint forward from each discovered source until it
// reaches a sink, a sanitizer, or a budget. It reads only the spatial
// index; the sole write path is the shared emitter.
type propagator struct {
	cfg     Config
	idx     *cache.Index
	reg     *pattern.Registry
	emitter *finding.Emitter
	logger  hclog.Logger

	budget            atomic.Int64
	skippedRecords    atomic.Int64
	sanitizedBranches atomic.Int64
	exhaustedBranches atomic.Int64
	visitedNodes      atomic.Int64
}

func newPropagator(cfg Config, idx *cache.Index, reg *pattern.Registry, emitter *finding.Emitter, logger hclog.Logger) *propagator {
	p := &propagator{cfg: cfg, idx: idx, reg: reg, emitter: emitter, logger: logger}
	p.budget.Store(int64(cfg.MaxVisitedNodes))
	return p
}

// frame is the state of one traversal branch. Frames are never shared:
// branching at a control-flow fan-out or a call boundary clones the taint
// set, the path, and the visited set.
type frame struct {
	source  finding.Source
	block   fact.ControlFlowBlock
	taints  *taintSet
	path    finding.Path
	visited map[visitKey]struct{}
	depth   int
	// retTaint is non-nil inside a callee frame; it is flipped when a
	// return expression references tainted data, telling the caller to
	// taint the call's assignment target.
	retTaint *bool
}

func (fr *frame) branch(next fact.ControlFlowBlock) *frame {
	visited := make(map[visitKey]struct{}, len(fr.visited))
	for k := range fr.visited {
		visited[k] = struct{}{}
	}
	path := make(finding.Path, len(fr.path))
	copy(path, fr.path)
	return &frame{
		source:   fr.source,
		block:    next,
		taints:   fr.taints.clone(),
		path:     path,
		visited:  visited,
		depth:    fr.depth,
		retTaint: fr.retTaint,
	}
}

// appendHop grows the evidence path, honoring the per-path hop budget.
func (p *propagator) appendHop(fr *frame, file string, line int, expr string, kind finding.HopKind) bool {
	if len(fr.path) >= p.cfg.MaxPathLength {
		p.exhaustedBranches.Add(1)
		return false
	}
	fr.path = append(fr.path, finding.Hop{File: file, Line: line, Expression: expr, Kind: kind})
	return true
}

// trace runs the full walk for one discovered source.
func (p *propagator) trace(ctx context.Context, src finding.Source) {
	blk, ok := p.idx.BlockAt(src.File, src.Line)
	if !ok {
		// No control-flow facts for this spot: degrade to a single block
		// spanning the containing function, which makes the walk
		// flow-insensitive within that function.
		blk, ok = p.functionSpanBlock(src.File, src.Line)
	}
	if !ok {
		p.skippedRecords.Add(1)
		p.logger.Debug("source outside any known block or function",
			"file", src.File, "line", src.Line, "expression", src.Expression)
		return
	}
	fr := &frame{
		source:  src,
		block:   blk,
		taints:  newTaintSet(),
		visited: make(map[visitKey]struct{}),
	}
	p.walk(ctx, fr)
}

// functionSpanBlock synthesizes a pseudo block covering the function that
// contains (file, line). Pseudo blocks use negative ids so they can never
// collide with stored blocks and never have successors.
func (p *propagator) functionSpanBlock(file string, line int) (fact.ControlFlowBlock, bool) {
	fn, ok := p.idx.FunctionAt(file, line)
	if !ok {
		return fact.ControlFlowBlock{}, false
	}
	return fact.ControlFlowBlock{
		ID:        -int64(fn.Line) - 1,
		File:      fn.File,
		Function:  fn.Name,
		StartLine: fn.Line,
		EndLine:   fn.EndLine,
	}, true
}

// walk processes one block and fans out to its successors. It returns the
// branch's terminal state.
func (p *propagator) walk(ctx context.Context, fr *frame) state {
	if ctx.Err() != nil {
		p.exhaustedBranches.Add(1)
		return stateExhausted
	}
	key := visitKey{fr.block.File, fr.block.ID, fr.depth}
	if _, seen := fr.visited[key]; seen {
		// Control-flow back edge within this branch; stop instead of
		// looping.
		p.exhaustedBranches.Add(1)
		return stateExhausted
	}
	fr.visited[key] = struct{}{}
	if p.budget.Add(-1) < 0 {
		p.exhaustedBranches.Add(1)
		p.logger.Debug("node-visit budget exhausted", "file", fr.block.File, "block", fr.block.ID)
		return stateExhausted
	}
	p.visitedNodes.Add(1)

	if s := p.applyAssignments(fr); s != stateInBlock {
		return s
	}
	reached, s := p.applyCalls(ctx, fr)
	if s != stateInBlock {
		return s
	}
	p.checkReturns(fr)

	for _, id := range p.idx.Successors(fr.block.ID) {
		next, ok := p.idx.Block(id)
		if !ok {
			p.skippedRecords.Add(1)
			p.logger.Debug("edge to unknown block", "from", fr.block.ID, "to", id)
			continue
		}
		child := fr.branch(next)
		if !p.appendHop(child, next.File, next.StartLine, "", finding.HopSuccessor) {
			continue
		}
		p.walk(ctx, child)
	}

	if reached {
		return stateReached
	}
	return stateInBlock
}

// applyAssignments taints the targets of assignments whose right-hand side
// references tainted data (or the source expression itself).
func (p *propagator) applyAssignments(fr *frame) state {
	for _, as := range p.idx.AssignmentsInRange(fr.block.File, fr.block.StartLine, fr.block.EndLine) {
		if as.TargetVar == "" {
			p.skippedRecords.Add(1)
			p.logger.Debug("skipping assignment without target", "file", as.File, "line", as.Line)
			continue
		}
		if as.InFunction != "" && fr.block.Function != "" && as.InFunction != fr.block.Function {
			continue
		}
		if !fr.taints.refsTaint(as.SourceExpr, fr.source.Expression) {
			continue
		}
		if p.sanitizesExpr(as.SourceExpr) {
			// Assigning the result of a sanitizer does not spread taint.
			continue
		}
		if !p.appendHop(fr, as.File, as.Line, as.TargetVar+" = "+as.SourceExpr, finding.HopAssignment) {
			return stateExhausted
		}
		fr.taints.taint(as.TargetVar)
	}
	return stateInBlock
}

// sanitizesExpr reports whether an expression invokes a registered
// sanitizer. Matching is on whole call signatures, never substrings.
func (p *propagator) sanitizesExpr(expr string) bool {
	for _, path := range identPaths(expr) {
		if _, ok := p.reg.Match(pattern.Sanitizer, path); ok {
			return true
		}
	}
	return false
}

// applyCalls handles the call sites of the current block: sanitizer
// cutoffs, sink hits, wildcard taint, and interprocedural descent.
func (p *propagator) applyCalls(ctx context.Context, fr *frame) (reached bool, _ state) {
	for _, call := range p.idx.CallSitesInRange(fr.block.File, fr.block.StartLine, fr.block.EndLine) {
		if call.Callee == "" {
			p.skippedRecords.Add(1)
			p.logger.Debug("skipping call site without callee", "file", call.File, "line", call.Line)
			continue
		}
		if call.Caller != "" && fr.block.Function != "" && call.Caller != fr.block.Function {
			continue
		}

		var taintedArgs []int
		for i, arg := range call.Arguments {
			if fr.taints.refsTaint(arg, fr.source.Expression) {
				taintedArgs = append(taintedArgs, i)
			}
		}
		if len(taintedArgs) == 0 {
			continue
		}

		if _, ok := p.reg.Match(pattern.Sanitizer, call.Callee); ok {
			p.sanitizedBranches.Add(1)
			return reached, stateSanitized
		}

		// Eval-like callees taint the whole scope, sink or not.
		if _, wild := wildcardCallees[call.Callee]; wild {
			fr.taints.all = true
		}

		if pat, ok := p.reg.Match(pattern.Sink, call.Callee); ok {
			sink := finding.Sink{
				File:       call.File,
				Line:       call.Line,
				Expression: call.Callee,
				Category:   pat.Category,
				Pattern:    pat.Signature,
			}
			evidence := fr.branch(fr.block)
			if p.appendHop(evidence, call.File, call.Line, call.Callee, finding.HopSinkCall) {
				p.emitter.Emit(fr.source, sink, evidence.path)
				reached = true
			}
			continue
		}

		if p.cfg.EnableInterprocedural && fr.depth < p.cfg.MaxRecursionDepth {
			p.crossCall(ctx, fr, call, taintedArgs)
		}
	}
	return reached, stateInBlock
}

// checkReturns flips the callee frame's return flag when a return
// expression in this block carries taint.
func (p *propagator) checkReturns(fr *frame) {
	if fr.retTaint == nil || *fr.retTaint {
		return
	}
	for _, ret := range p.idx.ReturnsOf(fr.block.File, fr.block.Function) {
		if ret.Line < fr.block.StartLine || ret.Line > fr.block.EndLine {
			continue
		}
		if fr.taints.refsTaint(ret.Expr, fr.source.Expression) {
			*fr.retTaint = true
			return
		}
	}
}

// crossCall follows taint into a callee body, binding the callee's formal
// parameters to the tainted argument positions, and propagates return
// taint back to the call site's assignment target.
func (p *propagator) crossCall(ctx context.Context, fr *frame, call fact.CallSite, taintedArgs []int) {
	targets := p.resolveCallees(call)
	if len(targets) == 0 {
		// Unresolvable callee (indirect value with no recorded handler):
		// drop the branch rather than guess.
		p.logger.Debug("unresolved callee, dropping branch",
			"file", call.File, "line", call.Line, "callee", call.Callee)
		return
	}

	for _, fnSym := range targets {
		entry, ok := p.calleeEntry(fnSym)
		if !ok {
			p.skippedRecords.Add(1)
			p.logger.Debug("callee without body facts", "function", fnSym.Name, "file", fnSym.File)
			continue
		}

		seed := newTaintSet()
		params := p.calleeParams(fnSym)
		if len(params) == 0 {
			// Parameter facts missing; over-approximate inside the callee.
			seed.all = true
		}
		for _, argIdx := range taintedArgs {
			if argIdx < len(params) {
				seed.taint(params[argIdx].Name)
			}
		}
		if fr.taints.all {
			seed.all = true
		}

		path := make(finding.Path, len(fr.path))
		copy(path, fr.path)
		visited := make(map[visitKey]struct{}, len(fr.visited))
		for k := range fr.visited {
			visited[k] = struct{}{}
		}
		retTainted := false
		child := &frame{
			source:   fr.source,
			block:    entry,
			taints:   seed,
			path:     path,
			visited:  visited,
			depth:    fr.depth + 1,
			retTaint: &retTainted,
		}
		if !p.appendHop(child, call.File, call.Line, call.Callee, finding.HopCallArgument) {
			continue
		}
		p.walk(ctx, child)

		if retTainted {
			p.returnToCaller(fr, call)
		}
	}
}

// returnToCaller taints the assignment target receiving the call's return
// value in the caller frame. Targets the assignment pass already tainted
// (the usual case, since the tainted argument appears in the right-hand
// side) are left alone so the evidence path does not record the same
// binding twice.
func (p *propagator) returnToCaller(fr *frame, call fact.CallSite) {
	for _, as := range p.idx.AssignmentsInRange(call.File, call.Line, call.Line) {
		if as.Line != call.Line || as.TargetVar == "" {
			continue
		}
		if !exprMentions(as.SourceExpr, call.Callee) {
			continue
		}
		if fr.taints.has(as.TargetVar) {
			continue
		}
		if !p.appendHop(fr, as.File, as.Line, as.TargetVar+" = "+as.SourceExpr, finding.HopCallReturn) {
			return
		}
		fr.taints.taint(as.TargetVar)
	}
}

// exprMentions reports whether an expression contains the callee path as a
// whole identifier path.
func exprMentions(expr, callee string) bool {
	for _, path := range identPaths(expr) {
		if path == callee || strings.HasSuffix(path, "."+callee) {
			return true
		}
	}
	return false
}

// resolveCallees maps a callee expression to the function symbols it can
// reach: by name first, then through recorded property handler maps when
// dynamic dispatch is enabled.
func (p *propagator) resolveCallees(call fact.CallSite) []fact.Symbol {
	if syms := p.idx.FunctionsNamed(call.Callee); len(syms) > 0 {
		return syms
	}
	if p.cfg.EnableDynamicDispatch {
		if i := strings.LastIndexByte(call.Callee, '.'); i > 0 {
			object, property := call.Callee[:i], call.Callee[i+1:]
			var out []fact.Symbol
			for _, h := range p.idx.HandlersFor(object, property) {
				out = append(out, p.idx.FunctionsNamed(h.Handler)...)
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// calleeEntry returns the callee's entry block, or a pseudo block covering
// its body when no control-flow facts exist for it.
func (p *propagator) calleeEntry(fnSym fact.Symbol) (fact.ControlFlowBlock, bool) {
	if blocks := p.idx.FunctionBlocks(fnSym.File, fnSym.Name); len(blocks) > 0 {
		return blocks[0], true
	}
	if fnSym.EndLine < fnSym.Line {
		return fact.ControlFlowBlock{}, false
	}
	return fact.ControlFlowBlock{
		ID:        -int64(fnSym.Line) - 1,
		File:      fnSym.File,
		Function:  fnSym.Name,
		StartLine: fnSym.Line,
		EndLine:   fnSym.EndLine,
	}, true
}

// calleeParams returns the callee's parameter symbols in declaration
// order.
func (p *propagator) calleeParams(fnSym fact.Symbol) []fact.Symbol {
	var params []fact.Symbol
	for _, sym := range p.idx.SymbolsInRange(fnSym.File, fnSym.Line, fnSym.EndLine) {
		if sym.Kind == fact.KindParameter {
			params = append(params, sym)
		}
	}
	return params
}
