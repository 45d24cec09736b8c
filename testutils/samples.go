// Package testutils provides canned fact stores that exercise the taint
// engine end to end. Each store models a small web-handler program the way
// an upstream extractor would record it.
package testutils

import "github.com/auditsec/taintflow/fact"

// DirectFlowStore models the simplest complete flow in one basic block:
//
//	function handler()        // lines 5-20
//	  x = req.query.name      // line 10
//	  db.execute(x)           // line 12
func DirectFlowStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 20, Kind: fact.KindFunction, Name: "handler"},
			{File: "app.js", Line: 10, Kind: fact.KindProperty, Name: "req.query.name"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 10, TargetVar: "x", SourceExpr: "req.query.name", InFunction: "handler"},
		},
		CallRecords: []fact.CallSite{
			{File: "app.js", Line: 12, Caller: "handler", Callee: "db.execute", Arguments: []string{"x"}},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "handler", StartLine: 5, EndLine: 20},
		},
	}
}

// SanitizedFlowStore is DirectFlowStore with the tainted value passed
// through a sanitizer before the sink:
//
//	x = req.query.name        // line 10
//	x = escape(x)             // line 11
//	db.execute(x)             // line 12
func SanitizedFlowStore() *fact.MemStore {
	s := DirectFlowStore()
	s.AssignRecords = append(s.AssignRecords,
		fact.Assignment{File: "app.js", Line: 11, TargetVar: "x", SourceExpr: "escape(x)", InFunction: "handler"})
	s.CallRecords = append([]fact.CallSite{
		{File: "app.js", Line: 11, Caller: "handler", Callee: "escape", Arguments: []string{"x"}},
	}, s.CallRecords...)
	return s
}

// SubstringSanitizerStore passes the tainted value through a call whose
// name merely contains a sanitizer name as a substring. The flow must
// still be reported.
//
//	x = req.query.name        // line 10
//	x = myescape(x)           // line 11
//	db.execute(x)             // line 12
func SubstringSanitizerStore() *fact.MemStore {
	s := DirectFlowStore()
	s.AssignRecords = append(s.AssignRecords,
		fact.Assignment{File: "app.js", Line: 11, TargetVar: "x", SourceExpr: "myescape(x)", InFunction: "handler"})
	s.CallRecords = append([]fact.CallSite{
		{File: "app.js", Line: 11, Caller: "handler", Callee: "myescape", Arguments: []string{"x"}},
	}, s.CallRecords...)
	return s
}

// InterproceduralStore puts the sink inside a callee reached through a
// tainted argument:
//
//	function handler()        // lines 5-20
//	  data = req.body         // line 9
//	  helper(data)            // line 10
//	function helper(p)        // lines 30-40
//	  cursor.execute(p)       // line 33
func InterproceduralStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 20, Kind: fact.KindFunction, Name: "handler"},
			{File: "app.js", Line: 8, Kind: fact.KindProperty, Name: "req.body"},
			{File: "app.js", Line: 30, EndLine: 40, Kind: fact.KindFunction, Name: "helper"},
			{File: "app.js", Line: 30, Kind: fact.KindParameter, Name: "p"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 9, TargetVar: "data", SourceExpr: "req.body", InFunction: "handler"},
		},
		CallRecords: []fact.CallSite{
			{File: "app.js", Line: 10, Caller: "handler", Callee: "helper", Arguments: []string{"data"}},
			{File: "app.js", Line: 33, Caller: "helper", Callee: "cursor.execute", Arguments: []string{"p"}},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "handler", StartLine: 5, EndLine: 20},
			{ID: 2, File: "app.js", Function: "helper", StartLine: 30, EndLine: 40},
		},
	}
}

// ReturnFlowStore has a callee that returns its tainted parameter into a
// caller-side assignment which then reaches a sink:
//
//	function handler()        // lines 5-20
//	  data = req.body         // line 9
//	  y = helper(data)        // line 10
//	  db.execute(y)           // line 12
//	function helper(p)        // lines 30-40
//	  return p                // line 33
func ReturnFlowStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 20, Kind: fact.KindFunction, Name: "handler"},
			{File: "app.js", Line: 8, Kind: fact.KindProperty, Name: "req.body"},
			{File: "app.js", Line: 30, EndLine: 40, Kind: fact.KindFunction, Name: "helper"},
			{File: "app.js", Line: 30, Kind: fact.KindParameter, Name: "p"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 9, TargetVar: "data", SourceExpr: "req.body", InFunction: "handler"},
			{File: "app.js", Line: 10, TargetVar: "y", SourceExpr: "helper(data)", InFunction: "handler"},
		},
		CallRecords: []fact.CallSite{
			{File: "app.js", Line: 10, Caller: "handler", Callee: "helper", Arguments: []string{"data"}},
			{File: "app.js", Line: 12, Caller: "handler", Callee: "db.execute", Arguments: []string{"y"}},
		},
		ReturnRecords: []fact.ReturnStatement{
			{File: "app.js", Line: 33, InFunction: "helper", Expr: "p"},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "handler", StartLine: 5, EndLine: 20},
			{ID: 2, File: "app.js", Function: "helper", StartLine: 30, EndLine: 40},
		},
	}
}

// ElidedReturnFlowStore is ReturnFlowStore with the call's argument list
// elided from the assignment's right-hand side, the way some extractors
// truncate long call expressions. The return-value binding is then the
// only way taint reaches y.
func ElidedReturnFlowStore() *fact.MemStore {
	s := ReturnFlowStore()
	s.AssignRecords[1].SourceExpr = "helper()"
	return s
}

// DynamicDispatchStore routes the tainted argument through a property
// handler registration instead of a direct call:
//
//	function handler()        // lines 5-20
//	  data = req.body         // line 9
//	  router.handle(data)     // line 10, router.handle -> onRequest
//	function onRequest(p)     // lines 30-40
//	  cursor.execute(p)       // line 33
func DynamicDispatchStore() *fact.MemStore {
	s := InterproceduralStore()
	s.SymbolRecords[2].Name = "onRequest"
	s.CallRecords[0].Callee = "router.handle"
	s.CallRecords[1].Caller = "onRequest"
	s.BlockRecords[1].Function = "onRequest"
	s.HandlerRecords = []fact.PropertyHandler{
		{File: "app.js", Line: 3, Object: "router", Property: "handle", Handler: "onRequest"},
	}
	return s
}

// CycleStore has a control-flow cycle between two blocks and no sink, so
// a correct walk terminates with zero findings:
//
//	function loop()           // lines 5-20
//	  x = req.query.q         // line 6  (block 1, lines 5-10)
//	  y = x                   // line 12 (block 2, lines 11-20)
//	  edges: 1 -> 2 -> 1
func CycleStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 20, Kind: fact.KindFunction, Name: "loop"},
			{File: "app.js", Line: 6, Kind: fact.KindProperty, Name: "req.query.q"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 6, TargetVar: "x", SourceExpr: "req.query.q", InFunction: "loop"},
			{File: "app.js", Line: 12, TargetVar: "y", SourceExpr: "x", InFunction: "loop"},
		},
		CallRecords: []fact.CallSite{
			// A sink elsewhere so propagation is not skipped outright.
			{File: "other.js", Line: 1, Caller: "noop", Callee: "db.execute", Arguments: []string{"q"}},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "loop", StartLine: 5, EndLine: 10},
			{ID: 2, File: "app.js", Function: "loop", StartLine: 11, EndLine: 20},
		},
		EdgeRecords: []fact.ControlFlowEdge{
			{From: 1, To: 2},
			{From: 2, To: 1},
		},
	}
}

// WildcardEvalStore feeds tainted data to eval, which both fires the
// command-injection sink and taints every local in scope, so the later
// sink call on an otherwise clean variable fires too:
//
//	cmd = req.query.cmd       // line 9
//	eval(cmd)                 // line 10
//	db.execute(other)         // line 12
func WildcardEvalStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 20, Kind: fact.KindFunction, Name: "handler"},
			{File: "app.js", Line: 9, Kind: fact.KindProperty, Name: "req.query.cmd"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 9, TargetVar: "cmd", SourceExpr: "req.query.cmd", InFunction: "handler"},
		},
		CallRecords: []fact.CallSite{
			{File: "app.js", Line: 10, Caller: "handler", Callee: "eval", Arguments: []string{"cmd"}},
			{File: "app.js", Line: 12, Caller: "handler", Callee: "db.execute", Arguments: []string{"other"}},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "handler", StartLine: 5, EndLine: 20},
		},
	}
}

// NoCfgStore is DirectFlowStore stripped of control-flow facts, forcing
// the walk onto the function-span fallback.
func NoCfgStore() *fact.MemStore {
	s := DirectFlowStore()
	s.BlockRecords = nil
	s.EdgeRecords = nil
	return s
}

// BranchedFlowStore splits the flow across an if/else diamond where only
// one arm sanitizes:
//
//	function handler()        // lines 5-30
//	  x = req.query.name      // line 6  (block 1, lines 5-9)
//	  x = escape(x)           // line 11 (block 2, lines 10-14, then arm)
//	  y = x                   // line 16 (block 3, lines 15-19, else arm)
//	  db.execute(x)           // line 21 (block 4, lines 20-30, join)
//	  edges: 1 -> 2, 1 -> 3, 2 -> 4, 3 -> 4
func BranchedFlowStore() *fact.MemStore {
	return &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "app.js", Line: 5, EndLine: 30, Kind: fact.KindFunction, Name: "handler"},
			{File: "app.js", Line: 6, Kind: fact.KindProperty, Name: "req.query.name"},
		},
		AssignRecords: []fact.Assignment{
			{File: "app.js", Line: 6, TargetVar: "x", SourceExpr: "req.query.name", InFunction: "handler"},
			{File: "app.js", Line: 11, TargetVar: "x", SourceExpr: "escape(x)", InFunction: "handler"},
			{File: "app.js", Line: 16, TargetVar: "y", SourceExpr: "x", InFunction: "handler"},
		},
		CallRecords: []fact.CallSite{
			{File: "app.js", Line: 11, Caller: "handler", Callee: "escape", Arguments: []string{"x"}},
			{File: "app.js", Line: 21, Caller: "handler", Callee: "db.execute", Arguments: []string{"x"}},
		},
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "app.js", Function: "handler", StartLine: 5, EndLine: 9},
			{ID: 2, File: "app.js", Function: "handler", StartLine: 10, EndLine: 14},
			{ID: 3, File: "app.js", Function: "handler", StartLine: 15, EndLine: 19},
			{ID: 4, File: "app.js", Function: "handler", StartLine: 20, EndLine: 30},
		},
		EdgeRecords: []fact.ControlFlowEdge{
			{From: 1, To: 2},
			{From: 1, To: 3},
			{From: 2, To: 4},
			{From: 3, To: 4},
		},
	}
}
