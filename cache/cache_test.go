package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auditsec/taintflow/fact"
)

func buildIndex(t *testing.T, store fact.Store, blockSize int) *Index {
	t.Helper()
	idx := Build(store, blockSize, nil)
	require.NotNil(t, idx)
	return idx
}

func TestRangeQueriesCrossBlockBoundaries(t *testing.T) {
	// With blockSize 100, lines 95 and 105 land in different line blocks;
	// a range spanning the boundary must see both.
	store := &fact.MemStore{
		AssignRecords: []fact.Assignment{
			{File: "a.js", Line: 95, TargetVar: "x", SourceExpr: "req.query"},
			{File: "a.js", Line: 105, TargetVar: "y", SourceExpr: "x"},
			{File: "a.js", Line: 300, TargetVar: "z", SourceExpr: "y"},
			{File: "b.js", Line: 100, TargetVar: "w", SourceExpr: "x"},
		},
	}
	idx := buildIndex(t, store, 100)

	got := idx.AssignmentsInRange("a.js", 90, 110)
	require.Len(t, got, 2)
	assert.Equal(t, 95, got[0].Line)
	assert.Equal(t, 105, got[1].Line)

	assert.Empty(t, idx.AssignmentsInRange("a.js", 110, 120))
	assert.Empty(t, idx.AssignmentsInRange("c.js", 0, 1000))
}

func TestRangeResultsAreLineOrdered(t *testing.T) {
	store := &fact.MemStore{
		CallRecords: []fact.CallSite{
			{File: "a.js", Line: 12, Callee: "db.execute"},
			{File: "a.js", Line: 7, Callee: "escape"},
			{File: "a.js", Line: 9, Callee: "helper"},
		},
	}
	idx := buildIndex(t, store, 100)

	got := idx.CallSitesInRange("a.js", 1, 20)
	require.Len(t, got, 3)
	assert.Equal(t, []int{7, 9, 12}, []int{got[0].Line, got[1].Line, got[2].Line})
}

func TestControlFlowAdjacency(t *testing.T) {
	store := &fact.MemStore{
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "a.js", Function: "f", StartLine: 1, EndLine: 10},
			{ID: 2, File: "a.js", Function: "f", StartLine: 11, EndLine: 20},
			{ID: 3, File: "a.js", Function: "f", StartLine: 21, EndLine: 30},
		},
		EdgeRecords: []fact.ControlFlowEdge{
			{From: 1, To: 2},
			{From: 1, To: 3},
			{From: 2, To: 3},
		},
	}
	idx := buildIndex(t, store, 100)

	assert.ElementsMatch(t, []int64{2, 3}, idx.Successors(1))
	assert.Empty(t, idx.Successors(3))

	blk, ok := idx.Block(2)
	require.True(t, ok)
	assert.Equal(t, 11, blk.StartLine)

	blocks := idx.FunctionBlocks("a.js", "f")
	require.Len(t, blocks, 3)
	assert.Equal(t, int64(1), blocks[0].ID)
}

func TestBlockAtPrefersInnermost(t *testing.T) {
	store := &fact.MemStore{
		BlockRecords: []fact.ControlFlowBlock{
			{ID: 1, File: "a.js", Function: "f", StartLine: 1, EndLine: 100},
			{ID: 2, File: "a.js", Function: "f", StartLine: 40, EndLine: 50},
		},
	}
	idx := buildIndex(t, store, 100)

	blk, ok := idx.BlockAt("a.js", 45)
	require.True(t, ok)
	assert.Equal(t, int64(2), blk.ID)

	blk, ok = idx.BlockAt("a.js", 5)
	require.True(t, ok)
	assert.Equal(t, int64(1), blk.ID)

	_, ok = idx.BlockAt("a.js", 200)
	assert.False(t, ok)
}

func TestFunctionLookups(t *testing.T) {
	store := &fact.MemStore{
		SymbolRecords: []fact.Symbol{
			{File: "a.js", Line: 1, EndLine: 50, Kind: fact.KindFunction, Name: "handler"},
			{File: "a.js", Line: 10, EndLine: 20, Kind: fact.KindFunction, Name: "inner"},
			{File: "b.js", Line: 1, EndLine: 5, Kind: fact.KindFunction, Name: "handler"},
			{File: "a.js", Line: 10, Kind: fact.KindParameter, Name: "p"},
		},
	}
	idx := buildIndex(t, store, 100)

	assert.Len(t, idx.FunctionsNamed("handler"), 2)
	assert.Empty(t, idx.FunctionsNamed("missing"))

	fn, ok := idx.FunctionAt("a.js", 15)
	require.True(t, ok)
	assert.Equal(t, "inner", fn.Name)

	fn, ok = idx.FunctionAt("a.js", 30)
	require.True(t, ok)
	assert.Equal(t, "handler", fn.Name)

	assert.Len(t, idx.SymbolsOfKind(fact.KindParameter), 1)
}

func TestReturnsAndHandlers(t *testing.T) {
	store := &fact.MemStore{
		ReturnRecords: []fact.ReturnStatement{
			{File: "a.js", Line: 12, InFunction: "f", Expr: "x"},
			{File: "a.js", Line: 18, InFunction: "g", Expr: "y"},
		},
		HandlerRecords: []fact.PropertyHandler{
			{File: "a.js", Line: 3, Object: "router", Property: "handle", Handler: "onRequest"},
		},
	}
	idx := buildIndex(t, store, 100)

	require.Len(t, idx.ReturnsOf("a.js", "f"), 1)
	assert.Equal(t, "x", idx.ReturnsOf("a.js", "f")[0].Expr)
	assert.Empty(t, idx.ReturnsOf("a.js", "missing"))

	handlers := idx.HandlersFor("router", "handle")
	require.Len(t, handlers, 1)
	assert.Equal(t, "onRequest", handlers[0].Handler)
	assert.Empty(t, idx.HandlersFor("router", "use"))
}

func TestQueryBeforeBuildPanics(t *testing.T) {
	var idx Index
	assert.Panics(t, func() { idx.Successors(1) })
	assert.Panics(t, func() { (*Index)(nil).BlockSize() })
}

func TestBuildDefaultsBlockSize(t *testing.T) {
	idx := buildIndex(t, &fact.MemStore{}, 0)
	assert.Equal(t, DefaultBlockSize, idx.BlockSize())
}
