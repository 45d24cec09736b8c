// Package fact defines the code fact records the taint engine consumes.
// Facts are produced upstream by language-specific extractors and persisted
// in a relational store; the engine only ever reads them. All record types
// here are plain values keyed by (file, line) or block id.
package fact

// Symbol kinds recorded by the extractors.
const (
	KindFunction  = "function"
	KindClass     = "class"
	KindProperty  = "property"
	KindParameter = "parameter"
	KindCall      = "call"
)

// Symbol is a named program entity (function, class, property, parameter).
type Symbol struct {
	File    string
	Line    int
	EndLine int
	Kind    string
	Name    string
}

// Assignment records `target = expr` inside a function body.
type Assignment struct {
	File       string
	Line       int
	TargetVar  string
	SourceExpr string
	InFunction string
}

// CallSite records a single call expression with its argument expressions
// in positional order.
type CallSite struct {
	File      string
	Line      int
	Caller    string
	Callee    string
	Arguments []string
}

// ReturnStatement records `return expr` inside a function body.
type ReturnStatement struct {
	File       string
	Line       int
	InFunction string
	Expr       string
}

// ControlFlowBlock is a basic block of a function's control-flow graph.
type ControlFlowBlock struct {
	ID        int64
	File      string
	Function  string
	StartLine int
	EndLine   int
}

// ControlFlowEdge connects two basic blocks.
type ControlFlowEdge struct {
	From int64
	To   int64
}

// PropertyHandler maps an (object, property) pair to the concrete function
// registered as its handler. Used to resolve dynamically dispatched calls.
type PropertyHandler struct {
	File     string
	Line     int
	Object   string
	Property string
	Handler  string
}

// Store is the read-only view of a fully populated fact store. The engine
// reads every table exactly once, at spatial index build time.
type Store interface {
	Symbols() []Symbol
	Assignments() []Assignment
	CallSites() []CallSite
	Returns() []ReturnStatement
	Blocks() []ControlFlowBlock
	Edges() []ControlFlowEdge
	PropertyHandlers() []PropertyHandler
}

// MemStore is a Store backed by plain slices. It is the vehicle for tests
// and for callers that materialize facts themselves.
type MemStore struct {
	SymbolRecords  []Symbol
	AssignRecords  []Assignment
	CallRecords    []CallSite
	ReturnRecords  []ReturnStatement
	BlockRecords   []ControlFlowBlock
	EdgeRecords    []ControlFlowEdge
	HandlerRecords []PropertyHandler
}

func (m *MemStore) Symbols() []Symbol                   { return m.SymbolRecords }
func (m *MemStore) Assignments() []Assignment           { return m.AssignRecords }
func (m *MemStore) CallSites() []CallSite               { return m.CallRecords }
func (m *MemStore) Returns() []ReturnStatement          { return m.ReturnRecords }
func (m *MemStore) Blocks() []ControlFlowBlock          { return m.BlockRecords }
func (m *MemStore) Edges() []ControlFlowEdge            { return m.EdgeRecords }
func (m *MemStore) PropertyHandlers() []PropertyHandler { return m.HandlerRecords }
