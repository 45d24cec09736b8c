package finding

import "sync"

type dedupeKey struct {
	source   string
	sink     string
	category string
}

// Emitter collects findings in emission order, deduplicating by
// (source location, sink location, category). The first emission for a key
// wins; later duplicates are dropped rather than merged, so the recorded
// path evidence is always the one from first discovery. Emit is the single
// aggregation point for concurrent traversal branches and is safe for
// concurrent use.
type Emitter struct {
	runID string

	mu       sync.Mutex
	seen     map[dedupeKey]struct{}
	findings []Finding
}

// NewEmitter creates an emitter whose findings carry the given run id.
func NewEmitter(runID string) *Emitter {
	return &Emitter{
		runID: runID,
		seen:  make(map[dedupeKey]struct{}),
	}
}

// Emit records a completed source-to-sink path. It reports whether the
// finding was new.
func (e *Emitter) Emit(source Source, sink Sink, path Path) bool {
	key := dedupeKey{source.Location(), sink.Location(), sink.Category}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, dup := e.seen[key]; dup {
		return false
	}
	e.seen[key] = struct{}{}

	frozen := make(Path, len(path))
	copy(frozen, path)
	e.findings = append(e.findings, Finding{
		RunID:    e.runID,
		Source:   source,
		Sink:     sink,
		Path:     frozen,
		Category: sink.Category,
		Severity: SeverityForCategory(sink.Category),
		Cwe:      GetCweByCategory(sink.Category),
	})
	return true
}

// Findings returns the accumulated findings in emission order.
func (e *Emitter) Findings() []Finding {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Finding, len(e.findings))
	copy(out, e.findings)
	return out
}

// Count returns the number of distinct findings emitted so far.
func (e *Emitter) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.findings)
}
