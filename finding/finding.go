// Package finding defines the structured records produced by a taint
// analysis run. A Finding carries enough data for a downstream reporting
// layer to render output; this package performs no formatting and no I/O.
package finding

import (
	"encoding/json"
	"fmt"
)

// Score type used by severity values.
type Score int

const (
	// Low severity
	Low Score = iota
	// Medium severity
	Medium
	// High severity
	High
)

// String converts a Score into a string.
func (c Score) String() string {
	switch c {
	case High:
		return "HIGH"
	case Medium:
		return "MEDIUM"
	case Low:
		return "LOW"
	}
	return "UNDEFINED"
}

// MarshalJSON is used to convert a Score object into a JSON representation.
func (c Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Cwe id and url.
type Cwe struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

func getCwe(id, name string) Cwe {
	return Cwe{ID: id, Name: name, URL: fmt.Sprintf("https://cwe.mitre.org/data/definitions/%s.html", id)}
}

// categoryToCWE maps vulnerability categories to CWEs.
var categoryToCWE = map[string]Cwe{
	"sql-injection":     getCwe("89", "Improper Neutralization of Special Elements used in an SQL Command ('SQL Injection')"),
	"command-injection": getCwe("78", "Improper Neutralization of Special Elements used in an OS Command ('OS Command Injection')"),
	"xss":               getCwe("79", "Improper Neutralization of Input During Web Page Generation ('Cross-site Scripting')"),
	"path-traversal":    getCwe("22", "Improper Limitation of a Pathname to a Restricted Directory ('Path Traversal')"),
	"ssrf":              getCwe("918", "Server-Side Request Forgery (SSRF)"),
}

// GetCweByCategory returns the CWE for a vulnerability category.
func GetCweByCategory(category string) Cwe {
	return categoryToCWE[category]
}

// SeverityForCategory returns the default severity of a vulnerability
// category.
func SeverityForCategory(category string) Score {
	switch category {
	case "sql-injection", "command-injection":
		return High
	default:
		return Medium
	}
}

// Source is a discovered point where untrusted data enters.
type Source struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Expression string `json:"expression"`
	Category   string `json:"category"`
	Pattern    string `json:"pattern"`
}

// Location returns the file:line form used for deduplication.
func (s Source) Location() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// Sink is a discovered call that is dangerous when it receives tainted
// data.
type Sink struct {
	File       string `json:"file"`
	Line       int    `json:"line"`
	Expression string `json:"expression"`
	Category   string `json:"category"`
	Pattern    string `json:"pattern"`
}

// Location returns the file:line form used for deduplication.
func (s Sink) Location() string {
	return fmt.Sprintf("%s:%d", s.File, s.Line)
}

// HopKind says how taint moved between two adjacent path entries.
type HopKind string

const (
	// HopAssignment is taint moving through `target = expr`.
	HopAssignment HopKind = "assignment"
	// HopCallArgument is taint entering a callee through an argument.
	HopCallArgument HopKind = "call-argument"
	// HopCallReturn is taint leaving a callee through its return value.
	HopCallReturn HopKind = "call-return"
	// HopSuccessor is taint carried into a control-flow successor block.
	HopSuccessor HopKind = "control-flow-successor"
	// HopSinkCall is the final hop into the sink call itself.
	HopSinkCall HopKind = "sink-call"
)

// Hop is one step of the evidence path from a source to a sink.
type Hop struct {
	File       string  `json:"file"`
	Line       int     `json:"line"`
	Expression string  `json:"expression"`
	Kind       HopKind `json:"kind"`
}

// Path is the ordered evidence trail from source to sink. Immutable once
// emitted.
type Path []Hop

// Finding is one confirmed source-to-sink taint flow.
type Finding struct {
	RunID    string `json:"run_id"`
	Source   Source `json:"source"`
	Sink     Sink   `json:"sink"`
	Path     Path   `json:"path"`
	Category string `json:"category"`
	Severity Score  `json:"severity"`
	Cwe      Cwe    `json:"cwe"`
}
