// Package pattern holds the validated catalog of taint source, sink, and
// sanitizer signatures. A signature is a call or attribute-access form such
// as "db.execute" or "eval"; the registry refuses bare identifiers that
// commonly appear as variable names, so that a sensitive-looking substring
// can never be mistaken for a callable taint boundary.
package pattern

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes what a pattern marks in the analyzed program.
type Kind int

const (
	// Source marks a point where untrusted data enters.
	Source Kind = iota
	// Sink marks a call that is dangerous when it receives tainted data.
	Sink
	// Sanitizer marks a call that breaks a taint chain.
	Sanitizer
)

// String returns the lowercase name used in catalogs and logs.
func (k Kind) String() string {
	switch k {
	case Source:
		return "source"
	case Sink:
		return "sink"
	case Sanitizer:
		return "sanitizer"
	}
	return "unknown"
}

// ParseKind converts a catalog string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "source":
		return Source, nil
	case "sink":
		return Sink, nil
	case "sanitizer":
		return Sanitizer, nil
	}
	return 0, fmt.Errorf("pattern: unknown kind %q", s)
}

// UnmarshalYAML implements yaml.Unmarshaler for catalog files.
func (k *Kind) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (k Kind) MarshalYAML() (interface{}, error) {
	return k.String(), nil
}

// Pattern is one validated catalog entry.
type Pattern struct {
	// Signature is the call or attribute form to match, e.g. "db.execute".
	Signature string `yaml:"signature"`
	// Kind says whether the signature is a source, sink, or sanitizer.
	Kind Kind `yaml:"kind"`
	// Category is the vulnerability class, e.g. "sql-injection".
	Category string `yaml:"category"`
}

// InvalidPatternError reports a registration the registry refused.
type InvalidPatternError struct {
	Signature string
	Reason    string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Signature, e.Reason)
}

// minBareLength is the shortest bare (dot-free) signature accepted outside
// the allowlist. Anything shorter is indistinguishable from a local name.
const minBareLength = 4

// commonIdentifiers are bare names that show up constantly as variables and
// must never be registered as callable signatures.
var commonIdentifiers = map[string]struct{}{
	"user":     {},
	"token":    {},
	"admin":    {},
	"config":   {},
	"password": {},
	"secret":   {},
	"session":  {},
	"auth":     {},
	"data":     {},
	"value":    {},
	"name":     {},
	"key":      {},
	"id":       {},
}

// bareCallables are dot-free names that genuinely denote calls and are
// accepted despite having no attribute path.
var bareCallables = map[string]struct{}{
	"eval":    {},
	"exec":    {},
	"execute": {},
	"system":  {},
	"popen":   {},
	"open":    {},
	"input":   {},
	"fetch":   {},
}

// validate decides whether a signature denotes a call or attribute form.
func validate(signature string) *InvalidPatternError {
	sig := strings.TrimSpace(signature)
	if sig == "" {
		return &InvalidPatternError{Signature: signature, Reason: "empty signature"}
	}
	if strings.HasPrefix(sig, ".") || strings.HasSuffix(sig, ".") {
		return &InvalidPatternError{Signature: signature, Reason: "dangling attribute separator"}
	}
	if strings.Contains(sig, ".") {
		return nil
	}
	if _, ok := bareCallables[sig]; ok {
		return nil
	}
	if _, ok := commonIdentifiers[strings.ToLower(sig)]; ok {
		return &InvalidPatternError{Signature: signature, Reason: "common identifier, not a callable form"}
	}
	if len(sig) < minBareLength {
		return &InvalidPatternError{Signature: signature, Reason: "bare name too short to be a callable form"}
	}
	return nil
}

// lastSegment returns the final dot-separated component of a signature or
// callee expression; it is the registry's bucket key.
func lastSegment(expr string) string {
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		return expr[i+1:]
	}
	return expr
}
