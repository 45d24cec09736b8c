package pattern

import (
	"errors"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Registry is the per-run pattern catalog. It is populated once at load
// time, before any analysis starts, and read-only afterwards; concurrent
// registration is disallowed by construction.
type Registry struct {
	logger    hclog.Logger
	patterns  map[Kind][]Pattern
	bySegment map[Kind]map[string][]Pattern
	rejected  int
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(logger hclog.Logger) *Registry {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Registry{
		logger:    logger,
		patterns:  make(map[Kind][]Pattern),
		bySegment: make(map[Kind]map[string][]Pattern),
	}
}

// Register validates and stores one pattern. Invalid signatures are
// refused with an *InvalidPatternError, logged, and counted; they are
// never accepted under a fallback interpretation.
func (r *Registry) Register(p Pattern) error {
	if err := validate(p.Signature); err != nil {
		r.rejected++
		r.logger.Warn("rejected pattern registration",
			"signature", p.Signature, "kind", p.Kind.String(), "reason", err.Reason)
		return err
	}
	p.Signature = strings.TrimSpace(p.Signature)
	r.patterns[p.Kind] = append(r.patterns[p.Kind], p)
	seg := lastSegment(p.Signature)
	if r.bySegment[p.Kind] == nil {
		r.bySegment[p.Kind] = make(map[string][]Pattern)
	}
	r.bySegment[p.Kind][seg] = append(r.bySegment[p.Kind][seg], p)
	return nil
}

// RegisterAll registers a catalog, continuing past invalid entries. It
// returns the number accepted and the joined registration errors, so a
// caller can audit at startup exactly what was refused.
func (r *Registry) RegisterAll(catalog []Pattern) (int, error) {
	accepted := 0
	var errs []error
	for _, p := range catalog {
		if err := r.Register(p); err != nil {
			errs = append(errs, err)
			continue
		}
		accepted++
	}
	return accepted, errors.Join(errs...)
}

// Rejections reports how many registrations have been refused.
func (r *Registry) Rejections() int {
	return r.rejected
}

// Patterns returns the registered patterns of one kind, in registration
// order.
func (r *Registry) Patterns(kind Kind) []Pattern {
	return r.patterns[kind]
}

// Match resolves a call or attribute expression against the registered
// patterns of the given kind. Matching is exact or on whole attribute
// segments, never substring: sink and sanitizer signatures match as
// suffixes of the callee ("cursor.execute" matches a registered
// "execute"), source signatures match as prefixes of the accessed path
// ("req.query.name" matches a registered "req.query"). The candidate set
// is pre-bucketed so the average lookup touches a handful of patterns
// regardless of catalog size.
func (r *Registry) Match(kind Kind, expr string) (Pattern, bool) {
	buckets := r.bySegment[kind]
	if len(buckets) == 0 || expr == "" {
		return Pattern{}, false
	}

	if kind == Source {
		// Walk the expression's dot path left to right; a registered
		// source is a prefix of the accessed path on a segment boundary.
		rest := expr
		prefixLen := 0
		for {
			i := strings.IndexByte(rest, '.')
			var head string
			if i < 0 {
				head = expr
			} else {
				head = expr[:prefixLen+i]
			}
			for _, p := range buckets[lastSegment(head)] {
				if p.Signature == head {
					return p, true
				}
			}
			if i < 0 {
				return Pattern{}, false
			}
			prefixLen += i + 1
			rest = rest[i+1:]
		}
	}

	for _, p := range buckets[lastSegment(expr)] {
		if p.Signature == expr || strings.HasSuffix(expr, "."+p.Signature) {
			return p, true
		}
	}
	return Pattern{}, false
}
