package taintflow

import "strings"

// taintSet is the propagation state carried by one traversal branch: the
// variable names currently tainted plus a wildcard flag meaning every
// local is tainted (set when tainted data reaches an eval-like call).
// A taintSet is owned by exactly one frame; branching clones it so sibling
// branches never alias state.
type taintSet struct {
	vars map[string]struct{}
	all  bool
}

func newTaintSet() *taintSet {
	return &taintSet{vars: make(map[string]struct{})}
}

func (t *taintSet) taint(name string) {
	if name != "" {
		t.vars[name] = struct{}{}
	}
}

func (t *taintSet) has(name string) bool {
	if t.all {
		return true
	}
	_, ok := t.vars[name]
	return ok
}

func (t *taintSet) clone() *taintSet {
	c := &taintSet{vars: make(map[string]struct{}, len(t.vars)), all: t.all}
	for v := range t.vars {
		c.vars[v] = struct{}{}
	}
	return c
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' || b == '.' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// identPaths extracts the identifier paths of an expression: for
// `query(req.body.name) + x` it yields "query", "req.body.name", "x".
func identPaths(expr string) []string {
	var paths []string
	i := 0
	for i < len(expr) {
		if !isIdentByte(expr[i]) || expr[i] == '.' {
			i++
			continue
		}
		j := i
		for j < len(expr) && isIdentByte(expr[j]) {
			j++
		}
		paths = append(paths, strings.Trim(expr[i:j], "."))
		i = j
	}
	return paths
}

// refsTaint reports whether an expression references a tainted variable or
// the source expression itself. A dotted path is tainted when any of its
// prefixes on a segment boundary is: `row.body` taints `row.body.name` but
// not `row.bodyguard`.
func (t *taintSet) refsTaint(expr, sourceExpr string) bool {
	if expr == "" {
		return false
	}
	for _, path := range identPaths(expr) {
		if t.all {
			return true
		}
		for prefix := path; prefix != ""; {
			if t.has(prefix) {
				return true
			}
			if sourceExpr != "" && prefix == sourceExpr {
				return true
			}
			i := strings.LastIndexByte(prefix, '.')
			if i < 0 {
				break
			}
			prefix = prefix[:i]
		}
	}
	return false
}
