package executor

import (
	"strings"

	"github.com/aleksaelezovic/trigoql/pkg/rdf"
)

// BindingSet maps variable names to terms. A name mapped to nil is known
// but unbound. BindingSets are treated as values: every extension copies.
type BindingSet map[string]rdf.Term

// Get returns the term bound to name. Unbound and absent names report false.
func (b BindingSet) Get(name string) (rdf.Term, bool) {
	t, ok := b[name]
	return t, ok && t != nil
}

// Compatible reports whether every variable bound in both sets is bound to
// the same term.
func (b BindingSet) Compatible(other BindingSet) bool {
	small, large := b, other
	if len(small) > len(large) {
		small, large = large, small
	}
	for name, t := range small {
		if t == nil {
			continue
		}
		if u, ok := large[name]; ok && u != nil && !t.Equals(u) {
			return false
		}
	}
	return true
}

// Merge returns the union of both sets. A bound value wins over an unbound
// one; compatibility is the caller's concern.
func (b BindingSet) Merge(other BindingSet) BindingSet {
	merged := make(BindingSet, len(b)+len(other))
	for name, t := range b {
		merged[name] = t
	}
	for name, t := range other {
		if t != nil || merged[name] == nil {
			merged[name] = t
		}
	}
	return merged
}

// IsFullyBound reports whether no variable of the set is unbound.
func (b BindingSet) IsFullyBound() bool {
	for _, t := range b {
		if t == nil {
			return false
		}
	}
	return true
}

func (b BindingSet) Clone() BindingSet {
	clone := make(BindingSet, len(b))
	for name, t := range b {
		clone[name] = t
	}
	return clone
}

// Project keeps the named variables. A nil list keeps everything.
func (b BindingSet) Project(vars []string) BindingSet {
	if vars == nil {
		return b.Clone()
	}
	projected := make(BindingSet, len(vars))
	for _, name := range vars {
		projected[name] = b[name]
	}
	return projected
}

// Row returns the terms of vars in order, nil for unbound.
func (b BindingSet) Row(vars []string) []rdf.Term {
	row := make([]rdf.Term, len(vars))
	for i, name := range vars {
		row[i], _ = b.Get(name)
	}
	return row
}

// rowKey identifies a row for duplicate elimination.
func rowKey(row []rdf.Term) string {
	var sb strings.Builder
	for _, t := range row {
		if t != nil {
			sb.WriteString(t.String())
		}
		sb.WriteByte(0)
	}
	return sb.String()
}
