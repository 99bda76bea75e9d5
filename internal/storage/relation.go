// Package storage is the relational storage manager: it owns EDBs, the
// two known/new generations of derived IDBs, and the matching delta
// generations, and exposes the relational primitives the planner's
// JoinIndexes drive (scan, union, diff, projectJoinFilter, complement,
// groupByAggregate) per spec.md §4.1.
//
// It generalizes the teacher's database.go, which stores a single
// fixed-arity (s, p, o) relation per predicate as a plain []Atom slice
// with a linear relKnows scan, to n-ary tuples backed by a
// github.com/google/btree ordered set (grounded on
// cockroachdb-cockroach/go.mod, which requires google/btree directly)
// so that membership/dedup is O(log n) and iteration order is
// deterministic.
package storage

import (
	"fmt"
	"sort"

	"github.com/google/btree"

	"github.com/mwelt/seminaive/internal/term"
)

// Tuple is a ground fact's ordered argument values.
type Tuple []term.Value

func (t Tuple) String() string {
	return fmt.Sprintf("%v", []term.Value(t))
}

// compareValues gives a total order over the host's value space so that
// Tuple can be stored in an ordered btree. string, int, int64, float64
// and bool are compared natively against a value of the same type;
// anything else falls back to comparing the %T:%v representation, which
// is stable for a given run.
func compareValues(a, b term.Value) int {
	switch av := a.(type) {
	case string:
		if bv, ok := b.(string); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case int:
		if bv, ok := b.(int); ok {
			return compareInt64(int64(av), int64(bv))
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return compareInt64(av, bv)
		}
	case float64:
		if bv, ok := b.(float64); ok {
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			default:
				return 0
			}
		}
	case bool:
		if bv, ok := b.(bool); ok {
			if av == bv {
				return 0
			}
			if !av && bv {
				return -1
			}
			return 1
		}
	}
	as, bs := fmt.Sprintf("%T:%v", a, a), fmt.Sprintf("%T:%v", b, b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareTuples(a, b Tuple) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

func tupleLess(a, b Tuple) bool { return compareTuples(a, b) < 0 }

// Relation is an unordered multiset of tuples, stored with duplicate
// suppression: every insertion runs through the ordered index so a
// Relation never actually holds two equal tuples (the teacher instead
// lets duplicates accumulate freely in EDB/IDB slices and only
// deduplicates at union boundaries; keeping the Relation itself
// duplicate-free is equivalent for every read/termination-test operator
// below and cheaper for the diff/membership-heavy semi-naive loop).
type Relation struct {
	arity  int
	order  []Tuple // insertion order, for operators that must preserve it (projectJoinFilter)
	index  *btree.BTreeG[Tuple]
}

// NewRelation returns an empty relation of the given arity.
func NewRelation(arity int) *Relation {
	return &Relation{
		arity: arity,
		index: btree.NewG(32, func(a, b Tuple) bool { return tupleLess(a, b) }),
	}
}

func (r *Relation) Arity() int { return r.arity }
func (r *Relation) Len() int   { return r.index.Len() }
func (r *Relation) Empty() bool { return r.index.Len() == 0 }

// Has reports whether t is present in r.
func (r *Relation) Has(t Tuple) bool {
	if r == nil {
		return false
	}
	_, ok := r.index.Get(t)
	return ok
}

// Insert adds t to r if not already present, returning true iff it was
// newly added.
func (r *Relation) Insert(t Tuple) bool {
	if r.Has(t) {
		return false
	}
	r.index.ReplaceOrInsert(t)
	r.order = append(r.order, t)
	return true
}

// Tuples returns r's tuples in insertion order. Callers must not mutate
// the returned slice.
func (r *Relation) Tuples() []Tuple { return r.order }

// Clone returns a deep-enough copy of r (tuples are not themselves
// mutated by any operator, so sharing Value slices is safe).
func (r *Relation) Clone() *Relation {
	r2 := NewRelation(r.arity)
	for _, t := range r.order {
		r2.Insert(t)
	}
	return r2
}

// SortedStrings is a debugging/test helper returning a deterministically
// ordered string rendering of every tuple in r.
func (r *Relation) SortedStrings() []string {
	out := make([]string, 0, r.Len())
	r.index.Ascend(func(t Tuple) bool {
		out = append(out, t.String())
		return true
	})
	sort.Strings(out)
	return out
}

// Union returns the multiset union (duplicate-eliminating, per spec.md
// §4.1) of rels, in the order they're given and, within each, insertion
// order.
func Union(arity int, rels ...*Relation) *Relation {
	out := NewRelation(arity)
	for _, r := range rels {
		if r == nil {
			continue
		}
		for _, t := range r.order {
			out.Insert(t)
		}
	}
	return out
}

// Diff returns the tuples in l not in r, preserving l's order, per
// spec.md §4.1.
func Diff(l, r *Relation) *Relation {
	out := NewRelation(l.arity)
	for _, t := range l.order {
		if r == nil || !r.Has(t) {
			out.Insert(t)
		}
	}
	return out
}

// Equal reports whether l and r contain exactly the same set of tuples
// (used by Database.FixpointReached, spec.md §4.1).
func Equal(l, r *Relation) bool {
	if l == nil {
		l = NewRelation(0)
	}
	if r == nil {
		r = NewRelation(0)
	}
	if l.Len() != r.Len() {
		return false
	}
	for _, t := range l.order {
		if !r.Has(t) {
			return false
		}
	}
	return true
}
