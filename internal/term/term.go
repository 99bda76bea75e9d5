// Package term implements the tagged-union value model of the engine:
// constants, variables, atoms and rules. It is the leaf package every
// other package in the module builds on, mirroring the flat Vocabulary
// section of the teacher's datalog.go/database.go but generalized from
// fixed-arity (s, p, o) triples to n-ary relations.
package term

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// RelID identifies a relation (EDB or IDB) by a small integer, assigned
// by the program builder when a relation name is first declared.
type RelID int32

// VarID identifies a variable by the object id assigned to it when
// declared. Two variables are the same iff they carry the same VarID;
// anonymous variables are always distinct from one another even when
// declared with the same name, by being handed unique ids upstream.
type VarID int64

// Value is a constant from the host's value space. It must be a
// comparable Go value (string, integer, bool, ...) so that it can be
// used as a map key and compared with ==, per spec.md's "opaque,
// equality- and hash-comparable atom of the host's value space".
type Value interface{}

type kind uint8

const (
	kindConstant kind = iota
	kindVariable
)

// Term is a tagged-union value: either a Constant or a Variable.
type Term struct {
	kind      kind
	constant  Value
	variable  VarID
	anonymous bool
}

// Constant builds a constant term.
func Constant(v Value) Term { return Term{kind: kindConstant, constant: v} }

// Variable builds a named (non-anonymous) variable term.
func Variable(id VarID) Term { return Term{kind: kindVariable, variable: id} }

// Anonymous builds an anonymous variable term. Anonymous variables are
// never equated to one another even when constructed with the same id;
// callers must still supply a unique id per occurrence since equality
// here is purely structural (id equality), the "never equated" rule is
// enforced by the planner, which excludes anonymous variables from
// varIndexes/cxns altogether (see plan.go).
func Anonymous(id VarID) Term { return Term{kind: kindVariable, variable: id, anonymous: true} }

func (t Term) IsConstant() bool { return t.kind == kindConstant }
func (t Term) IsVariable() bool { return t.kind == kindVariable }
func (t Term) IsAnonymous() bool { return t.kind == kindVariable && t.anonymous }

// ConstantValue panics if t is not a constant.
func (t Term) ConstantValue() Value {
	if t.kind != kindConstant {
		panic("term: ConstantValue called on a variable term")
	}
	return t.constant
}

// VarID panics if t is not a variable.
func (t Term) VarID() VarID {
	if t.kind != kindVariable {
		panic("term: VarID called on a constant term")
	}
	return t.variable
}

func (t Term) String() string {
	if t.IsConstant() {
		return fmt.Sprintf("%v", t.constant)
	}
	if t.anonymous {
		return fmt.Sprintf("_%d", t.variable)
	}
	return fmt.Sprintf("?%d", t.variable)
}

func (t Term) hash(h *xxhash.Digest) {
	if t.IsConstant() {
		h.Write([]byte{byte(kindConstant)})
		fmt.Fprintf(h, "%v", t.constant)
		return
	}
	h.Write([]byte{byte(kindVariable)})
	if !t.anonymous {
		return
	}
	h.Write([]byte{1})
	// Named variables fold in nothing past the kindVariable tag: the
	// hash is shape-only, not identity-only for anonymous ids.
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(t.variable >> (8 * i))
	}
	h.Write(buf[:])
}

// AggOp is an aggregation operator applicable to a grouping atom.
type AggOp uint8

const (
	AggSum AggOp = iota
	AggCount
	AggMin
	AggMax
)

func (op AggOp) String() string {
	switch op {
	case AggSum:
		return "SUM"
	case AggCount:
		return "COUNT"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

// AggDesc is one (op, term) pair in a grouping atom's ags list.
type AggDesc struct {
	Op   AggOp
	Term Term
}

// GroupSpec carries the extra fields a grouping atom has on top of a
// plain atom: the grouped sub-atom, the group-by variables and the
// ordered aggregation descriptors.
type GroupSpec struct {
	Sub  Atom
	By   []Term
	Aggs []AggDesc
}

// Atom is a relationId plus an ordered tuple of terms plus flags for
// negation/grouping, per spec.md §3.
type Atom struct {
	Rel     RelID
	Terms   []Term
	Negated bool
	Group   *GroupSpec // non-nil iff this is a grouping atom
}

// IsGrouping reports whether a is a grouping atom.
func (a Atom) IsGrouping() bool { return a.Group != nil }

// IsGround reports whether every term in a is a constant.
func (a Atom) IsGround() bool {
	for _, t := range a.Terms {
		if !t.IsConstant() {
			return false
		}
	}
	return true
}

func (a Atom) String() string {
	s := fmt.Sprintf("rel%d(", a.Rel)
	for i, t := range a.Terms {
		if i > 0 {
			s += ", "
		}
		s += t.String()
	}
	s += ")"
	if a.Negated {
		s = "!" + s
	}
	return s
}

// Hash returns a stable hash of a that depends only on its relation id,
// the shape (variable vs. constant, anonymous vs. not) of its terms,
// its constant values, the ids of its anonymous variables, and its
// negation/grouping flags -- never on the ids of named variables. Per spec.md §9 ("Hashing of atoms for planner
// caches"), this is what the planner's per-rule / per-atom caches key
// on.
func (a Atom) Hash() uint64 {
	h := xxhash.New()
	var relBuf [4]byte
	for i := 0; i < 4; i++ {
		relBuf[i] = byte(a.Rel >> (8 * i))
	}
	h.Write(relBuf[:])
	if a.Negated {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	for _, t := range a.Terms {
		t.hash(h)
	}
	if a.Group != nil {
		h.Write([]byte{2})
		subHash := a.Group.Sub.Hash()
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(subHash >> (8 * i))
		}
		h.Write(buf[:])
		for _, v := range a.Group.By {
			v.hash(h)
		}
		for _, ag := range a.Group.Aggs {
			h.Write([]byte{byte(ag.Op)})
			ag.Term.hash(h)
		}
	}
	return h.Sum64()
}

// Rule is a non-empty ordered sequence: Head plus Body, per spec.md §3.
// Distinct carries explicit disequality constraints (x != y) between
// two body terms; the grammar spec.md describes has no dedicated
// syntax for these (its self-join scenario in §8 states "x≠y" in prose
// only), so this is the supplemented, minimal surface for it -- see
// SPEC_FULL.md §12.
type Rule struct {
	Head     Atom
	Body     []Atom
	Distinct [][2]Term
}

// Hash is the rule hash used to key the planner's JoinIndexes cache: the
// concatenation of the head's hash and every body atom's hash, in
// order, per spec.md §4.2.
func (r Rule) Hash() uint64 {
	h := xxhash.New()
	var buf [8]byte
	write := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	write(r.Head.Hash())
	for _, b := range r.Body {
		write(b.Hash())
	}
	return h.Sum64()
}

// PermutationHash hashes r's body under a given ordering of body
// positions, used to key per-permutation JoinIndexes (e.g. from
// allOrders) separately from the canonical rule hash.
func (r Rule) PermutationHash(order []int) uint64 {
	h := xxhash.New()
	var buf [8]byte
	write := func(v uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(v >> (8 * i))
		}
		h.Write(buf[:])
	}
	write(r.Head.Hash())
	for _, idx := range order {
		write(r.Body[idx].Hash())
	}
	return h.Sum64()
}

// Arity returns the number of terms in a.
func (a Atom) Arity() int { return len(a.Terms) }

// SortedRelIDs is a small helper used by callers that need deterministic
// iteration over a set of relation ids (maps don't guarantee order).
func SortedRelIDs(set map[RelID]struct{}) []RelID {
	out := make([]RelID, 0, len(set))
	for r := range set {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
