// Package ir defines the relational operator tree described by spec.md
// §4.3: a solve is a tree of Node values that, traversed, computes a
// relation. It replaces the teacher's implicit evaluation loop (datalog.go
// re-derives facts inline inside solve()/hasFact() with no intermediate
// representation at all) with an explicit, inspectable program so that
// the interpreted and staged executors in package exec can share one
// tree-builder and differ only in how they walk it.
package ir

import (
	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/term"
)

// Gen selects which generation of storage a ScanOp reads from or an
// InsertOp writes to.
type Gen uint8

const (
	EDB Gen = iota
	Known
	New
	Delta     // Δ-known: the delta generation currently visible as input
	DeltaNew  // Δ-new: the delta generation an InsertOp writes to
)

// TestKind selects a DoWhileOp's termination test.
type TestKind uint8

const (
	DeltaEmptyTest TestKind = iota
	FixpointReachedTest
)

// Node is one operator in the program tree.
type Node interface{ isNode() }

// ScanOp reads one generation of one relation.
type ScanOp struct {
	Rel term.RelID
	Gen Gen
}

// ProjectJoinFilterOp evaluates a rule body (or one of its semi-naive
// delta variants) against Inputs, per Join. Rule is carried only so the
// executors can perform online reordering (spec.md §4.4); it is never
// consulted when JIT sortOrder is Unordered.
type ProjectJoinFilterOp struct {
	Rel    term.RelID
	Join   *plan.JoinIndexes
	Rule   term.Rule
	Inputs []Node
	Arity  int
}

// UnionOp is the multiset union of Children.
type UnionOp struct {
	Children []Node
	Arity    int
}

// DiffOp is the set difference Left \ Right.
type DiffOp struct {
	Left, Right Node
	Arity       int
}

// ComplementOp materializes the complement of a negated atom over its
// inferred universe.
type ComplementOp struct {
	Rel   term.RelID
	Info  *plan.NegInfo
	Arity int
}

// GroupOp partitions Input by GIdx's group-by columns and reduces each
// partition via GIdx's aggregation sources.
type GroupOp struct {
	Input Node
	GIdx  *plan.GroupingIndex
}

// InsertOp writes Value's result into generation Gen of relation Rel.
type InsertOp struct {
	Rel   term.RelID
	Gen   Gen
	Value Node
}

// SwapAndClearOp swaps known/new and clears the now-new-derived
// generation for the next semi-naive iteration.
type SwapAndClearOp struct{}

// SequenceOp executes Children in order.
type SequenceOp struct {
	Children []Node
}

// DoWhileOp runs Body at least once, repeating until Test holds.
type DoWhileOp struct {
	Test TestKind
	Body Node
}

func (*ScanOp) isNode()               {}
func (*ProjectJoinFilterOp) isNode()  {}
func (*UnionOp) isNode()              {}
func (*DiffOp) isNode()               {}
func (*ComplementOp) isNode()         {}
func (*GroupOp) isNode()              {}
func (*InsertOp) isNode()             {}
func (*SwapAndClearOp) isNode()       {}
func (*SequenceOp) isNode()           {}
func (*DoWhileOp) isNode()            {}
