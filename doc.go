// Package seminaive is a semi-naive Datalog evaluation engine: it takes a
// set of ground facts (EDBs) and a set of stratified rules (possibly
// negated or aggregated), and evaluates every intensional relation (IDB)
// to its least fixpoint, per spec.md §2.
//
// The typical caller builds a Program (DeclareRelation, AssertEDB,
// AddRule), compiles it into an Engine, and solves one or more query
// relations with SolveInterpreted or SolveCompiled -- the two executors
// are required to agree on every result.
//
// It generalizes the teacher's flat, single-file contki.go/datalog.go
// (fixed (s, p, o) triples, no negation, no aggregation, no staged
// compilation) into the layered internal/term, internal/plan,
// internal/storage, internal/ir, internal/exec package structure
// described in DESIGN.md.
package seminaive
