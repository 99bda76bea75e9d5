package storage

import (
	"github.com/pkg/errors"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/term"
)

// Database is the storage manager: it holds EDBs, two generations of
// derived IDBs ("known" and "new"), and two generations of deltas, per
// spec.md §3/§4.1. It generalizes the teacher's Database (database.go),
// which keeps a single idb/edb map of fixed-arity triples and swaps
// nothing (teacher re-evaluates eagerly, never literally swapping
// generation ids); the known/new split here exists so that
// SwapKnowledge never copies relation contents, only flips which
// physical slot is "known" -- per spec.md §9 ("never copy relations;
// swap identifiers").
type Database struct {
	arity map[term.RelID]int
	edb   map[term.RelID]*Relation

	// idb[g][rel] is the derived relation for generation g. known
	// selects which of idb[0]/idb[1] is currently "known"; "new" is
	// always 1-known.
	idb   [2]map[term.RelID]*Relation
	delta [2]map[term.RelID]*Relation
	known int

	iteration int

	// isIDB records which relations are produced by some rule head (as
	// opposed to being pure EDB relations); used to implement the
	// "derived side falls back to EDB when empty" rule from spec.md §4.1
	// and to decide, at InitEvaluation, which relations get seeded.
	isIDB map[term.RelID]bool

	// commits gets one (nil) entry per registered EDB relation and is
	// not read anywhere; Mark/Revert carry their watermarks in the
	// returned Mark value instead.
	commits map[term.RelID][]int
}

// New returns an empty storage manager.
func New() *Database {
	return &Database{
		arity: make(map[term.RelID]int),
		edb:   make(map[term.RelID]*Relation),
		idb: [2]map[term.RelID]*Relation{
			make(map[term.RelID]*Relation),
			make(map[term.RelID]*Relation),
		},
		delta: [2]map[term.RelID]*Relation{
			make(map[term.RelID]*Relation),
			make(map[term.RelID]*Relation),
		},
		isIDB:   make(map[term.RelID]bool),
		commits: make(map[term.RelID][]int),
	}
}

// RegisterEDB declares rel as an extensional relation of the given
// arity, if not already known.
func (d *Database) RegisterEDB(rel term.RelID, arity int) {
	if _, ok := d.arity[rel]; !ok {
		d.arity[rel] = arity
	}
	if _, ok := d.edb[rel]; !ok {
		d.edb[rel] = NewRelation(arity)
		d.commits[rel] = nil
	}
}

// RegisterIDB declares rel as an intensional relation of the given
// arity, if not already known.
func (d *Database) RegisterIDB(rel term.RelID, arity int) {
	if _, ok := d.arity[rel]; !ok {
		d.arity[rel] = arity
	}
	d.isIDB[rel] = true
	for g := 0; g < 2; g++ {
		if _, ok := d.idb[g][rel]; !ok {
			d.idb[g][rel] = NewRelation(arity)
			d.delta[g][rel] = NewRelation(arity)
		}
	}
}

// IsIDB reports whether rel is produced by some rule head.
func (d *Database) IsIDB(rel term.RelID) bool { return d.isIDB[rel] }

// IsEDB reports whether rel has ever been registered as an EDB
// relation.
func (d *Database) IsEDB(rel term.RelID) bool {
	_, ok := d.edb[rel]
	return ok
}

// Arity returns rel's declared arity, or ErrUnknownRelation.
func (d *Database) Arity(rel term.RelID) (int, error) {
	a, ok := d.arity[rel]
	if !ok {
		return 0, errors.Wrapf(errs.ErrUnknownRelation, "rel %d", rel)
	}
	return a, nil
}

// AssertEDB appends a ground tuple to rel's EDB relation, per spec.md
// §4.1 ("insertEDB(atom)"). It registers rel as an EDB relation first
// if unknown, matching the teacher's addAtom fallback registration.
func (d *Database) AssertEDB(rel term.RelID, t Tuple) error {
	arity, ok := d.arity[rel]
	if !ok {
		d.RegisterEDB(rel, len(t))
		arity = len(t)
	}
	if len(t) != arity {
		return errors.Wrapf(errs.ErrArityMismatch, "rel %d: expected arity %d, got %d", rel, arity, len(t))
	}
	if _, ok := d.edb[rel]; !ok {
		d.RegisterEDB(rel, arity)
	}
	d.edb[rel].Insert(t)
	return nil
}

// EDB returns rel's raw extensional relation (never nil).
func (d *Database) EDB(rel term.RelID) *Relation {
	r, ok := d.edb[rel]
	if !ok {
		return NewRelation(d.arity[rel])
	}
	return r
}

// Known returns rel's known-generation derived relation, falling back
// to the EDB relation when rel is not an IDB relation at all, per
// spec.md §4.1 and the Open Question in §9 ("EDBs are implicit members
// of every generation").
func (d *Database) Known(rel term.RelID) *Relation {
	if !d.isIDB[rel] {
		return d.EDB(rel)
	}
	return d.idb[d.known][rel]
}

// New returns rel's new-generation derived relation.
func (d *Database) New(rel term.RelID) *Relation {
	if !d.isIDB[rel] {
		return d.EDB(rel)
	}
	return d.idb[1-d.known][rel]
}

// KnownDelta returns rel's currently-visible delta generation. A pure EDB
// relation (one with no defining rule, so never registered via
// RegisterIDB) has no tracked delta generation at all; per the "EDBs are
// implicit members of every generation" resolution (SPEC_FULL.md §9), its
// delta is the full EDB snapshot on the solve's first iteration only --
// mirroring the teacher's semantics where base facts are all "new" the
// moment evaluation starts, and never again -- and empty afterwards.
func (d *Database) KnownDelta(rel term.RelID) *Relation {
	if !d.isIDB[rel] {
		if d.iteration == 0 {
			return d.EDB(rel)
		}
		return NewRelation(d.arity[rel])
	}
	return d.delta[d.known][rel]
}

// NewDelta returns rel's new-generation delta. Only relations with a
// defining rule are ever written here.
func (d *Database) NewDelta(rel term.RelID) *Relation { return d.delta[1-d.known][rel] }

// ResetNew overwrites rel's new-generation derived relation.
func (d *Database) ResetNew(rel term.RelID, val *Relation) {
	d.idb[1-d.known][rel] = val
}

// ResetNewDelta overwrites rel's new-generation delta relation.
func (d *Database) ResetNewDelta(rel term.RelID, val *Relation) {
	d.delta[1-d.known][rel] = val
}

// SwapKnowledge swaps the known/new generation ids and clears the
// now-new-derived (and now-new-delta) relations for the next iteration,
// per spec.md §3 ("only the identity of the generation changes, never
// contents copied") and §4.3's SwapAndClearOp.
func (d *Database) SwapKnowledge() {
	d.known = 1 - d.known
	d.iteration++
	for rel := range d.idb[1-d.known] {
		arity := d.arity[rel]
		d.idb[1-d.known][rel] = NewRelation(arity)
		d.delta[1-d.known][rel] = NewRelation(arity)
	}
}

// Iteration returns the number of swaps performed so far in the current
// solve.
func (d *Database) Iteration() int { return d.iteration }

// Stats summarizes the current known/delta generation sizes across every
// IDB relation, for the driver's per-iteration log line (SPEC_FULL.md
// §10).
func (d *Database) Stats() (knownTuples, deltaTuples, relations int) {
	for rel, r := range d.idb[d.known] {
		knownTuples += r.Len()
		deltaTuples += d.delta[d.known][rel].Len()
		relations++
	}
	return
}

// DeltaEmpty reports whether every relation in the delta generation
// written by the last iteration is empty, the semi-naive loop's
// termination test (spec.md §4.1/§4.6). The loop body ends with
// SwapKnowledge, so by the time the test runs that delta is the known
// one.
func (d *Database) DeltaEmpty() bool {
	for _, r := range d.delta[d.known] {
		if !r.Empty() {
			return false
		}
	}
	return true
}

// FixpointReached reports whether the known and new derived databases
// are element-equal, the alternative termination test of spec.md §4.1.
func (d *Database) FixpointReached() bool {
	for rel, known := range d.idb[d.known] {
		if !Equal(known, d.idb[1-d.known][rel]) {
			return false
		}
	}
	return true
}

// InitEvaluation clears derived and delta databases and seeds the known
// derived and known delta generations with the EDB facts of every
// relation in relevantEDBs (the relations referenced in some rule body)
// that is also an IDB relation. Pure EDB relations are not copied:
// Known and KnownDelta read them from the EDB directly.
func (d *Database) InitEvaluation(relevantEDBs []term.RelID) {
	d.known = 0
	d.iteration = 0
	for g := 0; g < 2; g++ {
		for rel := range d.idb[g] {
			arity := d.arity[rel]
			d.idb[g][rel] = NewRelation(arity)
			d.delta[g][rel] = NewRelation(arity)
		}
	}
	for _, rel := range relevantEDBs {
		if !d.isIDB[rel] {
			continue
		}
		if edb, ok := d.edb[rel]; ok {
			d.idb[d.known][rel] = edb.Clone()
			// The initial delta is the full EDB seed: the first
			// semi-naive round must still see these facts as "new" so
			// that rules firing on them get a chance to derive from
			// them.
			d.delta[d.known][rel] = edb.Clone()
		}
	}
}

// Mark returns a watermark usable with Revert to undo every AssertEDB
// call made since. This is the supplemented commit/revert journal from
// SPEC_FULL.md §12, grounded on the teacher's commit()/revert()
// (database.go), generalized from a single global commit stack per
// relation to an explicit, composable Mark/Revert pair.
type Mark map[term.RelID]int

func (d *Database) Mark() Mark {
	m := make(Mark, len(d.edb))
	for rel, r := range d.edb {
		m[rel] = r.Len()
	}
	return m
}

// Revert truncates every EDB relation back to the length recorded in m,
// dropping any tuple asserted since. Relations registered after m was
// taken are cleared entirely.
func (d *Database) Revert(m Mark) {
	for rel, r := range d.edb {
		watermark, ok := m[rel]
		if !ok {
			watermark = 0
		}
		if watermark >= r.Len() {
			continue
		}
		kept := r.Tuples()[:watermark]
		fresh := NewRelation(r.Arity())
		for _, t := range kept {
			fresh.Insert(t)
		}
		d.edb[rel] = fresh
	}
}
