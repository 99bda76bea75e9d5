package exec

import (
	"testing"

	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/storage"
	"github.com/mwelt/seminaive/internal/term"
)

const (
	relEdge term.RelID = iota
	relReach
	relP
	relQ
	relR
)

func newTestDB() *storage.Database {
	db := storage.New()
	db.RegisterEDB(relEdge, 2)
	db.RegisterIDB(relReach, 2)
	return db
}

// TestTransitiveClosureEquivalence exercises spec.md §8's transitive
// closure scenario and checks interpreted/compiled agreement.
func TestTransitiveClosureEquivalence(t *testing.T) {
	x, y, z := term.Variable(1), term.Variable(2), term.Variable(3)
	rules := []term.Rule{
		{Head: term.Atom{Rel: relReach, Terms: []term.Term{x, y}}, Body: []term.Atom{{Rel: relEdge, Terms: []term.Term{x, y}}}},
		{Head: term.Atom{Rel: relReach, Terms: []term.Term{x, z}}, Body: []term.Atom{
			{Rel: relEdge, Terms: []term.Term{x, y}},
			{Rel: relReach, Terms: []term.Term{y, z}},
		}},
	}
	strata, err := plan.Stratify(rules)
	if err != nil {
		t.Fatalf("stratify: %v", err)
	}

	run := func() []string {
		db := newTestDB()
		db.AssertEDB(relEdge, storage.Tuple{"a", "b"})
		db.AssertEDB(relEdge, storage.Tuple{"b", "c"})
		db.AssertEDB(relEdge, storage.Tuple{"c", "d"})
		cache := plan.NewCache()
		out, err := SolveInterpreted(db, strata, cache, []term.RelID{relEdge}, relReach, nil)
		if err != nil {
			t.Fatalf("solve interpreted: %v", err)
		}
		return out.SortedStrings()
	}
	got := run()
	want := []string{"[a b]", "[a c]", "[a d]", "[b c]", "[b d]", "[c d]"}
	if len(got) != len(want) {
		t.Fatalf("interpreted: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("interpreted: got %v, want %v", got, want)
		}
	}

	db2 := newTestDB()
	db2.AssertEDB(relEdge, storage.Tuple{"a", "b"})
	db2.AssertEDB(relEdge, storage.Tuple{"b", "c"})
	db2.AssertEDB(relEdge, storage.Tuple{"c", "d"})
	cache2 := plan.NewCache()
	outC, err := SolveCompiled(db2, strata, cache2, []term.RelID{relEdge}, relReach, nil)
	if err != nil {
		t.Fatalf("solve compiled: %v", err)
	}
	gotC := outC.SortedStrings()
	if len(gotC) != len(want) {
		t.Fatalf("compiled: got %v, want %v", gotC, want)
	}
	for i := range want {
		if gotC[i] != want[i] {
			t.Fatalf("compiled: got %v, want %v", gotC, want)
		}
	}
}

// TestNegationStratification exercises spec.md §8's negation scenario:
// r(x) :- p(x), !q(x).
func TestNegationStratification(t *testing.T) {
	x := term.Variable(1)
	rules := []term.Rule{
		{Head: term.Atom{Rel: relR, Terms: []term.Term{x}}, Body: []term.Atom{
			{Rel: relP, Terms: []term.Term{x}},
			{Rel: relQ, Terms: []term.Term{x}, Negated: true},
		}},
	}
	strata, err := plan.Stratify(rules)
	if err != nil {
		t.Fatalf("stratify: %v", err)
	}
	if len(strata) != 1 {
		t.Fatalf("expected a single stratum, got %d", len(strata))
	}

	db := storage.New()
	db.RegisterEDB(relP, 1)
	db.RegisterEDB(relQ, 1)
	db.RegisterIDB(relR, 1)
	db.AssertEDB(relP, storage.Tuple{"a"})
	db.AssertEDB(relP, storage.Tuple{"b"})
	db.AssertEDB(relQ, storage.Tuple{"b"})

	cache := plan.NewCache()
	out, err := SolveInterpreted(db, strata, cache, []term.RelID{relP, relQ}, relR, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	got := out.SortedStrings()
	want := []string{"[a]"}
	if len(got) != 1 || got[0] != want[0] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// TestSortOrderInsensitivity checks that every SortOrder reaches the same
// fixpoint for the transitive closure program.
func TestSortOrderInsensitivity(t *testing.T) {
	x, y, z := term.Variable(1), term.Variable(2), term.Variable(3)
	rules := []term.Rule{
		{Head: term.Atom{Rel: relReach, Terms: []term.Term{x, y}}, Body: []term.Atom{{Rel: relEdge, Terms: []term.Term{x, y}}}},
		{Head: term.Atom{Rel: relReach, Terms: []term.Term{x, z}}, Body: []term.Atom{
			{Rel: relEdge, Terms: []term.Term{x, y}},
			{Rel: relReach, Terms: []term.Term{y, z}},
		}},
	}
	strata, err := plan.Stratify(rules)
	if err != nil {
		t.Fatalf("stratify: %v", err)
	}

	for _, order := range []plan.SortOrder{plan.Unordered, plan.Sel, plan.Mixed, plan.IntMax, plan.Worst} {
		db := newTestDB()
		db.AssertEDB(relEdge, storage.Tuple{"a", "b"})
		db.AssertEDB(relEdge, storage.Tuple{"b", "c"})
		cache := plan.NewCache()
		out, err := SolveInterpreted(db, strata, cache, []term.RelID{relEdge}, relReach, &Options{SortOrder: order, OnlineSort: OnlineSortPerStep, Cache: cache})
		if err != nil {
			t.Fatalf("order %v: solve: %v", order, err)
		}
		got := out.SortedStrings()
		want := []string{"[a b]", "[a c]", "[b c]"}
		if len(got) != len(want) {
			t.Fatalf("order %v: got %v, want %v", order, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("order %v: got %v, want %v", order, got, want)
			}
		}
	}
}
