package storage

import (
	"testing"

	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/term"
)

func mkRel(arity int, rows ...Tuple) *Relation {
	r := NewRelation(arity)
	for _, t := range rows {
		r.Insert(t)
	}
	return r
}

// TestProjectJoinFilterTransitiveClosure exercises the hop-chain scenario
// of spec.md §8: edge(x,z) :- edge(x,y), edge(y,z).
func TestProjectJoinFilterTransitiveClosure(t *testing.T) {
	x, y, z := term.Variable(1), term.Variable(2), term.Variable(3)
	r := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{x, z}},
		Body: []term.Atom{
			{Rel: 0, Terms: []term.Term{x, y}},
			{Rel: 0, Terms: []term.Term{y, z}},
		},
	}
	ji, err := plan.Compile(r)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	edge := mkRel(2, Tuple{"a", "b"}, Tuple{"b", "c"}, Tuple{"c", "d"})
	inputs := []*Relation{edge, edge}

	out := ProjectJoinFilter(ji, inputs, 2)
	got := out.SortedStrings()
	want := []string{"[a c]", "[b d]"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
}

// TestProjectJoinFilterSelfJoinDisequal exercises the sibling self-join
// scenario of spec.md §8: sib(x,y) :- kin(p,x), kin(p,y), x != y.
func TestProjectJoinFilterSelfJoinDisequal(t *testing.T) {
	p, x, y := term.Variable(1), term.Variable(2), term.Variable(3)
	r := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{x, y}},
		Body: []term.Atom{
			{Rel: 0, Terms: []term.Term{p, x}},
			{Rel: 0, Terms: []term.Term{p, y}},
		},
		Distinct: [][2]term.Term{{x, y}},
	}
	ji, err := plan.Compile(r)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	kin := mkRel(2, Tuple{"dad", "al"}, Tuple{"dad", "bo"})
	out := ProjectJoinFilter(ji, []*Relation{kin, kin}, 2)

	got := out.SortedStrings()
	want := []string{"[al bo]", "[bo al]"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestGroupByAggregate(t *testing.T) {
	g, v := term.Variable(1), term.Variable(2)
	sum, cnt, mx := term.Variable(10), term.Variable(11), term.Variable(12)
	atom := term.Atom{
		Rel: 0,
		// Terms is the grouping atom's own materialized output tuple --
		// group-by columns followed by one column per aggregate -- which
		// is what the rest of the rule (here, the head) binds to, same as
		// any ordinary atom.
		Terms: []term.Term{g, sum, cnt, mx},
		Group: &term.GroupSpec{
			Sub: term.Atom{Rel: 0, Terms: []term.Term{g, v}},
			By:  []term.Term{g},
			Aggs: []term.AggDesc{
				{Op: term.AggSum, Term: v},
				{Op: term.AggCount, Term: v},
				{Op: term.AggMax, Term: v},
			},
		},
	}
	rule := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{g, term.Variable(10), term.Variable(11), term.Variable(12)}},
		Body: []term.Atom{atom},
	}
	ji, err := plan.Compile(rule)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	gidx := ji.GroupingIndexes[0]
	if gidx == nil {
		t.Fatal("expected a grouping index at body position 0")
	}

	sales := mkRel(2, Tuple{"east", 10}, Tuple{"east", 5}, Tuple{"west", 7})
	out := GroupByAggregate(gidx, sales)

	if out.Len() != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", out.Len(), out.SortedStrings())
	}
	for _, tup := range out.Tuples() {
		switch tup[0] {
		case "east":
			if tup[1] != int64(15) || tup[2] != int64(2) || tup[3] != 10 {
				t.Errorf("unexpected east aggregates: %v", tup)
			}
		case "west":
			if tup[1] != int64(7) || tup[2] != int64(1) || tup[3] != 7 {
				t.Errorf("unexpected west aggregates: %v", tup)
			}
		default:
			t.Errorf("unexpected group key: %v", tup)
		}
	}
}

func TestComplementFallsBackToOccurrenceDomain(t *testing.T) {
	db := New()
	db.RegisterEDB(0, 1) // p(x)
	db.RegisterIDB(1, 1) // q(x), empty
	db.AssertEDB(0, Tuple{"a"})
	db.AssertEDB(0, Tuple{"b"})
	db.InitEvaluation([]term.RelID{0})

	info := &plan.NegInfo{PerPos: []plan.NegPos{
		{Occurrences: []plan.Occurrence{{Rel: 0, Col: 0}}},
	}}
	out := Complement(db, 1, 1, info)
	got := out.SortedStrings()
	want := []string{"[a]", "[b]"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
