package seminaive

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/mwelt/seminaive/internal/errs"
)

func TestTransitiveClosure(t *testing.T) {
	p := NewProgram()
	edge := p.DeclareRelation("edge")
	reach := p.DeclareRelation("reach")

	x, y, z := Variable(p.DeclareVariable()), Variable(p.DeclareVariable()), Variable(p.DeclareVariable())

	if err := p.AddRule(Rule{Head: Atom{Rel: reach, Terms: []Term{x, y}}, Body: []Atom{{Rel: edge, Terms: []Term{x, y}}}}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRule(Rule{
		Head: Atom{Rel: reach, Terms: []Term{x, z}},
		Body: []Atom{
			{Rel: edge, Terms: []Term{x, y}},
			{Rel: reach, Terms: []Term{y, z}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	for _, e := range []Tuple{{"a", "b"}, {"b", "c"}, {"c", "d"}} {
		if err := p.AssertEDB(edge, e); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	want := []string{"[a b]", "[a c]", "[a d]", "[b c]", "[b d]", "[c d]"}
	checkRelation(t, eng, reach, want, false)
	checkRelation(t, eng, reach, want, true)
}

func TestAggregationSum(t *testing.T) {
	p := NewProgram()
	sales := p.DeclareRelation("sales")
	total := p.DeclareRelation("total")

	g, v := Variable(p.DeclareVariable()), Variable(p.DeclareVariable())
	sum := Variable(p.DeclareVariable())
	groupHead := Atom{
		Rel:   sales,
		Terms: []Term{g, sum}, // the grouping atom's own materialized output
		Group: &GroupSpec{
			Sub:  Atom{Rel: sales, Terms: []Term{g, v}},
			By:   []Term{g},
			Aggs: []AggDesc{{Op: Sum, Term: v}},
		},
	}
	if err := p.AddRule(Rule{Head: Atom{Rel: total, Terms: []Term{g, sum}}, Body: []Atom{groupHead}}); err != nil {
		t.Fatal(err)
	}

	for _, r := range []Tuple{{"east", 10}, {"east", 5}, {"west", 7}} {
		if err := p.AssertEDB(sales, r); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := eng.SolveInterpreted(total)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("expected 2 groups, got %v", out.SortedStrings())
	}
}

// TestAggregationCountMinMax covers the COUNT/MIN/MAX aggregate
// operators, complementing TestAggregationSum's coverage of SUM.
func TestAggregationCountMinMax(t *testing.T) {
	p := NewProgram()
	sales := p.DeclareRelation("sales")
	stats := p.DeclareRelation("stats")

	g, v := Variable(p.DeclareVariable()), Variable(p.DeclareVariable())
	cnt, mn, mx := Variable(p.DeclareVariable()), Variable(p.DeclareVariable()), Variable(p.DeclareVariable())
	groupHead := Atom{
		Rel:   sales,
		Terms: []Term{g, cnt, mn, mx},
		Group: &GroupSpec{
			Sub: Atom{Rel: sales, Terms: []Term{g, v}},
			By:  []Term{g},
			Aggs: []AggDesc{
				{Op: Count, Term: v},
				{Op: Min, Term: v},
				{Op: Max, Term: v},
			},
		},
	}
	if err := p.AddRule(Rule{Head: Atom{Rel: stats, Terms: []Term{g, cnt, mn, mx}}, Body: []Atom{groupHead}}); err != nil {
		t.Fatal(err)
	}

	for _, r := range []Tuple{{"east", 10}, {"east", 5}, {"east", 20}, {"west", 7}} {
		if err := p.AssertEDB(sales, r); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := eng.SolveInterpreted(stats)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("expected 2 groups, got %v", out.SortedStrings())
	}
	for _, tup := range out.Tuples() {
		switch tup[0] {
		case "east":
			if tup[1] != int64(3) || tup[2] != 5 || tup[3] != 20 {
				t.Errorf("unexpected east stats: %v", tup)
			}
		case "west":
			if tup[1] != int64(1) || tup[2] != 7 || tup[3] != 7 {
				t.Errorf("unexpected west stats: %v", tup)
			}
		}
	}
}

// TestSelfJoinDisequality covers spec.md §8's sibling scenario end to
// end through the Program/Engine surface: sib(x,y) :- kin(p,x),
// kin(p,y), x != y.
func TestSelfJoinDisequality(t *testing.T) {
	p := NewProgram()
	kin := p.DeclareRelation("kin")
	sib := p.DeclareRelation("sib")

	par, x, y := Variable(p.DeclareVariable()), Variable(p.DeclareVariable()), Variable(p.DeclareVariable())
	if err := p.AddRule(Rule{
		Head: Atom{Rel: sib, Terms: []Term{x, y}},
		Body: []Atom{
			{Rel: kin, Terms: []Term{par, x}},
			{Rel: kin, Terms: []Term{par, y}},
		},
		Distinct: [][2]Term{{x, y}},
	}); err != nil {
		t.Fatal(err)
	}
	for _, r := range []Tuple{{"dad", "al"}, {"dad", "bo"}} {
		if err := p.AssertEDB(kin, r); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	want := []string{"[al bo]", "[bo al]"}
	checkRelation(t, eng, sib, want, false)
	checkRelation(t, eng, sib, want, true)
}

// TestHopsKChain exercises a longer transitive chain than
// TestTransitiveClosure to catch off-by-one errors in the semi-naive
// delta rotation across more than two strata-internal iterations.
func TestHopsKChain(t *testing.T) {
	p := NewProgram()
	edge := p.DeclareRelation("edge")
	reach := p.DeclareRelation("reach")

	x, y, z := Variable(p.DeclareVariable()), Variable(p.DeclareVariable()), Variable(p.DeclareVariable())
	if err := p.AddRule(Rule{Head: Atom{Rel: reach, Terms: []Term{x, y}}, Body: []Atom{{Rel: edge, Terms: []Term{x, y}}}}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddRule(Rule{
		Head: Atom{Rel: reach, Terms: []Term{x, z}},
		Body: []Atom{
			{Rel: edge, Terms: []Term{x, y}},
			{Rel: reach, Terms: []Term{y, z}},
		},
	}); err != nil {
		t.Fatal(err)
	}

	const n = 8
	nodes := make([]string, n)
	for i := range nodes {
		nodes[i] = string(rune('a' + i))
	}
	for i := 0; i < n-1; i++ {
		if err := p.AssertEDB(edge, Tuple{nodes[i], nodes[i+1]}); err != nil {
			t.Fatal(err)
		}
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	var want []string
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			want = append(want, "["+nodes[i]+" "+nodes[j]+"]")
		}
	}
	checkRelation(t, eng, reach, want, false)
	checkRelation(t, eng, reach, want, true)
}

func TestNegation(t *testing.T) {
	p := NewProgram()
	pr := p.DeclareRelation("p")
	q := p.DeclareRelation("q")
	r := p.DeclareRelation("r")
	x := Variable(p.DeclareVariable())

	if err := p.AddRule(Rule{Head: Atom{Rel: r, Terms: []Term{x}}, Body: []Atom{
		{Rel: pr, Terms: []Term{x}},
		{Rel: q, Terms: []Term{x}, Negated: true},
	}}); err != nil {
		t.Fatal(err)
	}
	p.AssertEDB(pr, Tuple{"a"})
	p.AssertEDB(pr, Tuple{"b"})
	p.AssertEDB(q, Tuple{"b"})

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	checkRelation(t, eng, r, []string{"[a]"}, false)
	checkRelation(t, eng, r, []string{"[a]"}, true)
}

func TestEmptyFixpoint(t *testing.T) {
	p := NewProgram()
	a := p.DeclareRelation("a")
	b := p.DeclareRelation("b")
	x := Variable(p.DeclareVariable())
	if err := p.AddRule(Rule{Head: Atom{Rel: b, Terms: []Term{x}}, Body: []Atom{{Rel: a, Terms: []Term{x}}}}); err != nil {
		t.Fatal(err)
	}

	eng, err := NewEngine(p)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := eng.SolveInterpreted(b)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !out.Empty() {
		t.Fatalf("expected empty fixpoint, got %v", out.SortedStrings())
	}
}

func TestUnstratifiableNegationRejected(t *testing.T) {
	p := NewProgram()
	a := p.DeclareRelation("a")
	x := Variable(p.DeclareVariable())
	if err := p.AddRule(Rule{Head: Atom{Rel: a, Terms: []Term{x}}, Body: []Atom{{Rel: a, Terms: []Term{x}, Negated: true}}}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewEngine(p); err == nil {
		t.Fatal("expected an unstratifiable-negation error")
	}
}

// TestAddRuleArityMismatch exercises spec.md §7's arity-mismatch class
// at rule-validation time: a relation first seen at arity 2 in one
// rule's body, then referenced at arity 1 in another, must be rejected
// instead of silently re-registered.
func TestAddRuleArityMismatch(t *testing.T) {
	p := NewProgram()
	edge := p.DeclareRelation("edge")
	reach := p.DeclareRelation("reach")
	solo := p.DeclareRelation("solo")
	x, y := Variable(p.DeclareVariable()), Variable(p.DeclareVariable())

	if err := p.AddRule(Rule{Head: Atom{Rel: reach, Terms: []Term{x, y}}, Body: []Atom{{Rel: edge, Terms: []Term{x, y}}}}); err != nil {
		t.Fatal(err)
	}

	err := p.AddRule(Rule{Head: Atom{Rel: solo, Terms: []Term{x}}, Body: []Atom{{Rel: edge, Terms: []Term{x}}}})
	if !errors.Is(err, errs.ErrArityMismatch) {
		t.Fatalf("got %v, want ErrArityMismatch", err)
	}
}

// TestUnknownRelationRejected exercises spec.md §7's unknown-relation
// class: a rule body referencing a relation id that no DeclareRelation
// call ever issued must fail at NewEngine, not silently auto-register.
func TestUnknownRelationRejected(t *testing.T) {
	p := NewProgram()
	a := p.DeclareRelation("a")
	x := Variable(p.DeclareVariable())

	const bogus RelID = 999
	if err := p.AddRule(Rule{Head: Atom{Rel: a, Terms: []Term{x}}, Body: []Atom{{Rel: bogus, Terms: []Term{x}}}}); err != nil {
		t.Fatal(err)
	}

	_, err := NewEngine(p)
	if !errors.Is(err, errs.ErrUnknownRelation) {
		t.Fatalf("got %v, want ErrUnknownRelation", err)
	}
}

func checkRelation(t *testing.T, eng *Engine, rel RelID, want []string, compiled bool) {
	t.Helper()
	var out interface {
		SortedStrings() []string
	}
	var err error
	if compiled {
		out, err = eng.SolveCompiled(rel)
	} else {
		out, err = eng.SolveInterpreted(rel)
	}
	if err != nil {
		t.Fatalf("solve (compiled=%v): %v", compiled, err)
	}
	got := out.SortedStrings()
	if len(got) != len(want) {
		t.Fatalf("compiled=%v: got %v, want %v", compiled, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("compiled=%v: got %v, want %v", compiled, got, want)
		}
	}
}
