package plan

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/term"
)

// TestCompileVariableOnlyInNegatedContext exercises spec.md §7's
// variable-only-in-negated-context class: r(x) :- !p(y), q(x). y never
// occurs in a positive atom.
func TestCompileVariableOnlyInNegatedContext(t *testing.T) {
	x, y := term.Variable(1), term.Variable(2)
	r := term.Rule{
		Head: term.Atom{Rel: 2, Terms: []term.Term{x}},
		Body: []term.Atom{
			{Rel: 0, Terms: []term.Term{y}, Negated: true},
			{Rel: 1, Terms: []term.Term{x}},
		},
	}
	_, err := Compile(r)
	if !errors.Is(err, errs.ErrVariableOnlyInNegatedContext) {
		t.Fatalf("got %v, want ErrVariableOnlyInNegatedContext", err)
	}
}

// TestCompileFreeHeadVariable exercises r(x,y) :- p(x), where y never
// occurs in the body.
func TestCompileFreeHeadVariable(t *testing.T) {
	x, y := term.Variable(1), term.Variable(2)
	r := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{x, y}},
		Body: []term.Atom{
			{Rel: 0, Terms: []term.Term{x}},
		},
	}
	_, err := Compile(r)
	if !errors.Is(err, errs.ErrFreeHeadVariable) {
		t.Fatalf("got %v, want ErrFreeHeadVariable", err)
	}
}

// TestCompileAnonymousHeadVariable exercises r(_) :- p(x), where the
// head itself contains an anonymous variable.
func TestCompileAnonymousHeadVariable(t *testing.T) {
	x := term.Variable(1)
	r := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{term.Anonymous(2)}},
		Body: []term.Atom{
			{Rel: 0, Terms: []term.Term{x}},
		},
	}
	_, err := Compile(r)
	if !errors.Is(err, errs.ErrAnonymousHeadVariable) {
		t.Fatalf("got %v, want ErrAnonymousHeadVariable", err)
	}
}

// TestCompileAggregationOnUnboundVariable exercises a grouping atom
// whose aggregation operand is neither a group-by variable nor a local
// variable of the grouped sub-atom.
func TestCompileAggregationOnUnboundVariable(t *testing.T) {
	p, q, amount, sum, stray := term.Variable(1), term.Variable(2), term.Variable(3), term.Variable(4), term.Variable(5)
	sub := term.Atom{Rel: 0, Terms: []term.Term{p, q, amount}}
	r := term.Rule{
		Head: term.Atom{Rel: 1, Terms: []term.Term{p, q, sum}},
		Body: []term.Atom{
			{
				Rel:   0,
				Terms: []term.Term{p, q, sum},
				Group: &term.GroupSpec{
					Sub: sub,
					By:  []term.Term{p, q},
					Aggs: []term.AggDesc{
						{Op: term.AggSum, Term: stray},
					},
				},
			},
		},
	}
	_, err := Compile(r)
	if !errors.Is(err, errs.ErrAggregationOnUnboundVariable) {
		t.Fatalf("got %v, want ErrAggregationOnUnboundVariable", err)
	}
}
