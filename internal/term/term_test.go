package term

import "testing"

func link(s, o VarID, sConst, oConst bool) Atom {
	mk := func(v VarID, isConst bool) Term {
		if isConst {
			return Constant(v)
		}
		return Variable(v)
	}
	return Atom{Rel: 1, Terms: []Term{mk(s, sConst), mk(o, oConst)}}
}

func TestAtomHashStable(t *testing.T) {
	a1 := link(1, 2, false, false)
	a2 := link(1, 2, false, false)

	if a1.Hash() != a2.Hash() {
		t.Error("structurally identical atoms must hash equally", a1, a2)
	}
}

func TestAtomHashDistinguishesConstants(t *testing.T) {
	a1 := Atom{Rel: 1, Terms: []Term{Constant("a"), Variable(1)}}
	a2 := Atom{Rel: 1, Terms: []Term{Constant("b"), Variable(1)}}

	if a1.Hash() == a2.Hash() {
		t.Error("atoms with different constants should hash differently", a1, a2)
	}
}

func TestAtomHashIgnoresVariableIdentity(t *testing.T) {
	// Two different variable ids in the same shape still hash equal: the
	// hash depends on term *shape*, not variable identity, per spec.md
	// §9 ("not on object identity").
	a1 := Atom{Rel: 1, Terms: []Term{Variable(1), Variable(2)}}
	a2 := Atom{Rel: 1, Terms: []Term{Variable(7), Variable(9)}}

	if a1.Hash() != a2.Hash() {
		t.Error("atom hash should not depend on concrete variable ids", a1, a2)
	}
}

func TestRuleHashOrderSensitive(t *testing.T) {
	head := Atom{Rel: 2, Terms: []Term{Variable(1), Variable(2)}}
	b1 := Atom{Rel: 1, Terms: []Term{Variable(1), Variable(3)}}
	b2 := Atom{Rel: 2, Terms: []Term{Variable(3), Variable(2)}}

	r1 := Rule{Head: head, Body: []Atom{b1, b2}}
	r2 := Rule{Head: head, Body: []Atom{b2, b1}}

	if r1.Hash() == r2.Hash() {
		t.Error("rule hash should be sensitive to body order", r1, r2)
	}

	if r1.PermutationHash([]int{0, 1}) != r1.Hash() {
		t.Error("identity permutation hash should equal canonical rule hash")
	}

	if r1.PermutationHash([]int{1, 0}) != r2.Hash() {
		t.Error("swapped permutation hash should equal the reordered rule's hash")
	}
}

func TestAnonymousIsFlagged(t *testing.T) {
	a := Anonymous(1)
	b := Anonymous(1)

	if !a.IsAnonymous() || !b.IsAnonymous() {
		t.Error("expected anonymous variables")
	}
	// Structural equality of the Term value does not imply the planner
	// treats them as the same variable; that invariant is enforced in
	// plan.go's varIndexes construction, not checked here.
}

func TestIsGround(t *testing.T) {
	g := Atom{Rel: 1, Terms: []Term{Constant("a"), Constant("b")}}
	ng := Atom{Rel: 1, Terms: []Term{Constant("a"), Variable(1)}}

	if !g.IsGround() {
		t.Error("expected ground atom", g)
	}
	if ng.IsGround() {
		t.Error("expected non-ground atom", ng)
	}
}
