package ir

import (
	"sort"

	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/term"
)

// Build assembles the full program tree for a stratified rule set, per
// spec.md §4.3/§4.6: one DoWhileOp per stratum, run in stratum order, so
// that a later stratum only ever reads an earlier one's fully-stabilized
// Known generation.
func Build(strata [][]term.Rule, cache *plan.Cache) (Node, error) {
	children := make([]Node, 0, len(strata))
	for _, stratum := range strata {
		node, err := buildStratum(stratum, cache)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return &SequenceOp{Children: children}, nil
}

// buildStratum builds one stratum's semi-naive fixpoint loop: every rule
// head relation in the stratum gets its contributions (across every rule
// defining it, across every delta-position variant of each rule) unioned,
// diffed against its known-derived value to obtain the new delta, and
// both new-derived and new-delta are written before the stratum swaps.
func buildStratum(rules []term.Rule, cache *plan.Cache) (Node, error) {
	byHead := make(map[term.RelID][]Node)
	var heads []term.RelID
	seen := make(map[term.RelID]bool)

	for _, r := range rules {
		ji, err := cache.Get(r)
		if err != nil {
			return nil, err
		}
		variants, err := ruleVariants(r, ji)
		if err != nil {
			return nil, err
		}
		rel := r.Head.Rel
		if !seen[rel] {
			seen[rel] = true
			heads = append(heads, rel)
		}
		byHead[rel] = append(byHead[rel], variants...)
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })

	writes := make([]Node, 0, 2*len(heads)+1)
	for _, rel := range heads {
		arity := 0
		for _, r := range rules {
			if r.Head.Rel == rel {
				arity = r.Head.Arity()
				break
			}
		}
		variantUnion := &UnionOp{Children: byHead[rel], Arity: arity}
		knownScan := &ScanOp{Rel: rel, Gen: Known}
		newDelta := &DiffOp{Left: variantUnion, Right: knownScan, Arity: arity}
		newDerived := &UnionOp{Children: []Node{knownScan, newDelta}, Arity: arity}
		writes = append(writes, &InsertOp{Rel: rel, Gen: New, Value: newDerived})
		writes = append(writes, &InsertOp{Rel: rel, Gen: DeltaNew, Value: newDelta})
	}
	writes = append(writes, &SwapAndClearOp{})

	return &DoWhileOp{Test: DeltaEmptyTest, Body: &SequenceOp{Children: writes}}, nil
}

// ruleVariants builds the semi-naive delta variants of r: one
// ProjectJoinFilterOp per positive body position, with that position
// read from Δ-known and every other position read from its steady-state
// source (Known for a positive atom, the materialized complement for a
// negated one, the materialized group for a grouping one). A rule with
// no positive body atom (a fact, or a rule defined purely over negated
// atoms) gets exactly one variant reading everything from steady state.
func ruleVariants(r term.Rule, ji *plan.JoinIndexes) ([]Node, error) {
	var positivePos []int
	for i, atom := range r.Body {
		if !atom.Negated && !atom.IsGrouping() {
			positivePos = append(positivePos, i)
		}
	}

	headArity := r.Head.Arity()
	if len(positivePos) == 0 {
		inputs, err := atomInputs(r, ji, -1)
		if err != nil {
			return nil, err
		}
		return []Node{&ProjectJoinFilterOp{Rel: r.Head.Rel, Join: ji, Rule: r, Inputs: inputs, Arity: headArity}}, nil
	}

	variants := make([]Node, 0, len(positivePos))
	for _, deltaPos := range positivePos {
		inputs, err := atomInputs(r, ji, deltaPos)
		if err != nil {
			return nil, err
		}
		variants = append(variants, &ProjectJoinFilterOp{Rel: r.Head.Rel, Join: ji, Rule: r, Inputs: inputs, Arity: headArity})
	}
	return variants, nil
}

func atomInputs(r term.Rule, ji *plan.JoinIndexes, deltaPos int) ([]Node, error) {
	inputs := make([]Node, len(r.Body))
	for i, atom := range r.Body {
		switch {
		case atom.IsGrouping():
			gidx := ji.GroupingIndexes[i]
			inputs[i] = &GroupOp{Input: &ScanOp{Rel: atom.Group.Sub.Rel, Gen: Known}, GIdx: gidx}
		case atom.Negated:
			info := ji.NegationInfo[i]
			inputs[i] = &ComplementOp{Rel: atom.Rel, Info: info, Arity: atom.Arity()}
		case i == deltaPos:
			inputs[i] = &ScanOp{Rel: atom.Rel, Gen: Delta}
		default:
			inputs[i] = &ScanOp{Rel: atom.Rel, Gen: Known}
		}
	}
	return inputs, nil
}
