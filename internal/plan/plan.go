// Package plan is the planner / join-index compiler: it derives a
// JoinIndexes record from each rule, per spec.md §3/§4.2. It
// generalizes the teacher's implicit planning (database.go's
// findMappingsFor/matches do positional equality checking inline, once
// per call, against a fixed 3-slot (s, p, o) shape) into an explicit,
// cacheable, n-ary metadata compilation step, the way a production
// Datalog engine amortizes join-shape analysis across iterations of the
// semi-naive loop instead of re-deriving it from the raw atoms on every
// call.
package plan

import (
	"sort"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/term"
)

// Pos identifies one term position in a rule's body: the index of the
// body atom and the index of the term within that atom.
type Pos struct {
	Atom int
	Term int
}

// EdgeKind classifies a dependency edge in JoinIndexes.Deps.
type EdgeKind uint8

const (
	EdgePositive EdgeKind = iota
	EdgeNegated
	EdgeGrouping
)

// DepEdge is one (kind, relation) dependency edge, per spec.md §3.
type DepEdge struct {
	Kind EdgeKind
	Rel  term.RelID
}

// ProjSource describes how to fill one head position: either a literal
// constant, or the canonical body position of a head variable.
type ProjSource struct {
	IsConst bool
	Const   term.Value
	From    Pos
}

// Occurrence is one (relation, column) pair where a negated atom's
// variable occurs in a positive body atom, used to materialize the
// negated atom's complement universe.
type Occurrence struct {
	Rel term.RelID
	Col int
}

// NegPos describes one position of a negated atom: either a required
// constant, or the positive-context occurrences that bound its
// universe.
type NegPos struct {
	IsConst     bool
	Const       term.Value
	Occurrences []Occurrence
}

// NegInfo is the per-negated-atom metadata in JoinIndexes.NegationInfo.
type NegInfo struct {
	PerPos []NegPos
}

// AggSource classifies where a grouping atom's aggregation operand
// comes from: a group-by variable (GV), a local variable of the grouped
// sub-atom (LV), or a literal constant (C).
type AggSource uint8

const (
	SourceGV AggSource = iota
	SourceLV
	SourceC
)

// AggSourceDesc is the resolved, positional form of one
// term.AggDesc.
type AggSourceDesc struct {
	Op     term.AggOp
	Source AggSource
	Pos    int // position within the sub-atom's terms, if GV or LV
	Const  term.Value
}

// GroupingIndex is the per-grouping-atom metadata: variable-equalities
// and constant positions within the grouped sub-atom, the sub-atom
// positions that are group-by variables, and the resolved aggregation
// sources, per spec.md §3/§4.1 (groupByAggregate).
type GroupingIndex struct {
	VarIndexes   [][]int
	ConstIndexes map[int]term.Value
	GroupBy      []int
	AggSources   []AggSourceDesc
}

// JoinIndexes is the compiled per-rule (or per-body-permutation) planner
// output described by spec.md §3.
type JoinIndexes struct {
	VarIndexes      [][]Pos
	ConstIndexes    map[Pos]term.Value
	Disequal        [][2]Pos
	ProjIndexes     []ProjSource
	Deps            []DepEdge
	Cxns            map[uint64]map[int][]int
	NegationInfo    map[int]*NegInfo
	GroupingIndexes map[int]*GroupingIndex
	EDB             bool

	// Order is the body evaluation order this JoinIndexes was compiled
	// for: Order[k] is the original body index placed at position k.
	// The identity permutation unless produced via CompileOrder.
	Order []int
}

type varBinding struct {
	pos      Pos
	anon     bool
	declared bool
}

// Compile derives the canonical (body-order) JoinIndexes for r.
func Compile(r term.Rule) (*JoinIndexes, error) {
	order := make([]int, len(r.Body))
	for i := range order {
		order[i] = i
	}
	return CompileOrder(r, order)
}

// CompileOrder derives the JoinIndexes for r's body evaluated in the
// given order (a permutation of body indices), supporting the
// per-permutation caching and allOrders exhaustive planning described
// in spec.md §4.2.
func CompileOrder(r term.Rule, order []int) (*JoinIndexes, error) {
	if len(order) != len(r.Body) {
		panic("plan: order must be a permutation of the rule's body")
	}

	ji := &JoinIndexes{
		ConstIndexes:    make(map[Pos]term.Value),
		Deps:            make([]DepEdge, 0, len(r.Body)),
		Cxns:            make(map[uint64]map[int][]int),
		NegationInfo:    make(map[int]*NegInfo),
		GroupingIndexes: make(map[int]*GroupingIndex),
		EDB:             len(r.Body) == 0,
		Order:           append([]int(nil), order...),
	}

	// canonical[v] is the first non-negated, non-aggregated occurrence
	// of variable v, scanned left-to-right over the *original* body
	// order (canonical binding is a property of the rule, independent
	// of any later reordering for execution).
	canonical := make(map[term.VarID]varBinding)
	negOnly := make(map[term.VarID]bool)

	// Pass 1: collect canonical bindings from every atom's own Terms --
	// positive and grouping atoms alike, since a grouping atom's Terms is
	// its materialized output tuple (group-by columns followed by one
	// column per aggregate, the same layout GroupByAggregate produces),
	// not the grouped sub-atom's terms, which stay local to the
	// aggregation and are never canonically bound. Negated atoms
	// contribute no bindings; a variable seen only there is flagged in
	// negOnly and must be resolved by a later pass.
	for i, atom := range r.Body {
		if atom.Negated {
			for _, t := range atom.Terms {
				if t.IsVariable() && !t.IsAnonymous() {
					if _, ok := canonical[t.VarID()]; !ok {
						negOnly[t.VarID()] = true
					}
				}
			}
			continue
		}
		for j, t := range atom.Terms {
			if t.IsConstant() {
				ji.ConstIndexes[Pos{i, j}] = t.ConstantValue()
				continue
			}
			if t.IsAnonymous() {
				continue
			}
			if _, ok := canonical[t.VarID()]; !ok {
				canonical[t.VarID()] = varBinding{pos: Pos{i, j}, declared: true}
				delete(negOnly, t.VarID())
			}
		}
	}

	for v := range negOnly {
		if _, ok := canonical[v]; !ok {
			return nil, errs.ErrVariableOnlyInNegatedContext
		}
	}

	// varIndexes: group equal-variable positions across every body atom
	// (including repeats within one atom, and negated atoms, whose input
	// is their materialized complement and must join on the shared
	// variables), scanned in the *execution* order so downstream
	// consumers can walk ji.VarIndexes while reading inputs in ji.Order.
	groups := make(map[term.VarID][]Pos)
	for _, i := range order {
		atom := r.Body[i]
		for j, t := range atom.Terms {
			if t.IsVariable() && !t.IsAnonymous() {
				groups[t.VarID()] = append(groups[t.VarID()], Pos{i, j})
			}
		}
	}
	for _, positions := range groups {
		if len(positions) > 1 {
			ji.VarIndexes = append(ji.VarIndexes, positions)
		}
	}
	sort.Slice(ji.VarIndexes, func(a, b int) bool {
		pa, pb := ji.VarIndexes[a][0], ji.VarIndexes[b][0]
		if pa.Atom != pb.Atom {
			return pa.Atom < pb.Atom
		}
		return pa.Term < pb.Term
	})

	// Explicit disequality constraints (x != y), supplemented per
	// SPEC_FULL.md §12 to serve the self-join scenario in spec.md §8.
	for _, d := range r.Distinct {
		p1, ok1 := resolveTermPos(r.Body, d[0], canonical)
		p2, ok2 := resolveTermPos(r.Body, d[1], canonical)
		if ok1 && ok2 {
			ji.Disequal = append(ji.Disequal, [2]Pos{p1, p2})
		}
	}

	// Head projection.
	for _, t := range r.Head.Terms {
		if t.IsAnonymous() {
			return nil, errs.ErrAnonymousHeadVariable
		}
		if t.IsConstant() {
			ji.ProjIndexes = append(ji.ProjIndexes, ProjSource{IsConst: true, Const: t.ConstantValue()})
			continue
		}
		b, ok := canonical[t.VarID()]
		if !ok {
			return nil, errs.ErrFreeHeadVariable
		}
		ji.ProjIndexes = append(ji.ProjIndexes, ProjSource{From: b.pos})
	}

	// Dependency edges, in body order.
	for _, atom := range r.Body {
		switch {
		case atom.IsGrouping():
			ji.Deps = append(ji.Deps, DepEdge{Kind: EdgeGrouping, Rel: atom.Group.Sub.Rel})
		case atom.Negated:
			ji.Deps = append(ji.Deps, DepEdge{Kind: EdgeNegated, Rel: atom.Rel})
		default:
			ji.Deps = append(ji.Deps, DepEdge{Kind: EdgePositive, Rel: atom.Rel})
		}
	}

	// Cxns: exhaustive pairwise intersection of (non-anonymous) variable
	// sets between body atoms, grouped by intersection size and keyed by
	// atom hash, per spec.md §4.2. Per the Open Question in spec.md §9,
	// anonymous variables are excluded: they never create a join.
	varSets := make([]map[term.VarID]bool, len(r.Body))
	for i, atom := range r.Body {
		set := make(map[term.VarID]bool)
		for _, t := range atom.Terms {
			if t.IsVariable() && !t.IsAnonymous() {
				set[t.VarID()] = true
			}
		}
		varSets[i] = set
	}
	for i := range r.Body {
		hi := r.Body[i].Hash()
		for j := range r.Body {
			if i == j {
				continue
			}
			shared := 0
			for v := range varSets[i] {
				if varSets[j][v] {
					shared++
				}
			}
			if shared == 0 {
				continue
			}
			if ji.Cxns[hi] == nil {
				ji.Cxns[hi] = make(map[int][]int)
			}
			ji.Cxns[hi][shared] = append(ji.Cxns[hi][shared], j)
		}
	}

	// Negation info.
	for i, atom := range r.Body {
		if !atom.Negated {
			continue
		}
		info := &NegInfo{PerPos: make([]NegPos, len(atom.Terms))}
		for j, t := range atom.Terms {
			if t.IsConstant() {
				info.PerPos[j] = NegPos{IsConst: true, Const: t.ConstantValue()}
				continue
			}
			if t.IsAnonymous() {
				info.PerPos[j] = NegPos{}
				continue
			}
			var occs []Occurrence
			for k, other := range r.Body {
				if k == i || other.Negated || other.IsGrouping() {
					continue
				}
				for col, ot := range other.Terms {
					if ot.IsVariable() && !ot.IsAnonymous() && ot.VarID() == t.VarID() {
						occs = append(occs, Occurrence{Rel: other.Rel, Col: col})
					}
				}
			}
			info.PerPos[j] = NegPos{Occurrences: occs}
		}
		ji.NegationInfo[i] = info
	}

	// Grouping info.
	for i, atom := range r.Body {
		if !atom.IsGrouping() {
			continue
		}
		gidx, err := compileGrouping(atom)
		if err != nil {
			return nil, err
		}
		ji.GroupingIndexes[i] = gidx
	}

	return ji, nil
}

func resolveTermPos(body []term.Atom, t term.Term, canonical map[term.VarID]varBinding) (Pos, bool) {
	if t.IsConstant() {
		return Pos{}, false
	}
	b, ok := canonical[t.VarID()]
	if !ok {
		return Pos{}, false
	}
	return b.pos, true
}

func compileGrouping(atom term.Atom) (*GroupingIndex, error) {
	gidx := &GroupingIndex{ConstIndexes: make(map[int]term.Value)}

	localGroups := make(map[term.VarID][]int)
	for j, t := range atom.Group.Sub.Terms {
		if t.IsConstant() {
			gidx.ConstIndexes[j] = t.ConstantValue()
			continue
		}
		if t.IsAnonymous() {
			continue
		}
		localGroups[t.VarID()] = append(localGroups[t.VarID()], j)
	}
	for _, positions := range localGroups {
		if len(positions) > 1 {
			gidx.VarIndexes = append(gidx.VarIndexes, positions)
		}
	}
	sort.Slice(gidx.VarIndexes, func(a, b int) bool { return gidx.VarIndexes[a][0] < gidx.VarIndexes[b][0] })

	groupBySet := make(map[term.VarID]bool)
	for _, gv := range atom.Group.By {
		if gv.IsVariable() && !gv.IsAnonymous() {
			groupBySet[gv.VarID()] = true
		}
	}
	// GroupBy preserves Group.By's order (not Sub.Terms' order): the
	// grouping atom's materialized output tuple is [group key in gv
	// order, then aggregates in ags order], since that's the layout the
	// rest of the rule's canonical-position bindings (Pos{i, k} for k in
	// range len(gv)) assume.
	for _, gv := range atom.Group.By {
		gidx.GroupBy = append(gidx.GroupBy, findTermPos(atom.Group.Sub.Terms, gv.VarID()))
	}

	for _, ag := range atom.Group.Aggs {
		if ag.Term.IsConstant() {
			gidx.AggSources = append(gidx.AggSources, AggSourceDesc{Op: ag.Op, Source: SourceC, Const: ag.Term.ConstantValue()})
			continue
		}
		if ag.Term.IsAnonymous() {
			return nil, errs.ErrAggregationOnUnboundVariable
		}
		if groupBySet[ag.Term.VarID()] {
			gidx.AggSources = append(gidx.AggSources, AggSourceDesc{Op: ag.Op, Source: SourceGV, Pos: findVarPos(atom.Group.By, ag.Term.VarID())})
			continue
		}
		pos := findTermPos(atom.Group.Sub.Terms, ag.Term.VarID())
		if pos < 0 {
			return nil, errs.ErrAggregationOnUnboundVariable
		}
		gidx.AggSources = append(gidx.AggSources, AggSourceDesc{Op: ag.Op, Source: SourceLV, Pos: pos})
	}

	return gidx, nil
}

func findVarPos(terms []term.Term, v term.VarID) int {
	for i, t := range terms {
		if t.IsVariable() && !t.IsAnonymous() && t.VarID() == v {
			return i
		}
	}
	return -1
}

func findTermPos(terms []term.Term, v term.VarID) int {
	return findVarPos(terms, v)
}
