// Package exec implements the two executors of spec.md §4.4/§4.5: an
// interpreted tree-walker and a staged (specialize-then-run) executor
// sharing the same ir.Node tree produced by the planner. It generalizes
// the teacher's solve()/hasFact() (datalog.go), which interleave rule
// matching and fixpoint control in a single recursive function, into a
// driver that evaluates an explicit, reorderable program.
package exec

import (
	"log"

	"github.com/mwelt/seminaive/internal/ir"
	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/storage"
	"github.com/mwelt/seminaive/internal/term"
)

// Options configures a solve, mirroring spec.md §6's jitOptions. Online
// reordering only fires when OnlineSort != OnlineSortOff, SortOrder !=
// plan.Unordered, and Cache is set (it re-plans through the cache).
type Options struct {
	SortOrder   plan.SortOrder
	OnlineSort  OnlineSort
	Granularity Granularity
	Cache       *plan.Cache

	// ruleOrder memoizes the OnlineSortPerRule reordering decision per
	// rule hash, so it is taken once per rule for the life of a solve
	// instead of on every DoWhileOp iteration. Left nil (and never
	// touched) under every other OnlineSort setting.
	ruleOrder map[uint64]*plan.JoinIndexes
}

// Granularity selects the unit of specialization in the staged executor,
// per spec.md §6: how much of the IR tree one Specialize call treats as
// an opaque, non-decomposed block versus building a Callable per node.
// GranularityAtom (the zero value) decomposes all the way down to
// per-atom input closures, same as SolveInterpreted's node-by-node walk
// reimplemented as closures -- this is the default, since it's the only
// granularity that lets the staged executor skip Eval's type switch
// entirely at run time. GranularityRule stops decomposing at each rule
// variant's ProjectJoinFilterOp -- the join/filter itself, plus its
// scan/complement/group inputs, run through one Eval call instead of a
// closure per input. GranularityProgram stops at the very top: Specialize
// does no decomposition at all and the "compiled" callable is just Eval
// over the whole tree, so SolveCompiled degenerates to SolveInterpreted
// with one extra layer of indirection -- useful when compile cost isn't
// worth paying for a single one-shot solve.
type Granularity uint8

const (
	GranularityAtom Granularity = iota
	GranularityRule
	GranularityProgram
)

// OnlineSort controls how often the interpreted executor re-evaluates
// body order, per spec.md §6. OnlineSortOff (the zero value) disables
// online reordering outright, regardless of SortOrder.
type OnlineSort uint8

const (
	OnlineSortOff OnlineSort = iota
	OnlineSortPerRule
	OnlineSortPerStep
)

// SolveInterpreted runs rules (already stratified) to fixpoint for
// queryRel and returns its known-derived tuples, walking the IR tree
// directly on every node visit (spec.md §4.4).
func SolveInterpreted(db *storage.Database, strata [][]term.Rule, cache *plan.Cache,
	relevantEDBs []term.RelID, queryRel term.RelID, opts *Options) (*storage.Relation, error) {

	tree, err := ir.Build(strata, cache)
	if err != nil {
		return nil, err
	}
	db.InitEvaluation(relevantEDBs)
	if _, err := Eval(db, tree, opts); err != nil {
		return nil, err
	}
	return db.Known(queryRel), nil
}

// Eval traverses n, computing its relation value against db. Children are
// always evaluated before a node combines them; side-effecting nodes
// (InsertOp, SwapAndClearOp, SequenceOp, DoWhileOp) return the value of
// their last meaningful child, which callers of Eval on those node kinds
// should not rely on.
func Eval(db *storage.Database, n ir.Node, opts *Options) (*storage.Relation, error) {
	switch t := n.(type) {
	case *ir.ScanOp:
		return scan(db, t), nil

	case *ir.ProjectJoinFilterOp:
		return evalPJF(db, t, opts)

	case *ir.UnionOp:
		rels := make([]*storage.Relation, len(t.Children))
		for i, c := range t.Children {
			r, err := Eval(db, c, opts)
			if err != nil {
				return nil, err
			}
			rels[i] = r
		}
		return storage.Union(t.Arity, rels...), nil

	case *ir.DiffOp:
		l, err := Eval(db, t.Left, opts)
		if err != nil {
			return nil, err
		}
		r, err := Eval(db, t.Right, opts)
		if err != nil {
			return nil, err
		}
		return storage.Diff(l, r), nil

	case *ir.ComplementOp:
		return storage.Complement(db, t.Rel, t.Arity, t.Info), nil

	case *ir.GroupOp:
		in, err := Eval(db, t.Input, opts)
		if err != nil {
			return nil, err
		}
		return storage.GroupByAggregate(t.GIdx, in), nil

	case *ir.InsertOp:
		val, err := Eval(db, t.Value, opts)
		if err != nil {
			return nil, err
		}
		switch t.Gen {
		case ir.New:
			db.ResetNew(t.Rel, val)
		case ir.DeltaNew:
			db.ResetNewDelta(t.Rel, val)
		}
		return val, nil

	case *ir.SwapAndClearOp:
		db.SwapKnowledge()
		return nil, nil

	case *ir.SequenceOp:
		var last *storage.Relation
		for _, c := range t.Children {
			v, err := Eval(db, c, opts)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil

	case *ir.DoWhileOp:
		for {
			if _, err := Eval(db, t.Body, opts); err != nil {
				return nil, err
			}
			known, delta, rels := db.Stats()
			log.Printf("datalog: iteration %d: %d known tuples, %d delta tuples, %d relations", db.Iteration(), known, delta, rels)
			if testHolds(db, t.Test) {
				break
			}
		}
		return nil, nil
	}
	panic("exec: unknown ir.Node type")
}

func scan(db *storage.Database, s *ir.ScanOp) *storage.Relation {
	switch s.Gen {
	case ir.EDB:
		return db.EDB(s.Rel)
	case ir.Known:
		return db.Known(s.Rel)
	case ir.New:
		return db.New(s.Rel)
	case ir.Delta:
		return db.KnownDelta(s.Rel)
	}
	panic("exec: unknown scan generation")
}

func testHolds(db *storage.Database, test ir.TestKind) bool {
	switch test {
	case ir.FixpointReachedTest:
		return db.FixpointReached()
	default:
		return db.DeltaEmpty()
	}
}

// evalPJF evaluates a ProjectJoinFilterOp, applying online reordering
// (spec.md §4.4) first when opts requests it: it identifies which input
// is the Δ-known scan, asks the planner for a new body order via the
// requested SortOrder's ranking, and substitutes the reordered
// JoinIndexes -- Inputs themselves are unaffected, since they're indexed
// by the rule's original body position, not by evaluation order.
//
// OnlineSortOff skips reordering entirely, regardless of SortOrder.
// OnlineSortPerStep re-derives the order on every call (every DoWhileOp
// iteration re-visits this node). OnlineSortPerRule derives it once per
// rule, the first time this rule is evaluated, and reuses that decision
// for every later iteration of the same solve via opts.ruleOrder.
func evalPJF(db *storage.Database, t *ir.ProjectJoinFilterOp, opts *Options) (*storage.Relation, error) {
	ji := t.Join
	if opts != nil && opts.OnlineSort != OnlineSortOff && opts.SortOrder != plan.Unordered && opts.Cache != nil && len(t.Rule.Body) > 0 {
		ruleHash := t.Rule.Hash()
		if opts.OnlineSort == OnlineSortPerRule {
			if opts.ruleOrder == nil {
				opts.ruleOrder = make(map[uint64]*plan.JoinIndexes)
			}
			if cached, ok := opts.ruleOrder[ruleHash]; ok {
				ji = cached
			} else if reordered := reorderPJF(t, ji, opts); reordered != nil {
				ji = reordered
				opts.ruleOrder[ruleHash] = reordered
			}
		} else if reordered := reorderPJF(t, ji, opts); reordered != nil {
			ji = reordered
		}
	}

	inputs := make([]*storage.Relation, len(t.Inputs))
	for i, in := range t.Inputs {
		r, err := Eval(db, in, opts)
		if err != nil {
			return nil, err
		}
		inputs[i] = r
	}
	return storage.ProjectJoinFilter(ji, inputs, t.Arity), nil
}

// reorderPJF derives t's body order under opts.SortOrder and asks
// opts.Cache for the matching JoinIndexes, returning nil (keep t.Join
// as-is) if the cache lookup fails.
func reorderPJF(t *ir.ProjectJoinFilterOp, ji *plan.JoinIndexes, opts *Options) *plan.JoinIndexes {
	deltaIdx := -1
	for i, in := range t.Inputs {
		if s, ok := in.(*ir.ScanOp); ok && s.Gen == ir.Delta {
			deltaIdx = i
			break
		}
	}
	atomVars := func(i int) int { return countVars(t.Rule.Body[i]) }
	constCount := func(i int) int { return countConsts(t.Rule.Body[i]) }
	bodyHash := func(i int) uint64 { return t.Rule.Body[i].Hash() }
	order := plan.PresortSelect(len(t.Rule.Body), ji.Cxns, bodyHash, atomVars, constCount, opts.SortOrder, deltaIdx)
	reordered, err := opts.Cache.GetOrder(t.Rule, order)
	if err != nil {
		return nil
	}
	return reordered
}

func countVars(a term.Atom) int {
	n := 0
	for _, tm := range a.Terms {
		if tm.IsVariable() && !tm.IsAnonymous() {
			n++
		}
	}
	return n
}

func countConsts(a term.Atom) int {
	n := 0
	for _, tm := range a.Terms {
		if tm.IsConstant() {
			n++
		}
	}
	return n
}
