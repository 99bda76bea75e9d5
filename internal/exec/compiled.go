package exec

import (
	"log"

	"github.com/mwelt/seminaive/internal/ir"
	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/storage"
	"github.com/mwelt/seminaive/internal/term"
)

// Callable is a specialized node: a closure over one ir.Node's resolved
// constants (join indices, relation ids, projection layout) that runs
// against live storage with no further node-kind dispatch, per spec.md
// §4.5.
type Callable func(db *storage.Database) (*storage.Relation, error)

// SolveCompiled runs the staged executor's three surfaces back to back
// (tree generation, specialization, execution) and returns queryRel's
// known-derived tuples. It must produce byte-identical IDB state to
// SolveInterpreted for the same program.
func SolveCompiled(db *storage.Database, strata [][]term.Rule, cache *plan.Cache,
	relevantEDBs []term.RelID, queryRel term.RelID, opts *Options) (*storage.Relation, error) {

	tree, ctx, err := GenerateProgramTree(strata, cache)
	if err != nil {
		return nil, err
	}
	callable, err := Specialize(tree, ctx, opts)
	if err != nil {
		return nil, err
	}
	db.InitEvaluation(relevantEDBs)
	if _, err := SolvePreCompiled(callable, db); err != nil {
		return nil, err
	}
	return db.Known(queryRel), nil
}

// Context is the immutable planning context a tree was generated
// against; Specialize needs nothing beyond it and the tree itself, so
// (tree, ctx) pairs are safe to cache, per spec.md §4.5.
type Context struct {
	Cache *plan.Cache
}

// GenerateProgramTree is the staged executor's first surface: identical
// to the interpreted executor's tree construction.
func GenerateProgramTree(strata [][]term.Rule, cache *plan.Cache) (ir.Node, *Context, error) {
	tree, err := ir.Build(strata, cache)
	if err != nil {
		return nil, nil, err
	}
	return tree, &Context{Cache: cache}, nil
}

// Specialize is the staged executor's second surface: it walks tree once,
// resolving each ProjectJoinFilterOp's online-reordering decision (a pure
// function of the rule's structure, not of live data) up front, and
// returns a Callable that performs no further per-call dispatch over node
// kind -- except under opts.Granularity, which controls how far down
// that decomposition goes (see the Granularity doc comment in
// interp.go).
func Specialize(n ir.Node, ctx *Context, opts *Options) (Callable, error) {
	if opts != nil && opts.Granularity == GranularityProgram {
		tree := n
		return func(db *storage.Database) (*storage.Relation, error) {
			return Eval(db, tree, opts)
		}, nil
	}

	switch t := n.(type) {
	case *ir.ScanOp:
		rel, gen := t.Rel, t.Gen
		return func(db *storage.Database) (*storage.Relation, error) {
			return scan(db, &ir.ScanOp{Rel: rel, Gen: gen}), nil
		}, nil

	case *ir.ProjectJoinFilterOp:
		ji := t.Join
		if opts != nil && opts.OnlineSort != OnlineSortOff && opts.SortOrder != plan.Unordered && ctx.Cache != nil && len(t.Rule.Body) > 0 {
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
			if reordered, err := ctx.Cache.GetOrder(t.Rule, order); err == nil {
				ji = reordered
			}
		}

		if opts != nil && opts.Granularity == GranularityRule {
			// The reordering decision above is already final for this
			// Callable's lifetime, so the wrapped Eval call runs with no
			// Options at all -- it must not re-derive online reordering a
			// second time underneath it.
			resolved := &ir.ProjectJoinFilterOp{Rel: t.Rel, Join: ji, Rule: t.Rule, Inputs: t.Inputs, Arity: t.Arity}
			return func(db *storage.Database) (*storage.Relation, error) {
				return Eval(db, resolved, nil)
			}, nil
		}

		children := make([]Callable, len(t.Inputs))
		for i, in := range t.Inputs {
			c, err := Specialize(in, ctx, opts)
			if err != nil {
				return nil, err
			}
			children[i] = c
		}
		arity := t.Arity
		return func(db *storage.Database) (*storage.Relation, error) {
			inputs := make([]*storage.Relation, len(children))
			for i, c := range children {
				r, err := c(db)
				if err != nil {
					return nil, err
				}
				inputs[i] = r
			}
			return storage.ProjectJoinFilter(ji, inputs, arity), nil
		}, nil

	case *ir.UnionOp:
		children, err := specializeAll(t.Children, ctx, opts)
		if err != nil {
			return nil, err
		}
		arity := t.Arity
		return func(db *storage.Database) (*storage.Relation, error) {
			rels := make([]*storage.Relation, len(children))
			for i, c := range children {
				r, err := c(db)
				if err != nil {
					return nil, err
				}
				rels[i] = r
			}
			return storage.Union(arity, rels...), nil
		}, nil

	case *ir.DiffOp:
		left, err := Specialize(t.Left, ctx, opts)
		if err != nil {
			return nil, err
		}
		right, err := Specialize(t.Right, ctx, opts)
		if err != nil {
			return nil, err
		}
		return func(db *storage.Database) (*storage.Relation, error) {
			l, err := left(db)
			if err != nil {
				return nil, err
			}
			r, err := right(db)
			if err != nil {
				return nil, err
			}
			return storage.Diff(l, r), nil
		}, nil

	case *ir.ComplementOp:
		rel, info, arity := t.Rel, t.Info, t.Arity
		return func(db *storage.Database) (*storage.Relation, error) {
			return storage.Complement(db, rel, arity, info), nil
		}, nil

	case *ir.GroupOp:
		input, err := Specialize(t.Input, ctx, opts)
		if err != nil {
			return nil, err
		}
		gidx := t.GIdx
		return func(db *storage.Database) (*storage.Relation, error) {
			in, err := input(db)
			if err != nil {
				return nil, err
			}
			return storage.GroupByAggregate(gidx, in), nil
		}, nil

	case *ir.InsertOp:
		value, err := Specialize(t.Value, ctx, opts)
		if err != nil {
			return nil, err
		}
		rel, gen := t.Rel, t.Gen
		return func(db *storage.Database) (*storage.Relation, error) {
			val, err := value(db)
			if err != nil {
				return nil, err
			}
			switch gen {
			case ir.New:
				db.ResetNew(rel, val)
			case ir.DeltaNew:
				db.ResetNewDelta(rel, val)
			}
			return val, nil
		}, nil

	case *ir.SwapAndClearOp:
		return func(db *storage.Database) (*storage.Relation, error) {
			db.SwapKnowledge()
			return nil, nil
		}, nil

	case *ir.SequenceOp:
		children, err := specializeAll(t.Children, ctx, opts)
		if err != nil {
			return nil, err
		}
		return func(db *storage.Database) (*storage.Relation, error) {
			var last *storage.Relation
			for _, c := range children {
				v, err := c(db)
				if err != nil {
					return nil, err
				}
				last = v
			}
			return last, nil
		}, nil

	case *ir.DoWhileOp:
		body, err := Specialize(t.Body, ctx, opts)
		if err != nil {
			return nil, err
		}
		test := t.Test
		return func(db *storage.Database) (*storage.Relation, error) {
			for {
				if _, err := body(db); err != nil {
					return nil, err
				}
				known, delta, rels := db.Stats()
				log.Printf("datalog: iteration %d: %d known tuples, %d delta tuples, %d relations", db.Iteration(), known, delta, rels)
				if testHolds(db, test) {
					break
				}
			}
			return nil, nil
		}, nil
	}
	panic("exec: unknown ir.Node type")
}

func specializeAll(nodes []ir.Node, ctx *Context, opts *Options) ([]Callable, error) {
	out := make([]Callable, len(nodes))
	for i, n := range nodes {
		c, err := Specialize(n, ctx, opts)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// SolvePreCompiled is the staged executor's third surface: run an
// already-specialized callable against live storage.
func SolvePreCompiled(c Callable, db *storage.Database) (*storage.Relation, error) {
	return c(db)
}
