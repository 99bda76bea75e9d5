package seminaive

import (
	"github.com/pkg/errors"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/exec"
	"github.com/mwelt/seminaive/internal/ir"
	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/storage"
	"github.com/mwelt/seminaive/internal/term"
)

// Engine is a compiled Program, ready to solve: its rules have been
// stratified once (spec.md §4.6) and share one planner cache (spec.md
// §4.2) across every solve. It generalizes the teacher's Database, which
// carries no compiled plan at all and re-derives join shape on every
// call to solve()/hasFact().
type Engine struct {
	db           *storage.Database
	cache        *plan.Cache
	strata       [][]term.Rule
	relevantEDBs []RelID
}

// NewEngine stratifies p's rules and returns a ready-to-solve Engine, or
// an error if a rule references an undeclared relation
// (errs.ErrUnknownRelation) or the rules are unstratifiable
// (errs.ErrUnstratifiableNegationOrAggregation). Rules are not compiled
// here: planner errors (errs.ErrFreeHeadVariable, etc.) surface from the
// first solve or GenerateProgramTree call.
func NewEngine(p *Program) (*Engine, error) {
	if err := validateRelations(p); err != nil {
		return nil, err
	}
	strata, err := plan.Stratify(p.rules)
	if err != nil {
		return nil, err
	}
	return &Engine{
		db:           p.db,
		cache:        plan.NewCache(),
		strata:       strata,
		relevantEDBs: relevantEDBs(p),
	}, nil
}

// validateRelations rejects, with ErrUnknownRelation, any relation id
// referenced in a rule (head, body atom, or grouped sub-atom) that this
// Program never handed out via DeclareRelation. It runs when the Engine
// is built, not at solve time. A relation that DeclareRelation did return is
// always legitimate here even with zero asserted facts and no defining
// rule (an intentionally empty EDB relation is not an error, per the
// "empty fixpoint" scenario of spec.md §8).
func validateRelations(p *Program) error {
	valid := func(rel RelID) bool { return rel >= 0 && rel < p.nextRel }
	check := func(a Atom) error {
		if !valid(a.Rel) {
			return errors.Wrapf(errs.ErrUnknownRelation, "rel %d", a.Rel)
		}
		return nil
	}
	for _, r := range p.rules {
		if err := check(r.Head); err != nil {
			return err
		}
		for _, b := range r.Body {
			if b.IsGrouping() {
				if err := check(b.Group.Sub); err != nil {
					return err
				}
				continue
			}
			if err := check(b); err != nil {
				return err
			}
		}
	}
	return nil
}

// relevantEDBs collects every relation id, EDB or IDB, referenced
// anywhere in the program's rule bodies (including grouped sub-atoms),
// per spec.md §4.6 step 2.
func relevantEDBs(p *Program) []RelID {
	seen := make(map[RelID]bool)
	var out []RelID
	add := func(rel RelID) {
		if !seen[rel] {
			seen[rel] = true
			out = append(out, rel)
		}
	}
	for _, r := range p.rules {
		for _, b := range r.Body {
			if b.IsGrouping() {
				add(b.Group.Sub.Rel)
				continue
			}
			add(b.Rel)
		}
	}
	return out
}

// SolveInterpreted runs the interpreted executor (spec.md §4.4) to
// fixpoint and returns query's known-derived tuples.
func (e *Engine) SolveInterpreted(query RelID, opts ...Option) (*storage.Relation, error) {
	return exec.SolveInterpreted(e.db, e.strata, e.cache, e.relevantEDBs, query, e.resolve(opts))
}

// SolveCompiled runs the staged executor's three surfaces back to back
// (spec.md §4.5) and returns query's known-derived tuples. It must agree
// with SolveInterpreted for the same program and query.
func (e *Engine) SolveCompiled(query RelID, opts ...Option) (*storage.Relation, error) {
	return exec.SolveCompiled(e.db, e.strata, e.cache, e.relevantEDBs, query, e.resolve(opts))
}

// GenerateProgramTree is the staged executor's first surface, exposed
// standalone so compile cost can be measured independently of run cost
// (spec.md §4.5).
func (e *Engine) GenerateProgramTree() (ir.Node, *exec.Context, error) {
	return exec.GenerateProgramTree(e.strata, e.cache)
}

// Specialize is the staged executor's second surface.
func (e *Engine) Specialize(tree ir.Node, ctx *exec.Context, opts ...Option) (exec.Callable, error) {
	return exec.Specialize(tree, ctx, e.resolve(opts))
}

// RunSpecialized is the staged executor's third surface: it resets
// evaluation state and runs an already-specialized callable, returning
// query's known-derived tuples.
func (e *Engine) RunSpecialized(c exec.Callable, query RelID) (*storage.Relation, error) {
	e.db.InitEvaluation(e.relevantEDBs)
	if _, err := exec.SolvePreCompiled(c, e.db); err != nil {
		return nil, err
	}
	return e.db.Known(query), nil
}

func (e *Engine) resolve(opts []Option) *exec.Options {
	o := &exec.Options{Cache: e.cache}
	for _, f := range opts {
		f(o)
	}
	return o
}
