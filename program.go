package seminaive

import (
	"github.com/pkg/errors"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/storage"
	"github.com/mwelt/seminaive/internal/term"
)

// Convenient aliases for the core value types, per spec.md §6's program
// builder surface: callers of this package never need to import the
// internal/term package directly.
type (
	RelID     = term.RelID
	VarID     = term.VarID
	Value     = term.Value
	Term      = term.Term
	Atom      = term.Atom
	Rule      = term.Rule
	Tuple     = storage.Tuple
	GroupSpec = term.GroupSpec
	AggDesc   = term.AggDesc
	AggOp     = term.AggOp
)

const (
	Sum   = term.AggSum
	Count = term.AggCount
	Min   = term.AggMin
	Max   = term.AggMax
)

// Constant, Variable and Anonymous build Terms, per spec.md §3.
func Constant(v Value) Term    { return term.Constant(v) }
func Variable(id VarID) Term   { return term.Variable(id) }
func Anonymous(id VarID) Term  { return term.Anonymous(id) }

// Program is the builder surface of spec.md §6: declareRelation,
// declareVariable, assertEDB, addRule. It generalizes the teacher's
// Database.addAtom, which both declares and asserts in a single
// untyped-triple call, into separate declaration and assertion steps
// over arbitrary-arity relations.
type Program struct {
	db       *storage.Database
	relNames map[string]RelID
	nextRel  RelID
	nextVar  VarID
	rules    []Rule
}

// NewProgram returns an empty program.
func NewProgram() *Program {
	return &Program{
		db:       storage.New(),
		relNames: make(map[string]RelID),
	}
}

// DeclareRelation returns name's relation id, assigning one on first use.
func (p *Program) DeclareRelation(name string) RelID {
	if id, ok := p.relNames[name]; ok {
		return id
	}
	id := p.nextRel
	p.nextRel++
	p.relNames[name] = id
	return id
}

// DeclareVariable returns a fresh variable id.
func (p *Program) DeclareVariable() VarID {
	id := p.nextVar
	p.nextVar++
	return id
}

// AssertEDB appends a ground tuple to rel's extensional relation,
// registering rel's arity from this tuple's length on first use.
func (p *Program) AssertEDB(rel RelID, t Tuple) error {
	return p.db.AssertEDB(rel, t)
}

// AddRule adds a rule to the program, registering the arity of every
// relation it mentions (head, body atoms, and grouped sub-atoms) on
// first use and marking the head relation as intensional. A relation
// referenced a second time at a different arity than its first sighting
// fails immediately with ErrArityMismatch, per spec.md §7's "EDB insert
// or rule validation time."
func (p *Program) AddRule(r Rule) error {
	if err := p.registerArity(r.Head); err != nil {
		return err
	}
	for _, b := range r.Body {
		if b.IsGrouping() {
			if err := p.registerArity(b.Group.Sub); err != nil {
				return err
			}
			continue
		}
		if err := p.registerArity(b); err != nil {
			return err
		}
	}
	p.db.RegisterIDB(r.Head.Rel, r.Head.Arity())
	p.rules = append(p.rules, r)
	return nil
}

func (p *Program) registerArity(a Atom) error {
	arity, err := p.db.Arity(a.Rel)
	if err != nil {
		p.db.RegisterEDB(a.Rel, a.Arity())
		return nil
	}
	if arity != a.Arity() {
		return errors.Wrapf(errs.ErrArityMismatch, "rel %d: expected arity %d, got %d", a.Rel, arity, a.Arity())
	}
	return nil
}

// Mark and Revert expose the storage manager's commit/revert journal
// (SPEC_FULL.md §12) for callers that want to try a batch of EDB
// assertions and roll them back.
func (p *Program) Mark() storage.Mark { return p.db.Mark() }
func (p *Program) Revert(m storage.Mark) { p.db.Revert(m) }
