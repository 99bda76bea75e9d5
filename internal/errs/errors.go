// Package errs holds the engine's error taxonomy (spec.md §7): one
// sentinel per error class, fatal to the current solve and surfaced
// synchronously at the point of detection. The storage manager and the
// root package wrap these sentinels with github.com/pkg/errors.Wrapf to
// attach the offending relation id; the planner and stratifier return
// them bare. Either way callers match with errors.Is against the
// sentinel defined here.
package errs

import "github.com/pkg/errors"

var (
	// ErrVariableOnlyInNegatedContext: planning time -- a body variable
	// has no non-negated, non-aggregated occurrence to bind it.
	ErrVariableOnlyInNegatedContext = errors.New("datalog: variable only appears in a negated or aggregated context")

	// ErrFreeHeadVariable: planning time -- a head variable is not
	// canonically bound anywhere in the body.
	ErrFreeHeadVariable = errors.New("datalog: free variable in rule head")

	// ErrAnonymousHeadVariable: planning time -- the rule head contains
	// an anonymous variable.
	ErrAnonymousHeadVariable = errors.New("datalog: anonymous variable in rule head")

	// ErrUnstratifiableNegationOrAggregation: planning time -- the
	// dependency graph has a cycle crossing a negated or grouping edge.
	ErrUnstratifiableNegationOrAggregation = errors.New("datalog: unstratifiable recursion through negation or aggregation")

	// ErrUnknownRelation: solve time -- a rule references a relation id
	// with no EDB and no producing rule.
	ErrUnknownRelation = errors.New("datalog: unknown relation")

	// ErrArityMismatch: EDB insert or rule validation time -- a tuple or
	// atom's term count does not match the relation's declared arity.
	ErrArityMismatch = errors.New("datalog: arity mismatch")

	// ErrAggregationOnUnboundVariable: planning time -- an aggregation
	// operand is neither a group-by variable nor a local variable of the
	// grouped sub-atom.
	ErrAggregationOnUnboundVariable = errors.New("datalog: aggregation operand is not bound by the grouped atom")
)
