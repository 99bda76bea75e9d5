package seminaive

import "github.com/mwelt/seminaive/internal/errs"

// Error sentinels, per spec.md §7. Use errors.Is against these; errors
// from the storage manager and the Program builder wrap one with a
// message naming the offending relation, planner errors are returned
// unwrapped.
var (
	ErrVariableOnlyInNegatedContext       = errs.ErrVariableOnlyInNegatedContext
	ErrFreeHeadVariable                   = errs.ErrFreeHeadVariable
	ErrAnonymousHeadVariable              = errs.ErrAnonymousHeadVariable
	ErrUnstratifiableNegationOrAggregation = errs.ErrUnstratifiableNegationOrAggregation
	ErrUnknownRelation                     = errs.ErrUnknownRelation
	ErrArityMismatch                       = errs.ErrArityMismatch
	ErrAggregationOnUnboundVariable        = errs.ErrAggregationOnUnboundVariable
)
