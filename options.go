package seminaive

import (
	"github.com/mwelt/seminaive/internal/exec"
	"github.com/mwelt/seminaive/internal/plan"
)

// SortOrder re-exports the body-reordering heuristics of spec.md §4.2/§6.
type SortOrder = plan.SortOrder

const (
	Unordered = plan.Unordered
	Badluck   = plan.Badluck
	Sel       = plan.Sel
	Mixed     = plan.Mixed
	IntMax    = plan.IntMax
	Worst     = plan.Worst
)

// OnlineSort re-exports spec.md §6's onlineSort granularity.
type OnlineSort = exec.OnlineSort

const (
	OnlineSortOff     = exec.OnlineSortOff
	OnlineSortPerRule = exec.OnlineSortPerRule
	OnlineSortPerStep = exec.OnlineSortPerStep
)

// Option configures a solve's jitOptions, per spec.md §6.
type Option func(*exec.Options)

// WithSortOrder sets the body-reordering heuristic.
func WithSortOrder(o SortOrder) Option {
	return func(opts *exec.Options) { opts.SortOrder = o }
}

// WithOnlineSort sets how often the interpreted executor re-derives body
// order during a solve.
func WithOnlineSort(s OnlineSort) Option {
	return func(opts *exec.Options) { opts.OnlineSort = s }
}

// Granularity re-exports spec.md §6's staged-executor specialization
// unit. GranularityAtom is the zero value: Specialize decomposes all the
// way down to per-atom closures unless told otherwise.
type Granularity = exec.Granularity

const (
	GranularityAtom    = exec.GranularityAtom
	GranularityRule    = exec.GranularityRule
	GranularityProgram = exec.GranularityProgram
)

// WithGranularity sets the staged executor's specialization unit.
func WithGranularity(g Granularity) Option {
	return func(opts *exec.Options) { opts.Granularity = g }
}
