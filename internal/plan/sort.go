package plan

import "sort"

// SortOrder selects the body-atom reordering heuristic the planner
// applies before execution, per spec.md §4.2.
type SortOrder uint8

const (
	Unordered SortOrder = iota
	Badluck
	Sel
	Mixed
	IntMax
	Worst
)

// RankFunc scores one body atom for the initial stack in presortSelect:
// the boolean reports whether the atom is eligible to be picked (every
// RankFunc here returns true, and PresortSelect does not consult it),
// the int is its cost -- lower sorts first.
type RankFunc func(atomVars int, constCount int, isDelta bool) (bool, int)

// RankSel favors the most selective atom (most constants bound) and
// always pins the delta slot first.
func RankSel(atomVars, constCount int, isDelta bool) (bool, int) {
	cost := atomVars - constCount
	if isDelta {
		cost -= 1000
	}
	return true, cost
}

// RankMixed favors atoms with fewer variables, ignoring constants, and
// pins the delta slot first like RankSel.
func RankMixed(atomVars, constCount int, isDelta bool) (bool, int) {
	cost := atomVars
	if isDelta {
		cost -= 1000
	}
	return true, cost
}

// RankIntMax favors atoms with the most variables, maximizing the
// intermediate binding available to later atoms.
func RankIntMax(atomVars, constCount int, isDelta bool) (bool, int) {
	cost := -atomVars
	if isDelta {
		cost -= 1000
	}
	return true, cost
}

func rankFor(order SortOrder) RankFunc {
	switch order {
	case Sel:
		return RankSel
	case Mixed:
		return RankMixed
	case IntMax, Worst:
		return RankIntMax
	default:
		return nil
	}
}

// PresortSelect implements the greedy best-first body reordering of
// spec.md §4.2: the initial stack is every body atom sorted by rank;
// it pops the head, then repeatedly chooses the next atom from the
// highest-connectivity (or, for Worst, lowest-connectivity) peers of
// the just-placed atom still on the stack, falling back to the next
// stack element when no connected peer remains.
//
// bodyHash(i) must return the same hash Compile used to key ji.Cxns for
// atom i (i.e. term.Atom.Hash()); atomVars/constCount describe atom i
// for ranking; deltaIdx is the body index currently playing the
// semi-naive delta slot, or -1 if none.
func PresortSelect(n int, cxns map[uint64]map[int][]int, bodyHash func(int) uint64,
	atomVars, constCount func(int) int, order SortOrder, deltaIdx int) []int {

	if order == Unordered || order == Badluck || n == 0 {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}

	rank := rankFor(order)
	descending := order != Worst

	type scored struct {
		idx  int
		cost int
	}
	stack := make([]scored, n)
	for i := 0; i < n; i++ {
		_, cost := rank(atomVars(i), constCount(i), i == deltaIdx)
		stack[i] = scored{i, cost}
	}
	sort.SliceStable(stack, func(a, b int) bool { return stack[a].cost < stack[b].cost })

	remaining := make(map[int]bool, n)
	for i := 0; i < n; i++ {
		remaining[i] = true
	}

	result := make([]int, 0, n)
	cur := stack[0].idx
	result = append(result, cur)
	delete(remaining, cur)
	stackIdx := 1

	for len(result) < n {
		peers := cxns[bodyHash(cur)]
		picked := -1
		if len(peers) > 0 {
			counts := make([]int, 0, len(peers))
			for c := range peers {
				counts = append(counts, c)
			}
			sort.Ints(counts)
			if descending {
				for i, j := 0, len(counts)-1; i < j; i, j = i+1, j-1 {
					counts[i], counts[j] = counts[j], counts[i]
				}
			}
		outer:
			for _, c := range counts {
				for _, peer := range peers[c] {
					if remaining[peer] {
						picked = peer
						break outer
					}
				}
			}
		}
		if picked < 0 {
			for stackIdx < n {
				cand := stack[stackIdx].idx
				stackIdx++
				if remaining[cand] {
					picked = cand
					break
				}
			}
		}
		if picked < 0 {
			// Every remaining atom was already consumed by a previous
			// iteration's lookahead; fall back to insertion order.
			for i := 0; i < n; i++ {
				if remaining[i] {
					picked = i
					break
				}
			}
		}
		result = append(result, picked)
		delete(remaining, picked)
		cur = picked
	}

	return result
}

// AllOrders returns every permutation of [0, n), used by allOrders-style
// exhaustive planning during development and tests (spec.md §4.2). It
// is only practical for small n.
func AllOrders(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	base := make([]int, n)
	for i := range base {
		base[i] = i
	}
	var out [][]int
	var permute func(prefix, rest []int)
	permute = func(prefix, rest []int) {
		if len(rest) == 0 {
			cp := make([]int, len(prefix))
			copy(cp, prefix)
			out = append(out, cp)
			return
		}
		for i, v := range rest {
			nextRest := make([]int, 0, len(rest)-1)
			nextRest = append(nextRest, rest[:i]...)
			nextRest = append(nextRest, rest[i+1:]...)
			permute(append(prefix, v), nextRest)
		}
	}
	permute(nil, base)
	return out
}
