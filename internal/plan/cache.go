package plan

import "github.com/mwelt/seminaive/internal/term"

// Cache memoizes JoinIndexes by rule hash (and, for reordered variants,
// by permutation hash), per spec.md §4.2 ("Planner results are memoized
// by rule-hash ... inside a per-rule index cache"). Planning runs
// single-threaded, before or lazily during execution (spec.md §5), so
// no locking is required here.
type Cache struct {
	byRule        map[uint64]*JoinIndexes
	byPermutation map[uint64]*JoinIndexes
}

// NewCache returns an empty planner cache.
func NewCache() *Cache {
	return &Cache{
		byRule:        make(map[uint64]*JoinIndexes),
		byPermutation: make(map[uint64]*JoinIndexes),
	}
}

// Get returns r's canonical (body-order) JoinIndexes, compiling and
// caching it on first use.
func (c *Cache) Get(r term.Rule) (*JoinIndexes, error) {
	h := r.Hash()
	if ji, ok := c.byRule[h]; ok {
		return ji, nil
	}
	ji, err := Compile(r)
	if err != nil {
		return nil, err
	}
	c.byRule[h] = ji
	return ji, nil
}

// GetOrder returns the JoinIndexes for r's body under the given
// permutation, compiling and caching it on first use.
func (c *Cache) GetOrder(r term.Rule, order []int) (*JoinIndexes, error) {
	h := r.PermutationHash(order)
	if ji, ok := c.byPermutation[h]; ok {
		return ji, nil
	}
	ji, err := CompileOrder(r, order)
	if err != nil {
		return nil, err
	}
	c.byPermutation[h] = ji
	return ji, nil
}
