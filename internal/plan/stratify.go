package plan

import (
	"sort"

	"github.com/mwelt/seminaive/internal/errs"
	"github.com/mwelt/seminaive/internal/term"
)

// Stratify groups rules into strata for stratified evaluation, per
// spec.md §4.6 ("Stratification") and §9 ("Cyclic rule dependencies"):
// relations are topologically ordered over the dependency graph induced
// by rule heads/bodies; a negated or grouping edge closing a cycle (both
// endpoints in the same strongly-connected component) is rejected with
// ErrUnstratifiableNegationOrAggregation. The returned strata are
// ordered so that every relation a stratum's rules depend on has
// already been fully evaluated by an earlier stratum, except for
// positive self/mutual recursion within the same stratum.
func Stratify(rules []term.Rule) ([][]term.Rule, error) {
	type rawEdge struct {
		from, to term.RelID
		kind     EdgeKind
	}

	nodeIdx := make(map[term.RelID]int)
	var nodes []term.RelID
	nodeID := func(r term.RelID) int {
		if id, ok := nodeIdx[r]; ok {
			return id
		}
		id := len(nodes)
		nodeIdx[r] = id
		nodes = append(nodes, r)
		return id
	}

	var edges []rawEdge
	for _, r := range rules {
		nodeID(r.Head.Rel)
		for _, b := range r.Body {
			if b.IsGrouping() {
				nodeID(b.Group.Sub.Rel)
				edges = append(edges, rawEdge{r.Head.Rel, b.Group.Sub.Rel, EdgeGrouping})
				continue
			}
			nodeID(b.Rel)
			kind := EdgePositive
			if b.Negated {
				kind = EdgeNegated
			}
			edges = append(edges, rawEdge{r.Head.Rel, b.Rel, kind})
		}
	}

	n := len(nodes)
	adj := make([][]int, n)
	for _, e := range edges {
		adj[nodeID(e.from)] = append(adj[nodeID(e.from)], nodeID(e.to))
	}

	comp := tarjanSCC(adj)

	for _, e := range edges {
		if e.kind == EdgePositive {
			continue
		}
		if comp[nodeID(e.from)] == comp[nodeID(e.to)] {
			return nil, errs.ErrUnstratifiableNegationOrAggregation
		}
	}

	numComp := 0
	for _, c := range comp {
		if c+1 > numComp {
			numComp = c + 1
		}
	}

	// Build the condensation graph with edges reversed (bodyComp ->
	// headComp, "must be evaluated before"), then Kahn-sort it so
	// stratum order respects every dependency.
	compAdj := make(map[int]map[int]bool, numComp)
	indeg := make([]int, numComp)
	for i := 0; i < numComp; i++ {
		compAdj[i] = make(map[int]bool)
	}
	for _, e := range edges {
		hc, bc := comp[nodeID(e.from)], comp[nodeID(e.to)]
		if hc == bc {
			continue
		}
		if !compAdj[bc][hc] {
			compAdj[bc][hc] = true
			indeg[hc]++
		}
	}

	order := make([]int, 0, numComp)
	queue := make([]int, 0, numComp)
	for i := 0; i < numComp; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}
	sort.Ints(queue)
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		order = append(order, c)
		next := make([]int, 0, len(compAdj[c]))
		for to := range compAdj[c] {
			indeg[to]--
			if indeg[to] == 0 {
				next = append(next, to)
			}
		}
		sort.Ints(next)
		queue = append(queue, next...)
		sort.Ints(queue)
	}

	stratumOf := make([]int, numComp)
	for pos, c := range order {
		stratumOf[c] = pos
	}

	rulesByComp := make(map[int][]term.Rule)
	for _, r := range rules {
		c := comp[nodeID(r.Head.Rel)]
		rulesByComp[c] = append(rulesByComp[c], r)
	}

	strata := make([][]term.Rule, 0, numComp)
	for _, c := range order {
		if rs, ok := rulesByComp[c]; ok {
			strata = append(strata, rs)
		}
	}
	return strata, nil
}

// tarjanSCC returns, for each node index, the id of its strongly
// connected component. Component ids are not meaningfully ordered by
// this function; callers topologically sort the condensation
// separately.
func tarjanSCC(adj [][]int) []int {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	comp := make([]int, n)
	for i := range index {
		index[i] = -1
	}

	var stack []int
	counter := 0
	compCount := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		low[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = compCount
				if w == v {
					break
				}
			}
			compCount++
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}

	return comp
}
