package storage

import (
	"github.com/mwelt/seminaive/internal/plan"
	"github.com/mwelt/seminaive/internal/term"
)

// ProjectJoinFilter evaluates one rule body against the relations
// driving it, per spec.md §4.1. It is deliberately uniform over positive,
// negated and grouping atoms: the caller resolves, for atom i, whichever
// relation ji.Order actually means to scan there -- Known/KnownDelta for a
// positive atom, the materialized Complement for a negated one (see
// Complement below), the materialized GroupByAggregate output for a
// grouping one -- and hands it in via inputs[i]. This mirrors the
// teacher's findMappingsFor (database.go), generalized from its
// positional (s, p, o) equality test to ji's n-ary ConstIndexes/
// VarIndexes/Disequal, and from its fixed triple scan to an arbitrary
// body of arity-n atoms evaluated in ji.Order.
func ProjectJoinFilter(ji *plan.JoinIndexes, inputs []*Relation, headArity int) *Relation {
	out := NewRelation(headArity)
	assign := make([]Tuple, len(inputs))

	var rec func(k int)
	rec = func(k int) {
		if k == len(ji.Order) {
			for _, de := range ji.Disequal {
				if valuesEqual(assign[de[0].Atom][de[0].Term], assign[de[1].Atom][de[1].Term]) {
					return
				}
			}
			tup := make(Tuple, headArity)
			for i, src := range ji.ProjIndexes {
				if src.IsConst {
					tup[i] = src.Const
					continue
				}
				tup[i] = assign[src.From.Atom][src.From.Term]
			}
			out.Insert(tup)
			return
		}

		atomIdx := ji.Order[k]
		rel := inputs[atomIdx]
		if rel == nil {
			return
		}
		for _, t := range rel.Tuples() {
			ok := true
			for j, v := range t {
				if cv, isConst := ji.ConstIndexes[plan.Pos{Atom: atomIdx, Term: j}]; isConst {
					if !valuesEqual(cv, v) {
						ok = false
						break
					}
				}
			}
			if !ok {
				continue
			}
			assign[atomIdx] = t
			if consistentSoFar(ji, assign) {
				rec(k + 1)
			}
			assign[atomIdx] = nil
		}
	}
	rec(0)
	return out
}

// consistentSoFar checks every variable-equality group in ji.VarIndexes
// whose positions are all already bound in assign; groups with a
// not-yet-processed atom are skipped (they'll be checked once complete).
func consistentSoFar(ji *plan.JoinIndexes, assign []Tuple) bool {
	for _, group := range ji.VarIndexes {
		var first term.Value
		haveFirst := false
		for _, p := range group {
			if assign[p.Atom] == nil {
				break
			}
			v := assign[p.Atom][p.Term]
			if !haveFirst {
				first, haveFirst = v, true
				continue
			}
			if !valuesEqual(first, v) {
				return false
			}
		}
	}
	return true
}

func valuesEqual(a, b term.Value) bool { return a == b }

// Complement materializes the negated-atom universe described by info,
// per spec.md §4.1/§9: for each position, the candidate domain is the
// literal constant if ji fixed one, else the union of values observed
// in that exact (relation, column) across the atoms info.Occurrences
// names, else -- when a variable has no positive occurrence to draw a
// domain from at all -- the coarse fallback of every value known to db
// at all, which is the "full universe" case spec.md flags as worst-case.
// The result is the cartesian product of those domains minus whatever
// tuples rel actually holds.
func Complement(db *Database, rel term.RelID, arity int, info *plan.NegInfo) *Relation {
	domains := make([][]term.Value, arity)
	for j, pos := range info.PerPos {
		switch {
		case pos.IsConst:
			domains[j] = []term.Value{pos.Const}
		case len(pos.Occurrences) > 0:
			domains[j] = occurrenceDomain(db, pos.Occurrences)
		default:
			domains[j] = db.AllValues()
		}
	}

	known := db.Known(rel)
	out := NewRelation(arity)
	tup := make(Tuple, arity)
	var rec func(j int)
	rec = func(j int) {
		if j == arity {
			if !known.Has(tup) {
				cp := make(Tuple, arity)
				copy(cp, tup)
				out.Insert(cp)
			}
			return
		}
		for _, v := range domains[j] {
			tup[j] = v
			rec(j + 1)
		}
	}
	rec(0)
	return out
}

func occurrenceDomain(db *Database, occs []plan.Occurrence) []term.Value {
	seen := make(map[term.Value]bool)
	var vals []term.Value
	for _, occ := range occs {
		for _, t := range db.Known(occ.Rel).Tuples() {
			v := t[occ.Col]
			if !seen[v] {
				seen[v] = true
				vals = append(vals, v)
			}
		}
	}
	return vals
}

// aggAcc accumulates one aggregation descriptor's running result across
// a group's rows.
type aggAcc struct {
	op       term.AggOp
	sumInt   int64
	sumFloat float64
	isFloat  bool
	count    int64
	min, max term.Value
	haveMin  bool
	haveMax  bool
}

func (a *aggAcc) add(v term.Value) {
	a.count++
	switch a.op {
	case term.AggSum:
		switch n := v.(type) {
		case int:
			a.sumInt += int64(n)
		case int64:
			a.sumInt += n
		case float64:
			a.isFloat = true
			a.sumFloat += n
		}
	case term.AggMin:
		if !a.haveMin || compareValues(v, a.min) < 0 {
			a.min, a.haveMin = v, true
		}
	case term.AggMax:
		if !a.haveMax || compareValues(v, a.max) > 0 {
			a.max, a.haveMax = v, true
		}
	}
}

func (a *aggAcc) result() term.Value {
	switch a.op {
	case term.AggCount:
		return a.count
	case term.AggSum:
		if a.isFloat {
			return a.sumFloat + float64(a.sumInt)
		}
		return a.sumInt
	case term.AggMin:
		return a.min
	case term.AggMax:
		return a.max
	}
	return nil
}

// GroupByAggregate materializes a grouping atom's output relation, per
// spec.md §4.1 (groupByAggregate) and §8 (SUM/COUNT/MIN/MAX over a
// `group by` clause): rows of sub are filtered by gidx's local constant
// and variable-equality constraints, bucketed by the gidx.GroupBy
// columns, and reduced by gidx.AggSources. The output tuple layout is
// [group key in GroupBy order, aggregates in AggSources order], matching
// the Pos{i, k} canonical bindings the planner hands out for a grouping
// atom's group-by variables.
func GroupByAggregate(gidx *plan.GroupingIndex, sub *Relation) *Relation {
	arity := len(gidx.GroupBy) + len(gidx.AggSources)
	out := NewRelation(arity)

	type group struct {
		key  Tuple
		accs []*aggAcc
	}
	groups := make(map[string]*group)
	var order []string

	for _, t := range sub.Tuples() {
		ok := true
		for pos, cv := range gidx.ConstIndexes {
			if !valuesEqual(t[pos], cv) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		for _, eq := range gidx.VarIndexes {
			v0 := t[eq[0]]
			for _, p := range eq[1:] {
				if !valuesEqual(t[p], v0) {
					ok = false
					break
				}
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}

		key := make(Tuple, len(gidx.GroupBy))
		for i, p := range gidx.GroupBy {
			key[i] = t[p]
		}
		keyStr := key.String()
		g, exists := groups[keyStr]
		if !exists {
			g = &group{key: key, accs: make([]*aggAcc, len(gidx.AggSources))}
			for i, ag := range gidx.AggSources {
				g.accs[i] = &aggAcc{op: ag.Op}
			}
			groups[keyStr] = g
			order = append(order, keyStr)
		}
		for i, ag := range gidx.AggSources {
			var v term.Value
			switch ag.Source {
			case plan.SourceC:
				v = ag.Const
			case plan.SourceGV:
				v = key[ag.Pos]
			case plan.SourceLV:
				v = t[ag.Pos]
			}
			g.accs[i].add(v)
		}
	}

	for _, k := range order {
		g := groups[k]
		tup := make(Tuple, arity)
		copy(tup, g.key)
		for i, acc := range g.accs {
			tup[len(g.key)+i] = acc.result()
		}
		out.Insert(tup)
	}
	return out
}

// AllValues returns every distinct value held anywhere in db's
// known-generation relations (EDB and derived), the worst-case universe
// Complement falls back to when a negated variable has no positive
// occurrence to draw a narrower domain from.
func (d *Database) AllValues() []term.Value {
	seen := make(map[term.Value]bool)
	var vals []term.Value
	collect := func(r *Relation) {
		if r == nil {
			return
		}
		for _, t := range r.Tuples() {
			for _, v := range t {
				if !seen[v] {
					seen[v] = true
					vals = append(vals, v)
				}
			}
		}
	}
	for _, r := range d.edb {
		collect(r)
	}
	for _, r := range d.idb[d.known] {
		collect(r)
	}
	return vals
}
