package planner

import (
	"sort"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/filter"
	"github.com/semcube/semcube/query"
)

// buildCTEs identifies every hasMany join from primary whose target
// cube contributes a measure to the query (from SELECT or from any
// filter), and builds a CTEPlan for each (spec §4.7). belongsToMany
// never triggers a CTE.
func (p *Planner) buildCTEs(primary string, q query.SemanticQuery, referenced []string) ([]CTEPlan, error) {
	primaryCube, ok := p.registry.Get(primary)
	if !ok {
		return nil, nil
	}

	referencedSet := make(map[string]bool, len(referenced))
	for _, r := range referenced {
		referencedSet[r] = true
	}

	var ctes []CTEPlan
	for _, j := range primaryCube.Joins() {
		if j.Relationship != cube.HasMany {
			continue
		}
		if !referencedSet[j.Target] {
			continue
		}

		targetCube, ok := p.registry.Get(j.Target)
		if !ok {
			continue
		}

		measureRefs := measureRefsForCube(q, targetCube, j.Target)
		if len(measureRefs) == 0 {
			continue
		}

		expanded := expandMeasureDeps(p.registry, measureRefs)

		joinKeys := make([]JoinKey, len(j.On))
		for i, jc := range j.On {
			joinKeys[i] = JoinKey{SourceColumn: jc.Source.Name, TargetColumn: jc.Target.Name}
		}

		ctes = append(ctes, CTEPlan{
			Cube:               j.Target,
			CTEAlias:           j.Target + "_agg",
			JoinKeys:           joinKeys,
			Measures:           expanded,
			PropagatingFilters: p.propagatingFilters(j.Target, q.Filters),
		})
	}

	return ctes, nil
}

// measureRefsForCube collects every measure reference of cubeName that
// appears in the query's SELECT measures or anywhere in its filters.
func measureRefsForCube(q query.SemanticQuery, c *cube.Cube, cubeName string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(ref string) {
		if filter.Cube(ref) != cubeName {
			return
		}
		if _, ok := c.Measure(filter.Field(ref)); !ok {
			return
		}
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}

	for _, ref := range q.Measures {
		add(ref)
	}
	for _, f := range q.Filters {
		for _, cond := range filter.Flatten(f) {
			add(cond.Member)
		}
	}

	sort.Strings(out)
	return out
}

// expandMeasureDeps resolves every calculated measure in refs down to
// its transitive set of simple-measure dependencies, per spec's
// "expanded for calculated dependencies" — calculated measures
// themselves are never projected from a CTE, only the base measures
// that feed them.
func expandMeasureDeps(r *cube.Registry, refs []string) []string {
	seen := make(map[string]bool)
	var out []string

	var walk func(ref string)
	walk = func(ref string) {
		cubeName, field := filter.Cube(ref), filter.Field(ref)
		c, ok := r.Get(cubeName)
		if !ok {
			return
		}
		m, ok := c.Measure(field)
		if !ok {
			return
		}
		if m.Kind != cube.Calculated {
			if !seen[ref] {
				seen[ref] = true
				out = append(out, ref)
			}
			return
		}
		for _, dep := range m.Dependencies {
			walk(dep)
		}
	}

	for _, ref := range refs {
		walk(ref)
	}

	sort.Strings(out)
	return out
}

// propagatingFilters scans the query's top-level filters for
// conditions belonging to a cube that declares a hasMany join directly
// into cteCube, per spec §4.7: an AND branch may be partially
// extracted (only the conditions on the source cube); an OR is only
// propagated if every leaf belongs to the same source cube, since
// partial OR propagation would change row semantics.
func (p *Planner) propagatingFilters(cteCube string, filters []filter.Filter) []PropagatingFilter {
	sourceJoins := p.hasManyJoinsInto(cteCube)
	if len(sourceJoins) == 0 {
		return nil
	}

	grouped := make(map[string][]filter.Condition)
	for _, f := range filters {
		p.collectPropagating(f, sourceJoins, grouped)
	}

	sourceCubes := make([]string, 0, len(grouped))
	for name := range grouped {
		sourceCubes = append(sourceCubes, name)
	}
	sort.Strings(sourceCubes)

	var out []PropagatingFilter
	for _, name := range sourceCubes {
		out = append(out, PropagatingFilter{
			SourceCube:     name,
			Filters:        grouped[name],
			JoinConditions: sourceJoins[name].On,
		})
	}
	return out
}

// hasManyJoinsInto returns, for every registered cube that declares a
// hasMany join whose target is cteCube, that join definition, keyed by
// the declaring cube's name.
func (p *Planner) hasManyJoinsInto(cteCube string) map[string]*cube.Join {
	out := make(map[string]*cube.Join)
	for _, c := range p.registry.All() {
		for _, j := range c.Joins() {
			if j.Relationship == cube.HasMany && j.Target == cteCube {
				out[c.Name] = j
			}
		}
	}
	return out
}

// collectPropagating walks f, extracting conditions whose member's
// cube is a key of sourceJoins into grouped[cubeName].
func (p *Planner) collectPropagating(f filter.Filter, sourceJoins map[string]*cube.Join, grouped map[string][]filter.Condition) {
	switch tf := f.(type) {
	case filter.Condition:
		if _, ok := sourceJoins[filter.Cube(tf.Member)]; ok {
			cubeName := filter.Cube(tf.Member)
			grouped[cubeName] = append(grouped[cubeName], tf)
		}
	case filter.And:
		for _, sub := range tf.Filters {
			p.collectPropagating(sub, sourceJoins, grouped)
		}
	case filter.Or:
		cubeName, ok := filter.SingleCube(tf)
		if !ok {
			return
		}
		if _, isSource := sourceJoins[cubeName]; !isSource {
			return
		}
		grouped[cubeName] = append(grouped[cubeName], filter.Flatten(tf)...)
	}
}
