package planner

import (
	"sort"

	"github.com/semcube/semcube/query"
)

// choosePrimary implements spec §4.7's deterministic primary-cube
// choice, which must not depend on the input query's array order:
//  1. If there are dimensions, pick the cube appearing most often in
//     dimension refs, tie-broken alphabetically, that can reach every
//     other referenced cube.
//  2. Else pick the referenced cube with the most join edges that can
//     reach every other referenced cube, tie-broken alphabetically.
//  3. Else the alphabetically first referenced cube.
func (p *Planner) choosePrimary(q query.SemanticQuery, referenced []string) (string, error) {
	if counts := dimensionCubeCounts(q); len(counts) > 0 {
		if name, ok := p.pickByCount(counts, referenced); ok {
			return name, nil
		}
	}

	edgeCounts := make(map[string]int, len(referenced))
	for _, name := range referenced {
		if c, ok := p.registry.Get(name); ok {
			edgeCounts[name] = len(c.Joins())
		}
	}
	if name, ok := p.pickByCount(edgeCounts, referenced); ok {
		return name, nil
	}

	sorted := append([]string{}, referenced...)
	sort.Strings(sorted)
	return sorted[0], nil
}

// pickByCount selects, from referenced, the candidate with the
// highest count (ties broken alphabetically) that can reach every
// other referenced cube. Candidates absent from counts are treated as
// count 0 but still considered.
func (p *Planner) pickByCount(counts map[string]int, referenced []string) (string, bool) {
	candidates := append([]string{}, referenced...)
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := counts[candidates[i]], counts[candidates[j]]
		if ci != cj {
			return ci > cj
		}
		return candidates[i] < candidates[j]
	})
	for _, name := range candidates {
		if p.canReachAll(name, referenced) {
			return name, true
		}
	}
	return "", false
}
