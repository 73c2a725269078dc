package planner

import (
	"github.com/semcube/semcube/cube"
)

// Step is one hop of a resolved join path: the join definition to
// follow and the cube it was declared on (needed because reverse
// edges are walked from the other side during reachability checks).
type Step struct {
	DeclaredOn string
	Join       *cube.Join
	Target     string
	Reverse    bool // true if this step was walked against a join's own direction
}

// findPath runs a breadth-first search from `from` to `to` over the
// registry's forward join graph only, per spec §4.6: "the greedy path
// build... always builds forward from the primary." excluded cubes
// (plus `from` itself) are never revisited.
func (p *Planner) findPath(from, to string, excluded map[string]bool) []Step {
	if from == to {
		return nil
	}

	visited := map[string]bool{from: true}
	for name := range excluded {
		visited[name] = true
	}

	type frame struct {
		cube string
		path []Step
	}
	queue := []frame{{cube: from}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		c, ok := p.registry.Get(cur.cube)
		if !ok {
			continue
		}
		for _, j := range c.Joins() {
			if visited[j.Target] {
				continue
			}
			step := Step{DeclaredOn: cur.cube, Join: j, Target: j.Target}
			newPath := append(append([]Step{}, cur.path...), step)
			if j.Target == to {
				return newPath
			}
			visited[j.Target] = true
			queue = append(queue, frame{cube: j.Target, path: newPath})
		}
	}
	return nil
}

// canReachAll reports whether every cube in targets is reachable from
// `from`, considering BOTH forward joins and reverse joins (edges
// declared on another cube pointing at the cube currently being
// visited) — spec §4.6: "Reverse joins... are considered during
// connectivity checks... but not during the greedy path build." This
// is the spec's documented asymmetry (see spec §9 Open Question 1 /
// SPEC_FULL.md §9.1): a query whose only path to some cube is via a
// reverse edge reports reachable here yet can still fail to plan in
// buildJoinPlan, which is a known, intentionally undocumented-no-
// further limitation rather than a bug to paper over.
func (p *Planner) canReachAll(from string, targets []string) bool {
	reachable := p.allReachable(from)
	for _, t := range targets {
		if t == from {
			continue
		}
		if !reachable[t] {
			return false
		}
	}
	return true
}

// allReachable returns every cube name reachable from `from` via
// either a forward join declared on the current cube, or a reverse
// join declared on some other registered cube that targets the
// current cube.
func (p *Planner) allReachable(from string) map[string]bool {
	reachable := map[string]bool{from: true}
	queue := []string{from}

	all := p.registry.All()

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if c, ok := p.registry.Get(cur); ok {
			for _, j := range c.Joins() {
				if !reachable[j.Target] {
					reachable[j.Target] = true
					queue = append(queue, j.Target)
				}
			}
		}

		for _, other := range all {
			if other.Name == cur {
				continue
			}
			for _, j := range other.Joins() {
				if j.Target == cur && !reachable[other.Name] {
					reachable[other.Name] = true
					queue = append(queue, other.Name)
				}
			}
		}
	}
	return reachable
}
