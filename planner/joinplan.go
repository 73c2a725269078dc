package planner

import (
	"fmt"

	"github.com/semcube/semcube/cube"
	"github.com/semcube/semcube/errs"
)

// buildJoinPlan resolves a shortest path from primary to every other
// referenced cube, in referenced order, expanding belongsToMany steps
// into a primary->junction and junction->target pair (spec §4.7).
func (p *Planner) buildJoinPlan(primary string, referenced []string) ([]JoinEntry, error) {
	var entries []JoinEntry
	seen := map[string]bool{primary: true}

	for _, target := range referenced {
		if target == primary || seen[target] {
			continue
		}

		steps := p.findPath(primary, target, nil)
		if steps == nil {
			return nil, &errs.PlanError{From: primary, To: target, Reason: "no forward join path found"}
		}

		for _, step := range steps {
			if seen[step.Target] {
				continue
			}
			seen[step.Target] = true

			if step.Join.Relationship == cube.BelongsToMany && step.Join.Through != nil {
				entries = append(entries,
					junctionLeg(step.DeclaredOn, step.Join),
					targetLeg(step.Join),
				)
				continue
			}

			entries = append(entries, JoinEntry{
				Cube:          step.Target,
				Alias:         step.Target,
				JoinType:      joinTypeFor(step.Join),
				JoinCondition: step.Join.On,
			})
		}
	}

	return entries, nil
}

func junctionLeg(declaredOn string, j *cube.Join) JoinEntry {
	return JoinEntry{
		Cube:          fmt.Sprintf("%s_through_%s", declaredOn, j.Name),
		Alias:         fmt.Sprintf("%s_through_%s", declaredOn, j.Name),
		JoinType:      InnerJoin,
		JoinCondition: j.Through.SourceKey,
		JunctionTable: j.Through,
	}
}

func targetLeg(j *cube.Join) JoinEntry {
	return JoinEntry{
		Cube:          j.Target,
		Alias:         j.Target,
		JoinType:      joinTypeFor(j),
		JoinCondition: j.Through.TargetKey,
	}
}
