package schedule

import (
	"fmt"
	"sort"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/ecserr"
)

// Stage is a set of system names that may execute in parallel — no two
// members conflict on a write.
type Stage struct {
	Systems []string
}

// Plan is the ordered stage list a tick's execution follows.
type Plan struct {
	Stages []Stage
}

const maxOrderingPasses = 64

// BuildPlan computes the minimum-stage partition of reg's systems: greedy
// coloring in lexicographic order, then explicit OrderAfter/OrderBefore
// constraints applied as hard stage bounds. Running this twice against an
// unchanged registry always produces the same stages, since it iterates
// Systems() in sorted order and always picks a system's lowest feasible
// stage.
func BuildPlan(reg *Registry, components *component.Registry) (Plan, error) {
	systems := reg.Systems()
	if len(systems) == 0 {
		return Plan{}, nil
	}

	stageOf := make(map[string]int, len(systems))

	// Pass 1: greedy conflict-only coloring, lexicographic order.
	for i, s := range systems {
		stage := 0
		for {
			conflictsInStage := false
			for j := 0; j < i; j++ {
				other := systems[j]
				if stageOf[other.Name] != stage {
					continue
				}
				if conflicts(components, s, other) {
					conflictsInStage = true
					break
				}
			}
			if !conflictsInStage {
				break
			}
			stage++
		}
		stageOf[s.Name] = stage
	}

	// Pass 2: relax explicit ordering constraints as hard lower bounds,
	// Bellman-Ford style; a fixed point that never stabilizes indicates a
	// cycle, i.e. ScheduleInfeasible.
	byName := make(map[string]*System, len(systems))
	for _, s := range systems {
		byName[s.Name] = s
	}
	// raise moves s to at least stage need, then past any stage holding a
	// system it conflicts with.
	raise := func(s *System, need int) {
		stageOf[s.Name] = need
		for clash := true; clash; {
			clash = false
			for _, other := range systems {
				if other.Name != s.Name && stageOf[other.Name] == stageOf[s.Name] && conflicts(components, s, other) {
					stageOf[s.Name]++
					clash = true
					break
				}
			}
		}
	}

	settled := false
	for pass := 0; pass < maxOrderingPasses; pass++ {
		changed := false
		for _, s := range systems {
			for _, after := range s.OrderAfter {
				if _, ok := byName[after]; !ok {
					continue // constraint against an unregistered system is vacuous
				}
				if need := stageOf[after] + 1; stageOf[s.Name] < need {
					raise(s, need)
					changed = true
				}
			}
			for _, before := range s.OrderBefore {
				if _, ok := byName[before]; !ok {
					continue
				}
				if need := stageOf[s.Name] + 1; stageOf[before] < need {
					raise(byName[before], need)
					changed = true
				}
			}
		}
		if !changed {
			settled = true
			break
		}
	}
	if !settled {
		return Plan{}, fmt.Errorf("schedule: ordering constraints form a cycle: %w", ecserr.ErrScheduleInfeasible)
	}

	// The ordering relaxation moves a pushed system past any stage holding a
	// conflicting system, so no stage should hold a conflicting pair here;
	// one that does is reported the same way as a genuine ordering cycle.
	maxStage := 0
	for _, s := range systems {
		if stageOf[s.Name] > maxStage {
			maxStage = stageOf[s.Name]
		}
	}
	buckets := make([][]string, maxStage+1)
	for _, s := range systems {
		buckets[stageOf[s.Name]] = append(buckets[stageOf[s.Name]], s.Name)
	}
	for _, names := range buckets {
		sort.Strings(names)
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				if conflicts(components, byName[names[i]], byName[names[j]]) {
					return Plan{}, fmt.Errorf("schedule: %s and %s must share a stage but conflict: %w", names[i], names[j], ecserr.ErrScheduleInfeasible)
				}
			}
		}
	}

	var stages []Stage
	for _, names := range buckets {
		if len(names) == 0 {
			continue // a stage index can go unused once ordering pushes systems past it
		}
		stages = append(stages, Stage{Systems: names})
	}
	return Plan{Stages: stages}, nil
}
