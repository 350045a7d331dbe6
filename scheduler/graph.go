// Package scheduler turns an ordered step list into a dependency graph,
// groups ready steps into waves, and drives execution through the
// capability provider with a barrier per wave.
package scheduler

import (
	"deskpilot/plan"
)

// depGraph holds per-step dependency edges, indexed by original step
// position so outcome ordering stays deterministic.
type depGraph struct {
	steps []plan.Step
	// deps[i] lists the step indexes that must report before step i runs
	deps [][]int
	// dependents is the reverse adjacency, for completion propagation
	dependents [][]int
}

// parallelSafe reports whether a step kind may share a wave with others.
// Only Wait and SystemSetting are known not to fight over window focus.
func parallelSafe(op plan.Op) bool {
	return op == plan.OpWait || op == plan.OpSystemSetting
}

// buildGraph applies the per-kind dependency rule:
//   - Wait and SystemSetting have no forced predecessor.
//   - Type, Shortcut and Message depend on the immediately preceding step,
//     since they assume a specific window already has focus.
//   - OpenApp depends on its predecessor only when that predecessor is a
//     Wait: an explicit pause signals the author wanted ordering.
//   - Every other kind conservatively depends on its predecessor.
//
// This is program-order inference, not data-flow analysis. It can
// over-serialize (two unrelated Type steps run sequentially) and
// under-serialize (a SystemSetting is assumed parallel-safe even when a
// later step depends on its effect). That is the defined behavior; changing
// it needs product guidance, not a quiet fix here.
func buildGraph(steps []plan.Step) *depGraph {
	g := &depGraph{
		steps:      steps,
		deps:       make([][]int, len(steps)),
		dependents: make([][]int, len(steps)),
	}

	for i, s := range steps {
		if i == 0 {
			continue
		}
		switch s.Op {
		case plan.OpWait, plan.OpSystemSetting:
			// no forced predecessor
		case plan.OpType, plan.OpShortcut, plan.OpMessage:
			g.addDep(i, i-1)
		case plan.OpOpenApp:
			if steps[i-1].Op == plan.OpWait {
				g.addDep(i, i-1)
			}
		default:
			g.addDep(i, i-1)
		}
	}

	return g
}

func (g *depGraph) addDep(step, dependsOn int) {
	g.deps[step] = append(g.deps[step], dependsOn)
	g.dependents[dependsOn] = append(g.dependents[dependsOn], step)
}

// readyFrontier returns the indexes, in input order, of steps that have not
// reported and whose dependencies have all reported.
func (g *depGraph) readyFrontier(reported []bool) []int {
	var ready []int
	for i := range g.steps {
		if reported[i] {
			continue
		}
		ok := true
		for _, d := range g.deps[i] {
			if !reported[d] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, i)
		}
	}
	return ready
}

// nextWave picks the steps to dispatch from a ready frontier. A
// non-parallel-safe step executes alone; parallel-safe steps in the frontier
// batch together.
func (g *depGraph) nextWave(ready []int) []int {
	if len(ready) == 0 {
		return nil
	}
	if !parallelSafe(g.steps[ready[0]].Op) {
		return ready[:1]
	}
	var wave []int
	for _, idx := range ready {
		if parallelSafe(g.steps[idx].Op) {
			wave = append(wave, idx)
		}
	}
	return wave
}
