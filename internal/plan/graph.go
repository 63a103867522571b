package plan

import (
	"fmt"

	"blockplan/internal/layout"
)

// topoSort orders steps so every dependency precedes its dependents.
// Ready steps are drained deterministically: disk declaration order first
// (a multi-disk step sorts by its earliest disk), then kind priority,
// then creation order. Reports ErrPlanning on unknown references or
// cycles.
func topoSort(spec *layout.LayoutSpec, steps []Step) ([]Step, error) {
	diskIdx := map[string]int{}
	for i, d := range spec.Disks {
		diskIdx[d.ID] = i
	}
	firstDisk := func(s *Step) int {
		min := len(spec.Disks)
		for _, d := range s.Disks {
			if i, ok := diskIdx[d]; ok && i < min {
				min = i
			}
		}
		return min
	}

	index := map[string]int{}
	for i := range steps {
		index[steps[i].ID] = i
	}
	indegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i := range steps {
		for _, dep := range steps[i].DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("%w: missing-dependency: step %q depends on unknown %q", ErrPlanning, steps[i].ID, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	less := func(a, b *Step) bool {
		da, db := firstDisk(a), firstDisk(b)
		if da != db {
			return da < db
		}
		if kindPriority[a.Kind] != kindPriority[b.Kind] {
			return kindPriority[a.Kind] < kindPriority[b.Kind]
		}
		return a.seq < b.seq
	}

	ready := make([]int, 0, len(steps))
	for i := range steps {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Step, 0, len(steps))
	for len(ready) > 0 {
		// pick the smallest ready step; plans are small enough that a
		// linear scan beats maintaining a heap
		best := 0
		for i := 1; i < len(ready); i++ {
			if less(&steps[ready[i]], &steps[ready[best]]) {
				best = i
			}
		}
		next := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		ordered = append(ordered, steps[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	if len(ordered) != len(steps) {
		return nil, fmt.Errorf("%w: cycle: dependency graph is not a DAG", ErrPlanning)
	}
	return ordered, nil
}
