package coordinator

import (
	"sort"
)

// detectDeadlock runs depth-first cycle detection over the dependency graph
// of active tasks and returns the id of the first task found on a cycle, or
// "" when the graph is acyclic. Task ids are visited in sorted order so the
// result is deterministic for a given graph.
func detectDeadlock(tasks map[string]*Task) string {
	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	visited := make(map[string]bool, len(tasks))
	inStack := make(map[string]bool, len(tasks))

	var visit func(id string) string
	visit = func(id string) string {
		visited[id] = true
		inStack[id] = true

		task := tasks[id]
		deps := make([]string, 0, len(task.Dependencies))
		for dep := range task.Dependencies {
			deps = append(deps, dep)
		}
		sort.Strings(deps)

		for _, dep := range deps {
			if _, active := tasks[dep]; !active {
				// dependency on a completed or unknown task, no edge
				continue
			}
			if inStack[dep] {
				return dep
			}
			if !visited[dep] {
				if hit := visit(dep); hit != "" {
					return hit
				}
			}
		}

		inStack[id] = false
		return ""
	}

	for _, id := range ids {
		if !visited[id] {
			if hit := visit(id); hit != "" {
				return hit
			}
		}
	}
	return ""
}
