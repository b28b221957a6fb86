package graph

import "github.com/google/uuid"

// Adjacency maps a skill to the IDs it requires. Both the cycle validator
// and the layout depth computation walk this one structure so their
// cycle-handling semantics cannot drift apart.
type Adjacency map[uuid.UUID][]uuid.UUID

// HasCycle reports whether replacing candidate's requirement set with
// newRequirements would introduce a cycle reachable from candidate. The
// degenerate self-reference is rejected up front.
func HasCycle(adj Adjacency, candidate uuid.UUID, newRequirements []uuid.UUID) bool {
	for _, req := range newRequirements {
		if req == candidate {
			return true
		}
	}

	overlay := make(Adjacency, len(adj)+1)
	for id, reqs := range adj {
		overlay[id] = reqs
	}
	overlay[candidate] = newRequirements

	visited := make(map[uuid.UUID]bool, len(overlay))
	onStack := make(map[uuid.UUID]bool)

	var walk func(id uuid.UUID) bool
	walk = func(id uuid.UUID) bool {
		if !visited[id] {
			visited[id] = true
			onStack[id] = true
			for _, next := range overlay[id] {
				if !visited[next] && walk(next) {
					return true
				}
				if onStack[next] {
					return true
				}
			}
		}
		delete(onStack, id)
		return false
	}

	return walk(candidate)
}

// Depths assigns each node its dependency depth: 0 for roots, otherwise one
// more than the deepest requirement. Unknown requirement IDs contribute depth
// 0, and a node revisited within its own branch is treated as depth 0 rather
// than recursing forever — the graph can be transiently malformed.
func Depths(adj Adjacency) map[uuid.UUID]int {
	depths := make(map[uuid.UUID]int, len(adj))

	var depthOf func(id uuid.UUID, branch map[uuid.UUID]bool) int
	depthOf = func(id uuid.UUID, branch map[uuid.UUID]bool) int {
		if d, ok := depths[id]; ok {
			return d
		}
		if branch[id] {
			return 0
		}
		reqs, ok := adj[id]
		if !ok || len(reqs) == 0 {
			depths[id] = 0
			return 0
		}

		branch[id] = true
		maxParent := 0
		for _, req := range reqs {
			if d := depthOf(req, branch); d > maxParent {
				maxParent = d
			}
		}
		delete(branch, id)

		depths[id] = maxParent + 1
		return depths[id]
	}

	for id := range adj {
		depthOf(id, map[uuid.UUID]bool{})
	}
	return depths
}
