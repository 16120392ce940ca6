package graph

// Impact is the result of an impact analysis traversal: the set of reached
// entity ids and, for each, the discovery path from the start entity.
type Impact struct {
	EntityID string              `json:"entity_id"`
	Impacted []string            `json:"impacted"`
	Paths    map[string][]string `json:"paths"`
}

// ImpactAnalysis walks the relation graph breadth-first from the given
// entity, bounded by maxDepth. Direction "downstream" follows edges in their
// stored source-to-target direction (what this entity affects); "upstream"
// follows them in reverse (what affects this entity). The recorded path per
// node is the first-visit path; BFS guarantees it is a shortest one and it is
// never reoptimized.
func (g *KnowledgeGraph) ImpactAnalysis(id string, direction string, maxDepth int) *Impact {
	result := &Impact{
		EntityID: id,
		Paths:    make(map[string][]string),
	}
	if _, ok := g.nodes[id]; !ok {
		return result
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	downstream := direction != "upstream"

	type frontier struct {
		id    string
		depth int
	}
	visited := map[string]bool{id: true}
	result.Paths[id] = []string{id}
	queue := []frontier{{id: id, depth: 0}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxDepth {
			continue
		}
		for _, rel := range g.links {
			var next string
			if downstream && rel.SourceID == current.id {
				next = rel.TargetID
			} else if !downstream && rel.TargetID == current.id {
				next = rel.SourceID
			} else {
				continue
			}
			if visited[next] {
				continue
			}
			visited[next] = true
			path := append(append([]string{}, result.Paths[current.id]...), next)
			result.Paths[next] = path
			result.Impacted = append(result.Impacted, next)
			queue = append(queue, frontier{id: next, depth: current.depth + 1})
		}
	}

	delete(result.Paths, id)
	return result
}
