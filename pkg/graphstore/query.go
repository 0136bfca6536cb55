package graphstore

import "sort"

// runQuery answers pattern against an in-process adjacency index built
// from edges. Shared by PostgresStore (index rebuilt per call) and
// MemoryStore (index rebuilt per call) so both backends answer identically.
func runQuery(edges []Edge, pattern QueryPattern) []QueryMatch {
	switch pattern.Kind {
	case PatternNeighbors:
		return neighborMatches(edges, pattern.NodeID)
	case PatternEdgesBetween:
		return edgesBetween(edges, pattern.SourceTable, pattern.TargetTable)
	case PatternPath:
		maxHops := pattern.MaxHops
		if maxHops <= 0 {
			maxHops = 3
		}
		return boundedPaths(edges, pattern.SourceTable, pattern.TargetTable, maxHops)
	default:
		return nil
	}
}

func neighborMatches(edges []Edge, nodeID string) []QueryMatch {
	var out []QueryMatch
	for _, e := range edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			edge := e
			out = append(out, QueryMatch{Edge: &edge})
		}
	}
	return out
}

func edgesBetween(edges []Edge, sourceID, targetID string) []QueryMatch {
	var out []QueryMatch
	for _, e := range edges {
		if e.SourceID == sourceID && e.TargetID == targetID {
			edge := e
			out = append(out, QueryMatch{Edge: &edge})
		}
	}
	return out
}

// adjacency maps a node id to the edges leaving it.
type adjacency map[string][]Edge

func buildAdjacency(edges []Edge) adjacency {
	idx := make(adjacency)
	for _, e := range edges {
		idx[e.SourceID] = append(idx[e.SourceID], e)
	}
	return idx
}

// edgeTypePriority orders path candidates per the join-inference priority:
// FOREIGN_KEY, then REFERENCES, then CROSS_SCHEMA_REFERENCE, then anything
// else. Lower is better.
func edgeTypePriority(edgeType string) int {
	switch edgeType {
	case "FOREIGN_KEY":
		return 0
	case "REFERENCES":
		return 1
	case "CROSS_SCHEMA_REFERENCE":
		return 2
	default:
		return 3
	}
}

// boundedPaths finds all simple paths from source to target up to maxHops
// edges, sorted by (total priority-sum ascending, total 1-confidence
// ascending) so the caller can take the first as the preferred path.
func boundedPaths(edges []Edge, source, target string, maxHops int) []QueryMatch {
	idx := buildAdjacency(edges)
	var results []QueryMatch

	var visit func(current string, path []Edge, visited map[string]bool)
	visit = func(current string, path []Edge, visited map[string]bool) {
		if len(path) > 0 && current == target {
			results = append(results, QueryMatch{Path: append([]Edge(nil), path...)})
		}
		if len(path) >= maxHops {
			return
		}
		for _, e := range idx[current] {
			if visited[e.TargetID] {
				continue
			}
			visited[e.TargetID] = true
			visit(e.TargetID, append(path, e), visited)
			delete(visited, e.TargetID)
		}
	}
	visit(source, nil, map[string]bool{source: true})

	sort.SliceStable(results, func(i, j int) bool {
		pi, ci := pathScore(results[i].Path)
		pj, cj := pathScore(results[j].Path)
		if pi != pj {
			return pi < pj
		}
		return ci < cj
	})
	return results
}

func pathScore(path []Edge) (priority int, invConfidence float64) {
	for _, e := range path {
		priority += edgeTypePriority(e.Type)
		invConfidence += 1 - e.Confidence
	}
	return priority, invConfidence
}
