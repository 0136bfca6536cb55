package nlsql

import (
	"context"

	"github.com/3frameslab/kgrecon/pkg/graphstore"
	"github.com/3frameslab/kgrecon/pkg/kg"
)

// aliasSequence assigns deterministic single-letter aliases: the first
// table is always "s", the second "t" (matching the source/target
// convention §4.9's two-table examples use); any further tables visited
// along a multi-hop path get the next letters in sequence after "t".
// The spec's own worked examples are inconsistent about which letter an
// intermediate enrichment table gets (it shows "g", "h", and "m" for the
// same kind of hop); this sequencing is the implementation's deterministic
// choice, recorded as an open decision.
func aliasSequence(n int) []string {
	out := make([]string, n)
	if n > 0 {
		out[0] = "s"
	}
	if n > 1 {
		out[1] = "t"
	}
	next := 'u'
	for i := 2; i < n; i++ {
		out[i] = string(next)
		next++
	}
	return out
}

// columnsOfEdge reads the source/target column pair a KG relationship
// carries in its properties, the same convention pkg/rules' pattern pass
// writes and reads.
func columnsOfEdge(r kg.Relationship) (sourceCol, targetCol string) {
	sc, _ := r.Properties["source_column"].(string)
	tc, _ := r.Properties["target_column"].(string)
	return sc, tc
}

// findRelationship locates the KG relationship backing one graphstore path
// edge, to recover the column pair the bounded-path query doesn't carry.
func findRelationship(g *kg.Graph, sourceID, targetID string, relType string) (kg.Relationship, bool) {
	for _, r := range g.Relationships {
		if r.SourceID == sourceID && r.TargetID == targetID && string(r.Type) == relType {
			return r, true
		}
	}
	return kg.Relationship{}, false
}

// inferJoinPath resolves a join path between two tables via the KG's
// bounded-path search (C3), preferring FOREIGN_KEY -> REFERENCES ->
// CROSS_SCHEMA_REFERENCE hops, tie-broken by lowest total (1-confidence) —
// both already implemented by graphstore's path ranking. Returns nil,
// false if no path exists within the default bound.
func inferJoinPath(ctx context.Context, store kg.Store, kgName string, g *kg.Graph, sourceTableID, targetTableID string) ([]JoinHop, bool) {
	matches, err := store.Query(ctx, kgName, graphstore.QueryPattern{
		Kind: graphstore.PatternPath, SourceTable: sourceTableID, TargetTable: targetTableID, MaxHops: 3,
	})
	if err != nil || len(matches) == 0 || len(matches[0].Path) == 0 {
		return nil, false
	}

	path := matches[0].Path
	tableIDs := append([]string{sourceTableID}, pathTargets(path)...)
	aliases := aliasSequence(len(tableIDs))

	hops := make([]JoinHop, 0, len(path))
	for i, edge := range path {
		rel, ok := findRelationship(g, edge.SourceID, edge.TargetID, edge.Type)
		if !ok {
			return nil, false
		}
		sourceCol, targetCol := columnsOfEdge(rel)
		if sourceCol == "" || targetCol == "" {
			return nil, false
		}
		joinType := JoinInner
		isLastHop := i == len(path)-1
		isTerminalEnrichment := isLastHop && len(path) > 1 && tableOfNodeID(edge.TargetID) != tableOfNodeID(targetTableID)
		if isTerminalEnrichment {
			joinType = JoinLeft
		}
		hops = append(hops, JoinHop{
			LeftAlias: aliases[i], LeftTable: tableOfNodeID(edge.SourceID), LeftCol: sourceCol,
			RightAlias: aliases[i+1], RightTable: tableOfNodeID(edge.TargetID), RightCol: targetCol,
			Type: joinType, RelType: edge.Type, Confidence: edge.Confidence,
		})
	}
	return hops, true
}

func pathTargets(path []graphstore.Edge) []string {
	out := make([]string, len(path))
	for i, e := range path {
		out[i] = e.TargetID
	}
	return out
}

// extendPathForColumn extends a resolved join path to reach a table that
// an additional requested column is drawn from, if it isn't already part
// of the path. One JOIN per extra hop, per §4.9 step 2.
func extendPathForColumn(ctx context.Context, store kg.Store, kgName string, g *kg.Graph, hops []JoinHop, lastTableID, extraTableID string) ([]JoinHop, bool) {
	for _, h := range hops {
		if h.RightTable == tableOfNodeID(extraTableID) {
			return hops, true
		}
	}
	extra, ok := inferJoinPath(ctx, store, kgName, g, lastTableID, extraTableID)
	if !ok {
		return hops, false
	}
	// Re-letter the extension so its aliases don't collide with the
	// already-assigned ones: continue the sequence from where hops left off.
	next := 'u'
	for _, h := range hops {
		if len(h.RightAlias) == 1 && h.RightAlias[0] >= next {
			next = h.RightAlias[0] + 1
		}
	}
	for i := range extra {
		extra[i].LeftAlias = hops[len(hops)-1].RightAlias
		extra[i].RightAlias = string(next)
		extra[i].Type = JoinLeft // enrichment-only hops never affect join fidelity
		next++
	}
	return append(hops, extra...), true
}
