package nlsql

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/kg"
	"github.com/3frameslab/kgrecon/pkg/llm"
)

// tableRef is one table node's resolved identity.
type tableRef struct {
	NodeID string
	Schema string
	Table  string
}

func tablesOf(g *kg.Graph) []tableRef {
	var out []tableRef
	for _, n := range g.Nodes {
		if n.Label != kg.LabelTable {
			continue
		}
		out = append(out, tableRef{NodeID: n.ID, Schema: schemaOfNodeID(n.ID), Table: n.Name})
	}
	return out
}

func schemaOfNodeID(id string) string {
	if idx := strings.Index(id, ":"); idx >= 0 {
		return id[:idx]
	}
	return id
}

func tableOfNodeID(id string) string {
	parts := strings.Split(id, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return id
}

type entityLLMResponse struct {
	Table string `json:"table"`
}

// resolveEntities finds every known table mentioned in definition, in the
// order of first mention, by exact table-name match and by learned aliases
// (kg.table_aliases takes priority over an LLM guess). Only when neither
// finds any table, and use_llm and the client are set, one LLM call picks
// a single table restricted to the known table names; terms left unmatched
// beside a resolved table get no LLM call.
func resolveEntities(ctx context.Context, g *kg.Graph, definition string, client llm.LLMClient, useLLM bool, logger *zap.Logger) []tableRef {
	lower := strings.ToLower(definition)
	tables := tablesOf(g)

	var resolved []tableRef
	seen := map[string]bool{}
	add := func(t tableRef) {
		if !seen[t.NodeID] {
			seen[t.NodeID] = true
			resolved = append(resolved, t)
		}
	}

	// Exact table name match: every table whose name occurs in the
	// definition is a candidate, with no preference for longer names.
	type candidate = struct {
		pos int
		ref tableRef
	}
	var candidates []candidate
	for _, t := range tables {
		if idx := strings.Index(lower, strings.ToLower(t.Table)); idx >= 0 {
			candidates = append(candidates, candidate{pos: idx, ref: t})
		}
	}

	// Learned aliases: kg.table_aliases maps "schema.table" -> aliases.
	for qualified, aliases := range g.Metadata.TableAliases {
		schema, table := splitQualified(qualified)
		ref, ok := findTable(tables, schema, table)
		if !ok {
			continue
		}
		for _, alias := range aliases {
			if idx := strings.Index(lower, strings.ToLower(alias)); idx >= 0 {
				candidates = append(candidates, candidate{pos: idx, ref: ref})
			}
		}
	}

	sortCandidatesByPosition(candidates)
	for _, c := range candidates {
		add(c.ref)
	}

	if len(resolved) == 0 && useLLM && client != nil {
		resp, err := llm.Complete[entityLLMResponse](ctx, client, buildEntityPrompt(definition, tables), llm.CompleteOptions{
			SystemMessage: entitySystemMessage,
		})
		if err != nil {
			logger.Warn("entity resolution LLM fallback failed", zap.Error(err))
		} else if ref, ok := findTableByName(tables, resp.Table); ok {
			add(ref)
		}
	}

	return resolved
}

func splitQualified(qualified string) (schema, table string) {
	if idx := strings.Index(qualified, "."); idx >= 0 {
		return qualified[:idx], qualified[idx+1:]
	}
	return "", qualified
}

func findTable(tables []tableRef, schema, table string) (tableRef, bool) {
	for _, t := range tables {
		if t.Table == table && (schema == "" || t.Schema == schema) {
			return t, true
		}
	}
	return tableRef{}, false
}

func findTableByName(tables []tableRef, name string) (tableRef, bool) {
	for _, t := range tables {
		if strings.EqualFold(t.Table, name) {
			return t, true
		}
	}
	return tableRef{}, false
}

func sortCandidatesByPosition(candidates []struct {
	pos int
	ref tableRef
}) {
	for i := 1; i < len(candidates); i++ {
		j := i
		for j > 0 && candidates[j-1].pos > candidates[j].pos {
			candidates[j-1], candidates[j] = candidates[j], candidates[j-1]
			j--
		}
	}
}

const entitySystemMessage = `You identify which known table a free-text data query refers to.
Respond with JSON only: {"table": "<one of the known table names, or empty if none apply>"}.`

func buildEntityPrompt(definition string, tables []tableRef) string {
	var names []string
	for _, t := range tables {
		names = append(names, t.Table)
	}
	return "Known tables: " + strings.Join(names, ", ") + "\n\nDefinition:\n" + definition
}
