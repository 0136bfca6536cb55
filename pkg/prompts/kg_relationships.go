package prompts

import (
	"fmt"
	"strings"
)

// SchemaTableContext is the minimal table shape the graph builder's
// semantic-enhancement prompts need: name and column names only, since
// semantic/business/hierarchical/temporal/lookup inference works off
// naming, not statistics.
type SchemaTableContext struct {
	SchemaName string
	TableName  string
	Columns    []string
}

// KnownEdgeContext summarizes an already-found relationship so the LLM
// doesn't re-suggest it.
type KnownEdgeContext struct {
	SourceTable string
	TargetTable string
	Type        string
}

// SemanticCategory names one of the five LLM-enhancement passes the graph
// builder runs, each looking for a different kind of relationship.
type SemanticCategory string

const (
	CategorySemanticEquivalence SemanticCategory = "semantic equivalence"
	CategoryBusinessLogic       SemanticCategory = "business logic"
	CategoryHierarchical        SemanticCategory = "hierarchical"
	CategoryTemporal            SemanticCategory = "temporal"
	CategoryLookup              SemanticCategory = "lookup"
)

// BuildSemanticRelationshipPrompt asks the LLM for additional relationships
// of one semantic category across the given tables, given what's already
// been found by pattern matching.
func BuildSemanticRelationshipPrompt(category SemanticCategory, tables []SchemaTableContext, known []KnownEdgeContext) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "# Knowledge Graph Relationship Inference: %s\n\n", category)
	fmt.Fprintf(&prompt, "Find %s relationships between the tables below that are not already in the known relationships list.\n\n", category)

	prompt.WriteString("## Tables\n\n")
	for _, t := range tables {
		fmt.Fprintf(&prompt, "### %s.%s\n", t.SchemaName, t.TableName)
		prompt.WriteString("Columns: " + strings.Join(t.Columns, ", ") + "\n\n")
	}

	prompt.WriteString("## Already-Found Relationships\n\n")
	if len(known) == 0 {
		prompt.WriteString("(none yet)\n\n")
	} else {
		for _, k := range known {
			fmt.Fprintf(&prompt, "- %s --[%s]--> %s\n", k.SourceTable, k.Type, k.TargetTable)
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with a single field `relationships`, an array of objects with:\n")
	prompt.WriteString("- `source_table`, `source_column`, `target_table`, `target_column`\n")
	prompt.WriteString("- `confidence`: 0.0-1.0\n")
	prompt.WriteString("- `reasoning`: one sentence\n\n")
	prompt.WriteString("Return an empty array if no relationships of this kind are found. Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildSemanticRelationshipSystemMessage returns the system message for
// semantic relationship inference.
func BuildSemanticRelationshipSystemMessage() string {
	return "You are a database schema analyst finding non-obvious relationships between tables based on naming and domain conventions."
}

// BuildTableAliasPrompt asks the LLM for business-friendly aliases of a
// single table.
func BuildTableAliasPrompt(schemaName, tableName string, columns []string) string {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Table %q in schema %q has columns: %s.\n\n", tableName, schemaName, strings.Join(columns, ", "))
	prompt.WriteString("List business-friendly names a non-technical user might call this table (e.g. \"customers\" for a table named \"cust_mstr\").\n\n")
	prompt.WriteString("Respond in JSON with a single field `aliases`, an ordered array of strings, most natural first. Return ONLY the JSON, no additional text.\n")
	return prompt.String()
}

// BuildTableAliasSystemMessage returns the system message for alias
// extraction.
func BuildTableAliasSystemMessage() string {
	return "You are a data catalog assistant naming tables the way business users would refer to them."
}
