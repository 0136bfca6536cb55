package prompts

import (
	"fmt"
	"strings"
)

// KnownRuleContext summarizes an already-derived rule so the LLM pass
// adds to the pattern-based pass instead of repeating it.
type KnownRuleContext struct {
	SourceTable   string
	SourceColumns []string
	TargetTable   string
	TargetColumns []string
	MatchType     string
}

// BuildRuleSuggestionPrompt asks the LLM for additional reconciliation
// rules between two schemas, given the rules pattern matching already
// found for that pair.
func BuildRuleSuggestionPrompt(sourceSchema, targetSchema string, known []KnownRuleContext) string {
	var prompt strings.Builder

	fmt.Fprintf(&prompt, "# Reconciliation Rule Suggestion: %s <-> %s\n\n", sourceSchema, targetSchema)
	prompt.WriteString("Suggest additional column-matching rules for reconciling records between these two schemas, beyond the rules already found by pattern matching below. Look for columns whose names, types, or likely content would let two records be matched even though they aren't connected by a foreign key or naming convention.\n\n")

	prompt.WriteString("## Rules Already Found\n\n")
	if len(known) == 0 {
		prompt.WriteString("(none yet)\n\n")
	} else {
		for _, k := range known {
			fmt.Fprintf(&prompt, "- %s.(%s) --[%s]--> %s.(%s)\n",
				k.SourceTable, strings.Join(k.SourceColumns, ","), k.MatchType, k.TargetTable, strings.Join(k.TargetColumns, ","))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("Respond in JSON with a single field `rules`, an array of objects with:\n")
	prompt.WriteString("- `source_table`, `source_columns` (array), `target_table`, `target_columns` (array)\n")
	prompt.WriteString("- `match_type`: one of EXACT, FUZZY, COMPOSITE, TRANSFORMATION, SEMANTIC\n")
	prompt.WriteString("- `transformation`: a SQL expression fragment if match_type is TRANSFORMATION or FUZZY, otherwise empty\n")
	prompt.WriteString("- `confidence`: 0.0-1.0\n")
	prompt.WriteString("- `reasoning`: one sentence\n\n")
	prompt.WriteString("Return an empty array if no additional rules apply. Return ONLY the JSON, no additional text.\n")

	return prompt.String()
}

// BuildRuleSuggestionSystemMessage returns the system message for the
// rule suggestion pass.
func BuildRuleSuggestionSystemMessage() string {
	return "You are a data reconciliation analyst proposing column-matching rules between two database schemas."
}
