// Package rules derives reconciliation rulesets (typed column-matching
// rules) from a knowledge graph.
package rules

import "time"

// MatchType is the closed set of ways two columns can be reconciled.
type MatchType string

const (
	MatchExact          MatchType = "EXACT"
	MatchFuzzy          MatchType = "FUZZY"
	MatchComposite      MatchType = "COMPOSITE"
	MatchTransformation MatchType = "TRANSFORMATION"
	MatchSemantic       MatchType = "SEMANTIC"
)

// ValidationStatus records how much a rule can be trusted structurally.
type ValidationStatus string

const (
	StatusValid     ValidationStatus = "VALID"
	StatusLikely    ValidationStatus = "LIKELY"
	StatusUncertain ValidationStatus = "UNCERTAIN"
	StatusInvalid   ValidationStatus = "INVALID"
)

// JoinType is the SQL join kind used for one hop of a multi-table rule.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// JoinCondition is one ON clause of a multi-table join chain:
// "<left_alias>.<col> = <right_alias>.<col>".
type JoinCondition struct {
	LeftAlias  string `json:"left_alias"`
	LeftCol    string `json:"left_col"`
	RightAlias string `json:"right_alias"`
	RightCol   string `json:"right_col"`
}

// Rule is a single reconciliation rule between a source and target column
// set, optionally extended into a multi-table join chain.
type Rule struct {
	RuleID           string           `json:"rule_id"`
	RuleName         string           `json:"rule_name"`
	SourceSchema     string           `json:"source_schema"`
	SourceTable      string           `json:"source_table"`
	SourceColumns    []string         `json:"source_columns"`
	TargetSchema     string           `json:"target_schema"`
	TargetTable      string           `json:"target_table"`
	TargetColumns    []string         `json:"target_columns"`
	MatchType        MatchType        `json:"match_type"`
	Transformation   string           `json:"transformation,omitempty"`
	Confidence       float64          `json:"confidence"`
	Reasoning        string           `json:"reasoning,omitempty"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	LLMGenerated     bool             `json:"llm_generated"`
	CreatedAt        time.Time        `json:"created_at"`

	// Multi-table fields: either all set, or none.
	JoinTables     []string        `json:"join_tables,omitempty"`
	JoinConditions []JoinCondition `json:"join_conditions,omitempty"`
	JoinOrder      []string        `json:"join_order,omitempty"`
	JoinType       []JoinType      `json:"join_type,omitempty"`
}

// IsMultiTable reports whether r carries the optional join-chain fields.
func (r *Rule) IsMultiTable() bool {
	return len(r.JoinTables) > 0
}

// Ruleset is a named, versioned collection of rules derived from one KG
// snapshot.
type Ruleset struct {
	RulesetID       string    `json:"ruleset_id"`
	RulesetName     string    `json:"ruleset_name"`
	Schemas         []string  `json:"schemas"`
	Rules           []Rule    `json:"rules"`
	GeneratedFromKG string    `json:"generated_from_kg"`
	CreatedAt       time.Time `json:"created_at"`
}

// ExecutableRules returns the subset of rules usable for execution — those
// that passed structural validation.
func (rs *Ruleset) ExecutableRules() []Rule {
	out := make([]Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.ValidationStatus != StatusInvalid {
			out = append(out, r)
		}
	}
	return out
}

// GenerationMetrics records what a generation run actually did.
type GenerationMetrics struct {
	PatternRules    int
	LLMRulesAdded   int
	LLMCallsMade    int
	LLMCallsFailed  int
	CompositeRules  int
	InvalidatedRules int
	FilteredRules   int
}
