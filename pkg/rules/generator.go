package rules

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/jsonutil"
	"github.com/3frameslab/kgrecon/pkg/kg"
	"github.com/3frameslab/kgrecon/pkg/llm"
	"github.com/3frameslab/kgrecon/pkg/prompts"
	"github.com/3frameslab/kgrecon/pkg/schema"
)

// Generator derives a Ruleset from a previously built KG.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Ruleset, *GenerationMetrics, error)
}

// GenerateRequest is the rule generation request.
type GenerateRequest struct {
	RulesetID         string
	RulesetName       string
	KGName            string
	Schemas           []string
	MinConfidence     float64
	UseLLM            bool
	AllowedMatchTypes []MatchType // empty means all match types are allowed
	FieldPreferences  []kg.FieldPreference
}

type generator struct {
	kg      kg.Store
	schemas schema.Store
	store   Store
	llm     llm.LLMClient
	logger  *zap.Logger
}

// NewGenerator creates a Generator. llmClient may be nil to skip the LLM
// pass regardless of req.UseLLM.
func NewGenerator(kgStore kg.Store, schemas schema.Store, store Store, llmClient llm.LLMClient, logger *zap.Logger) Generator {
	return &generator{kg: kgStore, schemas: schemas, store: store, llm: llmClient, logger: logger.Named("rules.generator")}
}

func (g *generator) Generate(ctx context.Context, req GenerateRequest) (*Ruleset, *GenerationMetrics, error) {
	metrics := &GenerationMetrics{}

	graph, err := g.kg.Get(ctx, req.KGName)
	if err != nil {
		return nil, nil, err
	}

	included := make(map[string]bool, len(req.Schemas))
	for _, s := range req.Schemas {
		included[s] = true
	}

	var rules []Rule
	for _, edge := range graph.Relationships {
		sourceSchema, targetSchema := edgeSchemas(graph, edge)
		if !included[sourceSchema] || !included[targetSchema] {
			continue
		}
		if r := patternRule(edge, sourceSchema, targetSchema); r != nil {
			rules = append(rules, *r)
			metrics.PatternRules++
		}
	}

	if req.UseLLM && g.llm != nil {
		rules = append(rules, g.llmPass(ctx, req, graph, rules, metrics)...)
	}

	if len(req.FieldPreferences) > 0 {
		composite := composeMultiTableRules(graph, req.FieldPreferences, included)
		rules = append(rules, composite...)
		metrics.CompositeRules += len(composite)
	}

	rules = g.validate(ctx, rules, metrics)
	rules = filterAndDedupe(rules, req.MinConfidence, req.AllowedMatchTypes, metrics)

	ruleset := &Ruleset{
		RulesetID:       req.RulesetID,
		RulesetName:     req.RulesetName,
		Schemas:         req.Schemas,
		Rules:           rules,
		GeneratedFromKG: req.KGName,
	}
	if ruleset.RulesetID == "" {
		ruleset.RulesetID = uuid.NewString()
	}

	if err := g.store.Put(ctx, ruleset); err != nil {
		return nil, nil, err
	}
	return ruleset, metrics, nil
}

// edgeSchemas recovers the source/target schema of an edge, preferring the
// properties the builder attaches (source_schema/target_schema) and
// falling back to the "schema:table[:column]" node id convention.
func edgeSchemas(g *kg.Graph, r kg.Relationship) (string, string) {
	if src, ok := r.Properties["source_schema"].(string); ok {
		if tgt, ok2 := r.Properties["target_schema"].(string); ok2 {
			return src, tgt
		}
	}
	return schemaOfNodeID(r.SourceID), schemaOfNodeID(r.TargetID)
}

func schemaOfNodeID(id string) string {
	if idx := strings.Index(id, ":"); idx >= 0 {
		return id[:idx]
	}
	return id
}

func columnsOfEdge(r kg.Relationship) (sourceCol, targetCol string) {
	sc, _ := r.Properties["source_column"].(string)
	tc, _ := r.Properties["target_column"].(string)
	return sc, tc
}

func tableOfNodeID(id string) string {
	parts := strings.Split(id, ":")
	if len(parts) >= 2 {
		return parts[1]
	}
	return id
}

// patternRule derives one rule from a single KG edge per the pattern-based
// pass. Returns nil if the edge type isn't one the pattern pass covers.
func patternRule(edge kg.Relationship, sourceSchema, targetSchema string) *Rule {
	sourceCol, targetCol := columnsOfEdge(edge)
	if sourceCol == "" || targetCol == "" {
		return nil
	}
	sourceTable, targetTable := tableOfNodeID(edge.SourceID), tableOfNodeID(edge.TargetID)

	base := Rule{
		RuleID: uuid.NewString(), RuleName: sourceTable + "." + sourceCol + " = " + targetTable + "." + targetCol,
		SourceSchema: sourceSchema, SourceTable: sourceTable, SourceColumns: []string{sourceCol},
		TargetSchema: targetSchema, TargetTable: targetTable, TargetColumns: []string{targetCol},
	}

	switch edge.Type {
	case kg.RelForeignKey:
		base.MatchType = MatchExact
		base.Confidence = capConfidence(edge.Confidence, 0.95)
		base.ValidationStatus = StatusValid
		base.Reasoning = "derived from declared foreign key"
		return &base

	case kg.RelReferences, kg.RelCrossSchemaReference:
		if isUIDOrCodeColumnPair(sourceCol, targetCol) {
			base.MatchType = MatchExact
			base.Confidence = 0.80 + 0.10*edge.Confidence
			if base.Confidence > 0.90 {
				base.Confidence = 0.90
			}
			base.ValidationStatus = StatusLikely
			base.Reasoning = "uid/code naming pattern on " + string(edge.Type) + " edge"
			return &base
		}
		if namePairRule := namePatternRule(base, sourceCol, targetCol); namePairRule != nil {
			return namePairRule
		}
		return nil

	default:
		return nil
	}
}

func capConfidence(v, cap float64) float64 {
	if v > cap {
		return cap
	}
	return v
}

func isUIDOrCodeColumnPair(a, b string) bool {
	return isUIDOrCode(a) || isUIDOrCode(b)
}

func isUIDOrCode(col string) bool {
	lower := strings.ToLower(col)
	return strings.Contains(lower, "uid") || strings.Contains(lower, "code")
}

// namePatternRule recognizes "code <-> *_code" and "name"-style pairs,
// emitting FUZZY/TRANSFORMATION rules with explicit transformation
// fragments rather than EXACT matching.
func namePatternRule(base Rule, sourceCol, targetCol string) *Rule {
	sl, tl := strings.ToLower(sourceCol), strings.ToLower(targetCol)

	switch {
	case (sl == "code" && strings.HasSuffix(tl, "_code")) || (tl == "code" && strings.HasSuffix(sl, "_code")):
		base.MatchType = MatchTransformation
		base.Transformation = "UPPER(TRIM(x)) = UPPER(TRIM(y))"
		base.Confidence = 0.70
		base.ValidationStatus = StatusUncertain
		base.Reasoning = "code/*_code naming pattern"
		return &base

	case strings.Contains(sl, "name") && strings.Contains(tl, "name"):
		base.MatchType = MatchFuzzy
		base.Transformation = "LEVENSHTEIN(a, b) < 3"
		base.Confidence = 0.60
		base.ValidationStatus = StatusUncertain
		base.Reasoning = "name-to-name fuzzy candidate"
		return &base

	default:
		return nil
	}
}

// llmPass makes one LLM call per pair of schemas, seeded with the rules
// already found for that pair, and converts any suggestions into rules.
func (g *generator) llmPass(ctx context.Context, req GenerateRequest, graph *kg.Graph, existing []Rule, metrics *GenerationMetrics) []Rule {
	var out []Rule
	for _, pair := range schemaPairs(req.Schemas) {
		known := rulesForPair(existing, pair[0], pair[1])

		metrics.LLMCallsMade++
		suggestion, err := llm.Complete[ruleSuggestionResponse](ctx, g.llm,
			prompts.BuildRuleSuggestionPrompt(pair[0], pair[1], known),
			llm.CompleteOptions{SystemMessage: prompts.BuildRuleSuggestionSystemMessage()})
		if err != nil {
			metrics.LLMCallsFailed++
			g.logger.Warn("llm rule suggestion failed", zap.String("source_schema", pair[0]), zap.String("target_schema", pair[1]), zap.Error(err))
			continue
		}

		for _, s := range suggestion.Rules {
			if s.Confidence < req.MinConfidence {
				continue
			}
			out = append(out, Rule{
				RuleID: uuid.NewString(), RuleName: s.SourceTable + "." + strings.Join(s.SourceColumns, "+") + " = " + s.TargetTable + "." + strings.Join(s.TargetColumns, "+"),
				SourceSchema: pair[0], SourceTable: s.SourceTable, SourceColumns: s.SourceColumns,
				TargetSchema: pair[1], TargetTable: s.TargetTable, TargetColumns: s.TargetColumns,
				MatchType: MatchType(s.MatchType), Transformation: s.Transformation,
				Confidence: s.Confidence, Reasoning: jsonutil.FlexibleStringValue(s.Reasoning),
				ValidationStatus: StatusLikely, LLMGenerated: true,
			})
			metrics.LLMRulesAdded++
		}
	}
	return out
}

// schemaPairs returns every unordered pair of distinct schemas to run the
// LLM pass over. A single schema still yields one self-pair, since
// self-referential reconciliation candidates (a table matched against
// itself, e.g. deduplication) are a legitimate single-schema case.
func schemaPairs(schemas []string) [][2]string {
	if len(schemas) == 0 {
		return nil
	}
	if len(schemas) == 1 {
		return [][2]string{{schemas[0], schemas[0]}}
	}
	var pairs [][2]string
	for i := 0; i < len(schemas); i++ {
		for j := i + 1; j < len(schemas); j++ {
			pairs = append(pairs, [2]string{schemas[i], schemas[j]})
		}
	}
	return pairs
}

func rulesForPair(rules []Rule, a, b string) []Rule {
	var out []Rule
	for _, r := range rules {
		if (r.SourceSchema == a && r.TargetSchema == b) || (r.SourceSchema == b && r.TargetSchema == a) {
			out = append(out, r)
		}
	}
	return out
}

type ruleSuggestion struct {
	SourceTable    string          `json:"source_table"`
	SourceColumns  []string        `json:"source_columns"`
	TargetTable    string          `json:"target_table"`
	TargetColumns  []string        `json:"target_columns"`
	MatchType      string          `json:"match_type"`
	Transformation string          `json:"transformation"`
	Confidence     float64         `json:"confidence"`
	Reasoning      json.RawMessage `json:"reasoning"`
}

type ruleSuggestionResponse struct {
	Rules []ruleSuggestion `json:"rules"`
}

// validate runs the structural checks (tables/columns exist, column-count
// equality) and demotes failures to INVALID rather than dropping them.
func (g *generator) validate(ctx context.Context, rules []Rule, metrics *GenerationMetrics) []Rule {
	for i := range rules {
		r := &rules[i]
		if len(r.SourceColumns) != len(r.TargetColumns) || len(r.SourceColumns) == 0 {
			r.ValidationStatus = StatusInvalid
			metrics.InvalidatedRules++
			continue
		}
		if !g.columnsExist(ctx, r.SourceSchema, r.SourceTable, r.SourceColumns) ||
			!g.columnsExist(ctx, r.TargetSchema, r.TargetTable, r.TargetColumns) {
			r.ValidationStatus = StatusInvalid
			metrics.InvalidatedRules++
		}
		if r.IsMultiTable() {
			if len(r.JoinTables) == 0 || len(r.JoinConditions) == 0 || len(r.JoinOrder) != len(r.JoinTables) || len(r.JoinType) != len(r.JoinConditions) {
				r.ValidationStatus = StatusInvalid
				metrics.InvalidatedRules++
			}
		}
	}
	return rules
}

func (g *generator) columnsExist(ctx context.Context, schemaName, table string, columns []string) bool {
	cols, err := g.schemas.ColumnsOf(ctx, schemaName, table)
	if err != nil {
		return false
	}
	have := make(map[string]bool, len(cols))
	for _, c := range cols {
		have[c.Name] = true
	}
	for _, c := range columns {
		if !have[c] {
			return false
		}
	}
	return true
}

// filterAndDedupe applies min_confidence and match_type filters, then
// dedupes same (source/target/columns/type) rules keeping the
// higher-confidence one. INVALID rules survive filtering (kept for audit)
// but are excluded from dedupe competition against valid rules.
func filterAndDedupe(rules []Rule, minConfidence float64, allowed []MatchType, metrics *GenerationMetrics) []Rule {
	allowedSet := make(map[MatchType]bool, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = true
	}

	type key struct {
		sourceTable, targetTable, cols string
		matchType                      MatchType
	}
	best := make(map[key]Rule)
	var invalid []Rule
	var order []key

	for _, r := range rules {
		if r.ValidationStatus == StatusInvalid {
			invalid = append(invalid, r)
			continue
		}
		if r.Confidence < minConfidence {
			metrics.FilteredRules++
			continue
		}
		if len(allowedSet) > 0 && !allowedSet[r.MatchType] {
			metrics.FilteredRules++
			continue
		}

		k := key{r.SourceTable, r.TargetTable, strings.Join(r.SourceColumns, ",") + "->" + strings.Join(r.TargetColumns, ","), r.MatchType}
		if existing, ok := best[k]; !ok || r.Confidence > existing.Confidence {
			if !ok {
				order = append(order, k)
			}
			best[k] = r
		}
	}

	out := make([]Rule, 0, len(order)+len(invalid))
	for _, k := range order {
		out = append(out, best[k])
	}
	out = append(out, invalid...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// tableHop is one FK/REFERENCES edge reduced to its table-level shape,
// used to chain two-hop join rules.
type tableHop struct {
	schema, fromTable, fromCol, toTable, toCol string
	confidence                                 float64
}

// composeMultiTableRules builds two-hop join rules (A -> B -> C) wherever
// the priority fields named in fieldPreferences live on a table that is
// only reachable through an intermediate join table, per the
// topological join-chain composition the rule generator performs for
// multi-table reconciliation. Grounded on the staged, dependency-ordered
// work composition services/workflow_orchestrator.go uses for multi-step
// pipelines, applied here to join-chain ordering instead of task
// scheduling.
func composeMultiTableRules(g *kg.Graph, prefs []kg.FieldPreference, included map[string]bool) []Rule {
	priorityTables := make(map[string]bool, len(prefs))
	for _, p := range prefs {
		if len(p.PriorityFields) > 0 {
			priorityTables[p.TableName] = true
		}
	}
	if len(priorityTables) == 0 {
		return nil
	}

	var hops []tableHop
	for _, r := range g.Relationships {
		if r.Type != kg.RelForeignKey && r.Type != kg.RelReferences {
			continue
		}
		srcSchema, tgtSchema := edgeSchemas(g, r)
		if !included[srcSchema] || !included[tgtSchema] {
			continue
		}
		sourceCol, targetCol := columnsOfEdge(r)
		if sourceCol == "" || targetCol == "" {
			continue
		}
		hops = append(hops, tableHop{
			schema: srcSchema, fromTable: tableOfNodeID(r.SourceID), fromCol: sourceCol,
			toTable: tableOfNodeID(r.TargetID), toCol: targetCol, confidence: r.Confidence,
		})
	}

	var out []Rule
	for _, first := range hops {
		for _, second := range hops {
			if first.toTable != second.fromTable || first.fromTable == second.toTable {
				continue
			}
			if !priorityTables[first.fromTable] && !priorityTables[second.toTable] {
				continue
			}
			out = append(out, Rule{
				RuleID: uuid.NewString(),
				RuleName: first.fromTable + " -> " + first.toTable + " -> " + second.toTable,
				SourceSchema: first.schema, SourceTable: first.fromTable, SourceColumns: []string{first.fromCol},
				TargetSchema: second.schema, TargetTable: second.toTable, TargetColumns: []string{second.toCol},
				MatchType:  MatchComposite,
				Confidence: capConfidence(first.confidence*second.confidence, 0.90),
				Reasoning:  "multi-table join chain through " + first.toTable,
				ValidationStatus: StatusLikely,
				JoinTables: []string{first.fromTable, first.toTable, second.toTable},
				JoinOrder:  []string{first.fromTable, first.toTable, second.toTable},
				JoinConditions: []JoinCondition{
					{LeftAlias: first.fromTable, LeftCol: first.fromCol, RightAlias: first.toTable, RightCol: first.toCol},
					{LeftAlias: second.fromTable, LeftCol: second.fromCol, RightAlias: second.toTable, RightCol: second.toCol},
				},
				JoinType: []JoinType{JoinInner, JoinInner},
			})
		}
	}
	return out
}
