package kg

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/jsonutil"
	"github.com/3frameslab/kgrecon/pkg/llm"
	"github.com/3frameslab/kgrecon/pkg/prompts"
	"github.com/3frameslab/kgrecon/pkg/schema"
)

// Builder constructs knowledge graphs from one or more schemas. A
// single-schema build is the N=1 case of the same entry point.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) (*Graph, *BuildMetrics, error)
}

// BuildRequest is the unified single- and multi-schema build request.
type BuildRequest struct {
	KGName           string
	Schemas          []string
	UseLLM           bool
	MinConfidence    float64
	ExplicitPairs    []ExplicitPair
	FieldPreferences []FieldPreference
}

// BuildMetrics records what a build actually did, for diagnostics and the
// end-to-end test scenarios that assert on edge/alias counts.
type BuildMetrics struct {
	NodesCreated          int
	EdgesByType           map[RelationshipType]int
	LLMCallsMade          int
	LLMCallsFailed        int
	AliasesLearned        int
	ExplicitPairsFiltered int
	ExplicitPairsDropped  int
}

func newBuildMetrics() *BuildMetrics {
	return &BuildMetrics{EdgesByType: make(map[RelationshipType]int)}
}

type builder struct {
	schemas schema.Store
	store   Store
	llm     llm.LLMClient
	logger  *zap.Logger
}

// NewBuilder creates a Builder. llmClient may be nil, in which case steps 6
// and 7 are skipped regardless of req.UseLLM (per C2's "callers fall back
// gracefully to rule-based logic" contract).
func NewBuilder(schemas schema.Store, store Store, llmClient llm.LLMClient, logger *zap.Logger) Builder {
	return &builder{schemas: schemas, store: store, llm: llmClient, logger: logger.Named("kg.builder")}
}

// loadedSchema pairs a schema's descriptor with the name it was requested
// under, since that name is the schema qualifier used in node ids.
type loadedSchema struct {
	name string
	desc *schema.Descriptor
}

func (b *builder) Build(ctx context.Context, req BuildRequest) (*Graph, *BuildMetrics, error) {
	metrics := newBuildMetrics()

	// Step 1: load and validate.
	loaded := make([]loadedSchema, 0, len(req.Schemas))
	for _, name := range req.Schemas {
		desc, err := b.schemas.Load(ctx, name)
		if err != nil {
			return nil, nil, err
		}
		if len(desc.Tables) == 0 {
			return nil, nil, apperrors.Invalidf("schema \""+name+"\" declares zero tables, build aborted", nil)
		}
		loaded = append(loaded, loadedSchema{name: name, desc: desc})
	}

	g := &Graph{
		Name:       req.KGName,
		SchemaFile: joinSchemaNames(req.Schemas),
		Metadata: Metadata{
			SourceSchemas:    req.Schemas,
			FieldPreferences: req.FieldPreferences,
			TableAliases:     make(TableAliases),
			Counts:           make(map[string]int),
		},
	}

	// Step 3: node creation (and the bookkeeping step 4/5 need: which
	// columns are important, which are FKs).
	important := b.createNodes(g, loaded, req.FieldPreferences)

	// Step 2: filter and emit explicit pairs.
	b.emitExplicitPairs(g, loaded, req.ExplicitPairs, metrics)

	// Step 4: within-schema relationships.
	b.withinSchemaRelationships(g, loaded, important)

	// Step 5: cross-schema relationships.
	b.crossSchemaRelationships(g, loaded)

	// Step 6 & 7: LLM enhancement and alias extraction.
	if req.UseLLM && b.llm != nil {
		b.llmEnhance(ctx, g, loaded, req.MinConfidence, metrics)
		b.extractAliases(ctx, g, loaded, metrics)
	}

	// Step 8: ordering and tie-breaks, then sort for deterministic output.
	g.Relationships = dedupeRelationships(g.Relationships)
	sortRelationships(g.Relationships)

	metrics.NodesCreated = len(g.Nodes)
	for _, r := range g.Relationships {
		metrics.EdgesByType[r.Type]++
	}
	g.Metadata.Counts["nodes"] = len(g.Nodes)
	g.Metadata.Counts["relationships"] = len(g.Relationships)

	// Step 9: persist.
	if err := b.store.Put(ctx, g); err != nil {
		return nil, nil, err
	}

	return g, metrics, nil
}

func joinSchemaNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

// importantColumns maps "schema:table:column" -> true for every column
// that became its own COLUMN node.
type importantColumns map[string]bool

func (b *builder) createNodes(g *Graph, loaded []loadedSchema, prefs []FieldPreference) importantColumns {
	important := make(importantColumns)
	prefColumns := prefColumnSet(prefs)

	for _, ls := range loaded {
		for _, table := range ls.desc.OrderedTables() {
			tableID := TableNodeID(ls.name, table.TableName)
			tableProps := map[string]any{"schema": ls.name, "table_name": table.TableName}

			fkSources := make(map[string]bool, len(table.ForeignKeys))
			for _, fk := range table.ForeignKeys {
				fkSources[fk.SourceColumn] = true
			}
			pkSet := make(map[string]bool, len(table.PrimaryKeys))
			for _, pk := range table.PrimaryKeys {
				pkSet[pk] = true
			}

			for _, col := range table.Columns {
				colKey := ls.name + ":" + table.TableName + ":" + col.Name
				_, refPattern := referencedTableName(col.Name)
				isImportant := isImportantColumn(col.Name, pkSet[col.Name], fkSources[col.Name], refPattern) || prefColumns[table.TableName+"."+col.Name]

				if !isImportant {
					tableProps["column:"+col.Name] = col.Type
					continue
				}

				important[colKey] = true
				colID := ColumnNodeID(ls.name, table.TableName, col.Name)
				g.Nodes = append(g.Nodes, Node{
					ID:    colID,
					Label: LabelColumn,
					Name:  col.Name,
					Properties: map[string]any{
						"schema":      ls.name,
						"table":       table.TableName,
						"type":        col.Type,
						"primary_key": pkSet[col.Name],
						"foreign_key": fkSources[col.Name],
					},
				})
			}

			g.Nodes = append(g.Nodes, Node{ID: tableID, Label: LabelTable, Name: table.TableName, Properties: tableProps})
		}
	}

	return important
}

func prefColumnSet(prefs []FieldPreference) map[string]bool {
	set := make(map[string]bool)
	for _, p := range prefs {
		for _, f := range p.PriorityFields {
			set[p.TableName+"."+f] = true
		}
	}
	return set
}

func (b *builder) emitExplicitPairs(g *Graph, loaded []loadedSchema, pairs []ExplicitPair, metrics *BuildMetrics) {
	tableExists := func(table string) bool {
		for _, ls := range loaded {
			if _, ok := ls.desc.Tables[table]; ok {
				return true
			}
		}
		return false
	}

	for _, p := range pairs {
		if IsExcludedField(p.SourceColumn) || IsExcludedField(p.TargetColumn) {
			metrics.ExplicitPairsFiltered++
			continue
		}
		if !tableExists(p.SourceTable) || !tableExists(p.TargetTable) {
			metrics.ExplicitPairsDropped++
			b.logger.Warn("explicit pair references unknown table, dropped",
				zap.String("source_table", p.SourceTable), zap.String("target_table", p.TargetTable))
			continue
		}

		sourceID := g.resolveOrCreateColumnNode(p.SourceTable, p.SourceColumn)
		targetID := g.resolveOrCreateColumnNode(p.TargetTable, p.TargetColumn)

		g.Relationships = append(g.Relationships, Relationship{
			SourceID: sourceID, TargetID: targetID, Type: RelExplicitPair,
			Confidence: 1.0, Inferred: false,
			Properties: map[string]any{
				"source_column": p.SourceColumn, "target_column": p.TargetColumn, "user_defined": true,
			},
		})
		if p.Bidirectional {
			g.Relationships = append(g.Relationships, Relationship{
				SourceID: targetID, TargetID: sourceID, Type: RelExplicitPair,
				Confidence: 1.0, Inferred: false,
				Properties: map[string]any{
					"source_column": p.TargetColumn, "target_column": p.SourceColumn, "user_defined": true, "bidirectional": true,
				},
			})
		}
	}
}

// resolveOrCreateColumnNode finds an existing column node by bare table
// name (schema unknown to the pair), or creates a loosely-schemed one if
// the column was never promoted to a node during createNodes (e.g. a
// non-important column named explicitly by the user).
func (g *Graph) resolveOrCreateColumnNode(table, column string) string {
	for _, n := range g.Nodes {
		if n.Label == LabelColumn && n.Name == column {
			if t, _ := n.Properties["table"].(string); t == table {
				return n.ID
			}
		}
	}
	id := table + ":" + column
	g.Nodes = append(g.Nodes, Node{ID: id, Label: LabelColumn, Name: column, Properties: map[string]any{"table": table}})
	return id
}

func (b *builder) withinSchemaRelationships(g *Graph, loaded []loadedSchema, important importantColumns) {
	for _, ls := range loaded {
		for _, table := range ls.desc.OrderedTables() {
			tableID := TableNodeID(ls.name, table.TableName)

			for _, fk := range table.ForeignKeys {
				sourceID := ColumnNodeID(ls.name, table.TableName, fk.SourceColumn)
				targetID := ColumnNodeID(ls.name, fk.TargetTable, fk.TargetColumn)
				g.Relationships = append(g.Relationships, Relationship{
					SourceID: sourceID, TargetID: targetID, Type: RelForeignKey,
					Confidence: 0.95, Inferred: false,
					Properties: map[string]any{
						"source_schema": ls.name, "target_schema": ls.name,
						"source_column": fk.SourceColumn, "target_column": fk.TargetColumn,
					},
				})
			}

			for _, col := range table.Columns {
				impliedTable, ok := referencedTableName(col.Name)
				if !ok {
					continue
				}
				targetTable, found := matchTableName(ls.desc, impliedTable)
				if !found || targetTable == table.TableName {
					continue
				}
				targetPK := primaryKeyColumn(ls.desc.Tables[targetTable])
				if targetPK == "" {
					continue
				}
				sourceID := ColumnNodeID(ls.name, table.TableName, col.Name)
				targetID := ColumnNodeID(ls.name, targetTable, targetPK)
				g.Relationships = append(g.Relationships, Relationship{
					SourceID: sourceID, TargetID: targetID, Type: RelReferences,
					Confidence: 0.85, Inferred: true,
					Properties: map[string]any{
						"source_schema": ls.name, "target_schema": ls.name,
						"source_column": col.Name, "target_column": targetPK,
					},
				})
			}

			for colKey := range important {
				prefix := ls.name + ":" + table.TableName + ":"
				if len(colKey) > len(prefix) && colKey[:len(prefix)] == prefix {
					colName := colKey[len(prefix):]
					g.Relationships = append(g.Relationships, Relationship{
						SourceID: ColumnNodeID(ls.name, table.TableName, colName), TargetID: tableID,
						Type: RelBelongsTo, Confidence: 1.0, Inferred: false,
					})
				}
			}
		}
	}
}

func (b *builder) crossSchemaRelationships(g *Graph, loaded []loadedSchema) {
	for _, source := range loaded {
		for _, table := range source.desc.OrderedTables() {
			for _, col := range table.Columns {
				impliedTable, ok := referencedTableName(col.Name)
				if !ok {
					continue
				}
				for _, target := range loaded {
					if target.name == source.name {
						continue
					}
					targetTable, found := matchTableName(target.desc, impliedTable)
					if !found {
						continue
					}
					targetPK := primaryKeyColumn(target.desc.Tables[targetTable])
					if targetPK == "" {
						continue
					}
					sourceID := ColumnNodeID(source.name, table.TableName, col.Name)
					targetID := ColumnNodeID(target.name, targetTable, targetPK)
					g.Relationships = append(g.Relationships, Relationship{
						SourceID: sourceID, TargetID: targetID, Type: RelCrossSchemaReference,
						Confidence: 0.75, Inferred: true,
						Properties: map[string]any{
							"source_schema": source.name, "target_schema": target.name, "column_name": col.Name,
						},
					})
				}
			}
		}
	}
}

// matchTableName resolves impliedTable (already lowercased) against a
// schema's actual table names, trying exact, singular, and plural forms.
func matchTableName(desc *schema.Descriptor, impliedTable string) (string, bool) {
	candidates := []string{impliedTable, inflection.Singular(impliedTable), inflection.Plural(impliedTable)}
	for name := range desc.Tables {
		lower := toLower(name)
		for _, c := range candidates {
			if lower == c {
				return name, true
			}
		}
	}
	return "", false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func primaryKeyColumn(t schema.Table) string {
	if len(t.PrimaryKeys) > 0 {
		return t.PrimaryKeys[0]
	}
	return ""
}

func (b *builder) llmEnhance(ctx context.Context, g *Graph, loaded []loadedSchema, minConfidence float64, metrics *BuildMetrics) {
	tableContexts := buildTableContexts(loaded)

	for _, category := range semanticCategories {
		known := knownEdgeContexts(g)
		promptText := prompts.BuildSemanticRelationshipPrompt(toPromptCategory(category), tableContexts, known)

		metrics.LLMCallsMade++
		result, err := llm.Complete[semanticEdgeResponse](ctx, b.llm, promptText, llm.CompleteOptions{
			SystemMessage: prompts.BuildSemanticRelationshipSystemMessage(),
		})
		if err != nil {
			metrics.LLMCallsFailed++
			b.logger.Warn("llm semantic enhancement call failed, skipping category",
				zap.String("category", string(category)), zap.Error(err))
			continue
		}

		for _, edge := range result.Relationships {
			if edge.Confidence < minConfidence {
				continue
			}
			sourceID := g.resolveOrCreateColumnNode(edge.SourceTable, edge.SourceColumn)
			targetID := g.resolveOrCreateColumnNode(edge.TargetTable, edge.TargetColumn)
			g.Relationships = append(g.Relationships, Relationship{
				SourceID: sourceID, TargetID: targetID, Type: category,
				Confidence: edge.Confidence, Inferred: true, Reasoning: jsonutil.FlexibleStringValue(edge.Reasoning),
				Properties: map[string]any{"source_column": edge.SourceColumn, "target_column": edge.TargetColumn},
			})
		}
	}
}

func (b *builder) extractAliases(ctx context.Context, g *Graph, loaded []loadedSchema, metrics *BuildMetrics) {
	for _, ls := range loaded {
		for _, table := range ls.desc.OrderedTables() {
			columns := make([]string, 0, len(table.Columns))
			for _, c := range table.Columns {
				columns = append(columns, c.Name)
			}

			qualified := ls.name + "." + table.TableName
			metrics.LLMCallsMade++
			result, err := llm.Complete[tableAliasResponse](ctx, b.llm,
				prompts.BuildTableAliasPrompt(ls.name, table.TableName, columns),
				llm.CompleteOptions{SystemMessage: prompts.BuildTableAliasSystemMessage()})
			if err != nil {
				metrics.LLMCallsFailed++
				b.logger.Warn("llm alias extraction failed, leaving alias list empty",
					zap.String("table", qualified), zap.Error(err))
				continue
			}
			if len(result.Aliases) > 0 {
				g.Metadata.TableAliases[qualified] = result.Aliases
				metrics.AliasesLearned += len(result.Aliases)
			}
		}
	}
}

type semanticEdge struct {
	SourceTable  string          `json:"source_table"`
	SourceColumn string          `json:"source_column"`
	TargetTable  string          `json:"target_table"`
	TargetColumn string          `json:"target_column"`
	Confidence   float64         `json:"confidence"`
	Reasoning    json.RawMessage `json:"reasoning"`
}

type semanticEdgeResponse struct {
	Relationships []semanticEdge `json:"relationships"`
}

type tableAliasResponse struct {
	Aliases []string `json:"aliases"`
}

func buildTableContexts(loaded []loadedSchema) []prompts.SchemaTableContext {
	var out []prompts.SchemaTableContext
	for _, ls := range loaded {
		for _, table := range ls.desc.OrderedTables() {
			cols := make([]string, 0, len(table.Columns))
			for _, c := range table.Columns {
				cols = append(cols, c.Name)
			}
			out = append(out, prompts.SchemaTableContext{SchemaName: ls.name, TableName: table.TableName, Columns: cols})
		}
	}
	return out
}

func knownEdgeContexts(g *Graph) []prompts.KnownEdgeContext {
	out := make([]prompts.KnownEdgeContext, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		out = append(out, prompts.KnownEdgeContext{SourceTable: r.SourceID, TargetTable: r.TargetID, Type: string(r.Type)})
	}
	return out
}

func toPromptCategory(t RelationshipType) prompts.SemanticCategory {
	switch t {
	case RelSemanticReference:
		return prompts.CategorySemanticEquivalence
	case RelBusinessLogic:
		return prompts.CategoryBusinessLogic
	case RelHierarchical:
		return prompts.CategoryHierarchical
	case RelTemporal:
		return prompts.CategoryTemporal
	case RelLookup:
		return prompts.CategoryLookup
	default:
		return prompts.SemanticCategory(t)
	}
}

// dedupeRelationships keeps, for each (source_id, target_id, type), the
// highest-confidence edge; ties keep the one that is not inferred.
func dedupeRelationships(rels []Relationship) []Relationship {
	type key struct {
		source, target string
		typ            RelationshipType
	}
	best := make(map[key]Relationship, len(rels))
	order := make([]key, 0, len(rels))

	for _, r := range rels {
		k := key{r.SourceID, r.TargetID, r.Type}
		existing, seen := best[k]
		if !seen {
			best[k] = r
			order = append(order, k)
			continue
		}
		if r.Confidence > existing.Confidence || (r.Confidence == existing.Confidence && existing.Inferred && !r.Inferred) {
			best[k] = r
		}
	}

	out := make([]Relationship, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

func sortRelationships(rels []Relationship) {
	sort.SliceStable(rels, func(i, j int) bool {
		if rels[i].SourceID != rels[j].SourceID {
			return rels[i].SourceID < rels[j].SourceID
		}
		if rels[i].TargetID != rels[j].TargetID {
			return rels[i].TargetID < rels[j].TargetID
		}
		return rels[i].Type < rels[j].Type
	})
}
