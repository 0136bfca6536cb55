package nlsql

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/kg"
	"github.com/3frameslab/kgrecon/pkg/llm"
)

// Parser turns a free-text CompileRequest into a structured QueryIntent:
// classification, entity resolution, filter extraction, and join
// inference, in that order.
type Parser interface {
	Parse(ctx context.Context, req CompileRequest) (*QueryIntent, error)
}

type parser struct {
	kgStore kg.Store
	llm     llm.LLMClient
	logger  *zap.Logger
}

// NewParser builds a Parser over a KG store and an optional LLM client
// (nil disables every LLM fallback regardless of req.UseLLM).
func NewParser(kgStore kg.Store, llmClient llm.LLMClient, logger *zap.Logger) Parser {
	return &parser{kgStore: kgStore, llm: llmClient, logger: logger.Named("nlsql.parser")}
}

func (p *parser) Parse(ctx context.Context, req CompileRequest) (*QueryIntent, error) {
	g, err := p.kgStore.Get(ctx, req.KGName)
	if err != nil {
		return nil, err
	}

	cls := classify(ctx, p.llm, req.Definition, req.UseLLM, p.logger)
	entities := resolveEntities(ctx, g, req.Definition, p.llm, req.UseLLM, p.logger)
	if len(entities) == 0 {
		return nil, apperrors.Invalidf("no known table mentioned in definition", nil)
	}

	intent := &QueryIntent{
		QueryType:  cls.QueryType,
		Operation:  cls.Operation,
		Confidence: cls.Confidence,
	}

	source := entities[0]
	intent.SourceTable = source.Table
	var target tableRef
	hasTarget := false
	if len(entities) > 1 {
		target = entities[1]
		hasTarget = true
		intent.TargetTable = target.Table
	}

	sourceCols := columnsOfTable(g, intent.SourceTable)
	intent.Filters = extractFilters(req.Definition, intent.SourceTable, sourceCols)
	if hasTarget {
		targetCols := columnsOfTable(g, intent.TargetTable)
		intent.Filters = append(intent.Filters, extractFilters(req.Definition, intent.TargetTable, targetCols)...)
	}

	if cls.QueryType == TypeAggregation {
		applyAggregateHints(intent, req.Definition, sourceCols)
	}

	if hasTarget {
		hops, ok := inferJoinPath(ctx, p.kgStore, req.KGName, g, source.NodeID, target.NodeID)
		if !ok {
			if cls.QueryType == TypeComparison {
				return nil, apperrors.Invalidf(
					"no join path found between "+intent.SourceTable+" and "+intent.TargetTable+
						"; a comparison query requires joinability", nil)
			}
			intent.Warning = "no join path found between " + intent.SourceTable + " and " + intent.TargetTable
			intent.JoinColumns = nil
		} else {
			lastTableID := target.NodeID
			for _, col := range extraColumnsOutsidePair(req.Definition, g, intent.SourceTable, intent.TargetTable) {
				extended, extOK := extendPathForColumn(ctx, p.kgStore, req.KGName, g, hops, lastTableID, col.NodeID)
				if extOK {
					hops = extended
					lastTableID = col.NodeID
					intent.AdditionalColumns = append(intent.AdditionalColumns, AdditionalColumn{
						Table: col.Table, Column: mentionedColumn(req.Definition, columnsOfTable(g, col.Table)),
					})
				}
			}
			intent.JoinColumns = hops
		}
	}

	return intent, nil
}

// extraColumnsOutsidePair finds any known table, other than source/target,
// that the definition names — candidates for additional-column enrichment
// joins.
func extraColumnsOutsidePair(definition string, g *kg.Graph, sourceTable, targetTable string) []tableRef {
	lower := strings.ToLower(definition)
	var out []tableRef
	for _, t := range tablesOf(g) {
		if t.Table == sourceTable || t.Table == targetTable {
			continue
		}
		if strings.Contains(lower, strings.ToLower(t.Table)) {
			out = append(out, t)
		}
	}
	return out
}

// mentionedColumn returns the first of columns that appears literally in
// definition, case-insensitively, or "" if none do.
func mentionedColumn(definition string, columns []string) string {
	lower := strings.ToLower(definition)
	for _, c := range columns {
		if strings.Contains(lower, strings.ToLower(c)) {
			return c
		}
	}
	return ""
}

// applyAggregateHints picks an aggregate function and column from simple
// keyword cues ("how many"/"count" -> COUNT(*), "total"/"sum of <col>" ->
// SUM(<col>), "average"/"avg of <col>" -> AVG(<col>)).
func applyAggregateHints(intent *QueryIntent, definition string, columns []string) {
	lower := strings.ToLower(definition)
	switch {
	case strings.Contains(lower, "average") || strings.Contains(lower, "avg"):
		intent.AggregateFunc = AggAvg
	case strings.Contains(lower, "sum") || strings.Contains(lower, "total"):
		intent.AggregateFunc = AggSum
	default:
		intent.AggregateFunc = AggCount
	}
	if intent.AggregateFunc == AggCount {
		return
	}
	for _, c := range columns {
		if strings.Contains(lower, strings.ToLower(c)) {
			intent.AggregateColumn = c
			return
		}
	}
}
