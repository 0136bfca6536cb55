package nlsql

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/3frameslab/kgrecon/pkg/llm"
)

// classification is the classifier's output: a query type, an operation,
// and how confident the rule-based pass was.
type classification struct {
	QueryType  QueryType
	Operation  Operation
	Confidence float64
}

type classifierLLMResponse struct {
	QueryType  QueryType `json:"query_type"`
	Operation  Operation `json:"operation"`
	Confidence float64   `json:"confidence"`
}

var (
	notInPattern    = regexp.MustCompile(`\bnot in\b|\bnot found in\b|\bmissing from\b|\bwhich are not in\b`)
	inPattern       = regexp.MustCompile(`\bwhich are in\b|\balso in\b|\bpresent in\b|\bboth\b`)
	aggregatePattern = regexp.MustCompile(`\bhow many\b|\bcount of\b|\btotal\b|\bsum of\b|\baverage\b|\bavg\b`)
	filterPattern   = regexp.MustCompile(`\bwhere\b|\bactive\b|\binactive\b|\bstatus\b|\bfilter\b`)
	relationshipPattern = regexp.MustCompile(`\brelat(e|ed|ionship)\b|\bconnect(ed|ion)?\b|\bhow.*linked\b`)
)

// classify maps definition to a QueryType/Operation pair using keyword and
// regex rules. If the rules leave the call ambiguous (no pattern matched
// with high confidence) and useLLM is set, one LLM call disambiguates.
func classify(ctx context.Context, client llm.LLMClient, definition string, useLLM bool, logger *zap.Logger) classification {
	lower := strings.ToLower(definition)

	switch {
	case notInPattern.MatchString(lower):
		return classification{QueryType: TypeComparison, Operation: OpNotIn, Confidence: 0.9}
	case inPattern.MatchString(lower):
		return classification{QueryType: TypeComparison, Operation: OpIn, Confidence: 0.85}
	case aggregatePattern.MatchString(lower):
		return classification{QueryType: TypeAggregation, Operation: OpAggregate, Confidence: 0.85}
	case relationshipPattern.MatchString(lower):
		return classification{QueryType: TypeRelationship, Operation: OpNone, Confidence: 0.7}
	case filterPattern.MatchString(lower):
		return classification{QueryType: TypeFilterQuery, Operation: OpEquals, Confidence: 0.7}
	}

	if !useLLM || client == nil {
		return classification{QueryType: TypeDataQuery, Operation: OpNone, Confidence: 0.4}
	}

	resp, err := llm.Complete[classifierLLMResponse](ctx, client, buildClassifierPrompt(definition), llm.CompleteOptions{
		SystemMessage: classifierSystemMessage,
	})
	if err != nil {
		logger.Warn("classifier LLM disambiguation failed, defaulting to DATA_QUERY", zap.Error(err))
		return classification{QueryType: TypeDataQuery, Operation: OpNone, Confidence: 0.3}
	}
	if resp.QueryType == "" {
		resp.QueryType = TypeDataQuery
	}
	if resp.Operation == "" {
		resp.Operation = OpNone
	}
	return classification{QueryType: resp.QueryType, Operation: resp.Operation, Confidence: resp.Confidence}
}

const classifierSystemMessage = `You classify a free-text data query definition into a query type and operation.
Respond with JSON only: {"query_type": "...", "operation": "...", "confidence": 0.0-1.0}.
query_type is one of RELATIONSHIP, DATA_QUERY, FILTER_QUERY, COMPARISON_QUERY, AGGREGATION_QUERY.
operation is one of NOT_IN, IN, EQUALS, CONTAINS, AGGREGATE, NONE.`

func buildClassifierPrompt(definition string) string {
	return "Classify this definition:\n\n" + definition
}
