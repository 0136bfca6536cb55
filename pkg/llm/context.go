package llm

import "context"

type contextKey string

const llmContextKey contextKey = "llm_context"

// WithContext returns a context with LLM call context attached, merged with
// any existing context values.
func WithContext(ctx context.Context, values map[string]any) context.Context {
	existing := GetContext(ctx)
	if existing == nil {
		existing = make(map[string]any)
	}
	for k, v := range values {
		existing[k] = v
	}
	return context.WithValue(ctx, llmContextKey, existing)
}

// GetContext retrieves the LLM call context, if present.
func GetContext(ctx context.Context) map[string]any {
	if c, ok := ctx.Value(llmContextKey).(map[string]any); ok {
		cp := make(map[string]any, len(c))
		for k, v := range c {
			cp[k] = v
		}
		return cp
	}
	return nil
}

// WithBuildContext tags a context with the knowledge-graph build or rule
// generation stage currently invoking the LLM, for logging and conversation
// tracing.
func WithBuildContext(ctx context.Context, kgName, stage string) context.Context {
	values := map[string]any{"kg_name": kgName}
	if stage != "" {
		values["stage"] = stage
	}
	return WithContext(ctx, values)
}
