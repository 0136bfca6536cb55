package llm

import (
	"context"
	"fmt"

	"github.com/3frameslab/kgrecon/pkg/apperrors"
	"github.com/3frameslab/kgrecon/pkg/retry"
)

// CompleteOptions configures a single Complete call.
type CompleteOptions struct {
	SystemMessage string
	Temperature   float64
	Breaker       *CircuitBreaker // optional; nil disables circuit breaking
	RetryConfig   *retry.Config   // optional; nil uses retry.DefaultConfig()
}

// Complete asks client to produce prompt's response and parses it as T. It
// retries transport-level failures (endpoint/rate-limit/timeout) per
// RetryConfig, but reissues the prompt at most once on a schema violation
// (the model returned text that didn't parse as T), appending a correction
// note so the retry isn't identical to the first attempt. Callers that
// cannot tolerate an unavailable LLM must fall back to rule-based logic on
// the returned error rather than retry further themselves.
func Complete[T any](ctx context.Context, client LLMClient, prompt string, opts CompleteOptions) (T, error) {
	var zero T

	if opts.Breaker != nil {
		if ok, err := opts.Breaker.Allow(); !ok {
			return zero, apperrors.New(apperrors.KindLLMUnavailable, "circuit breaker open", true, err)
		}
	}

	cfg := opts.RetryConfig
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}

	schemaRetried := false
	currentPrompt := prompt

	for {
		result, err := retry.DoWithResult(ctx, cfg, func() (*GenerateResponseResult, error) {
			return client.GenerateResponse(ctx, currentPrompt, opts.SystemMessage, opts.Temperature, false)
		})
		if err != nil {
			if opts.Breaker != nil {
				opts.Breaker.RecordFailure()
			}
			return zero, apperrors.New(apperrors.KindLLMUnavailable, "llm call failed", IsRetryable(err), err)
		}

		parsed, parseErr := ParseJSONResponse[T](result.Content)
		if parseErr == nil {
			if opts.Breaker != nil {
				opts.Breaker.RecordSuccess()
			}
			return parsed, nil
		}

		if schemaRetried {
			if opts.Breaker != nil {
				opts.Breaker.RecordFailure()
			}
			return zero, apperrors.New(apperrors.KindLLMSchemaViolation, "response did not match expected schema after retry", false, parseErr)
		}

		schemaRetried = true
		currentPrompt = fmt.Sprintf("%s\n\nYour previous response could not be parsed as the required JSON shape (%v). Return ONLY valid JSON matching the requested structure, with no surrounding text.", prompt, parseErr)
	}
}
