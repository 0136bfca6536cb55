package llm

import (
	"context"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// defaultAnthropicModel is used when no model is configured; callers
// targeting a different Claude release pass a model to NewAnthropicClient.
const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// defaultAnthropicMaxTokens bounds response length when a caller doesn't
// need more; JSON-schema responses from the build pipeline rarely exceed it.
const defaultAnthropicMaxTokens = 2000

// AnthropicClient implements LLMClient against the Anthropic Messages API.
// It has no notion of embeddings; CreateEmbedding/CreateEmbeddings always
// fail so callers that need embeddings must be configured against the
// OpenAI-compatible Client instead.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient builds a client for the given model using apiKey.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(apiKey),
		model:  model,
	}
}

// GenerateResponse sends prompt as a single user message, with systemMessage
// as the system prompt when non-empty. temperature and thinking are
// accepted for interface parity with the OpenAI-compatible client; neither
// is set on the request, so the API's default temperature applies.
func (c *AnthropicClient) GenerateResponse(ctx context.Context, prompt, systemMessage string, temperature float64, thinking bool) (*GenerateResponseResult, error) {
	req := anthropic.MessagesRequest{
		Model:     c.model,
		MaxTokens: defaultAnthropicMaxTokens,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	}
	if systemMessage != "" {
		req.System = systemMessage
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, ClassifyError(err)
	}

	return &GenerateResponseResult{
		Content: extractAnthropicText(resp),
	}, nil
}

// CreateEmbedding always fails: Anthropic does not expose an embeddings API.
func (c *AnthropicClient) CreateEmbedding(ctx context.Context, input, model string) ([]float32, error) {
	return nil, NewError(ErrorTypeUnknown, "anthropic client does not support embeddings", false, nil)
}

// CreateEmbeddings always fails; see CreateEmbedding.
func (c *AnthropicClient) CreateEmbeddings(ctx context.Context, inputs []string, model string) ([][]float32, error) {
	return nil, NewError(ErrorTypeUnknown, "anthropic client does not support embeddings", false, nil)
}

func (c *AnthropicClient) GetModel() string { return c.model }

// GetEndpoint reports the fixed Anthropic API host; the SDK does not expose
// a configurable base URL on the client we wrap.
func (c *AnthropicClient) GetEndpoint() string { return "https://api.anthropic.com" }

func extractAnthropicText(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

var _ LLMClient = (*AnthropicClient)(nil)
