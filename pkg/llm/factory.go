package llm

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider selects which backend a ClientFactory builds clients for.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// FactoryConfig holds the settings needed to construct an LLMClient,
// independent of which provider backs it.
type FactoryConfig struct {
	Provider Provider
	Endpoint string // OpenAI-compatible base URL; ignored for Anthropic
	Model    string
	APIKey   string
}

// LLMClientFactory builds LLM clients from static configuration. Unlike the
// teacher's project-scoped factory, the engine has a single configured
// provider per process: one for build-time KG/rule generation, optionally a
// second for embeddings.
type LLMClientFactory interface {
	CreateClient(cfg FactoryConfig) (LLMClient, error)
}

// ClientFactory is the default LLMClientFactory.
type ClientFactory struct {
	logger *zap.Logger
}

// NewClientFactory creates a new factory.
func NewClientFactory(logger *zap.Logger) *ClientFactory {
	return &ClientFactory{logger: logger}
}

// CreateClient builds an LLMClient for the given configuration. Embeddings
// are only available from the OpenAI-compatible client; an Anthropic
// configuration used purely for embeddings is a caller error that surfaces
// the first time CreateEmbedding is invoked, not here.
func (f *ClientFactory) CreateClient(cfg FactoryConfig) (LLMClient, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic api key is required")
		}
		return NewAnthropicClient(cfg.APIKey, cfg.Model), nil
	case ProviderOpenAI, "":
		client, err := NewClient(&Config{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey,
		}, f.logger)
		if err != nil {
			return nil, fmt.Errorf("create openai-compatible client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

var _ LLMClientFactory = (*ClientFactory)(nil)
