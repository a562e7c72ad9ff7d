package llm

import (
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/oaklog/eventagent/internal/prompt"
)

// Supported provider names.
const (
	ProviderOpenAICompatible = "openai_compatible"
	ProviderOpenAIVision     = "openai_vision"
)

// Options configures extractor construction.
type Options struct {
	// Provider selects the implementation, one of the Provider constants.
	Provider string
	APIKey   string
	Model    string
	// EndpointURL points at an OpenAI-compatible base URL. Required for
	// openai_compatible; optional for openai_vision, which defaults to the
	// upstream OpenAI endpoint.
	EndpointURL string
	Prompts     prompt.Builder
}

// NewExtractor builds the provider-specific extractor for opts.
func NewExtractor(opts Options) (Extractor, error) {
	switch opts.Provider {
	case ProviderOpenAICompatible:
		if opts.EndpointURL == "" {
			return nil, errors.New("openai_compatible provider requires an endpoint URL")
		}
		return &ChatExtractor{Client: newClient(opts), Model: opts.Model, Prompts: opts.Prompts}, nil
	case ProviderOpenAIVision:
		return &VisionExtractor{Client: newClient(opts), Model: opts.Model, Prompts: opts.Prompts}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: %s, %s)",
			opts.Provider, ProviderOpenAICompatible, ProviderOpenAIVision)
	}
}

func newClient(opts Options) Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.EndpointURL != "" {
		cfg.BaseURL = opts.EndpointURL
	}
	return openai.NewClientWithConfig(cfg)
}
