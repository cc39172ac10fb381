// Package llm hosts the provider abstraction: the closed provider
// identity enum, the adapter interface, the model classifier, and the
// registry the orchestrator resolves providers through.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/researchcli/research/internal/config"
	apperrors "github.com/researchcli/research/internal/errors"
	"github.com/researchcli/research/internal/llm/contract"
	anthropicProvider "github.com/researchcli/research/internal/llm/providers/anthropic"
	bedrockProvider "github.com/researchcli/research/internal/llm/providers/bedrock"
	geminiProvider "github.com/researchcli/research/internal/llm/providers/gemini"
	openaiProvider "github.com/researchcli/research/internal/llm/providers/openai"
)

// Provider is the uniform capability surface over one backend family.
// Adapters own the complete wire translation for their family and must
// not leak SDK types past their package boundary.
type Provider interface {
	ID() string
	Chat(ctx context.Context, req contract.ChatRequest) (*contract.ChatResponse, error)
	// StreamChat returns a finite, non-restartable chunk sequence.
	StreamChat(ctx context.Context, req contract.ChatRequest) (contract.Stream, error)
	// CountTokens fails with the unsupported-operation category when the
	// provider has no native counting; callers fall back to EstimateTokens.
	CountTokens(ctx context.Context, req contract.ChatRequest) (int, error)
}

// Registry maps provider identities to initialized adapters. One registry
// (and therefore one adapter instance per family) serves one session.
type Registry struct {
	providers map[ProviderID]Provider
}

// NewRegistry constructs adapters for every provider with usable
// credentials. Credential errors surface here, before any network call.
func NewRegistry(ctx context.Context, cfg config.ProvidersConfig) (*Registry, error) {
	r := &Registry{providers: make(map[ProviderID]Provider)}

	if cfg.Gemini.APIKey != "" {
		p, err := geminiProvider.New(ctx, providerSettings(cfg.Gemini))
		if err != nil {
			return nil, apperrors.Wrap(err, "initialize gemini provider")
		}
		r.providers[ProviderGemini] = p
	}

	if cfg.OpenAI.APIKey != "" {
		r.providers[ProviderOpenAI] = openaiProvider.New(providerSettings(cfg.OpenAI))
	}

	if cfg.Anthropic.APIKey != "" {
		r.providers[ProviderAnthropic] = anthropicProvider.New(providerSettings(cfg.Anthropic))
	}

	if cfg.Bedrock.Region != "" {
		p, err := bedrockProvider.New(ctx, cfg.Bedrock.Region)
		if err != nil {
			return nil, apperrors.Wrap(err, "initialize bedrock provider")
		}
		r.providers[ProviderBedrock] = p
	}

	if len(r.providers) == 0 {
		return nil, apperrors.Configuration("no provider credentials configured")
	}

	for id := range r.providers {
		slog.Debug("Provider initialized", "provider", id)
	}

	return r, nil
}

// NewRegistryWithProviders builds a registry from pre-constructed
// adapters. Used by tests and by callers that compose their own stack.
func NewRegistryWithProviders(providers map[ProviderID]Provider) *Registry {
	m := make(map[ProviderID]Provider, len(providers))
	for id, p := range providers {
		m[id] = p
	}
	return &Registry{providers: m}
}

// Resolve classifies the model identifier and returns the matching
// adapter. A classified but unconfigured provider is a configuration
// error: the model cannot be served by this session.
func (r *Registry) Resolve(modelID string) (Provider, error) {
	id := Classify(modelID)
	p, ok := r.providers[id]
	if !ok {
		return nil, apperrors.Configuration(fmt.Sprintf("model %s requires provider %s, which has no credentials", modelID, id))
	}
	return p, nil
}

// Providers lists the configured provider identities.
func (r *Registry) Providers() []ProviderID {
	ids := make([]ProviderID, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	return ids
}

func providerSettings(pc config.ProviderConfig) contract.ProviderSettings {
	timeout, err := config.DurationOrDefault(pc.Timeout, config.DefaultProviderTimeout)
	if err != nil {
		timeout, _ = config.DurationOrDefault("", config.DefaultProviderTimeout)
	}
	retries := pc.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return contract.ProviderSettings{
		APIKey:     pc.APIKey,
		BaseURL:    pc.BaseURL,
		Timeout:    timeout,
		MaxRetries: retries,
	}
}
