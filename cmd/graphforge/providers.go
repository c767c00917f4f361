package main

import (
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/flowtwo/graphforge/internal/config"
	"github.com/flowtwo/graphforge/pkg/provider/embeddings"
	embeddingsollama "github.com/flowtwo/graphforge/pkg/provider/embeddings/ollama"
	embeddingsopenai "github.com/flowtwo/graphforge/pkg/provider/embeddings/openai"
	"github.com/flowtwo/graphforge/pkg/provider/llm"
	"github.com/flowtwo/graphforge/pkg/provider/llm/anyllm"
)

// registerBuiltinProviders wires every provider name [config.ValidProviderNames]
// knows about to a real constructor. LLM providers all go through anyllm,
// which speaks the any-llm-go wire protocol for each of these backends;
// embeddings providers have their own small clients since any-llm-go does
// not cover embeddings.
func registerBuiltinProviders(reg *config.Registry) {
	for _, name := range []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"} {
		providerName := name
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			opts := anyllmOptions(entry)
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []embeddingsopenai.Option
		if entry.BaseURL != "" {
			opts = append(opts, embeddingsopenai.WithBaseURL(entry.BaseURL))
		}
		return embeddingsopenai.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return embeddingsollama.New(baseURL, entry.Model)
	})
}

// anyllmOptions translates a ProviderEntry's generic API-key/base-URL fields
// into any-llm-go's functional options. A blank APIKey is left unset so the
// backend falls back to its provider-specific environment variable.
func anyllmOptions(entry config.ProviderEntry) []anyllmlib.Option {
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return opts
}
