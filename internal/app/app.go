// Package app wires configuration into the running services: model
// providers, search, the document store, the pipeline and survey intake.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/prdforge/internal/config"
	"github.com/ternarybob/prdforge/internal/intake"
	"github.com/ternarybob/prdforge/internal/pipeline"
	"github.com/ternarybob/prdforge/internal/search"
	"github.com/ternarybob/prdforge/internal/store"
	"github.com/ternarybob/prdforge/pkg/llm"
)

// App owns the long-lived components of a prdforge process.
type App struct {
	Config       *config.Config
	Providers    *llm.Registry
	Search       *search.Client
	Documents    *store.Repository
	Orchestrator *pipeline.Orchestrator
	Intake       *intake.Intake

	logger   arbor.ILogger
	shutdown sync.Once
}

// New builds every component from cfg. Providers without credentials are
// skipped; the pipeline reports them as unconfigured when a strategy
// names them.
func New(ctx context.Context, cfg *config.Config, logger arbor.ILogger) (*App, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	registry := Providers(ctx, cfg.Providers, logger)

	searchClient := search.NewClient(search.Options{
		APIKey:            cfg.Search.APIKey,
		BaseURL:           cfg.Search.BaseURL,
		Timeout:           time.Duration(cfg.Search.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.Search.RequestsPerSecond,
		Burst:             cfg.Search.Burst,
	}, logger)
	if !searchClient.Enabled() {
		logger.Warn().Msg("TAVILY_API_KEY not set - analysis runs without live search")
	}

	backend, err := store.Open(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	docs := store.NewRepository(backend)

	prompts, err := pipeline.DefaultPrompts()
	if err != nil {
		docs.Close()
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	opts := pipeline.OptionsFromConfig(cfg.Pipeline)
	opts.Registry = registry
	opts.Augmenter = search.NewAugmenter(searchClient, nil)
	opts.Prompts = prompts
	opts.Logger = logger
	orch := pipeline.New(opts)

	timeout := time.Duration(cfg.Pipeline.BackgroundTimeoutSeconds) * time.Second
	in := intake.New(cfg.SubmissionsDir(), orch, docs, timeout, logger)

	logger.Info().
		Strs("providers", registry.Names()).
		Str("storage", cfg.Storage.Backend).
		Msg("Application initialized")

	return &App{
		Config:       cfg,
		Providers:    registry,
		Search:       searchClient,
		Documents:    docs,
		Orchestrator: orch,
		Intake:       in,
		logger:       logger,
	}, nil
}

// Providers registers a client for every backend that has credentials.
// Ollama needs no key and is registered only when enabled.
func Providers(ctx context.Context, cfg config.ProvidersConfig, logger arbor.ILogger) *llm.Registry {
	registry := llm.NewRegistry()

	if cfg.OpenAI.APIKey != "" {
		registry.Register(llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL))
	} else {
		logger.Debug().Str("provider", "openai").Msg("No API key - provider skipped")
	}

	if cfg.Anthropic.APIKey != "" {
		registry.Register(llm.NewAnthropicProvider(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL))
	} else {
		logger.Debug().Str("provider", "anthropic").Msg("No API key - provider skipped")
	}

	if cfg.Gemini.APIKey != "" {
		gemini, err := llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Gemini.Thinking)
		if err != nil {
			logger.Warn().Err(err).Str("provider", "gemini").Msg("Provider unavailable")
		} else {
			registry.Register(gemini)
		}
	} else {
		logger.Debug().Str("provider", "gemini").Msg("No API key - provider skipped")
	}

	if cfg.Ollama.Enabled {
		registry.Register(llm.NewOllamaProvider(cfg.Ollama.BaseURL))
	}

	if len(registry.Names()) == 0 {
		logger.Warn().Msg("No LLM providers configured - generation requests will fail")
	}
	return registry
}

// Shutdown waits for background generations, then closes the store. It is
// safe to call more than once.
func (a *App) Shutdown() {
	a.shutdown.Do(func() {
		a.Intake.Wait()
		if err := a.Documents.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close document store")
		}
		a.logger.Info().Msg("Application stopped")
	})
}
