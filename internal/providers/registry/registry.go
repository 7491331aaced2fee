package registry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"nerdbot/internal/providers"
	"nerdbot/internal/providers/gemini"
	"nerdbot/internal/providers/openai"
)

const (
	openaiMaxTokens = 4096
	geminiMaxTokens = 8192
	temperature     = 0.7
)

type Config struct {
	Identity    providers.Identity
	OpenAIKey   string
	OpenAIBase  string
	GeminiKey   string
	GeminiBase  string
	HTTPClient  *http.Client
	MaxRetries  int
	BackoffBase time.Duration
}

// Registry resolves provider names, tracks per-provider availability and
// caches one backend handle per (provider, model) for the process
// lifetime. Handles hold no per-user state.
type Registry struct {
	cfg      Config
	preamble string
	handles  sync.Map // "provider/model" -> providers.Provider

	openaiReady func() bool
	geminiReady func() bool
}

func New(cfg Config) *Registry {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	r := &Registry{
		cfg:      cfg,
		preamble: cfg.Identity.Preamble(),
	}
	// Credential presence is resolved on first use, not at startup, and
	// the outcome is cached for the rest of the process.
	r.openaiReady = sync.OnceValue(func() bool { return cfg.OpenAIKey != "" })
	r.geminiReady = sync.OnceValue(func() bool { return cfg.GeminiKey != "" })
	return r
}

// Generate runs one prompt against the named provider and model and
// returns a uniform Reply. It never panics and never returns a raw
// backend error; every outcome is classified.
func (r *Registry) Generate(ctx context.Context, providerName, model, prompt string, history []providers.Turn) providers.Reply {
	name, ok := providers.ParseName(providerName)
	if !ok {
		return providers.Reply{Err: providers.Errorf(providers.KindUnknownProvider, "Unknown provider: %s", providerName)}
	}

	if !r.available(name) {
		return providers.Reply{
			Provider: name,
			Model:    model,
			Err:      providers.Errorf(providers.KindNotConfigured, "%s API key not configured", display(name)),
		}
	}

	handle := r.handle(name, model)
	maxTokens := openaiMaxTokens
	if name == providers.NameGemini {
		maxTokens = geminiMaxTokens
	}

	res, perr := handle.Generate(ctx, providers.Request{
		Preamble:    r.preamble,
		Prompt:      prompt,
		History:     history,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if perr != nil {
		return providers.Reply{Provider: name, Model: model, Err: perr}
	}
	return providers.Reply{
		Text:     res.Text,
		Provider: name,
		Model:    model,
		Tokens:   res.Tokens,
	}
}

func (r *Registry) available(name providers.Name) bool {
	switch name {
	case providers.NameOpenAI:
		return r.openaiReady()
	case providers.NameGemini:
		return r.geminiReady()
	default:
		return false
	}
}

// handle returns the cached backend handle for the pair, constructing it
// on first use. Construction races store exactly one handle; handles are
// stateless wrappers so the loser is discarded without harm.
func (r *Registry) handle(name providers.Name, model string) providers.Provider {
	key := string(name) + "/" + model
	if v, ok := r.handles.Load(key); ok {
		return v.(providers.Provider)
	}

	var built providers.Provider
	switch name {
	case providers.NameOpenAI:
		built = openai.New(openai.Config{
			BaseURL:     r.cfg.OpenAIBase,
			APIKey:      r.cfg.OpenAIKey,
			Model:       model,
			HTTPClient:  r.cfg.HTTPClient,
			MaxRetries:  r.cfg.MaxRetries,
			BackoffBase: r.cfg.BackoffBase,
		})
	default:
		built = gemini.New(gemini.Config{
			BaseURL:     r.cfg.GeminiBase,
			APIKey:      r.cfg.GeminiKey,
			Model:       model,
			HTTPClient:  r.cfg.HTTPClient,
			MaxRetries:  r.cfg.MaxRetries,
			BackoffBase: r.cfg.BackoffBase,
		})
	}

	actual, _ := r.handles.LoadOrStore(key, built)
	return actual.(providers.Provider)
}

// HandleCount reports how many (provider, model) handles exist.
func (r *Registry) HandleCount() int {
	n := 0
	r.handles.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func display(name providers.Name) string {
	if name == providers.NameOpenAI {
		return "OpenAI"
	}
	return "Gemini"
}
