package harness

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/docchat/docchat/config"
	"github.com/ZanzyTHEbar/docchat/docchat/harness/adapters"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
	"github.com/rs/zerolog"
)

// Factory creates and wires harness components from configuration.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// NewFactory creates a new harness factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, logger: logger}
}

// CreateGateway creates a fully wired Gateway from config.
func (f *Factory) CreateGateway() (*Gateway, error) {
	provider, err := f.CreateProvider()
	if err != nil {
		return nil, err
	}

	gw := NewGateway(
		provider,
		NewPromptBuilder(),
		f.CreateTracer(),
		f.CreateGuardrails(),
		GatewayConfig{Model: f.cfg.LLM.Model, Timeout: f.cfg.LLM.Timeout},
	)

	f.logger.Info().
		Str("provider", provider.Name()).
		Str("model", f.cfg.LLM.Model).
		Dur("timeout", f.cfg.LLM.Timeout).
		Msg("completion gateway ready")
	return gw, nil
}

// CreateProvider creates the completion provider named by llm.provider.
func (f *Factory) CreateProvider() (ports.Provider, error) {
	switch f.cfg.LLM.Provider {
	case "dashscope":
		if f.cfg.LLM.APIKey == "" {
			return nil, config.ErrMissingCredential
		}
		return adapters.NewDashScopeProvider(f.cfg.LLM.BaseURL, f.cfg.LLM.APIKey)
	case "stub":
		f.logger.Warn().Msg("using stub completion provider; replies are not generated by a model")
		return adapters.StubProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", f.cfg.LLM.Provider)
	}
}

// CreateCache creates the extraction cache from config.
func (f *Factory) CreateCache() ports.Cache {
	if !f.cfg.Ingest.CacheEnabled || f.cfg.Ingest.CacheCapacity <= 0 {
		return &noOpCache{}
	}

	return adapters.NewLRUCache(f.cfg.Ingest.CacheCapacity)
}

// CreateTracer creates a tracer adapter from config.
func (f *Factory) CreateTracer() ports.Tracer {
	if !f.cfg.App.EnableTracing {
		return &noOpTracer{}
	}

	return adapters.NewZerologTracer(f.logger)
}

// CreateGuardrails creates guardrails that keep the credential out of conversation history.
func (f *Factory) CreateGuardrails() *Guardrails {
	return NewGuardrails(f.cfg.LLM.APIKey)
}

// noOpCache implements Cache interface with no-op behavior for testing/disabled cache.
type noOpCache struct{}

func (c *noOpCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (c *noOpCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	return nil
}
func (c *noOpCache) Delete(ctx context.Context, key string) error { return nil }

// noOpTracer implements Tracer interface with no-op behavior.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

// Ensure all no-op types implement their interfaces.
var (
	_ ports.Cache  = (*noOpCache)(nil)
	_ ports.Tracer = (*noOpTracer)(nil)
)
