package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 60 * time.Second

// GatewayConfig fixes the model and deadline for every call.
type GatewayConfig struct {
	Model   string
	Timeout time.Duration
}

// Gateway is the stateless adapter between a turn log and a remote completion provider.
// It makes exactly one provider call per Complete and never retries.
type Gateway struct {
	provider ports.Provider
	builder  *PromptBuilder
	tracer   ports.Tracer
	guard    *Guardrails
	cfg      GatewayConfig
}

// NewGateway creates a gateway. tracer and guard may be nil.
func NewGateway(provider ports.Provider, builder *PromptBuilder, tracer ports.Tracer, guard *Guardrails, cfg GatewayConfig) *Gateway {
	if builder == nil {
		builder = NewPromptBuilder()
	}
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	if guard == nil {
		guard = NewGuardrails()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Gateway{provider: provider, builder: builder, tracer: tracer, guard: guard, cfg: cfg}
}

// Model returns the model identifier sent with every request.
func (g *Gateway) Model() string { return g.cfg.Model }

// Complete sends the full turn sequence and returns the reply text. Every error is a *Failure.
func (g *Gateway) Complete(ctx context.Context, turns []conversation.Turn) (reply string, err error) {
	req := ports.CompletionRequest{
		Model:        g.cfg.Model,
		Messages:     g.builder.Build(turns),
		ResultFormat: ports.ResultFormatMessage,
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	ctx, finish := g.tracer.StartSpan(ctx, "completion", map[string]any{
		"provider": g.provider.Name(),
		"model":    g.cfg.Model,
		"messages": len(req.Messages),
	})
	defer func() { finish(err) }()

	completion, err := g.call(ctx, req)
	if err != nil {
		f := classify(err)
		f.Message = g.guard.Redact(f.Message)
		return "", f
	}

	if completion.Usage != nil {
		g.tracer.Event(ctx, "usage", map[string]any{
			"request_id":    completion.RequestID,
			"input_tokens":  completion.Usage.InputTokens,
			"output_tokens": completion.Usage.OutputTokens,
		})
	}
	return completion.Text, nil
}

// call shields the caller from provider panics.
func (g *Gateway) call(ctx context.Context, req ports.CompletionRequest) (c ports.Completion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ports.ProviderFailure{Kind: ports.FailureTransport, Message: fmt.Sprintf("provider panic: %v", r)}
		}
	}()
	return g.provider.Complete(ctx, req)
}
