package harness

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/docchat/docchat/config"
	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	adapters "github.com/ZanzyTHEbar/docchat/docchat/harness/adapters"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
)

// StubProvider implements Provider for testing.
type StubProvider struct {
	mu             sync.Mutex
	calls          int
	lastRequest    ports.CompletionRequest
	completionFunc func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error)
}

func (p *StubProvider) Name() string { return "test-stub" }

func (p *StubProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.lastRequest = req
	p.mu.Unlock()

	if p.completionFunc != nil {
		return p.completionFunc(ctx, req)
	}
	return ports.Completion{
		Text: "stub completion",
		Usage: &ports.Usage{
			InputTokens:  10,
			OutputTokens: 5,
			TotalTokens:  15,
		},
	}, nil
}

func (p *StubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// recordingTracer implements Tracer and remembers span outcomes.
type recordingTracer struct {
	mu     sync.Mutex
	spans  []string
	errs   []error
	events []string
}

func (t *recordingTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	t.mu.Lock()
	t.spans = append(t.spans, name)
	t.mu.Unlock()
	return ctx, func(err error) {
		t.mu.Lock()
		t.errs = append(t.errs, err)
		t.mu.Unlock()
	}
}

func (t *recordingTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	t.mu.Lock()
	t.events = append(t.events, name)
	t.mu.Unlock()
}

var (
	_ ports.Provider = (*StubProvider)(nil)
	_ ports.Tracer   = (*recordingTracer)(nil)
)

func bootstrapped(t *testing.T, user string) *conversation.Buffer {
	t.Helper()
	buf := conversation.NewBuffer()
	require.True(t, buf.AppendInstruction("Ana"))
	_, err := buf.AppendUser(user)
	require.NoError(t, err)
	return buf
}

// TestPromptBuilder_Build tests role mapping and ordering.
func TestPromptBuilder_Build(t *testing.T) {
	buf := conversation.NewBuffer()
	buf.AppendInstruction("Ana")
	_, err := buf.AppendDocumentContext("[Document: a.csv]\r\nx,y")
	require.NoError(t, err)
	_, err = buf.AppendUser("  summarize  ")
	require.NoError(t, err)
	_, err = buf.AppendAssistant("done")
	require.NoError(t, err)

	messages := NewPromptBuilder().Build(buf.Snapshot())

	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "Ana")
	assert.Equal(t, "user", messages[1].Role)
	assert.Equal(t, documentPreamble+"[Document: a.csv]\nx,y", messages[1].Content)
	assert.Equal(t, ports.Message{Role: "user", Content: "summarize"}, messages[2])
	assert.Equal(t, ports.Message{Role: "assistant", Content: "done"}, messages[3])
}

func TestPromptBuilder_Deterministic(t *testing.T) {
	buf := bootstrapped(t, "hi")
	builder := NewPromptBuilder()
	assert.Equal(t, builder.Build(buf.Snapshot()), builder.Build(buf.Snapshot()))
}

// TestGuardrails_Redact tests secret masking in diagnostics.
func TestGuardrails_Redact(t *testing.T) {
	guardrails := NewGuardrails("sk-live-123456789")
	guardrails.AddSecret("abc") // too short to mask safely

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"literal secret", "invalid key sk-live-123456789", "invalid key [REDACTED]"},
		{"bearer header", "sent Authorization: Bearer tok.en-1", "sent Authorization: [REDACTED]"},
		{"api key pair", "api_key=xyz12345678 rejected", "[REDACTED] rejected"},
		{"api key pair with spaces", "apiKey: abcdefgh.ijk", "[REDACTED]"},
		{"provider error code kept", "InvalidApiKey: Invalid API-key provided.", "InvalidApiKey: Invalid API-key provided."},
		{"short value kept", "api_key=xyz rejected", "api_key=xyz rejected"},
		{"short secret untouched", "abc", "abc"},
		{"plain text", "request timed out", "request timed out"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, guardrails.Redact(tt.in))
		})
	}
}

// TestLRUCache_BasicOperations tests cache functionality.
func TestLRUCache_BasicOperations(t *testing.T) {
	cache := adapters.NewLRUCache(2)

	ctx := context.Background()

	err := cache.Set(ctx, "key1", []byte("value1"), 3600)
	assert.NoError(t, err)

	value, ok := cache.Get(ctx, "key1")
	assert.True(t, ok)
	assert.Equal(t, []byte("value1"), value)

	// key1 was just read, so key2 is least recently used
	require.NoError(t, cache.Set(ctx, "key2", []byte("value2"), 3600))
	_, _ = cache.Get(ctx, "key1")
	require.NoError(t, cache.Set(ctx, "key3", []byte("value3"), 3600))

	_, ok = cache.Get(ctx, "key2")
	assert.False(t, ok)
	_, ok = cache.Get(ctx, "key1")
	assert.True(t, ok)
	_, ok = cache.Get(ctx, "key3")
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Delete(ctx, "key1"))
	_, ok = cache.Get(ctx, "key1")
	assert.False(t, ok)
}

func TestLRUCache_ReturnsCopies(t *testing.T) {
	cache := adapters.NewLRUCache(4)
	ctx := context.Background()

	in := []byte("text")
	require.NoError(t, cache.Set(ctx, "k", in, 60))
	in[0] = 'X'

	out, ok := cache.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "text", string(out))
	out[0] = 'Y'

	again, _ := cache.Get(ctx, "k")
	assert.Equal(t, "text", string(again))
}

func TestLRUCache_ConcurrentAccess(t *testing.T) {
	cache := adapters.NewLRUCache(8)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := string(rune('a' + i%10))
			_ = cache.Set(ctx, key, []byte(key), 60)
			_, _ = cache.Get(ctx, key)
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 8)
}

// TestGateway_Success tests a single successful completion.
func TestGateway_Success(t *testing.T) {
	provider := &StubProvider{}
	tracer := &recordingTracer{}
	gw := NewGateway(provider, nil, tracer, nil, GatewayConfig{Model: "qwen-plus", Timeout: time.Second})

	reply, err := gw.Complete(context.Background(), bootstrapped(t, "hello").Snapshot())
	require.NoError(t, err)
	assert.Equal(t, "stub completion", reply)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, "qwen-plus", provider.lastRequest.Model)
	assert.Equal(t, ports.ResultFormatMessage, provider.lastRequest.ResultFormat)
	require.Len(t, provider.lastRequest.Messages, 2)
	assert.Equal(t, "hello", provider.lastRequest.Messages[1].Content)

	assert.Equal(t, []string{"completion"}, tracer.spans)
	assert.Equal(t, []error{nil}, tracer.errs)
	assert.Equal(t, []string{"usage"}, tracer.events)
}

// TestGateway_TimeoutIsTransportFailure tests that a provider that never answers
// is cut off by the configured deadline.
func TestGateway_TimeoutIsTransportFailure(t *testing.T) {
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
			<-ctx.Done()
			return ports.Completion{}, ctx.Err()
		},
	}
	gw := NewGateway(provider, nil, nil, nil, GatewayConfig{Model: "m", Timeout: 20 * time.Millisecond})

	start := time.Now()
	reply, err := gw.Complete(context.Background(), bootstrapped(t, "hello").Snapshot())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Empty(t, reply)

	var failure *Failure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, ports.FailureTransport, failure.Kind)
	assert.Equal(t, "request timed out", failure.Message)
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, provider.Calls(), "no retries")
}

func TestGateway_FailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		message  string
	}{
		{
			name:     "provider error keeps code",
			err:      &ports.ProviderFailure{Kind: ports.FailureProvider, StatusCode: 401, Code: "InvalidApiKey", Message: "Invalid API-key provided."},
			sentinel: ErrProviderError,
			message:  "InvalidApiKey: Invalid API-key provided.",
		},
		{
			name:     "malformed response",
			err:      &ports.ProviderFailure{Kind: ports.FailureMalformedResponse, Message: "response is not JSON"},
			sentinel: ErrMalformedResponse,
			message:  "response is not JSON",
		},
		{
			name:     "untyped error is transport",
			err:      errors.New("connection refused"),
			sentinel: ErrTransportFailure,
			message:  "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &StubProvider{
				completionFunc: func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
					return ports.Completion{}, tt.err
				},
			}
			tracer := &recordingTracer{}
			gw := NewGateway(provider, nil, tracer, nil, GatewayConfig{Model: "m"})

			_, err := gw.Complete(context.Background(), bootstrapped(t, "hi").Snapshot())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)

			var failure *Failure
			require.ErrorAs(t, err, &failure)
			assert.Equal(t, tt.message, failure.Message)
			require.Len(t, tracer.errs, 1)
			assert.Error(t, tracer.errs[0])
		})
	}
}

func TestGateway_ProviderPanicIsRecovered(t *testing.T) {
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
			panic("nil map")
		},
	}
	gw := NewGateway(provider, nil, nil, nil, GatewayConfig{Model: "m"})

	_, err := gw.Complete(context.Background(), bootstrapped(t, "hi").Snapshot())
	assert.ErrorIs(t, err, ErrTransportFailure)
	assert.Contains(t, err.Error(), "nil map")
}

func TestGateway_RedactsCredential(t *testing.T) {
	const key = "sk-secretvalue42"
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
			return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureProvider, Message: "key " + key + " is disabled"}
		},
	}
	gw := NewGateway(provider, nil, nil, NewGuardrails(key), GatewayConfig{Model: "m"})

	_, err := gw.Complete(context.Background(), bootstrapped(t, "hi").Snapshot())
	require.Error(t, err)
	assert.NotContains(t, err.Error(), key)
	assert.Contains(t, err.Error(), "[REDACTED]")
}

func TestGateway_ProviderCodeSurvivesRedaction(t *testing.T) {
	provider := &StubProvider{
		completionFunc: func(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
			return ports.Completion{}, &ports.ProviderFailure{
				Kind:       ports.FailureProvider,
				StatusCode: 401,
				Code:       "InvalidApiKey",
				Message:    "Invalid API-key provided.",
			}
		},
	}
	gw := NewGateway(provider, nil, nil, NewGuardrails("sk-secretvalue42"), GatewayConfig{Model: "m"})

	_, err := gw.Complete(context.Background(), bootstrapped(t, "hi").Snapshot())
	require.Error(t, err)
	assert.Equal(t, "provider_error: InvalidApiKey: Invalid API-key provided.", err.Error())
	assert.NotContains(t, err.Error(), "[REDACTED]")
}

// TestFactory_CreateGateway tests wiring from config.
func TestFactory_CreateGateway(t *testing.T) {
	cfg := &config.Config{
		App: config.AppConfig{EnableTracing: true},
		LLM: config.LLMConfig{Provider: "stub", Model: "qwen-plus", Timeout: time.Second},
	}
	factory := NewFactory(cfg, zerolog.New(zerolog.Nop()))

	gw, err := factory.CreateGateway()
	require.NoError(t, err)
	assert.Equal(t, "qwen-plus", gw.Model())

	reply, err := gw.Complete(context.Background(), bootstrapped(t, "ping").Snapshot())
	require.NoError(t, err)
	assert.True(t, strings.Contains(reply, "ping"))
}

func TestFactory_CreateProvider(t *testing.T) {
	logger := zerolog.New(zerolog.Nop())

	_, err := NewFactory(&config.Config{LLM: config.LLMConfig{Provider: "dashscope"}}, logger).CreateProvider()
	assert.ErrorIs(t, err, config.ErrMissingCredential)

	p, err := NewFactory(&config.Config{LLM: config.LLMConfig{Provider: "dashscope", APIKey: "sk-x"}}, logger).CreateProvider()
	require.NoError(t, err)
	assert.Equal(t, "dashscope", p.Name())

	_, err = NewFactory(&config.Config{LLM: config.LLMConfig{Provider: "llama"}}, logger).CreateProvider()
	assert.Error(t, err)
}

func TestFactory_CreateCache(t *testing.T) {
	logger := zerolog.New(zerolog.Nop())
	ctx := context.Background()

	disabled := NewFactory(&config.Config{}, logger).CreateCache()
	require.NoError(t, disabled.Set(ctx, "k", []byte("v"), 60))
	_, ok := disabled.Get(ctx, "k")
	assert.False(t, ok)

	enabled := NewFactory(&config.Config{Ingest: config.IngestConfig{CacheEnabled: true, CacheCapacity: 4}}, logger).CreateCache()
	require.NoError(t, enabled.Set(ctx, "k", []byte("v"), 60))
	v, ok := enabled.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), v)
}
