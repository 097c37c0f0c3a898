package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
	"github.com/xeipuuv/gojsonschema"
)

const (
	// DefaultDashScopeBaseURL is the international DashScope endpoint.
	DefaultDashScopeBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	dashScopeGenerationPath = "/services/aigc/text-generation/generation"
	maxResponseBytes        = 8 << 20
)

// replySchema is the minimum response shape we accept: output.choices[0].message.content.
const replySchema = `{
  "type": "object",
  "required": ["output"],
  "properties": {
    "output": {
      "type": "object",
      "required": ["choices"],
      "properties": {
        "choices": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["message"],
            "properties": {
              "message": {
                "type": "object",
                "required": ["content"],
                "properties": {"content": {"type": "string"}}
              }
            }
          }
        }
      }
    }
  }
}`

var compiledReplySchema = mustCompileSchema(replySchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile reply schema: %v", err))
	}
	return schema
}

// DashScopeProvider calls the DashScope text-generation endpoint.
type DashScopeProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// DashScopeOption configures a DashScopeProvider.
type DashScopeOption func(*DashScopeProvider)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) DashScopeOption {
	return func(p *DashScopeProvider) { p.client = c }
}

// NewDashScopeProvider creates a provider. apiKey must be non-empty.
func NewDashScopeProvider(baseURL, apiKey string, opts ...DashScopeOption) (*DashScopeProvider, error) {
	if apiKey == "" {
		return nil, errors.New("dashscope: api key is empty")
	}
	if baseURL == "" {
		baseURL = DefaultDashScopeBaseURL
	}
	p := &DashScopeProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// the gateway applies the real deadline through the context
		client: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

func (p *DashScopeProvider) Name() string { return "dashscope" }

type dashScopeRequest struct {
	Model string `json:"model"`
	Input struct {
		Messages []ports.Message `json:"messages"`
	} `json:"input"`
	Parameters struct {
		ResultFormat string `json:"result_format"`
	} `json:"parameters"`
}

type dashScopeResponse struct {
	Output struct {
		Choices []struct {
			FinishReason string `json:"finish_reason"`
			Message      struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage     *ports.Usage `json:"usage"`
	RequestID string       `json:"request_id"`
	Code      string       `json:"code"`
	Message   string       `json:"message"`
}

// Complete issues exactly one request. It never retries.
func (p *DashScopeProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	var body dashScopeRequest
	body.Model = req.Model
	body.Input.Messages = req.Messages
	body.Parameters.ResultFormat = req.ResultFormat
	if body.Parameters.ResultFormat == "" {
		body.Parameters.ResultFormat = ports.ResultFormatMessage
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureTransport, Message: "encode request", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+dashScopeGenerationPath, bytes.NewReader(payload))
	if err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureTransport, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureTransport, Message: transportMessage(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureTransport, StatusCode: resp.StatusCode, Message: transportMessage(ctx, err), Err: err}
	}

	isJSON := json.Valid(raw)
	var out dashScopeResponse
	// a type mismatch still fills the fields that did decode
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode >= http.StatusBadRequest || (isJSON && out.Code != "" && len(out.Output.Choices) == 0) {
		msg := out.Message
		if !isJSON || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return ports.Completion{}, &ports.ProviderFailure{
			Kind:       ports.FailureProvider,
			StatusCode: resp.StatusCode,
			Code:       out.Code,
			Message:    msg,
		}
	}
	if !isJSON {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureMalformedResponse, StatusCode: resp.StatusCode, Message: "response is not JSON", Err: decodeErr}
	}

	result, err := compiledReplySchema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureMalformedResponse, StatusCode: resp.StatusCode, Message: "validate response", Err: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return ports.Completion{}, &ports.ProviderFailure{
			Kind:       ports.FailureMalformedResponse,
			StatusCode: resp.StatusCode,
			Message:    "unexpected response shape: " + strings.Join(problems, "; "),
		}
	}

	if decodeErr != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureMalformedResponse, StatusCode: resp.StatusCode, Message: "decode response", Err: decodeErr}
	}

	return ports.Completion{
		Text:      out.Output.Choices[0].Message.Content,
		RequestID: out.RequestID,
		Usage:     out.Usage,
	}, nil
}

func transportMessage(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return "request canceled"
	}
	return err.Error()
}

// Ensure DashScopeProvider implements the Provider interface.
var _ ports.Provider = (*DashScopeProvider)(nil)
