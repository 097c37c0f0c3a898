package adapters

import (
	"context"
	"fmt"

	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
)

// StubProvider answers without any network call, for offline development.
type StubProvider struct{}

func (StubProvider) Name() string { return "stub" }

// Complete echoes the last user message.
func (StubProvider) Complete(ctx context.Context, req ports.CompletionRequest) (ports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return ports.Completion{}, &ports.ProviderFailure{Kind: ports.FailureTransport, Message: err.Error(), Err: err}
	}
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			last = req.Messages[i].Content
			break
		}
	}
	return ports.Completion{
		Text: fmt.Sprintf("(stub %s) you said: %q, with %d messages of context", req.Model, last, len(req.Messages)),
	}, nil
}

var _ ports.Provider = StubProvider{}
