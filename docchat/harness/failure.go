package harness

import (
	"context"
	"errors"

	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
)

// Failure is the only error the Gateway returns. Message is safe to show to a person.
type Failure struct {
	Kind    ports.FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return string(f.Kind) + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches the sentinels below by kind.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Message == "" && t.Err == nil && t.Kind == f.Kind
}

var (
	ErrTransportFailure  = &Failure{Kind: ports.FailureTransport}
	ErrMalformedResponse = &Failure{Kind: ports.FailureMalformedResponse}
	ErrProviderError     = &Failure{Kind: ports.FailureProvider}
)

// classify turns any provider error into a Failure.
func classify(err error) *Failure {
	var pf *ports.ProviderFailure
	if errors.As(err, &pf) {
		msg := pf.Message
		if msg == "" && pf.Err != nil {
			msg = pf.Err.Error()
		}
		if pf.Code != "" {
			msg = pf.Code + ": " + msg
		}
		return &Failure{Kind: pf.Kind, Message: msg, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Failure{Kind: ports.FailureTransport, Message: "request timed out", Err: err}
	}
	return &Failure{Kind: ports.FailureTransport, Message: err.Error(), Err: err}
}
