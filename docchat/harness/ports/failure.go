package harnessports

import "fmt"

// FailureKind classifies a failed completion call.
type FailureKind string

const (
	FailureTransport         FailureKind = "transport_failure"
	FailureMalformedResponse FailureKind = "malformed_response"
	FailureProvider          FailureKind = "provider_error"
)

// ProviderFailure is returned by providers for every failed call.
type ProviderFailure struct {
	Kind       FailureKind
	StatusCode int    // HTTP status when known
	Code       string // provider error code when reported
	Message    string
	Err        error
}

func (f *ProviderFailure) Error() string {
	msg := f.Message
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.Code != "" {
		return fmt.Sprintf("%s: %s: %s", f.Kind, f.Code, msg)
	}
	return fmt.Sprintf("%s: %s", f.Kind, msg)
}

func (f *ProviderFailure) Unwrap() error {
	return f.Err
}
