package harness

import (
	"regexp"
	"strings"
)

// Guardrails masks secrets in diagnostics before they are written into conversation history.
type Guardrails struct {
	secrets       []string
	outputFilters []*regexp.Regexp
}

// NewGuardrails creates guardrails that mask the given literal secrets plus common
// credential patterns.
func NewGuardrails(secrets ...string) *Guardrails {
	g := &Guardrails{
		outputFilters: []*regexp.Regexp{
			regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._\-]+`),
			regexp.MustCompile(`(?i)\bapi[_-]?key\s*[:=]\s*[A-Za-z0-9._\-]{8,}`),
			regexp.MustCompile(`\bsk-[A-Za-z0-9]{8,}\b`),
		},
	}
	for _, s := range secrets {
		g.AddSecret(s)
	}
	return g
}

// AddSecret registers a literal value that must never appear in output.
func (g *Guardrails) AddSecret(secret string) {
	if len(secret) >= 4 {
		g.secrets = append(g.secrets, secret)
	}
}

// Redact replaces secrets and credential-looking substrings with [REDACTED].
func (g *Guardrails) Redact(s string) string {
	for _, secret := range g.secrets {
		s = strings.ReplaceAll(s, secret, "[REDACTED]")
	}
	for _, filter := range g.outputFilters {
		s = filter.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}
