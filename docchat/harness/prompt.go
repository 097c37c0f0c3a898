package harness

import (
	"strings"

	"github.com/ZanzyTHEbar/docchat/docchat/conversation"
	ports "github.com/ZanzyTHEbar/docchat/docchat/harness/ports"
)

// documentPreamble introduces injected document text; the provider has no document role.
const documentPreamble = "Reference document shared by the user:\n"

// PromptBuilder maps conversation turns onto provider messages.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder { return &PromptBuilder{} }

// Build keeps every turn, in order. Newlines are normalized so identical histories
// serialize identically.
func (b *PromptBuilder) Build(turns []conversation.Turn) []ports.Message {
	norm := func(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "\r\n", "\n")) }

	out := make([]ports.Message, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleInstruction:
			out = append(out, ports.Message{Role: "system", Content: norm(t.Content)})
		case conversation.RoleUser:
			out = append(out, ports.Message{Role: "user", Content: norm(t.Content)})
		case conversation.RoleAssistant:
			out = append(out, ports.Message{Role: "assistant", Content: norm(t.Content)})
		case conversation.RoleDocumentContext:
			out = append(out, ports.Message{Role: "user", Content: documentPreamble + norm(t.Content)})
		}
	}
	return out
}
