package ai

import "fmt"

// Message — one chat turn sent to the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider generates a reply from a message list. The memory and roasting
// core only ever sees this interface.
type Provider interface {
	Generate(messages []Message) (string, error)
}

// NewProvider builds the configured provider.
func NewProvider(name string) (Provider, error) {
	switch name {
	case "pollinations", "":
		return NewPollinationsProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s", name)
	}
}
