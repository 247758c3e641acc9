package internal

import "github.com/tidwall/gjson"

// Component sources, set by the adapters and consumed by the classification
// post-pass.
const (
	SourceSystemInstruction   = "system_instruction"
	SourceConversationHistory = "conversation_history"
	SourceUserInput           = "user_input"
	SourceToolDefinition      = "tool_definition"
	SourceMessages            = "messages"
	SourceToolUse             = "tool_use"
)

// RawComponent is a prompt piece as emitted by a protocol adapter, before the
// shared classification pass assigns its canonical component type.
type RawComponent struct {
	Source      string
	Role        string
	Content     string
	ContentJSON interface{}
}

// ProtocolAdapter decomposes one wire-format family. ExtractComponents
// returns prompt pieces in emission order; ExtractSpans returns response
// spans (before final ordering) plus the response's finish reason.
type ProtocolAdapter interface {
	ExtractComponents(body gjson.Result) []RawComponent
	ExtractSpans(body gjson.Result) ([]ResponseSpan, string)
}

var (
	geminiAdapter    = &GeminiAdapter{}
	anthropicAdapter = &AnthropicAdapter{}
	openAIAdapter    = &OpenAIAdapter{}
)

// AdapterFor selects the protocol adapter for a detected (provider,
// protocol) pair. Provider wins over protocol, and the OpenAI-compatible
// adapter is the default: most custom endpoints in the wild speak its
// messages format.
func AdapterFor(provider, protocol string) ProtocolAdapter {
	switch provider {
	case ProviderGemini, ProviderVertex:
		return geminiAdapter
	case ProviderAnthropic:
		return anthropicAdapter
	}
	switch protocol {
	case ProtocolGemini:
		return geminiAdapter
	case ProtocolAnthropic:
		return anthropicAdapter
	}
	return openAIAdapter
}
