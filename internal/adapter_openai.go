package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// OpenAIAdapter handles the OpenAI-compatible messages wire format. It is
// also the default adapter for custom endpoints.
type OpenAIAdapter struct{}

// ExtractComponents decomposes an OpenAI-compatible request: one component
// per message (including non-text content parts and tool_calls), plus one
// tool definition per functions or tools entry.
func (a *OpenAIAdapter) ExtractComponents(body gjson.Result) []RawComponent {
	var components []RawComponent

	for _, msg := range requestField(body, "messages").Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		component := RawComponent{
			Source: SourceMessages,
			Role:   role,
		}

		switch {
		case content.Type == gjson.String:
			component.Content = content.String()
		case content.IsArray():
			// Multimodal content: join the text parts, keep the full part
			// list as structured payload.
			var texts []string
			for _, part := range content.Array() {
				if part.Get("type").String() == "text" || part.Get("text").Exists() {
					texts = append(texts, part.Get("text").String())
				}
			}
			component.Content = strings.Join(texts, "\n")
			component.ContentJSON = content.Value()
		}

		if calls := msg.Get("tool_calls"); calls.IsArray() {
			component.ContentJSON = calls.Value()
		}

		components = append(components, component)
	}

	for _, fn := range requestField(body, "functions").Array() {
		components = append(components, RawComponent{
			Source:      SourceToolDefinition,
			Role:        "tool",
			ContentJSON: fn.Value(),
		})
	}
	for _, tool := range requestField(body, "tools").Array() {
		components = append(components, RawComponent{
			Source:      SourceToolDefinition,
			Role:        "tool",
			ContentJSON: tool.Value(),
		})
	}

	return components
}

// ExtractSpans decomposes a complete OpenAI-compatible response: the first
// choice's message content split around code fences, message.tool_calls as
// tool calls, and normalized usage.
func (a *OpenAIAdapter) ExtractSpans(body gjson.Result) ([]ResponseSpan, string) {
	choice := body.Get("choices.0")
	message := choice.Get("message")

	spans := splitTextSpans(message.Get("content").String())

	for _, call := range message.Get("tool_calls").Array() {
		spans = append(spans, ResponseSpan{
			SpanType:    SpanToolCall,
			ToolName:    call.Get("function.name").String(),
			ToolCallID:  call.Get("id").String(),
			ToolInput:   firstRaw(call, "function.arguments", "arguments"),
			ContentJSON: call.Raw,
		})
	}

	if usage := usageSpan(body); usage != nil {
		spans = append(spans, *usage)
	}

	return spans, choice.Get("finish_reason").String()
}
