package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// AnthropicAdapter handles the Anthropic messages wire format.
type AnthropicAdapter struct{}

// ExtractComponents decomposes an Anthropic request. The system field
// becomes system components; each message's content blocks become
// messages-sourced components, with tool_use blocks tagged separately.
func (a *AnthropicAdapter) ExtractComponents(body gjson.Result) []RawComponent {
	var components []RawComponent

	system := requestField(body, "system")
	switch {
	case system.Type == gjson.String:
		components = append(components, RawComponent{
			Source:  SourceSystemInstruction,
			Role:    "system",
			Content: system.String(),
		})
	case system.IsArray():
		for _, block := range system.Array() {
			if text := block.Get("text").String(); text != "" {
				components = append(components, RawComponent{
					Source:  SourceSystemInstruction,
					Role:    "system",
					Content: text,
				})
			}
		}
	}

	for _, msg := range requestField(body, "messages").Array() {
		role := msg.Get("role").String()
		content := msg.Get("content")

		if content.Type == gjson.String {
			components = append(components, RawComponent{
				Source:  SourceMessages,
				Role:    role,
				Content: content.String(),
			})
			continue
		}

		for _, block := range content.Array() {
			switch block.Get("type").String() {
			case "tool_use":
				components = append(components, RawComponent{
					Source:      SourceToolUse,
					Role:        role,
					ContentJSON: block.Value(),
				})
			case "tool_result":
				components = append(components, RawComponent{
					Source:      SourceMessages,
					Role:        "tool",
					Content:     anthropicBlockText(block.Get("content")),
					ContentJSON: block.Value(),
				})
			default:
				components = append(components, RawComponent{
					Source:  SourceMessages,
					Role:    role,
					Content: block.Get("text").String(),
				})
			}
		}
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

// ExtractSpans decomposes a complete Anthropic response: text blocks joined
// and split around code fences, tool_use blocks as tool calls, an extended
// thinking span at position 0 when present, and normalized usage.
func (a *AnthropicAdapter) ExtractSpans(body gjson.Result) ([]ResponseSpan, string) {
	content := body.Get("content")

	var texts []string
	for _, block := range content.Array() {
		if block.Get("type").String() == "text" {
			texts = append(texts, block.Get("text").String())
		}
	}
	spans := splitTextSpans(strings.Join(texts, "\n"))

	for _, block := range content.Array() {
		if block.Get("type").String() != "tool_use" {
			continue
		}
		spans = append(spans, ResponseSpan{
			SpanType:    SpanToolCall,
			ToolName:    block.Get("name").String(),
			ToolCallID:  block.Get("id").String(),
			ToolInput:   firstRaw(block, "input"),
			ContentJSON: block.Raw,
		})
	}

	var thinking []string
	for _, block := range content.Array() {
		switch block.Get("type").String() {
		case "thinking":
			thinking = append(thinking, block.Get("thinking").String())
		case "redacted_thinking":
			thinking = append(thinking, block.Get("data").String())
		}
	}
	if len(thinking) > 0 {
		spans = append([]ResponseSpan{{
			SpanType: SpanThinking,
			Content:  strings.Join(thinking, "\n"),
		}}, spans...)
	}

	if usage := usageSpan(body); usage != nil {
		spans = append(spans, *usage)
	}

	return spans, body.Get("stop_reason").String()
}

// anthropicBlockText extracts plain text from a tool_result content value,
// which may be a bare string or a list of text blocks.
func anthropicBlockText(content gjson.Result) string {
	if content.Type == gjson.String {
		return content.String()
	}
	var texts []string
	for _, block := range content.Array() {
		if t := block.Get("text"); t.Exists() {
			texts = append(texts, t.String())
		}
	}
	return strings.Join(texts, "\n")
}
