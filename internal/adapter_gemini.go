package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// GeminiAdapter handles the Gemini wire format, including Gemini CLI
// captures that nest the real request under raw_request or
// raw_request.request.
type GeminiAdapter struct{}

// ExtractComponents decomposes a Gemini request. The last user message in
// contents is the current input; every other message is merged into a single
// conversation_history component. systemInstruction text parts become system
// components and tools entries become tool definitions.
func (a *GeminiAdapter) ExtractComponents(body gjson.Result) []RawComponent {
	var components []RawComponent

	if sys := geminiSystemInstruction(body); sys.Exists() {
		for _, part := range sys.Get("parts").Array() {
			text := part.Get("text").String()
			if text == "" {
				continue
			}
			components = append(components, RawComponent{
				Source:  SourceSystemInstruction,
				Role:    "system",
				Content: text,
			})
		}
	}

	contents := requestField(body, "contents").Array()
	lastUser := -1
	for i, msg := range contents {
		if msg.Get("role").String() == "user" || msg.Get("role").String() == "" {
			lastUser = i
		}
	}

	var history []HistoryEntry
	for i, msg := range contents {
		if i == lastUser {
			continue
		}
		role := msg.Get("role").String()
		if role == "model" {
			role = "assistant"
		}
		history = append(history, HistoryEntry{
			Role:    role,
			Content: geminiPartsText(msg.Get("parts")),
			Type:    geminiEntryType(msg.Get("parts")),
		})
	}
	if len(history) > 0 {
		components = append(components, RawComponent{
			Source:      SourceConversationHistory,
			Role:        "user",
			ContentJSON: history,
		})
	}

	if lastUser >= 0 {
		components = append(components, RawComponent{
			Source:  SourceUserInput,
			Role:    "user",
			Content: geminiPartsText(contents[lastUser].Get("parts")),
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

// ExtractSpans decomposes a complete Gemini response: candidate text split
// around code fences, functionCall parts as tool calls, normalized usage,
// and one safety_rating span per rating.
func (a *GeminiAdapter) ExtractSpans(body gjson.Result) ([]ResponseSpan, string) {
	candidate := body.Get("candidates.0")
	parts := candidate.Get("content.parts")

	var texts []string
	for _, part := range parts.Array() {
		if t := part.Get("text"); t.Exists() && !part.Get("thought").Bool() {
			texts = append(texts, t.String())
		}
	}
	spans := splitTextSpans(strings.Join(texts, "\n"))

	for _, part := range parts.Array() {
		call := part.Get("functionCall")
		if !call.Exists() {
			call = part.Get("function_call")
		}
		if !call.Exists() {
			continue
		}
		spans = append(spans, ResponseSpan{
			SpanType:    SpanToolCall,
			ToolName:    call.Get("name").String(),
			ToolInput:   firstRaw(call, "args", "arguments"),
			ContentJSON: call.Raw,
		})
	}

	// Gemini marks thinking parts with a thought flag rather than a block
	// type; collect them into a single leading thinking span.
	var thoughts []string
	for _, part := range parts.Array() {
		if part.Get("thought").Bool() && part.Get("text").Exists() {
			thoughts = append(thoughts, part.Get("text").String())
		}
	}
	if len(thoughts) > 0 {
		spans = append([]ResponseSpan{{
			SpanType: SpanThinking,
			Content:  strings.Join(thoughts, "\n"),
		}}, spans...)
	}

	if usage := usageSpan(body); usage != nil {
		spans = append(spans, *usage)
	}

	for _, rating := range candidate.Get("safetyRatings").Array() {
		spans = append(spans, ResponseSpan{
			SpanType:    SpanSafetyRating,
			ContentJSON: rating.Raw,
		})
	}

	return spans, candidate.Get("finishReason").String()
}

func geminiSystemInstruction(body gjson.Result) gjson.Result {
	if sys := requestField(body, "systemInstruction"); sys.Exists() {
		return sys
	}
	return requestField(body, "system_instruction")
}

func geminiPartsText(parts gjson.Result) string {
	var texts []string
	for _, part := range parts.Array() {
		if t := part.Get("text"); t.Exists() {
			texts = append(texts, t.String())
		}
	}
	return strings.Join(texts, "\n")
}

func geminiEntryType(parts gjson.Result) string {
	for _, part := range parts.Array() {
		if part.Get("functionCall").Exists() || part.Get("function_call").Exists() {
			return "tool_call"
		}
		if part.Get("functionResponse").Exists() || part.Get("function_response").Exists() {
			return "tool_result"
		}
	}
	return "text"
}
