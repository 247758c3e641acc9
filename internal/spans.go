package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// executableLanguages is the fixed set of interpretable or compilable
// languages that mark a code_block span executable.
var executableLanguages = map[string]bool{
	"python":     true,
	"py":         true,
	"bash":       true,
	"sh":         true,
	"shell":      true,
	"javascript": true,
	"js":         true,
	"typescript": true,
	"ts":         true,
	"go":         true,
	"ruby":       true,
	"rust":       true,
	"java":       true,
	"c":          true,
	"cpp":        true,
	"php":        true,
	"perl":       true,
}

// ExtractResponseSpans decomposes a response payload into ordered spans.
// Streaming shapes (top-level events or chunks) take precedence; otherwise
// the protocol adapter handles the complete response. Every span ends up
// tagged with the response's finish reason and a 0-based order index.
func ExtractResponseSpans(payload []byte, provider, protocol string) []ResponseSpan {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return nil
	}

	body := responseBody(gjson.ParseBytes(payload))

	if events := streamEvents(body); events != nil {
		spans, reason := extractStreamSpans(events)
		return finalizeSpans(spans, reason)
	}

	spans, reason := AdapterFor(provider, protocol).ExtractSpans(body)
	return finalizeSpans(spans, reason)
}

// responseBody unwraps capture envelopes around the provider response: the
// recorder's raw_response field, and the Gemini CLI cloudcode wrapper that
// nests the real response under a response key.
func responseBody(body gjson.Result) gjson.Result {
	if inner := body.Get("raw_response"); inner.IsObject() || inner.IsArray() {
		body = inner
	}
	if inner := body.Get("response"); inner.IsObject() && inner.Get("candidates").Exists() {
		body = inner
	}
	return body
}

func streamEvents(body gjson.Result) []gjson.Result {
	if events := body.Get("events"); events.IsArray() {
		return events.Array()
	}
	if chunks := body.Get("chunks"); chunks.IsArray() {
		return chunks.Array()
	}
	return nil
}

// extractStreamSpans emits one span per streaming event. Tool-call deltas
// become tool_call spans; text deltas are classified by the same prefix
// heuristics as complete-response text.
func extractStreamSpans(events []gjson.Result) ([]ResponseSpan, string) {
	var spans []ResponseSpan
	var finishReason string

	for i, ev := range events {
		idx := i
		span := ResponseSpan{
			StreamIndex: &idx,
			EventTime:   ev.Get("timestamp").Float(),
		}

		if call := streamToolCall(ev); call.Exists() {
			span.SpanType = SpanToolCall
			span.ToolName = call.Get("name").String()
			span.ToolCallID = call.Get("id").String()
			span.ToolInput = firstRaw(call, "args", "input", "arguments")
			span.ContentJSON = call.Raw
		} else {
			text := streamText(ev)
			span.SpanType = classifyTextSpan(text)
			span.Content = text
		}
		spans = append(spans, span)

		if r := ev.Get("finish_reason"); r.Exists() {
			finishReason = r.String()
		}
	}
	return spans, finishReason
}

func streamToolCall(ev gjson.Result) gjson.Result {
	for _, field := range []string{"tool_call", "function_call", "functionCall"} {
		if call := ev.Get(field); call.IsObject() {
			return call
		}
	}
	if ev.Get("type").String() == "tool_call" {
		return ev
	}
	return gjson.Result{}
}

func streamText(ev gjson.Result) string {
	for _, field := range []string{"text", "content", "delta.text", "delta"} {
		if v := ev.Get(field); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

func firstRaw(result gjson.Result, fields ...string) string {
	for _, field := range fields {
		if v := result.Get(field); v.Exists() {
			return v.Raw
		}
	}
	return ""
}

// classifyTextSpan refines a text segment by prefix: thinking traces, echoed
// tool output, and error text each get their own span type.
func classifyTextSpan(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(lowered, "thought"), strings.HasPrefix(lowered, "thinking"):
		return SpanThinking
	case strings.HasPrefix(lowered, "tool output:"), strings.HasPrefix(lowered, "result:"):
		return SpanToolResult
	case strings.HasPrefix(lowered, "error"), strings.HasPrefix(lowered, "exception"):
		return SpanError
	default:
		return SpanText
	}
}

// splitTextSpans scans joined response text for fenced code blocks. Text
// between fences becomes classified text spans; fenced regions become
// code_block spans carrying the language tag.
func splitTextSpans(text string) []ResponseSpan {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var spans []ResponseSpan
	var plain []string
	var code []string
	language := ""
	inFence := false

	flushPlain := func() {
		segment := strings.TrimSpace(strings.Join(plain, "\n"))
		plain = nil
		if segment == "" {
			return
		}
		spans = append(spans, ResponseSpan{
			SpanType: classifyTextSpan(segment),
			Content:  segment,
		})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				lang := strings.ToLower(language)
				spans = append(spans, ResponseSpan{
					SpanType:     SpanCodeBlock,
					Content:      strings.Join(code, "\n"),
					Language:     language,
					IsExecutable: executableLanguages[lang],
				})
				code = nil
				language = ""
				inFence = false
			} else {
				flushPlain()
				language = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
				inFence = true
			}
			continue
		}
		if inFence {
			code = append(code, line)
		} else {
			plain = append(plain, line)
		}
	}

	// An unterminated fence still yields a code_block span.
	if inFence {
		spans = append(spans, ResponseSpan{
			SpanType:     SpanCodeBlock,
			Content:      strings.Join(code, "\n"),
			Language:     language,
			IsExecutable: executableLanguages[strings.ToLower(language)],
		})
	} else {
		flushPlain()
	}

	return spans
}

// usageSpan normalizes whichever vendor usage object is present into a
// usage_metadata span with prompt/completion/total token counts.
func usageSpan(body gjson.Result) *ResponseSpan {
	type usageMapping struct {
		path       string
		prompt     string
		completion string
		total      string
	}
	mappings := []usageMapping{
		{"usageMetadata", "promptTokenCount", "candidatesTokenCount", "totalTokenCount"},
		{"usage_metadata", "prompt_token_count", "candidates_token_count", "total_token_count"},
		{"usage", "input_tokens", "output_tokens", ""},
		{"usage", "prompt_tokens", "completion_tokens", "total_tokens"},
	}

	for _, m := range mappings {
		obj := body.Get(m.path)
		if !obj.IsObject() {
			continue
		}
		prompt := obj.Get(m.prompt)
		completion := obj.Get(m.completion)
		if !prompt.Exists() && !completion.Exists() {
			continue
		}
		total := int64(0)
		if m.total != "" && obj.Get(m.total).Exists() {
			total = obj.Get(m.total).Int()
		} else {
			total = prompt.Int() + completion.Int()
		}
		normalized := map[string]int64{
			"prompt_tokens":     prompt.Int(),
			"completion_tokens": completion.Int(),
			"total_tokens":      total,
		}
		return &ResponseSpan{
			SpanType:    SpanUsageMetadata,
			ContentJSON: marshalJSONString(normalized),
		}
	}
	return nil
}

// finalizeSpans tags every span with the response's finish reason and
// assigns 0-based order indexes in final emission order.
func finalizeSpans(spans []ResponseSpan, finishReason string) []ResponseSpan {
	for i := range spans {
		spans[i].OrderIndex = i
		spans[i].FinishReason = finishReason
	}
	return spans
}
