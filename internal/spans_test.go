package internal

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func parseJSON(t *testing.T, s string) gjson.Result {
	t.Helper()
	if !gjson.Valid(s) {
		t.Fatalf("fixture is not valid JSON: %s", s)
	}
	return gjson.Parse(s)
}

func TestSplitTextSpans(t *testing.T) {
	text := "Here is the fix:\n```go\nfunc main() {}\n```\nRun it with go run."

	spans := splitTextSpans(text)
	if len(spans) != 3 {
		t.Fatalf("len(spans) = %d, want 3", len(spans))
	}

	if spans[0].SpanType != SpanText || spans[0].Content != "Here is the fix:" {
		t.Errorf("spans[0] = %+v", spans[0])
	}
	if spans[1].SpanType != SpanCodeBlock {
		t.Errorf("spans[1].SpanType = %q, want code_block", spans[1].SpanType)
	}
	if spans[1].Language != "go" {
		t.Errorf("spans[1].Language = %q, want go", spans[1].Language)
	}
	if !spans[1].IsExecutable {
		t.Error("go code block should be executable")
	}
	if spans[1].Content != "func main() {}" {
		t.Errorf("spans[1].Content = %q", spans[1].Content)
	}
	if spans[2].SpanType != SpanText {
		t.Errorf("spans[2].SpanType = %q, want text", spans[2].SpanType)
	}
}

func TestSplitTextSpansUnterminatedFence(t *testing.T) {
	text := "Partial output:\n```python\nprint('hi')"

	spans := splitTextSpans(text)
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[1].SpanType != SpanCodeBlock || spans[1].Language != "python" {
		t.Errorf("spans[1] = %+v, want python code_block", spans[1])
	}
	if !spans[1].IsExecutable {
		t.Error("python code block should be executable")
	}
}

func TestSplitTextSpansNonExecutableLanguage(t *testing.T) {
	spans := splitTextSpans("```yaml\nkey: value\n```")
	if len(spans) != 1 {
		t.Fatalf("len(spans) = %d, want 1", len(spans))
	}
	if spans[0].IsExecutable {
		t.Error("yaml code block should not be executable")
	}
	if spans[0].Language != "yaml" {
		t.Errorf("Language = %q, want yaml", spans[0].Language)
	}
}

func TestSplitTextSpansEmpty(t *testing.T) {
	if spans := splitTextSpans("   \n  "); spans != nil {
		t.Errorf("splitTextSpans(whitespace) = %v, want nil", spans)
	}
}

func TestClassifyTextSpan(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Thinking about the problem...", SpanThinking},
		{"Thought: I should check the file", SpanThinking},
		{"Tool output: 3 files found", SpanToolResult},
		{"Result: success", SpanToolResult},
		{"Error: connection refused", SpanError},
		{"Exception in thread main", SpanError},
		{"The answer is 42.", SpanText},
		{"  thinking hard  ", SpanThinking},
	}

	for _, tt := range tests {
		if got := classifyTextSpan(tt.text); got != tt.want {
			t.Errorf("classifyTextSpan(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestExtractResponseSpansStreaming(t *testing.T) {
	payload := []byte(`{
		"events": [
			{"timestamp": 1700000001, "text": "Hello"},
			{"timestamp": 1700000002, "tool_call": {"name": "read_file", "id": "call_1", "args": {"path": "main.go"}}},
			{"timestamp": 1700000003, "text": " world", "finish_reason": "stop"}
		]
	}`)

	spans := ExtractResponseSpans(payload, ProviderOpenAI, ProtocolOpenAICompatible)
	if len(spans) != 3 {
		t.Fatalf("len(spans) = %d, want 3", len(spans))
	}

	for i, sp := range spans {
		if sp.StreamIndex == nil || *sp.StreamIndex != i {
			t.Errorf("spans[%d].StreamIndex = %v, want %d", i, sp.StreamIndex, i)
		}
		if sp.OrderIndex != i {
			t.Errorf("spans[%d].OrderIndex = %d, want %d", i, sp.OrderIndex, i)
		}
		if sp.FinishReason != "stop" {
			t.Errorf("spans[%d].FinishReason = %q, want stop", i, sp.FinishReason)
		}
	}

	if spans[0].SpanType != SpanText || spans[0].Content != "Hello" {
		t.Errorf("spans[0] = %+v", spans[0])
	}
	if spans[1].SpanType != SpanToolCall {
		t.Errorf("spans[1].SpanType = %q, want tool_call", spans[1].SpanType)
	}
	if spans[1].ToolName != "read_file" || spans[1].ToolCallID != "call_1" {
		t.Errorf("spans[1] tool = %q/%q", spans[1].ToolName, spans[1].ToolCallID)
	}
	if !strings.Contains(spans[1].ToolInput, "main.go") {
		t.Errorf("spans[1].ToolInput = %q", spans[1].ToolInput)
	}
	if spans[2].EventTime != 1700000003 {
		t.Errorf("spans[2].EventTime = %v", spans[2].EventTime)
	}
}

func TestExtractResponseSpansStreamingChunks(t *testing.T) {
	// The chunks alias behaves like events, including delta-shaped text.
	payload := []byte(`{
		"chunks": [
			{"delta": {"text": "partial"}},
			{"type": "tool_call", "name": "grep", "id": "c2", "arguments": {"pattern": "x"}}
		]
	}`)

	spans := ExtractResponseSpans(payload, ProviderAnthropic, ProtocolAnthropic)
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[0].Content != "partial" {
		t.Errorf("spans[0].Content = %q", spans[0].Content)
	}
	if spans[1].SpanType != SpanToolCall || spans[1].ToolName != "grep" {
		t.Errorf("spans[1] = %+v", spans[1])
	}
}

func TestUsageSpanNormalization(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"gemini camelCase", `{"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":20,"totalTokenCount":30}}`},
		{"gemini snake_case", `{"usage_metadata":{"prompt_token_count":10,"candidates_token_count":20,"total_token_count":30}}`},
		{"anthropic", `{"usage":{"input_tokens":10,"output_tokens":20}}`},
		{"openai", `{"usage":{"prompt_tokens":10,"completion_tokens":20,"total_tokens":30}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := usageSpan(parseJSON(t, tt.payload))
			if span == nil {
				t.Fatal("usageSpan() = nil")
			}
			if span.SpanType != SpanUsageMetadata {
				t.Errorf("SpanType = %q", span.SpanType)
			}

			var usage map[string]int64
			if err := json.Unmarshal([]byte(span.ContentJSON), &usage); err != nil {
				t.Fatalf("ContentJSON not valid JSON: %v", err)
			}
			if usage["prompt_tokens"] != 10 || usage["completion_tokens"] != 20 || usage["total_tokens"] != 30 {
				t.Errorf("normalized usage = %v", usage)
			}
		})
	}
}

func TestUsageSpanAbsent(t *testing.T) {
	if span := usageSpan(parseJSON(t, `{"usage":{}}`)); span != nil {
		t.Errorf("usageSpan(empty usage) = %+v, want nil", span)
	}
	if span := usageSpan(parseJSON(t, `{}`)); span != nil {
		t.Errorf("usageSpan(no usage) = %+v, want nil", span)
	}
}

func TestExtractResponseSpansMalformed(t *testing.T) {
	if spans := ExtractResponseSpans(nil, ProviderGemini, ProtocolGemini); spans != nil {
		t.Errorf("ExtractResponseSpans(nil) = %v", spans)
	}
	if spans := ExtractResponseSpans([]byte("{broken"), ProviderGemini, ProtocolGemini); spans != nil {
		t.Errorf("ExtractResponseSpans(broken) = %v", spans)
	}
}

func TestFinalizeSpans(t *testing.T) {
	spans := finalizeSpans([]ResponseSpan{
		{SpanType: SpanThinking},
		{SpanType: SpanText},
		{SpanType: SpanUsageMetadata},
	}, "STOP")

	for i, sp := range spans {
		if sp.OrderIndex != i {
			t.Errorf("spans[%d].OrderIndex = %d, want %d", i, sp.OrderIndex, i)
		}
		if sp.FinishReason != "STOP" {
			t.Errorf("spans[%d].FinishReason = %q, want STOP", i, sp.FinishReason)
		}
	}
}
