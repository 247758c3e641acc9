package internal

import (
	"strings"
	"testing"
)

func TestAnthropicExtractComponents(t *testing.T) {
	payload := `{
		"model": "claude-sonnet-4",
		"system": "You are concise",
		"messages": [
			{"role": "user", "content": "Fix the bug"},
			{"role": "assistant", "content": [
				{"type": "text", "text": "Looking at it now."},
				{"type": "tool_use", "id": "tu_1", "name": "read_file", "input": {"path": "main.go"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu_1", "content": "package main"}
			]}
		],
		"tools": [{"name": "read_file", "input_schema": {}}]
	}`

	components := ExtractPromptComponents([]byte(payload), ProviderAnthropic, ProtocolAnthropic)
	if len(components) != 6 {
		t.Fatalf("len(components) = %d, want 6: %+v", len(components), components)
	}

	if components[0].ComponentType != ComponentSystem || components[0].Content != "You are concise" {
		t.Errorf("components[0] = %+v", components[0])
	}
	if components[1].ComponentType != ComponentUser || components[1].Content != "Fix the bug" {
		t.Errorf("components[1] = %+v", components[1])
	}
	// Assistant text block classifies by role.
	if components[2].ComponentType != ComponentAssistant {
		t.Errorf("components[2].ComponentType = %q, want assistant", components[2].ComponentType)
	}
	// tool_use block keeps its structured payload.
	if components[3].Source != SourceToolUse {
		t.Errorf("components[3].Source = %q, want tool_use", components[3].Source)
	}
	if !strings.Contains(components[3].ContentJSON, "read_file") {
		t.Errorf("components[3].ContentJSON = %q", components[3].ContentJSON)
	}
	// tool_result carries the tool role.
	if components[4].Role != "tool" || components[4].Content != "package main" {
		t.Errorf("components[4] = %+v", components[4])
	}
	if components[4].ComponentType != ComponentToolDefinition {
		// Role "tool" falls back to tool_definition without a source tag;
		// the source tag here is messages so this documents the fallback.
		t.Errorf("components[4].ComponentType = %q", components[4].ComponentType)
	}
	if components[5].ComponentType != ComponentToolDefinition {
		t.Errorf("components[5].ComponentType = %q, want tool_definition", components[5].ComponentType)
	}
}

func TestAnthropicExtractComponentsSystemBlocks(t *testing.T) {
	payload := `{
		"system": [
			{"type": "text", "text": "First instruction"},
			{"type": "text", "text": "Second instruction"}
		],
		"messages": [{"role": "user", "content": "hi"}]
	}`

	components := ExtractPromptComponents([]byte(payload), ProviderAnthropic, ProtocolAnthropic)
	if len(components) != 3 {
		t.Fatalf("len(components) = %d, want 3", len(components))
	}
	if components[0].ComponentType != ComponentSystem || components[1].ComponentType != ComponentSystem {
		t.Errorf("system blocks = %q, %q", components[0].ComponentType, components[1].ComponentType)
	}
	if components[1].Content != "Second instruction" {
		t.Errorf("components[1].Content = %q", components[1].Content)
	}
}

func TestAnthropicExtractSpans(t *testing.T) {
	payload := `{
		"content": [
			{"type": "text", "text": "I'll check that file."},
			{"type": "tool_use", "id": "tu_9", "name": "grep", "input": {"pattern": "TODO"}}
		],
		"stop_reason": "tool_use",
		"usage": {"input_tokens": 100, "output_tokens": 50}
	}`

	spans := ExtractResponseSpans([]byte(payload), ProviderAnthropic, ProtocolAnthropic)
	if len(spans) != 3 {
		t.Fatalf("len(spans) = %d, want 3: %+v", len(spans), spans)
	}

	if spans[0].SpanType != SpanText {
		t.Errorf("spans[0].SpanType = %q, want text", spans[0].SpanType)
	}
	if spans[1].SpanType != SpanToolCall {
		t.Errorf("spans[1].SpanType = %q, want tool_call", spans[1].SpanType)
	}
	if spans[1].ToolName != "grep" || spans[1].ToolCallID != "tu_9" {
		t.Errorf("spans[1] tool = %q/%q", spans[1].ToolName, spans[1].ToolCallID)
	}
	if !strings.Contains(spans[1].ToolInput, "TODO") {
		t.Errorf("spans[1].ToolInput = %q", spans[1].ToolInput)
	}
	if spans[2].SpanType != SpanUsageMetadata {
		t.Errorf("spans[2].SpanType = %q, want usage_metadata", spans[2].SpanType)
	}
	for i, sp := range spans {
		if sp.FinishReason != "tool_use" {
			t.Errorf("spans[%d].FinishReason = %q, want tool_use", i, sp.FinishReason)
		}
	}
}

func TestAnthropicExtractSpansThinkingFirst(t *testing.T) {
	payload := `{
		"content": [
			{"type": "thinking", "thinking": "The user wants a refactor."},
			{"type": "text", "text": "Here is the plan."}
		],
		"stop_reason": "end_turn"
	}`

	spans := ExtractResponseSpans([]byte(payload), ProviderAnthropic, ProtocolAnthropic)
	if len(spans) != 2 {
		t.Fatalf("len(spans) = %d, want 2", len(spans))
	}
	if spans[0].SpanType != SpanThinking {
		t.Errorf("spans[0].SpanType = %q, want thinking at position 0", spans[0].SpanType)
	}
	if spans[0].Content != "The user wants a refactor." {
		t.Errorf("spans[0].Content = %q", spans[0].Content)
	}
}

func TestAnthropicToolResultBlockText(t *testing.T) {
	payload := `{
		"messages": [
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "tu_2", "content": [
					{"type": "text", "text": "line one"},
					{"type": "text", "text": "line two"}
				]}
			]}
		]
	}`

	components := ExtractPromptComponents([]byte(payload), ProviderAnthropic, ProtocolAnthropic)
	if len(components) != 1 {
		t.Fatalf("len(components) = %d, want 1", len(components))
	}
	if components[0].Content != "line one\nline two" {
		t.Errorf("components[0].Content = %q", components[0].Content)
	}
}
