package internal

import (
	"strings"

	"github.com/tidwall/gjson"
)

// Keyword lists for content-based component classification. Checked in
// priority order: environment, context, example. First match wins.
var environmentKeywords = []string{
	"working directory",
	"platform:",
	"os version",
	"environment:",
	"<env>",
	"is directory a git repo",
}

var contextKeywords = []string{
	"<context>",
	"context:",
	"attached files",
	"git status",
	"open files",
	"directory structure",
}

var exampleKeywords = []string{
	"<example",
	"example:",
	"for example:",
	"example input",
	"example output",
}

// ExtractPromptComponents runs the selected adapter over a request payload
// and applies the shared post-pass: canonical component types, 0-based order
// indexes in adapter emission order, and estimated token counts.
func ExtractPromptComponents(payload []byte, provider, protocol string) []PromptComponent {
	raws := extractRawComponents(payload, provider, protocol)

	components := make([]PromptComponent, 0, len(raws))
	for i, raw := range raws {
		pc := PromptComponent{
			ComponentType: classifyComponent(raw),
			Role:          raw.Role,
			Content:       raw.Content,
			OrderIndex:    i,
			TokenCount:    estimateTokens(raw.Content),
			Source:        raw.Source,
		}
		if raw.ContentJSON != nil {
			pc.ContentJSON = marshalJSONString(raw.ContentJSON)
			if pc.Content == "" {
				pc.TokenCount = estimateTokens(pc.ContentJSON)
			}
		}
		components = append(components, pc)
	}
	return components
}

func extractRawComponents(payload []byte, provider, protocol string) []RawComponent {
	if len(payload) == 0 || !gjson.ValidBytes(payload) {
		return nil
	}
	return AdapterFor(provider, protocol).ExtractComponents(gjson.ParseBytes(payload))
}

// classifyComponent assigns the canonical component type: first by explicit
// source tag, then by content keyword heuristics, then by role fallback.
func classifyComponent(raw RawComponent) string {
	switch raw.Source {
	case SourceConversationHistory:
		return ComponentConversationHistory
	case SourceUserInput:
		return ComponentUser
	case SourceSystemInstruction:
		return ComponentSystem
	case SourceToolDefinition:
		return ComponentToolDefinition
	}

	if t := classifyByContent(raw.Content); t != "" {
		return t
	}

	switch strings.ToLower(raw.Role) {
	case "assistant", "model":
		return ComponentAssistant
	case "system":
		return ComponentSystem
	case "tool":
		return ComponentToolDefinition
	default:
		return ComponentUser
	}
}

func classifyByContent(content string) string {
	lowered := strings.ToLower(content)
	for _, kw := range environmentKeywords {
		if strings.Contains(lowered, kw) {
			return ComponentEnvironment
		}
	}
	for _, kw := range contextKeywords {
		if strings.Contains(lowered, kw) {
			return ComponentContext
		}
	}
	for _, kw := range exampleKeywords {
		if strings.Contains(lowered, kw) {
			return ComponentExample
		}
	}
	return ""
}

// estimateTokens approximates a token count as len/4 with a floor of 1 for
// non-empty content. No exact tokenizer is wired in.
func estimateTokens(content string) int {
	if content == "" {
		return 0
	}
	n := len(content) / 4
	if n < 1 {
		n = 1
	}
	return n
}
