package internal

import (
	"encoding/json"
	"time"
)

// Provider identifies the LLM vendor behind a captured request.
const (
	ProviderGemini    = "gemini"
	ProviderVertex    = "vertex"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderAzure     = "azure"
	ProviderUnknown   = "unknown"
)

// Protocol identifies the wire-format family used to talk to a provider.
const (
	ProtocolGemini           = "gemini"
	ProtocolAnthropic        = "anthropic"
	ProtocolOpenAICompatible = "openai_compatible"
	ProtocolCustom           = "custom"
)

// Interaction types
const (
	InteractionRequest  = "request"
	InteractionResponse = "response"
)

// Prompt component types (closed set)
const (
	ComponentSystem              = "system"
	ComponentUser                = "user"
	ComponentConversationHistory = "conversation_history"
	ComponentToolDefinition      = "tool_definition"
	ComponentContext             = "context"
	ComponentExample             = "example"
	ComponentEnvironment         = "environment"
	ComponentAssistant           = "assistant"
)

// Response span types
const (
	SpanText          = "text"
	SpanCodeBlock     = "code_block"
	SpanToolCall      = "tool_call"
	SpanThinking      = "thinking"
	SpanUsageMetadata = "usage_metadata"
	SpanSafetyRating  = "safety_rating"
	SpanToolResult    = "tool_result"
	SpanError         = "error"
)

// RawInteraction is one captured request or response as found in the input
// JSON. It exists only during pipeline execution and is never persisted
// as-is; the importer converts it into an Interaction.
type RawInteraction struct {
	Type       string            `json:"type"` // request|response
	Timestamp  float64           `json:"timestamp"`
	RequestID  string            `json:"request_id,omitempty"`
	URL        string            `json:"url,omitempty"`
	Method     string            `json:"method,omitempty"`
	Model      string            `json:"model,omitempty"`
	StatusCode int               `json:"status_code,omitempty"`
	DurationMS float64           `json:"duration_ms,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Payload    json.RawMessage   `json:"payload,omitempty"`

	// Pipeline annotations. TurnNumber is a float64 because the legacy
	// merge/split assigner emits fractional numbers like 6.01.
	TurnNumber  float64 `json:"turn_number"`
	Sequence    int     `json:"sequence"`
	Bookkeeping bool    `json:"bookkeeping,omitempty"`
}

// Session represents one imported CLI run.
type Session struct {
	ID                string  `json:"id"`
	Title             string  `json:"title,omitempty"`
	StartTime         float64 `json:"start_time"`
	EndTime           float64 `json:"end_time,omitempty"`
	DurationSeconds   float64 `json:"duration_seconds,omitempty"`
	Status            string  `json:"status,omitempty"`
	TotalTurns        int     `json:"total_turns"`
	TotalInteractions int     `json:"total_interactions"`
	PrimaryModel      string  `json:"primary_model,omitempty"`
	PrimaryProvider   string  `json:"primary_provider,omitempty"`
	Metadata          string  `json:"metadata,omitempty"` // JSON blob
}

// GenerationParameters holds the normalized generation config of a request.
// Unrecognized vendor fields are preserved verbatim in OtherParams so no
// parameter is silently dropped.
type GenerationParameters struct {
	Temperature      *float64               `json:"temperature,omitempty"`
	MaxTokens        *int64                 `json:"max_tokens,omitempty"`
	TopP             *float64               `json:"top_p,omitempty"`
	TopK             *int64                 `json:"top_k,omitempty"`
	FrequencyPenalty *float64               `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64               `json:"presence_penalty,omitempty"`
	StopSequences    []string               `json:"stop_sequences,omitempty"`
	OtherParams      map[string]interface{} `json:"other_params,omitempty"`
}

// IsEmpty reports whether no generation config was found at all.
func (p *GenerationParameters) IsEmpty() bool {
	return p.Temperature == nil && p.MaxTokens == nil && p.TopP == nil &&
		p.TopK == nil && p.FrequencyPenalty == nil && p.PresencePenalty == nil &&
		len(p.StopSequences) == 0 && len(p.OtherParams) == 0
}

// Interaction is the unified, persisted form of a RawInteraction. Exactly one
// of the request-only or response-only field groups is populated,
// discriminated by Type.
type Interaction struct {
	ID         int64   `json:"id"`
	SessionID  string  `json:"session_id"`
	Type       string  `json:"type"`
	Timestamp  float64 `json:"timestamp"`
	TurnNumber float64 `json:"turn_number"`
	Sequence   int     `json:"sequence"`
	RequestID  string  `json:"request_id,omitempty"`
	Content    string  `json:"content,omitempty"`
	Headers    string  `json:"headers,omitempty"` // redacted, JSON blob

	// Request-only fields
	URL       string               `json:"url,omitempty"`
	Method    string               `json:"method,omitempty"`
	Model     string               `json:"model,omitempty"`
	Provider  string               `json:"provider,omitempty"`
	Protocol  string               `json:"protocol,omitempty"`
	UserInput string               `json:"user_input,omitempty"`
	Params    GenerationParameters `json:"params,omitempty"`

	// Response-only fields
	StatusCode       int     `json:"status_code,omitempty"`
	DurationMS       float64 `json:"duration_ms,omitempty"`
	FinishReason     string  `json:"finish_reason,omitempty"`
	PromptTokens     *int64  `json:"prompt_tokens,omitempty"`
	CompletionTokens *int64  `json:"completion_tokens,omitempty"`
	TotalTokens      *int64  `json:"total_tokens,omitempty"`
	ErrorType        string  `json:"error_type,omitempty"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	RetryAfter       *int64  `json:"retry_after,omitempty"`

	Bookkeeping bool `json:"bookkeeping,omitempty"`

	Components []PromptComponent `json:"components,omitempty"`
	Spans      []ResponseSpan    `json:"spans,omitempty"`
}

// PromptComponent is one decomposed piece of a request's prompt. Components
// are exclusively owned by their interaction and never shared.
type PromptComponent struct {
	ID            int64  `json:"id"`
	InteractionID int64  `json:"interaction_id"`
	ComponentType string `json:"component_type"`
	Role          string `json:"role,omitempty"`
	Content       string `json:"content,omitempty"`
	ContentJSON   string `json:"content_json,omitempty"`
	OrderIndex    int    `json:"order_index"`
	TokenCount    int    `json:"token_count"`
	Source        string `json:"source,omitempty"`
}

// ResponseSpan is one decomposed piece of a response.
type ResponseSpan struct {
	ID            int64   `json:"id"`
	InteractionID int64   `json:"interaction_id"`
	SpanType      string  `json:"span_type"`
	Content       string  `json:"content,omitempty"`
	ContentJSON   string  `json:"content_json,omitempty"`
	OrderIndex    int     `json:"order_index"`
	StreamIndex   *int    `json:"stream_index,omitempty"`
	EventTime     float64 `json:"event_time,omitempty"`
	ToolName      string  `json:"tool_name,omitempty"`
	ToolCallID    string  `json:"tool_call_id,omitempty"`
	ToolInput     string  `json:"tool_input,omitempty"`
	ToolOutput    string  `json:"tool_output,omitempty"`
	Language      string  `json:"language,omitempty"`
	IsExecutable  bool    `json:"is_executable,omitempty"`
	FinishReason  string  `json:"finish_reason,omitempty"`
}

// HistoryEntry is one prior message inside a conversation_history component.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// StartedAt returns the session start as a time.Time.
func (s *Session) StartedAt() time.Time {
	return epochToTime(s.StartTime)
}

// EndedAt returns the session end as a time.Time (zero if unset).
func (s *Session) EndedAt() time.Time {
	if s.EndTime == 0 {
		return time.Time{}
	}
	return epochToTime(s.EndTime)
}

func epochToTime(epoch float64) time.Time {
	sec := int64(epoch)
	nsec := int64((epoch - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// marshalJSONString marshals v for metadata blobs built from values the
// pipeline controls; marshal failures collapse to the empty string.
func marshalJSONString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
