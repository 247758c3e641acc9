package internal

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// RedactedPlaceholder replaces authorization header values before anything
// reaches storage. This is a compliance boundary, enforced here so no
// storage backend can observe the original value.
const RedactedPlaceholder = "[REDACTED]"

var redactedHeaders = map[string]bool{
	"authorization": true,
	"api-key":       true,
	"x-api-key":     true,
}

// CaptureDocument is the validated, normalized form of one capture file.
type CaptureDocument struct {
	SessionID string
	Title     string
	AgentName string
	Status    string
	StartTime float64
	EndTime   float64
	Turns     []CaptureTurn
}

// CaptureTurn is one recorded turn: its requests and paired responses as raw
// JSON objects.
type CaptureTurn struct {
	TurnNumber int
	Requests   []json.RawMessage
	Responses  []json.RawMessage
}

// ParseCapture validates the top-level shape of a capture document and
// normalizes it. A document missing the canonical fields is converted from
// the legacy flat conversation_flow shape when possible; otherwise a
// FormatError is returned and nothing downstream runs.
func ParseCapture(data []byte) (*CaptureDocument, error) {
	if !gjson.ValidBytes(data) {
		return nil, &FormatError{Reason: "capture is not valid JSON"}
	}
	body := gjson.ParseBytes(data)
	if !body.IsObject() {
		return nil, &FormatError{Reason: "capture root must be a JSON object"}
	}

	if !body.Get("turns").Exists() && body.Get("conversation_flow").Exists() {
		converted, err := convertConversationFlow(body)
		if err != nil {
			return nil, err
		}
		body = converted
	}

	sessionID := body.Get("session_id").String()
	if sessionID == "" {
		return nil, &FormatError{Reason: "missing required field: session_id"}
	}
	start := body.Get("start_time")
	if !start.Exists() {
		return nil, &FormatError{Reason: "missing required field: start_time"}
	}
	turns := body.Get("turns")
	if !turns.IsArray() {
		return nil, &FormatError{Reason: "missing required field: turns"}
	}

	doc := &CaptureDocument{
		SessionID: sessionID,
		Title:     body.Get("title").String(),
		AgentName: body.Get("agent_name").String(),
		Status:    body.Get("status").String(),
		StartTime: parseEpoch(start),
		EndTime:   parseEpoch(body.Get("end_time")),
	}

	for i, turn := range turns.Array() {
		ct := CaptureTurn{TurnNumber: i}
		if n := turn.Get("turn_number"); n.Exists() {
			ct.TurnNumber = int(n.Int())
		}
		for _, req := range turn.Get("requests").Array() {
			ct.Requests = append(ct.Requests, json.RawMessage(req.Raw))
		}
		for _, resp := range turn.Get("responses").Array() {
			ct.Responses = append(ct.Responses, json.RawMessage(resp.Raw))
		}
		doc.Turns = append(doc.Turns, ct)
	}

	return doc, nil
}

// convertConversationFlow rewrites the legacy flat shape (alternating
// user_input/ai_response entries) into the canonical turns[].requests[]
// shape. Entries without timestamps get synthetic ones derived from
// start_time plus their index, keeping chronological order stable.
func convertConversationFlow(body gjson.Result) (gjson.Result, error) {
	flow := body.Get("conversation_flow")
	if !flow.IsArray() {
		return gjson.Result{}, &FormatError{Reason: "conversation_flow must be an array"}
	}

	base := parseEpoch(body.Get("start_time"))

	type legacyTurn struct {
		Requests  []map[string]interface{} `json:"requests"`
		Responses []map[string]interface{} `json:"responses,omitempty"`
	}
	var turns []*legacyTurn
	var current *legacyTurn

	for i, entry := range flow.Array() {
		ts := entry.Get("timestamp")
		timestamp := parseEpoch(ts)
		if !ts.Exists() {
			timestamp = base + float64(i)
		}
		content := entry.Get("content").String()
		if content == "" {
			content = entry.Get("text").String()
		}

		switch entry.Get("type").String() {
		case "user_input":
			current = &legacyTurn{
				Requests: []map[string]interface{}{{
					"timestamp": timestamp,
					"messages": []map[string]interface{}{
						{"role": "user", "content": content},
					},
				}},
			}
			turns = append(turns, current)
		case "ai_response":
			if current == nil {
				current = &legacyTurn{}
				turns = append(turns, current)
			}
			current.Responses = append(current.Responses, map[string]interface{}{
				"timestamp":   timestamp,
				"status_code": 200,
				"raw_response": map[string]interface{}{
					"choices": []map[string]interface{}{
						{"message": map[string]interface{}{"content": content}},
					},
				},
			})
			current = nil
		default:
			return gjson.Result{}, &FormatError{
				Reason: "conversation_flow entry has unknown type: " + entry.Get("type").String(),
			}
		}
	}

	rewritten := map[string]interface{}{
		"session_id": body.Get("session_id").Value(),
		"start_time": body.Get("start_time").Value(),
		"turns":      turns,
	}
	for _, field := range []string{"end_time", "agent_name", "status", "title"} {
		if v := body.Get(field); v.Exists() {
			rewritten[field] = v.Value()
		}
	}

	data, err := json.Marshal(rewritten)
	if err != nil {
		return gjson.Result{}, &FormatError{Reason: "failed to rewrite conversation_flow: " + err.Error()}
	}
	return gjson.ParseBytes(data), nil
}

// FlattenInteractions turns the capture's per-turn request/response lists
// into a single chronological RawInteraction list with redacted headers.
// The capture's own turn grouping is discarded: turn assignment is the
// TurnAssigner's job.
func (doc *CaptureDocument) FlattenInteractions() []RawInteraction {
	var items []RawInteraction

	for _, turn := range doc.Turns {
		for _, raw := range turn.Requests {
			items = append(items, rawRequestInteraction(raw))
		}
		for _, raw := range turn.Responses {
			items = append(items, rawResponseInteraction(raw))
		}
	}

	return sortByTimestamp(items)
}

func rawRequestInteraction(raw json.RawMessage) RawInteraction {
	body := gjson.ParseBytes(raw)
	return RawInteraction{
		Type:      InteractionRequest,
		Timestamp: parseEpoch(body.Get("timestamp")),
		RequestID: body.Get("request_id").String(),
		URL:       body.Get("url").String(),
		Method:    body.Get("method").String(),
		Model:     body.Get("model").String(),
		Headers:   redactHeaders(body.Get("headers")),
		Payload:   raw,
	}
}

func rawResponseInteraction(raw json.RawMessage) RawInteraction {
	body := gjson.ParseBytes(raw)
	statusCode := 200
	if sc := body.Get("status_code"); sc.Exists() {
		statusCode = int(sc.Int())
	}
	return RawInteraction{
		Type:       InteractionResponse,
		Timestamp:  parseEpoch(body.Get("timestamp")),
		RequestID:  body.Get("request_id").String(),
		StatusCode: statusCode,
		DurationMS: body.Get("duration_ms").Float(),
		Headers:    redactHeaders(body.Get("headers")),
		Payload:    raw,
	}
}

// redactHeaders copies a headers object, replacing authorization values with
// the fixed placeholder.
func redactHeaders(headers gjson.Result) map[string]string {
	if !headers.IsObject() {
		return nil
	}
	out := make(map[string]string)
	headers.ForEach(func(key, value gjson.Result) bool {
		if redactedHeaders[strings.ToLower(key.String())] {
			out[key.String()] = RedactedPlaceholder
		} else {
			out[key.String()] = value.String()
		}
		return true
	})
	return out
}

// parseEpoch accepts epoch seconds (number) or an ISO8601 string.
func parseEpoch(value gjson.Result) float64 {
	switch value.Type {
	case gjson.Number:
		return value.Float()
	case gjson.String:
		if t, err := time.Parse(time.RFC3339, value.String()); err == nil {
			return float64(t.UnixNano()) / float64(time.Second)
		}
	}
	return 0
}
