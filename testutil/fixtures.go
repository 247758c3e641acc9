package testutil

import (
	"encoding/json"
	"fmt"
	"testing"
)

// CaptureBuilder assembles capture documents for tests.
type CaptureBuilder struct {
	SessionID string
	StartTime float64
	AgentName string
	Turns     []CaptureTurnFixture
}

// CaptureTurnFixture is one turn of a built capture.
type CaptureTurnFixture struct {
	Requests  []map[string]interface{}
	Responses []map[string]interface{}
}

// NewCapture starts a capture document builder.
func NewCapture(sessionID string) *CaptureBuilder {
	return &CaptureBuilder{
		SessionID: sessionID,
		StartTime: 1700000000,
		AgentName: "test-agent",
	}
}

// AddTurn appends one turn with the given requests and responses.
func (b *CaptureBuilder) AddTurn(requests, responses []map[string]interface{}) *CaptureBuilder {
	b.Turns = append(b.Turns, CaptureTurnFixture{Requests: requests, Responses: responses})
	return b
}

// Build serializes the capture document to JSON.
func (b *CaptureBuilder) Build(t *testing.T) []byte {
	t.Helper()

	turns := make([]map[string]interface{}, 0, len(b.Turns))
	for i, turn := range b.Turns {
		entry := map[string]interface{}{
			"turn_number": i,
			"requests":    turn.Requests,
		}
		if turn.Responses != nil {
			entry["responses"] = turn.Responses
		}
		turns = append(turns, entry)
	}

	doc := map[string]interface{}{
		"session_id": b.SessionID,
		"start_time": b.StartTime,
		"agent_name": b.AgentName,
		"turns":      turns,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal capture fixture: %v", err)
	}
	return data
}

// GeminiRequest builds a Gemini-protocol request object.
func GeminiRequest(requestID string, timestamp float64, userText string) map[string]interface{} {
	return map[string]interface{}{
		"request_id": requestID,
		"timestamp":  timestamp,
		"url":        "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent",
		"method":     "POST",
		"model":      "gemini-2.0-flash",
		"contents": []map[string]interface{}{
			{
				"role":  "user",
				"parts": []map[string]interface{}{{"text": userText}},
			},
		},
	}
}

// GeminiResponse builds a Gemini-protocol 200 response object.
func GeminiResponse(requestID string, timestamp float64, text string) map[string]interface{} {
	return map[string]interface{}{
		"request_id":  requestID,
		"timestamp":   timestamp,
		"status_code": 200,
		"duration_ms": 420,
		"raw_response": map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content": map[string]interface{}{
						"role":  "model",
						"parts": []map[string]interface{}{{"text": text}},
					},
					"finishReason": "STOP",
				},
			},
			"usageMetadata": map[string]interface{}{
				"promptTokenCount":     12,
				"candidatesTokenCount": 34,
				"totalTokenCount":      46,
			},
		},
	}
}

// ErrorResponse builds a failed response object with the given status and
// provider error body.
func ErrorResponse(requestID string, timestamp float64, statusCode int, body map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"request_id":   requestID,
		"timestamp":    timestamp,
		"status_code":  statusCode,
		"raw_response": body,
	}
}

// RequestIDs generates n distinct request ids with a common prefix.
func RequestIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i)
	}
	return ids
}
