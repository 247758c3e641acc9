package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	err := &FormatError{Reason: "missing required field: session_id"}

	msg := err.Error()
	if !strings.Contains(msg, "format error") {
		t.Errorf("FormatError.Error() should contain 'format error', got: %q", msg)
	}
	if !strings.Contains(msg, "session_id") {
		t.Errorf("FormatError.Error() should contain the reason, got: %q", msg)
	}

	withPath := &FormatError{Path: "/captures/a.json", Reason: "not valid JSON"}
	if !strings.Contains(withPath.Error(), "/captures/a.json") {
		t.Errorf("FormatError.Error() should contain the path, got: %q", withPath.Error())
	}
}

func TestPersistenceError(t *testing.T) {
	originalErr := errors.New("database is locked")
	err := &PersistenceError{
		SessionID: "sess-1",
		Op:        "commit",
		Err:       originalErr,
	}

	msg := err.Error()
	if !strings.Contains(msg, "persistence error") {
		t.Errorf("PersistenceError.Error() should contain 'persistence error', got: %q", msg)
	}
	if !strings.Contains(msg, "sess-1") {
		t.Errorf("PersistenceError.Error() should contain the session id, got: %q", msg)
	}
	if !strings.Contains(msg, "commit") {
		t.Errorf("PersistenceError.Error() should contain the op, got: %q", msg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("PersistenceError.Unwrap() should return original error")
	}
}

func TestPartialDataWarning(t *testing.T) {
	warn := &PartialDataWarning{
		SessionID: "sess-2",
		Timestamp: 1700000005,
		Type:      InteractionResponse,
	}

	msg := warn.Error()
	if !strings.Contains(msg, "sess-2") {
		t.Errorf("PartialDataWarning.Error() should contain the session id, got: %q", msg)
	}
	if !strings.Contains(msg, "response") {
		t.Errorf("PartialDataWarning.Error() should contain the type, got: %q", msg)
	}
	if !strings.Contains(msg, "request_id") {
		t.Errorf("PartialDataWarning.Error() should name the missing field, got: %q", msg)
	}
}
