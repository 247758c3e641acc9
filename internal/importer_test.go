package internal

import (
	"strings"
	"testing"

	"github.com/iksnae/llmcapture/testutil"
)

func newTestImporter(t *testing.T) (*Importer, *Store) {
	t.Helper()
	store := newTestStore(t)
	return NewImporter(store, nil), store
}

func TestImportSession(t *testing.T) {
	imp, store := newTestImporter(t)

	data := testutil.NewCapture("imp-1").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1700000001, "hello")},
			[]map[string]interface{}{testutil.GeminiResponse("r1", 1700000002, "hi there")},
		).
		Build(t)

	result, err := imp.ImportSession(data)
	if err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}
	if result.Status != StatusImported {
		t.Errorf("Status = %q, want imported", result.Status)
	}
	if result.Turns != 1 || result.Interactions != 2 {
		t.Errorf("result = %+v, want 1 turn, 2 interactions", result)
	}

	session, err := store.GetSession("imp-1")
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if session == nil {
		t.Fatal("session not persisted")
	}
	if session.PrimaryProvider != ProviderGemini || session.PrimaryModel != "gemini-2.0-flash" {
		t.Errorf("session = %+v", session)
	}
	// Title falls back to the agent name.
	if session.Title != "test-agent" {
		t.Errorf("Title = %q, want test-agent", session.Title)
	}

	interactions, err := store.GetInteractions("imp-1")
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}
	if len(interactions) != 2 {
		t.Fatalf("len(interactions) = %d, want 2", len(interactions))
	}

	req := interactions[0]
	if req.Provider != ProviderGemini || req.Protocol != ProtocolGemini {
		t.Errorf("request detection = %q/%q", req.Provider, req.Protocol)
	}
	if req.UserInput != "hello" {
		t.Errorf("UserInput = %q, want hello", req.UserInput)
	}
	if len(req.Components) == 0 {
		t.Error("request has no components")
	}

	resp := interactions[1]
	if resp.FinishReason != "STOP" {
		t.Errorf("FinishReason = %q, want STOP", resp.FinishReason)
	}
	if resp.Content != "hi there" {
		t.Errorf("Content = %q, want hi there", resp.Content)
	}
	if resp.PromptTokens == nil || *resp.PromptTokens != 12 {
		t.Errorf("PromptTokens = %v, want 12", resp.PromptTokens)
	}
	if resp.TotalTokens == nil || *resp.TotalTokens != 46 {
		t.Errorf("TotalTokens = %v, want 46", resp.TotalTokens)
	}
	if len(resp.Spans) == 0 {
		t.Error("response has no spans")
	}
}

func TestImportSessionIdempotent(t *testing.T) {
	imp, store := newTestImporter(t)

	data := testutil.NewCapture("idem-1").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1700000001, "hi")},
			[]map[string]interface{}{testutil.GeminiResponse("r1", 1700000002, "hello")},
		).
		Build(t)

	if _, err := imp.ImportSession(data); err != nil {
		t.Fatalf("first ImportSession() error = %v", err)
	}

	result, err := imp.ImportSession(data)
	if err != nil {
		t.Fatalf("second ImportSession() error = %v", err)
	}
	if result.Status != StatusSkipped {
		t.Errorf("second import Status = %q, want skipped", result.Status)
	}

	interactions, err := store.GetInteractions("idem-1")
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}
	if len(interactions) != 2 {
		t.Errorf("len(interactions) = %d after re-import, want 2", len(interactions))
	}
}

func TestImportSessionDropsIDLessInteractions(t *testing.T) {
	imp, store := newTestImporter(t)

	noID := testutil.GeminiRequest("", 1700000005, "orphan")
	delete(noID, "request_id")

	data := testutil.NewCapture("drop-1").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1700000001, "hi")},
			[]map[string]interface{}{testutil.GeminiResponse("r1", 1700000002, "hello")},
		).
		AddTurn([]map[string]interface{}{noID}, nil).
		Build(t)

	result, err := imp.ImportSession(data)
	if err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}
	if result.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", result.Dropped)
	}
	if result.Interactions != 2 {
		t.Errorf("Interactions = %d, want 2", result.Interactions)
	}

	interactions, _ := store.GetInteractions("drop-1")
	for _, in := range interactions {
		if in.RequestID == "" {
			t.Error("id-less interaction was persisted")
		}
	}
}

func TestImportSessionBookkeepingTagging(t *testing.T) {
	imp, store := newTestImporter(t)

	bookkeeping := testutil.GeminiRequest("r0", 1700000000.5, "")
	bookkeeping["url"] = "https://cloudcode-pa.googleapis.com/v1internal:loadCodeAssist"

	data := testutil.NewCapture("book-1").
		AddTurn([]map[string]interface{}{bookkeeping}, nil).
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1700000001, "hi")},
			[]map[string]interface{}{testutil.GeminiResponse("r1", 1700000002, "hello")},
		).
		Build(t)

	if _, err := imp.ImportSession(data); err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}

	interactions, err := store.GetInteractions("book-1")
	if err != nil {
		t.Fatalf("GetInteractions() error = %v", err)
	}

	tagged := 0
	for _, in := range interactions {
		if in.Bookkeeping {
			tagged++
			if !strings.Contains(in.URL, "loadCodeAssist") {
				t.Errorf("wrong interaction tagged: %q", in.URL)
			}
		}
	}
	if tagged != 1 {
		t.Errorf("%d interactions tagged bookkeeping, want 1", tagged)
	}
}

func TestImportSessionSequenceContiguity(t *testing.T) {
	imp, store := newTestImporter(t)

	data := testutil.NewCapture("seq-1").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("a", 1, "one")},
			[]map[string]interface{}{testutil.GeminiResponse("a", 2, "1")},
		).
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("b", 3, "two")},
			[]map[string]interface{}{testutil.GeminiResponse("b", 4, "2")},
		).
		Build(t)

	if _, err := imp.ImportSession(data); err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}

	byTurn := make(map[float64][]int)
	interactions, _ := store.GetInteractions("seq-1")
	for _, in := range interactions {
		byTurn[in.TurnNumber] = append(byTurn[in.TurnNumber], in.Sequence)
	}
	for turn, seqs := range byTurn {
		for i, seq := range seqs {
			if seq != i {
				t.Errorf("turn %v sequences = %v, want contiguous from 0", turn, seqs)
				break
			}
		}
	}
}

func TestImportSessionError(t *testing.T) {
	imp, store := newTestImporter(t)

	errBody := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    429,
			"status":  "RESOURCE_EXHAUSTED",
			"message": "quota exceeded",
			"details": []map[string]interface{}{
				{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "60s"},
			},
		},
	}

	data := testutil.NewCapture("err-1").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1, "hi")},
			[]map[string]interface{}{testutil.ErrorResponse("r1", 2, 429, errBody)},
		).
		Build(t)

	if _, err := imp.ImportSession(data); err != nil {
		t.Fatalf("ImportSession() error = %v", err)
	}

	interactions, _ := store.GetInteractions("err-1")
	if len(interactions) != 2 {
		t.Fatalf("len(interactions) = %d, want 2", len(interactions))
	}
	resp := interactions[1]
	if resp.ErrorType != ErrorRateLimit {
		t.Errorf("ErrorType = %q, want rate_limit", resp.ErrorType)
	}
	if resp.ErrorMessage != "quota exceeded" {
		t.Errorf("ErrorMessage = %q", resp.ErrorMessage)
	}
	if resp.RetryAfter == nil || *resp.RetryAfter != 60 {
		t.Errorf("RetryAfter = %v, want 60", resp.RetryAfter)
	}
}

func TestImportSessionInvalidDocument(t *testing.T) {
	imp, _ := newTestImporter(t)

	_, err := imp.ImportSession([]byte(`{"no_session": true}`))
	if err == nil {
		t.Fatal("ImportSession() error = nil, want FormatError")
	}
	if _, ok := err.(*FormatError); !ok {
		t.Errorf("error type = %T, want *FormatError", err)
	}
}

func TestImportDirectory(t *testing.T) {
	imp, _ := newTestImporter(t)
	dir := t.TempDir()

	good := testutil.NewCapture("dir-good").
		AddTurn(
			[]map[string]interface{}{testutil.GeminiRequest("r1", 1, "hi")},
			[]map[string]interface{}{testutil.GeminiResponse("r1", 2, "hello")},
		).
		Build(t)
	testutil.WriteCaptureFile(t, dir, "a_good.json", good)
	testutil.WriteCaptureFile(t, dir, "b_bad.json", []byte("{not json"))
	testutil.WriteCaptureFile(t, dir, "c_dup.json", good)
	testutil.WriteCaptureFile(t, dir, "ignored.txt", []byte("skip me"))

	result := imp.ImportDirectory(dir)
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (duplicate session id)", result.Skipped)
	}
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1 (malformed file)", result.Failed)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "b_bad.json") {
		t.Errorf("Errors = %v", result.Errors)
	}
}

func TestImportDirectoryMissing(t *testing.T) {
	imp, _ := newTestImporter(t)
	result := imp.ImportDirectory("/nonexistent/path")
	if result.Failed != 1 {
		t.Errorf("Failed = %d, want 1", result.Failed)
	}
}

func TestIsBookkeeping(t *testing.T) {
	imp := NewImporter(nil, &Config{
		Algorithm: AlgorithmRequestID,
		URLAllow:  []string{"generateContent"},
		URLDeny:   []string{"countTokens"},
	})

	tests := []struct {
		url  string
		want bool
	}{
		{"https://x.googleapis.com/v1:countTokens", true},
		{"https://x.googleapis.com/v1:generateContent", false},
		{"https://x.googleapis.com/v1:listModels", true}, // not in the allow list
	}
	for _, tt := range tests {
		if got := imp.isBookkeeping(tt.url); got != tt.want {
			t.Errorf("isBookkeeping(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}
