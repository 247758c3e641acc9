package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Import statuses
const (
	StatusImported = "imported"
	StatusSkipped  = "skipped"
)

// ImportResult summarizes one session import.
type ImportResult struct {
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	Turns        int    `json:"turns"`
	Interactions int    `json:"interactions"`
	Dropped      int    `json:"dropped,omitempty"`
}

// BatchResult summarizes a directory import. Per-file failures are collected
// here instead of aborting the remaining files.
type BatchResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer drives the decomposition pipeline over capture documents and
// performs the atomic session write.
type Importer struct {
	store *Store
	cfg   *Config
}

// NewImporter creates an Importer over a store.
func NewImporter(store *Store, cfg *Config) *Importer {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Importer{store: store, cfg: cfg}
}

// ImportSession validates and imports one capture document. Re-importing an
// existing session id is an idempotent skip. The whole session is written in
// one transaction; on any failure nothing is persisted.
func (imp *Importer) ImportSession(data []byte) (*ImportResult, error) {
	doc, err := ParseCapture(data)
	if err != nil {
		return nil, err
	}

	exists, err := imp.store.SessionExists(doc.SessionID)
	if err != nil {
		return nil, err
	}
	if exists {
		LogDebug("session %s already imported, skipping", doc.SessionID)
		return &ImportResult{SessionID: doc.SessionID, Status: StatusSkipped}, nil
	}

	items := doc.FlattenInteractions()
	for i := range items {
		if items[i].Type == InteractionRequest {
			items[i].Bookkeeping = imp.isBookkeeping(items[i].URL)
		}
	}

	assigned, warnings := AssignTurns(items, imp.cfg.Algorithm)
	for _, w := range warnings {
		w.SessionID = doc.SessionID
		LogWarn("%s", w.Error())
	}

	interactions := imp.buildInteractions(assigned)
	session := buildSession(doc, interactions)

	if err := imp.store.InsertSession(session, interactions); err != nil {
		return nil, err
	}

	LogInfo("imported session %s: %d turns, %d interactions",
		session.ID, session.TotalTurns, session.TotalInteractions)

	return &ImportResult{
		SessionID:    doc.SessionID,
		Status:       StatusImported,
		Turns:        session.TotalTurns,
		Interactions: session.TotalInteractions,
		Dropped:      len(warnings),
	}, nil
}

// ImportFile imports one capture file.
func (imp *Importer) ImportFile(path string) (*ImportResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read capture: %w", err)
	}
	result, err := imp.ImportSession(data)
	if ferr, ok := err.(*FormatError); ok {
		ferr.Path = path
	}
	return result, err
}

// ImportDirectory imports every *.json file in a directory, sequentially.
// A malformed file or a panic inside the pipeline is recorded and the
// remaining files still run.
func (imp *Importer) ImportDirectory(dir string) *BatchResult {
	result := &BatchResult{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", dir, err))
		return result
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	for _, path := range files {
		imp.importOne(path, result)
	}
	return result
}

func (imp *Importer) importOne(path string, result *BatchResult) {
	defer func() {
		if r := recover(); r != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: panic: %v", path, r))
			LogError("panic importing %s: %v", path, r)
		}
	}()

	res, err := imp.ImportFile(path)
	if err != nil {
		result.Failed++
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", path, err))
		LogWarn("failed to import %s: %v", path, err)
		return
	}
	if res.Status == StatusSkipped {
		result.Skipped++
		return
	}
	result.Imported++
}

func (imp *Importer) isBookkeeping(url string) bool {
	for _, deny := range imp.cfg.URLDeny {
		if strings.Contains(url, deny) {
			return true
		}
	}
	if len(imp.cfg.URLAllow) > 0 {
		for _, allow := range imp.cfg.URLAllow {
			if strings.Contains(url, allow) {
				return false
			}
		}
		return true
	}
	return false
}

// buildInteractions runs the per-interaction decomposition. Interactions are
// processed strictly in the order established by the turn assigner; a
// response inherits the provider and protocol of the most recent request.
func (imp *Importer) buildInteractions(items []RawInteraction) []Interaction {
	interactions := make([]Interaction, 0, len(items))

	provider := ProviderUnknown
	protocol := ProtocolCustom

	for _, item := range items {
		in := Interaction{
			Type:        item.Type,
			Timestamp:   item.Timestamp,
			TurnNumber:  item.TurnNumber,
			Sequence:    item.Sequence,
			RequestID:   item.RequestID,
			Bookkeeping: item.Bookkeeping,
		}
		if item.Headers != nil {
			in.Headers = marshalJSONString(item.Headers)
		}

		if item.Type == InteractionRequest {
			provider, protocol = DetectProvider(item.URL, item.Payload)
			in.URL = item.URL
			in.Method = item.Method
			in.Model = item.Model
			in.Provider = provider
			in.Protocol = protocol
			in.Params = ExtractParameters(item.Payload, provider, protocol)
			in.Components = ExtractPromptComponents(item.Payload, provider, protocol)
			in.UserInput = userInputOf(in.Components)
			in.Content = in.UserInput
		} else {
			in.StatusCode = item.StatusCode
			in.DurationMS = item.DurationMS
			if detail := ClassifyError(item.Payload, item.StatusCode, provider); detail != nil {
				in.ErrorType = detail.Type
				in.ErrorMessage = detail.Message
				in.RetryAfter = detail.RetryAfter
			}
			in.Spans = ExtractResponseSpans(item.Payload, provider, protocol)
			applySpanSummary(&in)
		}

		interactions = append(interactions, in)
	}
	return interactions
}

// userInputOf pulls the current user input out of the component list.
func userInputOf(components []PromptComponent) string {
	for _, c := range components {
		if c.Source == SourceUserInput {
			return c.Content
		}
	}
	for i := len(components) - 1; i >= 0; i-- {
		if components[i].ComponentType == ComponentUser && components[i].Content != "" {
			return components[i].Content
		}
	}
	return ""
}

// applySpanSummary lifts span-level detail onto the interaction row: the
// joined text content, the finish reason, and normalized token counts.
func applySpanSummary(in *Interaction) {
	var texts []string
	for _, sp := range in.Spans {
		if in.FinishReason == "" {
			in.FinishReason = sp.FinishReason
		}
		switch sp.SpanType {
		case SpanText, SpanCodeBlock:
			texts = append(texts, sp.Content)
		case SpanUsageMetadata:
			var usage map[string]int64
			if err := json.Unmarshal([]byte(sp.ContentJSON), &usage); err == nil {
				prompt := usage["prompt_tokens"]
				completion := usage["completion_tokens"]
				total := usage["total_tokens"]
				in.PromptTokens = &prompt
				in.CompletionTokens = &completion
				in.TotalTokens = &total
			}
		}
	}
	in.Content = strings.Join(texts, "\n")
}

// buildSession assembles the session row from the capture header and the
// decomposed interactions.
func buildSession(doc *CaptureDocument, interactions []Interaction) *Session {
	session := &Session{
		ID:                doc.SessionID,
		Title:             doc.Title,
		StartTime:         doc.StartTime,
		EndTime:           doc.EndTime,
		Status:            doc.Status,
		TotalInteractions: len(interactions),
	}
	if session.Title == "" {
		session.Title = doc.AgentName
	}
	if session.Status == "" {
		session.Status = "completed"
	}

	turns := make(map[float64]bool)
	lastTS := doc.StartTime
	for _, in := range interactions {
		turns[in.TurnNumber] = true
		if in.Timestamp > lastTS {
			lastTS = in.Timestamp
		}
		if session.PrimaryModel == "" && in.Model != "" {
			session.PrimaryModel = in.Model
		}
		if session.PrimaryProvider == "" && in.Provider != "" && in.Provider != ProviderUnknown {
			session.PrimaryProvider = in.Provider
		}
	}
	session.TotalTurns = len(turns)

	if session.EndTime == 0 && lastTS > doc.StartTime {
		session.EndTime = lastTS
	}
	if session.EndTime > session.StartTime {
		session.DurationSeconds = session.EndTime - session.StartTime
	}

	metadata := map[string]interface{}{}
	if doc.AgentName != "" {
		metadata["agent_name"] = doc.AgentName
	}
	if len(metadata) > 0 {
		session.Metadata = marshalJSONString(metadata)
	}

	return session
}
