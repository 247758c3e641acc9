package internal

import (
	"database/sql"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const sessionCacheSize = 64

// Store provides transactional persistence and queries for imported
// sessions. Assembled sessions are cached read-side in an LRU, invalidated
// on insert and delete.
type Store struct {
	db    *sql.DB
	cache *lru.Cache[string, *Session]
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) (*Store, error) {
	cache, err := lru.New[string, *Session](sessionCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &Store{db: db, cache: cache}, nil
}

// SessionExists reports whether a session id is already imported.
func (s *Store) SessionExists(sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return true, nil
}

// InsertSession writes a session and all of its interactions, components and
// spans inside one transaction. Any failure rolls back every row so a
// session is never partially persisted.
func (s *Store) InsertSession(session *Session, interactions []Interaction) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &PersistenceError{SessionID: session.ID, Op: "begin", Err: err}
	}

	if err := insertSessionTx(tx, session, interactions); err != nil {
		tx.Rollback()
		return &PersistenceError{SessionID: session.ID, Op: "insert", Err: err}
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return &PersistenceError{SessionID: session.ID, Op: "commit", Err: err}
	}

	s.cache.Remove(session.ID)
	return nil
}

func insertSessionTx(tx *sql.Tx, session *Session, interactions []Interaction) error {
	_, err := tx.Exec(`INSERT INTO sessions
		(id, title, start_time, end_time, duration_seconds, status,
		 total_turns, total_interactions, primary_model, primary_provider, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.Title, session.StartTime, session.EndTime,
		session.DurationSeconds, session.Status, session.TotalTurns,
		session.TotalInteractions, session.PrimaryModel, session.PrimaryProvider,
		session.Metadata)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	for i := range interactions {
		if err := insertInteractionTx(tx, session.ID, &interactions[i]); err != nil {
			return err
		}
	}
	return nil
}

func insertInteractionTx(tx *sql.Tx, sessionID string, in *Interaction) error {
	res, err := tx.Exec(`INSERT INTO interactions
		(session_id, type, timestamp, turn_number, sequence, request_id,
		 content, headers, url, method, model, provider, protocol, user_input,
		 temperature, max_tokens, top_p, top_k, frequency_penalty,
		 presence_penalty, stop_sequences, other_params,
		 status_code, duration_ms, finish_reason,
		 prompt_tokens, completion_tokens, total_tokens,
		 error_type, error_message, retry_after, bookkeeping)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, in.Type, in.Timestamp, in.TurnNumber, in.Sequence, in.RequestID,
		in.Content, in.Headers, in.URL, in.Method, in.Model, in.Provider,
		in.Protocol, in.UserInput,
		in.Params.Temperature, in.Params.MaxTokens, in.Params.TopP, in.Params.TopK,
		in.Params.FrequencyPenalty, in.Params.PresencePenalty,
		nullableJSON(in.Params.StopSequences), nullableJSON(in.Params.OtherParams),
		nullableInt(in.StatusCode), in.DurationMS, in.FinishReason,
		in.PromptTokens, in.CompletionTokens, in.TotalTokens,
		in.ErrorType, in.ErrorMessage, in.RetryAfter, boolToInt(in.Bookkeeping))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}

	interactionID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("interaction id: %w", err)
	}
	in.ID = interactionID
	in.SessionID = sessionID

	for j := range in.Components {
		c := &in.Components[j]
		c.InteractionID = interactionID
		_, err := tx.Exec(`INSERT INTO prompt_components
			(interaction_id, component_type, role, content, content_json,
			 order_index, token_count, source)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			interactionID, c.ComponentType, c.Role, c.Content, c.ContentJSON,
			c.OrderIndex, c.TokenCount, c.Source)
		if err != nil {
			return fmt.Errorf("insert component: %w", err)
		}
	}

	for j := range in.Spans {
		sp := &in.Spans[j]
		sp.InteractionID = interactionID
		_, err := tx.Exec(`INSERT INTO response_spans
			(interaction_id, span_type, content, content_json, order_index,
			 stream_index, event_time, tool_name, tool_call_id, tool_input,
			 tool_output, language, is_executable, finish_reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			interactionID, sp.SpanType, sp.Content, sp.ContentJSON, sp.OrderIndex,
			sp.StreamIndex, sp.EventTime, sp.ToolName, sp.ToolCallID,
			sp.ToolInput, sp.ToolOutput, sp.Language, boolToInt(sp.IsExecutable),
			sp.FinishReason)
		if err != nil {
			return fmt.Errorf("insert span: %w", err)
		}
	}

	return nil
}

// GetSession fetches a session row by id, via the LRU cache.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	if cached, ok := s.cache.Get(sessionID); ok {
		return cached, nil
	}

	row := s.db.QueryRow(`SELECT id, title, start_time,
		COALESCE(end_time, 0), COALESCE(duration_seconds, 0),
		COALESCE(status, ''), total_turns, total_interactions,
		COALESCE(primary_model, ''), COALESCE(primary_provider, ''),
		COALESCE(metadata, '')
		FROM sessions WHERE id = ?`, sessionID)

	var session Session
	err := row.Scan(&session.ID, &session.Title, &session.StartTime,
		&session.EndTime, &session.DurationSeconds, &session.Status,
		&session.TotalTurns, &session.TotalInteractions,
		&session.PrimaryModel, &session.PrimaryProvider, &session.Metadata)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session: %w", err)
	}

	s.cache.Add(sessionID, &session)
	return &session, nil
}

// ListSessions returns all session rows ordered by start time.
func (s *Store) ListSessions() ([]*Session, error) {
	rows, err := s.db.Query(`SELECT id, title, start_time,
		COALESCE(end_time, 0), COALESCE(duration_seconds, 0),
		COALESCE(status, ''), total_turns, total_interactions,
		COALESCE(primary_model, ''), COALESCE(primary_provider, ''),
		COALESCE(metadata, '')
		FROM sessions ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var session Session
		err := rows.Scan(&session.ID, &session.Title, &session.StartTime,
			&session.EndTime, &session.DurationSeconds, &session.Status,
			&session.TotalTurns, &session.TotalInteractions,
			&session.PrimaryModel, &session.PrimaryProvider, &session.Metadata)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// GetInteractions returns all interactions of a session in (turn, sequence)
// order, with their components and spans attached.
func (s *Store) GetInteractions(sessionID string) ([]Interaction, error) {
	return s.queryInteractions(
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE session_id = ? ORDER BY turn_number, sequence`, sessionID)
}

// GetTurnInteractions returns one turn's interactions in sequence order.
func (s *Store) GetTurnInteractions(sessionID string, turnNumber float64) ([]Interaction, error) {
	return s.queryInteractions(
		`SELECT `+interactionColumns+` FROM interactions
		 WHERE session_id = ? AND turn_number = ? ORDER BY sequence`,
		sessionID, turnNumber)
}

// DeleteSession removes a session; interactions, components and spans go
// with it through the foreign-key cascade.
func (s *Store) DeleteSession(sessionID string) error {
	if _, err := s.db.Exec("DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return &PersistenceError{SessionID: sessionID, Op: "delete", Err: err}
	}
	s.cache.Remove(sessionID)
	return nil
}

const interactionColumns = `id, session_id, type, timestamp, turn_number, sequence,
	COALESCE(request_id, ''), COALESCE(content, ''), COALESCE(headers, ''),
	COALESCE(url, ''), COALESCE(method, ''), COALESCE(model, ''),
	COALESCE(provider, ''), COALESCE(protocol, ''), COALESCE(user_input, ''),
	temperature, max_tokens, top_p, top_k, frequency_penalty, presence_penalty,
	COALESCE(stop_sequences, ''), COALESCE(other_params, ''),
	status_code, COALESCE(duration_ms, 0), COALESCE(finish_reason, ''),
	prompt_tokens, completion_tokens, total_tokens,
	COALESCE(error_type, ''), COALESCE(error_message, ''), retry_after, bookkeeping`

func (s *Store) queryInteractions(query string, args ...interface{}) ([]Interaction, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var interactions []Interaction
	for rows.Next() {
		var in Interaction
		var stopSeqs, otherParams string
		var statusCode sql.NullInt64
		var bookkeeping int
		err := rows.Scan(&in.ID, &in.SessionID, &in.Type, &in.Timestamp,
			&in.TurnNumber, &in.Sequence, &in.RequestID, &in.Content, &in.Headers,
			&in.URL, &in.Method, &in.Model, &in.Provider, &in.Protocol,
			&in.UserInput,
			&in.Params.Temperature, &in.Params.MaxTokens, &in.Params.TopP,
			&in.Params.TopK, &in.Params.FrequencyPenalty, &in.Params.PresencePenalty,
			&stopSeqs, &otherParams,
			&statusCode, &in.DurationMS, &in.FinishReason,
			&in.PromptTokens, &in.CompletionTokens, &in.TotalTokens,
			&in.ErrorType, &in.ErrorMessage, &in.RetryAfter, &bookkeeping)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if statusCode.Valid {
			in.StatusCode = int(statusCode.Int64)
		}
		in.Bookkeeping = bookkeeping != 0
		unmarshalJSONInto(stopSeqs, &in.Params.StopSequences)
		unmarshalJSONInto(otherParams, &in.Params.OtherParams)

		if err := s.loadChildren(&in); err != nil {
			return nil, err
		}
		interactions = append(interactions, in)
	}
	return interactions, rows.Err()
}

func (s *Store) loadChildren(in *Interaction) error {
	rows, err := s.db.Query(`SELECT id, interaction_id, component_type,
		COALESCE(role, ''), COALESCE(content, ''), COALESCE(content_json, ''),
		order_index, token_count, COALESCE(source, '')
		FROM prompt_components WHERE interaction_id = ? ORDER BY order_index`, in.ID)
	if err != nil {
		return fmt.Errorf("query components: %w", err)
	}
	for rows.Next() {
		var c PromptComponent
		if err := rows.Scan(&c.ID, &c.InteractionID, &c.ComponentType, &c.Role,
			&c.Content, &c.ContentJSON, &c.OrderIndex, &c.TokenCount, &c.Source); err != nil {
			rows.Close()
			return fmt.Errorf("scan component: %w", err)
		}
		in.Components = append(in.Components, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = s.db.Query(`SELECT id, interaction_id, span_type,
		COALESCE(content, ''), COALESCE(content_json, ''), order_index,
		stream_index, COALESCE(event_time, 0), COALESCE(tool_name, ''),
		COALESCE(tool_call_id, ''), COALESCE(tool_input, ''),
		COALESCE(tool_output, ''), COALESCE(language, ''), is_executable,
		COALESCE(finish_reason, '')
		FROM response_spans WHERE interaction_id = ? ORDER BY order_index`, in.ID)
	if err != nil {
		return fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sp ResponseSpan
		var executable int
		if err := rows.Scan(&sp.ID, &sp.InteractionID, &sp.SpanType, &sp.Content,
			&sp.ContentJSON, &sp.OrderIndex, &sp.StreamIndex, &sp.EventTime,
			&sp.ToolName, &sp.ToolCallID, &sp.ToolInput, &sp.ToolOutput,
			&sp.Language, &executable, &sp.FinishReason); err != nil {
			return fmt.Errorf("scan span: %w", err)
		}
		sp.IsExecutable = executable != 0
		in.Spans = append(in.Spans, sp)
	}
	return rows.Err()
}

func nullableJSON(v interface{}) interface{} {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil
		}
	case map[string]interface{}:
		if len(val) == 0 {
			return nil
		}
	}
	return marshalJSONString(v)
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unmarshalJSONInto(data string, v interface{}) {
	if data == "" {
		return
	}
	_ = json.Unmarshal([]byte(data), v)
}
