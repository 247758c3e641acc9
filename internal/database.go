package internal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	title TEXT,
	start_time REAL NOT NULL,
	end_time REAL,
	duration_seconds REAL,
	status TEXT,
	total_turns INTEGER NOT NULL DEFAULT 0,
	total_interactions INTEGER NOT NULL DEFAULT 0,
	primary_model TEXT,
	primary_provider TEXT,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS interactions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	timestamp REAL NOT NULL,
	turn_number REAL NOT NULL,
	sequence INTEGER NOT NULL,
	request_id TEXT,
	content TEXT,
	headers TEXT,
	url TEXT,
	method TEXT,
	model TEXT,
	provider TEXT,
	protocol TEXT,
	user_input TEXT,
	temperature REAL,
	max_tokens INTEGER,
	top_p REAL,
	top_k INTEGER,
	frequency_penalty REAL,
	presence_penalty REAL,
	stop_sequences TEXT,
	other_params TEXT,
	status_code INTEGER,
	duration_ms REAL,
	finish_reason TEXT,
	prompt_tokens INTEGER,
	completion_tokens INTEGER,
	total_tokens INTEGER,
	error_type TEXT,
	error_message TEXT,
	retry_after INTEGER,
	bookkeeping INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_interactions_session
	ON interactions(session_id, turn_number, sequence);

CREATE TABLE IF NOT EXISTS prompt_components (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	interaction_id INTEGER NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
	component_type TEXT NOT NULL,
	role TEXT,
	content TEXT,
	content_json TEXT,
	order_index INTEGER NOT NULL,
	token_count INTEGER NOT NULL DEFAULT 0,
	source TEXT
);

CREATE INDEX IF NOT EXISTS idx_components_interaction
	ON prompt_components(interaction_id, order_index);

CREATE TABLE IF NOT EXISTS response_spans (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	interaction_id INTEGER NOT NULL REFERENCES interactions(id) ON DELETE CASCADE,
	span_type TEXT NOT NULL,
	content TEXT,
	content_json TEXT,
	order_index INTEGER NOT NULL,
	stream_index INTEGER,
	event_time REAL,
	tool_name TEXT,
	tool_call_id TEXT,
	tool_input TEXT,
	tool_output TEXT,
	language TEXT,
	is_executable INTEGER NOT NULL DEFAULT 0,
	finish_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_spans_interaction
	ON response_spans(interaction_id, order_index);
`

// OpenDatabase opens (creating if needed) the capture database and applies
// the schema. Foreign keys are enabled so session deletes cascade.
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return db, nil
}
