package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"
)

// memDBCounter gives each in-memory database a unique name so tests stay
// isolated while every pooled connection still sees the same schema.
var memDBCounter atomic.Int64

// CreateInMemoryDB creates an in-memory SQLite database with the capture
// schema applied, for testing
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", memDBCounter.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	if _, err := db.Exec(captureSchema); err != nil {
		db.Close()
		t.Fatalf("Failed to apply schema: %v", err)
	}

	return db
}

// captureSchema mirrors the importer schema so store tests don't need a
// file-backed database.
const captureSchema = `
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
`
