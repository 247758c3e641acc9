package internal

import "fmt"

// FormatError indicates a capture document that does not match the canonical
// or legacy-convertible shape. Nothing is written when it is returned.
type FormatError struct {
	Path   string // source file, may be empty for in-memory imports
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("format error: %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("format error: %s", e.Reason)
}

// PersistenceError indicates a transaction failure during insert. The
// session's rows are rolled back before it is returned.
type PersistenceError struct {
	SessionID string
	Op        string // "insert", "commit"
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] %s: %v", e.SessionID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// PartialDataWarning records an interaction dropped by the request-id
// grouping assigner because it carried no request_id. The rest of the
// session still imports; this is a documented data-loss policy, not a
// fatal error.
type PartialDataWarning struct {
	SessionID string
	Timestamp float64
	Type      string
}

func (e *PartialDataWarning) Error() string {
	return fmt.Sprintf("partial data [%s]: dropped %s at %v: missing request_id",
		e.SessionID, e.Type, e.Timestamp)
}
