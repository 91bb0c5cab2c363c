package core

import (
	"time"

	"github.com/google/uuid"
)

// Conversational roles carried by context entries and model messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry types classify context entries beyond their role. Thought entries are
// internal reasoning and are excluded from model-visible message projections.
const (
	EntryMessage    = "message"
	EntryThought    = "thought"
	EntryToolResult = "tool_result"
	EntryError      = "error"
	EntrySystem     = "system"
)

// ContextEntry is a single immutable record in a session's conversation log.
// Once appended to a session.Store it is never modified; compression may
// archive it verbatim but never rewrites it.
type ContextEntry struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	EntryType string         `json:"entry_type"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewContextEntry constructs an entry stamped with the current UTC time.
func NewContextEntry(role, content, entryType string) ContextEntry {
	return ContextEntry{
		Role:      role,
		Content:   content,
		EntryType: entryType,
		Timestamp: time.Now().UTC(),
	}
}

// Message is the flat role/content pair handed to model providers. It is the
// projection of a ContextEntry with bookkeeping fields stripped.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewID generates a unique identifier for sessions, sub-executions and events.
func NewID() string { return uuid.NewString() }

// ShortID returns an 8-character identifier suitable for embedding in
// session directory names and sub-execution labels.
func ShortID() string { return uuid.NewString()[:8] }
