package session

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/logging"
)

// Options configure a Store.
type Options struct {
	// MaxContentLength is the compression ceiling: when the summed content
	// length of all live entries exceeds it, CompressIfNeeded archives the
	// middle of the log.
	MaxContentLength int
	// KeepRecent is the number of most recent entries preserved by
	// compression alongside the system entries.
	KeepRecent int
	// Dir is the session-unique directory for durable state. Empty disables
	// persistence (used by short-lived sub-execution stores).
	Dir string
	// MinSaveInterval debounces durable serialization under rapid mutation.
	MinSaveInterval time.Duration
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Store is a single session's context store. Safe for concurrent use.
type Store struct {
	id     string
	logger logging.Logger

	mu              sync.Mutex
	entries         []core.ContextEntry
	goals           []string
	shared          map[string]any
	lastUserRequest string

	maxContentLength int
	keepRecent       int

	dir             string
	minSaveInterval time.Duration
	lastSave        time.Time
	dirty           bool
}

// NewStore creates a store identified by id. When a directory is configured,
// a previously serialized entry log found there is restored.
func NewStore(id string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{
		MaxContentLength: 8000,
		KeepRecent:       10,
		MinSaveInterval:  500 * time.Millisecond,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Store{
		id:               id,
		logger:           opts.Logger,
		shared:           map[string]any{},
		maxContentLength: opts.MaxContentLength,
		keepRecent:       opts.KeepRecent,
		dir:              opts.Dir,
		minSaveInterval:  opts.MinSaveInterval,
	}
	if s.dir != "" {
		if err := s.initDir(); err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		s.lastSave = time.Now()
	}
	return s, nil
}

// ID returns the unique store identifier.
func (s *Store) ID() string { return s.id }

// AppendSystem appends a system entry. The first system entry of a session is
// the system prompt; compression never evicts system entries.
func (s *Store) AppendSystem(content string) {
	s.append(core.NewContextEntry(core.RoleSystem, content, core.EntrySystem))
}

// AppendUser appends a user request entry and remembers it as the most recent
// user request for snapshots.
func (s *Store) AppendUser(content string) {
	s.mu.Lock()
	s.lastUserRequest = content
	s.mu.Unlock()
	s.append(core.NewContextEntry(core.RoleUser, content, core.EntryMessage))
}

// AppendAssistant appends an assistant message entry.
func (s *Store) AppendAssistant(content string) {
	s.append(core.NewContextEntry(core.RoleAssistant, content, core.EntryMessage))
}

// AppendThought appends an internal reasoning entry. Thoughts are kept in the
// log but excluded from model-visible messages.
func (s *Store) AppendThought(reasoning string) {
	s.append(core.NewContextEntry(core.RoleAssistant, "[THOUGHT] "+reasoning, core.EntryThought))
}

// AppendToolResult appends a tool outcome. Errors are additionally journaled
// durably and are never discarded.
func (s *Store) AppendToolResult(toolName, result string, isError bool) {
	entryType := core.EntryToolResult
	if isError {
		entryType = core.EntryError
	}
	entry := core.NewContextEntry(core.RoleAssistant, fmt.Sprintf("[%s] %s", toolName, result), entryType)
	entry.Metadata = map[string]any{"tool_name": toolName, "is_error": isError}
	s.append(entry)
	if isError {
		s.journalError(toolName, result)
	}
}

func (s *Store) append(entry core.ContextEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.dirty = true
	s.mu.Unlock()
	s.maybeSave()
}

// SetGoals replaces the goals side channel. Goals are concatenated to the end
// of every model read so recency bias keeps the active goal in attention.
func (s *Store) SetGoals(goals []string) {
	s.mu.Lock()
	s.goals = append([]string(nil), goals...)
	s.dirty = true
	s.mu.Unlock()
	s.maybeSave()
}

// Goals returns a copy of the current goals.
func (s *Store) Goals() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.goals...)
}

// SetShared writes a shared-memory key used for cross-executor signaling.
func (s *Store) SetShared(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shared[key] = value
}

// Shared reads a shared-memory key.
func (s *Store) Shared(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.shared[key]
	return v, ok
}

// SharedBool reads a shared-memory key as a boolean flag.
func (s *Store) SharedBool(key string) bool {
	v, ok := s.Shared(key)
	b, isBool := v.(bool)
	return ok && isBool && b
}

// Messages projects the store into model-visible messages: system entries
// first in append order, then non-system entries in append order (thoughts
// excluded), then an optional synthesized goals message last.
func (s *Store) Messages(includeGoals bool) []core.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]core.Message, 0, len(s.entries)+1)
	for _, e := range s.entries {
		if e.EntryType == core.EntrySystem {
			messages = append(messages, core.Message{Role: e.Role, Content: e.Content})
		}
	}
	for _, e := range s.entries {
		if e.EntryType == core.EntrySystem || e.EntryType == core.EntryThought {
			continue
		}
		messages = append(messages, core.Message{Role: e.Role, Content: e.Content})
	}
	if includeGoals && len(s.goals) > 0 {
		var b strings.Builder
		b.WriteString("# Current Goals\n\n")
		for i, g := range s.goals {
			fmt.Fprintf(&b, "%d. %s\n", i+1, g)
		}
		b.WriteString("\nKeep these goals in mind.")
		messages = append(messages, core.Message{Role: core.RoleSystem, Content: b.String()})
	}
	return messages
}

// Entries returns a defensive copy of the live entry log.
func (s *Store) Entries() []core.ContextEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ContextEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of live entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// ContentLength returns the summed content length of all live entries.
func (s *Store) ContentLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contentLengthLocked()
}

func (s *Store) contentLengthLocked() int {
	total := 0
	for _, e := range s.entries {
		total += len(e.Content)
	}
	return total
}

// CompressIfNeeded archives the middle of the log when the total content
// length exceeds the ceiling: all system entries and the most recent
// KeepRecent entries survive; everything strictly between is serialized
// verbatim to a timestamped archive file and dropped. One-way; archived
// entries are never auto-restored. A no-op when under the ceiling.
func (s *Store) CompressIfNeeded() (archived int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contentLengthLocked() <= s.maxContentLength {
		return 0, nil
	}

	var system, rest []core.ContextEntry
	for _, e := range s.entries {
		if e.EntryType == core.EntrySystem {
			system = append(system, e)
		} else {
			rest = append(rest, e)
		}
	}
	if len(rest) <= s.keepRecent {
		return 0, nil
	}

	old := rest[:len(rest)-s.keepRecent]
	recent := rest[len(rest)-s.keepRecent:]

	if s.dir != "" {
		if err := s.archive(old); err != nil {
			return 0, err
		}
	}

	s.entries = append(append([]core.ContextEntry(nil), system...), recent...)
	s.dirty = true
	s.logger.Info("session.compressed", "session_id", s.id, "archived", len(old), "live", len(s.entries))
	return len(old), nil
}

// Snapshot is the only state allowed to seed a child store. It crosses the
// parent→child boundary as plain data; nothing flows back.
type Snapshot struct {
	Goals           []string            `json:"goals"`
	RecentEntries   []core.ContextEntry `json:"recent_entries"`
	SharedMemory    map[string]any      `json:"shared_memory"`
	LastUserRequest string              `json:"last_user_request"`
}

// Snapshot captures goals, the last ten entries, a copy of shared memory and
// the most recent user request.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	const recentWindow = 10
	start := len(s.entries) - recentWindow
	if start < 0 {
		start = 0
	}
	recent := make([]core.ContextEntry, len(s.entries)-start)
	copy(recent, s.entries[start:])

	shared := make(map[string]any, len(s.shared))
	for k, v := range s.shared {
		shared[k] = v
	}

	return Snapshot{
		Goals:           append([]string(nil), s.goals...),
		RecentEntries:   recent,
		SharedMemory:    shared,
		LastUserRequest: s.lastUserRequest,
	}
}

// SeedSnapshot primes a freshly created child store from a parent snapshot:
// goals, shared memory, the last user request, and the parent's recent
// entries as the opening of the child log. Only the snapshot's plain data is
// copied; the parent store itself is never reachable from the child.
func (s *Store) SeedSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append([]string(nil), snap.Goals...)
	s.lastUserRequest = snap.LastUserRequest
	s.entries = append(s.entries, snap.RecentEntries...)
	s.dirty = true
	for k, v := range snap.SharedMemory {
		s.shared[k] = v
	}
}

// Clear drops all non-system entries, preserving the system prompt.
func (s *Store) Clear() {
	s.mu.Lock()
	var system []core.ContextEntry
	for _, e := range s.entries {
		if e.EntryType == core.EntrySystem {
			system = append(system, e)
		}
	}
	s.entries = system
	s.dirty = true
	s.mu.Unlock()
	s.maybeSave()
}
