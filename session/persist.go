package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/speedy0526/agents/core"
)

// Session directory layout.
const (
	entriesFile = "session_context.json"
	goalsFile   = "goals.md"
	errorsFile  = "errors.md"
)

type sessionFile struct {
	Entries   []core.ContextEntry `json:"entries"`
	Goals     []string            `json:"goals,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type archiveFile struct {
	ArchivedAt time.Time           `json:"archived_at"`
	Entries    []core.ContextEntry `json:"entries"`
}

func (s *Store) initDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return nil
}

// load restores a previously serialized entry log, if any.
func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, entriesFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.entries = sf.Entries
	s.goals = sf.Goals
	for i := len(sf.Entries) - 1; i >= 0; i-- {
		if sf.Entries[i].Role == core.RoleUser {
			s.lastUserRequest = sf.Entries[i].Content
			break
		}
	}
	s.logger.Info("session.loaded", "session_id", s.id, "entries", len(s.entries))
	return nil
}

// Save forces durable serialization regardless of the debounce interval. Used
// at checkpoints: session creation and before handing off to a child executor.
func (s *Store) Save() error {
	if s.dir == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// maybeSave persists when the debounce interval has elapsed since the last
// write. Skipped saves leave the store dirty; the next Save() catches up.
func (s *Store) maybeSave() {
	if s.dir == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty || time.Since(s.lastSave) < s.minSaveInterval {
		return
	}
	if err := s.saveLocked(); err != nil {
		s.logger.Warn("session.save_failed", "session_id", s.id, "error", err.Error())
	}
}

func (s *Store) saveLocked() error {
	sf := sessionFile{Entries: s.entries, Goals: s.goals, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, entriesFile), data, 0o644); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if len(s.goals) > 0 {
		var b strings.Builder
		b.WriteString("# Current Goals\n\n")
		for i, g := range s.goals {
			fmt.Fprintf(&b, "%d. %s\n", i+1, g)
		}
		if err := os.WriteFile(filepath.Join(s.dir, goalsFile), []byte(b.String()), 0o644); err != nil {
			return fmt.Errorf("save goals: %w", err)
		}
	}
	s.lastSave = time.Now()
	s.dirty = false
	return nil
}

// journalError appends to the durable error journal immediately, bypassing
// the debounce. The journal is append-only and never truncated.
func (s *Store) journalError(toolName, errMsg string) {
	if s.dir == "" {
		return
	}
	record := fmt.Sprintf("## Error - %s\n\n**Tool:** %s\n**Error:** %s\n\n",
		time.Now().UTC().Format(time.RFC3339), toolName, errMsg)
	f, err := os.OpenFile(filepath.Join(s.dir, errorsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("session.journal_failed", "session_id", s.id, "error", err.Error())
		return
	}
	defer f.Close()
	if _, err := f.WriteString(record); err != nil {
		s.logger.Warn("session.journal_failed", "session_id", s.id, "error", err.Error())
	}
}

// archive serializes evicted entries verbatim to a timestamped file.
// Caller holds the lock.
func (s *Store) archive(old []core.ContextEntry) error {
	af := archiveFile{ArchivedAt: time.Now().UTC(), Entries: old}
	data, err := json.MarshalIndent(af, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	name := fmt.Sprintf("archive_%s.json", time.Now().UTC().Format("20060102_150405.000000"))
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// ErrorJournal returns the raw contents of the error journal, empty when no
// errors have been recorded.
func (s *Store) ErrorJournal() string {
	if s.dir == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(s.dir, errorsFile))
	if err != nil {
		return ""
	}
	return string(data)
}
