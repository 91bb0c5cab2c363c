package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedy0526/agents/core"
)

func newTestStore(t *testing.T, optFns ...func(o *Options)) *Store {
	t.Helper()
	s, err := NewStore("test_"+core.ShortID(), optFns...)
	require.NoError(t, err)
	return s
}

func TestStore_SystemPrefixOrdering(t *testing.T) {
	s := newTestStore(t)
	s.AppendUser("first question")
	s.AppendSystem("you are an agent")
	s.AppendAssistant("working on it")
	s.AppendSystem("progress check")

	msgs := s.Messages(false)
	require.Len(t, msgs, 4)
	assert.Equal(t, "you are an agent", msgs[0].Content)
	assert.Equal(t, "progress check", msgs[1].Content)
	assert.Equal(t, "first question", msgs[2].Content)
	assert.Equal(t, "working on it", msgs[3].Content)
}

func TestStore_ThoughtsExcludedFromMessages(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("sys")
	s.AppendThought("secret reasoning")
	s.AppendAssistant("visible answer")

	for _, m := range s.Messages(true) {
		assert.NotContains(t, m.Content, "secret reasoning")
	}
	// The thought is still in the log itself.
	assert.Equal(t, 3, s.Len())
}

func TestStore_GoalsAppendedLast(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("sys")
	s.AppendUser("do the thing")
	s.SetGoals([]string{"Complete: do the thing"})

	msgs := s.Messages(true)
	last := msgs[len(msgs)-1]
	assert.Equal(t, core.RoleSystem, last.Role)
	assert.Contains(t, last.Content, "Complete: do the thing")
	assert.Contains(t, last.Content, "Keep these goals in mind")

	// Goals excluded on request.
	msgs = s.Messages(false)
	assert.NotContains(t, msgs[len(msgs)-1].Content, "Keep these goals in mind")
}

func TestStore_AppendOnly(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("sys")
	s.AppendUser("question")

	entries := s.Entries()
	entries[0].Content = "mutated"
	assert.Equal(t, "sys", s.Entries()[0].Content)
}

func TestStore_CompressIfNeeded(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore("compress", func(o *Options) {
		o.Dir = dir
		o.MaxContentLength = 200
		o.KeepRecent = 3
	})
	require.NoError(t, err)

	s.AppendSystem("system prompt stays")
	for i := 0; i < 20; i++ {
		s.AppendAssistant(strings.Repeat("x", 50))
	}

	archived, err := s.CompressIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, 17, archived)

	// System entry survived plus KeepRecent entries.
	entries := s.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, core.EntrySystem, entries[0].EntryType)

	// Archive written verbatim.
	files, err := filepath.Glob(filepath.Join(dir, "archive_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), strings.Repeat("x", 50))

	// Immediate re-invocation is a no-op.
	archived, err = s.CompressIfNeeded()
	require.NoError(t, err)
	assert.Zero(t, archived)
}

func TestStore_CompressNoopUnderCeiling(t *testing.T) {
	s := newTestStore(t, func(o *Options) { o.MaxContentLength = 10000 })
	s.AppendSystem("sys")
	s.AppendUser("short")
	archived, err := s.CompressIfNeeded()
	require.NoError(t, err)
	assert.Zero(t, archived)
	assert.Equal(t, 2, s.Len())
}

func TestStore_Snapshot(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("sys")
	s.AppendUser("old request")
	s.AppendUser("latest request")
	for i := 0; i < 12; i++ {
		s.AppendAssistant("entry")
	}
	s.SetGoals([]string{"g1"})
	s.SetShared("has_tangible_results", true)

	snap := s.Snapshot()
	assert.Equal(t, []string{"g1"}, snap.Goals)
	assert.Len(t, snap.RecentEntries, 10)
	assert.Equal(t, "latest request", snap.LastUserRequest)
	assert.Equal(t, true, snap.SharedMemory["has_tangible_results"])

	// Mutating the snapshot's shared copy must not touch the parent.
	snap.SharedMemory["has_tangible_results"] = false
	assert.True(t, s.SharedBool("has_tangible_results"))
}

func TestStore_SeedSnapshotIsolation(t *testing.T) {
	parent := newTestStore(t)
	parent.AppendUser("request")
	parent.SetShared("k", "v")
	parent.SetGoals([]string{"goal"})

	child := newTestStore(t)
	child.SeedSnapshot(parent.Snapshot())

	v, ok := child.Shared("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	assert.Equal(t, []string{"goal"}, child.Goals())

	// Child mutations never reach the parent.
	child.SetShared("k", "changed")
	child.AppendAssistant("child chatter")
	v, _ = parent.Shared("k")
	assert.Equal(t, "v", v)
	assert.Equal(t, 1, parent.Len())
}

func TestStore_SeedSnapshotCarriesRecentEntries(t *testing.T) {
	parent := newTestStore(t)
	parent.AppendSystem("sys")
	parent.AppendUser("request")
	parent.AppendAssistant("partial findings")

	child := newTestStore(t)
	child.SeedSnapshot(parent.Snapshot())

	assert.Equal(t, parent.Len(), child.Len())
	messages := child.Messages(false)
	require.Len(t, messages, 3)
	assert.Equal(t, "partial findings", messages[2].Content)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	s.AppendSystem("sys")
	s.AppendUser("req")
	s.AppendAssistant("resp")
	s.Clear()
	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, core.EntrySystem, entries[0].EntryType)
}

func TestStore_PersistAndReload(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore("persist", func(o *Options) {
		o.Dir = dir
		o.MinSaveInterval = 0
	})
	require.NoError(t, err)
	s.AppendSystem("sys")
	s.AppendUser("the request")
	s.SetGoals([]string{"finish it"})
	require.NoError(t, s.Save())

	reloaded, err := NewStore("persist", func(o *Options) { o.Dir = dir })
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.Equal(t, []string{"finish it"}, reloaded.Goals())
	snap := reloaded.Snapshot()
	assert.Equal(t, "the request", snap.LastUserRequest)
}

func TestStore_ErrorJournalDurable(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore("journal", func(o *Options) { o.Dir = dir })
	require.NoError(t, err)

	s.AppendToolResult("file_write", "disk full", true)
	s.AppendToolResult("search", "3 results", false)

	journal := s.ErrorJournal()
	assert.Contains(t, journal, "file_write")
	assert.Contains(t, journal, "disk full")
	assert.NotContains(t, journal, "3 results")
}

func TestStore_SaveDebounce(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore("debounce", func(o *Options) {
		o.Dir = dir
		o.MinSaveInterval = time.Hour
	})
	require.NoError(t, err)

	s.AppendSystem("sys")
	// Debounced: nothing written yet beyond the initial state.
	_, statErr := os.Stat(filepath.Join(dir, entriesFile))
	assert.True(t, os.IsNotExist(statErr))

	require.NoError(t, s.Save())
	_, statErr = os.Stat(filepath.Join(dir, entriesFile))
	assert.NoError(t, statErr)
}
