package skill

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/tool"
)

const researchBundle = `---
name: research
description: Gather information and write a report
version: 1.2.0
allowed_tools: web_search, file_write
---
## Workflow

1. Search for the topic.
2. Write the findings to a file.
`

func writeBundle(t *testing.T, dir, name, content string) {
	t.Helper()
	base := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(base, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, BundleFile), []byte(content), 0o644))
}

func noopTool(name string) tool.Tool {
	return tool.NewFunctionTool(name, name+" tool", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) { return "ok", nil })
}

func TestParseBundle(t *testing.T) {
	s, err := ParseBundle([]byte(researchBundle), "")
	require.NoError(t, err)
	assert.Equal(t, "research", s.Name)
	assert.Equal(t, "1.2.0", s.Version)
	assert.Equal(t, []string{"web_search", "file_write"}, s.AllowedTools)
	assert.False(t, s.DisableModelInvocation)
	assert.Contains(t, s.Instructions, "Search for the topic")
}

func TestParseBundle_Defaults(t *testing.T) {
	s, err := ParseBundle([]byte("---\nname: minimal\ndescription: d\n---\nbody"), "")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", s.Version)
	assert.Empty(t, s.AllowedTools)
}

func TestParseBundle_MissingRequiredFields(t *testing.T) {
	_, err := ParseBundle([]byte("---\ndescription: d\n---\nbody"), "")
	assert.ErrorContains(t, err, "name")

	_, err = ParseBundle([]byte("---\nname: x\n---\nbody"), "")
	assert.ErrorContains(t, err, "description")

	_, err = ParseBundle([]byte("no frontmatter here"), "")
	assert.ErrorContains(t, err, "frontmatter")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "research", researchBundle)
	writeBundle(t, dir, "hidden-gate", "---\nname: hidden-gate\ndescription: manual only\ndisable_model_invocation: true\n---\nbody")
	// Directories without a bundle and underscore-prefixed ones are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "not-a-skill"), 0o755))
	writeBundle(t, dir, "_template", "---\nname: tpl\ndescription: d\n---\nbody")

	// Resource listings record filenames only.
	scripts := filepath.Join(dir, "research", "scripts")
	require.NoError(t, os.MkdirAll(scripts, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "fetch.sh"), []byte("#!/bin/sh"), 0o755))

	skills, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, skills, 2)

	byName := map[string]*Skill{}
	for _, s := range skills {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "research")
	assert.Equal(t, []string{"fetch.sh"}, byName["research"].Scripts)
	assert.Equal(t, filepath.Join(dir, "research"), byName["research"].BaseDir)
	assert.True(t, byName["hidden-gate"].DisableModelInvocation)
}

func TestRegistry_ReloadIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "research", researchBundle)

	r, err := NewRegistry(dir)
	require.NoError(t, err)
	initial := r.Names()

	require.NoError(t, r.Reload())
	assert.Equal(t, initial, r.Names())
}

func TestRegistry_Invoke(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "research", researchBundle)
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	available := tool.NewRegistry(noopTool("web_search"), noopTool("file_write"), noopTool("shell"))
	inv, err := r.Invoke("research", "Research Go generics", available)
	require.NoError(t, err)

	// Exactly two messages: visible notice plus hidden briefing.
	assert.Equal(t, core.RoleAssistant, inv.Notice.Role)
	assert.Contains(t, inv.Notice.Content, "research")
	assert.Equal(t, core.RoleSystem, inv.Briefing.Role)
	assert.Contains(t, inv.Briefing.Content, "Search for the topic")
	assert.Contains(t, inv.Briefing.Content, "Research Go generics")
	assert.Contains(t, inv.Briefing.Content, "web_search")

	// Least privilege: only whitelisted tools survive.
	assert.Equal(t, []string{"file_write", "web_search"}, inv.Tools.Names())
}

func TestRegistry_InvokeUnknownSkill(t *testing.T) {
	r, err := NewRegistry(t.TempDir())
	require.NoError(t, err)

	_, err = r.Invoke("missing", "req", tool.NewRegistry())
	require.Error(t, err)
	assert.Equal(t, core.ErrSkillNotFound, core.CodeOf(err))
}

func TestRegistry_InvokeMissingTools(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "research", researchBundle)
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	available := tool.NewRegistry(noopTool("web_search"))
	_, err = r.Invoke("research", "req", available)
	require.Error(t, err)
	assert.Equal(t, core.ErrSkillMissingTools, core.CodeOf(err))
	assert.Contains(t, err.Error(), "file_write")
}

func TestRegistry_InvokeGateDisabled(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "manual", "---\nname: manual\ndescription: d\ndisable_model_invocation: true\n---\nbody")
	r, err := NewRegistry(dir)
	require.NoError(t, err)

	_, err = r.Invoke("manual", "req", tool.NewRegistry())
	require.Error(t, err)
	assert.Equal(t, core.ErrSkillNotFound, core.CodeOf(err))

	// Gated skills stay out of the model-facing catalog too.
	assert.NotContains(t, r.Describe(), "manual")
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeBundle(t, dir, "research", researchBundle)

	r, err := NewRegistry(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"research"}, r.Names())

	w, err := r.Watch(context.Background())
	require.NoError(t, err)
	defer w.Stop()

	writeBundle(t, dir, "summarize", "---\nname: summarize\ndescription: d\n---\nbody")

	assert.Eventually(t, func() bool {
		return r.Len() == 2
	}, 3*time.Second, 50*time.Millisecond)
}
