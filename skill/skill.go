// Package skill implements declarative workflow bundles. A skill is a
// directory holding a SKILL.md file: YAML frontmatter (name, description,
// version, allowed tools, optional model, invocation gate) followed by
// free-text instructions, plus optional scripts/, references/ and assets/
// resource directories whose filenames are recorded for lazy access.
package skill

import (
	"fmt"
	"sort"
	"strings"
)

// Skill is one loaded workflow bundle. Immutable after load; a registry
// reload replaces the whole value.
type Skill struct {
	Name        string
	Description string
	Version     string
	// AllowedTools is the least-privilege whitelist: a skill execution only
	// ever sees the intersection of this set with the caller's tools.
	AllowedTools []string
	// Model optionally names a preferred model for this skill's inner loop.
	Model string
	// DisableModelInvocation hides the skill from autonomous invocation;
	// it can then only be triggered explicitly.
	DisableModelInvocation bool
	// Instructions is the markdown body below the frontmatter.
	Instructions string
	// BaseDir is the bundle directory, surfaced to the model so relative
	// resource paths resolve.
	BaseDir string

	// Resource filename listings. Contents are read lazily by tools, never
	// at load time.
	Scripts    []string
	References []string
	Assets     []string
}

// HasResources reports whether any resource listing is non-empty.
func (s *Skill) HasResources() bool {
	return len(s.Scripts)+len(s.References)+len(s.Assets) > 0
}

// DescribeResources renders the resource listings for the hidden briefing.
func (s *Skill) DescribeResources() string {
	var b strings.Builder
	writeGroup := func(label string, files []string) {
		if len(files) == 0 {
			return
		}
		sorted := append([]string(nil), files...)
		sort.Strings(sorted)
		fmt.Fprintf(&b, "%s/: %s\n", label, strings.Join(sorted, ", "))
	}
	writeGroup("scripts", s.Scripts)
	writeGroup("references", s.References)
	writeGroup("assets", s.Assets)
	return b.String()
}
