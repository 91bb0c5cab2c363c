package skill

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/speedy0526/agents/core"
	"github.com/speedy0526/agents/logging"
	"github.com/speedy0526/agents/tool"
)

// Options configure a Registry.
type Options struct {
	Logger logging.Logger
}

// Registry holds the loaded skills of one bundle directory. Names are unique;
// a later bundle with the same name overwrites the earlier one. Safe for
// concurrent use; Reload swaps the whole map atomically under the lock.
type Registry struct {
	dir    string
	logger logging.Logger

	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewRegistry loads dir and returns the populated registry.
func NewRegistry(dir string, optFns ...func(o *Options)) (*Registry, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Registry{dir: dir, logger: opts.Logger, skills: map[string]*Skill{}}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload discards the current skills and re-scans the bundle directory.
func (r *Registry) Reload() error {
	skills, err := LoadDir(r.dir)
	if err != nil {
		return err
	}
	loaded := make(map[string]*Skill, len(skills))
	for _, s := range skills {
		loaded[s.Name] = s
	}

	r.mu.Lock()
	r.skills = loaded
	r.mu.Unlock()

	r.logger.Info("skill.registry_loaded", "dir", r.dir, "count", len(loaded))
	return nil
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// Names returns all loaded skill names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of loaded skills.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.skills)
}

// Describe renders a model-facing catalog of autonomously invocable skills.
func (r *Registry) Describe() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.skills))
	for name, s := range r.skills {
		if s.DisableModelInvocation {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "- %s: %s\n", name, r.skills[name].Description)
	}
	return b.String()
}

// Invocation is the result of a successful Invoke: exactly two messages plus
// the least-privilege tool view. Only Notice is shown to the user; Briefing
// carries the full instruction block (progressive disclosure).
type Invocation struct {
	Skill    *Skill
	Notice   core.Message
	Briefing core.Message
	Tools    *tool.Registry
}

// Invoke validates the skill's existence, its invocation gate and its tool
// requirements against the caller-supplied registry, then builds the
// activation messages. Missing whitelisted tools fail immediately, naming
// them.
func (r *Registry) Invoke(name, userRequest string, available *tool.Registry) (*Invocation, error) {
	s, ok := r.Get(name)
	if !ok {
		return nil, core.NewAgentError(core.ErrSkillNotFound,
			fmt.Sprintf("skill %q is not loaded", name)).WithDetail("skill", name)
	}
	if s.DisableModelInvocation {
		return nil, core.NewAgentError(core.ErrSkillNotFound,
			fmt.Sprintf("skill %q cannot be invoked autonomously", name)).WithDetail("skill", name)
	}

	var missing []string
	for _, t := range s.AllowedTools {
		if _, ok := available.Get(t); !ok {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, core.NewAgentError(core.ErrSkillMissingTools,
			fmt.Sprintf("skill %q requires unavailable tools: %s", name, strings.Join(missing, ", "))).
			WithDetail("skill", name).
			WithDetail("missing_tools", missing)
	}

	filtered := available.Subset(s.AllowedTools)

	notice := core.Message{
		Role:    core.RoleAssistant,
		Content: fmt.Sprintf("Activating skill %q (v%s): %s", s.Name, s.Version, s.Description),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Skill: %s\n\n", s.Name)
	b.WriteString(s.Instructions)
	b.WriteString("\n\n")
	if s.BaseDir != "" {
		fmt.Fprintf(&b, "Skill base directory: %s\n", s.BaseDir)
	}
	fmt.Fprintf(&b, "\n## Request\n\n%s\n", userRequest)
	if catalog := filtered.Describe(); catalog != "" {
		fmt.Fprintf(&b, "\n## Available Tools\n\n%s", catalog)
	}
	if s.HasResources() {
		fmt.Fprintf(&b, "\n## Bundled Resources\n\n%s", s.DescribeResources())
	}
	briefing := core.Message{Role: core.RoleSystem, Content: b.String()}

	r.logger.Debug("skill.invoked", "skill", s.Name, "tools", filtered.Names())
	return &Invocation{Skill: s, Notice: notice, Briefing: briefing, Tools: filtered}, nil
}
