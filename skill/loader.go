package skill

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BundleFile is the per-directory manifest a loader looks for.
const BundleFile = "SKILL.md"

var resourceDirs = []string{"scripts", "references", "assets"}

// frontmatter is the YAML metadata block at the top of a SKILL.md.
type frontmatter struct {
	Name                   string `yaml:"name"`
	Description            string `yaml:"description"`
	Version                string `yaml:"version"`
	AllowedTools           string `yaml:"allowed_tools"`
	Model                  string `yaml:"model"`
	DisableModelInvocation bool   `yaml:"disable_model_invocation"`
}

// LoadDir scans the immediate subdirectories of dir for bundle files and
// parses each into a Skill. Directories without a bundle file, hidden
// directories and ones starting with "_" are skipped; a malformed bundle
// aborts the load so a broken edit is noticed instead of silently dropped.
func LoadDir(dir string) ([]*Skill, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read skill directory: %w", err)
	}

	var skills []*Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		base := filepath.Join(dir, name)
		bundlePath := filepath.Join(base, BundleFile)
		content, err := os.ReadFile(bundlePath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("read %s: %w", bundlePath, err)
		}

		s, err := ParseBundle(content, base)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", bundlePath, err)
		}
		skills = append(skills, s)
	}
	return skills, nil
}

// ParseBundle parses one bundle file: YAML frontmatter between --- delimiters,
// then free-text instructions. Required fields are name and description;
// version defaults to "1.0.0". Resource listings are read from baseDir.
func ParseBundle(content []byte, baseDir string) (*Skill, error) {
	fm, body, ok := splitFrontmatter(content)
	if !ok {
		return nil, fmt.Errorf("missing frontmatter block")
	}

	var meta frontmatter
	if err := yaml.Unmarshal(fm, &meta); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("frontmatter missing required field name")
	}
	if meta.Description == "" {
		return nil, fmt.Errorf("frontmatter missing required field description")
	}
	if meta.Version == "" {
		meta.Version = "1.0.0"
	}

	s := &Skill{
		Name:                   meta.Name,
		Description:            meta.Description,
		Version:                meta.Version,
		AllowedTools:           splitTools(meta.AllowedTools),
		Model:                  meta.Model,
		DisableModelInvocation: meta.DisableModelInvocation,
		Instructions:           strings.TrimSpace(string(body)),
		BaseDir:                baseDir,
	}

	if baseDir != "" {
		s.Scripts = listFiles(filepath.Join(baseDir, "scripts"))
		s.References = listFiles(filepath.Join(baseDir, "references"))
		s.Assets = listFiles(filepath.Join(baseDir, "assets"))
	}
	return s, nil
}

// splitFrontmatter splits content at --- delimiters, returning the YAML block
// and the remaining body.
func splitFrontmatter(content []byte) (fm, body []byte, ok bool) {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, content, false
	}
	afterOpen := bytes.IndexByte(trimmed, '\n')
	if afterOpen < 0 {
		return nil, content, false
	}
	rest := trimmed[afterOpen+1:]

	scanner := bufio.NewScanner(bytes.NewReader(rest))
	pos := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			fm = rest[:pos]
			body = rest[pos+len(line):]
			if len(body) > 0 && body[0] == '\n' {
				body = body[1:]
			}
			return fm, body, true
		}
		pos += len(line) + 1
	}
	return nil, content, false
}

// splitTools parses the comma-separated allowed_tools field.
func splitTools(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tools := make([]string, 0, len(parts))
	for _, p := range parts {
		if name := strings.TrimSpace(p); name != "" {
			tools = append(tools, name)
		}
	}
	return tools
}

// listFiles returns the plain filenames inside dir, or nil when absent.
func listFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}
