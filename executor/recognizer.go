package executor

import (
	"regexp"
	"strings"

	"github.com/speedy0526/agents/internal/jsonx"
)

// Call is one recognized tool invocation in free-form model text.
type Call struct {
	Tool       string
	Parameters map[string]any
}

// CallRecognizer maps free text to a tool call, or reports none. It is a
// best-effort heuristic behind a narrow interface so structured function
// calling can replace it without touching the inner loop.
type CallRecognizer interface {
	Recognize(text string, tools []string) (Call, bool)
}

// RegexRecognizer recognizes call-like phrasing ("use the file_write tool",
// "calling web_search with {...}") and bare mentions of known tool names. For
// the first recognized tool it parses the nearest trailing JSON object as
// parameters, with a targeted path recovery fallback for file tools.
type RegexRecognizer struct {
	callPattern *regexp.Regexp
	pathPattern *regexp.Regexp
}

// NewRegexRecognizer constructs the default recognizer.
func NewRegexRecognizer() *RegexRecognizer {
	return &RegexRecognizer{
		callPattern: regexp.MustCompile("(?i)\\b(?:use|using|call|calling|invoke|invoking|run|running|execute|executing)\\s+(?:the\\s+)?[`\"']?([a-z][a-z0-9_]*)[`\"']?"),
		pathPattern: regexp.MustCompile(`[\w\-./]+\.(?:md|txt|json|csv|html|py|go|sh|yaml|yml)\b`),
	}
}

// Recognize implements CallRecognizer.
func (r *RegexRecognizer) Recognize(text string, tools []string) (Call, bool) {
	known := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		known[t] = struct{}{}
	}

	name, at := r.matchCallPhrase(text, known)
	if name == "" {
		name, at = earliestMention(text, tools)
	}
	if name == "" {
		return Call{}, false
	}

	return Call{Tool: name, Parameters: r.extractParameters(text[at:], name)}, true
}

// matchCallPhrase scans explicit call phrasing for a known tool name.
func (r *RegexRecognizer) matchCallPhrase(text string, known map[string]struct{}) (string, int) {
	for _, match := range r.callPattern.FindAllStringSubmatchIndex(text, -1) {
		candidate := strings.ToLower(text[match[2]:match[3]])
		if _, ok := known[candidate]; ok {
			return candidate, match[2]
		}
	}
	return "", 0
}

// earliestMention finds the first bare occurrence of any known tool name.
func earliestMention(text string, tools []string) (string, int) {
	lower := strings.ToLower(text)
	best, bestAt := "", -1
	for _, t := range tools {
		if at := strings.Index(lower, t); at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = t, at
		}
	}
	if bestAt < 0 {
		return "", 0
	}
	return best, bestAt
}

// extractParameters parses the nearest JSON object after the call site. When
// no object parses, one well-known field is recovered: a path-like token
// becomes file_path so file tools still work from sloppy output.
func (r *RegexRecognizer) extractParameters(tail, toolName string) map[string]any {
	if params, err := jsonx.ExtractObject(tail); err == nil {
		return params
	}
	if path := r.pathPattern.FindString(tail); path != "" {
		return map[string]any{"file_path": path}
	}
	return map[string]any{}
}
