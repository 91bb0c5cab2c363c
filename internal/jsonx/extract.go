// Package jsonx recovers JSON objects from free-form model output. Recovery
// runs three strategies in order: direct parse, fenced code block extraction,
// then a balanced-brace span scan trying the largest candidates first.
package jsonx

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var fencedBlock = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)```")

// Extract returns the substring of text that parses as JSON, or an error when
// no valid JSON can be recovered.
func Extract(text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract json: empty text")
	}

	// Direct parse.
	if json.Valid([]byte(text)) {
		return text, nil
	}

	// Fenced code blocks.
	for _, m := range fencedBlock.FindAllStringSubmatch(text, -1) {
		candidate := strings.TrimSpace(m[1])
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	// Balanced top-level brace spans, longest first.
	type span struct{ start, end int }
	var stack []int
	var candidates []span
	for i, r := range text {
		switch r {
		case '{':
			stack = append(stack, i)
		case '}':
			if len(stack) == 0 {
				continue
			}
			start := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				candidates = append(candidates, span{start, i})
			}
		}
	}
	sort.Slice(candidates, func(a, b int) bool {
		return candidates[a].end-candidates[a].start > candidates[b].end-candidates[b].start
	})
	for _, c := range candidates {
		candidate := text[c.start : c.end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	preview := text
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("extract json: no valid JSON found in %q", preview)
}

// ExtractObject extracts JSON from text and ensures the result is an object.
// A top-level array is tolerated by taking its first object element.
func ExtractObject(text string) (map[string]any, error) {
	raw, err := Extract(text)
	if err != nil {
		return nil, err
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err == nil {
		return obj, nil
	}

	var arr []any
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		for _, item := range arr {
			if m, ok := item.(map[string]any); ok {
				return m, nil
			}
		}
	}

	return nil, fmt.Errorf("extract json: expected object, got %s", strings.TrimSpace(raw[:min(len(raw), 40)]))
}
