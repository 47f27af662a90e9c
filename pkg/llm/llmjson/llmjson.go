// Package llmjson extracts structured JSON from free-form model output.
//
// Models wrap JSON in markdown fences, escape braces when a prompt template
// leaked through, or pad the payload with prose. Decode runs a strict pass
// first and progressively relaxes; if no stage yields valid JSON it returns
// an error and the caller falls back to a zero value.
package llmjson

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode unmarshals the first JSON object found in raw into v.
func Decode(raw string, v any) error {
	for _, candidate := range candidates(raw) {
		if json.Unmarshal([]byte(candidate), v) == nil {
			return nil
		}
	}
	return fmt.Errorf("no decodable JSON object in model output")
}

// candidates yields increasingly lenient readings of the raw output.
func candidates(raw string) []string {
	var out []string

	add := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s, normalizeBraces(s))
		}
	}

	if fenced, ok := extractFenced(raw); ok {
		add(fenced)
	}
	add(raw)
	if inner, ok := extractBraceSpan(raw); ok {
		add(inner)
	}

	return out
}

// extractFenced returns the contents of the first markdown code fence,
// preferring a ```json fence over a bare one.
func extractFenced(raw string) (string, bool) {
	for _, marker := range []string{"```json", "```"} {
		start := strings.Index(raw, marker)
		if start < 0 {
			continue
		}
		rest := raw[start+len(marker):]
		end := strings.Index(rest, "```")
		if end < 0 {
			continue
		}
		return rest[:end], true
	}
	return "", false
}

// extractBraceSpan returns the substring from the first '{' to the last '}'.
func extractBraceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// normalizeBraces collapses doubled braces left over from template escaping.
func normalizeBraces(s string) string {
	s = strings.ReplaceAll(s, "{{", "{")
	return strings.ReplaceAll(s, "}}", "}")
}
