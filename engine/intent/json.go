package intent

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoJSON = errors.New("no parseable JSON object in completion")

// recoverJSON pulls a JSON object out of LLM output. Models wrap JSON in
// markdown fences or surround it with prose, so three strategies are tried
// in order: parse the trimmed text directly, strip a triple-backtick fence,
// then scan for the first balanced {...} span.
func recoverJSON(s string) (map[string]any, error) {
	trimmed := strings.TrimSpace(s)

	var m map[string]any
	if err := json.Unmarshal([]byte(trimmed), &m); err == nil {
		return m, nil
	}

	if inner, ok := stripFence(trimmed); ok {
		if err := json.Unmarshal([]byte(inner), &m); err == nil {
			return m, nil
		}
	}

	if span, ok := balancedObject(trimmed); ok {
		if err := json.Unmarshal([]byte(span), &m); err == nil {
			return m, nil
		}
	}

	return nil, errNoJSON
}

// stripFence removes a leading/trailing ``` fence with an optional
// language tag.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	rest := s[3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		// Drop the language tag line ("json", "cypher", ...).
		first := strings.TrimSpace(rest[:nl])
		if first == "" || isWord(first) {
			rest = rest[nl+1:]
		}
	}
	end := strings.LastIndex(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) > 0
}

// balancedObject returns the first {...} span with balanced braces,
// ignoring braces inside string literals.
func balancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
