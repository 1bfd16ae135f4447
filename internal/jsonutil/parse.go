// Package jsonutil extracts JSON from LLM responses that wrap it in markdown
// code fences or surround it with prose.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON is returned when the text holds no object or array.
var ErrNoJSON = errors.New("no JSON content found")

// StripMarkdownFences removes a ```json ... ``` (or bare ```) wrapper and
// returns the fenced content. Text without an opening fence is returned
// trimmed but otherwise unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	nl := strings.IndexByte(text, '\n')
	if nl < 0 {
		return text
	}
	body := text[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractJSON returns the first complete JSON object or array in text. The
// scan tracks nesting and string literals, so brackets inside strings and
// trailing prose with stray brackets do not confuse it.
func ExtractJSON(text string) (string, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}

	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return "", fmt.Errorf("unbalanced %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unterminated JSON starting at offset %d", start)
}

// ParseJSON strips markdown fences from raw, extracts the JSON content and
// unmarshals it into T.
func ParseJSON[T any](raw string) (T, error) {
	var zero T
	jsonStr, err := ExtractJSON(StripMarkdownFences(raw))
	if err != nil {
		return zero, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}

	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		preview := jsonStr
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return zero, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview)
	}
	return result, nil
}
