// Package jsonutil parses JSON out of LLM responses, which arrive wrapped in
// markdown code fences or surrounded by a sentence of prose more often than
// a prompt asking for "JSON only" would suggest.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoJSON means the text contained no JSON object or array.
var ErrNoJSON = errors.New("no JSON content found")

// StripMarkdownFences returns the body of a ```json ... ``` (or bare ```)
// block. Text without an opening fence is returned trimmed but unchanged.
func StripMarkdownFences(text string) string {
	text = strings.TrimSpace(text)
	rest, ok := strings.CutPrefix(text, "```")
	if !ok {
		return text
	}

	// Drop the info string (e.g. "json") on the opening line.
	_, body, found := strings.Cut(rest, "\n")
	if !found {
		return text
	}
	if i := strings.LastIndex(body, "```"); i >= 0 {
		body = body[:i]
	}
	return strings.TrimSpace(body)
}

// ExtractJSON returns the first complete JSON object or array in text.
// Unlike slicing to the last closing brace, it stops at the end of the
// first value, so trailing prose that happens to contain braces is ignored.
func ExtractJSON(text string) (json.RawMessage, error) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return nil, ErrNoJSON
	}

	dec := json.NewDecoder(strings.NewReader(text[start:]))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w (text: %s)", err, preview(text[start:]))
	}
	return raw, nil
}

// ParseJSON strips fences, extracts the first JSON value, and unmarshals it
// into T.
func ParseJSON[T any](raw string) (T, error) {
	var result T
	data, err := ExtractJSON(StripMarkdownFences(raw))
	if err != nil {
		return result, fmt.Errorf("%w (raw length: %d)", err, len(raw))
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("decode %T: %w (text: %s)", result, err, preview(string(data)))
	}
	return result, nil
}

func preview(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
