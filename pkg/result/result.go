// Package result extracts structured JSON payloads from model output.
//
// Models asked for JSON frequently wrap it in markdown fences or return
// prose instead. Parsing is best-effort and never fails: unparseable text
// degrades to a rawResponse fallback that downstream code must handle
// explicitly.
package result

import (
	"encoding/json"
	"strings"
)

// Parsed is the parser output: either a JSON document or the raw fallback.
type Parsed struct {
	// JSON holds the extracted document. When Fallback is set it holds the
	// marshaled {"rawResponse": ...} object.
	JSON json.RawMessage
	// Raw is the original model text, kept for fallback display.
	Raw string
	// Fallback reports that no JSON could be extracted.
	Fallback bool
}

// Parse extracts a JSON object from model text. It tries, in order: a
// ```json fenced block, a bare ``` fenced block, then the whole text. The
// first alternative that parses as valid JSON wins. On failure it returns
// the rawResponse fallback rather than an error.
func Parse(text string) Parsed {
	for _, candidate := range candidates(text) {
		trimmed := strings.TrimSpace(candidate)
		if trimmed == "" {
			continue
		}
		if json.Valid([]byte(trimmed)) {
			return Parsed{JSON: json.RawMessage(trimmed), Raw: text}
		}
	}

	fallback, _ := json.Marshal(map[string]string{"rawResponse": text})
	return Parsed{JSON: fallback, Raw: text, Fallback: true}
}

// Decode parses model text and unmarshals the extracted JSON into T.
// The boolean reports whether a typed value was produced; false means the
// caller got the zero value and should degrade to Parsed.Raw handling.
func Decode[T any](text string) (T, bool) {
	var value T
	parsed := Parse(text)
	if parsed.Fallback {
		return value, false
	}
	if err := json.Unmarshal(parsed.JSON, &value); err != nil {
		return value, false
	}
	return value, true
}

// candidates returns the extraction alternatives for the text in priority
// order.
func candidates(text string) []string {
	out := make([]string, 0, 3)
	if inner, ok := fencedBlock(text, "```json"); ok {
		out = append(out, inner)
	}
	if inner, ok := fencedBlock(text, "```"); ok {
		out = append(out, inner)
	}
	return append(out, text)
}

// fencedBlock extracts the content of the first fence opened by marker.
// An unterminated fence runs to the end of the text.
func fencedBlock(text, marker string) (string, bool) {
	start := strings.Index(text, marker)
	if start < 0 {
		return "", false
	}
	inner := text[start+len(marker):]
	if nl := strings.Index(inner, "\n"); nl >= 0 {
		// Drop any language tag on the opening fence line.
		inner = inner[nl+1:]
	}
	if end := strings.Index(inner, "```"); end >= 0 {
		inner = inner[:end]
	}
	return inner, true
}
