package result

import (
	"encoding/json"
	"testing"
)

func TestParseBareJSON(t *testing.T) {
	p := Parse(`{"errorType":"syntax_error"}`)
	if p.Fallback {
		t.Fatalf("unexpected fallback")
	}
	if string(p.JSON) != `{"errorType":"syntax_error"}` {
		t.Fatalf("unexpected json: %s", p.JSON)
	}
}

func TestParseJSONFence(t *testing.T) {
	text := "Here is the analysis:\n```json\n{\"rootCause\": \"missing dep\"}\n```\nHope that helps."
	p := Parse(text)
	if p.Fallback {
		t.Fatalf("unexpected fallback")
	}

	var got map[string]string
	if err := json.Unmarshal(p.JSON, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["rootCause"] != "missing dep" {
		t.Fatalf("rootCause = %q", got["rootCause"])
	}
}

func TestParseBareFence(t *testing.T) {
	text := "```\n{\"a\": 1}\n```"
	p := Parse(text)
	if p.Fallback {
		t.Fatalf("unexpected fallback")
	}
}

func TestParseUnterminatedFence(t *testing.T) {
	text := "```json\n{\"a\": 1}"
	p := Parse(text)
	if p.Fallback {
		t.Fatalf("unexpected fallback")
	}
}

func TestParseProseFallsBack(t *testing.T) {
	text := "I could not determine the root cause of this failure."
	p := Parse(text)
	if !p.Fallback {
		t.Fatalf("expected fallback")
	}
	if p.Raw != text {
		t.Fatalf("raw = %q", p.Raw)
	}

	var got map[string]string
	if err := json.Unmarshal(p.JSON, &got); err != nil {
		t.Fatalf("fallback payload is not valid json: %v", err)
	}
	if got["rawResponse"] != text {
		t.Fatalf("rawResponse = %q", got["rawResponse"])
	}
}

func TestParseIsIdempotent(t *testing.T) {
	inputs := []string{
		`{"ok": true}`,
		"```json\n{\"ok\": true}\n```",
		"not json at all",
		"",
	}
	for _, in := range inputs {
		first := Parse(in)
		second := Parse(in)
		if first.Fallback != second.Fallback || string(first.JSON) != string(second.JSON) {
			t.Errorf("Parse(%q) not stable across calls", in)
		}
	}
}

func TestParseNeverFails(t *testing.T) {
	inputs := []string{
		"",
		"```",
		"```json",
		"{\"truncated\":",
		"```json\n{broken\n```",
	}
	for _, in := range inputs {
		p := Parse(in)
		if !json.Valid(p.JSON) {
			t.Errorf("Parse(%q) produced invalid json: %s", in, p.JSON)
		}
	}
}

func TestDecodeTyped(t *testing.T) {
	type analysis struct {
		ErrorType string `json:"errorType"`
		Severity  string `json:"severity"`
	}

	got, ok := Decode[analysis]("```json\n{\"errorType\": \"missing_module\", \"severity\": \"high\"}\n```")
	if !ok {
		t.Fatalf("expected typed decode")
	}
	if got.ErrorType != "missing_module" || got.Severity != "high" {
		t.Fatalf("unexpected value: %+v", got)
	}
}

func TestDecodeShapeMismatch(t *testing.T) {
	type analysis struct {
		Severity int `json:"severity"`
	}
	if _, ok := Decode[analysis](`{"severity": "high"}`); ok {
		t.Fatalf("expected decode failure on mismatched shape")
	}
}
