package llm

import "testing"

func TestParseJSON_FencedBlock(t *testing.T) {
	resp := "Here is the outline:\n```json\n[{\"title\": \"Intro\"}]\n```\nHope that helps."
	v, err := ParseJSON(resp)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 1 {
		t.Fatalf("expected one-element array, got %#v", v)
	}
}

func TestParseJSON_TrailingComma(t *testing.T) {
	resp := `[{"a": 1,}, {"b": 2,},]`
	v, err := ParseJSON(resp)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected two elements, got %#v", v)
	}
}

func TestParseJSON_UnquotedKeys(t *testing.T) {
	resp := `{title: "Hello", score: 0.9}`
	v, err := ParseJSON(resp)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["title"] != "Hello" {
		t.Fatalf("unexpected result: %#v", v)
	}
}

func TestParseJSON_Truncated(t *testing.T) {
	// Ends mid-stream (note the trailing "...") with balanced quotes but
	// unbalanced braces/brackets; the repair rebalances rather than
	// dropping the dangling object — the per-stage caller is responsible
	// for rejecting elements missing required fields afterward.
	resp := `[{"outline": "A", "value": 1}, {"outline": "B", "value": 2...`
	v, err := ParseJSON(resp)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("expected two elements after rebalancing, got %#v", v)
	}
}

func TestParseJSON_TotalFailure(t *testing.T) {
	_, err := ParseJSON("not json at all, just prose.")
	if err == nil {
		t.Fatal("expected UnparsableResponse")
	}
	if _, ok := err.(*UnparsableResponse); !ok {
		t.Fatalf("expected *UnparsableResponse, got %T", err)
	}
}

func TestParseJSON_RegexExtraction(t *testing.T) {
	resp := "The model said: [1, 2, 3] and nothing else."
	v, err := ParseJSON(resp)
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		t.Fatalf("unexpected result: %#v", v)
	}
}
