package text

import "testing"

func candidates() []Candidate {
	return []Candidate{
		{ID: "1", GeneratedTitle: "Patience Pays", Outline: "An outline about patience"},
		{ID: "2", GeneratedTitle: "The Long Road Home", Outline: "A journey outline"},
	}
}

func TestResolve_Strategy1_ExactAfterQuoteStrip(t *testing.T) {
	id, strategy, ok := Resolve(`"Patience Pays"`, candidates())
	if !ok || id != "1" || strategy != 1 {
		t.Fatalf("got id=%q strategy=%d ok=%v", id, strategy, ok)
	}
}

func TestResolve_Strategy2_PunctuationStripped(t *testing.T) {
	// Case must still line up — only punctuation/whitespace differs here —
	// since strategies 1-3 are case-sensitive and only 4 folds case.
	id, strategy, ok := Resolve("Patience, Pays!!!", candidates())
	if !ok || id != "1" || strategy != 2 {
		t.Fatalf("got id=%q strategy=%d ok=%v", id, strategy, ok)
	}
}

func TestResolve_Strategy3_SubstringContainment(t *testing.T) {
	id, strategy, ok := Resolve("The Long Road", candidates())
	if !ok || id != "2" || strategy != 3 {
		t.Fatalf("got id=%q strategy=%d ok=%v", id, strategy, ok)
	}
}

func TestResolve_Strategy4_CaseInsensitiveWordChars(t *testing.T) {
	// Case differs, so strategies 1-3 (all case-sensitive) miss and only
	// the case-insensitive strategy 4 resolves it.
	id, strategy, ok := Resolve("PATIENCE PAYS", candidates())
	if !ok || id != "1" || strategy != 4 {
		t.Fatalf("got id=%q strategy=%d ok=%v", id, strategy, ok)
	}
}

func TestResolve_NoMatch(t *testing.T) {
	_, _, ok := Resolve("Completely Unrelated Title", candidates())
	if ok {
		t.Fatal("expected no match")
	}
}
