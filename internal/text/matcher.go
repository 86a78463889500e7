// Package text resolves LLM-emitted clip titles back to durable clip ids.
//
// Grounded on original_source/src/pipeline/step5_clustering.py:
// _validate_collections, which tries progressively looser string
// comparisons until one of the collection's member titles lines up with a
// clip's generated_title or outline. This package generalizes those four
// ad hoc Python comparisons into an ordered strategy list.
package text

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/clipforge/pipeline/internal/domain"
)

// Candidate is a clip a title can resolve to, carrying the two fields a
// title may be checked against per spec §4.8.
type Candidate struct {
	ID             string
	GeneratedTitle string
	Outline        string
}

// CandidatesFromTitledClips adapts a []domain.TitledClip into the matcher's
// candidate shape.
func CandidatesFromTitledClips(clips []domain.TitledClip) []Candidate {
	out := make([]Candidate, 0, len(clips))
	for _, c := range clips {
		out = append(out, Candidate{
			ID:             c.ID,
			GeneratedTitle: c.GeneratedTitle,
			Outline:        c.Outline,
		})
	}
	return out
}

var (
	punctuationRe = regexp.MustCompile(`[\p{P}\p{S}]+`)
	nonWordRe     = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
)

var curlyQuotes = map[rune]rune{
	'‘': '\'', '’': '\'', '“': '"', '”': '"',
}

// normalizeQuotes maps curly quotes to their straight equivalents so step 1
// can trim them alongside ASCII quotes.
func normalizeQuotes(s string) string {
	return strings.Map(func(r rune) rune {
		if rep, ok := curlyQuotes[r]; ok {
			return rep
		}
		return r
	}, s)
}

// nfkc applies NFKC normalization, mirroring the original's
// unicodedata.normalize('NFKC', ...) step ahead of every comparison.
func nfkc(s string) string {
	return norm.NFKC.String(s)
}

// stage1 implements strategy 1: exact equality after trimming whitespace
// and stripping outer straight/curly quotes.
func stage1(s string) string {
	s = nfkc(strings.TrimSpace(normalizeQuotes(s)))
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

// stage2 implements strategy 2: equality after removing all punctuation
// (CJK and ASCII — \p{P}/\p{S} cover both ranges).
func stage2(s string) string {
	s = nfkc(s)
	s = punctuationRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), "")
}

// stage4 implements strategy 4: case-insensitive equality after removing
// all non-word, non-space characters.
func stage4(s string) string {
	s = nfkc(s)
	s = nonWordRe.ReplaceAllString(s, "")
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Resolve finds the candidate whose generated_title or outline matches
// title under the first strategy that succeeds. Returns the matching
// candidate's ID, the 1-based strategy number that resolved it, and
// whether a match was found at all.
func Resolve(title string, candidates []Candidate) (id string, strategy int, ok bool) {
	t1 := stage1(title)
	for _, c := range candidates {
		if t1 == stage1(c.GeneratedTitle) || t1 == stage1(c.Outline) {
			return c.ID, 1, true
		}
	}

	t2 := stage2(title)
	for _, c := range candidates {
		if t2 == stage2(c.GeneratedTitle) || t2 == stage2(c.Outline) {
			return c.ID, 2, true
		}
	}

	for _, c := range candidates {
		g := stage2(c.GeneratedTitle)
		o := stage2(c.Outline)
		if containsEither(t2, g) || containsEither(t2, o) {
			return c.ID, 3, true
		}
	}

	t4 := stage4(title)
	for _, c := range candidates {
		if t4 == stage4(c.GeneratedTitle) || t4 == stage4(c.Outline) {
			return c.ID, 4, true
		}
	}

	return "", 0, false
}

// containsEither reports substring containment in either direction,
// ignoring empty operands (which would otherwise trivially "contain").
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
