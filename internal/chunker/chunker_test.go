package chunker

import (
	"testing"

	"github.com/clipforge/pipeline/internal/domain"
)

func cue(idx int, start, end float64, text string) domain.Cue {
	return domain.Cue{Index: idx, Start: start, End: end, Text: text}
}

func TestChunkEmptyInput(t *testing.T) {
	if got := Chunk(nil, 30, 1000); got != nil {
		t.Fatalf("expected nil chunks for empty input, got %v", got)
	}
}

func TestChunkSingleChunkWhenUnderInterval(t *testing.T) {
	cues := []domain.Cue{
		cue(0, 0, 1, "one"),
		cue(1, 1, 2, "two"),
		cue(2, 2, 3, "three"),
	}
	chunks := Chunk(cues, 30, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if len(chunks[0].Cues) != 3 {
		t.Fatalf("expected all 3 cues in the single chunk, got %d", len(chunks[0].Cues))
	}
}

// TestChunkCutsAtPauseNearTarget exercises the preferred path: a gap
// between cues that exceeds the pause threshold, found within the
// [90%, 110%] search window around the target interval.
func TestChunkCutsAtPauseNearTarget(t *testing.T) {
	cues := []domain.Cue{
		cue(0, 0, 4, "a"),
		cue(1, 4, 8, "b"),
		cue(2, 8, 8.5, "c"),
		cue(3, 9, 9.5, "d"),   // start=9 enters the [9,11] search window
		cue(4, 11, 15, "e"),   // gap from cue3.End(9.5) to cue4.Start(11) = 1.5s >= 1000ms
		cue(5, 15, 20, "f"),
	}
	chunks := Chunk(cues, 10, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if len(chunks[0].Cues) != 4 {
		t.Fatalf("expected the pause-based cut after cue 3, got first chunk with %d cues", len(chunks[0].Cues))
	}
	if len(chunks[1].Cues) != 2 {
		t.Fatalf("expected the remainder in the second chunk, got %d cues", len(chunks[1].Cues))
	}
}

// TestChunkFallsBackToFirstCueAtTargetWhenNoPause covers the case where
// no gap in the search window reaches the pause threshold: the cut
// falls back to the first cue whose start reaches the target time.
func TestChunkFallsBackToFirstCueAtTargetWhenNoPause(t *testing.T) {
	cues := []domain.Cue{
		cue(0, 0, 4, "a"),
		cue(1, 4, 8, "b"),
		cue(2, 8, 12, "c"),
		cue(3, 12, 16, "d"),
	}
	chunks := Chunk(cues, 10, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	// First cue at or past target=10 is cue index 3 (index 2 start=8 < 10, index 3 start=12 >= 10);
	// the fallback cuts before it, so the first chunk ends at cue index 2.
	if got := chunks[0].Cues[len(chunks[0].Cues)-1].Index; got != 2 {
		t.Fatalf("expected first chunk to end at cue index 2, got %d", got)
	}
}

// TestChunkFirstChunkTargetIsRelativeToZeroNotFirstCueStart is a direct
// regression test for the boundary that must be measured from t=0, not
// from the first cue's start time, matching the original chunk_srt_data
// algorithm (`last_cut_time = 0`). A late-starting first cue must not
// shift the first chunk's target cut time forward.
func TestChunkFirstChunkTargetIsRelativeToZeroNotFirstCueStart(t *testing.T) {
	const lateStart = 100.0
	cues := []domain.Cue{
		cue(0, lateStart+0, lateStart+4, "a"),
		cue(1, lateStart+4, lateStart+8, "b"),
		cue(2, lateStart+8, lateStart+12, "c"),
		cue(3, lateStart+12, lateStart+16, "d"),
	}
	// interval=10: if measured from t=0, target=10 is already behind the
	// first cue's start (100), so the search window's lower bound
	// (target*0.9=9) is behind everything and bestCut falls back to "no
	// cue found with gap" then to "first cue >= target" -- since every
	// cue starts past the target, the whole thing becomes one chunk.
	chunks := Chunk(cues, 10, 1000)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk when every cue starts past a target measured from t=0, got %d chunks", len(chunks))
	}
	if len(chunks[0].Cues) != 4 {
		t.Fatalf("expected all 4 cues in the single chunk, got %d", len(chunks[0].Cues))
	}
}

func TestChunkAdvancesLastCutTimeFromPriorChunkEnd(t *testing.T) {
	cues := []domain.Cue{
		cue(0, 0, 9, "a"),
		cue(1, 9, 10, "b"),
		cue(2, 10, 19, "c"),
		cue(3, 19, 20, "d"),
	}
	chunks := Chunk(cues, 10, 1000)
	if len(chunks) == 0 {
		t.Fatalf("expected at least one chunk")
	}
	// Every cue must appear exactly once across all chunks, in order.
	var seen []int
	for _, c := range chunks {
		for _, cu := range c.Cues {
			seen = append(seen, cu.Index)
		}
	}
	if len(seen) != len(cues) {
		t.Fatalf("expected every cue to appear exactly once, got %d of %d", len(seen), len(cues))
	}
	for i, idx := range seen {
		if idx != i {
			t.Fatalf("expected cues in order, got %v", seen)
		}
	}
}

func TestChunkDefaultsAppliedForNonPositiveParams(t *testing.T) {
	cues := []domain.Cue{cue(0, 0, 1, "a")}
	// Should not panic and should still produce a chunk with non-positive
	// interval/threshold falling back to the package defaults.
	chunks := Chunk(cues, 0, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestBuildChunkJoinsTextWithNewlines(t *testing.T) {
	cues := []domain.Cue{
		cue(0, 0, 1, "hello"),
		cue(1, 1, 2, "world"),
	}
	c := buildChunk(cues, 3)
	if c.ChunkIndex != 3 {
		t.Fatalf("unexpected chunk index: %d", c.ChunkIndex)
	}
	if c.Text != "hello\nworld" {
		t.Fatalf("unexpected joined text: %q", c.Text)
	}
	if len(c.Cues) != 2 {
		t.Fatalf("expected cues to be copied into the chunk, got %d", len(c.Cues))
	}
}
