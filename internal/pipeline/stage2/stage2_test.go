package stage2

import (
	"context"
	"os"
	"testing"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/store"
)

type scriptedProvider struct {
	responses []string
	calls     int
	callCount int
}

func (p *scriptedProvider) Call(ctx context.Context, prompt string, input any) (string, error) {
	p.callCount++
	r := p.responses[p.calls]
	if p.calls < len(p.responses)-1 {
		p.calls++
	}
	return r, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "stage2-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	s := store.Open(dir, "proj", "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatal(err)
	}
	return s
}

func testCues() []domain.Cue {
	return []domain.Cue{
		{Index: 1, Start: 0, End: 5, Text: "hello there"},
		{Index: 2, Start: 5, End: 10, Text: "world of topics"},
	}
}

func TestRun_ValidatesAndClampsAndAssignsIDs(t *testing.T) {
	s := newTestStore(t)
	chunk := domain.Chunk{ChunkIndex: 0, Cues: testCues()}
	outlines := []domain.Outline{{Title: "T1", ChunkIndex: 0}}

	resp := `[{"outline": "T1", "start_time": "00:00:00,000", "end_time": "00:00:20,000"}]`
	p := &scriptedProvider{responses: []string{resp}}

	items, err := Run(context.Background(), s, p, Input{
		Outlines: outlines, Chunks: []domain.Chunk{chunk}, Prompt: "timeline prompt", MaxRetries: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].ID != "1" {
		t.Fatalf("expected durable id '1', got %q", items[0].ID)
	}
	// end_time was beyond the chunk's bound (10s) and must be clamped.
	if items[0].EndTime != "00:00:10,000" {
		t.Fatalf("expected end_time clamped to chunk end, got %q", items[0].EndTime)
	}
}

func TestRun_RetriesOnInvalidThenSucceeds(t *testing.T) {
	s := newTestStore(t)
	chunk := domain.Chunk{ChunkIndex: 0, Cues: testCues()}
	outlines := []domain.Outline{{Title: "T1", ChunkIndex: 0}}

	p := &scriptedProvider{responses: []string{
		"not json at all",
		`[{"outline": "T1", "start_time": "00:00:00,000", "end_time": "00:00:05,000"}]`,
	}}

	items, err := Run(context.Background(), s, p, Input{
		Outlines: outlines, Chunks: []domain.Chunk{chunk}, Prompt: "timeline prompt", MaxRetries: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected eventual success with 1 item, got %d: %#v", len(items), items)
	}
	if !s.Exists("step2_llm_raw_output/chunk_0_attempt_0.txt") || !s.Exists("step2_llm_raw_output/chunk_0_attempt_1.txt") {
		t.Fatal("expected both attempts' raw output persisted")
	}
}

func TestRun_SkipsLLMCallWhenChunkCacheExists(t *testing.T) {
	s := newTestStore(t)
	chunk := domain.Chunk{ChunkIndex: 0, Cues: testCues()}
	outlines := []domain.Outline{{Title: "T1", ChunkIndex: 0}}

	cached := `[{"outline": "T1", "start_time": "00:00:00,000", "end_time": "00:00:05,000"}]`
	if err := s.WriteText("step2_llm_raw_output/chunk_0.txt", cached); err != nil {
		t.Fatal(err)
	}

	p := &scriptedProvider{responses: []string{"should never be used"}}

	items, err := Run(context.Background(), s, p, Input{
		Outlines: outlines, Chunks: []domain.Chunk{chunk}, Prompt: "timeline prompt", MaxRetries: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.callCount != 0 {
		t.Fatalf("expected LLM never called on cache hit, got %d calls", p.callCount)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item from cached response, got %d", len(items))
	}
}

func TestRun_FallsBackToLLMWhenCacheFailsToValidate(t *testing.T) {
	s := newTestStore(t)
	chunk := domain.Chunk{ChunkIndex: 0, Cues: testCues()}
	outlines := []domain.Outline{{Title: "T1", ChunkIndex: 0}}

	if err := s.WriteText("step2_llm_raw_output/chunk_0.txt", "not valid json"); err != nil {
		t.Fatal(err)
	}

	resp := `[{"outline": "T1", "start_time": "00:00:00,000", "end_time": "00:00:05,000"}]`
	p := &scriptedProvider{responses: []string{resp}}

	items, err := Run(context.Background(), s, p, Input{
		Outlines: outlines, Chunks: []domain.Chunk{chunk}, Prompt: "timeline prompt", MaxRetries: 1,
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if p.callCount == 0 {
		t.Fatal("expected LLM to be called since cached content failed to validate")
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestParseAndValidate_RejectsMissingFields(t *testing.T) {
	resp := `[{"outline": "T1", "start_time": "00:00:00,000"}]`
	items := parseAndValidate(resp, 0, 0, 10, testCues())
	if len(items) != 0 {
		t.Fatalf("expected item missing end_time to be rejected, got %#v", items)
	}
}

func TestParseAndValidate_RejectsMalformedTimestamp(t *testing.T) {
	resp := `[{"outline": "T1", "start_time": "0:0:0,0", "end_time": "00:00:05,000"}]`
	items := parseAndValidate(resp, 0, 0, 10, testCues())
	if len(items) != 0 {
		t.Fatalf("expected malformed timestamp to be rejected, got %#v", items)
	}
}

func TestParseAndValidate_RejectsReversedStartEnd(t *testing.T) {
	resp := `[{"outline": "T1", "start_time": "00:00:05,000", "end_time": "00:00:02,000"}]`
	items := parseAndValidate(resp, 0, 0, 10, testCues())
	if len(items) != 0 {
		t.Fatalf("expected reversed start/end to be rejected, got %#v", items)
	}
}

func TestParseAndValidate_RejectsDegenerateZeroDurationAfterClamping(t *testing.T) {
	// Both times are in order, but start_time (1s) lies before the chunk's
	// start (2s); clamping it up to 2s collapses the item to zero duration.
	resp := `[{"outline": "T1", "start_time": "00:00:01,000", "end_time": "00:00:02,000"}]`
	items := parseAndValidate(resp, 0, 2, 10, testCues())
	if len(items) != 0 {
		t.Fatalf("expected zero-duration item after clamping to be rejected, got %#v", items)
	}
}

func TestParseAndValidate_KeepsValidItemAlongsideRejectedOne(t *testing.T) {
	resp := `[` +
		`{"outline": "bad", "start_time": "00:00:05,000", "end_time": "00:00:02,000"},` +
		`{"outline": "good", "start_time": "00:00:00,000", "end_time": "00:00:05,000"}` +
		`]`
	items := parseAndValidate(resp, 0, 0, 10, testCues())
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 surviving item, got %#v", items)
	}
	if items[0].Outline != "good" {
		t.Fatalf("expected the valid item to survive, got %#v", items[0])
	}
}
