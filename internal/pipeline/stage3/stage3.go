// Package stage3 scores each timeline item with a batched per-chunk LLM
// call, then filters by a minimum score threshold.
//
// Grounded on original_source/src/pipeline/step3_scoring.py
// (ClipScorer.score_clips/_get_llm_evaluation).
package stage3

import (
	"context"
	"sort"
	"strconv"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/platform/logger"
)

const (
	batchFailedReason = "batch evaluation failed"
	itemFailedReason   = "evaluation failed"
)

// Input bundles what S3 needs.
type Input struct {
	Items             []domain.TimelineItem
	Prompt            string
	MinScoreThreshold float64
	MaxRetries        int
}

// llmRequestItem is the reduced shape sent to the LLM per clip.
type llmRequestItem struct {
	Outline   string `json:"outline"`
	Content   string `json:"content"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type llmScoreResult struct {
	FinalScore      *float64 `json:"final_score"`
	RecommendReason *string  `json:"recommend_reason"`
}

// Result is S3's output: every scored item sorted by id (for
// step3_all_scored.json) and the high-score subset, also in id order.
type Result struct {
	AllScored []domain.ScoredClip
	HighScore []domain.ScoredClip
}

// Run batches items by chunk_index, scores each batch with one LLM call,
// and returns both the full scored set and the threshold-filtered subset.
func Run(ctx context.Context, p llm.Provider, in Input, log *logger.Logger) (Result, error) {
	byChunk, order := groupByChunkPreservingOrder(in.Items)

	var allScored []domain.ScoredClip
	for _, chunkIndex := range order {
		items := byChunk[chunkIndex]
		scored := scoreBatch(ctx, p, in.Prompt, in.MaxRetries, items, log)
		allScored = append(allScored, scored...)
	}

	sort.SliceStable(allScored, func(i, j int) bool {
		return allScored[i].FinalScore > allScored[j].FinalScore
	})
	sort.SliceStable(allScored, func(i, j int) bool {
		return idAsInt(allScored[i].ID) < idAsInt(allScored[j].ID)
	})

	var highScore []domain.ScoredClip
	for _, c := range allScored {
		if c.FinalScore >= in.MinScoreThreshold {
			highScore = append(highScore, c)
		}
	}
	sort.SliceStable(highScore, func(i, j int) bool {
		return idAsInt(highScore[i].ID) < idAsInt(highScore[j].ID)
	})

	return Result{AllScored: allScored, HighScore: highScore}, nil
}

// scoreBatch scores one chunk's items with a single LLM call. On
// transport failure or an array-length mismatch, the whole batch is
// marked score 0 with batchFailedReason, never dropped. Individual items
// missing either field get (0.0, itemFailedReason).
func scoreBatch(ctx context.Context, p llm.Provider, prompt string, maxRetries int, items []domain.TimelineItem, log *logger.Logger) []domain.ScoredClip {
	request := make([]llmRequestItem, 0, len(items))
	for _, it := range items {
		request = append(request, llmRequestItem{
			Outline: it.Outline, Content: it.Content,
			StartTime: it.StartTime, EndTime: it.EndTime,
		})
	}

	fail := func() []domain.ScoredClip {
		out := make([]domain.ScoredClip, len(items))
		for i, it := range items {
			out[i] = domain.ScoredClip{TimelineItem: it, FinalScore: 0, RecommendReason: batchFailedReason}
		}
		return out
	}

	response, err := llm.CallWithRetry(ctx, p, prompt, request, maxRetries)
	if err != nil || response == "" {
		if log != nil {
			log.Warn("stage3: batch LLM call failed", "chunk_index", items[0].ChunkIndex, "error", errString(err))
		}
		return fail()
	}

	parsed, err := llm.ParseJSON(response)
	if err != nil {
		if log != nil {
			log.Warn("stage3: batch response unparsable", "chunk_index", items[0].ChunkIndex, "error", err.Error())
		}
		return fail()
	}
	arr, ok := parsed.([]any)
	if !ok || len(arr) != len(items) {
		if log != nil {
			log.Error("stage3: batch result length mismatch", "chunk_index", items[0].ChunkIndex, "input", len(items), "output", len(arr))
		}
		return fail()
	}

	out := make([]domain.ScoredClip, len(items))
	for i, it := range items {
		score, reason, ok := extractScore(arr[i])
		if !ok {
			out[i] = domain.ScoredClip{TimelineItem: it, FinalScore: 0, RecommendReason: itemFailedReason}
			continue
		}
		out[i] = domain.ScoredClip{TimelineItem: it, FinalScore: round2(score), RecommendReason: reason}
	}
	return out
}

// extractScore pulls final_score/recommend_reason out of one element of
// the parsed LLM array; ok is false if either field is missing.
func extractScore(raw any) (score float64, reason string, ok bool) {
	obj, isMap := raw.(map[string]any)
	if !isMap {
		return 0, "", false
	}
	s, hasScore := obj["final_score"]
	r, hasReason := obj["recommend_reason"]
	if !hasScore || !hasReason || s == nil || r == nil {
		return 0, "", false
	}
	f, isNum := s.(float64)
	reasonStr, isStr := r.(string)
	if !isNum || !isStr {
		return 0, "", false
	}
	return f, reasonStr, true
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func idAsInt(id string) int {
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0
	}
	return n
}

func groupByChunkPreservingOrder(items []domain.TimelineItem) (map[int][]domain.TimelineItem, []int) {
	byChunk := make(map[int][]domain.TimelineItem)
	var order []int
	for _, it := range items {
		if _, seen := byChunk[it.ChunkIndex]; !seen {
			order = append(order, it.ChunkIndex)
		}
		byChunk[it.ChunkIndex] = append(byChunk[it.ChunkIndex], it)
	}
	return byChunk, order
}
