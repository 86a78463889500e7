// Package stage2 anchors each stage-1 outline to a concrete time window
// by prompting the LLM with the chunk's outlines plus its reconstructed
// SRT text, then assigns durable clip ids by a final global sort.
//
// Grounded on original_source/src/pipeline/step2_timeline.py
// (TimelineExtractor.extract_timeline/_parse_and_validate_response).
package stage2

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/store"
	"github.com/clipforge/pipeline/internal/subtitle"
)

// maxParseRetries is the number of extra attempts made *within* the
// stage, independent of C3's own transport-level CallWithRetry, when the
// response fails to parse/validate into at least one item.
const maxParseRetries = 2

const escalationClause = "\n\nIMPORTANT formatting requirements:\n" +
	"1. Output must start with [ and end with ]\n" +
	"2. Use straight double quotes, never curly quotes\n" +
	"3. Escape any quote characters inside strings as \\\"\n" +
	"4. Do not add explanatory text or code fences\n" +
	"5. The JSON must be exactly well-formed"

// Input bundles what S2 needs: the S1 outlines and the chunks they came
// from (for srt text reconstruction and chunk time bounds).
type Input struct {
	Outlines   []domain.Outline
	Chunks     []domain.Chunk
	Prompt     string
	MaxRetries int // C3 transport-level retries per LLM call
}

// llmOutlineView is the reduced shape sent to the LLM — just title and
// subtopics, no chunk_index noise.
type llmOutlineView struct {
	Title     string   `json:"title"`
	Subtopics []string `json:"subtopics"`
}

// rawTimelineItem mirrors the JSON shape the LLM is expected to emit,
// before validation/clamping.
type rawTimelineItem struct {
	Outline   string `json:"outline"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Run processes each chunk's outlines into validated timeline items, then
// globally sorts by start time and assigns durable, 1-based string ids.
func Run(ctx context.Context, s *store.Store, p llm.Provider, in Input, log *logger.Logger) ([]domain.TimelineItem, error) {
	byChunk := groupByChunk(in.Outlines)
	chunkByIndex := make(map[int]domain.Chunk, len(in.Chunks))
	for _, c := range in.Chunks {
		chunkByIndex[c.ChunkIndex] = c
	}

	chunkIndices := make([]int, 0, len(byChunk))
	for idx := range byChunk {
		chunkIndices = append(chunkIndices, idx)
	}
	sort.Ints(chunkIndices)

	var all []domain.TimelineItem
	for _, chunkIndex := range chunkIndices {
		outlines := byChunk[chunkIndex]
		chunk, ok := chunkByIndex[chunkIndex]
		if !ok || len(chunk.Cues) == 0 {
			if log != nil {
				log.Warn("stage2: no cues for chunk, skipping", "chunk_index", chunkIndex)
			}
			continue
		}

		items, err := processChunk(ctx, s, p, in, chunkIndex, outlines, chunk, log)
		if err != nil {
			if log != nil {
				log.Error("stage2: chunk failed", "chunk_index", chunkIndex, "error", err.Error())
			}
			continue
		}
		if len(items) > 0 {
			if err := s.WriteJSON(store.ChunkArtifactPath("step2_timeline_chunks", chunkIndex, "json"), items); err != nil {
				return nil, err
			}
		}
		all = append(all, items...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		si, _ := subtitle.TimeStringSeconds(all[i].StartTime)
		sj, _ := subtitle.TimeStringSeconds(all[j].StartTime)
		return si < sj
	})
	for i := range all {
		all[i].ID = strconv.Itoa(i + 1)
	}
	return all, nil
}

func processChunk(ctx context.Context, s *store.Store, p llm.Provider, in Input, chunkIndex int, outlines []domain.Outline, chunk domain.Chunk, log *logger.Logger) ([]domain.TimelineItem, error) {
	chunkStart := chunk.Cues[0].Start
	chunkEnd := chunk.Cues[len(chunk.Cues)-1].End

	llmOutlines := make([]llmOutlineView, 0, len(outlines))
	for _, o := range outlines {
		llmOutlines = append(llmOutlines, llmOutlineView{Title: o.Title, Subtopics: o.Subtopics})
	}

	srtText := reconstructSRTText(chunk.Cues)
	prompt := in.Prompt
	var lastItems []domain.TimelineItem

	cachePath := store.ChunkArtifactPath("step2_llm_raw_output", chunkIndex, "txt")
	if cached, ok, err := s.ReadText(cachePath); err != nil {
		return nil, err
	} else if ok {
		if items := parseAndValidate(cached, chunkIndex, chunkStart, chunkEnd, chunk.Cues); len(items) > 0 {
			if log != nil {
				log.Info("stage2: using cached raw response for chunk", "chunk_index", chunkIndex)
			}
			return items, nil
		}
		if log != nil {
			log.Warn("stage2: cached raw response failed to validate, re-calling LLM", "chunk_index", chunkIndex)
		}
	}

	for attempt := 0; attempt <= maxParseRetries; attempt++ {
		inputData := map[string]any{
			"outline":  llmOutlines,
			"srt_text": srtText,
		}

		response, err := llm.CallWithRetry(ctx, p, prompt, inputData, in.MaxRetries)
		if err != nil {
			return nil, err
		}
		if response == "" {
			continue
		}

		if err := s.WriteText(store.AttemptArtifactPath("step2_llm_raw_output", chunkIndex, attempt), response); err != nil {
			return nil, err
		}

		items := parseAndValidate(response, chunkIndex, chunkStart, chunkEnd, chunk.Cues)
		if len(items) > 0 {
			if err := s.WriteText(cachePath, response); err != nil {
				return nil, err
			}
			return items, nil
		}
		lastItems = items

		if attempt < maxParseRetries {
			prompt = in.Prompt + escalationClause
			if log != nil {
				log.Warn("stage2: parse failed, retrying with escalated prompt", "chunk_index", chunkIndex, "attempt", attempt)
			}
		}
	}
	return lastItems, nil
}

// parseAndValidate parses response as a JSON array of
// {outline, start_time, end_time}, rejecting items missing any field or
// with malformed timestamps, and clamping times to the chunk's bounds.
func parseAndValidate(response string, chunkIndex int, chunkStart, chunkEnd float64, cues []domain.Cue) []domain.TimelineItem {
	parsed, err := llm.ParseJSON(response)
	if err != nil {
		return nil
	}
	arr, ok := parsed.([]any)
	if !ok {
		return nil
	}

	var out []domain.TimelineItem
	for _, raw := range arr {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		outline, _ := obj["outline"].(string)
		startTime, _ := obj["start_time"].(string)
		endTime, _ := obj["end_time"].(string)
		if outline == "" || startTime == "" || endTime == "" {
			continue
		}
		if !subtitle.TimestampRe.MatchString(startTime) || !subtitle.TimestampRe.MatchString(endTime) {
			continue
		}

		startSec, err1 := subtitle.TimeStringSeconds(startTime)
		endSec, err2 := subtitle.TimeStringSeconds(endTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if startSec < chunkStart {
			startTime = subtitle.FromSeconds(chunkStart)
			startSec = chunkStart
		}
		if endSec > chunkEnd {
			endTime = subtitle.FromSeconds(chunkEnd)
			endSec = chunkEnd
		}
		if startSec >= endSec {
			// Clamping against the chunk bounds can degenerate a timeline
			// item to zero or negative duration; the invariant
			// start_time < end_time holds for every item that reaches S3,
			// so drop it here rather than let it surface later as a
			// silently-skipped clip in S6.
			continue
		}

		out = append(out, domain.TimelineItem{
			Outline:    outline,
			Content:    subtitle.ExtractTextInRange(cues, startSec, endSec),
			StartTime:  startTime,
			EndTime:    endTime,
			ChunkIndex: chunkIndex,
		})
	}
	return out
}

func reconstructSRTText(cues []domain.Cue) string {
	var text string
	for _, c := range cues {
		text += fmt.Sprintf("%d\n%s --> %s\n%s\n\n",
			c.Index, subtitle.FromSeconds(c.Start), subtitle.FromSeconds(c.End), c.Text)
	}
	return text
}

func groupByChunk(outlines []domain.Outline) map[int][]domain.Outline {
	out := make(map[int][]domain.Outline)
	for _, o := range outlines {
		out[o.ChunkIndex] = append(out[o.ChunkIndex], o)
	}
	return out
}
