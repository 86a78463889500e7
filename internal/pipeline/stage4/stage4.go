// Package stage4 generates a punchy title per high-score clip with one
// batched LLM call per chunk, falling back to the clip's outline on any
// missing or malformed entry.
//
// Grounded on original_source/src/pipeline/step4_title.py
// (TitleGenerator.generate_titles).
package stage4

import (
	"context"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/store"
)

// Input bundles what S4 needs.
type Input struct {
	Clips      []domain.ScoredClip
	Prompt     string
	MaxRetries int
}

type llmRequestItem struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	RecommendReason string `json:"recommend_reason"`
}

// Run batches clips by chunk_index, asks the LLM for an id -> title map
// per batch, and applies it clip-by-clip with an outline fallback. No
// clip is ever dropped, even on total batch failure.
func Run(ctx context.Context, s *store.Store, p llm.Provider, in Input, log *logger.Logger) ([]domain.TitledClip, error) {
	byChunk, order := groupByChunkPreservingOrder(in.Clips)

	var out []domain.TitledClip
	for _, chunkIndex := range order {
		clips := byChunk[chunkIndex]
		titled, err := titleBatch(ctx, s, p, in.Prompt, in.MaxRetries, chunkIndex, clips, log)
		if err != nil {
			return nil, err
		}
		out = append(out, titled...)
	}
	return out, nil
}

func titleBatch(ctx context.Context, s *store.Store, p llm.Provider, prompt string, maxRetries, chunkIndex int, clips []domain.ScoredClip, log *logger.Logger) ([]domain.TitledClip, error) {
	request := make([]llmRequestItem, 0, len(clips))
	for _, c := range clips {
		request = append(request, llmRequestItem{
			ID: c.ID, Title: c.Outline, Content: c.Content, RecommendReason: c.RecommendReason,
		})
	}

	fallbackAll := func() []domain.TitledClip {
		out := make([]domain.TitledClip, len(clips))
		for i, c := range clips {
			out[i] = domain.TitledClip{ScoredClip: c, GeneratedTitle: c.Outline}
		}
		return out
	}

	response, err := llm.CallWithRetry(ctx, p, prompt, request, maxRetries)
	if err != nil || response == "" {
		if log != nil {
			log.Warn("stage4: batch LLM call failed, falling back to outline titles", "chunk_index", chunkIndex, "error", errString(err))
		}
		return fallbackAll(), nil
	}

	if err := s.WriteText(store.ChunkArtifactPath("step4_llm_raw_output", chunkIndex, "txt"), response); err != nil {
		return nil, err
	}

	parsed, err := llm.ParseJSON(response)
	if err != nil {
		if log != nil {
			log.Warn("stage4: batch response unparsable, falling back to outline titles", "chunk_index", chunkIndex, "error", err.Error())
		}
		return fallbackAll(), nil
	}
	titlesMap, ok := parsed.(map[string]any)
	if !ok {
		if log != nil {
			log.Warn("stage4: LLM did not return a map, falling back to outline titles", "chunk_index", chunkIndex)
		}
		return fallbackAll(), nil
	}

	out := make([]domain.TitledClip, len(clips))
	for i, c := range clips {
		title, ok := titlesMap[c.ID].(string)
		if !ok || title == "" {
			title = c.Outline
		}
		out[i] = domain.TitledClip{ScoredClip: c, GeneratedTitle: title}
	}
	return out, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func groupByChunkPreservingOrder(clips []domain.ScoredClip) (map[int][]domain.ScoredClip, []int) {
	byChunk := make(map[int][]domain.ScoredClip)
	var order []int
	for _, c := range clips {
		if _, seen := byChunk[c.ChunkIndex]; !seen {
			order = append(order, c.ChunkIndex)
		}
		byChunk[c.ChunkIndex] = append(byChunk[c.ChunkIndex], c)
	}
	return byChunk, order
}
