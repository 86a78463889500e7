// Package stage1 extracts a structural outline from each chunk of
// subtitle cues via the LLM Gateway.
//
// Grounded on original_source/src/pipeline/step1_outline.py
// (OutlineExtractor.extract_outline/_parse_outline_response/
// _merge_outlines).
package stage1

import (
	"context"
	"regexp"
	"strings"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/store"
)

const maxSubtopicLen = 200

var numberedTitleRe = regexp.MustCompile(`^\d+\.\s*\*\*`)

// Input bundles everything S1 needs: the already-chunked cues and the
// resolved outline prompt.
type Input struct {
	Chunks     []domain.Chunk
	Prompt     string
	MaxRetries int
}

// Run prompts the LLM once per chunk, parses each response into
// {title, subtopics} outlines, persists per-chunk text/SRT artifacts
// (written every run, never read back), and merges the result set (first occurrence of a title
// wins). A single chunk's failure is logged and skipped; the stage
// proceeds with the rest.
func Run(ctx context.Context, s *store.Store, p llm.Provider, in Input, log *logger.Logger) ([]domain.Outline, error) {
	var all []domain.Outline

	for _, chunk := range in.Chunks {
		if err := s.WriteText(store.ChunkArtifactPath("step1_chunks", chunk.ChunkIndex, "txt"), chunk.Text); err != nil {
			return nil, err
		}
		if err := s.WriteJSON(store.ChunkArtifactPath("step1_srt_chunks", chunk.ChunkIndex, "json"), chunk.Cues); err != nil {
			return nil, err
		}

		response, err := llm.CallWithRetry(ctx, p, in.Prompt, map[string]any{"text": chunk.Text}, in.MaxRetries)
		if err != nil {
			if log != nil {
				log.Warn("stage1: chunk failed, skipping", "chunk_index", chunk.ChunkIndex, "error", err.Error())
			}
			continue
		}
		if response == "" {
			if log != nil {
				log.Warn("stage1: empty response, skipping chunk", "chunk_index", chunk.ChunkIndex)
			}
			continue
		}

		outlines := parseOutlineResponse(response, chunk.ChunkIndex)
		all = append(all, outlines...)
	}

	return mergeOutlines(all), nil
}

// parseOutlineResponse expects Markdown with numbered "N. **Title**"
// lines followed by "- subtopic" bullets.
func parseOutlineResponse(response string, chunkIndex int) []domain.Outline {
	var outlines []domain.Outline
	var current *domain.Outline

	for _, rawLine := range strings.Split(response, "\n") {
		line := strings.TrimSpace(rawLine)

		if numberedTitleRe.MatchString(line) {
			if current != nil {
				outlines = append(outlines, *current)
			}
			current = &domain.Outline{
				Title:      extractTitle(line),
				ChunkIndex: chunkIndex,
			}
			continue
		}

		if strings.HasPrefix(line, "-") && current != nil {
			subtopic := strings.TrimSpace(strings.TrimPrefix(line, "-"))
			if subtopic != "" && len(subtopic) <= maxSubtopicLen {
				current.Subtopics = append(current.Subtopics, subtopic)
			}
		}
	}
	if current != nil {
		outlines = append(outlines, *current)
	}
	return outlines
}

// extractTitle pulls the title out of a numbered "N. **Title**" line,
// preferring the bold-delimited segment and falling back to everything
// after the first ". ".
func extractTitle(line string) string {
	if strings.Contains(line, "**") {
		parts := strings.SplitN(line, "**", 3)
		if len(parts) >= 2 {
			return parts[1]
		}
	}
	parts := strings.SplitN(line, ".", 2)
	if len(parts) == 2 {
		return strings.TrimSpace(parts[1])
	}
	return line
}

// mergeOutlines dedups by title, keeping the first occurrence.
func mergeOutlines(outlines []domain.Outline) []domain.Outline {
	seen := make(map[string]bool, len(outlines))
	var out []domain.Outline
	for _, o := range outlines {
		if seen[o.Title] {
			continue
		}
		seen[o.Title] = true
		out = append(out, o)
	}
	return out
}
