// Package chunker splits a cue sequence into ~interval-sized chunks,
// preferring to cut at a natural pause near the target boundary.
package chunker

import (
	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/subtitle"
)

const (
	DefaultIntervalSeconds    = 30 * 60
	DefaultPauseThresholdMs   = 1000
	lowerBoundFraction        = 0.9
	upperBoundFraction        = 1.1
)

// Chunk splits cues into chunks targeting intervalSeconds of content each.
// Ported from the original `chunk_srt_data` algorithm: advance past cues
// well short of the target, then look for a pause (gap >= pauseThresholdMs)
// before 110% of the target and cut right after the cue preceding it; if
// no such pause exists, cut at the first cue reaching the target; if that
// cut point doesn't advance past the chunk's start, the remainder becomes
// the final chunk.
func Chunk(cues []domain.Cue, intervalSeconds float64, pauseThresholdMs float64) []domain.Chunk {
	if len(cues) == 0 {
		return nil
	}
	if intervalSeconds <= 0 {
		intervalSeconds = DefaultIntervalSeconds
	}
	if pauseThresholdMs <= 0 {
		pauseThresholdMs = DefaultPauseThresholdMs
	}

	var chunks []domain.Chunk
	lastCutTime := 0.0
	chunkStart := 0
	chunkIndex := 0

	for chunkStart < len(cues) {
		targetCutTime := lastCutTime + intervalSeconds

		searchStart := chunkStart
		for searchStart < len(cues) && cues[searchStart].Start < targetCutTime*lowerBoundFraction {
			searchStart++
		}

		bestCut := -1
		for i := searchStart; i < len(cues)-1; i++ {
			if cues[i].Start > targetCutTime*upperBoundFraction {
				break
			}
			gapMs := (cues[i+1].Start - cues[i].End) * 1000
			if gapMs >= pauseThresholdMs {
				bestCut = i + 1
				break
			}
		}

		if bestCut < 0 {
			bestCut = len(cues)
			for i := searchStart; i < len(cues); i++ {
				if cues[i].Start >= targetCutTime {
					bestCut = i
					break
				}
			}
		}

		if bestCut <= chunkStart {
			bestCut = len(cues)
		}

		slice := cues[chunkStart:bestCut]
		chunk := buildChunk(slice, chunkIndex)
		chunks = append(chunks, chunk)

		lastCutTime = slice[len(slice)-1].End
		chunkStart = bestCut
		chunkIndex++
	}

	return chunks
}

func buildChunk(cues []domain.Cue, index int) domain.Chunk {
	text := make([]string, 0, len(cues))
	for _, c := range cues {
		text = append(text, c.Text)
	}
	joined := ""
	for i, t := range text {
		if i > 0 {
			joined += "\n"
		}
		joined += t
	}
	return domain.Chunk{
		ChunkIndex: index,
		Text:       joined,
		StartTime:  subtitle.FromSeconds(cues[0].Start),
		EndTime:    subtitle.FromSeconds(cues[len(cues)-1].End),
		Cues:       append([]domain.Cue(nil), cues...),
	}
}
