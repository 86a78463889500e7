// Package stage6 cuts titled clips out of the source video and
// concatenates clips into their collections, writing both the rendered
// media and the presentation-layer metadata JSON the frontend reads.
//
// Grounded on original_source/src/pipeline/step6_video.py
// (VideoGenerator.generate_clips/generate_collections/
// save_clip_metadata/save_collection_metadata) and
// original_source/src/utils/video_processor.py
// (VideoProcessor.batch_extract_clips/create_collections_from_metadata).
package stage6

import (
	"context"
	"fmt"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/media"
	"github.com/clipforge/pipeline/internal/pipeline/errs"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/store"
	"github.com/clipforge/pipeline/internal/subtitle"
)

// maxConcurrentExtractions bounds how many ffmpeg extract/concat
// invocations run at once; unlike the original's sequential
// batch_extract_clips, clip cuts are independent so a bounded fan-out
// cuts wall-clock time on multi-clip projects without saturating the host.
const maxConcurrentExtractions = 4

// Input bundles what S6 needs.
type Input struct {
	Clips       []domain.TitledClip
	Collections []domain.Collection
	VideoPath   string
}

// ClipMetadata is the presentation-layer view written to
// clips_metadata.json: the titled clip plus where its rendered file
// landed (empty if extraction failed for that clip).
type ClipMetadata struct {
	domain.TitledClip
	VideoPath string `json:"video_path,omitempty"`
}

// CollectionMetadata is the presentation-layer view written to
// collections_metadata.json.
type CollectionMetadata struct {
	domain.Collection
	VideoPath string `json:"video_path,omitempty"`
}

// Result is what S6 produced.
type Result struct {
	Clips       []ClipMetadata
	Collections []CollectionMetadata
}

// Processor is the media capability S6 needs; *media.Processor
// satisfies it. Kept as an interface so the stage can be exercised in
// tests without invoking a real ffmpeg binary.
type Processor interface {
	Extract(ctx context.Context, src, dst string, start, end float64) error
	Concat(ctx context.Context, files []string, dst string) error
}

// Run extracts one .mp4 per clip and one concatenated .mp4 per
// collection, then persists both metadata views. A single clip or
// collection failure is logged and skipped; the stage always completes
// with whatever subset succeeded.
func Run(ctx context.Context, s *store.Store, proc Processor, in Input, log *logger.Logger) (Result, error) {
	clipsMeta := generateClips(ctx, s, proc, in.Clips, in.VideoPath, log)
	collectionsMeta := generateCollections(ctx, s, proc, in.Collections, clipsMeta, log)

	if err := s.WriteJSON("clips_metadata.json", clipsMeta); err != nil {
		return Result{}, err
	}
	if err := s.WriteJSON("collections_metadata.json", collectionsMeta); err != nil {
		return Result{}, err
	}

	return Result{Clips: clipsMeta, Collections: collectionsMeta}, nil
}

func generateClips(ctx context.Context, s *store.Store, proc Processor, clips []domain.TitledClip, videoPath string, log *logger.Logger) []ClipMetadata {
	out := make([]ClipMetadata, len(clips))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtractions)

	for i, c := range clips {
		i, c := i, c
		g.Go(func() error {
			meta := ClipMetadata{TitledClip: c}
			defer func() { out[i] = meta }()

			startSec, err := subtitle.TimeStringSeconds(c.StartTime)
			if err != nil {
				logWarn(log, "stage6: clip has malformed start_time, skipping extraction", "clip_id", c.ID, "error", err.Error())
				return nil
			}
			endSec, err := subtitle.TimeStringSeconds(c.EndTime)
			if err != nil {
				logWarn(log, "stage6: clip has malformed end_time, skipping extraction", "clip_id", c.ID, "error", err.Error())
				return nil
			}

			safeTitle := media.SanitizeFilename(c.GeneratedTitle)
			dst := filepath.Join(s.Paths.ClipsDir, fmt.Sprintf("%s_%s.mp4", c.ID, safeTitle))

			if err := proc.Extract(gctx, videoPath, dst, startSec, endSec); err != nil {
				mediaErr := &errs.MediaError{Op: "extract", Err: err}
				logWarn(log, "stage6: clip extraction failed, skipping", "clip_id", c.ID, "error", mediaErr.Error())
				return nil
			}

			meta.VideoPath = dst
			return nil
		})
	}
	// Extraction failures are swallowed per clip above (spec §7: MediaError
	// logs and continues); every goroutine returns nil, so g.Wait never
	// reports an error.
	_ = g.Wait()
	return out
}

func generateCollections(ctx context.Context, s *store.Store, proc Processor, collections []domain.Collection, clips []ClipMetadata, log *logger.Logger) []CollectionMetadata {
	pathByClipID := make(map[string]string, len(clips))
	for _, c := range clips {
		if c.VideoPath != "" {
			pathByClipID[c.ID] = c.VideoPath
		}
	}

	out := make([]CollectionMetadata, len(collections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentExtractions)

	for i, col := range collections {
		i, col := i, col
		g.Go(func() error {
			meta := CollectionMetadata{Collection: col}
			defer func() { out[i] = meta }()

			var files []string
			for _, clipID := range col.ClipIDs {
				path, ok := pathByClipID[clipID]
				if !ok {
					logWarn(log, "stage6: collection references a clip with no rendered file, skipping it", "collection_id", col.ID, "clip_id", clipID)
					continue
				}
				files = append(files, path)
			}

			if len(files) == 0 {
				logWarn(log, "stage6: collection has no valid clip files, skipping", "collection_id", col.ID)
				return nil
			}

			safeTitle := media.SanitizeFilename(col.CollectionTitle)
			dst := filepath.Join(s.Paths.CollectionsDir, safeTitle+".mp4")

			if err := proc.Concat(gctx, files, dst); err != nil {
				mediaErr := &errs.MediaError{Op: "concat", Err: err}
				logWarn(log, "stage6: collection concat failed, skipping", "collection_id", col.ID, "error", mediaErr.Error())
				return nil
			}

			meta.VideoPath = dst
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func logWarn(log *logger.Logger, msg string, kv ...interface{}) {
	if log != nil {
		log.Warn(msg, kv...)
	}
}
