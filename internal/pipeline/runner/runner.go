// Package runner is the Pipeline Runner (C6): a resumable six-stage state
// machine with per-project serialization and a global concurrency cap.
//
// Grounded on spec §4.6/§5 and, for idiom, on the teacher's
// internal/jobs/worker.go (background goroutine + panic recovery mapped
// to a terminal failure) and internal/jobs/orchestrator/engine.go
// (progress never regresses, a failed stage calls a single Fail path).
// This system has no job queue table (per-project DB schemas are an
// explicit Non-goal), so the teacher's DB-claimed-row serialization is
// reimplemented here as an in-process mutex guarding an active-run
// counter and a per-project "processing" set, per spec §5's five
// serialization rules.
package runner

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/clipforge/pipeline/internal/chunker"
	"github.com/clipforge/pipeline/internal/config"
	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/llm"
	"github.com/clipforge/pipeline/internal/pipeline/stage1"
	"github.com/clipforge/pipeline/internal/pipeline/stage2"
	"github.com/clipforge/pipeline/internal/pipeline/stage3"
	"github.com/clipforge/pipeline/internal/pipeline/stage4"
	"github.com/clipforge/pipeline/internal/pipeline/stage5"
	"github.com/clipforge/pipeline/internal/pipeline/stage6"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/status"
	"github.com/clipforge/pipeline/internal/store"
	"github.com/clipforge/pipeline/internal/subtitle"
)

// Outcome is what a start/retry request immediately resolves to; actual
// processing continues in the background and is observed through the
// status projection.
type Outcome string

const (
	OutcomeStarted  Outcome = "started"
	OutcomeBusy     Outcome = "busy"
	OutcomeConflict Outcome = "conflict"
)

const maxErrorMessageLen = 300

// Deps bundles the runner's collaborators.
type Deps struct {
	ProjectsRoot string
	Processing   config.Processing
	Prompts      config.Prompts
	Provider     llm.Provider
	Media        stage6.Processor
	Status       *status.Projection
	Log          *logger.Logger
}

// Runner drives the six stages for any number of projects, honoring
// spec §5's serialization rules.
type Runner struct {
	deps Deps

	mu         sync.Mutex
	activeRuns int
	processing map[string]bool
}

func New(deps Deps) *Runner {
	return &Runner{deps: deps, processing: make(map[string]bool)}
}

func (r *Runner) maxConcurrent() int {
	if r.deps.Processing.MaxConcurrentRuns <= 0 {
		return 1
	}
	return r.deps.Processing.MaxConcurrentRuns
}

// Start begins a fresh run from stage 1.
func (r *Runner) Start(ctx context.Context, projectID string) (Outcome, error) {
	return r.beginRun(ctx, projectID, 1)
}

// Retry resumes from the stage after the last one that completed
// successfully, per its stepN_result.json markers. Only valid when the
// project is in the error state.
func (r *Runner) Retry(ctx context.Context, projectID string) (Outcome, error) {
	s := store.Open(r.deps.ProjectsRoot, projectID, "")
	proj, ok, err := s.LoadProjectMetadata()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("project %q not found", projectID)
	}
	if proj.Status != domain.StatusError {
		return "", fmt.Errorf("project %q is not in an error state", projectID)
	}
	startStage := s.LastCompletedStage() + 1
	if startStage > 6 {
		startStage = 6
	}
	return r.beginRun(ctx, projectID, startStage)
}

// beginRun applies spec §5's serialization rules 1-4, then spawns the
// background worker and returns immediately.
func (r *Runner) beginRun(ctx context.Context, projectID string, startStage int) (Outcome, error) {
	r.mu.Lock()
	if r.activeRuns >= r.maxConcurrent() {
		r.mu.Unlock()
		return OutcomeBusy, nil
	}
	if r.processing[projectID] {
		r.mu.Unlock()
		return OutcomeConflict, nil
	}
	r.activeRuns++
	r.processing[projectID] = true
	r.mu.Unlock()

	s := store.Open(r.deps.ProjectsRoot, projectID, "")
	proj, ok, err := s.LoadProjectMetadata()
	if err != nil || !ok {
		r.release(projectID)
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("project %q not found", projectID)
	}

	proj.Status = domain.StatusProcessing
	proj.ErrorMessage = ""
	if err := s.SaveProjectMetadata(proj); err != nil {
		r.release(projectID)
		return "", err
	}
	r.deps.Status.Set(projectID, status.Snapshot{
		Status:          domain.StatusProcessing,
		CurrentStep:     proj.CurrentStage,
		TotalSteps:      status.TotalStages,
		ProgressPercent: status.EntryPercent(startStage),
	})

	go r.run(ctx, projectID, startStage, proj)
	return OutcomeStarted, nil
}

// release decrements the global counter "in a finally-equivalent path"
// (spec §5) so a crashed worker never permanently occupies a slot.
func (r *Runner) release(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeRuns--
	delete(r.processing, projectID)
}

func (r *Runner) run(ctx context.Context, projectID string, startStage int, proj domain.Project) {
	defer r.release(projectID)
	s := store.Open(r.deps.ProjectsRoot, projectID, "")

	defer func() {
		if rec := recover(); rec != nil {
			r.fail(s, projectID, proj, fmt.Sprintf("panic: %v", rec))
		}
	}()

	log := r.deps.Log
	proc := r.deps.Processing

	cues, err := loadCues(s)
	if err != nil {
		r.fail(s, projectID, proj, err.Error())
		return
	}
	chunks := chunker.Chunk(cues, proc.ChunkIntervalSeconds, proc.PauseThresholdMs)

	var outlines []domain.Outline
	var timeline []domain.TimelineItem
	var scoredHigh []domain.ScoredClip
	var titled []domain.TitledClip
	var collections []domain.Collection

	if startStage > 1 {
		s.ReadJSON("step1_outline.json", &outlines)
	}
	if startStage > 2 {
		s.ReadJSON("step2_timeline.json", &timeline)
	}
	if startStage > 3 {
		s.ReadJSON("step3_high_score_clips.json", &scoredHigh)
	}
	if startStage > 4 {
		s.ReadJSON("step4_titles.json", &titled)
	}
	if startStage > 5 {
		s.ReadJSON("step5_collections.json", &collections)
	}

	runStage := func(stageNum int, name string, fn func() error) bool {
		r.progress(projectID, stageNum, name, status.EntryPercent(stageNum))
		if err := fn(); err != nil {
			r.fail(s, projectID, proj, err.Error())
			return false
		}
		if err := s.MarkStageComplete(stageNum, name+" complete"); err != nil {
			r.fail(s, projectID, proj, err.Error())
			return false
		}
		proj.CurrentStage = stageNum
		if err := s.SaveProjectMetadata(proj); err != nil {
			r.fail(s, projectID, proj, err.Error())
			return false
		}
		r.progress(projectID, stageNum, name, status.ExitPercent(stageNum))
		return true
	}

	if startStage <= 1 {
		prompt, perr := r.deps.Prompts.Resolve(config.PromptOutline, proj.Category)
		if perr != nil {
			r.fail(s, projectID, proj, perr.Error())
			return
		}
		if !runStage(1, "outline", func() error {
			out, err := stage1.Run(ctx, s, r.deps.Provider, stage1.Input{
				Chunks: chunks, Prompt: prompt, MaxRetries: proc.LLMMaxRetries,
			}, log)
			if err != nil {
				return err
			}
			outlines = out
			return s.WriteJSON("step1_outline.json", outlines)
		}) {
			return
		}
	}

	if startStage <= 2 {
		prompt, perr := r.deps.Prompts.Resolve(config.PromptTimeline, proj.Category)
		if perr != nil {
			r.fail(s, projectID, proj, perr.Error())
			return
		}
		if !runStage(2, "timeline", func() error {
			out, err := stage2.Run(ctx, s, r.deps.Provider, stage2.Input{
				Outlines: outlines, Chunks: chunks, Prompt: prompt, MaxRetries: proc.LLMMaxRetries,
			}, log)
			if err != nil {
				return err
			}
			timeline = out
			return s.WriteJSON("step2_timeline.json", timeline)
		}) {
			return
		}
	}

	if startStage <= 3 {
		prompt, perr := r.deps.Prompts.Resolve(config.PromptRecommendation, proj.Category)
		if perr != nil {
			r.fail(s, projectID, proj, perr.Error())
			return
		}
		if !runStage(3, "scoring", func() error {
			out, err := stage3.Run(ctx, r.deps.Provider, stage3.Input{
				Items: timeline, Prompt: prompt, MinScoreThreshold: proc.MinScoreThreshold, MaxRetries: proc.LLMMaxRetries,
			}, log)
			if err != nil {
				return err
			}
			scoredHigh = out.HighScore
			if err := s.WriteJSON("step3_all_scored.json", out.AllScored); err != nil {
				return err
			}
			return s.WriteJSON("step3_high_score_clips.json", scoredHigh)
		}) {
			return
		}
	}

	if startStage <= 4 {
		prompt, perr := r.deps.Prompts.Resolve(config.PromptTitle, proj.Category)
		if perr != nil {
			r.fail(s, projectID, proj, perr.Error())
			return
		}
		if !runStage(4, "title", func() error {
			out, err := stage4.Run(ctx, s, r.deps.Provider, stage4.Input{
				Clips: scoredHigh, Prompt: prompt, MaxRetries: proc.LLMMaxRetries,
			}, log)
			if err != nil {
				return err
			}
			titled = out
			return s.WriteJSON("step4_titles.json", titled)
		}) {
			return
		}
	}

	if startStage <= 5 {
		prompt, perr := r.deps.Prompts.Resolve(config.PromptClustering, proj.Category)
		if perr != nil {
			r.fail(s, projectID, proj, perr.Error())
			return
		}
		if !runStage(5, "clustering", func() error {
			out, err := stage5.Run(ctx, r.deps.Provider, stage5.Input{
				Clips: titled, Prompt: prompt, MaxClipsPerCollection: proc.MaxClipsPerCollection, MaxRetries: proc.LLMMaxRetries,
			}, log)
			if err != nil {
				return err
			}
			collections = out
			return s.WriteJSON("step5_collections.json", collections)
		}) {
			return
		}
	}

	if startStage <= 6 {
		if !runStage(6, "media", func() error {
			out, err := stage6.Run(ctx, s, r.deps.Media, stage6.Input{
				Clips: titled, Collections: collections, VideoPath: proj.VideoPath,
			}, log)
			if err != nil {
				return err
			}
			return s.WriteJSON("final_results.json", out)
		}) {
			return
		}
	}

	proj.Status = domain.StatusCompleted
	proj.CurrentStage = 6
	proj.ErrorMessage = ""
	if err := s.SaveProjectMetadata(proj); err != nil {
		r.fail(s, projectID, proj, err.Error())
		return
	}
	r.deps.Status.Set(projectID, status.Snapshot{
		Status:          domain.StatusCompleted,
		CurrentStep:     6,
		TotalSteps:      status.TotalStages,
		StepName:        "media",
		ProgressPercent: 100,
	})
}

// fail transitions the project to the error state with a truncated
// cause message and updates the status projection; it never unwinds
// artifacts already written, so retry can resume from the last
// completed stage.
func (r *Runner) fail(s *store.Store, projectID string, proj domain.Project, cause string) {
	msg := truncate(cause, maxErrorMessageLen)
	proj.Status = domain.StatusError
	proj.ErrorMessage = msg
	_ = s.SaveProjectMetadata(proj)
	if r.deps.Log != nil {
		r.deps.Log.Error("runner: project failed", "project_id", projectID, "error", msg)
	}
	r.deps.Status.Set(projectID, status.Snapshot{
		Status:          domain.StatusError,
		CurrentStep:     proj.CurrentStage,
		TotalSteps:      status.TotalStages,
		ProgressPercent: status.EntryPercent(proj.CurrentStage + 1),
		ErrorMessage:    msg,
	})
}

func (r *Runner) progress(projectID string, stage int, name string, percent float64) {
	r.deps.Status.Set(projectID, status.Snapshot{
		Status:          domain.StatusProcessing,
		CurrentStep:     stage,
		TotalSteps:      status.TotalStages,
		StepName:        name,
		ProgressPercent: percent,
	})
}

func loadCues(s *store.Store) ([]domain.Cue, error) {
	f, err := os.Open(s.Paths.InputSRT)
	if err != nil {
		return nil, fmt.Errorf("open input subtitle: %w", err)
	}
	defer f.Close()
	return subtitle.Parse(f, func(string) {})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
