// Package store implements the filesystem-backed Artifact Store (C4):
// project directory layout, atomic writes, idempotent directory
// creation, and per-chunk artifact caching for resumability. Grounded on
// spec §4.4 and on the original `ConfigManager.get_project_paths` /
// `ensure_project_directories` layout, adapted from the teacher's
// `jobs/runtime.Context` idiom of a capability object wrapping durable
// state — here backed by JSON files instead of a DB row, since
// persistent per-project DB schemas are an explicit Non-goal.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/clipforge/pipeline/internal/pipeline/errs"
)

// Paths holds every directory and canonical file path for one project.
type Paths struct {
	Root            string
	InputDir        string
	InputVideo      string
	InputSRT        string
	OutputDir       string
	ClipsDir        string
	CollectionsDir  string
	MetadataDir     string
}

// ProjectPaths computes the full directory layout for a project without
// touching the filesystem. videoExt is the uploaded video's container
// extension (e.g. "mp4", "avi", ".mov" — leading dot optional), matching
// spec §4.4's `input.<ext>` artifact-tree contract; an empty videoExt
// defaults to "mp4" for callers that never touch InputVideo (every
// caller past ingestion reads the video path from the persisted
// project's VideoPath instead, never from this field).
func ProjectPaths(projectsRoot, projectID, videoExt string) Paths {
	root := filepath.Join(projectsRoot, projectID)
	inputDir := filepath.Join(root, "input")
	outputDir := filepath.Join(root, "output")
	ext := strings.ToLower(strings.TrimPrefix(videoExt, "."))
	if ext == "" {
		ext = "mp4"
	}
	return Paths{
		Root:           root,
		InputDir:       inputDir,
		InputVideo:     filepath.Join(inputDir, "input."+ext),
		InputSRT:       filepath.Join(inputDir, "input.srt"),
		OutputDir:      outputDir,
		ClipsDir:       filepath.Join(outputDir, "clips"),
		CollectionsDir: filepath.Join(outputDir, "collections"),
		MetadataDir:    filepath.Join(outputDir, "metadata"),
	}
}

// EnsureProjectDirectories idempotently creates every directory a
// project needs.
func EnsureProjectDirectories(p Paths) error {
	dirs := []string{p.InputDir, p.OutputDir, p.ClipsDir, p.CollectionsDir, p.MetadataDir}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("ensure project directories: %w", err)
		}
	}
	return nil
}

// NewProjectID mints a fresh durable project identifier.
func NewProjectID() string {
	return uuid.NewString()
}

// Store is a handle onto one project's artifact tree.
type Store struct {
	Paths Paths
}

// Open returns a handle onto a project's artifact tree. Pass the
// uploaded video's extension when it's known (ingestion); any other
// caller can pass "" since they never read Paths.InputVideo directly.
func Open(projectsRoot, projectID, videoExt string) *Store {
	return &Store{Paths: ProjectPaths(projectsRoot, projectID, videoExt)}
}

// WriteJSON atomically writes v as pretty-printed JSON to relPath
// (relative to the metadata dir unless it's already absolute), via a
// temp-file-then-rename so readers never observe a partial write.
func (s *Store) WriteJSON(relPath string, v any) error {
	return writeJSONAtomic(s.resolve(relPath), v)
}

// ReadJSON reads and unmarshals relPath into v. It returns (false, nil)
// if the artifact doesn't exist yet — callers treat absence as "not
// produced", never as an error.
func (s *Store) ReadJSON(relPath string, v any) (bool, error) {
	return readJSONFile(s.resolve(relPath), v)
}

func writeJSONAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errs.FileIOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &errs.FileIOError{Op: "create_temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &errs.FileIOError{Op: "write_json", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &errs.FileIOError{Op: "write_json", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &errs.FileIOError{Op: "write_json", Path: path, Err: err}
	}
	return nil
}

func readJSONFile(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &errs.FileIOError{Op: "read_json", Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// WriteText atomically writes raw text to relPath.
func (s *Store) WriteText(relPath, text string) error {
	path := s.resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &errs.FileIOError{Op: "mkdir", Path: filepath.Dir(path), Err: err}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return &errs.FileIOError{Op: "create_temp", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return &errs.FileIOError{Op: "write_text", Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &errs.FileIOError{Op: "write_text", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		return &errs.FileIOError{Op: "write_text", Path: path, Err: err}
	}
	return nil
}

// ReadText reads relPath as raw text; ok is false if absent.
func (s *Store) ReadText(relPath string) (text string, ok bool, err error) {
	path := s.resolve(relPath)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, &errs.FileIOError{Op: "read_text", Path: path, Err: err}
	}
	return string(data), true, nil
}

// Exists reports whether relPath is present under the metadata dir.
func (s *Store) Exists(relPath string) bool {
	_, err := os.Stat(s.resolve(relPath))
	return err == nil
}

func (s *Store) resolve(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(s.Paths.MetadataDir, relPath)
}

// StageResultMarker is the canonical stepN_result.json payload: a stage
// is complete iff this marker exists.
type StageResultMarker struct {
	Stage     int    `json:"stage"`
	Completed bool   `json:"completed"`
	Summary   string `json:"summary,omitempty"`
}

func StageResultPath(stage int) string {
	return fmt.Sprintf("step%d_result.json", stage)
}

func (s *Store) MarkStageComplete(stage int, summary string) error {
	return s.WriteJSON(StageResultPath(stage), StageResultMarker{Stage: stage, Completed: true, Summary: summary})
}

func (s *Store) StageComplete(stage int) bool {
	return s.Exists(StageResultPath(stage))
}

// LastCompletedStage scans stepN_result.json markers and returns the
// highest stage number that is complete, or 0 if none are.
func (s *Store) LastCompletedStage() int {
	last := 0
	for stage := 1; stage <= 6; stage++ {
		if s.StageComplete(stage) {
			last = stage
		}
	}
	return last
}

// ChunkArtifactPath builds the relative path for a per-chunk artifact
// under the given stage directory, e.g. "step1_chunks/chunk_3.txt".
func ChunkArtifactPath(stageDir string, chunkIndex int, ext string) string {
	return filepath.Join(stageDir, fmt.Sprintf("chunk_%d.%s", chunkIndex, ext))
}

// AttemptArtifactPath builds the relative path for a per-attempt raw LLM
// response dump, e.g. "step2_llm_raw_output/chunk_0_attempt_0.txt".
func AttemptArtifactPath(stageDir string, chunkIndex, attempt int) string {
	return filepath.Join(stageDir, fmt.Sprintf("chunk_%d_attempt_%d.txt", chunkIndex, attempt))
}
