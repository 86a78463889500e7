// Package media wraps the FFmpeg/FFprobe subprocess calls used to cut
// clips out of the source video and concatenate clips into collections.
//
// Grounded on original_source/src/utils/video_processor.py
// (VideoProcessor.extract_clip/create_collection/get_video_info/
// sanitize_filename) for exact flags and behavior, and on the teacher's
// internal/platform/localmedia/tools.go for the
// exec.CommandContext+CombinedOutput+timeout idiom used to invoke
// external tools from Go.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DefaultTimeout bounds a single FFmpeg/FFprobe invocation.
const DefaultTimeout = 5 * time.Minute

// Processor invokes FFmpeg and FFprobe via configurable binary paths,
// mirroring the teacher's pattern of not hardcoding tool locations.
type Processor struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
}

// NewProcessor returns a Processor using "ffmpeg"/"ffprobe" from PATH and
// DefaultTimeout unless overridden.
func NewProcessor() *Processor {
	return &Processor{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		Timeout:     DefaultTimeout,
	}
}

func (p *Processor) timeout() time.Duration {
	if p.Timeout <= 0 {
		return DefaultTimeout
	}
	return p.Timeout
}

// ExtractError reports an FFmpeg cut failure, wrapping the combined
// stdout/stderr output for diagnostics.
type ExtractError struct {
	Src, Dst string
	Output   string
	Err      error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract %s -> %s: %v: %s", e.Src, e.Dst, e.Err, e.Output)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// Extract cuts [start, end) seconds out of src into dst, placing -ss
// before -i for fast seek and using -t for duration (not -to), with
// stream copy and avoid_negative_ts make_zero so the cut clip's
// timestamps start cleanly at zero.
func (p *Processor) Extract(ctx context.Context, src, dst string, start, end float64) error {
	if end <= start {
		return &ExtractError{Src: src, Dst: dst, Err: fmt.Errorf("end %.3f <= start %.3f", end, start)}
	}
	duration := end - start

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	args := []string{
		"-ss", formatSeconds(start),
		"-i", src,
		"-t", formatSeconds(duration),
		"-c:v", "copy",
		"-c:a", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		dst,
	}
	cmd := exec.CommandContext(ctx, p.FFmpegPath, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ExtractError{Src: src, Dst: dst, Output: string(out), Err: err}
	}
	return nil
}

// ConcatError reports an FFmpeg concat failure.
type ConcatError struct {
	Dst    string
	Output string
	Err    error
}

func (e *ConcatError) Error() string {
	return fmt.Sprintf("concat -> %s: %v: %s", e.Dst, e.Err, e.Output)
}

func (e *ConcatError) Unwrap() error { return e.Err }

// Concat joins files (in order) into dst via FFmpeg's concat demuxer. It
// writes a temporary list file of absolute paths and removes it on every
// exit path, matching the original's create_collection.
func (p *Processor) Concat(ctx context.Context, files []string, dst string) error {
	if len(files) == 0 {
		return &ConcatError{Dst: dst, Err: fmt.Errorf("no input files")}
	}

	listFile, err := os.CreateTemp("", "clipforge-concat-*.txt")
	if err != nil {
		return &ConcatError{Dst: dst, Err: err}
	}
	listPath := listFile.Name()
	defer os.Remove(listPath)

	var sb strings.Builder
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			listFile.Close()
			return &ConcatError{Dst: dst, Err: err}
		}
		fmt.Fprintf(&sb, "file '%s'\n", escapeConcatPath(abs))
	}
	if _, err := listFile.WriteString(sb.String()); err != nil {
		listFile.Close()
		return &ConcatError{Dst: dst, Err: err}
	}
	if err := listFile.Close(); err != nil {
		return &ConcatError{Dst: dst, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, p.FFmpegPath,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		"-y",
		dst,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return &ConcatError{Dst: dst, Output: string(out), Err: err}
	}
	return nil
}

// escapeConcatPath escapes single quotes the way FFmpeg's concat demuxer
// requires inside its quoted file directive.
func escapeConcatPath(p string) string {
	return strings.ReplaceAll(p, "'", `'\''`)
}

// Info is the subset of FFprobe's format JSON this package cares about.
type Info struct {
	DurationSeconds float64
	SizeBytes       int64
	BitRate         int64
}

type ffprobeFormat struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

// Probe runs FFprobe against path and returns duration/size/bitrate.
// Probing is best-effort per spec §4.7 ("optional"); callers that don't
// need it can skip calling this entirely.
func (p *Processor) Probe(ctx context.Context, path string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, p.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("probe %s: %w", path, err)
	}

	var parsed ffprobeFormat
	if err := json.Unmarshal(out, &parsed); err != nil {
		return Info{}, fmt.Errorf("probe %s: parse ffprobe output: %w", path, err)
	}

	var info Info
	fmt.Sscanf(parsed.Format.Duration, "%f", &info.DurationSeconds)
	fmt.Sscanf(parsed.Format.Size, "%d", &info.SizeBytes)
	fmt.Sscanf(parsed.Format.BitRate, "%d", &info.BitRate)
	return info, nil
}

// formatSeconds renders a float second count the way FFmpeg's -ss/-t
// flags expect (plain decimal, not HH:MM:SS).
func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"|?*\\/]`)
)

// SanitizeFilename replaces characters invalid in filenames with "_",
// strips leading/trailing spaces and dots, truncates to 100 characters,
// and falls back to "untitled" if the result is empty.
func SanitizeFilename(name string) string {
	s := invalidFilenameChars.ReplaceAllString(name, "_")
	s = strings.Trim(s, " .")
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	s = strings.Trim(s, " .")
	if s == "" {
		return "untitled"
	}
	return s
}
