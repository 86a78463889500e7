// Package errs is the pipeline-internal error taxonomy named by spec §7:
// seven kinds, each carrying enough detail for diagnostics while
// .Error() stays a short, user-safe sentence. The five LLM-facing kinds
// are defined once in internal/llm (the gateway is what actually
// constructs them) and aliased here so pipeline code that never touches
// the gateway directly can still name them as errs.AuthError, etc.
// FileIOError and MediaError belong to this package outright since no
// other package owns that concern.
package errs

import (
	"fmt"

	"github.com/clipforge/pipeline/internal/llm"
)

type (
	AuthError          = llm.AuthError
	ValidationError    = llm.ValidationError
	TransportError     = llm.TransportError
	EmptyResponse      = llm.EmptyResponse
	UnparsableResponse = llm.UnparsableResponse
)

// FileIOError marks a failure reading or writing a project artifact
// under the artifact store's project directory tree (spec §4.4).
type FileIOError struct {
	Op   string // e.g. "write_json", "read_text", "save_upload"
	Path string
	Err  error
}

func (e *FileIOError) Error() string {
	return fmt.Sprintf("file io error: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileIOError) Unwrap() error { return e.Err }

// MediaError marks a failure invoking ffmpeg/ffprobe to extract a clip
// or concatenate a collection. Per spec §7 this is logged and the
// affected clip/collection is skipped rather than failing the run.
type MediaError struct {
	Op  string // e.g. "extract", "concat", "probe"
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media error: %s: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }
