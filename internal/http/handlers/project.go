package handlers

import (
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/http/response"
	"github.com/clipforge/pipeline/internal/media"
	"github.com/clipforge/pipeline/internal/pipeline/runner"
	"github.com/clipforge/pipeline/internal/pipeline/stage6"
	"github.com/clipforge/pipeline/internal/platform/logger"
	"github.com/clipforge/pipeline/internal/status"
	"github.com/clipforge/pipeline/internal/store"
)

// maxUploadBytes bounds the ingested video file; the subtitle file's size
// is not checked against it (spec §6 names
// mp4/avi/mov/mkv as the accepted video container set; it puts no
// explicit ceiling on size, so this is an operational safety limit).
const maxUploadBytes = 4 << 30 // 4 GiB

var allowedVideoExts = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true,
}

// ProjectHandler exposes the spec §6 ingestion/control/status/artifact
// surface over the runner and artifact store. Grounded on the teacher's
// JobHandler (GetJob/RestartJob -> GetStatus/Retry) and UploadAvatar's
// multipart idiom, response shape on internal/http/response.
type ProjectHandler struct {
	projectsRoot string
	runner       *runner.Runner
	statusProj   *status.Projection
	log          *logger.Logger
}

func NewProjectHandler(projectsRoot string, r *runner.Runner, st *status.Projection, log *logger.Logger) *ProjectHandler {
	return &ProjectHandler{projectsRoot: projectsRoot, runner: r, statusProj: st, log: log}
}

func (h *ProjectHandler) logError(code, projectID string, err error) {
	if h.log != nil {
		h.log.Error("project handler error", "code", code, "project_id", projectID, "error", err.Error())
	}
}

// POST /projects (multipart/form-data: video_file, srt_file, project_name, video_category)
func (h *ProjectHandler) Ingest(c *gin.Context) {
	fh, err := c.FormFile("video_file")
	if err != nil {
		response.RespondError(c, 400, "missing_video_file", err)
		return
	}
	if fh.Size > maxUploadBytes {
		response.RespondError(c, 400, "video_file_too_large", nil)
		return
	}
	videoExt := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedVideoExts[videoExt] {
		response.RespondError(c, 400, "unsupported_video_format", nil)
		return
	}

	srtFH, err := c.FormFile("srt_file")
	if err != nil {
		response.RespondError(c, 400, "missing_srt_file", err)
		return
	}

	category := domain.Category(strings.TrimSpace(c.PostForm("video_category")))
	if !category.Valid() {
		response.RespondError(c, 400, "invalid_video_category", nil)
		return
	}
	name := strings.TrimSpace(c.PostForm("project_name"))
	if name == "" {
		name = strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	}

	id := store.NewProjectID()
	s := store.Open(h.projectsRoot, id, videoExt)
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		h.logError("project_init_failed", id, err)
		response.RespondError(c, 500, "project_init_failed", err)
		return
	}

	if err := c.SaveUploadedFile(fh, s.Paths.InputVideo); err != nil {
		h.logError("save_video_failed", id, err)
		response.RespondError(c, 500, "save_video_failed", err)
		return
	}
	if err := c.SaveUploadedFile(srtFH, s.Paths.InputSRT); err != nil {
		h.logError("save_subtitle_failed", id, err)
		response.RespondError(c, 500, "save_subtitle_failed", err)
		return
	}

	proj := store.NewProject(id, name, category, s.Paths.InputVideo)
	if err := s.SaveProjectMetadata(proj); err != nil {
		h.logError("save_project_failed", id, err)
		response.RespondError(c, 500, "save_project_failed", err)
		return
	}

	response.RespondCreated(c, gin.H{"project": proj})
}

// POST /projects/:id/process
func (h *ProjectHandler) Process(c *gin.Context) {
	id := c.Param("id")
	outcome, err := h.runner.Start(c.Request.Context(), id)
	h.respondOutcome(c, outcome, err)
}

// POST /projects/:id/retry
func (h *ProjectHandler) Retry(c *gin.Context) {
	id := c.Param("id")
	outcome, err := h.runner.Retry(c.Request.Context(), id)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			response.RespondError(c, 404, "project_not_found", err)
		} else {
			response.RespondError(c, 409, "retry_not_allowed", err)
		}
		return
	}
	h.respondOutcome(c, outcome, nil)
}

func (h *ProjectHandler) respondOutcome(c *gin.Context, outcome runner.Outcome, err error) {
	if err != nil {
		response.RespondError(c, 404, "project_not_found", err)
		return
	}
	switch outcome {
	case runner.OutcomeStarted:
		c.JSON(202, gin.H{"status": "started"})
	case runner.OutcomeBusy:
		response.RespondError(c, 429, "busy", nil)
	case runner.OutcomeConflict:
		response.RespondError(c, 409, "conflict", nil)
	default:
		response.RespondError(c, 500, "unknown_outcome", nil)
	}
}

// GET /projects/:id/status
func (h *ProjectHandler) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if snap, ok := h.statusProj.Get(id); ok {
		c.JSON(200, snapshotEnvelope(snap))
		return
	}

	s := store.Open(h.projectsRoot, id, "")
	proj, ok, err := s.LoadProjectMetadata()
	if err != nil {
		response.RespondError(c, 500, "load_project_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, 404, "project_not_found", nil)
		return
	}
	c.JSON(200, gin.H{
		"status":        proj.Status,
		"current_step":  proj.CurrentStage,
		"total_steps":   status.TotalStages,
		"step_name":     "",
		"progress":      status.ExitPercent(proj.CurrentStage),
		"error_message": proj.ErrorMessage,
	})
}

func snapshotEnvelope(snap status.Snapshot) gin.H {
	h := gin.H{
		"status":        snap.Status,
		"current_step":  snap.CurrentStep,
		"total_steps":   snap.TotalSteps,
		"step_name":     snap.StepName,
		"progress":      snap.ProgressPercent,
	}
	if snap.ErrorMessage != "" {
		h["error_message"] = snap.ErrorMessage
	}
	return h
}

// GET /projects/:id/clips/:clip_id
func (h *ProjectHandler) GetClip(c *gin.Context) {
	id := c.Param("id")
	clipID := c.Param("clip_id")
	s := store.Open(h.projectsRoot, id, "")

	matches, _ := filepath.Glob(filepath.Join(s.Paths.ClipsDir, clipID+"_*.mp4"))
	if len(matches) == 0 {
		response.RespondError(c, 404, "clip_not_found", nil)
		return
	}
	serveDownload(c, matches[0])
}

// GET /projects/:id/collections/:collection_id
func (h *ProjectHandler) GetCollection(c *gin.Context) {
	id := c.Param("id")
	collectionID := c.Param("collection_id")
	s := store.Open(h.projectsRoot, id, "")

	var collections []stage6.CollectionMetadata
	if ok, err := s.ReadJSON("collections_metadata.json", &collections); err != nil {
		response.RespondError(c, 500, "load_collections_failed", err)
		return
	} else if ok {
		for _, col := range collections {
			if col.ID != collectionID {
				continue
			}
			candidates := []string{
				filepath.Join(s.Paths.CollectionsDir, media.SanitizeFilename(col.CollectionTitle)+".mp4"),
				filepath.Join(s.Paths.CollectionsDir, collectionID+".mp4"),
			}
			for _, path := range candidates {
				if _, err := os.Stat(path); err == nil {
					serveDownload(c, path)
					return
				}
			}
			break
		}
	}

	// Renaming lagged or metadata missing: fall back to any file present.
	entries, _ := filepath.Glob(filepath.Join(s.Paths.CollectionsDir, "*.mp4"))
	sort.Strings(entries)
	if len(entries) == 0 {
		response.RespondError(c, 404, "collection_not_found", nil)
		return
	}
	serveDownload(c, entries[0])
}

// serveDownload streams path as an attachment with an RFC 6266
// filename*=UTF-8''<percent-encoded> header so non-ASCII titles survive
// the response, alongside an ASCII-safe fallback filename param.
func serveDownload(c *gin.Context, path string) {
	name := filepath.Base(path)
	c.Header("Content-Disposition", contentDispositionRFC6266(name))
	c.File(path)
}

func contentDispositionRFC6266(filename string) string {
	ascii := asciiFallback(filename)
	encoded := url.PathEscape(filename)
	return "attachment; filename=\"" + ascii + "\"; filename*=UTF-8''" + encoded
}

func asciiFallback(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r > unicode.MaxASCII || r == '"' || r == '\\' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "download"
	}
	return out
}
