package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/clipforge/pipeline/internal/config"
	"github.com/clipforge/pipeline/internal/domain"
	"github.com/clipforge/pipeline/internal/pipeline/runner"
	"github.com/clipforge/pipeline/internal/pipeline/stage6"
	"github.com/clipforge/pipeline/internal/status"
	"github.com/clipforge/pipeline/internal/store"
)

func newTestHandler(t *testing.T) (*ProjectHandler, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	root := t.TempDir()
	statusProj := status.NewProjection()
	r := runner.New(runner.Deps{
		ProjectsRoot: root,
		Processing:   config.DefaultProcessing(),
		Status:       statusProj,
	})
	return NewProjectHandler(root, r, statusProj, nil), root
}

func multipartIngestBody(t *testing.T, category, name string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	videoPart, err := w.CreateFormFile("video_file", "clip.mp4")
	if err != nil {
		t.Fatalf("create video part: %v", err)
	}
	if _, err := videoPart.Write([]byte("fake-video-bytes")); err != nil {
		t.Fatalf("write video part: %v", err)
	}

	srtPart, err := w.CreateFormFile("srt_file", "clip.srt")
	if err != nil {
		t.Fatalf("create srt part: %v", err)
	}
	if _, err := srtPart.Write([]byte("1\n00:00:00,000 --> 00:00:01,000\nhello\n")); err != nil {
		t.Fatalf("write srt part: %v", err)
	}

	if err := w.WriteField("video_category", category); err != nil {
		t.Fatalf("write category field: %v", err)
	}
	if name != "" {
		if err := w.WriteField("project_name", name); err != nil {
			t.Fatalf("write name field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, w.FormDataContentType()
}

func TestIngestCreatesProjectDirectoryAndMetadata(t *testing.T) {
	h, root := newTestHandler(t)

	body, contentType := multipartIngestBody(t, string(domain.CategoryTech), "My Project")
	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	h.Ingest(c)

	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read projects root: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one project directory, got %d", len(entries))
	}

	s := store.Open(root, entries[0].Name(), "")
	if _, err := os.Stat(s.Paths.InputVideo); err != nil {
		t.Fatalf("expected saved video file: %v", err)
	}
	if _, err := os.Stat(s.Paths.InputSRT); err != nil {
		t.Fatalf("expected saved srt file: %v", err)
	}
	proj, ok, err := s.LoadProjectMetadata()
	if err != nil || !ok {
		t.Fatalf("expected saved project metadata: ok=%v err=%v", ok, err)
	}
	if proj.Name != "My Project" || proj.Category != domain.CategoryTech {
		t.Fatalf("unexpected project metadata: %+v", proj)
	}
}

func TestIngestRejectsInvalidCategory(t *testing.T) {
	h, _ := newTestHandler(t)

	body, contentType := multipartIngestBody(t, "not-a-real-category", "")
	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	h.Ingest(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestIngestRejectsUnsupportedVideoExtension(t *testing.T) {
	h, _ := newTestHandler(t)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	videoPart, _ := w.CreateFormFile("video_file", "clip.txt")
	_, _ = videoPart.Write([]byte("not a video"))
	srtPart, _ := w.CreateFormFile("srt_file", "clip.srt")
	_, _ = srtPart.Write([]byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"))
	_ = w.WriteField("video_category", string(domain.CategoryTech))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/projects", body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req

	h.Ingest(c)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusBadRequest)
	}
}

func TestProcessReturnsNotFoundForUnknownProject(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/does-not-exist/process", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "does-not-exist"}}

	h.Process(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestRetryReturnsNotFoundForUnknownProject(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/projects/does-not-exist/retry", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "does-not-exist"}}

	h.Retry(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestGetStatusFallsBackToProjectMetadataWhenNoSnapshot(t *testing.T) {
	h, root := newTestHandler(t)

	id := store.NewProjectID()
	s := store.Open(root, id, "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	proj := store.NewProject(id, "proj", domain.CategoryTech, s.Paths.InputVideo)
	if err := s.SaveProjectMetadata(proj); err != nil {
		t.Fatalf("save metadata: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+id+"/status", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id}}

	h.GetStatus(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}
}

func TestGetStatusReturnsNotFoundForUnknownProject(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/projects/does-not-exist/status", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "does-not-exist"}}

	h.GetStatus(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestGetClipReturnsNotFoundWhenNoFileMatches(t *testing.T) {
	h, root := newTestHandler(t)

	id := store.NewProjectID()
	s := store.Open(root, id, "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+id+"/clips/clip-1", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "clip_id", Value: "clip-1"}}

	h.GetClip(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}

func TestGetClipServesMatchingFile(t *testing.T) {
	h, root := newTestHandler(t)

	id := store.NewProjectID()
	s := store.Open(root, id, "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	clipPath := filepath.Join(s.Paths.ClipsDir, "clip-1_Amazing Title.mp4")
	if err := os.WriteFile(clipPath, []byte("fake-mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture clip: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+id+"/clips/clip-1", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "clip_id", Value: "clip-1"}}

	h.GetClip(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
	if rec.Header().Get("Content-Disposition") == "" {
		t.Fatal("expected a Content-Disposition header")
	}
}

func TestGetCollectionUsesSanitizedTitleFromMetadata(t *testing.T) {
	h, root := newTestHandler(t)

	id := store.NewProjectID()
	s := store.Open(root, id, "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	collections := []stage6.CollectionMetadata{
		{
			Collection: domain.Collection{ID: "col-1", CollectionTitle: "Best Moments"},
			VideoPath:  filepath.Join(s.Paths.CollectionsDir, "Best Moments.mp4"),
		},
	}
	if err := s.WriteJSON("collections_metadata.json", collections); err != nil {
		t.Fatalf("write collections metadata: %v", err)
	}

	sanitized := filepath.Join(s.Paths.CollectionsDir, "Best Moments.mp4")
	if err := os.WriteFile(sanitized, []byte("fake-mp4-bytes"), 0o644); err != nil {
		t.Fatalf("write fixture collection file: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+id+"/collections/col-1", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "collection_id", Value: "col-1"}}

	h.GetCollection(c)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusOK)
	}
}

func TestGetCollectionReturnsNotFoundWhenNothingPresent(t *testing.T) {
	h, root := newTestHandler(t)

	id := store.NewProjectID()
	s := store.Open(root, id, "")
	if err := store.EnsureProjectDirectories(s.Paths); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/projects/"+id+"/collections/col-1", nil)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: id}, {Key: "collection_id", Value: "col-1"}}

	h.GetCollection(c)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: got=%d want=%d", rec.Code, http.StatusNotFound)
	}
}
