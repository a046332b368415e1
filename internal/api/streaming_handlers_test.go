package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"reelvault/internal/models"
	"reelvault/internal/storage"
)

func (f *fixture) completedVideo(t *testing.T, ownerID string, visibility models.Visibility) models.Video {
	t.Helper()
	video := f.createVideo(t, ownerID, "")
	if visibility == models.VisibilityPublic {
		v := models.VisibilityPublic
		var err error
		video, err = f.store.UpdateVideo(video.ID, storage.VideoUpdate{Visibility: &v})
		if err != nil {
			t.Fatalf("update visibility: %v", err)
		}
	}
	if _, err := f.store.MarkVideoProcessing(video.ID, "job-7", "videos/"+ownerID+"/1700000000-hls/index.m3u8"); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	updated, err := f.store.MarkVideoCompleted(video.ID)
	if err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	f.objects.objects[updated.HLSManifestKey] = "#EXTM3U playlist"
	f.objects.objects["videos/"+ownerID+"/1700000000-hls/720p/segment_001.ts"] = "segment bytes"
	return updated
}

func TestStreamServesManifest(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/index.m3u8", nil, owner)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/vnd.apple.mpegurl" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Body.String() != "#EXTM3U playlist" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("authenticated variant must not set CORS headers")
	}
}

func TestStreamServesSegmentInSubdirectory(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/720p/segment_001.ts", nil, owner)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp2t" {
		t.Fatalf("content type = %q", ct)
	}
}

func TestStreamTraversalRejectedBeforeStorage(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)
	f.objects.getCalls = nil

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/../x/index.m3u8", nil, owner)
	req.URL.Path = "/api/videos/" + video.ID + "/stream/../x/index.m3u8"
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(f.objects.getCalls) != 0 {
		t.Fatalf("object store was called for a traversal path: %v", f.objects.getCalls)
	}
}

func TestStreamDeniedForStranger(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	stranger := f.createUser(t, "stranger@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/index.m3u8", nil, stranger)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStreamAllowedForDirectShare(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	viewer := f.createUser(t, "viewer@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)
	if _, err := f.store.CreateVideoShare(video.ID, "viewer@example.com", owner.ID); err != nil {
		t.Fatalf("create share: %v", err)
	}

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/index.m3u8", nil, viewer)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestStreamStillProcessing(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.createVideo(t, owner.ID, "")

	req := authedRequest(http.MethodGet, "/api/videos/"+video.ID+"/stream/index.m3u8", nil, owner)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEmbedPrivateVideoIs404(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPrivate)

	req := httptest.NewRequest(http.MethodGet, "/embed/"+video.ID+"/stream/index.m3u8", nil)
	rec := httptest.NewRecorder()
	f.handler.Embed(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("private embed: status = %d, want 404", rec.Code)
	}
}

func TestEmbedUnknownVideoIs404(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/embed/no-such-video/stream/index.m3u8", nil)
	rec := httptest.NewRecorder()
	f.handler.Embed(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestEmbedServesPublicCompleted(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.completedVideo(t, owner.ID, models.VisibilityPublic)

	req := httptest.NewRequest(http.MethodGet, "/embed/"+video.ID+"/stream/index.m3u8", nil)
	rec := httptest.NewRecorder()
	f.handler.Embed(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("CORS origin = %q, want *", origin)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=60" {
		t.Fatalf("cache control = %q", cc)
	}
}

func TestEmbedPublicButPendingIs404(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	f.configureCredential(t, owner.ID, "", "")
	video := f.createVideo(t, owner.ID, "")
	v := models.VisibilityPublic
	if _, err := f.store.UpdateVideo(video.ID, storage.VideoUpdate{Visibility: &v}); err != nil {
		t.Fatalf("update visibility: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/embed/"+video.ID+"/stream/index.m3u8", nil)
	rec := httptest.NewRecorder()
	f.handler.Embed(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestEmbedPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/embed/any/stream/index.m3u8", nil)
	rec := httptest.NewRecorder()
	f.handler.Embed(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("preflight must carry CORS headers")
	}
}
