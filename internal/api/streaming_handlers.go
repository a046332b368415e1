package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"reelvault/internal/hls"
	"reelvault/internal/models"
	"reelvault/internal/objectstore"
	"reelvault/internal/observability/metrics"
)

// streamCacheControl keeps playlist refreshes honest while letting players
// cache segments briefly.
const streamCacheControl = "max-age=60"

// streamVideo proxies a manifest or segment to an authenticated viewer. The
// viewer must pass the access gate; the requested path must survive both the
// segment validation and the lexical containment check before any object
// store call is made.
func (h *Handler) streamVideo(w http.ResponseWriter, r *http.Request, videoID string, segments []string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	video, exists := h.Store.GetVideo(videoID)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
		return
	}
	decision := h.Gate.CanView(video, user)
	if !decision.Allowed {
		metrics.StreamRequest("denied")
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}
	metrics.AccessDecision(decision.Reason)
	h.serveStream(w, r, video, segments, "private, "+streamCacheControl)
}

// Embed proxies playback for public videos without authentication. Anything
// that is not a PUBLIC, COMPLETED video answers 404 so the endpoint never
// confirms that a private video exists.
func (h *Handler) Embed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		setEmbedCORS(w)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET, OPTIONS")
		return
	}

	trimmed := strings.TrimPrefix(r.URL.Path, "/embed/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] != "stream" {
		writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	videoID := parts[0]
	segments := parts[2:]

	setEmbedCORS(w)

	video, exists := h.Store.GetVideo(videoID)
	if !exists || video.Visibility != models.VisibilityPublic || video.TranscodingStatus != models.TranscodingCompleted {
		metrics.StreamRequest("denied")
		writeError(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	metrics.StreamRequest("embed")
	h.serveStream(w, r, video, segments, "public, "+streamCacheControl)
}

func setEmbedCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Range")
}

func (h *Handler) serveStream(w http.ResponseWriter, r *http.Request, video models.Video, segments []string, cacheControl string) {
	result := hls.ValidateStreamingPath(segments)
	if !result.Valid {
		metrics.StreamRequest("denied")
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid file path"))
		return
	}
	if video.TranscodingStatus != models.TranscodingCompleted {
		writeError(w, http.StatusBadRequest, fmt.Errorf("video is still processing"))
		return
	}

	manifestDir := path.Dir(video.HLSManifestKey)
	key := hls.ValidateObjectKey(manifestDir, result.Path)
	if key == "" {
		// Containment failures read as access denials so the response
		// does not leak the bucket layout.
		metrics.StreamRequest("denied")
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}

	creds, err := h.Credentials.Resolve(video.OwnerID, video.TeamID)
	if err != nil {
		h.logger().Error("streaming credential resolution", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to fetch media"))
		return
	}
	store, err := h.ObjectStores.New(r.Context(), objectstore.Config{
		Bucket:          creds.Bucket,
		Region:          creds.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
	})
	if err != nil {
		h.logger().Error("streaming object store client", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to fetch media"))
		return
	}
	object, err := store.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Errorf("media not found"))
			return
		}
		h.logger().Error("streaming fetch", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to fetch media"))
		return
	}
	defer object.Body.Close()

	w.Header().Set("Content-Type", hls.ContentTypeForPath(result.Path))
	w.Header().Set("Cache-Control", cacheControl)
	if object.ContentLength > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", object.ContentLength))
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(w, object.Body)
	metrics.StreamedBytes(written)
	if strings.HasSuffix(result.Path, ".m3u8") {
		metrics.StreamRequest("manifest")
	} else {
		metrics.StreamRequest("segment")
	}
	if err != nil {
		h.logger().Debug("streaming copy interrupted", "error", err, "video_id", video.ID)
	}
}
