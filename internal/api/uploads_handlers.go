package api

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"reelvault/internal/credentials"
	"reelvault/internal/models"
	"reelvault/internal/objectstore"
	"reelvault/internal/observability/metrics"
	"reelvault/internal/storage"
	"reelvault/internal/transcode"
)

const (
	// maxUploadBytes caps a single upload at 5 GiB, matching the largest
	// object a single presigned PUT can carry.
	maxUploadBytes = int64(5) << 30

	uploadURLTTL = 3600 * time.Second
)

// allowedUploadTypes is the video MIME allow-list for presigned uploads.
var allowedUploadTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/x-msvideo":  true,
	"video/webm":       true,
	"video/x-matroska": true,
}

type uploadURLRequest struct {
	FileName    string `json:"fileName"`
	FileType    string `json:"fileType"`
	FileSize    int64  `json:"fileSize"`
	Title       string `json:"title"`
	Description string `json:"description"`
	TeamID      string `json:"teamId"`
	Visibility  string `json:"visibility"`
}

type uploadURLResponse struct {
	VideoID          string `json:"videoId"`
	UploadURL        string `json:"uploadUrl"`
	OriginalKey      string `json:"originalKey"`
	OutputKeyPrefix  string `json:"outputKeyPrefix"`
	TranscodeRoleARN string `json:"transcodeRoleArn,omitempty"`
}

// UploadURL validates the declared upload, records a PENDING video, and
// issues a presigned PUT against the requester's resolved bucket. The client
// performs the actual upload; no object-store write happens here.
func (h *Handler) UploadURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	var req uploadURLRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req.FileName = strings.TrimSpace(req.FileName)
	req.FileType = strings.TrimSpace(req.FileType)
	req.Title = strings.TrimSpace(req.Title)

	if req.FileName == "" || req.FileType == "" || req.FileSize <= 0 || req.Title == "" {
		metrics.UploadRejected("fields")
		writeError(w, http.StatusBadRequest, fmt.Errorf("fileName, fileType, fileSize, and title are required"))
		return
	}
	if req.FileSize > maxUploadBytes {
		metrics.UploadRejected("size")
		writeError(w, http.StatusBadRequest, fmt.Errorf("file size exceeds the %d GB limit", maxUploadBytes>>30))
		return
	}
	if !allowedUploadTypes[strings.ToLower(req.FileType)] {
		metrics.UploadRejected("type")
		writeError(w, http.StatusBadRequest, fmt.Errorf("file type %s is not an accepted video format", req.FileType))
		return
	}

	creds, ok := h.resolveCredentials(w, user.ID, req.TeamID)
	if !ok {
		return
	}

	visibility := models.VisibilityPrivate
	if strings.EqualFold(req.Visibility, string(models.VisibilityPublic)) {
		visibility = models.VisibilityPublic
	}

	timestamp := h.now().UnixMilli()
	ext := strings.ToLower(path.Ext(req.FileName))
	originalKey := fmt.Sprintf("videos/%s/%d-original%s", user.ID, timestamp, ext)
	outputPrefix := fmt.Sprintf("videos/%s/%d-hls/", user.ID, timestamp)

	store, err := h.ObjectStores.New(r.Context(), objectstore.Config{
		Bucket:          creds.Bucket,
		Region:          creds.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
	})
	if err != nil {
		h.logger().Error("object store client", "error", err, "owner_id", user.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("storage backend unavailable"))
		return
	}
	uploadURL, err := store.PresignPut(r.Context(), originalKey, req.FileType, req.FileSize, uploadURLTTL)
	if err != nil {
		h.logger().Error("presign upload", "error", err, "owner_id", user.ID, "key", originalKey)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to issue upload URL"))
		return
	}

	// Persist last so a failed presign leaves no orphan PENDING row behind.
	video, err := h.Store.CreateVideo(storage.CreateVideoParams{
		OwnerID:     user.ID,
		TeamID:      req.TeamID,
		Title:       req.Title,
		Description: req.Description,
		OriginalKey: originalKey,
		Visibility:  visibility,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	metrics.UploadURLIssued()
	writeJSON(w, http.StatusOK, uploadURLResponse{
		VideoID:          video.ID,
		UploadURL:        uploadURL,
		OriginalKey:      originalKey,
		OutputKeyPrefix:  outputPrefix,
		TranscodeRoleARN: creds.TranscodeRoleARN,
	})
}

type completeUploadRequest struct {
	VideoID         string `json:"videoId"`
	OriginalKey     string `json:"originalKey"`
	OutputKeyPrefix string `json:"outputKeyPrefix"`
}

type completeUploadResponse struct {
	Status string `json:"status"`
	JobID  string `json:"jobId"`
}

// CompleteUpload verifies the uploaded object landed, submits the transcoding
// job, and promotes the video to PROCESSING. A conditional status guard in
// the store refuses a second submission for the same video.
func (h *Handler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	var req completeUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.VideoID == "" || req.OriginalKey == "" || req.OutputKeyPrefix == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("videoId, originalKey, and outputKeyPrefix are required"))
		return
	}

	video, exists := h.Store.GetVideo(req.VideoID)
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", req.VideoID))
		return
	}
	if video.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}
	if req.OriginalKey != video.OriginalKey {
		writeError(w, http.StatusBadRequest, fmt.Errorf("originalKey does not match this video"))
		return
	}
	if !strings.HasPrefix(req.OutputKeyPrefix, fmt.Sprintf("videos/%s/", video.OwnerID)) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("outputKeyPrefix does not match this video"))
		return
	}
	if video.TranscodingStatus != models.TranscodingPending {
		writeError(w, http.StatusBadRequest, fmt.Errorf("video is %s, expected PENDING", video.TranscodingStatus))
		return
	}

	creds, ok := h.resolveCredentials(w, user.ID, video.TeamID)
	if !ok {
		return
	}

	store, err := h.ObjectStores.New(r.Context(), objectstore.Config{
		Bucket:          creds.Bucket,
		Region:          creds.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
	})
	if err != nil {
		h.logger().Error("object store client", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("storage backend unavailable"))
		return
	}
	uploaded, err := store.Exists(r.Context(), video.OriginalKey)
	if err != nil {
		h.logger().Error("upload existence probe", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("storage backend unavailable"))
		return
	}
	if !uploaded {
		writeError(w, http.StatusBadRequest, fmt.Errorf("uploaded file not found in storage; the upload may have failed"))
		return
	}
	if creds.TranscodeRoleARN == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("no transcode role ARN configured; add transcodeRoleArn to the storage credentials and retry"))
		return
	}

	transcoder, err := h.Transcoders.New(r.Context(), transcode.Config{
		Region:          creds.Region,
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretAccessKey,
	})
	if err != nil {
		h.logger().Error("transcode client", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("transcoding backend unavailable"))
		return
	}

	submission, err := transcoder.SubmitJob(r.Context(), transcode.SubmitInput{
		Bucket:       creds.Bucket,
		InputKey:     video.OriginalKey,
		OutputPrefix: req.OutputKeyPrefix,
		RoleARN:      creds.TranscodeRoleARN,
	})
	if err != nil {
		h.logger().Error("transcode job submission", "error", err, "video_id", video.ID)
		metrics.TranscodeJobEvent("submit_failed")
		if _, markErr := h.Store.MarkVideoFailed(video.ID, "transcoding job submission failed"); markErr != nil {
			h.logger().Error("mark video failed", "error", markErr, "video_id", video.ID)
		}
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to start transcoding"))
		return
	}

	updated, err := h.Store.MarkVideoProcessing(video.ID, submission.JobID, submission.ManifestKey)
	if err != nil {
		if errors.Is(err, storage.ErrVideoNotPending) {
			writeError(w, http.StatusConflict, fmt.Errorf("transcoding already started for this video"))
			return
		}
		h.logger().Error("mark video processing", "error", err, "video_id", video.ID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to record transcoding job"))
		return
	}

	metrics.TranscodeJobEvent("submitted")
	metrics.UploadCompleted()
	writeJSON(w, http.StatusOK, completeUploadResponse{
		Status: string(updated.TranscodingStatus),
		JobID:  updated.TranscodingJobID,
	})
}

// resolveCredentials maps resolver failures onto API statuses: membership
// refusals are 403, missing configuration is an actionable 400, decryption
// problems stay generic.
func (h *Handler) resolveCredentials(w http.ResponseWriter, userID, teamID string) (credentials.Credentials, bool) {
	creds, err := h.Credentials.Resolve(userID, teamID)
	if err == nil {
		return creds, true
	}
	switch {
	case errors.Is(err, credentials.ErrAccessDenied):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, credentials.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, fmt.Errorf("storage credentials not configured; add them under settings before uploading"))
	default:
		h.logger().Error("credential resolution", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to resolve storage credentials"))
	}
	return credentials.Credentials{}, false
}
