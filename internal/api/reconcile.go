package api

import (
	"context"

	"golang.org/x/sync/errgroup"

	"reelvault/internal/models"
	"reelvault/internal/observability/metrics"
	"reelvault/internal/transcode"
)

// reconcileConcurrency bounds the fan-out of job status queries per list
// request.
const reconcileConcurrency = 4

// reconcileVideos refreshes the status of PROCESSING videos against the
// transcoding service and returns the slice with updated copies swapped in.
// It is best effort: credential or query failures for one video are logged
// and skipped, never surfaced to the caller, and never block the others.
// Videos are batched by credential scope so each scope resolves once.
func (h *Handler) reconcileVideos(ctx context.Context, videos []models.Video) []models.Video {
	type pending struct {
		index int
		video models.Video
	}
	batches := make(map[string][]pending)
	for i, video := range videos {
		if video.TranscodingStatus != models.TranscodingProcessing || video.TranscodingJobID == "" {
			continue
		}
		key := "user:" + video.OwnerID
		if video.TeamID != "" {
			key = "team:" + video.TeamID
		}
		batches[key] = append(batches[key], pending{index: i, video: video})
	}
	if len(batches) == 0 {
		return videos
	}

	result := make([]models.Video, len(videos))
	copy(result, videos)

	for scope, batch := range batches {
		creds, err := h.Credentials.Resolve(batch[0].video.OwnerID, batch[0].video.TeamID)
		if err != nil {
			h.logger().Warn("reconcile credential resolution", "error", err, "scope", scope)
			metrics.ReconcileOutcome("error")
			continue
		}
		transcoder, err := h.Transcoders.New(ctx, transcode.Config{
			Region:          creds.Region,
			AccessKeyID:     creds.AccessKeyID,
			SecretAccessKey: creds.SecretAccessKey,
		})
		if err != nil {
			h.logger().Warn("reconcile transcode client", "error", err, "scope", scope)
			metrics.ReconcileOutcome("error")
			continue
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(reconcileConcurrency)
		for _, item := range batch {
			item := item
			group.Go(func() error {
				if updated, ok := h.reconcileOne(groupCtx, transcoder, item.video); ok {
					result[item.index] = updated
				}
				return nil
			})
		}
		// Workers never return errors; Wait only orders the writes above.
		_ = group.Wait()
	}
	return result
}

// reconcileOne maps one external job state onto the stored status. COMPLETE
// promotes, ERROR and CANCELED fail, anything else leaves the video as is.
func (h *Handler) reconcileOne(ctx context.Context, transcoder transcode.Client, video models.Video) (models.Video, bool) {
	status, err := transcoder.GetJob(ctx, video.TranscodingJobID)
	if err != nil {
		h.logger().Warn("reconcile job query", "error", err, "video_id", video.ID, "job_id", video.TranscodingJobID)
		metrics.ReconcileOutcome("error")
		return models.Video{}, false
	}

	switch status.State {
	case transcode.StateComplete:
		updated, err := h.Store.MarkVideoCompleted(video.ID)
		if err != nil {
			h.logger().Warn("reconcile completion", "error", err, "video_id", video.ID)
			metrics.ReconcileOutcome("error")
			return models.Video{}, false
		}
		metrics.ReconcileOutcome("completed")
		metrics.TranscodeJobEvent("completed")
		return updated, true
	case transcode.StateError, transcode.StateCanceled:
		reason := status.ErrorMessage
		if reason == "" {
			reason = "transcoding " + string(status.State)
		}
		updated, err := h.Store.MarkVideoFailed(video.ID, reason)
		if err != nil {
			h.logger().Warn("reconcile failure", "error", err, "video_id", video.ID)
			metrics.ReconcileOutcome("error")
			return models.Video{}, false
		}
		metrics.ReconcileOutcome("failed")
		metrics.TranscodeJobEvent("failed")
		return updated, true
	default:
		metrics.ReconcileOutcome("unchanged")
		return models.Video{}, false
	}
}
