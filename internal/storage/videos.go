package storage

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"reelvault/internal/models"
)

// CreateVideo inserts a PENDING video row. The caller has already built the
// original object key; no storage write happens here.
func (s *Storage) CreateVideo(params CreateVideoParams) (models.Video, error) {
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return models.Video{}, errors.New("title is required")
	}
	if strings.TrimSpace(params.OriginalKey) == "" {
		return models.Video{}, errors.New("originalKey is required")
	}
	visibility := params.Visibility
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	id, err := generateID()
	if err != nil {
		return models.Video{}, err
	}
	now := s.now()
	video := models.Video{
		ID:                id,
		OwnerID:           params.OwnerID,
		TeamID:            params.TeamID,
		Title:             title,
		Description:       strings.TrimSpace(params.Description),
		OriginalKey:       params.OriginalKey,
		TranscodingStatus: models.TranscodingPending,
		Visibility:        visibility,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	err = s.mutate(func(d *dataset) error {
		if _, ok := d.Users[params.OwnerID]; !ok {
			return fmt.Errorf("user %s not found", params.OwnerID)
		}
		if params.TeamID != "" {
			if _, ok := d.Teams[params.TeamID]; !ok {
				return fmt.Errorf("team %s not found", params.TeamID)
			}
		}
		d.Videos[video.ID] = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return video, nil
}

func (s *Storage) GetVideo(id string) (models.Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	return video, ok
}

func (s *Storage) ListVideosByOwner(ownerID string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.OwnerID == ownerID {
			videos = append(videos, video)
		}
	}
	sortVideos(videos)
	return videos
}

func (s *Storage) ListVideosByTeam(teamID string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	videos := make([]models.Video, 0)
	for _, video := range s.data.Videos {
		if video.TeamID == teamID {
			videos = append(videos, video)
		}
	}
	sortVideos(videos)
	return videos
}

// ListVideosSharedWith returns videos granted to the given email directly or
// through share-group membership, plus groups the user owns.
func (s *Storage) ListVideosSharedWith(email, userID string) []models.Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	videos := make([]models.Video, 0)
	add := func(videoID string) {
		if _, dup := seen[videoID]; dup {
			return
		}
		if video, ok := s.data.Videos[videoID]; ok {
			seen[videoID] = struct{}{}
			videos = append(videos, video)
		}
	}
	for _, share := range s.data.VideoShares {
		if strings.EqualFold(share.SharedWithEmail, email) {
			add(share.VideoID)
		}
	}
	for _, groupShare := range s.data.VideoGroupShares {
		if s.groupGrantsLocked(groupShare.GroupID, email, userID) {
			add(groupShare.VideoID)
		}
	}
	sortVideos(videos)
	return videos
}

// UpdateVideo applies metadata changes. Lifecycle state is out of reach here.
func (s *Storage) UpdateVideo(id string, update VideoUpdate) (models.Video, error) {
	var updated models.Video
	err := s.mutate(func(d *dataset) error {
		video, ok := d.Videos[id]
		if !ok {
			return fmt.Errorf("video %s not found", id)
		}
		if update.Title != nil {
			title := strings.TrimSpace(*update.Title)
			if title == "" {
				return errors.New("title cannot be empty")
			}
			video.Title = title
		}
		if update.Description != nil {
			video.Description = strings.TrimSpace(*update.Description)
		}
		if update.Visibility != nil {
			switch *update.Visibility {
			case models.VisibilityPrivate, models.VisibilityPublic:
				video.Visibility = *update.Visibility
			default:
				return fmt.Errorf("unknown visibility %q", *update.Visibility)
			}
		}
		video.UpdatedAt = s.now()
		d.Videos[id] = video
		updated = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return updated, nil
}

// MarkVideoProcessing transitions PENDING → PROCESSING, recording the job id
// and manifest key in the same write. Any other current status fails, which
// is what stops two concurrent complete-upload calls from submitting the same
// job twice.
func (s *Storage) MarkVideoProcessing(id, jobID, manifestKey string) (models.Video, error) {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(manifestKey) == "" {
		return models.Video{}, errors.New("jobID and manifestKey are required")
	}
	var updated models.Video
	err := s.mutate(func(d *dataset) error {
		video, ok := d.Videos[id]
		if !ok {
			return fmt.Errorf("video %s not found", id)
		}
		if video.TranscodingStatus != models.TranscodingPending {
			return ErrVideoNotPending
		}
		video.TranscodingStatus = models.TranscodingProcessing
		video.TranscodingJobID = jobID
		video.HLSManifestKey = manifestKey
		video.TranscodingError = ""
		video.UpdatedAt = s.now()
		d.Videos[id] = video
		updated = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return updated, nil
}

// MarkVideoCompleted transitions PROCESSING → COMPLETED.
func (s *Storage) MarkVideoCompleted(id string) (models.Video, error) {
	var updated models.Video
	err := s.mutate(func(d *dataset) error {
		video, ok := d.Videos[id]
		if !ok {
			return fmt.Errorf("video %s not found", id)
		}
		if video.TranscodingStatus.Terminal() {
			return ErrVideoTerminal
		}
		if video.TranscodingStatus != models.TranscodingProcessing {
			return ErrVideoNotProcessing
		}
		video.TranscodingStatus = models.TranscodingCompleted
		video.TranscodingError = ""
		video.UpdatedAt = s.now()
		d.Videos[id] = video
		updated = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return updated, nil
}

// MarkVideoFailed transitions PENDING or PROCESSING → FAILED. Terminal videos
// are left untouched.
func (s *Storage) MarkVideoFailed(id, reason string) (models.Video, error) {
	var updated models.Video
	err := s.mutate(func(d *dataset) error {
		video, ok := d.Videos[id]
		if !ok {
			return fmt.Errorf("video %s not found", id)
		}
		if video.TranscodingStatus.Terminal() {
			return ErrVideoTerminal
		}
		video.TranscodingStatus = models.TranscodingFailed
		video.TranscodingError = strings.TrimSpace(reason)
		video.UpdatedAt = s.now()
		d.Videos[id] = video
		updated = video
		return nil
	})
	if err != nil {
		return models.Video{}, err
	}
	return updated, nil
}

func sortVideos(videos []models.Video) {
	sort.Slice(videos, func(i, j int) bool {
		if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
			return videos[i].ID < videos[j].ID
		}
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
}
