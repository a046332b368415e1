package api

import (
	"fmt"
	"net/http"
	"strings"

	"reelvault/internal/access"
	"reelvault/internal/models"
	"reelvault/internal/storage"
)

// Videos lists the requester's videos. type=owned (default) returns their own
// uploads, or a team's when teamId is given; type=shared returns videos
// granted directly or through a share group. Statuses are reconciled lazily
// before the response is built.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	listType := strings.TrimSpace(r.URL.Query().Get("type"))
	teamID := strings.TrimSpace(r.URL.Query().Get("teamId"))

	var videos []models.Video
	switch listType {
	case "", "owned":
		if teamID != "" {
			if _, ok := h.requireTeamRole(w, user, teamID); !ok {
				return
			}
			videos = h.Store.ListVideosByTeam(teamID)
		} else {
			videos = h.Store.ListVideosByOwner(user.ID)
		}
	case "shared":
		videos = h.Store.ListVideosSharedWith(access.NormalizeEmail(user.Email), user.ID)
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("type must be owned or shared"))
		return
	}

	videos = h.reconcileVideos(r.Context(), videos)
	writeJSON(w, http.StatusOK, newVideoListResponse(videos))
}

// VideoByID dispatches /api/videos/{id} and its subresources.
func (h *Handler) VideoByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("video id is required"))
		return
	}
	videoID := parts[0]

	if len(parts) == 1 {
		h.videoDetail(w, r, videoID)
		return
	}
	switch parts[1] {
	case "stream":
		h.streamVideo(w, r, videoID, parts[2:])
	case "shares":
		h.videoShares(w, r, videoID, parts[2:])
	case "group-shares":
		h.videoGroupShares(w, r, videoID, parts[2:])
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown video resource"))
	}
}

func (h *Handler) videoDetail(w http.ResponseWriter, r *http.Request, videoID string) {
	switch r.Method {
	case http.MethodGet:
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
			writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
			return
		}
		reconciled := h.reconcileVideos(r.Context(), []models.Video{video})
		writeJSON(w, http.StatusOK, newVideoResponse(reconciled[0]))
	case http.MethodPatch:
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		video, exists := h.Store.GetVideo(videoID)
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("video %s not found", videoID))
			return
		}
		if video.OwnerID != user.ID {
			writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
			return
		}
		var req struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
			Visibility  *string `json:"visibility"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		update := storage.VideoUpdate{Title: req.Title, Description: req.Description}
		if req.Visibility != nil {
			visibility := models.Visibility(strings.ToUpper(strings.TrimSpace(*req.Visibility)))
			if visibility != models.VisibilityPrivate && visibility != models.VisibilityPublic {
				writeError(w, http.StatusBadRequest, fmt.Errorf("visibility must be PRIVATE or PUBLIC"))
				return
			}
			update.Visibility = &visibility
		}
		updated, err := h.Store.UpdateVideo(videoID, update)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, newVideoResponse(updated))
	default:
		methodNotAllowed(w, r, "GET, PATCH")
	}
}
