package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"reelvault/internal/access"
	"reelvault/internal/models"
)

// videoShares handles /api/videos/{id}/shares and /shares/{shareId}. Only the
// owner manages direct grants.
func (h *Handler) videoShares(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
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

	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, "DELETE")
			return
		}
		if err := h.Store.DeleteVideoShare(rest[0]); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.Method {
	case http.MethodGet:
		shares := h.Store.ListVideoShares(videoID)
		response := make([]shareResponse, 0, len(shares))
		for _, share := range shares {
			response = append(response, newShareResponse(share))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		email := access.NormalizeEmail(req.Email)
		if email == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("email is required"))
			return
		}
		share, err := h.Store.CreateVideoShare(videoID, email, user.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, newShareResponse(share))
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// videoGroupShares attaches and detaches share groups on a video. The
// requester must own both the video and the group.
func (h *Handler) videoGroupShares(w http.ResponseWriter, r *http.Request, videoID string, rest []string) {
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

	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, "DELETE")
			return
		}
		if err := h.Store.DeleteVideoGroupShare(videoID, rest[0]); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.Method {
	case http.MethodGet:
		grants := h.Store.ListVideoGroupShares(videoID)
		response := make([]map[string]string, 0, len(grants))
		for _, grant := range grants {
			response = append(response, map[string]string{
				"videoId": grant.VideoID,
				"groupId": grant.GroupID,
			})
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		var req struct {
			GroupID string `json:"groupId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		group, exists := h.Store.GetShareGroup(req.GroupID)
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("share group %s not found", req.GroupID))
			return
		}
		if group.OwnerID != user.ID {
			writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
			return
		}
		grant, err := h.Store.CreateVideoGroupShare(videoID, group.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"videoId": grant.VideoID,
			"groupId": grant.GroupID,
		})
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// ShareGroups handles /api/share-groups.
func (h *Handler) ShareGroups(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		groups := h.Store.ListShareGroups(user.ID)
		response := make([]shareGroupResponse, 0, len(groups))
		for _, group := range groups {
			response = append(response, newShareGroupResponse(group, h.Store.ListShareGroupMembers(group.ID)))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		var req struct {
			Name   string `json:"name"`
			TeamID string `json:"teamId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		group, err := h.Store.CreateShareGroup(user.ID, req.TeamID, req.Name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, newShareGroupResponse(group, nil))
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// ShareGroupByID handles /api/share-groups/{id} and its members subresource.
func (h *Handler) ShareGroupByID(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/share-groups/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("share group id is required"))
		return
	}
	group, exists := h.Store.GetShareGroup(parts[0])
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("share group %s not found", parts[0]))
		return
	}
	if group.OwnerID != user.ID {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}

	if len(parts) > 1 && parts[1] == "members" {
		h.shareGroupMembers(w, r, group, parts[2:])
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, newShareGroupResponse(group, h.Store.ListShareGroupMembers(group.ID)))
	case http.MethodDelete:
		if err := h.Store.DeleteShareGroup(group.ID); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "GET, DELETE")
	}
}

func (h *Handler) shareGroupMembers(w http.ResponseWriter, r *http.Request, group models.ShareGroup, rest []string) {
	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, "DELETE")
			return
		}
		email, err := url.PathUnescape(rest[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid member email"))
			return
		}
		if err := h.Store.RemoveShareGroupMember(group.ID, access.NormalizeEmail(email)); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.Method {
	case http.MethodGet:
		members := h.Store.ListShareGroupMembers(group.ID)
		emails := make([]string, 0, len(members))
		for _, member := range members {
			emails = append(emails, member.Email)
		}
		writeJSON(w, http.StatusOK, emails)
	case http.MethodPost:
		var req struct {
			Email string `json:"email"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		email := access.NormalizeEmail(req.Email)
		if email == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("email is required"))
			return
		}
		member, err := h.Store.AddShareGroupMember(group.ID, email)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{
			"groupId": member.GroupID,
			"email":   member.Email,
		})
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}
