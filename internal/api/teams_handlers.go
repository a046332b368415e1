package api

import (
	"fmt"
	"net/http"
	"strings"

	"reelvault/internal/access"
	"reelvault/internal/models"
)

// Teams handles /api/teams.
func (h *Handler) Teams(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		teams := h.Store.ListTeamsForUser(user.ID)
		response := make([]teamResponse, 0, len(teams))
		for _, team := range teams {
			response = append(response, newTeamResponse(team))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		team, err := h.Store.CreateTeam(req.Name, user.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTeamResponse(team))
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

// TeamByID dispatches /api/teams/{id} and its members and storage
// subresources.
func (h *Handler) TeamByID(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/teams/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, fmt.Errorf("team id is required"))
		return
	}
	team, exists := h.Store.GetTeam(parts[0])
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("team %s not found", parts[0]))
		return
	}

	if len(parts) > 1 {
		switch parts[1] {
		case "members":
			h.teamMembers(w, r, user, team, parts[2:])
		case "storage":
			h.teamStorage(w, r, user, team)
		default:
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown team resource"))
		}
		return
	}

	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	if _, ok := h.requireTeamRole(w, user, team.ID); !ok {
		return
	}
	memberships := h.Store.ListTeamMemberships(team.ID)
	members := make([]membershipResponse, 0, len(memberships))
	for _, membership := range memberships {
		members = append(members, newMembershipResponse(membership))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"team":    newTeamResponse(team),
		"members": members,
	})
}

// teamMembers adds and removes memberships. Only owners and admins mutate;
// removing an owner requires the requester to be an owner.
func (h *Handler) teamMembers(w http.ResponseWriter, r *http.Request, user models.User, team models.Team, rest []string) {
	actor, ok := h.requireTeamRole(w, user, team.ID, models.TeamRoleOwner, models.TeamRoleAdmin)
	if !ok {
		return
	}

	if len(rest) > 0 && rest[0] != "" {
		if r.Method != http.MethodDelete {
			methodNotAllowed(w, r, "DELETE")
			return
		}
		target, exists := h.Store.GetTeamMembership(team.ID, rest[0])
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("membership not found"))
			return
		}
		if target.Role == models.TeamRoleOwner && actor.Role != models.TeamRoleOwner {
			writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
			return
		}
		if err := h.Store.RemoveTeamMembership(team.ID, rest[0]); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	member, exists := h.Store.FindUserByEmail(access.NormalizeEmail(req.Email))
	if !exists {
		writeError(w, http.StatusNotFound, fmt.Errorf("no account for %s", req.Email))
		return
	}
	role := models.TeamRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	switch role {
	case "":
		role = models.TeamRoleMember
	case models.TeamRoleOwner, models.TeamRoleAdmin, models.TeamRoleMember:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("role must be OWNER, ADMIN, or MEMBER"))
		return
	}
	if role == models.TeamRoleOwner && actor.Role != models.TeamRoleOwner {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return
	}
	membership, err := h.Store.UpsertTeamMembership(team.ID, member.ID, role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, newMembershipResponse(membership))
}

// teamStorage manages the team-scoped storage credential.
func (h *Handler) teamStorage(w http.ResponseWriter, r *http.Request, user models.User, team models.Team) {
	if _, ok := h.requireTeamRole(w, user, team.ID, models.TeamRoleOwner, models.TeamRoleAdmin); !ok {
		return
	}
	h.storageCredential(w, r, "", team.ID)
}
