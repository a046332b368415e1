package api

import (
	"context"
	"fmt"
	"net/http"

	"reelvault/internal/models"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// AuthenticateRequest validates the session token on the request and returns the user.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, fmt.Errorf("missing session token")
	}
	userID, ok, err := h.sessionManager().Validate(r.Context(), token)
	if err != nil {
		return models.User{}, fmt.Errorf("session lookup failed: %w", err)
	}
	if !ok {
		return models.User{}, fmt.Errorf("invalid or expired session")
	}
	user, exists := h.Store.GetUser(userID)
	if !exists {
		return models.User{}, fmt.Errorf("account not found")
	}
	return user, nil
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, fmt.Errorf("authentication required"))
		return models.User{}, false
	}
	return user, true
}

// requireTeamRole loads the requester's membership in the team and checks it
// against the accepted roles. An empty role list accepts any membership.
func (h *Handler) requireTeamRole(w http.ResponseWriter, user models.User, teamID string, roles ...models.TeamRole) (models.TeamMembership, bool) {
	membership, ok := h.Store.GetTeamMembership(teamID, user.ID)
	if !ok {
		writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
		return models.TeamMembership{}, false
	}
	if len(roles) == 0 {
		return membership, true
	}
	for _, role := range roles {
		if membership.Role == role {
			return membership, true
		}
	}
	writeError(w, http.StatusForbidden, fmt.Errorf("forbidden"))
	return models.TeamMembership{}, false
}
