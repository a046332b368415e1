// Package access decides whether a user may play back a video. Every grant
// path is evaluated and the first match wins; the decision records which path
// granted so handlers can log it.
package access

import (
	"strings"

	"golang.org/x/text/secure/precis"

	"reelvault/internal/models"
)

// Store is the subset of the repository the gate consults.
type Store interface {
	HasVideoShareForEmail(videoID, email string) bool
	HasGroupGrantForEmail(videoID, email, userID string) bool
	GetTeamMembership(teamID, userID string) (models.TeamMembership, bool)
}

// Decision reports the outcome of an access check. Reason names the grant
// path ("owner", "directShare", "groupGrant", "teamMember") or is empty when
// access is denied.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate evaluates playback access for authenticated users. Public embed access
// is a separate path and never consults the gate.
type Gate struct {
	store Store
}

func NewGate(store Store) *Gate {
	return &Gate{store: store}
}

// CanView checks every grant path for the user against the video.
func (g *Gate) CanView(video models.Video, user models.User) Decision {
	if video.OwnerID == user.ID {
		return Decision{Allowed: true, Reason: "owner"}
	}
	email := NormalizeEmail(user.Email)
	if email != "" && g.store.HasVideoShareForEmail(video.ID, email) {
		return Decision{Allowed: true, Reason: "directShare"}
	}
	if g.store.HasGroupGrantForEmail(video.ID, email, user.ID) {
		return Decision{Allowed: true, Reason: "groupGrant"}
	}
	if video.TeamID != "" {
		if _, ok := g.store.GetTeamMembership(video.TeamID, user.ID); ok {
			return Decision{Allowed: true, Reason: "teamMember"}
		}
	}
	return Decision{}
}

// NormalizeEmail canonicalizes an address for comparison: the local part runs
// through the PRECIS UsernameCaseMapped profile, the domain is lowercased.
// Addresses that fail profile enforcement fall back to simple lowercasing so a
// legacy grant still matches.
func NormalizeEmail(email string) string {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return ""
	}
	at := strings.LastIndex(trimmed, "@")
	if at <= 0 || at == len(trimmed)-1 {
		return strings.ToLower(trimmed)
	}
	local, domain := trimmed[:at], strings.ToLower(trimmed[at+1:])
	normalized, err := precis.UsernameCaseMapped.String(local)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return normalized + "@" + domain
}
