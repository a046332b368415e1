package access

import (
	"testing"

	"reelvault/internal/models"
	"reelvault/internal/storage"
)

func newGateFixture(t *testing.T) (*storage.Storage, *Gate) {
	t.Helper()
	store, err := storage.NewStorage("")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store, NewGate(store)
}

func gateUser(t *testing.T, store *storage.Storage, email string) models.User {
	t.Helper()
	user, err := store.CreateUser(storage.CreateUserParams{
		DisplayName: "User",
		Email:       email,
		Password:    "correct-horse",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func gateVideo(t *testing.T, store *storage.Storage, ownerID, teamID string) models.Video {
	t.Helper()
	video, err := store.CreateVideo(storage.CreateVideoParams{
		OwnerID:     ownerID,
		TeamID:      teamID,
		Title:       "clip",
		OriginalKey: "videos/" + ownerID + "/1-original.mp4",
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func TestGateOwner(t *testing.T) {
	store, gate := newGateFixture(t)
	owner := gateUser(t, store, "owner@example.com")
	video := gateVideo(t, store, owner.ID, "")

	decision := gate.CanView(video, owner)
	if !decision.Allowed || decision.Reason != "owner" {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestGateDirectShare(t *testing.T) {
	store, gate := newGateFixture(t)
	owner := gateUser(t, store, "owner@example.com")
	viewer := gateUser(t, store, "viewer@example.com")
	video := gateVideo(t, store, owner.ID, "")

	if decision := gate.CanView(video, viewer); decision.Allowed {
		t.Fatalf("unshared video allowed: %+v", decision)
	}
	if _, err := store.CreateVideoShare(video.ID, "Viewer@Example.com", owner.ID); err != nil {
		t.Fatalf("CreateVideoShare: %v", err)
	}
	decision := gate.CanView(video, viewer)
	if !decision.Allowed || decision.Reason != "directShare" {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestGateGroupGrant(t *testing.T) {
	store, gate := newGateFixture(t)
	owner := gateUser(t, store, "owner@example.com")
	viewer := gateUser(t, store, "friend@example.com")
	video := gateVideo(t, store, owner.ID, "")

	group, err := store.CreateShareGroup(owner.ID, "", "friends")
	if err != nil {
		t.Fatalf("CreateShareGroup: %v", err)
	}
	if _, err := store.AddShareGroupMember(group.ID, "friend@example.com"); err != nil {
		t.Fatalf("AddShareGroupMember: %v", err)
	}
	if _, err := store.CreateVideoGroupShare(video.ID, group.ID); err != nil {
		t.Fatalf("CreateVideoGroupShare: %v", err)
	}

	decision := gate.CanView(video, viewer)
	if !decision.Allowed || decision.Reason != "groupGrant" {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestGateTeamMember(t *testing.T) {
	store, gate := newGateFixture(t)
	owner := gateUser(t, store, "owner@example.com")
	member := gateUser(t, store, "member@example.com")
	stranger := gateUser(t, store, "stranger@example.com")
	team, err := store.CreateTeam("acme", owner.ID)
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}
	if _, err := store.UpsertTeamMembership(team.ID, member.ID, models.TeamRoleMember); err != nil {
		t.Fatalf("UpsertTeamMembership: %v", err)
	}
	video := gateVideo(t, store, owner.ID, team.ID)

	decision := gate.CanView(video, member)
	if !decision.Allowed || decision.Reason != "teamMember" {
		t.Fatalf("member decision = %+v", decision)
	}
	if decision := gate.CanView(video, stranger); decision.Allowed {
		t.Fatalf("stranger allowed: %+v", decision)
	}
}

func TestNormalizeEmail(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"User@Example.COM", "user@example.com"},
		{"  padded@example.com ", "padded@example.com"},
		{"MiXeD@Sub.Example.Org", "mixed@sub.example.org"},
		{"", ""},
		{"not-an-email", "not-an-email"},
	}
	for _, tc := range cases {
		if got := NormalizeEmail(tc.in); got != tc.want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
