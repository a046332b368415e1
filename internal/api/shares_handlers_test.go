package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestVideoShareNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	video := f.createVideo(t, owner.ID, "")

	req := authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/shares", map[string]string{
		"email": "  Friend@Example.COM ",
	}, owner)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var share shareResponse
	decodeBody(t, rec, &share)
	if share.SharedWithEmail != "friend@example.com" {
		t.Fatalf("shared email = %q", share.SharedWithEmail)
	}
	if share.SharedByUserID != owner.ID {
		t.Fatalf("shared by = %q", share.SharedByUserID)
	}
}

func TestVideoSharesForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	stranger := f.createUser(t, "stranger@example.com")
	video := f.createVideo(t, owner.ID, "")

	req := authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/shares", map[string]string{
		"email": "friend@example.com",
	}, stranger)
	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if shares := f.store.ListVideoShares(video.ID); len(shares) != 0 {
		t.Fatalf("shares = %d, want none", len(shares))
	}
}

func TestSharedListIncludesDirectShare(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	viewer := f.createUser(t, "viewer@example.com")
	video := f.createVideo(t, owner.ID, "")
	if _, err := f.store.CreateVideoShare(video.ID, "viewer@example.com", owner.ID); err != nil {
		t.Fatalf("create share: %v", err)
	}

	req := authedRequest(http.MethodGet, "/api/videos?type=shared", nil, viewer)
	rec := httptest.NewRecorder()
	f.handler.Videos(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var listed []videoResponse
	decodeBody(t, rec, &listed)
	if len(listed) != 1 || listed[0].ID != video.ID {
		t.Fatalf("listed = %+v", listed)
	}
}

func TestShareGroupGrantFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	viewer := f.createUser(t, "viewer@example.com")
	video := f.createVideo(t, owner.ID, "")

	createRec := httptest.NewRecorder()
	f.handler.ShareGroups(createRec, authedRequest(http.MethodPost, "/api/share-groups", map[string]string{
		"name": "review circle",
	}, owner))
	if createRec.Code != http.StatusCreated {
		t.Fatalf("create group status = %d, body %s", createRec.Code, createRec.Body.String())
	}
	var group shareGroupResponse
	decodeBody(t, createRec, &group)

	memberRec := httptest.NewRecorder()
	f.handler.ShareGroupByID(memberRec, authedRequest(http.MethodPost, "/api/share-groups/"+group.ID+"/members", map[string]string{
		"email": "Viewer@Example.com",
	}, owner))
	if memberRec.Code != http.StatusCreated {
		t.Fatalf("add member status = %d, body %s", memberRec.Code, memberRec.Body.String())
	}

	attachRec := httptest.NewRecorder()
	f.handler.VideoByID(attachRec, authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/group-shares", map[string]string{
		"groupId": group.ID,
	}, owner))
	if attachRec.Code != http.StatusCreated {
		t.Fatalf("attach status = %d, body %s", attachRec.Code, attachRec.Body.String())
	}

	detailRec := httptest.NewRecorder()
	f.handler.VideoByID(detailRec, authedRequest(http.MethodGet, "/api/videos/"+video.ID, nil, viewer))
	if detailRec.Code != http.StatusOK {
		t.Fatalf("group member should view the video, got %d body %s", detailRec.Code, detailRec.Body.String())
	}
}

func TestShareGroupForbiddenForNonOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	stranger := f.createUser(t, "stranger@example.com")
	group, err := f.store.CreateShareGroup(owner.ID, "", "review circle")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.ShareGroupByID(rec, authedRequest(http.MethodDelete, "/api/share-groups/"+group.ID, nil, stranger))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, exists := f.store.GetShareGroup(group.ID); !exists {
		t.Fatal("group should survive a forbidden delete")
	}
}

func TestAttachingForeignGroupForbidden(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	other := f.createUser(t, "other@example.com")
	video := f.createVideo(t, owner.ID, "")
	group, err := f.store.CreateShareGroup(other.ID, "", "their circle")
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	rec := httptest.NewRecorder()
	f.handler.VideoByID(rec, authedRequest(http.MethodPost, "/api/videos/"+video.ID+"/group-shares", map[string]string{
		"groupId": group.ID,
	}, owner))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}
