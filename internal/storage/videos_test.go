package storage

import (
	"errors"
	"testing"

	"reelvault/internal/models"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewStorage("")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	return store
}

func createTestUser(t *testing.T, store *Storage, email string) models.User {
	t.Helper()
	user, err := store.CreateUser(CreateUserParams{
		DisplayName: "Test User",
		Email:       email,
		Password:    "correct-horse",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, store *Storage, ownerID string) models.Video {
	t.Helper()
	video, err := store.CreateVideo(CreateVideoParams{
		OwnerID:     ownerID,
		Title:       "launch recap",
		OriginalKey: "videos/" + ownerID + "/1700000000-original.mp4",
	})
	if err != nil {
		t.Fatalf("CreateVideo: %v", err)
	}
	return video
}

func TestCreateVideoStartsPending(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)

	if video.TranscodingStatus != models.TranscodingPending {
		t.Fatalf("status = %s, want PENDING", video.TranscodingStatus)
	}
	if video.HLSManifestKey != "" || video.TranscodingJobID != "" {
		t.Fatalf("manifest/job set on pending video: %q %q", video.HLSManifestKey, video.TranscodingJobID)
	}
	if video.Visibility != models.VisibilityPrivate {
		t.Fatalf("default visibility = %s, want PRIVATE", video.Visibility)
	}
}

func TestMarkVideoProcessingSetsJobAndManifestTogether(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)

	updated, err := store.MarkVideoProcessing(video.ID, "job-1", "videos/u/1700000000-hls/index.m3u8")
	if err != nil {
		t.Fatalf("MarkVideoProcessing: %v", err)
	}
	if updated.TranscodingStatus != models.TranscodingProcessing {
		t.Fatalf("status = %s", updated.TranscodingStatus)
	}
	if updated.TranscodingJobID != "job-1" || updated.HLSManifestKey == "" {
		t.Fatalf("job/manifest not recorded: %+v", updated)
	}
}

func TestMarkVideoProcessingRejectsDoubleSubmission(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)

	if _, err := store.MarkVideoProcessing(video.ID, "job-1", "videos/u/hls/index.m3u8"); err != nil {
		t.Fatalf("first MarkVideoProcessing: %v", err)
	}
	_, err := store.MarkVideoProcessing(video.ID, "job-2", "videos/u/hls/index.m3u8")
	if !errors.Is(err, ErrVideoNotPending) {
		t.Fatalf("second MarkVideoProcessing error = %v, want ErrVideoNotPending", err)
	}
	current, _ := store.GetVideo(video.ID)
	if current.TranscodingJobID != "job-1" {
		t.Fatalf("job id overwritten: %s", current.TranscodingJobID)
	}
}

func TestMarkVideoCompletedRequiresProcessing(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)

	if _, err := store.MarkVideoCompleted(video.ID); !errors.Is(err, ErrVideoNotProcessing) {
		t.Fatalf("complete from PENDING error = %v, want ErrVideoNotProcessing", err)
	}

	if _, err := store.MarkVideoProcessing(video.ID, "job-1", "videos/u/hls/index.m3u8"); err != nil {
		t.Fatalf("MarkVideoProcessing: %v", err)
	}
	updated, err := store.MarkVideoCompleted(video.ID)
	if err != nil {
		t.Fatalf("MarkVideoCompleted: %v", err)
	}
	if updated.TranscodingStatus != models.TranscodingCompleted {
		t.Fatalf("status = %s", updated.TranscodingStatus)
	}

	// COMPLETED is terminal.
	if _, err := store.MarkVideoFailed(video.ID, "late failure"); !errors.Is(err, ErrVideoTerminal) {
		t.Fatalf("fail after complete error = %v, want ErrVideoTerminal", err)
	}
}

func TestMarkVideoFailedFromPendingLeavesManifestUnset(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)

	updated, err := store.MarkVideoFailed(video.ID, "job submission refused")
	if err != nil {
		t.Fatalf("MarkVideoFailed: %v", err)
	}
	if updated.TranscodingStatus != models.TranscodingFailed {
		t.Fatalf("status = %s", updated.TranscodingStatus)
	}
	if updated.HLSManifestKey != "" {
		t.Fatalf("manifest key set on failed pending video: %q", updated.HLSManifestKey)
	}
	if updated.TranscodingError != "job submission refused" {
		t.Fatalf("error = %q", updated.TranscodingError)
	}

	if _, err := store.MarkVideoCompleted(video.ID); !errors.Is(err, ErrVideoTerminal) {
		t.Fatalf("complete after fail error = %v, want ErrVideoTerminal", err)
	}
}

func TestListVideosSharedWith(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)
	other := createTestVideo(t, store, owner.ID)

	if _, err := store.CreateVideoShare(video.ID, "viewer@example.com", owner.ID); err != nil {
		t.Fatalf("CreateVideoShare: %v", err)
	}
	group, err := store.CreateShareGroup(owner.ID, "", "friends")
	if err != nil {
		t.Fatalf("CreateShareGroup: %v", err)
	}
	if _, err := store.AddShareGroupMember(group.ID, "friend@example.com"); err != nil {
		t.Fatalf("AddShareGroupMember: %v", err)
	}
	if _, err := store.CreateVideoGroupShare(other.ID, group.ID); err != nil {
		t.Fatalf("CreateVideoGroupShare: %v", err)
	}

	direct := store.ListVideosSharedWith("viewer@example.com", "")
	if len(direct) != 1 || direct[0].ID != video.ID {
		t.Fatalf("direct share list = %+v", direct)
	}
	viaGroup := store.ListVideosSharedWith("friend@example.com", "")
	if len(viaGroup) != 1 || viaGroup[0].ID != other.ID {
		t.Fatalf("group share list = %+v", viaGroup)
	}
	none := store.ListVideosSharedWith("stranger@example.com", "")
	if len(none) != 0 {
		t.Fatalf("stranger share list = %+v", none)
	}
}

func TestGroupGrantMatchesEmailCaseInsensitively(t *testing.T) {
	store := newTestStorage(t)
	owner := createTestUser(t, store, "owner@example.com")
	video := createTestVideo(t, store, owner.ID)
	group, err := store.CreateShareGroup(owner.ID, "", "reviewers")
	if err != nil {
		t.Fatalf("CreateShareGroup: %v", err)
	}
	if _, err := store.AddShareGroupMember(group.ID, "reviewer@example.com"); err != nil {
		t.Fatalf("AddShareGroupMember: %v", err)
	}
	if _, err := store.CreateVideoGroupShare(video.ID, group.ID); err != nil {
		t.Fatalf("CreateVideoGroupShare: %v", err)
	}
	if !store.HasGroupGrantForEmail(video.ID, "Reviewer@Example.com", "") {
		t.Fatal("case variation not matched")
	}
	if !store.HasGroupGrantForEmail(video.ID, "", owner.ID) {
		t.Fatal("group owner not granted")
	}
}

func TestStorageCredentialScopeInvariant(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "owner@example.com")
	team, err := store.CreateTeam("acme", user.ID)
	if err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	_, err = store.UpsertStorageCredential(UpsertStorageCredentialParams{
		UserID:                   user.ID,
		TeamID:                   team.ID,
		EncryptedAccessKeyID:     "enc-key",
		EncryptedSecretAccessKey: "enc-secret",
		BucketName:               "bucket",
		Region:                   "us-east-1",
	})
	if !errors.Is(err, ErrCredentialScope) {
		t.Fatalf("both scopes error = %v, want ErrCredentialScope", err)
	}
	_, err = store.UpsertStorageCredential(UpsertStorageCredentialParams{
		EncryptedAccessKeyID:     "enc-key",
		EncryptedSecretAccessKey: "enc-secret",
		BucketName:               "bucket",
		Region:                   "us-east-1",
	})
	if !errors.Is(err, ErrCredentialScope) {
		t.Fatalf("no scope error = %v, want ErrCredentialScope", err)
	}

	first, err := store.UpsertStorageCredential(UpsertStorageCredentialParams{
		UserID:                   user.ID,
		EncryptedAccessKeyID:     "enc-key",
		EncryptedSecretAccessKey: "enc-secret",
		BucketName:               "bucket",
		Region:                   "us-east-1",
	})
	if err != nil {
		t.Fatalf("UpsertStorageCredential: %v", err)
	}
	second, err := store.UpsertStorageCredential(UpsertStorageCredentialParams{
		UserID:                   user.ID,
		EncryptedAccessKeyID:     "enc-key-2",
		EncryptedSecretAccessKey: "enc-secret-2",
		BucketName:               "bucket-2",
		Region:                   "eu-west-1",
	})
	if err != nil {
		t.Fatalf("second UpsertStorageCredential: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert created a second row: %s vs %s", first.ID, second.ID)
	}
	got, ok := store.GetStorageCredentialForUser(user.ID)
	if !ok || got.BucketName != "bucket-2" {
		t.Fatalf("credential not replaced: %+v", got)
	}
}

func TestAuthenticateUser(t *testing.T) {
	store := newTestStorage(t)
	user := createTestUser(t, store, "owner@example.com")

	got, err := store.AuthenticateUser("Owner@Example.com", "correct-horse")
	if err != nil {
		t.Fatalf("AuthenticateUser: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("authenticated wrong user: %s", got.ID)
	}
	if _, err := store.AuthenticateUser("owner@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password error = %v", err)
	}
	if _, err := store.AuthenticateUser("missing@example.com", "correct-horse"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user error = %v", err)
	}
}
