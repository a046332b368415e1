package storage

import (
	"context"

	"reelvault/internal/models"
)

// Repository exposes the datastore operations required by the API handlers,
// credential resolution, access checks, and transcode reconciliation.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(params CreateUserParams) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	GetUser(id string) (models.User, bool)
	FindUserByEmail(email string) (models.User, bool)

	CreateTeam(name, ownerID string) (models.Team, error)
	GetTeam(id string) (models.Team, bool)
	ListTeamsForUser(userID string) []models.Team
	UpsertTeamMembership(teamID, userID string, role models.TeamRole) (models.TeamMembership, error)
	RemoveTeamMembership(teamID, userID string) error
	GetTeamMembership(teamID, userID string) (models.TeamMembership, bool)
	ListTeamMemberships(teamID string) []models.TeamMembership

	UpsertStorageCredential(params UpsertStorageCredentialParams) (models.StorageCredential, error)
	GetStorageCredentialForUser(userID string) (models.StorageCredential, bool)
	GetStorageCredentialForTeam(teamID string) (models.StorageCredential, bool)
	DeleteStorageCredential(id string) error

	CreateVideo(params CreateVideoParams) (models.Video, error)
	GetVideo(id string) (models.Video, bool)
	ListVideosByOwner(ownerID string) []models.Video
	ListVideosByTeam(teamID string) []models.Video
	ListVideosSharedWith(email, userID string) []models.Video
	UpdateVideo(id string, update VideoUpdate) (models.Video, error)
	MarkVideoProcessing(id, jobID, manifestKey string) (models.Video, error)
	MarkVideoCompleted(id string) (models.Video, error)
	MarkVideoFailed(id, reason string) (models.Video, error)

	CreateVideoShare(videoID, email, sharedByUserID string) (models.VideoShare, error)
	ListVideoShares(videoID string) []models.VideoShare
	DeleteVideoShare(id string) error
	HasVideoShareForEmail(videoID, email string) bool

	CreateShareGroup(ownerID, teamID, name string) (models.ShareGroup, error)
	GetShareGroup(id string) (models.ShareGroup, bool)
	ListShareGroups(ownerID string) []models.ShareGroup
	DeleteShareGroup(id string) error
	AddShareGroupMember(groupID, email string) (models.ShareGroupMember, error)
	RemoveShareGroupMember(groupID, email string) error
	ListShareGroupMembers(groupID string) []models.ShareGroupMember

	CreateVideoGroupShare(videoID, groupID string) (models.VideoGroupShare, error)
	DeleteVideoGroupShare(videoID, groupID string) error
	ListVideoGroupShares(videoID string) []models.VideoGroupShare
	HasGroupGrantForEmail(videoID, email, userID string) bool
}

var _ Repository = (*Storage)(nil)
