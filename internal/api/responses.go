package api

import (
	"strings"
	"time"

	"reelvault/internal/models"
)

type userResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	CreatedAt   string `json:"createdAt"`
}

func newUserResponse(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339Nano),
	}
}

type authResponse struct {
	User      userResponse `json:"user"`
	ExpiresAt string       `json:"expiresAt"`
}

func newAuthResponse(user models.User, expiresAt time.Time) authResponse {
	return authResponse{
		User:      newUserResponse(user),
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339Nano),
	}
}

type videoResponse struct {
	ID                string `json:"id"`
	OwnerID           string `json:"ownerId"`
	TeamID            string `json:"teamId,omitempty"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	OriginalKey       string `json:"originalKey"`
	HLSManifestKey    string `json:"hlsManifestKey,omitempty"`
	TranscodingJobID  string `json:"transcodingJobId,omitempty"`
	TranscodingStatus string `json:"transcodingStatus"`
	TranscodingError  string `json:"transcodingError,omitempty"`
	Visibility        string `json:"visibility"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

func newVideoResponse(video models.Video) videoResponse {
	return videoResponse{
		ID:                video.ID,
		OwnerID:           video.OwnerID,
		TeamID:            video.TeamID,
		Title:             video.Title,
		Description:       video.Description,
		OriginalKey:       video.OriginalKey,
		HLSManifestKey:    video.HLSManifestKey,
		TranscodingJobID:  video.TranscodingJobID,
		TranscodingStatus: string(video.TranscodingStatus),
		TranscodingError:  video.TranscodingError,
		Visibility:        string(video.Visibility),
		CreatedAt:         video.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:         video.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func newVideoListResponse(videos []models.Video) []videoResponse {
	response := make([]videoResponse, 0, len(videos))
	for _, video := range videos {
		response = append(response, newVideoResponse(video))
	}
	return response
}

type shareResponse struct {
	ID              string `json:"id"`
	VideoID         string `json:"videoId"`
	SharedWithEmail string `json:"sharedWithEmail"`
	SharedByUserID  string `json:"sharedByUserId"`
	CreatedAt       string `json:"createdAt"`
}

func newShareResponse(share models.VideoShare) shareResponse {
	return shareResponse{
		ID:              share.ID,
		VideoID:         share.VideoID,
		SharedWithEmail: share.SharedWithEmail,
		SharedByUserID:  share.SharedByUserID,
		CreatedAt:       share.CreatedAt.Format(time.RFC3339Nano),
	}
}

type shareGroupResponse struct {
	ID        string   `json:"id"`
	OwnerID   string   `json:"ownerId"`
	TeamID    string   `json:"teamId,omitempty"`
	Name      string   `json:"name"`
	Members   []string `json:"members,omitempty"`
	CreatedAt string   `json:"createdAt"`
}

func newShareGroupResponse(group models.ShareGroup, members []models.ShareGroupMember) shareGroupResponse {
	resp := shareGroupResponse{
		ID:        group.ID,
		OwnerID:   group.OwnerID,
		TeamID:    group.TeamID,
		Name:      group.Name,
		CreatedAt: group.CreatedAt.Format(time.RFC3339Nano),
	}
	for _, member := range members {
		resp.Members = append(resp.Members, member.Email)
	}
	return resp
}

type teamResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

func newTeamResponse(team models.Team) teamResponse {
	return teamResponse{
		ID:        team.ID,
		Name:      team.Name,
		CreatedAt: team.CreatedAt.Format(time.RFC3339Nano),
	}
}

type membershipResponse struct {
	TeamID    string `json:"teamId"`
	UserID    string `json:"userId"`
	Role      string `json:"role"`
	CreatedAt string `json:"createdAt"`
}

func newMembershipResponse(membership models.TeamMembership) membershipResponse {
	return membershipResponse{
		TeamID:    membership.TeamID,
		UserID:    membership.UserID,
		Role:      string(membership.Role),
		CreatedAt: membership.CreatedAt.Format(time.RFC3339Nano),
	}
}

// credentialResponse never carries secret material. The access key id is
// masked down to its last four characters.
type credentialResponse struct {
	ID               string `json:"id"`
	UserID           string `json:"userId,omitempty"`
	TeamID           string `json:"teamId,omitempty"`
	AccessKeyIDHint  string `json:"accessKeyIdHint"`
	BucketName       string `json:"bucketName"`
	Region           string `json:"region"`
	TranscodeRoleARN string `json:"transcodeRoleArn,omitempty"`
	UpdatedAt        string `json:"updatedAt"`
}

func newCredentialResponse(credential models.StorageCredential, accessKeyID string) credentialResponse {
	return credentialResponse{
		ID:               credential.ID,
		UserID:           credential.UserID,
		TeamID:           credential.TeamID,
		AccessKeyIDHint:  maskKeyID(accessKeyID),
		BucketName:       credential.BucketName,
		Region:           credential.Region,
		TranscodeRoleARN: credential.TranscodeRoleARN,
		UpdatedAt:        credential.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func maskKeyID(keyID string) string {
	trimmed := strings.TrimSpace(keyID)
	if len(trimmed) <= 4 {
		return strings.Repeat("*", len(trimmed))
	}
	return strings.Repeat("*", len(trimmed)-4) + trimmed[len(trimmed)-4:]
}
