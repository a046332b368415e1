package models

import "time"

// TranscodingStatus tracks a video through its ingestion lifecycle. Transitions
// are monotonic: PENDING → PROCESSING → {COMPLETED | FAILED}, with a direct
// PENDING → FAILED edge when job submission fails. COMPLETED and FAILED are
// terminal.
type TranscodingStatus string

const (
	TranscodingPending    TranscodingStatus = "PENDING"
	TranscodingProcessing TranscodingStatus = "PROCESSING"
	TranscodingCompleted  TranscodingStatus = "COMPLETED"
	TranscodingFailed     TranscodingStatus = "FAILED"
)

// Terminal reports whether no further status transition is allowed.
func (s TranscodingStatus) Terminal() bool {
	return s == TranscodingCompleted || s == TranscodingFailed
}

// Visibility controls whether a video may be embedded without authentication.
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityPublic  Visibility = "PUBLIC"
)

// TeamRole orders team privileges. Any role grants playback access to
// team-owned videos; only owners and admins manage membership and credentials.
type TeamRole string

const (
	TeamRoleOwner  TeamRole = "OWNER"
	TeamRoleAdmin  TeamRole = "ADMIN"
	TeamRoleMember TeamRole = "MEMBER"
)

type User struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"displayName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type TeamMembership struct {
	TeamID    string    `json:"teamId"`
	UserID    string    `json:"userId"`
	Role      TeamRole  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Video is the unit of ingestion and playback. The original upload lives at
// OriginalKey inside the owner's (or team's) bucket; once transcoding starts,
// HLSManifestKey points at the master playlist under the job's output prefix.
// HLSManifestKey and TranscodingJobID stay empty while the video is PENDING
// and are set together when it moves to PROCESSING.
type Video struct {
	ID                string            `json:"id"`
	OwnerID           string            `json:"ownerId"`
	TeamID            string            `json:"teamId,omitempty"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	OriginalKey       string            `json:"originalKey"`
	HLSManifestKey    string            `json:"hlsManifestKey,omitempty"`
	TranscodingJobID  string            `json:"transcodingJobId,omitempty"`
	TranscodingStatus TranscodingStatus `json:"transcodingStatus"`
	TranscodingError  string            `json:"transcodingError,omitempty"`
	Visibility        Visibility        `json:"visibility"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}

// StorageCredential holds the S3 credentials for exactly one scope: either a
// user or a team, never both. AccessKeyID and SecretAccessKey are persisted
// encrypted and only decrypted transiently while serving a request; API
// responses never include them, ciphertext or otherwise.
type StorageCredential struct {
	ID                       string    `json:"id"`
	UserID                   string    `json:"userId,omitempty"`
	TeamID                   string    `json:"teamId,omitempty"`
	EncryptedAccessKeyID     string    `json:"encryptedAccessKeyId,omitempty"`
	EncryptedSecretAccessKey string    `json:"encryptedSecretAccessKey,omitempty"`
	BucketName               string    `json:"bucketName"`
	Region                   string    `json:"region"`
	TranscodeRoleARN         string    `json:"transcodeRoleArn,omitempty"`
	CreatedAt                time.Time `json:"createdAt"`
	UpdatedAt                time.Time `json:"updatedAt"`
}

// VideoShare is a direct grant to an email address.
type VideoShare struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"videoId"`
	SharedWithEmail string    `json:"sharedWithEmail"`
	SharedByUserID  string    `json:"sharedByUserId"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ShareGroup collects email addresses so a set of videos can be shared with
// the same audience in one step.
type ShareGroup struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	TeamID    string    `json:"teamId,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type ShareGroupMember struct {
	GroupID   string    `json:"groupId"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type VideoGroupShare struct {
	VideoID   string    `json:"videoId"`
	GroupID   string    `json:"groupId"`
	CreatedAt time.Time `json:"createdAt"`
}
