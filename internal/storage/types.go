package storage

import "reelvault/internal/models"

const (
	passwordHashSaltLength = 16
	passwordHashKeyLength  = 32
	passwordHashIterations = 120000
)

type CreateUserParams struct {
	DisplayName string
	Email       string
	Password    string
}

type CreateVideoParams struct {
	OwnerID     string
	TeamID      string
	Title       string
	Description string
	OriginalKey string
	Visibility  models.Visibility
}

// VideoUpdate applies partial metadata updates. Nil fields are untouched.
// Lifecycle fields (status, job id, manifest key) are deliberately excluded;
// those move only through the guarded Mark* transitions.
type VideoUpdate struct {
	Title       *string
	Description *string
	Visibility  *models.Visibility
}

// UpsertStorageCredentialParams carries already-encrypted secret material.
// Exactly one of UserID or TeamID must be set.
type UpsertStorageCredentialParams struct {
	UserID                   string
	TeamID                   string
	EncryptedAccessKeyID     string
	EncryptedSecretAccessKey string
	BucketName               string
	Region                   string
	TranscodeRoleARN         string
}
