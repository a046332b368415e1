// Package credentials resolves which S3 credential applies to a request and
// decrypts its secret material for transient use.
package credentials

import (
	"errors"
	"fmt"

	"reelvault/internal/models"
	"reelvault/internal/secrets"
)

var (
	// ErrNotConfigured is returned when no credential exists for the
	// resolved scope.
	ErrNotConfigured = errors.New("storage credentials not configured")

	// ErrAccessDenied is returned when the requester asks for a team scope
	// they are not a member of.
	ErrAccessDenied = errors.New("not a member of the requested team")
)

// Scope names the credential scope a request resolved to.
type Scope string

const (
	ScopePersonal Scope = "personal"
	ScopeTeam     Scope = "team"
)

// Credentials carries decrypted S3 access material plus the bucket it opens.
// Values must not be persisted or logged.
type Credentials struct {
	Scope            Scope
	TeamID           string
	AccessKeyID      string
	SecretAccessKey  string
	Bucket           string
	Region           string
	TranscodeRoleARN string
}

// Store is the subset of the repository the resolver reads.
type Store interface {
	GetStorageCredentialForUser(userID string) (models.StorageCredential, bool)
	GetStorageCredentialForTeam(teamID string) (models.StorageCredential, bool)
	GetTeamMembership(teamID, userID string) (models.TeamMembership, bool)
	ListTeamsForUser(userID string) []models.Team
}

// Resolver picks the storage credential for a request and decrypts it.
type Resolver struct {
	store Store
	codec *secrets.Codec
}

func NewResolver(store Store, codec *secrets.Codec) *Resolver {
	return &Resolver{store: store, codec: codec}
}

// Resolve returns the decrypted credentials for the requester. When teamID is
// set the requester must belong to that team (any role) and the team must have
// a credential; no personal fallback applies. Without an explicit team, the
// requester's personal credential wins, then the first team credential among
// their memberships.
func (r *Resolver) Resolve(userID, teamID string) (Credentials, error) {
	if teamID != "" {
		if _, ok := r.store.GetTeamMembership(teamID, userID); !ok {
			return Credentials{}, ErrAccessDenied
		}
		credential, ok := r.store.GetStorageCredentialForTeam(teamID)
		if !ok {
			return Credentials{}, ErrNotConfigured
		}
		return r.decrypt(credential)
	}
	if credential, ok := r.store.GetStorageCredentialForUser(userID); ok {
		return r.decrypt(credential)
	}
	for _, team := range r.store.ListTeamsForUser(userID) {
		if credential, ok := r.store.GetStorageCredentialForTeam(team.ID); ok {
			return r.decrypt(credential)
		}
	}
	return Credentials{}, ErrNotConfigured
}

func (r *Resolver) decrypt(credential models.StorageCredential) (Credentials, error) {
	accessKeyID, err := r.codec.Decrypt(credential.EncryptedAccessKeyID)
	if err != nil {
		return Credentials{}, fmt.Errorf("decrypt access key id: %w", err)
	}
	secretAccessKey, err := r.codec.Decrypt(credential.EncryptedSecretAccessKey)
	if err != nil {
		return Credentials{}, fmt.Errorf("decrypt secret access key: %w", err)
	}
	scope := ScopePersonal
	if credential.TeamID != "" {
		scope = ScopeTeam
	}
	return Credentials{
		Scope:            scope,
		TeamID:           credential.TeamID,
		AccessKeyID:      accessKeyID,
		SecretAccessKey:  secretAccessKey,
		Bucket:           credential.BucketName,
		Region:           credential.Region,
		TranscodeRoleARN: credential.TranscodeRoleARN,
	}, nil
}
