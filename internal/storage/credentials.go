package storage

import (
	"errors"
	"fmt"

	"reelvault/internal/models"
)

// UpsertStorageCredential stores the credential for its scope, replacing any
// previous credential for the same user or team. Exactly one credential row
// exists per scope.
func (s *Storage) UpsertStorageCredential(params UpsertStorageCredentialParams) (models.StorageCredential, error) {
	if (params.UserID == "") == (params.TeamID == "") {
		return models.StorageCredential{}, ErrCredentialScope
	}
	if params.EncryptedAccessKeyID == "" || params.EncryptedSecretAccessKey == "" {
		return models.StorageCredential{}, errors.New("encrypted access key material is required")
	}
	if params.BucketName == "" || params.Region == "" {
		return models.StorageCredential{}, errors.New("bucketName and region are required")
	}
	id, err := generateID()
	if err != nil {
		return models.StorageCredential{}, err
	}
	now := s.now()
	credential := models.StorageCredential{
		ID:                       id,
		UserID:                   params.UserID,
		TeamID:                   params.TeamID,
		EncryptedAccessKeyID:     params.EncryptedAccessKeyID,
		EncryptedSecretAccessKey: params.EncryptedSecretAccessKey,
		BucketName:               params.BucketName,
		Region:                   params.Region,
		TranscodeRoleARN:         params.TranscodeRoleARN,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	err = s.mutate(func(d *dataset) error {
		if params.UserID != "" {
			if _, ok := d.Users[params.UserID]; !ok {
				return fmt.Errorf("user %s not found", params.UserID)
			}
		}
		if params.TeamID != "" {
			if _, ok := d.Teams[params.TeamID]; !ok {
				return fmt.Errorf("team %s not found", params.TeamID)
			}
		}
		for existingID, existing := range d.StorageCredentials {
			if existing.UserID == params.UserID && existing.TeamID == params.TeamID {
				credential.ID = existingID
				credential.CreatedAt = existing.CreatedAt
				d.StorageCredentials[existingID] = credential
				return nil
			}
		}
		d.StorageCredentials[credential.ID] = credential
		return nil
	})
	if err != nil {
		return models.StorageCredential{}, err
	}
	return credential, nil
}

func (s *Storage) GetStorageCredentialForUser(userID string) (models.StorageCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, credential := range s.data.StorageCredentials {
		if credential.UserID == userID && credential.TeamID == "" {
			return credential, true
		}
	}
	return models.StorageCredential{}, false
}

func (s *Storage) GetStorageCredentialForTeam(teamID string) (models.StorageCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, credential := range s.data.StorageCredentials {
		if credential.TeamID == teamID {
			return credential, true
		}
	}
	return models.StorageCredential{}, false
}

func (s *Storage) DeleteStorageCredential(id string) error {
	return s.mutate(func(d *dataset) error {
		if _, ok := d.StorageCredentials[id]; !ok {
			return fmt.Errorf("storage credential %s not found", id)
		}
		delete(d.StorageCredentials, id)
		return nil
	})
}
