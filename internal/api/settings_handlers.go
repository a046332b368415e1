package api

import (
	"fmt"
	"net/http"
	"strings"

	"reelvault/internal/models"
	"reelvault/internal/storage"
)

// StorageSettings manages the requester's personal storage credential at
// /api/settings/storage.
func (h *Handler) StorageSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	h.storageCredential(w, r, user.ID, "")
}

type storageCredentialRequest struct {
	AccessKeyID      string `json:"accessKeyId"`
	SecretAccessKey  string `json:"secretAccessKey"`
	BucketName       string `json:"bucketName"`
	Region           string `json:"region"`
	TranscodeRoleARN string `json:"transcodeRoleArn"`
}

// storageCredential is the shared implementation behind the personal and team
// credential endpoints. Secret fields are encrypted before the row is written
// and never returned; GET responses carry a masked key id hint only.
func (h *Handler) storageCredential(w http.ResponseWriter, r *http.Request, userID, teamID string) {
	switch r.Method {
	case http.MethodGet:
		credential, exists := h.lookupCredential(userID, teamID)
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("storage credentials not configured"))
			return
		}
		accessKeyID, err := h.Secrets.Decrypt(credential.EncryptedAccessKeyID)
		if err != nil {
			h.logger().Error("credential decrypt for masking", "error", err, "credential_id", credential.ID)
			writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read storage credentials"))
			return
		}
		writeJSON(w, http.StatusOK, newCredentialResponse(credential, accessKeyID))
	case http.MethodPut:
		var req storageCredentialRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.AccessKeyID = strings.TrimSpace(req.AccessKeyID)
		req.SecretAccessKey = strings.TrimSpace(req.SecretAccessKey)
		req.BucketName = strings.TrimSpace(req.BucketName)
		req.Region = strings.TrimSpace(req.Region)
		if req.AccessKeyID == "" || req.SecretAccessKey == "" || req.BucketName == "" || req.Region == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("accessKeyId, secretAccessKey, bucketName, and region are required"))
			return
		}
		encryptedKeyID, err := h.Secrets.Encrypt(req.AccessKeyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to store storage credentials"))
			return
		}
		encryptedSecret, err := h.Secrets.Encrypt(req.SecretAccessKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to store storage credentials"))
			return
		}
		credential, err := h.Store.UpsertStorageCredential(storage.UpsertStorageCredentialParams{
			UserID:                   userID,
			TeamID:                   teamID,
			EncryptedAccessKeyID:     encryptedKeyID,
			EncryptedSecretAccessKey: encryptedSecret,
			BucketName:               req.BucketName,
			Region:                   req.Region,
			TranscodeRoleARN:         strings.TrimSpace(req.TranscodeRoleARN),
		})
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, newCredentialResponse(credential, req.AccessKeyID))
	case http.MethodDelete:
		credential, exists := h.lookupCredential(userID, teamID)
		if !exists {
			writeError(w, http.StatusNotFound, fmt.Errorf("storage credentials not configured"))
			return
		}
		if err := h.Store.DeleteStorageCredential(credential.ID); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *Handler) lookupCredential(userID, teamID string) (models.StorageCredential, bool) {
	if teamID != "" {
		return h.Store.GetStorageCredentialForTeam(teamID)
	}
	return h.Store.GetStorageCredentialForUser(userID)
}
