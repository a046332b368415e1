// Package storage persists ReelVault's control-plane state: accounts, teams,
// per-scope storage credentials, videos, and sharing grants. Video bytes never
// pass through this package; only keys into tenant-owned buckets are stored.
//
// Two implementations back the Repository interface: an in-memory store with
// optional JSON snapshot persistence for local development and tests, and a
// Postgres repository for production.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"reelvault/internal/models"
)

var (
	// ErrInvalidCredentials is returned when login authentication fails.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrVideoNotPending guards against duplicate transcode submission: a
	// video may only move to PROCESSING from PENDING.
	ErrVideoNotPending = errors.New("video is not pending")

	// ErrVideoNotProcessing guards terminal states: only a PROCESSING video
	// may be promoted to COMPLETED.
	ErrVideoNotProcessing = errors.New("video is not processing")

	// ErrVideoTerminal is returned when a transition is attempted out of
	// COMPLETED or FAILED.
	ErrVideoTerminal = errors.New("video is in a terminal state")

	// ErrCredentialScope is returned when a storage credential names neither
	// or both of a user and a team.
	ErrCredentialScope = errors.New("credential must be scoped to exactly one of a user or a team")
)

type dataset struct {
	Users              map[string]models.User              `json:"users"`
	Teams              map[string]models.Team              `json:"teams"`
	TeamMemberships    []models.TeamMembership             `json:"teamMemberships"`
	StorageCredentials map[string]models.StorageCredential `json:"storageCredentials"`
	Videos             map[string]models.Video             `json:"videos"`
	VideoShares        map[string]models.VideoShare        `json:"videoShares"`
	ShareGroups        map[string]models.ShareGroup        `json:"shareGroups"`
	ShareGroupMembers  []models.ShareGroupMember           `json:"shareGroupMembers"`
	VideoGroupShares   []models.VideoGroupShare            `json:"videoGroupShares"`
}

func newDataset() dataset {
	return dataset{
		Users:              make(map[string]models.User),
		Teams:              make(map[string]models.Team),
		StorageCredentials: make(map[string]models.StorageCredential),
		Videos:             make(map[string]models.Video),
		VideoShares:        make(map[string]models.VideoShare),
		ShareGroups:        make(map[string]models.ShareGroup),
	}
}

// Storage is the in-memory Repository implementation. When filePath is set,
// every mutation snapshots the full dataset to disk before the in-memory copy
// is swapped, so a crash never leaves a half-applied write visible.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
	now             func() time.Time
}

// NewStorage creates a Storage, loading an existing snapshot when filePath
// points at one. An empty filePath keeps the dataset purely in memory.
func NewStorage(filePath string) (*Storage, error) {
	s := &Storage{
		filePath: filePath,
		data:     newDataset(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if filePath == "" {
		return s, nil
	}
	payload, err := os.ReadFile(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", filePath, err)
	}
	loaded := newDataset()
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", filePath, err)
	}
	ensureDatasetMaps(&loaded)
	s.data = loaded
	return s, nil
}

func ensureDatasetMaps(d *dataset) {
	if d.Users == nil {
		d.Users = make(map[string]models.User)
	}
	if d.Teams == nil {
		d.Teams = make(map[string]models.Team)
	}
	if d.StorageCredentials == nil {
		d.StorageCredentials = make(map[string]models.StorageCredential)
	}
	if d.Videos == nil {
		d.Videos = make(map[string]models.Video)
	}
	if d.VideoShares == nil {
		d.VideoShares = make(map[string]models.VideoShare)
	}
	if d.ShareGroups == nil {
		d.ShareGroups = make(map[string]models.ShareGroup)
	}
}

// Ping reports readiness; the in-memory store is always ready.
func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) persistDataset(d dataset) error {
	if s.persistOverride != nil {
		return s.persistOverride(d)
	}
	if s.filePath == "" {
		return nil
	}
	payload, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp := s.filePath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	if err := os.WriteFile(tmp, payload, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func cloneDataset(d dataset) dataset {
	out := dataset{
		Users:              make(map[string]models.User, len(d.Users)),
		Teams:              make(map[string]models.Team, len(d.Teams)),
		TeamMemberships:    append([]models.TeamMembership(nil), d.TeamMemberships...),
		StorageCredentials: make(map[string]models.StorageCredential, len(d.StorageCredentials)),
		Videos:             make(map[string]models.Video, len(d.Videos)),
		VideoShares:        make(map[string]models.VideoShare, len(d.VideoShares)),
		ShareGroups:        make(map[string]models.ShareGroup, len(d.ShareGroups)),
		ShareGroupMembers:  append([]models.ShareGroupMember(nil), d.ShareGroupMembers...),
		VideoGroupShares:   append([]models.VideoGroupShare(nil), d.VideoGroupShares...),
	}
	for k, v := range d.Users {
		out.Users[k] = v
	}
	for k, v := range d.Teams {
		out.Teams[k] = v
	}
	for k, v := range d.StorageCredentials {
		out.StorageCredentials[k] = v
	}
	for k, v := range d.Videos {
		out.Videos[k] = v
	}
	for k, v := range d.VideoShares {
		out.VideoShares[k] = v
	}
	for k, v := range d.ShareGroups {
		out.ShareGroups[k] = v
	}
	return out
}

// mutate runs fn against a cloned dataset, persists the clone, and swaps it in
// on success. fn must not retain references into the clone after returning.
func (s *Storage) mutate(fn func(*dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := cloneDataset(s.data)
	if err := fn(&updated); err != nil {
		return err
	}
	if err := s.persistDataset(updated); err != nil {
		return err
	}
	s.data = updated
	return nil
}

func generateID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
