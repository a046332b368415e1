package storage

import (
	"errors"
	"fmt"
	"strings"

	"reelvault/internal/models"
)

// CreateVideoShare grants direct playback access to an email address. The
// caller normalizes the email before handing it over; duplicate grants for the
// same video and email are rejected.
func (s *Storage) CreateVideoShare(videoID, email, sharedByUserID string) (models.VideoShare, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return models.VideoShare{}, errors.New("a valid email is required")
	}
	id, err := generateID()
	if err != nil {
		return models.VideoShare{}, err
	}
	share := models.VideoShare{
		ID:              id,
		VideoID:         videoID,
		SharedWithEmail: trimmed,
		SharedByUserID:  sharedByUserID,
		CreatedAt:       s.now(),
	}
	err = s.mutate(func(d *dataset) error {
		if _, ok := d.Videos[videoID]; !ok {
			return fmt.Errorf("video %s not found", videoID)
		}
		for _, existing := range d.VideoShares {
			if existing.VideoID == videoID && strings.EqualFold(existing.SharedWithEmail, trimmed) {
				return fmt.Errorf("video is already shared with %s", trimmed)
			}
		}
		d.VideoShares[share.ID] = share
		return nil
	})
	if err != nil {
		return models.VideoShare{}, err
	}
	return share, nil
}

func (s *Storage) ListVideoShares(videoID string) []models.VideoShare {
	s.mu.RLock()
	defer s.mu.RUnlock()
	shares := make([]models.VideoShare, 0)
	for _, share := range s.data.VideoShares {
		if share.VideoID == videoID {
			shares = append(shares, share)
		}
	}
	return shares
}

func (s *Storage) DeleteVideoShare(id string) error {
	return s.mutate(func(d *dataset) error {
		if _, ok := d.VideoShares[id]; !ok {
			return fmt.Errorf("share %s not found", id)
		}
		delete(d.VideoShares, id)
		return nil
	})
}

func (s *Storage) HasVideoShareForEmail(videoID, email string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, share := range s.data.VideoShares {
		if share.VideoID == videoID && strings.EqualFold(share.SharedWithEmail, email) {
			return true
		}
	}
	return false
}

// CreateShareGroup creates a reusable audience owned by a user, optionally on
// behalf of a team.
func (s *Storage) CreateShareGroup(ownerID, teamID, name string) (models.ShareGroup, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.ShareGroup{}, errors.New("group name is required")
	}
	id, err := generateID()
	if err != nil {
		return models.ShareGroup{}, err
	}
	group := models.ShareGroup{
		ID:        id,
		OwnerID:   ownerID,
		TeamID:    teamID,
		Name:      trimmed,
		CreatedAt: s.now(),
	}
	err = s.mutate(func(d *dataset) error {
		if _, ok := d.Users[ownerID]; !ok {
			return fmt.Errorf("user %s not found", ownerID)
		}
		if teamID != "" {
			if _, ok := d.Teams[teamID]; !ok {
				return fmt.Errorf("team %s not found", teamID)
			}
		}
		d.ShareGroups[group.ID] = group
		return nil
	})
	if err != nil {
		return models.ShareGroup{}, err
	}
	return group, nil
}

func (s *Storage) GetShareGroup(id string) (models.ShareGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.data.ShareGroups[id]
	return group, ok
}

func (s *Storage) ListShareGroups(ownerID string) []models.ShareGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]models.ShareGroup, 0)
	for _, group := range s.data.ShareGroups {
		if group.OwnerID == ownerID {
			groups = append(groups, group)
		}
	}
	return groups
}

// DeleteShareGroup removes the group, its memberships, and any video grants
// that route through it.
func (s *Storage) DeleteShareGroup(id string) error {
	return s.mutate(func(d *dataset) error {
		if _, ok := d.ShareGroups[id]; !ok {
			return fmt.Errorf("share group %s not found", id)
		}
		delete(d.ShareGroups, id)
		members := d.ShareGroupMembers[:0]
		for _, member := range d.ShareGroupMembers {
			if member.GroupID != id {
				members = append(members, member)
			}
		}
		d.ShareGroupMembers = members
		grants := d.VideoGroupShares[:0]
		for _, grant := range d.VideoGroupShares {
			if grant.GroupID != id {
				grants = append(grants, grant)
			}
		}
		d.VideoGroupShares = grants
		return nil
	})
}

func (s *Storage) AddShareGroupMember(groupID, email string) (models.ShareGroupMember, error) {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" || !strings.Contains(trimmed, "@") {
		return models.ShareGroupMember{}, errors.New("a valid email is required")
	}
	member := models.ShareGroupMember{GroupID: groupID, Email: trimmed, CreatedAt: s.now()}
	err := s.mutate(func(d *dataset) error {
		if _, ok := d.ShareGroups[groupID]; !ok {
			return fmt.Errorf("share group %s not found", groupID)
		}
		for _, existing := range d.ShareGroupMembers {
			if existing.GroupID == groupID && strings.EqualFold(existing.Email, trimmed) {
				return fmt.Errorf("%s is already a member", trimmed)
			}
		}
		d.ShareGroupMembers = append(d.ShareGroupMembers, member)
		return nil
	})
	if err != nil {
		return models.ShareGroupMember{}, err
	}
	return member, nil
}

func (s *Storage) RemoveShareGroupMember(groupID, email string) error {
	return s.mutate(func(d *dataset) error {
		for i, existing := range d.ShareGroupMembers {
			if existing.GroupID == groupID && strings.EqualFold(existing.Email, email) {
				d.ShareGroupMembers = append(d.ShareGroupMembers[:i], d.ShareGroupMembers[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("%s is not a member of group %s", email, groupID)
	})
}

func (s *Storage) ListShareGroupMembers(groupID string) []models.ShareGroupMember {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := make([]models.ShareGroupMember, 0)
	for _, member := range s.data.ShareGroupMembers {
		if member.GroupID == groupID {
			members = append(members, member)
		}
	}
	return members
}

func (s *Storage) CreateVideoGroupShare(videoID, groupID string) (models.VideoGroupShare, error) {
	grant := models.VideoGroupShare{VideoID: videoID, GroupID: groupID, CreatedAt: s.now()}
	err := s.mutate(func(d *dataset) error {
		if _, ok := d.Videos[videoID]; !ok {
			return fmt.Errorf("video %s not found", videoID)
		}
		if _, ok := d.ShareGroups[groupID]; !ok {
			return fmt.Errorf("share group %s not found", groupID)
		}
		for _, existing := range d.VideoGroupShares {
			if existing.VideoID == videoID && existing.GroupID == groupID {
				return errors.New("video is already shared with this group")
			}
		}
		d.VideoGroupShares = append(d.VideoGroupShares, grant)
		return nil
	})
	if err != nil {
		return models.VideoGroupShare{}, err
	}
	return grant, nil
}

func (s *Storage) DeleteVideoGroupShare(videoID, groupID string) error {
	return s.mutate(func(d *dataset) error {
		for i, existing := range d.VideoGroupShares {
			if existing.VideoID == videoID && existing.GroupID == groupID {
				d.VideoGroupShares = append(d.VideoGroupShares[:i], d.VideoGroupShares[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("video %s is not shared with group %s", videoID, groupID)
	})
}

func (s *Storage) ListVideoGroupShares(videoID string) []models.VideoGroupShare {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grants := make([]models.VideoGroupShare, 0)
	for _, grant := range s.data.VideoGroupShares {
		if grant.VideoID == videoID {
			grants = append(grants, grant)
		}
	}
	return grants
}

// HasGroupGrantForEmail reports whether any group shared on the video counts
// the email as a member, or is owned by the given user.
func (s *Storage) HasGroupGrantForEmail(videoID, email, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, grant := range s.data.VideoGroupShares {
		if grant.VideoID != videoID {
			continue
		}
		if s.groupGrantsLocked(grant.GroupID, email, userID) {
			return true
		}
	}
	return false
}

// groupGrantsLocked requires s.mu to be held.
func (s *Storage) groupGrantsLocked(groupID, email, userID string) bool {
	if group, ok := s.data.ShareGroups[groupID]; ok && userID != "" && group.OwnerID == userID {
		return true
	}
	if email == "" {
		return false
	}
	for _, member := range s.data.ShareGroupMembers {
		if member.GroupID == groupID && strings.EqualFold(member.Email, email) {
			return true
		}
	}
	return false
}
