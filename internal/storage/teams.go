package storage

import (
	"errors"
	"fmt"
	"strings"

	"reelvault/internal/models"
)

// CreateTeam creates a team and installs ownerID as its OWNER.
func (s *Storage) CreateTeam(name, ownerID string) (models.Team, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return models.Team{}, errors.New("team name is required")
	}
	id, err := generateID()
	if err != nil {
		return models.Team{}, err
	}
	team := models.Team{ID: id, Name: trimmed, CreatedAt: s.now()}
	err = s.mutate(func(d *dataset) error {
		if _, ok := d.Users[ownerID]; !ok {
			return fmt.Errorf("user %s not found", ownerID)
		}
		d.Teams[team.ID] = team
		d.TeamMemberships = append(d.TeamMemberships, models.TeamMembership{
			TeamID:    team.ID,
			UserID:    ownerID,
			Role:      models.TeamRoleOwner,
			CreatedAt: team.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return models.Team{}, err
	}
	return team, nil
}

func (s *Storage) GetTeam(id string) (models.Team, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	team, ok := s.data.Teams[id]
	return team, ok
}

func (s *Storage) ListTeamsForUser(userID string) []models.Team {
	s.mu.RLock()
	defer s.mu.RUnlock()
	teams := make([]models.Team, 0)
	for _, membership := range s.data.TeamMemberships {
		if membership.UserID != userID {
			continue
		}
		if team, ok := s.data.Teams[membership.TeamID]; ok {
			teams = append(teams, team)
		}
	}
	return teams
}

// UpsertTeamMembership adds userID to the team or updates their role.
func (s *Storage) UpsertTeamMembership(teamID, userID string, role models.TeamRole) (models.TeamMembership, error) {
	switch role {
	case models.TeamRoleOwner, models.TeamRoleAdmin, models.TeamRoleMember:
	default:
		return models.TeamMembership{}, fmt.Errorf("unknown team role %q", role)
	}
	membership := models.TeamMembership{TeamID: teamID, UserID: userID, Role: role, CreatedAt: s.now()}
	err := s.mutate(func(d *dataset) error {
		if _, ok := d.Teams[teamID]; !ok {
			return fmt.Errorf("team %s not found", teamID)
		}
		if _, ok := d.Users[userID]; !ok {
			return fmt.Errorf("user %s not found", userID)
		}
		for i, existing := range d.TeamMemberships {
			if existing.TeamID == teamID && existing.UserID == userID {
				membership.CreatedAt = existing.CreatedAt
				d.TeamMemberships[i] = membership
				return nil
			}
		}
		d.TeamMemberships = append(d.TeamMemberships, membership)
		return nil
	})
	if err != nil {
		return models.TeamMembership{}, err
	}
	return membership, nil
}

func (s *Storage) RemoveTeamMembership(teamID, userID string) error {
	return s.mutate(func(d *dataset) error {
		for i, existing := range d.TeamMemberships {
			if existing.TeamID == teamID && existing.UserID == userID {
				d.TeamMemberships = append(d.TeamMemberships[:i], d.TeamMemberships[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("user %s is not a member of team %s", userID, teamID)
	})
}

func (s *Storage) GetTeamMembership(teamID, userID string) (models.TeamMembership, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, membership := range s.data.TeamMemberships {
		if membership.TeamID == teamID && membership.UserID == userID {
			return membership, true
		}
	}
	return models.TeamMembership{}, false
}

func (s *Storage) ListTeamMemberships(teamID string) []models.TeamMembership {
	s.mu.RLock()
	defer s.mu.RUnlock()
	memberships := make([]models.TeamMembership, 0)
	for _, membership := range s.data.TeamMemberships {
		if membership.TeamID == teamID {
			memberships = append(memberships, membership)
		}
	}
	return memberships
}
