package domain

import (
	"strings"
)

// Team groups members that share boards. Members keeps insertion order.
type Team struct {
	ID      string
	Name    string
	Members []string
	Leader  string
}

// TeamInput holds write-time values for creating one team.
type TeamInput struct {
	ID      string
	Name    string
	Members []string
	Leader  string
}

// NewTeam validates and normalizes one team. The leader is always a member.
func NewTeam(in TeamInput) (Team, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Name = strings.TrimSpace(in.Name)
	if in.ID == "" {
		return Team{}, ErrInvalidID
	}
	if in.Name == "" {
		return Team{}, ErrInvalidName
	}

	leader, err := NormalizeEmail(in.Leader)
	if err != nil {
		return Team{}, ErrInvalidLeader
	}

	members := make([]string, 0, len(in.Members)+1)
	seen := map[string]struct{}{}
	for _, raw := range in.Members {
		email, err := NormalizeEmail(raw)
		if err != nil {
			return Team{}, err
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		members = append(members, email)
	}
	if _, ok := seen[leader]; !ok {
		members = append(members, leader)
	}

	return Team{
		ID:      in.ID,
		Name:    in.Name,
		Members: members,
		Leader:  leader,
	}, nil
}

// HasMember reports whether email belongs to the team.
func (t Team) HasMember(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, member := range t.Members {
		if member == email {
			return true
		}
	}
	return false
}
