package domain

import (
	"net/mail"
	"strings"
)

// User is one account that may receive reminder mail.
type User struct {
	ID             string
	Email          string
	DisplayName    string
	NotificationOn bool
}

// UserInput holds write-time values for creating one user.
type UserInput struct {
	ID             string
	Email          string
	DisplayName    string
	NotificationOn bool
}

// NewUser validates and normalizes one user.
func NewUser(in UserInput) (User, error) {
	in.ID = strings.TrimSpace(in.ID)
	if in.ID == "" {
		return User{}, ErrInvalidID
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.DisplayName)
	if name == "" {
		name = email
	}
	return User{
		ID:             in.ID,
		Email:          email,
		DisplayName:    name,
		NotificationOn: in.NotificationOn,
	}, nil
}

// NormalizeEmail trims, lower-cases and validates one bare address.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
