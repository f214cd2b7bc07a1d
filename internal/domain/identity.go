// Package domain holds the value types shared across the relay.
package domain

import (
	"errors"
	"strings"
)

// DefaultAvatarURL is used when a participant registers without an avatar.
const DefaultAvatarURL = "https://i.pravatar.cc/40"

// Validation errors.
var (
	ErrEmailRequired    = errors.New("email is required")
	ErrSenderRequired   = errors.New("from is required")
	ErrReceiverRequired = errors.New("to is required")
	ErrBodyRequired     = errors.New("message is required")
)

// Identity is a chat participant as asserted by the client.
// The relay does not verify it.
type Identity struct {
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	AvatarURL   string `json:"avatar"`
}

// NewIdentity builds an Identity with defaults for the optional fields.
func NewIdentity(email, name, avatar string) Identity {
	email = strings.TrimSpace(email)
	if strings.TrimSpace(name) == "" {
		name = email
	}
	if strings.TrimSpace(avatar) == "" {
		avatar = DefaultAvatarURL
	}
	return Identity{Email: email, DisplayName: name, AvatarURL: avatar}
}
