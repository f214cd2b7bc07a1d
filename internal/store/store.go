// Package store defines the conversation store interface and implementations.
package store

import (
	"context"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
)

// Store keeps an append-only message history per participant email.
type Store interface {
	// Ensure creates an empty history for email if none exists.
	Ensure(ctx context.Context, email string) error

	// Append adds msg to the end of email's history.
	Append(ctx context.Context, email string, msg domain.ChatMessage) error

	// History returns email's messages in insertion order. A positive limit
	// keeps only the newest limit messages; a non-empty before keeps only
	// messages appended before the message with that ID. A cursor that is
	// not in the history falls back to comparing IDs.
	History(ctx context.Context, email string, limit int, before string) ([]domain.ChatMessage, error)

	// Participants returns the number of emails with a history entry.
	Participants(ctx context.Context) (int, error)

	Close() error
}
