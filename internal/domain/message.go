package domain

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ChatMessage is one relayed message. The sender fields are a snapshot of
// the sender's identity at routing time.
type ChatMessage struct {
	ID            string    `json:"id"`
	SenderEmail   string    `json:"sender"`
	SenderName    string    `json:"name"`
	SenderAvatar  string    `json:"avatar"`
	ReceiverEmail string    `json:"to"`
	Body          string    `json:"message"`
	SentAt        time.Time `json:"timestamp"`
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewMessageID returns a ULID that sorts after every ID issued before it in
// this process.
func NewMessageID(now time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

// NewChatMessage stamps a message from sender to receiver at now.
func NewChatMessage(sender Identity, to, body string, now time.Time) ChatMessage {
	return ChatMessage{
		ID:            NewMessageID(now),
		SenderEmail:   sender.Email,
		SenderName:    sender.DisplayName,
		SenderAvatar:  sender.AvatarURL,
		ReceiverEmail: to,
		Body:          body,
		SentAt:        now,
	}
}
