// Package protocol defines the WebSocket message protocol between chat clients and the relay.
package protocol

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/jaylordlagud2022/affiliate-portal/internal/domain"
)

// Message types from client to relay
const (
	TypeRegister    = "register"
	TypeSendMessage = "send_message"
)

// Message types from relay to client
const (
	TypeRegisterAck    = "register_ack"
	TypeReceiveMessage = "receive_message"
	TypeError          = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage = "invalid_message"
	ErrorCodeMissingField   = "missing_field"
	ErrorCodeRateLimited    = "rate_limited"
	ErrorCodeInternalError  = "internal_error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
}

// RegisterMessage binds the sending connection to an identity.
type RegisterMessage struct {
	BaseMessage
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// RegisterAckMessage confirms a registration with defaults resolved.
type RegisterAckMessage struct {
	BaseMessage
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// SendMessage asks the relay to route a chat message.
type SendMessage struct {
	BaseMessage
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

// ReceiveMessage delivers a routed chat message to its receiver.
type ReceiveMessage struct {
	BaseMessage
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Name      string    `json:"name"`
	Avatar    string    `json:"avatar"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMessage is sent by the relay when an inbound event is rejected.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewRegisterAck builds the acknowledgement for identity.
func NewRegisterAck(identity domain.Identity, requestID string) RegisterAckMessage {
	return RegisterAckMessage{
		BaseMessage: BaseMessage{Type: TypeRegisterAck, Ts: time.Now().UnixMilli(), RequestID: requestID},
		Email:       identity.Email,
		Name:        identity.DisplayName,
		Avatar:      identity.AvatarURL,
	}
}

// NewReceiveMessage builds the frame that carries msg to its receiver.
func NewReceiveMessage(msg domain.ChatMessage) ReceiveMessage {
	return ReceiveMessage{
		BaseMessage: BaseMessage{Type: TypeReceiveMessage, Ts: msg.SentAt.UnixMilli()},
		ID:          msg.ID,
		Sender:      msg.SenderEmail,
		Name:        msg.SenderName,
		Avatar:      msg.SenderAvatar,
		Message:     msg.Body,
		Timestamp:   msg.SentAt,
	}
}

// NewError builds an error frame.
func NewError(code, message, requestID string) ErrorMessage {
	return ErrorMessage{
		BaseMessage: BaseMessage{Type: TypeError, Ts: time.Now().UnixMilli(), RequestID: requestID},
		Code:        code,
		Message:     message,
	}
}

// Encode marshals a frame.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode parses the envelope of an inbound frame.
func Decode(data []byte) (BaseMessage, error) {
	var base BaseMessage
	err := json.Unmarshal(data, &base)
	return base, err
}
