package main

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/jaylordlagud2022/affiliate-portal/internal/protocol"
)

// Client represents a chat client connected to the relay.
type Client struct {
	conn  *websocket.Conn
	email string
	done  chan struct{}
}

// NewClient creates a new client and connects to the relay.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

// Register sends a register frame and waits for register_ack.
func (c *Client) Register(email, name, avatar string) (protocol.RegisterAckMessage, error) {
	msg := protocol.RegisterMessage{
		BaseMessage: protocol.BaseMessage{
			Type: protocol.TypeRegister,
			Ts:   time.Now().UnixMilli(),
		},
		Email:  email,
		Name:   name,
		Avatar: avatar,
	}

	if err := c.conn.WriteJSON(msg); err != nil {
		return protocol.RegisterAckMessage{}, fmt.Errorf("write register: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return protocol.RegisterAckMessage{}, fmt.Errorf("read register_ack: %w", err)
	}

	base, err := protocol.Decode(data)
	if err != nil {
		return protocol.RegisterAckMessage{}, fmt.Errorf("unmarshal register_ack: %w", err)
	}

	if base.Type == protocol.TypeError {
		var errMsg protocol.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return protocol.RegisterAckMessage{}, fmt.Errorf("register failed: %s - %s", errMsg.Code, errMsg.Message)
	}

	if base.Type != protocol.TypeRegisterAck {
		return protocol.RegisterAckMessage{}, fmt.Errorf("expected register_ack, got: %s", base.Type)
	}

	var ack protocol.RegisterAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return protocol.RegisterAckMessage{}, fmt.Errorf("unmarshal register_ack: %w", err)
	}
	c.email = ack.Email
	return ack, nil
}

// Send sends a chat message from the registered email.
func (c *Client) Send(to, message string) error {
	msg := protocol.SendMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeSendMessage,
			Ts:        time.Now().UnixMilli(),
			RequestID: fmt.Sprintf("req_%d", time.Now().UnixNano()),
		},
		To:      to,
		From:    c.email,
		Message: message,
	}

	return c.conn.WriteJSON(msg)
}

// ReadMessages prints inbound frames until the connection closes.
func (c *Client) ReadMessages(out io.Writer) {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					fmt.Fprintf(out, "\nread error: %v\n", err)
				}
				return
			}
			fmt.Fprint(out, formatFrame(data))
		}
	}
}

func formatFrame(data []byte) string {
	base, err := protocol.Decode(data)
	if err != nil {
		return fmt.Sprintf("\n[unparseable] %s\n", data)
	}

	switch base.Type {
	case protocol.TypeReceiveMessage:
		var msg protocol.ReceiveMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			return fmt.Sprintf("\n[%s] %s <%s>: %s\n", msg.Timestamp.Local().Format(time.Kitchen), msg.Name, msg.Sender, msg.Message)
		}
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if err := json.Unmarshal(data, &msg); err == nil {
			return fmt.Sprintf("\n[error] %s: %s\n", msg.Code, msg.Message)
		}
	}
	return fmt.Sprintf("\n[%s] %s\n", base.Type, data)
}
