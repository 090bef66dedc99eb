package realtime

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/tableside/pkg/enums"
)

// Message is the envelope carried by every realtime frame.
type Message struct {
	Type    enums.MessageType   `json:"type"`
	Action  enums.MessageAction `json:"action"`
	Payload json.RawMessage     `json:"payload,omitempty"`
	Role    enums.SessionRole   `json:"role,omitempty"`
}

// Is reports whether the message matches the given type and action.
func (m Message) Is(msgType enums.MessageType, action enums.MessageAction) bool {
	return m.Type == msgType && m.Action == action
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	if len(m.Payload) == 0 {
		return fmt.Errorf("message %s/%s has no payload", m.Type, m.Action)
	}
	if err := json.Unmarshal(m.Payload, dst); err != nil {
		return fmt.Errorf("decode %s/%s payload: %w", m.Type, m.Action, err)
	}
	return nil
}

// ParseMessage decodes a raw frame. Frames without a type are rejected.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("parse realtime frame: %w", err)
	}
	if strings.TrimSpace(string(msg.Type)) == "" {
		return Message{}, fmt.Errorf("parse realtime frame: missing type")
	}
	return msg, nil
}

// NewMessage builds an envelope with payload marshalled to JSON.
func NewMessage(msgType enums.MessageType, action enums.MessageAction, role enums.SessionRole, payload any) (Message, error) {
	msg := Message{Type: msgType, Action: action, Role: role}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s/%s payload: %w", msgType, action, err)
		}
		msg.Payload = raw
	}
	return msg, nil
}

// NewOrderPayload announces a freshly created order to the admin side.
type NewOrderPayload struct {
	Event   string `json:"event"`
	OrderID int64  `json:"order_id"`
	Order   any    `json:"order"`
}

// NewOrderMessage wraps a created order in a {order,new_order} envelope.
func NewOrderMessage(role enums.SessionRole, orderID int64, order any) (Message, error) {
	return NewMessage(enums.MessageTypeOrder, enums.MessageActionNewOrder, role, NewOrderPayload{
		Event:   enums.NewOrderEventName,
		OrderID: orderID,
		Order:   order,
	})
}

// DirectPayload addresses a message to a single user.
type DirectPayload struct {
	FromUserID int64 `json:"fromUserId"`
	ToUserID   int64 `json:"toUserId"`
	Message    any   `json:"message"`
}

// DirectMessage wraps payload in a {order,create_message} envelope from one user to another.
func DirectMessage(role enums.SessionRole, from, to int64, payload any) (Message, error) {
	return NewMessage(enums.MessageTypeOrder, enums.MessageActionCreateMessage, role, DirectPayload{
		FromUserID: from,
		ToUserID:   to,
		Message:    payload,
	})
}

// StatusUpdatePayload is pushed by the server when an order moves through its lifecycle.
type StatusUpdatePayload struct {
	OrderID int64             `json:"order_id"`
	Status  enums.OrderStatus `json:"status"`
}
