package signaling

import (
	"encoding/json"
	"fmt"
)

// MessageType is the kind of payload a peer relays through a room.
type MessageType string

const (
	TypeMessage   MessageType = "message"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
)

// Valid reports whether t is one of the known relay types.
func (t MessageType) Valid() bool {
	switch t {
	case TypeMessage, TypeOffer, TypeAnswer, TypeCandidate:
		return true
	}
	return false
}

// Message is the envelope relayed between the two peers of a room.
// Field names on the wire match what existing browser clients send.
type Message struct {
	MessageType MessageType `json:"MessageType"`
	Body        string      `json:"Body"`
	SenderID    string      `json:"SenderID"`
}

// Welcome 在成员加入房间时发送给该成员。
// Polite 决定 WebRTC perfect negotiation 中该端是否让步。
type Welcome struct {
	Type   string `json:"type"`
	Body   string `json:"body"`
	Polite bool   `json:"polite"`
}

func newWelcome(hostID, chatID string, polite bool) Welcome {
	return Welcome{
		Type:   "polite",
		Body:   fmt.Sprintf("Hi %s! You connected to the server at chatID: %s", hostID, chatID),
		Polite: polite,
	}
}

// Normalize turns an inbound text frame into the envelope relayed to the peer.
// The sender ID is always taken from the connection, never from the payload.
// Text that is not a JSON envelope is wrapped as a plain message body.
func Normalize(hostID string, raw []byte) ([]byte, error) {
	var msg Message
	// null 或空对象也能解码成功，但会丢掉原文，按普通文本处理
	if err := json.Unmarshal(raw, &msg); err != nil || (msg.MessageType == "" && msg.Body == "") {
		msg = Message{MessageType: TypeMessage, Body: string(raw)}
	}
	if !msg.MessageType.Valid() {
		msg.MessageType = TypeMessage
	}
	msg.SenderID = hostID

	out, err := json.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relay message: %w", err)
	}
	return out, nil
}
