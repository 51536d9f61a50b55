package event

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType is the kind of an inbound message as tagged by the platform.
type MessageType string

const (
	TypeText        MessageType = "text"
	TypeImage       MessageType = "image"
	TypeAudio       MessageType = "audio"
	TypeVideo       MessageType = "video"
	TypeDocument    MessageType = "document"
	TypeSticker     MessageType = "sticker"
	TypeLocation    MessageType = "location"
	TypeContacts    MessageType = "contacts"
	TypeButton      MessageType = "button"
	TypeInteractive MessageType = "interactive"
	TypeReaction    MessageType = "reaction"
	TypeOther       MessageType = "other"
)

func parseMessageType(s string) MessageType {
	switch t := MessageType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeText, TypeImage, TypeAudio, TypeVideo, TypeDocument, TypeSticker,
		TypeLocation, TypeContacts, TypeButton, TypeInteractive, TypeReaction:
		return t
	}
	return TypeOther
}

// InboundEvent is one actionable message pulled out of a webhook delivery.
// It lives for the duration of a single request.
type InboundEvent struct {
	ID          string          `json:"id"`
	From        string          `json:"from"` // sender phone, international format
	Type        MessageType     `json:"type"`
	MessageID   string          `json:"message_id,omitempty"`
	ContactName string          `json:"contact_name,omitempty"`
	Text        string          `json:"text,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	ReceivedAt  time.Time       `json:"-"`
	Raw         json.RawMessage `json:"-"`
}
