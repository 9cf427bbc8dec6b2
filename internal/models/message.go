package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindAudio    MessageKind = "audio"
	KindVideo    MessageKind = "video"
	KindDocument MessageKind = "document"
	KindSticker  MessageKind = "sticker"
	KindLocation MessageKind = "location"
	KindContacts MessageKind = "contacts"
	KindUnknown  MessageKind = "unknown"
)

// IsValid reports whether k is one of the recognized message kinds.
func (k MessageKind) IsValid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindVideo, KindDocument, KindSticker, KindLocation, KindContacts, KindUnknown:
		return true
	}
	return false
}

type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
	StatusUnknown   MessageStatus = "unknown"
	StatusNone      MessageStatus = "none"
)

// IsValid reports whether s is one of the recognized delivery statuses.
func (s MessageStatus) IsValid() bool {
	switch s {
	case StatusSent, StatusDelivered, StatusRead, StatusFailed, StatusUnknown, StatusNone:
		return true
	}
	return false
}

// StatusEntry is one entry in a message's delivery-state audit trail.
// Entries are stored in arrival order, not sorted by time.
type StatusEntry struct {
	Status MessageStatus `bson:"status" json:"status"`
	At     time.Time     `bson:"at" json:"at"`
}

// Media holds the attachment details for media-bearing messages.
// Only image payloads populate it; other media kinds carry the kind alone.
type Media struct {
	URL      string `bson:"url,omitempty" json:"url,omitempty"`
	MimeType string `bson:"mimeType,omitempty" json:"mimeType,omitempty"`
	Caption  string `bson:"caption,omitempty" json:"caption,omitempty"`
}

// Message is the normalized message document stored in MongoDB.
//
// MessageID is the provider's external identifier. It is unique when
// present, but locally composed outbound messages have none, so it is a
// pointer backed by a unique sparse index rather than a required field.
// Messages without it are deduplicated by (waId, timestamp, text).
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	MessageID      *string            `bson:"messageId,omitempty" json:"messageId"`
	MetaMsgID      *string            `bson:"metaMsgId,omitempty" json:"metaMsgId"`
	WaID           string             `bson:"waId" json:"waId"`
	ContactName    *string            `bson:"contactName,omitempty" json:"contactName"`
	Direction      Direction          `bson:"direction" json:"direction"`
	Kind           MessageKind        `bson:"type" json:"type"`
	Text           *string            `bson:"text" json:"text"`
	Media          *Media             `bson:"media,omitempty" json:"media,omitempty"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	Status         MessageStatus      `bson:"status" json:"status"`
	StatusHistory  []StatusEntry      `bson:"statusHistory" json:"statusHistory"`
	From           string             `bson:"from,omitempty" json:"from,omitempty"`
	To             string             `bson:"to,omitempty" json:"to,omitempty"`
	ConversationID *string            `bson:"conversationId,omitempty" json:"conversationId,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasExternalID reports whether the message carries a provider identifier,
// which decides the idempotency key used on ingestion.
func (m *Message) HasExternalID() bool {
	return m.MessageID != nil && *m.MessageID != ""
}

// ConversationSummary is one row of the conversation list. It is derived
// from the message collection on every query and never persisted.
type ConversationSummary struct {
	WaID          string        `bson:"waId" json:"waId"`
	LastMessage   *string       `bson:"lastMessage" json:"lastMessage"`
	LastKind      MessageKind   `bson:"lastType" json:"lastType"`
	LastStatus    MessageStatus `bson:"lastStatus" json:"lastStatus"`
	LastTimestamp time.Time     `bson:"lastTimestamp" json:"lastTimestamp"`
	ContactName   *string       `bson:"contactName" json:"contactName"`
	TotalMessages int64         `bson:"totalMessages" json:"totalMessages"`
}

// Socket event names pushed to connected clients.
const (
	EventMessageNew    = "message:new"
	EventMessageUpdate = "message:update"
)
