package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// EpochSeconds is a point in time encoded as Unix seconds. WhatsApp
// webhook payloads send it either as a JSON number or as a numeric
// string, so it accepts both. Zero means the field was absent or falsy.
type EpochSeconds int64

func (e *EpochSeconds) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*e = 0
		return nil
	}
	// Some providers send fractional seconds; truncate them.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid epoch timestamp %q: %w", s, err)
	}
	*e = EpochSeconds(int64(f))
	return nil
}

func (e EpochSeconds) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(e), 10)), nil
}

// Time converts to UTC time. The zero value maps to the zero time so
// callers can substitute processing time for absent fields.
func (e EpochSeconds) Time() time.Time {
	if e == 0 {
		return time.Time{}
	}
	return time.Unix(int64(e), 0).UTC()
}

// WebhookEnvelope is the outermost shape of a WhatsApp Business webhook
// delivery. Sampled payloads come in two wrappings: the standard
// entry->changes->value nesting, optionally wrapped once more in a
// metaData object.
type WebhookEnvelope struct {
	PayloadType string          `json:"payload_type,omitempty"`
	MetaData    *WebhookBatch   `json:"metaData,omitempty"`
	Entry       []WebhookEntry  `json:"entry,omitempty"`
}

type WebhookBatch struct {
	Entry []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id,omitempty"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field,omitempty"`
	Value *ChangeValue `json:"value"`
}

// ChangeValue is the significant sub-shape of a webhook delivery: the
// object that actually carries messages and/or status updates.
type ChangeValue struct {
	MessagingProduct string           `json:"messaging_product,omitempty"`
	Metadata         *WebhookMetadata `json:"metadata,omitempty"`
	Contacts         []WebhookContact `json:"contacts,omitempty"`
	Messages         []WebhookMessage `json:"messages,omitempty"`
	Statuses         []WebhookStatus  `json:"statuses,omitempty"`
}

// IsEmpty reports whether the value carries neither messages nor statuses.
func (v *ChangeValue) IsEmpty() bool {
	return v == nil || (len(v.Messages) == 0 && len(v.Statuses) == 0)
}

type WebhookMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

type WebhookContact struct {
	WaID    string          `json:"wa_id"`
	Profile *WebhookProfile `json:"profile,omitempty"`
}

type WebhookProfile struct {
	Name string `json:"name"`
}

type WebhookText struct {
	Body string `json:"body"`
}

type WebhookMedia struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type WebhookContext struct {
	From string `json:"from,omitempty"`
	ID   string `json:"id,omitempty"`
}

// WebhookMessage is one message entry. Nearly every field is optional in
// practice, so extraction must check presence at every step.
type WebhookMessage struct {
	ID        string          `json:"id,omitempty"`
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Type      string          `json:"type,omitempty"`
	Timestamp EpochSeconds    `json:"timestamp,omitempty"`
	Text      *WebhookText    `json:"text,omitempty"`
	Image     *WebhookMedia   `json:"image,omitempty"`
	Video     *WebhookMedia   `json:"video,omitempty"`
	Audio     *WebhookMedia   `json:"audio,omitempty"`
	Document  *WebhookMedia   `json:"document,omitempty"`
	Context   *WebhookContext `json:"context,omitempty"`
	MetaMsgID string          `json:"meta_msg_id,omitempty"`
}

// WebhookStatus is one delivery-state update. It references its target
// message by id or meta_msg_id; recipient_id only identifies the
// conversation.
type WebhookStatus struct {
	ID          string       `json:"id,omitempty"`
	MetaMsgID   string       `json:"meta_msg_id,omitempty"`
	Status      string       `json:"status,omitempty"`
	Timestamp   EpochSeconds `json:"timestamp,omitempty"`
	RecipientID string       `json:"recipient_id,omitempty"`
}
