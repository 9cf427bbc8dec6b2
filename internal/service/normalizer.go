package service

import (
	"context"
	"encoding/json"
	"time"

	"whatsview/internal/models"

	"github.com/sirupsen/logrus"
)

// MessageStore is the slice of the store the normalization and read paths
// depend on. Implemented by internal/database.Store.
type MessageStore interface {
	UpsertInsertOnly(ctx context.Context, msg *models.Message) (bool, error)
	InsertMessage(ctx context.Context, msg *models.Message) (*models.Message, error)
	ApplyStatus(ctx context.Context, externalID string, status models.MessageStatus, at time.Time) (int64, error)
	SetContactName(ctx context.Context, waID, name string) error
	ListByConversation(ctx context.Context, waID string) ([]models.Message, error)
	AggregateConversationSummaries(ctx context.Context) ([]models.ConversationSummary, error)
}

// Publisher fans an event out to connected subscribers. It is injected,
// never constructed here; delivery is best-effort and must not block or
// fail the write that triggered it.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Report accumulates per-batch ingestion counters for diagnostics.
type Report struct {
	Payloads          int
	PayloadsSkipped   int
	MessagesInserted  int
	MessagesDuplicate int
	StatusesApplied   int
	StatusesSkipped   int
}

func (r *Report) merge(other Report) {
	r.Payloads += other.Payloads
	r.PayloadsSkipped += other.PayloadsSkipped
	r.MessagesInserted += other.MessagesInserted
	r.MessagesDuplicate += other.MessagesDuplicate
	r.StatusesApplied += other.StatusesApplied
	r.StatusesSkipped += other.StatusesSkipped
}

// Fields renders the report as structured log fields.
func (r Report) Fields() logrus.Fields {
	return logrus.Fields{
		"payloads":           r.Payloads,
		"payloads_skipped":   r.PayloadsSkipped,
		"messages_inserted":  r.MessagesInserted,
		"messages_duplicate": r.MessagesDuplicate,
		"statuses_applied":   r.StatusesApplied,
		"statuses_skipped":   r.StatusesSkipped,
	}
}

// Normalizer turns raw webhook payloads into store mutations. It is the
// write-side core: everything else is plumbing around it.
type Normalizer struct {
	store  MessageStore
	logger *logrus.Logger
	now    func() time.Time
}

func NewNormalizer(store MessageStore, logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// extractValue locates the significant sub-shape of a webhook delivery.
// First present wins: the metaData-wrapped entry list, the plain entry
// list, then a bare value-shaped object at top level. Returns nil when no
// shape carries messages or statuses.
func extractValue(raw []byte) *models.ChangeValue {
	var envelope models.WebhookEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		entries := envelope.Entry
		if envelope.MetaData != nil && len(envelope.MetaData.Entry) > 0 {
			entries = envelope.MetaData.Entry
		}
		for _, entry := range entries {
			for _, change := range entry.Changes {
				if !change.Value.IsEmpty() {
					return change.Value
				}
			}
		}
	}

	var value models.ChangeValue
	if err := json.Unmarshal(raw, &value); err == nil && !value.IsEmpty() {
		return &value
	}

	return nil
}

// ProcessPayload normalizes one decoded webhook delivery into store
// mutations. Message extraction runs before status extraction, so a status
// referencing a message in the same payload resolves. Individual item
// failures are logged and skipped; the payload keeps processing.
func (n *Normalizer) ProcessPayload(ctx context.Context, raw []byte) Report {
	report := Report{Payloads: 1}

	value := extractValue(raw)
	if value == nil {
		n.logger.Warn("Payload carries no recognizable message or status shape, skipping")
		report.PayloadsSkipped++
		return report
	}

	for i := range value.Messages {
		n.upsertMessage(ctx, value, &value.Messages[i], &report)
	}

	if name := contactDisplayName(value); name != "" && len(value.Messages) > 0 {
		if waID := resolveWaID(value, &value.Messages[0]); waID != "" {
			if err := n.store.SetContactName(ctx, waID, name); err != nil {
				n.logger.WithError(err).WithField(LogFieldWaID, waID).Warn("Failed to backfill contact name")
			}
		}
	}

	for i := range value.Statuses {
		n.applyStatus(ctx, &value.Statuses[i], &report)
	}

	return report
}

// ProcessPayloads runs a batch strictly in the order given.
func (n *Normalizer) ProcessPayloads(ctx context.Context, payloads [][]byte) Report {
	var report Report
	for _, raw := range payloads {
		report.merge(n.ProcessPayload(ctx, raw))
	}
	return report
}

// resolveWaID determines the conversation key by precedence: the contact
// profile's wa_id, the message's from, the message's to, then the first
// status entry's recipient_id. Empty when nothing resolves; the record is
// still created.
func resolveWaID(value *models.ChangeValue, msg *models.WebhookMessage) string {
	if len(value.Contacts) > 0 && value.Contacts[0].WaID != "" {
		return value.Contacts[0].WaID
	}
	if msg.From != "" {
		return msg.From
	}
	if msg.To != "" {
		return msg.To
	}
	if len(value.Statuses) > 0 && value.Statuses[0].RecipientID != "" {
		return value.Statuses[0].RecipientID
	}
	return ""
}

// resolveDirection infers the direction once, at creation. A message whose
// from matches the conversation key came from the external party; anything
// else, including records resolved purely from to/recipient_id with no
// from at all, defaults to outbound. The fallback is intentional.
func resolveDirection(from, waID string) models.Direction {
	if from != "" && waID != "" && from == waID {
		return models.DirectionInbound
	}
	return models.DirectionOutbound
}

// resolveKind starts from the payload's declared type (defaulting to text,
// mapping unrecognized values to unknown), then lets media sub-objects
// override it. Only an image sub-object yields media details.
func resolveKind(msg *models.WebhookMessage) (models.MessageKind, *models.Media) {
	kind := models.KindText
	if msg.Type != "" {
		kind = models.MessageKind(msg.Type)
		if !kind.IsValid() {
			kind = models.KindUnknown
		}
	}

	var media *models.Media
	if msg.Image != nil {
		kind = models.KindImage
		media = &models.Media{
			URL:      msg.Image.Link,
			MimeType: msg.Image.MimeType,
			Caption:  msg.Image.Caption,
		}
	}
	if msg.Video != nil {
		kind = models.KindVideo
	}
	if msg.Audio != nil {
		kind = models.KindAudio
	}
	if msg.Document != nil {
		kind = models.KindDocument
	}

	return kind, media
}

func contactDisplayName(value *models.ChangeValue) string {
	if len(value.Contacts) > 0 && value.Contacts[0].Profile != nil {
		return value.Contacts[0].Profile.Name
	}
	return ""
}

func (n *Normalizer) buildMessage(value *models.ChangeValue, msg *models.WebhookMessage) *models.Message {
	now := n.now().UTC()

	waID := resolveWaID(value, msg)
	kind, media := resolveKind(msg)

	timestamp := msg.Timestamp.Time()
	if timestamp.IsZero() {
		timestamp = now
	}

	doc := &models.Message{
		WaID:          waID,
		Direction:     resolveDirection(msg.From, waID),
		Kind:          kind,
		Media:         media,
		Timestamp:     timestamp,
		Status:        models.StatusNone,
		StatusHistory: []models.StatusEntry{},
		From:          msg.From,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if msg.ID != "" {
		doc.MessageID = &msg.ID
	}
	if msg.Context != nil && msg.Context.ID != "" {
		doc.MetaMsgID = &msg.Context.ID
		doc.ConversationID = &msg.Context.ID
	} else if msg.MetaMsgID != "" {
		doc.MetaMsgID = &msg.MetaMsgID
	}
	if name := contactDisplayName(value); name != "" {
		doc.ContactName = &name
	}
	if msg.Text != nil {
		doc.Text = &msg.Text.Body
	}
	if value.Metadata != nil {
		doc.To = value.Metadata.PhoneNumberID
	} else if msg.To != "" {
		doc.To = msg.To
	}

	// Outbound records start at sent with a seeded history entry;
	// inbound records start at none with an empty history.
	if doc.Direction == models.DirectionOutbound {
		doc.Status = models.StatusSent
		doc.StatusHistory = append(doc.StatusHistory, models.StatusEntry{Status: models.StatusSent, At: now})
	}

	return doc
}

func (n *Normalizer) upsertMessage(ctx context.Context, value *models.ChangeValue, msg *models.WebhookMessage, report *Report) {
	doc := n.buildMessage(value, msg)

	inserted, err := n.store.UpsertInsertOnly(ctx, doc)
	if err != nil {
		n.logger.WithError(err).WithFields(logrus.Fields{
			LogFieldMessageID: msg.ID,
			LogFieldWaID:      doc.WaID,
		}).Error("Failed to upsert message")
		return
	}

	if inserted {
		report.MessagesInserted++
		n.logger.WithFields(logrus.Fields{
			LogFieldMessageID: msg.ID,
			LogFieldWaID:      doc.WaID,
			LogFieldDirection: string(doc.Direction),
			LogFieldKind:      string(doc.Kind),
		}).Debug("Message stored")
	} else {
		report.MessagesDuplicate++
		n.logger.WithField(LogFieldMessageID, msg.ID).Debug("Message already stored, skipping")
	}
}

// applyStatus resolves the target message by id or meta_msg_id and records
// the transition. Updates without any id are skipped: applying them to the
// whole conversation by recipient_id alone could rewrite the status of
// every message in it.
func (n *Normalizer) applyStatus(ctx context.Context, st *models.WebhookStatus, report *Report) {
	externalID := st.ID
	if externalID == "" {
		externalID = st.MetaMsgID
	}
	if externalID == "" {
		n.logger.WithField(LogFieldWaID, st.RecipientID).Warn("Status update carries no message id, skipping")
		report.StatusesSkipped++
		return
	}

	status := models.MessageStatus(st.Status)
	if st.Status == "" || !status.IsValid() {
		status = models.StatusUnknown
	}

	at := st.Timestamp.Time()
	if at.IsZero() {
		at = n.now().UTC()
	}

	matched, err := n.store.ApplyStatus(ctx, externalID, status, at)
	if err != nil {
		n.logger.WithError(err).WithField(LogFieldMessageID, externalID).Error("Failed to apply status update")
		report.StatusesSkipped++
		return
	}
	if matched == 0 {
		n.logger.WithFields(logrus.Fields{
			LogFieldMessageID: externalID,
			LogFieldStatus:    string(status),
		}).Warn("No message found for status update")
		report.StatusesSkipped++
		return
	}

	report.StatusesApplied++
	n.logger.WithFields(logrus.Fields{
		LogFieldMessageID: externalID,
		LogFieldStatus:    string(status),
		"matched":         matched,
	}).Debug("Status update applied")
}
