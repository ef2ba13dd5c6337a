package cloudapi

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AzielCF/az-crm/crm/domain"
	pkgError "github.com/AzielCF/az-crm/pkg/error"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/sirupsen/logrus"
)

// WebhookPayload is the body Meta posts to the webhook.
type WebhookPayload struct {
	Object string         `json:"object"`
	Entry  []WebhookEntry `json:"entry"`
}

type WebhookEntry struct {
	ID      string          `json:"id"`
	Changes []WebhookChange `json:"changes"`
}

type WebhookChange struct {
	Field string       `json:"field"`
	Value WebhookValue `json:"value"`
}

type WebhookValue struct {
	MessagingProduct string `json:"messaging_product"`
	Metadata         struct {
		DisplayPhoneNumber string `json:"display_phone_number"`
		PhoneNumberID      string `json:"phone_number_id"`
	} `json:"metadata"`
	Contacts []WebhookContact `json:"contacts,omitempty"`
	Messages []WebhookMessage `json:"messages,omitempty"`
	Statuses []WebhookStatus  `json:"statuses,omitempty"`
}

type WebhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
	WaID string `json:"wa_id"`
}

type WebhookMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	Voice    bool   `json:"voice,omitempty"`
}

type WebhookMessage struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *WebhookMedia `json:"image,omitempty"`
	Document *WebhookMedia `json:"document,omitempty"`
	Audio    *WebhookMedia `json:"audio,omitempty"`
	Video    *WebhookMedia `json:"video,omitempty"`
}

type WebhookStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
}

// Normalizer turns webhook bodies into domain inbound events.
type Normalizer struct {
	now func() time.Time
}

var _ domain.InboundNormalizer = (*Normalizer)(nil)

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NormalizeInbound decodes raw and flattens every messages change into events.
func (n *Normalizer) NormalizeInbound(_ context.Context, raw []byte) ([]domain.InboundEvent, error) {
	var payload WebhookPayload
	if err := decodeJSON(raw, &payload); err != nil {
		return nil, pkgError.ValidationError(fmt.Sprintf("invalid webhook payload: %v", err))
	}
	return n.Normalize(payload), nil
}

// Normalize flattens an already decoded payload.
func (n *Normalizer) Normalize(payload WebhookPayload) []domain.InboundEvent {
	receivedAt := n.now().UTC()
	var events []domain.InboundEvent

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			for _, m := range change.Value.Messages {
				msg := normalizeMessage(m, receivedAt)
				msg.DisplayName = displayNameFor(change.Value.Contacts, m.From)
				events = append(events, domain.InboundEvent{Message: &msg})
			}

			for _, s := range change.Value.Statuses {
				status, ok := mapStatus(s.Status)
				if !ok {
					logrus.Debugf("[WEBHOOK] Ignoring unknown status %q for %s", s.Status, s.ID)
					continue
				}
				events = append(events, domain.InboundEvent{Status: &domain.StatusUpdate{
					ExternalID: s.ID,
					Status:     status,
					Timestamp:  parseTimestamp(s.Timestamp, receivedAt),
					Recipient:  s.RecipientID,
				}})
			}
		}
	}
	return events
}

func normalizeMessage(m WebhookMessage, receivedAt time.Time) domain.InboundMessage {
	out := domain.InboundMessage{
		From:       utils.DigitsOnly(m.From),
		ExternalID: m.ID,
		Timestamp:  parseTimestamp(m.Timestamp, receivedAt),
	}

	switch m.Type {
	case "text":
		out.Type = domain.MessageText
		if m.Text != nil {
			out.Content = m.Text.Body
		}
	case "image":
		out.Type = domain.MessageImage
		out.Content = "Imagem enviada"
		if m.Image != nil {
			out.MediaRef = m.Image.ID
			if m.Image.Caption != "" {
				out.Content = m.Image.Caption
			}
		}
	case "document":
		out.Type = domain.MessageDocument
		out.Content = "Documento enviado"
		if m.Document != nil {
			out.MediaRef = m.Document.ID
			if m.Document.Filename != "" {
				out.Content = m.Document.Filename
			}
		}
	case "audio":
		out.Type = domain.MessageAudio
		out.Content = "Áudio enviado"
		if m.Audio != nil {
			out.MediaRef = m.Audio.ID
		}
	case "video":
		out.Type = domain.MessageVideo
		out.Content = "Vídeo enviado"
		if m.Video != nil {
			out.MediaRef = m.Video.ID
			if m.Video.Caption != "" {
				out.Content = m.Video.Caption
			}
		}
	default:
		out.Type = domain.MessageText
		out.Content = "Mensagem do tipo: " + m.Type
	}
	return out
}

func displayNameFor(contacts []WebhookContact, from string) string {
	for _, c := range contacts {
		if c.WaID == from {
			return strings.TrimSpace(c.Profile.Name)
		}
	}
	return ""
}

func mapStatus(s string) (domain.MessageStatus, bool) {
	switch strings.ToLower(s) {
	case "sent":
		return domain.MessageSent, true
	case "delivered":
		return domain.MessageDelivered, true
	case "read":
		return domain.MessageRead, true
	case "failed":
		return domain.MessageFailed, true
	}
	return "", false
}

func parseTimestamp(s string, fallback time.Time) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Unix(secs, 0).UTC()
}

// VerifyWebhook answers Meta's subscription handshake. It returns the
// challenge only for mode "subscribe" with a matching token.
func VerifyWebhook(mode, token, challenge, expected string) (string, error) {
	if mode != "subscribe" || expected == "" {
		return "", pkgError.AuthError("webhook verification failed")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return "", pkgError.AuthError("webhook verification failed")
	}
	return challenge, nil
}

func decodeJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}
