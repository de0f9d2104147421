package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	syncdomain "locum-backend/internal/sync/domain"
	"locum-backend/pkg/chatexport"
)

const noContent = "(no content)"

// FromMailMessage normalizes a fetched mailbox message.
func FromMailMessage(m *syncdomain.Message) CanonicalMessage {
	return CanonicalMessage{
		Source:     SourceGmail,
		ExternalID: m.ID,
		ReceivedAt: m.InternalDate,
		Body:       m.Body(),
		Meta: ContentMeta{
			Subject: m.Subject,
			From:    m.From,
			Date:    m.Date,
		},
	}
}

// FromChatMessage normalizes a parsed chat export line. The external id is
// derived from timestamp, author and body so re-imports collapse.
func FromChatMessage(m chatexport.Message) CanonicalMessage {
	var ts, author string
	if m.Timestamp != nil {
		ts = m.Timestamp.Format(time.RFC3339)
	}
	if m.Author != nil {
		author = *m.Author
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", ts, author, m.Body)))

	return CanonicalMessage{
		Source:     SourceWhatsApp,
		ExternalID: hex.EncodeToString(sum[:]),
		ReceivedAt: m.Timestamp,
		Body:       m.Body,
		Meta: ContentMeta{
			Date:     ts,
			Author:   m.Author,
			IsSystem: m.Author == nil,
		},
	}
}

// ContentHash digests subject-or-author, sender, date and body, newline
// joined with empty fields omitted.
func ContentHash(msg CanonicalMessage) string {
	headline := msg.Meta.Subject
	if headline == "" && msg.Meta.Author != nil {
		headline = *msg.Meta.Author
	}
	var fields []string
	for _, f := range []string{headline, msg.Meta.From, msg.Meta.Date, msg.Body} {
		if f != "" {
			fields = append(fields, f)
		}
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, "\n")))
	return hex.EncodeToString(sum[:])
}

// ContentText is the body, else the subject, else a placeholder.
func ContentText(msg CanonicalMessage) string {
	if strings.TrimSpace(msg.Body) != "" {
		return msg.Body
	}
	if msg.Meta.Subject != "" {
		return msg.Meta.Subject
	}
	return noContent
}
