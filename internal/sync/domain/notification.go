package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Notification is the JSON document Gmail publishes on mailbox change.
// historyId arrives as a number but is accepted as a string too.
type Notification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// ParseNotification decodes a push payload. Malformed input yields an empty
// history id rather than an error; callers treat that as a no-op.
func ParseNotification(data []byte) Notification {
	var n Notification
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return Notification{}
	}
	n.HistoryID = json.Number(strings.TrimSpace(n.HistoryID.String()))
	return n
}
