package event

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Envelope is the top-level webhook body posted by the platform.
// Every level is optional; deliveries that are not message notifications
// (status updates, account changes) simply leave Messages empty.
type Envelope struct {
	Object string         `json:"object"`
	Entry  lenient[Entry] `json:"entry"`
}

type Entry struct {
	ID      string          `json:"id"`
	Changes lenient[Change] `json:"changes"`
}

type Change struct {
	Field string       `json:"field"`
	Value *ChangeValue `json:"value"`
}

type ChangeValue struct {
	MessagingProduct string                   `json:"messaging_product"`
	Metadata         *Metadata                `json:"metadata,omitempty"`
	Contacts         lenient[Contact]         `json:"contacts,omitempty"`
	Messages         lenient[json.RawMessage] `json:"messages,omitempty"`
	Statuses         lenient[json.RawMessage] `json:"statuses,omitempty"`
}

// lenient is a JSON array that tolerates the wrong shape: a non-array value
// decodes as empty and elements that do not decode are dropped.
type lenient[T any] []T

func (l *lenient[T]) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		*l = nil
		return nil
	}
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WAID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// message is the subset of a message record the relay reads. The full
// record is kept verbatim in InboundEvent.Raw.
type message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"` // unix seconds, as a string
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
}

// Extract walks every entry, change and message record in delivery order and
// returns one InboundEvent per message that carries a sender. It returns nil
// when the envelope has no object tag or any nesting level is absent.
func Extract(env *Envelope) []InboundEvent {
	if env == nil || env.Object == "" {
		return nil
	}
	var out []InboundEvent
	for _, entry := range env.Entry {
		for _, ch := range entry.Changes {
			if ch.Value == nil {
				continue
			}
			names := contactNames(ch.Value.Contacts)
			for _, raw := range ch.Value.Messages {
				var m message
				if err := json.Unmarshal(raw, &m); err != nil {
					continue
				}
				from := strings.TrimSpace(m.From)
				if from == "" {
					continue
				}
				ev := InboundEvent{
					From:        from,
					Type:        parseMessageType(m.Type),
					MessageID:   m.ID,
					ContactName: names[from],
					Timestamp:   parseUnix(m.Timestamp),
					Raw:         raw,
				}
				if m.Text != nil {
					ev.Text = m.Text.Body
				}
				out = append(out, ev)
			}
		}
	}
	return out
}

// HasStatuses reports whether the delivery carries message status updates.
func HasStatuses(env *Envelope) bool {
	if env == nil {
		return false
	}
	for _, entry := range env.Entry {
		for _, ch := range entry.Changes {
			if ch.Value != nil && len(ch.Value.Statuses) > 0 {
				return true
			}
		}
	}
	return false
}

func contactNames(contacts []Contact) map[string]string {
	names := make(map[string]string, len(contacts))
	for _, c := range contacts {
		if c.WAID != "" {
			names[c.WAID] = c.Profile.Name
		}
	}
	return names
}

func parseUnix(s string) time.Time {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
