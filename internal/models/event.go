package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// EventType is the numeric webhook type Backlog sends in the "type" field.
type EventType int

// EventIssueCreated is the only event type that triggers a reply.
const EventIssueCreated EventType = 1

// WebhookEvent is the inbound webhook payload. Content is kept raw so it can be
// rendered into the prompt exactly as Backlog sent it.
// Type is raw as well: a string or fractional type is a foreign payload to be
// ignored, not a malformed request.
type WebhookEvent struct {
	Type    json.RawMessage `json:"type"`
	Content json.RawMessage `json:"content"`
}

// IsIssueCreated reports whether the event carries type 1.
func (e *WebhookEvent) IsIssueCreated() bool {
	raw := bytes.TrimSpace(e.Type)
	if len(raw) == 0 || raw[0] == '"' {
		return false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return false
	}
	f, err := n.Float64()
	return err == nil && f == float64(EventIssueCreated)
}

// IssueKey returns content.id as a string. Backlog sends a numeric id while
// other producers send the issue key; both are accepted by the comment API.
// Missing, null, empty, zero, or non-scalar ids report false.
func (e *WebhookEvent) IssueKey() (string, bool) {
	content := bytes.TrimSpace(e.Content)
	if len(content) == 0 || content[0] != '{' {
		return "", false
	}

	var fields struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(content, &fields); err != nil {
		return "", false
	}

	raw := bytes.TrimSpace(fields.ID)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		if f, err := n.Float64(); err != nil || f == 0 {
			return "", false
		}
		return n.String(), true
	default:
		return "", false
	}
}

// Credentials is the expected Basic auth pair.
type Credentials struct {
	Username string
	Password string
}
