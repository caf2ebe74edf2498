package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/telekom/leadform/pkg/lead"
)

// EventType represents the type of audit event.
type EventType string

const (
	EventLeadCaptured       EventType = "lead.captured"
	EventLeadDuplicate      EventType = "lead.duplicate"
	EventLeadRejected       EventType = "lead.rejected"
	EventLeadInvalid        EventType = "lead.invalid"
	EventSubmissionDropped  EventType = "submission.dropped"
	EventConfirmationSent   EventType = "confirmation.sent"
	EventConfirmationFailed EventType = "confirmation.failed"
)

// Event is one audit record.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId,omitempty"`
	// Email is always masked.
	Email    string `json:"email,omitempty"`
	Industry string `json:"industry,omitempty"`
	LeadID   string `json:"leadId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// NewEvent builds an event with a fresh id and timestamp. The email is masked.
func NewEvent(t EventType, sessionID, email string) *Event {
	e := &Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
	if email != "" {
		e.Email = lead.MaskEmail(email)
	}
	return e
}

// ForLead fills lead fields.
func (e *Event) ForLead(l lead.Lead) *Event {
	e.LeadID = l.ID
	e.Industry = l.Industry
	if l.Email != "" {
		e.Email = lead.MaskEmail(l.Email)
	}
	return e
}

// WithError records err's message.
func (e *Event) WithError(err error) *Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
