package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the service
const (
	EventSubmissionCompleted = "submission.completed"
	EventAssessmentActivated = "assessment.activated"
	EventShareTokenRevoked   = "assessment.share_token_revoked"
)

// Event is the envelope for every message the service publishes
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent builds an event envelope with service identity filled in
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    "assessment-service",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// SubmissionCompletedEvent is emitted after a submission commits
type SubmissionCompletedEvent struct {
	SubmissionID  uint      `json:"submission_id"`
	AssessmentID  uint      `json:"assessment_id"`
	ClientID      uint      `json:"client_id"`
	ResponseCount int       `json:"response_count"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AssessmentActivatedEvent is emitted when an assessment is toggled
type AssessmentActivatedEvent struct {
	AssessmentID uint   `json:"assessment_id"`
	IsActive     bool   `json:"is_active"`
	ChangedBy    string `json:"changed_by"`
}

// ShareTokenRevokedEvent is emitted when a share link stops working
type ShareTokenRevokedEvent struct {
	AssessmentID uint   `json:"assessment_id"`
	RevokedBy    string `json:"revoked_by"`
}
