package models

import (
	"time"

	"gorm.io/datatypes"
)

type SubmissionStatus string

const (
	SubmissionCompleted SubmissionStatus = "completed"
)

// Submission is a completed pass over an assessment by a client. A submission
// always owns at least one response; the pair is written in a single
// transaction so a response-less submission is never observable. Submissions
// are immutable after creation except for therapist annotations.
type Submission struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	AssessmentID uint `json:"assessment_id" gorm:"not null;index"`
	ClientID     uint `json:"client_id" gorm:"not null;index"`

	Status SubmissionStatus `json:"status" gorm:"not null;default:completed;size:20"`

	// SessionID links the submission to a therapy session when it was filled
	// in during one. Owned by the practice-management side; optional here.
	SessionID *uint `json:"session_id,omitempty" gorm:"index"`

	CompletionTimeSeconds *int `json:"completion_time_seconds,omitempty"`

	SubmittedAt time.Time `json:"submitted_at" gorm:"not null"`

	// Post-hoc annotations by the owning therapist.
	TherapistNotes *string  `json:"therapist_notes,omitempty" gorm:"type:text"`
	Score          *float64 `json:"score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assessment *Assessment `json:"-" gorm:"foreignKey:AssessmentID"`
	Client     *Client     `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Responses  []Response  `json:"responses,omitempty" gorm:"foreignKey:SubmissionID"`
}

func (Submission) TableName() string {
	return "submissions"
}

// Response is one answer within a submission. Value is stored as JSON and is
// a string, an array of strings, a number, or null depending on the question
// type it answers.
type Response struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	SubmissionID uint `json:"submission_id" gorm:"not null;index"`
	QuestionID   uint `json:"question_id" gorm:"not null;index"`

	// AssessmentQuestionID records which link the answer was given through,
	// so per-assessment overrides can be reconstructed later even if the
	// base question text changes.
	AssessmentQuestionID uint `json:"assessment_question_id" gorm:"not null;index"`

	Value datatypes.JSON `json:"value" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
}

func (Response) TableName() string {
	return "responses"
}
