package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

type Assessment struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Title        string  `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Description  *string `json:"description" gorm:"type:text" validate:"omitempty,max=2000"`
	Instructions *string `json:"instructions" gorm:"type:text" validate:"omitempty,max=5000"`
	Category     *string `json:"category,omitempty" gorm:"size:100;index" validate:"omitempty,max=100"`

	// IsActive gates every public interaction. It is re-checked on each
	// public read and never cached.
	IsActive bool `json:"is_active" gorm:"default:false;index"`

	AllowMultipleSubmissions bool `json:"allow_multiple_submissions" gorm:"default:false"`
	ShowScoresToClient       bool `json:"show_scores_to_client" gorm:"default:false"`

	// ShareToken is the only public handle for this assessment. Nil means no
	// public link exists. Regenerating replaces the value, which invalidates
	// every previously distributed link.
	ShareToken *string `json:"share_token,omitempty" gorm:"uniqueIndex;size:64"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions   []AssessmentQuestion `json:"questions,omitempty" gorm:"foreignKey:AssessmentID"`
	Submissions []Submission         `json:"-" gorm:"foreignKey:AssessmentID"`
	Creator     User                 `json:"-" gorm:"foreignKey:CreatedBy"`

	// Computed fields (not stored)
	QuestionsCount  int `json:"questions_count" gorm:"-"`
	SubmissionCount int `json:"submission_count" gorm:"-"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// PublicAssessmentView is the sanitized projection served to anonymous
// clients through a share link. It never exposes the owner, library flags,
// or internal link metadata; point values appear only when the assessment
// opts in via ShowScoresToClient.
type PublicAssessmentView struct {
	Title        string           `json:"title"`
	Description  *string          `json:"description,omitempty"`
	Instructions *string          `json:"instructions,omitempty"`
	Questions    []PublicQuestion `json:"questions"`
}

type PublicQuestion struct {
	LinkID           uint           `json:"id"`
	Order            int            `json:"order"`
	Type             QuestionType   `json:"type"`
	Text             string         `json:"text"`
	Options          map[string]any `json:"options,omitempty"`
	HelpText         *string        `json:"help_text,omitempty"`
	IsRequired       bool           `json:"is_required"`
	Points           *int           `json:"points,omitempty"`
	ConditionalLogic map[string]any `json:"conditional_logic,omitempty"`
}

// PublicView projects the assessment into its anonymous-facing shape. The
// receiver must have Questions and their base Question relations loaded in
// display order; the projection itself touches no storage.
func (a *Assessment) PublicView() *PublicAssessmentView {
	view := &PublicAssessmentView{
		Title:        a.Title,
		Description:  a.Description,
		Instructions: a.Instructions,
		Questions:    make([]PublicQuestion, len(a.Questions)),
	}

	for i := range a.Questions {
		eff := a.Questions[i].Effective()

		pq := PublicQuestion{
			LinkID:           eff.LinkID,
			Order:            eff.Order,
			Type:             eff.Type,
			Text:             eff.Text,
			HelpText:         eff.HelpText,
			IsRequired:       eff.IsRequired,
			Options:          decodeJSONMap(eff.Options),
			ConditionalLogic: decodeJSONMap(eff.ConditionalLogic),
		}
		if a.ShowScoresToClient {
			pq.Points = eff.Points
		}

		view.Questions[i] = pq
	}

	return view
}

func decodeJSONMap(raw []byte) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
