package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	YesNo          QuestionType = "yes_no"
	FreeText       QuestionType = "text"
	Rating         QuestionType = "rating"
)

// Question is the reusable authoring unit. Options holds the type-specific
// payload as JSONB; yes_no and text questions carry no payload.
type Question struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	Type     QuestionType   `json:"type" gorm:"not null;size:30;index"`
	Text     string         `json:"text" gorm:"not null;size:2000"`
	Options  datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	HelpText *string        `json:"help_text,omitempty" gorm:"size:1000"`

	// Library questions are offered for reuse across assessments.
	IsLibraryItem bool `json:"is_library_item" gorm:"default:false;index"`

	CreatedBy string `json:"created_by" gorm:"not null;size:255;index"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Links []AssessmentQuestion `json:"-" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== OPTION PAYLOADS =====

// MultipleChoiceOptions is the payload for multiple_choice questions.
type MultipleChoiceOptions struct {
	Choices     []string `json:"choices" validate:"required,min=2,dive,required"`
	MultiSelect bool     `json:"multi_select"`
}

// RatingOptions is the payload for rating questions. Min must be strictly
// less than Max.
type RatingOptions struct {
	Min      int     `json:"min"`
	Max      int     `json:"max"`
	MinLabel *string `json:"min_label,omitempty"`
	MaxLabel *string `json:"max_label,omitempty"`
}

// AssessmentQuestion links a question into an assessment. Order values for a
// given assessment always form a contiguous sequence 1..N.
type AssessmentQuestion struct {
	ID           uint `json:"id" gorm:"primaryKey"`
	AssessmentID uint `json:"assessment_id" gorm:"not null;uniqueIndex:idx_assessment_question"`
	QuestionID   uint `json:"question_id" gorm:"not null;uniqueIndex:idx_assessment_question"`

	Order      int  `json:"order" gorm:"column:order;not null"`
	IsRequired bool `json:"is_required" gorm:"default:false"`
	Points     *int `json:"points,omitempty"`

	// Per-assessment overrides. A nil field means "use the base question".
	OverrideText     *string        `json:"override_text,omitempty" gorm:"size:2000"`
	OverrideOptions  datatypes.JSON `json:"override_options,omitempty" gorm:"type:jsonb"`
	OverrideHelpText *string        `json:"override_help_text,omitempty" gorm:"size:1000"`

	// Opaque conditional-display rules, stored and echoed as-is.
	ConditionalLogic datatypes.JSON `json:"conditional_logic,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Assessment *Assessment `json:"-" gorm:"foreignKey:AssessmentID"`
	Question   *Question   `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}

// EffectiveQuestion is the merged per-assessment view of a linked question:
// override fields win over the base question field by field.
type EffectiveQuestion struct {
	LinkID           uint           `json:"link_id"`
	QuestionID       uint           `json:"question_id"`
	Order            int            `json:"order"`
	Type             QuestionType   `json:"type"`
	Text             string         `json:"text"`
	Options          datatypes.JSON `json:"options,omitempty"`
	HelpText         *string        `json:"help_text,omitempty"`
	IsRequired       bool           `json:"is_required"`
	Points           *int           `json:"points,omitempty"`
	ConditionalLogic datatypes.JSON `json:"conditional_logic,omitempty"`
}

// Effective merges the link's overrides onto its base question. The receiver
// must have its Question relation loaded; the merge itself touches no storage.
func (aq *AssessmentQuestion) Effective() *EffectiveQuestion {
	eff := &EffectiveQuestion{
		LinkID:           aq.ID,
		QuestionID:       aq.QuestionID,
		Order:            aq.Order,
		IsRequired:       aq.IsRequired,
		Points:           aq.Points,
		ConditionalLogic: aq.ConditionalLogic,
	}

	if aq.Question != nil {
		eff.Type = aq.Question.Type
		eff.Text = aq.Question.Text
		eff.Options = aq.Question.Options
		eff.HelpText = aq.Question.HelpText
	}

	if aq.OverrideText != nil {
		eff.Text = *aq.OverrideText
	}
	if len(aq.OverrideOptions) > 0 {
		eff.Options = aq.OverrideOptions
	}
	if aq.OverrideHelpText != nil {
		eff.HelpText = aq.OverrideHelpText
	}

	return eff
}
