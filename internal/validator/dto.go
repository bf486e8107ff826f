package validator

// QuestionCreateRequest represents the request structure for creating questions
type QuestionCreateRequest struct {
	Type          string      `json:"type" validate:"required,question_type"`
	Text          string      `json:"text" validate:"required,question_text"`
	Options       interface{} `json:"options"`
	HelpText      *string     `json:"help_text" validate:"omitempty,max=1000"`
	IsLibraryItem bool        `json:"is_library_item"`
}

// QuestionUpdateRequest represents the request structure for updating questions
type QuestionUpdateRequest struct {
	Text          *string     `json:"text" validate:"omitempty,question_text"`
	Options       interface{} `json:"options"`
	HelpText      *string     `json:"help_text" validate:"omitempty,max=1000"`
	IsLibraryItem *bool       `json:"is_library_item"`
}

// AssessmentCreateRequest represents the request structure for creating assessments
type AssessmentCreateRequest struct {
	Title                    string              `json:"title" validate:"required,assessment_title"`
	Description              *string             `json:"description" validate:"omitempty,max=2000"`
	Instructions             *string             `json:"instructions" validate:"omitempty,max=5000"`
	Category                 *string             `json:"category" validate:"omitempty,max=100"`
	AllowMultipleSubmissions bool                `json:"allow_multiple_submissions"`
	ShowScoresToClient       bool                `json:"show_scores_to_client"`
	Questions                []LinkCreateRequest `json:"questions" validate:"omitempty,dive"`
}

// AssessmentUpdateRequest represents the request structure for updating assessments
type AssessmentUpdateRequest struct {
	Title                    *string `json:"title" validate:"omitempty,assessment_title"`
	Description              *string `json:"description" validate:"omitempty,max=2000"`
	Instructions             *string `json:"instructions" validate:"omitempty,max=5000"`
	Category                 *string `json:"category" validate:"omitempty,max=100"`
	AllowMultipleSubmissions *bool   `json:"allow_multiple_submissions"`
	ShowScoresToClient       *bool   `json:"show_scores_to_client"`
}

// LinkCreateRequest represents attaching an existing question to an assessment
type LinkCreateRequest struct {
	QuestionID       uint        `json:"question_id" validate:"required"`
	IsRequired       bool        `json:"is_required"`
	Points           *int        `json:"points" validate:"omitempty,min=0,max=1000"`
	OverrideText     *string     `json:"override_text" validate:"omitempty,question_text"`
	OverrideOptions  interface{} `json:"override_options"`
	OverrideHelpText *string     `json:"override_help_text" validate:"omitempty,max=1000"`
	ConditionalLogic interface{} `json:"conditional_logic"`
}

// LinkNewQuestionRequest creates a question and links it in one operation
type LinkNewQuestionRequest struct {
	Question QuestionCreateRequest `json:"question" validate:"required"`
	Link     LinkOptions           `json:"link"`
}

// LinkOptions carries the per-assessment settings for a new link
type LinkOptions struct {
	IsRequired       bool        `json:"is_required"`
	Points           *int        `json:"points" validate:"omitempty,min=0,max=1000"`
	ConditionalLogic interface{} `json:"conditional_logic"`
}

// LinkUpdateRequest represents updating a link's overrides and settings.
// Order is not updatable here; use the reorder endpoint.
type LinkUpdateRequest struct {
	IsRequired       *bool       `json:"is_required"`
	Points           *int        `json:"points" validate:"omitempty,min=0,max=1000"`
	OverrideText     *string     `json:"override_text" validate:"omitempty,question_text"`
	OverrideOptions  interface{} `json:"override_options"`
	OverrideHelpText *string     `json:"override_help_text" validate:"omitempty,max=1000"`
	ConditionalLogic interface{} `json:"conditional_logic"`
}

// ReorderRequest assigns an explicit position to every link in an assessment
type ReorderRequest struct {
	Orders []LinkOrderRequest `json:"orders" validate:"required,min=1,dive"`
}

// LinkOrderRequest is a single link position in a reorder request
type LinkOrderRequest struct {
	LinkID uint `json:"link_id" validate:"required"`
	Order  int  `json:"order" validate:"required,min=1"`
}

// PublicSubmissionRequest is the unauthenticated submission payload
type PublicSubmissionRequest struct {
	ClientName            string                  `json:"client_name" validate:"required,min=1,max=200"`
	ClientEmail           string                  `json:"client_email" validate:"required,email"`
	CompletionTimeSeconds *int                    `json:"completion_time_seconds" validate:"omitempty,min=0"`
	Responses             []SubmissionResponseDTO `json:"responses" validate:"required,min=1,dive"`
}

// SubmissionCreateRequest is the authenticated submission payload made on
// behalf of a known client.
type SubmissionCreateRequest struct {
	ClientID              uint                    `json:"client_id" validate:"required"`
	SessionID             *uint                   `json:"session_id"`
	CompletionTimeSeconds *int                    `json:"completion_time_seconds" validate:"omitempty,min=0"`
	Responses             []SubmissionResponseDTO `json:"responses" validate:"required,min=1,dive"`
}

// SubmissionResponseDTO is a single answer keyed by the base question
type SubmissionResponseDTO struct {
	QuestionID uint        `json:"question_id" validate:"required"`
	Value      interface{} `json:"value"`
}

// SubmissionAnnotateRequest carries therapist review fields
type SubmissionAnnotateRequest struct {
	TherapistNotes *string  `json:"therapist_notes" validate:"omitempty,max=5000"`
	Score          *float64 `json:"score" validate:"omitempty,min=0"`
}

// ClientCreateRequest registers a client in a therapist's practice
type ClientCreateRequest struct {
	FullName string `json:"full_name" validate:"required,min=1,max=200"`
	Email    string `json:"email" validate:"required,email"`
}
