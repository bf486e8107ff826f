package repositories

import (
	"time"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type AssessmentFilters struct {
	IsActive  *bool      `json:"is_active"`
	CreatedBy *string    `json:"created_by"`
	Category  *string    `json:"category"`
	HasToken  *bool      `json:"has_token"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "title"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type QuestionFilters struct {
	Type          *models.QuestionType `json:"type"`
	CreatedBy     *string              `json:"created_by"`
	IsLibraryItem *bool                `json:"is_library_item"`
	Limit         int                  `json:"limit"`
	Offset        int                  `json:"offset"`
	SortBy        string               `json:"sort_by"`
	SortOrder     string               `json:"sort_order"`
}

type SubmissionFilters struct {
	ClientID  *uint      `json:"client_id"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

type ClientFilters struct {
	Status    *models.ClientStatus `json:"status"`
	Query     string               `json:"query"` // name or email
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"`
	SortOrder string               `json:"sort_order"`
}

// ===== SHARED HELPER STRUCTS =====

// LinkOrder pairs a link row with its target position when reordering.
type LinkOrder struct {
	LinkID uint `json:"link_id"`
	Order  int  `json:"order"`
}

// ===== SHARED STATISTICS STRUCTS =====

type AssessmentStats struct {
	QuestionCount    int        `json:"question_count"`
	SubmissionCount  int        `json:"submission_count"`
	UniqueClients    int        `json:"unique_clients"`
	LastSubmissionAt *time.Time `json:"last_submission_at"`
}

type CreatorStats struct {
	TotalAssessments  int `json:"total_assessments"`
	ActiveAssessments int `json:"active_assessments"`
	SharedAssessments int `json:"shared_assessments"`
	TotalQuestions    int `json:"total_questions"`
	LibraryQuestions  int `json:"library_questions"`
	TotalSubmissions  int `json:"total_submissions"`
}

type QuestionUsageStats struct {
	TotalQuestions  int                         `json:"total_questions"`
	QuestionsByType map[models.QuestionType]int `json:"questions_by_type"`
	LibraryCount    int                         `json:"library_count"`
}
