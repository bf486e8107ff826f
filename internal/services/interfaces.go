package services

import (
	"context"
	"time"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

// ===== REQUEST/RESPONSE DTOs =====

// Request DTOs live in the validator package so validation tags and business
// rules stay next to each other.
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest
type CreateAssessmentRequest = validator.AssessmentCreateRequest
type UpdateAssessmentRequest = validator.AssessmentUpdateRequest
type LinkQuestionRequest = validator.LinkCreateRequest
type LinkNewQuestionRequest = validator.LinkNewQuestionRequest
type UpdateLinkRequest = validator.LinkUpdateRequest
type ReorderRequest = validator.ReorderRequest
type PublicSubmissionRequest = validator.PublicSubmissionRequest
type CreateSubmissionRequest = validator.SubmissionCreateRequest
type AnnotateSubmissionRequest = validator.SubmissionAnnotateRequest
type CreateClientRequest = validator.ClientCreateRequest

type QuestionResponse struct {
	*models.Question
	UsageCount int  `json:"usage_count"`
	CanEdit    bool `json:"can_edit"`
	CanDelete  bool `json:"can_delete"`
}

type QuestionListResponse struct {
	Questions []*QuestionResponse `json:"questions"`
	Total     int64               `json:"total"`
	Page      int                 `json:"page"`
	Size      int                 `json:"size"`
}

type AssessmentResponse struct {
	*models.Assessment
	EffectiveQuestions []*models.EffectiveQuestion `json:"effective_questions,omitempty"`
	CanEdit            bool                        `json:"can_edit"`
	CanDelete          bool                        `json:"can_delete"`
}

type AssessmentListResponse struct {
	Assessments []*AssessmentResponse `json:"assessments"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// ShareTokenResponse carries a freshly generated share token. The raw token
// is only returned here; listings expose just whether one exists.
type ShareTokenResponse struct {
	AssessmentID uint   `json:"assessment_id"`
	Token        string `json:"token"`
	SharePath    string `json:"share_path"`
}

type LinkResponse struct {
	*models.AssessmentQuestion
	Effective *models.EffectiveQuestion `json:"effective"`
}

type SubmissionResponse struct {
	*models.Submission
}

type SubmissionListResponse struct {
	Submissions []*SubmissionResponse `json:"submissions"`
	Total       int64                 `json:"total"`
	Page        int                   `json:"page"`
	Size        int                   `json:"size"`
}

// PublicSubmissionResponse is the acknowledgement returned to anonymous
// respondents. It deliberately exposes nothing beyond the receipt.
type PublicSubmissionResponse struct {
	SubmissionID uint      `json:"submission_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type ClientResponse struct {
	*models.Client
	SubmissionCount int64 `json:"submission_count"`
}

type ClientListResponse struct {
	Clients []*ClientResponse `json:"clients"`
	Total   int64             `json:"total"`
	Page    int               `json:"page"`
	Size    int               `json:"size"`
}

// ===== SERVICE INTERFACES =====

type QuestionService interface {
	Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error)
	Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error)
	// MarkLibrary flips whether the question is shared through the library.
	// Sharing is by reference; consumers link the question, never copy it.
	MarkLibrary(ctx context.Context, id uint, isLibrary bool, userID string) (*QuestionResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)
	GetLibrary(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)
	Search(ctx context.Context, query string, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error)

	CanAccess(ctx context.Context, questionID uint, userID string) (bool, error)
	CanEdit(ctx context.Context, questionID uint, userID string) (bool, error)
	CanDelete(ctx context.Context, questionID uint, userID string) (bool, error)
}

type AssessmentService interface {
	Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*AssessmentResponse, error)
	Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error)
	Delete(ctx context.Context, id uint, userID string) error

	List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error)
	Search(ctx context.Context, query string, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error)

	ToggleActive(ctx context.Context, id uint, isActive bool, userID string) (*AssessmentResponse, error)
	GenerateShareToken(ctx context.Context, id uint, userID string) (*ShareTokenResponse, error)
	RevokeShareToken(ctx context.Context, id uint, userID string) error

	GetStats(ctx context.Context, id uint, userID string) (*repositories.AssessmentStats, error)

	CanAccess(ctx context.Context, assessmentID uint, userID string) (bool, error)
	CanEdit(ctx context.Context, assessmentID uint, userID string) (bool, error)
	CanDelete(ctx context.Context, assessmentID uint, userID string) (bool, error)
}

type AssessmentQuestionService interface {
	Link(ctx context.Context, assessmentID uint, req *LinkQuestionRequest, userID string) (*LinkResponse, error)
	LinkNew(ctx context.Context, assessmentID uint, req *LinkNewQuestionRequest, userID string) (*LinkResponse, error)
	UpdateLink(ctx context.Context, linkID uint, req *UpdateLinkRequest, userID string) (*LinkResponse, error)
	// Unlink removes the link. When deleteQuestion is set and the base
	// question is not linked anywhere else, the question is deleted too.
	Unlink(ctx context.Context, linkID uint, deleteQuestion bool, userID string) error
	Reorder(ctx context.Context, assessmentID uint, req *ReorderRequest, userID string) error
	Duplicate(ctx context.Context, linkID uint, userID string) (*LinkResponse, error)
	EffectiveQuestions(ctx context.Context, assessmentID uint, userID string) ([]*models.EffectiveQuestion, error)
}

// PublicService serves unauthenticated share-link traffic. Inactive and
// unknown tokens are indistinguishable to callers.
type PublicService interface {
	Resolve(ctx context.Context, token string) (*models.PublicAssessmentView, error)
	Submit(ctx context.Context, token string, req *PublicSubmissionRequest) (*PublicSubmissionResponse, error)
}

type SubmissionService interface {
	Create(ctx context.Context, assessmentID uint, req *CreateSubmissionRequest, userID string) (*SubmissionResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*SubmissionResponse, error)
	ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
	ListByClient(ctx context.Context, clientID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error)
	Annotate(ctx context.Context, id uint, req *AnnotateSubmissionRequest, userID string) (*SubmissionResponse, error)
}

type ClientService interface {
	Create(ctx context.Context, req *CreateClientRequest, therapistID string) (*ClientResponse, error)
	GetByID(ctx context.Context, id uint, userID string) (*ClientResponse, error)
	List(ctx context.Context, filters repositories.ClientFilters, userID string) (*ClientListResponse, error)
}

// ExportService produces spreadsheet exports for therapist review
type ExportService interface {
	ExportSubmissions(ctx context.Context, assessmentID uint, userID string) ([]byte, string, error)
}

// ServiceManager wires all services and manages their lifecycle
type ServiceManager interface {
	Question() QuestionService
	Assessment() AssessmentService
	AssessmentQuestion() AssessmentQuestionService
	Public() PublicService
	Submission() SubmissionService
	Client() ClientService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
