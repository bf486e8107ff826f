package repositories

import (
	"context"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
)

// AssessmentRepository interface for assessment-specific operations
type AssessmentRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, assessment *models.Assessment) error
	GetByID(ctx context.Context, id uint) (*models.Assessment, error)
	GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error)
	Update(ctx context.Context, assessment *models.Assessment) error
	// Delete removes the assessment and its question links. Base questions
	// are never touched.
	Delete(ctx context.Context, id uint) error

	// Query operations
	List(ctx context.Context, filters AssessmentFilters) ([]*models.Assessment, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters AssessmentFilters) ([]*models.Assessment, int64, error)
	Search(ctx context.Context, query string, filters AssessmentFilters) ([]*models.Assessment, int64, error)

	// Activation and sharing
	SetActive(ctx context.Context, id uint, active bool) error
	SetShareToken(ctx context.Context, id uint, token *string) error
	// GetByShareToken bypasses every cache: the public gate must observe the
	// current active flag.
	GetByShareToken(ctx context.Context, token string) (*models.Assessment, error)

	// Statistics
	GetStats(ctx context.Context, id uint) (*AssessmentStats, error)
	GetCreatorStats(ctx context.Context, creatorID string) (*CreatorStats, error)
}

// AssessmentQuestionRepository manages question links and the contiguous
// 1..N order invariant.
type AssessmentQuestionRepository interface {
	// Add inserts the link with its order assigned atomically in the store
	// (next position after the current maximum for the assessment).
	Add(ctx context.Context, link *models.AssessmentQuestion) error
	GetByID(ctx context.Context, id uint) (*models.AssessmentQuestion, error)
	GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentQuestion, error)
	Update(ctx context.Context, link *models.AssessmentQuestion) error
	Remove(ctx context.Context, id uint) error

	// Renumber rewrites orders for the assessment to 1..N preserving the
	// current relative order.
	Renumber(ctx context.Context, assessmentID uint) error

	// UpdateOrders applies an explicit order assignment. Callers are
	// responsible for running it inside a transaction.
	UpdateOrders(ctx context.Context, assessmentID uint, orders []LinkOrder) error

	// Validation and checks
	Exists(ctx context.Context, assessmentID, questionID uint) (bool, error)
	CountByAssessment(ctx context.Context, assessmentID uint) (int64, error)
	CountByQuestion(ctx context.Context, questionID uint) (int64, error)
}
