package repositories

import (
	"context"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
)

// QuestionRepository interface for question-specific operations
type QuestionRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	// Query operations
	List(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)
	GetByCreator(ctx context.Context, creatorID string, filters QuestionFilters) ([]*models.Question, int64, error)
	// GetLibrary lists reusable library questions across all creators.
	GetLibrary(ctx context.Context, filters QuestionFilters) ([]*models.Question, int64, error)
	Search(ctx context.Context, query string, filters QuestionFilters) ([]*models.Question, int64, error)

	// Validation and checks
	IsUsedInAssessments(ctx context.Context, id uint) (bool, error)
	GetUsageCount(ctx context.Context, id uint) (int, error)

	// Statistics
	GetUsageStats(ctx context.Context, creatorID string) (*QuestionUsageStats, error)
}
