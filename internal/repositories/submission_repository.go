package repositories

import (
	"context"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
)

// SubmissionRepository interface for submission persistence
type SubmissionRepository interface {
	// Create persists the submission together with its responses. The caller
	// wraps it in a transaction when other writes must commit with it.
	Create(ctx context.Context, submission *models.Submission) error
	GetByID(ctx context.Context, id uint) (*models.Submission, error)
	GetByIDWithResponses(ctx context.Context, id uint) (*models.Submission, error)
	Update(ctx context.Context, submission *models.Submission) error

	// Query operations
	ListByAssessment(ctx context.Context, assessmentID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)
	ListByClient(ctx context.Context, clientID uint, filters SubmissionFilters) ([]*models.Submission, int64, error)

	// Validation and checks
	ExistsForClient(ctx context.Context, assessmentID, clientID uint) (bool, error)
	CountByAssessment(ctx context.Context, assessmentID uint) (int64, error)
	CountByClient(ctx context.Context, clientID uint) (int64, error)
}

// ClientRepository interface for the minimal client records this service owns
type ClientRepository interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id uint) (*models.Client, error)
	Update(ctx context.Context, client *models.Client) error

	// GetByEmail matches a client by email within one therapist's practice.
	GetByEmail(ctx context.Context, therapistID, email string) (*models.Client, error)
	List(ctx context.Context, therapistID string, filters ClientFilters) ([]*models.Client, int64, error)

	ExistsByCode(ctx context.Context, code string) (bool, error)
}
