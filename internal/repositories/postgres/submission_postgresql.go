package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/TheraFlow-Health/assessment-service/internal/cache"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewSubmissionPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cm,
	}
}

// Create persists the submission and its responses together. gorm writes the
// associated Responses in the same statement batch; when the repository is
// bound to a transaction the whole graph commits or rolls back as one.
func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	if len(submission.Responses) == 0 {
		return fmt.Errorf("submission must carry at least one response")
	}

	if err := s.db.WithContext(ctx).Create(submission).Error; err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Submission, fmt.Sprintf("assessment:%d:*", submission.AssessmentID))

	return nil
}

// GetByID retrieves a submission without its responses
func (s *SubmissionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("submission", id)
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &submission, nil
}

// GetByIDWithResponses retrieves a submission with responses and client
func (s *SubmissionPostgreSQL) GetByIDWithResponses(ctx context.Context, id uint) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.WithContext(ctx).
		Preload("Responses").
		Preload("Client").
		First(&submission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("submission", id)
		}
		return nil, fmt.Errorf("failed to get submission with responses: %w", err)
	}
	return &submission, nil
}

// Update persists therapist annotations. Responses are immutable and never
// touched here.
func (s *SubmissionPostgreSQL) Update(ctx context.Context, submission *models.Submission) error {
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", submission.ID).
		Updates(map[string]interface{}{
			"therapist_notes": submission.TherapistNotes,
			"score":           submission.Score,
			"updated_at":      submission.UpdatedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, s.cacheManager.Submission, fmt.Sprintf("assessment:%d:*", submission.AssessmentID))

	return nil
}

// ===== QUERY OPERATIONS =====

// ListByAssessment retrieves submissions for an assessment
func (s *SubmissionPostgreSQL) ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", assessmentID)

	query = s.helpers.ApplySubmissionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var submissions []*models.Submission
	if err := query.Preload("Client").Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions: %w", err)
	}

	return submissions, total, nil
}

// ListByClient retrieves submissions made by a client
func (s *SubmissionPostgreSQL) ListByClient(ctx context.Context, clientID uint, filters repositories.SubmissionFilters) ([]*models.Submission, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("client_id = ?", clientID)

	query = s.helpers.ApplySubmissionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count submissions: %w", err)
	}

	query = s.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var submissions []*models.Submission
	if err := query.Find(&submissions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list submissions by client: %w", err)
	}

	return submissions, total, nil
}

// ===== VALIDATION AND CHECKS =====

// ExistsForClient checks whether the client has already submitted to the
// assessment. Deliberately uncached: the duplicate policy needs fresh reads.
func (s *SubmissionPostgreSQL) ExistsForClient(ctx context.Context, assessmentID, clientID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ? AND client_id = ?", assessmentID, clientID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check submission existence: %w", err)
	}
	return count > 0, nil
}

// CountByAssessment counts submissions for an assessment
func (s *SubmissionPostgreSQL) CountByAssessment(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// CountByClient counts submissions made by a client
func (s *SubmissionPostgreSQL) CountByClient(ctx context.Context, clientID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("client_id = ?", clientID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}
