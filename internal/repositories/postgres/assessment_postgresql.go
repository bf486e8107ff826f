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

type AssessmentPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.AssessmentRepository {
	return &AssessmentPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cm,
	}
}

// Create creates a new assessment and invalidates list caches
func (a *AssessmentPostgreSQL) Create(ctx context.Context, assessment *models.Assessment) error {
	if err := a.db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, fmt.Sprintf("creator:%s:*", assessment.CreatedBy))
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, "list:*")

	return nil
}

// GetByID retrieves an assessment by ID with caching
func (a *AssessmentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Assessment, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cacheKey, &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		if err := a.db.WithContext(ctx).First(&dbAssessment, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("assessment", id)
			}
			return nil, fmt.Errorf("failed to get assessment: %w", err)
		}
		return &dbAssessment, nil
	})

	if err != nil {
		return nil, err
	}

	return &assessment, nil
}

// GetByIDWithQuestions retrieves an assessment with its ordered question links
func (a *AssessmentPostgreSQL) GetByIDWithQuestions(ctx context.Context, id uint) (*models.Assessment, error) {
	cacheKey := fmt.Sprintf("details:%d", id)
	var assessment models.Assessment

	err := a.cacheManager.Assessment.CacheOrExecute(ctx, cacheKey, &assessment, cache.AssessmentCacheConfig.TTL, func() (interface{}, error) {
		var dbAssessment models.Assessment
		err := a.db.WithContext(ctx).
			Preload("Questions", func(db *gorm.DB) *gorm.DB {
				return db.Order("assessment_questions.order ASC")
			}).
			Preload("Questions.Question").
			First(&dbAssessment, id).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("assessment", id)
			}
			return nil, fmt.Errorf("failed to get assessment details: %w", err)
		}

		dbAssessment.QuestionsCount = len(dbAssessment.Questions)
		return &dbAssessment, nil
	})

	return &assessment, err
}

// Update updates the mutable assessment fields and invalidates cache
func (a *AssessmentPostgreSQL) Update(ctx context.Context, assessment *models.Assessment) error {
	if err := a.db.WithContext(ctx).Model(&models.Assessment{}).Where("id = ?", assessment.ID).Updates(map[string]interface{}{
		"title":                      assessment.Title,
		"description":                assessment.Description,
		"instructions":               assessment.Instructions,
		"category":                   assessment.Category,
		"allow_multiple_submissions": assessment.AllowMultipleSubmissions,
		"show_scores_to_client":      assessment.ShowScoresToClient,
		"updated_at":                 assessment.UpdatedAt,
	}).Error; err != nil {
		return fmt.Errorf("failed to update assessment: %w", err)
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, assessment.ID, assessment.CreatedBy)

	return nil
}

// Delete removes the assessment and its question links in one transaction.
// Base questions stay untouched.
func (a *AssessmentPostgreSQL) Delete(ctx context.Context, id uint) error {
	var assessment models.Assessment
	if err := a.db.WithContext(ctx).Select("id, created_by").First(&assessment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.NewNotFoundError("assessment", id)
		}
		return fmt.Errorf("failed to get assessment before delete: %w", err)
	}

	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assessment_id = ?", id).Delete(&models.AssessmentQuestion{}).Error; err != nil {
			return fmt.Errorf("failed to delete assessment question links: %w", err)
		}
		if err := tx.Delete(&models.Assessment{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete assessment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	cache.InvalidateAssessmentCache(ctx, a.cacheManager, id, assessment.CreatedBy)
	cache.SafeDelete(ctx, a.cacheManager.Question, fmt.Sprintf("assessment:%d", id))

	return nil
}

// List retrieves assessments with filters and pagination
func (a *AssessmentPostgreSQL) List(ctx context.Context, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.Assessment{})

	query = a.helpers.ApplyAssessmentFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count assessments: %w", err)
	}

	query = a.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var assessments []*models.Assessment
	if err := query.Find(&assessments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list assessments: %w", err)
	}

	return assessments, total, nil
}

// GetByCreator retrieves assessments created by a specific user
func (a *AssessmentPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	filters.CreatedBy = &creatorID
	return a.List(ctx, filters)
}

// Search performs text search on assessments
func (a *AssessmentPostgreSQL) Search(ctx context.Context, query string, filters repositories.AssessmentFilters) ([]*models.Assessment, int64, error) {
	dbQuery := a.db.WithContext(ctx).Model(&models.Assessment{})

	if query != "" {
		searchQuery := fmt.Sprintf("%%%s%%", query)
		dbQuery = dbQuery.Where("title ILIKE ? OR description ILIKE ?", searchQuery, searchQuery)
	}

	dbQuery = a.helpers.ApplyAssessmentFilters(dbQuery, filters)

	var total int64
	if err := dbQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	dbQuery = a.helpers.ApplyPaginationAndSort(dbQuery, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var assessments []*models.Assessment
	if err := dbQuery.Find(&assessments).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search assessments: %w", err)
	}

	return assessments, total, nil
}

// ===== ACTIVATION AND SHARING =====

// SetActive flips the public gate for an assessment
func (a *AssessmentPostgreSQL) SetActive(ctx context.Context, id uint, active bool) error {
	result := a.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("failed to update assessment active flag: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NewNotFoundError("assessment", id)
	}

	cache.SafeDelete(ctx, a.cacheManager.Assessment,
		fmt.Sprintf("id:%d", id),
		fmt.Sprintf("details:%d", id))
	cache.SafeInvalidatePattern(ctx, a.cacheManager.Assessment, "list:*")

	return nil
}

// SetShareToken replaces the share token. Passing nil revokes it.
func (a *AssessmentPostgreSQL) SetShareToken(ctx context.Context, id uint, token *string) error {
	result := a.db.WithContext(ctx).
		Model(&models.Assessment{}).
		Where("id = ?", id).
		Update("share_token", token)
	if result.Error != nil {
		return fmt.Errorf("failed to update share token: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.NewNotFoundError("assessment", id)
	}

	cache.SafeDelete(ctx, a.cacheManager.Assessment,
		fmt.Sprintf("id:%d", id),
		fmt.Sprintf("details:%d", id))

	return nil
}

// GetByShareToken resolves an assessment by its public token. Deliberately
// uncached: the active flag must always be read fresh.
func (a *AssessmentPostgreSQL) GetByShareToken(ctx context.Context, token string) (*models.Assessment, error) {
	var assessment models.Assessment
	err := a.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("assessment_questions.order ASC")
		}).
		Preload("Questions.Question").
		Where("share_token = ?", token).
		First(&assessment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("assessment", token)
		}
		return nil, fmt.Errorf("failed to get assessment by share token: %w", err)
	}

	return &assessment, nil
}

// ===== STATISTICS =====

// GetStats retrieves submission statistics for an assessment
func (a *AssessmentPostgreSQL) GetStats(ctx context.Context, id uint) (*repositories.AssessmentStats, error) {
	stats := &repositories.AssessmentStats{}

	var questionCount int64
	if err := a.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("assessment_id = ?", id).
		Count(&questionCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count assessment questions: %w", err)
	}
	stats.QuestionCount = int(questionCount)

	var submissionCount int64
	if err := a.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", id).
		Count(&submissionCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	stats.SubmissionCount = int(submissionCount)

	var uniqueClients int64
	if err := a.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("assessment_id = ?", id).
		Distinct("client_id").
		Count(&uniqueClients).Error; err != nil {
		return nil, fmt.Errorf("failed to count unique clients: %w", err)
	}
	stats.UniqueClients = int(uniqueClients)

	var last models.Submission
	err := a.db.WithContext(ctx).
		Where("assessment_id = ?", id).
		Order("submitted_at DESC").
		First(&last).Error
	if err == nil {
		stats.LastSubmissionAt = &last.SubmittedAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to get last submission: %w", err)
	}

	return stats, nil
}

// GetCreatorStats retrieves aggregate stats across a creator's content
func (a *AssessmentPostgreSQL) GetCreatorStats(ctx context.Context, creatorID string) (*repositories.CreatorStats, error) {
	stats := &repositories.CreatorStats{}

	type countRow struct{ Count int64 }

	var total, active, shared int64
	base := a.db.WithContext(ctx).Model(&models.Assessment{}).Where("created_by = ?", creatorID)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count assessments: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return nil, fmt.Errorf("failed to count active assessments: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("share_token IS NOT NULL").Count(&shared).Error; err != nil {
		return nil, fmt.Errorf("failed to count shared assessments: %w", err)
	}
	stats.TotalAssessments = int(total)
	stats.ActiveAssessments = int(active)
	stats.SharedAssessments = int(shared)

	var questions, library int64
	if err := a.db.WithContext(ctx).Model(&models.Question{}).
		Where("created_by = ?", creatorID).Count(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}
	if err := a.db.WithContext(ctx).Model(&models.Question{}).
		Where("created_by = ? AND is_library_item = ?", creatorID, true).Count(&library).Error; err != nil {
		return nil, fmt.Errorf("failed to count library questions: %w", err)
	}
	stats.TotalQuestions = int(questions)
	stats.LibraryQuestions = int(library)

	var subs countRow
	if err := a.db.WithContext(ctx).
		Table("submissions").
		Select("COUNT(*) as count").
		Joins("JOIN assessments ON assessments.id = submissions.assessment_id").
		Where("assessments.created_by = ?", creatorID).
		Scan(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	stats.TotalSubmissions = int(subs.Count)

	return stats, nil
}
