package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/TheraFlow-Health/assessment-service/internal/cache"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cm,
	}
}

// ===== BASIC CRUD OPERATIONS =====

// Create creates a new question and invalidates cache
func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, fmt.Sprintf("creator:%s:*", question.CreatedBy))
	cache.SafeInvalidatePattern(ctx, q.cacheManager.Question, "list:*")

	return nil
}

// GetByID retrieves a question by ID with caching
func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var question models.Question

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &question, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestion models.Question
		if err := q.db.WithContext(ctx).First(&dbQuestion, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("question", id)
			}
			return nil, fmt.Errorf("failed to get question: %w", err)
		}
		return &dbQuestion, nil
	})

	if err != nil {
		return nil, err
	}

	return &question, nil
}

// GetByIDs retrieves multiple questions by their IDs
func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Question, error) {
	if len(ids) == 0 {
		return []*models.Question{}, nil
	}

	var questions []*models.Question
	if err := q.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by IDs: %w", err)
	}

	return questions, nil
}

// Update updates a question
func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Save(question).Error; err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, question.ID, question.CreatedBy)
	q.invalidateAssessmentCachesForQuestion(ctx, question.ID)

	return nil
}

// Delete soft deletes a question. Callers must have verified the question is
// not linked into any assessment.
func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	var question models.Question
	if err := q.db.WithContext(ctx).Select("id, created_by").First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.NewNotFoundError("question", id)
		}
		return fmt.Errorf("failed to get question before delete: %w", err)
	}

	if err := q.db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	cache.InvalidateQuestionCache(ctx, q.cacheManager, id, question.CreatedBy)

	return nil
}

// ===== QUERY OPERATIONS =====

// List retrieves questions with filtering and pagination
func (q *QuestionPostgreSQL) List(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	query := q.db.WithContext(ctx).Model(&models.Question{})

	query = q.helpers.ApplyQuestionFilters(query, filters)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count questions: %w", err)
	}

	query = q.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var questions []*models.Question
	if err := query.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list questions: %w", err)
	}

	return questions, total, nil
}

// GetByCreator retrieves questions created by a specific user
func (q *QuestionPostgreSQL) GetByCreator(ctx context.Context, creatorID string, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	filters.CreatedBy = &creatorID
	return q.List(ctx, filters)
}

// GetLibrary retrieves reusable library questions across all creators
func (q *QuestionPostgreSQL) GetLibrary(ctx context.Context, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	library := true
	filters.IsLibraryItem = &library
	return q.List(ctx, filters)
}

// Search performs text search on questions
func (q *QuestionPostgreSQL) Search(ctx context.Context, query string, filters repositories.QuestionFilters) ([]*models.Question, int64, error) {
	dbQuery := q.db.WithContext(ctx).Model(&models.Question{})

	if query != "" {
		searchTerm := "%" + strings.ToLower(query) + "%"
		dbQuery = dbQuery.Where("LOWER(text) LIKE ? OR LOWER(help_text) LIKE ?", searchTerm, searchTerm)
	}

	dbQuery = q.helpers.ApplyQuestionFilters(dbQuery, filters)

	var total int64
	if err := dbQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	dbQuery = q.helpers.ApplyPaginationAndSort(dbQuery, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var questions []*models.Question
	if err := dbQuery.Find(&questions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search questions: %w", err)
	}

	return questions, total, nil
}

// ===== VALIDATION AND CHECKS =====

// IsUsedInAssessments checks if a question is linked into any assessment
func (q *QuestionPostgreSQL) IsUsedInAssessments(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := q.db.WithContext(ctx).
		Table("assessment_questions").
		Where("question_id = ?", id).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check question usage in assessments: %w", err)
	}

	return count > 0, nil
}

// GetUsageCount returns how many assessments link this question
func (q *QuestionPostgreSQL) GetUsageCount(ctx context.Context, id uint) (int, error) {
	var count int64
	if err := q.db.WithContext(ctx).
		Table("assessment_questions").
		Where("question_id = ?", id).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to get question usage count: %w", err)
	}

	return int(count), nil
}

// ===== STATISTICS =====

// GetUsageStats retrieves usage statistics for a creator
func (q *QuestionPostgreSQL) GetUsageStats(ctx context.Context, creatorID string) (*repositories.QuestionUsageStats, error) {
	stats := &repositories.QuestionUsageStats{
		QuestionsByType: make(map[models.QuestionType]int),
	}

	var totalCount int64
	if err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("created_by = ?", creatorID).
		Count(&totalCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count total questions: %w", err)
	}
	stats.TotalQuestions = int(totalCount)

	var typeResults []struct {
		Type  models.QuestionType
		Count int
	}
	if err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Select("type, COUNT(*) as count").
		Where("created_by = ?", creatorID).
		Group("type").
		Find(&typeResults).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions by type: %w", err)
	}
	for _, result := range typeResults {
		stats.QuestionsByType[result.Type] = result.Count
	}

	var libraryCount int64
	if err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("created_by = ? AND is_library_item = ?", creatorID, true).
		Count(&libraryCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count library questions: %w", err)
	}
	stats.LibraryCount = int(libraryCount)

	return stats, nil
}

// invalidateAssessmentCachesForQuestion invalidates all assessment caches
// that include this question
func (q *QuestionPostgreSQL) invalidateAssessmentCachesForQuestion(ctx context.Context, questionID uint) {
	var assessmentIDs []uint
	if err := q.db.WithContext(ctx).
		Table("assessment_questions").
		Where("question_id = ?", questionID).
		Pluck("assessment_id", &assessmentIDs).Error; err != nil {
		// Log error but don't fail the operation
		return
	}

	for _, assessmentID := range assessmentIDs {
		cache.SafeDelete(ctx, q.cacheManager.Assessment,
			fmt.Sprintf("id:%d", assessmentID),
			fmt.Sprintf("details:%d", assessmentID))
		cache.SafeDelete(ctx, q.cacheManager.Question, fmt.Sprintf("assessment:%d", assessmentID))
	}
}
