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

type AssessmentQuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewAssessmentQuestionPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.AssessmentQuestionRepository {
	return &AssessmentQuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cm,
	}
}

// ===== BASIC OPERATIONS =====

// Add inserts the link with its order computed inside the INSERT statement,
// so two concurrent links to the same assessment can never pick the same
// position. The generated id and order are scanned back into link.
func (aq *AssessmentQuestionPostgreSQL) Add(ctx context.Context, link *models.AssessmentQuestion) error {
	query := `
		INSERT INTO assessment_questions
			(assessment_id, question_id, "order", is_required, points,
			 override_text, override_options, override_help_text, conditional_logic,
			 created_at, updated_at)
		SELECT ?, ?, COALESCE(MAX("order"), 0) + 1, ?, ?, ?, ?, ?, ?, NOW(), NOW()
		FROM assessment_questions
		WHERE assessment_id = ?
		RETURNING id, "order"`

	row := struct {
		ID    uint
		Order int
	}{}

	err := aq.db.WithContext(ctx).Raw(query,
		link.AssessmentID, link.QuestionID,
		link.IsRequired, link.Points,
		link.OverrideText, link.OverrideOptions, link.OverrideHelpText, link.ConditionalLogic,
		link.AssessmentID,
	).Scan(&row).Error
	if err != nil {
		return fmt.Errorf("failed to add question to assessment: %w", err)
	}

	link.ID = row.ID
	link.Order = row.Order

	aq.invalidateAssessmentCaches(ctx, link.AssessmentID)

	return nil
}

// GetByID retrieves a link with its base question loaded
func (aq *AssessmentQuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AssessmentQuestion, error) {
	var link models.AssessmentQuestion
	if err := aq.db.WithContext(ctx).
		Preload("Question").
		First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("assessment question link", id)
		}
		return nil, fmt.Errorf("failed to get assessment question link: %w", err)
	}
	return &link, nil
}

// GetByAssessment retrieves all links for an assessment in display order
func (aq *AssessmentQuestionPostgreSQL) GetByAssessment(ctx context.Context, assessmentID uint) ([]*models.AssessmentQuestion, error) {
	var links []*models.AssessmentQuestion
	if err := aq.db.WithContext(ctx).
		Preload("Question").
		Where("assessment_id = ?", assessmentID).
		Order(`"order" ASC`).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get assessment questions: %w", err)
	}
	return links, nil
}

// Update saves override and requirement changes on a link. Order is managed
// exclusively through Add, Renumber and UpdateOrders.
func (aq *AssessmentQuestionPostgreSQL) Update(ctx context.Context, link *models.AssessmentQuestion) error {
	if err := aq.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"is_required":        link.IsRequired,
			"points":             link.Points,
			"override_text":      link.OverrideText,
			"override_options":   link.OverrideOptions,
			"override_help_text": link.OverrideHelpText,
			"conditional_logic":  link.ConditionalLogic,
			"updated_at":         link.UpdatedAt,
		}).Error; err != nil {
		return fmt.Errorf("failed to update assessment question link: %w", err)
	}

	aq.invalidateAssessmentCaches(ctx, link.AssessmentID)

	return nil
}

// Remove deletes a link row. Callers renumber afterwards within the same
// transaction to restore the contiguous order.
func (aq *AssessmentQuestionPostgreSQL) Remove(ctx context.Context, id uint) error {
	var link models.AssessmentQuestion
	if err := aq.db.WithContext(ctx).Select("id, assessment_id").First(&link, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return repositories.NewNotFoundError("assessment question link", id)
		}
		return fmt.Errorf("failed to get link before delete: %w", err)
	}

	if err := aq.db.WithContext(ctx).Delete(&models.AssessmentQuestion{}, id).Error; err != nil {
		return fmt.Errorf("failed to remove question from assessment: %w", err)
	}

	aq.invalidateAssessmentCaches(ctx, link.AssessmentID)

	return nil
}

// Renumber compacts orders to 1..N in one statement, preserving the current
// relative order.
func (aq *AssessmentQuestionPostgreSQL) Renumber(ctx context.Context, assessmentID uint) error {
	query := `
		UPDATE assessment_questions aq
		SET "order" = ranked.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY "order" ASC, id ASC) AS rn
			FROM assessment_questions
			WHERE assessment_id = ?
		) ranked
		WHERE aq.id = ranked.id AND aq."order" <> ranked.rn`

	if err := aq.db.WithContext(ctx).Exec(query, assessmentID).Error; err != nil {
		return fmt.Errorf("failed to renumber assessment questions: %w", err)
	}

	aq.invalidateAssessmentCaches(ctx, assessmentID)

	return nil
}

// UpdateOrders applies an explicit order assignment row by row. Run inside a
// transaction so a partial rewrite is never visible.
func (aq *AssessmentQuestionPostgreSQL) UpdateOrders(ctx context.Context, assessmentID uint, orders []repositories.LinkOrder) error {
	for _, o := range orders {
		result := aq.db.WithContext(ctx).
			Model(&models.AssessmentQuestion{}).
			Where("id = ? AND assessment_id = ?", o.LinkID, assessmentID).
			Update("order", o.Order)
		if result.Error != nil {
			return fmt.Errorf("failed to update order for link %d: %w", o.LinkID, result.Error)
		}
		if result.RowsAffected == 0 {
			return repositories.NewNotFoundError("assessment question link", o.LinkID)
		}
	}

	aq.invalidateAssessmentCaches(ctx, assessmentID)

	return nil
}

// ===== VALIDATION AND CHECKS =====

// Exists checks if a question is already linked into an assessment
func (aq *AssessmentQuestionPostgreSQL) Exists(ctx context.Context, assessmentID, questionID uint) (bool, error) {
	var count int64
	if err := aq.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("assessment_id = ? AND question_id = ?", assessmentID, questionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check assessment question existence: %w", err)
	}
	return count > 0, nil
}

// CountByAssessment counts links for an assessment
func (aq *AssessmentQuestionPostgreSQL) CountByAssessment(ctx context.Context, assessmentID uint) (int64, error) {
	var count int64
	if err := aq.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("assessment_id = ?", assessmentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count assessment questions: %w", err)
	}
	return count, nil
}

// CountByQuestion counts how many assessments link a question
func (aq *AssessmentQuestionPostgreSQL) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var count int64
	if err := aq.db.WithContext(ctx).
		Model(&models.AssessmentQuestion{}).
		Where("question_id = ?", questionID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count question links: %w", err)
	}
	return count, nil
}

func (aq *AssessmentQuestionPostgreSQL) invalidateAssessmentCaches(ctx context.Context, assessmentID uint) {
	cache.SafeDelete(ctx, aq.cacheManager.Assessment,
		fmt.Sprintf("id:%d", assessmentID),
		fmt.Sprintf("details:%d", assessmentID))
	cache.SafeDelete(ctx, aq.cacheManager.Question, fmt.Sprintf("assessment:%d", assessmentID))
}
