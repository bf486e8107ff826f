package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheraFlow-Health/assessment-service/internal/events"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type assessmentService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewAssessmentService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) AssessmentService {
	return &assessmentService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *assessmentService) Create(ctx context.Context, req *CreateAssessmentRequest, creatorID string) (*AssessmentResponse, error) {
	s.logger.Info("Creating assessment", "creator_id", creatorID, "title", req.Title)

	// Validate request with business rules
	if errors := s.validator.GetBusinessValidator().ValidateAssessmentCreate(req); len(errors) > 0 {
		return nil, errors
	}

	// All referenced questions must exist before anything is written
	if len(req.Questions) > 0 {
		if err := s.checkQuestionsExist(ctx, req.Questions); err != nil {
			return nil, err
		}
	}

	assessment := &models.Assessment{
		Title:                    req.Title,
		Description:              req.Description,
		Instructions:             req.Instructions,
		Category:                 req.Category,
		IsActive:                 false,
		AllowMultipleSubmissions: req.AllowMultipleSubmissions,
		ShowScoresToClient:       req.ShowScoresToClient,
		CreatedBy:                creatorID,
	}

	// Assessment and its initial links commit or roll back together
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Assessment().Create(ctx, assessment); err != nil {
			return fmt.Errorf("failed to create assessment: %w", err)
		}

		for _, linkReq := range req.Questions {
			link, err := buildLink(assessment.ID, &linkReq)
			if err != nil {
				return err
			}
			if err := txRepo.AssessmentQuestion().Add(ctx, link); err != nil {
				return fmt.Errorf("failed to link question %d: %w", linkReq.QuestionID, err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessment created successfully", "assessment_id", assessment.ID)

	return s.GetByIDWithQuestions(ctx, assessment.ID, creatorID)
}

func (s *assessmentService) GetByID(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "assessment", "read", "not owner or insufficient permissions")
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	return s.buildAssessmentResponse(assessment, userID, false), nil
}

func (s *assessmentService) GetByIDWithQuestions(ctx context.Context, id uint, userID string) (*AssessmentResponse, error) {
	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "assessment", "read", "not owner or insufficient permissions")
	}

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment with questions: %w", err)
	}

	return s.buildAssessmentResponse(assessment, userID, true), nil
}

func (s *assessmentService) Update(ctx context.Context, id uint, req *UpdateAssessmentRequest, userID string) (*AssessmentResponse, error) {
	s.logger.Info("Updating assessment", "assessment_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "assessment", "update", "not owner or insufficient permissions")
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	applyAssessmentUpdates(assessment, req)

	if err := s.repo.Assessment().Update(ctx, assessment); err != nil {
		return nil, fmt.Errorf("failed to update assessment: %w", err)
	}

	s.logger.Info("Assessment updated successfully", "assessment_id", id)

	return s.GetByID(ctx, id, userID)
}

// Delete removes the assessment and its question links. Base questions are
// never deleted here; they remain available to other assessments.
func (s *assessmentService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting assessment", "assessment_id", id, "user_id", userID)

	canDelete, err := s.CanDelete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "assessment", "delete", "not owner or insufficient permissions")
	}

	if err := s.repo.Assessment().Delete(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to delete assessment: %w", err)
	}

	s.logger.Info("Assessment deleted successfully", "assessment_id", id)
	return nil
}

// ===== LIST AND SEARCH OPERATIONS =====

func (s *assessmentService) List(ctx context.Context, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error) {
	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userRole != models.RoleAdmin {
		filters.CreatedBy = &userID
	}

	assessments, total, err := s.repo.Assessment().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}

	return s.buildAssessmentListResponse(assessments, total, filters, userID), nil
}

func (s *assessmentService) Search(ctx context.Context, query string, filters repositories.AssessmentFilters, userID string) (*AssessmentListResponse, error) {
	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userRole != models.RoleAdmin {
		filters.CreatedBy = &userID
	}

	assessments, total, err := s.repo.Assessment().Search(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search assessments: %w", err)
	}

	return s.buildAssessmentListResponse(assessments, total, filters, userID), nil
}

// ===== ACTIVATION AND SHARING =====

// ToggleActive flips the public gate. The flag takes effect on the next
// share-link resolution; it is never cached.
func (s *assessmentService) ToggleActive(ctx context.Context, id uint, isActive bool, userID string) (*AssessmentResponse, error) {
	s.logger.Info("Toggling assessment active flag", "assessment_id", id, "is_active", isActive, "user_id", userID)

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "assessment", "toggle_active", "not owner or insufficient permissions")
	}

	if err := s.repo.Assessment().SetActive(ctx, id, isActive); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to toggle assessment: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventAssessmentActivated, &events.AssessmentActivatedEvent{
		AssessmentID: id,
		IsActive:     isActive,
		ChangedBy:    userID,
	}))

	return s.GetByID(ctx, id, userID)
}

// GenerateShareToken mints a new share token, replacing any previous one.
// The old link stops resolving immediately.
func (s *assessmentService) GenerateShareToken(ctx context.Context, id uint, userID string) (*ShareTokenResponse, error) {
	s.logger.Info("Generating share token", "assessment_id", id, "user_id", userID)

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "assessment", "share", "not owner or insufficient permissions")
	}

	token, err := generateShareToken()
	if err != nil {
		return nil, err
	}

	if err := s.repo.Assessment().SetShareToken(ctx, id, &token); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to set share token: %w", err)
	}

	s.logger.Info("Share token generated", "assessment_id", id)

	return &ShareTokenResponse{
		AssessmentID: id,
		Token:        token,
		SharePath:    fmt.Sprintf("/public/assessments/%s", token),
	}, nil
}

// RevokeShareToken disables the share link. Revoking an assessment that has
// no token is a no-op.
func (s *assessmentService) RevokeShareToken(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Revoking share token", "assessment_id", id, "user_id", userID)

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canEdit {
		return NewPermissionError(userID, id, "assessment", "share", "not owner or insufficient permissions")
	}

	if err := s.repo.Assessment().SetShareToken(ctx, id, nil); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to revoke share token: %w", err)
	}

	s.publishEvent(ctx, events.NewEvent(events.EventShareTokenRevoked, &events.ShareTokenRevokedEvent{
		AssessmentID: id,
		RevokedBy:    userID,
	}))

	return nil
}

// ===== STATS =====

func (s *assessmentService) GetStats(ctx context.Context, id uint, userID string) (*repositories.AssessmentStats, error) {
	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "assessment", "read", "not owner or insufficient permissions")
	}

	stats, err := s.repo.Assessment().GetStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment stats: %w", err)
	}
	return stats, nil
}

// ===== PERMISSION CHECKS =====

func (s *assessmentService) CanAccess(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssessmentNotFound
		}
		return false, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return true, nil
	}

	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return userRole == models.RoleAdmin || userRole == models.RoleAssistant, nil
}

func (s *assessmentService) CanEdit(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrAssessmentNotFound
		}
		return false, fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return true, nil
	}

	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return userRole == models.RoleAdmin, nil
}

func (s *assessmentService) CanDelete(ctx context.Context, assessmentID uint, userID string) (bool, error) {
	return s.CanEdit(ctx, assessmentID, userID)
}
