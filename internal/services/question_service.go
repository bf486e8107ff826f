package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type questionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewQuestionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) QuestionService {
	return &questionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== CORE CRUD OPERATIONS =====

func (s *questionService) Create(ctx context.Context, req *CreateQuestionRequest, creatorID string) (*QuestionResponse, error) {
	s.logger.Info("Creating question", "creator_id", creatorID, "type", req.Type)

	// Validate request with business rules
	if errors := s.validator.GetBusinessValidator().ValidateQuestionCreate(req); len(errors) > 0 {
		return nil, errors
	}

	optionsJSON, err := marshalOptions(req.Options)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		Type:          models.QuestionType(req.Type),
		Text:          req.Text,
		Options:       optionsJSON,
		HelpText:      req.HelpText,
		IsLibraryItem: req.IsLibraryItem,
		CreatedBy:     creatorID,
	}

	if err := s.repo.Question().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question created successfully", "question_id", question.ID)

	return s.buildQuestionResponse(ctx, question, creatorID), nil
}

func (s *questionService) GetByID(ctx context.Context, id uint, userID string) (*QuestionResponse, error) {
	canAccess, err := s.CanAccess(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canAccess {
		return nil, NewPermissionError(userID, id, "question", "read", "not owner or insufficient permissions")
	}

	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	return s.buildQuestionResponse(ctx, question, userID), nil
}

func (s *questionService) Update(ctx context.Context, id uint, req *UpdateQuestionRequest, userID string) (*QuestionResponse, error) {
	s.logger.Info("Updating question", "question_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "question", "update", "not owner or insufficient permissions")
	}

	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	// Options must stay valid for the question's fixed type
	if req.Options != nil {
		if errs := s.validator.GetBusinessValidator().ValidateQuestionOptions(question.Type, req.Options); len(errs) > 0 {
			return nil, errs
		}
	}

	if err := s.applyQuestionUpdates(question, req); err != nil {
		return nil, err
	}

	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	s.logger.Info("Question updated successfully", "question_id", id)

	return s.buildQuestionResponse(ctx, question, userID), nil
}

// MarkLibrary publishes or withdraws a question from the shared library.
func (s *questionService) MarkLibrary(ctx context.Context, id uint, isLibrary bool, userID string) (*QuestionResponse, error) {
	s.logger.Info("Marking question library flag", "question_id", id, "is_library", isLibrary, "user_id", userID)

	canEdit, err := s.CanEdit(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if !canEdit {
		return nil, NewPermissionError(userID, id, "question", "mark_library", "not owner or insufficient permissions")
	}

	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if question.IsLibraryItem == isLibrary {
		return s.buildQuestionResponse(ctx, question, userID), nil
	}

	question.IsLibraryItem = isLibrary
	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	return s.buildQuestionResponse(ctx, question, userID), nil
}

// Delete removes a question. Questions referenced by any assessment cannot be
// deleted; the caller must unlink them first.
func (s *questionService) Delete(ctx context.Context, id uint, userID string) error {
	s.logger.Info("Deleting question", "question_id", id, "user_id", userID)

	canDelete, err := s.CanDelete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canDelete {
		return NewPermissionError(userID, id, "question", "delete", "not owner or insufficient permissions")
	}

	inUse, err := s.repo.Question().IsUsedInAssessments(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check question usage: %w", err)
	}
	if inUse {
		return ErrQuestionInUse
	}

	if err := s.repo.Question().Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	s.logger.Info("Question deleted successfully", "question_id", id)
	return nil
}

// ===== LIST AND SEARCH OPERATIONS =====

func (s *questionService) List(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	// Non-admin users only see their own questions
	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userRole != models.RoleAdmin {
		filters.CreatedBy = &userID
	}

	questions, total, err := s.repo.Question().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	return s.buildQuestionListResponse(ctx, questions, total, filters, userID), nil
}

// GetLibrary lists reusable library questions. Library items are visible to
// every authenticated user regardless of creator.
func (s *questionService) GetLibrary(ctx context.Context, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	questions, total, err := s.repo.Question().GetLibrary(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get library questions: %w", err)
	}

	return s.buildQuestionListResponse(ctx, questions, total, filters, userID), nil
}

func (s *questionService) Search(ctx context.Context, query string, filters repositories.QuestionFilters, userID string) (*QuestionListResponse, error) {
	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return nil, err
	}
	if userRole != models.RoleAdmin {
		filters.CreatedBy = &userID
	}

	questions, total, err := s.repo.Question().Search(ctx, query, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}

	return s.buildQuestionListResponse(ctx, questions, total, filters, userID), nil
}

// ===== HELPERS =====

func (s *questionService) applyQuestionUpdates(question *models.Question, req *UpdateQuestionRequest) error {
	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Options != nil {
		optionsJSON, err := marshalOptions(req.Options)
		if err != nil {
			return err
		}
		question.Options = optionsJSON
	}
	if req.HelpText != nil {
		question.HelpText = req.HelpText
	}
	if req.IsLibraryItem != nil {
		question.IsLibraryItem = *req.IsLibraryItem
	}
	return nil
}

func (s *questionService) buildQuestionResponse(ctx context.Context, question *models.Question, userID string) *QuestionResponse {
	usageCount, err := s.repo.Question().GetUsageCount(ctx, question.ID)
	if err != nil {
		s.logger.Warn("Failed to get question usage count", "question_id", question.ID, "error", err)
	}

	isOwner := question.CreatedBy == userID

	return &QuestionResponse{
		Question:   question,
		UsageCount: usageCount,
		CanEdit:    isOwner,
		CanDelete:  isOwner && usageCount == 0,
	}
}

func (s *questionService) buildQuestionListResponse(ctx context.Context, questions []*models.Question, total int64, filters repositories.QuestionFilters, userID string) *QuestionListResponse {
	response := &QuestionListResponse{
		Questions: make([]*QuestionResponse, len(questions)),
		Total:     total,
		Page:      (filters.Offset / max(filters.Limit, 1)) + 1,
		Size:      filters.Limit,
	}
	for i, question := range questions {
		response.Questions[i] = s.buildQuestionResponse(ctx, question, userID)
	}
	return response
}

func (s *questionService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// ===== PERMISSION CHECKS =====

func (s *questionService) CanAccess(ctx context.Context, questionID uint, userID string) (bool, error) {
	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrQuestionNotFound
		}
		return false, fmt.Errorf("failed to get question: %w", err)
	}

	if question.CreatedBy == userID || question.IsLibraryItem {
		return true, nil
	}

	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return userRole == models.RoleAdmin, nil
}

func (s *questionService) CanEdit(ctx context.Context, questionID uint, userID string) (bool, error) {
	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, ErrQuestionNotFound
		}
		return false, fmt.Errorf("failed to get question: %w", err)
	}

	if question.CreatedBy == userID {
		return true, nil
	}

	userRole, err := s.getUserRole(ctx, userID)
	if err != nil {
		return false, err
	}
	return userRole == models.RoleAdmin, nil
}

func (s *questionService) CanDelete(ctx context.Context, questionID uint, userID string) (bool, error) {
	return s.CanEdit(ctx, questionID, userID)
}

// marshalOptions converts an options payload to JSONB, passing nil through
func marshalOptions(options interface{}) (datatypes.JSON, error) {
	if options == nil {
		return nil, nil
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal options: %w", err)
	}
	return datatypes.JSON(raw), nil
}
