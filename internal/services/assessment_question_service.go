package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type assessmentQuestionService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewAssessmentQuestionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) AssessmentQuestionService {
	return &assessmentQuestionService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== LINK OPERATIONS =====

// Link attaches an existing question to an assessment at the next position.
func (s *assessmentQuestionService) Link(ctx context.Context, assessmentID uint, req *LinkQuestionRequest, userID string) (*LinkResponse, error) {
	s.logger.Info("Linking question", "assessment_id", assessmentID, "question_id", req.QuestionID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if err := s.requireEditAccess(ctx, assessmentID, userID); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, req.QuestionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if req.OverrideOptions != nil {
		if errs := s.validator.GetBusinessValidator().ValidateQuestionOptions(question.Type, req.OverrideOptions); len(errs) > 0 {
			return nil, errs
		}
	}

	exists, err := s.repo.AssessmentQuestion().Exists(ctx, assessmentID, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing link: %w", err)
	}
	if exists {
		return nil, ErrQuestionAlreadyLinked
	}

	link, err := buildLink(assessmentID, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AssessmentQuestion().Add(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to add question to assessment: %w", err)
	}

	s.logger.Info("Question linked", "assessment_id", assessmentID, "link_id", link.ID, "order", link.Order)

	link.Question = question
	return &LinkResponse{AssessmentQuestion: link, Effective: link.Effective()}, nil
}

// LinkNew creates a question and links it in one transaction. If the link
// cannot be created the question is rolled back with it.
func (s *assessmentQuestionService) LinkNew(ctx context.Context, assessmentID uint, req *LinkNewQuestionRequest, userID string) (*LinkResponse, error) {
	s.logger.Info("Creating and linking question", "assessment_id", assessmentID, "user_id", userID)

	if errs := s.validator.GetBusinessValidator().ValidateQuestionCreate(&req.Question); len(errs) > 0 {
		return nil, errs
	}
	if err := s.validator.Validate(&req.Link); err != nil {
		return nil, err
	}

	if err := s.requireEditAccess(ctx, assessmentID, userID); err != nil {
		return nil, err
	}

	optionsJSON, err := marshalOptions(req.Question.Options)
	if err != nil {
		return nil, err
	}
	conditionalLogic, err := marshalOptions(req.Link.ConditionalLogic)
	if err != nil {
		return nil, err
	}

	question := &models.Question{
		Type:          models.QuestionType(req.Question.Type),
		Text:          req.Question.Text,
		Options:       optionsJSON,
		HelpText:      req.Question.HelpText,
		IsLibraryItem: req.Question.IsLibraryItem,
		CreatedBy:     userID,
	}

	var link *models.AssessmentQuestion
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Create(ctx, question); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}

		link = &models.AssessmentQuestion{
			AssessmentID:     assessmentID,
			QuestionID:       question.ID,
			IsRequired:       req.Link.IsRequired,
			Points:           req.Link.Points,
			ConditionalLogic: conditionalLogic,
		}
		if err := txRepo.AssessmentQuestion().Add(ctx, link); err != nil {
			return fmt.Errorf("failed to link new question: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question created and linked", "assessment_id", assessmentID, "question_id", question.ID, "link_id", link.ID)

	link.Question = question
	return &LinkResponse{AssessmentQuestion: link, Effective: link.Effective()}, nil
}

// UpdateLink changes a link's overrides and settings. Order is managed only
// through Reorder.
func (s *assessmentQuestionService) UpdateLink(ctx context.Context, linkID uint, req *UpdateLinkRequest, userID string) (*LinkResponse, error) {
	s.logger.Info("Updating link", "link_id", linkID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}

	if err := s.requireEditAccess(ctx, link.AssessmentID, userID); err != nil {
		return nil, err
	}

	if req.OverrideOptions != nil && link.Question != nil {
		if errs := s.validator.GetBusinessValidator().ValidateQuestionOptions(link.Question.Type, req.OverrideOptions); len(errs) > 0 {
			return nil, errs
		}
	}

	if err := s.applyLinkUpdates(link, req); err != nil {
		return nil, err
	}

	if err := s.repo.AssessmentQuestion().Update(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	return &LinkResponse{AssessmentQuestion: link, Effective: link.Effective()}, nil
}

// Unlink removes a question from an assessment and closes the gap so the
// remaining orders stay contiguous. With deleteQuestion set, the base question
// is deleted as well unless another assessment still links it. Everything
// shares one transaction.
func (s *assessmentQuestionService) Unlink(ctx context.Context, linkID uint, deleteQuestion bool, userID string) error {
	s.logger.Info("Unlinking question", "link_id", linkID, "delete_question", deleteQuestion, "user_id", userID)

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return err
	}

	if err := s.requireEditAccess(ctx, link.AssessmentID, userID); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.AssessmentQuestion().Remove(ctx, linkID); err != nil {
			return fmt.Errorf("failed to remove link: %w", err)
		}
		if err := txRepo.AssessmentQuestion().Renumber(ctx, link.AssessmentID); err != nil {
			return fmt.Errorf("failed to renumber after unlink: %w", err)
		}

		if deleteQuestion {
			remaining, err := txRepo.AssessmentQuestion().CountByQuestion(ctx, link.QuestionID)
			if err != nil {
				return fmt.Errorf("failed to count remaining links: %w", err)
			}
			if remaining == 0 {
				if err := txRepo.Question().Delete(ctx, link.QuestionID); err != nil {
					return fmt.Errorf("failed to delete orphaned question: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Question unlinked", "link_id", linkID, "assessment_id", link.AssessmentID)
	return nil
}

// Reorder applies a complete 1..N order assignment. Partial or conflicting
// assignments are rejected before anything is written.
func (s *assessmentQuestionService) Reorder(ctx context.Context, assessmentID uint, req *ReorderRequest, userID string) error {
	s.logger.Info("Reordering questions", "assessment_id", assessmentID, "user_id", userID)

	if err := s.requireEditAccess(ctx, assessmentID, userID); err != nil {
		return err
	}

	links, err := s.repo.AssessmentQuestion().GetByAssessment(ctx, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to get assessment questions: %w", err)
	}

	linkIDs := make([]uint, len(links))
	for i, link := range links {
		linkIDs[i] = link.ID
	}

	if errs := s.validator.GetBusinessValidator().ValidateReorder(req, linkIDs); len(errs) > 0 {
		return errs
	}

	orders := make([]repositories.LinkOrder, len(req.Orders))
	for i, o := range req.Orders {
		orders[i] = repositories.LinkOrder{LinkID: o.LinkID, Order: o.Order}
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		return txRepo.AssessmentQuestion().UpdateOrders(ctx, assessmentID, orders)
	})
	if err != nil {
		return fmt.Errorf("failed to reorder questions: %w", err)
	}

	s.logger.Info("Questions reordered", "assessment_id", assessmentID, "count", len(orders))
	return nil
}

// Duplicate copies a linked question into a new standalone question and links
// the copy at the end of the assessment. The copy never inherits library
// status; it belongs to the duplicating user.
func (s *assessmentQuestionService) Duplicate(ctx context.Context, linkID uint, userID string) (*LinkResponse, error) {
	s.logger.Info("Duplicating linked question", "link_id", linkID, "user_id", userID)

	link, err := s.getLink(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if link.Question == nil {
		return nil, fmt.Errorf("link %d has no base question loaded", linkID)
	}

	if err := s.requireEditAccess(ctx, link.AssessmentID, userID); err != nil {
		return nil, err
	}

	// The copy starts from the effective view so overrides are baked in
	effective := link.Effective()

	copied := &models.Question{
		Type:          effective.Type,
		Text:          fmt.Sprintf("%s (Copy)", effective.Text),
		Options:       effective.Options,
		HelpText:      effective.HelpText,
		IsLibraryItem: false,
		CreatedBy:     userID,
	}

	var newLink *models.AssessmentQuestion
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.Question().Create(ctx, copied); err != nil {
			return fmt.Errorf("failed to create question copy: %w", err)
		}

		newLink = &models.AssessmentQuestion{
			AssessmentID:     link.AssessmentID,
			QuestionID:       copied.ID,
			IsRequired:       link.IsRequired,
			Points:           link.Points,
			ConditionalLogic: link.ConditionalLogic,
		}
		if err := txRepo.AssessmentQuestion().Add(ctx, newLink); err != nil {
			return fmt.Errorf("failed to link question copy: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Linked question duplicated", "link_id", linkID, "new_link_id", newLink.ID, "new_question_id", copied.ID)

	newLink.Question = copied
	return &LinkResponse{AssessmentQuestion: newLink, Effective: newLink.Effective()}, nil
}

// EffectiveQuestions returns the merged per-assessment view in display order
func (s *assessmentQuestionService) EffectiveQuestions(ctx context.Context, assessmentID uint, userID string) ([]*models.EffectiveQuestion, error) {
	if err := s.requireReadAccess(ctx, assessmentID, userID); err != nil {
		return nil, err
	}

	links, err := s.repo.AssessmentQuestion().GetByAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment questions: %w", err)
	}

	effective := make([]*models.EffectiveQuestion, len(links))
	for i, link := range links {
		effective[i] = link.Effective()
	}
	return effective, nil
}

// ===== HELPERS =====

func (s *assessmentQuestionService) getLink(ctx context.Context, linkID uint) (*models.AssessmentQuestion, error) {
	link, err := s.repo.AssessmentQuestion().GetByID(ctx, linkID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	return link, nil
}

func (s *assessmentQuestionService) applyLinkUpdates(link *models.AssessmentQuestion, req *UpdateLinkRequest) error {
	if req.IsRequired != nil {
		link.IsRequired = *req.IsRequired
	}
	if req.Points != nil {
		link.Points = req.Points
	}
	if req.OverrideText != nil {
		link.OverrideText = req.OverrideText
	}
	if req.OverrideOptions != nil {
		overrideOptions, err := marshalOptions(req.OverrideOptions)
		if err != nil {
			return err
		}
		link.OverrideOptions = overrideOptions
	}
	if req.OverrideHelpText != nil {
		link.OverrideHelpText = req.OverrideHelpText
	}
	if req.ConditionalLogic != nil {
		conditionalLogic, err := marshalOptions(req.ConditionalLogic)
		if err != nil {
			return err
		}
		link.ConditionalLogic = conditionalLogic
	}
	return nil
}

func (s *assessmentQuestionService) requireEditAccess(ctx context.Context, assessmentID uint, userID string) error {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleAdmin {
		return nil
	}

	return NewPermissionError(userID, assessmentID, "assessment", "edit_questions", "not owner or insufficient permissions")
}

func (s *assessmentQuestionService) requireReadAccess(ctx context.Context, assessmentID uint, userID string) error {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrAssessmentNotFound
		}
		return fmt.Errorf("failed to get assessment: %w", err)
	}

	if assessment.CreatedBy == userID {
		return nil
	}

	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleAdmin || user.Role == models.RoleAssistant {
		return nil
	}

	return NewPermissionError(userID, assessmentID, "assessment", "read_questions", "not owner or insufficient permissions")
}
