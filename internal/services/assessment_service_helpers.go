package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/TheraFlow-Health/assessment-service/internal/events"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

// ===== RESPONSE BUILDERS =====

func (s *assessmentService) buildAssessmentResponse(assessment *models.Assessment, userID string, withQuestions bool) *AssessmentResponse {
	response := &AssessmentResponse{
		Assessment: assessment,
		CanEdit:    assessment.CreatedBy == userID,
		CanDelete:  assessment.CreatedBy == userID,
	}

	if withQuestions {
		response.EffectiveQuestions = make([]*models.EffectiveQuestion, len(assessment.Questions))
		for i := range assessment.Questions {
			response.EffectiveQuestions[i] = assessment.Questions[i].Effective()
		}
	}

	return response
}

func (s *assessmentService) buildAssessmentListResponse(assessments []*models.Assessment, total int64, filters repositories.AssessmentFilters, userID string) *AssessmentListResponse {
	response := &AssessmentListResponse{
		Assessments: make([]*AssessmentResponse, len(assessments)),
		Total:       total,
		Page:        (filters.Offset / max(filters.Limit, 1)) + 1,
		Size:        filters.Limit,
	}
	for i, assessment := range assessments {
		response.Assessments[i] = s.buildAssessmentResponse(assessment, userID, false)
	}
	return response
}

// ===== VALIDATION HELPERS =====

func (s *assessmentService) checkQuestionsExist(ctx context.Context, links []validator.LinkCreateRequest) error {
	ids := make([]uint, len(links))
	for i, link := range links {
		ids[i] = link.QuestionID
	}

	questions, err := s.repo.Question().GetByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to look up questions: %w", err)
	}

	found := make(map[uint]bool, len(questions))
	for _, q := range questions {
		found[q.ID] = true
	}
	for _, id := range ids {
		if !found[id] {
			return ErrQuestionNotFound
		}
	}
	return nil
}

func (s *assessmentService) getUserRole(ctx context.Context, userID string) (models.UserRole, error) {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	return user.Role, nil
}

// buildLink converts a link request into the storage model. Order is left
// unset; the repository assigns the next position atomically.
func buildLink(assessmentID uint, req *validator.LinkCreateRequest) (*models.AssessmentQuestion, error) {
	overrideOptions, err := marshalOptions(req.OverrideOptions)
	if err != nil {
		return nil, err
	}
	conditionalLogic, err := marshalOptions(req.ConditionalLogic)
	if err != nil {
		return nil, err
	}

	return &models.AssessmentQuestion{
		AssessmentID:     assessmentID,
		QuestionID:       req.QuestionID,
		IsRequired:       req.IsRequired,
		Points:           req.Points,
		OverrideText:     req.OverrideText,
		OverrideOptions:  overrideOptions,
		OverrideHelpText: req.OverrideHelpText,
		ConditionalLogic: conditionalLogic,
	}, nil
}

func applyAssessmentUpdates(assessment *models.Assessment, req *UpdateAssessmentRequest) {
	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.Description != nil {
		assessment.Description = req.Description
	}
	if req.Instructions != nil {
		assessment.Instructions = req.Instructions
	}
	if req.Category != nil {
		assessment.Category = req.Category
	}
	if req.AllowMultipleSubmissions != nil {
		assessment.AllowMultipleSubmissions = *req.AllowMultipleSubmissions
	}
	if req.ShowScoresToClient != nil {
		assessment.ShowScoresToClient = *req.ShowScoresToClient
	}
}

// generateShareToken returns 32 hex characters backed by 128 bits of
// cryptographic randomness.
func generateShareToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// publishEvent sends an event without failing the calling operation
func (s *assessmentService) publishEvent(ctx context.Context, event *events.Event) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish event", "type", event.Type, "error", err)
	}
}
