package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TheraFlow-Health/assessment-service/internal/events"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type submissionService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewSubmissionService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) SubmissionService {
	return &submissionService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// Create records a submission on behalf of a known client, for example when
// a therapist enters a paper form. The same validation and duplicate policy
// apply as on the public path.
func (s *submissionService) Create(ctx context.Context, assessmentID uint, req *CreateSubmissionRequest, userID string) (*SubmissionResponse, error) {
	s.logger.Info("Creating submission", "assessment_id", assessmentID, "client_id", req.ClientID, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	assessment, err := s.repo.Assessment().GetByIDWithQuestions(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}

	if err := s.requireOwnership(ctx, assessment, userID); err != nil {
		return nil, err
	}

	client, err := s.repo.Client().GetByID(ctx, req.ClientID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	effective := make([]*models.EffectiveQuestion, len(assessment.Questions))
	for i := range assessment.Questions {
		effective[i] = assessment.Questions[i].Effective()
	}
	if err := validateResponses(effective, req.Responses); err != nil {
		return nil, err
	}

	var submission *models.Submission
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if !assessment.AllowMultipleSubmissions {
			exists, err := txRepo.Submission().ExistsForClient(ctx, assessment.ID, client.ID)
			if err != nil {
				return fmt.Errorf("failed to check for duplicate submission: %w", err)
			}
			if exists {
				return ErrDuplicateSubmission
			}
		}

		submission, err = buildSubmission(assessment.ID, client.ID, effective, req.Responses)
		if err != nil {
			return err
		}
		submission.SessionID = req.SessionID
		submission.CompletionTimeSeconds = req.CompletionTimeSeconds
		return txRepo.Submission().Create(ctx, submission)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Submission created", "submission_id", submission.ID)

	s.publishSubmissionCompleted(ctx, submission)

	return &SubmissionResponse{Submission: submission}, nil
}

func (s *submissionService) GetByID(ctx context.Context, id uint, userID string) (*SubmissionResponse, error) {
	submission, err := s.repo.Submission().GetByIDWithResponses(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, submission.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if err := s.requireOwnership(ctx, assessment, userID); err != nil {
		return nil, err
	}

	return &SubmissionResponse{Submission: submission}, nil
}

func (s *submissionService) ListByAssessment(ctx context.Context, assessmentID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	assessment, err := s.repo.Assessment().GetByID(ctx, assessmentID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if err := s.requireOwnership(ctx, assessment, userID); err != nil {
		return nil, err
	}

	submissions, total, err := s.repo.Submission().ListByAssessment(ctx, assessmentID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return buildSubmissionListResponse(submissions, total, filters), nil
}

func (s *submissionService) ListByClient(ctx context.Context, clientID uint, filters repositories.SubmissionFilters, userID string) (*SubmissionListResponse, error) {
	client, err := s.repo.Client().GetByID(ctx, clientID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if client.TherapistID != userID {
		if err := s.requireAdmin(ctx, userID); err != nil {
			return nil, err
		}
	}

	submissions, total, err := s.repo.Submission().ListByClient(ctx, clientID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}

	return buildSubmissionListResponse(submissions, total, filters), nil
}

// Annotate records therapist review fields. Responses themselves are
// immutable once submitted.
func (s *submissionService) Annotate(ctx context.Context, id uint, req *AnnotateSubmissionRequest, userID string) (*SubmissionResponse, error) {
	s.logger.Info("Annotating submission", "submission_id", id, "user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	submission, err := s.repo.Submission().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	assessment, err := s.repo.Assessment().GetByID(ctx, submission.AssessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if err := s.requireOwnership(ctx, assessment, userID); err != nil {
		return nil, err
	}

	if req.TherapistNotes != nil {
		submission.TherapistNotes = req.TherapistNotes
	}
	if req.Score != nil {
		submission.Score = req.Score
	}
	submission.UpdatedAt = time.Now().UTC()

	if err := s.repo.Submission().Update(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to annotate submission: %w", err)
	}

	return s.GetByID(ctx, id, userID)
}

// ===== HELPERS =====

func (s *submissionService) requireOwnership(ctx context.Context, assessment *models.Assessment, userID string) error {
	if assessment.CreatedBy == userID {
		return nil
	}
	return s.requireAdmin(ctx, userID)
}

func (s *submissionService) requireAdmin(ctx context.Context, userID string) error {
	user, err := s.repo.User().GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user.Role == models.RoleAdmin {
		return nil
	}
	return NewPermissionError(userID, 0, "submission", "access", "not owner or insufficient permissions")
}

func (s *submissionService) publishSubmissionCompleted(ctx context.Context, submission *models.Submission) {
	if s.eventPublisher == nil {
		return
	}

	event := events.NewEvent(events.EventSubmissionCompleted, &events.SubmissionCompletedEvent{
		SubmissionID:  submission.ID,
		AssessmentID:  submission.AssessmentID,
		ClientID:      submission.ClientID,
		ResponseCount: len(submission.Responses),
		SubmittedAt:   submission.SubmittedAt,
	})
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Error("Failed to publish submission event", "submission_id", submission.ID, "error", err)
	}
}

func buildSubmissionListResponse(submissions []*models.Submission, total int64, filters repositories.SubmissionFilters) *SubmissionListResponse {
	response := &SubmissionListResponse{
		Submissions: make([]*SubmissionResponse, len(submissions)),
		Total:       total,
		Page:        (filters.Offset / max(filters.Limit, 1)) + 1,
		Size:        filters.Limit,
	}
	for i, submission := range submissions {
		response.Submissions[i] = &SubmissionResponse{Submission: submission}
	}
	return response
}

// ===== RESPONSE VALIDATION =====

// validateResponses checks a full answer set against the effective questions.
// Nothing is persisted unless every answer passes.
func validateResponses(effective []*models.EffectiveQuestion, responses []validator.SubmissionResponseDTO) error {
	byQuestion := make(map[uint]*models.EffectiveQuestion, len(effective))
	for _, eq := range effective {
		byQuestion[eq.QuestionID] = eq
	}

	answered := make(map[uint]bool, len(responses))
	for _, r := range responses {
		eq, ok := byQuestion[r.QuestionID]
		if !ok {
			return NewBusinessRuleError("unknown_question",
				fmt.Sprintf("question %d is not part of this assessment", r.QuestionID))
		}
		if answered[r.QuestionID] {
			return NewBusinessRuleError("duplicate_answer",
				fmt.Sprintf("question %d is answered more than once", r.QuestionID))
		}
		answered[r.QuestionID] = true

		if isEmptyValue(r.Value) {
			if eq.IsRequired {
				return NewBusinessRuleError("required_answer",
					fmt.Sprintf("question %d requires an answer", r.QuestionID))
			}
			continue
		}

		if err := validateResponseValue(eq, r.Value); err != nil {
			return err
		}
	}

	for _, eq := range effective {
		if eq.IsRequired && !answered[eq.QuestionID] {
			return NewBusinessRuleError("required_answer",
				fmt.Sprintf("question %d requires an answer", eq.QuestionID))
		}
	}

	return nil
}

// validateResponseValue checks one answer against its question's type and
// effective options.
func validateResponseValue(eq *models.EffectiveQuestion, value interface{}) error {
	switch eq.Type {
	case models.YesNo:
		str, ok := value.(string)
		if !ok || (str != "yes" && str != "no") {
			return NewBusinessRuleError("invalid_answer",
				fmt.Sprintf("question %d expects \"yes\" or \"no\"", eq.QuestionID))
		}

	case models.FreeText:
		if _, ok := value.(string); !ok {
			return NewBusinessRuleError("invalid_answer",
				fmt.Sprintf("question %d expects a text answer", eq.QuestionID))
		}

	case models.Rating:
		var opts models.RatingOptions
		if err := json.Unmarshal(eq.Options, &opts); err != nil {
			return fmt.Errorf("question %d has malformed rating options: %w", eq.QuestionID, err)
		}
		rating, ok := numericValue(value)
		if !ok || rating != float64(int(rating)) {
			return NewBusinessRuleError("invalid_answer",
				fmt.Sprintf("question %d expects a whole-number rating", eq.QuestionID))
		}
		if int(rating) < opts.Min || int(rating) > opts.Max {
			return NewBusinessRuleError("invalid_answer",
				fmt.Sprintf("question %d rating must be between %d and %d", eq.QuestionID, opts.Min, opts.Max))
		}

	case models.MultipleChoice:
		var opts models.MultipleChoiceOptions
		if err := json.Unmarshal(eq.Options, &opts); err != nil {
			return fmt.Errorf("question %d has malformed choice options: %w", eq.QuestionID, err)
		}
		choices := make(map[string]bool, len(opts.Choices))
		for _, c := range opts.Choices {
			choices[c] = true
		}

		selections, err := selectionValues(value, opts.MultiSelect)
		if err != nil {
			return NewBusinessRuleError("invalid_answer",
				fmt.Sprintf("question %d: %v", eq.QuestionID, err))
		}
		for _, sel := range selections {
			if !choices[sel] {
				return NewBusinessRuleError("invalid_answer",
					fmt.Sprintf("question %d does not offer the choice %q", eq.QuestionID, sel))
			}
		}
	}

	return nil
}

func isEmptyValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []interface{}:
		return len(v) == 0
	}
	return false
}

func numericValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// selectionValues normalizes a choice answer: single-select questions take a
// string, multi-select questions take a non-empty string array.
func selectionValues(value interface{}, multiSelect bool) ([]string, error) {
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		if !multiSelect && len(v) > 1 {
			return nil, fmt.Errorf("only one choice may be selected")
		}
		selections := make([]string, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("choices must be strings")
			}
			selections[i] = str
		}
		return selections, nil
	}
	return nil, fmt.Errorf("unsupported answer shape")
}

// generateClientCode mints a unique client identifier, retrying on the
// vanishingly small chance of a collision.
func generateClientCode(ctx context.Context, repo repositories.Repository) (string, error) {
	for attempt := 0; attempt < 3; attempt++ {
		buf := make([]byte, 6)
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate client code: %w", err)
		}
		code := "CL-" + strings.ToUpper(hex.EncodeToString(buf))

		exists, err := repo.Client().ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check client code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique client code")
}
