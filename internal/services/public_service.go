package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/TheraFlow-Health/assessment-service/internal/events"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type publicService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
}

func NewPublicService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) PublicService {
	return &publicService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
	}
}

// Resolve maps a share token to the sanitized public view. Unknown tokens
// and inactive assessments both return ErrAssessmentNotFound so probing a
// link reveals nothing about why it stopped working.
func (s *publicService) Resolve(ctx context.Context, token string) (*models.PublicAssessmentView, error) {
	assessment, err := s.resolveAssessment(ctx, token)
	if err != nil {
		return nil, err
	}
	return assessment.PublicView(), nil
}

// Submit validates and stores an anonymous submission. The client record is
// matched by email within the owning therapist's practice, or created; the
// client, submission and responses commit in one transaction.
func (s *publicService) Submit(ctx context.Context, token string, req *PublicSubmissionRequest) (*PublicSubmissionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	assessment, err := s.resolveAssessment(ctx, token)
	if err != nil {
		return nil, err
	}

	// Validate every answer against the effective questions before any write
	effective := make([]*models.EffectiveQuestion, len(assessment.Questions))
	for i := range assessment.Questions {
		effective[i] = assessment.Questions[i].Effective()
	}
	if err := validateResponses(effective, req.Responses); err != nil {
		return nil, err
	}

	var submission *models.Submission
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		client, err := s.resolveClient(ctx, txRepo, assessment.CreatedBy, req.ClientName, req.ClientEmail)
		if err != nil {
			return err
		}

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
		submission.CompletionTimeSeconds = req.CompletionTimeSeconds
		if err := txRepo.Submission().Create(ctx, submission); err != nil {
			return fmt.Errorf("failed to create submission: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Public submission received",
		"assessment_id", assessment.ID, "submission_id", submission.ID, "responses", len(submission.Responses))

	s.publishSubmissionCompleted(ctx, submission)

	return &PublicSubmissionResponse{
		SubmissionID: submission.ID,
		SubmittedAt:  submission.SubmittedAt,
	}, nil
}

// resolveAssessment performs the uncached token lookup and active-flag gate
func (s *publicService) resolveAssessment(ctx context.Context, token string) (*models.Assessment, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrAssessmentNotFound
	}

	assessment, err := s.repo.Assessment().GetByShareToken(ctx, token)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAssessmentNotFound
		}
		return nil, fmt.Errorf("failed to resolve share token: %w", err)
	}

	if !assessment.IsActive {
		return nil, ErrAssessmentNotFound
	}

	return assessment, nil
}

// resolveClient finds a client by email within one therapist's practice or
// registers a new one. Email matching is case-insensitive.
func (s *publicService) resolveClient(ctx context.Context, txRepo repositories.Repository, therapistID, name, email string) (*models.Client, error) {
	client, err := txRepo.Client().GetByEmail(ctx, therapistID, email)
	if err == nil {
		return client, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	code, err := generateClientCode(ctx, txRepo)
	if err != nil {
		return nil, err
	}

	client = &models.Client{
		FullName:    name,
		Email:       strings.ToLower(email),
		Status:      models.ClientActive,
		ClientCode:  code,
		TherapistID: therapistID,
	}
	if err := txRepo.Client().Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("Client created from public submission", "client_id", client.ID, "therapist_id", therapistID)
	return client, nil
}

func (s *publicService) publishSubmissionCompleted(ctx context.Context, submission *models.Submission) {
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

// buildSubmission assembles the submission graph for a single Create call.
// Each response is stamped with the link it was answered through so the
// override in effect at submission time stays reconstructible.
func buildSubmission(assessmentID, clientID uint, effective []*models.EffectiveQuestion, responses []validator.SubmissionResponseDTO) (*models.Submission, error) {
	links := make(map[uint]uint, len(effective))
	for _, eq := range effective {
		links[eq.QuestionID] = eq.LinkID
	}

	submission := &models.Submission{
		AssessmentID: assessmentID,
		ClientID:     clientID,
		Status:       models.SubmissionCompleted,
		SubmittedAt:  time.Now().UTC(),
		Responses:    make([]models.Response, len(responses)),
	}

	for i, r := range responses {
		value, err := marshalOptions(r.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode response for question %d: %w", r.QuestionID, err)
		}
		submission.Responses[i] = models.Response{
			QuestionID:           r.QuestionID,
			AssessmentQuestionID: links[r.QuestionID],
			Value:                value,
		}
	}

	return submission, nil
}
