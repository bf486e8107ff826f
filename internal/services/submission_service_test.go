package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/datatypes"

	"github.com/TheraFlow-Health/assessment-service/internal/events"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

func newSubmissionServiceFixture() (*mockRepository, SubmissionService) {
	repo := newMockRepository()
	svc := NewSubmissionService(repo, testLogger(), validator.New(), events.NewMockEventPublisher(testLogger()))
	return repo, svc
}

func effectiveFixture() []*models.EffectiveQuestion {
	return []*models.EffectiveQuestion{
		{QuestionID: 1, Type: models.FreeText, IsRequired: true},
		{QuestionID: 2, Type: models.YesNo},
		{QuestionID: 3, Type: models.Rating, Options: datatypes.JSON(`{"min":1,"max":5}`)},
		{QuestionID: 4, Type: models.MultipleChoice, Options: datatypes.JSON(`{"choices":["Often","Sometimes","Never"]}`)},
		{QuestionID: 5, Type: models.MultipleChoice, Options: datatypes.JSON(`{"choices":["Work","Family","Health"],"multi_select":true}`)},
	}
}

func TestValidateResponses(t *testing.T) {
	answer := func(id uint, v interface{}) validator.SubmissionResponseDTO {
		return validator.SubmissionResponseDTO{QuestionID: id, Value: v}
	}

	cases := []struct {
		name      string
		responses []validator.SubmissionResponseDTO
		wantRule  string
	}{
		{
			name: "complete valid set",
			responses: []validator.SubmissionResponseDTO{
				answer(1, "Feeling better lately"),
				answer(2, "yes"),
				answer(3, 3),
				answer(4, "Sometimes"),
				answer(5, []interface{}{"Work", "Health"}),
			},
		},
		{
			name:      "required question only",
			responses: []validator.SubmissionResponseDTO{answer(1, "Just this one")},
		},
		{
			name:      "unknown question",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(99, "stray")},
			wantRule:  "unknown_question",
		},
		{
			name:      "duplicate answer",
			responses: []validator.SubmissionResponseDTO{answer(1, "once"), answer(1, "twice")},
			wantRule:  "duplicate_answer",
		},
		{
			name:      "required answer missing",
			responses: []validator.SubmissionResponseDTO{answer(2, "yes")},
			wantRule:  "required_answer",
		},
		{
			name:      "required answer blank",
			responses: []validator.SubmissionResponseDTO{answer(1, "   ")},
			wantRule:  "required_answer",
		},
		{
			name:      "optional answer blank is fine",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(2, "")},
		},
		{
			name:      "yes_no rejects other strings",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(2, "maybe")},
			wantRule:  "invalid_answer",
		},
		{
			name:      "rating below minimum",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(3, 0)},
			wantRule:  "invalid_answer",
		},
		{
			name:      "rating above maximum",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(3, 6)},
			wantRule:  "invalid_answer",
		},
		{
			name:      "rating must be whole",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(3, 3.5)},
			wantRule:  "invalid_answer",
		},
		{
			name:      "rating accepts json float form",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(3, float64(4))},
		},
		{
			name:      "choice not offered",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(4, "Always")},
			wantRule:  "invalid_answer",
		},
		{
			name:      "multiple selections on single select",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(4, []interface{}{"Often", "Never"})},
			wantRule:  "invalid_answer",
		},
		{
			name:      "multi select accepts several choices",
			responses: []validator.SubmissionResponseDTO{answer(1, "ok"), answer(5, []interface{}{"Family", "Health"})},
		},
		{
			name:      "free text rejects non-string",
			responses: []validator.SubmissionResponseDTO{answer(1, 42)},
			wantRule:  "invalid_answer",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateResponses(effectiveFixture(), tc.responses)

			if tc.wantRule == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}

			var ruleErr *BusinessRuleError
			if !errors.As(err, &ruleErr) {
				t.Fatalf("got %v, want business rule error %q", err, tc.wantRule)
			}
			if ruleErr.Rule != tc.wantRule {
				t.Errorf("got rule %q, want %q", ruleErr.Rule, tc.wantRule)
			}
		})
	}
}

func seedSubmissionFixture(repo *mockRepository) (*models.Assessment, *models.Question, *models.Client) {
	ctx := context.Background()

	assessment := repo.seedAssessment(&models.Assessment{Title: "Intake", CreatedBy: "therapist-1"})
	question := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Anything on your mind?", CreatedBy: "therapist-1"})
	repo.AssessmentQuestion().Add(ctx, &models.AssessmentQuestion{
		AssessmentID: assessment.ID,
		QuestionID:   question.ID,
		IsRequired:   true,
	})
	client := repo.seedClient(&models.Client{
		FullName:    "Jordan Lee",
		Email:       "jordan.lee@example.com",
		Status:      models.ClientActive,
		ClientCode:  "CL-0123456789AB",
		TherapistID: "therapist-1",
	})
	return assessment, question, client
}

func TestSubmissionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("records submission for known client", func(t *testing.T) {
		repo, svc := newSubmissionServiceFixture()
		assessment, question, client := seedSubmissionFixture(repo)

		sessionID := uint(42)
		completion := 180
		resp, err := svc.Create(ctx, assessment.ID, &CreateSubmissionRequest{
			ClientID:              client.ID,
			SessionID:             &sessionID,
			CompletionTimeSeconds: &completion,
			Responses: []validator.SubmissionResponseDTO{
				{QuestionID: question.ID, Value: "Entered from a paper form"},
			},
		}, "therapist-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if resp.Submission.ClientID != client.ID {
			t.Errorf("submission attached to client %d, want %d", resp.Submission.ClientID, client.ID)
		}
		if resp.Submission.Status != models.SubmissionCompleted {
			t.Errorf("got status %q, want completed", resp.Submission.Status)
		}
		if resp.Submission.SessionID == nil || *resp.Submission.SessionID != sessionID {
			t.Error("session id was not stored")
		}
		if resp.Submission.CompletionTimeSeconds == nil || *resp.Submission.CompletionTimeSeconds != completion {
			t.Error("completion time was not stored")
		}
		if len(resp.Submission.Responses) != 1 {
			t.Errorf("got %d responses, want 1", len(resp.Submission.Responses))
		}
		if resp.Submission.Responses[0].AssessmentQuestionID == 0 {
			t.Error("response should carry the link it was answered through")
		}
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		repo, svc := newSubmissionServiceFixture()
		assessment, question, client := seedSubmissionFixture(repo)

		_, err := svc.Create(ctx, assessment.ID, &CreateSubmissionRequest{
			ClientID: client.ID,
			Responses: []validator.SubmissionResponseDTO{
				{QuestionID: question.ID, Value: "should not land"},
			},
		}, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("unknown client", func(t *testing.T) {
		repo, svc := newSubmissionServiceFixture()
		assessment, question, _ := seedSubmissionFixture(repo)

		_, err := svc.Create(ctx, assessment.ID, &CreateSubmissionRequest{
			ClientID: 999,
			Responses: []validator.SubmissionResponseDTO{
				{QuestionID: question.ID, Value: "orphan"},
			},
		}, "therapist-1")
		if !errors.Is(err, ErrClientNotFound) {
			t.Errorf("got %v, want ErrClientNotFound", err)
		}
	})

	t.Run("enforces single submission policy", func(t *testing.T) {
		repo, svc := newSubmissionServiceFixture()
		assessment, question, client := seedSubmissionFixture(repo)

		req := &CreateSubmissionRequest{
			ClientID: client.ID,
			Responses: []validator.SubmissionResponseDTO{
				{QuestionID: question.ID, Value: "first"},
			},
		}
		if _, err := svc.Create(ctx, assessment.ID, req, "therapist-1"); err != nil {
			t.Fatalf("first Create failed: %v", err)
		}
		_, err := svc.Create(ctx, assessment.ID, req, "therapist-1")
		if !errors.Is(err, ErrDuplicateSubmission) {
			t.Errorf("got %v, want ErrDuplicateSubmission", err)
		}
	})
}

func TestSubmissionService_Annotate(t *testing.T) {
	ctx := context.Background()
	repo, svc := newSubmissionServiceFixture()
	assessment, question, client := seedSubmissionFixture(repo)

	created, err := svc.Create(ctx, assessment.ID, &CreateSubmissionRequest{
		ClientID: client.ID,
		Responses: []validator.SubmissionResponseDTO{
			{QuestionID: question.ID, Value: "Feeling steady"},
		},
	}, "therapist-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("owner can annotate", func(t *testing.T) {
		notes := "Discussed coping strategies"
		score := 7.5
		resp, err := svc.Annotate(ctx, created.Submission.ID, &AnnotateSubmissionRequest{
			TherapistNotes: &notes,
			Score:          &score,
		}, "therapist-1")
		if err != nil {
			t.Fatalf("Annotate failed: %v", err)
		}
		if resp.Submission.TherapistNotes == nil || *resp.Submission.TherapistNotes != notes {
			t.Error("notes were not stored")
		}
		if resp.Submission.Score == nil || *resp.Submission.Score != score {
			t.Error("score was not stored")
		}
		// Responses are immutable; annotation must not touch them
		if len(resp.Submission.Responses) != 1 {
			t.Errorf("got %d responses, want 1", len(resp.Submission.Responses))
		}
	})

	t.Run("other therapist cannot annotate", func(t *testing.T) {
		notes := "should be denied"
		_, err := svc.Annotate(ctx, created.Submission.ID, &AnnotateSubmissionRequest{
			TherapistNotes: &notes,
		}, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("admin can annotate", func(t *testing.T) {
		notes := "Reviewed during supervision"
		if _, err := svc.Annotate(ctx, created.Submission.ID, &AnnotateSubmissionRequest{
			TherapistNotes: &notes,
		}, "admin-1"); err != nil {
			t.Errorf("admin Annotate failed: %v", err)
		}
	})
}

func TestSubmissionService_ListByClient(t *testing.T) {
	ctx := context.Background()
	repo, svc := newSubmissionServiceFixture()
	assessment, question, client := seedSubmissionFixture(repo)

	if _, err := svc.Create(ctx, assessment.ID, &CreateSubmissionRequest{
		ClientID: client.ID,
		Responses: []validator.SubmissionResponseDTO{
			{QuestionID: question.ID, Value: "entry"},
		},
	}, "therapist-1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	t.Run("owning therapist sees submissions", func(t *testing.T) {
		list, err := svc.ListByClient(ctx, client.ID, repositories.SubmissionFilters{Limit: 20}, "therapist-1")
		if err != nil {
			t.Fatalf("ListByClient failed: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("got total %d, want 1", list.Total)
		}
	})

	t.Run("other therapist is denied", func(t *testing.T) {
		_, err := svc.ListByClient(ctx, client.ID, repositories.SubmissionFilters{Limit: 20}, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})
}
