package services

import (
	"context"
	"errors"
	"testing"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

func newQuestionServiceFixture() (*mockRepository, QuestionService) {
	repo := newMockRepository()
	svc := NewQuestionService(repo, testLogger(), validator.New())
	return repo, svc
}

func TestQuestionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates text question", func(t *testing.T) {
		_, svc := newQuestionServiceFixture()

		resp, err := svc.Create(ctx, &CreateQuestionRequest{
			Type: string(models.FreeText),
			Text: "What brings you in today?",
		}, "therapist-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if resp.Question.CreatedBy != "therapist-1" {
			t.Errorf("got creator %q", resp.Question.CreatedBy)
		}
		if !resp.CanDelete {
			t.Error("an unused question should be deletable by its owner")
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, svc := newQuestionServiceFixture()

		_, err := svc.Create(ctx, &CreateQuestionRequest{
			Type: "slider",
			Text: "Pick a value",
		}, "therapist-1")
		if err == nil {
			t.Fatal("unknown type should fail")
		}
	})

	t.Run("rejects multiple choice with too few choices", func(t *testing.T) {
		_, svc := newQuestionServiceFixture()

		_, err := svc.Create(ctx, &CreateQuestionRequest{
			Type:    string(models.MultipleChoice),
			Text:    "Pick one",
			Options: map[string]interface{}{"choices": []string{"Only one"}},
		}, "therapist-1")
		if err == nil {
			t.Fatal("single-choice option list should fail")
		}
	})

	t.Run("rejects rating with inverted bounds", func(t *testing.T) {
		_, svc := newQuestionServiceFixture()

		_, err := svc.Create(ctx, &CreateQuestionRequest{
			Type:    string(models.Rating),
			Text:    "Rate your sleep",
			Options: map[string]interface{}{"min": 5, "max": 1},
		}, "therapist-1")
		if err == nil {
			t.Fatal("min >= max should fail")
		}
	})

	t.Run("rejects options on yes_no question", func(t *testing.T) {
		_, svc := newQuestionServiceFixture()

		_, err := svc.Create(ctx, &CreateQuestionRequest{
			Type:    string(models.YesNo),
			Text:    "Are you sleeping well?",
			Options: map[string]interface{}{"choices": []string{"yes", "no"}},
		}, "therapist-1")
		if err == nil {
			t.Fatal("yes_no questions must not carry options")
		}
	})
}

func TestQuestionService_Update(t *testing.T) {
	ctx := context.Background()
	repo, svc := newQuestionServiceFixture()
	q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Original text", CreatedBy: "therapist-1"})

	t.Run("owner updates text", func(t *testing.T) {
		text := "Revised text"
		resp, err := svc.Update(ctx, q.ID, &UpdateQuestionRequest{Text: &text}, "therapist-1")
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if resp.Question.Text != text {
			t.Errorf("got text %q", resp.Question.Text)
		}
	})

	t.Run("options stay bound to the fixed type", func(t *testing.T) {
		_, err := svc.Update(ctx, q.ID, &UpdateQuestionRequest{
			Options: map[string]interface{}{"choices": []string{"a", "b"}},
		}, "therapist-1")
		if err == nil {
			t.Fatal("choice options on a text question should fail")
		}
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		text := "hijacked"
		_, err := svc.Update(ctx, q.ID, &UpdateQuestionRequest{Text: &text}, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})
}

func TestQuestionService_MarkLibrary(t *testing.T) {
	ctx := context.Background()

	t.Run("owner publishes and withdraws", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Reusable prompt", CreatedBy: "therapist-1"})

		resp, err := svc.MarkLibrary(ctx, q.ID, true, "therapist-1")
		if err != nil {
			t.Fatalf("MarkLibrary failed: %v", err)
		}
		if !resp.Question.IsLibraryItem {
			t.Error("question should be a library item")
		}

		// Other therapists now see it in the library
		list, err := svc.GetLibrary(ctx, repositories.QuestionFilters{Limit: 20}, "therapist-2")
		if err != nil {
			t.Fatalf("GetLibrary failed: %v", err)
		}
		if list.Total != 1 {
			t.Fatalf("got total %d, want 1", list.Total)
		}

		resp, err = svc.MarkLibrary(ctx, q.ID, false, "therapist-1")
		if err != nil {
			t.Fatalf("MarkLibrary withdraw failed: %v", err)
		}
		if resp.Question.IsLibraryItem {
			t.Error("question should no longer be a library item")
		}
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Private prompt", CreatedBy: "therapist-1"})

		_, err := svc.MarkLibrary(ctx, q.ID, true, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("setting the current value is a no-op", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Already shared", IsLibraryItem: true, CreatedBy: "therapist-1"})

		resp, err := svc.MarkLibrary(ctx, q.ID, true, "therapist-1")
		if err != nil {
			t.Fatalf("MarkLibrary failed: %v", err)
		}
		if !resp.Question.IsLibraryItem {
			t.Error("question should stay a library item")
		}
	})
}

func TestQuestionService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("blocked while linked", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Linked prompt", CreatedBy: "therapist-1"})
		assessment := repo.seedAssessment(&models.Assessment{Title: "Intake", CreatedBy: "therapist-1"})
		repo.AssessmentQuestion().Add(ctx, &models.AssessmentQuestion{AssessmentID: assessment.ID, QuestionID: q.ID})

		err := svc.Delete(ctx, q.ID, "therapist-1")
		if !errors.Is(err, ErrQuestionInUse) {
			t.Fatalf("got %v, want ErrQuestionInUse", err)
		}

		// Unlinking lifts the guard
		links, _ := repo.AssessmentQuestion().GetByAssessment(ctx, assessment.ID)
		repo.AssessmentQuestion().Remove(ctx, links[0].ID)

		if err := svc.Delete(ctx, q.ID, "therapist-1"); err != nil {
			t.Errorf("Delete after unlink failed: %v", err)
		}
	})

	t.Run("non-owner is denied", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Private prompt", CreatedBy: "therapist-1"})

		err := svc.Delete(ctx, q.ID, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("admin can delete", func(t *testing.T) {
		repo, svc := newQuestionServiceFixture()
		q := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Anyone's prompt", CreatedBy: "therapist-1"})

		if err := svc.Delete(ctx, q.ID, "admin-1"); err != nil {
			t.Errorf("admin Delete failed: %v", err)
		}
	})
}

func TestQuestionService_List(t *testing.T) {
	ctx := context.Background()
	repo, svc := newQuestionServiceFixture()

	repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Mine", CreatedBy: "therapist-1"})
	repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Theirs", CreatedBy: "therapist-2"})
	repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Shared", IsLibraryItem: true, CreatedBy: "therapist-2"})

	t.Run("therapists see only their own", func(t *testing.T) {
		list, err := svc.List(ctx, repositories.QuestionFilters{Limit: 20}, "therapist-1")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if list.Total != 1 {
			t.Errorf("got total %d, want 1", list.Total)
		}
	})

	t.Run("admins see everything", func(t *testing.T) {
		list, err := svc.List(ctx, repositories.QuestionFilters{Limit: 20}, "admin-1")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if list.Total != 3 {
			t.Errorf("got total %d, want 3", list.Total)
		}
	})

	t.Run("library is shared across creators", func(t *testing.T) {
		list, err := svc.GetLibrary(ctx, repositories.QuestionFilters{Limit: 20}, "therapist-1")
		if err != nil {
			t.Fatalf("GetLibrary failed: %v", err)
		}
		if list.Total != 1 {
			t.Fatalf("got total %d, want 1", list.Total)
		}
		if list.Questions[0].Question.Text != "Shared" {
			t.Errorf("got %q", list.Questions[0].Question.Text)
		}
	})
}

func TestQuestionService_CanAccess(t *testing.T) {
	ctx := context.Background()
	repo, svc := newQuestionServiceFixture()

	private := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Private", CreatedBy: "therapist-1"})
	library := repo.seedQuestion(&models.Question{Type: models.FreeText, Text: "Library", IsLibraryItem: true, CreatedBy: "therapist-1"})

	cases := []struct {
		name       string
		questionID uint
		userID     string
		want       bool
	}{
		{"owner reads own", private.ID, "therapist-1", true},
		{"stranger blocked from private", private.ID, "therapist-2", false},
		{"stranger reads library item", library.ID, "therapist-2", true},
		{"admin reads private", private.ID, "admin-1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.CanAccess(ctx, tc.questionID, tc.userID)
			if err != nil {
				t.Fatalf("CanAccess failed: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}
}
