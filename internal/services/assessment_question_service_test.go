package services

import (
	"context"
	"errors"
	"testing"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

func newLinkServiceFixture() (*mockRepository, AssessmentQuestionService, *models.Assessment) {
	repo := newMockRepository()
	svc := NewAssessmentQuestionService(repo, testLogger(), validator.New())
	assessment := repo.seedAssessment(&models.Assessment{Title: "Intake Assessment", CreatedBy: "therapist-1"})
	return repo, svc, assessment
}

func seedTextQuestion(repo *mockRepository, text, creator string) *models.Question {
	return repo.seedQuestion(&models.Question{Type: models.FreeText, Text: text, CreatedBy: creator})
}

func TestAssessmentQuestionService_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns contiguous orders", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()

		for i, text := range []string{"How are you sleeping?", "Describe your week", "Any concerns?"} {
			q := seedTextQuestion(repo, text, "therapist-1")
			link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
			if err != nil {
				t.Fatalf("Link failed: %v", err)
			}
			if link.Order != i+1 {
				t.Errorf("link %d got order %d, want %d", i, link.Order, i+1)
			}
		}
	})

	t.Run("rejects double link of the same question", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()
		q := seedTextQuestion(repo, "How are you sleeping?", "therapist-1")

		if _, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1"); err != nil {
			t.Fatalf("first Link failed: %v", err)
		}
		_, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
		if !errors.Is(err, ErrQuestionAlreadyLinked) {
			t.Errorf("got %v, want ErrQuestionAlreadyLinked", err)
		}
	})

	t.Run("rejects non-owner", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()
		q := seedTextQuestion(repo, "How are you sleeping?", "therapist-2")

		_, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-2")
		if !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("admin can link into any assessment", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()
		q := seedTextQuestion(repo, "How are you sleeping?", "admin-1")

		if _, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "admin-1"); err != nil {
			t.Errorf("admin Link failed: %v", err)
		}
	})

	t.Run("unknown question", func(t *testing.T) {
		_, svc, assessment := newLinkServiceFixture()

		_, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: 999}, "therapist-1")
		if !errors.Is(err, ErrQuestionNotFound) {
			t.Errorf("got %v, want ErrQuestionNotFound", err)
		}
	})
}

func TestAssessmentQuestionService_LinkNew(t *testing.T) {
	ctx := context.Background()
	repo, svc, assessment := newLinkServiceFixture()

	link, err := svc.LinkNew(ctx, assessment.ID, &LinkNewQuestionRequest{
		Question: validator.QuestionCreateRequest{
			Type: string(models.Rating),
			Text: "Rate your mood this week",
			Options: map[string]interface{}{
				"min": 1,
				"max": 10,
			},
		},
		Link: validator.LinkOptions{IsRequired: true},
	}, "therapist-1")
	if err != nil {
		t.Fatalf("LinkNew failed: %v", err)
	}

	if link.Order != 1 {
		t.Errorf("got order %d, want 1", link.Order)
	}
	if !link.IsRequired {
		t.Error("link should be required")
	}
	if link.Question == nil || link.Question.CreatedBy != "therapist-1" {
		t.Error("new question should belong to the linking user")
	}
	if _, err := repo.Question().GetByID(ctx, link.QuestionID); err != nil {
		t.Errorf("question was not persisted: %v", err)
	}
}

func TestAssessmentQuestionService_Unlink(t *testing.T) {
	ctx := context.Background()
	repo, svc, assessment := newLinkServiceFixture()

	var linkIDs []uint
	for _, text := range []string{"first", "second question", "third question"} {
		q := seedTextQuestion(repo, text+" prompt", "therapist-1")
		link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
		if err != nil {
			t.Fatalf("Link failed: %v", err)
		}
		linkIDs = append(linkIDs, link.AssessmentQuestion.ID)
	}

	// Remove the middle link; the remaining two must renumber to 1,2
	if err := svc.Unlink(ctx, linkIDs[1], false, "therapist-1"); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}

	links, err := repo.AssessmentQuestion().GetByAssessment(ctx, assessment.ID)
	if err != nil {
		t.Fatalf("GetByAssessment failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}
	for i, link := range links {
		if link.Order != i+1 {
			t.Errorf("link at index %d has order %d, want %d", i, link.Order, i+1)
		}
	}

	// The base question survives the unlink
	if _, err := repo.Question().GetByID(ctx, links[0].QuestionID); err != nil {
		t.Errorf("base question should survive: %v", err)
	}
}

func TestAssessmentQuestionService_UnlinkDeleteQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes question with no other links", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()
		q := seedTextQuestion(repo, "only linked here", "therapist-1")
		link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
		if err != nil {
			t.Fatalf("Link failed: %v", err)
		}

		if err := svc.Unlink(ctx, link.AssessmentQuestion.ID, true, "therapist-1"); err != nil {
			t.Fatalf("Unlink failed: %v", err)
		}

		if _, err := repo.Question().GetByID(ctx, q.ID); !repositories.IsNotFoundError(err) {
			t.Errorf("question should be deleted, got %v", err)
		}
	})

	t.Run("keeps question still linked elsewhere", func(t *testing.T) {
		repo, svc, assessment := newLinkServiceFixture()
		other := repo.seedAssessment(&models.Assessment{Title: "Follow-Up Assessment", CreatedBy: "therapist-1"})
		q := seedTextQuestion(repo, "shared across assessments", "therapist-1")

		link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
		if err != nil {
			t.Fatalf("Link failed: %v", err)
		}
		if _, err := svc.Link(ctx, other.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1"); err != nil {
			t.Fatalf("second Link failed: %v", err)
		}

		if err := svc.Unlink(ctx, link.AssessmentQuestion.ID, true, "therapist-1"); err != nil {
			t.Fatalf("Unlink failed: %v", err)
		}

		if _, err := repo.Question().GetByID(ctx, q.ID); err != nil {
			t.Errorf("question linked elsewhere should survive: %v", err)
		}
	})
}

func TestAssessmentQuestionService_Reorder(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*mockRepository, AssessmentQuestionService, *models.Assessment, []uint) {
		repo, svc, assessment := newLinkServiceFixture()
		var linkIDs []uint
		for _, text := range []string{"alpha question", "beta question", "gamma question"} {
			q := seedTextQuestion(repo, text, "therapist-1")
			link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{QuestionID: q.ID}, "therapist-1")
			if err != nil {
				t.Fatalf("Link failed: %v", err)
			}
			linkIDs = append(linkIDs, link.AssessmentQuestion.ID)
		}
		return repo, svc, assessment, linkIDs
	}

	t.Run("applies complete permutation", func(t *testing.T) {
		repo, svc, assessment, linkIDs := setup(t)

		err := svc.Reorder(ctx, assessment.ID, &ReorderRequest{
			Orders: []validator.LinkOrderRequest{
				{LinkID: linkIDs[0], Order: 3},
				{LinkID: linkIDs[1], Order: 1},
				{LinkID: linkIDs[2], Order: 2},
			},
		}, "therapist-1")
		if err != nil {
			t.Fatalf("Reorder failed: %v", err)
		}

		links, _ := repo.AssessmentQuestion().GetByAssessment(ctx, assessment.ID)
		wantFirst := linkIDs[1]
		if links[0].ID != wantFirst {
			t.Errorf("first link is %d, want %d", links[0].ID, wantFirst)
		}
		if links[2].ID != linkIDs[0] {
			t.Errorf("last link is %d, want %d", links[2].ID, linkIDs[0])
		}
	})

	t.Run("rejects partial assignment", func(t *testing.T) {
		_, svc, assessment, linkIDs := setup(t)

		err := svc.Reorder(ctx, assessment.ID, &ReorderRequest{
			Orders: []validator.LinkOrderRequest{
				{LinkID: linkIDs[0], Order: 1},
				{LinkID: linkIDs[1], Order: 2},
			},
		}, "therapist-1")
		if err == nil {
			t.Fatal("partial reorder should fail")
		}
	})

	t.Run("rejects duplicate positions", func(t *testing.T) {
		_, svc, assessment, linkIDs := setup(t)

		err := svc.Reorder(ctx, assessment.ID, &ReorderRequest{
			Orders: []validator.LinkOrderRequest{
				{LinkID: linkIDs[0], Order: 1},
				{LinkID: linkIDs[1], Order: 1},
				{LinkID: linkIDs[2], Order: 2},
			},
		}, "therapist-1")
		if err == nil {
			t.Fatal("duplicate positions should fail")
		}
	})

	t.Run("rejects gap in positions", func(t *testing.T) {
		_, svc, assessment, linkIDs := setup(t)

		err := svc.Reorder(ctx, assessment.ID, &ReorderRequest{
			Orders: []validator.LinkOrderRequest{
				{LinkID: linkIDs[0], Order: 1},
				{LinkID: linkIDs[1], Order: 2},
				{LinkID: linkIDs[2], Order: 4},
			},
		}, "therapist-1")
		if err == nil {
			t.Fatal("gapped positions should fail")
		}
	})

	t.Run("rejects foreign link", func(t *testing.T) {
		_, svc, assessment, linkIDs := setup(t)

		err := svc.Reorder(ctx, assessment.ID, &ReorderRequest{
			Orders: []validator.LinkOrderRequest{
				{LinkID: linkIDs[0], Order: 1},
				{LinkID: linkIDs[1], Order: 2},
				{LinkID: 999, Order: 3},
			},
		}, "therapist-1")
		if err == nil {
			t.Fatal("unknown link should fail")
		}
	})
}

func TestAssessmentQuestionService_Duplicate(t *testing.T) {
	ctx := context.Background()
	repo, svc, assessment := newLinkServiceFixture()

	library := repo.seedQuestion(&models.Question{
		Type:          models.FreeText,
		Text:          "Describe your current stress level",
		IsLibraryItem: true,
		CreatedBy:     "therapist-2",
	})

	override := "How stressed have you felt this month?"
	link, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{
		QuestionID:   library.ID,
		OverrideText: &override,
	}, "therapist-1")
	if err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	dup, err := svc.Duplicate(ctx, link.AssessmentQuestion.ID, "therapist-1")
	if err != nil {
		t.Fatalf("Duplicate failed: %v", err)
	}

	if dup.Question.ID == library.ID {
		t.Error("duplicate should be a new question")
	}
	if dup.Question.IsLibraryItem {
		t.Error("duplicate must not inherit library status")
	}
	if dup.Question.CreatedBy != "therapist-1" {
		t.Errorf("duplicate belongs to %q, want therapist-1", dup.Question.CreatedBy)
	}
	// Copy is seeded from the effective view: the override text is baked in
	if dup.Question.Text != override+" (Copy)" {
		t.Errorf("got copy text %q, want %q", dup.Question.Text, override+" (Copy)")
	}
	if dup.Order != 2 {
		t.Errorf("copy linked at order %d, want 2", dup.Order)
	}
}

func TestAssessmentQuestionService_EffectiveQuestions(t *testing.T) {
	ctx := context.Background()
	repo, svc, assessment := newLinkServiceFixture()

	help := "base help"
	q := repo.seedQuestion(&models.Question{
		Type:      models.FreeText,
		Text:      "Base text",
		HelpText:  &help,
		CreatedBy: "therapist-1",
	})

	override := "Overridden text"
	if _, err := svc.Link(ctx, assessment.ID, &LinkQuestionRequest{
		QuestionID:   q.ID,
		OverrideText: &override,
		IsRequired:   true,
	}, "therapist-1"); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	t.Run("override wins field by field", func(t *testing.T) {
		effective, err := svc.EffectiveQuestions(ctx, assessment.ID, "therapist-1")
		if err != nil {
			t.Fatalf("EffectiveQuestions failed: %v", err)
		}
		if len(effective) != 1 {
			t.Fatalf("got %d questions, want 1", len(effective))
		}

		eq := effective[0]
		if eq.Text != override {
			t.Errorf("got text %q, want override", eq.Text)
		}
		if eq.HelpText == nil || *eq.HelpText != help {
			t.Error("help text should fall through to the base question")
		}
		if !eq.IsRequired {
			t.Error("required flag should come from the link")
		}
	})

	t.Run("assistant has read access", func(t *testing.T) {
		if _, err := svc.EffectiveQuestions(ctx, assessment.ID, "assistant-1"); err != nil {
			t.Errorf("assistant read failed: %v", err)
		}
	})
}
