package services

import (
	"context"
	"strings"
	"testing"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

func newClientServiceFixture() (*mockRepository, ClientService) {
	repo := newMockRepository()
	svc := NewClientService(repo, testLogger(), validator.New())
	return repo, svc
}

func TestClientService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("registers client with generated code", func(t *testing.T) {
		_, svc := newClientServiceFixture()

		resp, err := svc.Create(ctx, &CreateClientRequest{
			FullName: "Jordan Lee",
			Email:    "Jordan.Lee@Example.com",
		}, "therapist-1")
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if resp.Client.Email != "jordan.lee@example.com" {
			t.Errorf("email stored as %q, want lowercased", resp.Client.Email)
		}
		if !strings.HasPrefix(resp.Client.ClientCode, "CL-") {
			t.Errorf("got client code %q", resp.Client.ClientCode)
		}
		if resp.Client.Status != models.ClientActive {
			t.Errorf("got status %q, want active", resp.Client.Status)
		}
	})

	t.Run("rejects duplicate email within a practice", func(t *testing.T) {
		_, svc := newClientServiceFixture()

		if _, err := svc.Create(ctx, &CreateClientRequest{FullName: "Jordan Lee", Email: "jordan@example.com"}, "therapist-1"); err != nil {
			t.Fatalf("first Create failed: %v", err)
		}
		_, err := svc.Create(ctx, &CreateClientRequest{FullName: "Jordan Lee", Email: "JORDAN@example.com"}, "therapist-1")
		if !IsBusinessRuleError(err) {
			t.Errorf("got %v, want business rule error", err)
		}
	})

	t.Run("same email is fine in another practice", func(t *testing.T) {
		_, svc := newClientServiceFixture()

		if _, err := svc.Create(ctx, &CreateClientRequest{FullName: "Jordan Lee", Email: "jordan@example.com"}, "therapist-1"); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := svc.Create(ctx, &CreateClientRequest{FullName: "Jordan Lee", Email: "jordan@example.com"}, "therapist-2"); err != nil {
			t.Errorf("cross-practice Create failed: %v", err)
		}
	})
}

func TestClientService_GetByID(t *testing.T) {
	ctx := context.Background()
	repo, svc := newClientServiceFixture()
	client := repo.seedClient(&models.Client{
		FullName:    "Jordan Lee",
		Email:       "jordan@example.com",
		Status:      models.ClientActive,
		ClientCode:  "CL-0123456789AB",
		TherapistID: "therapist-1",
	})

	t.Run("owning therapist", func(t *testing.T) {
		resp, err := svc.GetByID(ctx, client.ID, "therapist-1")
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if resp.Client.ID != client.ID {
			t.Errorf("got client %d", resp.Client.ID)
		}
	})

	t.Run("other therapist is denied", func(t *testing.T) {
		if _, err := svc.GetByID(ctx, client.ID, "therapist-2"); !IsPermissionError(err) {
			t.Errorf("got %v, want permission error", err)
		}
	})

	t.Run("admin can read", func(t *testing.T) {
		if _, err := svc.GetByID(ctx, client.ID, "admin-1"); err != nil {
			t.Errorf("admin GetByID failed: %v", err)
		}
	})
}

func TestClientService_List(t *testing.T) {
	ctx := context.Background()
	repo, svc := newClientServiceFixture()

	repo.seedClient(&models.Client{FullName: "A", Email: "a@example.com", Status: models.ClientActive, ClientCode: "CL-A00000000001", TherapistID: "therapist-1"})
	repo.seedClient(&models.Client{FullName: "B", Email: "b@example.com", Status: models.ClientArchived, ClientCode: "CL-B00000000002", TherapistID: "therapist-1"})
	repo.seedClient(&models.Client{FullName: "C", Email: "c@example.com", Status: models.ClientActive, ClientCode: "CL-C00000000003", TherapistID: "therapist-2"})

	list, err := svc.List(ctx, repositories.ClientFilters{Limit: 20}, "therapist-1")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if list.Total != 2 {
		t.Errorf("got total %d, want 2", list.Total)
	}

	archived := models.ClientArchived
	list, err = svc.List(ctx, repositories.ClientFilters{Status: &archived, Limit: 20}, "therapist-1")
	if err != nil {
		t.Fatalf("filtered List failed: %v", err)
	}
	if list.Total != 1 {
		t.Errorf("got total %d, want 1", list.Total)
	}
}
