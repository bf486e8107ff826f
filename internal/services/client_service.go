package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type clientService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewClientService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ClientService {
	return &clientService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// Create registers a client directly in a therapist's practice, ahead of any
// submission.
func (s *clientService) Create(ctx context.Context, req *CreateClientRequest, therapistID string) (*ClientResponse, error) {
	s.logger.Info("Creating client", "therapist_id", therapistID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	// A therapist keeps one record per client email
	if existing, err := s.repo.Client().GetByEmail(ctx, therapistID, req.Email); err == nil {
		return nil, NewBusinessRuleError("duplicate_client",
			fmt.Sprintf("a client with this email already exists (code %s)", existing.ClientCode))
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	code, err := generateClientCode(ctx, s.repo)
	if err != nil {
		return nil, err
	}

	client := &models.Client{
		FullName:    req.FullName,
		Email:       strings.ToLower(req.Email),
		Status:      models.ClientActive,
		ClientCode:  code,
		TherapistID: therapistID,
	}
	if err := s.repo.Client().Create(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	s.logger.Info("Client created", "client_id", client.ID)

	return s.buildClientResponse(ctx, client), nil
}

func (s *clientService) GetByID(ctx context.Context, id uint, userID string) (*ClientResponse, error) {
	client, err := s.repo.Client().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if client.TherapistID != userID {
		user, err := s.repo.User().GetByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		if user.Role != models.RoleAdmin {
			return nil, NewPermissionError(userID, id, "client", "read", "client belongs to another therapist")
		}
	}

	return s.buildClientResponse(ctx, client), nil
}

func (s *clientService) List(ctx context.Context, filters repositories.ClientFilters, userID string) (*ClientListResponse, error) {
	clients, total, err := s.repo.Client().List(ctx, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	response := &ClientListResponse{
		Clients: make([]*ClientResponse, len(clients)),
		Total:   total,
		Page:    (filters.Offset / max(filters.Limit, 1)) + 1,
		Size:    filters.Limit,
	}
	for i, client := range clients {
		response.Clients[i] = s.buildClientResponse(ctx, client)
	}
	return response, nil
}

func (s *clientService) buildClientResponse(ctx context.Context, client *models.Client) *ClientResponse {
	count, err := s.repo.Submission().CountByClient(ctx, client.ID)
	if err != nil {
		s.logger.Warn("Failed to count client submissions", "client_id", client.ID, "error", err)
	}
	return &ClientResponse{Client: client, SubmissionCount: count}
}
