package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/TheraFlow-Health/assessment-service/internal/cache"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
)

type ClientPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewClientPostgreSQL(db *gorm.DB, cm *cache.CacheManager) repositories.ClientRepository {
	return &ClientPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cm,
	}
}

// Create creates a new client record
func (c *ClientPostgreSQL) Create(ctx context.Context, client *models.Client) error {
	if err := c.db.WithContext(ctx).Create(client).Error; err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	cache.SafeInvalidatePattern(ctx, c.cacheManager.Client, fmt.Sprintf("therapist:%s:*", client.TherapistID))

	return nil
}

// GetByID retrieves a client by ID with caching
func (c *ClientPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Client, error) {
	cacheKey := fmt.Sprintf("id:%d", id)
	var client models.Client

	err := c.cacheManager.Client.CacheOrExecute(ctx, cacheKey, &client, cache.ClientCacheConfig.TTL, func() (interface{}, error) {
		var dbClient models.Client
		if err := c.db.WithContext(ctx).First(&dbClient, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, repositories.NewNotFoundError("client", id)
			}
			return nil, fmt.Errorf("failed to get client: %w", err)
		}
		return &dbClient, nil
	})

	if err != nil {
		return nil, err
	}

	return &client, nil
}

// Update updates a client record
func (c *ClientPostgreSQL) Update(ctx context.Context, client *models.Client) error {
	if err := c.db.WithContext(ctx).Save(client).Error; err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}

	cache.InvalidateClientCache(ctx, c.cacheManager, client.ID, client.TherapistID)

	return nil
}

// GetByEmail matches a client by email within one therapist's practice.
// Email comparison is case-insensitive.
func (c *ClientPostgreSQL) GetByEmail(ctx context.Context, therapistID, email string) (*models.Client, error) {
	var client models.Client
	err := c.db.WithContext(ctx).
		Where("therapist_id = ? AND LOWER(email) = ?", therapistID, strings.ToLower(email)).
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.NewNotFoundError("client", email)
		}
		return nil, fmt.Errorf("failed to get client by email: %w", err)
	}
	return &client, nil
}

// List retrieves a therapist's clients with filters and pagination
func (c *ClientPostgreSQL) List(ctx context.Context, therapistID string, filters repositories.ClientFilters) ([]*models.Client, int64, error) {
	query := c.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("therapist_id = ?", therapistID)

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Query != "" {
		searchTerm := "%" + strings.ToLower(filters.Query) + "%"
		query = query.Where("LOWER(full_name) LIKE ? OR LOWER(email) LIKE ?", searchTerm, searchTerm)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	query = c.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)

	var clients []*models.Client
	if err := query.Find(&clients).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list clients: %w", err)
	}

	return clients, total, nil
}

// ExistsByCode checks if a client code is already taken
func (c *ClientPostgreSQL) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := c.db.WithContext(ctx).
		Model(&models.Client{}).
		Where("client_code = ?", code).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check client code existence: %w", err)
	}
	return count > 0, nil
}
