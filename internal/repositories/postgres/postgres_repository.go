package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/TheraFlow-Health/assessment-service/internal/cache"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories/casdoor"
)

// PostgreSQLRepository bundles the postgres-backed repositories plus the
// casdoor-backed user repository behind repositories.Repository.
type PostgreSQLRepository struct {
	db           *gorm.DB
	redisClient  *redis.Client
	cacheManager *cache.CacheManager

	assessmentRepo         repositories.AssessmentRepository
	questionRepo           repositories.QuestionRepository
	assessmentQuestionRepo repositories.AssessmentQuestionRepository
	submissionRepo         repositories.SubmissionRepository
	clientRepo             repositories.ClientRepository
	userRepo               repositories.UserRepository
}

// RepositoryConfig holds everything needed to build the repository layer.
type RepositoryConfig struct {
	DB            *gorm.DB
	RedisClient   *redis.Client
	CasdoorConfig casdoor.CasdoorConfig
}

func NewPostgreSQLRepository(cfg RepositoryConfig) repositories.Repository {
	cm := cache.NewCacheManager(cfg.RedisClient)

	return &PostgreSQLRepository{
		db:           cfg.DB,
		redisClient:  cfg.RedisClient,
		cacheManager: cm,

		assessmentRepo:         NewAssessmentPostgreSQL(cfg.DB, cm),
		questionRepo:           NewQuestionPostgreSQL(cfg.DB, cm),
		assessmentQuestionRepo: NewAssessmentQuestionPostgreSQL(cfg.DB, cm),
		submissionRepo:         NewSubmissionPostgreSQL(cfg.DB, cm),
		clientRepo:             NewClientPostgreSQL(cfg.DB, cm),
		userRepo:               casdoor.NewUserCasdoor(cfg.CasdoorConfig, cfg.RedisClient),
	}
}

func (r *PostgreSQLRepository) Assessment() repositories.AssessmentRepository {
	return r.assessmentRepo
}

func (r *PostgreSQLRepository) Question() repositories.QuestionRepository {
	return r.questionRepo
}

func (r *PostgreSQLRepository) AssessmentQuestion() repositories.AssessmentQuestionRepository {
	return r.assessmentQuestionRepo
}

func (r *PostgreSQLRepository) Submission() repositories.SubmissionRepository {
	return r.submissionRepo
}

func (r *PostgreSQLRepository) Client() repositories.ClientRepository {
	return r.clientRepo
}

func (r *PostgreSQLRepository) User() repositories.UserRepository {
	return r.userRepo
}

// WithTransaction runs fn against a Repository whose postgres sub-repos are
// all bound to one transaction. The user repository is external and passes
// through unchanged.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &PostgreSQLRepository{
			db:           tx,
			redisClient:  r.redisClient,
			cacheManager: r.cacheManager,

			assessmentRepo:         NewAssessmentPostgreSQL(tx, r.cacheManager),
			questionRepo:           NewQuestionPostgreSQL(tx, r.cacheManager),
			assessmentQuestionRepo: NewAssessmentQuestionPostgreSQL(tx, r.cacheManager),
			submissionRepo:         NewSubmissionPostgreSQL(tx, r.cacheManager),
			clientRepo:             NewClientPostgreSQL(tx, r.cacheManager),
			userRepo:               r.userRepo,
		}
		return fn(txRepo)
	})
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.Close()
}

// ===== REPOSITORY MANAGER =====

type postgresRepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

func NewRepositoryManager(cfg RepositoryConfig) repositories.RepositoryManager {
	return &postgresRepositoryManager{config: cfg}
}

func (m *postgresRepositoryManager) Initialize() error {
	if m.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	m.repo = NewPostgreSQLRepository(m.config)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

func (m *postgresRepositoryManager) GetRepository() repositories.Repository {
	return m.repo
}

func (m *postgresRepositoryManager) HealthCheck(ctx context.Context) error {
	if m.repo == nil {
		return fmt.Errorf("repository not initialized")
	}
	return m.repo.Ping(ctx)
}

func (m *postgresRepositoryManager) Shutdown(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	return m.repo.Close()
}
