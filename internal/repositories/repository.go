package repositories

import "context"

// Repository aggregates every repository interface behind one handle.
type Repository interface {
	// Authoring domain
	Assessment() AssessmentRepository
	Question() QuestionRepository
	AssessmentQuestion() AssessmentQuestionRepository

	// Submission domain
	Submission() SubmissionRepository
	Client() ClientRepository

	// User domain (read-only for this service)
	User() UserRepository

	// WithTransaction runs fn against a Repository whose operations all share
	// one database transaction. Returning an error rolls everything back.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
