package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/config"
	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type HandlerManager struct {
	questionHandler   *QuestionHandler
	assessmentHandler *AssessmentHandler
	publicHandler     *PublicHandler
	submissionHandler *SubmissionHandler
	clientHandler     *ClientHandler
	userHandler       *UserHandler
	authMiddleware    *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		questionHandler:   NewQuestionHandler(serviceManager.Question(), validator, logger),
		assessmentHandler: NewAssessmentHandler(serviceManager.Assessment(), serviceManager.AssessmentQuestion(), serviceManager.Export(), validator, logger),
		publicHandler:     NewPublicHandler(serviceManager.Public(), validator, logger),
		submissionHandler: NewSubmissionHandler(serviceManager.Submission(), validator, logger),
		clientHandler:     NewClientHandler(serviceManager.Client(), validator, logger),
		userHandler:       NewUserHandler(userRepo, logger),
		authMiddleware:    authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Public share-link routes. Deliberately outside the authenticated group:
	// the token in the path is the only credential.
	public := router.Group("/public")
	{
		public.GET("/assessments/:token", hm.publicHandler.ResolveAssessment)
		public.POST("/assessments/:token/submissions", hm.publicHandler.SubmitAssessment)
	}

	// API v1 routes with authentication
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Question routes
		questions := v1.Group("/questions")
		{
			// Authoring - Therapists and Admins only
			questions.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.questionHandler.CreateQuestion)
			questions.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.questionHandler.UpdateQuestion)
			questions.PUT("/:id/library", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.questionHandler.MarkLibraryQuestion)
			questions.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.questionHandler.DeleteQuestion)

			// Read access - all authenticated staff
			questions.GET("", hm.questionHandler.ListQuestions)
			questions.GET("/library", hm.questionHandler.GetLibraryQuestions)
			questions.GET("/search", hm.questionHandler.SearchQuestions)
			questions.GET("/:id", hm.questionHandler.GetQuestion)
		}

		// Assessment routes
		assessments := v1.Group("/assessments")
		{
			// Authoring - Therapists and Admins only
			assessments.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.CreateAssessment)
			assessments.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.UpdateAssessment)
			assessments.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.DeleteAssessment)
			assessments.PUT("/:id/activate", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.ToggleActive)

			// Share token lifecycle
			assessments.POST("/:id/share-token", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.GenerateShareToken)
			assessments.DELETE("/:id/share-token", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.RevokeShareToken)

			// Read access - all authenticated staff
			assessments.GET("", hm.assessmentHandler.ListAssessments)
			assessments.GET("/search", hm.assessmentHandler.SearchAssessments)
			assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
			assessments.GET("/:id/details", hm.assessmentHandler.GetAssessmentWithQuestions)
			assessments.GET("/:id/stats", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.GetAssessmentStats)

			// Question link management - Therapists and Admins only
			assessments.GET("/:id/questions", hm.assessmentHandler.GetEffectiveQuestions)
			assessments.POST("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.LinkQuestion)
			assessments.POST("/:id/questions/new", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.LinkNewQuestion)
			assessments.PUT("/:id/questions/reorder", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.ReorderQuestions)
			assessments.PUT("/:id/questions/:link_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.UpdateLink)
			assessments.DELETE("/:id/questions/:link_id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.UnlinkQuestion)
			assessments.POST("/:id/questions/:link_id/duplicate", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.DuplicateQuestion)

			// Submissions scoped to an assessment
			assessments.POST("/:id/submissions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.submissionHandler.CreateSubmission)
			assessments.GET("/:id/submissions", hm.submissionHandler.ListSubmissionsByAssessment)
			assessments.GET("/:id/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.assessmentHandler.ExportSubmissions)
		}

		// Submission routes
		submissions := v1.Group("/submissions")
		{
			submissions.GET("/:id", hm.submissionHandler.GetSubmission)
			submissions.PUT("/:id/annotate", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.submissionHandler.AnnotateSubmission)
		}

		// Client routes
		clients := v1.Group("/clients")
		{
			clients.POST("", hm.authMiddleware.RequireRoleMiddleware(models.RoleTherapist, models.RoleAdmin), hm.clientHandler.CreateClient)
			clients.GET("", hm.clientHandler.ListClients)
			clients.GET("/:id", hm.clientHandler.GetClient)
			clients.GET("/:id/submissions", hm.submissionHandler.ListSubmissionsByClient)
		}

		// User routes (practice staff directory)
		users := v1.Group("/users")
		{
			users.GET("", hm.userHandler.ListUsers)
			users.GET("/search", hm.userHandler.SearchUsers)
			users.GET("/:id", hm.userHandler.GetUser)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "assessment-service",
		})
	})
}
