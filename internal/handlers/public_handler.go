package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

// PublicHandler serves the unauthenticated share-link surface. No session,
// no role checks; the share token is the only credential.
type PublicHandler struct {
	BaseHandler
	publicService services.PublicService
	validator     *validator.Validator
}

func NewPublicHandler(
	publicService services.PublicService,
	validator *validator.Validator,
	logger utils.Logger,
) *PublicHandler {
	return &PublicHandler{
		BaseHandler:   NewBaseHandler(logger),
		publicService: publicService,
		validator:     validator,
	}
}

// ResolveAssessment resolves a share token into a client-facing assessment view
// @Summary Resolve share link
// @Description Returns the public view of an assessment for a valid, active share token. Revoked, unknown and inactive tokens all return 404.
// @Tags public
// @Produce json
// @Param token path string true "Share token"
// @Success 200 {object} models.PublicAssessmentView
// @Failure 404 {object} ErrorResponse
// @Router /public/assessments/{token} [get]
func (h *PublicHandler) ResolveAssessment(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "assessment not found",
		})
		return
	}

	view, err := h.publicService.Resolve(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitAssessment accepts a completed assessment from an anonymous client
// @Summary Submit assessment responses
// @Description Validates and stores a complete set of responses submitted through a share link
// @Tags public
// @Accept json
// @Produce json
// @Param token path string true "Share token"
// @Param submission body services.PublicSubmissionRequest true "Client identity and responses"
// @Success 201 {object} services.PublicSubmissionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /public/assessments/{token}/submissions [post]
func (h *PublicHandler) SubmitAssessment(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "assessment not found",
		})
		return
	}

	var req services.PublicSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Receiving public submission")

	result, err := h.publicService.Submit(c.Request.Context(), token, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}
