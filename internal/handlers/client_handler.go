package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TheraFlow-Health/assessment-service/internal/models"
	"github.com/TheraFlow-Health/assessment-service/internal/repositories"
	"github.com/TheraFlow-Health/assessment-service/internal/services"
	"github.com/TheraFlow-Health/assessment-service/internal/utils"
	"github.com/TheraFlow-Health/assessment-service/internal/validator"
)

type ClientHandler struct {
	BaseHandler
	clientService services.ClientService
	validator     *validator.Validator
}

func NewClientHandler(
	clientService services.ClientService,
	validator *validator.Validator,
	logger utils.Logger,
) *ClientHandler {
	return &ClientHandler{
		BaseHandler:   NewBaseHandler(logger),
		clientService: clientService,
		validator:     validator,
	}
}

// CreateClient registers a client in the therapist's practice
// @Summary Create client
// @Description Registers a client record ahead of any submission
// @Tags clients
// @Accept json
// @Produce json
// @Param client body services.CreateClientRequest true "Client data"
// @Success 201 {object} services.ClientResponse
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /clients [post]
func (h *ClientHandler) CreateClient(c *gin.Context) {
	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	client, err := h.clientService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, client)
}

// GetClient retrieves a client by ID
// @Summary Get client
// @Tags clients
// @Produce json
// @Param id path uint true "Client ID"
// @Success 200 {object} services.ClientResponse
// @Failure 404 {object} ErrorResponse
// @Router /clients/{id} [get]
func (h *ClientHandler) GetClient(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	client, err := h.clientService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// ListClients lists the therapist's clients
// @Summary List clients
// @Tags clients
// @Produce json
// @Param status query string false "Client status"
// @Param q query string false "Name or email filter"
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.ClientListResponse
// @Router /clients [get]
func (h *ClientHandler) ListClients(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		return
	}

	filters := h.parseClientFilters(c)
	clients, err := h.clientService.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, clients)
}

func (h *ClientHandler) parseClientFilters(c *gin.Context) repositories.ClientFilters {
	var filters repositories.ClientFilters

	if status := c.Query("status"); status != "" {
		clientStatus := models.ClientStatus(status)
		filters.Status = &clientStatus
	}
	filters.Query = c.Query("q")

	filters.Limit, filters.Offset = parsePagination(c)
	filters.SortBy = c.DefaultQuery("sort_by", "created_at")
	filters.SortOrder = c.DefaultQuery("sort_order", "desc")

	return filters
}
