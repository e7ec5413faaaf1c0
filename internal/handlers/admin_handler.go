package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/services"
)

// AdminHandler handles the registration approval queue
type AdminHandler struct {
	registrationService *services.RegistrationService
	logger              *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(registrationService *services.RegistrationService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		registrationService: registrationService,
		logger:              logger,
	}
}

// PendingRegistrationsResponse lists residents awaiting a decision
type PendingRegistrationsResponse struct {
	Registrations []models.User `json:"registrations"`
	Count         int           `json:"count"`
}

// ListPending handles GET /api/v1/admin/registrations/pending
// @Summary List pending registrations
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PendingRegistrationsResponse
// @Router /admin/registrations/pending [get]
func (h *AdminHandler) ListPending(c *gin.Context) {
	users, err := h.registrationService.ListPending(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}

	c.JSON(http.StatusOK, PendingRegistrationsResponse{Registrations: users, Count: len(users)})
}

// Approve handles POST /api/v1/admin/registrations/:id/approve
// @Summary Approve a registration
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/registrations/{id}/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.registrationService.Approve(c.Request.Context(), userCtx.Actor(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Reject handles POST /api/v1/admin/registrations/:id/reject
func (h *AdminHandler) Reject(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	user, err := h.registrationService.Reject(c.Request.Context(), userCtx.Actor(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
