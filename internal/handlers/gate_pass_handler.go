package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/services"
)

// GatePassHandler handles pre-approval, sharing and gate verification
type GatePassHandler struct {
	gatePassService *services.GatePassService
	logger          *logrus.Logger
}

// NewGatePassHandler creates a new gate pass handler
func NewGatePassHandler(gatePassService *services.GatePassService, logger *logrus.Logger) *GatePassHandler {
	return &GatePassHandler{
		gatePassService: gatePassService,
		logger:          logger,
	}
}

// PreApprove handles POST /api/v1/resident/gate-passes
// @Summary Pre-approve a guest
// @Description Issue a gate pass for an expected guest
// @Tags Gate Passes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.PreApproveRequest true "Guest details"
// @Success 201 {object} models.GatePass
// @Failure 400 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /resident/gate-passes [post]
func (h *GatePassHandler) PreApprove(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.PreApproveRequest
	if !bindJSON(c, &req) {
		return
	}

	pass, err := h.gatePassService.PreApprove(c.Request.Context(), userCtx.Actor(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, pass)
}

// Share handles POST /api/v1/resident/gate-passes/share
// @Summary Share a gate pass
// @Tags Gate Passes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ShareRequest true "Share details"
// @Success 200 {object} models.ShareResult
// @Failure 404 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /resident/gate-passes/share [post]
func (h *GatePassHandler) Share(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.ShareRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.gatePassService.Share(c.Request.Context(), userCtx.Actor(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Verify handles GET /api/v1/admin/gate-passes/:code
func (h *GatePassHandler) Verify(c *gin.Context) {
	visit, err := h.gatePassService.VerifyGatePass(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, visit)
}
