package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/services"
)

// VisitHandler handles visitor entry, exit and listing requests
type VisitHandler struct {
	visitService *services.VisitService
	logger       *logrus.Logger
}

// NewVisitHandler creates a new visit handler
func NewVisitHandler(visitService *services.VisitService, logger *logrus.Logger) *VisitHandler {
	return &VisitHandler{
		visitService: visitService,
		logger:       logger,
	}
}

// VisitListResponse wraps a list of visits
type VisitListResponse struct {
	Visits []models.Visit `json:"visits"`
	Count  int            `json:"count"`
}

func visitList(visits []models.Visit) VisitListResponse {
	if visits == nil {
		visits = []models.Visit{}
	}
	return VisitListResponse{Visits: visits, Count: len(visits)}
}

// LogEntry handles POST /api/v1/admin/visits
// @Summary Log a walk-in visitor
// @Tags Visits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.LogEntryRequest true "Visitor details"
// @Success 201 {object} models.Visit
// @Failure 400 {object} ErrorResponse
// @Router /admin/visits [post]
func (h *VisitHandler) LogEntry(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.LogEntryRequest
	if !bindJSON(c, &req) {
		return
	}

	visit, err := h.visitService.LogEntry(c.Request.Context(), userCtx.Actor(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, visit)
}

// ListLive handles GET /api/v1/admin/visits/live
func (h *VisitHandler) ListLive(c *gin.Context) {
	visits, err := h.visitService.ListLive(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, visitList(visits))
}

// ListMine handles GET /api/v1/resident/visits
func (h *VisitHandler) ListMine(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	visits, err := h.visitService.ListMine(c.Request.Context(), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, visitList(visits))
}

// MarkExited handles POST /admin/visits/:id/exit and /resident/visits/:id/exit.
// Residents may only close visits they approved; the service enforces that.
func (h *VisitHandler) MarkExited(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	visit, err := h.visitService.MarkExited(c.Request.Context(), userCtx.Actor(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, visit)
}
