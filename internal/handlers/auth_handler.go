package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/internal/services"
	"github.com/societygate/gate-backend/internal/utils"
)

// AuthHandler handles registration and session HTTP requests
type AuthHandler struct {
	authService         *services.AuthService
	registrationService *services.RegistrationService
	logger              *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService *services.AuthService,
	registrationService *services.RegistrationService,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:         authService,
		registrationService: registrationService,
		logger:              logger,
	}
}

// RegisterResponse is returned after a registration was accepted
type RegisterResponse struct {
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

// Register handles POST /api/v1/auth/register
// @Summary Register a resident
// @Description Create a pending resident account awaiting admin approval
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.RegisterRequest true "Registration details"
// @Success 201 {object} RegisterResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.registrationService.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Your account is awaiting admin approval.",
		User:    user,
	})
}

// Login handles POST /api/v1/auth/login
// @Summary Login
// @Description Authenticate an administrator or an approved resident
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Credentials"
// @Success 200 {object} models.Session
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.Email, req.Password, utils.GetClientInfo(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	var req models.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	if err := h.authService.Logout(c.Request.Context(), userCtx.Actor(), req.RefreshToken); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Logged out successfully"})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx := middleware.MustGetUserContext(c)

	principal, err := h.authService.Me(c.Request.Context(), userCtx.Actor())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"roles":     userCtx.Roles,
		"principal": principal,
	})
}
