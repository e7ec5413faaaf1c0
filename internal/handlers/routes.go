package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/societygate/gate-backend/internal/middleware"
	"github.com/societygate/gate-backend/internal/models"
	"github.com/societygate/gate-backend/pkg/jwt"
)

// Handlers groups everything mounted under /api/v1
type Handlers struct {
	Auth       *AuthHandler
	Admin      *AdminHandler
	Visits     *VisitHandler
	GatePasses *GatePassHandler
	Health     *HealthHandler
}

// RegisterRoutes mounts the public, resident and admin routes on router
func RegisterRoutes(router *gin.Engine, h Handlers, jwtService *jwt.Service) {
	router.GET("/health", h.Health.Check)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)

			protected := auth.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService))
			protected.POST("/logout", h.Auth.Logout)
			protected.GET("/me", h.Auth.Me)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(models.PrincipalAdmin))
		{
			admin.GET("/registrations/pending", h.Admin.ListPending)
			admin.POST("/registrations/:id/approve", h.Admin.Approve)
			admin.POST("/registrations/:id/reject", h.Admin.Reject)

			admin.POST("/visits", h.Visits.LogEntry)
			admin.GET("/visits/live", h.Visits.ListLive)
			admin.POST("/visits/:id/exit", h.Visits.MarkExited)

			admin.GET("/gate-passes/:code", h.GatePasses.Verify)
		}

		resident := v1.Group("/resident")
		resident.Use(middleware.AuthMiddleware(jwtService), middleware.RequireRole(models.PrincipalResident))
		{
			resident.POST("/gate-passes", h.GatePasses.PreApprove)
			resident.POST("/gate-passes/share", h.GatePasses.Share)
			resident.GET("/visits", h.Visits.ListMine)
			resident.POST("/visits/:id/exit", h.Visits.MarkExited)
		}
	}
}
