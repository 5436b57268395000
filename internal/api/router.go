package api

import (
	"github.com/gin-gonic/gin"

	infrajwt "github.com/krekz/maulocum-sub000/internal/infra/jwt"
)

// RegisterRoutes mounts the bookings API under /api/v1.
func RegisterRoutes(router *gin.Engine, h *Handler, jwtSecret string) {
	v1 := router.Group("/api/v1")

	// Token links are sent by email and carry their own authority.
	confirm := v1.Group("/confirm")
	confirm.GET("/:token", h.PreviewConfirmation)
	confirm.POST("/:token", h.Confirm)
	confirm.POST("/:token/decline", h.Decline)

	authed := v1.Group("", infrajwt.Middleware(jwtSecret))

	doctor := authed.Group("/applications", infrajwt.RequireRole(infrajwt.RoleDoctor))
	doctor.POST("", h.Apply)
	doctor.GET("", h.ListMine)
	doctor.DELETE("/:id", h.Withdraw)
	doctor.POST("/:id/cancel", h.Cancel)

	facility := authed.Group("", infrajwt.RequireRole(infrajwt.RoleFacility))
	facility.POST("/applications/:id/approve", h.Approve)
	facility.POST("/applications/:id/reject", h.Reject)

	jobs := facility.Group("/jobs")
	jobs.POST("", h.CreateJob)
	jobs.GET("/:id", h.GetJob)
	jobs.PATCH("/:id", h.UpdateJob)
	jobs.GET("/:id/applications", h.ListJobApplications)
	jobs.PATCH("/:id/close", h.CloseJob)
	jobs.PATCH("/:id/reopen", h.ReopenJob)
	jobs.PATCH("/:id/complete", h.CompleteJob)

	admin := authed.Group("/admin", infrajwt.RequireRole(infrajwt.RoleAdmin))
	admin.GET("/notifications/stats", h.NotificationStats)
}
