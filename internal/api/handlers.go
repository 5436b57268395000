package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/krekz/maulocum-sub000/internal/domain"
	infrajwt "github.com/krekz/maulocum-sub000/internal/infra/jwt"
	infralogger "github.com/krekz/maulocum-sub000/internal/infra/logger"
	"github.com/krekz/maulocum-sub000/internal/service"
)

// Bookings is the application lifecycle surface the handlers need.
type Bookings interface {
	Apply(ctx context.Context, doctorID, jobID, coverLetter string) (*domain.Application, error)
	ListMine(ctx context.Context, doctorID string) ([]domain.ApplicationView, error)
	Withdraw(ctx context.Context, doctorID, applicationID string) error
	Cancel(ctx context.Context, doctorID, applicationID, reason string) (*service.CancelResult, error)

	Approve(ctx context.Context, facilityID, applicationID string) (*domain.Application, error)
	Reject(ctx context.Context, facilityID, applicationID, reason string) (*domain.Application, error)

	PreviewConfirmation(ctx context.Context, raw string) (*domain.ConfirmationPreview, error)
	Confirm(ctx context.Context, raw string) (*domain.Application, error)
	Decline(ctx context.Context, raw string) (*domain.Application, error)

	CreateJob(ctx context.Context, facilityID string, in service.JobInput) (*domain.Job, error)
	GetJob(ctx context.Context, facilityID, jobID string) (*domain.JobDetail, error)
	ListJobApplications(ctx context.Context, facilityID, jobID string) ([]domain.Application, error)
	UpdateJob(ctx context.Context, facilityID, jobID string, patch domain.JobPatch) (*service.JobUpdateResult, error)
	CloseJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error)
	ReopenJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error)
	CompleteJob(ctx context.Context, facilityID, jobID string) (*domain.Job, error)
}

// OutboxStats reports notification outbox counts.
type OutboxStats interface {
	Stats(ctx context.Context) (*domain.NotificationStats, error)
}

// Handler serves the bookings API.
type Handler struct {
	bookings Bookings
	outbox   OutboxStats
	logger   infralogger.Logger
}

// NewHandler creates a Handler. outbox may be nil when the dispatcher is off.
func NewHandler(bookings Bookings, outbox OutboxStats, log infralogger.Logger) *Handler {
	return &Handler{bookings: bookings, outbox: outbox, logger: log}
}

type applyRequest struct {
	JobID       string `json:"jobId" binding:"required"`
	CoverLetter string `json:"coverLetter"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// profileID is set by RequireRole, which aborts when it is missing.
func profileID(c *gin.Context) string {
	claims, _ := infrajwt.GetClaims(c)
	return claims.ProfileID
}

// Apply handles POST /applications.
func (h *Handler) Apply(c *gin.Context) {
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	app, err := h.bookings.Apply(c.Request.Context(), profileID(c), req.JobID, req.CoverLetter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        app.ID,
		"status":    app.Status,
		"appliedAt": app.AppliedAt,
	})
}

// ListMine handles GET /applications.
func (h *Handler) ListMine(c *gin.Context) {
	apps, err := h.bookings.ListMine(c.Request.Context(), profileID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": apps,
		"count":        len(apps),
	})
}

// Withdraw handles DELETE /applications/:id.
func (h *Handler) Withdraw(c *gin.Context) {
	if err := h.bookings.Withdraw(c.Request.Context(), profileID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Cancel handles POST /applications/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	var req reasonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request body")
			return
		}
	}

	res, err := h.bookings.Cancel(c.Request.Context(), profileID(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Approve handles POST /applications/:id/approve.
func (h *Handler) Approve(c *gin.Context) {
	app, err := h.bookings.Approve(c.Request.Context(), profileID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// Reject handles POST /applications/:id/reject. The reason is optional.
func (h *Handler) Reject(c *gin.Context) {
	var req reasonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request body")
			return
		}
	}

	app, err := h.bookings.Reject(c.Request.Context(), profileID(c), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// PreviewConfirmation handles GET /confirm/:token.
func (h *Handler) PreviewConfirmation(c *gin.Context) {
	preview, err := h.bookings.PreviewConfirmation(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

// Confirm handles POST /confirm/:token.
func (h *Handler) Confirm(c *gin.Context) {
	app, err := h.bookings.Confirm(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// Decline handles POST /confirm/:token/decline.
func (h *Handler) Decline(c *gin.Context) {
	app, err := h.bookings.Decline(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// CreateJob handles POST /jobs.
func (h *Handler) CreateJob(c *gin.Context) {
	var in service.JobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	job, err := h.bookings.CreateJob(c.Request.Context(), profileID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /jobs/:id.
func (h *Handler) GetJob(c *gin.Context) {
	detail, err := h.bookings.GetJob(c.Request.Context(), profileID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ListJobApplications handles GET /jobs/:id/applications.
func (h *Handler) ListJobApplications(c *gin.Context) {
	apps, err := h.bookings.ListJobApplications(c.Request.Context(), profileID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": apps,
		"count":        len(apps),
	})
}

// UpdateJob handles PATCH /jobs/:id.
func (h *Handler) UpdateJob(c *gin.Context) {
	var patch domain.JobPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	res, err := h.bookings.UpdateJob(c.Request.Context(), profileID(c), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// CloseJob handles PATCH /jobs/:id/close.
func (h *Handler) CloseJob(c *gin.Context) {
	h.jobTransition(c, h.bookings.CloseJob)
}

// ReopenJob handles PATCH /jobs/:id/reopen.
func (h *Handler) ReopenJob(c *gin.Context) {
	h.jobTransition(c, h.bookings.ReopenJob)
}

// CompleteJob handles PATCH /jobs/:id/complete.
func (h *Handler) CompleteJob(c *gin.Context) {
	h.jobTransition(c, h.bookings.CompleteJob)
}

func (h *Handler) jobTransition(c *gin.Context, op func(ctx context.Context, facilityID, jobID string) (*domain.Job, error)) {
	job, err := op(c.Request.Context(), profileID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// NotificationStats handles GET /admin/notifications/stats.
func (h *Handler) NotificationStats(c *gin.Context) {
	if h.outbox == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{
			Error: "notification dispatcher is disabled",
			Code:  domain.KindInternal,
		})
		return
	}

	stats, err := h.outbox.Stats(c.Request.Context())
	if err != nil {
		infralogger.FromContext(c.Request.Context(), h.logger).Error("Failed to load outbox stats", infralogger.Error(err))
		respondError(c, domain.Internal("failed to load notification stats", err))
		return
	}

	c.JSON(http.StatusOK, stats)
}
