// Package handler exposes the leads HTTP API.
package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"yardguard_backend/internal/leads/service"
	"yardguard_backend/internal/leads/transport"
	"yardguard_backend/internal/scheduler"
	"yardguard_backend/platform/httpkit"
	"yardguard_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	defaultListLimit = 20
)

// retrySweeper runs one retry pass on demand.
type retrySweeper interface {
	Sweep(ctx context.Context) (scheduler.RetrySweepResult, error)
}

// retentionSweeper runs one retention pass on demand.
type retentionSweeper interface {
	Sweep(ctx context.Context) (scheduler.RetentionSweepResult, error)
}

type Handler struct {
	svc       *service.Service
	retry     retrySweeper
	retention retentionSweeper
	val       *validator.Validator
}

func New(svc *service.Service, retry retrySweeper, retention retentionSweeper, val *validator.Validator) *Handler {
	return &Handler{svc: svc, retry: retry, retention: retention, val: val}
}

// RegisterWebhookRoutes mounts the service-key authenticated entry points.
func (h *Handler) RegisterWebhookRoutes(rg *gin.RouterGroup) {
	rg.POST("/photos", h.PhotoWebhook)
}

// RegisterAdminRoutes mounts the reviewer endpoints.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("/:id/orchestrate", h.Orchestrate)
	rg.POST("/:id/approve", h.Approve)
	rg.POST("/:id/reject", h.Reject)
	rg.POST("/:id/resend", h.Resend)
	rg.DELETE("/:id", h.Delete)
}

// RegisterJobRoutes mounts the manual sweep triggers.
func (h *Handler) RegisterJobRoutes(rg *gin.RouterGroup) {
	rg.POST("/retry-sweep", h.RunRetrySweep)
	rg.POST("/retention-sweep", h.RunRetentionSweep)
}

// PhotoWebhook handles the photo-insert notification from the intake side.
func (h *Handler) PhotoWebhook(c *gin.Context) {
	var req transport.PhotoWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.OnPhotoInserted(c.Request.Context(), req.LeadID, req.OriginalPath)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) List(c *gin.Context) {
	var query transport.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if query.Limit <= 0 {
		query.Limit = defaultListLimit
	}

	items, total, err := h.svc.List(c.Request.Context(), query.Status, query.Limit, query.Offset)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LeadListResponse{
		Items:  make([]transport.LeadResponse, 0, len(items)),
		Total:  total,
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	for _, lead := range items {
		resp.Items = append(resp.Items, transport.ToLeadResponse(lead))
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	detail, err := h.svc.Get(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	resp := transport.LeadDetailResponse{
		LeadResponse: transport.ToLeadResponse(detail.Lead),
		Photos:       make([]transport.PhotoResponse, 0, len(detail.Photos)),
		Timeline:     make([]transport.TimelineEventResponse, 0, len(detail.Events)),
	}
	for _, photo := range detail.Photos {
		resp.Photos = append(resp.Photos, transport.ToPhotoResponse(photo))
	}
	for _, event := range detail.Events {
		resp.Timeline = append(resp.Timeline, transport.ToTimelineEventResponse(event))
	}
	httpkit.OK(c, resp)
}

// Orchestrate reclaims a lead for a forced enrichment rerun.
func (h *Handler) Orchestrate(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	// Body is optional; an empty body means default prompt.
	var req transport.OrchestrateRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.Regenerate(c.Request.Context(), id, h.actor(c), req.Prompt)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "PROCESSING"})
}

func (h *Handler) Approve(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	// Body is optional; approval without a final estimate keeps the AI one.
	var req transport.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.Approve(c.Request.Context(), id, h.actor(c), req.FinalEstimate)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "APPROVED"})
}

func (h *Handler) Reject(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	var req transport.RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	err := h.svc.Reject(c.Request.Context(), id, h.actor(c), req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"status": "REJECTED"})
}

func (h *Handler) Resend(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	err := h.svc.Resend(c.Request.Context(), id, h.actor(c))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"resent": true})
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := h.leadID(c)
	if !ok {
		return
	}

	err := h.svc.Delete(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"deleted": true})
}

func (h *Handler) RunRetrySweep(c *gin.Context) {
	result, err := h.retry.Sweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) RunRetentionSweep(c *gin.Context) {
	result, err := h.retention.Sweep(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return id, true
}

// actor identifies the reviewer for the audit trail, preferring the email
// claim over the raw user id.
func (h *Handler) actor(c *gin.Context) string {
	ident := httpkit.GetIdentity(c)
	if ident.Email() != "" {
		return ident.Email()
	}
	return ident.UserID().String()
}
