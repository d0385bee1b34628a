package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/costaverde/voucher-service/internal/application/service"
	"github.com/costaverde/voucher-service/internal/domain/entity"
	"github.com/costaverde/voucher-service/internal/domain/workflow"
)

// agentIDKey is the gin context key carrying the authenticated agent.
const agentIDKey = "agent_id"

// agentHeader identifies the calling sales agent. The gateway in front of
// this service validates the session and injects the header.
const agentHeader = "X-Agent-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	voucherService  service.VoucherService
	activityService service.ActivityService
	documentService service.DocumentService
	reportService   service.ReportService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	voucherService service.VoucherService,
	activityService service.ActivityService,
	documentService service.DocumentService,
	reportService service.ReportService,
	logger Logger,
) *Handlers {
	return &Handlers{
		voucherService:  voucherService,
		activityService: activityService,
		documentService: documentService,
		reportService:   reportService,
		logger:          logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// agentAuthMiddleware extracts the agent identity from the request and
// rejects anonymous calls.
func agentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.GetHeader(agentHeader)
		if agentID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "not authenticated",
			})
			return
		}
		c.Set(agentIDKey, agentID)
		c.Next()
	}
}

func agentID(c *gin.Context) string {
	return c.GetString(agentIDKey)
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case entity.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, entity.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, entity.ErrVoucherNotFound),
		errors.Is(err, entity.ErrTemplateNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrTerminalState),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, entity.ErrCodeExhausted):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrPreconditionFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, entity.ErrRenderTimeout):
		status = http.StatusGatewayTimeout
	default:
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, Response{Success: false, Error: err.Error()})
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// ListVouchersRequest represents query parameters for listing vouchers.
// The all flag widens the listing to every agent's vouchers, deleted rows
// included; the gateway in front of this service must strip or reject it
// for requests that do not come from the back office.
type ListVouchersRequest struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Status    string `form:"status"`
	EmbarkDay string `form:"embark_day"`
	All       bool   `form:"all"`
}

// ListVouchers handles GET /api/vouchers
func (h *Handlers) ListVouchers(c *gin.Context) {
	var req ListVouchersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	opts := service.ListOptions{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   req.Status,
	}
	if req.EmbarkDay != "" {
		day, err := time.Parse("2006-01-02", req.EmbarkDay)
		if err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "embark_day must be YYYY-MM-DD"})
			return
		}
		opts.EmbarkDay = &day
	}

	var page *service.VoucherPage
	var err error
	if req.All {
		page, err = h.voucherService.ListAll(c.Request.Context(), opts)
	} else {
		page, err = h.voucherService.List(c.Request.Context(), agentID(c), opts)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: page})
}

// bindError turns a JSON binding failure into a field-naming message when
// the decoder can tell which field was malformed.
func bindError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fmt.Sprintf("invalid %s: expected %s", typeErr.Field, typeErr.Type)
	}
	return "invalid request body"
}

// CreateVoucher handles POST /api/vouchers
func (h *Handlers) CreateVoucher(c *gin.Context) {
	var input service.CreateVoucherInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: bindError(err)})
		return
	}

	v, err := h.voucherService.Create(c.Request.Context(), agentID(c), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: v})
}

// GetVoucher handles GET /api/vouchers/:id
func (h *Handlers) GetVoucher(c *gin.Context) {
	v, err := h.voucherService.Get(c.Request.Context(), agentID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// UpdateVoucher handles PATCH /api/vouchers/:id
func (h *Handlers) UpdateVoucher(c *gin.Context) {
	var input service.UpdateVoucherInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: bindError(err)})
		return
	}

	v, err := h.voucherService.Update(c.Request.Context(), agentID(c), c.Param("id"), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// FinalizeVoucher handles POST /api/vouchers/:id/finalize
func (h *Handlers) FinalizeVoucher(c *gin.Context) {
	v, err := h.voucherService.Finalize(c.Request.Context(), agentID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// CancelVoucher handles POST /api/vouchers/:id/cancel
func (h *Handlers) CancelVoucher(c *gin.Context) {
	v, err := h.voucherService.Cancel(c.Request.Context(), agentID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// ExcludeVoucher handles DELETE /api/vouchers/:id
func (h *Handlers) ExcludeVoucher(c *gin.Context) {
	v, err := h.voucherService.Exclude(c.Request.Context(), agentID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: v})
}

// ResetVoucherStatusesRequest selects the bulk reset mode
type ResetVoucherStatusesRequest struct {
	Mode string `json:"mode"`
}

// ResetVoucherStatuses handles POST /api/vouchers/reset
func (h *Handlers) ResetVoucherStatuses(c *gin.Context) {
	var req ResetVoucherStatusesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	count, err := h.voucherService.ResetStatuses(c.Request.Context(), agentID(c), service.ResetMode(req.Mode))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"reset": count}})
}

// ExportVouchers handles GET /api/vouchers/export
func (h *Handlers) ExportVouchers(c *gin.Context) {
	out, err := h.reportService.ExportVouchers(c.Request.Context(), agentID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	filename := fmt.Sprintf("vouchers-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", out)
}

// ListActivitiesRequest represents query parameters for the activity feed
type ListActivitiesRequest struct {
	Limit int `form:"limit"`
}

// ListActivities handles GET /api/activities
func (h *Handlers) ListActivities(c *gin.Context) {
	var req ListActivitiesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid query parameters"})
		return
	}

	activities, err := h.activityService.ListRecent(c.Request.Context(), agentID(c), req.Limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: activities})
}

// ListVoucherActivities handles GET /api/vouchers/:id/activities
func (h *Handlers) ListVoucherActivities(c *gin.Context) {
	activities, err := h.activityService.ListByVoucher(c.Request.Context(), agentID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: activities})
}

// RenderDocumentRequest carries the template tag and the merge payload
type RenderDocumentRequest struct {
	TemplateTag string         `json:"template_tag"`
	Data        map[string]any `json:"data"`
}

// RenderDocument handles POST /api/documents/render
func (h *Handlers) RenderDocument(c *gin.Context) {
	var req RenderDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	document, err := h.documentService.Render(c.Request.Context(), req.TemplateTag, req.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.TemplateTag+".pdf"))
	c.Data(http.StatusOK, "application/pdf", document)
}
