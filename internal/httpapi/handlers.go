package httpapi

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"finance-tower/internal/auth"
	"finance-tower/internal/finance"
	"finance-tower/internal/rbac"
	"finance-tower/pkg/logger"
	"finance-tower/pkg/utils"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Finance *finance.Service
}

// RegisterFinanceRoutes mounts the finance API under g. Every route requires
// project membership; money-moving routes additionally require the owner role.
func RegisterFinanceRoutes(g *gin.RouterGroup, h Handlers, members rbac.MembershipResolver) {
	fin := g.Group("/projects/:project_id/finance")
	fin.Use(rbac.RequireProjectMember(members))

	owner := rbac.RequireOwner()

	fin.GET("/overview", h.Overview)
	fin.PUT("/budget", owner, h.AdjustBudget)
	fin.GET("/forecast", h.Forecast)

	fin.GET("/requests", h.ListRequests)
	fin.POST("/requests", h.CreateRequest)
	fin.GET("/requests/:id", h.GetRequest)
	fin.PATCH("/requests/:id/approve", owner, h.ApproveRequest)
	fin.PATCH("/requests/:id/reject", owner, h.RejectRequest)

	fin.GET("/disbursements", h.ListDisbursements)
	fin.POST("/disbursements", owner, h.CreateDisbursement)
	fin.POST("/disbursements/approve-all", owner, h.ApproveAllPending)
	fin.PATCH("/disbursements/:id/status", owner, h.UpdateDisbursementStatus)

	fin.GET("/audit", h.AuditLog)
}

// Healthz reports whether the ledger database answers a ping.
func Healthz(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			logger.FromGin(c).Warn("health check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// --- Budget ---

type adjustBudgetRequest struct {
	TotalBudget *decimal.Decimal `json:"total_budget"`
	Reason      string           `json:"reason"`
}

func (h Handlers) Overview(c *gin.Context) {
	ov, err := h.Finance.Overview(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ov)
}

func (h Handlers) AdjustBudget(c *gin.Context) {
	var req adjustBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.TotalBudget == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "total_budget required"})
		return
	}
	b, err := h.Finance.AdjustBudget(c.Request.Context(), c.Param("project_id"), *req.TotalBudget, req.Reason, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) Forecast(c *gin.Context) {
	res, err := h.Finance.Forecast(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Fund requests ---

type createRequestRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	Category      string           `json:"category"`
	Justification string           `json:"justification"`
}

type approveRequestRequest struct {
	AdjustedAmount *decimal.Decimal `json:"adjusted_amount"`
	Note           string           `json:"note"`
}

type rejectRequestRequest struct {
	Note string `json:"note"`
}

func (h Handlers) ListRequests(c *gin.Context) {
	rs, err := h.Finance.ListRequests(c.Request.Context(), c.Param("project_id"), c.Query("status"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rs)
}

func (h Handlers) CreateRequest(c *gin.Context) {
	var req createRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Amount == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount required"})
		return
	}
	r, err := h.Finance.CreateRequest(c.Request.Context(), c.Param("project_id"), actor(c), *req.Amount, req.Category, req.Justification)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) GetRequest(c *gin.Context) {
	r, err := h.Finance.GetRequest(c.Request.Context(), c.Param("project_id"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ApproveRequest(c *gin.Context) {
	var req approveRequestRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	res, err := h.Finance.ApproveRequest(c.Request.Context(), c.Param("project_id"), c.Param("id"), actor(c), req.AdjustedAmount, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) RejectRequest(c *gin.Context) {
	var req rejectRequestRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	r, err := h.Finance.RejectRequest(c.Request.Context(), c.Param("project_id"), c.Param("id"), actor(c), req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- Disbursements ---

type createDisbursementRequest struct {
	RecipientID string           `json:"recipient_id"`
	Amount      *decimal.Decimal `json:"amount"`
	Category    string           `json:"category"`
	Description string           `json:"description"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) ListDisbursements(c *gin.Context) {
	ds, err := h.Finance.ListDisbursements(c.Request.Context(), c.Param("project_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ds)
}

func (h Handlers) CreateDisbursement(c *gin.Context) {
	var req createDisbursementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Amount == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount required"})
		return
	}
	d, err := h.Finance.CreateDisbursement(c.Request.Context(), c.Param("project_id"), actor(c), req.RecipientID, *req.Amount, req.Category, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h Handlers) UpdateDisbursementStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d, err := h.Finance.UpdateDisbursementStatus(c.Request.Context(), c.Param("project_id"), c.Param("id"), req.Status, actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h Handlers) ApproveAllPending(c *gin.Context) {
	p, err := h.Finance.ApproveAllPending(c.Request.Context(), c.Param("project_id"), actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- Audit ---

func (h Handlers) AuditLog(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	entries, err := h.Finance.AuditLog(c.Request.Context(), c.Param("project_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// --- helpers ---

func actor(c *gin.Context) string {
	uid, _ := auth.UserID(c.Request.Context())
	return uid
}

// bindOptionalJSON accepts an empty body for endpoints whose fields are all optional.
func bindOptionalJSON(c *gin.Context, dst any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return false
	}
	return true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, finance.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, finance.ErrNotConfigured), errors.Is(err, finance.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, finance.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("finance operation failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
