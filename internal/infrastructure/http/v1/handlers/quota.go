package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/infrastructure/http/v1/dto"
)

const defaultHistoryLimit = 20

// QuotaHandler serves subscription usage and plan changes.
type QuotaHandler struct {
	*BaseHandler
	gate *quota.Gate
}

// NewQuotaHandler creates a new quota handler.
func NewQuotaHandler(base *BaseHandler, gate *quota.Gate) *QuotaHandler {
	return &QuotaHandler{BaseHandler: base, gate: gate}
}

// Usage handles GET /quota/usage
func (h *QuotaHandler) Usage(c *gin.Context) {
	usage, err := h.gate.Usage(c.Request.Context(), h.TenantID(c))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, usage)
}

// Check handles POST /quota/check/:class
// It reports whether one more resource could be created, without reserving it.
func (h *QuotaHandler) Check(c *gin.Context) {
	class, err := quota.ParseClass(c.Param("class"))
	if err != nil {
		h.Error(c, err)
		return
	}
	decision, err := h.gate.Check(c.Request.Context(), h.TenantID(c), class)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, decision)
}

// ChangePlan handles POST /quota/plan
func (h *QuotaHandler) ChangePlan(c *gin.Context) {
	var req dto.PlanChangeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cycle, err := quota.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		h.Error(c, err)
		return
	}

	sub, err := h.gate.ChangePlan(c.Request.Context(), h.TenantID(c), quota.PlanChange{PlanName: req.Plan, BillingCycle: cycle})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSubscription(sub))
}

// Plans handles GET /quota/plans
func (h *QuotaHandler) Plans(c *gin.Context) {
	h.OK(c, gin.H{"plans": h.gate.Plans()})
}

// History handles GET /quota/history
func (h *QuotaHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.Error(c, apperror.NewFieldValidation("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	subs, err := h.gate.History(c.Request.Context(), h.TenantID(c), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"subscriptions": dto.FromSubscriptions(subs)})
}
