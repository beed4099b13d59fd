package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/infrastructure/http/v1/dto"
)

// RecentMovementCount is the number of movements shown on the item detail.
const RecentMovementCount = 10

// InventoryHandler serves catalog items and their stock movements.
type InventoryHandler struct {
	*BaseHandler
	catalog *catalog.Service
	ledger  *ledger.Service
	now     func() time.Time
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(base *BaseHandler, catalogService *catalog.Service, ledgerService *ledger.Service, now func() time.Time) *InventoryHandler {
	if now == nil {
		now = time.Now
	}
	return &InventoryHandler{
		BaseHandler: base,
		catalog:     catalogService,
		ledger:      ledgerService,
		now:         now,
	}
}

func (h *InventoryHandler) today() time.Time {
	return types.Date(h.now())
}

// List handles GET /inventory/items
func (h *InventoryHandler) List(c *gin.Context) {
	var q dto.ItemListQuery
	if !h.BindQuery(c, &q) {
		return
	}

	page, err := h.catalog.List(c.Request.Context(), h.TenantID(c), q.ToQuery())
	if err != nil {
		h.Error(c, err)
		return
	}

	categories := page.Categories
	if categories == nil {
		categories = []string{}
	}
	h.OK(c, dto.ItemListResponse{
		Items:      dto.FromItems(page.Items, h.today()),
		Pagination: dto.NewPagination(page.TotalCount, page.Limit, page.Offset),
		Categories: categories,
		Summary:    page.Summary,
	})
}

// Create handles POST /inventory/items
func (h *InventoryHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.catalog.Create(c.Request.Context(), h.TenantID(c), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromItem(item, h.today()))
}

// Get handles GET /inventory/items/:id
func (h *InventoryHandler) Get(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tenantID := h.TenantID(c)

	item, err := h.catalog.Get(ctx, tenantID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	recent, err := h.ledger.Recent(ctx, tenantID, itemID, RecentMovementCount)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ItemDetailResponse{
		Item:            dto.FromItem(item, h.today()),
		RecentMovements: dto.FromMovements(recent),
	})
}

// Update handles PUT /inventory/items/:id
// quantity_on_hand is not an editable field; stock changes go through movements.
func (h *InventoryHandler) Update(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.ItemFields
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.catalog.Update(c.Request.Context(), h.TenantID(c), itemID, req.ToFields())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromItem(item, h.today()))
}

// Retire handles DELETE /inventory/items/:id
func (h *InventoryHandler) Retire(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.Retire(c.Request.Context(), h.TenantID(c), itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.Message(c, "Item retired")
}

// RecordMovement handles POST /inventory/items/:id/movements
func (h *InventoryHandler) RecordMovement(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.MovementRequest
	if !h.BindJSON(c, &req) {
		return
	}
	record, err := req.ToRecordRequest(itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.ledger.Record(c.Request.Context(), h.TenantID(c), record)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.MovementResultResponse{
		Message:     fmt.Sprintf("Stock %s recorded", result.Movement.Type),
		NewQuantity: result.Item.QuantityOnHand,
		Movement:    dto.FromMovement(result.Movement),
		Item:        dto.FromItem(result.Item, h.today()),
	})
}

// ItemMovements handles GET /inventory/items/:id/movements
func (h *InventoryHandler) ItemMovements(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	if _, err := h.catalog.Get(c.Request.Context(), h.TenantID(c), itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.history(c, &itemID)
}

// Movements handles GET /inventory/movements
func (h *InventoryHandler) Movements(c *gin.Context) {
	h.history(c, nil)
}

func (h *InventoryHandler) history(c *gin.Context, itemID *id.ID) {
	var q dto.MovementHistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}
	filter, err := q.ToFilter(itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.ledger.History(c.Request.Context(), h.TenantID(c), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.MovementListResponse{
		Movements:  dto.FromMovements(result.Items),
		Pagination: dto.NewPagination(result.TotalCount, result.Limit, result.Offset),
	})
}

// ReconcileItem handles POST /inventory/items/:id/reconcile
// The cached quantity is repaired unless repair=false is given.
func (h *InventoryHandler) ReconcileItem(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	repair, ok := h.repairFlag(c)
	if !ok {
		return
	}

	drift, err := h.ledger.Reconcile(c.Request.Context(), h.TenantID(c), itemID, repair)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, drift)
}

// ReconcileAll handles POST /inventory/reconcile
func (h *InventoryHandler) ReconcileAll(c *gin.Context) {
	repair, ok := h.repairFlag(c)
	if !ok {
		return
	}

	report, err := h.ledger.ReconcileTenant(c.Request.Context(), h.TenantID(c), repair)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, report)
}

func (h *InventoryHandler) repairFlag(c *gin.Context) (bool, bool) {
	raw := c.Query("repair")
	if raw == "" {
		return true, true
	}
	repair, err := strconv.ParseBool(raw)
	if err != nil {
		h.Error(c, apperror.NewFieldValidation("repair", "repair must be true or false"))
		return false, false
	}
	return repair, true
}
