package dto

import (
	"time"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/ledger"
)

// MovementRequest records one stock movement. ADJUSTMENT takes a signed delta instead of quantity.
type MovementRequest struct {
	MovementType  string       `json:"movement_type" binding:"required"`
	Quantity      int64        `json:"quantity"`
	Delta         int64        `json:"delta"`
	UnitCost      *types.Money `json:"unit_cost"`
	ReferenceType string       `json:"reference_type"`
	ReferenceID   *string      `json:"reference_id"`
	SupplierName  string       `json:"supplier_name"`
	BatchNumber   string       `json:"batch_number"`
	ExpiryDate    *Date        `json:"expiry_date"`
	Notes         string       `json:"notes"`
}

// ToRecordRequest validates the movement type and builds the ledger request.
func (r MovementRequest) ToRecordRequest(itemID id.ID) (ledger.RecordRequest, error) {
	t, err := ledger.ParseMovementType(r.MovementType)
	if err != nil {
		return ledger.RecordRequest{}, err
	}
	return ledger.RecordRequest{
		ItemID:        itemID,
		Type:          t,
		Quantity:      r.Quantity,
		Delta:         r.Delta,
		UnitCost:      r.UnitCost,
		ReferenceType: r.ReferenceType,
		ReferenceID:   r.ReferenceID,
		SupplierName:  r.SupplierName,
		BatchNumber:   r.BatchNumber,
		ExpiryDate:    r.ExpiryDate.Ptr(),
		Notes:         r.Notes,
	}, nil
}

// MovementResponse is one ledger entry.
type MovementResponse struct {
	ID            string              `json:"id"`
	ItemID        string              `json:"item_id"`
	MovementType  ledger.MovementType `json:"movement_type"`
	Quantity      int64               `json:"quantity"`
	Delta         int64               `json:"delta"`
	UnitCost      *types.Money        `json:"unit_cost"`
	TotalCost     *types.Money        `json:"total_cost"`
	ReferenceType string              `json:"reference_type"`
	ReferenceID   *string             `json:"reference_id"`
	SupplierName  string              `json:"supplier_name"`
	BatchNumber   string              `json:"batch_number"`
	ExpiryDate    *Date               `json:"expiry_date"`
	Notes         string              `json:"notes"`
	CreatedBy     string              `json:"created_by"`
	CreatedAt     time.Time           `json:"created_at"`
}

func FromMovement(m *ledger.Movement) MovementResponse {
	return MovementResponse{
		ID:            m.ID.String(),
		ItemID:        m.ItemID.String(),
		MovementType:  m.Type,
		Quantity:      m.Quantity,
		Delta:         m.Delta,
		UnitCost:      m.UnitCost,
		TotalCost:     m.TotalCost,
		ReferenceType: m.ReferenceType,
		ReferenceID:   m.ReferenceID,
		SupplierName:  m.SupplierName,
		BatchNumber:   m.BatchNumber,
		ExpiryDate:    NewDate(m.ExpiryDate),
		Notes:         m.Notes,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}
}

func FromMovements(ms []*ledger.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, FromMovement(m))
	}
	return out
}

// MovementResultResponse is the outcome of a recorded movement.
type MovementResultResponse struct {
	Message     string           `json:"message"`
	NewQuantity int64            `json:"new_quantity"`
	Movement    MovementResponse `json:"movement"`
	Item        ItemResponse     `json:"item"`
}

// MovementHistoryQuery filters the movement history. Dates are inclusive calendar days.
type MovementHistoryQuery struct {
	PageQuery
	ItemID       string `form:"item_id"`
	MovementType string `form:"movement_type"`
	StartDate    string `form:"start_date"`
	EndDate      string `form:"end_date"`
}

// ToFilter parses the query. itemID, when set, overrides the item_id parameter.
func (q MovementHistoryQuery) ToFilter(itemID *id.ID) (ledger.HistoryFilter, error) {
	limit, offset := domain.Page(q.Page, q.PerPage)
	f := ledger.HistoryFilter{
		ItemID: itemID,
		Limit:  limit,
		Offset: offset,
	}
	if q.MovementType != "" {
		t, err := ledger.ParseMovementType(q.MovementType)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	if f.ItemID == nil && q.ItemID != "" {
		parsed, err := id.Parse(q.ItemID)
		if err != nil {
			return f, apperror.NewFieldValidation("item_id", "item_id must be a UUID")
		}
		f.ItemID = &parsed
	}
	var err error
	if f.From, err = parseDateParam("start_date", q.StartDate); err != nil {
		return f, err
	}
	if f.To, err = parseDateParam("end_date", q.EndDate); err != nil {
		return f, err
	}
	return f, nil
}

func parseDateParam(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, apperror.NewFieldValidation(field, field+" must be YYYY-MM-DD")
	}
	return &t, nil
}

// MovementListResponse is one page of movement history.
type MovementListResponse struct {
	Movements  []MovementResponse `json:"movements"`
	Pagination Pagination         `json:"pagination"`
}
