// Package ledger implements the append-only stock movement log and keeps the
// cached quantity of every catalog item equal to the signed sum of its movements.
package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
)

// MovementType is the kind of a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
	MovementExpired    MovementType = "EXPIRED"
	MovementDamaged    MovementType = "DAMAGED"
)

// MovementTypes lists every movement type.
func MovementTypes() []MovementType {
	return []MovementType{MovementIn, MovementOut, MovementAdjustment, MovementExpired, MovementDamaged}
}

// ParseMovementType validates a movement type name (case-insensitive).
func ParseMovementType(s string) (MovementType, error) {
	t := MovementType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range MovementTypes() {
		if t == known {
			return t, nil
		}
	}
	return "", apperror.NewFieldValidation("movement_type", fmt.Sprintf("unknown movement type %q", s))
}

// Reference types used by the service itself. Callers may pass any other tag.
const (
	RefInitialStock     = "INITIAL_STOCK"
	RefImportMerge      = "IMPORT_MERGE"
	RefManualAdjustment = "MANUAL_ADJUSTMENT"
	RefPurchase         = "PURCHASE"
	RefSale             = "SALE"
	RefPrescription     = "PRESCRIPTION"
	RefReturn           = "RETURN"
)

// SignedDelta maps a movement to its signed change of quantity on hand.
// It is the only place the sign convention lives.
//
// IN, OUT, EXPIRED and DAMAGED take a positive quantity and derive the sign
// from the type. ADJUSTMENT ignores quantity and requires a non-zero signed
// adjustment; its stored quantity is the absolute value.
func SignedDelta(t MovementType, quantity, adjustment int64) (int64, error) {
	switch t {
	case MovementIn:
		if quantity <= 0 {
			return 0, errQuantity()
		}
		return quantity, nil
	case MovementOut, MovementExpired, MovementDamaged:
		if quantity <= 0 {
			return 0, errQuantity()
		}
		return -quantity, nil
	case MovementAdjustment:
		if adjustment == 0 {
			return 0, apperror.NewFieldValidation("delta", "adjustment requires a non-zero signed delta")
		}
		if adjustment == math.MinInt64 {
			return 0, apperror.NewFieldValidation("delta", "adjustment delta is out of range")
		}
		return adjustment, nil
	default:
		return 0, apperror.NewFieldValidation("movement_type", fmt.Sprintf("unknown movement type %q", t))
	}
}

func errQuantity() error {
	return apperror.NewFieldValidation("quantity", "quantity must be a positive integer")
}

// Movement is one immutable ledger entry.
type Movement struct {
	ID       id.ID        `db:"id"`
	TenantID string       `db:"tenant_id"`
	ItemID   id.ID        `db:"item_id"`
	Type     MovementType `db:"movement_type"`

	// Quantity is the positive magnitude; Delta the signed effect on quantity on hand.
	Quantity int64 `db:"quantity"`
	Delta    int64 `db:"delta"`

	UnitCost  *types.Money `db:"unit_cost"`
	TotalCost *types.Money `db:"total_cost"`

	ReferenceType string     `db:"reference_type"`
	ReferenceID   *string    `db:"reference_id"`
	SupplierName  string     `db:"supplier_name"`
	BatchNumber   string     `db:"batch_number"`
	ExpiryDate    *time.Time `db:"expiry_date"`
	Notes         string     `db:"notes"`

	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
}

// SignedQuantity recomputes the movement's effect from its type and quantity.
// Reconciliation uses it, never the stored Delta, except for ADJUSTMENT.
func (m *Movement) SignedQuantity() int64 {
	switch m.Type {
	case MovementIn:
		return m.Quantity
	case MovementOut, MovementExpired, MovementDamaged:
		return -m.Quantity
	default:
		return m.Delta
	}
}

// RecordRequest is the input of Record.
type RecordRequest struct {
	ItemID   id.ID
	Type     MovementType
	Quantity int64
	// Delta is the signed change, used only by ADJUSTMENT.
	Delta int64

	// UnitCost defaults to the item's cost price.
	UnitCost *types.Money
	// ReferenceType defaults to MANUAL_ADJUSTMENT.
	ReferenceType string
	ReferenceID   *string
	SupplierName  string
	BatchNumber   string
	ExpiryDate    *time.Time
	Notes         string
}
