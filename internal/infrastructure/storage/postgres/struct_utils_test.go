package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain/catalog"
)

type Stamped struct {
	CreatedAt time.Time `db:"created_at"`
}

type embedded struct {
	Stamped
	Name    string `db:"name"`
	Ignored string `db:"-"`
	Plain   string
}

func TestColumns_EmbeddedAndIgnored(t *testing.T) {
	assert.Equal(t, []string{"created_at", "name"}, Columns[embedded]())
}

func TestColumns_CatalogItem(t *testing.T) {
	cols := Columns[catalog.Item]()

	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "quantity_on_hand")
	assert.Contains(t, cols, "retired_at")
	assert.NotContains(t, cols, "")
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	itemID := id.New()
	m := StructToMap(&catalog.Item{ID: itemID, TenantID: "clinic-a", Name: "Paracetamol", QuantityOnHand: 7, CreatedAt: now})

	assert.Equal(t, itemID, m["id"])
	assert.Equal(t, "clinic-a", m["tenant_id"])
	assert.Equal(t, int64(7), m["quantity_on_hand"])
	assert.Equal(t, now, m["created_at"])

	e := StructToMap(embedded{Stamped: Stamped{CreatedAt: now}, Name: "x"})
	assert.Equal(t, map[string]any{"created_at": now, "name": "x"}, e)

	assert.Nil(t, StructToMap(42))
}

func TestPick(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2}
	assert.Equal(t, map[string]any{"a": 1}, Pick(data, []string{"a", "missing"}))
}
