package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain/catalog"
)

var today = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func item(name string, qty int64, expiryInDays *int) *catalog.Item {
	it := &catalog.Item{ID: id.New(), Name: name, QuantityOnHand: qty, ReorderLevel: 10, MaxStockLevel: 1000, IsActive: true}
	if expiryInDays != nil {
		d := today.AddDate(0, 0, *expiryInDays)
		it.ExpiryDate = &d
	}
	return it
}

func days(n int) *int { return &n }

func rulesHit(alerts []Alert, itemName string) []string {
	var out []string
	for _, a := range alerts {
		if a.ItemName == itemName {
			out = append(out, a.Rule)
		}
	}
	return out
}

func TestDefaultRules(t *testing.T) {
	engine, err := NewEngine(DefaultRules())
	require.NoError(t, err)

	alerts, err := engine.Evaluate([]*catalog.Item{
		item("empty", 0, nil),
		item("low", 4, nil),
		item("fine", 200, days(90)),
		item("soon", 200, days(7)),
		item("gone", 50, days(-1)),
	}, today)
	require.NoError(t, err)

	assert.Equal(t, []string{"out_of_stock"}, rulesHit(alerts, "empty"))
	assert.Equal(t, []string{"low_stock"}, rulesHit(alerts, "low"))
	assert.Empty(t, rulesHit(alerts, "fine"))
	assert.Equal(t, []string{"expiring_7d"}, rulesHit(alerts, "soon"))
	assert.Equal(t, []string{"expired"}, rulesHit(alerts, "gone"))
}

func TestParseRules(t *testing.T) {
	rules, err := ParseRules(" controlled:critical = item.prescription_required && item.quantity < 5 ; ;bulk=item.quantity > 900")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Name: "controlled", Expr: "item.prescription_required && item.quantity < 5", Severity: SeverityCritical}, rules[0])
	assert.Equal(t, SeverityWarning, rules[1].Severity)

	_, err = ParseRules("missing-expression")
	assert.Error(t, err)
}

func TestNewEngine_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name  string
		rules []Rule
	}{
		{"syntax", []Rule{{Name: "bad", Expr: "item.quantity =="}}},
		{"not boolean", []Rule{{Name: "sum", Expr: "1 + 2"}}},
		{"unknown variable", []Rule{{Name: "ghost", Expr: "stock.quantity == 0"}}},
		{"duplicate", []Rule{{Name: "a", Expr: "true"}, {Name: "a", Expr: "false"}}},
		{"severity", []Rule{{Name: "a", Expr: "true", Severity: "panic"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(tt.rules)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_NonBooleanAtRuntime(t *testing.T) {
	engine, err := NewEngine([]Rule{{Name: "oops", Expr: "item.name"}})
	require.NoError(t, err)

	_, err = engine.Evaluate([]*catalog.Item{item("x", 1, nil)}, today)
	assert.Error(t, err)
}

type staticItems []*catalog.Item

func (s staticItems) ListActive(context.Context, string) ([]*catalog.Item, error) { return s, nil }

func TestService_Evaluate(t *testing.T) {
	engine, err := NewEngine([]Rule{{Name: "antibiotic_low", Expr: `item.category == "Antibiotic" && item.quantity < 20`}})
	require.NoError(t, err)
	amox := item("Amoxicillin", 12, nil)
	amox.Category = "Antibiotic"
	svc := NewService(staticItems{amox, item("Saline", 5, nil)}, engine, func() time.Time { return today })

	alerts, err := svc.Evaluate(context.Background(), "clinic-a")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Amoxicillin", alerts[0].ItemName)
	assert.Equal(t, SeverityWarning, alerts[0].Severity)
}
