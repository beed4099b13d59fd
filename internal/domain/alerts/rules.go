// Package alerts evaluates named stock alert rules written in CEL against catalog items.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"pharmaledger/internal/domain/catalog"
)

// Severity of a raised alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rule is a named boolean CEL expression over the variable `item`.
//
// Available fields: name, category, quantity, reorder_level, max_stock_level,
// is_low_stock, is_expired, has_expiry, days_to_expiry, stock_status,
// prescription_required, is_banned.
type Rule struct {
	Name     string   `json:"name"`
	Expr     string   `json:"expr"`
	Severity Severity `json:"severity"`
}

// DefaultRules are evaluated when no rules are configured.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "out_of_stock", Expr: `item.quantity == 0`, Severity: SeverityCritical},
		{Name: "low_stock", Expr: `item.quantity > 0 && item.is_low_stock`, Severity: SeverityWarning},
		{Name: "expired", Expr: `item.is_expired`, Severity: SeverityCritical},
		{Name: "expiring_7d", Expr: `item.has_expiry && !item.is_expired && item.days_to_expiry <= 7`, Severity: SeverityWarning},
	}
}

// ParseRules reads rules from a config string: entries separated by ';', each
// `name=expr` or `name:severity=expr`. Blank entries are skipped.
func ParseRules(spec string) ([]Rule, error) {
	var rules []Rule
	for _, entry := range strings.Split(spec, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		head, expr, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(expr) == "" {
			return nil, fmt.Errorf("alert rule %q: expected name=expression", entry)
		}
		rule := Rule{Expr: strings.TrimSpace(expr), Severity: SeverityWarning}
		name, severity, hasSeverity := strings.Cut(strings.TrimSpace(head), ":")
		rule.Name = strings.TrimSpace(name)
		if hasSeverity {
			rule.Severity = Severity(strings.TrimSpace(severity))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

type compiled struct {
	Rule
	program cel.Program
}

// Engine holds compiled rules. It is safe for concurrent use.
type Engine struct {
	rules []compiled
}

// NewEngine compiles rules; any rule that fails to compile or is not boolean is an error.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	e := &Engine{}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, fmt.Errorf("alert rule name is required")
		}
		if seen[r.Name] {
			return nil, fmt.Errorf("duplicate alert rule %q", r.Name)
		}
		seen[r.Name] = true
		switch r.Severity {
		case "":
			r.Severity = SeverityWarning
		case SeverityInfo, SeverityWarning, SeverityCritical:
		default:
			return nil, fmt.Errorf("alert rule %q: unknown severity %q", r.Name, r.Severity)
		}

		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("alert rule %q: %w", r.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("alert rule %q: expression must be boolean, got %s", r.Name, out)
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("alert rule %q: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiled{Rule: r, program: prg})
	}
	return e, nil
}

// Rules returns the compiled rule definitions.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		out[i] = r.Rule
	}
	return out
}

// Alert is one rule matching one item.
type Alert struct {
	Rule     string              `json:"rule"`
	Severity Severity            `json:"severity"`
	ItemID   string              `json:"item_id"`
	ItemName string              `json:"item_name"`
	Quantity int64               `json:"quantity"`
	Status   catalog.StockStatus `json:"stock_status"`
}

// Evaluate runs every rule against every item. A rule that errors at runtime
// for an item (for example a non-boolean result) is reported as an error.
func (e *Engine) Evaluate(items []*catalog.Item, today time.Time) ([]Alert, error) {
	alerts := []Alert{}
	for _, item := range items {
		vars := map[string]any{"item": view(item, today)}
		for _, r := range e.rules {
			out, _, err := r.program.Eval(vars)
			if err != nil {
				return nil, fmt.Errorf("alert rule %q on item %s: %w", r.Name, item.ID, err)
			}
			hit, ok := out.Value().(bool)
			if !ok {
				return nil, fmt.Errorf("alert rule %q on item %s: non-boolean result", r.Name, item.ID)
			}
			if hit {
				alerts = append(alerts, Alert{
					Rule:     r.Name,
					Severity: r.Severity,
					ItemID:   item.ID.String(),
					ItemName: item.Name,
					Quantity: item.QuantityOnHand,
					Status:   item.Status(),
				})
			}
		}
	}
	return alerts, nil
}

func view(item *catalog.Item, today time.Time) map[string]any {
	days := int64(0)
	if d := item.DaysToExpiry(today); d != nil {
		days = int64(*d)
	}
	return map[string]any{
		"name":                  item.Name,
		"category":              item.Category,
		"quantity":              item.QuantityOnHand,
		"reorder_level":         item.ReorderLevel,
		"max_stock_level":       item.MaxStockLevel,
		"is_low_stock":          item.IsLowStock(),
		"is_expired":            item.IsExpired(today),
		"has_expiry":            item.ExpiryDate != nil,
		"days_to_expiry":        days,
		"stock_status":          string(item.Status()),
		"prescription_required": item.PrescriptionRequired,
		"is_banned":             item.IsBanned,
	}
}
