package quota_repo

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/squirrel"

	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/infrastructure/storage/postgres"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// TableCounter counts active rows of externally owned tables, one table per class.
// Each table is expected to carry tenant_id and is_active columns.
type TableCounter struct {
	txm    *postgres.TxManager
	tables map[quota.ResourceClass]string
}

// NewTableCounter validates table names up front since they are interpolated into SQL.
func NewTableCounter(txm *postgres.TxManager, tables map[quota.ResourceClass]string) (*TableCounter, error) {
	for class, table := range tables {
		if !tableNamePattern.MatchString(table) {
			return nil, fmt.Errorf("count table for %s: invalid name %q", class, table)
		}
	}
	return &TableCounter{txm: txm, tables: tables}, nil
}

func (c *TableCounter) countQuery(tenantID string, class quota.ResourceClass) (squirrel.SelectBuilder, error) {
	table, ok := c.tables[class]
	if !ok {
		return squirrel.SelectBuilder{}, fmt.Errorf("no count table for resource class %q", class)
	}
	return builder().Select("COUNT(*)").From(table).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active"), nil
}

func (c *TableCounter) Count(ctx context.Context, tenantID string, class quota.ResourceClass) (int64, error) {
	q, err := c.countQuery(tenantID, class)
	if err != nil {
		return 0, err
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := c.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", class, err)
	}
	return n, nil
}

// Classes lists the classes this counter serves.
func (c *TableCounter) Classes() []quota.ResourceClass {
	out := make([]quota.ResourceClass, 0, len(c.tables))
	for _, class := range quota.Classes() {
		if _, ok := c.tables[class]; ok {
			out = append(out, class)
		}
	}
	return out
}
