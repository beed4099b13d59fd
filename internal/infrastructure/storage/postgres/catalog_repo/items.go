// Package catalog_repo provides the PostgreSQL catalog item repository.
// Every query is scoped by tenant_id; a row of another tenant is indistinguishable from a missing one.
package catalog_repo

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/catalog"
	"pharmaledger/internal/infrastructure/storage/postgres"
)

const (
	tableName  = "catalog_items"
	entityName = "catalog item"
)

// Columns the Update statement never writes.
var immutableColumns = []string{"id", "tenant_id", "quantity_on_hand", "created_at"}

// ItemRepo implements catalog.Repository.
type ItemRepo struct {
	txm        *postgres.TxManager
	columns    []string
	updateCols []string
}

var _ catalog.Repository = (*ItemRepo)(nil)

// NewItemRepo creates the repository.
func NewItemRepo(txm *postgres.TxManager) *ItemRepo {
	cols := postgres.Columns[catalog.Item]()
	update := slices.DeleteFunc(slices.Clone(cols), func(c string) bool {
		return slices.Contains(immutableColumns, c)
	})
	return &ItemRepo{txm: txm, columns: cols, updateCols: update}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *ItemRepo) baseSelect(tenantID string) squirrel.SelectBuilder {
	return builder().Select(r.columns...).From(tableName).Where(squirrel.Eq{"tenant_id": tenantID})
}

func (r *ItemRepo) Create(ctx context.Context, item *catalog.Item) error {
	sql, args, err := builder().
		Insert(tableName).
		SetMap(postgres.Pick(postgres.StructToMap(item), r.columns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert %s: %w", tableName, err)
	}
	return nil
}

func (r *ItemRepo) Get(ctx context.Context, tenantID string, itemID id.ID) (*catalog.Item, error) {
	return r.getOne(ctx, r.baseSelect(tenantID).Where(squirrel.Eq{"id": itemID.String()}), itemID.String())
}

func (r *ItemRepo) GetForUpdate(ctx context.Context, tenantID string, itemID id.ID) (*catalog.Item, error) {
	return r.getOne(ctx, r.baseSelect(tenantID).Where(squirrel.Eq{"id": itemID.String()}).Suffix("FOR UPDATE"), itemID.String())
}

func (r *ItemRepo) FindActiveByName(ctx context.Context, tenantID, name string) (*catalog.Item, error) {
	q := r.baseSelect(tenantID).
		Where("is_active").
		Where(squirrel.Eq{"name": name}).
		OrderBy("created_at ASC", "id ASC").
		Limit(1).
		Suffix("FOR UPDATE")
	return r.getOne(ctx, q, name)
}

// LockName takes a transaction-scoped advisory lock on (tenant, name) so two
// imports of a new name cannot both decide to create it.
func (r *ItemRepo) LockName(ctx context.Context, tenantID, name string) error {
	if r.txm.GetTx(ctx) == nil {
		return fmt.Errorf("lock name: no transaction in context")
	}
	_, err := r.txm.GetQuerier(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, nameLockKey(tenantID, name))
	if err != nil {
		return fmt.Errorf("lock name: %w", err)
	}
	return nil
}

func nameLockKey(tenantID, name string) string {
	return tableName + "\x00" + tenantID + "\x00" + name
}

func (r *ItemRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, ref string) (*catalog.Item, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var item catalog.Item
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(entityName, ref)
		}
		return nil, fmt.Errorf("get %s: %w", entityName, err)
	}
	return &item, nil
}

func (r *ItemRepo) Update(ctx context.Context, item *catalog.Item) error {
	q := builder().
		Update(tableName).
		SetMap(postgres.Pick(postgres.StructToMap(item), r.updateCols)).
		Where(squirrel.Eq{"tenant_id": item.TenantID, "id": item.ID.String()})
	return r.execOne(ctx, q, item.ID)
}

func (r *ItemRepo) SetQuantity(ctx context.Context, tenantID string, itemID id.ID, quantity int64, at time.Time) error {
	q := builder().
		Update(tableName).
		Set("quantity_on_hand", quantity).
		Set("updated_at", at).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": itemID.String()})
	return r.execOne(ctx, q, itemID)
}

func (r *ItemRepo) Retire(ctx context.Context, tenantID string, itemID id.ID, at time.Time) error {
	q := builder().
		Update(tableName).
		Set("is_active", false).
		Set("retired_at", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": itemID.String()}).
		Where("is_active")
	return r.execOne(ctx, q, itemID)
}

func (r *ItemRepo) execOne(ctx context.Context, q squirrel.UpdateBuilder, itemID id.ID) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update %s: %w", tableName, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound(entityName, itemID.String())
	}
	return nil
}

// filtered selects the tenant's active items matching f, without ordering or paging.
func filtered(q squirrel.SelectBuilder, f catalog.ListFilter) squirrel.SelectBuilder {
	q = q.Where("is_active")

	if f.Search != "" {
		pattern := "%" + escapeLike(f.Search) + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"generic_name": pattern},
			squirrel.ILike{"brand_name": pattern},
			squirrel.ILike{"manufacturer": pattern},
		})
	}
	if f.Category != "" {
		q = q.Where(squirrel.Eq{"category": f.Category})
	}

	today := types.Date(f.Today)
	switch f.Status {
	case catalog.FilterLowStock:
		q = q.Where("quantity_on_hand <= reorder_level")
	case catalog.FilterExpired:
		q = q.Where(squirrel.Lt{"expiry_date": today})
	case catalog.FilterExpiringSoon:
		q = q.Where(squirrel.GtOrEq{"expiry_date": today}).
			Where(squirrel.LtOrEq{"expiry_date": today.AddDate(0, 0, f.ExpiringWithinDays)})
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderClause translates an OrderBy value. Callers validate the column first.
func orderClause(orderBy string) []string {
	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
	}
	column := strings.TrimPrefix(orderBy, "-")
	if column == "" || !slices.Contains(catalog.SortColumns, column) {
		column = "name"
	}
	if column == "name" {
		column = "LOWER(name)"
	}
	return []string{column + " " + dir, "created_at ASC", "id ASC"}
}

func (r *ItemRepo) List(ctx context.Context, tenantID string, f catalog.ListFilter) (domain.ListResult[*catalog.Item], error) {
	result := domain.ListResult[*catalog.Item]{Items: []*catalog.Item{}, Limit: f.Limit, Offset: f.Offset}
	q := filtered(r.baseSelect(tenantID), f)

	countSQL, countArgs, err := builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	querier := r.txm.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	q = q.OrderBy(orderClause(f.OrderBy)...)
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list: %w", err)
	}
	return result, nil
}

func (r *ItemRepo) ListActive(ctx context.Context, tenantID string) ([]*catalog.Item, error) {
	sql, args, err := r.baseSelect(tenantID).Where("is_active").OrderBy("created_at ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []*catalog.Item
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) ListIDs(ctx context.Context, tenantID string) ([]id.ID, error) {
	sql, args, err := builder().Select("id").From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []id.ID
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	return ids, nil
}

func summaryQuery(tenantID string, today time.Time, expiringWithinDays int) squirrel.SelectBuilder {
	today = types.Date(today)
	soon := today.AddDate(0, 0, expiringWithinDays)
	return builder().
		Select(
			"COUNT(*)",
			"COUNT(*) FILTER (WHERE quantity_on_hand <= reorder_level)",
			"COUNT(*) FILTER (WHERE quantity_on_hand = 0)",
		).
		Column("COUNT(*) FILTER (WHERE expiry_date < ?)", today).
		Column("COUNT(*) FILTER (WHERE expiry_date >= ? AND expiry_date <= ?)", today, soon).
		Column("COALESCE(SUM(quantity_on_hand * COALESCE(cost_price, 0)), 0)").
		From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active")
}

func (r *ItemRepo) Summary(ctx context.Context, tenantID string, today time.Time, expiringWithinDays int) (catalog.Summary, error) {
	var s catalog.Summary
	sql, args, err := summaryQuery(tenantID, today, expiringWithinDays).ToSql()
	if err != nil {
		return s, fmt.Errorf("build summary: %w", err)
	}
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(
		&s.TotalActive, &s.LowStock, &s.OutOfStock, &s.Expired, &s.ExpiringSoon, &s.InventoryValue,
	)
	if err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}
	return s, nil
}

func (r *ItemRepo) Categories(ctx context.Context, tenantID string) ([]string, error) {
	sql, args, err := builder().Select("DISTINCT category").From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active").
		Where(squirrel.NotEq{"category": ""}).
		OrderBy("category").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []string
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	return out, nil
}

func topCategoriesQuery(tenantID string, limit int) squirrel.SelectBuilder {
	q := builder().Select("category", "COUNT(*) AS count").From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active").
		Where(squirrel.NotEq{"category": ""}).
		GroupBy("category").
		OrderBy("count DESC", "category ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func (r *ItemRepo) TopCategories(ctx context.Context, tenantID string, limit int) ([]catalog.CategoryCount, error) {
	sql, args, err := topCategoriesQuery(tenantID, limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []catalog.CategoryCount
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	return out, nil
}

func (r *ItemRepo) CountActive(ctx context.Context, tenantID string) (int64, error) {
	sql, args, err := builder().Select("COUNT(*)").From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active: %w", err)
	}
	return n, nil
}
