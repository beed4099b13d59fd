// Package ledger_repo provides the PostgreSQL stock movement log.
// The repository only inserts and reads; no statement here updates or deletes a movement.
package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain"
	"pharmaledger/internal/domain/ledger"
	"pharmaledger/internal/infrastructure/storage/postgres"
)

const tableName = "stock_movements"

// signedSum mirrors ledger.Movement.SignedQuantity: the sign comes from the type,
// only ADJUSTMENT trusts the stored delta.
const signedSum = `COALESCE(SUM(CASE movement_type
	WHEN 'IN' THEN quantity
	WHEN 'OUT' THEN -quantity
	WHEN 'EXPIRED' THEN -quantity
	WHEN 'DAMAGED' THEN -quantity
	ELSE delta END), 0)`

// MovementRepo implements ledger.Repository.
type MovementRepo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ ledger.Repository = (*MovementRepo)(nil)

func NewMovementRepo(txm *postgres.TxManager) *MovementRepo {
	return &MovementRepo{txm: txm, columns: postgres.Columns[ledger.Movement]()}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *MovementRepo) Append(ctx context.Context, m *ledger.Movement) error {
	sql, args, err := builder().
		Insert(tableName).
		SetMap(postgres.Pick(postgres.StructToMap(m), r.columns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}

// historyQuery applies f to the tenant's movements. To is an inclusive calendar date.
func historyQuery(q squirrel.SelectBuilder, tenantID string, f ledger.HistoryFilter) squirrel.SelectBuilder {
	q = q.From(tableName).Where(squirrel.Eq{"tenant_id": tenantID})
	if f.ItemID != nil {
		q = q.Where(squirrel.Eq{"item_id": f.ItemID.String()})
	}
	if f.Type != "" {
		q = q.Where(squirrel.Eq{"movement_type": string(f.Type)})
	}
	if f.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": types.Date(*f.From)})
	}
	if f.To != nil {
		q = q.Where(squirrel.Lt{"created_at": types.Date(*f.To).AddDate(0, 0, 1)})
	}
	return q
}

func (r *MovementRepo) List(ctx context.Context, tenantID string, f ledger.HistoryFilter) (domain.ListResult[*ledger.Movement], error) {
	result := domain.ListResult[*ledger.Movement]{Items: []*ledger.Movement{}, Limit: f.Limit, Offset: f.Offset}
	querier := r.txm.GetQuerier(ctx)

	countSQL, countArgs, err := historyQuery(builder().Select("COUNT(*)"), tenantID, f).ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count movements: %w", err)
	}

	q := historyQuery(builder().Select(r.columns...), tenantID, f).OrderBy("created_at DESC", "id DESC")
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
		return result, fmt.Errorf("list movements: %w", err)
	}
	return result, nil
}

func sumQuery(tenantID string, itemID id.ID) squirrel.SelectBuilder {
	return builder().Select(signedSum).From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID, "item_id": itemID.String()})
}

func (r *MovementRepo) SumForItem(ctx context.Context, tenantID string, itemID id.ID) (int64, error) {
	sql, args, err := sumQuery(tenantID, itemID).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build sum query: %w", err)
	}
	var sum int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum movements: %w", err)
	}
	return sum, nil
}

func (r *MovementRepo) CountSince(ctx context.Context, tenantID string, since time.Time) (int64, error) {
	sql, args, err := builder().Select("COUNT(*)").From(tableName).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where(squirrel.GtOrEq{"created_at": since}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int64
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count movements: %w", err)
	}
	return n, nil
}
