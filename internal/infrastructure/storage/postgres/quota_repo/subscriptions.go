// Package quota_repo stores subscription records and counts quota-bound resources in PostgreSQL.
package quota_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"pharmaledger/internal/core/apperror"
	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/quota"
	"pharmaledger/internal/infrastructure/storage/postgres"
)

const subscriptionsTable = "subscriptions"

// limitColumns maps each class to its sentinel-encoded column.
var limitColumns = map[quota.ResourceClass]string{
	quota.ClassDoctor:      "max_doctors",
	quota.ClassPatient:     "max_patients",
	quota.ClassStaff:       "max_staff",
	quota.ClassCatalogItem: "max_catalog_items",
}

// subscriptionRow is the storage shape; limits stay as sentinels until decode.
type subscriptionRow struct {
	ID              id.ID       `db:"id"`
	TenantID        string      `db:"tenant_id"`
	PlanName        string      `db:"plan_name"`
	MaxDoctors      int64       `db:"max_doctors"`
	MaxPatients     int64       `db:"max_patients"`
	MaxStaff        int64       `db:"max_staff"`
	MaxCatalogItems int64       `db:"max_catalog_items"`
	Features        []string    `db:"features"`
	BillingCycle    string      `db:"billing_cycle"`
	MonthlyFee      types.Money `db:"monthly_fee"`
	Amount          types.Money `db:"amount"`
	StartDate       time.Time   `db:"start_date"`
	EndDate         time.Time   `db:"end_date"`
	IsActive        bool        `db:"is_active"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (r *subscriptionRow) sentinels() map[quota.ResourceClass]int64 {
	return map[quota.ResourceClass]int64{
		quota.ClassDoctor:      r.MaxDoctors,
		quota.ClassPatient:     r.MaxPatients,
		quota.ClassStaff:       r.MaxStaff,
		quota.ClassCatalogItem: r.MaxCatalogItems,
	}
}

func (r *subscriptionRow) toDomain() (*quota.Subscription, error) {
	limits := make(map[quota.ResourceClass]quota.Limit, len(limitColumns))
	for class, v := range r.sentinels() {
		l, err := quota.FromSentinel(v)
		if err != nil {
			return nil, fmt.Errorf("subscription %s %s: %w", r.ID, limitColumns[class], err)
		}
		limits[class] = l
	}
	features := r.Features
	if features == nil {
		features = []string{}
	}
	return &quota.Subscription{
		ID:           r.ID,
		TenantID:     r.TenantID,
		PlanName:     r.PlanName,
		Limits:       limits,
		Features:     features,
		BillingCycle: quota.BillingCycle(r.BillingCycle),
		MonthlyFee:   r.MonthlyFee,
		Amount:       r.Amount,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		IsActive:     r.IsActive,
		CreatedAt:    r.CreatedAt,
	}, nil
}

func fromDomain(s *quota.Subscription) subscriptionRow {
	features := s.Features
	if features == nil {
		features = []string{}
	}
	return subscriptionRow{
		ID:              s.ID,
		TenantID:        s.TenantID,
		PlanName:        s.PlanName,
		MaxDoctors:      s.Limit(quota.ClassDoctor).Sentinel(),
		MaxPatients:     s.Limit(quota.ClassPatient).Sentinel(),
		MaxStaff:        s.Limit(quota.ClassStaff).Sentinel(),
		MaxCatalogItems: s.Limit(quota.ClassCatalogItem).Sentinel(),
		Features:        features,
		BillingCycle:    string(s.BillingCycle),
		MonthlyFee:      s.MonthlyFee,
		Amount:          s.Amount,
		StartDate:       types.Date(s.StartDate),
		EndDate:         types.Date(s.EndDate),
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt,
	}
}

// SubscriptionRepo implements quota.Repository.
type SubscriptionRepo struct {
	txm     *postgres.TxManager
	columns []string
}

var _ quota.Repository = (*SubscriptionRepo)(nil)

func NewSubscriptionRepo(txm *postgres.TxManager) *SubscriptionRepo {
	return &SubscriptionRepo{txm: txm, columns: postgres.Columns[subscriptionRow]()}
}

func builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *SubscriptionRepo) activeQuery(tenantID string) squirrel.SelectBuilder {
	return builder().Select(r.columns...).From(subscriptionsTable).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("is_active")
}

func (r *SubscriptionRepo) GetActive(ctx context.Context, tenantID string) (*quota.Subscription, error) {
	return r.getOne(ctx, r.activeQuery(tenantID), tenantID)
}

// GetActiveForUpdate locks the active row; concurrent reservations for the tenant queue behind it.
func (r *SubscriptionRepo) GetActiveForUpdate(ctx context.Context, tenantID string) (*quota.Subscription, error) {
	return r.getOne(ctx, r.activeQuery(tenantID).Suffix("FOR UPDATE"), tenantID)
}

func (r *SubscriptionRepo) getOne(ctx context.Context, q squirrel.SelectBuilder, tenantID string) (*quota.Subscription, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row subscriptionRow
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("subscription", tenantID)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return row.toDomain()
}

func (r *SubscriptionRepo) Deactivate(ctx context.Context, tenantID string, subscriptionID id.ID) error {
	sql, args, err := builder().Update(subscriptionsTable).
		Set("is_active", false).
		Where(squirrel.Eq{"tenant_id": tenantID, "id": subscriptionID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("subscription", subscriptionID.String())
	}
	return nil
}

func (r *SubscriptionRepo) Create(ctx context.Context, sub *quota.Subscription) error {
	row := fromDomain(sub)
	sql, args, err := builder().Insert(subscriptionsTable).
		SetMap(postgres.Pick(postgres.StructToMap(&row), r.columns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *SubscriptionRepo) History(ctx context.Context, tenantID string, limit int) ([]*quota.Subscription, error) {
	q := builder().Select(r.columns...).From(subscriptionsTable).
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []subscriptionRow
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("subscription history: %w", err)
	}
	out := make([]*quota.Subscription, 0, len(rows))
	for i := range rows {
		sub, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}
