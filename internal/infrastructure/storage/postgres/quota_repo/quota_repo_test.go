package quota_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/core/types"
	"pharmaledger/internal/domain/quota"
)

func TestSubscriptionRow_SentinelRoundTrip(t *testing.T) {
	sub := &quota.Subscription{
		ID:       id.New(),
		TenantID: "t1",
		PlanName: "standard",
		Limits: map[quota.ResourceClass]quota.Limit{
			quota.ClassDoctor:  quota.Limited(10),
			quota.ClassPatient: quota.Unlimited(),
		},
		BillingCycle: quota.BillingMonthly,
		MonthlyFee:   types.MustMoney("99.00"),
		Amount:       types.MustMoney("99.00"),
		StartDate:    time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		IsActive:     true,
	}

	row := fromDomain(sub)
	assert.Equal(t, int64(10), row.MaxDoctors)
	assert.Equal(t, int64(-1), row.MaxPatients)
	assert.Equal(t, int64(-1), row.MaxStaff, "unmentioned classes are unlimited")
	assert.Equal(t, []string{}, row.Features)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), row.StartDate)

	back, err := row.toDomain()
	require.NoError(t, err)
	assert.True(t, back.Limit(quota.ClassPatient).IsUnlimited())
	limit, ok := back.Limit(quota.ClassDoctor).Max()
	assert.True(t, ok)
	assert.Equal(t, int64(10), limit)
}

func TestSubscriptionRow_RejectsInvalidSentinel(t *testing.T) {
	row := subscriptionRow{ID: id.New(), MaxDoctors: -5}

	_, err := row.toDomain()
	assert.ErrorContains(t, err, "max_doctors")
}

func TestSubscriptionRepo_ActiveQueryLocks(t *testing.T) {
	repo := NewSubscriptionRepo(nil)

	sql, args, err := repo.activeQuery("t1").Suffix("FOR UPDATE").ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM subscriptions WHERE tenant_id = $1 AND is_active FOR UPDATE")
	assert.Contains(t, sql, "max_catalog_items")
	assert.Equal(t, []any{"t1"}, args)
}

func TestTableCounter_Query(t *testing.T) {
	counter, err := NewTableCounter(nil, map[quota.ResourceClass]string{
		quota.ClassDoctor: "clinic.doctors",
		quota.ClassStaff:  "staff",
	})
	require.NoError(t, err)

	q, err := counter.countQuery("t1", quota.ClassDoctor)
	require.NoError(t, err)
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM clinic.doctors WHERE tenant_id = $1 AND is_active", sql)
	assert.Equal(t, []any{"t1"}, args)

	_, err = counter.countQuery("t1", quota.ClassPatient)
	assert.Error(t, err)

	assert.Equal(t, []quota.ResourceClass{quota.ClassDoctor, quota.ClassStaff}, counter.Classes())
}

func TestNewTableCounter_RejectsUnsafeNames(t *testing.T) {
	_, err := NewTableCounter(nil, map[quota.ResourceClass]string{
		quota.ClassStaff: "staff; DROP TABLE tenants",
	})
	assert.Error(t, err)
}
