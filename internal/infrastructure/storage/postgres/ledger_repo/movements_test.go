package ledger_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/id"
	"pharmaledger/internal/domain/ledger"
)

func TestHistoryQuery_AllFilters(t *testing.T) {
	itemID := id.New()
	from := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	to := time.Date(2026, 2, 28, 18, 0, 0, 0, time.UTC)

	sql, args, err := historyQuery(builder().Select("COUNT(*)"), "t1", ledger.HistoryFilter{
		ItemID: &itemID,
		Type:   ledger.MovementOut,
		From:   &from,
		To:     &to,
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT COUNT(*) FROM stock_movements WHERE tenant_id = $1 AND item_id = $2 "+
			"AND movement_type = $3 AND created_at >= $4 AND created_at < $5",
		sql)
	assert.Equal(t, []any{
		"t1",
		itemID.String(),
		"OUT",
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, args)
}

func TestHistoryQuery_TenantOnly(t *testing.T) {
	sql, args, err := historyQuery(builder().Select("id"), "t1", ledger.HistoryFilter{}).ToSql()
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM stock_movements WHERE tenant_id = $1", sql)
	assert.Equal(t, []any{"t1"}, args)
}

func TestSumQuery_SignFollowsType(t *testing.T) {
	itemID := id.New()
	sql, args, err := sumQuery("t1", itemID).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "WHEN 'IN' THEN quantity")
	assert.Contains(t, sql, "WHEN 'OUT' THEN -quantity")
	assert.Contains(t, sql, "WHEN 'EXPIRED' THEN -quantity")
	assert.Contains(t, sql, "WHEN 'DAMAGED' THEN -quantity")
	assert.Contains(t, sql, "ELSE delta END")
	assert.Contains(t, sql, "WHERE item_id = $1 AND tenant_id = $2")
	assert.Equal(t, []any{itemID.String(), "t1"}, args)
}

func TestNewMovementRepo_Columns(t *testing.T) {
	repo := NewMovementRepo(nil)
	assert.Contains(t, repo.columns, "movement_type")
	assert.Contains(t, repo.columns, "delta")
	assert.Contains(t, repo.columns, "created_by")
}
