package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPlans(t *testing.T) {
	plans := DefaultPlans()

	basic, ok := plans.Get("basic")
	require.True(t, ok)
	assert.Equal(t, "2999", basic.MonthlyFee.String())
	assert.Equal(t, Limited(2), basic.Limit(ClassDoctor))
	assert.Equal(t, Limited(25), basic.Limit(ClassPatient))

	enterprise, ok := plans.Get("enterprise")
	require.True(t, ok)
	for _, class := range Classes() {
		assert.True(t, enterprise.Limit(class).IsUnlimited(), class)
	}

	names := []string{}
	for _, p := range plans.All() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"basic", "standard", "enterprise"}, names)
}

func TestPlans_AreImmutable(t *testing.T) {
	plans := DefaultPlans()

	p, _ := plans.Get("basic")
	p.Limits[ClassDoctor] = Unlimited()
	p.Features[0] = "tampered"

	again, _ := plans.Get("basic")
	assert.Equal(t, Limited(2), again.Limit(ClassDoctor))
	assert.NotEqual(t, "tampered", again.Features[0])
}

func TestNewPlans_RejectsDuplicates(t *testing.T) {
	_, err := NewPlans(Plan{Name: "basic"}, Plan{Name: "basic"})
	assert.Error(t, err)

	_, err = NewPlans(Plan{})
	assert.Error(t, err)
}

func TestPlan_Fee(t *testing.T) {
	standard, _ := DefaultPlans().Get("standard")

	monthly, amount := standard.Fee(BillingMonthly)
	assert.Equal(t, "7499", monthly.String())
	assert.Equal(t, "7499", amount.String())

	monthly, amount = standard.Fee(BillingAnnual)
	assert.Equal(t, "5999.2", monthly.String())
	assert.Equal(t, "71990.4", amount.String())
}

func TestBillingCycle_Window(t *testing.T) {
	start := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

	from, to := BillingMonthly.Window(start)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC), to)

	_, to = BillingAnnual.Window(start)
	assert.Equal(t, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC), to)

	_, err := ParseBillingCycle("weekly")
	assert.Error(t, err)
}
