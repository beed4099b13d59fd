package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDaysBetween(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysBetween(today, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 21, DaysBetween(today, time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, DaysBetween(today, time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)))
}

func TestMoneyHelpers(t *testing.T) {
	neg := MustMoney("-1")

	assert.True(t, IsNegative(&neg))
	assert.False(t, IsNegative(nil))
	assert.True(t, OrZero(nil).IsZero())
	assert.Equal(t, "9.17", Round2(MustMoney("9.1666")).String())
}
