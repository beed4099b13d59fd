package quota

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimit_Allows(t *testing.T) {
	tests := []struct {
		name    string
		limit   Limit
		current int64
		want    bool
	}{
		{"below cap", Limited(10), 9, true},
		{"at cap", Limited(10), 10, false},
		{"grandfathered above cap", Limited(10), 12, false},
		{"zero cap", Limited(0), 0, false},
		{"unlimited", Unlimited(), 1_000_000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.limit.Allows(tt.current))
		})
	}
}

func TestLimit_SentinelOnlyAtEdge(t *testing.T) {
	l, err := FromSentinel(-1)
	require.NoError(t, err)
	assert.True(t, l.IsUnlimited())
	_, ok := l.Max()
	assert.False(t, ok)

	_, err = FromSentinel(-2)
	assert.Error(t, err)

	raw, err := json.Marshal(map[string]Limit{"doctor": Unlimited(), "staff": Limited(5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"doctor":-1,"staff":5}`, string(raw))

	var decoded map[string]Limit
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded["doctor"].IsUnlimited())
	n, ok := decoded["staff"].Max()
	assert.True(t, ok)
	assert.Equal(t, int64(5), n)
}

func TestLimit_Percentage(t *testing.T) {
	assert.Equal(t, 50.0, Limited(10).Percentage(5))
	assert.Equal(t, 33.3, Limited(3).Percentage(1))
	assert.Equal(t, 0.0, Unlimited().Percentage(400))
	assert.Equal(t, 0.0, Limited(0).Percentage(3))
}

func TestLimited_PanicsOnNegative(t *testing.T) {
	assert.Panics(t, func() { Limited(-1) })
}
