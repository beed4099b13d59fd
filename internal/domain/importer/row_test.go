package importer

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmaledger/internal/core/types"
)

func TestParseExpiry(t *testing.T) {
	want := time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2025-12-31", "31-12-2025", "31/12/2025", "2025/12/31", "31-12-25", "31/12/25", " 2025-12-31 "} {
		got, ok := ParseExpiry(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "next year", "2025-13-01", "12/31/2025"} {
		_, ok := ParseExpiry(in)
		assert.False(t, ok, in)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"20", 20, false},
		{" 0 ", 0, false},
		{"20.0", 20, false},
		{"12.5", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{"9223372036854775807", math.MaxInt64, false},
		{"9223372036854775807.0", math.MaxInt64, false},
		{"20000000000000000000", 0, true},
		{"9223372036854775808.0", 0, true},
		{"1e30", 0, true},
		{"-20000000000000000000", 0, true},
	}
	for _, tt := range tests {
		got, err := parseQuantity(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestCostPolicy_Derive(t *testing.T) {
	policy := DefaultCostPolicy()

	assert.Equal(t, "18", policy.Derive(types.MoneyPtr(types.MustMoney("30"))).String())
	assert.Equal(t, "7.49", policy.Derive(types.MoneyPtr(types.MustMoney("12.49"))).String())
	assert.Nil(t, policy.Derive(nil))
	assert.Nil(t, policy.Derive(types.MoneyPtr(types.MustMoney("0"))))

	custom := CostPolicy{Ratio: types.MustMoney("0.5")}
	assert.Equal(t, "15", custom.Derive(types.MoneyPtr(types.MustMoney("30"))).String())
}

func TestDecodeCSV(t *testing.T) {
	in := "\ufeffName, Quantity ,expiry_date,notes\n" +
		"Paracetamol 500mg,100,2027-12-31,ignored\n" +
		"\"Cough Syrup, 100ml\",5\n"

	rows, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{Line: 2, Name: "Paracetamol 500mg", Quantity: "100", ExpiryDate: "2027-12-31"}, rows[0])
	assert.Equal(t, 3, rows[1].Line)
	assert.Equal(t, "Cough Syrup, 100ml", rows[1].Name)
	assert.Empty(t, rows[1].ExpiryDate)
}

func TestDecodeCSV_MissingColumns(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("name,mrp\nParacetamol,30\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing required columns: quantity")

	_, err = DecodeCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestTemplate_RoundTrips(t *testing.T) {
	rows, err := DecodeCSV(strings.NewReader(string(Template())))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Paracetamol 500mg", rows[0].Name)
	assert.Equal(t, "30", rows[0].MRP)
}
