package price

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalJSON_AcceptsNumbersAndStrings(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		valid bool
	}{
		{name: "number", raw: `12.5`, want: "12.50", valid: true},
		{name: "integer", raw: `40`, want: "40.00", valid: true},
		{name: "numeric string", raw: `"12.50"`, want: "12.50", valid: true},
		{name: "rupee string", raw: `"₹ 7.25"`, want: "7.25", valid: true},
		{name: "garbage string", raw: `"twelve"`, want: "0.00", valid: false},
		{name: "null", raw: `null`, want: "0.00", valid: false},
		{name: "object", raw: `{"value":1}`, want: "0.00", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var holder struct {
				Price Amount `json:"price"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"price":`+tt.raw+`}`), &holder))
			assert.Equal(t, tt.want, holder.Price.String())
			assert.Equal(t, tt.valid, holder.Price.Valid)
		})
	}
}

func TestMul(t *testing.T) {
	a, err := Parse("0.10")
	require.NoError(t, err)

	assert.True(t, a.Mul(3).Equal(decimal.RequireFromString("0.3")))
}

func TestMarshalJSON(t *testing.T) {
	out, err := json.Marshal(FromFloat(3.5))
	require.NoError(t, err)
	assert.JSONEq(t, `"3.50"`, string(out))
}

func TestParse_Invalid(t *testing.T) {
	a, err := Parse("  ")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.False(t, a.Valid)
	assert.True(t, a.Decimal.IsZero())
}
