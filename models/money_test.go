package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyFromString(t *testing.T) {
	m, err := MoneyFromString("19.99")
	require.NoError(t, err)
	assert.True(t, m.Decimal.Equal(decimal.RequireFromString("19.99")))

	_, err = MoneyFromString("not a number")
	assert.Error(t, err)
}

func TestMoneyRound2(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"0.505", "0.51"},
		{"50", "50"},
		{"-1.005", "-1.01"},
	}
	for _, tc := range cases {
		m, err := MoneyFromString(tc.in)
		require.NoError(t, err)
		assert.True(t, m.Round2().Decimal.Equal(decimal.RequireFromString(tc.want)),
			"Round2(%s) = %s, want %s", tc.in, m.Round2().Decimal, tc.want)
	}
}

func TestMoneyAddKeepsPrecision(t *testing.T) {
	a, err := MoneyFromString("0.1")
	require.NoError(t, err)
	b, err := MoneyFromString("0.2")
	require.NoError(t, err)

	assert.True(t, a.Add(b).Decimal.Equal(decimal.RequireFromString("0.3")))
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m, err := MoneyFromString("1234.56")
	require.NoError(t, err)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var out Money
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Decimal.Equal(m.Decimal))
}
