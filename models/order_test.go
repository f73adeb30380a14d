package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderLifecycleTransitions(t *testing.T) {
	allowed := []struct{ from, to string }{
		{OrderStatusDraft, OrderStatusSubmitted},
		{OrderStatusSubmitted, OrderStatusProcessing},
		{OrderStatusProcessing, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusDraft, OrderStatusCancelled},
		{OrderStatusSubmitted, OrderStatusCancelled},
		{OrderStatusProcessing, OrderStatusCancelled},
		{OrderStatusShipped, OrderStatusCancelled},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransitionOrder(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	forbidden := []struct{ from, to string }{
		{OrderStatusDraft, OrderStatusProcessing},
		{OrderStatusDraft, OrderStatusDelivered},
		{OrderStatusSubmitted, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusSubmitted},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusShipped},
		{OrderStatusCancelled, OrderStatusDraft},
		{OrderStatusCancelled, OrderStatusSubmitted},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransitionOrder(tc.from, tc.to), "%s -> %s should be rejected", tc.from, tc.to)
	}
}

func TestValidOrderStatus(t *testing.T) {
	for _, status := range []string{
		OrderStatusDraft, OrderStatusSubmitted, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled,
	} {
		assert.True(t, ValidOrderStatus(status))
	}
	assert.False(t, ValidOrderStatus("RETURNED"))
	assert.False(t, ValidOrderStatus(""))
	assert.False(t, ValidOrderStatus("delivered"))
}

func TestComputeTotal(t *testing.T) {
	price1, err := MoneyFromString("19.99")
	require.NoError(t, err)
	price2, err := MoneyFromString("4.50")
	require.NoError(t, err)

	order := Order{
		Items: []OrderItem{
			{Quantity: 3, Price: price1},
			{Quantity: 2, Price: price2},
		},
	}

	// 3 * 19.99 + 2 * 4.50 = 68.97
	assert.True(t, order.ComputeTotal().Decimal.Equal(decimal.RequireFromString("68.97")))
}

func TestComputeTotalEmptyOrder(t *testing.T) {
	order := Order{}
	assert.True(t, order.ComputeTotal().Decimal.IsZero())
}

func TestHasCategory(t *testing.T) {
	order := Order{
		Items: []OrderItem{
			{Category: "dressings"},
			{Category: "tapes"},
		},
	}

	assert.True(t, order.HasCategory([]string{"tapes"}))
	assert.True(t, order.HasCategory([]string{"compression", "dressings"}))
	assert.True(t, order.HasCategory([]string{"*"}))
	assert.False(t, order.HasCategory([]string{"compression"}))
	assert.False(t, order.HasCategory(nil))
}
