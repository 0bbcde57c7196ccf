package main

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var amountLimit = decimal.New(2000, 0)

func TestGeneratorIsDeterministic(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)

	first := newGenerator("employee-1").transactions(start, end)
	second := newGenerator("employee-1").transactions(start, end)
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	other := newGenerator("employee-2").transactions(start, end)
	assert.NotEqual(t, first, other)
}

func TestGeneratorStaysInRange(t *testing.T) {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.March, 31, 23, 59, 59, 0, time.UTC)

	for _, txn := range newGenerator("employee-1").transactions(start, end) {
		assert.True(t, txn.Date.After(start))
		assert.True(t, txn.Date.Before(end))
		assert.NotEmpty(t, txn.ID)
		assert.NotEmpty(t, txn.Description)
		if txn.Deposit {
			assert.True(t, txn.Amount().IsPositive())
		} else {
			assert.True(t, txn.Amount().IsNegative())
		}
		assert.True(t, txn.Amount().Abs().LessThanOrEqual(amountLimit))
	}
}
