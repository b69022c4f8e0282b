package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
)

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func item(price string, qty int) model.InvoiceItem {
	return model.InvoiceItem{UnitPrice: amount(price), Quantity: qty}
}

func TestComputeGoldClient(t *testing.T) {
	// subtotal 1000.00 at 5% discount: pay 950.00, earn 9 points
	items := []model.InvoiceItem{
		item("250.00", 2),
		item("100.00", 5),
	}

	result, err := Compute(items, decimal.NewFromInt(5), loyalty.DefaultPolicy())
	require.NoError(t, err)

	assert.Equal(t, "1000.00", result.Subtotal.StringFixed(2))
	assert.Equal(t, "50.00", result.Discount.StringFixed(2))
	assert.Equal(t, "950.00", result.TotalAmount.StringFixed(2))
	assert.Equal(t, 9, result.PointsEarned)
}

func TestComputeEmptyCart(t *testing.T) {
	result, err := Compute(nil, decimal.NewFromInt(10), loyalty.DefaultPolicy())
	require.NoError(t, err)

	assert.True(t, result.Subtotal.IsZero())
	assert.True(t, result.Discount.IsZero())
	assert.True(t, result.TotalAmount.IsZero())
	assert.Zero(t, result.PointsEarned)
}

func TestComputeRounding(t *testing.T) {
	// each line rounds before summation: 3 x 33.335 -> 100.01 per
	// line, not 300.015 summed then rounded
	items := []model.InvoiceItem{
		item("33.335", 3),
		item("33.335", 3),
		item("33.335", 3),
	}

	result, err := Compute(items, decimal.Zero, loyalty.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "300.03", result.Subtotal.StringFixed(2))

	// discount rounds half-up: 100.125 -> 100.13
	result, err = Compute([]model.InvoiceItem{item("200.25", 1)}, decimal.NewFromInt(50), loyalty.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, "100.13", result.Discount.StringFixed(2))
	assert.Equal(t, "100.12", result.TotalAmount.StringFixed(2))
}

func TestComputePointsOnPostDiscountAmount(t *testing.T) {
	// 10% off 1000.00 leaves 900.00: 9 points, not 10
	items := []model.InvoiceItem{item("1000.00", 1)}

	result, err := Compute(items, decimal.NewFromInt(10), loyalty.DefaultPolicy())
	require.NoError(t, err)
	assert.Equal(t, 9, result.PointsEarned)
}

func TestComputePointsRate(t *testing.T) {
	policy := loyalty.DefaultPolicy()
	policy.PointsPerHundred = 3

	result, err := Compute([]model.InvoiceItem{item("250.00", 1)}, decimal.Zero, policy)
	require.NoError(t, err)
	assert.Equal(t, 6, result.PointsEarned) // floor(250/100) * 3
}

func TestComputeRejectsNegativeInput(t *testing.T) {
	_, err := Compute([]model.InvoiceItem{item("10.00", -1)}, decimal.Zero, loyalty.DefaultPolicy())
	require.ErrorIs(t, err, ErrInvalidLineItem)

	_, err = Compute([]model.InvoiceItem{item("-10.00", 1)}, decimal.Zero, loyalty.DefaultPolicy())
	require.ErrorIs(t, err, ErrInvalidLineItem)
}

// 0 <= discount <= subtotal and total >= 0 for any discount in [0,100].
func TestComputeDiscountBound(t *testing.T) {
	items := []model.InvoiceItem{
		item("19.99", 3),
		item("0.01", 1),
		item("450.50", 2),
	}

	for pct := 0; pct <= 100; pct += 5 {
		result, err := Compute(items, decimal.NewFromInt(int64(pct)), loyalty.DefaultPolicy())
		require.NoError(t, err)
		assert.False(t, result.Discount.IsNegative(), "pct %d", pct)
		assert.True(t, result.Discount.LessThanOrEqual(result.Subtotal), "pct %d", pct)
		assert.False(t, result.TotalAmount.IsNegative(), "pct %d", pct)
	}
}

func TestChange(t *testing.T) {
	assert.Equal(t, "49.50", Change(amount("950.50"), amount("1000.00")).StringFixed(2))
	assert.True(t, Change(amount("950.50"), amount("900.00")).IsZero())
	assert.True(t, Change(amount("950.50"), decimal.Zero).IsZero())
}
