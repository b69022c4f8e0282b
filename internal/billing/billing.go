// Package billing computes invoice totals. Pure arithmetic, no I/O.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/pahanaedu/bookstore-billing/internal/loyalty"
	"github.com/pahanaedu/bookstore-billing/internal/model"
)

var ErrInvalidLineItem = errors.New("invalid line item")

// Result carries the computed totals for one invoice. Amounts are fixed
// to 2 fraction digits, rounded half-up.
type Result struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	TotalAmount  decimal.Decimal
	PointsEarned int
	LineTotals   []decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Compute derives subtotal, discount, total and points earned for a set
// of line items under the given discount percentage and policy rate.
//
// Each line is rounded to 2 decimals before summation so rounding drift
// does not compound. Points are earned on the post-discount total, not
// the subtotal. An empty item list yields all-zero outputs.
func Compute(items []model.InvoiceItem, discountPercent decimal.Decimal, policy loyalty.Policy) (Result, error) {
	result := Result{
		Subtotal:    decimal.Zero,
		Discount:    decimal.Zero,
		TotalAmount: decimal.Zero,
	}

	for i, item := range items {
		if item.Quantity < 0 {
			return Result{}, fmt.Errorf("%w: line %d has negative quantity %d", ErrInvalidLineItem, i, item.Quantity)
		}
		if item.UnitPrice.IsNegative() {
			return Result{}, fmt.Errorf("%w: line %d has negative price %s", ErrInvalidLineItem, i, item.UnitPrice)
		}
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)
		result.LineTotals = append(result.LineTotals, lineTotal)
		result.Subtotal = result.Subtotal.Add(lineTotal)
	}

	result.Discount = result.Subtotal.Mul(discountPercent).Div(hundred).Round(2)

	result.TotalAmount = result.Subtotal.Sub(result.Discount)
	if result.TotalAmount.IsNegative() {
		result.TotalAmount = decimal.Zero
	}

	// floor(total/100) * rate; IntPart truncates, which is floor for
	// the non-negative total
	result.PointsEarned = int(result.TotalAmount.Div(hundred).IntPart()) * policy.PointsPerHundred

	return result, nil
}

// Change returns the change owed for cash tendered against a total, or
// zero when the cash given does not cover it.
func Change(total, cashGiven decimal.Decimal) decimal.Decimal {
	change := cashGiven.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change.Round(2)
}
