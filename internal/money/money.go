// Package money computes document totals and formats currency amounts.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Places is the number of decimal places every persisted amount is rounded to.
const Places = 2

// TakaSign prefixes formatted Bangladeshi taka amounts.
const TakaSign = "৳"

var (
	// ErrNegativeDiscount is returned when a discount below zero is supplied.
	ErrNegativeDiscount = errors.New("money: discount must not be negative")
	// ErrNegativeTaxRate is returned when a tax rate below zero is supplied.
	ErrNegativeTaxRate = errors.New("money: tax rate must not be negative")
	// ErrInvalidQuantity is returned for zero or negative quantities.
	ErrInvalidQuantity = errors.New("money: quantity must be positive")
	// ErrNegativePrice is returned for unit prices below zero.
	ErrNegativePrice = errors.New("money: unit price must not be negative")
)

var hundred = decimal.NewFromInt(100)

// Line is the minimal view of a line item the calculator needs.
type Line interface {
	LineAmount() decimal.Decimal
}

// Totals holds the derived monetary fields of a document.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// Round rounds d half away from zero to two places.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// LineAmount returns round(quantity*unitPrice, 2) after validating both inputs.
func LineAmount(quantity, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if !quantity.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return Round(quantity.Mul(unitPrice)), nil
}

// ComputeTotals sums stored line amounts and applies tax and a flat discount.
// A discount larger than the subtotal yields a negative total; it is not clamped.
func ComputeTotals[L Line](items []L, taxRatePercent, discount decimal.Decimal) (Totals, error) {
	if discount.IsNegative() {
		return Totals{}, ErrNegativeDiscount
	}
	if taxRatePercent.IsNegative() {
		return Totals{}, ErrNegativeTaxRate
	}
	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineAmount())
	}
	subtotal = Round(subtotal)
	tax := Round(subtotal.Mul(taxRatePercent).Div(hundred))
	total := Round(subtotal.Sub(Round(discount)).Add(tax))
	return Totals{Subtotal: subtotal, TaxAmount: tax, Total: total}, nil
}

var grouping = message.NewPrinter(language.English)

// Format renders d with the given symbol, comma grouping and two decimals,
// e.g. Format(12345, "৳") == "৳12,345.00". Negative amounts put the sign first.
func Format(d decimal.Decimal, symbol string) string {
	rounded := Round(d)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Abs()
	}
	whole := rounded.Truncate(0)
	frac := rounded.Sub(whole).Shift(Places).IntPart()
	return fmt.Sprintf("%s%s%s.%02d", sign, symbol, grouping.Sprintf("%d", whole.IntPart()), frac)
}

// FormatBDT formats d as a Bangladeshi taka amount.
func FormatBDT(d decimal.Decimal) string {
	return Format(d, TakaSign)
}

// FormatPercent renders a rate without trailing zeros, e.g. 7.5 -> "7.5".
func FormatPercent(rate decimal.Decimal) string {
	return rate.Round(Places).String()
}
