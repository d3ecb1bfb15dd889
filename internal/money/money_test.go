package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLine decimal.Decimal

func (l testLine) LineAmount() decimal.Decimal { return decimal.Decimal(l) }

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func lines(amounts ...string) []testLine {
	out := make([]testLine, 0, len(amounts))
	for _, a := range amounts {
		out = append(out, testLine(d(a)))
	}
	return out
}

func TestComputeTotals(t *testing.T) {
	tests := []struct {
		name     string
		amounts  []string
		rate     string
		discount string
		subtotal string
		tax      string
		total    string
	}{
		{"empty list", nil, "15", "0", "0", "0", "0"},
		{"single item with tax", []string{"200"}, "5", "0", "200", "10", "210"},
		{"discount and tax", []string{"100.10", "49.95"}, "7.5", "10", "150.05", "11.25", "151.3"},
		{"fractional tax rounds half up", []string{"0.10"}, "5", "0", "0.1", "0.01", "0.11"},
		{"discount above subtotal goes negative", []string{"50"}, "0", "80", "50", "0", "-30"},
		{"website redesign", []string{"50000"}, "0", "0", "50000", "0", "50000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals(lines(tc.amounts...), d(tc.rate), d(tc.discount))
			require.NoError(t, err)
			assert.True(t, d(tc.subtotal).Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
			assert.True(t, d(tc.tax).Equal(totals.TaxAmount), "tax %s", totals.TaxAmount)
			assert.True(t, d(tc.total).Equal(totals.Total), "total %s", totals.Total)
		})
	}
}

func TestComputeTotalsInvariant(t *testing.T) {
	amounts := []string{"0.01", "19.99", "333.33", "1000", "7.77"}
	for i := range amounts {
		items := lines(amounts[:i+1]...)
		totals, err := ComputeTotals(items, d("13.5"), d("2.5"))
		require.NoError(t, err)

		sum := decimal.Zero
		for _, it := range items {
			sum = sum.Add(it.LineAmount())
		}
		assert.True(t, Round(sum).Equal(totals.Subtotal))
		expected := Round(totals.Subtotal.Sub(d("2.5")).Add(totals.TaxAmount))
		assert.True(t, expected.Equal(totals.Total))
	}
}

func TestComputeTotalsRejectsNegativeInputs(t *testing.T) {
	_, err := ComputeTotals(lines("10"), d("0"), d("-1"))
	assert.ErrorIs(t, err, ErrNegativeDiscount)

	_, err = ComputeTotals(lines("10"), d("-5"), d("0"))
	assert.ErrorIs(t, err, ErrNegativeTaxRate)
}

func TestLineAmount(t *testing.T) {
	amount, err := LineAmount(d("3"), d("33.335"))
	require.NoError(t, err)
	assert.Equal(t, "100.01", amount.StringFixed(2))

	_, err = LineAmount(d("0"), d("10"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = LineAmount(d("-1"), d("10"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = LineAmount(d("1"), d("-0.01"))
	assert.ErrorIs(t, err, ErrNegativePrice)

	amount, err = LineAmount(d("2"), d("0"))
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}

func TestFormatBDT(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"12345", "৳12,345.00"},
		{"0", "৳0.00"},
		{"999.999", "৳1,000.00"},
		{"1234567.5", "৳1,234,567.50"},
		{"0.05", "৳0.05"},
		{"-30", "-৳30.00"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, FormatBDT(d(tc.input)))
		})
	}
}

func TestFormatWithSubstituteSymbol(t *testing.T) {
	assert.Equal(t, "Tk 50,000.00", Format(d("50000"), "Tk "))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "7.5", FormatPercent(d("7.50")))
	assert.Equal(t, "15", FormatPercent(d("15")))
}
