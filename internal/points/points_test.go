package points

import (
	"math"
	"testing"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(price string, quantity int) entities.LineItem {
	return entities.LineItem{
		ProductID:       "p1",
		VariantID:       "v1",
		Quantity:        quantity,
		PriceAtPurchase: decimal.RequireFromString(price),
		Currency:        "USD",
	}
}

func TestAward(t *testing.T) {
	tests := []struct {
		name  string
		items []entities.LineItem
		want  int64
	}{
		{name: "no items", items: nil, want: 0},
		{name: "just under one point", items: []entities.LineItem{item("9.99", 1)}, want: 0},
		{name: "exactly one point", items: []entities.LineItem{item("10.00", 1)}, want: 1},
		{name: "just under two points", items: []entities.LineItem{item("19.99", 1)}, want: 1},
		{name: "exactly two points", items: []entities.LineItem{item("20.00", 1)}, want: 2},
		{name: "quantity multiplies price", items: []entities.LineItem{item("3.33", 3)}, want: 0},
		{name: "several items", items: []entities.LineItem{item("11.70", 2)}, want: 2},
		{name: "mixed items", items: []entities.LineItem{item("4.99", 2), item("0.02", 1)}, want: 1},
		{name: "free items", items: []entities.LineItem{item("0", 5)}, want: 0},
		{name: "large order", items: []entities.LineItem{item("1234.56", 7)}, want: 864},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			award, err := Award(tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, award)
		})
	}
}

func TestTotal(t *testing.T) {
	total := Total([]entities.LineItem{item("19.99", 1), item("1.705", 2)})

	assert.True(t, decimal.RequireFromString("23.40").Equal(total), "got %s", total)

	award, err := Award([]entities.LineItem{item("19.99", 1), item("1.705", 2)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), award)
}

func TestAwardOverflow(t *testing.T) {
	award, err := Award([]entities.LineItem{item("92233720368547758079.99", 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), award, "largest award that fits")

	_, err = Award([]entities.LineItem{item("92233720368547758080", 1)})
	assert.ErrorIs(t, err, ErrAwardOverflow)

	_, err = Award([]entities.LineItem{item("100000000000000000000", 1)})
	assert.ErrorIs(t, err, ErrAwardOverflow)

	_, err = Award([]entities.LineItem{item("50000000000000000000", 2)})
	assert.ErrorIs(t, err, ErrAwardOverflow, "quantity pushes the total over")
}
