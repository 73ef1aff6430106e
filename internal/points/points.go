// Package points computes loyalty point awards for orders.
package points

import (
	"errors"
	"math"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/shopspring/decimal"
)

var ErrAwardOverflow = errors.New("order total too large for a points award")

var (
	// One point is awarded for every full spendUnit of order total.
	spendUnit = decimal.NewFromInt(10)
	maxAward  = decimal.NewFromInt(math.MaxInt64)
)

// Total returns the sum of price times quantity over all items.
func Total(items []entities.LineItem) decimal.Decimal {
	total := decimal.Zero

	for _, item := range items {
		total = total.Add(item.PriceAtPurchase.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	return total
}

// Award returns floor(total / 10). Orders under 10 earn nothing, which is a
// valid outcome. An award that does not fit in int64 is ErrAwardOverflow.
func Award(items []entities.LineItem) (int64, error) {
	total := Total(items)
	if total.LessThan(spendUnit) {
		return 0, nil
	}

	award := total.Div(spendUnit).Floor()
	if award.GreaterThan(maxAward) {
		return 0, ErrAwardOverflow
	}

	return award.IntPart(), nil
}
