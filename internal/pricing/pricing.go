// Package pricing freezes the monetary breakdown of a booking. Only the main value is discountable.
package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("pricing: invalid input")

type Input struct {
	MainValuePerUnit   decimal.Decimal
	OthersValuePerUnit decimal.Decimal
	Quantity           int
	VoucherPercentage  decimal.Decimal // fraction in [0,1]
}

type Result struct {
	MainValue   decimal.Decimal
	OthersValue decimal.Decimal
	Discount    decimal.Decimal
	TotalValue  decimal.Decimal
}

func Calculate(in Input) (Result, error) {
	if in.Quantity <= 0 ||
		in.MainValuePerUnit.IsNegative() ||
		in.OthersValuePerUnit.IsNegative() ||
		in.VoucherPercentage.IsNegative() ||
		in.VoucherPercentage.GreaterThan(decimal.NewFromInt(1)) {
		return Result{}, ErrInvalidInput
	}

	qty := decimal.NewFromInt(int64(in.Quantity))
	main := in.MainValuePerUnit.Mul(qty).Round(2)
	others := in.OthersValuePerUnit.Mul(qty).Round(2)
	discount := main.Mul(in.VoucherPercentage).Round(2)

	return Result{
		MainValue:   main,
		OthersValue: others,
		Discount:    discount,
		TotalValue:  main.Add(others).Sub(discount),
	}, nil
}

// Format renders an amount the way the provider expects it: two decimals, no grouping.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Equal compares two amounts at cent precision.
func Equal(a, b decimal.Decimal) bool {
	return a.Round(2).Equal(b.Round(2))
}
