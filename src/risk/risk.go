package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futuresbot/src/model"
)

var hundred = decimal.NewFromInt(100)

// Sizing is the outcome of a sizing calculation.
type Sizing struct {
	// RiskAmount is the part of the free balance put at risk, in quote currency.
	RiskAmount decimal.Decimal
	// Quantity is the base asset amount to order, before exchange step rounding.
	Quantity decimal.Decimal
}

// PositionSize computes the order size for a new entry.
//
// riskAmount = freeBalance * riskPct / 100
// quantity   = riskAmount * leverage / price
func PositionSize(freeBalance, riskPct decimal.Decimal, leverage int, price decimal.Decimal) (Sizing, error) {
	if price.LessThanOrEqual(decimal.Zero) {
		return Sizing{}, fmt.Errorf("%w: price must be positive, got %s", model.ErrValidation, price)
	}
	if leverage <= 0 {
		return Sizing{}, fmt.Errorf("%w: leverage must be positive, got %d", model.ErrValidation, leverage)
	}
	if freeBalance.LessThanOrEqual(decimal.Zero) || riskPct.LessThanOrEqual(decimal.Zero) {
		return Sizing{RiskAmount: decimal.Zero, Quantity: decimal.Zero}, nil
	}

	riskAmount := freeBalance.Mul(riskPct).Div(hundred)
	qty := riskAmount.Mul(decimal.NewFromInt(int64(leverage))).Div(price)

	return Sizing{RiskAmount: riskAmount, Quantity: qty}, nil
}

// PositionSizeFloat is PositionSize for callers holding float64 exchange values.
func PositionSizeFloat(freeBalance, riskPct float64, leverage int, price float64) (float64, error) {
	s, err := PositionSize(decimal.NewFromFloat(freeBalance), decimal.NewFromFloat(riskPct), leverage, decimal.NewFromFloat(price))
	if err != nil {
		return 0, err
	}
	return s.Quantity.InexactFloat64(), nil
}

// RoundToStep floors qty to a multiple of step. A zero step returns qty unchanged.
func RoundToStep(qty, step decimal.Decimal) decimal.Decimal {
	if step.LessThanOrEqual(decimal.Zero) {
		return qty
	}
	return qty.Div(step).Floor().Mul(step)
}

// UnrealizedPnL returns the mark-to-market profit of a position.
func UnrealizedPnL(side model.Side, size, entry, current float64) float64 {
	diff := decimal.NewFromFloat(current).Sub(decimal.NewFromFloat(entry))
	if side == model.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(decimal.NewFromFloat(size)).InexactFloat64()
}
