package tp_sl

import (
	"fmt"

	"github.com/shopspring/decimal"

	"futuresbot/src/model"
)

var hundred = decimal.NewFromInt(100)

// Brackets are the take-profit and stop-loss trigger prices for a filled entry.
type Brackets struct {
	TakeProfit decimal.Decimal
	StopLoss   decimal.Decimal
}

// BracketPrices places the TP and SL at fixed percentages from the entry price.
//
// Long:  tp = entry * (1 + tp%/100), sl = entry * (1 - sl%/100)
// Short: tp = entry * (1 - tp%/100), sl = entry * (1 + sl%/100)
func BracketPrices(side model.Side, entry, tpPct, slPct decimal.Decimal) (Brackets, error) {
	if entry.LessThanOrEqual(decimal.Zero) {
		return Brackets{}, fmt.Errorf("%w: entry price must be positive", model.ErrValidation)
	}
	if tpPct.LessThanOrEqual(decimal.Zero) || slPct.LessThanOrEqual(decimal.Zero) {
		return Brackets{}, fmt.Errorf("%w: tp/sl percentages must be positive", model.ErrValidation)
	}

	up := decimal.NewFromInt(1).Add(tpPct.Div(hundred))
	down := decimal.NewFromInt(1).Sub(slPct.Div(hundred))

	switch side {
	case model.SideLong:
		return Brackets{TakeProfit: entry.Mul(up), StopLoss: entry.Mul(down)}, nil
	case model.SideShort:
		return Brackets{
			TakeProfit: entry.Mul(decimal.NewFromInt(1).Sub(tpPct.Div(hundred))),
			StopLoss:   entry.Mul(decimal.NewFromInt(1).Add(slPct.Div(hundred))),
		}, nil
	default:
		return Brackets{}, fmt.Errorf("%w: unknown side %q", model.ErrValidation, side)
	}
}

// RoundToTick rounds price to the nearest multiple of tick. A zero tick returns price unchanged.
func RoundToTick(price, tick decimal.Decimal) decimal.Decimal {
	if tick.LessThanOrEqual(decimal.Zero) {
		return price
	}
	return price.Div(tick).Round(0).Mul(tick)
}
