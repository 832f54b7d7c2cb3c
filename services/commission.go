package services

import (
	"github.com/shopspring/decimal"

	"lotto/models"
)

var hundred = decimal.NewFromInt(100)

// commissionPart computes one actor's commission over the bet items:
// amount * rate / 100 per item, summed with decimal math. A nil rate set
// yields zero commission with an empty rate snapshot.
func commissionPart(rates *models.CommissionRate, items []models.BetItem) models.CommissionPart {
	if rates == nil {
		return models.CommissionPart{Rates: map[models.BetType]float64{}}
	}
	total := decimal.Zero
	for _, it := range items {
		amount := decimal.NewFromFloat(it.Amount)
		rate := decimal.NewFromFloat(rates.RateFor(it.BetType))
		total = total.Add(amount.Mul(rate).Div(hundred))
	}
	return models.CommissionPart{
		Rates: rates.RateMap(),
		Total: total.InexactFloat64(),
	}
}
