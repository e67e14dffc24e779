package model

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money values are rounded to.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half-up (away from zero) to cents.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ApplyPercent returns base × percent/100 rounded to cents.
func ApplyPercent(base, percent decimal.Decimal) decimal.Decimal {
	return RoundMoney(base.Mul(percent).Div(hundred))
}

// GrowthFactor returns 1 + percent/100.
func GrowthFactor(percent decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Add(percent.Div(hundred))
}
