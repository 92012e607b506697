package models

import "github.com/shopspring/decimal"

// FormatAmount renders an amount kept in the smallest currency unit, e.g.
// 2397 with exponent 2 becomes "23.97".
func FormatAmount(amount int64, exponent int32) string {
	if exponent <= 0 {
		return decimal.NewFromInt(amount).String()
	}
	return decimal.New(amount, -exponent).StringFixed(exponent)
}
