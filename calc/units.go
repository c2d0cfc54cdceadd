package calc

import (
	"math"

	"github.com/shopspring/decimal"
)

var (
	eokUnit = decimal.NewFromInt(100_000_000)       // 1억
	joUnit  = decimal.NewFromInt(1_000_000_000_000) // 1조
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ToEok 원 -> 억원
func ToEok(won float64) float64 {
	if !finite(won) {
		return math.NaN()
	}
	f, _ := decimal.NewFromFloat(won).Div(eokUnit).Float64()
	return f
}

// Round 四舍五入到 places 位小数，NaN 原样返回
func Round(v float64, places int32) float64 {
	if !finite(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// FormatMarketCap 市值按 조/억/원 显示
func FormatMarketCap(won float64) string {
	if !finite(won) {
		return ""
	}
	d := decimal.NewFromFloat(won)
	switch {
	case won >= 1e12:
		return d.Div(joUnit).StringFixed(2) + "조"
	case won >= 1e8:
		return d.Div(eokUnit).StringFixed(0) + "억"
	default:
		return d.StringFixed(0) + "원"
	}
}
