package model

import (
	"math"
	"time"
)

// 输入 CSV 中的列名
const (
	ColDate      = "date"
	ColTicker    = "ticker"
	ColName      = "name"
	ColMarket    = "market"
	ColOpen      = "open"
	ColHigh      = "high"
	ColLow       = "low"
	ColClose     = "close"
	ColVolume    = "volume"
	ColTurnover  = "turnover"
	ColMarketCap = "market_cap"

	ColMA       = "ma"
	ColEnvUpper = "env_upper"
	ColEnvLower = "env_lower"
)

// PriceBar 单个标的单日行情，缺失的数值为 NaN
type PriceBar struct {
	Date      time.Time
	Ticker    string
	Name      string
	Market    string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	Turnover  float64 // 원
	MarketCap float64 // 원
}

// DateString 返回 ISO 格式日期
func (b PriceBar) DateString() string {
	return b.Date.Format(time.DateOnly)
}

// BarSet 带列信息的行情集合，Columns 为输入实际提供的列
type BarSet struct {
	Columns []string
	Bars    []PriceBar
	Skipped int // 日期无法解析而跳过的行数
}

func (s BarSet) Has(col string) bool {
	return hasColumn(s.Columns, col)
}

// EnvelopeBar 带均线包络的行情
type EnvelopeBar struct {
	PriceBar
	MA       float64
	EnvUpper float64
	EnvLower float64
	LargeCap bool // market_cap >= highlight 阈值
}

type EnvelopeSet struct {
	Columns []string
	Rows    []EnvelopeBar
}

func (s EnvelopeSet) Has(col string) bool {
	return hasColumn(s.Columns, col)
}

func hasColumn(cols []string, col string) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// Levels 三级买入阈值，A = 包络下轨
type Levels struct {
	A    float64
	B    float64
	C    float64
	GapA float64 // (A - close) / close * 100
	GapB float64
	GapC float64
}

// Defined A 为正数时阈值才有意义
func (l Levels) Defined() bool {
	return !math.IsNaN(l.A) && l.A > 0
}

type LevelRow struct {
	EnvelopeBar
	Levels
}

type Position string

const (
	PositionAboveA  Position = "above-A"
	PositionAB      Position = "between-A-B"
	PositionBC      Position = "between-B-C"
	PositionBelowC  Position = "below-C"
	PositionUnknown Position = ""
)
