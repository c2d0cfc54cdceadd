package calc

import (
	"fmt"
	"math"

	"github.com/jing2uo/krx2db/model"
)

// DefaultTierStep B = A*step, C = B*step
const DefaultTierStep = 0.9

// LevelsFor A = envLower，B/C 依次按 step 下调
func LevelsFor(envLower, close, step float64) model.Levels {
	a := envLower
	b := a * step
	c := b * step
	return model.Levels{
		A:    a,
		B:    b,
		C:    c,
		GapA: pctGap(a, close),
		GapB: pctGap(b, close),
		GapC: pctGap(c, close),
	}
}

// pctGap (level - close) / close * 100，正值表示阈值在现价之下还需下跌
func pctGap(level, close float64) float64 {
	if math.IsNaN(level) || math.IsNaN(close) || close == 0 {
		return math.NaN()
	}
	return (level - close) / close * 100.0
}

// ComputeLevels 为快照中每行计算 A/B/C 及距离
func ComputeLevels(set model.EnvelopeSet, step float64) ([]model.LevelRow, error) {
	for _, c := range []string{model.ColClose, model.ColEnvLower} {
		if !set.Has(c) {
			return nil, fmt.Errorf("%w: %s (enrich with envelope first)", ErrMissingColumn, c)
		}
	}
	if !(step > 0 && step < 1) {
		return nil, fmt.Errorf("invalid tier step %v", step)
	}

	out := make([]model.LevelRow, len(set.Rows))
	for i, r := range set.Rows {
		out[i] = model.LevelRow{
			EnvelopeBar: r,
			Levels:      LevelsFor(r.EnvLower, r.Close, step),
		}
	}
	return out, nil
}

// ClassifyPosition 价格相对三级阈值的位置，阈值无效时返回 PositionUnknown
func ClassifyPosition(price float64, lv model.Levels) model.Position {
	if !lv.Defined() || math.IsNaN(price) {
		return model.PositionUnknown
	}
	switch {
	case price >= lv.A:
		return model.PositionAboveA
	case price >= lv.B:
		return model.PositionAB
	case price >= lv.C:
		return model.PositionBC
	default:
		return model.PositionBelowC
	}
}

// GapToNext 到价格之下最近一级阈值的距离 (X - price) / X * 100
// 低于 C 时返回 0，阈值无效时返回 NaN
func GapToNext(price float64, lv model.Levels) float64 {
	var x float64
	switch ClassifyPosition(price, lv) {
	case model.PositionAboveA:
		x = lv.A
	case model.PositionAB:
		x = lv.B
	case model.PositionBC:
		x = lv.C
	case model.PositionBelowC:
		return 0
	default:
		return math.NaN()
	}
	return (x - price) / x * 100.0
}

// FormatGap 显示用，取绝对值保留一位小数
func FormatGap(gap float64) string {
	if math.IsNaN(gap) || math.IsInf(gap, 0) {
		return ""
	}
	return fmt.Sprintf("%.1f", math.Abs(gap))
}
