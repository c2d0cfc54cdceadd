package calc

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/utils"
)

type EnvelopeParams struct {
	Window  int     // 均线周期
	BandPct float64 // 包络宽度，0.20 = ±20%
}

// EnrichWithEnvelope 按 ticker 分组计算 N 日均线及上下轨
// 输出按 (ticker, date) 排序，每个 ticker 前 Window-1 行为 NaN
func EnrichWithEnvelope(ctx context.Context, set model.BarSet, p EnvelopeParams) (model.EnvelopeSet, error) {
	for _, c := range []string{model.ColDate, model.ColClose, model.ColTicker} {
		if !set.Has(c) {
			return model.EnvelopeSet{}, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}
	if p.Window < 1 {
		return model.EnvelopeSet{}, fmt.Errorf("invalid ma window %d", p.Window)
	}

	groups, tickers := groupByTicker(set.Bars)

	perTicker := make([][]model.EnvelopeBar, len(tickers))
	pipeline := utils.NewPipeline[string, model.EnvelopeBar]()

	result, err := pipeline.Run(
		ctx,
		tickers,
		func(ctx context.Context, ticker string) ([]model.EnvelopeBar, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			return EnvelopeSeries(groups[ticker], p), nil
		},
		func(idx int, rows []model.EnvelopeBar) error {
			perTicker[idx] = rows
			return nil
		},
	)
	if err != nil {
		return model.EnvelopeSet{}, err
	}
	if result.HasErrors() {
		return model.EnvelopeSet{}, fmt.Errorf("envelope completed with %s", result.ErrorSummary())
	}

	out := model.EnvelopeSet{
		Columns: appendColumns(set.Columns, model.ColMA, model.ColEnvUpper, model.ColEnvLower),
		Rows:    make([]model.EnvelopeBar, 0, len(set.Bars)),
	}
	for _, rows := range perTicker {
		out.Rows = append(out.Rows, rows...)
	}
	return out, nil
}

// EnvelopeSeries 计算单个 ticker 的包络，bars 可以无序
func EnvelopeSeries(bars []model.PriceBar, p EnvelopeParams) []model.EnvelopeBar {
	sorted := make([]model.PriceBar, len(bars))
	copy(sorted, bars)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	out := make([]model.EnvelopeBar, len(sorted))
	for i, b := range sorted {
		ma := rollingMean(sorted, i, p.Window)
		out[i] = model.EnvelopeBar{
			PriceBar: b,
			MA:       ma,
			EnvUpper: ma * (1 + p.BandPct),
			EnvLower: ma * (1 - p.BandPct),
		}
	}
	return out
}

// rollingMean 窗口不满或窗口内有 NaN 时返回 NaN
func rollingMean(bars []model.PriceBar, end, window int) float64 {
	if window < 1 || end+1 < window {
		return math.NaN()
	}
	var sum float64
	for k := end - window + 1; k <= end; k++ {
		sum += bars[k].Close
	}
	return sum / float64(window)
}

// groupByTicker 返回分组及排序后的 ticker 列表
func groupByTicker(bars []model.PriceBar) (map[string][]model.PriceBar, []string) {
	groups := make(map[string][]model.PriceBar)
	for _, b := range bars {
		groups[b.Ticker] = append(groups[b.Ticker], b)
	}

	tickers := make([]string, 0, len(groups))
	for t := range groups {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return groups, tickers
}

func appendColumns(cols []string, extra ...string) []string {
	out := make([]string, 0, len(cols)+len(extra))
	out = append(out, cols...)
	for _, c := range extra {
		found := false
		for _, existing := range out {
			if existing == c {
				found = true
				break
			}
		}
		if !found {
			out = append(out, c)
		}
	}
	return out
}
