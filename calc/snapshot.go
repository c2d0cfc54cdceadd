package calc

import (
	"sort"
	"time"

	"github.com/jing2uo/krx2db/model"
)

// LatestSnapshot 每个 ticker 取日期最大的一行
// 同一最大日期出现多次时取输入中最先出现的那行，结果按 ticker 排序
func LatestSnapshot(set model.EnvelopeSet) model.EnvelopeSet {
	latest := make(map[string]int, 64)
	for i, r := range set.Rows {
		j, ok := latest[r.Ticker]
		if !ok || r.Date.After(set.Rows[j].Date) {
			latest[r.Ticker] = i
		}
	}

	out := model.EnvelopeSet{
		Columns: set.Columns,
		Rows:    make([]model.EnvelopeBar, 0, len(latest)),
	}
	for _, i := range latest {
		out.Rows = append(out.Rows, set.Rows[i])
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		return out.Rows[i].Ticker < out.Rows[j].Ticker
	})
	return out
}

// RecentDates 只保留最近 n 个不同交易日的行，n <= 0 时原样返回
func RecentDates(set model.EnvelopeSet, n int) model.EnvelopeSet {
	if n <= 0 {
		return set
	}

	days := make(map[time.Time]struct{})
	for _, r := range set.Rows {
		days[r.Date] = struct{}{}
	}
	if len(days) <= n {
		return set
	}

	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].After(sorted[j]) })
	cutoff := sorted[n-1]

	out := model.EnvelopeSet{Columns: set.Columns}
	for _, r := range set.Rows {
		if !r.Date.Before(cutoff) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
