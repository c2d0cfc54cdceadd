package calc

import (
	"fmt"
	"math"
	"sort"

	"github.com/jing2uo/krx2db/model"
)

// DefaultTurnoverThresholdEok 成交额超过 5000 억원视为当日 leader
const DefaultTurnoverThresholdEok = 5000.0

type LeaderParams struct {
	TurnoverThresholdEok float64
}

// CheckBatchDate replay 输入必须只包含 date 这一天
func CheckBatchDate(bars []model.PriceBar, date string) error {
	seen := make(map[string]struct{})
	for _, b := range bars {
		seen[b.DateString()] = struct{}{}
	}

	if _, ok := seen[date]; ok && len(seen) == 1 {
		return nil
	}

	found := make([]string, 0, len(seen))
	for d := range seen {
		found = append(found, d)
	}
	sort.Strings(found)
	return fmt.Errorf("%w: expected %s, got %v", ErrDateMismatch, date, found)
}

// SplitLeaders universe 为 date 当天全部行，leaders 为其中成交额超过阈值的行
func SplitLeaders(bars []model.PriceBar, date string, p LeaderParams) (leaders, universe []model.PriceBar) {
	for _, b := range bars {
		if b.DateString() != date {
			continue
		}
		universe = append(universe, b)
		if eok := ToEok(b.Turnover); !math.IsNaN(eok) && eok > p.TurnoverThresholdEok {
			leaders = append(leaders, b)
		}
	}
	return leaders, universe
}

// LeaderSet ticker 集合
func LeaderSet(leaders []model.PriceBar) map[string]bool {
	set := make(map[string]bool, len(leaders))
	for _, b := range leaders {
		set[b.Ticker] = true
	}
	return set
}

// BuildDailyRows 生成四张状态表的行
// firstSeen 为 leaders_history 中每个 ticker 已有的最早日期，history.first_seen 取其与 date 的较小值
func BuildDailyRows(leaders, universe []model.PriceBar, date string, firstSeen map[string]string) model.DailyRows {
	var rows model.DailyRows

	for _, b := range leaders {
		fs := date
		if prev, ok := firstSeen[b.Ticker]; ok && prev != "" && prev < fs {
			fs = prev
		}

		var mcap *float64
		if finite(b.MarketCap) {
			v := ToEok(b.MarketCap)
			mcap = &v
		}

		rows.History = append(rows.History, model.LeaderHistoryRow{
			Date:        date,
			Ticker:      b.Ticker,
			Name:        b.Name,
			Market:      b.Market,
			Close:       b.Close,
			Volume:      b.Volume,
			TurnoverEok: ToEok(b.Turnover),
			MktcapEok:   mcap,
			FirstSeen:   fs,
			LastSeen:    date,
		})

		rows.Events = append(rows.Events, model.LeaderEventRow{
			Ticker:      b.Ticker,
			Date:        date,
			TurnoverEok: ToEok(b.Turnover),
			Close:       b.Close,
			High:        b.High,
			Low:         b.Low,
			Volume:      b.Volume,
		})
	}

	for _, b := range universe {
		rows.Universe = append(rows.Universe, model.WatchUniverseRow{
			Ticker:          b.Ticker,
			Name:            b.Name,
			Market:          b.Market,
			FirstSeen:       date,
			LastTurnoverEok: ToEok(b.Turnover),
		})

		rows.Prices = append(rows.Prices, model.DailyPriceRow{
			Date:        date,
			Ticker:      b.Ticker,
			Open:        b.Open,
			High:        b.High,
			Low:         b.Low,
			Close:       b.Close,
			Volume:      b.Volume,
			TurnoverEok: ToEok(b.Turnover),
		})
	}

	return rows
}
