package calc

import "github.com/jing2uo/krx2db/model"

// WatchState watch_universe 中已存储的计数状态
type WatchState struct {
	Times     int64
	FirstSeen string
	LastSeen  *string
}

// IncrementLeaderCounts 在已存状态上累加当日 leader 次数
//   - times = 已存次数 (无记录为 0) + 当日是否 leader
//   - first_seen 已存在时沿用
//   - last_seen 仅在当日为 leader 时更新，不会回退到更早的日期
func IncrementLeaderCounts(
	rows []model.WatchUniverseRow,
	stored map[string]WatchState,
	leaders map[string]bool,
	date string,
) []model.WatchUniverseRow {
	out := make([]model.WatchUniverseRow, len(rows))

	for i, r := range rows {
		prev, exists := stored[r.Ticker]

		r.TimesAboveThreshold = prev.Times
		if exists && prev.FirstSeen != "" {
			r.FirstSeen = prev.FirstSeen
		}
		r.LastSeen = copyString(prev.LastSeen)

		if leaders[r.Ticker] {
			r.TimesAboveThreshold++
			if r.LastSeen == nil || *r.LastSeen < date {
				d := date
				r.LastSeen = &d
			}
		}

		out[i] = r
	}

	return out
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
