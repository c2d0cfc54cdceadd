package model

import "sync"

type ViewID string

var (
	viewRegistry   []ViewID
	viewRegistryMu sync.Mutex
)

func DefineView(name string) ViewID {
	viewRegistryMu.Lock()
	defer viewRegistryMu.Unlock()

	id := ViewID(name)
	viewRegistry = append(viewRegistry, id)
	return id
}

func AllViews() []ViewID {
	viewRegistryMu.Lock()
	defer viewRegistryMu.Unlock()

	result := make([]ViewID, len(viewRegistry))
	copy(result, viewRegistry)
	return result
}

// --- 定义视图 ---

var (
	ViewLatestPrices     = DefineView("v_latest_prices")
	ViewWatchLeaderboard = DefineView("v_watch_leaderboard")
)

// LeaderboardRow v_watch_leaderboard 的一行
type LeaderboardRow struct {
	Ticker              string   `col:"ticker"`
	Name                string   `col:"name"`
	Market              string   `col:"market"`
	TimesAboveThreshold int64    `col:"times_above_threshold"`
	FirstSeen           string   `col:"first_seen"`
	LastSeen            *string  `col:"last_seen"`
	LastTurnoverEok     float64  `col:"last_turnover_eok"`
	LastClose           *float64 `col:"last_close"`
	LastPriceDate       *string  `col:"last_price_date"`
}
