package model

import "time"

// --- 结构体定义 (Schema) ---
// 日期列统一存 ISO 8601 字符串 (YYYY-MM-DD)，可直接按字典序比较

type LeaderHistoryRow struct {
	Date        string   `col:"date"`
	Ticker      string   `col:"ticker"`
	Name        string   `col:"name"`
	Market      string   `col:"market"`
	Close       float64  `col:"close"`
	Volume      int64    `col:"volume"`
	TurnoverEok float64  `col:"turnover_eok"`
	MktcapEok   *float64 `col:"mktcap_eok"`
	FirstSeen   string   `col:"first_seen"`
	LastSeen    string   `col:"last_seen"`
}

type LeaderEventRow struct {
	Ticker      string  `col:"ticker"`
	Date        string  `col:"date"`
	TurnoverEok float64 `col:"turnover_eok"`
	Close       float64 `col:"close"`
	High        float64 `col:"high"`
	Low         float64 `col:"low"`
	Volume      int64   `col:"volume"`
}

type WatchUniverseRow struct {
	Ticker              string  `col:"ticker"`
	Name                string  `col:"name"`
	Market              string  `col:"market"`
	FirstSeen           string  `col:"first_seen"`
	LastSeen            *string `col:"last_seen"`
	TimesAboveThreshold int64   `col:"times_above_threshold"`
	LastTurnoverEok     float64 `col:"last_turnover_eok"`
}

type DailyPriceRow struct {
	Date        string  `col:"date"`
	Ticker      string  `col:"ticker"`
	Open        float64 `col:"open"`
	High        float64 `col:"high"`
	Low         float64 `col:"low"`
	Close       float64 `col:"close"`
	Volume      int64   `col:"volume"`
	TurnoverEok float64 `col:"turnover_eok"`
}

// RunLogRow 记录已完成的交易日，用于防止重放时重复计数
type RunLogRow struct {
	Date       string    `col:"date"`
	FinishedAt time.Time `col:"finished_at" type:"datetime"`
	Leaders    int64     `col:"leaders"`
	Universe   int64     `col:"universe"`
}

// --- 表结构元数据 (TableMeta) ---

var TableLeadersHistory = SchemaFromStruct(
	"leaders_history",
	LeaderHistoryRow{},
	[]string{"date", "ticker"},
)

var TableLeadersEvents = SchemaFromStruct(
	"leaders_events",
	LeaderEventRow{},
	[]string{"ticker", "date"},
)

var TableWatchUniverse = SchemaFromStruct(
	"watch_universe",
	WatchUniverseRow{},
	[]string{"ticker"},
)

var TablePricesDaily = SchemaFromStruct(
	"prices_daily",
	DailyPriceRow{},
	[]string{"date", "ticker"},
)

var TableRunLog = SchemaFromStruct(
	"run_log",
	RunLogRow{},
	[]string{"date"},
)

// DailyRows 一个交易日需要写入四张状态表的数据
type DailyRows struct {
	History  []LeaderHistoryRow
	Events   []LeaderEventRow
	Universe []WatchUniverseRow
	Prices   []DailyPriceRow
}
