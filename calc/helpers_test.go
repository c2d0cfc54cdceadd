package calc

import (
	"math"
	"time"

	"github.com/jing2uo/krx2db/model"
)

var allColumns = []string{
	model.ColDate, model.ColTicker, model.ColName, model.ColMarket,
	model.ColOpen, model.ColHigh, model.ColLow, model.ColClose,
	model.ColVolume, model.ColTurnover, model.ColMarketCap,
}

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func bar(ticker, date string, close, mcap float64) model.PriceBar {
	return model.PriceBar{
		Date:      day(date),
		Ticker:    ticker,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1000,
		Turnover:  math.NaN(),
		MarketCap: mcap,
	}
}

func series(ticker string, mcap float64, closes ...float64) []model.PriceBar {
	start := day("2025-01-01")
	bars := make([]model.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = bar(ticker, start.AddDate(0, 0, i).Format(time.DateOnly), c, mcap)
	}
	return bars
}
