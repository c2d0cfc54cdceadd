package krx

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/model"
)

func TestParsePrices_ReplaySchema(t *testing.T) {
	input := "\uFEFFdate,ticker,name,market,open,high,low,close,volume,turnover,market_cap\n" +
		"2025-09-30,5930,삼성전자,kospi,\"70,000\",71000,69000,70500,1000000,600000000000,4.2e14\n" +
		"2025-09-30,660,SK하이닉스,KOSPI,300000,310000,299000,305000,500000,,\n"

	set, err := ParsePrices(strings.NewReader(input))
	require.NoError(t, err)

	assert.True(t, set.Has(model.ColMarketCap))
	assert.True(t, set.Has(model.ColTurnover))
	require.Len(t, set.Bars, 2)

	// 按 ticker 排序，代码补齐 6 位
	assert.Equal(t, "000660", set.Bars[0].Ticker)
	assert.Equal(t, "005930", set.Bars[1].Ticker)

	s := set.Bars[1]
	assert.Equal(t, "2025-09-30", s.DateString())
	assert.Equal(t, "삼성전자", s.Name)
	assert.Equal(t, "KOSPI", s.Market)
	assert.Equal(t, 70000.0, s.Open)
	assert.Equal(t, int64(1000000), s.Volume)
	assert.Equal(t, 6e11, s.Turnover)
	assert.Equal(t, 4.2e14, s.MarketCap)

	assert.True(t, math.IsNaN(set.Bars[0].Turnover))
	assert.True(t, math.IsNaN(set.Bars[0].MarketCap))
}

func TestParsePrices_KoreanHeaders(t *testing.T) {
	input := "날짜,티커,시가,고가,저가,종가,거래량\n" +
		"20250102,005930,1,2,0.5,1.5,10\n" +
		"20250101,005930,1,2,0.5,1.2,10\n"

	set, err := ParsePrices(strings.NewReader(input))
	require.NoError(t, err)

	assert.False(t, set.Has(model.ColMarketCap))
	require.Len(t, set.Bars, 2)
	assert.Equal(t, "2025-01-01", set.Bars[0].DateString())
	assert.Equal(t, 1.5, set.Bars[1].Close)
}

func TestParsePrices_DuplicateKeyLaterWins(t *testing.T) {
	input := "date,ticker,close\n" +
		"2025-01-01,000001,10\n" +
		"2025-01-01,000001,11\n"

	set, err := ParsePrices(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, set.Bars, 1)
	assert.Equal(t, 11.0, set.Bars[0].Close)
}

func TestParsePrices_SkipsBadDates(t *testing.T) {
	input := "date,ticker,close\n" +
		"not-a-date,000001,10\n" +
		"2025-01-01,000001,11\n"

	set, err := ParsePrices(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, set.Bars, 1)
	assert.Equal(t, 1, set.Skipped)
}

func TestParsePrices_RequiredColumns(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		required []string
		missing  string
	}{
		{"ticker always required", "date,name,close", nil, "ticker"},
		{"date always required", "ticker,close", nil, "date"},
		{"bar columns", "date,ticker,close", BarColumns, "open, high, low, volume"},
		{"replay needs turnover", "date,ticker,open,high,low,close,volume", ReplayColumns, "turnover"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePrices(strings.NewReader(tt.header+"\n"), tt.required...)
			require.ErrorIs(t, err, calc.ErrMissingColumn)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}

	set, err := ParsePrices(strings.NewReader("종목코드,날짜,시가,고가,저가,종가,거래량,거래대금\n"), ReplayColumns...)
	require.NoError(t, err)
	assert.Empty(t, set.Bars)
}

func TestParsePrices_SkipsEmptyTicker(t *testing.T) {
	input := "date,ticker,close\n" +
		"2025-01-01,,10\n" +
		"2025-01-01,  ,11\n" +
		"2025-01-01,000001,12\n"

	set, err := ParsePrices(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, set.Bars, 1)
	assert.Equal(t, "000001", set.Bars[0].Ticker)
	assert.Equal(t, 2, set.Skipped)
}

func TestParsePrices_BadNumber(t *testing.T) {
	_, err := ParsePrices(strings.NewReader("date,ticker,close\n2025-01-01,000001,abc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParsePrices_Empty(t *testing.T) {
	_, err := ParsePrices(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadPricesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ohlcv.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,ticker,close\n2025-01-01,1,10\n"), 0644))

	set, err := ReadPricesCSV(path)
	require.NoError(t, err)
	require.Len(t, set.Bars, 1)
	assert.Equal(t, "000001", set.Bars[0].Ticker)

	_, err = ReadPricesCSV(path, BarColumns...)
	assert.ErrorIs(t, err, calc.ErrMissingColumn)

	_, err = ReadPricesCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestFromDailyPrices(t *testing.T) {
	set, err := FromDailyPrices([]model.DailyPriceRow{
		{Date: "2025-09-30", Ticker: "000001", Close: 10, TurnoverEok: 5000},
	})
	require.NoError(t, err)
	require.Len(t, set.Bars, 1)
	assert.Equal(t, 5e11, set.Bars[0].Turnover)
	assert.True(t, set.Has(model.ColClose))
	assert.False(t, set.Has(model.ColMarketCap))
}
