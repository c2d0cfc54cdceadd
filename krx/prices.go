package krx

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/utils"
)

var (
	// BaseColumns 任何输入都必须有
	BaseColumns = []string{model.ColDate, model.ColTicker, model.ColClose}
	// BarColumns 日线行情
	BarColumns = []string{
		model.ColDate, model.ColTicker, model.ColOpen, model.ColHigh,
		model.ColLow, model.ColClose, model.ColVolume,
	}
	// ReplayColumns 重放文件另需成交额
	ReplayColumns = append(append([]string{}, BarColumns...), model.ColTurnover)
)

// headerAliases pykrx 导出的韩文列名及常见别名
var headerAliases = map[string]string{
	"날짜":        model.ColDate,
	"일자":        model.ColDate,
	"티커":        model.ColTicker,
	"종목코드":      model.ColTicker,
	"code":      model.ColTicker,
	"symbol":    model.ColTicker,
	"종목명":       model.ColName,
	"시장":        model.ColMarket,
	"시가":        model.ColOpen,
	"고가":        model.ColHigh,
	"저가":        model.ColLow,
	"종가":        model.ColClose,
	"거래량":       model.ColVolume,
	"거래대금":      model.ColTurnover,
	"amount":    model.ColTurnover,
	"시가총액":      model.ColMarketCap,
	"mktcap":    model.ColMarketCap,
	"marketcap": model.ColMarketCap,
}

var knownColumns = map[string]bool{
	model.ColDate: true, model.ColTicker: true, model.ColName: true, model.ColMarket: true,
	model.ColOpen: true, model.ColHigh: true, model.ColLow: true, model.ColClose: true,
	model.ColVolume: true, model.ColTurnover: true, model.ColMarketCap: true,
}

var dateLayouts = []string{
	time.DateOnly,
	"20060102",
	"2006/01/02",
	"2006.01.02",
	time.DateTime,
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseNumber 空值、"-" 返回 NaN，千分位逗号会被去掉
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// ReadPricesCSV 读取日线 CSV，列顺序任意，多余的列忽略
// required 之外还总是要求 BaseColumns
func ReadPricesCSV(path string, required ...string) (model.BarSet, error) {
	if err := utils.CheckFile(path); err != nil {
		return model.BarSet{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return model.BarSet{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	set, err := ParsePrices(f, required...)
	if err != nil {
		return model.BarSet{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return set, nil
}

// ParsePrices 同一 (date, ticker) 出现多次时后出现的行覆盖前面的
// 结果按 (ticker, date) 排序，ticker 为空的行计入 Skipped
func ParsePrices(r io.Reader, required ...string) (model.BarSet, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		br.Discard(3)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return model.BarSet{}, errors.New("empty csv")
		}
		return model.BarSet{}, err
	}

	index := make(map[string]int)
	var columns []string
	for i, h := range header {
		name := normalizeHeader(h)
		if !knownColumns[name] {
			continue
		}
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = i
		columns = append(columns, name)
	}

	if err := checkRequired(index, append(append([]string{}, BaseColumns...), required...)); err != nil {
		return model.BarSet{}, err
	}

	set := model.BarSet{Columns: columns}
	seen := make(map[string]int)

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return model.BarSet{}, fmt.Errorf("line %d: %w", line, err)
		}

		b, ok, err := parseRow(record, index)
		if err != nil {
			return model.BarSet{}, fmt.Errorf("line %d: %w", line, err)
		}
		if !ok {
			set.Skipped++
			continue
		}

		key := b.DateString() + "|" + b.Ticker
		if i, dup := seen[key]; dup {
			set.Bars[i] = b
			continue
		}
		seen[key] = len(set.Bars)
		set.Bars = append(set.Bars, b)
	}

	sort.SliceStable(set.Bars, func(i, j int) bool {
		if set.Bars[i].Ticker != set.Bars[j].Ticker {
			return set.Bars[i].Ticker < set.Bars[j].Ticker
		}
		return set.Bars[i].Date.Before(set.Bars[j].Date)
	})

	return set, nil
}

func checkRequired(index map[string]int, required []string) error {
	var missing []string
	seen := make(map[string]bool, len(required))
	for _, c := range required {
		if _, ok := index[c]; !ok && !seen[c] {
			missing = append(missing, c)
		}
		seen[c] = true
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", calc.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

func parseRow(record []string, index map[string]int) (model.PriceBar, bool, error) {
	field := func(col string) (string, bool) {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return "", false
		}
		return record[i], true
	}
	number := func(col string) (float64, error) {
		s, ok := field(col)
		if !ok {
			return math.NaN(), nil
		}
		v, err := parseNumber(s)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", col, err)
		}
		return v, nil
	}

	var b model.PriceBar

	if s, ok := field(model.ColDate); ok {
		d, err := parseDate(s)
		if err != nil {
			return b, false, nil
		}
		b.Date = d
	}

	if s, ok := field(model.ColTicker); ok {
		if t, valid := utils.NormalizeTicker(s); valid {
			b.Ticker = t
		} else {
			b.Ticker = strings.TrimSpace(s)
		}
	}
	if b.Ticker == "" {
		return b, false, nil
	}
	if s, ok := field(model.ColName); ok {
		b.Name = strings.TrimSpace(s)
	}
	if s, ok := field(model.ColMarket); ok {
		b.Market = strings.ToUpper(strings.TrimSpace(s))
	}

	var err error
	if b.Open, err = number(model.ColOpen); err != nil {
		return b, false, err
	}
	if b.High, err = number(model.ColHigh); err != nil {
		return b, false, err
	}
	if b.Low, err = number(model.ColLow); err != nil {
		return b, false, err
	}
	if b.Close, err = number(model.ColClose); err != nil {
		return b, false, err
	}
	if b.Turnover, err = number(model.ColTurnover); err != nil {
		return b, false, err
	}
	if b.MarketCap, err = number(model.ColMarketCap); err != nil {
		return b, false, err
	}

	vol, err := number(model.ColVolume)
	if err != nil {
		return b, false, err
	}
	if !math.IsNaN(vol) {
		b.Volume = int64(vol)
	}

	return b, true, nil
}

// FromDailyPrices 把 prices_daily 中的行还原为 BarSet，成交额换回원
func FromDailyPrices(rows []model.DailyPriceRow) (model.BarSet, error) {
	set := model.BarSet{
		Columns: []string{
			model.ColDate, model.ColTicker, model.ColOpen, model.ColHigh,
			model.ColLow, model.ColClose, model.ColVolume, model.ColTurnover,
		},
		Bars: make([]model.PriceBar, 0, len(rows)),
	}

	for _, r := range rows {
		d, err := parseDate(r.Date)
		if err != nil {
			return model.BarSet{}, fmt.Errorf("prices_daily %s: %w", r.Ticker, err)
		}
		set.Bars = append(set.Bars, model.PriceBar{
			Date:      d,
			Ticker:    r.Ticker,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.Volume,
			Turnover:  r.TurnoverEok * 1e8,
			MarketCap: math.NaN(),
		})
	}
	return set, nil
}
