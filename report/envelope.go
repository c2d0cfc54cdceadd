package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/utils"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported format %q (csv|parquet)", s)
	}
}

var positionLabels = map[model.Position]string{
	model.PositionAboveA: "상단~1차 사이",
	model.PositionAB:     "1차~2차 사이",
	model.PositionBC:     "2차~3차 사이",
	model.PositionBelowC: "3차 하회",
}

// PositionLabel 导出文件中使用的位置文字，未知位置为空串
func PositionLabel(p model.Position) string {
	return positionLabels[p]
}

// EnvelopeRecord 多日包络导出的一行
type EnvelopeRecord struct {
	Date     string  `col:"date" parquet:"date"`
	Ticker   string  `col:"ticker" parquet:"ticker"`
	Name     string  `col:"name" parquet:"name"`
	Open     float64 `col:"open" parquet:"open"`
	High     float64 `col:"high" parquet:"high"`
	Low      float64 `col:"low" parquet:"low"`
	Close    float64 `col:"close" parquet:"close"`
	Volume   int64   `col:"volume" parquet:"volume"`
	MA       float64 `col:"ma" parquet:"ma"`
	EnvUpper float64 `col:"env_upper" parquet:"env_upper"`
	EnvLower float64 `col:"env_lower" parquet:"env_lower"`
	Buy1     float64 `col:"buy1" parquet:"buy1"`
	Buy2     float64 `col:"buy2" parquet:"buy2"`
	Buy3     float64 `col:"buy3" parquet:"buy3"`
	PosClose string  `col:"pos_close" parquet:"pos_close"`
	PosLow   string  `col:"pos_low" parquet:"pos_low"`
	GapPct   float64 `col:"gap%" parquet:"gap_pct"`
}

// BuildEnvelopeRecords buy1 = env_lower，之后每级乘以 step
// gap% 为收盘价到其下方最近一级的距离，跌破 buy3 时为 0
func BuildEnvelopeRecords(set model.EnvelopeSet, step float64) []EnvelopeRecord {
	out := make([]EnvelopeRecord, len(set.Rows))
	for i, r := range set.Rows {
		lv := calc.LevelsFor(r.EnvLower, r.Close, step)
		out[i] = EnvelopeRecord{
			Date:     r.DateString(),
			Ticker:   r.Ticker,
			Name:     r.Name,
			Open:     r.Open,
			High:     r.High,
			Low:      r.Low,
			Close:    r.Close,
			Volume:   r.Volume,
			MA:       r.MA,
			EnvUpper: r.EnvUpper,
			EnvLower: r.EnvLower,
			Buy1:     lv.A,
			Buy2:     lv.B,
			Buy3:     lv.C,
			PosClose: PositionLabel(calc.ClassifyPosition(r.Close, lv)),
			PosLow:   PositionLabel(calc.ClassifyPosition(r.Low, lv)),
			GapPct:   calc.GapToNext(r.Close, lv),
		}
	}
	return out
}

// TargetRecord 市值筛选后的标的清单
type TargetRecord struct {
	Ticker      string  `col:"ticker"`
	Name        string  `col:"name"`
	MarketCap   float64 `col:"market_cap"`
	McapDisplay string  `col:"mcap_display"`
	IsGe5trn    bool    `col:"is_ge_5trn"`
	Close       float64 `col:"close"`
	EnvLower    float64 `col:"env_lower"`
	PosClose    string  `col:"pos_close"`
	Gap         string  `col:"gap"`
}

// BuildTargets 输入为已按市值过滤的最新快照，大市值在前，同组按市值降序
func BuildTargets(latest model.EnvelopeSet, step float64) []TargetRecord {
	out := make([]TargetRecord, len(latest.Rows))
	for i, r := range latest.Rows {
		lv := calc.LevelsFor(r.EnvLower, r.Close, step)
		out[i] = TargetRecord{
			Ticker:      r.Ticker,
			Name:        r.Name,
			MarketCap:   r.MarketCap,
			McapDisplay: calc.FormatMarketCap(r.MarketCap),
			IsGe5trn:    r.LargeCap,
			Close:       r.Close,
			EnvLower:    r.EnvLower,
			PosClose:    PositionLabel(calc.ClassifyPosition(r.Close, lv)),
			Gap:         calc.FormatGap(calc.GapToNext(r.Close, lv)),
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsGe5trn != out[j].IsGe5trn {
			return out[i].IsGe5trn
		}
		return out[i].MarketCap > out[j].MarketCap
	})
	return out
}

// EnvelopePath s1_envelope_YYYYMMDD.{csv,parquet}
func EnvelopePath(dir, ref string, f Format) string {
	return filepath.Join(dir, fmt.Sprintf("s1_envelope_%s.%s", compactDate(ref), f))
}

// TargetsPath s1_targets_YYYYMMDD.csv
func TargetsPath(dir, ref string) string {
	return filepath.Join(dir, fmt.Sprintf("s1_targets_%s.csv", compactDate(ref)))
}

// WriteEnvelope CSV 带 BOM，方便 Excel 直接打开
func WriteEnvelope(path string, f Format, records []EnvelopeRecord) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	switch f {
	case FormatParquet:
		return utils.WriteParquet(path, records)
	default:
		return utils.WriteCSV(path, records, utils.WithBOM())
	}
}

func WriteTargets(path string, records []TargetRecord) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}
	return utils.WriteCSV(path, records, utils.WithBOM())
}

func compactDate(d string) string {
	return strings.ReplaceAll(d, "-", "")
}
