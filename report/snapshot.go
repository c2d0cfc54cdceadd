package report

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/utils"
)

const SnapshotSheet = "S1_SNAPSHOT"

// SnapshotColumns 报表列顺序
var SnapshotColumns = []string{
	"ticker",
	"mcap_eok",
	"is_ge_5trn",
	"close",
	"ma", // 窗口可配置，列名不带周期
	"env_lower(A)",
	"B",
	"C",
	"gap_to_A_pct",
	"gap_to_B_pct",
	"gap_to_C_pct",
	"touch_env_lower",
}

// SnapshotRow 报表中的一行，数值已按显示精度取整
type SnapshotRow struct {
	Ticker        string
	McapEok       *int64 // 市值未知时为空
	IsGe5trn      bool
	Close         float64
	MA            float64
	EnvLower      float64 // A
	B             float64
	C             float64
	GapA          float64
	GapB          float64
	GapC          float64
	TouchEnvLower bool
}

// BuildSnapshot 大市值在前，同组内按 gap_to_A 升序，NaN 排最后
func BuildSnapshot(levels []model.LevelRow) []SnapshotRow {
	rows := make([]SnapshotRow, len(levels))
	for i, lr := range levels {
		r := SnapshotRow{
			Ticker:   lr.Ticker,
			IsGe5trn: lr.LargeCap,
			Close:    calc.Round(lr.Close, 2),
			MA:       calc.Round(lr.MA, 2),
			EnvLower: calc.Round(lr.A, 2),
			B:        calc.Round(lr.B, 2),
			C:        calc.Round(lr.C, 2),
			GapA:     calc.Round(lr.GapA, 2),
			GapB:     calc.Round(lr.GapB, 2),
			GapC:     calc.Round(lr.GapC, 2),
			// NaN 比较恒为 false
			TouchEnvLower: lr.Close <= lr.EnvLower,
		}
		if eok := calc.ToEok(lr.MarketCap); !math.IsNaN(eok) {
			v := int64(calc.Round(eok, 0))
			r.McapEok = &v
		}
		rows[i] = r
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.IsGe5trn != b.IsGe5trn {
			return a.IsGe5trn
		}
		an, bn := math.IsNaN(a.GapA), math.IsNaN(b.GapA)
		if an || bn {
			return !an && bn
		}
		return a.GapA < b.GapA
	})
	return rows
}

func (r SnapshotRow) values() []interface{} {
	var mcap interface{}
	if r.McapEok != nil {
		mcap = *r.McapEok
	}
	return []interface{}{
		r.Ticker,
		mcap,
		r.IsGe5trn,
		cellFloat(r.Close),
		cellFloat(r.MA),
		cellFloat(r.EnvLower),
		cellFloat(r.B),
		cellFloat(r.C),
		cellFloat(r.GapA),
		cellFloat(r.GapB),
		cellFloat(r.GapC),
		r.TouchEnvLower,
	}
}

// cellFloat NaN 写成空单元格
func cellFloat(v float64) interface{} {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// DefaultSnapshotPath 与输入文件同目录的 S1_snapshot_YYYYMMDD.xlsx
func DefaultSnapshotPath(input string, now time.Time) string {
	return filepath.Join(filepath.Dir(input), fmt.Sprintf("S1_snapshot_%s.xlsx", now.Format("20060102")))
}

// WriteSnapshotXLSX 写入单个工作表，父目录不存在时自动创建
func WriteSnapshotXLSX(path string, rows []SnapshotRow) error {
	if err := utils.EnsureParentDir(path); err != nil {
		return err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName("Sheet1", SnapshotSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	header := make([]interface{}, len(SnapshotColumns))
	for i, h := range SnapshotColumns {
		header[i] = h
	}
	if err := wb.SetSheetRow(SnapshotSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := r.values()
		if err := wb.SetSheetRow(SnapshotSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(SnapshotColumns))
	if err != nil {
		return err
	}
	if err := wb.SetColWidth(SnapshotSheet, "A", lastCol, 14); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}
