package report

import (
	"fmt"
	"path/filepath"

	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/utils"
)

type LeaderBackupRow struct {
	Date        string  `col:"date"`
	Ticker      string  `col:"ticker"`
	Name        string  `col:"name"`
	Market      string  `col:"market"`
	Close       float64 `col:"close"`
	Volume      int64   `col:"volume"`
	TurnoverEok float64 `col:"turnover_eok"`
}

// WriteLeadersBackup 当日领涨股备份到 dir/leaders_YYYYMMDD.csv，返回文件路径
func WriteLeadersBackup(dir, date string, leaders []model.LeaderHistoryRow) (string, error) {
	if err := utils.CheckOutputDir(dir); err != nil {
		return "", err
	}

	rows := make([]LeaderBackupRow, len(leaders))
	for i, l := range leaders {
		rows[i] = LeaderBackupRow{
			Date:        l.Date,
			Ticker:      l.Ticker,
			Name:        l.Name,
			Market:      l.Market,
			Close:       l.Close,
			Volume:      l.Volume,
			TurnoverEok: l.TurnoverEok,
		}
	}

	path := filepath.Join(dir, fmt.Sprintf("leaders_%s.csv", compactDate(date)))
	if err := utils.WriteCSV(path, rows, utils.WithBOM()); err != nil {
		return "", fmt.Errorf("failed to write leaders backup: %w", err)
	}
	return path, nil
}
