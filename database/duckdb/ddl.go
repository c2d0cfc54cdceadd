package duckdb

import (
	"fmt"
	"strings"

	"github.com/jing2uo/krx2db/model"
)

// mapType 将通用 DataType 转换为 DuckDB 的 SQL 类型
func (d *DuckDBDriver) mapType(dt model.DataType) string {
	switch dt {
	case model.TypeString:
		return "VARCHAR"
	case model.TypeFloat64:
		return "DOUBLE"
	case model.TypeInt64:
		return "BIGINT"
	case model.TypeDate:
		return "DATE"
	case model.TypeDateTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (d *DuckDBDriver) createTableInternal(meta *model.TableMeta) error {
	var colDefs []string
	for _, col := range meta.Columns {
		def := fmt.Sprintf("%s %s", col.Name, d.mapType(col.Type))
		if meta.IsKey(col.Name) {
			def += " NOT NULL"
		}
		colDefs = append(colDefs, def)
	}
	if len(meta.PrimaryKey) > 0 {
		colDefs = append(colDefs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(meta.PrimaryKey, ", ")))
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		meta.TableName, strings.Join(colDefs, ", "))

	if _, err := d.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create table %s: %w", meta.TableName, err)
	}
	return nil
}

func (d *DuckDBDriver) registerViews() {

	// 1. 每个 ticker 最新一天的行情
	d.viewImpls[model.ViewLatestPrices] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT *
			FROM %s
			QUALIFY ROW_NUMBER() OVER (PARTITION BY ticker ORDER BY date DESC) = 1
		`, model.ViewLatestPrices, model.TablePricesDaily.TableName)

		_, err := d.db.Exec(query)
		return err
	}

	// 2. 关注池排行：次数 + 最近收盘
	d.viewImpls[model.ViewWatchLeaderboard] = func() error {
		query := fmt.Sprintf(`
			CREATE OR REPLACE VIEW %s AS
			SELECT
				w.ticker,
				COALESCE(w.name, '')       AS name,
				COALESCE(w.market, '')     AS market,
				COALESCE(w.times_above_threshold, 0) AS times_above_threshold,
				COALESCE(w.first_seen, '') AS first_seen,
				w.last_seen,
				COALESCE(w.last_turnover_eok, 0) AS last_turnover_eok,
				p.close AS last_close,
				p.date  AS last_price_date
			FROM %s w
			LEFT JOIN %s p ON p.ticker = w.ticker
		`, model.ViewWatchLeaderboard, model.TableWatchUniverse.TableName, model.ViewLatestPrices)

		_, err := d.db.Exec(query)
		return err
	}
}
