package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/jing2uo/krx2db/model"
)

// mergeRules 非主键列冲突时的取值，未列出的列直接取新值
var mergeRules = map[string]map[string]string{
	model.TableLeadersHistory.TableName: {
		// 取较早的 first_seen，任一方为 NULL 时取另一方
		"first_seen": "LEAST(COALESCE(first_seen, excluded.first_seen), COALESCE(excluded.first_seen, first_seen))",
	},
	model.TableWatchUniverse.TableName: {
		"first_seen": "COALESCE(first_seen, excluded.first_seen)",
	},
}

func upsertSQL(meta *model.TableMeta) string {
	cols := meta.ColumnNames()

	placeholders := make([]string, len(cols))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	rules := mergeRules[meta.TableName]
	var sets []string
	for _, c := range cols {
		if meta.IsKey(c) {
			continue
		}
		expr, ok := rules[c]
		if !ok {
			expr = "excluded." + c
		}
		sets = append(sets, fmt.Sprintf("%s = %s", c, expr))
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		meta.TableName,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(meta.PrimaryKey, ", "),
		action,
	)
}

func (d *DuckDBDriver) UpsertMany(ctx context.Context, table string, rows []model.Row) (int64, error) {
	meta, err := model.LookupTable(table)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	n, err := upsertTx(ctx, tx, meta, rows)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert into %s: %w", table, err)
	}
	return n, nil
}

// upsertTx 逐行执行同一条预编译语句，同一键在一次调用内可以出现多次
func upsertTx(ctx context.Context, tx *sqlx.Tx, meta *model.TableMeta, rows []model.Row) (int64, error) {
	cols := meta.ColumnNames()
	known := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		known[c] = struct{}{}
	}

	stmt, err := tx.PreparexContext(ctx, upsertSQL(meta))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert into %s: %w", meta.TableName, err)
	}
	defer stmt.Close()

	var total int64
	args := make([]interface{}, len(cols))
	for i, row := range rows {
		for k := range row {
			if _, ok := known[k]; !ok {
				return 0, fmt.Errorf("row %d: table %s has no column %q", i, meta.TableName, k)
			}
		}
		for j, c := range cols {
			args[j] = row[c]
		}

		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert row %d into %s: %w", i, meta.TableName, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}

	return total, nil
}

func (d *DuckDBDriver) GetLatestDate(tableName string, dateCol string) (string, error) {
	query := fmt.Sprintf("SELECT CAST(max(%s) AS VARCHAR) AS latest FROM %s", dateCol, tableName)

	var latest sql.NullString
	if err := d.db.Get(&latest, query); err != nil {
		return "", err
	}
	return latest.String, nil
}

func (d *DuckDBDriver) HistoryFirstSeen(ctx context.Context, tickers []string) (map[string]string, error) {
	result := make(map[string]string, len(tickers))
	if len(tickers) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT ticker, LEAST(MIN(first_seen), MIN(date)) AS first_seen
		FROM %s
		WHERE ticker IN (?)
		GROUP BY ticker
	`, model.TableLeadersHistory.TableName), tickers)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		Ticker    string `col:"ticker"`
		FirstSeen string `col:"first_seen"`
	}
	if err := d.db.SelectContext(ctx, &rows, d.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query history first_seen: %w", err)
	}

	for _, r := range rows {
		result[r.Ticker] = r.FirstSeen
	}
	return result, nil
}

func (d *DuckDBDriver) QueryDailyPrices(ctx context.Context, since string) ([]model.DailyPriceRow, error) {
	query := fmt.Sprintf(
		"SELECT * FROM %s WHERE date >= ? ORDER BY ticker, date",
		model.TablePricesDaily.TableName,
	)

	var results []model.DailyPriceRow
	if err := d.db.SelectContext(ctx, &results, query, since); err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	return results, nil
}

func (d *DuckDBDriver) QueryWatchUniverse(ctx context.Context) ([]model.WatchUniverseRow, error) {
	query := fmt.Sprintf("SELECT * FROM %s ORDER BY ticker", model.TableWatchUniverse.TableName)

	var results []model.WatchUniverseRow
	if err := d.db.SelectContext(ctx, &results, query); err != nil {
		return nil, fmt.Errorf("failed to query watch universe: %w", err)
	}
	return results, nil
}

func (d *DuckDBDriver) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	query := fmt.Sprintf(`
		SELECT * FROM %s
		WHERE times_above_threshold > 0
		ORDER BY times_above_threshold DESC, last_seen DESC NULLS LAST, ticker
		LIMIT ?
	`, model.ViewWatchLeaderboard)

	var results []model.LeaderboardRow
	if err := d.db.SelectContext(ctx, &results, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return results, nil
}

func (d *DuckDBDriver) IsDateProcessed(ctx context.Context, date string) (bool, error) {
	query := fmt.Sprintf("SELECT count(*) FROM %s WHERE date = ?", model.TableRunLog.TableName)

	var count int
	if err := d.db.GetContext(ctx, &count, query, date); err != nil {
		return false, fmt.Errorf("failed to query run log: %w", err)
	}
	return count > 0, nil
}

func (d *DuckDBDriver) MarkDateProcessed(ctx context.Context, run model.RunLogRow) error {
	row, err := model.TableRunLog.RowOf(run)
	if err != nil {
		return err
	}
	_, err = d.UpsertMany(ctx, model.TableRunLog.TableName, []model.Row{row})
	return err
}
