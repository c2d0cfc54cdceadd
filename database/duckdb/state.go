package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/model"
)

type watchStateRow struct {
	Ticker    string         `col:"ticker"`
	Times     sql.NullInt64  `col:"times_above_threshold"`
	FirstSeen sql.NullString `col:"first_seen"`
	LastSeen  sql.NullString `col:"last_seen"`
}

func (d *DuckDBDriver) UpdateWatchUniverse(
	ctx context.Context,
	rows []model.WatchUniverseRow,
	leaders map[string]bool,
	date string,
) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	tickers := make([]string, len(rows))
	for i, r := range rows {
		tickers[i] = r.Ticker
	}

	stored, err := readWatchState(ctx, tx, tickers)
	if err != nil {
		return 0, err
	}

	merged := calc.IncrementLeaderCounts(rows, stored, leaders, date)

	values, err := model.RowsOf(model.TableWatchUniverse, merged)
	if err != nil {
		return 0, err
	}

	n, err := upsertTx(ctx, tx, model.TableWatchUniverse, values)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit watch universe update: %w", err)
	}
	return n, nil
}

func readWatchState(ctx context.Context, tx *sqlx.Tx, tickers []string) (map[string]calc.WatchState, error) {
	query, args, err := sqlx.In(fmt.Sprintf(`
		SELECT ticker, times_above_threshold, first_seen, last_seen
		FROM %s
		WHERE ticker IN (?)
	`, model.TableWatchUniverse.TableName), tickers)
	if err != nil {
		return nil, err
	}

	var rows []watchStateRow
	if err := tx.SelectContext(ctx, &rows, tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to read watch universe state: %w", err)
	}

	stored := make(map[string]calc.WatchState, len(rows))
	for _, r := range rows {
		st := calc.WatchState{
			Times:     r.Times.Int64,
			FirstSeen: r.FirstSeen.String,
		}
		if r.LastSeen.Valid {
			v := r.LastSeen.String
			st.LastSeen = &v
		}
		stored[r.Ticker] = st
	}
	return stored, nil
}
