package database

import (
	"context"

	"github.com/jing2uo/krx2db/model"
)

// ErrUnknownTable UpsertMany 收到未注册的表名
var ErrUnknownTable = model.ErrUnknownTable

type StateRepository interface {
	Connect() error
	Close() error

	InitSchema() error

	// UpsertMany 在一个事务内按表的合并规则写入，返回受影响行数
	UpsertMany(ctx context.Context, table string, rows []model.Row) (int64, error)
	// UpdateWatchUniverse 读取已存计数、累加当日 leader、写回，全部在同一事务内完成
	UpdateWatchUniverse(ctx context.Context, rows []model.WatchUniverseRow, leaders map[string]bool, date string) (int64, error)

	HistoryFirstSeen(ctx context.Context, tickers []string) (map[string]string, error)
	GetLatestDate(tableName string, dateCol string) (string, error)
	QueryDailyPrices(ctx context.Context, since string) ([]model.DailyPriceRow, error)
	QueryWatchUniverse(ctx context.Context) ([]model.WatchUniverseRow, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error)

	IsDateProcessed(ctx context.Context, date string) (bool, error)
	MarkDateProcessed(ctx context.Context, run model.RunLogRow) error
}

// Upsert 把结构体切片转换为 Row 后写入 meta 对应的表
func Upsert[T any](ctx context.Context, repo StateRepository, meta *model.TableMeta, items []T) (int64, error) {
	rows, err := model.RowsOf(meta, items)
	if err != nil {
		return 0, err
	}
	return repo.UpsertMany(ctx, meta.TableName, rows)
}
