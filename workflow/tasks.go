package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/database"
	"github.com/jing2uo/krx2db/krx"
	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/report"
)

const (
	NameLoadReplay          = "load_replay"
	NameUpsertHistory       = "upsert_leaders_history"
	NameUpsertEvents        = "upsert_leaders_events"
	NameUpsertPrices        = "upsert_prices_daily"
	NameUpdateWatchUniverse = "update_watch_universe"
	NameBackupLeaders       = "backup_leaders"
	NameMarkRun             = "mark_run"
)

// ErrNotImplemented normal 模式尚未接入实时行情源
var ErrNotImplemented = errors.New("normal mode is not implemented")

type TaskArgs struct {
	Date      string
	CSVPath   string
	BackupDir string
	Force     bool // 已处理过的日期也重新累加计数
	Leaders   calc.LeaderParams
	RunID     string
	Now       func() time.Time
	Log       *zap.Logger
	Out       io.Writer

	batch *dailyBatch
}

// dailyBatch load_replay 产出，后续任务只读
type dailyBatch struct {
	rows     model.DailyRows
	leaders  map[string]bool
	universe int
}

func (a *TaskArgs) logger() *zap.Logger {
	if a.Log == nil {
		return zap.NewNop()
	}
	return a.Log
}

func (a *TaskArgs) printf(format string, v ...interface{}) {
	if a.Out != nil {
		fmt.Fprintf(a.Out, format, v...)
	}
}

var (
	TaskLoadReplay          *Task
	TaskUpsertHistory       *Task
	TaskUpsertEvents        *Task
	TaskUpsertPrices        *Task
	TaskUpdateWatchUniverse *Task
	TaskBackupLeaders       *Task
	TaskMarkRun             *Task
)

func init() {
	TaskLoadReplay = &Task{
		Name:      NameLoadReplay,
		DependsOn: []string{},
		Executor:  executeLoadReplay,
	}

	// 各表依次提交
	TaskUpsertHistory = &Task{
		Name:      NameUpsertHistory,
		DependsOn: []string{NameLoadReplay},
		Executor:  executeUpsertHistory,
	}

	TaskUpsertEvents = &Task{
		Name:      NameUpsertEvents,
		DependsOn: []string{NameUpsertHistory},
		Executor:  executeUpsertEvents,
	}

	TaskUpsertPrices = &Task{
		Name:      NameUpsertPrices,
		DependsOn: []string{NameUpsertEvents},
		Executor:  executeUpsertPrices,
	}

	TaskUpdateWatchUniverse = &Task{
		Name:      NameUpdateWatchUniverse,
		DependsOn: []string{NameUpsertPrices},
		Executor:  executeUpdateWatchUniverse,
	}

	TaskBackupLeaders = &Task{
		Name:      NameBackupLeaders,
		DependsOn: []string{NameUpdateWatchUniverse},
		SkipIf: func(ctx context.Context, db database.StateRepository, args *TaskArgs) bool {
			return args.BackupDir == ""
		},
		Executor: executeBackupLeaders,
		OnError:  ErrorModeSkip,
	}

	TaskMarkRun = &Task{
		Name:      NameMarkRun,
		DependsOn: []string{NameUpdateWatchUniverse},
		Executor:  executeMarkRun,
	}
}

// DailyTasks 重放一个交易日所需的全部任务
func DailyTasks() map[string]*Task {
	tasks := []*Task{
		TaskLoadReplay,
		TaskUpsertHistory,
		TaskUpsertEvents,
		TaskUpsertPrices,
		TaskUpdateWatchUniverse,
		TaskBackupLeaders,
		TaskMarkRun,
	}
	m := make(map[string]*Task, len(tasks))
	for _, t := range tasks {
		m[t.Name] = t
	}
	return m
}

// alreadyCounted 同一日期重放时不再累加 times_above_threshold
// run_log 查询失败时返回错误，不能当作未计数
func alreadyCounted(ctx context.Context, db database.StateRepository, args *TaskArgs) (bool, error) {
	if args.Force {
		return false, nil
	}
	done, err := db.IsDateProcessed(ctx, args.Date)
	if err != nil {
		return false, fmt.Errorf("failed to check run log for %s: %w", args.Date, err)
	}
	if done {
		args.printf("⏭️  %s 已计数，跳过 watch_universe 累加 (使用 --force 强制)\n", args.Date)
	}
	return done, nil
}

func executeLoadReplay(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	args.printf("📦 读取重放文件: %s\n", args.CSVPath)

	set, err := krx.ReadPricesCSV(args.CSVPath, krx.ReplayColumns...)
	if err != nil {
		return nil, err
	}
	if set.Skipped > 0 {
		args.logger().Warn("rows without valid date or ticker skipped", zap.Int("rows", set.Skipped))
	}

	if err := calc.CheckBatchDate(set.Bars, args.Date); err != nil {
		return nil, err
	}

	leaders, universe := calc.SplitLeaders(set.Bars, args.Date, args.Leaders)

	tickers := make([]string, len(leaders))
	for i, l := range leaders {
		tickers[i] = l.Ticker
	}
	firstSeen, err := db.HistoryFirstSeen(ctx, tickers)
	if err != nil {
		return nil, err
	}

	args.batch = &dailyBatch{
		rows:     calc.BuildDailyRows(leaders, universe, args.Date, firstSeen),
		leaders:  calc.LeaderSet(leaders),
		universe: len(universe),
	}

	args.logger().Info("replay batch loaded",
		zap.String("date", args.Date),
		zap.Int("leaders", len(leaders)),
		zap.Int("universe", len(universe)),
	)
	return &TaskResult{State: StateCompleted, Rows: int64(len(universe)), Message: "replay csv loaded"}, nil
}

func upsertTask[T any](ctx context.Context, db database.StateRepository, args *TaskArgs, meta *model.TableMeta, items []T) (*TaskResult, error) {
	n, err := database.Upsert(ctx, db, meta, items)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert %s: %w", meta.TableName, err)
	}
	args.logger().Info("table upserted", zap.String("table", meta.TableName), zap.Int64("rows", n))
	return &TaskResult{State: StateCompleted, Rows: n, Message: meta.TableName}, nil
}

func executeUpsertHistory(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	return upsertTask(ctx, db, args, model.TableLeadersHistory, args.batch.rows.History)
}

func executeUpsertEvents(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	return upsertTask(ctx, db, args, model.TableLeadersEvents, args.batch.rows.Events)
}

func executeUpsertPrices(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	return upsertTask(ctx, db, args, model.TablePricesDaily, args.batch.rows.Prices)
}

func executeUpdateWatchUniverse(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	counted, err := alreadyCounted(ctx, db, args)
	if err != nil {
		return nil, err
	}
	if counted {
		return &TaskResult{State: StateSkipped, Message: "already counted"}, nil
	}

	n, err := db.UpdateWatchUniverse(ctx, args.batch.rows.Universe, args.batch.leaders, args.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", model.TableWatchUniverse.TableName, err)
	}
	args.logger().Info("table upserted", zap.String("table", model.TableWatchUniverse.TableName), zap.Int64("rows", n))
	return &TaskResult{State: StateCompleted, Rows: n, Message: model.TableWatchUniverse.TableName}, nil
}

func executeBackupLeaders(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	path, err := report.WriteLeadersBackup(args.BackupDir, args.Date, args.batch.rows.History)
	if err != nil {
		args.logger().Warn("leaders backup failed", zap.Error(err))
		return nil, err
	}
	args.printf("🗂️  备份已写入: %s\n", path)
	return &TaskResult{State: StateCompleted, Rows: int64(len(args.batch.rows.History)), Message: path}, nil
}

func executeMarkRun(ctx context.Context, db database.StateRepository, args *TaskArgs) (*TaskResult, error) {
	now := time.Now
	if args.Now != nil {
		now = args.Now
	}
	err := db.MarkDateProcessed(ctx, model.RunLogRow{
		Date:       args.Date,
		FinishedAt: now().UTC(),
		Leaders:    int64(len(args.batch.leaders)),
		Universe:   int64(args.batch.universe),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}
	return &TaskResult{State: StateCompleted, Rows: 1, Message: "run recorded"}, nil
}
