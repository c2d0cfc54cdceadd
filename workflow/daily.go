package workflow

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/database"
	"github.com/jing2uo/krx2db/model"
)

// Summary 一次日更的结果
type Summary struct {
	RunID        string
	Date         string
	ThresholdEok float64
	Leaders      int
	Universe     int
	Upserts      map[string]int64 // 表名 -> 受影响行数
	CountSkipped bool             // 该日期已计数，watch_universe 未更新
	BackupPath   string
}

// RunDaily 按 args 重放一个交易日并写入状态库
func RunDaily(ctx context.Context, db database.StateRepository, args *TaskArgs) (*Summary, error) {
	if args.RunID == "" {
		args.RunID = uuid.NewString()
	}
	base := args.logger()
	args.Log = base.With(zap.String("run_id", args.RunID), zap.String("date", args.Date))
	defer func() { args.Log = base }()

	tasks := DailyTasks()
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}

	results, err := NewTaskExecutor(db, tasks).Run(ctx, names, args)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		RunID:        args.RunID,
		Date:         args.Date,
		ThresholdEok: args.Leaders.TurnoverThresholdEok,
		Leaders:      len(args.batch.leaders),
		Universe:     args.batch.universe,
		Upserts:      make(map[string]int64),
	}

	for task, table := range map[string]string{
		NameUpsertHistory:       model.TableLeadersHistory.TableName,
		NameUpsertEvents:        model.TableLeadersEvents.TableName,
		NameUpsertPrices:        model.TablePricesDaily.TableName,
		NameUpdateWatchUniverse: model.TableWatchUniverse.TableName,
	} {
		if r, ok := results[task]; ok {
			s.Upserts[table] = r.Rows
		}
	}

	if r := results[NameUpdateWatchUniverse]; r != nil && r.State == StateSkipped {
		s.CountSkipped = true
	}
	if r := results[NameBackupLeaders]; r != nil && r.State == StateCompleted {
		s.BackupPath = r.Message
	}

	args.Log.Info("daily run finished",
		zap.Int("leaders", s.Leaders),
		zap.Int("universe", s.Universe),
		zap.Bool("count_skipped", s.CountSkipped),
	)
	return s, nil
}

// Print 输出重放汇总
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "==== REPLAY SUMMARY ====")
	fmt.Fprintf(w, "date              : %s\n", s.Date)
	fmt.Fprintf(w, "leaders threshold : %s 억원\n", strconv.FormatFloat(s.ThresholdEok, 'f', -1, 64))
	fmt.Fprintf(w, "leaders count     : %d / universe: %d\n", s.Leaders, s.Universe)
	for _, table := range []string{
		model.TableLeadersHistory.TableName,
		model.TableLeadersEvents.TableName,
		model.TablePricesDaily.TableName,
		model.TableWatchUniverse.TableName,
	} {
		n := s.Upserts[table]
		if table == model.TableWatchUniverse.TableName && s.CountSkipped {
			fmt.Fprintf(w, "upsert %-16s: skipped (already counted)\n", table)
			continue
		}
		fmt.Fprintf(w, "upsert %-16s: %d\n", table, n)
	}
}
