package cmd

import (
	"context"
	"fmt"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/config"
	"github.com/jing2uo/krx2db/workflow"
)

type DailyOptions struct {
	Date     string
	CSV      string
	DBPath   string
	Force    bool
	Schedule string
}

// Daily 单次执行或按计划重复执行日更
func Daily(ctx context.Context, env *Env, opts DailyOptions) error {
	if env.Cfg.Mode == config.ModeNormal {
		return workflow.ErrNotImplemented
	}

	spec := firstNonEmpty(opts.Schedule, env.Cfg.Schedule.Daily)
	if spec == "" {
		return runDailyOnce(ctx, env, opts, firstNonEmpty(opts.Date, env.Cfg.TestDate))
	}

	env.printf("⏰ 按计划执行日更: %s\n", spec)
	return Schedule(ctx, env.Log, spec, func(ctx context.Context) error {
		return runDailyOnce(ctx, env, opts, firstNonEmpty(opts.Date, today()))
	})
}

func runDailyOnce(ctx context.Context, env *Env, opts DailyOptions, date string) error {
	dbPath := firstNonEmpty(opts.DBPath, env.Cfg.Paths.DB)
	db, err := openDB(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ctx.Err(); err != nil {
		return err
	}

	args := &workflow.TaskArgs{
		Date:      date,
		CSVPath:   expandDate(firstNonEmpty(opts.CSV, env.Cfg.Paths.ReplayCSV), date),
		BackupDir: env.Cfg.Paths.Backup,
		Force:     opts.Force,
		Leaders:   calc.LeaderParams{TurnoverThresholdEok: env.Cfg.Leaders.TurnoverThresholdEok},
		Log:       env.Log,
		Out:       env.Out,
	}

	env.printf("📅 重放日期 %s\n", date)
	summary, err := workflow.RunDaily(ctx, db, args)
	if err != nil {
		return fmt.Errorf("daily run failed: %w", err)
	}

	summary.Print(env.Out)
	env.printf("🚀 今日任务执行成功\n")
	return nil
}
