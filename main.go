package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jing2uo/krx2db/cmd"
	"github.com/spf13/cobra"
)

const dbPathInfo = "DuckDB 文件路径，为空时使用配置中的 paths.db"

func main() {
	var (
		configPath string
		env        *cmd.Env
	)

	var rootCmd = &cobra.Command{
		Use:           "krx2db",
		Short:         "KRX envelope signals and leaders state in DuckDB",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			e, err := cmd.NewEnv(configPath)
			if err != nil {
				return err
			}
			env = e
			return nil
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			if env != nil {
				_ = env.Log.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "配置文件路径，不存在时使用默认值和 KRX_ 环境变量")

	var input, output string
	var snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Latest envelope snapshot with A/B/C levels to xlsx",
		RunE: func(c *cobra.Command, args []string) error {
			_, err := cmd.Snapshot(c.Context(), env, input, output)
			return err
		},
	}
	snapshotCmd.Flags().StringVar(&input, "input", "", "OHLCV CSV 文件 (必填)")
	snapshotCmd.Flags().StringVar(&output, "output", "", "xlsx 输出路径，默认输入文件同目录 S1_snapshot_YYYYMMDD.xlsx")
	snapshotCmd.MarkFlagRequired("input")

	var dailyOpts cmd.DailyOptions
	var dailyCmd = &cobra.Command{
		Use:   "daily",
		Short: "Replay one trading day into leaders state",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Daily(c.Context(), env, dailyOpts)
		},
	}
	dailyCmd.Flags().StringVar(&dailyOpts.Date, "date", "", "交易日 YYYY-MM-DD，默认 test_date (计划模式下为当天)")
	dailyCmd.Flags().StringVar(&dailyOpts.CSV, "csv", "", "当日 OHLCV CSV，支持 {date} 占位符")
	dailyCmd.Flags().StringVar(&dailyOpts.DBPath, "dbpath", "", dbPathInfo)
	dailyCmd.Flags().BoolVar(&dailyOpts.Force, "force", false, "同一天已计数时仍然累加 leader 次数")
	dailyCmd.Flags().StringVar(&dailyOpts.Schedule, "schedule", "", "cron 表达式 (带秒)，设置后常驻运行")

	var envOpts cmd.EnvelopeOptions
	var envelopeCmd = &cobra.Command{
		Use:   "envelope",
		Short: "Export multi-day envelope data with buy levels",
		RunE: func(c *cobra.Command, args []string) error {
			return cmd.Envelope(c.Context(), env, envOpts)
		},
	}
	envelopeCmd.Flags().StringVar(&envOpts.Input, "input", "", "OHLCV CSV 文件，与 --dbpath 二选一")
	envelopeCmd.Flags().StringVar(&envOpts.DBPath, "dbpath", "", "从 prices_daily 读取，与 --input 二选一")
	envelopeCmd.Flags().StringVar(&envOpts.OutDir, "outdir", "", "输出目录 (必填)")
	envelopeCmd.Flags().IntVar(&envOpts.Days, "days", 120, "只导出最近 N 个交易日，0 表示全部")
	envelopeCmd.Flags().Float64Var(&envOpts.Band, "band", 0, "包络带宽，默认取配置 signal.band_pct")
	envelopeCmd.Flags().StringVar(&envOpts.Format, "format", "csv", "csv 或 parquet")
	envelopeCmd.MarkFlagRequired("outdir")

	var rankOpts cmd.RankOptions
	var rankCmd = &cobra.Command{
		Use:   "rank",
		Short: "Fetch trading value ranking, fall back to cache on failure",
		RunE: func(c *cobra.Command, args []string) error {
			_, err := cmd.Rank(c.Context(), env, rankOpts)
			return err
		},
	}
	rankCmd.Flags().StringVar(&rankOpts.Market, "market", "", "市场，默认取配置 rank.market")
	rankCmd.Flags().IntVar(&rankOpts.Count, "count", 0, "条数，默认取配置 rank.count")
	rankCmd.Flags().StringVar(&rankOpts.OutDir, "out-dir", "", "响应保存目录，默认用户缓存目录")

	var watchDB string
	var limit int
	var watchlistCmd = &cobra.Command{
		Use:   "watchlist",
		Short: "Show watch universe ordered by leader count",
		RunE: func(c *cobra.Command, args []string) error {
			_, err := cmd.Watchlist(c.Context(), env, watchDB, limit)
			return err
		},
	}
	watchlistCmd.Flags().StringVar(&watchDB, "dbpath", "", dbPathInfo)
	watchlistCmd.Flags().IntVar(&limit, "limit", 30, "最多显示条数")

	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(envelopeCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(watchlistCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "🛑 错误: %v\n", err)
		stop()
		var exit *cmd.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		os.Exit(1)
	}
}
