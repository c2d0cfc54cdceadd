package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/krx"
	"github.com/jing2uo/krx2db/report"
)

// Snapshot 包络 -> 市值过滤 -> 最新快照 -> A/B/C，结果写入 xlsx
func Snapshot(ctx context.Context, env *Env, input, output string) (string, error) {
	sig := env.Cfg.Signal

	set, err := krx.ReadPricesCSV(input, krx.BarColumns...)
	if err != nil {
		return "", err
	}
	env.Log.Debug("prices loaded", zap.Int("rows", len(set.Bars)), zap.Int("skipped", set.Skipped))

	enriched, err := calc.EnrichWithEnvelope(ctx, set, calc.EnvelopeParams{Window: sig.MAWindow, BandPct: sig.BandPct})
	if err != nil {
		return "", err
	}

	filtered, err := calc.FilterByMarketCap(enriched, calc.MarketCapParams{
		MinWon:       sig.MinMcapWon,
		HighlightWon: sig.HighlightMcapWon,
	})
	if err != nil {
		return "", err
	}

	levels, err := calc.ComputeLevels(calc.LatestSnapshot(filtered), sig.TierStep)
	if err != nil {
		return "", err
	}
	rows := report.BuildSnapshot(levels)

	if output == "" {
		output = report.DefaultSnapshotPath(input, time.Now())
	}
	if err := report.WriteSnapshotXLSX(output, rows); err != nil {
		return "", err
	}

	env.printf("[S1] Done → %s\n", output)
	env.printf("rows=%d  cols=%d\n", len(rows), len(report.SnapshotColumns))
	return output, nil
}
