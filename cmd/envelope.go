package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jing2uo/krx2db/calc"
	"github.com/jing2uo/krx2db/krx"
	"github.com/jing2uo/krx2db/model"
	"github.com/jing2uo/krx2db/report"
	"github.com/jing2uo/krx2db/utils"
)

type EnvelopeOptions struct {
	Input  string
	DBPath string
	OutDir string
	Days   int
	Band   float64
	Format string
}

// Envelope 导出多日包络数据，输入带市值时同时输出标的清单并只导出清单内的标的
func Envelope(ctx context.Context, env *Env, opts EnvelopeOptions) error {
	if (opts.Input == "") == (opts.DBPath == "") {
		return errors.New("exactly one of --input or --dbpath is required")
	}
	format, err := report.ParseFormat(opts.Format)
	if err != nil {
		return err
	}
	if err := utils.CheckOutputDir(opts.OutDir); err != nil {
		return err
	}

	sig := env.Cfg.Signal
	band := sig.BandPct
	if opts.Band != 0 {
		band = opts.Band
	}
	if band <= 0 || band >= 1 {
		return fmt.Errorf("--band must be in (0, 1), got %v", band)
	}

	set, err := loadBars(ctx, opts)
	if err != nil {
		return err
	}
	env.printf("📦 读取行情 %d 行\n", len(set.Bars))

	enriched, err := calc.EnrichWithEnvelope(ctx, set, calc.EnvelopeParams{Window: sig.MAWindow, BandPct: band})
	if err != nil {
		return err
	}
	if len(enriched.Rows) == 0 {
		return errors.New("no price rows to export")
	}

	latest := calc.LatestSnapshot(enriched)
	ref := latestDate(latest)

	if enriched.Has(model.ColMarketCap) {
		filtered, err := calc.FilterByMarketCap(latest, calc.MarketCapParams{
			MinWon:       sig.MinMcapWon,
			HighlightWon: sig.HighlightMcapWon,
		})
		if err != nil {
			return err
		}
		targets := report.BuildTargets(filtered, sig.TierStep)

		path := report.TargetsPath(opts.OutDir, ref)
		if err := report.WriteTargets(path, targets); err != nil {
			return err
		}
		env.printf("[S1] 대상종목 = %d개 → %s\n", len(targets), path)

		keep := make(map[string]bool, len(targets))
		for _, t := range targets {
			keep[t.Ticker] = true
		}
		enriched = onlyTickers(enriched, keep)
	} else {
		env.printf("⚠️  输入不含 market_cap，跳过标的清单\n")
	}

	records := report.BuildEnvelopeRecords(calc.RecentDates(enriched, opts.Days), sig.TierStep)
	path := report.EnvelopePath(opts.OutDir, ref, format)
	if err := report.WriteEnvelope(path, format, records); err != nil {
		return err
	}

	env.printf("[S1] 엔벨로프 데이터(+buy1~3,pos,gap): %d rows → %s\n", len(records), path)
	return nil
}

func loadBars(ctx context.Context, opts EnvelopeOptions) (model.BarSet, error) {
	if opts.Input != "" {
		return krx.ReadPricesCSV(opts.Input, krx.BarColumns...)
	}

	db, err := openDB(opts.DBPath)
	if err != nil {
		return model.BarSet{}, err
	}
	defer db.Close()

	rows, err := db.QueryDailyPrices(ctx, "")
	if err != nil {
		return model.BarSet{}, err
	}
	return krx.FromDailyPrices(rows)
}

func latestDate(set model.EnvelopeSet) string {
	var ref string
	for _, r := range set.Rows {
		if d := r.DateString(); d > ref {
			ref = d
		}
	}
	return ref
}

func onlyTickers(set model.EnvelopeSet, keep map[string]bool) model.EnvelopeSet {
	out := model.EnvelopeSet{Columns: set.Columns}
	for _, r := range set.Rows {
		if keep[r.Ticker] {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}
