package cmd

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jing2uo/krx2db/rank"
	"github.com/jing2uo/krx2db/utils"
)

type RankOptions struct {
	Market string
	Count  int
	OutDir string
}

// Rank 拉取成交排行并保存，接口与缓存都不可用时以退出码 2 结束
func Rank(ctx context.Context, env *Env, opts RankOptions) (*rank.Result, error) {
	cfg := env.Cfg.Rank
	if opts.Market != "" {
		cfg.Market = opts.Market
	}
	if opts.Count > 0 {
		cfg.Count = opts.Count
	}

	dir := firstNonEmpty(opts.OutDir, env.Cfg.Paths.RankCache)
	if dir == "" {
		d, err := utils.GetCacheDir("rank")
		if err != nil {
			return nil, err
		}
		dir = d
	}
	cache := rank.Cache{Dir: dir}

	var f rank.Fetcher
	ts, err := rank.NewTokenSource(ctx, cfg)
	if err != nil {
		// 没有凭证时只能走缓存
		env.Log.Warn("rank credentials unavailable", zap.Error(err))
		f = failedFetch{err}
	} else {
		f = rank.NewClient(cfg, ts, env.Log)
	}

	env.printf("🛠️  Fetch rank -> POST /api/dostk/rkinfo (api_id=%s market=%s count=%d)\n", cfg.APIID, cfg.Market, cfg.Count)
	res, err := rank.Probe(ctx, f, cache, cfg.APIID, time.Now(), env.Log)
	if err != nil {
		if errors.Is(err, rank.ErrNoCache) {
			return nil, &ExitError{Code: 2, Err: err}
		}
		return nil, err
	}

	switch res.Status {
	case rank.StatusCache:
		env.printf("⚠️  Using cache: %s -> saved as %s\n", res.CachePath, res.Path)
	default:
		env.printf("✅ %s response saved: %s\n", res.Status, res.Path)
	}
	return res, nil
}

type failedFetch struct{ err error }

func (f failedFetch) Fetch(context.Context) (*rank.Response, error) { return nil, f.err }
