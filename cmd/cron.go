package cmd

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type cronRunner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func newCronRunner(logger *zap.Logger, baseCtx context.Context) *cronRunner {
	return &cronRunner{
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

func (r *cronRunner) add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// Schedule 按 cron 表达式 (带秒) 重复执行 job，直到 ctx 结束
func Schedule(ctx context.Context, log *zap.Logger, spec string, job func(context.Context) error) error {
	r := newCronRunner(log, ctx)
	id, err := r.add(spec, func(ctx context.Context) {
		if err := job(ctx); err != nil {
			log.Error("scheduled run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	r.cron.Start()
	log.Info("cron started", zap.String("spec", spec), zap.Time("next", r.cron.Entry(id).Next))

	<-ctx.Done()

	stopped := r.cron.Stop()
	<-stopped.Done()
	log.Info("cron stopped")
	return nil
}
