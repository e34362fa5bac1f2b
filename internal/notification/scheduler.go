package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MidnightSpec は基準タイムゾーンの毎日0時を表すcron式。
const MidnightSpec = "0 0 * * *"

// jobTimeout は1回の生成処理に許す時間。
const jobTimeout = 5 * time.Minute

// Scheduler は Generator を毎日0時に実行する。
type Scheduler struct {
	cron      *cron.Cron
	generator *Generator
	now       func() time.Time
	logger    *zap.Logger
}

// NewScheduler は基準タイムゾーンで動くスケジューラーを生成する。
func NewScheduler(generator *Generator, loc *time.Location, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("scheduler")
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{logger.Sugar()}),
			cron.WithChain(cron.Recover(cronLogger{logger.Sugar()}), cron.SkipIfStillRunning(cronLogger{logger.Sugar()})),
		),
		generator: generator,
		now:       time.Now,
		logger:    logger,
	}
}

// Start はジョブを登録してスケジューラーを開始する。起動時に一度だけ即時実行する。
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(MidnightSpec, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("cronジョブの登録に失敗: %w", err)
	}
	s.runOnce(ctx)
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("schedule", MidnightSpec), zap.Time("next", s.Next()))
	return nil
}

// Next は次回の実行予定時刻を返す。未開始の場合はゼロ値を返す。
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Stop は新しいジョブの開始を止め、実行中のジョブの完了を待つ。
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("スケジューラーの停止待ちを中断: %w", ctx.Err())
	}
}

func (s *Scheduler) runOnce(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), jobTimeout)
	defer cancel()
	if _, err := s.generator.Run(ctx, s.now()); err != nil {
		s.logger.Error("daily notification generation failed", zap.Error(err))
	}
}

// cronLogger は cron.Logger を zap で実装する。
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
