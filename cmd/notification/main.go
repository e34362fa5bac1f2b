// 通知サービスのエントリポイント。
// 毎日0時（基準タイムゾーン）に期日を迎えた延滞投資の通知を生成し、
// 本日の通知一覧と件数をAPIで提供する。
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nao1215/duenotice/internal/config"
	"github.com/nao1215/duenotice/internal/notification"
	"github.com/nao1215/duenotice/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("通知サービスの起動に失敗: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.DevMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := notification.NewServer(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("通知サーバーの初期化に失敗: %w", err)
	}
	defer func() { _ = server.Close() }()

	if cfg.DevMode {
		n, err := notification.SeedDemo(ctx, server.Store(), time.Now(), cfg.Location)
		if err != nil {
			return err
		}
		if n > 0 {
			zl.Info("demo investments seeded", zap.Int("count", n))
		}
	}

	zl.Info("starting notification service",
		zap.String("port", cfg.Port),
		zap.String("timezone", cfg.Location.String()),
		zap.Bool("dev_mode", cfg.DevMode),
	)
	return server.Run(ctx)
}
