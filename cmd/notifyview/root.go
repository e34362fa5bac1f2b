package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/duenotice/internal/config"
	"github.com/nao1215/duenotice/internal/view"
	"github.com/nao1215/duenotice/pkg/httpclient"
	"github.com/nao1215/duenotice/pkg/logger"
	"github.com/nao1215/duenotice/pkg/notifyapi"
)

// options はコマンドラインフラグの値。
type options struct {
	backend   string
	token     string
	devLogin  bool
	selectKey string
	showCount bool
	timeout   time.Duration
	logLevel  string
}

// newRootCommand はルートコマンドを生成する。フラグの既定値は cfg から取る。
func newRootCommand(cfg *config.Config) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "notifyview",
		Short: "本日期日を迎えた延滞通知を表示する",
		Long: `バックエンドから本日の通知一覧を取得し、通知画面をテキストで表示します。
--select に行のキーを指定すると詳細モーダルも表示します。`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.backend, "backend", cfg.BackendURL, "バックエンドのベースURL")
	flags.StringVar(&opts.token, "token", cfg.Token, "Bearer認証トークン（空なら認証ヘッダーを付けない）")
	flags.BoolVar(&opts.devLogin, "dev-login", false, "開発用トークンを発行してセッションCookieで認証する")
	flags.StringVar(&opts.selectKey, "select", "", "詳細を表示する行のキー")
	flags.BoolVar(&opts.showCount, "count", false, "本日の通知件数も表示する")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "取得のタイムアウト")
	flags.StringVar(&opts.logLevel, "log-level", "error", "ログレベル（debug, info, warn, error）")

	return cmd
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, opts *options) error {
	zl, err := logger.New(opts.logLevel)
	if err != nil {
		return fmt.Errorf("ロガーの初期化に失敗: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	// cookiejar.New はオプションの検証を行わないためエラーを返さない
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if opts.devLogin {
		if err := devLogin(ctx, opts.backend, jar, zl); err != nil {
			return err
		}
	}

	api := notifyapi.New(notifyapi.Config{
		BaseURL: opts.backend,
		Token:   httpclient.StaticToken(opts.token),
		Jar:     jar,
		Logger:  zl,
	})

	page := view.NewPage(api, cfg.Location, zl)
	defer page.Unmount()

	select {
	case <-page.Mount(ctx):
	case <-ctx.Done():
		return fmt.Errorf("通知の取得を中断しました: %w", ctx.Err())
	}

	if opts.selectKey != "" && !page.Select(opts.selectKey) {
		return fmt.Errorf("通知 %q が見つかりません", opts.selectKey)
	}
	if err := page.Render(out); err != nil {
		return err
	}

	if opts.showCount {
		count := api.GetTodayNotificationCount(ctx)
		if !count.IsSuccess() {
			fmt.Fprintln(out, "\nTotal: -")
			zl.Warn("count query failed", zap.Error(count.Err))
			return nil
		}
		fmt.Fprintf(out, "\nTotal: %d\n", count.Data)
	}
	return nil
}

// devLogin は開発用トークンを発行し、バックエンドが返すセッションCookieを jar に保存する。
func devLogin(ctx context.Context, backend string, jar *cookiejar.Jar, zl *zap.Logger) error {
	client := httpclient.New(backend, httpclient.WithJar(jar), httpclient.WithLogger(zl))
	var resp struct {
		Token string `json:"token"`
	}
	if err := client.PostJSON(ctx, "/api/auth/dev-token", nil, &resp); err != nil {
		var reqErr *httpclient.RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("バックエンドが開発モードではありません: %w", err)
		}
		return fmt.Errorf("開発用トークンの取得に失敗: %w", err)
	}
	zl.Debug("dev session established")
	return nil
}
