package notifyapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/duenotice/pkg/httpclient"
	"github.com/nao1215/duenotice/pkg/logger"
	"github.com/nao1215/duenotice/pkg/querycache"
)

const (
	// TagToday は本日の通知一覧のキャッシュタグ。
	TagToday = "Notifications:TODAY"
	// TagCount は本日の通知件数のキャッシュタグ。
	TagCount = "Notifications:COUNT"

	// DefaultBaseURL はベースURL未設定時の接続先（ローカル開発環境）。
	DefaultBaseURL = "http://localhost:5000"

	// basePath は通知APIのパス。
	basePath = "/api/notifications"
)

// Config はクエリクライアントの設定。
type Config struct {
	// BaseURL はバックエンドのベースURL。空の場合は DefaultBaseURL。
	BaseURL string
	// Token はリクエスト時点の認証トークンを返す関数。nilまたは空文字列なら認証ヘッダーを付けない。
	Token httpclient.TokenProvider
	// Transport はHTTPトランスポート。nilの場合は既定のトランスポート。
	Transport http.RoundTripper
	// Jar はセッションCookieを保持するJar。nilの場合はクライアント専用のJarを使う。
	Jar http.CookieJar
	// Cache は共有するキャッシュ。nilの場合は新しく生成する。
	Cache *querycache.Cache
	// Logger はロガー。
	Logger *zap.Logger
}

// API は本日の通知を取得するクエリクライアント。
type API struct {
	// client はバックエンドへのHTTPクライアント。
	client *httpclient.Client
	// cache はタグ単位のクエリキャッシュ。
	cache *querycache.Cache
	// logger はロガー。
	logger *zap.Logger
}

// New は新しいクエリクライアントを生成する。
func New(cfg Config) *API {
	log := logger.OrNop(cfg.Logger)

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []httpclient.Option{
		httpclient.WithTokenProvider(cfg.Token),
		httpclient.WithLogger(log),
		httpclient.WithJar(cfg.Jar),
	}
	if cfg.Transport != nil {
		opts = append(opts, httpclient.WithTransport(cfg.Transport))
	}

	cache := cfg.Cache
	if cache == nil {
		cache = querycache.New(querycache.WithLogger(log))
	}

	return &API{
		client: httpclient.New(baseURL+basePath, opts...),
		cache:  cache,
		logger: log,
	}
}

// Result はクエリ結果。読み込み中・成功・失敗のいずれかの状態を持つ。
type Result[T any] struct {
	// Status は結果の状態。
	Status querycache.Status
	// Data は取得したデータ。成功していない場合はゼロ値。
	Data T
	// Err は失敗時のエラー。
	Err error
	// FetchedAt は取得が完了した日時。
	FetchedAt time.Time
	// IsFetching は取得中であることを表す。初回読み込みと再取得の両方で true になる。
	IsFetching bool
}

// IsLoading は初回読み込み中かどうかを返す。
func (r Result[T]) IsLoading() bool {
	return r.Status == querycache.StatusLoading
}

// IsSuccess は取得に成功したかどうかを返す。
func (r Result[T]) IsSuccess() bool {
	return r.Status == querycache.StatusSuccess
}

// IsError は取得に失敗したかどうかを返す。
func (r Result[T]) IsError() bool {
	return r.Status == querycache.StatusError
}

func resultFrom[T any](e querycache.Entry) Result[T] {
	r := Result[T]{
		Status:     e.Status,
		Err:        e.Err,
		FetchedAt:  e.FetchedAt,
		IsFetching: e.Fetching,
	}
	if e.Status == querycache.StatusSuccess {
		if data, ok := e.Data.(T); ok {
			r.Data = data
		}
	}
	return r
}

// GetTodayNotifications は本日の通知一覧を返す。
// キャッシュがあればそれを返し、なければ GET /api/notifications/today を発行する。
func (a *API) GetTodayNotifications(ctx context.Context) Result[[]Notification] {
	return resultFrom[[]Notification](a.cache.Query(ctx, TagToday, a.fetchToday))
}

// RefetchTodayNotifications は本日の通知一覧を再取得する。
func (a *API) RefetchTodayNotifications(ctx context.Context) Result[[]Notification] {
	return resultFrom[[]Notification](a.cache.Refetch(ctx, TagToday, a.fetchToday))
}

// GetTodayNotificationCount は本日の通知件数を返す。
// キャッシュがあればそれを返し、なければ GET /api/notifications/today/count を発行する。
func (a *API) GetTodayNotificationCount(ctx context.Context) Result[int] {
	return resultFrom[int](a.cache.Query(ctx, TagCount, a.fetchCount))
}

// RefetchTodayNotificationCount は本日の通知件数を再取得する。
func (a *API) RefetchTodayNotificationCount(ctx context.Context) Result[int] {
	return resultFrom[int](a.cache.Refetch(ctx, TagCount, a.fetchCount))
}

// TodayNotifications は本日の通知一覧のキャッシュ済みの結果を返す。フェッチは行わない。
func (a *API) TodayNotifications() Result[[]Notification] {
	return resultFrom[[]Notification](a.cache.Get(TagToday))
}

// Invalidate は指定タグのキャッシュを無効化する。次の読み取りで再取得される。
func (a *API) Invalidate(tags ...string) {
	a.cache.Invalidate(tags...)
}

// SubscribeTodayNotifications は通知一覧の更新を購読する。戻り値の関数で購読を解除する。
func (a *API) SubscribeTodayNotifications(fn func(Result[[]Notification])) func() {
	return a.cache.Subscribe(TagToday, func(_ string, e querycache.Entry) {
		fn(resultFrom[[]Notification](e))
	})
}

// SubscribeTodayNotificationCount は通知件数の更新を購読する。戻り値の関数で購読を解除する。
func (a *API) SubscribeTodayNotificationCount(fn func(Result[int])) func() {
	return a.cache.Subscribe(TagCount, func(_ string, e querycache.Entry) {
		fn(resultFrom[int](e))
	})
}

func (a *API) fetchToday(ctx context.Context) (any, error) {
	var env envelope
	if err := a.client.GetJSON(ctx, "/today", &env); err != nil {
		return nil, err
	}
	return decodeNotifications(env.Data, a.logger), nil
}

func (a *API) fetchCount(ctx context.Context) (any, error) {
	var env envelope
	if err := a.client.GetJSON(ctx, "/today/count", &env); err != nil {
		return nil, err
	}
	count, err := decodeCount(env)
	if err != nil {
		return nil, &httpclient.RequestError{
			Kind:   httpclient.KindDecodeFailure,
			Method: http.MethodGet,
			URL:    a.client.BaseURL() + "/today/count",
			Err:    err,
		}
	}
	return count, nil
}
