package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/nao1215/duenotice/pkg/logger"
)

// maxErrorBody はエラー時にログへ残すレスポンスボディの最大バイト数。
const maxErrorBody = 1024

// TokenProvider はリクエスト時点の認証トークンを返す関数。
// 空文字列を返した場合はAuthorizationヘッダーを付与しない。
type TokenProvider func() string

// StaticToken は固定のトークンを返す TokenProvider を生成する。
func StaticToken(token string) TokenProvider {
	return func() string { return token }
}

// Client はバックエンドAPI用のHTTPクライアント。
// Cookieを保持し、トークンがあればBearer認証ヘッダーを付与する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL は接続先のベースURL。
	baseURL string
	// token は認証トークンの取得関数。
	token TokenProvider
	// logger はリクエスト失敗を記録するロガー。
	logger *zap.Logger
}

// Option は Client の設定を変更する関数。
type Option func(*Client)

// WithTransport はHTTPトランスポートを差し替える。
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithJar はCookie Jarを差し替える。ログイン済みのセッションを共有する場合に使う。
func WithJar(jar http.CookieJar) Option {
	return func(c *Client) {
		if jar != nil {
			c.httpClient.Jar = jar
		}
	}
}

// WithTokenProvider は認証トークンの取得関数を設定する。
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) {
		c.token = p
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger.OrNop(l)
	}
}

// New は新しいHTTPクライアントを生成する。
// baseURLには接続先のベースURL（例: "http://localhost:5000/api/notifications"）を指定する。
func New(baseURL string, opts ...Option) *Client {
	// cookiejar.New はオプションの検証を行わないためエラーを返さない
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は接続先のベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Jar はセッションCookieを保持するCookie Jarを返す。
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// GetJSON は指定パスにGETリクエストを送信する。
// レスポンスボディをresultにデシリアライズする。resultがnilの場合はボディを読み捨てる。
func (c *Client) GetJSON(ctx context.Context, path string, result any) error {
	return c.do(ctx, http.MethodGet, path, nil, result)
}

// PostJSON は指定パスにJSONボディでPOSTリクエストを送信する。
// bodyがnilの場合はボディなしで送信する。
func (c *Client) PostJSON(ctx context.Context, path string, body, result any) error {
	return c.do(ctx, http.MethodPost, path, body, result)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != nil {
		if token := c.token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(&RequestError{Kind: KindNetworkFailure, Method: method, URL: url, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return c.fail(&RequestError{
			Kind:       KindHTTPError,
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(errBody),
		})
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.fail(&RequestError{Kind: KindNetworkFailure, Method: method, URL: url, Err: err})
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return c.fail(&RequestError{Kind: KindDecodeFailure, Method: method, URL: url, Err: err})
	}
	return nil
}

func (c *Client) fail(err *RequestError) error {
	if errors.Is(err.Err, context.Canceled) {
		c.logger.Debug("リクエストがキャンセルされました", zap.String("url", err.URL))
		return err
	}
	c.logger.Warn("リクエストに失敗しました",
		zap.String("kind", string(err.Kind)),
		zap.String("url", err.URL),
		zap.Int("status", err.StatusCode),
		zap.Error(err.Err),
	)
	return err
}
