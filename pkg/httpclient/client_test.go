package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPayload はテスト用のレスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// newMockClient はモックトランスポートを差し込んだクライアントを生成する。
func newMockClient(t *testing.T, opts ...Option) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	opts = append([]Option{WithTransport(mt)}, opts...)
	return New("http://backend.test/api/notifications", opts...), mt
}

// TestNew はNew関数でクライアントが正しく生成されることを検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("クライアントが正常に生成されること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:5000/api/notifications/")
		require.NotNil(t, client)
		assert.Equal(t, "http://localhost:5000/api/notifications", client.BaseURL())
		require.NotNil(t, client.httpClient)
		assert.NotNil(t, client.Jar(), "セッションCookie用のJarが設定されていること")
	})

	t.Run("タイムアウトが30秒に設定されていること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:5000")
		assert.InDelta(t, 30, client.httpClient.Timeout.Seconds(), 0)
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("正常にGETリクエストを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var method, path string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.Path
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "get-response", Value: 42})
		}))
		defer ts.Close()

		client := New(ts.URL + "/api/notifications")
		var result testPayload
		require.NoError(t, client.GetJSON(context.Background(), "/today", &result))

		assert.Equal(t, http.MethodGet, method)
		assert.Equal(t, "/api/notifications/today", path)
		assert.Equal(t, testPayload{Name: "get-response", Value: 42}, result)
	})

	t.Run("GETリクエストにリクエストボディが含まれないこと", func(t *testing.T) {
		t.Parallel()

		var receivedBody []byte
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			receivedBody, _ = io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(testPayload{Name: "ok", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload
		require.NoError(t, client.GetJSON(context.Background(), "/api/test", &result))
		assert.Empty(t, receivedBody)
	})

	t.Run("resultがnilの場合はボディを読み捨てる", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today",
			httpmock.NewStringResponder(http.StatusOK, `not json`))

		assert.NoError(t, client.GetJSON(context.Background(), "/today", nil))
	})

	t.Run("サーバーが404を返した場合にHTTPエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today",
			httpmock.NewStringResponder(http.StatusNotFound, `{"error":"not found"}`))

		var result testPayload
		err := client.GetJSON(context.Background(), "/today", &result)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequestFailed)

		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, KindHTTPError, reqErr.Kind)
		assert.Equal(t, http.StatusNotFound, reqErr.StatusCode)
		assert.Contains(t, reqErr.Body, "not found")
	})

	t.Run("サーバーが500を返した場合にHTTPエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today/count",
			httpmock.NewStringResponder(http.StatusInternalServerError, `{"error":"internal"}`))

		err := client.GetJSON(context.Background(), "/today/count", &testPayload{})
		kind, ok := KindOf(err)
		require.True(t, ok)
		assert.Equal(t, KindHTTPError, kind)
	})

	t.Run("不正なJSONレスポンスでデコードエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today",
			httpmock.NewStringResponder(http.StatusOK, `{invalid json}`))

		err := client.GetJSON(context.Background(), "/today", &testPayload{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequestFailed)
		kind, _ := KindOf(err)
		assert.Equal(t, KindDecodeFailure, kind)
	})

	t.Run("接続できないサーバーに対して通信エラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today",
			httpmock.NewErrorResponder(errors.New("connection refused")))

		err := client.GetJSON(context.Background(), "/today", &testPayload{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequestFailed)
		kind, _ := KindOf(err)
		assert.Equal(t, KindNetworkFailure, kind)
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // 即座にキャンセル

		err := client.GetJSON(ctx, "/today", &testPayload{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.ErrorIs(t, err, ErrRequestFailed)
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONボディを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var received testPayload
		var contentType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			json.NewDecoder(r.Body).Decode(&received)
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(testPayload{Name: "created", Value: received.Value + 1})
		}))
		defer ts.Close()

		client := New(ts.URL)
		var result testPayload
		require.NoError(t, client.PostJSON(context.Background(), "/api/auth/dev-token", testPayload{Name: "req", Value: 1}, &result))

		assert.Equal(t, "application/json", contentType)
		assert.Equal(t, testPayload{Name: "req", Value: 1}, received)
		assert.Equal(t, testPayload{Name: "created", Value: 2}, result)
	})

	t.Run("ボディがnilの場合は空のボディで送信されること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		var got []byte
		mt.RegisterResponder(http.MethodPost, "http://backend.test/api/notifications/x",
			func(req *http.Request) (*http.Response, error) {
				if req.Body != nil {
					got, _ = io.ReadAll(req.Body)
				}
				return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
			})

		require.NoError(t, client.PostJSON(context.Background(), "/x", nil, nil))
		assert.Empty(t, got)
	})

	t.Run("シリアライズできないボディはリクエスト前にエラーになること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		err := client.PostJSON(context.Background(), "/x", make(chan int), nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRequestFailed)
		assert.Zero(t, mt.GetTotalCallCount())
	})

	t.Run("401の場合にHTTPエラーが返ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		mt.RegisterResponder(http.MethodPost, "http://backend.test/api/notifications/x",
			httpmock.NewStringResponder(http.StatusUnauthorized, `{"error":"unauthorized"}`))

		err := client.PostJSON(context.Background(), "/x", map[string]string{"a": "b"}, nil)
		var reqErr *RequestError
		require.ErrorAs(t, err, &reqErr)
		assert.Equal(t, KindHTTPError, reqErr.Kind)
		assert.Equal(t, http.MethodPost, reqErr.Method)
		assert.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	})
}

// TestAuthorizationHeader はBearerトークンの付与を検証する。
func TestAuthorizationHeader(t *testing.T) {
	t.Parallel()

	capture := func(mt *httpmock.MockTransport, got *http.Header) {
		mt.RegisterResponder(http.MethodGet, "http://backend.test/api/notifications/today",
			func(req *http.Request) (*http.Response, error) {
				*got = req.Header.Clone()
				return httpmock.NewStringResponse(http.StatusOK, `{}`), nil
			})
	}

	t.Run("トークンがある場合はBearerヘッダーが付与されること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t, WithTokenProvider(StaticToken("abc.def.ghi")))
		var got http.Header
		capture(mt, &got)

		require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
		assert.Equal(t, "Bearer abc.def.ghi", got.Get("Authorization"))
	})

	t.Run("トークンが空の場合はヘッダーを付与せずリクエストを送ること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t, WithTokenProvider(StaticToken("")))
		var got http.Header
		capture(mt, &got)

		require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
		_, has := got["Authorization"]
		assert.False(t, has)
		assert.Equal(t, 1, mt.GetTotalCallCount())
	})

	t.Run("プロバイダ未設定でもリクエストが送られること", func(t *testing.T) {
		t.Parallel()

		client, mt := newMockClient(t)
		var got http.Header
		capture(mt, &got)

		require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
		assert.Empty(t, got.Get("Authorization"))
	})

	t.Run("トークンはリクエストごとに取得されること", func(t *testing.T) {
		t.Parallel()

		token := ""
		client, mt := newMockClient(t, WithTokenProvider(func() string { return token }))
		var got http.Header
		capture(mt, &got)

		require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
		assert.Empty(t, got.Get("Authorization"))

		token = "later-token"
		require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
		assert.Equal(t, "Bearer later-token", got.Get("Authorization"))
	})
}

// TestSessionCookie はセッションCookieが保持され次のリクエストで送られることを検証する。
func TestSessionCookie(t *testing.T) {
	t.Parallel()

	var secondCookie string
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.SetCookie(w, &http.Cookie{Name: "token", Value: "session-value", Path: "/"})
		} else if c, err := r.Cookie("token"); err == nil {
			secondCookie = c.Value
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := New(ts.URL)
	require.NoError(t, client.GetJSON(context.Background(), "/first", nil))
	require.NoError(t, client.GetJSON(context.Background(), "/second", nil))

	assert.Equal(t, "session-value", secondCookie)
}

// TestWithJar は共有したCookie Jarのセッションが送られることを検証する。
func TestWithJar(t *testing.T) {
	t.Parallel()

	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("token"); err == nil {
			got = c.Value
		}
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "token", Value: "shared-session", Path: "/"}})

	client := New(ts.URL, WithJar(jar))
	require.NoError(t, client.GetJSON(context.Background(), "/today", nil))
	assert.Same(t, jar, client.Jar())
	assert.Equal(t, "shared-session", got)
}
