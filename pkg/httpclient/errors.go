package httpclient

import (
	"errors"
	"fmt"
)

// ErrRequestFailed はリクエストが失敗したことを表す。
// RequestError はすべてこのエラーを包んでおり、errors.Is で判定できる。
var ErrRequestFailed = errors.New("RequestFailed")

// ErrorKind はリクエスト失敗の種類を表す。
type ErrorKind string

const (
	// KindNetworkFailure は接続不可などトランスポート層での失敗を表す。
	KindNetworkFailure ErrorKind = "NetworkFailure"
	// KindHTTPError は2xx以外のステータスコードが返ったことを表す。
	KindHTTPError ErrorKind = "HttpError"
	// KindDecodeFailure はレスポンスボディのJSONが不正であることを表す。
	KindDecodeFailure ErrorKind = "DecodeFailure"
)

// RequestError はリクエスト失敗の詳細。
type RequestError struct {
	// Kind は失敗の種類。
	Kind ErrorKind
	// Method はHTTPメソッド。
	Method string
	// URL はリクエスト先のURL。
	URL string
	// StatusCode はHTTPステータスコード。KindHTTPError の場合のみ設定される。
	StatusCode int
	// Body はエラーレスポンスのボディ（先頭のみ）。
	Body string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *RequestError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		return fmt.Sprintf("%s %s %s: status=%d, body=%s", e.Kind, e.Method, e.URL, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s %s %s: %v", e.Kind, e.Method, e.URL, e.Err)
	}
}

// Unwrap は ErrRequestFailed と原因エラーを返す。
func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRequestFailed}
	}
	return []error{ErrRequestFailed, e.Err}
}

// KindOf はエラーが RequestError の場合にその種類を返す。
func KindOf(err error) (ErrorKind, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Kind, true
	}
	return "", false
}
