// Package httpclient はバックエンドAPIを呼び出すJSONクライアントを提供する。
//
// ベースURLの解決、セッションCookieの保持、Bearerトークンの付与、
// 失敗の分類（通信失敗・HTTPエラー・デコード失敗）を一箇所にまとめる。
package httpclient
