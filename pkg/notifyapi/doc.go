// Package notifyapi は「本日の通知」APIのクエリクライアントを提供する。
//
// 本日の通知一覧と件数の2つの読み取り専用エンドポイントを、
// キャッシュタグ Notifications:TODAY / Notifications:COUNT に結び付けて公開する。
// 通知の抽出条件（開始日の1か月後かつ延滞あり）はバックエンドが判定するため、
// このパッケージではレスポンスの並び替えや絞り込みを行わない。
package notifyapi
