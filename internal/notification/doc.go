// Package notification は「今日が期日」の延滞通知を提供するバックエンドを実装する。
//
// 投資の開始日から1か月後の0時（基準タイムゾーン）に延滞がある投資を
// 日次スナップショットとして daily_notifications に登録し、
// GET /api/notifications/today と /today/count で返す。
// 判定はこのパッケージだけが行い、クライアントは結果を再フィルタしない。
package notification
