// Package querycache はタグ単位でクエリ結果をキャッシュする。
//
// 各タグのエントリは状態（読み込み中・成功・失敗）、データ、エラー、取得日時を持つ。
// 同一タグへの同時リクエストは1回のフェッチにまとめられ、
// 購読者にはエントリが更新されるたびに通知される。
package querycache
