// Package view は本日の通知画面の表示状態と描画を提供する。
//
// 一覧の取得結果から行を組み立て、選択された行の詳細をモーダルとして表示する。
// 通知の抽出はバックエンドの責務であり、ここでは受け取った一覧をそのまま表示する。
package view
