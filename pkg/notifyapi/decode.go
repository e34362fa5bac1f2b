package notifyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// envelope はバックエンドのレスポンスの外枠。
type envelope struct {
	// Data は本体。一覧なら配列、件数なら数値。
	Data json.RawMessage `json:"data"`
	// Count は件数がトップレベルに置かれた場合の値。
	Count *json.Number `json:"count"`
}

// decodeNotifications は data を通知の一覧として解釈する。
// 配列でない場合は空の一覧とし、デコードできない要素は読み飛ばす。
func decodeNotifications(raw json.RawMessage, log *zap.Logger) []Notification {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return []Notification{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn("通知一覧のデコードに失敗しました", zap.Error(err))
		return []Notification{}
	}

	list := make([]Notification, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			log.Warn("オブジェクトでない通知を読み飛ばしました", zap.Int("index", i))
			continue
		}
		var n Notification
		if err := json.Unmarshal(item, &n); err != nil {
			log.Warn("通知のデコードに失敗したため読み飛ばしました", zap.Int("index", i), zap.Error(err))
			continue
		}
		list = append(list, n)
	}
	return list
}

// decodeCount は件数レスポンスを解釈する。
// {data: n}、{data: {count: n}}、{count: n} の形式を受け付ける。
func decodeCount(env envelope) (int, error) {
	raw := bytes.TrimSpace(env.Data)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if raw[0] == '{' {
			var inner envelope
			if err := json.Unmarshal(raw, &inner); err != nil {
				return 0, fmt.Errorf("件数のデコードに失敗: %w", err)
			}
			if inner.Count != nil {
				return numberToCount(*inner.Count)
			}
			return decodeCount(envelope{Data: inner.Data})
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, fmt.Errorf("件数のデコードに失敗: %w", err)
		}
		return numberToCount(n)
	}
	if env.Count != nil {
		return numberToCount(*env.Count)
	}
	return 0, fmt.Errorf("件数がレスポンスに含まれていません")
}

func numberToCount(n json.Number) (int, error) {
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("件数が数値ではありません: %w", err)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("件数が不正です: %s", n)
	}
	return int(f), nil
}
