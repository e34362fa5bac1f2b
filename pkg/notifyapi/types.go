package notifyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Party は顧客やブローカーなど名前を持つ関係者。
type Party struct {
	// Name は表示名。
	Name string `json:"name"`
}

// Notification はバックエンドが生成する本日の通知レコード。読み取り専用。
type Notification struct {
	// InvestmentID は投資の識別子。
	InvestmentID ID `json:"investmentId"`
	// ID はレコードの識別子。InvestmentID がない場合の代替。
	ID ID `json:"_id"`
	// Customer は顧客。存在しない場合がある。
	Customer *Party `json:"customer"`
	// Broker はブローカー。存在しない場合がある。
	Broker *Party `json:"broker"`
	// ExpireLabel は期限ラベル。
	ExpireLabel string `json:"expireLabel"`
	// ArrearsMonthsCount は延滞月数。
	ArrearsMonthsCount int `json:"arrearsMonthsCount"`
	// ArrearsAmount は延滞額。
	ArrearsAmount decimal.NullDecimal `json:"arrearsAmount"`
	// MonthlyInterest は月利の金額。
	MonthlyInterest decimal.NullDecimal `json:"monthlyInterest"`
	// InvestmentName は投資名。
	InvestmentName string `json:"investmentName"`
	// StartDate は投資の開始日時。
	StartDate Timestamp `json:"startDate"`
	// DueDate は期日（開始日の1か月後の0時）。
	DueDate Timestamp `json:"dueDate"`
}

// Key は行を一意に識別するキーを返す。
// InvestmentID を優先し、なければ ID を使う。どちらもなければ空文字列。
func (n Notification) Key() string {
	if k := n.InvestmentID.String(); k != "" {
		return k
	}
	return n.ID.String()
}

// CustomerName は顧客名を返す。顧客がない場合は空文字列。
func (n Notification) CustomerName() string {
	if n.Customer == nil {
		return ""
	}
	return n.Customer.Name
}

// BrokerName はブローカー名を返す。ブローカーがない場合は空文字列。
func (n Notification) BrokerName() string {
	if n.Broker == nil {
		return ""
	}
	return n.Broker.Name
}

// ID は文字列・数値・{"$oid": "..."} のいずれでも表現される識別子。
type ID string

// String は識別子の文字列表現を返す。
func (id ID) String() string {
	return string(id)
}

// UnmarshalJSON は文字列・数値・オブジェクト形式の識別子をデコードする。
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("識別子のデコードに失敗: %w", err)
		}
		*id = ID(s)
	case b[0] == '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if err := json.Unmarshal(b, &oid); err != nil {
			return fmt.Errorf("識別子のデコードに失敗: %w", err)
		}
		*id = ID(oid.OID)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("識別子のデコードに失敗: %w", err)
		}
		*id = ID(n.String())
	}
	return nil
}

// naiveLayouts はタイムゾーンを持たない日時表現のレイアウト。基準タイムゾーンで解釈する。
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp はバックエンドから受け取った日時。
// 解釈はタイムゾーンが決まるまで遅延させるため、元の値を保持する。
type Timestamp struct {
	// raw は文字列形式の元の値。
	raw string
	// millis はエポックミリ秒形式の値。
	millis *int64
}

// NewTimestamp は文字列から Timestamp を生成する。
func NewTimestamp(raw string) Timestamp {
	return Timestamp{raw: raw}
}

// Raw は元の文字列表現を返す。
func (ts Timestamp) Raw() string {
	if ts.millis != nil {
		return strconv.FormatInt(*ts.millis, 10)
	}
	return ts.raw
}

// UnmarshalJSON は文字列またはエポックミリ秒の日時をデコードする。
// 解釈できない値もエラーにせず保持し、表示時に無効として扱う。
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	*ts = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &ts.raw)
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		// 配列やオブジェクトなど日時として解釈できない値
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil
	}
	ms := int64(f)
	ts.millis = &ms
	return nil
}

// MarshalJSON は元の表現のままエンコードする。
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.millis != nil {
		return []byte(strconv.FormatInt(*ts.millis, 10)), nil
	}
	if ts.raw == "" {
		return []byte("null"), nil
	}
	return json.Marshal(ts.raw)
}

// In は日時を loc のタイムゾーンで解釈して返す。
// タイムゾーンを含まない表現は loc の現地時刻として扱う。解釈できない場合は false を返す。
func (ts Timestamp) In(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	if ts.millis != nil {
		return time.UnixMilli(*ts.millis).In(loc), true
	}

	s := strings.TrimSpace(ts.raw)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
