package notifyapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIDUnmarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want ID
	}{
		{"文字列", `"65a1b2c3"`, "65a1b2c3"},
		{"数値", `12345`, "12345"},
		{"ObjectId形式", `{"$oid":"65a1b2c3d4"}`, "65a1b2c3d4"},
		{"null", `null`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var id ID
			require.NoError(t, json.Unmarshal([]byte(tt.in), &id))
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestNotificationKey(t *testing.T) {
	t.Parallel()

	t.Run("investmentIdを優先する", func(t *testing.T) {
		t.Parallel()
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(`{"investmentId":"inv-1","_id":"row-1"}`), &n))
		assert.Equal(t, "inv-1", n.Key())
	})

	t.Run("investmentIdがなければ_idを使う", func(t *testing.T) {
		t.Parallel()
		var n Notification
		require.NoError(t, json.Unmarshal([]byte(`{"_id":42}`), &n))
		assert.Equal(t, "42", n.Key())
	})

	t.Run("どちらもなければ空文字列", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, Notification{}.Key())
	})
}

func TestNotificationNames(t *testing.T) {
	t.Parallel()

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"customer":{"name":"Nimal"}}`), &n))
	assert.Equal(t, "Nimal", n.CustomerName())
	assert.Empty(t, n.BrokerName())
}

func TestNotificationAmounts(t *testing.T) {
	t.Parallel()

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"arrearsAmount":1234.5,"monthlyInterest":"250.75"}`), &n))
	require.True(t, n.ArrearsAmount.Valid)
	assert.Equal(t, "1234.5", n.ArrearsAmount.Decimal.String())
	require.True(t, n.MonthlyInterest.Valid)
	assert.Equal(t, "250.75", n.MonthlyInterest.Decimal.String())

	var empty Notification
	require.NoError(t, json.Unmarshal([]byte(`{"arrearsAmount":null}`), &empty))
	assert.False(t, empty.ArrearsAmount.Valid)
	assert.False(t, empty.MonthlyInterest.Valid)
}

func TestTimestampIn(t *testing.T) {
	t.Parallel()

	colombo := time.FixedZone("LKT", 5*3600+1800)

	tests := []struct {
		name  string
		in    string
		want  time.Time
		valid bool
	}{
		{
			name:  "RFC3339",
			in:    `"2024-02-14T18:30:00Z"`,
			want:  time.Date(2024, 2, 15, 0, 0, 0, 0, colombo),
			valid: true,
		},
		{
			name:  "ミリ秒付きRFC3339",
			in:    `"2024-02-14T18:30:00.000Z"`,
			want:  time.Date(2024, 2, 15, 0, 0, 0, 0, colombo),
			valid: true,
		},
		{
			name:  "タイムゾーンなしは基準タイムゾーンで解釈する",
			in:    `"2024-01-15T00:00:00"`,
			want:  time.Date(2024, 1, 15, 0, 0, 0, 0, colombo),
			valid: true,
		},
		{
			name:  "日付のみ",
			in:    `"2024-01-15"`,
			want:  time.Date(2024, 1, 15, 0, 0, 0, 0, colombo),
			valid: true,
		},
		{
			name:  "エポックミリ秒",
			in:    `1707935400000`,
			want:  time.Date(2024, 2, 15, 0, 0, 0, 0, colombo),
			valid: true,
		},
		{name: "不正な文字列", in: `"not-a-date"`},
		{name: "空文字列", in: `""`},
		{name: "null", in: `null`},
		{name: "オブジェクト", in: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			got, ok := ts.In(colombo)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.True(t, tt.want.Equal(got), "got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTimestampMarshalJSON(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(NewTimestamp("2024-01-15T00:00:00"))
	require.NoError(t, err)
	assert.JSONEq(t, `"2024-01-15T00:00:00"`, string(b))

	b, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))

	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1707935400000`), &ts))
	assert.Equal(t, "1707935400000", ts.Raw())
}

func TestDecodeNotifications(t *testing.T) {
	t.Parallel()

	log := zap.NewNop()

	t.Run("配列をそのままの順序でデコードする", func(t *testing.T) {
		t.Parallel()
		list := decodeNotifications(json.RawMessage(`[{"investmentId":"b"},{"investmentId":"a"}]`), log)
		require.Len(t, list, 2)
		assert.Equal(t, "b", list[0].Key())
		assert.Equal(t, "a", list[1].Key())
	})

	for _, raw := range []string{``, `null`, `{}`, `"x"`, `3`} {
		t.Run("配列でない場合は空の一覧:"+raw, func(t *testing.T) {
			t.Parallel()
			list := decodeNotifications(json.RawMessage(raw), log)
			assert.NotNil(t, list)
			assert.Empty(t, list)
		})
	}

	t.Run("デコードできない要素は読み飛ばす", func(t *testing.T) {
		t.Parallel()
		list := decodeNotifications(json.RawMessage(`[null, 1, {"arrearsMonthsCount":"x"}, {"investmentId":"ok"}]`), log)
		require.Len(t, list, 1)
		assert.Equal(t, "ok", list[0].Key())
	})
}

func TestDecodeCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		want    int
		wantErr bool
	}{
		{name: "dataが数値", body: `{"data":3}`, want: 3},
		{name: "dataがオブジェクト", body: `{"data":{"count":5}}`, want: 5},
		{name: "トップレベルのcount", body: `{"count":2}`, want: 2},
		{name: "ゼロ", body: `{"data":0}`, want: 0},
		{name: "件数なし", body: `{}`, wantErr: true},
		{name: "文字列", body: `{"data":"three"}`, wantErr: true},
		{name: "負数", body: `{"data":-1}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var env envelope
			require.NoError(t, json.Unmarshal([]byte(tt.body), &env))
			got, err := decodeCount(env)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
