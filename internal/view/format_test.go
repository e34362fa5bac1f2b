package view

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/duenotice/pkg/notifyapi"
)

func TestFormatLKR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   decimal.NullDecimal
		want string
	}{
		{"小数1桁", decimal.NewNullDecimal(decimal.NewFromFloat(1234.5)), "Rs. 1,234.50"},
		{"値なし", decimal.NullDecimal{}, "Rs. 0.00"},
		{"ゼロ", decimal.NewNullDecimal(decimal.Zero), "Rs. 0.00"},
		{"百万", decimal.NewNullDecimal(decimal.NewFromInt(1000000)), "Rs. 1,000,000.00"},
		{"3桁未満", decimal.NewNullDecimal(decimal.RequireFromString("250.75")), "Rs. 250.75"},
		{"丸め", decimal.NewNullDecimal(decimal.RequireFromString("99.999")), "Rs. 100.00"},
		{"負数", decimal.NewNullDecimal(decimal.RequireFromString("-1234.5")), "Rs. -1,234.50"},
		{"十四桁でも銭単位を保つ", decimal.NewNullDecimal(decimal.RequireFromString("12345678901234.57")), "Rs. 12,345,678,901,234.57"},
		{"int64を超える桁数", decimal.NewNullDecimal(decimal.RequireFromString("123456789012345678901.23")), "Rs. 123,456,789,012,345,678,901.23"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatLKR(tt.in))
		})
	}
}

func TestFormatDate(t *testing.T) {
	t.Parallel()

	colombo, err := time.LoadLocation("Asia/Colombo")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"開始日", "2024-01-15T00:00:00", "January 15, 2024, 12:00:00 AM"},
		{"期日", "2024-02-15T00:00:00", "February 15, 2024, 12:00:00 AM"},
		{"UTCは基準タイムゾーンに変換", "2024-02-14T18:30:00Z", "February 15, 2024, 12:00:00 AM"},
		{"午後", "2024-03-01T13:05:09+05:30", "March 1, 2024, 1:05:09 PM"},
		{"不正な日付", "not-a-date", "-"},
		{"空", "", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatDate(notifyapi.NewTimestamp(tt.in), colombo))
		})
	}
}
