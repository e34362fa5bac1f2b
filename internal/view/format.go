package view

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/nao1215/duenotice/pkg/notifyapi"
)

const (
	// currencyPrefix はスリランカ・ルピーの表示接頭辞。
	currencyPrefix = "Rs. "
	// dateLayout は日時の長い表示形式。
	dateLayout = "January 2, 2006, 3:04:05 PM"
	// placeholder は値がない場合の表示。
	placeholder = "-"
)

// FormatLKR は金額を小数点以下2桁・3桁区切りで表示する。値がない場合は0として扱う。
func FormatLKR(v decimal.NullDecimal) string {
	amount := decimal.Zero
	if v.Valid {
		amount = v.Decimal
	}
	amount = amount.Round(2)

	sign := ""
	if amount.IsNegative() {
		sign = "-"
	}
	whole, frac, _ := strings.Cut(amount.Abs().StringFixed(2), ".")
	return currencyPrefix + sign + groupThousands(whole) + "." + frac
}

// groupThousands は整数部の数字列を3桁区切りにする。
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return message.NewPrinter(language.English).Sprint(number.Decimal(n))
	}
	// int64 に収まらない桁数
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FormatDate は日時を loc のタイムゾーンで長い形式に整形する。解釈できない場合は "-"。
func FormatDate(ts notifyapi.Timestamp, loc *time.Location) string {
	t, ok := ts.In(loc)
	if !ok {
		return placeholder
	}
	return t.Format(dateLayout)
}
