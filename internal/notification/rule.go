package notification

import (
	"time"
)

// DefaultExpireLabel は通知に付ける既定のラベル。
const DefaultExpireLabel = "Expire Today"

// DueDate は開始日時から期日を求める。
// 基準タイムゾーンでの開始日の0時に1か月を加える。
// 月末日を超える場合は time.AddDate と同じく翌月に繰り越す（1月31日 → 3月2日または3日）。
func DueDate(start time.Time, loc *time.Location) time.Time {
	s := start.In(loc)
	midnight := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
	return midnight.AddDate(0, 1, 0)
}

// HasArrears は延滞額が正、または延滞月数が1以上かどうかを返す。
func HasArrears(inv Investment) bool {
	return inv.ArrearsAmount.IsPositive() || inv.ArrearsMonthsCount > 0
}

// Eligible は投資が now の属する日の通知対象かどうかを返す。
// 期日が基準タイムゾーンでの今日であり、かつ延滞がある場合に対象となる。
func Eligible(inv Investment, now time.Time, loc *time.Location) bool {
	if !HasArrears(inv) {
		return false
	}
	return sameDay(DueDate(inv.StartDate, loc), now.In(loc))
}

// Today は基準タイムゾーンでの now の日付（0時）を返す。
func Today(now time.Time, loc *time.Location) time.Time {
	n := now.In(loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
