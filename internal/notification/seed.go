package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SeedDemo は投資が1件も無い場合に、now の日に期日を迎えるデモ用投資を登録する。
// 登録した件数を返す。開発モードでのみ使う。
func SeedDemo(ctx context.Context, store *Store, now time.Time, loc *time.Location) (int, error) {
	existing, err := store.ListInvestments(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}

	// 前月に同じ日が無い月末（3月31日など）は期日がずれるため、デモが空になる日がある
	start := Today(now, loc).AddDate(0, -1, 0).Add(10 * time.Hour)
	demo := []Investment{
		{
			CustomerName:       "Amara Perera",
			BrokerName:         "Nimal Silva",
			InvestmentName:     "Gold Loan",
			StartDate:          start,
			MonthlyInterest:    decimal.RequireFromString("2500"),
			ArrearsAmount:      decimal.RequireFromString("1234.5"),
			ArrearsMonthsCount: 1,
		},
		{
			CustomerName:       "Kamal Fernando",
			InvestmentName:     "Vehicle Lease",
			StartDate:          start.Add(3 * time.Hour),
			MonthlyInterest:    decimal.RequireFromString("18000"),
			ArrearsMonthsCount: 2,
		},
		{
			CustomerName:    "Zeenath Hameed",
			BrokerName:      "Nimal Silva",
			InvestmentName:  "Fixed Deposit",
			StartDate:       start,
			MonthlyInterest: decimal.RequireFromString("950.25"),
		},
	}
	for _, inv := range demo {
		if _, err := store.CreateInvestment(ctx, inv); err != nil {
			return 0, fmt.Errorf("デモデータの登録に失敗: %w", err)
		}
	}
	return len(demo), nil
}
