package notification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Generator は期日当日の通知を日次スナップショットとして生成する。
type Generator struct {
	store  *Store
	loc    *time.Location
	label  string
	logger *zap.Logger
}

// NewGenerator は新しいジェネレーターを生成する。
func NewGenerator(store *Store, loc *time.Location, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		store:  store,
		loc:    loc,
		label:  DefaultExpireLabel,
		logger: logger.Named("generator"),
	}
}

// Run は now の属する日（基準タイムゾーン）の対象投資を通知として登録し、新規登録件数を返す。
// 同じ日に何度実行しても通知は重複しない。
func (g *Generator) Run(ctx context.Context, now time.Time) (int, error) {
	investments, err := g.store.ListInvestments(ctx)
	if err != nil {
		return 0, fmt.Errorf("対象投資の取得に失敗: %w", err)
	}

	var eligible []Investment
	for _, inv := range investments {
		if Eligible(inv, now, g.loc) {
			eligible = append(eligible, inv)
		}
	}

	today := Today(now, g.loc)
	inserted, err := g.store.InsertDaily(ctx, today, eligible, g.label)
	if err != nil {
		return 0, fmt.Errorf("通知の生成に失敗: %w", err)
	}

	g.logger.Info("daily notifications generated",
		zap.String("due_date", today.Format(dayLayout)),
		zap.Int("scanned", len(investments)),
		zap.Int("eligible", len(eligible)),
		zap.Int("inserted", inserted),
	)
	return inserted, nil
}
