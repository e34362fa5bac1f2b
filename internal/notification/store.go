package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvestmentNotFound は指定した投資が存在しないことを表す。
var ErrInvestmentNotFound = errors.New("investment not found")

// dayLayout は due_date 列の書式。
const dayLayout = "2006-01-02"

// Investment は延滞判定の対象となる投資レコード。
type Investment struct {
	// ID は投資の一意識別子。空の場合は作成時にUUIDを採番する。
	ID string
	// CustomerName は顧客名。
	CustomerName string
	// BrokerName は担当ブローカー名。
	BrokerName string
	// InvestmentName は投資商品名。
	InvestmentName string
	// StartDate は投資の開始日時。
	StartDate time.Time
	// MonthlyInterest は月利額。
	MonthlyInterest decimal.Decimal
	// ArrearsAmount は延滞額。
	ArrearsAmount decimal.Decimal
	// ArrearsMonthsCount は延滞月数。
	ArrearsMonthsCount int
}

// DailyNotification は期日当日に生成された通知。延滞情報は生成時点の値を保持する。
type DailyNotification struct {
	ID                 string
	InvestmentID       string
	DueDate            string
	ExpireLabel        string
	CustomerName       string
	BrokerName         string
	InvestmentName     string
	StartDate          time.Time
	MonthlyInterest    decimal.Decimal
	ArrearsAmount      decimal.Decimal
	ArrearsMonthsCount int
}

// Store は投資と日次通知のSQLiteストア。
type Store struct {
	db *sql.DB
}

// NewStore は新しいストアを生成する。スキーマは適用済みである必要がある。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateInvestment は投資を登録し、採番後のレコードを返す。
func (s *Store) CreateInvestment(ctx context.Context, inv Investment) (Investment, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.ArrearsMonthsCount < 0 {
		return Investment{}, fmt.Errorf("延滞月数が負です: %d", inv.ArrearsMonthsCount)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments
			(id, customer_name, broker_name, investment_name, start_date,
			 monthly_interest, arrears_amount, arrears_months_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.CustomerName, inv.BrokerName, inv.InvestmentName,
		inv.StartDate.UTC().Format(time.RFC3339),
		inv.MonthlyInterest.String(), inv.ArrearsAmount.String(), inv.ArrearsMonthsCount,
	)
	if err != nil {
		return Investment{}, fmt.Errorf("投資の登録に失敗: %w", err)
	}
	return inv, nil
}

// UpdateArrears は投資の延滞情報を更新する。
func (s *Store) UpdateArrears(ctx context.Context, id string, amount decimal.Decimal, months int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE investments
		SET arrears_amount = ?, arrears_months_count = ?, updated_at = datetime('now')
		WHERE id = ?`,
		amount.String(), months, id,
	)
	if err != nil {
		return fmt.Errorf("延滞情報の更新に失敗: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvestmentNotFound
	}
	return nil
}

// ListInvestments は全投資を返す。
func (s *Store) ListInvestments(ctx context.Context) ([]Investment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, broker_name, investment_name, start_date,
		       monthly_interest, arrears_amount, arrears_months_count
		FROM investments
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("投資一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var list []Investment
	for rows.Next() {
		var (
			inv                      Investment
			start, interest, arrears string
		)
		if err := rows.Scan(&inv.ID, &inv.CustomerName, &inv.BrokerName, &inv.InvestmentName,
			&start, &interest, &arrears, &inv.ArrearsMonthsCount); err != nil {
			return nil, fmt.Errorf("投資の読み取りに失敗: %w", err)
		}
		if inv.StartDate, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("投資 %s の開始日時が不正: %w", inv.ID, err)
		}
		if inv.MonthlyInterest, err = decimal.NewFromString(interest); err != nil {
			return nil, fmt.Errorf("投資 %s の月利が不正: %w", inv.ID, err)
		}
		if inv.ArrearsAmount, err = decimal.NewFromString(arrears); err != nil {
			return nil, fmt.Errorf("投資 %s の延滞額が不正: %w", inv.ID, err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// InsertDaily は期日 day の通知を一括で登録し、新たに登録した件数を返す。
// 既に同じ投資・期日の通知がある場合はスキップする。
func (s *Store) InsertDaily(ctx context.Context, day time.Time, investments []Investment, label string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO daily_notifications
			(id, investment_id, due_date, expire_label,
			 arrears_amount, arrears_months_count, monthly_interest)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("ステートメントの準備に失敗: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	dueDate := day.Format(dayLayout)
	inserted := 0
	for _, inv := range investments {
		res, err := stmt.ExecContext(ctx, uuid.NewString(), inv.ID, dueDate, label,
			inv.ArrearsAmount.String(), inv.ArrearsMonthsCount, inv.MonthlyInterest.String())
		if err != nil {
			return 0, fmt.Errorf("通知 %s の登録に失敗: %w", inv.ID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}
	return inserted, nil
}

// ListDaily は期日 day の通知を顧客名順に返す。
func (s *Store) ListDaily(ctx context.Context, day time.Time) ([]DailyNotification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.investment_id, d.due_date, d.expire_label,
		       i.customer_name, i.broker_name, i.investment_name, i.start_date,
		       d.monthly_interest, d.arrears_amount, d.arrears_months_count
		FROM daily_notifications d
		JOIN investments i ON i.id = d.investment_id
		WHERE d.due_date = ?
		ORDER BY i.customer_name COLLATE NOCASE, d.investment_id`,
		day.Format(dayLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("通知一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	list := []DailyNotification{}
	for rows.Next() {
		var (
			n                        DailyNotification
			start, interest, arrears string
		)
		if err := rows.Scan(&n.ID, &n.InvestmentID, &n.DueDate, &n.ExpireLabel,
			&n.CustomerName, &n.BrokerName, &n.InvestmentName, &start,
			&interest, &arrears, &n.ArrearsMonthsCount); err != nil {
			return nil, fmt.Errorf("通知の読み取りに失敗: %w", err)
		}
		if n.StartDate, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("通知 %s の開始日時が不正: %w", n.ID, err)
		}
		if n.MonthlyInterest, err = decimal.NewFromString(interest); err != nil {
			return nil, fmt.Errorf("通知 %s の月利が不正: %w", n.ID, err)
		}
		if n.ArrearsAmount, err = decimal.NewFromString(arrears); err != nil {
			return nil, fmt.Errorf("通知 %s の延滞額が不正: %w", n.ID, err)
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// CountDaily は期日 day の通知件数を返す。ListDaily と同じ結合条件で数える。
func (s *Store) CountDaily(ctx context.Context, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM daily_notifications d
		 JOIN investments i ON i.id = d.investment_id
		 WHERE d.due_date = ?`, day.Format(dayLayout),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("通知件数の取得に失敗: %w", err)
	}
	return n, nil
}
