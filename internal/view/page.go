package view

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nao1215/duenotice/pkg/logger"
	"github.com/nao1215/duenotice/pkg/notifyapi"
	"github.com/nao1215/duenotice/pkg/querycache"
)

const (
	defaultCustomer    = "Customer"
	defaultExpireLabel = "Expire Today"
)

// Source は画面が利用する通知一覧のクエリ。*notifyapi.API が実装する。
type Source interface {
	GetTodayNotifications(ctx context.Context) notifyapi.Result[[]notifyapi.Notification]
	RefetchTodayNotifications(ctx context.Context) notifyapi.Result[[]notifyapi.Notification]
	SubscribeTodayNotifications(fn func(notifyapi.Result[[]notifyapi.Notification])) func()
}

// Row は一覧の1行。
type Row struct {
	// Key は行の識別子。
	Key string
	// Customer は顧客名。
	Customer string
	// ExpireLabel は期限ラベル。
	ExpireLabel string
}

// Details はモーダルに表示する通知の詳細。
type Details struct {
	Customer        string
	Broker          string
	ArrearsMonths   string
	ArrearsAmount   string
	MonthlyInterest string
	Investment      string
	StartDate       string
	DueDate         string
}

// Snapshot はある時点の画面状態。
type Snapshot struct {
	// Busy は読み込み中または再取得中であることを表す。
	Busy bool
	// Rows は一覧の行。
	Rows []Row
	// Modal は開いている詳細。閉じている場合はnil。
	Modal *Details
	// Zone は基準タイムゾーン名。
	Zone string
}

// Page は本日の通知画面。
type Page struct {
	// src は通知一覧のクエリ。
	src Source
	// loc は日時表示の基準タイムゾーン。
	loc *time.Location
	// logger はロガー。
	logger *zap.Logger

	// mu は以下のフィールドを保護する。
	mu sync.Mutex
	// mounted は画面がマウントされているかどうか。
	mounted bool
	// generation はマウントごとに増える世代番号。古い世代の結果は破棄する。
	generation uint64
	// result は最後に受け取ったクエリ結果。
	result notifyapi.Result[[]notifyapi.Notification]
	// selected は選択中の通知。
	selected *notifyapi.Notification
	// open はモーダルが開いているかどうか。
	open bool
	// ctx はマウント中に発行するリクエストのコンテキスト。
	ctx context.Context
	// cancel はマウント中のリクエスト待ちを中断する。
	cancel context.CancelFunc
	// unsubscribe はキャッシュ購読を解除する。
	unsubscribe func()
}

// NewPage は新しい画面を生成する。
func NewPage(src Source, loc *time.Location, l *zap.Logger) *Page {
	if loc == nil {
		loc = time.Local
	}
	return &Page{
		src:    src,
		loc:    loc,
		logger: logger.OrNop(l),
	}
}

// Mount は画面をマウントし、一覧の取得を開始する。
// 戻り値のチャネルは最初の取得が完了（または中断）したときに閉じられる。
func (p *Page) Mount(ctx context.Context) <-chan struct{} {
	p.mu.Lock()
	if p.mounted {
		p.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	p.mounted = true
	p.generation++
	gen := p.generation
	p.result = notifyapi.Result[[]notifyapi.Notification]{Status: querycache.StatusLoading, IsFetching: true}
	ctx, cancel := context.WithCancel(ctx)
	p.ctx = ctx
	p.cancel = cancel
	p.unsubscribe = p.src.SubscribeTodayNotifications(func(r notifyapi.Result[[]notifyapi.Notification]) {
		p.onUpdate(ctx, gen, r)
	})
	p.mu.Unlock()

	return p.run(gen, func() notifyapi.Result[[]notifyapi.Notification] {
		return p.src.GetTodayNotifications(ctx)
	})
}

// Refetch は一覧を再取得する。マウントされていない場合は何もしない。
func (p *Page) Refetch() <-chan struct{} {
	p.mu.Lock()
	if !p.mounted {
		p.mu.Unlock()
		done := make(chan struct{})
		close(done)
		return done
	}
	gen := p.generation
	ctx := p.ctx
	p.mu.Unlock()

	return p.run(gen, func() notifyapi.Result[[]notifyapi.Notification] {
		return p.src.RefetchTodayNotifications(ctx)
	})
}

// Unmount は画面をアンマウントする。
// 取得中のリクエストの待機を中断し、以降に届いた結果は破棄する。
func (p *Page) Unmount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted {
		return
	}
	p.mounted = false
	p.generation++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.ctx = nil
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	p.result = notifyapi.Result[[]notifyapi.Notification]{}
	p.selected = nil
	p.open = false
}

// Busy は読み込み中または再取得中かどうかを返す。
func (p *Page) Busy() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busyLocked()
}

// List は表示する通知の一覧を返す。取得に失敗した場合や未取得の場合は空の一覧。
func (p *Page) List() []notifyapi.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listLocked()
}

// Rows は一覧の行を返す。
func (p *Page) Rows() []Row {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rowsOf(p.listLocked())
}

// Select は key の行を選択してモーダルを開く。該当する行がなければ false を返す。
func (p *Page) Select(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.listLocked()
	for i, n := range list {
		if rowKey(n, i) == key {
			selected := n
			p.selected = &selected
			p.open = true
			return true
		}
	}
	return false
}

// Close はモーダルを閉じて選択を解除する。
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.open = false
	p.selected = nil
}

// Modal は開いているモーダルの詳細を返す。
func (p *Page) Modal() (Details, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open || p.selected == nil {
		return Details{}, false
	}
	return detailsOf(*p.selected, p.loc), true
}

// Snapshot は現在の画面状態を返す。
func (p *Page) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Snapshot{
		Busy: p.busyLocked(),
		Rows: rowsOf(p.listLocked()),
		Zone: p.loc.String(),
	}
	if p.open && p.selected != nil {
		d := detailsOf(*p.selected, p.loc)
		s.Modal = &d
	}
	return s
}

// run はクエリを非同期に実行し、結果を世代番号付きで反映する。
func (p *Page) run(gen uint64, query func() notifyapi.Result[[]notifyapi.Notification]) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.apply(gen, query())
	}()
	return done
}

// onUpdate はキャッシュの更新通知を受け取る。
// 無効化された場合はマウント中であれば再取得する。
func (p *Page) onUpdate(ctx context.Context, gen uint64, r notifyapi.Result[[]notifyapi.Notification]) {
	if r.Status == querycache.StatusUninitialized {
		p.mu.Lock()
		current := p.mounted && p.generation == gen
		p.mu.Unlock()
		if current {
			p.logger.Debug("通知一覧が無効化されたため再取得します")
			p.run(gen, func() notifyapi.Result[[]notifyapi.Notification] {
				return p.src.GetTodayNotifications(ctx)
			})
		}
		return
	}
	p.apply(gen, r)
}

// apply は現在の世代の結果だけを反映する。
func (p *Page) apply(gen uint64, r notifyapi.Result[[]notifyapi.Notification]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.mounted || p.generation != gen {
		p.logger.Debug("アンマウント後の結果を破棄しました", zap.Uint64("generation", gen))
		return
	}
	p.result = r
}

func (p *Page) busyLocked() bool {
	if !p.mounted {
		return false
	}
	return p.result.IsLoading() || p.result.IsFetching || p.result.Status == querycache.StatusUninitialized
}

func (p *Page) listLocked() []notifyapi.Notification {
	if !p.result.IsSuccess() || p.result.Data == nil {
		return []notifyapi.Notification{}
	}
	return p.result.Data
}

// rowKey は行の識別子を返す。識別子がない場合は位置から作る。
func rowKey(n notifyapi.Notification, index int) string {
	if k := n.Key(); k != "" {
		return k
	}
	return "row-" + strconv.Itoa(index)
}

func rowsOf(list []notifyapi.Notification) []Row {
	rows := make([]Row, 0, len(list))
	for i, n := range list {
		rows = append(rows, Row{
			Key:         rowKey(n, i),
			Customer:    orDefault(n.CustomerName(), defaultCustomer),
			ExpireLabel: orDefault(n.ExpireLabel, defaultExpireLabel),
		})
	}
	return rows
}

func detailsOf(n notifyapi.Notification, loc *time.Location) Details {
	return Details{
		Customer:        orDefault(n.CustomerName(), placeholder),
		Broker:          orDefault(n.BrokerName(), placeholder),
		ArrearsMonths:   fmt.Sprintf("%d", n.ArrearsMonthsCount),
		ArrearsAmount:   FormatLKR(n.ArrearsAmount),
		MonthlyInterest: FormatLKR(n.MonthlyInterest),
		Investment:      orDefault(n.InvestmentName, placeholder),
		StartDate:       FormatDate(n.StartDate, loc),
		DueDate:         FormatDate(n.DueDate, loc),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
