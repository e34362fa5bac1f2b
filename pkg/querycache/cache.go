package querycache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nao1215/duenotice/pkg/logger"
)

// Status はキャッシュエントリの状態を表す。
type Status int

const (
	// StatusUninitialized はまだ一度もフェッチされていない状態。
	StatusUninitialized Status = iota
	// StatusLoading は初回フェッチ中の状態。
	StatusLoading
	// StatusSuccess はフェッチに成功した状態。
	StatusSuccess
	// StatusError はフェッチに失敗した状態。
	StatusError
)

// String は状態名を返す。
func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "uninitialized"
	}
}

// Entry はタグごとのキャッシュエントリ。
type Entry struct {
	// Status はエントリの状態。
	Status Status
	// Data は最後に成功したフェッチの結果。
	Data any
	// Err は最後のフェッチで発生したエラー。
	Err error
	// FetchedAt は最後にフェッチが完了した日時。
	FetchedAt time.Time
	// Fetching は再フェッチ中であることを表す。
	Fetching bool
}

// Fetcher はタグに対応するデータを取得する関数。
type Fetcher func(ctx context.Context) (any, error)

// Listener はエントリ更新時に呼ばれるコールバック。
type Listener func(tag string, entry Entry)

// Cache はタグをキーとするクエリキャッシュ。
type Cache struct {
	// store はエントリの保存先。
	store *gocache.Cache
	// group は同一タグのフェッチをまとめる。
	group singleflight.Group
	// mu は購読者マップと世代番号を保護する。
	mu sync.Mutex
	// listeners はタグごとの購読者。
	listeners map[string]map[uint64]Listener
	// generations はタグごとの世代番号。無効化や破棄のたびに増え、古い世代のフェッチ結果は書き込まない。
	generations map[string]uint64
	// retry は新しい購読者が付いたタグ。次の Query で失敗エントリを再フェッチする。
	retry map[string]bool
	// nextID は購読者IDの採番用。
	nextID uint64
	// now は現在時刻を返す関数。
	now func() time.Time
	// logger はキャッシュ操作のロガー。
	logger *zap.Logger
}

// Option は Cache の設定を変更する関数。
type Option func(*Cache)

// WithTTL はエントリの有効期限を設定する。0の場合は期限なし。
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl <= 0 {
			c.store = gocache.New(gocache.NoExpiration, 0)
			return
		}
		c.store = gocache.New(ttl, ttl*2)
	}
}

// WithClock は現在時刻の取得関数を差し替える。
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithLogger はロガーを設定する。
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		c.logger = logger.OrNop(l)
	}
}

// New は新しいキャッシュを生成する。
func New(opts ...Option) *Cache {
	c := &Cache{
		store:     gocache.New(gocache.NoExpiration, 0),
		listeners:   make(map[string]map[uint64]Listener),
		generations: make(map[string]uint64),
		retry:       make(map[string]bool),
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get はタグのエントリを返す。存在しない場合は StatusUninitialized のエントリを返す。
func (c *Cache) Get(tag string) Entry {
	if v, ok := c.store.Get(tag); ok {
		return v.(Entry)
	}
	return Entry{}
}

// Query はタグのデータを返す。
// 成功または失敗のエントリがあればフェッチせずにそれを返し、なければフェッチする。
// 購読を開始した直後の Query では失敗エントリも再フェッチする。
func (c *Cache) Query(ctx context.Context, tag string, fetch Fetcher) Entry {
	c.mu.Lock()
	retry := c.retry[tag]
	delete(c.retry, tag)
	c.mu.Unlock()

	entry := c.Get(tag)
	if entry.Status == StatusSuccess || (entry.Status == StatusError && !retry) {
		return entry
	}
	return c.fetch(ctx, tag, fetch)
}

// Refetch はキャッシュの有無にかかわらずフェッチする。
// フェッチ中も前回のデータは保持される。
func (c *Cache) Refetch(ctx context.Context, tag string, fetch Fetcher) Entry {
	return c.fetch(ctx, tag, fetch)
}

// Invalidate は指定タグのエントリを削除し、購読者に通知する。
// 次の Query は必ずフェッチし、無効化前に始まったフェッチの結果は書き込まれない。
func (c *Cache) Invalidate(tags ...string) {
	for _, tag := range tags {
		c.mu.Lock()
		c.discardLocked(tag)
		c.mu.Unlock()
		c.logger.Debug("キャッシュを無効化しました", zap.String("tag", tag))
		c.notify(tag, Entry{})
	}
}

// Flush はすべてのエントリを削除する。購読者には通知しない。
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tag := range c.store.Items() {
		c.generations[tag]++
	}
	c.store.Flush()
}

// Subscribe はタグの更新を購読する。戻り値の関数で購読を解除する。
// 最後の購読者が解除したタグのエントリは破棄される。
func (c *Cache) Subscribe(tag string, fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.listeners[tag] == nil {
		c.listeners[tag] = make(map[uint64]Listener)
	}
	c.listeners[tag][id] = fn
	c.retry[tag] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.listeners[tag], id)
			if len(c.listeners[tag]) == 0 {
				delete(c.listeners, tag)
				c.discardLocked(tag)
				c.logger.Debug("購読者がいなくなったためキャッシュを破棄しました", zap.String("tag", tag))
			}
		})
	}
}

// Subscribers はタグの購読者数を返す。
func (c *Cache) Subscribers(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[tag])
}

// fetched は共有フェッチの結果。
type fetched struct {
	entry Entry
	// stale はフェッチ中にタグが無効化または破棄されたことを表す。
	stale bool
}

// fetch は同一タグ・同一世代のフェッチを1回にまとめて実行し、結果をキャッシュに書き込む。
// 呼び出し元のコンテキストがキャンセルされても共有フェッチは完了まで続く。
// フェッチ中に世代が変わった場合は新しい世代でフェッチし直す。
func (c *Cache) fetch(ctx context.Context, tag string, fetch Fetcher) Entry {
	c.mu.Lock()
	gen := c.generations[tag]
	c.mu.Unlock()

	key := tag + "#" + strconv.FormatUint(gen, 10)
	ch := c.group.DoChan(key, func() (any, error) {
		if !c.markFetching(tag, gen) {
			return fetched{stale: true}, nil
		}
		data, err := fetch(context.WithoutCancel(ctx))
		entry, ok := c.commit(tag, gen, data, err)
		return fetched{entry: entry, stale: !ok}, nil
	})

	select {
	case res := <-ch:
		r := res.Val.(fetched)
		if !r.stale {
			return r.entry
		}
		if err := ctx.Err(); err != nil {
			return Entry{Status: StatusError, Err: err}
		}
		c.logger.Debug("フェッチ中に無効化されたため再フェッチします", zap.String("tag", tag))
		return c.fetch(ctx, tag, fetch)
	case <-ctx.Done():
		entry := c.Get(tag)
		if entry.Status == StatusUninitialized || entry.Status == StatusLoading {
			return Entry{Status: StatusError, Err: ctx.Err()}
		}
		return entry
	}
}

// markFetching はフェッチ開始をエントリに反映する。世代が変わっていれば false を返す。
func (c *Cache) markFetching(tag string, gen uint64) bool {
	c.mu.Lock()
	if c.generations[tag] != gen {
		c.mu.Unlock()
		return false
	}
	entry := c.Get(tag)
	if entry.Status == StatusUninitialized {
		entry.Status = StatusLoading
	}
	entry.Fetching = true
	c.store.Set(tag, entry, gocache.DefaultExpiration)
	c.mu.Unlock()

	c.notify(tag, entry)
	return true
}

// commit はフェッチ結果をエントリに書き込む。世代が変わっていれば書き込まずに false を返す。
func (c *Cache) commit(tag string, gen uint64, data any, err error) (Entry, bool) {
	c.mu.Lock()
	if c.generations[tag] != gen {
		c.mu.Unlock()
		c.logger.Debug("古い世代のフェッチ結果を破棄しました", zap.String("tag", tag))
		return Entry{}, false
	}
	prev := c.Get(tag)
	entry := Entry{FetchedAt: c.now()}
	if err != nil {
		// 失敗時も前回のデータは残す
		entry.Status = StatusError
		entry.Err = err
		entry.Data = prev.Data
	} else {
		entry.Status = StatusSuccess
		entry.Data = data
	}
	c.store.Set(tag, entry, gocache.DefaultExpiration)
	c.mu.Unlock()

	c.logger.Debug("キャッシュを更新しました",
		zap.String("tag", tag),
		zap.Stringer("status", entry.Status),
	)
	c.notify(tag, entry)
	return entry, true
}

// discardLocked はエントリを削除して世代を進める。c.mu を保持して呼ぶ。
func (c *Cache) discardLocked(tag string) {
	c.generations[tag]++
	c.store.Delete(tag)
	delete(c.retry, tag)
}

func (c *Cache) notify(tag string, entry Entry) {
	c.mu.Lock()
	listeners := make([]Listener, 0, len(c.listeners[tag]))
	for _, fn := range c.listeners[tag] {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(tag, entry)
	}
}
