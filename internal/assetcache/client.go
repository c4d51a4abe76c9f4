package assetcache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/logging"
	"github.com/any-hub/asset-hub/internal/memtier"
	"github.com/any-hub/asset-hub/internal/resource"
	"github.com/any-hub/asset-hub/internal/store"
)

// Options 汇总 Client 的依赖与策略。
type Options struct {
	Store   store.Store
	Fetcher fetch.Fetcher
	Logger  *logrus.Logger

	// Tier 可选，只缓存 200 记录的 payload。
	Tier memtier.Tier
	// MaxAge<=0 时 200 记录永久有效。
	MaxAge time.Duration
	// Coalesce 打开后同一 key 的并发未命中共享一次回源。
	Coalesce bool

	now func() time.Time
}

// Client 是调用方唯一需要接触的组件：就绪等待 → 查找 → 回源 → 写回。
type Client struct {
	store    store.Store
	fetcher  fetch.Fetcher
	logger   *logrus.Logger
	tier     memtier.Tier
	maxAge   time.Duration
	coalesce bool
	now      func() time.Time

	ready  *gate
	flight singleflight.Group
	stats  counters
}

// New 校验依赖并立即在后台打开存储；打开结果通过就绪屏障传递给所有调用。
func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}

	c := &Client{
		store:    opts.Store,
		fetcher:  opts.Fetcher,
		logger:   opts.Logger,
		tier:     opts.Tier,
		maxAge:   opts.MaxAge,
		coalesce: opts.Coalesce,
		now:      opts.now,
	}
	if c.now == nil {
		c.now = time.Now
	}
	c.ready = openGate(c.openStore)
	return c, nil
}

// openStore 只会被就绪屏障调用一次，失败不会重试。
func (c *Client) openStore() error {
	started := time.Now()
	err := c.store.Open(context.Background())
	if err != nil {
		var initErr *store.InitializationError
		if !errors.As(err, &initErr) {
			err = store.InitFailed(c.store.Info(), err)
		}
		c.logger.WithError(err).WithFields(logging.StoreFields(c.store.Info())).Error("store_open_failed")
		return err
	}

	fields := logging.StoreFields(c.store.Info())
	fields["action"] = "store_open"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	c.logger.WithFields(fields).Info("store_ready")
	return nil
}

// Ready 阻塞直到存储打开；失败时返回 *InitializationError。
func (c *Client) Ready(ctx context.Context) error {
	return c.ready.wait(ctx)
}

// ReadyState 非阻塞地返回当前就绪状态：nil 表示可用。
func (c *Client) ReadyState() error {
	if !c.ready.settled() {
		return errGateNotSettled
	}
	return c.ready.err
}

// FetchResource 返回 key 对应的资源：200 记录直接命中，其余情况回源并写回。
// 回源失败返回 *FetchError；写回失败只记录日志，不影响本次返回。
func (c *Client) FetchResource(ctx context.Context, key string) (*resource.Resource, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	if err := c.ready.wait(ctx); err != nil {
		return nil, err
	}

	if res, ok := c.lookup(ctx, key); ok {
		return res, nil
	}
	c.stats.misses.Add(1)

	if !c.coalesce {
		return c.fetchAndPopulate(ctx, key)
	}

	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		return c.fetchAndPopulate(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*resource.Resource)
	if shared {
		c.stats.coalesced.Add(1)
		return res.Clone(), nil
	}
	return res, nil
}

// lookup 依次查询内存层与持久层；读取错误按未命中处理。
func (c *Client) lookup(ctx context.Context, key string) (*resource.Resource, bool) {
	if c.tier != nil {
		if payload, ok := c.tier.Get(key); ok {
			c.stats.hits.Add(1)
			c.stats.memoryHits.Add(1)
			return resource.Cached(http.StatusOK, payload), true
		}
	}

	rec, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).
			WithFields(logrus.Fields{"action": "cache_get", "key": key}).
			Warn("cache_get_failed")
		return nil, false
	}
	if !found || !rec.OK() {
		return nil, false
	}
	if rec.Expired(c.maxAge, c.now()) {
		c.logger.WithFields(logrus.Fields{
			"action":    "cache_get",
			"key":       key,
			"stored_at": rec.StoredAt,
		}).Debug("cache_expired")
		return nil, false
	}

	c.stats.hits.Add(1)
	c.remember(rec)
	return resource.Cached(rec.Status, rec.Payload), true
}

func (c *Client) fetchAndPopulate(ctx context.Context, key string) (*resource.Resource, error) {
	c.stats.fetches.Add(1)
	started := time.Now()

	resp, err := c.fetcher.Fetch(ctx, key)
	if err == nil && resp == nil {
		err = errors.New("fetcher returned no response")
	}
	if err != nil {
		return nil, c.fetchFailed(key, started, err)
	}

	payload := []byte{}
	if resp.Body != nil {
		payload, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, c.fetchFailed(key, started, err)
		}
	}

	rec := store.Record{
		Key:      key,
		Status:   resp.Status,
		Payload:  payload,
		StoredAt: c.now().UTC(),
	}
	if err := c.store.Put(ctx, rec); err != nil {
		c.persistFailed(key, err)
	} else {
		c.remember(rec)
	}

	c.logger.WithFields(logrus.Fields{
		"action":     "fetch",
		"key":        key,
		"status":     resp.Status,
		"bytes":      len(payload),
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Debug("fetch_complete")

	return resource.New(resp.Status, payload), nil
}

func (c *Client) fetchFailed(key string, started time.Time, err error) error {
	c.stats.fetchFailures.Add(1)
	c.logger.WithError(err).WithFields(logrus.Fields{
		"action":     "fetch",
		"key":        key,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Warn("fetch_failed")
	return &FetchError{Key: key, Err: err}
}

// persistFailed 上报写回失败；该 key 在下次写入成功前会一直表现为未命中。
func (c *Client) persistFailed(key string, err error) {
	c.stats.persistFailures.Add(1)
	var persistErr *store.PersistenceError
	if !errors.As(err, &persistErr) {
		err = store.PersistFailed(key, err)
	}
	c.logger.WithError(err).
		WithFields(logrus.Fields{"action": "cache_put", "key": key}).
		Warn("cache_put_failed")
}

// remember 把成功记录放入内存层，过期时间与 MaxAge 对齐。
func (c *Client) remember(rec store.Record) {
	if c.tier == nil || !rec.OK() {
		return
	}
	var expireAt time.Time
	if c.maxAge > 0 && !rec.StoredAt.IsZero() {
		expireAt = rec.StoredAt.Add(c.maxAge)
	}
	c.tier.Set(rec.Key, rec.Payload, expireAt)
}

// Stats 返回累计计数快照。
func (c *Client) Stats() Stats {
	return c.stats.snapshot()
}

// StoreInfo 返回底层存储的描述。
func (c *Client) StoreInfo() store.Info {
	return c.store.Info()
}

// Close 等待初始化结束后依次关闭内存层与存储。
func (c *Client) Close() error {
	<-c.ready.done
	var errs []error
	if c.tier != nil {
		errs = append(errs, c.tier.Close())
	}
	errs = append(errs, c.store.Close())
	return errors.Join(errs...)
}
