package memtier

import (
	"bytes"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
)

// Ristretto 以 payload 长度作为 cost 的 TinyLFU 内存层。
type Ristretto struct {
	c   *rc.Cache
	ttl time.Duration
}

// NewRistretto 构建容量为 maxBytes 的 ristretto 层。
func NewRistretto(maxBytes int64, ttl time.Duration) (*Ristretto, error) {
	if maxBytes <= 0 {
		return nil, errors.New("ristretto: max bytes must be positive")
	}
	// 按平均 1KiB 估算条目数，counters 取其 10 倍。
	counters := maxBytes / 1024 * 10
	if counters < 1000 {
		counters = 1000
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c, ttl: ttl}, nil
}

func (r *Ristretto) Get(key string) ([]byte, bool) {
	v, ok := r.c.Get(key)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	if b == nil {
		r.c.Del(key)
		return nil, false
	}
	return bytes.Clone(b), true
}

// Set 写入为异步操作，准入策略也可能拒绝，调用方不应依赖立即可见。
func (r *Ristretto) Set(key string, payload []byte, expireAt time.Time) {
	ttl := r.ttl
	if !expireAt.IsZero() {
		remaining := time.Until(expireAt)
		if remaining <= 0 {
			return
		}
		if ttl <= 0 || remaining < ttl {
			ttl = remaining
		}
	}

	value := bytes.Clone(payload)
	cost := int64(len(value))
	if cost == 0 {
		cost = 1
	}
	if ttl > 0 {
		r.c.SetWithTTL(key, value, cost, ttl)
		return
	}
	r.c.Set(key, value, cost)
}

// Wait 阻塞直到缓冲中的写入全部生效。
func (r *Ristretto) Wait() {
	r.c.Wait()
}

func (r *Ristretto) Close() error {
	r.c.Wait()
	r.c.Close()
	return nil
}
