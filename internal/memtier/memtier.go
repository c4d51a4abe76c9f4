// Package memtier provides an optional in-process layer in front of the
// durable store. It only ever holds payloads of successful records, so a tier
// miss simply falls through to the durable lookup.
package memtier

import (
	"fmt"
	"strings"
	"time"
)

// Tier 是只缓存成功记录 payload 的内存层，必须并发安全。
// expireAt 为零值表示不过期；已过期的条目 Get 必须返回未命中。
type Tier interface {
	Get(key string) ([]byte, bool)
	Set(key string, payload []byte, expireAt time.Time)
	Close() error
}

// Options 描述内存层容量；TTL 是条目寿命上限，<=0 表示只受 expireAt 约束。
type Options struct {
	Kind     string
	MaxBytes int64
	TTL      time.Duration
}

// New 根据 Kind 构建内存层；"none" 或空字符串返回 nil。
func New(opts Options) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Kind)) {
	case "", "none":
		return nil, nil
	case "ristretto":
		tier, err := NewRistretto(opts.MaxBytes, opts.TTL)
		if err != nil {
			return nil, err
		}
		return tier, nil
	case "bigcache":
		tier, err := NewBigcache(opts.MaxBytes, opts.TTL)
		if err != nil {
			return nil, err
		}
		return tier, nil
	default:
		return nil, fmt.Errorf("unsupported memory tier: %s", opts.Kind)
	}
}
