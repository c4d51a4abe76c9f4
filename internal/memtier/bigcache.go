package memtier

import (
	"encoding/binary"
	"time"

	bc "github.com/allegro/bigcache/v3"
)

const defaultLifeWindow = 365 * 24 * time.Hour

// expiryHeaderLen 是每个条目前缀的过期时间（unix 纳秒，0 表示不过期）长度。
const expiryHeaderLen = 8

// Bigcache 是分片、零 GC 开销的内存层；全局 LifeWindow 之外，
// 每个条目前缀 8 字节过期时间，Get 时检查。
type Bigcache struct {
	c             *bc.BigCache
	maxEntryBytes int64
}

// entryOverhead 预留给 bigcache 自身的条目头（时间戳、哈希、key 长度）与 key。
const entryOverhead = 1024

// NewBigcache 构建上限约为 maxBytes 的 bigcache 层。
func NewBigcache(maxBytes int64, ttl time.Duration) (*Bigcache, error) {
	life := ttl
	if life <= 0 {
		life = defaultLifeWindow
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	conf.Shards = shardsFor(maxBytes)
	conf.MaxEntriesInWindow = 1024
	conf.MaxEntrySize = 16 * 1024
	limit := int64(0)
	if mb := int(maxBytes / (1024 * 1024)); mb > 0 {
		conf.HardMaxCacheSize = mb
		limit = int64(mb) * 1024 * 1024 / int64(conf.Shards)
	}
	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &Bigcache{c: c, maxEntryBytes: limit}, nil
}

// minShardBytes 是单个分片的目标下限，单条资源（贴图、音频）需要能放进一个分片。
const minShardBytes = 4 << 20

// maxShards 与 bigcache 默认分片数保持一个数量级，分片数必须是 2 的幂。
const maxShards = 64

// shardsFor 在保证每个分片不小于 minShardBytes 的前提下取尽量多的分片；
// maxBytes<=0 表示不设上限，此时使用 maxShards。
func shardsFor(maxBytes int64) int {
	if maxBytes <= 0 {
		return maxShards
	}
	shards := 1
	for shards < maxShards && maxBytes/int64(shards*2) >= minShardBytes {
		shards *= 2
	}
	return shards
}

// MaxEntryBytes 返回可缓存的最大 payload 长度，0 表示不限制。
func (b *Bigcache) MaxEntryBytes() int64 {
	if b.maxEntryBytes == 0 {
		return 0
	}
	return b.maxEntryBytes - expiryHeaderLen - entryOverhead
}

func (b *Bigcache) Get(key string) ([]byte, bool) {
	v, err := b.c.Get(key)
	if err != nil || len(v) < expiryHeaderLen {
		return nil, false
	}
	if expireAt := int64(binary.BigEndian.Uint64(v[:expiryHeaderLen])); expireAt > 0 && time.Now().UnixNano() >= expireAt {
		_ = b.c.Delete(key)
		return nil, false
	}
	return v[expiryHeaderLen:], true
}

func (b *Bigcache) Set(key string, payload []byte, expireAt time.Time) {
	// 超过单分片容量的条目 bigcache 无法保存，直接跳过，由持久层继续服务。
	if limit := b.MaxEntryBytes(); limit > 0 && int64(len(payload)) > limit {
		return
	}
	entry := make([]byte, expiryHeaderLen+len(payload))
	if !expireAt.IsZero() {
		binary.BigEndian.PutUint64(entry[:expiryHeaderLen], uint64(expireAt.UnixNano()))
	}
	copy(entry[expiryHeaderLen:], payload)
	_ = b.c.Set(key, entry)
}

func (b *Bigcache) Close() error {
	return b.c.Close()
}
