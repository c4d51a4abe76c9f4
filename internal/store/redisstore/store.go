// Package redisstore keeps records in Redis under <name>:rec:<key>, relying
// on the server's own persistence (RDB/AOF) for durability.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/any-hub/asset-hub/internal/store"
)

const backendName = "redis"

// ErrNilClient 表示未注入 redis 客户端。
var ErrNilClient = errors.New("redis store: nil client")

// Store 基于 go-redis 的记录引擎，记录不设置 TTL。
type Store struct {
	rdb         goredis.UniversalClient
	name        string
	codec       store.Codec
	closeClient bool

	mu      sync.RWMutex
	opened  bool
	version int
}

var _ store.Store = (*Store)(nil)

// Config 描述 Redis 引擎的依赖。
type Config struct {
	Client      goredis.UniversalClient
	Name        string
	Codec       store.Codec
	CloseClient bool // 仅当 Store 独占 client 时置为 true
}

// New 构建尚未打开的 Redis 引擎。
func New(cfg Config) *Store {
	return &Store{
		rdb:         cfg.Client,
		name:        cfg.Name,
		codec:       cfg.Codec,
		closeClient: cfg.CloseClient,
	}
}

// Open 检查连通性并写入/校验 schema 版本。
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	version, err := s.open(ctx)
	if err != nil {
		return store.InitFailed(s.info(0), err)
	}
	s.opened = true
	s.version = version
	return nil
}

func (s *Store) open(ctx context.Context) (int, error) {
	if s.rdb == nil {
		return 0, ErrNilClient
	}
	if s.name == "" {
		return 0, errors.New("store name is required")
	}
	if s.codec == nil {
		return 0, errors.New("record codec required")
	}
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("ping redis: %w", err)
	}

	raw, err := s.rdb.Get(ctx, s.schemaKey()).Result()
	switch {
	case errors.Is(err, goredis.Nil):
	case err != nil:
		return 0, fmt.Errorf("read schema version: %w", err)
	default:
		onDisk, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return 0, fmt.Errorf("corrupt schema version %q: %w", raw, convErr)
		}
		if onDisk > store.SchemaVersion {
			return 0, fmt.Errorf("%w: on-disk v%d, supported v%d", store.ErrSchemaTooNew, onDisk, store.SchemaVersion)
		}
		if onDisk == store.SchemaVersion {
			return onDisk, nil
		}
	}

	if err := s.rdb.Set(ctx, s.schemaKey(), store.SchemaVersion, 0).Err(); err != nil {
		return 0, fmt.Errorf("write schema version: %w", err)
	}
	return store.SchemaVersion, nil
}

func (s *Store) Get(ctx context.Context, key string) (store.Record, bool, error) {
	if !s.isOpen() {
		return store.Record{}, false, store.ErrNotOpen
	}
	b, err := s.rdb.Get(ctx, s.recordKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return store.Record{}, false, nil
	}
	if err != nil {
		return store.Record{}, false, err
	}
	rec, err := s.codec.Decode(b)
	if err != nil {
		return store.Record{}, false, fmt.Errorf("decode record: %w", err)
	}
	if rec.Key != key {
		return store.Record{}, false, nil
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, rec store.Record) error {
	if rec.Key == "" {
		return store.PersistFailed(rec.Key, store.ErrKeyRequired)
	}
	if !s.isOpen() {
		return store.PersistFailed(rec.Key, store.ErrNotOpen)
	}
	raw, err := s.codec.Encode(rec)
	if err != nil {
		return store.PersistFailed(rec.Key, fmt.Errorf("encode record: %w", err))
	}
	return store.PersistFailed(rec.Key, s.rdb.Set(ctx, s.recordKey(rec.Key), raw, 0).Err())
}

// Close 仅在独占 client 时关闭连接，重复调用为 no-op。
func (s *Store) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	if s.closeClient && s.rdb != nil {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

func (s *Store) Info() store.Info {
	s.mu.RLock()
	version := s.version
	s.mu.RUnlock()
	return s.info(version)
}

func (s *Store) info(version int) store.Info {
	return store.Info{
		Backend:       backendName,
		Name:          s.name,
		SchemaVersion: version,
	}
}

func (s *Store) isOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opened
}

func (s *Store) schemaKey() string {
	return s.name + ":schema"
}

func (s *Store) recordKey(key string) string {
	return s.name + ":rec:" + key
}
