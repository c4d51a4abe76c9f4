package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/any-hub/asset-hub/internal/store"
	"github.com/any-hub/asset-hub/internal/store/sqlitestore/migrations"
)

const backendName = "sqlite"

// Store 以 SQLite 文件承载记录表，读写依赖 SQLite 自身的事务语义，不额外加锁。
type Store struct {
	dir  string
	name string

	mu      sync.RWMutex
	db      *sql.DB
	version int
}

var _ store.Store = (*Store)(nil)

// New 返回尚未打开的 Store，数据库文件位于 <dir>/<name>.db。
func New(dir, name string) *Store {
	return &Store{dir: dir, name: name}
}

// Open 打开（必要时创建）数据库并执行迁移，重复调用直接返回。
func (s *Store) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	db, version, err := s.open(ctx)
	if err != nil {
		return store.InitFailed(s.info(0), err)
	}
	s.db = db
	s.version = version
	return nil
}

func (s *Store) open(ctx context.Context) (*sql.DB, int, error) {
	if strings.TrimSpace(s.dir) == "" {
		return nil, 0, errors.New("storage path is required")
	}
	if strings.TrimSpace(s.name) == "" {
		return nil, 0, errors.New("store name is required")
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, 0, fmt.Errorf("create storage path: %w", err)
	}

	dsn := s.path() + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, 0, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("ping sqlite db: %w", err)
	}

	list, err := loadMigrations(migrations.FS)
	if err != nil {
		_ = db.Close()
		return nil, 0, err
	}
	version, err := applyMigrations(ctx, db, list, store.SchemaVersion)
	if err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("run migrations: %w", err)
	}
	return db, version, nil
}

// Get 读取 key 对应的记录，未命中返回 ok=false。
func (s *Store) Get(ctx context.Context, key string) (store.Record, bool, error) {
	db, err := s.handle()
	if err != nil {
		return store.Record{}, false, err
	}

	var (
		rec      store.Record
		storedAt int64
	)
	err = db.QueryRowContext(
		ctx,
		`SELECT key, status, payload, stored_at FROM records WHERE key = ?`,
		key,
	).Scan(&rec.Key, &rec.Status, &rec.Payload, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, fmt.Errorf("get record: %w", err)
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	rec.StoredAt = unixMillisToTime(storedAt)
	return rec, true, nil
}

// Put 以 upsert 方式写入记录，同 key 后写覆盖先写。
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	if rec.Key == "" {
		return store.PersistFailed(rec.Key, store.ErrKeyRequired)
	}
	db, err := s.handle()
	if err != nil {
		return store.PersistFailed(rec.Key, err)
	}

	payload := rec.Payload
	if payload == nil {
		payload = []byte{}
	}
	_, err = db.ExecContext(
		ctx,
		`INSERT INTO records (key, status, payload, stored_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		    status = excluded.status,
		    payload = excluded.payload,
		    stored_at = excluded.stored_at`,
		rec.Key,
		rec.Status,
		payload,
		timeToUnixMillis(rec.StoredAt),
	)
	return store.PersistFailed(rec.Key, err)
}

// Close 释放数据库连接，可重复调用。
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Info 返回引擎描述；未打开时 SchemaVersion 为 0。
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
		Location:      s.path(),
	}
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	return s.db, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, s.name+".db")
}

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func unixMillisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
