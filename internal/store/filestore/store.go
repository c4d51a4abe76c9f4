package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/any-hub/asset-hub/internal/store"
)

const (
	backendName    = "file"
	schemaFileName = "SCHEMA"
	recordSuffix   = ".rec"
)

// Store 将每条记录编码为独立文件；entryLock 避免同一 key 并发写入。
type Store struct {
	basePath string
	name     string
	codec    store.Codec

	mu      sync.Mutex
	opened  bool
	version int
	locks   map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

var _ store.Store = (*Store)(nil)

// New 构建文件引擎，记录位于 <basePath>/<name>/records。
func New(basePath, name string, codec store.Codec) *Store {
	return &Store{
		basePath: basePath,
		name:     name,
		codec:    codec,
		locks:    make(map[string]*entryLock),
	}
}

// Open 创建目录并校验 SCHEMA 文件，旧版本直接升级版本号（记录布局向后兼容）。
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
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s.basePath == "" {
		return 0, errors.New("storage path required")
	}
	if strings.TrimSpace(s.name) == "" || strings.ContainsAny(s.name, `/\`) {
		return 0, fmt.Errorf("invalid store name %q", s.name)
	}
	if s.codec == nil {
		return 0, errors.New("record codec required")
	}

	abs, err := filepath.Abs(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("resolve storage path: %w", err)
	}
	s.basePath = abs

	if err := os.MkdirAll(s.recordsDir(), 0o755); err != nil {
		return 0, fmt.Errorf("create storage path: %w", err)
	}

	schemaPath := filepath.Join(s.root(), schemaFileName)
	raw, err := os.ReadFile(schemaPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return 0, fmt.Errorf("read schema file: %w", err)
	default:
		onDisk, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
		if convErr != nil {
			return 0, fmt.Errorf("corrupt schema file: %w", convErr)
		}
		if onDisk > store.SchemaVersion {
			return 0, fmt.Errorf("%w: on-disk v%d, supported v%d", store.ErrSchemaTooNew, onDisk, store.SchemaVersion)
		}
		if onDisk == store.SchemaVersion {
			return onDisk, nil
		}
	}

	content := strconv.Itoa(store.SchemaVersion) + "\n"
	if err := atomic.WriteFile(schemaPath, strings.NewReader(content)); err != nil {
		return 0, fmt.Errorf("write schema file: %w", err)
	}
	return store.SchemaVersion, nil
}

// Get 读取并解码记录文件；文件不存在、是目录或 key 不一致均视为未命中。
func (s *Store) Get(ctx context.Context, key string) (store.Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Record{}, false, err
	}
	if !s.isOpen() {
		return store.Record{}, false, store.ErrNotOpen
	}

	filePath := s.entryPath(key)
	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, err
	}
	if info.IsDir() {
		return store.Record{}, false, nil
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, err
	}
	rec, err := s.codec.Decode(raw)
	if err != nil {
		return store.Record{}, false, fmt.Errorf("decode record %s: %w", filepath.Base(filePath), err)
	}
	if rec.Key != key {
		return store.Record{}, false, nil
	}
	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	return rec, true, nil
}

// Put 编码记录后原子替换目标文件。
func (s *Store) Put(ctx context.Context, rec store.Record) error {
	if rec.Key == "" {
		return store.PersistFailed(rec.Key, store.ErrKeyRequired)
	}
	if !s.isOpen() {
		return store.PersistFailed(rec.Key, store.ErrNotOpen)
	}
	if err := ctx.Err(); err != nil {
		return store.PersistFailed(rec.Key, err)
	}

	unlock := s.lockEntry(rec.Key)
	defer unlock()

	if rec.Payload == nil {
		rec.Payload = []byte{}
	}
	raw, err := s.codec.Encode(rec)
	if err != nil {
		return store.PersistFailed(rec.Key, fmt.Errorf("encode record: %w", err))
	}

	filePath := s.entryPath(rec.Key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return store.PersistFailed(rec.Key, err)
	}
	return store.PersistFailed(rec.Key, atomic.WriteFile(filePath, bytes.NewReader(raw)))
}

// Close 对文件引擎而言只需标记关闭。
func (s *Store) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	return nil
}

func (s *Store) Info() store.Info {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()
	return s.info(version)
}

func (s *Store) info(version int) store.Info {
	return store.Info{
		Backend:       backendName,
		Name:          s.name,
		SchemaVersion: version,
		Location:      s.root(),
	}
}

func (s *Store) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *Store) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *Store) root() string {
	return filepath.Join(s.basePath, s.name)
}

func (s *Store) recordsDir() string {
	return filepath.Join(s.root(), "records")
}

// entryPath 以 sha256(key) 命名记录文件，前两位十六进制作为分片目录。
func (s *Store) entryPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(s.recordsDir(), name[:2], name+recordSuffix)
}
