package assetcache

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/store"
)

// memStore is an in-memory store.Store with failure injection.
type memStore struct {
	mu      sync.Mutex
	records map[string]store.Record

	openErr   error
	openGate  chan struct{}
	getErr    error
	putErr    error
	opened    bool
	closed    bool
	getCalls  atomic.Int64
	putCalls  atomic.Int64
	openCalls atomic.Int64
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]store.Record)}
}

func (s *memStore) Open(ctx context.Context) error {
	s.openCalls.Add(1)
	if s.openGate != nil {
		<-s.openGate
	}
	if s.openErr != nil {
		return s.openErr
	}
	s.mu.Lock()
	s.opened = true
	s.mu.Unlock()
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (store.Record, bool, error) {
	s.getCalls.Add(1)
	if s.getErr != nil {
		return store.Record{}, false, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if ok {
		rec.Payload = bytes.Clone(rec.Payload)
	}
	return rec, ok, nil
}

func (s *memStore) Put(_ context.Context, rec store.Record) error {
	s.putCalls.Add(1)
	if s.putErr != nil {
		return store.PersistFailed(rec.Key, s.putErr)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Payload = bytes.Clone(rec.Payload)
	s.records[rec.Key] = rec
	return nil
}

func (s *memStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *memStore) Info() store.Info {
	return store.Info{Backend: "memory", Name: "test", SchemaVersion: store.SchemaVersion}
}

func (s *memStore) seed(rec store.Record) {
	s.mu.Lock()
	s.records[rec.Key] = rec
	s.mu.Unlock()
}

func (s *memStore) record(key string) (store.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	return rec, ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type fakeReply struct {
	status int
	body   []byte
	err    error
}

// countingFetcher answers from a fixed table and counts every call.
type countingFetcher struct {
	mu      sync.Mutex
	replies map[string]fakeReply
	release chan struct{}
	calls   atomic.Int64
}

func newCountingFetcher() *countingFetcher {
	return &countingFetcher{replies: make(map[string]fakeReply)}
}

func (f *countingFetcher) set(key string, reply fakeReply) {
	f.mu.Lock()
	f.replies[key] = reply
	f.mu.Unlock()
}

func (f *countingFetcher) Fetch(ctx context.Context, key string) (*fetch.Response, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	reply, ok := f.replies[key]
	f.mu.Unlock()
	if !ok {
		return nil, errors.New("no route to host")
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return &fetch.Response{Status: reply.status, Body: io.NopCloser(bytes.NewReader(reply.body))}, nil
}

// mapTier is a synchronous memtier.Tier used to observe tier traffic.
type mapTier struct {
	mu      sync.Mutex
	entries map[string][]byte
	expiry  map[string]time.Time
	closed  bool
}

func newMapTier() *mapTier {
	return &mapTier{entries: make(map[string][]byte), expiry: make(map[string]time.Time)}
}

func (m *mapTier) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return bytes.Clone(v), ok
}

func (m *mapTier) Set(key string, payload []byte, expireAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = bytes.Clone(payload)
	m.expiry[key] = expireAt
}

func (m *mapTier) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// errReader fails after the first read to simulate a dropped connection.
type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }
