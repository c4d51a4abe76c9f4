package redisstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/any-hub/asset-hub/internal/store"
)

func TestOpenRequiresClient(t *testing.T) {
	s := New(Config{Name: "assets", Codec: store.MsgpackCodec{}})
	err := s.Open(context.Background())
	var initErr *store.InitializationError
	if !errors.As(err, &initErr) || !errors.Is(err, ErrNilClient) {
		t.Fatalf("expected InitializationError(ErrNilClient), got %v", err)
	}
}

func TestRequiresOpen(t *testing.T) {
	s := New(Config{Name: "assets", Codec: store.MsgpackCodec{}})
	if _, _, err := s.Get(context.Background(), "a"); !errors.Is(err, store.ErrNotOpen) {
		t.Fatalf("expected ErrNotOpen, got %v", err)
	}
}

func TestRoundTripAgainstServer(t *testing.T) {
	addr := os.Getenv("ASSET_HUB_TEST_REDIS")
	if addr == "" {
		t.Skip("ASSET_HUB_TEST_REDIS not set")
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	name := "asset-hub-test-" + uuid.NewString()
	ctx := context.Background()
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, name+":*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})

	s := New(Config{Client: client, Name: name, Codec: store.MsgpackCodec{}})
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open error: %v", err)
	}
	if err := s.Put(ctx, store.Record{Key: "a.bin", Status: 200, Payload: []byte{1, 2, 3}}); err != nil {
		t.Fatalf("put error: %v", err)
	}
	got, ok, err := s.Get(ctx, "a.bin")
	if err != nil || !ok {
		t.Fatalf("expected record, ok=%v err=%v", ok, err)
	}
	if got.Status != 200 || string(got.Payload) != string([]byte{1, 2, 3}) {
		t.Fatalf("unexpected record %+v", got)
	}
	if _, ok, err := s.Get(ctx, "missing"); ok || err != nil {
		t.Fatalf("expected miss, ok=%v err=%v", ok, err)
	}
	if s.Info().SchemaVersion != store.SchemaVersion {
		t.Fatalf("unexpected info %+v", s.Info())
	}
}
