package main

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/assetcache"
	"github.com/any-hub/asset-hub/internal/config"
	"github.com/any-hub/asset-hub/internal/fetch"
	"github.com/any-hub/asset-hub/internal/memtier"
	"github.com/any-hub/asset-hub/internal/store"
	"github.com/any-hub/asset-hub/internal/store/filestore"
	"github.com/any-hub/asset-hub/internal/store/redisstore"
	"github.com/any-hub/asset-hub/internal/store/sqlitestore"
	"github.com/any-hub/asset-hub/internal/version"
)

// buildStore 根据 Store.Backend 构建尚未打开的持久化引擎，打开由缓存客户端的就绪屏障负责。
func buildStore(cfg *config.Config) (store.Store, error) {
	codec, err := store.CodecByName(cfg.Store.Codec)
	if err != nil {
		return nil, err
	}

	switch cfg.Store.Backend {
	case "file":
		return filestore.New(cfg.Global.StoragePath, cfg.Store.Name, codec), nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return redisstore.New(redisstore.Config{
			Client:      rdb,
			Name:        cfg.Store.Name,
			Codec:       codec,
			CloseClient: true,
		}), nil
	case "sqlite", "":
		return sqlitestore.New(cfg.Global.StoragePath, cfg.Store.Name), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

// buildCacheClient 组装存储、内存层与回源组件，返回共享的缓存客户端。
func buildCacheClient(cfg *config.Config, logger *logrus.Logger) (*assetcache.Client, error) {
	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	maxAge := cfg.Store.MaxAge.DurationValue()
	tier, err := memtier.New(memtier.Options{
		Kind:     cfg.Store.MemoryTier,
		MaxBytes: cfg.Store.MaxMemoryCache,
		TTL:      maxAge,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("memory tier: %w", err)
	}

	userAgent := cfg.Global.UserAgent
	if userAgent == "" {
		userAgent = "asset-hub/" + version.Version
	}
	fetcher, err := fetch.NewHTTPFetcher(fetch.HTTPOptions{
		Upstream:  cfg.Global.Upstream,
		Timeout:   cfg.Global.UpstreamTimeout.DurationValue(),
		UserAgent: userAgent,
	})
	if err != nil {
		closeAll(tier, st)
		return nil, err
	}

	client, err := assetcache.New(assetcache.Options{
		Store:    st,
		Fetcher:  fetcher,
		Logger:   logger,
		Tier:     tier,
		MaxAge:   maxAge,
		Coalesce: cfg.Store.Coalesce,
	})
	if err != nil {
		closeAll(tier, st)
		return nil, err
	}
	return client, nil
}

func closeAll(tier memtier.Tier, st store.Store) {
	if tier != nil {
		_ = tier.Close()
	}
	_ = st.Close()
}
