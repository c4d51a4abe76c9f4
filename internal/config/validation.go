package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var supportedBackends = map[string]struct{}{
	"sqlite": {},
	"file":   {},
	"redis":  {},
}

var supportedCodecs = map[string]struct{}{
	"cbor":    {},
	"msgpack": {},
}

var supportedMemoryTiers = map[string]struct{}{
	"none":      {},
	"ristretto": {},
	"bigcache":  {},
}

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.StoragePath == "" {
		return newFieldError("Global.StoragePath", "不能为空")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}
	if err := validateUpstream(g.Upstream); err != nil {
		return fmt.Errorf("Global.Upstream: %w", err)
	}

	s := c.Store
	if _, ok := supportedBackends[s.Backend]; !ok {
		return newFieldError(storeField("Backend"), "仅支持 sqlite|file|redis")
	}
	if err := validateStoreName(s.Name); err != nil {
		return fmt.Errorf("%s: %w", storeField("Name"), err)
	}
	if _, ok := supportedCodecs[s.Codec]; !ok {
		return newFieldError(storeField("Codec"), "仅支持 cbor|msgpack")
	}
	if s.MaxAge.DurationValue() < 0 {
		return newFieldError(storeField("MaxAge"), "不能为负数")
	}
	if _, ok := supportedMemoryTiers[s.MemoryTier]; !ok {
		return newFieldError(storeField("MemoryTier"), "仅支持 none|ristretto|bigcache")
	}
	if s.MemoryTier != "none" && s.MaxMemoryCache <= 0 {
		return newFieldError(storeField("MaxMemoryCacheSize"), "必须大于 0")
	}

	if s.Backend == "redis" {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return newFieldError("Redis.Addr", "Backend 为 redis 时不能为空")
		}
		if c.Redis.DB < 0 {
			return newFieldError("Redis.DB", "不能为负数")
		}
	}

	return nil
}

func validateStoreName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("不能为空")
	}
	if strings.ContainsAny(name, `/\ `) {
		return errors.New("不允许包含路径分隔符或空格")
	}
	return nil
}

func validateUpstream(raw string) error {
	if raw == "" {
		return errors.New("缺少上游地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
