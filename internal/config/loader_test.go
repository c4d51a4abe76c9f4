package config

import "testing"

func TestLoadFailsWithMissingFile(t *testing.T) {
	if _, err := Load(testConfigPath(t, "does-not-exist.toml")); err == nil {
		t.Fatalf("不存在的配置文件应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
StoragePath = "./data"
Upstream = "https://cdn.example.com"
UpstreamTimeout = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsSecondsDuration(t *testing.T) {
	cfg := `
StoragePath = "./data"
Upstream = "https://cdn.example.com"

[Store]
MaxAge = 90
`
	path := writeTempConfig(t, cfg)
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if got := loaded.Store.MaxAge.DurationValue().Seconds(); got != 90 {
		t.Fatalf("整数秒应被解析为 90s，得到 %v", got)
	}
	if loaded.Store.Backend != "sqlite" || loaded.Store.Name != "asset-cache" {
		t.Fatalf("Store 默认值未生效: %+v", loaded.Store)
	}
}
