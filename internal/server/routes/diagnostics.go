package routes

import (
	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/asset-hub/internal/assetcache"
	"github.com/any-hub/asset-hub/internal/store"
)

// CacheStatus 是诊断接口依赖的缓存视图，*assetcache.Client 满足该接口。
type CacheStatus interface {
	ReadyState() error
	StoreInfo() store.Info
	Stats() assetcache.Stats
}

// RegisterDiagnosticsRoutes 暴露 /-/healthz 与 /-/status 诊断接口，供 SRE 查询存储状态与命中统计。
func RegisterDiagnosticsRoutes(app *fiber.App, cache CacheStatus) {
	if app == nil || cache == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		if err := cache.ReadyState(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	})

	app.Get("/-/status", func(c fiber.Ctx) error {
		payload := statusPayload{
			Ready: cache.ReadyState() == nil,
			Store: cache.StoreInfo(),
			Stats: cache.Stats(),
		}
		return c.JSON(payload)
	})
}

type statusPayload struct {
	Ready bool             `json:"ready"`
	Store store.Info       `json:"store"`
	Stats assetcache.Stats `json:"stats"`
}
