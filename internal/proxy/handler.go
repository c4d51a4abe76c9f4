package proxy

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/asset-hub/internal/assetcache"
	"github.com/any-hub/asset-hub/internal/logging"
	"github.com/any-hub/asset-hub/internal/resource"
	"github.com/any-hub/asset-hub/internal/server"
)

// 资源视图，对应 ?view= 查询参数。
const (
	ViewRaw  = "raw"
	ViewText = "text"
	ViewJSON = "json"
)

// AssetSource 是 Handler 依赖的缓存入口，*assetcache.Client 满足该接口。
type AssetSource interface {
	FetchResource(ctx context.Context, key string) (*resource.Resource, error)
}

// Handler 把 /assets/ 请求翻译为一次 FetchResource 调用，并按视图输出结果。
type Handler struct {
	assets AssetSource
	logger *logrus.Logger
}

// NewHandler constructs an asset handler over the shared cache client.
func NewHandler(assets AssetSource, logger *logrus.Logger) *Handler {
	return &Handler{
		assets: assets,
		logger: logger,
	}
}

// Handle 实现 server.AssetHandler：读取缓存或回源，任何阶段出错都会输出结构化日志。
func (h *Handler) Handle(c fiber.Ctx, key string) error {
	started := time.Now()
	requestID := server.RequestID(c)
	view := strings.ToLower(strings.TrimSpace(c.Query("view", ViewRaw)))

	switch view {
	case ViewRaw, ViewText, ViewJSON:
	default:
		return h.writeError(c, fiber.StatusBadRequest, "invalid_view")
	}
	if key == "" {
		return h.writeError(c, fiber.StatusBadRequest, "key_required")
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := h.assets.FetchResource(ctx, key)
	if err != nil {
		h.logResult(key, view, requestID, 0, false, started, err)
		status, code := classifyError(err)
		return h.writeError(c, status, code)
	}

	c.Set("X-Asset-Hub-Cache-Hit", boolHeader(res.FromCache()))
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}

	switch view {
	case ViewText:
		err = h.serveText(c, res)
	case ViewJSON:
		value, decodeErr := res.Value()
		if decodeErr != nil {
			h.logResult(key, view, requestID, res.Status(), res.FromCache(), started, decodeErr)
			return h.writeError(c, fiber.StatusUnprocessableEntity, "decode_failed")
		}
		err = c.Status(res.Status()).JSON(value)
	default:
		err = h.serveRaw(c, key, res)
	}
	h.logResult(key, view, requestID, res.Status(), res.FromCache(), started, err)
	return err
}

func (h *Handler) serveRaw(c fiber.Ctx, key string, res *resource.Resource) error {
	if ext := path.Ext(keyPath(key)); ext != "" {
		c.Type(ext)
	} else {
		c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	}
	return c.Status(res.Status()).Send(res.Bytes())
}

func (h *Handler) serveText(c fiber.Ctx, res *resource.Resource) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(res.Status()).SendString(res.Text())
}

// classifyError 把缓存客户端的错误映射为 HTTP 状态与错误码。
func classifyError(err error) (int, string) {
	var (
		initErr  *assetcache.InitializationError
		fetchErr *assetcache.FetchError
	)
	switch {
	case errors.Is(err, assetcache.ErrEmptyKey):
		return fiber.StatusBadRequest, "key_required"
	case errors.As(err, &initErr):
		return fiber.StatusServiceUnavailable, "store_unavailable"
	case errors.As(err, &fetchErr):
		return fiber.StatusBadGateway, "upstream_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "request_timeout"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

func (h *Handler) logResult(
	key string,
	view string,
	requestID string,
	status int,
	cacheHit bool,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields(key, view, cacheHit)
	fields["action"] = "asset"
	fields["status"] = status
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if requestID != "" {
		fields["request_id"] = requestID
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("asset_failed")
		return
	}
	h.logger.WithFields(fields).Info("asset_complete")
}

// keyPath 去掉绝对 URL key 的查询串与片段，只保留路径部分用于推断扩展名。
func keyPath(key string) string {
	if idx := strings.IndexAny(key, "?#"); idx >= 0 {
		return key[:idx]
	}
	return key
}

func boolHeader(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
