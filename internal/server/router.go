package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AssetHandler serves one resource key. It allows injecting fake handlers
// during tests.
type AssetHandler interface {
	Handle(c fiber.Ctx, key string) error
}

// AssetHandlerFunc adapts a function to the AssetHandler interface.
type AssetHandlerFunc func(fiber.Ctx, string) error

// Handle makes AssetHandlerFunc satisfy AssetHandler.
func (f AssetHandlerFunc) Handle(c fiber.Ctx, key string) error {
	return f(c, key)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Assets     AssetHandler
	ListenPort int
}

const (
	contextKeyRequestID = "_assethub_request_id"

	// AssetsPrefix 是资源路由前缀，其后的路径即资源 key。
	AssetsPrefix = "/assets/"
)

// NewApp builds a Fiber application with request ID middleware, panic
// recovery and the /assets route.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("asset handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.All(AssetsPrefix+"*", func(c fiber.Ctx) error {
		method := c.Method()
		if method != fiber.MethodGet && method != fiber.MethodHead {
			return c.Status(fiber.StatusMethodNotAllowed).JSON(fiber.Map{"error": "method_not_allowed"})
		}
		return opts.Assets.Handle(c, AssetKey(c))
	})

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID，并回写到响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// AssetKey 从请求中取出资源 key：优先使用 /assets/ 之后的路径，
// 为空时回退到 ?key= 查询参数（用于绝对 URL 形式的 key）。
func AssetKey(c fiber.Ctx) string {
	path := string(c.Request().URI().Path())
	key := strings.TrimPrefix(path, AssetsPrefix)
	if key == path {
		key = ""
	}
	if key == "" {
		key = strings.TrimSpace(c.Query("key"))
	}
	return key
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
