package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/any-hub/asset-hub/internal/assetcache"
	"github.com/any-hub/asset-hub/internal/config"
	"github.com/any-hub/asset-hub/internal/logging"
	"github.com/any-hub/asset-hub/internal/proxy"
	"github.com/any-hub/asset-hub/internal/server"
	"github.com/any-hub/asset-hub/internal/server/routes"
	"github.com/any-hub/asset-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
	prefetch    []string
}

// configEnvVar 可覆盖默认配置路径，优先级低于 --config。
const configEnvVar = "ASSET_HUB_CONFIG"

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["store"] = cfg.StoreSummary()
		fields["upstream"] = cfg.Global.Upstream
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// 启动遵循“配置 → 日志 → 存储引擎 → 内存层 → 回源 → 缓存客户端 → Fiber server”顺序，
	// 所有请求共享同一个缓存客户端与就绪屏障。
	client, err := buildCacheClient(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化缓存失败: %v\n", err)
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.WithError(err).WithField("action", "shutdown").Warn("cache_close_failed")
		}
	}()

	fields := logging.BaseFields("startup", opts.configPath)
	fields["store"] = cfg.StoreSummary()
	fields["listen_port"] = cfg.Global.ListenPort
	fields["memory_tier"] = cfg.Store.MemoryTier
	fields["coalesce"] = cfg.Store.Coalesce
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(opts.prefetch) > 0 {
		return prefetchKeys(ctx, client, opts.prefetch, logger)
	}

	if err := startHTTPServer(ctx, cfg, client, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("asset-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
		prefetch   []string
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 "+configEnvVar+" 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")
	fs.StringArrayVar(&prefetch, "prefetch", nil, "预热指定资源 key 后退出（可重复）")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv(configEnvVar)
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	keys := make([]string, 0, len(prefetch))
	for _, key := range prefetch {
		if key = strings.TrimSpace(key); key != "" {
			keys = append(keys, key)
		}
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
		prefetch:    keys,
	}, nil
}

// prefetchKeys 依次预热 key，任一回源失败或非 200 状态都会使退出码非零。
func prefetchKeys(ctx context.Context, client *assetcache.Client, keys []string, logger *logrus.Logger) int {
	failed := 0
	for i, key := range keys {
		res, err := client.FetchResource(ctx, key)
		fields := logrus.Fields{"action": "prefetch", "key": key}
		if err != nil {
			failed++
			logger.WithError(err).WithFields(fields).Error("prefetch_failed")
			var initErr *assetcache.InitializationError
			if errors.As(err, &initErr) || errors.Is(err, context.Canceled) {
				// 存储不可用或被中断时剩余 key 必然失败，直接结束。
				failed += len(keys) - i - 1
				break
			}
			continue
		}
		fields["status"] = res.Status()
		fields["cache_hit"] = res.FromCache()
		fields["bytes"] = len(res.Bytes())
		if !res.OK() {
			failed++
			logger.WithFields(fields).Warn("prefetch_failed")
			continue
		}
		logger.WithFields(fields).Info("prefetch_complete")
	}

	fmt.Fprintf(stdOut, "prefetched %d/%d\n", len(keys)-failed, len(keys))
	if failed > 0 {
		return 1
	}
	return 0
}

func startHTTPServer(ctx context.Context, cfg *config.Config, client *assetcache.Client, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Assets:     proxy.NewHandler(client, logger),
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, client)

	go func() {
		<-ctx.Done()
		logger.WithField("action", "shutdown").Info("Fiber 服务停止")
		_ = app.Shutdown()
	}()

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port), fiber.ListenConfig{DisableStartupMessage: true})
}
