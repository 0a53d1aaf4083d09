// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"

	"nexus-promotion/internal/pkg/config"
	"nexus-promotion/internal/pkg/logger"
	"nexus-promotion/internal/pkg/nacos"
	"nexus-promotion/internal/pkg/tracing"
)

var currentConfig atomic.Pointer[config.Config]

// GetCurrentConfig 返回 Init 加载的配置，Init 之前调用返回默认配置。
func GetCurrentConfig() *config.Config {
	if cfg := currentConfig.Load(); cfg != nil {
		return cfg
	}
	cfg := config.Default()
	return &cfg
}

// Init 读取配置 (CONFIG_PATH) 并初始化全局 logger，每个命令的 main 最先调用。
func Init() (*config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	currentConfig.Store(cfg)
	logger.Init(logger.Options{
		Service: cfg.App.Name,
		Level:   cfg.App.LogLevel,
		Console: cfg.App.LogConsole,
	})
	return cfg, nil
}

// AppCtx 是注册路由时可以使用的公共组件。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *config.Config

	mu      sync.Mutex
	closers []func(ctx context.Context) error
}

// OnShutdown 注册关停时执行的清理函数，按注册的逆序执行。
func (a *AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx *AppCtx) error // 每个服务注册自己独特的 HTTP 路由和后台任务
}

// StartService 封装了微服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	if info.Port == 0 {
		info.Port = cfg.Server.Port
	}

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "init tracer provider")
	}

	// 2. 注册路由和后台任务
	appCtx := &AppCtx{Mux: http.NewServeMux(), Config: cfg}
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			return err
		}
	}

	// 3. 可选的 Nacos 注册
	var (
		namingClient *nacos.Client
		ip           string
	)
	if cfg.Nacos.ServerAddrs != "" {
		if namingClient, err = nacos.NewNacosClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group); err != nil {
			return err
		}
		if ip, err = GetOutboundIP(); err != nil {
			return errors.Wrap(err, "get outbound ip")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			return err
		}
	}

	// 4. HTTP Server
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           appCtx.Mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		zlog.Info().Str("service", info.ServiceName).Int("port", info.Port).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 5. 优雅关停
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		zlog.Error().Err(err).Msg("http server failed")
	}
	zlog.Info().Str("service", info.ServiceName).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// a. 从 Nacos 注销，停止接收新的流量
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			zlog.Error().Err(err).Msg("deregister from nacos")
		}
		namingClient.Close()
	}

	// b. 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("shutdown http server")
	}

	// c. 后台任务 (消费者、定时重载等)，后注册的先关闭
	for i := len(appCtx.closers) - 1; i >= 0; i-- {
		if err := appCtx.closers[i](ctx); err != nil {
			zlog.Error().Err(err).Msg("shutdown hook failed")
		}
	}

	// d. 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		zlog.Error().Err(err).Msg("shutdown tracer provider")
	}

	zlog.Info().Str("service", info.ServiceName).Msg("gracefully shut down")
	return nil
}

// GetOutboundIP 返回本机对外通信使用的 IP，用于服务注册。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
