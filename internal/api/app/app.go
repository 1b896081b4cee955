package app

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpHandler "github.com/anthanhphan/go-model-share/internal/api/adapter/inbound/http"
	"github.com/anthanhphan/go-model-share/internal/api/adapter/outbound/cache"
	"github.com/anthanhphan/go-model-share/internal/api/adapter/outbound/mediahost"
	"github.com/anthanhphan/go-model-share/internal/api/adapter/outbound/prober"
	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/go-model-share/internal/api/service"
	"github.com/anthanhphan/go-model-share/pkg/idgen"
	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	cfg    *config.Config
	server *httpHandler.Server
	store  port.CacheStore
	// redis is closed separately when only the clock uses it.
	redis *redis.Client
}

func New(configPath string) (*App, error) {
	// 1. Load Config
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	logger.InitLogger(&cfg.Logger)

	// 3. Redis is shared by the redis cache driver and the redis clock
	var redisClient *redis.Client
	if cfg.Cache.Driver == "redis" || cfg.Clock.Source == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}

	// 4. Outbound adapters
	store, err := newCacheStore(cfg.Cache, redisClient)
	if err != nil {
		return nil, fmt.Errorf("failed to init cache store: %w", err)
	}

	host, err := newMediaHost(cfg.MediaHost)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to init media host: %w", err)
	}

	httpProber := prober.NewHTTPProber(&http.Client{}, prober.Config{
		Timeout: time.Duration(cfg.App.ProbeTimeoutMS) * time.Millisecond,
		Origin:  shareOrigin(cfg.Share.BaseURL),
	})

	var clock idgen.Clock = &idgen.SystemClock{}
	if cfg.Clock.Source == "redis" {
		clock = idgen.NewRedisClock(redisClient)
	}

	// 5. Services
	generator := service.NewCandidateBuilder(cfg.MediaHost.DeliveryBases(), cfg.MediaHost.Folder)
	svc := service.NewModelService(cfg, store, host, httpProber, generator, idgen.NewStamper(clock))

	// 6. HTTP Server
	httpServer := httpHandler.NewServer(cfg, svc)

	logger.Infow("Model share gateway initialized",
		"cache_driver", cfg.Cache.Driver,
		"media_host", cfg.MediaHost.Provider,
		"clock", cfg.Clock.Source,
		"retrieval_bases", len(cfg.MediaHost.DeliveryBases()),
	)

	return &App{
		cfg:    cfg,
		server: httpServer,
		store:  store,
		redis:  redisClient,
	}, nil
}

// shareOrigin is the scheme and host of the share page, sent as Origin on probes.
func shareOrigin(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func newCacheStore(cfg config.CacheConfig, redisClient *redis.Client) (port.CacheStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return cache.NewMemoryStore(), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
		return cache.NewRedisStore(redisClient, cfg.KeyPrefix), nil
	case "sqlite":
		return cache.NewSQLiteStore(cfg.SQLite.Path)
	case "logfile":
		return cache.NewLogFileStore(cfg.LogFile, cfg.KeyPrefix)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

func newMediaHost(cfg config.MediaHostConfig) (port.MediaHost, error) {
	switch cfg.Provider {
	case "", "cloudinary":
		return mediahost.NewCloudinaryHost(&http.Client{}, cfg)
	case "s3":
		return mediahost.NewS3Host(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unknown media host provider %q", cfg.Provider)
	}
}

func (a *App) Run() error {
	// Start HTTP
	logger.Infow("Model share gateway starting", "addr", a.cfg.Server.Addr)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Gateway server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down model share gateway")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Stop(ctx); err != nil {
		logger.Errorw("HTTP shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Errorw("Cache store close error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}

	if a.redis != nil && a.cfg.Cache.Driver != "redis" {
		_ = a.redis.Close()
	}

	return runErr
}
