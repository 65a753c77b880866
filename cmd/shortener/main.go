package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tempizhere/shortlink/internal/analytics"
	"github.com/tempizhere/shortlink/internal/app"
	"github.com/tempizhere/shortlink/internal/auth"
	"github.com/tempizhere/shortlink/internal/cache"
	"github.com/tempizhere/shortlink/internal/config"
	"github.com/tempizhere/shortlink/internal/events"
	"github.com/tempizhere/shortlink/internal/geo"
	grpcserver "github.com/tempizhere/shortlink/internal/grpc"
	"github.com/tempizhere/shortlink/internal/log"
	"github.com/tempizhere/shortlink/internal/repository"
	"github.com/tempizhere/shortlink/internal/service"
	"github.com/tempizhere/shortlink/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Получаем конфигурацию
	cfg, err := config.NewConfig()
	if err != nil {
		panic(err)
	}
	logger := log.NewLogger(cfg.LogLevel)
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server stopped with error", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// run собирает зависимости и обслуживает HTTP и gRPC до отмены ctx
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(store, "store", logger)

	c, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeQuietly(c, "cache", logger)

	var publisher events.Publisher
	if cfg.NATSURL != "" {
		nc, connErr := events.Connect(cfg.NATSURL, logger)
		if connErr != nil {
			// поток событий необязателен
			logger.Warn("Click events disabled", zap.Error(connErr))
		} else {
			publisher = nc
			defer closeQuietly(nc, "nats", logger)
		}
	}

	var resolver geo.Resolver = geo.NopResolver{}
	if cfg.GeoLookupURL != "" {
		resolver = geo.NewIPWhoResolver(cfg.GeoLookupURL, nil, geo.DefaultMemoTTL, logger)
	}

	recorder := worker.NewRecorder(store, c, resolver, publisher, logger, worker.Options{
		Workers:   cfg.ClickWorkers,
		QueueSize: cfg.ClickQueueSize,
	})
	defer drainClicks(recorder, logger)

	svc := service.NewService(store, c, recorder, logger, service.Options{
		BaseURL:       cfg.BaseURL,
		ResolutionTTL: cfg.ResolutionTTL,
		CascadeClicks: cfg.CascadeClicks,
		Generator: service.GeneratorOptions{
			Length:             cfg.CodeLength,
			CollisionThreshold: cfg.CollisionThreshold,
		},
	})
	agg := analytics.NewAggregator(store, c, logger, analytics.Config{
		TTL:             cfg.AnalyticsTTL,
		MaxCachedClicks: cfg.MaxCachedClicks,
	})
	verifier := newVerifier(cfg, logger)

	httpServer := &http.Server{
		Addr: cfg.RunAddr,
		Handler: app.NewApp(svc, agg, logger).Router(app.RouterOptions{
			Verifier:      verifier,
			TrustedSubnet: cfg.TrustedSubnet,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GRPCAddr != "" {
		grpcListener, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcServer = grpcserver.NewGRPCServer(grpcserver.NewServer(svc, agg, logger), grpcserver.Options{
			Verifier:      verifier,
			TrustedSubnet: cfg.TrustedSubnet,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("address", cfg.RunAddr), zap.String("mode", cfg.Mode))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("Starting gRPC server", zap.String("address", cfg.GRPCAddr))
			if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newVerifier возвращает nil, если секрет не задан: токены владельца тогда не принимаются
func newVerifier(cfg *config.Config, logger *zap.Logger) *auth.Verifier {
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET is not set, owner tokens are disabled")
		return nil
	}
	return auth.NewVerifier(cfg.JWTSecret)
}

// drainClicks дописывает клики, принятые до остановки серверов
func drainClicks(recorder *worker.Recorder, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := recorder.Shutdown(ctx); err != nil {
		logger.Warn("Click queue not drained", zap.Error(err))
	}
	logger.Info("Click recorder stopped", zap.Int64("recorded", recorder.Recorded()), zap.Int64("dropped", recorder.Dropped()))
}

// storeCloser хранилище вместе с освобождением его ресурсов
type storeCloser interface {
	repository.Repository
	io.Closer
}

type nopCloser struct{ repository.Repository }

func (nopCloser) Close() error { return nil }

// dbStore закрывает пул соединений вместе с хранилищем
type dbStore struct {
	*repository.PostgresRepository
	db io.Closer
}

func (s dbStore) Close() error { return s.db.Close() }

// openStore выбирает хранилище по режиму конфигурации
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storeCloser, error) {
	switch cfg.Mode {
	case config.ModeDatabase:
		db, err := repository.OpenDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := repository.Migrate(cfg.DatabaseDSN, logger); err != nil {
			_ = db.Close()
			return nil, err
		}
		return dbStore{PostgresRepository: repository.NewPostgresRepository(db, logger), db: db}, nil
	case config.ModeFile:
		repo, err := repository.NewFileRepository(cfg.FileStoragePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return repo, nil
	default:
		return nopCloser{repository.NewMemoryRepository()}, nil
	}
}

// cacheCloser кэш вместе с освобождением его ресурсов
type cacheCloser interface {
	cache.Cache
	io.Closer
}

type memoryCache struct{ *cache.MemoryCache }

func (memoryCache) Close() error { return nil }

type redisCache struct {
	*cache.RedisCache
	client io.Closer
}

func (c redisCache) Close() error { return c.client.Close() }

// openCache выбирает кэш по режиму конфигурации
func openCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cacheCloser, error) {
	if cfg.CacheMode != config.CacheRedis {
		return memoryCache{cache.NewMemoryCache(time.Minute)}, nil
	}
	client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	rc := cache.NewRedisCache(client)
	if err := rc.Ping(ctx); err != nil {
		// кэш работает в fail-open режиме, недоступный Redis не мешает старту
		logger.Warn("Redis is unavailable at startup", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return redisCache{RedisCache: rc, client: client}, nil
}

func closeQuietly(c io.Closer, name string, logger *zap.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close resource", zap.String("resource", name), zap.Error(err))
	}
}
