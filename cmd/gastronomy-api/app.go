package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	gastronomy "github.com/nmezhenskyi/gastronomy-api"
	"github.com/nmezhenskyi/gastronomy-api/internal/accounts"
	"github.com/nmezhenskyi/gastronomy-api/internal/catalog"
	"github.com/nmezhenskyi/gastronomy-api/internal/httpapi"
	"github.com/nmezhenskyi/gastronomy-api/internal/jobs"
	"github.com/nmezhenskyi/gastronomy-api/internal/rate"
	"github.com/nmezhenskyi/gastronomy-api/internal/storage"
	"github.com/nmezhenskyi/gastronomy-api/metrics/export/otel"
	"github.com/nmezhenskyi/gastronomy-api/metrics/export/prometheus"
	"github.com/nmezhenskyi/gastronomy-api/middleware"
	"github.com/nmezhenskyi/gastronomy-api/session"
)

// models lists every table the service owns.
func models() []any {
	all := append(accounts.Models(), &session.RefreshToken{})
	return append(all, catalog.Models()...)
}

// coreModule provides the pieces every command needs: logger, database,
// accounts and the engine.
func coreModule(cfg gastronomy.Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(
			gastronomy.NewLogger,
			newDatabase,
			accounts.NewStore,
			newEngine,
		),
	)
}

// core is the graph handed to one-shot commands.
type core struct {
	DB       *gorm.DB
	Engine   *gastronomy.Engine
	Accounts *accounts.Store
	Logger   *zap.Logger
}

// withCore builds the core graph, hands it to fn and tears everything down
// again.
func withCore(ctx context.Context, cfg gastronomy.Config, fn func(context.Context, core) error) error {
	var c core
	app := fx.New(
		coreModule(cfg),
		fx.NopLogger,
		fx.Populate(&c.DB, &c.Engine, &c.Accounts, &c.Logger),
	)
	if err := app.Err(); err != nil {
		return err
	}
	ctx = contextOrBackground(ctx)
	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, c)
	stopErr := app.Stop(context.WithoutCancel(ctx))
	return errors.Join(runErr, stopErr)
}

// serveModule adds the HTTP server, rate limiter, exporters and cleanup job.
func serveModule() fx.Option {
	return fx.Options(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		fx.Provide(
			catalog.New,
			newLimiter,
			newMetricsHandler,
			newServer,
		),
		fx.Invoke(
			registerHTTP,
			registerCleanupJob,
			registerOTel,
		),
	)
}

func newDatabase(lc fx.Lifecycle, cfg gastronomy.Config, logger *zap.Logger) (*gorm.DB, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := storage.Migrate(db, models()...); err != nil {
			_ = storage.Close(db)
			return nil, err
		}
		logger.Debug("database migrated", zap.String("dialect", cfg.Database.Dialect))
	}
	lc.Append(fx.StopHook(func() error { return storage.Close(db) }))
	return db, nil
}

func newEngine(lc fx.Lifecycle, cfg gastronomy.Config, db *gorm.DB, store *accounts.Store, logger *zap.Logger) (*gastronomy.Engine, error) {
	engine, err := gastronomy.New().
		WithConfig(cfg).
		WithDB(db).
		WithAccountProvider(store).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	lc.Append(fx.StopHook(engine.Close))
	return engine, nil
}

// newLimiter returns a nil Limiter when rate limiting is disabled.
func newLimiter(lc fx.Lifecycle, cfg gastronomy.Config, logger *zap.Logger) (middleware.Limiter, error) {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return nil, nil
	}

	var store rate.Store
	switch rl.Backend {
	case gastronomy.RateBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     rl.RedisAddress,
			Password: rl.RedisPassword,
			DB:       rl.RedisDB,
		})
		lc.Append(fx.StopHook(client.Close))
		store = rate.NewRedisStore(client)
	default:
		mem, err := rate.NewMemoryStore(rate.MemoryStoreConfig{})
		if err != nil {
			return nil, err
		}
		lc.Append(fx.StopHook(mem.Close))
		store = mem
	}

	limiter, err := rate.New(store, rate.Config{
		Limit:     cfg.EffectiveRateLimit(),
		Window:    rl.Window,
		FailOpen:  rl.FailOpen,
		KeyPrefix: "rl:",
		Logger:    logger.Named("rate"),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("rate limiter enabled",
		zap.String("backend", rl.Backend),
		zap.Int("limit", limiter.Limit()),
		zap.Duration("window", limiter.Window()),
	)
	return limiter, nil
}

func newMetricsHandler(cfg gastronomy.Config, engine *gastronomy.Engine) http.Handler {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return prometheus.NewExporter(engine).Handler()
}

type serverParams struct {
	fx.In

	Engine   *gastronomy.Engine
	Accounts *accounts.Store
	Catalog  *catalog.Service
	Limiter  middleware.Limiter
	Metrics  http.Handler
	Logger   *zap.Logger
}

func newServer(p serverParams) (*httpapi.Server, error) {
	return httpapi.New(httpapi.Options{
		Engine:   p.Engine,
		Accounts: p.Accounts,
		Catalog:  p.Catalog,
		Limiter:  p.Limiter,
		Metrics:  p.Metrics,
		Logger:   p.Logger.Named("http"),
	})
}

func registerHTTP(lc fx.Lifecycle, cfg gastronomy.Config, srv *httpapi.Server, logger *zap.Logger, shutdowner fx.Shutdowner) {
	hs := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", hs.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", hs.Addr, err)
			}
			logger.Info("http server listening",
				zap.String("address", ln.Addr().String()),
				zap.String("environment", cfg.Environment),
			)
			go func() {
				if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("http server shutting down")
			return hs.Shutdown(ctx)
		},
	})
}

func registerCleanupJob(lc fx.Lifecycle, cfg gastronomy.Config, engine *gastronomy.Engine, logger *zap.Logger) error {
	if !cfg.Session.CleanupEnabled {
		return nil
	}
	job, err := jobs.NewCleanupJob(engine, jobs.CleanupConfig{
		Schedule: cfg.Session.CleanupSchedule,
		Location: time.Local,
		Logger:   logger.Named("cleanup"),
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			job.Start(context.WithoutCancel(ctx))
			logger.Info("session cleanup scheduled", zap.Time("next", job.Next(time.Now())))
			return nil
		},
		OnStop: func(context.Context) error {
			job.Stop()
			return nil
		},
	})
	return nil
}

// registerOTel pushes the engine counters to an OTLP/HTTP collector when
// metrics.otel is set.
func registerOTel(lc fx.Lifecycle, cfg gastronomy.Config, engine *gastronomy.Engine, logger *zap.Logger) error {
	if !cfg.Metrics.Enabled || !cfg.Metrics.OTel {
		return nil
	}
	exporter, err := otlpmetrichttp.New(context.Background(),
		otlpmetrichttp.WithEndpoint(cfg.Metrics.OTelEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return fmt.Errorf("otlp metric exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(
		sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.Metrics.OTelInterval)),
	))
	bridge, err := otel.NewExporter(provider.Meter("github.com/nmezhenskyi/gastronomy-api"), engine)
	if err != nil {
		return err
	}
	lc.Append(fx.StopHook(func(ctx context.Context) error {
		if err := bridge.Close(); err != nil {
			logger.Warn("otel callback unregister failed", zap.Error(err))
		}
		return provider.Shutdown(ctx)
	}))
	logger.Info("otel metrics export enabled", zap.String("endpoint", cfg.Metrics.OTelEndpoint))
	return nil
}
