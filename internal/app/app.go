package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/merch-store/internal/domain/cart"
	"github.com/xenking/merch-store/internal/domain/order"
	"github.com/xenking/merch-store/internal/domain/product"
	"github.com/xenking/merch-store/internal/handler"
	"github.com/xenking/merch-store/internal/janitor"
	"github.com/xenking/merch-store/internal/seed"
	"github.com/xenking/merch-store/internal/storage/memory"
	"github.com/xenking/merch-store/internal/storage/postgres"
	"github.com/xenking/merch-store/internal/storage/rediscache"
	"github.com/xenking/merch-store/pkg/health"
	"github.com/xenking/merch-store/pkg/httpmiddleware"
)

const serviceName = "merch-store"

// backend is the storage selected by Config.Storage.
type backend struct {
	storage  cart.Storage
	products product.Repository
	close    func()
}

func openBackend(ctx context.Context, lg *zap.Logger, cfg *Config, healthSvc *health.Health) (*backend, error) {
	if cfg.Storage == StorageMemory {
		products, err := seed.Default()
		if err != nil {
			return nil, errors.Wrap(err, "load default catalog")
		}
		lg.Warn("Using in-memory storage, data is lost on restart", zap.Int("products", len(products)))
		store := memory.New(products)
		return &backend{storage: store, products: store, close: func() {}}, nil
	}

	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))

	return &backend{
		storage:  postgres.NewStorage(pool),
		products: postgres.NewProductRepository(pool),
		close:    pool.Close,
	}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	pricing, err := cfg.Shop.Pricing()
	if err != nil {
		return errors.Wrap(err, "pricing")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))

	be, err := openBackend(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer be.close()

	engineOpts := []cart.Option{
		cart.WithMeterProvider(m.MeterProvider()),
		cart.WithNumberSource(order.NewNumberGenerator(cfg.Shop.OrderPrefix)),
	}

	// Optional Redis catalog cache, evicted whenever an order moves stock.
	products := be.products
	if cfg.Redis.URL != "" {
		client, err := rediscache.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()

		catalog := rediscache.New(be.products, client,
			rediscache.WithTTL(cfg.Redis.TTL),
			rediscache.WithNamespace(cfg.Redis.Namespace),
		)
		if err := catalog.Invalidate(ctx); err != nil {
			lg.Warn("Catalog cache invalidation failed", zap.Error(err))
		}
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		products = catalog
		engineOpts = append(engineOpts, cart.WithOrderObserver(catalog))
	}

	engine, err := cart.NewEngine(be.storage, pricing, engineOpts...)
	if err != nil {
		return errors.Wrap(err, "create cart engine")
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.New(handler.Config{
		ImageBaseURL:   cfg.ImageBaseURL,
		CookieName:     cfg.Session.CookieName,
		MaxAge:         cfg.Session.MaxAge,
		Secure:         cfg.Session.Secure,
		DebugEndpoints: cfg.Shop.DebugEndpoints,
	}, products, engine)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, m, healthSvc, h),
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Janitor.Retention > 0 {
		j, err := janitor.New(be.storage, cfg.Janitor.Schedule, cfg.Janitor.Retention, lg.Named("janitor"))
		if err != nil {
			return errors.Wrap(err, "create janitor")
		}
		g.Go(func() error {
			return j.Run(gctx)
		})
	}

	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// newHandler mounts the health endpoints and API routes on one mux and wraps
// them in the middleware chain.
func newHandler(
	ctx context.Context,
	cfg *Config,
	t httpmiddleware.Telemetry,
	healthSvc *health.Health,
	h *handler.Handler,
) http.Handler {
	router := h.Router()
	routeFinder := httpmiddleware.MakeRouteFinder(router, handler.Operations())

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", router)

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.RequestID(),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
			Skip:   isProbe,
		}),
		httpmiddleware.Instrument(serviceName, routeFinder, t),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	)
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/livez", "/readyz":
		return true
	}
	return false
}
