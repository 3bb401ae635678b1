package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"finitefield.org/manga-web/internal/cart"
	"finitefield.org/manga-web/internal/catalog"
	"finitefield.org/manga-web/internal/config"
	"finitefield.org/manga-web/internal/i18n"
	mw "finitefield.org/manga-web/internal/middleware"
	"finitefield.org/manga-web/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "manga-web: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("web")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close cart backend", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(cfg, logger, backend, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	// hijacked websocket connections are not tracked by Shutdown
	srv.RegisterOnShutdown(a.closeStreams)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Bool("dev", cfg.Dev),
			zap.String("storage", cfg.Storage.Driver),
			zap.Int("products", a.catalog.Len()),
			zap.Strings("langs", a.bundle.Supported()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openBackend selects the cart backend named by storage.driver.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cart.Backend, error) {
	l := logger.Named("cart")
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		b, err := cart.OpenSQLite(ctx, cfg.Storage.SQLitePath, l)
		if err != nil {
			return nil, fmt.Errorf("open sqlite cart backend: %w", err)
		}
		return b, nil
	case config.DriverRedis:
		b, err := cart.NewRedisBackend(ctx, cart.RedisOptions{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("open redis cart backend: %w", err)
		}
		return b, nil
	default:
		return cart.NewMemoryBackend(l), nil
	}
}

// app holds the process-wide dependencies shared by handlers.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	bundle    *i18n.Bundle
	catalog   *catalog.Catalog
	carts     *cart.Store
	metrics   *cart.Metrics
	registry  *prometheus.Registry
	templates *templateCache

	streams     context.Context
	stopStreams context.CancelFunc
}

func newApp(cfg *config.Config, logger *zap.Logger, backend cart.Backend, reg *prometheus.Registry) (*app, error) {
	bundle, err := i18n.Load(cfg.LocalesDir, cfg.DefaultLang, []string{"ru", "en"})
	if err != nil {
		return nil, fmt.Errorf("load locales: %w", err)
	}

	// A broken catalog file is not fatal: pages report the data as unavailable.
	cat, err := catalog.LoadFile(cfg.CatalogFile, catalog.NewRenderer())
	if err != nil {
		logger.Named("catalog").Warn("catalog unavailable", zap.String("file", cfg.CatalogFile), zap.Error(err))
		cat = nil
	}

	metrics := cart.NewMetrics(reg)
	carts := cart.NewStore(backend, cfg.Cart.Key,
		cart.WithProducts(cat),
		cart.WithLogger(logger.Named("cart")),
		cart.WithMetrics(metrics),
	)
	cartLogger := logger.Named("cart")
	carts.OnChange(func(ctx context.Context, lines cart.Lines) {
		if ce := cartLogger.Check(zap.DebugLevel, "cart changed"); ce != nil {
			ce.Write(zap.Int("lines", len(lines)), zap.Int("count", lines.Count()), zap.String("tab_id", cart.Origin(ctx)))
		}
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		bundle:   bundle,
		catalog:  cat,
		carts:    carts,
		metrics:  metrics,
		registry: reg,
	}
	a.streams, a.stopStreams = context.WithCancel(context.Background())
	a.templates = newTemplateCache(cfg.TemplatesDir, cfg.Dev, a.funcMap())
	if !cfg.Dev {
		if err := a.templates.load(); err != nil {
			return nil, fmt.Errorf("parse templates: %w", err)
		}
	}
	return a, nil
}

func (a *app) closeStreams() { a.stopStreams() }

func (a *app) routes() http.Handler {
	if a.cfg.Session.SigningKey == "" {
		a.logger.Warn("session.signing_key not set; using an ephemeral key, sessions end on restart")
	}
	sessions := mw.NewSessionCodec([]byte(a.cfg.Session.SigningKey))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	// RealIP trusts X-Forwarded-For; run behind a proxy that overwrites it.
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(a.logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.Tab)
	r.Use(mw.HTMX)
	r.Use(mw.Session(mw.SessionConfig{Codec: sessions, Secure: a.cfg.Prod()}))
	r.Use(mw.Locale(a.bundle))
	r.Use(mw.CSRF(a.cfg.Prod()))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	// long-lived; kept out of the Timeout and Compress group
	r.Get("/cart/events", a.CartEventsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Use(middleware.Timeout(30 * time.Second))

		r.Handle("/assets/*", mw.Assets("/assets", a.cfg.PublicDir+"/assets"))

		r.Get("/", a.HomeHandler)

		r.Get("/catalog", a.CatalogHandler)
		r.Get("/catalog/grid", a.CatalogGridFrag)

		r.Get("/product", a.ProductHandler)
		r.Get("/product/gallery", a.ProductGalleryFrag)

		r.Get("/cart", a.CartHandler)
		r.Get("/cart/table", a.CartTableFrag)
		r.Get("/cart/badge", a.CartBadgeFrag)
		r.Post("/cart/items", a.CartAddHandler)
		r.Post("/cart/items/{id}/qty", a.CartQuantityHandler)
		r.Post("/cart/items/{id}/remove", a.CartRemoveHandler)
		r.Post("/cart/clear", a.CartClearHandler)

		r.NotFound(a.NotFoundHandler)
	})
	return r
}
