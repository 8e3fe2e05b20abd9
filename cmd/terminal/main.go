package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	apppos "github.com/erp/pos/internal/application/pos"
	"github.com/erp/pos/internal/application/receipt"
	"github.com/erp/pos/internal/domain/pos"
	"github.com/erp/pos/internal/domain/printing"
	"github.com/erp/pos/internal/infrastructure/backend"
	"github.com/erp/pos/internal/infrastructure/cache"
	"github.com/erp/pos/internal/infrastructure/config"
	"github.com/erp/pos/internal/infrastructure/event"
	"github.com/erp/pos/internal/infrastructure/logger"
	infra "github.com/erp/pos/internal/infrastructure/printing"
	"github.com/erp/pos/internal/infrastructure/telemetry"
	"github.com/erp/pos/internal/interfaces/http/handler"
	"github.com/erp/pos/internal/interfaces/http/middleware"
	"github.com/erp/pos/internal/interfaces/http/router"
	"github.com/erp/pos/internal/interfaces/render"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml)")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting POS terminal",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Spans are kept in-process: they give every log line a trace ID
	// without needing a collector.
	tracerProvider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)
	defer func() {
		_ = tracerProvider.Shutdown(context.Background())
	}()

	metrics := telemetry.NewMetrics()

	// Backend
	client, err := backend.NewClient(backend.Config{
		BaseURL:    cfg.Backend.BaseURL,
		Timeout:    cfg.Backend.Timeout,
		CSRFToken:  cfg.Backend.CSRFToken,
		CSRFCookie: cfg.Backend.CSRFCookie,
		UserAgent:  "POS-Terminal/" + version,
		Retry: backend.RetryConfig{
			MaxRetries: cfg.Backend.GetRetries,
			RetryDelay: 200 * time.Millisecond,
			MaxDelay:   2 * time.Second,
			Multiplier: 2.0,
		},
	})
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}
	gateway := backend.NewGateway(client, backend.GatewayConfig{
		Paths: backend.Paths{
			Categories:   cfg.Backend.CategoriesPath,
			Products:     cfg.Backend.ProductsPath,
			CompleteSale: cfg.Backend.CompleteSalePath,
		},
		BreakerFailures: cfg.Backend.BreakerFailures,
		BreakerTimeout:  cfg.Backend.BreakerTimeout,
	}, metrics, log.Named("backend"))

	if cfg.Backend.CSRFToken == "" {
		primeCtx, cancel := context.WithTimeout(ctx, cfg.Backend.Timeout)
		if err := client.PrimeCSRF(primeCtx); err != nil {
			// a later catalog fetch may still set the cookie
			log.Warn("Backend CSRF token not available yet", zap.Error(err))
		}
		cancel()
	}

	// Sale key store
	idempotency, err := cache.NewIdempotencyStore(ctx, cfg.Checkout.Store, cache.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		Prefix:   cfg.Redis.Prefix,
	}, log)
	if err != nil {
		log.Fatal("Failed to create sale key store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing sale key store", zap.Error(err))
		}
	}()

	eventBus := event.NewInMemoryEventBus(log.Named("events"))

	// Receipts
	receipts, closeReceipts := newReceiptGenerator(cfg, metrics, log)
	defer closeReceipts()

	// Terminal
	methods := make([]pos.PaymentMethod, 0, len(cfg.Checkout.PaymentMethods))
	for _, m := range cfg.Checkout.PaymentMethods {
		methods = append(methods, pos.PaymentMethod(m))
	}
	terminal, err := apppos.NewTerminal(apppos.TerminalConfig{
		TaxRate:              cfg.Store.TaxRate,
		PaymentMethods:       methods,
		DefaultPaymentMethod: pos.PaymentMethod(cfg.Checkout.DefaultPaymentMethod),
		Checkout: apppos.CheckoutConfig{
			Notes:          cfg.Checkout.Notes,
			SubmitTimeout:  cfg.Checkout.SubmitTimeout,
			IdempotencyTTL: cfg.Checkout.IdempotencyTTL,
		},
		IdleAfter:       cfg.Ambient.IdleAfter,
		NotificationTTL: cfg.Ambient.NotificationTTL,
	}, apppos.TerminalDeps{
		Catalog:     gateway,
		Submitter:   gateway,
		Receipts:    receipts,
		Idempotency: idempotency,
		Events:      eventBus,
		Metrics:     metrics,
		Logger:      log.Named("terminal"),
	})
	if err != nil {
		log.Fatal("Failed to create terminal", zap.Error(err))
	}
	defer terminal.Close()

	var archive handler.ReceiptArchive
	if storage := receipts.Storage(); storage != nil {
		archiver := receipt.NewArchiver(receipts, cfg.Receipt.RenderTimeout*2, log.Named("archiver"))
		sub := terminal.Subscribe(pos.EventTypeSaleCompleted, archiver)
		defer archiver.Wait()
		defer sub.Unsubscribe()
		archive = storage
	}

	terminal.Start(ctx)
	log.Info("Catalog loaded",
		zap.Int("products", terminal.Catalog.Len()),
		zap.Int("categories", len(terminal.Catalog.Categories())))

	// HTTP
	projector, err := render.NewProjector(render.Settings{
		BusinessName:   cfg.Store.BusinessName,
		CurrencySymbol: cfg.Store.CurrencySymbol,
		LogoURL:        cfg.Store.LogoURL,
		TaxRate:        cfg.Store.TaxRate,
		PDFEnabled:     receipts.PDFEnabled(),
	})
	if err != nil {
		log.Fatal("Failed to parse terminal templates", zap.Error(err))
	}

	engine := newEngine(ctx, cfg, metrics, log)

	posHandler := handler.NewPOSHandler(terminal, projector, log.Named("http"))
	receiptHandler := handler.NewReceiptHandler(terminal.Checkout, receipts, archive, log.Named("http"))
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, terminal.Catalog, gateway)

	posRoutes := handler.POSRoutes(posHandler, receiptHandler)
	r := router.NewRouter(engine, router.WithAPIMiddleware(handler.JSONResponses()))
	r.RegisterRoot(handler.ShellRoutes(posHandler)).
		RegisterRoot(posRoutes).
		RegisterRoot(handler.SystemRoutes(systemHandler)).
		Register(posRoutes)
	r.Setup()

	engine.StaticFS("/static", http.FS(render.Assets()))
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	for _, route := range posRoutes.Routes() {
		log.Debug("Route registered", zap.String("route", route))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", zap.Error(err))
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully",
		zap.Int("sales", terminal.Stats.Snapshot().Transactions))
}

// newEngine builds the gin engine with the terminal's middleware chain
func newEngine(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics, log *zap.Logger) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		middleware.RequestID(),
		middleware.Tracing(middleware.TracingConfig{ServiceName: cfg.App.Name, Enabled: cfg.App.Tracing}),
		middleware.SpanMarker(),
		logger.Recovery(log),
		logger.GinMiddleware(log),
		metrics.GinMiddleware(),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(ctx, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
	}
	engine.Use(
		middleware.NoStore(),
		middleware.CSRF(middleware.CSRFConfig{Secure: cfg.HTTP.CSRFCookieSecure}),
	)
	return engine
}

// newReceiptGenerator builds the receipt generator, with PDF output and
// archiving when enabled. The returned func releases Chrome.
func newReceiptGenerator(cfg *config.Config, metrics *telemetry.Metrics, log *zap.Logger) (*receipt.Generator, func()) {
	engine, err := infra.NewTemplateEngine()
	if err != nil {
		log.Fatal("Failed to parse receipt templates", zap.Error(err))
	}
	paper, err := printing.ParsePaperSize(cfg.Receipt.PaperSize)
	if err != nil {
		log.Fatal("Invalid receipt paper size", zap.Error(err))
	}

	settings := receipt.Settings{
		CurrencySymbol: cfg.Store.CurrencySymbol,
		LogoURL:        cfg.Store.LogoURL,
		BusinessName:   cfg.Store.BusinessName,
		Paper:          paper,
		RenderTimeout:  cfg.Receipt.RenderTimeout,
	}
	opts := []receipt.Option{receipt.WithMetrics(metrics)}
	closer := func() {}

	if cfg.Receipt.PDFEnabled {
		renderer, err := infra.NewChromedpRenderer(&infra.ChromedpConfig{
			DefaultTimeout: cfg.Receipt.RenderTimeout,
			RemoteURL:      cfg.Receipt.ChromeRemoteURL,
			NoSandbox:      cfg.Receipt.NoSandbox,
			Logger:         log.Named("chromedp"),
		})
		if err != nil {
			log.Fatal("Failed to create PDF renderer", zap.Error(err))
		}
		closer = func() { _ = renderer.Close() }

		storage, err := newReceiptStorage(cfg, log)
		if err != nil {
			log.Error("Receipt archive disabled", zap.Error(err))
		}
		opts = append(opts, receipt.WithPDF(renderer, storage))
		log.Info("PDF receipts enabled",
			zap.String("paper", paper.String()),
			zap.String("storage", cfg.Receipt.Storage),
			zap.Bool("archive", storage != nil))
	}

	return receipt.NewGenerator(engine, settings, log.Named("receipt"), opts...), closer
}

// newReceiptStorage returns the configured receipt archive
func newReceiptStorage(cfg *config.Config, log *zap.Logger) (infra.ReceiptStorage, error) {
	switch cfg.Receipt.Storage {
	case "s3":
		storage, err := infra.NewS3Storage(&infra.S3StorageConfig{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			UseSSL:       true,
			Prefix:       "receipts/",
			Logger:       log.Named("s3"),
		})
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := storage.EnsureBucket(ctx); err != nil {
			log.Warn("Could not verify receipt bucket", zap.String("bucket", storage.Bucket()), zap.Error(err))
		}
		return storage, nil
	default:
		fs, err := infra.NewFileSystemStorage(&infra.FileSystemStorageConfig{
			BasePath: cfg.Receipt.BasePath,
			Logger:   log.Named("archive"),
		})
		if err != nil {
			return nil, err
		}
		return fs, nil
	}
}
