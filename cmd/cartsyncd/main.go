package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartapp "github.com/zeno/cartsync/internal/application/cart"
	checkoutapp "github.com/zeno/cartsync/internal/application/checkout"
	"github.com/zeno/cartsync/internal/domain/cart"
	"github.com/zeno/cartsync/internal/infrastructure/auth"
	"github.com/zeno/cartsync/internal/infrastructure/cache"
	"github.com/zeno/cartsync/internal/infrastructure/config"
	"github.com/zeno/cartsync/internal/infrastructure/event"
	"github.com/zeno/cartsync/internal/infrastructure/gateway"
	"github.com/zeno/cartsync/internal/infrastructure/logger"
	"github.com/zeno/cartsync/internal/infrastructure/storage"
	"github.com/zeno/cartsync/internal/interfaces/http/handler"
	"github.com/zeno/cartsync/internal/interfaces/http/middleware"
	"github.com/zeno/cartsync/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting cartsync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Local persistence
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := storage.NewDatabase(cfg.Storage.Path, gormLog)
	if err != nil {
		log.Fatal("failed to open local storage", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("error closing local storage", zap.Error(err))
		}
	}()
	log.Info("local storage ready", zap.String("path", cfg.Storage.Path))

	normalizer := cart.NewNormalizer(cart.ItemKindPhysicalGood)
	snapshots := storage.NewSqliteSnapshotStore(db, normalizer, log)
	replayQueue := storage.NewGormReplayQueue(db)

	// Backend gateways
	httpClient := gateway.NewClient(cfg.Backend)
	tokens := auth.NewTokenSource(auth.NewHTTPRefreshClient(httpClient), log)
	cartGateway := gateway.NewHTTPCartGateway(httpClient)
	orderGateway := gateway.NewHTTPOrderGateway(httpClient)
	vendors := gateway.NewVendorClient(httpClient)

	// Idempotency store for checkout dedup
	idemFactory := cache.NewIdempotencyStoreFactory(cfg.Redis, log)
	submissions, err := idemFactory.CreateStore()
	if err != nil {
		log.Fatal("failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		if err := submissions.Close(); err != nil {
			log.Error("error closing idempotency store", zap.Error(err))
		}
	}()

	// Event bus for cart change notifications
	eventBus := event.NewInMemoryEventBus(log)

	// Domain and application services
	validator := cart.NewValidator(vendors)
	synchronizer := cartapp.NewSynchronizer(normalizer, log)
	dispatcher := cartapp.NewDispatcher(cartGateway, tokens, snapshots, replayQueue,
		validator, synchronizer, eventBus, cfg.Backend.MutationTimeout, log)
	cartService := cartapp.NewService(snapshots, replayQueue, cartGateway, tokens,
		synchronizer, dispatcher, eventBus, log)
	checkoutService := checkoutapp.NewService(snapshots, orderGateway, cartGateway,
		tokens, validator, submissions, eventBus, cfg.Backend.SubmitTimeout, log)

	// Replayed entries are kept for inspection, then swept
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go runReplayCleanup(cleanupCtx, replayQueue, cfg.Replay.CleanupRetention, log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORSWithConfig(middleware.DefaultCORSConfig()))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	engine.GET("/health", healthHandler(db))

	cartHandler := handler.NewCartHandler(cartService, log)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, log)
	authHandler := handler.NewAuthHandler(tokens, cartService, log)
	eventsHandler := handler.NewCartEventsHandler(eventBus, log)
	if err := eventsHandler.Start(); err != nil {
		log.Fatal("failed to start change feed", zap.Error(err))
	}
	defer eventsHandler.Stop()

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(cartHandler).
		Register(checkoutHandler).
		Register(authHandler).
		Register(eventsHandler)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exited gracefully")
}

// runReplayCleanup periodically removes replayed queue entries older
// than the retention window
func runReplayCleanup(ctx context.Context, queue cart.ReplayQueue, retention time.Duration, log *zap.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := queue.DeleteReplayed(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn("replay queue cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				log.Debug("replay queue cleaned", zap.Int64("removed", removed))
			}
		}
	}
}

// healthHandler reports process and storage health
func healthHandler(db *storage.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"time":    time.Now().Format(time.RFC3339),
				"storage": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"time":    time.Now().Format(time.RFC3339),
			"storage": "ok",
		})
	}
}
