package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotwise/config"
	"slotwise/cron"
	"slotwise/database"
	bookingRepo "slotwise/database/repository/booking"
	hostRepo "slotwise/database/repository/host"
	"slotwise/handlers"
	"slotwise/middleware"
	"slotwise/routes"
	"slotwise/services/availability"
	"slotwise/services/booking"
	"slotwise/services/calendar"
	"slotwise/services/notification"
	"slotwise/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	cfg := config.AppConfig
	engineCfg := config.Engine()

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// repositories.
	store, directory := initStorage(ctx, cfg.StoreDriver, logger)

	var redisClients []*redis.Client
	needsRedis := cfg.LockDriver == "redis" || cfg.DispatchDriver == "asynq"
	if needsRedis {
		redisClients = append(redisClients, utils.GetCacheClient())
	}

	// calendars.
	registry := calendar.NewRegistry()
	registry.Register("static", calendar.NewStaticSource())
	if cfg.GoogleCredentialsFile != "" {
		credentialsFile := cfg.GoogleCredentialsFile
		registry.Register(calendar.ProviderGoogle, calendar.NewGoogleSource(
			func(context.Context, string) ([]option.ClientOption, error) {
				return []option.ClientOption{option.WithCredentialsFile(credentialsFile)}, nil
			}))
	}
	cache := calendar.NewBusyCache(registry, engineCfg.Cache, time.Now, logger.Named("calendar"))

	var bus calendar.InvalidationBus = calendar.NewLocalBus(cache)
	if needsRedis {
		redisBus := calendar.NewRedisBus(utils.GetCacheClient(), cfg.InvalidationChannel, cache, logger.Named("invalidation"))
		go func() {
			if err := redisBus.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("invalidation subscriber stopped", zap.Error(err))
			}
		}()
		bus = redisBus
	}

	stopSweeper, err := cron.StartCacheSweeper(cfg.CacheSweepSpec, cache, logger.Named("sweeper"))
	if err != nil {
		logger.Fatal("main: failed to start cache sweeper", zap.Error(err))
	}

	// services.
	engine := availability.NewEngine(directory, cache, store, engineCfg.Availability, time.Now, logger.Named("availability"))

	var locker booking.HostLocker = booking.NewMemoryLocker()
	if cfg.LockDriver == "redis" {
		locker = booking.NewRedisLocker(utils.GetCacheClient(), cfg.LockPrefix, cfg.LockTTL)
	}

	var dispatcher notification.Dispatcher = notification.NewLogDispatcher(logger.Named("transitions"))
	stopWorker := func() {}
	if cfg.DispatchDriver == "asynq" {
		queueOpts := asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisQueueDB,
		}
		queueClient := asynq.NewClient(queueOpts)
		defer queueClient.Close()
		dispatcher = notification.NewAsynqDispatcher(queueClient, cfg.TransitionQueue)

		webhooks := notification.NewWebhookSender(cfg.WebhookSubscribers(), cfg.WebhookTimeout)
		stopWorker = cron.InitTransitionWorker(webhooks, logger.Named("worker"))
		redisClients = append(redisClients, utils.GetQueueClient())
	}

	coordinator := booking.NewCoordinator(engine, store, locker, dispatcher, engineCfg.Booking, time.Now, logger.Named("booking"))

	utils.StartHealthMonitor(ctx, 60*time.Second, redisClients, database.MongoClient)

	// Create the Gin router.
	router := gin.New()
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewAvailabilityHandler(engine),
		handlers.NewBookingHandler(coordinator),
		handlers.NewHostHandler(directory),
		handlers.NewCalendarHandler(bus),
	)
	routes.RegisterRoutes(router, handlerBundle)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}

	// committed transitions still in flight reach the queue before exit
	coordinator.Wait()
	stopWorker()
	stopSweeper()
	stop()
	if database.MongoClient != nil {
		_ = database.MongoClient.Disconnect(shutdownCtx)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}

// initStorage selects the booking store and host directory backend.
func initStorage(ctx context.Context, driver string, logger *zap.Logger) (bookingRepo.Store, hostRepo.Directory) {
	if driver == "memory" {
		logger.Warn("main: using in-memory storage, data is lost on restart")
		return bookingRepo.NewMemoryStore(), hostRepo.NewMemoryDirectory()
	}

	db := database.Database()
	store := bookingRepo.NewMongoStore(db)
	directory := hostRepo.NewMongoDirectory(db)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := store.EnsureIndexes(indexCtx); err != nil {
		logger.Fatal("main: failed to ensure booking indexes", zap.Error(err))
	}
	if err := directory.EnsureIndexes(indexCtx); err != nil {
		logger.Fatal("main: failed to ensure host indexes", zap.Error(err))
	}
	return store, directory
}
