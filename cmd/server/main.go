package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/anonto42/letterbox/backend/internal/handlers"
	"github.com/anonto42/letterbox/backend/internal/jobs"
	"github.com/anonto42/letterbox/backend/internal/middleware"
	"github.com/anonto42/letterbox/backend/internal/push"
	"github.com/anonto42/letterbox/backend/internal/ratelimit"
	"github.com/anonto42/letterbox/backend/internal/repositories"
	"github.com/anonto42/letterbox/backend/internal/router"
	"github.com/anonto42/letterbox/backend/internal/services"
	"github.com/anonto42/letterbox/backend/internal/validators"
	"github.com/anonto42/letterbox/backend/pkg/config"
	"github.com/anonto42/letterbox/backend/pkg/etcdlock"
	"github.com/anonto42/letterbox/backend/pkg/firebase"
	"github.com/anonto42/letterbox/backend/pkg/idgen"
	"github.com/anonto42/letterbox/backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Format: "json"}).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(ctx, cfg, logger.WithComponent(log, "db"))
	if err != nil {
		log.Error("failed to initialize databases", "error", err)
		os.Exit(1)
	}
	defer db.CloseDB()

	ids, err := idgen.New(cfg.NodeID)
	if err != nil {
		log.Error("failed to create id generator", "error", err)
		os.Exit(1)
	}

	jobRepo := jobs.NewRepo(db.Postgres, ids)
	if err := repositories.Migrate(db.Postgres); err != nil {
		log.Error("failed to migrate", "error", err)
		os.Exit(1)
	}
	if err := jobRepo.Migrate(); err != nil {
		log.Error("failed to migrate jobs", "error", err)
		os.Exit(1)
	}

	// Initialize Firebase when credentials are present
	var fb *firebase.App
	if cfg.FirebaseCredentialsPath != "" {
		fb, err = firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
		if err != nil {
			log.Error("failed to initialize Firebase", "error", err)
			os.Exit(1)
		}
		log.Info("firebase initialized")
	}
	if cfg.AuthProvider == "firebase" && fb == nil {
		log.Error("AUTH_PROVIDER=firebase requires FIREBASE_CREDENTIALS_PATH")
		os.Exit(1)
	}

	// --- Initialize Repositories ---
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	contentRepo := repositories.NewPostgresContentRepository(db.Postgres)
	likeRepo := repositories.NewPostgresLikeRepository(db.Postgres)
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres, ids, cfg.ActivityWindow)
	unreadCounter := repositories.NewPostgresUnreadCounter(db.Postgres)
	highlightRepo := repositories.NewPostgresHighlightRepository(db.Postgres, cfg.HighlightLock)

	// Push delivery needs both a subscription store and FCM
	var (
		subscriptions *repositories.MongoPushSubscriptionRepository
		dispatcher    *push.Dispatcher
		queue         services.PushQueue
	)
	if db.Mongo != nil {
		subscriptions = repositories.NewMongoPushSubscriptionRepository(db.Mongo.Database(cfg.MongoDatabase))
		if err := subscriptions.EnsureIndexes(ctx); err != nil {
			log.Error("failed to create push subscription indexes", "error", err)
			os.Exit(1)
		}
		if fb != nil {
			dispatcher = push.NewDispatcher(subscriptions, push.NewFCMSender(fb.MessagingClient), logger.WithComponent(log, "push"))
			queue = jobRepo
		}
	}
	if dispatcher == nil {
		log.Warn("push delivery disabled")
	}

	// --- Services ---
	perms := services.NewPermissions(userRepo)
	merger := services.NewNotificationMerger(notificationRepo, queue, logger.WithComponent(log, "merger"))
	interactions := services.NewInteractions(likeRepo, contentRepo, merger)
	lifecycle := services.NewLifecycle(contentRepo, merger, perms, logger.WithComponent(log, "lifecycle"))
	highlighter := services.NewHighlighter(highlightRepo, perms)

	// --- HTTP ---
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.New()
	config.SetupMiddleware(e, logger.WithComponent(log, "http"))

	sqlDB, err := db.Postgres.DB()
	if err != nil {
		log.Error("failed to get sql handle", "error", err)
		os.Exit(1)
	}

	var verifier middleware.TokenVerifier
	if fb != nil {
		verifier = fb.AuthClient
	}
	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret)
	if cfg.AuthProvider == "firebase" {
		auth = middleware.FirebaseAuthMiddleware(fb.AuthClient, userRepo)
	}

	h := router.Handlers{
		Auth:          handlers.NewAuthHandler(userRepo, verifier, cfg.JWTSecret),
		Users:         handlers.NewUserHandler(userRepo, perms),
		Content:       handlers.NewContentHandler(interactions, lifecycle, contentRepo),
		Likes:         handlers.NewLikeHandler(interactions, likeRepo),
		Notifications: handlers.NewNotificationHandler(notificationRepo, unreadCounter),
		Highlight:     handlers.NewHighlightHandler(highlighter),
		Health:        handlers.HealthCheck(sqlDB),
	}
	if subscriptions != nil {
		h.Push = handlers.NewPushHandler(subscriptions)
	}

	limiter := ratelimit.NewLimiter()
	router.SetupRoutes(e, h, router.Options{
		Auth:               auth,
		Limiter:            limiter,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Log:                logger.WithComponent(log, "router"),
	})

	// --- Background work ---
	var wg sync.WaitGroup
	if dispatcher != nil {
		worker := &jobs.Worker{
			ID:       uuid.NewString(),
			Repo:     jobRepo,
			Push:     dispatcher,
			Interval: cfg.WorkerPollInterval,
			Log:      logger.WithComponent(log, "worker"),
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}

	sweeper := &jobs.Sweeper{
		Purger:          lifecycle,
		Highlight:       highlightRepo,
		Interval:        cfg.SweepInterval,
		Retention:       cfg.PurgeRetention,
		HighlightMaxAge: cfg.HighlightMaxAge,
		Log:             logger.WithComponent(log, "sweeper"),
	}
	if len(cfg.EtcdEndpoints) > 0 {
		locker, err := etcdlock.New(cfg.EtcdEndpoints, "/letterbox/locks/")
		if err != nil {
			log.Error("failed to connect to etcd", "error", err)
			os.Exit(1)
		}
		defer locker.Close()
		sweeper.Lock = locker
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				limiter.Prune(time.Minute, now)
			}
		}
	}()

	// Start server
	go func() {
		log.Info("server starting", "port", cfg.Port, "auth_provider", cfg.AuthProvider)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}
	wg.Wait()
}
