package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/openblog/backend/internal/api"
	"github.com/openblog/backend/internal/auth"
	"github.com/openblog/backend/internal/cache"
	"github.com/openblog/backend/internal/config"
	"github.com/openblog/backend/internal/db"
	"github.com/openblog/backend/internal/health"
	"github.com/openblog/backend/internal/logger"
	"github.com/openblog/backend/internal/metrics"
	"github.com/openblog/backend/internal/middleware"
	"github.com/openblog/backend/internal/posts"
	"github.com/openblog/backend/internal/storage"
	"github.com/openblog/backend/internal/websocket"
)

const version = "1.0.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "invalid configuration", err)
		os.Exit(1)
	}

	log := logger.New(&logger.Config{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	logger.SetDefault(log)

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	userRepo := db.NewUserRepository(database)
	postRepo := db.NewPostRepository(database)

	// Redis is an accelerator; the server still works without it.
	var listCache *cache.Cache
	if c, err := cache.New(cfg.RedisAddr, log.WithComponent("cache")); err != nil {
		log.Warn(ctx, "redis unavailable, running without cache", map[string]any{"error": err.Error()})
	} else {
		listCache = c
		defer listCache.Close()
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Error(ctx, "failed to create storage client", err)
		os.Exit(1)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		log.Error(ctx, "failed to ensure storage bucket", err)
		os.Exit(1)
	}
	uploader, err := storage.NewUploader(cfg)
	if err != nil {
		log.Error(ctx, "failed to create storage uploader", err)
		os.Exit(1)
	}

	tokens := &auth.TokenConfig{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessExpiry:  time.Duration(cfg.AccessTokenExpiryMin) * time.Minute,
		RefreshExpiry: time.Duration(cfg.RefreshTokenExpiryMin) * time.Minute,
		Issuer:        "openblog",
	}
	authService := auth.NewService(userRepo, tokens, auth.ServiceOptions{
		BcryptCost:         cfg.BcryptCost,
		UniformLoginErrors: cfg.UniformLoginErrors,
	})
	cookies := &auth.CookieWriter{
		Secure:          cfg.Production,
		AccessMaxAgeSec: cfg.AccessTokenExpiryMin * 60,
		RefreshMaxAge:   cfg.RefreshTokenExpiryMin * 60,
	}
	authHandlers := auth.NewHandlers(authService, cookies)

	appMetrics := metrics.Default()

	hub := websocket.NewHub(appMetrics)
	go hub.Run()
	broadcaster := websocket.NewEventBroadcaster(hub)
	wsHandler := websocket.NewHandler(hub, authService, cfg.AllowedOrigins)

	postHandlers := posts.NewHandlers(postRepo, listCache, broadcaster, appMetrics)
	avatarHandlers := api.NewAvatarHandlers(authService, uploader, store)

	healthCfg := &health.CheckerConfig{
		DB:           database.DB,
		StorageCheck: store.Ping,
		Version:      version,
	}
	if listCache != nil {
		healthCfg.Redis = listCache.Client()
	}
	healthHandler := health.NewHandler(health.NewChecker(healthCfg))

	router := api.NewRouter(&api.RouterConfig{
		AuthHandlers:   authHandlers,
		AuthService:    authService,
		PostHandlers:   postHandlers,
		AvatarHandlers: avatarHandlers,
		HealthHandler:  healthHandler,
		WSHandler:      wsHandler,
		Metrics:        appMetrics,
	})

	handler := middleware.Chain(router,
		middleware.RequestID,
		middleware.Logging(log.WithComponent("http")),
		middleware.Recoverer(log),
		middleware.CORS(cfg.AllowedOrigins),
		metrics.Middleware(appMetrics),
		middleware.Gzip,
	)

	log.Info(ctx, "starting server", map[string]any{
		"addr":       cfg.ServerAddr,
		"production": cfg.Production,
		"version":    version,
	})
	if err := http.ListenAndServe(cfg.ServerAddr, handler); err != nil {
		log.Error(ctx, "server failed", err)
		os.Exit(1)
	}
}
