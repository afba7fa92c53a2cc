package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/AdityaGahukar/PingWave/internal/auth"
	"github.com/AdityaGahukar/PingWave/internal/cache"
	"github.com/AdityaGahukar/PingWave/internal/config"
	"github.com/AdityaGahukar/PingWave/internal/domain"
	"github.com/AdityaGahukar/PingWave/internal/handler"
	"github.com/AdityaGahukar/PingWave/internal/mailer"
	"github.com/AdityaGahukar/PingWave/internal/middleware"
	"github.com/AdityaGahukar/PingWave/internal/presence"
	"github.com/AdityaGahukar/PingWave/internal/registry"
	"github.com/AdityaGahukar/PingWave/internal/relay"
	"github.com/AdityaGahukar/PingWave/internal/repository"
	"github.com/AdityaGahukar/PingWave/internal/service"
	"github.com/AdityaGahukar/PingWave/pkg/database"
	"github.com/AdityaGahukar/PingWave/pkg/jwt"
	"github.com/AdityaGahukar/PingWave/pkg/log"
	"github.com/AdityaGahukar/PingWave/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := log.L()
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log.Init(cfg.Log)
	l := log.L()

	if cfg.JWT.Secret == "" {
		l.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := database.New(cfg.Database.ToDatabaseConfig())
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db, &domain.UserModel{}, &domain.MessageModel{}); err != nil {
		l.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	userRepo := repository.NewGormUserRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	// History cache: redis when enabled, in-process otherwise.
	var historyCache cache.HistoryCache
	var redisCache *cache.RedisHistoryCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisHistoryCache(cfg.Redis.ToRedisConfig(), cfg.Cache.Prefix)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to connect to redis")
		}
		historyCache = redisCache
		defer redisCache.Close()
	} else {
		historyCache = cache.NewMemoryHistoryCache()
	}

	var imageStore storage.Storage
	switch cfg.Storage.Driver {
	case "s3":
		imageStore, err = storage.NewS3Storage(context.Background(), cfg.Storage.S3)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to init s3 storage")
		}
	default:
		imageStore, err = storage.NewLocalStorage(cfg.Storage.Local)
		if err != nil {
			l.Fatal().Err(err).Msg("failed to init local storage")
		}
	}

	tokens, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to create token manager")
	}

	validator := auth.NewValidator(tokens, userRepo)

	reg := registry.New()
	broadcaster := presence.NewBroadcaster(reg)

	messageService := relay.New(userRepo, messageRepo, reg, imageStore, historyCache, relay.Config{
		HistoryCacheTTL: cfg.Cache.TTL,
		ImageURLTTL:     cfg.Storage.ImageURLTTL,
	})

	userService := service.NewUserService(userRepo, tokens, mailer.NewLogMailer())

	httpHandler := handler.NewHandler(
		userService,
		messageService,
		validator,
		int(cfg.JWT.Expiry.Seconds()),
		cfg.Server.Secure,
	)
	wsHandler := handler.NewWSHandler(validator, broadcaster, cfg.WebSocket)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(log.GinMiddleware(l))
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Locally stored images are served straight off disk.
	if cfg.Storage.Driver != "s3" {
		r.Static(cfg.Storage.Local.BaseURL, cfg.Storage.Local.BaseDir)
	}

	var messageMiddlewares []gin.HandlerFunc
	if cfg.RateLimit.Enabled && redisCache != nil {
		limiter := middleware.NewRateLimiter(redisCache.Client(), cfg.RateLimit.Requests, cfg.RateLimit.Window)
		messageMiddlewares = append(messageMiddlewares, limiter.Middleware())
	}

	httpHandler.RegisterRoutes(r, messageMiddlewares...)
	wsHandler.RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	l.Info().Str("addr", addr).Msg("server starting")
	if err := r.Run(addr); err != nil {
		l.Fatal().Err(err).Msg("server stopped")
	}
}
