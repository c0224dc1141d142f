package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/digkill/LogoForge/internal/api"
	"github.com/digkill/LogoForge/internal/auth"
	"github.com/digkill/LogoForge/internal/config"
	"github.com/digkill/LogoForge/internal/database"
	"github.com/digkill/LogoForge/internal/idempotency"
	"github.com/digkill/LogoForge/internal/metrics"
	"github.com/digkill/LogoForge/internal/openai"
	"github.com/digkill/LogoForge/internal/paddle"
	"github.com/digkill/LogoForge/internal/replicate"
	"github.com/digkill/LogoForge/internal/repository"
	"github.com/digkill/LogoForge/internal/service"
	"github.com/digkill/LogoForge/internal/storage"
	"github.com/digkill/LogoForge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logr := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database connect: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatalf("database migrate: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var claimer idempotency.Claimer = idempotency.Noop{}
	if cfg.RedisURL != "" {
		redisClaimer, err := idempotency.NewRedisClaimer(ctx, cfg.RedisURL, "logoforge:webhook:", idempotency.DefaultTTL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClaimer.Close()
		claimer = redisClaimer
	} else {
		logr.Warn("REDIS_URL not set, webhook deliveries are not deduplicated")
	}

	paddleClient, err := paddle.NewClient(cfg.PaddleAPIKey, cfg.PaddleBaseURL, cfg.RequestTimeout, logr)
	if err != nil {
		log.Fatalf("paddle client: %v", err)
	}
	replicateClient := replicate.NewClient(cfg.ReplicateAPIToken, cfg.ReplicateBaseURL, cfg.RequestTimeout, logr)
	openaiClient := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIChatModel, cfg.OpenAIImageModel, cfg.RequestTimeout, logr)

	uploader, err := storage.NewUploader(storage.Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicBaseURL,
		UsePathStyle:  cfg.S3UsePathStyle,
		Prefix:        cfg.S3Prefix,
	}, cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("storage uploader: %v", err)
	}

	userRepo := repository.NewUserRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	logoRepo := repository.NewLogoRepository(db)
	favoriteRepo := repository.NewFavoriteRepository(db)

	plans := service.PlanCatalog{
		BasicProductID:    cfg.BasicProductID,
		StandardProductID: cfg.StandardProductID,
		PremiumProductID:  cfg.PremiumProductID,
	}

	credits := service.NewCreditService(db, m, logr)
	userService := service.NewUserService(userRepo, cfg.FreeCredits, logr)
	transformService := service.NewTransformService(replicateClient, credits, m, logr)
	logoService := service.NewLogoService(logoRepo, favoriteRepo, credits, openaiClient, uploader, m, logr)
	subscriptionService := service.NewSubscriptionService(
		subscriptionRepo,
		userRepo,
		paddleClient,
		paddle.NewVerifier(cfg.PaddleWebhookSecret, cfg.PaddleWebhookTolerance),
		plans,
		claimer,
		m,
		logr,
	)

	server := api.NewServer(cfg.ListenAddr, cfg.HTTPWriteTimeout, logr, api.Deps{
		Users:         userService,
		Transforms:    transformService,
		Logos:         logoService,
		Subscriptions: subscriptionService,
		Auth:          auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthCookieName, logr),
		Metrics:       m,
	})

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logr.Error("http server stopped", "err", err)
	}
}
