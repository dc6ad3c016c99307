package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"careerbridge/internal/config"
	"careerbridge/internal/db"
	apihttp "careerbridge/internal/http"
	"careerbridge/internal/oauth"
	"careerbridge/internal/repository"
	"careerbridge/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	accountRepo := repository.NewPgAccountRepository(pool)
	accountSvc := service.NewAccountService(logger, accountRepo)
	tokenSvc := service.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLSeconds)*time.Second)

	stateStore := service.NewMemoryLoginStateStore()
	limiter := service.NewLoginRateLimiter(time.Minute, 10)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory stores", zap.Error(err))
		} else {
			stateStore = service.NewRedisLoginStateStore(redisClient)
			limiter = service.NewRedisLoginRateLimiter(redisClient, time.Minute, 10)
		}
		cancel()
	}

	var providerList []oauth.Provider
	if cfg.GoogleClientID != "" {
		providerList = append(providerList, oauth.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL))
	}
	if cfg.GitHubClientID != "" {
		providerList = append(providerList, oauth.NewGitHub(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL))
	}
	registry := oauth.NewRegistry(providerList...)

	authHandler := apihttp.NewAuthHandler(logger, accountSvc, tokenSvc, registry, stateStore, limiter, cfg.FrontendURL)
	router := apihttp.NewRouter(logger, authHandler, tokenSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server",
		zap.String("port", cfg.HTTPPort),
		zap.Strings("oauth_providers", registry.Names()),
	)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
