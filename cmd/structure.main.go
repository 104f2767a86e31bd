package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"structure-service/internal/config"
	"structure-service/internal/handler"
	"structure-service/internal/pkg/accessgate"
	"structure-service/internal/pkg/middleware"
	"structure-service/internal/repository"
	"structure-service/internal/router"
	"structure-service/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	// db connection
	dbpool, err := pgxpool.New(context.Background(), cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer dbpool.Close()

	// redis
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr, Password: cfg.RedisPass,
	})
	defer rdb.Close()

	// auth
	auth, err := middleware.NewAuthMiddleware(cfg.JWTPubKeyPath, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		logger.Fatal("auth middleware", zap.Error(err))
	}
	gate := accessgate.New(cfg.AccessSvcAddr, rdb, logger)

	// repo & service & handler
	repo := repository.NewStructureRepo(dbpool, logger)
	svc := service.NewStructureService(repo, gate, logger)
	h := handler.NewStructureHandler(svc)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.New(h, auth, rdb),
	}

	go func() {
		logger.Info("structure REST server listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	// graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown", zap.Error(err))
	}
}
