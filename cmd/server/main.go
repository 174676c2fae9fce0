package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/Genzhalo/idp-console/internal/auth"
	"github.com/Genzhalo/idp-console/internal/cache"
	"github.com/Genzhalo/idp-console/internal/config"
	"github.com/Genzhalo/idp-console/internal/db"
	consolegrpc "github.com/Genzhalo/idp-console/internal/grpc"
	internalhttp "github.com/Genzhalo/idp-console/internal/http"
	"github.com/Genzhalo/idp-console/internal/jobs"
	"github.com/Genzhalo/idp-console/internal/operations"
	"github.com/Genzhalo/idp-console/internal/repository"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	log := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	configureLogger(log, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	schemaDB := stdlib.OpenDBFromPool(pool)
	if cfg.DatabaseSchemaFile != "" {
		err = db.ApplyFile(ctx, schemaDB, cfg.DatabaseSchemaFile)
	} else {
		err = db.Apply(ctx, schemaDB)
	}
	_ = schemaDB.Close()
	if err != nil {
		log.Fatalf("schema bootstrap failed: %v", err)
	}

	store := repository.NewStore(pool)
	var sessions auth.Sessions = store
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(err).Warn("redis close error")
			}
		}()
		sessions = cache.NewTokenStore(store, redisClient, cfg.TokenCacheTTL, log)
	}

	authenticator := auth.NewAuthenticator(cfg.JWTSecretKey, cfg.TokenTTL, sessions)
	svc := operations.NewService(store, authenticator, log)
	if err := svc.SeedDefaultUser(ctx, cfg.DefaultUserEmail, cfg.DefaultUserPass); err != nil {
		log.Fatalf("default user seeding failed: %v", err)
	}

	server := internalhttp.NewServer(cfg, svc, log)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	watcher := consolegrpc.NewHealthWatcher(pool, cfg.HealthInterval, log)
	grpcServer := consolegrpc.NewServer(watcher)
	go watcher.Run(ctx)
	jobs.StartFormCloseJob(ctx, cfg, svc, log)

	go func() {
		log.Infof("idp-console http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	go func() {
		listener, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("grpc listen error: %v", err)
		}
		log.Infof("idp-console grpc listening on %s", cfg.GRPCAddr)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("grpc server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	grpcServer.GracefulStop()
}

func configureLogger(log *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.LogFormat, "text") {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
}
