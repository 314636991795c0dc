package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/filebroker/internal/config"
	"github.com/abduss/filebroker/internal/file"
	"github.com/abduss/filebroker/internal/instance"
	"github.com/abduss/filebroker/internal/logger"
	"github.com/abduss/filebroker/internal/policy"
	"github.com/abduss/filebroker/internal/provider"
	"github.com/abduss/filebroker/internal/server"
	"github.com/abduss/filebroker/internal/storage"
	"github.com/abduss/filebroker/internal/token"
	"github.com/abduss/filebroker/internal/user"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real deployments configure through the environment.
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal("connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	fileRepo := file.NewRepository(dbPool)
	userRepo := user.NewRepository(dbPool)
	policyRepo := policy.NewRepository(dbPool)
	instanceRepo := instance.NewRepository(dbPool)

	policyStore := policy.NewStore(policy.Policy{})
	providerHandle := provider.NewHandle(nil)

	instanceService := instance.NewService(
		instanceRepo, policyRepo, policyStore, providerHandle,
		providerFactory(ctx, cfg.S3), cfg.ServerID, log,
	)
	if err := instanceService.Bootstrap(ctx); err != nil {
		log.Fatal("bootstrap instance", zap.Error(err))
	}

	tokenService := token.NewService(token.NewRedisStore(redisClient))
	userService := user.NewService(userRepo, fileRepo, policyStore)
	fileService := file.NewService(fileRepo, userRepo, tokenService, providerHandle, policyStore, cfg.ServerID, log)

	router := server.NewRouter(server.Dependencies{
		Config:          cfg,
		Log:             log,
		DB:              dbPool,
		Redis:           redisClient,
		FileService:     fileService,
		UserService:     userService,
		InstanceService: instanceService,
	})

	var sweeper *file.Sweeper
	if cfg.Sweep.Enabled {
		sweeper = file.NewSweeper(fileService, cfg.Sweep.Interval, log)
		sweeper.Start(ctx)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("filebroker API listening",
			zap.String("addr", cfg.Server.Address()),
			zap.String("server_id", cfg.ServerID))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
	if sweeper != nil {
		sweeper.Wait()
	}
}

// providerFactory wraps provider.New so the s3 backend falls back to the
// environment's S3 settings when the shared secrets carry no credentials,
// and provisions the bucket before the provider goes live.
func providerFactory(ctx context.Context, fallback config.S3Config) instance.Factory {
	return func(name string, creds provider.Credentials) (provider.Provider, error) {
		if name != provider.BackendS3 {
			return provider.New(name, creds)
		}

		s3 := creds.S3
		if s3 == nil {
			s3 = &provider.S3Credentials{
				Endpoint:        fallback.Endpoint,
				AccessKeyID:     fallback.AccessKeyID,
				SecretAccessKey: fallback.SecretAccessKey,
				Bucket:          fallback.Bucket,
				Region:          fallback.Region,
				UseSSL:          fallback.UseSSL,
			}
		}

		client, err := storage.NewMinIOClient(config.S3Config{
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			UseSSL:          s3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, client, s3.Bucket, s3.Region); err != nil {
			return nil, err
		}
		return provider.NewS3ProviderFromClient(client, s3.Bucket), nil
	}
}
