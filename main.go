package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/photo-check/internal/auth"
	"github.com/example/photo-check/internal/classifier"
	"github.com/example/photo-check/internal/config"
	"github.com/example/photo-check/internal/grpcclient"
	"github.com/example/photo-check/internal/handlers"
	"github.com/example/photo-check/internal/imagemeta"
	"github.com/example/photo-check/internal/logging"
	"github.com/example/photo-check/internal/ratelimit"
	"github.com/example/photo-check/internal/usecase"
)

func main() {
	cfg, cfgErr := config.Load(".env")

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfgErr != nil {
		logger.Fatal("invalid configuration", zap.Error(cfgErr))
	}
	if cfg.LooksLikePlaceholderKey() {
		logger.Warn("HUGGING_FACE_API_KEY looks like a placeholder; classification requests will likely be rejected")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, closeClient := initClassifier(ctx, cfg, logger)
	defer closeClient()

	uc := usecase.NewAnalysisUseCase(imagemeta.NewBuilder(logger), client, logger)

	gin.SetMode(cfg.Mode)
	r, err := newEngine(cfg)
	if err != nil {
		logger.Fatal("invalid TRUSTED_PROXIES", zap.Error(err))
	}

	var guards []gin.HandlerFunc
	if cfg.JWTSecret != "" {
		guards = append(guards, auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience, logger))
	}
	if cfg.RedisAddr != "" {
		redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
		defer redisCancel()
		redisClient := initRedis(redisCtx, cfg.RedisAddr, logger)
		defer redisClient.Close()
		limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounter(redisClient), cfg.RateLimitPerMinute, time.Minute, logger)
		guards = append(guards, ratelimit.Middleware(limiter))
	}

	handlers.RegisterRoutes(r, uc, handlers.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		APIURL:         cfg.Classifier.URL,
		APIKeyStatus:   cfg.APIKeyStatus(),
		Logger:         logger,
	}, guards...)

	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	logger.Info("photo-check listening",
		zap.String("addr", cfg.Addr()),
		zap.String("classifier_transport", cfg.Classifier.Transport),
		zap.Bool("auth_enabled", cfg.JWTSecret != ""),
		zap.Bool("rate_limit_enabled", cfg.RedisAddr != ""),
	)
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newEngine builds the router. Forwarding headers are honoured only from the
// configured proxies, so client addresses used for throttling cannot be forged.
func newEngine(cfg config.Configuration) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(gin.Logger())
	r.MaxMultipartMemory = cfg.MaxUploadBytes
	return r, nil
}

func initClassifier(ctx context.Context, cfg config.Configuration, logger *zap.Logger) (classifier.Client, func()) {
	info := cfg.Classifier
	if info.Transport != config.TransportGRPC {
		return classifier.NewHTTPClient(info.URL, info.APIKey, info.Timeout, logger), func() {}
	}

	client, conn, err := grpcclient.DialClassifier(ctx, info.GRPCAddr, info.APIKey, info.Timeout, logger)
	if err != nil {
		logger.Fatal("failed to connect to classifier", zap.Error(err))
	}
	return client, func() { conn.Close() }
}

func initRedis(ctx context.Context, addr string, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
