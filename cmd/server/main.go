package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	echoapi "go.pilab.hu/focusboard/api/echo"
	"go.pilab.hu/focusboard/cache"
	cacheredis "go.pilab.hu/focusboard/cache/redis"
	"go.pilab.hu/focusboard/config"
	"go.pilab.hu/focusboard/internal/audit"
	"go.pilab.hu/focusboard/domain"
	"go.pilab.hu/focusboard/internal/auth"
	"go.pilab.hu/focusboard/internal/crypto"
	"go.pilab.hu/focusboard/internal/federation"
	"go.pilab.hu/focusboard/internal/memrepo"
	"go.pilab.hu/focusboard/internal/metrics"
	"go.pilab.hu/focusboard/internal/server"
	"go.pilab.hu/focusboard/internal/session"
	"go.pilab.hu/focusboard/log"
	"go.pilab.hu/focusboard/mongodb"
	"go.pilab.hu/focusboard/services"
	"go.pilab.hu/focusboard/tracing"
)

// closer is released in reverse order on shutdown.
type closer func(ctx context.Context) error

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zerolog.New(os.Stderr).With().Timestamp().Logger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	zl := log.New(log.ParseLevel(cfg.LogLevel), cfg.LogPretty)
	zlog.Logger = zl
	zerolog.DefaultContextLogger = &zl
	appLogger := log.NewZerologAdapter(zl)

	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		appLogger.Fatal(ctx, "Invalid configuration", err, nil)
	}

	appLogger.Info(ctx, "Starting focusboard server...", map[string]interface{}{
		"app_env":       cfg.AppEnv,
		"http_port":     cfg.HTTPPort,
		"token_store":   cfg.TokenStore,
		"session_store": cfg.SessionStore,
		"user_store":    cfg.UserStore,
		"log_level":     cfg.LogLevel,
	})

	var closers []closer

	tp, err := tracing.InitTracerProvider(tracing.Options{
		ServiceName: cfg.OtelServiceName,
		Stdout:      cfg.OtelTracesStdout,
	})
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize TracerProvider", err, nil)
	}
	closers = append(closers, tp.Shutdown)

	cipher, err := crypto.NewCipher(cfg.SessionSecret)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize token cipher", err, nil)
	}

	var redisClient redis.UniversalClient
	if cfg.TokenStore == config.BackendRedis || cfg.SessionStore == config.BackendRedis {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err, map[string]interface{}{"addr": cfg.RedisAddr})
		}
		closers = append(closers, func(context.Context) error { return redisClient.Close() })
	}

	tokenStore, closeTokens := newTokenStore(cfg, redisClient)
	closers = append(closers, closeTokens)

	sessionStore, closeSessions := newSessionStore(cfg, redisClient)
	closers = append(closers, closeSessions)

	userRepo, closeUsers, err := newUserRepository(ctx, cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize user repository", err, nil)
	}
	closers = append(closers, closeUsers)

	providers, err := newProviders(cfg)
	if err != nil {
		appLogger.Fatal(ctx, "Failed to initialize OAuth providers", err, nil)
	}

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	auditor := audit.NewLogger(os.Stdout)
	tokenService := services.NewTokenService(tokenStore, cipher, providers.Refreshers(),
		services.WithRefreshThreshold(cfg.RefreshThreshold),
	)
	hasher := auth.NewBcryptPasswordHasher(bcrypt.DefaultCost)
	userService := services.NewUserService(userRepo, hasher, tokenService).WithAuditor(auditor)

	if cfg.BootstrapLogin != "" {
		if _, err := userService.EnsureUser(ctx, cfg.BootstrapLogin, cfg.BootstrapPassword); err != nil {
			appLogger.Fatal(ctx, "Failed to provision bootstrap user", err, map[string]interface{}{"login": cfg.BootstrapLogin})
		}
	}

	sessionService := services.NewSessionService(sessionStore, userRepo, hasher, tokenService, cfg.SessionMaxAge).
		WithAuditor(auditor)
	connectService := services.NewConnectService(providers, sessionStore, userRepo, tokenService).WithAuditor(auditor)

	api := echoapi.NewAPI(sessionService, connectService, tokenService, echoapi.Config{
		Cookie: session.CookieOptions{
			Domain:     cfg.CookieDomain,
			Production: cfg.IsProduction(),
		},
		AppRedirectPath:   cfg.AppRedirectPath,
		RateLimitRequests: cfg.RateLimitMaxRequests,
		RateLimitWindow:   cfg.RateLimitWindow(),
		AuthRateLimit:     true,
	})

	httpServer := server.NewHTTPServer(cfg, appLogger, api)
	go func() {
		appLogger.Info(ctx, fmt.Sprintf("HTTP server listening on port %s", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err, nil)
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	appLogger.Info(ctx, "Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err, nil)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](shutdownCtx); err != nil {
			appLogger.Error(shutdownCtx, "Shutdown error", err, nil)
		}
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped.")
}

func newTokenStore(cfg *config.ServerConfig, client redis.UniversalClient) (cache.TokenStore, closer) {
	if cfg.TokenStore == config.BackendRedis {
		return cacheredis.NewTokenStore(client, cfg.RedisPrefix), noopCloser
	}

	store := cache.NewMemoryTokenStore()
	return store, func(context.Context) error { return store.Close() }
}

func newSessionStore(cfg *config.ServerConfig, client redis.UniversalClient) (services.SessionStore, closer) {
	if cfg.SessionStore == config.BackendRedis {
		return session.NewRedisStore(client, cfg.RedisPrefix), noopCloser
	}

	store := session.NewMemoryStore()
	return store, func(context.Context) error { return store.Close() }
}

func newUserRepository(ctx context.Context, cfg *config.ServerConfig) (domain.UserRepository, closer, error) {
	if cfg.UserStore != config.BackendMongo {
		return memrepo.NewUserRepository(), noopCloser, nil
	}

	client, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, nil, err
	}

	repo, err := mongodb.NewUserRepository(ctx, client.Database())
	if err != nil {
		client.Close(ctx)
		return nil, nil, err
	}

	return repo, func(ctx context.Context) error {
		client.Close(ctx)
		return nil
	}, nil
}

func newProviders(cfg *config.ServerConfig) (*federation.Service, error) {
	httpClient := &http.Client{Timeout: cfg.ProviderTimeout}

	todoist, err := federation.NewTodoistProvider(federation.ProviderConfig{
		ClientID:     cfg.TodoistClientID,
		ClientSecret: cfg.TodoistClientSecret,
		RedirectURL:  cfg.TodoistRedirectURI,
		HTTPClient:   httpClient,
	})
	if err != nil {
		return nil, err
	}

	google, err := federation.NewGoogleProvider(federation.ProviderConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURI,
		HTTPClient:   httpClient,
	})
	if err != nil {
		return nil, err
	}

	return federation.NewService(todoist, google), nil
}

func noopCloser(context.Context) error { return nil }
