package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	cacheredis "go.pilab.hu/focusboard/cache/redis"
	"go.pilab.hu/focusboard/config"
	"go.pilab.hu/focusboard/internal/audit"
	"go.pilab.hu/focusboard/internal/auth"
	"go.pilab.hu/focusboard/log"
	"go.pilab.hu/focusboard/mongodb"
	"go.pilab.hu/focusboard/services"
)

const AppName = "focusctl"

// Backend is what the user commands operate on.
type Backend struct {
	Users *services.UserService
	Close func(ctx context.Context)
}

// BackendOpener connects to the stores named by the configuration.
type BackendOpener func(ctx context.Context, cfg *config.ServerConfig) (*Backend, error)

// OpenBackend connects to MongoDB and, when TOKEN_STORE is redis, to the token
// store so deleting a user also drops its provider tokens.
func OpenBackend(ctx context.Context, cfg *config.ServerConfig) (*Backend, error) {
	mongoClient, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return nil, err
	}

	repo, err := mongodb.NewUserRepository(ctx, mongoClient.Database())
	if err != nil {
		mongoClient.Close(ctx)
		return nil, err
	}

	var (
		tokens      *services.TokenService
		redisClient redis.UniversalClient
	)
	if cfg.TokenStore == config.BackendRedis {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.RedisAddr},
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		// Removal never decrypts or refreshes, so neither a cipher nor refreshers are needed.
		tokens = services.NewTokenService(cacheredis.NewTokenStore(redisClient, cfg.RedisPrefix), nil, nil)
	}

	return &Backend{
		Users: services.NewUserService(repo, auth.NewBcryptPasswordHasher(bcrypt.DefaultCost), tokens).
			WithAuditor(audit.NewLogger(os.Stderr)),
		Close: func(ctx context.Context) {
			if redisClient != nil {
				_ = redisClient.Close()
			}
			mongoClient.Close(ctx)
		},
	}, nil
}

// NewRootCmd builds the command tree. Each user subcommand opens the backend
// through open and closes it when done.
func NewRootCmd(open BackendOpener) *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           AppName,
		Short:         "focusctl manages focusboard application logins",
		Long:          `A command-line interface for provisioning the users that can log in to focusboard and connect their Todoist and Google accounts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			zlog.Logger = log.New(level, true)

			return nil
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	backendFor := func(cmd *cobra.Command) (*Backend, error) {
		cfg, err := config.LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		if uri, _ := cmd.Flags().GetString("mongo-uri"); uri != "" {
			cfg.MongoURI = uri
		}
		if db, _ := cmd.Flags().GetString("mongo-db"); db != "" {
			cfg.MongoDBName = db
		}

		backend, err := open(cmd.Context(), cfg)
		if err != nil {
			return nil, err
		}
		if backend.Close == nil {
			backend.Close = func(context.Context) {}
		}
		return backend, nil
	}

	rootCmd.PersistentFlags().String("mongo-uri", "", "MongoDB connection string (overrides MONGO_URI)")
	rootCmd.PersistentFlags().String("mongo-db", "", "MongoDB database name (overrides MONGO_DB_NAME)")

	rootCmd.AddCommand(newUserCmd(backendFor))

	return rootCmd
}

// Execute runs focusctl against the configured stores.
func Execute() {
	if err := NewRootCmd(OpenBackend).ExecuteContext(context.Background()); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
