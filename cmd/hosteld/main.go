package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/internal/config"
	"github.com/MarkoPoloResearchLab/hostel/internal/events"
	"github.com/MarkoPoloResearchLab/hostel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/hostel/internal/sweeper"
	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	flagDatabaseURL    = "database-url"
	flagStore          = "store"
	flagListenAddr     = "listen-addr"
	flagLockTimeout    = "lock-timeout"
	flagRequestTimeout = "request-timeout"
	flagAllowedOrigins = "allowed-origins"
	flagJWTSigningKey  = "jwt-signing-key"
	flagJWTIssuer      = "jwt-issuer"
	flagJWTCookieName  = "jwt-cookie-name"
	flagAdminRole      = "admin-role"
	flagRedisAddr      = "redis-addr"
	flagReportCacheTTL = "report-cache-ttl"
	flagAMQPURL        = "amqp-url"
	flagAMQPQueue      = "amqp-queue"
	flagSweepInterval  = "sweep-interval"
	flagSweepBatch     = "sweep-batch"
	flagEnvFile        = "env-file"
	envPrefix          = "HOSTEL"
	claimsContextKey   = "auth_claims"
)

var serveFlags = []string{
	flagDatabaseURL, flagStore, flagListenAddr, flagLockTimeout, flagRequestTimeout, flagAllowedOrigins,
	flagJWTSigningKey, flagJWTIssuer, flagJWTCookieName, flagAdminRole, flagRedisAddr, flagReportCacheTTL,
	flagAMQPURL, flagAMQPQueue, flagSweepInterval, flagSweepBatch,
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hosteld: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hosteld",
		Short:         "Campus housing bed allocation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().String(flagEnvFile, ".env", "optional dotenv file loaded before reading HOSTEL_* variables")
	cmd.AddCommand(newServeCommand(), newMigrateCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the booking sweeper",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	registerFlags(cmd)
	return cmd
}

func newMigrateCommand() *cobra.Command {
	cfg := config.Config{}
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, &cfg, false)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()
			database, err := openDatabase(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer database.close()
			logger.Info("schema ready", zap.String("driver", database.driver), zap.String("store", cfg.Store))
			return nil
		},
	}
	registerFlags(cmd)
	return cmd
}

func registerFlags(cmd *cobra.Command) {
	cmd.Flags().String(flagDatabaseURL, "", "postgres://, mysql://, sqlite://path or a bare sqlite path")
	cmd.Flags().String(flagStore, config.StoreGorm, "store implementation: gorm or pgx (pgx requires postgres)")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")
	cmd.Flags().Duration(flagLockTimeout, 0, "row lock wait before a transaction conflict is reported")
	cmd.Flags().Duration(flagRequestTimeout, 0, "per-request deadline")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	cmd.Flags().String(flagJWTSigningKey, "", "TAuth JWT signing key (required for serve)")
	cmd.Flags().String(flagJWTIssuer, "", "expected JWT issuer")
	cmd.Flags().String(flagJWTCookieName, "", "JWT cookie name")
	cmd.Flags().String(flagAdminRole, "", "session role granting admin access")
	cmd.Flags().String(flagRedisAddr, "", "redis address for the report cache (empty disables)")
	cmd.Flags().Duration(flagReportCacheTTL, 0, "report cache entry lifetime")
	cmd.Flags().String(flagAMQPURL, "", "RabbitMQ url for booking events (empty disables)")
	cmd.Flags().String(flagAMQPQueue, "", "RabbitMQ queue for booking events")
	cmd.Flags().Duration(flagSweepInterval, time.Hour, "interval between booking completion sweeps (0 disables)")
	cmd.Flags().Int(flagSweepBatch, 0, "bookings completed per sweep batch")
}

func loadConfig(cmd *cobra.Command, cfg *config.Config, requireSession bool) error {
	envFile, err := cmd.Flags().GetString(flagEnvFile)
	if err != nil {
		return err
	}
	if err := loadEnvFile(envFile); err != nil {
		return err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, flagName := range serveFlags {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.Store = strings.TrimSpace(v.GetString(flagStore))
	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.LockTimeout = v.GetDuration(flagLockTimeout)
	cfg.RequestTimeout = v.GetDuration(flagRequestTimeout)
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.SessionSigningKey = v.GetString(flagJWTSigningKey)
	cfg.SessionIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
	cfg.SessionCookieName = strings.TrimSpace(v.GetString(flagJWTCookieName))
	cfg.AdminRole = strings.TrimSpace(v.GetString(flagAdminRole))
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.ReportCacheTTL = v.GetDuration(flagReportCacheTTL)
	cfg.AMQPURL = strings.TrimSpace(v.GetString(flagAMQPURL))
	cfg.AMQPQueue = strings.TrimSpace(v.GetString(flagAMQPQueue))
	cfg.SweepInterval = v.GetDuration(flagSweepInterval)
	cfg.SweepBatch = v.GetInt(flagSweepBatch)

	if requireSession {
		return cfg.ValidateServe()
	}
	return cfg.Validate()
}

func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	database, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer database.close()

	var reportBackend httpapi.ReportCache
	if cfg.RedisAddr != "" {
		redisClient, err := httpapi.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		reportBackend = httpapi.NewRedisReportCache(redisClient, cfg.ReportCacheTTL)
	}
	reports := httpapi.NewGuardedReportCache(reportBackend, logger)

	operationLoggers := []housing.OperationLogger{events.NewZapLogger(logger)}
	if cfg.AMQPURL != "" {
		publisher, err := events.DialPublisher(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			return fmt.Errorf("event publisher: %w", err)
		}
		defer func() { _ = publisher.Close() }()
		operationLoggers = append(operationLoggers, publisher)
	}

	clock := func() int64 { return time.Now().UTC().Unix() }
	service, err := newService(database.store, clock, reports, operationLoggers...)
	if err != nil {
		return err
	}

	if cfg.SweepInterval > 0 {
		bookingSweeper, err := sweeper.New(service, cfg.SweepBatch, logger)
		if err != nil {
			return err
		}
		if err := bookingSweeper.Start(ctx, cfg.SweepInterval); err != nil {
			return err
		}
		defer func() { _ = bookingSweeper.Stop() }()
	}

	validator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}

	server, err := httpapi.NewServer(httpapi.Config{
		ListenAddr:     cfg.ListenAddr,
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
		AdminRole:      cfg.AdminRole,
	}, service, validator.GinMiddleware(claimsContextKey), reports, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}

// newService builds the engine. reports is always among its operation loggers, so
// every committed write, including sweeper completions, clears cached reports.
func newService(store housing.Store, clock func() int64, reports *httpapi.GuardedReportCache, loggers ...housing.OperationLogger) (*housing.Service, error) {
	fanout := make(events.FanoutLogger, 0, len(loggers)+1)
	fanout = append(fanout, loggers...)
	fanout = append(fanout, reports)
	service, err := housing.NewService(store, clock, housing.WithOperationLogger(fanout))
	if err != nil {
		return nil, fmt.Errorf("housing service init: %w", err)
	}
	return service, nil
}
