package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/rr3khan/secure-tools/internal/auth"
	"github.com/rr3khan/secure-tools/internal/broker"
	"github.com/rr3khan/secure-tools/internal/executor"
	"github.com/rr3khan/secure-tools/internal/gate"
	"github.com/rr3khan/secure-tools/internal/registry"
	"github.com/rr3khan/secure-tools/internal/secrets"
	"github.com/rr3khan/secure-tools/internal/server"
	"github.com/rr3khan/secure-tools/internal/storage"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Optional .env for local development; real deployments set env directly.
	_ = godotenv.Load()

	// Logger
	logger := mustBuildLogger(envOrDefault("SECURE_TOOLS_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	port := envOrDefault("SECURE_TOOLS_PORT", "8090")
	toolsPath := envOrDefault("SECURE_TOOLS_CONFIG", "config/tools.yml")
	defaultVault := envOrDefault("SECURE_TOOLS_VAULT", "SecureTools")
	opTimeoutS := envOrDefaultInt("SECURE_TOOLS_OP_TIMEOUT_S", 30)
	authCacheTTL := envOrDefaultInt("SECURE_TOOLS_AUTH_CACHE_TTL_S", 30)
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")

	logger.Info("starting secure tools server",
		zap.String("port", port),
		zap.String("tools_config", toolsPath),
	)

	// Tool registry — Postgres if DSN provided, otherwise YAML file.
	// Either way it is loaded once and immutable afterwards.
	var db *sql.DB
	if postgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
	}

	var reg *registry.Registry
	var err error
	if db != nil {
		reg, err = registry.LoadPostgres(context.Background(), db)
	} else {
		reg, err = registry.LoadYAMLFile(toolsPath)
	}
	if err != nil {
		// ConfigError is fatal at load; the process must not start with
		// a broken allow-list.
		logger.Fatal("failed to load tool registry", zap.Error(err))
	}
	logger.Info("tool registry loaded", zap.Int("tools", len(reg.List())))

	// Validation gate — compiles every parameter schema up front.
	g, err := gate.New(reg)
	if err != nil {
		logger.Fatal("failed to build validation gate", zap.Error(err))
	}

	// Executor dispatch — static table, bound against the registry so an
	// unbound executor name fails here instead of on the first call.
	dispatch := executor.NewDispatch(executor.Builtins(nil), logger)
	if err := dispatch.Bind(reg); err != nil {
		logger.Fatal("failed to bind executors", zap.Error(err))
	}

	// Secret store and resolver
	store := secrets.NewOpCLIStore(secrets.OpCLIConfig{
		ServiceAccountToken: os.Getenv("OP_SERVICE_ACCOUNT_TOKEN"),
		Timeout:             time.Duration(opTimeoutS) * time.Second,
		Logger:              logger,
	})
	resolver := secrets.NewResolver(store, logger)

	// Broker — the trusted boundary
	b := broker.New(resolver, dispatch, logger)

	// Storage — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Auth — Postgres if DSN provided, otherwise static (dev only)
	var authenticator auth.Authenticator
	if db != nil {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		authenticator = auth.NewStaticAuthenticator(defaultVault)
		logger.Info("using static authenticator (no POSTGRES_DSN)")
	}

	srv := server.New(reg, g, b, authenticator, writer, logger)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("secure tools server listening", zap.String("addr", httpServer.Addr))
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
