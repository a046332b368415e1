// Command server starts the ReelVault API HTTP service.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"reelvault/internal/access"
	"reelvault/internal/api"
	"reelvault/internal/auth"
	"reelvault/internal/credentials"
	"reelvault/internal/objectstore"
	"reelvault/internal/observability/logging"
	"reelvault/internal/observability/metrics"
	"reelvault/internal/secrets"
	"reelvault/internal/server"
	"reelvault/internal/storage"
	"reelvault/internal/transcode"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	dataPath := flag.String("data", "", "path to JSON datastore (empty keeps data in memory)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string (switches storage to Postgres)")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	sessionRedisURL := flag.String("session-redis-url", "", "Redis URL for the session store (empty keeps sessions in memory)")
	sessionTTL := flag.Duration("session-ttl", 0, "session lifetime")
	secretsKey := flag.String("secrets-key", "", "base64 32-byte key for credential encryption")
	s3Endpoint := flag.String("s3-endpoint", "", "S3 endpoint override for MinIO or localstack")
	mediaconvertEndpoint := flag.String("mediaconvert-endpoint", "", "MediaConvert endpoint override")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log format (json or text)")
	shutdownTimeout := flag.Duration("shutdown-timeout", 0, "graceful shutdown timeout")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("REELVAULT_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("REELVAULT_LOG_FORMAT")),
	})

	keyMaterial := firstNonEmpty(*secretsKey, os.Getenv("REELVAULT_SECRETS_KEY"))
	if keyMaterial == "" {
		logger.Error("a credential encryption key is required; set -secrets-key or REELVAULT_SECRETS_KEY")
		os.Exit(1)
	}
	codec, err := secrets.NewCodecFromBase64(keyMaterial)
	if err != nil {
		logger.Error("invalid credential encryption key", "error", err)
		os.Exit(1)
	}

	var store storage.Repository
	if dsn := firstNonEmpty(*postgresDSN, os.Getenv("REELVAULT_POSTGRES_DSN")); dsn != "" {
		var opts []storage.Option
		if *postgresMaxConns > 0 || *postgresMinConns > 0 {
			opts = append(opts, storage.WithPostgresPoolLimits(int32(*postgresMaxConns), int32(*postgresMinConns)))
		}
		if appName := firstNonEmpty(*postgresAppName, os.Getenv("REELVAULT_POSTGRES_APP_NAME")); appName != "" {
			opts = append(opts, storage.WithPostgresApplicationName(appName))
		}
		store, err = storage.NewPostgresRepository(dsn, opts...)
		if err != nil {
			logger.Error("failed to open Postgres datastore", "error", err)
			os.Exit(1)
		}
		logger.Info("datastore ready", "driver", "postgres")
	} else {
		dataFile := firstNonEmpty(*dataPath, os.Getenv("REELVAULT_DATA"))
		memoryStore, err := storage.NewStorage(dataFile)
		if err != nil {
			logger.Error("failed to open datastore", "error", err)
			os.Exit(1)
		}
		store = memoryStore
		logger.Info("datastore ready", "driver", "json", "path", dataFile)
	}

	ttl := *sessionTTL
	if ttl <= 0 {
		ttl = resolveDuration(os.Getenv("REELVAULT_SESSION_TTL"), 7*24*time.Hour, logger)
	}
	sessionOpts := []auth.SessionOption{}
	if redisURL := firstNonEmpty(*sessionRedisURL, os.Getenv("REELVAULT_SESSION_REDIS_URL")); redisURL != "" {
		redisStore, err := auth.NewRedisSessionStoreFromURL(redisURL)
		if err != nil {
			logger.Error("failed to connect session store", "error", err)
			os.Exit(1)
		}
		sessionOpts = append(sessionOpts, auth.WithStore(redisStore))
		logger.Info("session store ready", "driver", "redis")
	}
	sessions := auth.NewSessionManager(ttl, sessionOpts...)

	handler := api.NewHandler(store, sessions)
	handler.Credentials = credentials.NewResolver(store, codec)
	handler.Gate = access.NewGate(store)
	handler.ObjectStores = &objectstore.S3Factory{
		Endpoint: firstNonEmpty(*s3Endpoint, os.Getenv("REELVAULT_S3_ENDPOINT")),
	}
	handler.Transcoders = &transcode.MediaConvertFactory{
		Endpoint: firstNonEmpty(*mediaconvertEndpoint, os.Getenv("REELVAULT_MEDIACONVERT_ENDPOINT")),
	}
	handler.Secrets = codec
	handler.Logger = logging.WithComponent(logger, "api")

	listenAddr := firstNonEmpty(*addr, os.Getenv("REELVAULT_ADDR"))
	if listenAddr == "" {
		listenAddr = ":8080"
	}

	srv := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("REELVAULT_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("REELVAULT_TLS_KEY")),
		},
		Logger:          logging.WithComponent(logger, "http"),
		Metrics:         metrics.Default(),
		ShutdownTimeout: *shutdownTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startSessionPurgeWorker(ctx, logging.WithComponent(logger, "session-purger"), sessions, 15*time.Minute)

	logger.Info("ReelVault API listening", "addr", listenAddr)
	logger.Info("metrics endpoint available", "path", "/metrics")
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped cleanly")
}

func startSessionPurgeWorker(ctx context.Context, logger *slog.Logger, sessions *auth.SessionManager, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := sessions.PurgeExpired(ctx); err != nil {
					logger.Warn("session purge failed", "error", err)
				}
			}
		}
	}()
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func resolveDuration(raw string, fallback time.Duration, logger *slog.Logger) time.Duration {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil || parsed <= 0 {
		logger.Warn("invalid duration", "value", raw, "error", err)
		return fallback
	}
	return parsed
}
