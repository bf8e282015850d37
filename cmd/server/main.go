// Command server starts the video transcode HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nischay-chauhan/video-transcode/internal/api"
	"github.com/nischay-chauhan/video-transcode/internal/auth"
	"github.com/nischay-chauhan/video-transcode/internal/dispatch"
	"github.com/nischay-chauhan/video-transcode/internal/encode"
	"github.com/nischay-chauhan/video-transcode/internal/job"
	"github.com/nischay-chauhan/video-transcode/internal/media"
	"github.com/nischay-chauhan/video-transcode/internal/observability/logging"
	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
	"github.com/nischay-chauhan/video-transcode/internal/queue"
	"github.com/nischay-chauhan/video-transcode/internal/server"
	"github.com/nischay-chauhan/video-transcode/internal/upload"
	"github.com/nischay-chauhan/video-transcode/internal/ws"
)

type stringListFlag []string

func (s *stringListFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringListFlag) Set(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("value must not be empty")
	}
	*s = append(*s, trimmed)
	return nil
}

func main() {
	addr := flag.String("addr", "", "HTTP listen address")
	mode := flag.String("mode", "", "server runtime mode (development or production)")
	registryDriver := flag.String("registry-driver", "", "job registry driver (memory or postgres)")
	postgresDSN := flag.String("postgres-dsn", "", "Postgres connection string for the job registry")
	postgresMaxConns := flag.Int("postgres-max-conns", 0, "maximum connections in the Postgres pool")
	postgresMinConns := flag.Int("postgres-min-conns", 0, "minimum idle connections maintained by the Postgres pool")
	postgresMaxConnLifetime := flag.Duration("postgres-max-conn-lifetime", 0, "maximum lifetime for a pooled Postgres connection")
	postgresAppName := flag.String("postgres-app-name", "", "application_name reported to Postgres")
	queueDriver := flag.String("queue-driver", "", "job queue driver (memory or redis)")
	queueBuffer := flag.Int("queue-buffer", 0, "in-flight task buffer for the job queue")
	queueRedisAddr := flag.String("queue-redis-addr", "", "Redis address for the job queue")
	queueRedisAddrs := flag.String("queue-redis-addrs", "", "comma separated Redis addresses for the job queue")
	queueRedisUsername := flag.String("queue-redis-username", "", "Redis username for the job queue")
	queueRedisPassword := flag.String("queue-redis-password", "", "Redis password for the job queue")
	queueRedisStream := flag.String("queue-redis-stream", "", "Redis stream key for job tasks")
	queueRedisGroup := flag.String("queue-redis-group", "", "Redis consumer group for job tasks")
	queueRedisMasterName := flag.String("queue-redis-sentinel-master", "", "Redis sentinel master name for the job queue")
	queueRedisPoolSize := flag.Int("queue-redis-pool-size", 0, "maximum Redis connections for the job queue")
	queueRedisTLSCA := flag.String("queue-redis-tls-ca", "", "path to Redis TLS CA certificate for the job queue")
	queueRedisTLSCert := flag.String("queue-redis-tls-cert", "", "path to Redis TLS client certificate for the job queue")
	queueRedisTLSKey := flag.String("queue-redis-tls-key", "", "path to Redis TLS client key for the job queue")
	queueRedisTLSServerName := flag.String("queue-redis-tls-server-name", "", "override Redis TLS server name for the job queue")
	queueRedisTLSSkipVerify := flag.Bool("queue-redis-tls-skip-verify", false, "skip Redis TLS verification for the job queue")
	uploadDir := flag.String("upload-dir", "", "directory for staged uploads and chunk scratch space")
	outputDir := flag.String("output-dir", "", "directory for finished encodes")
	scratchDir := flag.String("scratch-dir", "", "directory for per-job segment scratch space")
	segmentSeconds := flag.Float64("segment-seconds", 0, "planned encode segment length in seconds")
	workers := flag.Int("workers", 0, "number of concurrent encode workers")
	jobTimeout := flag.Duration("job-timeout", 0, "per-job encode timeout")
	maxUploadBytes := flag.Int64("max-upload-bytes", 0, "maximum size of a single upload request body")
	uploadSessionTTL := flag.Duration("upload-session-ttl", 0, "idle lifetime for a chunked upload session")
	uploadSweepInterval := flag.Duration("upload-sweep-interval", 0, "interval between stale upload session sweeps")
	sessionStoreDriver := flag.String("session-store", "", "session store driver (memory or postgres)")
	sessionPostgresDSN := flag.String("session-postgres-dsn", "", "Postgres DSN for the session store")
	sessionTTL := flag.Duration("session-ttl", 0, "absolute lifetime for issued bearer tokens")
	sessionPurgeInterval := flag.Duration("session-purge-interval", 0, "interval between expired session purges")
	ffmpegBinary := flag.String("ffmpeg", "", "ffmpeg executable to invoke")
	ffprobeBinary := flag.String("ffprobe", "", "ffprobe executable to invoke")
	wsHeartbeat := flag.Duration("ws-heartbeat", 0, "interval between WebSocket ping frames")
	wsSendBuffer := flag.Int("ws-send-buffer", 0, "per-client outbound WebSocket queue depth")
	tlsCert := flag.String("tls-cert", "", "path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "path to TLS private key file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "log output format (json or text)")
	globalRPS := flag.Float64("rate-global-rps", 0, "global request rate limit in requests per second")
	globalBurst := flag.Int("rate-global-burst", 0, "global rate limit burst allowance")
	loginLimit := flag.Int("rate-login-limit", 0, "maximum login attempts per window for a single IP")
	loginWindow := flag.Duration("rate-login-window", 0, "window for counting login attempts")
	rateRedisAddr := flag.String("rate-redis-addr", "", "Redis address for distributed login throttling")
	rateRedisPassword := flag.String("rate-redis-password", "", "Redis password for distributed login throttling")
	rateRedisTimeout := flag.Duration("rate-redis-timeout", 0, "timeout for Redis rate limiter operations")
	corsOrigins := flag.String("cors-allowed-origins", "", "comma separated origins allowed to call the API")
	var credentialFlags stringListFlag
	flag.Var(&credentialFlags, "credential", "configured account in the form username:hash (repeatable)")
	flag.Parse()

	logger := logging.Init(logging.Config{
		Level:  firstNonEmpty(*logLevel, os.Getenv("VIDEO_TRANSCODE_LOG_LEVEL")),
		Format: firstNonEmpty(*logFormat, os.Getenv("VIDEO_TRANSCODE_LOG_FORMAT")),
	})
	recorder := metrics.Default()

	serverMode := modeValue(*mode, os.Getenv("VIDEO_TRANSCODE_MODE"))
	listenAddr := resolveListenAddr(*addr, serverMode, os.Getenv("VIDEO_TRANSCODE_ADDR"))

	uploadRoot := resolveDir(*uploadDir, "VIDEO_TRANSCODE_UPLOAD_DIR", "data/uploads")
	outputRoot := resolveDir(*outputDir, "VIDEO_TRANSCODE_OUTPUT_DIR", "data/outputs")
	scratchRoot := resolveDir(*scratchDir, "VIDEO_TRANSCODE_SCRATCH_DIR", "data/scratch")

	credentials, err := resolveCredentials(credentialFlags, os.Getenv("VIDEO_TRANSCODE_CREDENTIALS"))
	if err != nil {
		logger.Error("failed to parse credentials", "error", err)
		os.Exit(1)
	}
	if len(credentials) == 0 {
		logger.Warn("no credentials configured, API logins will be rejected")
	}

	registryDSN := resolvePostgresDSN(*postgresDSN)
	driver, err := resolveRegistryDriver(*registryDriver, os.Getenv("VIDEO_TRANSCODE_REGISTRY_DRIVER"), registryDSN)
	if err != nil {
		logger.Error("failed to resolve registry driver", "error", err)
		os.Exit(1)
	}
	if serverMode == "production" && driver != "postgres" {
		logger.Error("production mode requires the postgres registry driver", "driver", driver)
		os.Exit(1)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	var (
		registry       job.Registry
		registryCloser func()
	)
	switch driver {
	case "memory":
		registry = job.NewMemoryRegistry(logging.WithComponent(logger, "registry"))
	case "postgres":
		pgRegistry, err := job.NewPostgresRegistry(bootCtx, job.PostgresConfig{
			DSN:             registryDSN,
			MaxConns:        int32(resolveInt(*postgresMaxConns, "VIDEO_TRANSCODE_POSTGRES_MAX_CONNS")),
			MinConns:        int32(resolveInt(*postgresMinConns, "VIDEO_TRANSCODE_POSTGRES_MIN_CONNS")),
			MaxConnLifetime: resolveDuration(*postgresMaxConnLifetime, "VIDEO_TRANSCODE_POSTGRES_MAX_CONN_LIFETIME", 0),
			ApplicationName: firstNonEmpty(*postgresAppName, os.Getenv("VIDEO_TRANSCODE_POSTGRES_APP_NAME")),
			Logger:          logging.WithComponent(logger, "registry"),
		})
		if err != nil {
			logger.Error("failed to open job registry", "error", err)
			os.Exit(1)
		}
		registry = pgRegistry
		registryCloser = pgRegistry.Close
	default:
		logger.Error("unsupported registry driver", "driver", driver)
		os.Exit(1)
	}

	queueCfg := queue.RedisQueueConfig{
		Addr:       firstNonEmpty(*queueRedisAddr, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_ADDR")),
		Addrs:      splitAndTrim(firstNonEmpty(*queueRedisAddrs, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_ADDRS"))),
		Username:   firstNonEmpty(*queueRedisUsername, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_USERNAME")),
		Password:   firstNonEmpty(*queueRedisPassword, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_PASSWORD")),
		Stream:     firstNonEmpty(*queueRedisStream, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_STREAM")),
		Group:      firstNonEmpty(*queueRedisGroup, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_GROUP")),
		MasterName: firstNonEmpty(*queueRedisMasterName, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_SENTINEL_MASTER")),
		PoolSize:   resolveInt(*queueRedisPoolSize, "VIDEO_TRANSCODE_QUEUE_REDIS_POOL_SIZE"),
		Buffer:     resolveInt(*queueBuffer, "VIDEO_TRANSCODE_QUEUE_BUFFER"),
		TLS: queue.RedisTLSConfig{
			CAFile:             firstNonEmpty(*queueRedisTLSCA, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_TLS_CA")),
			CertFile:           firstNonEmpty(*queueRedisTLSCert, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_TLS_CERT")),
			KeyFile:            firstNonEmpty(*queueRedisTLSKey, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_TLS_KEY")),
			ServerName:         firstNonEmpty(*queueRedisTLSServerName, os.Getenv("VIDEO_TRANSCODE_QUEUE_REDIS_TLS_SERVER_NAME")),
			InsecureSkipVerify: resolveBool(*queueRedisTLSSkipVerify, "VIDEO_TRANSCODE_QUEUE_REDIS_TLS_SKIP_VERIFY"),
		},
	}
	taskQueue, err := configureQueue(firstNonEmpty(*queueDriver, os.Getenv("VIDEO_TRANSCODE_QUEUE_DRIVER")), queueCfg, logger)
	if err != nil {
		logger.Error("failed to configure job queue", "error", err)
		os.Exit(1)
	}

	hub := ws.NewHub(ws.HubConfig{
		Logger:            logging.WithComponent(logger, "ws"),
		Metrics:           recorder,
		HeartbeatInterval: resolveDuration(*wsHeartbeat, "VIDEO_TRANSCODE_WS_HEARTBEAT", 30*time.Second),
		SendBuffer:        resolveInt(*wsSendBuffer, "VIDEO_TRANSCODE_WS_SEND_BUFFER"),
	})

	reassembler, err := upload.NewReassembler(upload.ReassemblerConfig{
		Dir:         uploadRoot,
		Logger:      logging.WithComponent(logger, "upload"),
		Metrics:     recorder,
		Broadcaster: hub,
		SessionTTL:  resolveDuration(*uploadSessionTTL, "VIDEO_TRANSCODE_UPLOAD_SESSION_TTL", time.Hour),
	})
	if err != nil {
		logger.Error("failed to initialise upload staging", "error", err)
		os.Exit(1)
	}

	engine := media.NewFFmpeg(media.FFmpegConfig{
		Binary:      firstNonEmpty(*ffmpegBinary, os.Getenv("VIDEO_TRANSCODE_FFMPEG")),
		ProbeBinary: firstNonEmpty(*ffprobeBinary, os.Getenv("VIDEO_TRANSCODE_FFPROBE")),
		Logger:      logging.WithComponent(logger, "media"),
	})

	coordinator, err := encode.NewCoordinator(encode.CoordinatorConfig{
		Engine:         engine,
		ScratchDir:     scratchRoot,
		SegmentSeconds: resolveFloat(*segmentSeconds, "VIDEO_TRANSCODE_SEGMENT_SECONDS"),
		Logger:         logging.WithComponent(logger, "encode"),
		Metrics:        recorder,
		Broadcaster:    hub,
	})
	if err != nil {
		logger.Error("failed to initialise encode coordinator", "error", err)
		os.Exit(1)
	}

	processor := dispatch.NewProcessor(dispatch.ProcessorConfig{
		Registry:    registry,
		Coordinator: coordinator,
		Queue:       taskQueue,
		Broadcaster: hub,
		Metrics:     recorder,
		Workers:     resolveInt(*workers, "VIDEO_TRANSCODE_WORKERS"),
		Timeout:     resolveDuration(*jobTimeout, "VIDEO_TRANSCODE_JOB_TIMEOUT", 0),
		Logger:      logging.WithComponent(logger, "dispatch"),
	})
	processor.Start()

	sessionDSN := strings.TrimSpace(firstNonEmpty(*sessionPostgresDSN, os.Getenv("VIDEO_TRANSCODE_SESSION_POSTGRES_DSN"), registryDSN))
	sessionDriver := resolveSessionStoreDriver(*sessionStoreDriver, os.Getenv("VIDEO_TRANSCODE_SESSION_STORE"), driver)
	var (
		sessionStore  auth.SessionStore
		sessionCloser func(context.Context) error
	)
	switch sessionDriver {
	case "memory":
		sessionStore = auth.NewMemorySessionStore()
	case "postgres":
		pgStore, err := auth.NewPostgresSessionStore(bootCtx, sessionDSN)
		if err != nil {
			logger.Error("failed to open session store", "error", err)
			os.Exit(1)
		}
		sessionStore = pgStore
		sessionCloser = pgStore.Close
	default:
		logger.Error("unsupported session store driver", "driver", sessionDriver)
		os.Exit(1)
	}

	sessions := auth.NewSessionManager(resolveDuration(*sessionTTL, "VIDEO_TRANSCODE_SESSION_TTL", 24*time.Hour), auth.WithStore(sessionStore))
	authService := auth.NewService(credentials, sessions)

	handler := api.NewHandler(api.HandlerConfig{
		Registry:       registry,
		Reassembler:    reassembler,
		Queue:          taskQueue,
		Hub:            hub,
		Auth:           authService,
		Metrics:        recorder,
		Logger:         logging.WithComponent(logger, "api"),
		OutputDir:      outputRoot,
		MaxUploadBytes: resolveInt64(*maxUploadBytes, "VIDEO_TRANSCODE_MAX_UPLOAD_BYTES"),
	})

	srv, err := server.New(handler, server.Config{
		Addr: listenAddr,
		TLS: server.TLSConfig{
			CertFile: firstNonEmpty(*tlsCert, os.Getenv("VIDEO_TRANSCODE_TLS_CERT")),
			KeyFile:  firstNonEmpty(*tlsKey, os.Getenv("VIDEO_TRANSCODE_TLS_KEY")),
		},
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     resolveFloat(*globalRPS, "VIDEO_TRANSCODE_RATE_GLOBAL_RPS"),
			GlobalBurst:   resolveInt(*globalBurst, "VIDEO_TRANSCODE_RATE_GLOBAL_BURST"),
			LoginLimit:    resolveInt(*loginLimit, "VIDEO_TRANSCODE_RATE_LOGIN_LIMIT"),
			LoginWindow:   resolveDuration(*loginWindow, "VIDEO_TRANSCODE_RATE_LOGIN_WINDOW", time.Minute),
			RedisAddr:     firstNonEmpty(*rateRedisAddr, os.Getenv("VIDEO_TRANSCODE_RATE_REDIS_ADDR")),
			RedisPassword: firstNonEmpty(*rateRedisPassword, os.Getenv("VIDEO_TRANSCODE_RATE_REDIS_PASSWORD")),
			RedisTimeout:  resolveDuration(*rateRedisTimeout, "VIDEO_TRANSCODE_RATE_REDIS_TIMEOUT", 2*time.Second),
		},
		CORS: server.CORSConfig{
			AllowedOrigins: splitAndTrim(firstNonEmpty(*corsOrigins, os.Getenv("VIDEO_TRANSCODE_CORS_ALLOWED_ORIGINS"))),
		},
		Logger:  logger,
		Metrics: recorder,
	})
	if err != nil {
		logger.Error("failed to initialise server", "error", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	purgeStop := startSessionPurgeWorker(runCtx, logging.WithComponent(logger, "session-purger"), sessions, resolveDuration(*sessionPurgeInterval, "VIDEO_TRANSCODE_SESSION_PURGE_INTERVAL", 15*time.Minute))
	defer purgeStop()
	sweepStop := startUploadSweepWorker(runCtx, logging.WithComponent(logger, "upload-sweeper"), reassembler, resolveDuration(*uploadSweepInterval, "VIDEO_TRANSCODE_UPLOAD_SWEEP_INTERVAL", 15*time.Minute))
	defer sweepStop()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.Info("transcode API listening", "addr", listenAddr, "mode", serverMode)
		logger.Info("metrics endpoint available", "path", "/metrics")
		return srv.Run(groupCtx)
	})

	runErr := group.Wait()
	if runErr != nil {
		logger.Error("server error", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := processor.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to drain encode workers", "error", err)
	}
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn("failed to close websocket clients", "error", err)
	}
	purgeStop()
	sweepStop()
	if sessionCloser != nil {
		if err := sessionCloser(shutdownCtx); err != nil {
			logger.Warn("failed to close session store", "error", err)
		}
	}
	if registryCloser != nil {
		registryCloser()
	}

	logger.Info("server stopped")
	if runErr != nil {
		os.Exit(1)
	}
}

func configureQueue(driver string, cfg queue.RedisQueueConfig, logger *slog.Logger) (queue.Queue, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "redis":
		if len(cfg.Addrs) == 0 && strings.TrimSpace(cfg.Addr) == "" {
			return nil, fmt.Errorf("redis addr is required for the job queue")
		}
		cfg.Logger = logging.WithComponent(logger, "queue")
		return queue.NewRedisQueue(cfg)
	case "", "memory":
		return queue.NewMemoryQueue(cfg.Buffer), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", driver)
	}
}

func resolveCredentials(flagValues []string, envValue string) ([]auth.Credential, error) {
	raw := append([]string(nil), flagValues...)
	raw = append(raw, splitAndTrim(envValue)...)
	credentials := make([]auth.Credential, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, encoded := range raw {
		cred, err := auth.ParseCredential(encoded)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[cred.Username]; ok {
			continue
		}
		seen[cred.Username] = struct{}{}
		credentials = append(credentials, cred)
	}
	return credentials, nil
}

func resolveSessionStoreDriver(flagValue, envValue, registryDriver string) string {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver
	}
	if registryDriver == "postgres" {
		return "postgres"
	}
	return "memory"
}

func resolveRegistryDriver(flagValue, envValue, postgresDSN string) (string, error) {
	if driver := strings.ToLower(strings.TrimSpace(flagValue)); driver != "" {
		return driver, nil
	}
	if driver := strings.ToLower(strings.TrimSpace(envValue)); driver != "" {
		return driver, nil
	}
	if strings.TrimSpace(postgresDSN) != "" {
		return "postgres", nil
	}
	return "memory", nil
}

func resolveListenAddr(flagValue, mode, envAddr string) string {
	listenAddr := strings.TrimSpace(flagValue)
	if listenAddr == "" {
		listenAddr = strings.TrimSpace(envAddr)
	}
	if listenAddr == "" {
		listenAddr = defaultListenForMode(mode)
	}
	return listenAddr
}

func modeValue(flagMode, envMode string) string {
	mode := strings.ToLower(strings.TrimSpace(flagMode))
	if mode == "" {
		mode = strings.ToLower(strings.TrimSpace(envMode))
	}
	if mode == "" {
		mode = "development"
	}
	return mode
}

func defaultListenForMode(mode string) string {
	if mode == "production" {
		return ":80"
	}
	return ":8080"
}

func resolvePostgresDSN(flagValue string) string {
	return strings.TrimSpace(firstNonEmpty(flagValue, os.Getenv("VIDEO_TRANSCODE_POSTGRES_DSN"), os.Getenv("DATABASE_URL")))
}

func resolveDir(flagValue, envKey, fallback string) string {
	if dir := strings.TrimSpace(flagValue); dir != "" {
		return dir
	}
	if dir := strings.TrimSpace(os.Getenv(envKey)); dir != "" {
		return dir
	}
	return fallback
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

func splitAndTrim(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func resolveFloat(flagValue float64, envKey string) float64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseFloat(strings.TrimSpace(env), 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt(flagValue int, envKey string) int {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.Atoi(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return 0
}

func resolveInt64(flagValue int64, envKey string) int64 {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := strconv.ParseInt(strings.TrimSpace(env), 10, 64); err == nil {
			return value
		}
	}
	return 0
}

func resolveDuration(flagValue time.Duration, envKey string, fallback time.Duration) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	if env := os.Getenv(envKey); env != "" {
		if value, err := time.ParseDuration(env); err == nil {
			return value
		}
	}
	if fallback > 0 {
		return fallback
	}
	return 0
}

func resolveBool(flagValue bool, envKey string) bool {
	if flagValue {
		return true
	}
	if env, ok := os.LookupEnv(envKey); ok {
		if value, err := strconv.ParseBool(strings.TrimSpace(env)); err == nil {
			return value
		}
	}
	return false
}
