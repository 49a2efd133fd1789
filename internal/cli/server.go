package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-retry-service/internal/app"
	"quiz-retry-service/internal/config"
	"quiz-retry-service/internal/infra/filesystem"
	"quiz-retry-service/internal/infra/memory"
	"quiz-retry-service/internal/infra/postgres"
	infraredis "quiz-retry-service/internal/infra/redis"
	"quiz-retry-service/internal/infra/sqlite"
	"quiz-retry-service/internal/logger"
	transport "quiz-retry-service/internal/transport/http"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	loader, source, closeLoader, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLoader()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	sessionTTL := config.TTLDuration(cfg.Quiz.SessionTTL, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour))

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, sessionTTL)
	} else {
		store = memory.NewSessionStore(sessionTTL)
	}
	service := app.NewQuizService(store, quizRepo, app.ServiceConfig{
		MaxRetryRounds: cfg.Quiz.MaxRetryRounds,
		Logger:         log,
	})

	secret := cfg.Server.CookieSecret
	if secret == "" {
		// Sessions will not survive a restart without a configured secret.
		secret = uuid.NewString() + uuid.NewString()
		log.Warn("server.cookie_secret not set, using a random one")
	}
	cookies := transport.NewSessionCookies([]byte(secret), cfg.Server.SecureCookie, log)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, cookies, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	quizzes, err := service.ListQuizzes(ctx)
	if err != nil {
		log.Warn("list quizzes failed", "error", err)
	}
	if len(quizzes) == 0 {
		log.Warn("no quizzes found", "source", source)
	}
	log.Info("quiz catalog ready", "source", source, "quizzes", len(quizzes), "max_retry_rounds", cfg.Quiz.MaxRetryRounds)
	for _, q := range quizzes {
		log.Info("quiz available", "quiz_id", q.ID, "title", q.Title)
	}
	log.Info("local url", "url", "http://localhost:"+finalPort)
	for _, ip := range lanAddresses() {
		log.Info("network url", "url", "http://"+net.JoinHostPort(ip, finalPort))
	}

	go func() {
		log.Info("starting quiz service", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openCatalog picks the quiz source: Postgres when configured, then SQLite, then the JSON directory.
func openCatalog(ctx context.Context, cfg config.Config, log *logger.Logger) (memory.QuizLoader, string, func(), error) {
	switch {
	case cfg.Postgres.URL != "":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, "", nil, err
		}
		return postgres.NewQuizLoader(pool), "postgres", pool.Close, nil
	case cfg.SQLite.Path != "":
		loader, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, "", nil, err
		}
		return loader, "sqlite:" + cfg.SQLite.Path, func() { _ = loader.Close() }, nil
	default:
		loader := filesystemLoader(cfg, log)
		return loader, "dir:" + catalogDir(cfg), func() {}, nil
	}
}

func filesystemLoader(cfg config.Config, log *logger.Logger) *filesystem.QuizLoader {
	return filesystem.NewQuizLoader(catalogDir(cfg), cfg.Catalog.Pattern, log)
}

func catalogDir(cfg config.Config) string {
	if cfg.Catalog.Dir == "" {
		return "."
	}
	return cfg.Catalog.Dir
}

// lanAddresses lists the non-loopback IPv4 addresses other devices can reach this host on.
func lanAddresses() []string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	var out []string
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			out = append(out, ip4.String())
		}
	}
	return out
}
