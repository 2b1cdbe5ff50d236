package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/final-year-project/doubtfire-api/internal/api/http"
	"github.com/final-year-project/doubtfire-api/internal/api/http/handlers"
	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/authz"
	"github.com/final-year-project/doubtfire-api/internal/cache"
	"github.com/final-year-project/doubtfire-api/internal/clock"
	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/events"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/internal/persistence"
	"github.com/final-year-project/doubtfire-api/internal/repository"
	"github.com/final-year-project/doubtfire-api/internal/service"
	"github.com/final-year-project/doubtfire-api/internal/worker"
)

type repositories struct {
	tickets  repository.TicketRepository
	sessions repository.SessionRepository
	projects repository.ProjectRepository
	users    repository.UserRepository
	history  repository.TicketHistoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name, cfg.App.Version)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	repos, err := buildRepositories(ctx, cfg, pg, logger)
	if err != nil {
		logger.Fatal("failed to prepare storage", zap.Error(err))
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	systemClock := clock.System()
	dispatcher := events.NewInMemoryDispatcher(logger)

	var publisher events.Publisher
	if cfg.AMQP.URL != "" {
		publisher = events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, cfg.AMQP.DialTimeout, events.DefaultBreakerSettings(), logger)
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		ProjectRepo: repos.projects,
		HistoryRepo: repos.history,
		Dispatcher:  dispatcher,
		Clock:       systemClock,
		Metrics:     metrics,
		Logger:      logger,
	})
	sessionService := service.NewSessionService(service.SessionDependencies{
		SessionRepo: repos.sessions,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Clock:       systemClock,
		Metrics:     metrics,
		Logger:      logger,
	})
	statsService := service.NewStatsService(service.StatsDependencies{
		TicketRepo: repos.tickets,
		Sessions:   sessionService,
		Cache:      cache.NewStatsCache(redis.Client, cfg.Stats.CacheTTL()),
		Clock:      systemClock,
		Config:     cfg.Stats,
		Metrics:    metrics,
		Logger:     logger,
	})

	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, metrics, logger, cfg.Notification))
	worker.StartStatsInvalidation(dispatcher, statsService, logger)

	refresher, err := worker.NewStatsRefresher(statsService, cfg.Stats.RefreshSchedule, logger)
	if err != nil {
		logger.Fatal("failed to schedule stats refresh", zap.Error(err))
	}
	refresher.Start()

	gate, err := authz.NewGate(metrics, logger)
	if err != nil {
		logger.Fatal("failed to load authorization policy", zap.Error(err))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService, gate),
		Sessions:       handlers.NewSessionsHandler(sessionService, gate, systemClock),
		Stats:          handlers.NewStatsHandler(statsService, gate),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, repos.users),
		RateLimiter:    httptransport.NewRateLimiter(cfg.RateLimit, redis.Client, systemClock, logger),
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	refresher.Stop(shutdownCtx)
}

// buildRepositories picks Postgres when a DSN is configured and the seeded
// in-memory store otherwise.
func buildRepositories(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (repositories, error) {
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				return repositories{}, err
			}
		}
		return repositories{
			tickets:  repository.NewTicketRepository(pool),
			sessions: repository.NewSessionRepository(pool),
			projects: repository.NewProjectRepository(pool),
			users:    repository.NewUserRepository(pool),
			history:  repository.NewTicketHistoryRepository(pool),
		}, nil
	}

	store := repository.NewMemoryStore()
	if cfg.App.SeedFile != "" {
		f, err := os.Open(cfg.App.SeedFile)
		if err != nil {
			return repositories{}, err
		}
		defer f.Close()
		if err := repository.LoadSeed(store, f); err != nil {
			return repositories{}, err
		}
		logger.Info("loaded seed data", zap.String("file", cfg.App.SeedFile))
	}
	return repositories{
		tickets:  store.Tickets(),
		sessions: store.Sessions(),
		projects: store.Projects(),
		users:    store.Users(),
		history:  store.TicketHistory(),
	}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
