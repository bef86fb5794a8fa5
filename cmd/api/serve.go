package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/mentor-queue/internal/api/http"
	"github.com/spec-kit/mentor-queue/internal/api/http/handlers"
	"github.com/spec-kit/mentor-queue/internal/auth"
	"github.com/spec-kit/mentor-queue/internal/config"
	"github.com/spec-kit/mentor-queue/internal/directory"
	"github.com/spec-kit/mentor-queue/internal/events"
	"github.com/spec-kit/mentor-queue/internal/markdown"
	"github.com/spec-kit/mentor-queue/internal/notify"
	"github.com/spec-kit/mentor-queue/internal/observability"
	"github.com/spec-kit/mentor-queue/internal/persistence"
	"github.com/spec-kit/mentor-queue/internal/repository"
	"github.com/spec-kit/mentor-queue/internal/repository/memory"
	"github.com/spec-kit/mentor-queue/internal/service"
	"github.com/spec-kit/mentor-queue/internal/session"
	"github.com/spec-kit/mentor-queue/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
}

type repositories struct {
	tickets repository.TicketRepository
	users   repository.UserRepository
	history repository.TicketHistoryRepository
	store   handlers.Pinger
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	sessions := session.NewStore(redis.ClientHandle(), cfg.Session.TTL())
	repos := newRepositories(pg, logger)

	decoder, err := auth.NewTokenDecoder(cfg.Auth.VerifyKey)
	if err != nil {
		return fmt.Errorf("invalid AUTH_VERIFY_KEY: %w", err)
	}
	identity := auth.NewIdentityClient(cfg.Auth.ServerURL, cfg.Auth.LogoutURL, cfg.Auth.Timeout())
	authenticator := auth.NewAuthenticator(auth.AuthenticatorDependencies{
		Decoder:         decoder,
		Client:          identity,
		Environment:     cfg.Auth.Environment,
		AllowUnverified: cfg.Auth.AllowUnverified,
		Logger:          logger,
	})
	authMiddleware := auth.NewAuthMiddleware(auth.AuthMiddlewareDependencies{
		Resolver: authenticator,
		Sessions: sessions,
		Users:    repos.users,
		Config: auth.MiddlewareConfig{
			CookieName:   cfg.Session.CookieName,
			CookieSecure: cfg.Session.CookieSecure,
			TTL:          cfg.Session.TTL(),
			MinAccess:    cfg.Auth.MinAccessRole,
			MinAdmin:     cfg.Auth.MinAdminRole,
			LoginURL:     cfg.Auth.LoginURL,
		},
		Logger: logger,
	})
	passphrase, err := auth.NewMentorPassphrase(cfg.Auth.MentorPass, cfg.Auth.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash mentor passphrase: %w", err)
	}
	discord := auth.NewDiscordLinker(auth.DiscordConfig{
		ClientID:     cfg.Discord.ClientID,
		ClientSecret: cfg.Discord.ClientSecret,
		RedirectURL:  cfg.App.BackendURL + "/auth/discord/callback",
	})

	renderer := markdown.NewService()
	dispatcher := events.NewInMemoryDispatcher(logger)
	notifier := notify.NewService(notify.ServiceDependencies{
		Channels: []notify.Channel{
			notify.NewGotifyChannel(cfg.Notification.GotifyURL, cfg.Notification.GotifyToken, 0),
			notify.NewEmailChannel(notify.EmailConfig{
				Host:     cfg.Notification.SMTPHost,
				Port:     cfg.Notification.SMTPPort,
				Username: cfg.Notification.SMTPUsername,
				Password: cfg.Notification.SMTPPassword,
				From:     cfg.Notification.EmailFrom,
				To:       cfg.Notification.EmailTo,
			}, renderer),
		},
		Logger: logger,
	})
	notificationWorker := worker.StartNotificationWorker(notifier, dispatcher, logger)

	dir := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Timeout(), logger)
	metrics := observability.NewMetrics()

	queueService := service.NewQueueService(service.QueueDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		Directory:   dir,
		Markdown:    renderer,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		TicketRepo:  repos.tickets,
		UserRepo:    repos.users,
		HistoryRepo: repos.history,
		Directory:   dir,
		Metrics:     metrics,
		Logger:      logger,
	})
	accountService := service.NewAccountService(service.AccountDependencies{
		UserRepo:   repos.users,
		Passphrase: passphrase,
		Discord:    discord,
		Logger:     logger,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		AllowOrigin: cfg.App.FrontendURL,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.HealthCheck{Name: "store", Pinger: repos.store},
			handlers.HealthCheck{Name: "sessions", Pinger: sessions},
		),
		Queue: handlers.NewQueueHandler(queueService),
		Admin: handlers.NewAdminHandler(adminService),
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerDependencies{
			Middleware: authMiddleware,
			Identity:   identity,
			Sessions:   sessions,
			Accounts:   accountService,
			URLs: handlers.AuthURLs{
				FrontendURL: cfg.App.FrontendURL,
				BackendURL:  cfg.App.BackendURL,
				LoginURL:    cfg.Auth.LoginURL,
			},
			Logger: logger,
		}),
		AuthMiddleware: authMiddleware,
		MinAdmin:       cfg.Auth.MinAdminRole,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("env", cfg.App.Env))
		listenErr <- app.Listen(cfg.App.Addr())
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
	case sig := <-shutdownSignal():
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notificationWorker.Shutdown(shutdownCtx)
	return nil
}

// newRepositories picks Postgres when a pool is available and the in-memory
// store otherwise.
func newRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if pool := pg.PoolHandle(); pool != nil {
		return repositories{
			tickets: repository.NewTicketRepository(pool),
			users:   repository.NewUserRepository(pool),
			history: repository.NewTicketHistoryRepository(pool),
			store:   pg,
		}
	}
	logger.Warn("using in-memory queue store; data is lost on restart")
	st := memory.NewStore()
	return repositories{
		tickets: st.Tickets(),
		users:   st.Users(),
		history: st.History(),
		store:   st,
	}
}

func shutdownSignal() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	return sigCh
}
