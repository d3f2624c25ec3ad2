package routes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/donustur/donustur/internal/auth"
	"github.com/donustur/donustur/internal/bins"
	"github.com/donustur/donustur/internal/causes"
	"github.com/donustur/donustur/internal/config"
	"github.com/donustur/donustur/internal/identity"
	"github.com/donustur/donustur/internal/ledger"
	"github.com/donustur/donustur/internal/mailer"
	"github.com/donustur/donustur/internal/middleware"
	"github.com/donustur/donustur/internal/notification"
	"github.com/donustur/donustur/internal/rewards"
	"github.com/donustur/donustur/internal/storage"
	"github.com/donustur/donustur/internal/useradmin"
)

const (
	mailWorkers   = 2
	mailQueueSize = 128
	qrSize        = 512
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Cleanup releases background resources started by Setup.
type Cleanup func(ctx context.Context) error

type handlers struct {
	auth    *auth.Handler
	tokens  *auth.Service
	bins    *bins.Handler
	causes  *causes.Handler
	rewards *rewards.Handler
	users   *useradmin.Handler
	files   *storage.Handler
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Cleanup, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	h, dispatcher, err := build(context.Background(), d)
	if err != nil {
		return nil, err
	}

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterAuthRoutes(api, h.auth, d.Cache, d.Cfg.LoginRateLimit)
	api.Get("/causes", h.causes.List)
	api.Get("/files/*", h.files.Serve)

	// Protected routes
	protected := api.Group("", middleware.JWTAuth(h.tokens))
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	RegisterMeRoutes(protected, h.users, h.rewards)
	RegisterRewardRoutes(protected, h.rewards, idempotent)
	RegisterCatalogRoutes(protected, h.bins, h.causes)

	admin := protected.Group("/admin", middleware.RequireGroup(identity.GroupAdmin))
	RegisterAdminRoutes(admin, h)

	return dispatcher.Close, nil
}

// build assembles repositories and services, choosing Postgres and Redis
// backends when they are configured and in-memory ones otherwise.
func build(ctx context.Context, d Deps) (handlers, *mailer.Dispatcher, error) {
	cfg := d.Cfg

	var (
		ledgerBackend ledger.Ledger
		userRepo      identity.Repository
		binRepo       bins.Repository
		causeRepo     causes.Repository
		codes         identity.CodeStore
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		userRepo = identity.NewPostgresRepository(d.DB)
		binRepo = bins.NewPostgresRepository(d.DB)
		causeRepo = causes.NewPostgresRepository(d.DB)
	} else {
		d.Logger.Warn("DATABASE_URL not set, using in-memory stores")
		ledgerBackend = ledger.NewInMemory()
		userRepo = identity.NewMemoryRepository()
		binRepo = bins.NewMemoryRepository()
		causeRepo = causes.NewMemoryRepository()
	}
	if d.Cache != nil {
		codes = identity.NewRedisCodeStore(d.Cache)
	} else {
		codes = identity.NewMemoryCodeStore()
	}

	store, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		return handlers{}, nil, err
	}
	signer := storage.NewSigner(cfg.PublicBaseURL+"/api/v1/files", []byte(cfg.StorageSigningKey))

	dispatcher, mail, err := buildMailer(ctx, cfg, store, d.Logger)
	if err != nil {
		return handlers{}, nil, err
	}

	identitySvc := identity.NewService(userRepo, codes, mail, d.Logger, cfg.ConfirmationCodeTTL)
	identitySvc.OnConfirmed(func(ctx context.Context, user identity.User) error {
		return ledgerBackend.EnsureAccount(ctx, user.ID)
	})
	authSvc := auth.NewService(cfg, userRepo)

	binSvc := bins.NewService(binRepo)
	causeSvc := causes.NewService(causeRepo, store, d.Logger)
	qr := bins.NewQRGenerator(cfg.PublicBaseURL, qrSize)
	rewardSvc := rewards.NewService(
		ledgerBackend,
		userRepo,
		binSvc,
		causeSvc,
		rewards.NewCooldown(d.Cache, cfg.ScanCooldown),
		notification.NewLoggerNotifier(d.Logger),
		d.Logger,
	)

	return handlers{
		auth:    auth.NewHandler(identitySvc, authSvc),
		tokens:  authSvc,
		bins:    bins.NewHandler(binSvc, qr),
		causes:  causes.NewHandler(causeSvc, signer, cfg.SignedURLTTL),
		rewards: rewards.NewHandler(rewardSvc),
		users:   useradmin.NewHandler(useradmin.NewService(userRepo, rewardSvc), qr),
		files:   storage.NewHandler(store, signer),
	}, dispatcher, nil
}

func buildMailer(ctx context.Context, cfg config.Config, store storage.Store, log *slog.Logger) (*mailer.Dispatcher, *mailer.Mailer, error) {
	catalog, err := mailer.LoadCatalog(cfg.MailTemplatesFile)
	if err != nil {
		return nil, nil, err
	}
	installed, err := mailer.InstallDefaultTemplates(ctx, store, catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("install email templates: %w", err)
	}
	if len(installed) > 0 {
		log.Info("installed default email templates", slog.Any("keys", installed))
	}

	var sender mailer.Sender = mailer.NewLogSender(log)
	if cfg.SMTPAddr != "" {
		smtpSender, err := mailer.NewSMTPSender(cfg.SMTPAddr, cfg.MailFrom, cfg.SMTPUsername, cfg.SMTPPassword)
		if err != nil {
			return nil, nil, err
		}
		sender = smtpSender
	} else if !cfg.IsDev() {
		return nil, nil, errors.New("SMTP_ADDR must be set outside development")
	}

	dispatcher := mailer.NewDispatcher(sender, log, mailWorkers, mailQueueSize)
	renderer := mailer.NewRenderer(store, catalog, log)
	return dispatcher, mailer.New(renderer, dispatcher), nil
}
