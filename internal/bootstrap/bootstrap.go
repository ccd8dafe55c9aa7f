package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	httpadapter "github.com/eatwise/labelscan/internal/adapters/http"
	"github.com/eatwise/labelscan/internal/config"
	"github.com/eatwise/labelscan/internal/core/ports"
	"github.com/eatwise/labelscan/internal/core/usecase"
	"github.com/eatwise/labelscan/internal/infrastructure/auth/jwtauth"
	"github.com/eatwise/labelscan/internal/infrastructure/billing/stripe"
	"github.com/eatwise/labelscan/internal/infrastructure/export/xlsx"
	"github.com/eatwise/labelscan/internal/infrastructure/llm/gemini"
	"github.com/eatwise/labelscan/internal/infrastructure/lock/memlock"
	"github.com/eatwise/labelscan/internal/infrastructure/lock/redislock"
	"github.com/eatwise/labelscan/internal/infrastructure/queue/nats"
	"github.com/eatwise/labelscan/internal/infrastructure/repository/postgres"
	"github.com/eatwise/labelscan/internal/infrastructure/resilience"
	"github.com/eatwise/labelscan/internal/infrastructure/storage/localfs"
	"github.com/eatwise/labelscan/internal/infrastructure/storage/s3store"
	"github.com/eatwise/labelscan/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Services httpadapter.Services
	Metrics  *metrics.HTTPServerMetrics

	closeFn func()
}

// New wires the API process. Optional collaborators (model, payments,
// token verification, events) are left out when unconfigured and the routes
// that need them answer 503 or 401.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	closers := make([]func(), 0, 4)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, error) {
		closeAll()
		return nil, err
	}

	policy, err := cfg.QuotaPolicy()
	if err != nil {
		return nil, fmt.Errorf("load quota policy: %w", err)
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	closers = append(closers, func() { _ = db.Close() })
	users := postgres.NewUserRepository(db)
	reports := postgres.NewReportRepository(db)

	httpMetrics := metrics.NewHTTPServerMetrics("api")

	storage, images, err := openStorage(cfg)
	if err != nil {
		return fail(err)
	}

	locker, closeLocker, err := openLocker(cfg)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, closeLocker)

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		queue, err := openQueue(cfg, httpMetrics)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, queue.Close)
		events = queue
	}

	quotaUC := usecase.NewQuotaUseCase(users, policy)
	services := httpadapter.Services{
		Quota:    quotaUC,
		Profiles: usecase.NewProfileUseCase(users),
		Reports:  usecase.NewReportsUseCase(users, reports, storage, events, xlsx.New(), policy),
		Metrics:  httpMetrics,
	}
	if images != nil {
		services.Images = images
	}

	if cfg.GeminiAPIKey != "" {
		modelCfg := resilience.ModelConfig()
		modelCfg.RetryMaxAttempts = cfg.LLMRetryMaxAttempts
		modelCfg.BreakerEnabled = cfg.LLMBreakerEnabled
		modelCfg.OnStateChange = httpMetrics.ObserveCircuitState
		modelCfg.OnRetry = httpMetrics.ObserveRetry

		reader, err := gemini.New(ctx, gemini.Options{
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			BaseURL:  cfg.GeminiBaseURL,
			Timeout:  time.Duration(cfg.ModelTimeoutSeconds) * time.Second,
			Executor: resilience.NewExecutor(modelCfg),
		})
		if err != nil {
			return fail(fmt.Errorf("init label model: %w", err))
		}
		services.Analyzer = usecase.NewAnalyzeLabelUseCase(
			quotaUC, users, reports, reader, storage, locker, httpMetrics, cfg.AnalyzeLimits(),
		)
		services.ModelState = reader.CircuitState
	} else {
		slog.Warn("label_model_disabled", "reason", "GOOGLE_API_KEY is not set")
	}

	var gateway ports.PaymentGateway
	if cfg.StripeKey != "" {
		g, err := stripe.New(stripe.Config{
			SecretKey:     cfg.StripeKey,
			WebhookSecret: cfg.StripeWebhookSecret,
			PriceID:       cfg.StripePriceID,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		})
		if err != nil {
			return fail(fmt.Errorf("init payments: %w", err))
		}
		gateway = g
	} else {
		slog.Warn("billing_disabled", "reason", "STRIPE_KEY is not set")
	}
	services.Billing = usecase.NewBillingUseCase(users, gateway, httpMetrics)

	if cfg.AuthJWTSecret != "" {
		verifier, err := jwtauth.New(cfg.AuthJWTSecret, cfg.AuthJWTIssuer, cfg.AuthJWTAudience)
		if err != nil {
			return fail(fmt.Errorf("init token verifier: %w", err))
		}
		services.Verifier = verifier
	} else {
		slog.Warn("account_auth_disabled", "reason", "AUTH_JWT_SECRET is not set")
	}

	return &App{
		Config:   cfg,
		Services: services,
		Metrics:  httpMetrics,
		closeFn:  closeAll,
	}, nil
}

type Worker struct {
	Config config.Config

	Queue   ports.EventSubscriber
	Cleaner ports.ImageCleaner
	Metrics *metrics.WorkerMetrics

	closeFn func()
}

// NewWorker wires the image cleanup process. It needs storage and NATS only.
func NewWorker(_ context.Context, cfg config.Config) (*Worker, error) {
	storage, _, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, fmt.Errorf("image storage is not configured")
	}

	queue, err := openQueue(cfg, nil)
	if err != nil {
		return nil, err
	}

	return &Worker{
		Config:  cfg,
		Queue:   queue,
		Cleaner: usecase.NewImageCleanupUseCase(storage),
		Metrics: metrics.NewWorkerMetrics("worker", cfg.StorageBackend),
		closeFn: queue.Close,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func (w *Worker) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

func openDatabase(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// openStorage returns the configured image store and, for the local backend,
// the opener that lets the API serve images itself.
func openStorage(cfg config.Config) (ports.ImageStorage, httpadapter.ImageOpener, error) {
	switch cfg.StorageBackend {
	case "s3":
		store, err := s3store.New(s3store.Config{
			Region:        cfg.AWSRegion,
			Bucket:        cfg.AWSBucketName,
			AccessKey:     cfg.AWSAccessKey,
			SecretKey:     cfg.AWSSecretKey,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return store, nil, nil
	case "local", "":
		store, err := localfs.New(cfg.StoragePath, cfg.ImagePublicBaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("init local storage: %w", err)
		}
		return store, store, nil
	case "none":
		return nil, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func openLocker(cfg config.Config) (ports.AccountLocker, func(), error) {
	if cfg.RedisURL == "" {
		return memlock.New(), func() {}, nil
	}
	locker, client, err := redislock.NewFromURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("init redis lock: %w", err)
	}
	return locker, func() { closeRedis(client) }, nil
}

func closeRedis(client *redis.Client) {
	if err := client.Close(); err != nil {
		slog.Warn("redis_close_failed", "error", err)
	}
}

func openQueue(cfg config.Config, m *metrics.HTTPServerMetrics) (*nats.Queue, error) {
	publishCfg := resilience.DefaultConfig()
	if m != nil {
		publishCfg.OnStateChange = m.ObserveCircuitState
		publishCfg.OnRetry = m.ObserveRetry
	}
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(publishCfg),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	return queue, nil
}
