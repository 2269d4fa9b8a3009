package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/insurance-doc-router/internal/config"
	"github.com/kirillkom/insurance-doc-router/internal/core/classification"
	"github.com/kirillkom/insurance-doc-router/internal/core/ports"
	"github.com/kirillkom/insurance-doc-router/internal/core/routing"
	"github.com/kirillkom/insurance-doc-router/internal/core/usecase"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/extractor"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/queue/nats"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/resilience"
	"github.com/kirillkom/insurance-doc-router/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/insurance-doc-router/internal/observability/metrics"
)

type Options struct {
	Service string
	// Registerer receives the classification metrics; nil disables them.
	Registerer prometheus.Registerer
}

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.DocumentRepository
	Audit      ports.AuditStore
	IngestUC   ports.DocumentIngestor
	ProcessUC  ports.DocumentProcessor
	ClassifyUC ports.ClassificationRouter

	db      *sql.DB
	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	records := postgres.NewRecordRepository(db)
	audits := postgres.NewAuditRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	var observer ports.ClassificationObserver
	var onBreakerChange func(operation, from, to string)
	if opts.Registerer != nil {
		m := metrics.NewClassificationMetrics(opts.Service, opts.Registerer)
		observer = m
		onBreakerChange = m.ObserveBreakerState
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(natsPolicy(cfg, onBreakerChange)),
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	filenames, err := classification.NewDefaultFilenameClassifier()
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load filename rules: %w", err)
	}
	registry, err := routing.NewRegistry(routing.DefaultCreators(records)...)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("build routing registry: %w", err)
	}

	var vision ports.VisionClassifier
	if cfg.VisionEnabled {
		client := ollama.New(cfg.OllamaURL, cfg.OllamaVisionModel,
			ollama.WithExecutor(resilience.NewExecutor(visionPolicy(cfg, onBreakerChange))),
		)
		vision = ollama.NewVisionClassifier(client)
	}

	classifyUC := usecase.NewClassifyAndRouteUseCase(
		filenames,
		vision,
		classification.NewDefaultOverrideEngine(),
		routing.NewDispatcher(registry),
		usecase.NewAuditLog(audits, observer),
		observer,
		usecase.ClassifyAndRouteOptions{
			VisionTimeout:    cfg.VisionTimeout(),
			StrictInvariants: cfg.StrictInvariants,
		},
	)
	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extractor.New(storage), classifyUC)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,
		Audit:  audits,

		IngestUC:   ingestUC,
		ProcessUC:  processUC,
		ClassifyUC: classifyUC,

		db: db,
		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

// Ping checks the database; used by /healthz.
func (a *App) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// visionPolicy trips the breaker on a failing model but never retries: the
// use case already bounds the call with its own timeout and fallback.
func visionPolicy(cfg config.Config, onChange func(operation, from, to string)) resilience.Config {
	policy := resilience.DefaultConfig().BreakerOnly()
	policy.BreakerMinRequests = uint32(max(cfg.VisionBreakerMinRequests, 1))
	policy.BreakerFailureRatio = cfg.VisionBreakerFailureRatio
	policy.BreakerOpenTimeout = time.Duration(cfg.VisionBreakerOpenSeconds) * time.Second
	policy.OnStateChange = onChange
	return policy
}

func natsPolicy(cfg config.Config, onChange func(operation, from, to string)) resilience.Config {
	policy := resilience.DefaultConfig()
	policy.RetryMaxAttempts = cfg.NATSRetryMaxAttempts
	policy.RetryInitialBackoff = time.Duration(cfg.NATSRetryInitialBackoffMS) * time.Millisecond
	policy.OnStateChange = onChange
	return policy
}
