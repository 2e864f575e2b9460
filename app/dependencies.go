package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/postgres"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/catalog"
	"github.com/upb/llm-router/services/classification"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/providers/ollama"
	"github.com/upb/llm-router/services/providers/openai"
	"github.com/upb/llm-router/services/ratelimit"
	"github.com/upb/llm-router/services/routing"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	auditStopTimeout       = 5 * time.Second
	rateLimitSweepInterval = time.Minute
)

// Dependencies holds everything the HTTP layer needs. It is the single
// wiring point of the service.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Database is nil unless the catalog is stored in Postgres
	RepoFactory *postgres.RepositoryFactory
	DB          *postgres.DB
	Models      repositories.ModelRepository

	// Routing
	Catalog   *catalog.Catalog
	Cache     *classification.Cache
	FastModel providers.Generator
	Registry  *routing.Registry
	Routing   *routing.Service

	// Decision recording
	Aggregator *audit.Aggregator
	Audit      *audit.AuditService

	// HTTP concerns
	RateLimiter    *ratelimit.RateLimitService
	JWTValidator   *middleware.JWTValidator
	AuthMiddleware *middleware.AuthMiddleware

	stop   chan struct{}
	cancel context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
		stop:   make(chan struct{}),
	}

	if cfg.UsesDatabase() {
		if err := deps.initDatabase(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := deps.initCatalog(ctx, cfg); err != nil {
		deps.abort()
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	if err := deps.initAudit(cfg); err != nil {
		deps.abort()
		return nil, fmt.Errorf("failed to initialize decision recorder: %w", err)
	}

	if err := deps.initRouting(cfg); err != nil {
		deps.abort()
		return nil, fmt.Errorf("failed to initialize routing: %w", err)
	}

	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.Int("models", deps.Catalog.Len()),
		zap.Int("engines", len(deps.Registry.List())))
	return deps, nil
}

// initDatabase connects to Postgres and prepares the catalog schema
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	factory, err := postgres.NewRepositoryFactory(ctx, cfg.Database, d.Logger)
	if err != nil {
		return err
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.Models = factory.NewRepositories().Models
	return nil
}

// initCatalog loads the model catalog from the configured source
func (d *Dependencies) initCatalog(ctx context.Context, cfg *config.Config) error {
	var store catalog.Store
	if d.Models != nil {
		store = d.Models
	}

	c, err := catalog.Load(ctx, catalog.Source(cfg.Catalog.Source), cfg.Catalog.File, store, d.Logger)
	if err != nil {
		return services.ErrCatalogUnavailable.With(err).WithDetail("source", cfg.Catalog.Source)
	}
	d.Catalog = c
	return nil
}

// initAudit starts the decision recorder feeding the in-memory aggregator
func (d *Dependencies) initAudit(cfg *config.Config) error {
	auditCfg := audit.DefaultConfig()
	if baseline, ok := d.Catalog.Lookup(cfg.Catalog.BaselineModel); ok {
		auditCfg.Baseline = baseline
	} else {
		d.Logger.Warn("baseline model not in catalog, savings will not be reported",
			zap.String("baseline", cfg.Catalog.BaselineModel))
	}

	d.Aggregator = audit.NewAggregator()
	d.Audit = audit.NewAuditService(d.Aggregator, d.Logger, auditCfg)
	return d.Audit.Start()
}

// initRouting builds the classifiers and registers them by priority.
// The heuristic classifier doubles as the arbitration fallback.
func (d *Dependencies) initRouting(cfg *config.Config) error {
	heuristic := classification.NewHeuristicClassifier(d.Catalog, classification.DefaultHeuristicRoles())
	d.Registry = routing.NewRegistry(heuristic, d.Logger)

	if err := d.Registry.Register(classification.PrivacyName, classification.NewPrivacyClassifier(d.Catalog), cfg.Classifier.PrivacyPriority); err != nil {
		return err
	}

	if cfg.Classifier.TwoStageEnabled {
		generator, err := NewGenerator(cfg.FastModel)
		if err != nil {
			return err
		}
		d.FastModel = generator

		if cfg.Classifier.CacheEnabled {
			d.Cache = classification.NewCache(cfg.Classifier.CacheSize, cfg.Classifier.CacheTTL)
			if cfg.Classifier.CacheCleanup > 0 {
				go d.Cache.StartCleanupWorker(cfg.Classifier.CacheCleanup, d.stop)
			}
		}

		opts := classification.TwoStageOptions{
			FastModel:    cfg.FastModel.Model,
			Timeout:      cfg.FastModel.Timeout,
			CacheEnabled: cfg.Classifier.CacheEnabled,
			PrefixLength: cfg.Classifier.PrefixLength,
		}
		if cfg.FastModel.RateLimit > 0 {
			opts.Limiter = rate.NewLimiter(rate.Limit(cfg.FastModel.RateLimit), max(cfg.FastModel.Burst, 1))
		}

		factory := func() (routing.Classifier, error) {
			return classification.NewTwoStageClassifier(d.Catalog, generator, d.Cache, opts, d.Logger), nil
		}
		if err := d.Registry.RegisterFactory(classification.TwoStageName, factory, cfg.Classifier.TwoStagePriority); err != nil {
			return err
		}
	}

	if err := d.Registry.Register(classification.HeuristicName, heuristic, cfg.Classifier.HeuristicPriority); err != nil {
		return err
	}

	d.Routing = routing.NewService(d.Registry, d.Audit, d.Logger)
	return nil
}

// initHTTP prepares rate limiting and bearer token validation
func (d *Dependencies) initHTTP(cfg *config.Config) {
	if cfg.RateLimit.Enabled {
		d.RateLimiter = ratelimit.NewRateLimitService(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}, d.Logger)

		ctx, cancel := context.WithCancel(context.Background())
		d.cancel = cancel
		go d.RateLimiter.StartCleanupWorker(ctx, rateLimitSweepInterval)
	}

	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("JWT_SECRET not set, engine administration is disabled")
		d.AuthMiddleware = middleware.NewAuthMiddleware(rejectAllValidator{}, d.Logger)
		return
	}
	d.JWTValidator = middleware.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.JWTValidator, d.Logger)
}

// NewGenerator builds the fast model client for the configured backend
func NewGenerator(cfg config.FastModelConfig) (providers.Generator, error) {
	pc := providers.DefaultProviderConfig()
	pc.BaseURL = cfg.URL
	pc.APIKey = cfg.APIKey
	pc.Timeout = cfg.Timeout

	switch cfg.Backend {
	case config.BackendOllama:
		return ollama.NewOllamaAdapter(pc), nil
	case config.BackendOpenAI:
		return openai.NewOpenAIAdapter(pc), nil
	default:
		return nil, fmt.Errorf("unknown fast model backend %q", cfg.Backend)
	}
}

// rejectAllValidator rejects every token. It guards the admin routes
// when no signing secret is configured.
type rejectAllValidator struct{}

func (rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, errors.New("authentication not configured")
}

// Close stops background workers, drains the recorder and closes the database
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	d.stopWorkers()

	var errs []error

	timeout := auditStopTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil && !errors.Is(err, audit.ErrNotStarted) {
			errs = append(errs, fmt.Errorf("failed to stop decision recorder: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}

// abort releases whatever a failed NewDependencies had already started
func (d *Dependencies) abort() {
	d.stopWorkers()
	d.shutdownAudit()
	d.closeDatabase()
}

// stopWorkers signals the background cleanup workers. Safe to call twice.
func (d *Dependencies) stopWorkers() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dependencies) shutdownAudit() {
	if d.Audit != nil {
		_ = d.Audit.Stop(auditStopTimeout)
	}
}

func (d *Dependencies) closeDatabase() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
	}
}
