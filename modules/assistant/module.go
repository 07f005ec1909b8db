package assistant

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/cache"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/persistence"
	"github.com/flotatrack/fleet-assistant/modules/assistant/nlp"
	"github.com/flotatrack/fleet-assistant/modules/assistant/planner"
	"github.com/flotatrack/fleet-assistant/modules/assistant/presentation/controllers"
	"github.com/flotatrack/fleet-assistant/modules/assistant/services"
	"github.com/flotatrack/fleet-assistant/pkg/application"
	"github.com/flotatrack/fleet-assistant/pkg/configuration"
)

//go:embed presentation/locales/*.json
var LocaleFiles embed.FS

type ModuleOptions struct {
	Assistant configuration.AssistantOptions
	RateLimit configuration.RateLimitOptions
	// Executor runs the generated SQL. It is wrapped with the result cache
	// when caching is enabled.
	Executor executor.Executor
	// Redis is required when the memory or cache backend is redis.
	Redis redis.UniversalClient
	Clock clockwork.Clock

	UserIDHeader    string
	CompanyIDHeader string
}

func NewModule(opts *ModuleOptions) *Module {
	return &Module{opts: opts}
}

type Module struct {
	opts *ModuleOptions

	logger    *logrus.Entry
	assistant *services.AssistantService
	repo      conversation.Repository
	store     *persistence.BoltSnapshotStore
	writer    *services.SnapshotWriter
	sweeper   *services.ExpirySweeper
}

func (m *Module) Register(app application.Application) error {
	if m.opts == nil || m.opts.Executor == nil {
		return errors.New("assistant: executor is required")
	}
	conf := m.opts.Assistant
	clock := m.opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	m.logger = app.Logger().WithField("module", m.Name())

	app.RegisterLocaleFiles(&LocaleFiles)

	repo, err := m.conversationRepository()
	if err != nil {
		return err
	}
	m.repo = repo

	var scheduler services.SnapshotScheduler
	if conf.SnapshotEnabled {
		store, err := persistence.NewBoltSnapshotStore(conf.SnapshotPath)
		if err != nil {
			return errors.Wrap(err, "assistant: open snapshot store")
		}
		m.store = store
		m.writer = services.NewSnapshotWriter(services.SnapshotWriterConfig{
			Store:   store,
			Repo:    repo,
			Logger:  m.logger.WithField("component", "snapshot-writer"),
			Timeout: 5 * time.Second,
		})
		scheduler = m.writer
	}

	memoryService := services.NewMemoryService(services.MemoryServiceConfig{
		Repo:      repo,
		Snapshots: scheduler,
		Clock:     clock,
		Logger:    m.logger.WithField("component", "memory"),
	})
	m.sweeper = services.NewExpirySweeper(services.ExpirySweeperConfig{
		Repo:      repo,
		Snapshots: scheduler,
		Clock:     clock,
		Interval:  conf.SweepInterval,
		MaxAge:    conf.MaxAge,
		Logger:    m.logger.WithField("component", "expiry-sweeper"),
	})

	analyzer, err := m.analyzer(clock)
	if err != nil {
		return err
	}
	pl, err := planner.New(planner.Options{
		DefaultLimit:     conf.DefaultLimit,
		MaxLimit:         conf.MaxResultLimit,
		AlertWindowDays:  conf.AlertWindowDays,
		ExpiryWindowDays: conf.ExpiryWindowDays,
		LookbackDays:     planner.DefaultOptions().LookbackDays,
	}, planner.WithLogger(m.logger.WithField("component", "planner")))
	if err != nil {
		return err
	}

	exec, err := m.executor(clock)
	if err != nil {
		return err
	}

	var lim *limiter.Limiter
	if m.opts.RateLimit.Enabled {
		lim = limiter.New(memory.NewStore(), limiter.Rate{
			Period: m.opts.RateLimit.Period,
			Limit:  m.opts.RateLimit.PerUser,
		})
	}

	m.assistant = services.NewAssistantService(services.AssistantServiceConfig{
		Analyzer:  analyzer,
		Planner:   pl,
		Executor:  exec,
		Memory:    memoryService,
		Responder: services.NewResponder(app.Bundle(), m.logger),
		EventBus:  app.EventPublisher(),
		Limiter:   lim,
		Clock:     clock,
		Logger:    m.logger,
	})
	m.subscribe(app)

	app.RegisterServices(m.assistant)
	app.RegisterControllers(
		controllers.NewAssistantAPIController(app, controllers.ControllerOptions{
			UserIDHeader:    m.opts.UserIDHeader,
			CompanyIDHeader: m.opts.CompanyIDHeader,
		}),
	)
	return nil
}

func (m *Module) Name() string {
	return "assistant"
}

// Service is available after Register.
func (m *Module) Service() *services.AssistantService {
	return m.assistant
}

// Start restores the snapshot and launches the background tasks.
func (m *Module) Start(ctx context.Context) error {
	if m.assistant == nil {
		return errors.New("assistant: module not registered")
	}
	if m.store != nil {
		n, err := m.assistant.Memory().Restore(ctx, m.store, m.opts.Assistant.MaxAge)
		if err != nil {
			return errors.Wrap(err, "assistant: restore snapshot")
		}
		m.logger.WithField("records", n).Info("conversation memory restored")
		m.writer.Start()
	}
	m.sweeper.Start(ctx)
	return nil
}

// Stop halts the sweeper, flushes pending snapshot writes and closes the store.
func (m *Module) Stop() error {
	if m.sweeper != nil {
		m.sweeper.Stop()
	}
	if m.writer != nil {
		m.writer.Stop()
	}
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func (m *Module) conversationRepository() (conversation.Repository, error) {
	switch m.opts.Assistant.MemoryBackend {
	case "redis":
		if m.opts.Redis == nil {
			return nil, errors.New("assistant: redis memory backend needs a redis client")
		}
		return persistence.NewRedisConversationRepository(m.opts.Redis, persistence.DefaultRedisHash), nil
	case "", "memory":
		return persistence.NewInmemConversationRepository(), nil
	default:
		return nil, fmt.Errorf("assistant: unknown memory backend %q", m.opts.Assistant.MemoryBackend)
	}
}

func (m *Module) analyzer(clock clockwork.Clock) (*nlp.Analyzer, error) {
	opts := []nlp.AnalyzerOption{
		nlp.WithClock(clock),
		nlp.WithLogger(m.logger.WithField("component", "nlp")),
	}
	conf := m.opts.Assistant
	if conf.CorpusPath == "" {
		return nlp.NewDefaultAnalyzer(conf.MinBayesProbability, opts...)
	}
	corpus, err := nlp.LoadCorpusFile(conf.CorpusPath)
	if err != nil {
		return nil, errors.Wrap(err, "assistant: load corpus")
	}
	bayes, err := nlp.TrainBayes(corpus)
	if err != nil {
		return nil, errors.Wrap(err, "assistant: train classifier")
	}
	return nlp.NewAnalyzer(nlp.NewClassifier(bayes, conf.MinBayesProbability), opts...), nil
}

func (m *Module) executor(clock clockwork.Clock) (executor.Executor, error) {
	conf := m.opts.Assistant
	if !conf.CacheEnabled {
		return m.opts.Executor, nil
	}
	var c cache.Cache
	switch conf.CacheBackend {
	case "redis":
		if m.opts.Redis == nil {
			return nil, errors.New("assistant: redis cache backend needs a redis client")
		}
		c = cache.NewRedisCache(m.opts.Redis, conf.CachePrefix, conf.CacheTTL)
	default:
		c = cache.NewInmemCache(conf.CacheTTL, clock)
	}
	return executor.NewCachedExecutor(m.opts.Executor, c, m.logger.WithField("component", "result-cache")), nil
}

func (m *Module) subscribe(app application.Application) {
	bus := app.EventPublisher()
	if bus == nil {
		return
	}
	bus.Subscribe(func(e *services.TurnProcessedEvent) {
		m.logger.WithFields(logrus.Fields{
			"key":        e.Key.String(),
			"intent":     e.Intent.String(),
			"confidence": e.Confidence,
			"success":    e.Success,
			"table":      e.Table,
			"rows":       e.ResultCount,
			"elapsed_ms": e.ProcessingTime.Milliseconds(),
		}).Info("assistant turn processed")
	})
	bus.Subscribe(func(e *services.MemoryForgottenEvent) {
		m.logger.WithField("key", e.Key.String()).Info("conversation forgotten")
	})
}
