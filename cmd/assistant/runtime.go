package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/flotatrack/fleet-assistant/modules/assistant"
	"github.com/flotatrack/fleet-assistant/modules/assistant/domain/entities/conversation"
	"github.com/flotatrack/fleet-assistant/modules/assistant/infrastructure/executor"
	"github.com/flotatrack/fleet-assistant/pkg/application"
	"github.com/flotatrack/fleet-assistant/pkg/configuration"
	"github.com/flotatrack/fleet-assistant/pkg/eventbus"
)

const (
	driverPgx  = "pgx"
	driverSQLX = "sqlx"
)

var errNoDatabase = errors.New("no database connection in this command")

// offlineExecutor backs commands that never run SQL.
type offlineExecutor struct{}

func (offlineExecutor) Query(context.Context, string, []any) ([]executor.Row, error) {
	return nil, errNoDatabase
}

type runtime struct {
	conf    *configuration.Configuration
	app     application.Application
	module  *assistant.Module
	closers []func()
}

// newRuntime loads the configuration and registers the assistant module.
// withDB opens the configured database driver; without it SQL execution fails.
func newRuntime(ctx context.Context, opts *rootOptions, withDB bool) (*runtime, error) {
	conf, err := configuration.Load(opts.envFiles...)
	if err != nil {
		return nil, err
	}
	rt := &runtime{conf: conf}
	rt.closers = append(rt.closers, conf.Unload)

	var exec executor.Executor = offlineExecutor{}
	if withDB {
		exec, err = rt.openExecutor(ctx, opts.driver)
		if err != nil {
			rt.Close()
			return nil, err
		}
	}

	var client redis.UniversalClient
	if needsRedis(conf.Assistant) {
		redisOpts, err := redisOptions(conf.RedisURL)
		if err != nil {
			rt.Close()
			return nil, err
		}
		c := redis.NewClient(redisOpts)
		rt.closers = append(rt.closers, func() { _ = c.Close() })
		client = c
	}

	logger := conf.Logger()
	rt.app = application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logger.WithField("component", "eventbus")),
		Logger:   logger,
	})
	rt.module = assistant.NewModule(&assistant.ModuleOptions{
		Assistant:       conf.Assistant,
		RateLimit:       conf.RateLimit,
		Executor:        exec,
		Redis:           client,
		UserIDHeader:    conf.UserIDHeader,
		CompanyIDHeader: conf.CompanyIDHeader,
	})
	if err := rt.module.Register(rt.app); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.module.Start(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() {
		if err := rt.module.Stop(); err != nil {
			logger.WithError(err).Warn("assistant module stop failed")
		}
	})
	return rt, nil
}

func (rt *runtime) openExecutor(ctx context.Context, driver string) (executor.Executor, error) {
	timeout := rt.conf.Assistant.QueryTimeout
	switch driver {
	case driverPgx, "":
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := pgxpool.New(cctx, rt.conf.Database.Opts)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		if err := pool.Ping(cctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db ping failed: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		return executor.NewPgxExecutor(pool, timeout), nil
	case driverSQLX:
		db, err := executor.OpenPostgres(rt.conf.Database.Opts)
		if err != nil {
			return nil, fmt.Errorf("db connect failed: %w", err)
		}
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		return executor.NewSQLExecutor(db, timeout), nil
	default:
		return nil, fmt.Errorf("unknown --driver %q (expected %s|%s)", driver, driverPgx, driverSQLX)
	}
}

// Close runs the closers in reverse order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

func needsRedis(conf configuration.AssistantOptions) bool {
	return conf.MemoryBackend == "redis" || (conf.CacheEnabled && conf.CacheBackend == "redis")
}

// redisOptions accepts both redis:// URLs and bare host:port addresses.
func redisOptions(raw string) (*redis.Options, error) {
	if raw == "" {
		return nil, errors.New("REDIS_URL is empty")
	}
	if opts, err := redis.ParseURL(raw); err == nil {
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}

func identityFlags(userID, companyID int64) (conversation.Key, error) {
	key := conversation.Key{UserID: userID, CompanyID: companyID}
	if !key.Valid() {
		return key, errors.New("--user and --company must be positive")
	}
	return key, nil
}
