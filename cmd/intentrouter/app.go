package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ShayCichocki/intentrouter/internal/api"
	"github.com/ShayCichocki/intentrouter/internal/cache"
	"github.com/ShayCichocki/intentrouter/internal/config"
	"github.com/ShayCichocki/intentrouter/internal/logging"
	"github.com/ShayCichocki/intentrouter/internal/registry"
	"github.com/ShayCichocki/intentrouter/internal/state"
	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// shutdownTimeout bounds the final cache flush.
const shutdownTimeout = 5 * time.Second

// app holds the resources a command opened. Close releases all of them.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	root   string

	closeLog func()
	db       *state.DB
	cacheDB  *state.DB
	redis    *redis.Client
	cache    *cache.IntentCache
}

// loadConfig honours --config and --log-level.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfigPath != "" {
		cfg, err = config.LoadFromPath(flagConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

func newApp(console bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("get working directory: %w", err)
	}

	logger, closeLog, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: console,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	return &app{cfg: cfg, logger: logger, root: root, closeLog: closeLog}, nil
}

// stateDB opens and migrates the project database.
func (a *app) stateDB() (*state.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := state.OpenProject(a.root)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	a.db = db
	return db, nil
}

// cacheStore returns the store for the configured backend.
func (a *app) cacheStore(ctx context.Context) (cache.Store, error) {
	switch a.cfg.Cache.Backend {
	case config.BackendMemory:
		return nil, nil
	case config.BackendRedis:
		a.redis = redis.NewClient(&redis.Options{Addr: a.cfg.Cache.RedisAddr})
		store := cache.NewRedisStore(a.redis, a.cfg.Cache.RedisKey)
		if err := store.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", a.cfg.Cache.RedisAddr, err)
		}
		return store, nil
	default:
		if a.cfg.Cache.Path == "" {
			db, err := a.stateDB()
			if err != nil {
				return nil, err
			}
			return db.CacheStore(), nil
		}
		db, err := state.Open(a.cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate cache database: %w", err)
		}
		a.cacheDB = db
		return db.CacheStore(), nil
	}
}

// openCache opens the cache on the configured store, or returns nil when
// caching is disabled. The cache commands use it; they need the store.
func (a *app) openCache(ctx context.Context) (*cache.IntentCache, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	store, err := a.cacheStore(ctx)
	if err != nil {
		return nil, err
	}
	return a.startCache(ctx, store), nil
}

// intentCache is openCache for routing: an unreachable store leaves an
// in-memory cache instead of failing the request.
func (a *app) intentCache(ctx context.Context) *cache.IntentCache {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	store, err := a.cacheStore(ctx)
	if err != nil {
		a.logger.Warn("cache store unavailable, caching in memory only",
			zap.String("backend", a.cfg.Cache.Backend),
			zap.Error(err),
		)
		store = nil
	}
	return a.startCache(ctx, store)
}

func (a *app) startCache(ctx context.Context, store cache.Store) *cache.IntentCache {
	c := cache.New(cache.Options{
		Capacity: a.cfg.Cache.Capacity,
		TTL:      a.cfg.Cache.TTL,
		Store:    store,
		Logger:   a.logger.Named("cache"),
	})
	c.Open(ctx)
	a.cache = c
	return c
}

// fileCatalog loads builtin, user and project catalogs. Load errors are
// logged; the entries that did load are still used.
func (a *app) fileCatalog() *registry.FileCatalog {
	cat := registry.NewFileCatalog([]registry.Dir{
		{Path: a.cfg.Catalog.UserDir, Source: models.SourceUser},
		{Path: a.cfg.Catalog.ProjectDir, Source: models.SourceProject},
	}, registry.BuiltinEntries(), a.logger.Named("catalog"))
	if err := cat.Reload(); err != nil {
		a.logger.Warn("catalog loaded with errors", zap.Error(err))
	}
	return cat
}

// modelClient builds the Anthropic client, or returns nil when no
// credentials are configured.
func (a *app) modelClient() (*api.Client, error) {
	if !config.HasModelBackend(a.cfg) {
		return nil, nil
	}
	key, _ := config.GetAPIKey(a.cfg)
	return api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(a.cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: a.cfg.Anthropic.UseBedrock,
		AWSRegion:     a.cfg.Anthropic.AWSRegion,
		AWSProfile:    a.cfg.Anthropic.AWSProfile,
	})
}

// Close flushes the cache and releases every opened resource.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.cache != nil {
		if err := a.cache.Close(ctx); err != nil {
			a.logger.Warn("cache flush on shutdown failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.cacheDB != nil {
		a.cacheDB.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	a.closeLog()
}
