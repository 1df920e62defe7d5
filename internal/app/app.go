// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/social-harvester/internal/checkpoint"
	"github.com/JakeFAU/social-harvester/internal/checkpoint/memory"
	"github.com/JakeFAU/social-harvester/internal/checkpoint/postgres"
	"github.com/JakeFAU/social-harvester/internal/checkpoint/sqlite"
	"github.com/JakeFAU/social-harvester/internal/config"
	"github.com/JakeFAU/social-harvester/internal/index"
	"github.com/JakeFAU/social-harvester/internal/logging"
	"github.com/JakeFAU/social-harvester/internal/metrics"
	"github.com/JakeFAU/social-harvester/internal/social"
	"github.com/JakeFAU/social-harvester/internal/source/reddit"
	"github.com/JakeFAU/social-harvester/internal/source/twitter"
)

// App holds the shared, long-lived services for the harvester. It is built
// once at startup and passed into the commands that need it.
type App struct {
	cfg         config.Config
	logger      *zap.Logger
	checkpoints checkpoint.Store
	indexer     index.Indexer
	reddit      social.Source
	twitter     social.TimelineSource
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Checkpoints returns the checkpoint store.
func (a *App) Checkpoints() checkpoint.Store { return a.checkpoints }

// Indexer returns the search index adapter.
func (a *App) Indexer() index.Indexer { return a.indexer }

// Reddit returns the reddit content source.
func (a *App) Reddit() social.Source { return a.reddit }

// Twitter returns the twitter timeline source, or nil when no twitter users
// are watched.
func (a *App) Twitter() social.TimelineSource { return a.twitter }

// New creates and initializes an App from configuration. It fails fast when
// any critical service cannot be constructed.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	metrics.Init()

	store, err := newCheckpointStore(ctx, cfg.Checkpoint, logger)
	if err != nil {
		return nil, err
	}

	indexer, err := newIndexer(cfg.Index, logger)
	if err != nil {
		closeErr := store.Close()
		if closeErr != nil {
			logger.Warn("failed to close checkpoint store", zap.Error(closeErr))
		}
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		logger:      logger,
		checkpoints: store,
		indexer:     indexer,
	}
	if len(cfg.Reddit.Users)+len(cfg.Reddit.Communities) > 0 {
		a.reddit = reddit.New(reddit.Config{
			ClientID:     cfg.Reddit.ClientID,
			ClientSecret: cfg.Reddit.ClientSecret,
			UserAgent:    cfg.Reddit.UserAgent,
		}, logger)
	}
	if len(cfg.Twitter.Users) > 0 {
		a.twitter = twitter.New(twitter.Config{
			BearerToken: cfg.Twitter.BearerToken,
		}, logger)
	}

	logger.Info("application services initialized",
		zap.String("checkpoint_provider", cfg.Checkpoint.Provider),
		zap.String("index_provider", cfg.Index.Provider),
	)
	return a, nil
}

func newCheckpointStore(ctx context.Context, cfg config.CheckpointConfig, logger *zap.Logger) (checkpoint.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		logger.Info("using sqlite checkpoint store", zap.String("path", cfg.Path))
		store, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("init sqlite checkpoint store: %w", err)
		}
		return store, nil
	case "postgres":
		logger.Info("using postgres checkpoint store")
		store, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres checkpoint store: %w", err)
		}
		return store, nil
	case "memory":
		logger.Info("using in-memory checkpoint store, progress will not survive a restart")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown checkpoint provider: %s", cfg.Provider)
	}
}

func newIndexer(cfg config.IndexConfig, logger *zap.Logger) (index.Indexer, error) {
	switch cfg.Provider {
	case "elasticsearch":
		logger.Info("using elasticsearch index",
			zap.Strings("addresses", cfg.Addresses),
			zap.String("index", cfg.Name),
		)
		indexer, err := index.NewElasticsearch(index.ElasticsearchConfig{
			Addresses: cfg.Addresses,
			APIKey:    cfg.APIKey,
			Index:     cfg.Name,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init elasticsearch index: %w", err)
		}
		return indexer, nil
	case "memory":
		logger.Info("using in-memory index, documents will not survive a restart")
		return index.NewMemory(), nil
	case "noop":
		logger.Info("using no-op index, documents will be discarded")
		return index.Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown index provider: %s", cfg.Provider)
	}
}

// Close gracefully shuts down all services in the container.
func (a *App) Close() {
	if err := a.checkpoints.Close(); err != nil {
		a.logger.Warn("error closing checkpoint store", zap.Error(err))
	}
	// Best effort: syncing to stderr fails on some platforms.
	_ = a.logger.Sync()
}
