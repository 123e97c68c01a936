// Package engine builds every tripdesk component once and wires them
// together. An Engine is constructed at startup, shared by all callers and
// immutable afterwards; tests build a fresh one per case.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/tripdesk-mcp/internal/config"
	"github.com/dshills/tripdesk-mcp/internal/consistency"
	"github.com/dshills/tripdesk-mcp/internal/facts"
	"github.com/dshills/tripdesk-mcp/internal/indexer"
	"github.com/dshills/tripdesk-mcp/internal/matcher"
	"github.com/dshills/tripdesk-mcp/internal/normalize"
	"github.com/dshills/tripdesk-mcp/internal/resolver"
	"github.com/dshills/tripdesk-mcp/internal/semantic"
	"github.com/dshills/tripdesk-mcp/internal/slug"
	"github.com/dshills/tripdesk-mcp/internal/storage"
	"github.com/dshills/tripdesk-mcp/internal/trips"
)

// Engine is the explicit context holding every component
type Engine struct {
	Config *config.Config
	Logger *zap.Logger

	Store       *storage.SQLiteStorage
	Normalizer  *normalize.Normalizer
	Synonyms    *semantic.Synonyms
	Indexer     *indexer.Indexer
	Slugs       *slug.Registry
	Resolver    *resolver.Resolver
	Facts       *facts.Cache
	Propagator  *consistency.Propagator
	Consistency *consistency.Manager
	Trips       *trips.Service
}

// New opens the database at cfg.DBPath, creating its directory if needed,
// and builds an Engine over it
func New(cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	e, err := NewWithStorage(cfg, store, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return e, nil
}

// NewWithStorage builds an Engine over an already opened store. The Engine
// takes ownership of store and closes it in Close.
func NewWithStorage(cfg *config.Config, store *storage.SQLiteStorage, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	n := normalize.New(normalize.Options{
		Budget: cfg.Normalizer.Budget,
		Logger: logger.Named("normalize"),
	})

	synonyms := semantic.NewSynonyms(n)
	if cfg.SynonymsFile != "" {
		loaded, err := semantic.LoadSynonyms(n, cfg.SynonymsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load synonyms: %w", err)
		}
		synonyms = loaded
	}

	idx := indexer.New(store, n, semantic.NewExtractor(n, synonyms), logger.Named("indexer"))
	registry := slug.NewRegistry(store, logger.Named("slug"))

	factCache := facts.New(store, store, facts.Options{
		Limit:  cfg.Facts.Limit,
		Budget: cfg.Facts.Budget,
		Logger: logger.Named("facts"),
	})

	res, err := resolver.New(store, n, resolver.Stages{
		Slugs: registry,
		Weighted: matcher.New(matcher.Options{
			TopN:      cfg.Resolver.TopN,
			Threshold: cfg.Resolver.WeightedThreshold,
			MaxTerms:  cfg.Resolver.MaxTerms,
		}),
		Semantic: semantic.NewIndex(store, synonyms, semantic.Options{
			Threshold:     cfg.Resolver.SemanticThreshold,
			TopN:          cfg.Resolver.TopN,
			MaxComponents: cfg.Resolver.MaxTerms,
			Logger:        logger.Named("semantic"),
		}),
	}, resolver.Options{
		CacheSize: cfg.Resolver.CacheSize,
		CacheTTL:  cfg.Resolver.CacheTTL,
		Facts:     factCache,
		Logger:    logger.Named("resolver"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	propagator := consistency.NewPropagator(idx, factCache, res, logger.Named("propagate"))
	manager := consistency.NewManager(store, propagator, logger.Named("consistency"))

	return &Engine{
		Config:      cfg,
		Logger:      logger,
		Store:       store,
		Normalizer:  n,
		Synonyms:    synonyms,
		Indexer:     idx,
		Slugs:       registry,
		Resolver:    res,
		Facts:       factCache,
		Propagator:  propagator,
		Consistency: manager,
		Trips:       trips.NewService(store, registry, manager, propagator, logger.Named("trips")),
	}, nil
}

// Reindex rebuilds the search data of every trip and drops cached
// resolutions
func (e *Engine) Reindex(ctx context.Context) (*indexer.Statistics, error) {
	stats, err := e.Indexer.RebuildAll(ctx, &indexer.Config{Workers: e.Config.Indexer.Workers})
	if err != nil {
		return stats, err
	}
	e.Resolver.Invalidate()
	return stats, nil
}

// Status returns store statistics
func (e *Engine) Status(ctx context.Context) (*storage.Status, error) {
	return e.Store.GetStatus(ctx)
}

// Close releases the database
func (e *Engine) Close() error {
	return e.Store.Close()
}
