// Package app is the composition root: it builds every long-lived
// dependency once from the configuration and runs the daemon.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/config"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/objectstore"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
	"github.com/dmitrijs2005/mediaoffload/internal/queue"
	"github.com/dmitrijs2005/mediaoffload/internal/render"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/repomanager"
)

// Deps holds the wired pipeline shared by offloadd and offloadctl.
type Deps struct {
	Config *config.Config
	Logger logging.Logger

	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	Items    items.Repository
	Store    objectstore.Store
	Resolver *artifacts.Resolver
	Engine   *offload.Engine
	Queue    *queue.Queue
}

// Build opens the database, applies migrations and wires the pipeline.
func Build(ctx context.Context, cfg *config.Config, l logging.Logger) (*Deps, error) {
	repos, err := repomanager.New(cfg.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, l)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	store, err := objectstore.NewS3Store(ctx, objectstore.Options{
		Bucket:        cfg.S3Bucket,
		Region:        cfg.S3Region,
		Endpoint:      cfg.S3Endpoint,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Root:          cfg.S3Root,
		PublicBaseURL: cfg.PublicBaseURL,
		Timeout:       cfg.FetchTimeout,
	}, l)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("object store: %w", err)
	}

	return wire(cfg, l, db, repos, store), nil
}

func wire(cfg *config.Config, l logging.Logger, db *sql.DB, repos repomanager.RepositoryManager, store objectstore.Store) *Deps {
	encoder := render.NewModernEncoder()
	policy := artifacts.NewPolicy(cfg.ImageSizes, cfg.ThumbnailBox, cfg.ModernFormat, encoder.Supports)
	resolver := artifacts.NewResolver(policy)

	renderer := render.New(render.NewPopplerRasterizer(""), render.NewOfficeConverter(""), cfg.TempDir, l)
	generator := imaging.NewGenerator(encoder, cfg.BigImageThreshold, l)

	itemRepo := repos.Items(db)
	engine := offload.NewEngine(store, itemRepo, resolver, renderer, generator, encoder, offload.Config{
		UploadsDir:    cfg.UploadsDir,
		ScratchDir:    cfg.TempDir,
		DocumentSizes: cfg.DocumentSizes,
		KeepLocal:     cfg.KeepLocal,
	}, l)

	q := queue.New(db, repos, engine, queue.Config{
		LockTTL:         cfg.LockTTL,
		RescheduleDelay: cfg.RescheduleDelay,
	}, l)

	return &Deps{
		Config:   cfg,
		Logger:   l,
		DB:       db,
		Repos:    repos,
		Items:    itemRepo,
		Store:    store,
		Resolver: resolver,
		Engine:   engine,
		Queue:    q,
	}
}

// Close stops pending scheduled passes and closes the database.
func (d *Deps) Close() error {
	d.Queue.Close()
	return d.DB.Close()
}
