// Package offload synchronizes an item's artifact set with the object store.
//
// Two entry points exist. UploadAndEvict pushes an already complete set and
// removes the local copies; FetchGenerateUpload pulls the primary file back,
// produces whatever is missing and pushes only the new artifacts.
package offload

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/imaging"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/objectstore"
	"github.com/dmitrijs2005/mediaoffload/internal/render"
)

// ItemStore is the host's item persistence as seen by the engine.
type ItemStore interface {
	Get(ctx context.Context, id int64) (media.Item, error)
	SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error
	SetPending(ctx context.Context, id int64, pending bool) error
}

// DocumentRenderer renders one preview of a paged document.
type DocumentRenderer interface {
	Render(ctx context.Context, req render.Request) (render.Output, error)
}

// ImageGenerator produces the derived files of an image item.
type ImageGenerator interface {
	NeedsWork(meta media.Metadata, p artifacts.Policy) bool
	Generate(ctx context.Context, localPrimary string, meta media.Metadata, p artifacts.Policy) (imaging.Result, error)
}

// Config holds the engine's filesystem layout and document policy.
type Config struct {
	// UploadsDir is the local root every relative path resolves against.
	UploadsDir string
	// ScratchDir hosts per-operation temporary directories.
	ScratchDir    string
	DocumentSizes []media.SizeSpec
	// KeepLocal uploads without evicting local copies.
	KeepLocal bool
}

type Engine struct {
	store    objectstore.Store
	items    ItemStore
	resolver *artifacts.Resolver
	renderer DocumentRenderer
	images   ImageGenerator
	encoder  imaging.SourceEncoder
	cfg      Config
	logger   logging.Logger

	mu     sync.Mutex
	active map[int64]struct{}
}

func NewEngine(
	store objectstore.Store,
	items ItemStore,
	resolver *artifacts.Resolver,
	renderer DocumentRenderer,
	images ImageGenerator,
	encoder imaging.SourceEncoder,
	cfg Config,
	l logging.Logger,
) *Engine {
	return &Engine{
		store:    store,
		items:    items,
		resolver: resolver,
		renderer: renderer,
		images:   images,
		encoder:  encoder,
		cfg:      cfg,
		logger:   l.With("module", "offload"),
		active:   make(map[int64]struct{}),
	}
}

// Resolver exposes the engine's resolver to the outer surfaces.
func (e *Engine) Resolver() *artifacts.Resolver {
	return e.resolver
}

// enter marks id as in flight. It returns false when id already is.
func (e *Engine) enter(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[id]; busy {
		return false
	}
	e.active[id] = struct{}{}
	return true
}

func (e *Engine) leave(id int64) {
	e.mu.Lock()
	delete(e.active, id)
	e.mu.Unlock()
}

// InFlight reports whether id is currently being synchronized.
func (e *Engine) InFlight(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.active[id]
	return busy
}
