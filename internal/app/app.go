package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/mediaoffload/internal/config"
	"github.com/dmitrijs2005/mediaoffload/internal/health"
	"github.com/dmitrijs2005/mediaoffload/internal/hooks"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/queue"
)

// App is the offloadd daemon: queue worker, hook API and health service.
type App struct {
	config *config.Config
	logger logging.Logger
	deps   *Deps
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	deps, err := Build(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	return &App{config: c, logger: logger, deps: deps}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHooksServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := hooks.NewHandler(app.deps.Items, app.deps.Engine, app.deps.Queue, app.deps.Store, app.logger)
	router := hooks.NewRouter(hooks.RouterConfig{
		Secret:      []byte(app.config.HookSecret),
		CORSOrigins: app.config.CORSOrigins,
	}, h, app.logger)

	if err := hooks.NewServer(app.config.HookAddr, router, app.logger).Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHealthServer(ctx context.Context, cancelFunc context.CancelFunc, hs *health.Server) {
	if err := hs.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startWorker(ctx context.Context, hs *health.Server) {
	hs.SetServing(health.QueueService, true)
	defer hs.SetServing(health.QueueService, false)

	queue.NewWorker(app.deps.Queue, app.config.WorkerInterval, app.logger).Start(ctx)
}

// Run blocks until a termination signal arrives or a server fails, then
// waits for every component to stop and releases the dependencies.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	hs := health.NewServer(app.config.HealthAddr, app.logger)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHealthServer(ctx, cancelFunc, hs)
	}()
	go func() {
		defer wg.Done()
		app.startHooksServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startWorker(ctx, hs)
	}()

	wg.Wait()

	if err := app.deps.Close(); err != nil {
		app.logger.Error(context.Background(), "close failed", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
