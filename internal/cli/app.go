// Package cli implements offloadctl, the operator's batch tool: bulk
// migration of existing items, forced regeneration, manual queue draining,
// presigned uploads and hook tokens.
//
// Every batch command counts per-item outcomes instead of stopping at the
// first failure and always ends with a success/failed/skipped tally.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/mediaoffload/internal/config"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/netx"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
	"github.com/dmitrijs2005/mediaoffload/internal/queue"
	"github.com/dmitrijs2005/mediaoffload/internal/repositories/items"
)

// Items is the item persistence the commands read and update.
type Items interface {
	List(ctx context.Context, f items.ListFilter) ([]media.Item, error)
	SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error
}

// Engine is the part of offload.Engine the commands drive.
type Engine interface {
	Sync(ctx context.Context, item media.Item, meta media.Metadata, opt offload.SyncOptions) (media.Metadata, offload.SyncResult)
	FetchGenerateUpload(ctx context.Context, id int64) (offload.Result, error)
	Regenerate(ctx context.Context, id int64) (offload.Result, error)
}

// Drainer runs queue passes synchronously.
type Drainer interface {
	Drain(ctx context.Context, limit int) (queue.Tally, error)
}

// Signer issues presigned upload URLs.
type Signer interface {
	PresignedUploadURL(ctx context.Context, key, contentType string, ttlMinutes int) (string, error)
}

// Services are the wired dependencies of the data commands.
type Services struct {
	Items  Items
	Engine Engine
	Queue  Drainer
	Signer Signer
}

// Connector builds Services on demand; the returned func releases them.
type Connector func(ctx context.Context) (*Services, func(), error)

var (
	errUsage = errors.New("usage")

	putFile = netx.PutFile
)

type App struct {
	config  *config.Config
	out     io.Writer
	logger  logging.Logger
	connect Connector
}

func NewApp(c *config.Config, out io.Writer, l logging.Logger, connect Connector) *App {
	return &App{config: c, out: out, logger: l.With("module", "cli"), connect: connect}
}

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) (int, error)
}

var commands = map[string]command{
	"migrate":    {"upload existing items and evict local copies", (*App).migrate},
	"regenerate": {"regenerate missing or all derived artifacts", (*App).regenerate},
	"drain":      {"process queued items now", (*App).drain},
	"presign":    {"print a presigned upload URL for a path", (*App).presign},
	"push":       {"upload a local file through a presigned URL", (*App).push},
	"token":      {"issue a hook bearer token", (*App).token},
}

var commandOrder = []string{"migrate", "regenerate", "drain", "presign", "push", "token"}

// Run dispatches args[0] and returns the process exit code: 0 on success,
// 1 when the command failed or counted failed items, 2 on usage errors.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		return 2
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(a.out, "Unknown command: %s\n", args[0])
		a.usage()
		return 2
	}

	code, err := cmd.run(a, ctx, args[1:])
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(a.out, err.Error())
			return 2
		}
		a.logger.Error(ctx, "command failed", "command", args[0], "error", err)
		return 1
	}
	return code
}

func (a *App) usage() {
	var b strings.Builder
	b.WriteString("Usage: offloadctl <command> [flags] [-c config]\n\nCommands:\n")
	for _, name := range commandOrder {
		fmt.Fprintf(&b, "  %-11s %s\n", name, commands[name].summary)
	}
	fmt.Fprint(a.out, b.String())
}

// flagSet returns a subcommand flag set that tolerates the global config
// flags, which are parsed separately.
func flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v\n%s", errUsage, fs.Name(), err, fs.FlagUsages())
	}
	return nil
}

func (a *App) services(ctx context.Context) (*Services, func(), error) {
	if a.connect == nil {
		return nil, func() {}, errors.New("no backend configured")
	}
	return a.connect(ctx)
}

// tally is the per-item outcome summary of a batch command.
type tally struct {
	success int
	failed  int
	skipped int
}

func (t tally) total() int { return t.success + t.failed + t.skipped }

func (t tally) exitCode() int {
	if t.failed > 0 {
		return 1
	}
	return 0
}

func (a *App) printTally(t tally) {
	fmt.Fprintf(a.out, "Success: %d, Failed: %d, Skipped: %d\n", t.success, t.failed, t.skipped)
}
