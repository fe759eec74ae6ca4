package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/errs"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// ── Long-running services ─────────────────────────────────────────────────────

// LongRunningServiceOrchestrator starts every registered long-running service.
type LongRunningServiceOrchestrator struct {
	services []LongRunningService
	log      *logging.NamedLogger
}

func NewLongRunningServiceOrchestrator(services []LongRunningService, log *logging.NamedLogger) *LongRunningServiceOrchestrator {
	if log == nil {
		log = logging.GetOrCreate(logging.NameOf[LongRunningServiceOrchestrator]())
	}
	return &LongRunningServiceOrchestrator{services: services, log: log}
}

// Services returns the services in registration order.
func (o *LongRunningServiceOrchestrator) Services() []LongRunningService { return o.services }

// StartLongRunningServices starts all services concurrently and waits for
// every Start to return. The first failure is returned and cancels the
// context handed to the others.
func (o *LongRunningServiceOrchestrator) StartLongRunningServices(ctx context.Context) error {
	o.log.DebugFn(ctx, func() string {
		return fmt.Sprintf("Starting %d long running service(s)", len(o.services))
	})

	g, gctx := errgroup.WithContext(ctx)
	for _, svc := range o.services {
		g.Go(func() error {
			name := fmt.Sprintf("%T", svc)
			if err := svc.Start(gctx); err != nil {
				return fmt.Errorf("start %s: %w", name, err)
			}
			o.log.Debug(gctx, "Started "+name)
			return nil
		})
	}
	return g.Wait()
}

// ── Console commands ──────────────────────────────────────────────────────────

// Built-in console commands.
const (
	CommandHelp = "help"
	CommandQuit = "quit"
)

// CommandOrchestrator reads commands line by line and runs the matching
// processor.
type CommandOrchestrator struct {
	processors map[string]CommandProcessor
	log        *logging.NamedLogger
}

// NewCommandOrchestrator indexes processors by command. Two processors for
// the same command, or one claiming a built-in command, is a registration
// error.
func NewCommandOrchestrator(processors []CommandProcessor, log *logging.NamedLogger) (*CommandOrchestrator, error) {
	if log == nil {
		log = logging.GetOrCreate(logging.NameOf[CommandOrchestrator]())
	}
	o := &CommandOrchestrator{processors: make(map[string]CommandProcessor, len(processors)), log: log}
	for _, p := range processors {
		cmd := normalize(p.Command())
		switch {
		case cmd == "":
			return nil, errs.InvalidRegistration(fmt.Sprintf("%T", p), "command processor has an empty command")
		case cmd == CommandHelp || cmd == CommandQuit:
			return nil, errs.InvalidRegistration(cmd, fmt.Sprintf("%T claims a built-in command", p))
		case o.processors[cmd] != nil:
			return nil, errs.InvalidRegistration(cmd, fmt.Sprintf("both %T and %T handle the command", o.processors[cmd], p))
		}
		o.processors[cmd] = p
	}
	return o, nil
}

// Commands lists the known commands in sorted order.
func (o *CommandOrchestrator) Commands() []string {
	cmds := make([]string, 0, len(o.processors))
	for cmd := range o.processors {
		cmds = append(cmds, cmd)
	}
	sort.Strings(cmds)
	return cmds
}

// Execute runs the processor for one command line.
func (o *CommandOrchestrator) Execute(ctx context.Context, line string) error {
	cmd := normalize(line)
	p, ok := o.processors[cmd]
	if !ok {
		return errs.NotRegistered("command " + cmd)
	}
	return p.Execute(ctx)
}

// Run processes commands from in until it is exhausted, "quit" is read or
// ctx is done. A failing command is logged and does not stop the loop.
func (o *CommandOrchestrator) Run(ctx context.Context, in io.Reader) error {
	o.log.Info(ctx, "Type a command and press enter, \"help\" lists the commands.")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd := normalize(scanner.Text())
		switch cmd {
		case "":
			continue
		case CommandQuit:
			o.log.Debug(ctx, "Quit requested")
			return nil
		case CommandHelp:
			o.help(ctx)
			continue
		}

		if _, ok := o.processors[cmd]; !ok {
			o.log.Warn(ctx, "Unknown command "+cmd)
			continue
		}
		if err := o.Execute(ctx, cmd); err != nil {
			o.log.ErrorWith(ctx, err, "Command "+cmd+" failed")
		}
	}
	return scanner.Err()
}

func (o *CommandOrchestrator) help(ctx context.Context) {
	cmds := o.Commands()
	width := len(CommandQuit)
	for _, c := range cmds {
		width = max(width, len(c))
	}
	for _, c := range cmds {
		o.log.Info(ctx, fmt.Sprintf("%*s  %s", width, c, o.processors[c].Description()))
	}
	o.log.Info(ctx, fmt.Sprintf("%*s  %s", width, CommandQuit, "Stop reading commands"))
}

func normalize(line string) string {
	return strings.ToLower(strings.TrimSpace(line))
}

// ── Registration ──────────────────────────────────────────────────────────────

func registerOrchestrators(cat *container.Catalog, reg *logging.Registry) error {
	_, err := container.RegisterFunc(cat, container.Singleton, func(a container.Activation) (*LongRunningServiceOrchestrator, error) {
		services, err := container.ResolveAll[LongRunningService](a, LongRunningServiceKey())
		if err != nil {
			return nil, err
		}
		return NewLongRunningServiceOrchestrator(services, reg.GetOrCreate(logging.NameOf[LongRunningServiceOrchestrator]())), nil
	}, container.WithName("LongRunningServiceOrchestrator"))
	if err != nil {
		return err
	}

	_, err = container.RegisterFunc(cat, container.Singleton, func(a container.Activation) (*CommandOrchestrator, error) {
		processors, err := container.ResolveAll[CommandProcessor](a, CommandProcessorKey())
		if err != nil {
			return nil, err
		}
		return NewCommandOrchestrator(processors, reg.GetOrCreate(logging.NameOf[CommandOrchestrator]()))
	}, container.WithName("CommandOrchestrator"))
	return err
}
