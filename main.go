// Command go-bootstrap runs the example users application: a JSON API served
// through the dispatcher and an optional console reading commands from stdin.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/km-arc/go-bootstrap/framework/app"
	"github.com/km-arc/go-bootstrap/framework/config"
	"github.com/km-arc/go-bootstrap/framework/container"
	"github.com/km-arc/go-bootstrap/framework/routing"
)

const banner = `
   ___         ___            _       _
  / __|___ ___| _ ) ___  ___ | |_ ___| |_ _ _ __ _ _ __
 | (_ / _ \___| _ \/ _ \/ _ \|  _(_-<  _| '_/ _' | '_ \
  \___\___/   |___/\___/\___/ \__/__/\__|_| \__,_| .__/
                                                 |_|
`

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "go-bootstrap",
		Short:        "Example application built on the go-bootstrap container and dispatcher",
		Version:      app.Version,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

type serveOptions struct {
	envFiles []string
	port     string
	console  bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the application and serve the HTTP API",
		Long: `Bootstrap the application and serve the HTTP API until interrupted.

Configuration is read from the env files (default .env) and the environment.
When ADMIN_TOKEN is set, deleting a user requires "Authorization: Bearer <token>".

Example:
  go-bootstrap serve                     # APP_PORT or 8000
  go-bootstrap serve --port 9000         # override APP_PORT
  go-bootstrap serve -e .env -e .env.local --console`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts, cmd.InOrStdin())
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.envFiles, "env", "e", nil, "env file to load, repeatable (default .env)")
	flags.StringVarP(&opts.port, "port", "p", "", "port to listen on (overrides APP_PORT)")
	flags.BoolVar(&opts.console, "console", false, "read console commands from stdin")
	return cmd
}

// serve runs until ctx is cancelled, SIGINT/SIGTERM arrives or, in console
// mode, "quit" is read.
func serve(ctx context.Context, opts serveOptions, in io.Reader) (err error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(opts.envFiles...)
	if opts.port != "" {
		cfg.App.Port = opts.port
	}

	application, err := app.Bootstrap(ctx, app.Options{
		Config:      cfg,
		Banner:      banner,
		Descriptors: userDescriptors(),
		Providers: []container.ServiceProvider{
			&usersProvider{},
			&routing.Provider{Routes: usersRoutes(config.Get("ADMIN_TOKEN", "")), MetricsPath: "/metrics"},
		},
	})
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, application.Shutdown()) }()

	if err := application.Start(ctx); err != nil {
		return err
	}

	if !opts.console {
		<-ctx.Done()
		return nil
	}
	commands, err := application.Commands()
	if err != nil {
		return err
	}
	return commands.Run(ctx, in)
}
