package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	herrors "github.com/hctx-dev/hctx/internal/errors"
	"github.com/hctx-dev/hctx/pkg/devtools"
	"github.com/hctx-dev/hctx/pkg/hctx"
	"github.com/hctx-dev/hctx/pkg/middleware"
	"github.com/hctx-dev/hctx/pkg/vdom"
)

func devtoolsCmd(g *globals) *cobra.Command {
	var (
		addr    string
		history int
		tracing bool
	)

	cmd := &cobra.Command{
		Use:   "devtools <file.html>",
		Short: "Run a document and serve devtools for it",
		Long: `Load a markup file into an in-memory document, start a runtime
over it and serve devtools.

Context templates are loaded from Go plugins at the configured import
path (default contexts/{name}.so). Build them with:

  go build -buildmode=plugin -o contexts/counter.so ./contexts/counter

Endpoints:
  /metrics             Prometheus metrics
  /debug/contexts      runtime snapshot
  /debug/tree          the live document
  /debug/dispatches    recent dispatches
  /debug/events        websocket stream of dispatches

Examples:
  hctx devtools index.html
  hctx devtools --addr :8080 index.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDevtools(ctx, cmd, g, args[0], addr, history, tracing)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default from config, 127.0.0.1:7331)")
	cmd.Flags().IntVar(&history, "history", 0, "Dispatch records to keep (default from config)")
	cmd.Flags().BoolVar(&tracing, "trace", false, "Record an OpenTelemetry span per dispatch with the global tracer provider")

	return cmd
}

func runDevtools(ctx context.Context, cmd *cobra.Command, g *globals, file, addr string, history int, tracing bool) error {
	out := cmd.OutOrStdout()
	logger, err := g.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Devtools.Addr
	}
	if history == 0 {
		history = cfg.Devtools.History
	}

	f, err := os.Open(file)
	if err != nil {
		return err
	}
	doc, err := vdom.ParseHTML(f)
	f.Close()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	hub := devtools.NewHub(history)
	observers := []hctx.Observer{hub, middleware.Prometheus(middleware.WithRegistry(reg))}
	if tracing {
		observers = append(observers, middleware.OpenTelemetry())
	}

	rc := cfg.Runtime(logger)
	rc.Observers = observers
	rc.ErrorHandler = func(err error) {
		herrors.Fprint(cmd.ErrOrStderr(), err)
	}
	rt := hctx.New(doc, rc)
	if err := rt.Start(ctx); err != nil {
		warn(out, "binding finished with errors")
	}
	defer rt.Stop()

	snap := rt.Snapshot()
	success(out, "Started %s", file)
	info(out, "%s, %s", plural(len(snap.Contexts), "context"), plural(snap.BoundNodes, "bound node"))
	info(out, "Devtools: http://%s/", displayAddr(addr))
	fmt.Fprintln(out)

	srv := devtools.New(rt, doc, devtools.Config{Hub: hub, Gatherer: reg, Logger: logger})
	return srv.ListenAndServe(ctx, addr)
}

// displayAddr turns a listen address into something a browser can open.
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
