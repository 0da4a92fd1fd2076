package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hctx-dev/hctx/internal/check"
	"github.com/hctx-dev/hctx/internal/config"
	"github.com/hctx-dev/hctx/internal/watch"
)

func checkCmd(g *globals) *cobra.Command {
	var (
		watchFiles bool
		compact    bool
	)

	cmd := &cobra.Command{
		Use:   "check <file.html>...",
		Short: "Check markup files for binding problems",
		Long: `Check parses markup files and reports problems that would make
binding fail at runtime:

  • malformed action and effect attributes
  • invalid props JSON
  • circular action triggers
  • handlers outside any context
  • references to contexts with no marker in the file

Templates are not loaded, so unknown handler names are not reported.
Check exits non-zero when any problem is found.

Examples:
  hctx check index.html
  hctx check --compact views/*.html
  hctx check --watch index.html`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			c := check.New(check.Attrs{
				Context: cfg.Attributes.Context,
				Action:  cfg.Attributes.Action,
				Effect:  cfg.Attributes.Effect,
			})
			r := &checkRun{checker: c, out: cmd.OutOrStdout(), compact: compact}

			if !watchFiles {
				return r.run(args)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.watch(ctx, cfg, args)
		},
	}

	cmd.Flags().BoolVarP(&watchFiles, "watch", "w", false, "Re-check files when they change")
	cmd.Flags().BoolVar(&compact, "compact", false, "Print one line per problem")

	return cmd
}

// loadConfig loads --config, or discovers the project file from the
// working directory.
func (g *globals) loadConfig() (*config.Config, error) {
	if g.configPath != "" {
		return config.LoadFile(g.configPath)
	}
	return config.Discover(".")
}

type checkRun struct {
	checker *check.Checker
	out     io.Writer
	compact bool
}

// run checks files and returns an error when any problem was found.
func (r *checkRun) run(files []string) error {
	problems, failed := 0, 0
	for _, file := range files {
		found, err := r.checker.File(file)
		if err != nil {
			errorMsg(r.out, "%s: %v", file, err)
			problems++
			failed++
			continue
		}
		if len(found) == 0 {
			success(r.out, "%s", file)
			continue
		}
		failed++
		problems += len(found)
		for _, e := range found {
			if r.compact {
				errorMsg(r.out, "%s", e.FormatCompact())
			} else {
				fmt.Fprint(r.out, e.Format())
			}
		}
	}
	if problems == 0 {
		return nil
	}
	return fmt.Errorf("%s in %s", plural(problems, "problem"), plural(failed, "file"))
}

// watch runs the check once, then again for every batch of changed files
// until ctx is cancelled.
func (r *checkRun) watch(ctx context.Context, cfg *config.Config, files []string) error {
	if err := r.run(files); err != nil {
		warn(r.out, "%v", err)
	}

	debounce, err := cfg.WatchDebounce()
	if err != nil {
		return err
	}
	w, err := watch.New(watch.Config{
		Paths:    files,
		Ignore:   cfg.Watch.Ignore,
		Debounce: debounce,
	})
	if err != nil {
		return err
	}
	info(r.out, "Watching %s for changes (Ctrl+C to stop)", plural(len(files), "file"))

	err = w.Run(ctx, func(changed []string) {
		fmt.Fprintln(r.out)
		if err := r.run(changed); err != nil {
			warn(r.out, "%v", err)
		}
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
