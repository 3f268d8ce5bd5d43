// Package cli implements the frontier command line subcommands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/config"
	"github.com/aristath/frontier/internal/di"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/utils"
	"github.com/aristath/frontier/pkg/logger"
)

var dataDir = flag.String("data-dir", "", "Directory holding history.db and cache.db (overrides DATA_DIR)")

// Register the subcommands.
func Register(c *subcommands.Commander) {
	c.Register(&importCmd{}, "history")
	c.Register(&symbolsCmd{}, "history")

	c.Register(&summaryCmd{}, "analysis")
	c.Register(&optimizeCmd{}, "portfolio")
	c.Register(&frontierCmd{}, "portfolio")
}

// app is the wired dependency set a command runs against
type app struct {
	*di.Container
	log zerolog.Logger
}

// openApp loads configuration and opens the databases. Scheduled jobs are
// not registered; they belong to the server.
func openApp() (*app, error) {
	if *dataDir != "" {
		if err := os.Setenv("DATA_DIR", *dataDir); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		Output: os.Stderr,
	})

	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return nil, err
	}
	di.InitializeServices(container, cfg, log)
	return &app{Container: container, log: log}, nil
}

// fail reports err and maps it to an exit status
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if domain.IsKind(err, domain.KindValidation) {
		return subcommands.ExitUsageError
	}
	return subcommands.ExitFailure
}

// run opens the app, calls fn and closes the app again
func run(ctx context.Context, fn func(context.Context, *app) error) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		return fail(err)
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil {
		return fail(err)
	}
	return subcommands.ExitSuccess
}

func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	// Fall back to the raw markdown, which is still readable
	fmt.Print(md)
}

// tickersFlag collects -t values, either repeated or comma separated.
// Symbols are upper-cased and repeats dropped.
type tickersFlag []string

func (t *tickersFlag) String() string {
	return strings.Join(*t, ",")
}

func (t *tickersFlag) Set(v string) error {
	for _, s := range utils.ParseSymbols(v) {
		if !slices.Contains(*t, s) {
			*t = append(*t, s)
		}
	}
	return nil
}

// visited returns the names of the flags explicitly set on f
func visited(f *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	f.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return set
}
