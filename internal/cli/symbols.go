package cli

import (
	"context"
	"flag"

	"github.com/google/subcommands"
)

type symbolsCmd struct{}

func (*symbolsCmd) Name() string     { return "symbols" }
func (*symbolsCmd) Synopsis() string { return "list the symbols with stored price history" }
func (*symbolsCmd) Usage() string {
	return `frontier symbols

  Lists every stored symbol with its price count and date range.
`
}

func (*symbolsCmd) SetFlags(*flag.FlagSet) {}

func (*symbolsCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		symbols, err := a.History.ListSymbols(ctx)
		if err != nil {
			return err
		}
		printMarkdown(symbolsMarkdown(symbols))
		return nil
	})
}
