package cmd

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/odottori/ETF-ITA-sub000/renderer"
)

type runsCmd struct{}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list the stored runs" }
func (*runsCmd) Usage() string {
	return `fisim runs

  Lists the runs in the store with their type, period and entry count.
`
}

func (*runsCmd) SetFlags(f *flag.FlagSet) {}

func (c *runsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return fail("Error opening run store: %v", err)
	}
	defer store.Close()

	runs, err := store.Runs(ctx)
	if err != nil {
		return fail("Error listing runs: %v", err)
	}
	printMarkdown(renderer.RunsMarkdown(runs))
	return subcommands.ExitSuccess
}
