package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	fisco "github.com/odottori/ETF-ITA-sub000"
	"github.com/odottori/ETF-ITA-sub000/renderer"
)

// ledgerCmd holds the flags for the 'ledger' subcommand.
type ledgerCmd struct {
	run   string
	jsonl bool
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "show the fiscal ledger of a stored run" }
func (*ledgerCmd) Usage() string {
	return `fisim ledger -run <run-id> [-jsonl]

  Prints the run's ledger entries in chronological order, as a table or as
  JSONL with -jsonl.
`
}

func (c *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.run, "run", "", "Run identifier")
	f.BoolVar(&c.jsonl, "jsonl", false, "Emit raw JSONL instead of a table")
}

func (c *ledgerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.run == "" {
		fmt.Fprintln(os.Stderr, "-run is required")
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return fail("Error opening run store: %v", err)
	}
	defer store.Close()

	entries, err := store.LoadEntries(ctx, c.run)
	if err != nil {
		return fail("Error loading ledger of run %q: %v", c.run, err)
	}

	if c.jsonl {
		if err := fisco.EncodeEntries(os.Stdout, entries); err != nil {
			return fail("Error encoding ledger: %v", err)
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.LedgerMarkdown(entries))
	return subcommands.ExitSuccess
}
