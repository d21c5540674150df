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

// proposalsCmd holds the flags for the 'proposals' subcommand.
type proposalsCmd struct {
	run      string
	rejected bool
	jsonl    bool
}

func (*proposalsCmd) Name() string     { return "proposals" }
func (*proposalsCmd) Synopsis() string { return "show the proposal log of a stored run" }
func (*proposalsCmd) Usage() string {
	return `fisim proposals -run <run-id> [-rejected] [-jsonl]

  Prints every order the run considered, with its final status and, for
  rejected ones, the reason.
`
}

func (c *proposalsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.run, "run", "", "Run identifier")
	f.BoolVar(&c.rejected, "rejected", false, "Only show rejected proposals")
	f.BoolVar(&c.jsonl, "jsonl", false, "Emit raw JSONL instead of a table")
}

func (c *proposalsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	proposals, err := store.LoadProposals(ctx, c.run)
	if err != nil {
		return fail("Error loading proposals of run %q: %v", c.run, err)
	}
	if c.rejected {
		kept := proposals[:0]
		for _, p := range proposals {
			if p.Status == fisco.StatusRejected {
				kept = append(kept, p)
			}
		}
		proposals = kept
	}

	if c.jsonl {
		if err := fisco.EncodeProposals(os.Stdout, proposals); err != nil {
			return fail("Error encoding proposals: %v", err)
		}
		return subcommands.ExitSuccess
	}
	printMarkdown(renderer.ProposalsMarkdown(proposals))
	return subcommands.ExitSuccess
}
