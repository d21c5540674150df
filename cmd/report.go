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

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	run string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print the KPI report of a stored run" }
func (*reportCmd) Usage() string {
	return `fisim report -run <run-id>

  Rebuilds and prints the run report from the stored ledger, proposal log,
  equity series and tax buckets.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.run, "run", "", "Run identifier")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	res, err := loadRunResult(ctx, store, cfg, c.run)
	if err != nil {
		return fail("Error loading run %q: %v", c.run, err)
	}

	printMarkdown(renderer.ReportMarkdown(res.Report))
	return subcommands.ExitSuccess
}

// loadRunResult rebuilds a full run result from the store, replaying the
// ledger so the stored rows are re-validated on the way in.
func loadRunResult(ctx context.Context, store fisco.RunStore, cfg *fisco.Config, runID string) (*fisco.RunResult, error) {
	entries, err := store.LoadEntries(ctx, runID)
	if err != nil {
		return nil, err
	}
	ledger, err := fisco.ReplayLedger(cfg.Currency, entries)
	if err != nil {
		return nil, err
	}
	proposals, err := store.LoadProposals(ctx, runID)
	if err != nil {
		return nil, err
	}
	buckets, err := store.LoadBuckets(ctx, runID)
	if err != nil {
		return nil, err
	}
	equity, err := store.LoadEquity(ctx, runID)
	if err != nil {
		return nil, err
	}
	res := &fisco.RunResult{
		Ledger:    ledger,
		Proposals: proposals,
		Buckets:   buckets,
		Equity:    equity,
	}
	res.Report = fisco.NewRunReport(ledger.RunID(), ledger.RunType(), cfg, res)
	return res, nil
}
