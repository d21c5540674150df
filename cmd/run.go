package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"
	"github.com/google/uuid"
	fisco "github.com/odottori/ETF-ITA-sub000"
	"github.com/odottori/ETF-ITA-sub000/renderer"
)

// runCmd holds the flags for the 'run' subcommand.
type runCmd struct {
	id      string
	runType string
	from    string
	to      string
	force   bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "simulate the strategy over a date range" }
func (*runCmd) Usage() string {
	return `fisim run -from <date> -to <date> [-id <run-id>] [-type backtest|production] [-force]

  Simulates the strategy day by day over the given period, stores the
  resulting ledger, proposal log and tax buckets, and prints the run report.

Usage Examples:
# Backtest the full year 2024.
$ fisim run -from 2024-01-01 -to 2024-12-31

`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Run identifier. A random one is generated if empty.")
	f.StringVar(&c.runType, "type", string(fisco.RunBacktest), "Run type (backtest, production)")
	f.StringVar(&c.from, "from", "", "First date of the simulation period (YYYY-MM-DD)")
	f.StringVar(&c.to, "to", fisco.Today().String(), "Last date of the simulation period (YYYY-MM-DD)")
	f.BoolVar(&c.force, "force", false, "Clear a previously stored run with the same id first")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.from == "" {
		fmt.Fprintln(os.Stderr, "-from is required")
		return subcommands.ExitUsageError
	}
	from, err := fisco.ParseDate(c.from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -from date: %v\n", err)
		return subcommands.ExitUsageError
	}
	to, err := fisco.ParseDate(c.to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing -to date: %v\n", err)
		return subcommands.ExitUsageError
	}
	runType, err := fisco.ParseRunType(c.runType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	runID := c.id
	if runID == "" {
		runID = uuid.NewString()
	}

	cfg, err := loadConfig()
	if err != nil {
		return fail("Error loading configuration: %v", err)
	}
	logger := fisco.NewLogger(os.Stderr, cfg.Logging)

	market, err := decodeQuotesFile(cfg.Storage.QuotesPath, cfg.Currency)
	if err != nil {
		return fail("Error loading quotes: %v", err)
	}
	signals, err := decodeSignalsFile(cfg.Storage.SignalsPath)
	if err != nil {
		return fail("Error loading signals: %v", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fail("Error opening run store: %v", err)
	}
	defer store.Close()

	if c.force {
		if err := store.ClearRun(ctx, runID); err != nil {
			return fail("Error clearing run %q: %v", runID, err)
		}
	}

	engine := fisco.NewEngine(cfg, market, signals, fisco.NewWeekdayCalendar(nil), logger)
	res, err := engine.Run(ctx, runID, runType, fisco.Range{From: from, To: to})
	if err != nil {
		return fail("Run failed: %v", err)
	}

	if err := store.SaveRun(ctx, res); err != nil {
		return fail("Error storing run %q: %v", runID, err)
	}
	if cfg.Storage.ReportDir != "" {
		if err := writeReportBundle(cfg.Storage.ReportDir, res); err != nil {
			return fail("Error writing report bundle: %v", err)
		}
	}

	printMarkdown(renderer.ReportMarkdown(res.Report))
	return subcommands.ExitSuccess
}

func decodeQuotesFile(path, currency string) (*fisco.MemoryFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fisco.DecodeQuotes(f, currency)
}

func decodeSignalsFile(path string) (*fisco.MemorySignals, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return fisco.DecodeSignals(f)
}

// writeReportBundle writes the run artifacts under <dir>/<run-id>/: the
// markdown report plus ledger, proposals and equity series as JSONL.
func writeReportBundle(dir string, res *fisco.RunResult) error {
	bundle := filepath.Join(dir, res.Ledger.RunID())
	if err := os.MkdirAll(bundle, 0755); err != nil {
		return err
	}

	if err := os.WriteFile(filepath.Join(bundle, "report.md"), []byte(renderer.ReportMarkdown(res.Report)), 0644); err != nil {
		return err
	}

	entries := make([]fisco.LedgerEntry, 0, res.Ledger.Len())
	for _, e := range res.Ledger.Entries() {
		entries = append(entries, e)
	}
	for _, file := range []struct {
		name   string
		encode func(f *os.File) error
	}{
		{"ledger.jsonl", func(f *os.File) error { return fisco.EncodeEntries(f, entries) }},
		{"proposals.jsonl", func(f *os.File) error { return fisco.EncodeProposals(f, res.Proposals) }},
		{"equity.jsonl", func(f *os.File) error { return fisco.EncodeEquity(f, res.Equity) }},
	} {
		f, err := os.Create(filepath.Join(bundle, file.name))
		if err != nil {
			return err
		}
		if err := file.encode(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}
