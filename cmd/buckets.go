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

// bucketsCmd holds the flags for the 'buckets' subcommand.
type bucketsCmd struct {
	run string
	on  string
}

func (*bucketsCmd) Name() string     { return "buckets" }
func (*bucketsCmd) Synopsis() string { return "show the tax-loss buckets of a stored run" }
func (*bucketsCmd) Usage() string {
	return `fisim buckets -run <run-id> [-on <date>]

  Prints the run's loss carry-forward buckets. With -on, only the buckets
  still usable on that date are shown.
`
}

func (c *bucketsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.run, "run", "", "Run identifier")
	f.StringVar(&c.on, "on", "", "Only show buckets usable on this date (YYYY-MM-DD)")
}

func (c *bucketsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	buckets, err := store.LoadBuckets(ctx, c.run)
	if err != nil {
		return fail("Error loading buckets of run %q: %v", c.run, err)
	}

	if c.on != "" {
		on, err := fisco.ParseDate(c.on)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing -on date: %v\n", err)
			return subcommands.ExitUsageError
		}
		usable := buckets[:0]
		for _, b := range buckets {
			if b.UsableOn(on) {
				usable = append(usable, b)
			}
		}
		buckets = usable
	}

	printMarkdown(renderer.BucketsMarkdown(buckets))
	return subcommands.ExitSuccess
}
