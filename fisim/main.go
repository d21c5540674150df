package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/odottori/ETF-ITA-sub000/cmd"
)

func main() {
	// Shell completion: a no-op unless invoked by the completion hook.
	completion().Complete("fisim")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	for _, c := range cmd.Commands {
		commander.Register(c, "")
	}

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func completion() *complete.Command {
	runFlags := map[string]complete.Predictor{
		"id":    predict.Nothing,
		"type":  predict.Set{"backtest", "production"},
		"from":  predict.Nothing,
		"to":    predict.Nothing,
		"force": predict.Nothing,
	}
	byRun := map[string]complete.Predictor{"run": predict.Nothing}
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
		},
		Sub: map[string]*complete.Command{
			"run":       {Flags: runFlags},
			"report":    {Flags: byRun},
			"ledger":    {Flags: byRun},
			"buckets":   {Flags: byRun},
			"proposals": {Flags: byRun},
			"runs":      {},
			"topic":     {},
		},
	}
}
