// Package cmd implements the CLI application to run and inspect simulations.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	fisco "github.com/odottori/ETF-ITA-sub000"
)

// Commands lists all subcommands in registration order. A main package
// registers them on a commander and executes the user-selected one.
var Commands = []subcommands.Command{
	&runCmd{},
	&reportCmd{},
	&ledgerCmd{},
	&bucketsCmd{},
	&proposalsCmd{},
	&runsCmd{},
	&topicCmd{},
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var configFile = flag.String("config", "fisim.yaml", "Path to the configuration file")

// loadConfig loads the application configuration, with environment
// overrides already applied.
func loadConfig() (*fisco.Config, error) {
	return fisco.LoadConfig(*configFile)
}

// openStore opens the run store named by the configuration. An empty
// sqlite path falls back to a throwaway in-memory store.
func openStore(cfg *fisco.Config) (fisco.RunStore, error) {
	if cfg.Storage.SQLitePath == "" {
		return fisco.NewMemoryStore(), nil
	}
	return fisco.OpenSQLiteStore(cfg.Storage.SQLitePath)
}

// printMarkdown renders markdown to the terminal. If rendering fails the
// raw markdown is printed instead.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
