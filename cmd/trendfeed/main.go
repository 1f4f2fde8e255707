// Command trendfeed serves trending feed titles as keywords and hashtags.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var version = "dev"

// Globals are flags shared by every command.
type Globals struct {
	Config string `help:"Path to the YAML config file." short:"c" type:"path" env:"TRENDFEED_CONFIG"`

	out io.Writer
}

// CLI is the command tree.
type CLI struct {
	Globals

	Version     kong.VersionFlag `help:"Print the version and exit."`
	Serve       ServeCmd         `cmd:"" help:"Run the HTTP API."`
	Keywords    KeywordsCmd      `cmd:"" help:"Fetch trending titles once and print them as JSON."`
	Hashtags    HashtagsCmd      `cmd:"" help:"Fetch trending titles once and print them as hashtags."`
	Sources     SourcesCmd       `cmd:"" help:"List the configured sources."`
	History     HistoryCmd       `cmd:"" help:"Print stored snapshots for a source."`
	Healthcheck HealthcheckCmd   `cmd:"" help:"Probe the local server's /health endpoint."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "trendfeed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("trendfeed"),
		kong.Description("Trending headlines from RSS/Atom feeds."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cli.out = out
	return kctx.Run(&cli.Globals)
}
