package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
)

var cli struct {
	Config  string           `help:"Path to configuration file." default:"sitepack.json" type:"path"`
	Debug   bool             `help:"Enable debug logging and console output."`
	Version kong.VersionFlag `help:"Print version and exit."`

	Build BuildCmd `cmd:"" help:"Build the site into the output directory."`
	Serve ServeCmd `cmd:"" help:"Build the site and serve the output directory."`
	Graph GraphCmd `cmd:"" help:"Print the build graph derived from the page manifest as JSON."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name(SERVER_NAME),
		kong.Description("Builds a multi-page site from a declarative page manifest."),
		kong.Vars{
			"version": SERVER_SIGNATURE,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&Globals{Config: cli.Config, Debug: cli.Debug})
	cmd.FatalIfErrorf(err)
}
