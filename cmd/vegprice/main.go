package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"

	"github.com/rewired-gh/vegprice/internal/logger"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file (empty for defaults and environment only)")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&refreshCmd{}, "ingestion")
	commander.Register(&ingestCmd{}, "ingestion")
	commander.Register(&watchCmd{}, "ingestion")

	commander.Register(&serveCmd{}, "read")
	commander.Register(&priceCmd{}, "read")
	commander.Register(&runsCmd{}, "read")

	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	status := commander.Execute(ctx)
	cancel()
	os.Exit(int(status))
}
