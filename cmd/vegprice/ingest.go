package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/rewired-gh/vegprice/internal/logger"
	"github.com/rewired-gh/vegprice/internal/models"
)

type refreshCmd struct{}

func (*refreshCmd) Name() string     { return "refresh" }
func (*refreshCmd) Synopsis() string { return "download the market and item catalogs" }
func (*refreshCmd) Usage() string {
	return `vegprice refresh

  Fetches market_price.asp and replaces markets.json and items.json.
`
}

func (*refreshCmd) SetFlags(*flag.FlagSet) {}

func (*refreshCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()

	markets, items, err := a.pipeline().Refresh(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing catalog: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Catalog updated: %d markets, %d items\n", len(markets.Data), len(items.Data))
	return subcommands.ExitSuccess
}

type ingestCmd struct {
	refresh bool
}

func (*ingestCmd) Name() string     { return "ingest" }
func (*ingestCmd) Synopsis() string { return "fetch today's prices and extend the historic data" }
func (*ingestCmd) Usage() string {
	return `vegprice ingest [-refresh]

  Builds the live snapshot from every catalog item and appends it to each
  item's history unless the source date is already recorded.
`
}

func (c *ingestCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.refresh, "refresh", false, "refresh the catalogs before ingesting")
}

func (c *ingestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(options{journal: true, telegram: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()

	p := a.pipeline()
	if c.refresh {
		if _, _, err := p.Refresh(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error refreshing catalog: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	run, err := p.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error ingesting prices: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Run %s %s: %d/%d items, %d history entries (date: %s)\n",
		run.ID, run.Status, run.ItemsOK, run.ItemsTotal, run.LedgersAdded, models.DateString(run.SourceDate))
	return subcommands.ExitSuccess
}

type watchCmd struct {
	refresh bool
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "ingest on a schedule until interrupted" }
func (*watchCmd) Usage() string {
	return `vegprice watch [-refresh]

  Runs an ingestion immediately and then every schedule.interval. Telegram,
  when enabled, is told about the first failure of a streak and the recovery.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.refresh, "refresh", false, "refresh the catalogs before every ingestion")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(options{journal: true, telegram: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()

	if a.telegram != nil {
		if a.journal != nil {
			a.telegram.ListenForCommands(ctx, a.journal)
		} else {
			a.telegram.ListenForCommands(ctx, nil)
		}
	}

	p := a.pipeline()
	cycle := func() error {
		if c.refresh {
			if _, _, err := p.Refresh(ctx); err != nil {
				return fmt.Errorf("failed to refresh catalog: %w", err)
			}
		}
		_, err := p.Run(ctx)
		return err
	}

	interval := a.cfg.Schedule.Interval
	logger.Info("Starting ingestion service (interval: %v, provider: %s)", interval, a.cfg.Provider.Mode)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Ingestion cycle failed: %v", err)
			if consecutiveFailures == 1 && a.telegram != nil {
				if sendErr := a.telegram.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
		} else {
			if consecutiveFailures > 0 && a.telegram != nil {
				if sendErr := a.telegram.SendRecovery(consecutiveFailures); sendErr != nil {
					logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
				}
			}
			consecutiveFailures = 0
		}
	}

	logger.Debug("Running initial ingestion cycle")
	handleCycleResult(cycle())

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return subcommands.ExitSuccess

		case <-ticker.C:
			logger.Debug("Starting scheduled ingestion cycle")
			handleCycleResult(cycle())
		}
	}
}
