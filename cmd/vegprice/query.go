package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"github.com/rewired-gh/vegprice/internal/models"
)

type priceCmd struct {
	market   string
	byMarket bool
}

func (*priceCmd) Name() string     { return "price" }
func (*priceCmd) Synopsis() string { return "print prices for an item or a market" }
func (*priceCmd) Usage() string {
	return `vegprice price [-m <market>] <item>
vegprice price -by-market [-m <item>] <market>

  Prints the price map as JSON. Names are matched by key first, then
  case-insensitively against display names.
`
}

func (c *priceCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.market, "m", "", "narrow to one counterpart (market, or item with -by-market)")
	f.BoolVar(&c.byMarket, "by-market", false, "look up a market and list its items")
}

func (c *priceCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one name is required")
		return subcommands.ExitUsageError
	}
	a, err := newApp(options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()

	p, err := a.provider()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	var resp *models.PriceResponse
	if c.byMarket {
		resp, err = p.PriceForMarket(ctx, f.Arg(0), c.market)
	} else {
		resp, err = p.PriceFor(ctx, f.Arg(0), c.market)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := writeJSON(os.Stdout, resp); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type runsCmd struct {
	limit int
	id    string
}

func (*runsCmd) Name() string     { return "runs" }
func (*runsCmd) Synopsis() string { return "list recent ingestion runs" }
func (*runsCmd) Usage() string {
	return `vegprice runs [-n 10]
vegprice runs -id <run id>

  Lists the most recent runs from the journal, newest first, or shows one
  run with its failed items.
`
}

func (c *runsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 10, "number of runs to show")
	f.StringVar(&c.id, "id", "", "show a single run with its failures")
}

func (c *runsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.limit <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -n must be positive")
		return subcommands.ExitUsageError
	}
	a, err := newApp(options{journal: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()
	if a.journal == nil {
		fmt.Fprintln(os.Stderr, "Error: storage.db_path is empty, no run journal")
		return subcommands.ExitUsageError
	}

	if c.id != "" {
		run, err := a.journal.GetRun(c.id)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading run journal: %v\n", err)
			return subcommands.ExitFailure
		}
		printRun(os.Stdout, run)
		return subcommands.ExitSuccess
	}

	runs, err := a.journal.RecentRuns(c.limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading run journal: %v\n", err)
		return subcommands.ExitFailure
	}
	printRuns(os.Stdout, runs)
	return subcommands.ExitSuccess
}

func printRuns(w io.Writer, runs []models.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tDATE\tITEMS\tHISTORY\tID\tMESSAGE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d\t%s\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, models.DateString(r.SourceDate),
			r.ItemsOK, r.ItemsTotal, r.LedgersAdded, r.ID, r.Message)
	}
	tw.Flush() //nolint:errcheck
}

func printRun(w io.Writer, r *models.Run) {
	printRuns(w, []models.Run{*r})
	if r.Message != "" {
		fmt.Fprintf(w, "\n%s\n", r.Message)
	}
	if len(r.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "\nFailed items (%d):\n", len(r.Failures))
	for _, f := range r.Failures {
		fmt.Fprintf(w, "  %s: %s\n", f.Item, f.Error)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
