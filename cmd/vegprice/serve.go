package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/subcommands"

	"github.com/rewired-gh/vegprice/internal/api"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the read API over HTTP" }
func (*serveCmd) Usage() string {
	return `vegprice serve [-addr :8080]

  Serves catalogs, the live snapshot, price lookups, histories and recent
  runs under /veg.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "listen address (defaults to server.addr)")
}

func (c *serveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := newApp(options{journal: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	defer a.Close()

	h, err := a.handler()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	if a.cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := c.addr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if err := api.Serve(ctx, addr, api.NewRouter(h)); err != nil {
		fmt.Fprintf(os.Stderr, "Error serving HTTP: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
