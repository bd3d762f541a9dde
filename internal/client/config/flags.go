package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/channelhub/internal/flagx"
	"github.com/dmitrijs2005/channelhub/internal/timex"
)

// parseFlags reads -a (server address), -db (session file) and -t (request
// timeout) from os.Args.
func parseFlags(cfg *Config) error {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-db", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port of the server gRPC endpoint")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "path to the local session database")
	timeout := timex.Duration{Duration: cfg.RequestTimeout}
	fs.Var(&timeout, "t", "per-request timeout, e.g. 5s")

	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.RequestTimeout = timeout.Duration
	return nil
}
