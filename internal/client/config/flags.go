package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// ValueFlags lists every client flag that takes a value.
var ValueFlags = []string{"-c", "-config", "-a", "-k", "-z", "-t", "-n", "-r", "-m", "-resume"}

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the server (default from Config)
//	-k string   bearer token
//	-z int      upload chunk size in bytes
//	-t int      request timeout in seconds
//	-n int      attempts per chunk
func parseFlags(cfg *Config) {
	if err := parseFlagArgs(cfg, os.Args[1:]); err != nil {
		panic(err)
	}
}

func parseFlagArgs(cfg *Config, args []string) error {
	// Filter args to include only those handled here.
	args = flagx.FilterArgs(args, []string{"-a", "-k", "-z", "-t", "-n"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the server")
	fs.StringVar(&cfg.Token, "k", cfg.Token, "bearer token")
	fs.Int64Var(&cfg.ChunkSize, "z", cfg.ChunkSize, "upload chunk size (in bytes)")
	timeout := fs.Int("t", int(cfg.Timeout.Seconds()), "request timeout (in seconds)")
	fs.IntVar(&cfg.Retries, "n", cfg.Retries, "attempts per chunk")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.Timeout = time.Duration(*timeout) * time.Second
	return nil
}
