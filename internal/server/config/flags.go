package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// ValueFlags lists every flag of the server that takes a value.
var ValueFlags = []string{
	"-c", "-config",
	"-a", "-q", "-m", "-d", "-s", "-l",
	"-o", "-t", "-f", "-z",
	"-i", "-x", "-n", "-w", "-k",
	"-u", "-p", "-b", "-g", "-e",
}

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP API bind address (e.g., ":8080")
//	-q string   gRPC health bind address (e.g., ":50051")
//	-m string   metrics bind address (e.g., ":9090")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-l string   log level (debug, info, warn, error)
//	-o string   storage driver (local, s3)
//	-t string   staging directory
//	-f string   resident directory
//	-z int      max file size in bytes, 0 for no limit
//	-i int      sweep period, minutes
//	-x int      staging expiration, minutes
//	-n int      sweep batch limit
//	-w int      reclaim workers
//	-k int      reclaim queue size
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	if err := parseFlagArgs(config, os.Args[1:]); err != nil {
		panic(err)
	}
}

func parseFlagArgs(config *Config, args []string) error {
	// Filter args to include only the flags handled here.
	args = flagx.FilterArgs(args, ValueFlags[2:])

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port of the HTTP API")
	fs.StringVar(&config.EndpointAddrGRPC, "q", config.EndpointAddrGRPC, "address and port of the gRPC health service")
	fs.StringVar(&config.EndpointAddrMetrics, "m", config.EndpointAddrMetrics, "address and port of the metrics endpoint")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	fs.StringVar(&config.StorageDriver, "o", config.StorageDriver, "storage driver (local, s3)")
	fs.StringVar(&config.StagingPath, "t", config.StagingPath, "staging directory")
	fs.StringVar(&config.ResidentPath, "f", config.ResidentPath, "resident directory")
	fs.Int64Var(&config.MaxFileSize, "z", config.MaxFileSize, "max file size in bytes")

	sweepPeriod := fs.Int("i", int(config.SweepPeriod.Minutes()), "sweep period (in minutes)")
	stagingExpiration := fs.Int("x", int(config.StagingExpiration.Minutes()), "staging expiration (in minutes)")
	fs.IntVar(&config.SweepBatchLimit, "n", config.SweepBatchLimit, "sweep batch limit")
	fs.IntVar(&config.ReclaimWorkers, "w", config.ReclaimWorkers, "reclaim workers")
	fs.IntVar(&config.ReclaimQueueSize, "k", config.ReclaimQueueSize, "reclaim queue size")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// sub-minute values set through JSON survive when the flag is absent
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			config.SweepPeriod = time.Duration(*sweepPeriod) * time.Minute
		case "x":
			config.StagingExpiration = time.Duration(*stagingExpiration) * time.Minute
		}
	})

	return nil
}
