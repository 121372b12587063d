package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/allocator/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-t int      offer TTL, hours
//	-i int      sweep interval, seconds
//	-n int      sweep batch size
//	-r bool     re-admit applicants with an expired offer on a fresh round (use -r=false to disable)
//	-s string   offer token HMAC secret
//	-l string   log level
//	-b string   audit S3 bucket (empty disables archiving)
//	-g string   audit S3 region
//	-e string   audit S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-u string   audit S3 user
//	-p string   audit S3 password
//
// os.Args is filtered with flagx.FilterArgs first, so subcommand names and
// flags owned by other components are ignored.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-t", "-i", "-n", "-r", "-s", "-l", "-b", "-g", "-e", "-u", "-p"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	offerTTL := fs.Int("t", int(config.OfferTTL.Hours()), "offer TTL (in hours)")
	sweepInterval := fs.Int("i", int(config.SweepInterval.Seconds()), "sweep interval (in seconds)")

	fs.IntVar(&config.SweepBatchSize, "n", config.SweepBatchSize, "due offers fetched per sweep page")
	fs.BoolVar(&config.ReadmitExpired, "r", config.ReadmitExpired, "re-admit expired applicants on a fresh round")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.AuditBucket, "b", config.AuditBucket, "audit S3 bucket")
	fs.StringVar(&config.AuditRegion, "g", config.AuditRegion, "audit S3 region")
	fs.StringVar(&config.AuditEndpoint, "e", config.AuditEndpoint, "audit S3 base endpoint")
	fs.StringVar(&config.AuditUser, "u", config.AuditUser, "audit S3 user")
	fs.StringVar(&config.AuditPassword, "p", config.AuditPassword, "audit S3 password")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	// Whole-unit flags only replace durations that were passed explicitly,
	// so "90s" from a file is not truncated by the default.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.OfferTTL = time.Duration(*offerTTL) * time.Hour
		case "i":
			config.SweepInterval = time.Duration(*sweepInterval) * time.Second
		}
	})
}
