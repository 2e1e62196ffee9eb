package config

import (
	"io"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/mediaoffload/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a, --hook-addr string       hook HTTP listen address
//	    --health-addr string     gRPC health listen address
//	    --db-driver string       "pgx" or "sqlite"
//	-d, --db-dsn string          database DSN
//	-s, --secret string          hook JWT HMAC secret
//	-e, --s3-endpoint string     S3 base endpoint
//	-g, --s3-region string       S3 region
//	-b, --s3-bucket string       S3 bucket
//	-r, --s3-root string         key prefix inside the bucket
//	-u, --s3-access-key string   S3 access key
//	-p, --s3-secret-key string   S3 secret key
//	    --public-url string      public base URL of the bucket
//	-U, --uploads-dir string     local uploads root
//	-T, --temp-dir string        scratch parent directory
//	    --modern-format string   image/webp, image/avif or ""
//	    --lock-ttl duration      worker lock TTL
//	    --worker-interval duration
//	-l, --log-level string       debug, info, warn, error
//
// Arguments are filtered with flagx.FilterArgs first, so subcommand flags
// and positionals never reach this flag set.
func parseFlags(config *Config, args []string) error {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVarP(&config.HookAddr, "hook-addr", "a", config.HookAddr, "hook HTTP listen address")
	fs.StringVar(&config.HealthAddr, "health-addr", config.HealthAddr, "gRPC health listen address")
	fs.StringVar(&config.DatabaseDriver, "db-driver", config.DatabaseDriver, "database driver (pgx, sqlite)")
	fs.StringVarP(&config.DatabaseDSN, "db-dsn", "d", config.DatabaseDSN, "database DSN")
	fs.StringVarP(&config.HookSecret, "secret", "s", config.HookSecret, "hook token secret")
	fs.StringVarP(&config.S3Endpoint, "s3-endpoint", "e", config.S3Endpoint, "S3 base endpoint")
	fs.StringVarP(&config.S3Region, "s3-region", "g", config.S3Region, "S3 region")
	fs.StringVarP(&config.S3Bucket, "s3-bucket", "b", config.S3Bucket, "S3 bucket")
	fs.StringVarP(&config.S3Root, "s3-root", "r", config.S3Root, "S3 key prefix")
	fs.StringVarP(&config.S3AccessKey, "s3-access-key", "u", config.S3AccessKey, "S3 access key")
	fs.StringVarP(&config.S3SecretKey, "s3-secret-key", "p", config.S3SecretKey, "S3 secret key")
	fs.StringVar(&config.PublicBaseURL, "public-url", config.PublicBaseURL, "public base URL")
	fs.StringVarP(&config.UploadsDir, "uploads-dir", "U", config.UploadsDir, "local uploads root")
	fs.StringVarP(&config.TempDir, "temp-dir", "T", config.TempDir, "scratch parent directory")
	fs.StringVar(&config.ModernFormat, "modern-format", config.ModernFormat, "modern output format")
	fs.DurationVar(&config.LockTTL, "lock-ttl", config.LockTTL, "worker lock TTL")
	fs.DurationVar(&config.WorkerInterval, "worker-interval", config.WorkerInterval, "worker poll interval")
	fs.StringVarP(&config.LogLevel, "log-level", "l", config.LogLevel, "log level")

	return fs.Parse(flagx.FilterArgs(args, flagNames(fs)))
}

// flagNames lists every spelling the flag set accepts.
func flagNames(fs *pflag.FlagSet) []string {
	var names []string
	fs.VisitAll(func(f *pflag.Flag) {
		names = append(names, "--"+f.Name)
		if f.Shorthand != "" {
			names = append(names, "-"+f.Shorthand)
		}
	})
	return names
}
