package config

import (
	"flag"
	"fmt"
	"io"
)

// parseFlags overlays values from command-line flags.
//
//	-a string   HTTP bind address (e.g. ":3100")
//	-d string   PostgreSQL DSN
//	-s string   session token HMAC secret
//	-t duration session token lifetime (e.g. "24h")
//	-b string   S3 bucket
//	-e string   S3 base endpoint
//	-secure     mark the session cookie Secure
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.HTTPAddr, "a", cfg.HTTPAddr, "address and port to run server")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "session token secret key")
	fs.DurationVar(&cfg.TokenTTL, "t", cfg.TokenTTL, "session token lifetime")
	fs.StringVar(&cfg.S3Bucket, "b", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3BaseEndpoint, "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	fs.BoolVar(&cfg.CookieSecure, "secure", cfg.CookieSecure, "mark session cookie Secure")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: parse flags: %w", err)
	}
	return nil
}
