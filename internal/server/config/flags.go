package config

import (
	"flag"
	"io"
	"os"

	"github.com/dmitrijs2005/channelhub/internal/flagx"
	"github.com/dmitrijs2005/channelhub/internal/timex"
)

var serverFlags = []string{
	"-a", "-g", "-storage", "-d",
	"-access-secret", "-access-expiry", "-refresh-secret", "-refresh-expiry",
	"-revoke-on-reuse", "-cookie-secure",
	"-s3-bucket", "-s3-region", "-s3-endpoint",
	"-log-level",
}

// parseFlags overlays command-line flags onto config.
//
//	-a string               HTTP bind address (":8000")
//	-g string               gRPC bind address (":50051")
//	-storage string         "postgres" or "memory"
//	-d string               PostgreSQL DSN
//	-access-secret string   access token HMAC secret
//	-access-expiry dur      access token lifetime ("15m")
//	-refresh-secret string  refresh token HMAC secret
//	-refresh-expiry dur     refresh token lifetime ("10d")
//	-revoke-on-reuse bool   log the owner out when a used refresh token is replayed
//	-cookie-secure bool     set Secure on auth cookies
//	-s3-bucket, -s3-region, -s3-endpoint string
//	-log-level string       debug|info|warn|error
func parseFlags(config *Config) error {
	args := flagx.FilterArgs(os.Args[1:], serverFlags)

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address")
	fs.StringVar(&config.Storage, "storage", config.Storage, "storage backend")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")

	accessExpiry := timex.Duration{Duration: config.AccessTokenExpiry}
	refreshExpiry := timex.Duration{Duration: config.RefreshTokenExpiry}

	fs.StringVar(&config.AccessTokenSecret, "access-secret", config.AccessTokenSecret, "access token secret")
	fs.Var(&accessExpiry, "access-expiry", "access token expiry")
	fs.StringVar(&config.RefreshTokenSecret, "refresh-secret", config.RefreshTokenSecret, "refresh token secret")
	fs.Var(&refreshExpiry, "refresh-expiry", "refresh token expiry")

	fs.BoolVar(&config.RevokeOnRefreshReuse, "revoke-on-reuse", config.RevokeOnRefreshReuse, "revoke session on refresh token reuse")
	fs.BoolVar(&config.CookieSecure, "cookie-secure", config.CookieSecure, "secure cookies")

	fs.StringVar(&config.S3Bucket, "s3-bucket", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.LogLevel, "log-level", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.AccessTokenExpiry = accessExpiry.Duration
	config.RefreshTokenExpiry = refreshExpiry.Duration
	return nil
}
