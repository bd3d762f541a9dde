package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/channelhub/internal/flagx"
	"github.com/dmitrijs2005/channelhub/internal/timex"
)

const defaultEnvFile = ".env"

// parseEnv loads a dotenv file (-env, or ./.env when present) into the
// process environment without overriding variables that are already set,
// then overlays the recognised variables onto config.
func parseEnv(config *Config) error {
	path := flagx.EnvFileFlags()
	explicit := path != ""
	if !explicit {
		path = defaultEnvFile
	}

	if err := godotenv.Load(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	lookupString("HTTP_ADDRESS", &config.HTTPAddr)
	lookupString("GRPC_ADDRESS", &config.GRPCAddr)
	lookupString("STORAGE", &config.Storage)
	lookupString("DATABASE_DSN", &config.DatabaseDSN)
	lookupString("ACCESS_TOKEN_SECRET", &config.AccessTokenSecret)
	lookupString("REFRESH_TOKEN_SECRET", &config.RefreshTokenSecret)
	lookupString("S3_ACCESS_KEY", &config.S3AccessKey)
	lookupString("S3_SECRET_KEY", &config.S3SecretKey)
	lookupString("S3_BUCKET", &config.S3Bucket)
	lookupString("S3_REGION", &config.S3Region)
	lookupString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	lookupString("LOG_LEVEL", &config.LogLevel)

	return errors.Join(
		lookupDuration("ACCESS_TOKEN_EXPIRY", &config.AccessTokenExpiry),
		lookupDuration("REFRESH_TOKEN_EXPIRY", &config.RefreshTokenExpiry),
		lookupDuration("MEDIA_URL_EXPIRY", &config.MediaURLExpiry),
		lookupBool("REVOKE_ON_REFRESH_REUSE", &config.RevokeOnRefreshReuse),
		lookupBool("COOKIE_SECURE", &config.CookieSecure),
	)
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func lookupDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := timex.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func lookupBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
