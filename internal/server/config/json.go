package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/channelhub/internal/flagx"
	"github.com/dmitrijs2005/channelhub/internal/timex"
)

// JsonConfig mirrors Config for unmarshalling. Pointer fields tell an absent
// key apart from an explicit zero value; only present keys override.
type JsonConfig struct {
	HTTPAddr             string          `json:"http_address"`
	GRPCAddr             string          `json:"grpc_address"`
	Storage              string          `json:"storage"`
	DatabaseDSN          string          `json:"database_dsn"`
	AccessTokenSecret    string          `json:"access_token_secret"`
	AccessTokenExpiry    *timex.Duration `json:"access_token_expiry"`
	RefreshTokenSecret   string          `json:"refresh_token_secret"`
	RefreshTokenExpiry   *timex.Duration `json:"refresh_token_expiry"`
	RevokeOnRefreshReuse *bool           `json:"revoke_on_refresh_reuse"`
	CookieSecure         *bool           `json:"cookie_secure"`
	S3AccessKey          string          `json:"s3_access_key"`
	S3SecretKey          string          `json:"s3_secret_key"`
	S3Bucket             string          `json:"s3_bucket"`
	S3Region             string          `json:"s3_region"`
	S3BaseEndpoint       string          `json:"s3_base_endpoint"`
	MediaURLExpiry       *timex.Duration `json:"media_url_expiry"`
	LogLevel             string          `json:"log_level"`
}

// parseJson overlays the file named by -c/-config, if any, onto config.
func parseJson(config *Config) error {
	path := flagx.JsonConfigFlags()
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.Storage, c.Storage)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.LogLevel, c.LogLevel)

	if c.AccessTokenExpiry != nil {
		config.AccessTokenExpiry = c.AccessTokenExpiry.Duration
	}
	if c.RefreshTokenExpiry != nil {
		config.RefreshTokenExpiry = c.RefreshTokenExpiry.Duration
	}
	if c.MediaURLExpiry != nil {
		config.MediaURLExpiry = c.MediaURLExpiry.Duration
	}
	if c.RevokeOnRefreshReuse != nil {
		config.RevokeOnRefreshReuse = *c.RevokeOnRefreshReuse
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
