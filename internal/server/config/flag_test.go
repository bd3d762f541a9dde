package config

import (
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name     string
		args     []string
		mutate   func(c *Config)
		expected func(c *Config)
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{"cmd",
				"-a", "127.0.0.1:8080", "-g", "127.0.0.1:9090", "-storage", "memory", "-d", "db",
				"-access-secret", "a", "-access-expiry", "5m",
				"-refresh-secret", "r", "-refresh-expiry", "7d",
				"-revoke-on-reuse", "-cookie-secure=false",
				"-s3-bucket", "bucket", "-s3-region", "eu-west-1", "-s3-endpoint", "http://minio:9000",
				"-log-level", "warn",
			},
			expected: func(c *Config) {
				c.HTTPAddr = "127.0.0.1:8080"
				c.GRPCAddr = "127.0.0.1:9090"
				c.Storage = "memory"
				c.DatabaseDSN = "db"
				c.AccessTokenSecret = "a"
				c.AccessTokenExpiry = 5 * time.Minute
				c.RefreshTokenSecret = "r"
				c.RefreshTokenExpiry = 7 * 24 * time.Hour
				c.RevokeOnRefreshReuse = true
				c.CookieSecure = false
				c.S3Bucket = "bucket"
				c.S3Region = "eu-west-1"
				c.S3BaseEndpoint = "http://minio:9000"
				c.LogLevel = "warn"
			},
		},
		{
			name:     "no flags keeps values",
			args:     []string{"cmd", "-test.v"},
			expected: func(c *Config) {},
		},
		{
			name:    "bad duration",
			args:    []string{"cmd", "-access-expiry", "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = tt.args

			config := &Config{}
			config.LoadDefaults()

			err := parseFlags(config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			expected := &Config{}
			expected.LoadDefaults()
			tt.expected(expected)
			assert.Empty(t, cmp.Diff(expected, config))
		})
	}
}
