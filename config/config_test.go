package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv(configPathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "social-service", cfg.ServiceName)
	assert.Equal(t, 30*time.Minute, cfg.Cache.PostTTL)
	assert.Equal(t, 15*time.Minute, cfg.Cache.FeedTTL)
	assert.Equal(t, time.Hour, cfg.Cache.UserTTL)
	assert.Equal(t, GraphBackendNeo4j, cfg.GraphBackend)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
	assert.True(t, cfg.IsLocal())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
env: dev
graph_backend: postgres
security:
  jwt_secret: from-file
cache:
  feed_ttl: 5m
http:
  port: "9090"
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv(configPathEnvVar, path)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("CACHE_POST_TTL", "45m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TRUST_USER_HEADER", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, GraphBackendPostgres, cfg.GraphBackend)
	assert.Equal(t, "from-file", cfg.Security.JWTSecret)
	assert.Equal(t, "7070", cfg.HTTP.Port)
	assert.Equal(t, 5*time.Minute, cfg.Cache.FeedTTL)
	assert.Equal(t, 45*time.Minute, cfg.Cache.PostTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.True(t, cfg.Security.TrustUserHeader)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"feed ttl equal to post ttl", func(c *Config) { c.Cache.FeedTTL = c.Cache.PostTTL }, false},
		{"feed ttl longer than post ttl", func(c *Config) { c.Cache.FeedTTL = time.Hour }, false},
		{"unknown graph backend", func(c *Config) { c.GraphBackend = "dgraph" }, false},
		{"postgres graph backend", func(c *Config) { c.GraphBackend = GraphBackendPostgres }, true},
		{"missing jwt secret outside local", func(c *Config) { c.Env = "prod" }, false},
		{"jwt secret in prod", func(c *Config) { c.Env = "prod"; c.Security.JWTSecret = "s3cret" }, true},
		{"missing db url", func(c *Config) { c.Database.URL = "" }, false},
		{"zero op timeout", func(c *Config) { c.Cache.OpTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEnvTransformIgnoresUnknownVariables(t *testing.T) {
	assert.Equal(t, "database.url", envTransformFunc("DB_URL"))
	assert.Equal(t, "telemetry.otel_endpoint", envTransformFunc("OTEL_EXPORTER_OTLP_ENDPOINT"))
	assert.Empty(t, envTransformFunc("PATH"))
}
