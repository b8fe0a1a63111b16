package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"level-observer/src/models"
)

const validYAML = `
name: level-observer
host: 127.0.0.1
port: 8000
log_level: DEBUG
grpc_port: 50051
storage:
  db_type: sqlite
  db_path: test.db
network:
  timeout: 5
  retries: 1
  concurrent_requests: 2
data_source:
  data_retention_days: 30
  update_interval_seconds: 60
  sources:
    - name: binance
      type: binance
      quote: USDT
      symbols: [BTC, ETH]
    - name: stocks
      type: polygon
      quote: USD
      symbols: [AAPL]
resolutions: [1h, 4h]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yaml", validYAML)
	envPath := writeFile(t, dir, ".env", "POLYGON_API_KEY=poly-key\nBINANCE_API_KEY=bin-key\n")

	t.Setenv("POLYGON_API_KEY", "")
	t.Setenv("BINANCE_API_KEY", "")
	os.Unsetenv("POLYGON_API_KEY")
	os.Unsetenv("BINANCE_API_KEY")

	cfg, err := NewConfig(cfgPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, "level-observer", cfg.Name)
	assert.Equal(t, []string{"1h", "4h"}, cfg.Resolutions)

	stocks, err := cfg.SourceConfig("stocks")
	require.NoError(t, err)
	assert.Equal(t, "poly-key", stocks.APIKey)

	bin, err := cfg.SourceConfig("binance")
	require.NoError(t, err)
	assert.Equal(t, "bin-key", bin.APIKey)

	_, err = cfg.SourceConfig("missing")
	assert.Error(t, err)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		var m models.MConfig
		require.NoError(t, yaml.Unmarshal([]byte(validYAML), &m))
		m.DataSource.Sources[1].APIKey = "k"
		return &Config{MConfig: &m}
	}

	require.NoError(t, base().Validate())

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty name", func(c *Config) { c.Name = "" }},
		{"privileged port", func(c *Config) { c.Port = 80 }},
		{"bad grpc port", func(c *Config) { c.GrpcPort = 70000 }},
		{"unknown db", func(c *Config) { c.Storage.DBType = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.DBType = "postgres" }},
		{"zero timeout", func(c *Config) { c.Network.RequestTimeout = 0 }},
		{"no sources", func(c *Config) { c.DataSource.Sources = nil }},
		{"unknown source type", func(c *Config) { c.DataSource.Sources[0].Type = "kraken" }},
		{"missing quote", func(c *Config) { c.DataSource.Sources[0].Quote = "" }},
		{"duplicate source", func(c *Config) { c.DataSource.Sources[1].Name = "binance" }},
		{"polygon without key", func(c *Config) { c.DataSource.Sources[1].APIKey = "" }},
		{"no resolutions", func(c *Config) { c.Resolutions = nil }},
		{"unsupported resolution", func(c *Config) { c.Resolutions = []string{"7m"} }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSaveStripsSecrets(t *testing.T) {
	var m models.MConfig
	require.NoError(t, yaml.Unmarshal([]byte(validYAML), &m))
	m.DataSource.Sources[0].APIKey = "secret"
	m.DataSource.Sources[0].SecretKey = "secret"
	cfg := &Config{MConfig: &m}

	p := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Equal(t, "secret", cfg.DataSource.Sources[0].APIKey, "in-memory config keeps credentials")
}
