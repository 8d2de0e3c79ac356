package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Sectors, 20)
	assert.True(t, decimal.NewFromInt(1000000).Equal(cfg.CeilingAmount()))
	assert.Equal(t, "exact", cfg.Workflow.RoleMatching)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL())
	assert.True(t, cfg.HasSector("Roads"))
	assert.False(t, cfg.HasSector("roads"))
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"ceiling":  func(c *Config) { c.Budget.Ceiling = "lots" },
		"negative": func(c *Config) { c.Budget.Ceiling = "-1" },
		"paise":    func(c *Config) { c.Budget.Ceiling = "1000.005" },
		"huge":     func(c *Config) { c.Budget.Ceiling = "1e20" },
		"matching": func(c *Config) { c.Workflow.RoleMatching = "fuzzy" },
		"storage":  func(c *Config) { c.Storage.Primary = "s3" },
		"ttl":      func(c *Config) { c.Session.TTL = "tomorrow" },
		"format":   func(c *Config) { c.Log.Format = "xml" },
		"sectors":  func(c *Config) { c.Sectors = nil },
		"dup":      func(c *Config) { c.Sectors = []string{"Roads", "Roads"} },
		"webhook":  func(c *Config) { c.Webhooks = []Webhook{{}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	require.Error(t, err)

	cfg, err := LoadOrDefault(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Primary)

	yml := `budget:
  ceiling: "2500.50"
storage:
  primary: memory
sectors: [Roads, Markets]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yml), 0o644))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Primary)
	assert.Equal(t, []string{"Roads", "Markets"}, cfg.Sectors)
	assert.True(t, decimal.RequireFromString("2500.5").Equal(cfg.CeilingAmount()))
}
