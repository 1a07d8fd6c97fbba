package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsYAMLAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  dsn: "state/test.sqlite"
workdir:
  root: "C:\\Vault"
bridge:
  mode: http
  base_url: "http://127.0.0.1:9123"
  timeout: 90s
branding:
  company_name: "Acme Fabrication"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "state/test.sqlite", cfg.Database.DSN)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, `C:\Vault`, cfg.Workdir.Root)
	assert.Equal(t, "http", cfg.Bridge.Mode)
	assert.Equal(t, 90*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, "sqlite", cfg.Lock.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Lock.TTL)
	assert.Equal(t, ".pdm/releases", cfg.Package.OutputRoot)
	assert.Equal(t, "Acme Fabrication", cfg.Branding.CompanyName)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "pdmrelease", cfg.App.Name)
	assert.Equal(t, "none", cfg.Bridge.Mode)
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	base := Config{
		Database: DatabaseConfig{DSN: "x.sqlite"},
		Lock:     LockConfig{Backend: "sqlite"},
	}
	require.NoError(t, base.Validate())

	redisLock := base
	redisLock.Lock.Backend = "redis"
	assert.Error(t, redisLock.Validate())

	badMode := base
	badMode.Bridge.Mode = "ftp"
	assert.Error(t, badMode.Validate())

	s3 := base
	s3.S3.Enabled = true
	assert.Error(t, s3.Validate())

	noDSN := base
	noDSN.Database.DSN = ""
	assert.Error(t, noDSN.Validate())
}
