package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig_ParsesBackupSection(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  name: "LedgerDesk"
  data_root: "/var/lib/ledgerdesk"
backup:
  compression: zstd
  timeout: 5m
encryption:
  passphrase: "correct horse"
schedule:
  enabled: true
  time_of_day: "03:15"
retention:
  keep_last: 3
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))

	require.Equal(t, "LedgerDesk", cfg.App.Name)
	require.Equal(t, "zstd", cfg.Backup.Compression)
	require.Equal(t, 5*time.Minute, cfg.Backup.Timeout)
	require.Equal(t, 3, cfg.Retention.KeepLast)
	// defaults
	require.Equal(t, "database.db", cfg.Database.Path)
	require.Equal(t, "Receipts", cfg.Documents.Receipts)
	require.Equal(t, "sqlite", cfg.Catalog.Driver)
	require.Equal(t, "/var/lib/ledgerdesk/backups", cfg.BackupRoot())
	require.Equal(t, "/var/lib/ledgerdesk/database.db", cfg.Resolve(cfg.Database.Path))
}

func TestLoadConfig_MergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "secrets.yaml", `
encryption:
  passphrase: "from-include"
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - secrets.yaml
app:
  data_root: "/srv/app"
`)

	var cfg Config
	require.NoError(t, cfg.Load(path))
	require.Equal(t, "from-include", cfg.Encryption.Passphrase)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  data_root: "/srv/app"
encryption:
  passphrase: "file"
`)
	t.Setenv("SNAPBACK_ENCRYPTION_PASSPHRASE", "env")

	var cfg Config
	require.NoError(t, cfg.Load(path))
	require.Equal(t, "env", cfg.Encryption.Passphrase)
}

func TestLoadConfig_SecretsFromEnvOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  data_root: "/srv/app"
`)
	t.Setenv("SNAPBACK_ENCRYPTION_PASSPHRASE", "env-only")

	var cfg Config
	require.NoError(t, cfg.Load(path))
	require.Equal(t, "env-only", cfg.Encryption.Passphrase)
}

func TestLoadConfig_VaultSettingsFromEnvOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  data_root: "/srv/app"
encryption:
  key_source: vault
`)
	t.Setenv("SNAPBACK_VAULT_ADDRESS", "http://vault.internal:8200")
	t.Setenv("SNAPBACK_VAULT_ROLE_ID", "role-123")
	t.Setenv("SNAPBACK_VAULT_ROLE_NAME", "snapback")
	t.Setenv("SNAPBACK_VAULT_KEY_PATH", "secret/data/snapback")
	t.Setenv("SNAPBACK_METRICS_LISTEN_ADDRESS", "127.0.0.1:9465")

	var cfg Config
	require.NoError(t, cfg.Load(path))
	require.Equal(t, "http://vault.internal:8200", cfg.Vault.Address)
	require.Equal(t, "role-123", cfg.Vault.RoleID)
	require.Equal(t, "snapback", cfg.Vault.RoleName)
	require.Equal(t, "secret/data/snapback", cfg.Vault.KeyPath)
	require.Equal(t, "127.0.0.1:9465", cfg.Metrics.ListenAddress)
}

func TestLoadConfig_RejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  data_root: "/srv/app"
  colour: blue
encryption:
  passphrase: "x"
`)

	var cfg Config
	err := cfg.Load(path)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrLoadConfig))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			App:        AppConfig{Name: "app", DataRoot: "/data"},
			Backup:     BackupConfig{Compression: "deflate", TimestampFormat: "20060102"},
			Encryption: EncryptionConfig{KeySource: "passphrase", Passphrase: "p"},
			Catalog:    CatalogConfig{Driver: "sqlite"},
			Audit:      AuditConfig{Sink: "log"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing data root", func(c *Config) { c.App.DataRoot = "" }},
		{"bad compression", func(c *Config) { c.Backup.Compression = "lz4" }},
		{"missing passphrase", func(c *Config) { c.Encryption.Passphrase = "" }},
		{"vault without path", func(c *Config) { c.Encryption.KeySource = "vault" }},
		{"bad schedule", func(c *Config) { c.Schedule = ScheduleConfig{Enabled: true, TimeOfDay: "25:00"} }},
		{"negative keep", func(c *Config) { c.Retention.KeepLast = -1 }},
		{"bad driver", func(c *Config) { c.Catalog.Driver = "postgres" }},
		{"sql audit on badger", func(c *Config) { c.Catalog.Driver = "badger"; c.Audit.Sink = "sql" }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrValidateConfig))
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("02:30")
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour+30*time.Minute, d)

	d, err = ParseTimeOfDay("23:59:30")
	require.NoError(t, err)
	require.Equal(t, 23*time.Hour+59*time.Minute+30*time.Second, d)

	_, err = ParseTimeOfDay("noon")
	require.Error(t, err)
}
