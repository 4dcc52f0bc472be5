package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. SNAPBACK_ENCRYPTION_PASSPHRASE for encryption.passphrase.
const EnvPrefix = "SNAPBACK"

// Config represents the top-level YAML configuration file.
type Config struct {
	Include    []string         `mapstructure:"include"    yaml:"include,omitempty"`
	App        AppConfig        `mapstructure:"app"        yaml:"app"`
	Database   DatabaseConfig   `mapstructure:"database"   yaml:"database"`
	Documents  DocumentsConfig  `mapstructure:"documents"  yaml:"documents"`
	Backup     BackupConfig     `mapstructure:"backup"     yaml:"backup"`
	Encryption EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	Vault      VaultConfig      `mapstructure:"vault"      yaml:"vault"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"   yaml:"schedule"`
	Retention  RetentionConfig  `mapstructure:"retention"  yaml:"retention"`
	Catalog    CatalogConfig    `mapstructure:"catalog"    yaml:"catalog"`
	Audit      AuditConfig      `mapstructure:"audit"      yaml:"audit"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// AppConfig identifies the application whose state is backed up.
type AppConfig struct {
	Name     string `mapstructure:"name"      yaml:"name"`
	DataRoot string `mapstructure:"data_root" yaml:"data_root"`
}

// DatabaseConfig locates the live database file.
type DatabaseConfig struct {
	Path      string `mapstructure:"path"       yaml:"path"`
	HotBackup bool   `mapstructure:"hot_backup" yaml:"hot_backup"`
}

// DocumentsConfig locates the three live document directories.
type DocumentsConfig struct {
	Receipts  string `mapstructure:"receipts"  yaml:"receipts"`
	Documents string `mapstructure:"documents" yaml:"documents"`
	Reports   string `mapstructure:"reports"   yaml:"reports"`
}

// BackupConfig contains global backup options.
type BackupConfig struct {
	Directory       string        `mapstructure:"directory"        yaml:"directory"`
	TimestampFormat string        `mapstructure:"timestamp_format" yaml:"timestamp_format"`
	Compression     string        `mapstructure:"compression"      yaml:"compression"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
}

// EncryptionConfig selects where the archive key comes from.
type EncryptionConfig struct {
	KeySource  string `mapstructure:"key_source" yaml:"key_source"`
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
}

// VaultConfig holds connection settings for HashiCorp Vault.
type VaultConfig struct {
	Address  string `mapstructure:"address"   yaml:"address"`
	RoleID   string `mapstructure:"role_id"   yaml:"role_id,omitempty"`
	RoleName string `mapstructure:"role_name" yaml:"role_name,omitempty"`
	KeyPath  string `mapstructure:"key_path"  yaml:"key_path"`
	KeyField string `mapstructure:"key_field" yaml:"key_field"`
}

// ScheduleConfig controls the unattended daily backup.
type ScheduleConfig struct {
	Enabled   bool   `mapstructure:"enabled"     yaml:"enabled"`
	TimeOfDay string `mapstructure:"time_of_day" yaml:"time_of_day"`
}

// RetentionConfig specifies how many backups to keep.
type RetentionConfig struct {
	KeepLast            int  `mapstructure:"keep_last"             yaml:"keep_last"`
	PruneAfterScheduled bool `mapstructure:"prune_after_scheduled" yaml:"prune_after_scheduled"`
}

// CatalogConfig selects the catalog backend.
type CatalogConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path"   yaml:"path"`
}

// AuditConfig selects where audit activities go.
type AuditConfig struct {
	Sink string `mapstructure:"sink" yaml:"sink"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"       yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

type MetricsConfig struct {
	ListenAddress string `mapstructure:"listen_address" yaml:"listen_address"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "snapback")
	v.SetDefault("app.data_root", ".")
	v.SetDefault("database.path", "database.db")
	v.SetDefault("database.hot_backup", false)
	v.SetDefault("documents.receipts", "Receipts")
	v.SetDefault("documents.documents", "Documents")
	v.SetDefault("documents.reports", "reports")
	v.SetDefault("backup.directory", "backups")
	v.SetDefault("backup.timestamp_format", "2006-01-02_15-04-05.000")
	v.SetDefault("backup.compression", "deflate")
	v.SetDefault("backup.timeout", 30*time.Minute)
	v.SetDefault("encryption.key_source", "passphrase")
	v.SetDefault("encryption.passphrase", "")
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.role_id", "")
	v.SetDefault("vault.role_name", "")
	v.SetDefault("vault.key_path", "")
	v.SetDefault("vault.key_field", "passphrase")
	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.time_of_day", "02:00")
	v.SetDefault("retention.keep_last", 7)
	v.SetDefault("retention.prune_after_scheduled", true)
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.path", "catalog.db")
	v.SetDefault("audit.sink", "log")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.listen_address", "")
}

// Load reads the configuration from the given YAML file using Viper,
// merges any included files, applies SNAPBACK_* environment overrides,
// and unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read base configuration
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read base config %s: %v", ErrLoadConfig, path, err)
	}

	// Merge include files (if any), relative to the base file
	for _, inc := range v.GetStringSlice("include") {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		data, err := os.ReadFile(inc)
		if err != nil {
			return fmt.Errorf("%w: read include %s: %v", ErrLoadConfig, inc, err)
		}
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%w: merge include %s: %v", ErrLoadConfig, inc, err)
		}
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate checks the loaded values for consistency.
func (c *Config) Validate() error {
	if c.App.DataRoot == "" {
		return fmt.Errorf("%w: app.data_root is required", ErrValidateConfig)
	}
	switch c.Backup.Compression {
	case "deflate", "zstd", "store":
	default:
		return fmt.Errorf("%w: backup.compression must be deflate, zstd or store, got %q",
			ErrValidateConfig, c.Backup.Compression)
	}
	if c.Backup.TimestampFormat == "" {
		return fmt.Errorf("%w: backup.timestamp_format is required", ErrValidateConfig)
	}
	switch c.Encryption.KeySource {
	case "passphrase":
		if c.Encryption.Passphrase == "" {
			return fmt.Errorf("%w: encryption.passphrase is required for key_source passphrase",
				ErrValidateConfig)
		}
	case "vault":
		if c.Vault.KeyPath == "" {
			return fmt.Errorf("%w: vault.key_path is required for key_source vault", ErrValidateConfig)
		}
	default:
		return fmt.Errorf("%w: encryption.key_source must be passphrase or vault, got %q",
			ErrValidateConfig, c.Encryption.KeySource)
	}
	if c.Schedule.Enabled {
		if _, err := ParseTimeOfDay(c.Schedule.TimeOfDay); err != nil {
			return fmt.Errorf("%w: schedule.time_of_day: %v", ErrValidateConfig, err)
		}
	}
	if c.Retention.KeepLast < 0 {
		return fmt.Errorf("%w: retention.keep_last must not be negative", ErrValidateConfig)
	}
	switch c.Catalog.Driver {
	case "sqlite", "badger":
	default:
		return fmt.Errorf("%w: catalog.driver must be sqlite or badger, got %q",
			ErrValidateConfig, c.Catalog.Driver)
	}
	switch c.Audit.Sink {
	case "log", "sql":
	default:
		return fmt.Errorf("%w: audit.sink must be log or sql, got %q", ErrValidateConfig, c.Audit.Sink)
	}
	if c.Audit.Sink == "sql" && c.Catalog.Driver != "sqlite" {
		return fmt.Errorf("%w: audit.sink sql requires catalog.driver sqlite", ErrValidateConfig)
	}
	return nil
}

// Resolve returns p unchanged when absolute, otherwise joined to app.data_root.
func (c *Config) Resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.App.DataRoot, p)
}

// BackupRoot is the absolute directory holding staging dirs and archives.
func (c *Config) BackupRoot() string {
	root, err := filepath.Abs(c.Resolve(c.Backup.Directory))
	if err != nil {
		return c.Resolve(c.Backup.Directory)
	}
	return root
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS" into an offset from midnight.
func ParseTimeOfDay(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, want HH:MM or HH:MM:SS", s)
}
