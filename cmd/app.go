package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kebairia/snapback/internal/audit"
	"github.com/kebairia/snapback/internal/backup"
	"github.com/kebairia/snapback/internal/config"
	"github.com/kebairia/snapback/internal/database"
	"github.com/kebairia/snapback/internal/encryption"
	"github.com/kebairia/snapback/internal/fsutil"
	"github.com/kebairia/snapback/internal/logger"
	"github.com/kebairia/snapback/internal/metrics"
	"github.com/kebairia/snapback/internal/operations"
	"github.com/kebairia/snapback/internal/vault"
)

// app is everything a command needs, built from the config file.
type app struct {
	cfg     config.Config
	log     logger.Logger
	catalog backup.Catalog
	metrics *metrics.Recorder
	manager *operations.Manager
}

func newApp(ctx context.Context) (*app, error) {
	var cfg config.Config
	if err := cfg.Load(ConfigFile); err != nil {
		return nil, err
	}
	log, err := logger.New(logger.Options{Level: cfg.Logging.Level, Development: cfg.Logging.Development})
	if err != nil {
		return nil, err
	}

	catalog, auditor, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	keys, err := keyProvider(ctx, cfg)
	if err != nil {
		catalog.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, err
	}

	db := database.New(cfg.Resolve(cfg.Database.Path),
		database.WithName(cfg.App.Name),
		database.WithHotBackup(cfg.Database.HotBackup),
		database.WithLogger(log),
	)
	recorder := metrics.New()
	manager := operations.NewManager(cfg, catalog, db, encryption.NewCipher(keys),
		operations.WithLogger(log),
		operations.WithNotifier(operations.LogNotifier{Log: log}),
		operations.WithAuditLogger(auditor),
		operations.WithPrincipal(operations.EnvPrincipal{}),
		operations.WithMetrics(recorder),
	)
	return &app{cfg: cfg, log: log, catalog: catalog, metrics: recorder, manager: manager}, nil
}

func (a *app) Close() {
	if err := a.catalog.Close(); err != nil {
		a.log.Warn("failed to close catalog", "error", err.Error())
	}
}

func openCatalog(ctx context.Context, cfg config.Config, log logger.Logger) (backup.Catalog, operations.AuditLogger, error) {
	path := cfg.Resolve(cfg.Catalog.Path)
	if err := fsutil.EnsureDirectoryExist(filepath.Dir(path)); err != nil {
		return nil, nil, err
	}

	switch cfg.Catalog.Driver {
	case "badger":
		catalog, err := backup.OpenBadger(path)
		if err != nil {
			return nil, nil, err
		}
		return catalog, audit.NewLogLogger(log), nil
	default:
		catalog, err := backup.OpenSQLite(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Audit.Sink != "sql" {
			return catalog, audit.NewLogLogger(log), nil
		}
		auditor := audit.NewSQLLogger(catalog.DB())
		if err := auditor.Migrate(ctx); err != nil {
			catalog.Close() //nolint:errcheck // Best effort cleanup on error
			return nil, nil, err
		}
		return catalog, auditor, nil
	}
}

func keyProvider(ctx context.Context, cfg config.Config) (encryption.KeyProvider, error) {
	if cfg.Encryption.KeySource != "vault" {
		return encryption.PassphraseKey(cfg.Encryption.Passphrase), nil
	}
	client, err := vault.NewClient(ctx,
		vault.WithAddress(cfg.Vault.Address),
		vault.WithAppRole(cfg.Vault.RoleID, cfg.Vault.RoleName),
	)
	if err != nil {
		return nil, fmt.Errorf("vault client init: %w", err)
	}
	return vault.NewKeyProvider(client, cfg.Vault.KeyPath, cfg.Vault.KeyField), nil
}
