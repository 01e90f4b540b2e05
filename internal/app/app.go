package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"fo-go/internal/config"
	"fo-go/internal/encryption"
	"fo-go/internal/fo"
	"fo-go/internal/fs"
	"fo-go/internal/store"
	"fo-go/internal/vault"
	"fo-go/internal/watch"
)

// App is the application layer between the CLI and the Service.
// It constructs all dependencies from config and manages their lifecycle
// on Close.
type App struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	vault     fo.Vault
	encryptor fo.Encryptor
	service   *fo.Service
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	logger, logFile, err := newLogger(cfg.LogDir)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	fsmgr := fs.NewOSFilesystemManager()

	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := st.Migrate(); err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	v, err := vault.NewVaultFromConfig(context.Background(), cfg.Vault)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	slogger := &slogAdapter{l: logger}

	window := time.Duration(cfg.Watch.DebounceMS) * time.Millisecond
	watcher := watch.NewFactory(window, fsmgr, nil, slogger)

	events := fo.NewBus(256)
	clock := fo.RealClock{}
	idgen := fo.UUIDGenerator{}

	var fallback = fo.FallbackRule(cfg.Organize.Fallback)
	if cfg.Organize.Fallback == "" {
		fallback = nil
	}

	mover := fo.NewMover(st, fsmgr, slogger)
	coord := fo.NewCoordinator(st, mover, fsmgr, watcher, events, slogger, clock, idgen, fo.CoordinatorConfig{
		OrganizeRoot: cfg.Organize.Root,
		Fallback:     fallback,
		AutoTag:      cfg.Organize.AutoTag,
	})

	policy := fo.DefaultBackupPolicy()
	if cfg.Backup.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.Backup.MaxAttempts
	}
	if cfg.Backup.BaseDelayMS > 0 {
		policy.BaseDelay = time.Duration(cfg.Backup.BaseDelayMS) * time.Millisecond
	}
	if cfg.Backup.MaxDelayMS > 0 {
		policy.MaxDelay = time.Duration(cfg.Backup.MaxDelayMS) * time.Millisecond
	}
	backup := fo.NewBackupQueue(st, v, fsmgr, enc, events, slogger, clock, policy)

	svc := fo.NewService(st, coord, backup, fsmgr, events, slogger, clock, idgen)

	return &App{
		cfg:       cfg,
		store:     st,
		vault:     v,
		encryptor: enc,
		service:   svc,
		logFile:   logFile,
	}, nil
}

// Service returns the wired orchestration service.
func (a *App) Service() *fo.Service {
	return a.service
}

// Encryptor returns the configured encryptor, or nil when encryption is off.
func (a *App) Encryptor() fo.Encryptor {
	return a.encryptor
}

// ValidateVault checks that the configured vault backend is reachable.
func (a *App) ValidateVault(ctx context.Context) error {
	return a.vault.ValidateSetup(ctx)
}

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
