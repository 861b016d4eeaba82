/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"fmt"
	"time"

	"github.com/acronis/go-appkit/config"

	"github.com/acronis/go-dbmigrate/backend"
)

const cfgDefaultKeyPrefix = "migrate"

const (
	cfgKeyMigrationsDir   = "migrationsDir"
	cfgKeySeedsDir        = "seedsDir"
	cfgKeyMigrationsTable = "migrationsTable"
	cfgKeySeedsTable      = "seedsTable"
	cfgKeyLocksTable      = "locksTable"
	cfgKeyLockEnabled     = "lock.enabled"
	cfgKeyLockTTL         = "lock.ttl"
)

// Default values of the engine configuration.
const (
	DefaultMigrationsDir = "./migrations"
	DefaultSeedsDir      = "./seeds"
	DefaultLockTTL       = time.Minute
)

// Config represents configuration of the migration and seed services.
type Config struct {
	MigrationsDir   string     `mapstructure:"migrationsDir" yaml:"migrationsDir" json:"migrationsDir"`
	SeedsDir        string     `mapstructure:"seedsDir" yaml:"seedsDir" json:"seedsDir"`
	MigrationsTable string     `mapstructure:"migrationsTable" yaml:"migrationsTable" json:"migrationsTable"`
	SeedsTable      string     `mapstructure:"seedsTable" yaml:"seedsTable" json:"seedsTable"`
	LocksTable      string     `mapstructure:"locksTable" yaml:"locksTable" json:"locksTable"`
	Lock            LockConfig `mapstructure:"lock" yaml:"lock" json:"lock"`

	keyPrefix string
}

// LockConfig represents configuration of the advisory lock taken by mutating operations.
type LockConfig struct {
	Enabled bool                `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	TTL     config.TimeDuration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
}

var _ config.Config = (*Config)(nil)
var _ config.KeyPrefixProvider = (*Config)(nil)

// NewDefaultConfig creates a new instance of the Config with default values.
// keyPrefix may be empty, "migrate" is used then.
func NewDefaultConfig(keyPrefix string) *Config {
	if keyPrefix == "" {
		keyPrefix = cfgDefaultKeyPrefix
	}
	return &Config{
		MigrationsDir: DefaultMigrationsDir,
		SeedsDir:      DefaultSeedsDir,
		Lock:          LockConfig{Enabled: true, TTL: config.TimeDuration(DefaultLockTTL)},
		keyPrefix:     keyPrefix,
	}
}

// KeyPrefix returns a key prefix with which all configuration parameters should be presented.
func (c *Config) KeyPrefix() string {
	if c.keyPrefix == "" {
		return cfgDefaultKeyPrefix
	}
	return c.keyPrefix
}

// SetProviderDefaults sets default configuration values in config.DataProvider.
func (c *Config) SetProviderDefaults(dp config.DataProvider) {
	dp.SetDefault(cfgKeyMigrationsDir, DefaultMigrationsDir)
	dp.SetDefault(cfgKeySeedsDir, DefaultSeedsDir)
	dp.SetDefault(cfgKeyLockEnabled, true)
	dp.SetDefault(cfgKeyLockTTL, DefaultLockTTL)
}

// Set sets configuration values from config.DataProvider.
func (c *Config) Set(dp config.DataProvider) error {
	var err error
	if c.MigrationsDir, err = dp.GetString(cfgKeyMigrationsDir); err != nil {
		return err
	}
	if c.SeedsDir, err = dp.GetString(cfgKeySeedsDir); err != nil {
		return err
	}
	if c.MigrationsTable, err = dp.GetString(cfgKeyMigrationsTable); err != nil {
		return err
	}
	if c.SeedsTable, err = dp.GetString(cfgKeySeedsTable); err != nil {
		return err
	}
	if c.LocksTable, err = dp.GetString(cfgKeyLocksTable); err != nil {
		return err
	}
	if c.Lock.Enabled, err = dp.GetBool(cfgKeyLockEnabled); err != nil {
		return err
	}
	var ttl time.Duration
	if ttl, err = dp.GetDuration(cfgKeyLockTTL); err != nil {
		return err
	}
	if ttl <= 0 {
		return dp.WrapKeyErr(cfgKeyLockTTL, fmt.Errorf("must be positive"))
	}
	c.Lock.TTL = config.TimeDuration(ttl)
	return nil
}

// BackendOptions returns table (collection) names for backend.New.
func (c *Config) BackendOptions() backend.Options {
	return backend.Options{MigrationsTable: c.MigrationsTable, SeedsTable: c.SeedsTable, LocksTable: c.LocksTable}
}

// MigrationOptions returns options for NewMigrationService.
func (c *Config) MigrationOptions() []Option {
	return []Option{WithDir(c.MigrationsDir), WithLock(c.Lock.Enabled, time.Duration(c.Lock.TTL))}
}

// SeedOptions returns options for NewSeedService.
func (c *Config) SeedOptions() []Option {
	return []Option{WithDir(c.SeedsDir), WithLock(c.Lock.Enabled, time.Duration(c.Lock.TTL))}
}
