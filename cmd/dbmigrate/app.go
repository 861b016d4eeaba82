/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/acronis/go-appkit/config"
	"github.com/acronis/go-appkit/log"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/backend"
	"github.com/acronis/go-dbmigrate/metrics"
	"github.com/acronis/go-dbmigrate/migrate"
)

const envVarsPrefix = "DBMIGRATE"

const pushJobName = "dbmigrate"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	configPath    string
	migrationsDir string
	seedsDir      string
	noLock        bool
	pushgateway   string
}

type app struct {
	flags globalFlags

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	dbCfg      *dbmigrate.Config
	migrateCfg *migrate.Config
	logCfg     *log.Config

	logger      log.FieldLogger
	loggerClose func()

	registry *prometheus.Registry
	metrics  *metrics.PrometheusMetrics
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:       stdin,
		stdout:      stdout,
		stderr:      stderr,
		logger:      log.NewDisabledLogger(),
		loggerClose: func() {},
	}
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if pushErr := a.pushMetrics(ctx); pushErr != nil && err == nil {
		err = pushErr
	}
	a.loggerClose()
	if err != nil {
		_, _ = color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig reads configuration from the file passed in --config (if any) and environment variables.
// Command line flags take precedence.
func (a *app) loadConfig() error {
	a.dbCfg = dbmigrate.NewDefaultConfig(backend.SupportedDialects)
	a.migrateCfg = migrate.NewDefaultConfig("")
	a.logCfg = log.NewConfig()

	loader := config.NewDefaultLoader(envVarsPrefix)
	if a.flags.configPath != "" {
		if err := loader.LoadFromFile(a.flags.configPath, configDataType(a.flags.configPath),
			a.dbCfg, a.migrateCfg, a.logCfg); err != nil {
			return fmt.Errorf("load configuration from %s: %w", a.flags.configPath, err)
		}
	} else {
		if err := loader.LoadFromReader(strings.NewReader(""), config.DataTypeYAML,
			a.dbCfg, a.migrateCfg, a.logCfg); err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
	}

	if a.flags.migrationsDir != "" {
		a.migrateCfg.MigrationsDir = a.flags.migrationsDir
	}
	if a.flags.seedsDir != "" {
		a.migrateCfg.SeedsDir = a.flags.seedsDir
	}
	if a.flags.noLock {
		a.migrateCfg.Lock.Enabled = false
	}

	// Standard output is reserved for command results.
	if a.logCfg.Output == log.OutputStdout {
		a.logCfg.Output = log.OutputStderr
	}
	logger, loggerClose := log.NewLogger(a.logCfg)
	a.logger = logger
	a.loggerClose = func() { loggerClose() }

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewPrometheusMetrics()
	a.metrics.MustRegisterIn(a.registry)
	return nil
}

func configDataType(path string) config.DataType {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return config.DataTypeJSON
	}
	return config.DataTypeYAML
}

func (a *app) newAdapter() (adapter.Adapter, error) {
	return backend.New(a.dbCfg, a.logger, a.migrateCfg.BackendOptions())
}

func (a *app) serviceOptions(opts []migrate.Option) []migrate.Option {
	return append(opts, migrate.WithMetrics(a.metrics))
}

func (a *app) newMigrationService() (*migrate.MigrationService, error) {
	ad, err := a.newAdapter()
	if err != nil {
		return nil, err
	}
	return migrate.NewMigrationService(ad, a.logger, a.serviceOptions(a.migrateCfg.MigrationOptions())...), nil
}

func (a *app) newSeedService() (*migrate.SeedService, error) {
	ad, err := a.newAdapter()
	if err != nil {
		return nil, err
	}
	return migrate.NewSeedService(ad, a.logger, a.serviceOptions(a.migrateCfg.SeedOptions())...), nil
}

// initializer is implemented by MigrationService and SeedService.
type initializer interface {
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
}

// withInitialized initializes svc, calls fn and closes svc on every path.
func (a *app) withInitialized(ctx context.Context, svc initializer, fn func() error) (err error) {
	defer func() {
		if closeErr := svc.Close(ctx); closeErr != nil {
			a.logger.Error("failed to close connection", log.Error(closeErr))
			if err == nil {
				err = closeErr
			}
		}
	}()
	if err = svc.Initialize(ctx); err != nil {
		return err
	}
	return fn()
}

func (a *app) pushMetrics(ctx context.Context) error {
	if a.flags.pushgateway == "" || a.registry == nil {
		return nil
	}
	if err := push.New(a.flags.pushgateway, pushJobName).Gatherer(a.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", a.flags.pushgateway, err)
	}
	return nil
}

func (a *app) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(a.stdout, format, args...)
}
