/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/migrate"
)

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbmigrate",
		Short: "Database migrations and seeds for MySQL, PostgreSQL, SQLite, MSSQL and MongoDB",
		Long: `dbmigrate applies, rolls back and inspects migrations and seeds.

Connection parameters are read from the file passed in --config and from
environment variables with the DBMIGRATE_ prefix:
  DBMIGRATE_DB_DIALECT=postgres DBMIGRATE_DB_POSTGRES_HOST=localhost dbmigrate up`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.flags.configPath, "config", "c", "", "path to a YAML or JSON configuration file")
	flags.StringVar(&a.flags.migrationsDir, "migrations-dir", "", "directory with migration files (overrides configuration)")
	flags.StringVar(&a.flags.seedsDir, "seeds-dir", "", "directory with seed files (overrides configuration)")
	flags.BoolVar(&a.flags.noLock, "no-lock", false, "don't take the advisory lock")
	flags.StringVar(&a.flags.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push execution metrics to")

	rootCmd.AddCommand(
		newInitCmd(a),
		newCreateCmd(a),
		newUpCmd(a),
		newDownCmd(a),
		newStatusCmd(a),
		newSeedCreateCmd(a),
		newSeedRunCmd(a),
		newSeedStatusCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return rootCmd
}

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create migration and seed directories and execution log tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrations, err := a.newMigrationService()
			if err != nil {
				return err
			}
			if err = a.withInitialized(ctx, migrations, func() error { return nil }); err != nil {
				return err
			}
			seeds, err := a.newSeedService()
			if err != nil {
				return err
			}
			if err = a.withInitialized(ctx, seeds, func() error { return nil }); err != nil {
				return err
			}
			a.printf("%s Initialized migrations in %s and seeds in %s\n", successMark(), migrations.Dir(), seeds.Dir())
			return nil
		},
	}
}

func newCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "create <name>",
		Short:   "Create a new migration file",
		Example: "  dbmigrate create add_users_table",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newMigrationService()
			if err != nil {
				return err
			}
			filePath, err := svc.Create(args[0])
			if err != nil {
				return err
			}
			a.printf("%s Created migration %s\n", successMark(), filePath)
			return nil
		},
	}
}

func newUpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.newMigrationService()
			if err != nil {
				return err
			}
			return a.withInitialized(ctx, svc, func() error {
				applied, upErr := svc.Up(ctx)
				for i := range applied {
					a.printf("%s Applied %s\n", successMark(), applied[i].ID)
				}
				if upErr == nil && len(applied) == 0 {
					a.printf("No pending migrations\n")
				}
				return upErr
			})
		},
	}
}

func newDownCmd(a *app) *cobra.Command {
	var steps int
	var yes bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			if !yes && !a.confirm(fmt.Sprintf("Roll back %d migration(s)?", steps)) {
				a.printf("Aborted\n")
				return nil
			}
			ctx := cmd.Context()
			svc, err := a.newMigrationService()
			if err != nil {
				return err
			}
			return a.withInitialized(ctx, svc, func() error {
				reverted, downErr := svc.Down(ctx, steps)
				for i := range reverted {
					a.printf("%s Rolled back %s\n", successMark(), reverted[i].ID)
				}
				if downErr == nil && len(reverted) == 0 {
					a.printf("No migrations to roll back\n")
				}
				return downErr
			})
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "s", 1, "number of migrations to roll back")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "don't ask for confirmation")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.newMigrationService()
			if err != nil {
				return err
			}
			return a.withInitialized(ctx, svc, func() error {
				report, statusErr := svc.Status(ctx)
				if statusErr != nil {
					return statusErr
				}
				return a.printReport(report)
			})
		},
	}
}

func newSeedCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "seed:create <name>",
		Short:   "Create a new seed file",
		Example: "  dbmigrate seed:create demo_users",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.newSeedService()
			if err != nil {
				return err
			}
			filePath, err := svc.Create(args[0])
			if err != nil {
				return err
			}
			a.printf("%s Created seed %s\n", successMark(), filePath)
			return nil
		},
	}
}

func newSeedRunCmd(a *app) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "seed:run",
		Short: "Run pending seeds, or the seed passed in --name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.newSeedService()
			if err != nil {
				return err
			}
			return a.withInitialized(ctx, svc, func() error {
				if name != "" {
					seed, runErr := svc.RunNamed(ctx, name)
					if runErr != nil {
						return runErr
					}
					a.printf("%s Ran %s\n", successMark(), seed.ID)
					return nil
				}
				executed, runErr := svc.Run(ctx)
				for i := range executed {
					a.printf("%s Ran %s\n", successMark(), executed[i].ID)
				}
				if runErr == nil && len(executed) == 0 {
					a.printf("No pending seeds\n")
				}
				return runErr
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "run only the seed with this name, even if it has been run already")
	return cmd
}

func newSeedStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed:status",
		Short: "Show executed and pending seeds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc, err := a.newSeedService()
			if err != nil {
				return err
			}
			return a.withInitialized(ctx, svc, func() error {
				report, statusErr := svc.Status(ctx)
				if statusErr != nil {
					return statusErr
				}
				return a.printReport(report)
			})
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with passwords masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := struct {
				DB      *dbmigrate.Config `yaml:"db"`
				Migrate *migrate.Config   `yaml:"migrate"`
			}{DB: a.dbCfg.Redacted(), Migrate: a.migrateCfg}
			data, err := yaml.Marshal(out)
			if err != nil {
				return fmt.Errorf("marshal configuration: %w", err)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			a.printf("dbmigrate version %s\n", version)
		},
	}
}

// confirm asks a yes/no question on stdin. Anything but "y" or "yes" means no.
func (a *app) confirm(question string) bool {
	a.printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(a.stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
