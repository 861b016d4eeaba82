/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/change"
)

// MigrationService applies and rolls back migrations.
type MigrationService struct {
	service
}

// NewMigrationService creates a new migration service working through the adapter.
// Definitions are read from DefaultMigrationsDir unless WithDir is passed.
func NewMigrationService(a adapter.Adapter, logger log.FieldLogger, opts ...Option) *MigrationService {
	return &MigrationService{newService(a, change.KindMigration, logger, DefaultMigrationsDir, opts)}
}

// Up applies all pending migrations in file name order and returns the applied ones.
// On failure, migrations applied before the failed one are returned together
// with *dbmigrate.ChangeError.
func (s *MigrationService) Up(ctx context.Context) ([]change.Definition, error) {
	var applied []change.Definition
	err := s.exclusively(ctx, func(ctx context.Context) error {
		defs, records, err := s.load(ctx)
		if err != nil {
			return err
		}
		pending := pendingDefinitions(defs, records)
		if len(pending) == 0 {
			s.logger.Info("no pending migrations")
			return nil
		}
		s.logger.Info(fmt.Sprintf("applying %d migration(s)", len(pending)))
		for i := range pending {
			if err = s.execute(ctx, &pending[i], change.DirectionUp); err != nil {
				return err
			}
			applied = append(applied, pending[i])
		}
		s.logger.Info(fmt.Sprintf("applied %d migration(s)", len(applied)))
		return nil
	})
	return applied, err
}

// Down rolls back the last steps applied migrations, most recently applied first,
// and returns the rolled back ones. Application order is taken from the execution log.
func (s *MigrationService) Down(ctx context.Context, steps int) ([]change.Definition, error) {
	if steps < 1 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	var reverted []change.Definition
	err := s.exclusively(ctx, func(ctx context.Context) error {
		defs, records, err := s.load(ctx)
		if err != nil {
			return err
		}
		executed := executedDefinitions(defs, records)
		if len(executed) == 0 {
			s.logger.Info("no migrations to roll back")
			return nil
		}
		if steps > len(executed) {
			steps = len(executed)
		}
		s.logger.Info(fmt.Sprintf("rolling back %d migration(s)", steps))
		for i := len(executed) - 1; i >= len(executed)-steps; i-- {
			if err = s.execute(ctx, &executed[i], change.DirectionDown); err != nil {
				return err
			}
			reverted = append(reverted, executed[i])
		}
		s.logger.Info(fmt.Sprintf("rolled back %d migration(s)", len(reverted)))
		return nil
	})
	return reverted, err
}
