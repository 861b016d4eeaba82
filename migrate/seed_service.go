/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

package migrate

import (
	"context"
	"fmt"

	"github.com/acronis/go-appkit/log"

	"github.com/acronis/go-dbmigrate"
	"github.com/acronis/go-dbmigrate/adapter"
	"github.com/acronis/go-dbmigrate/change"
)

// SeedService runs seeds. Seeds have no rollback.
type SeedService struct {
	service
}

// NewSeedService creates a new seed service working through the adapter.
// Definitions are read from DefaultSeedsDir unless WithDir is passed.
func NewSeedService(a adapter.Adapter, logger log.FieldLogger, opts ...Option) *SeedService {
	return &SeedService{newService(a, change.KindSeed, logger, DefaultSeedsDir, opts)}
}

// Run runs all pending seeds in file name order and returns the executed ones.
func (s *SeedService) Run(ctx context.Context) ([]change.Definition, error) {
	var executed []change.Definition
	err := s.exclusively(ctx, func(ctx context.Context) error {
		defs, records, err := s.load(ctx)
		if err != nil {
			return err
		}
		pending := pendingDefinitions(defs, records)
		if len(pending) == 0 {
			s.logger.Info("no pending seeds")
			return nil
		}
		s.logger.Info(fmt.Sprintf("running %d seed(s)", len(pending)))
		for i := range pending {
			if err = s.execute(ctx, &pending[i], change.DirectionUp); err != nil {
				return err
			}
			executed = append(executed, pending[i])
		}
		s.logger.Info(fmt.Sprintf("ran %d seed(s)", len(executed)))
		return nil
	})
	return executed, err
}

// RunNamed runs the seed with the given name (or file name) even if it has been run already.
// *dbmigrate.NotFoundError is returned if there is no such seed.
func (s *SeedService) RunNamed(ctx context.Context, name string) (*change.Definition, error) {
	var seed *change.Definition
	err := s.exclusively(ctx, func(ctx context.Context) error {
		defs, err := s.loadDefinitions()
		if err != nil {
			return err
		}
		for i := range defs {
			if defs[i].Name == name || defs[i].ID == name {
				seed = &defs[i]
				break
			}
		}
		if seed == nil {
			return &dbmigrate.NotFoundError{Kind: string(change.KindSeed), Name: name}
		}
		return s.execute(ctx, seed, change.DirectionUp)
	})
	if err != nil {
		return nil, err
	}
	return seed, nil
}
